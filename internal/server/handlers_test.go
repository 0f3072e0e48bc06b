package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperfocal/veridoc/internal/answer"
	"github.com/hyperfocal/veridoc/internal/confidence"
	"github.com/hyperfocal/veridoc/internal/config"
	"github.com/hyperfocal/veridoc/internal/embedding"
	"github.com/hyperfocal/veridoc/internal/extract"
	"github.com/hyperfocal/veridoc/internal/models"
	"github.com/hyperfocal/veridoc/internal/session"
	"github.com/hyperfocal/veridoc/internal/storage"
)

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	root := t.TempDir()

	chunkStore, err := storage.NewSQLiteStore(filepath.Join(root, "chunks.db"))
	if err != nil {
		t.Fatalf("open chunk store: %v", err)
	}
	t.Cleanup(func() { chunkStore.Close() })

	exts := []string{".txt", ".pdf"}
	sessions := session.NewStore(filepath.Join(root, "sessions"), 1024*1024, exts, nil)

	orc, err := answer.New(answer.Config{
		ChunkSize:           300,
		ChunkOverlap:        50,
		TopK:                3,
		GlobalDocumentsDir:  filepath.Join(root, "documents"),
		GlobalEmbeddingsDir: filepath.Join(root, "embeddings"),
		GlobalIndexDir:      filepath.Join(root, "index"),
		Extensions:          exts,
	}, embedding.NewMockEmbedder(16), nil, chunkStore, sessions, extract.NewExtractor(nil), confidence.NewRefuser(1), nil)
	if err != nil {
		t.Fatalf("answer.New: %v", err)
	}

	srv := NewServer(orc, &config.ServerConfig{Host: "127.0.0.1", Port: 8080}, 1024*1024, zap.NewNop())
	return srv, srv.Router()
}

func multipartUpload(t *testing.T, fileName, content, sessionID string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if sessionID != "" {
		if err := mw.WriteField("session_id", sessionID); err != nil {
			t.Fatalf("write session_id field: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &body, mw.FormDataContentType()
}

func doUpload(t *testing.T, router http.Handler, fileName, content, sessionID string) models.UploadResponse {
	t.Helper()
	body, contentType := multipartUpload(t, fileName, content, sessionID)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp models.UploadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	return resp
}

func TestHandleUpload_DeduplicatesWithinSession(t *testing.T) {
	_, router := newTestServer(t)

	first := doUpload(t, router, "notes.txt", "alpha beta gamma", "")
	if first.SessionID == "" {
		t.Fatal("upload did not create a session")
	}
	if first.FileName != "notes.txt" {
		t.Fatalf("first file name = %q, want notes.txt", first.FileName)
	}

	second := doUpload(t, router, "notes.txt", "delta epsilon", first.SessionID)
	if second.SessionID != first.SessionID {
		t.Fatalf("session changed across uploads: %q vs %q", second.SessionID, first.SessionID)
	}
	if second.FileName != "notes_1.txt" {
		t.Fatalf("second file name = %q, want notes_1.txt", second.FileName)
	}
	if len(second.FilesInSession) != 2 {
		t.Fatalf("files_in_session = %v, want 2 entries", second.FilesInSession)
	}
}

func TestHandleUpload_RejectsUnsupportedType(t *testing.T) {
	_, router := newTestServer(t)

	body, contentType := multipartUpload(t, "malware.exe", "nope", "")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestHandleUpload_MissingFileField(t *testing.T) {
	_, router := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/upload", bytes.NewReader(nil))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=xxx")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestHandleChat_EmptyQuestion(t *testing.T) {
	_, router := newTestServer(t)

	for _, question := range []string{"", "   "} {
		payload, _ := json.Marshal(models.ChatRequest{Question: question})
		req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("question %q: status = %d, want 400", question, w.Code)
		}
	}
}

func TestHandleChat_NoDocuments(t *testing.T) {
	_, router := newTestServer(t)

	payload, _ := json.Marshal(models.ChatRequest{Question: "Anything at all?"})
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp models.ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Response != answer.NoDocumentsMessage {
		t.Fatalf("response = %q, want no-documents message", resp.Response)
	}
}

func TestHandleChat_UnknownSession(t *testing.T) {
	_, router := newTestServer(t)

	payload, _ := json.Marshal(models.ChatRequest{
		Question:  "Hello?",
		SessionID: "11111111-2222-3333-4444-555555555555",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestHandleSessionFiles(t *testing.T) {
	_, router := newTestServer(t)
	uploaded := doUpload(t, router, "notes.txt", "alpha beta", "")

	req := httptest.NewRequest(http.MethodGet, "/api/session/"+uploaded.SessionID+"/files", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp models.SessionFilesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Files) != 1 || resp.Files[0] != "notes.txt" {
		t.Fatalf("files = %v, want [notes.txt]", resp.Files)
	}
}

func TestHandleSessionFiles_UnknownSession(t *testing.T) {
	_, router := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/session/11111111-2222-3333-4444-555555555555/files", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestHandleDeleteSession(t *testing.T) {
	_, router := newTestServer(t)
	uploaded := doUpload(t, router, "notes.txt", "alpha beta", "")

	req := httptest.NewRequest(http.MethodDelete, "/api/session/"+uploaded.SessionID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body = %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/session/"+uploaded.SessionID, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", w.Code)
	}
}

func TestHandleDeleteSession_MalformedID(t *testing.T) {
	_, router := newTestServer(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/session/not-a-uuid", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	_, router := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}
