package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperfocal/veridoc/internal/answer"
	"github.com/hyperfocal/veridoc/internal/models"
	"github.com/hyperfocal/veridoc/internal/session"
	"github.com/hyperfocal/veridoc/pkg/utils"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	s.logger.Debug("chat request",
		zap.String("question", utils.Truncate(req.Question, 200)),
		zap.String("session_id", req.SessionID),
	)

	response, err := s.orchestrator.Answer(r.Context(), req.Question, req.SessionID)
	if err != nil {
		s.respondPipelineError(w, "chat failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.ChatResponse{Response: response})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+1024*1024)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()
	sessionID := r.FormValue("session_id")
	s.logger.Debug("upload request",
		zap.String("file", header.Filename),
		zap.String("session_id", sessionID),
	)

	id, storedPath, err := s.orchestrator.Sessions().AddUpload(sessionID, header.Filename, file, header.Size)
	if err != nil {
		s.respondPipelineError(w, "upload rejected", err)
		return
	}
	if err := s.orchestrator.IngestUpload(r.Context(), id, storedPath); err != nil {
		s.logger.Error("ingestion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to process uploaded document")
		return
	}
	files, err := s.orchestrator.Sessions().ListFiles(id)
	if err != nil {
		s.logger.Error("list session files failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to list session files")
		return
	}
	s.respondJSON(w, http.StatusOK, models.UploadResponse{
		SessionID:      id,
		FilePath:       storedPath,
		FileName:       filepath.Base(storedPath),
		FilesInSession: files,
	})
}

func (s *Server) handleSessionFiles(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	files, err := s.orchestrator.Sessions().ListFiles(id)
	if err != nil {
		s.respondPipelineError(w, "list session files failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.SessionFilesResponse{Files: files})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete session request", zap.String("session_id", id))
	removed, err := s.orchestrator.DeleteSession(r.Context(), id)
	if err != nil {
		s.respondPipelineError(w, "delete session failed", err)
		return
	}
	if !removed {
		s.respondError(w, http.StatusNotFound, "session not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"session_id": id, "status": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondPipelineError maps sentinel errors to HTTP statuses. Anything
// unexpected is logged in full and reported as a sanitized 500.
func (s *Server) respondPipelineError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, answer.ErrEmptyQuestion), errors.Is(err, session.ErrValidation):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "session not found")
	default:
		s.logger.Error(msg, zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
