package extract

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestExtractBytes_Plain(t *testing.T) {
	e := NewExtractor(zap.NewNop())
	for _, ext := range []string{".txt", ".md", ""} {
		text, err := e.ExtractBytes([]byte("hello world"), ext)
		if err != nil {
			t.Fatalf("%q: %v", ext, err)
		}
		if text != "hello world" {
			t.Errorf("%q: got %q", ext, text)
		}
	}
}

func TestExtractBytes_InvalidUTF8(t *testing.T) {
	e := NewExtractor(nil)
	text, err := e.ExtractBytes([]byte{'h', 'i', 0xff, 0xfe}, ".txt")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(text, "hi") {
		t.Errorf("got %q", text)
	}
	if strings.ContainsRune(text, 0xff) {
		t.Error("invalid bytes should be replaced")
	}
}

func makeDOCX(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(body)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtractBytes_DOCX(t *testing.T) {
	e := NewExtractor(nil)
	doc := makeDOCX(t, `<w:document><w:p w:rsidR="0"><w:r><w:t>first run</w:t></w:r>`+
		`<w:r><w:t xml:space="preserve">second run</w:t></w:r></w:p></w:document>`)
	text, err := e.ExtractBytes(doc, ".docx")
	if err != nil {
		t.Fatal(err)
	}
	if text != "first run second run" {
		t.Errorf("got %q", text)
	}
}

func TestExtractBytes_DOCX_NotZip(t *testing.T) {
	e := NewExtractor(nil)
	if _, err := e.ExtractBytes([]byte("plain bytes"), ".docx"); err == nil {
		t.Error("non-zip DOCX should fail")
	}
}

func TestExtractBytes_PDF_Garbage(t *testing.T) {
	e := NewExtractor(nil)
	if _, err := e.ExtractBytes([]byte("not a pdf"), ".pdf"); err == nil {
		t.Error("garbage PDF should fail")
	}
}

func TestListDocuments(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.txt", "plain notes")
	writeFile(t, dir, "readme.md", "markdown text")
	writeFile(t, dir, "skipped.bin", "binary payload")
	writeFile(t, dir, "broken.docx", "not really a docx")
	if err := os.Mkdir(filepath.Join(dir, "subdir.txt"), 0755); err != nil {
		t.Fatal(err)
	}

	e := NewExtractor(zap.NewNop())
	docs, err := e.ListDocuments(dir, []string{".txt", ".md", ".docx"})
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents: %v", len(docs), docs)
	}
	if docs["notes.txt"] != "plain notes" || docs["readme.md"] != "markdown text" {
		t.Errorf("unexpected contents: %v", docs)
	}
}

func TestListDocuments_MissingDir(t *testing.T) {
	e := NewExtractor(nil)
	docs, err := e.ListDocuments(filepath.Join(t.TempDir(), "absent"), []string{".txt"})
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 0 {
		t.Errorf("got %v", docs)
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}
