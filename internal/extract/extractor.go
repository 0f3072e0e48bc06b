// Package extract provides plain-text extraction from uploaded document formats.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Extractor turns document files into plain text for chunking.
type Extractor struct {
	logger *zap.Logger
}

// NewExtractor returns an extractor that logs skipped files to logger.
func NewExtractor(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Extract reads the file at path and returns its text content.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, strings.ToLower(filepath.Ext(path)))
}

// ExtractBytes extracts text from content based on ext (with leading dot).
// PDF, DOCX, XLSX, ODT, and RTF are parsed from their binary formats; anything
// else is treated as UTF-8 plain text.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch ext {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	case ".xlsx":
		return extractExcel(content)
	case ".odt", ".rtf":
		return extractOffice(content)
	default:
		return extractPlain(content)
	}
}

// ListDocuments extracts every recognized document in dir and returns a
// filename-to-text map. Files that fail extraction are skipped with a warning
// so one corrupt upload cannot block the rest of the corpus. A missing dir
// yields an empty map.
func (e *Extractor) ListDocuments(dir string, extensions []string) (map[string]string, error) {
	recognized := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		recognized[strings.ToLower(ext)] = true
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("list documents: %w", err)
	}

	documents := make(map[string]string)
	for _, f := range files {
		if f.IsDir() || !recognized[strings.ToLower(filepath.Ext(f.Name()))] {
			continue
		}
		text, err := e.Extract(filepath.Join(dir, f.Name()))
		if err != nil {
			e.logger.Warn("skipping unreadable document",
				zap.String("file", f.Name()),
				zap.Error(err),
			)
			continue
		}
		documents[f.Name()] = text
	}
	return documents, nil
}
