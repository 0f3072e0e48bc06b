// Package session manages isolated per-session working sets: uploaded files
// and the derived embeddings and index artifacts.
package session

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned for operations on a session that does not exist.
	ErrNotFound = errors.New("session not found")
	// ErrValidation marks rejected input: bad session id, unsupported file
	// type, missing filename, or an oversized upload.
	ErrValidation = errors.New("invalid request")
)

// Paths are the artifact directories of one session.
type Paths struct {
	Root       string
	Uploads    string
	Embeddings string
	Index      string
}

// Store manages the session directory tree. Every session lives under
// root/<uuid>/ and no operation reads or writes outside its own subtree:
// ids are required to parse as UUIDs and upload names are flattened to their
// base name, so path traversal cannot escape a session.
type Store struct {
	root        string
	maxFileSize int64
	extensions  map[string]bool
	logger      *zap.Logger

	// namingMu serializes upload-name de-duplication so two concurrent
	// uploads cannot claim the same de-duplicated filename.
	namingMu sync.Mutex
}

// NewStore creates a session store rooted at root. maxFileSize is the upload
// size ceiling in bytes; extensions are the recognized document extensions.
func NewStore(root string, maxFileSize int64, extensions []string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	recognized := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		recognized[strings.ToLower(ext)] = true
	}
	return &Store{
		root:        root,
		maxFileSize: maxFileSize,
		extensions:  recognized,
		logger:      logger,
	}
}

// Create allocates a new session id and its uploads directory.
func (s *Store) Create() (string, error) {
	id := uuid.New().String()
	paths, _ := s.Paths(id)
	if err := os.MkdirAll(paths.Uploads, 0755); err != nil {
		return "", fmt.Errorf("create session directory: %w", err)
	}
	s.logger.Info("session created", zap.String("session_id", id))
	return id, nil
}

// Paths returns the artifact directories for id without creating anything.
func (s *Store) Paths(id string) (Paths, error) {
	if err := validateID(id); err != nil {
		return Paths{}, err
	}
	root := filepath.Join(s.root, id)
	return Paths{
		Root:       root,
		Uploads:    filepath.Join(root, "uploads"),
		Embeddings: filepath.Join(root, "embeddings"),
		Index:      filepath.Join(root, "index"),
	}, nil
}

// Exists reports whether the session directory exists.
func (s *Store) Exists(id string) bool {
	paths, err := s.Paths(id)
	if err != nil {
		return false
	}
	info, err := os.Stat(paths.Root)
	return err == nil && info.IsDir()
}

// AddUpload validates and stores one uploaded file. When id is empty a new
// session is created. Duplicate filenames are de-duplicated by suffixing
// _1, _2, ... before the extension. Returns the session id and the stored path.
func (s *Store) AddUpload(id, fileName string, r io.Reader, size int64) (string, string, error) {
	name := filepath.Base(strings.TrimSpace(fileName))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", "", fmt.Errorf("%w: no filename provided", ErrValidation)
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !s.extensions[ext] {
		return "", "", fmt.Errorf("%w: unsupported file type %q", ErrValidation, ext)
	}
	if s.maxFileSize > 0 && size > s.maxFileSize {
		return "", "", fmt.Errorf("%w: file size exceeds %dMB limit", ErrValidation, s.maxFileSize/(1024*1024))
	}

	if id == "" {
		created, err := s.Create()
		if err != nil {
			return "", "", err
		}
		id = created
	} else if err := validateID(id); err != nil {
		return "", "", err
	}

	paths, err := s.Paths(id)
	if err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(paths.Uploads, 0755); err != nil {
		return "", "", fmt.Errorf("create uploads directory: %w", err)
	}

	f, storedPath, err := s.createUnique(paths.Uploads, name)
	if err != nil {
		return "", "", err
	}
	defer f.Close()

	limit := io.Reader(r)
	if s.maxFileSize > 0 {
		limit = io.LimitReader(r, s.maxFileSize+1)
	}
	written, err := io.Copy(f, limit)
	if err != nil {
		_ = os.Remove(storedPath)
		return "", "", fmt.Errorf("save upload: %w", err)
	}
	if s.maxFileSize > 0 && written > s.maxFileSize {
		_ = os.Remove(storedPath)
		return "", "", fmt.Errorf("%w: file size exceeds %dMB limit", ErrValidation, s.maxFileSize/(1024*1024))
	}

	s.logger.Info("upload stored",
		zap.String("session_id", id),
		zap.String("file", filepath.Base(storedPath)),
		zap.Int64("bytes", written),
	)
	return id, storedPath, nil
}

// createUnique opens a new file under dir, de-duplicating name with _1, _2, ...
// suffixes. O_EXCL plus the naming mutex guarantees two concurrent uploads
// never claim the same stored name.
func (s *Store) createUnique(dir, name string) (*os.File, string, error) {
	s.namingMu.Lock()
	defer s.namingMu.Unlock()

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for counter := 0; ; counter++ {
		candidate := name
		if counter > 0 {
			candidate = fmt.Sprintf("%s_%d%s", stem, counter, ext)
		}
		path := filepath.Join(dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return f, path, nil
		}
		if !os.IsExist(err) {
			return nil, "", fmt.Errorf("create upload file: %w", err)
		}
	}
}

// ListFiles returns the recognized document files uploaded to a session.
func (s *Store) ListFiles(id string) ([]string, error) {
	paths, err := s.Paths(id)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(paths.Uploads)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("list session files: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if s.extensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			files = append(files, entry.Name())
		}
	}
	return files, nil
}

// Delete removes the whole session directory tree. Returns false when the
// session did not exist.
func (s *Store) Delete(id string) (bool, error) {
	paths, err := s.Paths(id)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(paths.Root); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat session: %w", err)
	}
	if err := os.RemoveAll(paths.Root); err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	s.logger.Info("session deleted", zap.String("session_id", id))
	return true, nil
}

// validateID requires UUID-shaped session ids, which rules out separators and
// dot segments entirely.
func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: malformed session id", ErrValidation)
	}
	return nil
}
