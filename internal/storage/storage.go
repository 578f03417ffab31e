// Package storage keeps uploaded files on local disk. Records in the
// database only carry the path relative to the upload root.
package storage

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrFileNotFound = errors.New("file not found")
	ErrInvalidPath  = errors.New("invalid file path")
	ErrTooLarge     = errors.New("file too large")
)

// StoredFile describes a saved upload.
type StoredFile struct {
	Name     string // original client file name
	Path     string // slash-separated, relative to the root
	Size     int64
	MimeType string
}

type FileStore struct {
	root     string
	maxBytes int64
}

// NewFileStore creates root when missing. maxBytes <= 0 disables the
// size check.
func NewFileStore(root string, maxBytes int64) (*FileStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve upload root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload root: %w", err)
	}
	return &FileStore{root: abs, maxBytes: maxBytes}, nil
}

func (s *FileStore) Root() string { return s.root }

// Save copies an upload under dir with a random name, keeping the
// original extension.
func (s *FileStore) Save(dir string, fh *multipart.FileHeader) (StoredFile, error) {
	if s.maxBytes > 0 && fh.Size > s.maxBytes {
		return StoredFile{}, ErrTooLarge
	}
	src, err := fh.Open()
	if err != nil {
		return StoredFile{}, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	rel := path.Join(dir, uuid.NewString()+ext)
	full, err := s.Resolve(rel)
	if err != nil {
		return StoredFile{}, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return StoredFile{}, fmt.Errorf("create upload dir: %w", err)
	}

	dst, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return StoredFile{}, fmt.Errorf("create file: %w", err)
	}
	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(full)
		return StoredFile{}, fmt.Errorf("write file: %w", err)
	}
	return StoredFile{
		Name:     filepath.Base(fh.Filename),
		Path:     rel,
		Size:     n,
		MimeType: ContentType(fh.Filename),
	}, nil
}

// Remove deletes a stored file.
func (s *FileStore) Remove(rel string) error {
	full, err := s.Resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrFileNotFound
		}
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// Resolve maps a relative path to an absolute one inside the root.
// Absolute paths and paths climbing out of the root are rejected.
func (s *FileStore) Resolve(rel string) (string, error) {
	rel = strings.TrimSpace(rel)
	if rel == "" || strings.HasPrefix(rel, "/") || strings.HasPrefix(rel, `\`) || filepath.IsAbs(rel) {
		return "", ErrInvalidPath
	}
	for _, part := range strings.FieldsFunc(rel, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return "", ErrInvalidPath
		}
	}
	full := filepath.Join(s.root, filepath.FromSlash(rel))
	if full != s.root && !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return "", ErrInvalidPath
	}
	return full, nil
}

// Open returns a stored file for reading along with its size.
func (s *FileStore) Open(rel string) (*os.File, int64, error) {
	full, err := s.Resolve(rel)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, ErrFileNotFound
		}
		return nil, 0, err
	}
	st, err := f.Stat()
	if err != nil || st.IsDir() {
		f.Close()
		return nil, 0, ErrFileNotFound
	}
	return f, st.Size(), nil
}

var contentTypes = map[string]string{
	".csv":  "text/csv",
	".txt":  "text/plain",
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".zip":  "application/zip",
}

// ContentType guesses a MIME type from the file extension, falling
// back to application/octet-stream.
func ContentType(name string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}
