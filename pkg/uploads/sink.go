package uploads

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// ErrInvalidName is returned for names that do not refer to a plain file
// inside the upload directory.
var ErrInvalidName = errors.New("invalid upload name")

// Sink stores uploaded images as flat files in a single directory.
type Sink struct {
	fs      afero.Fs
	dir     string
	allowed map[string]struct{}
}

// NewSink creates a sink rooted at dir. Extensions are matched
// case-insensitively and may be given with or without a leading dot.
func NewSink(fs afero.Fs, dir string, extensions []string) *Sink {
	allowed := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			allowed[ext] = struct{}{}
		}
	}

	return &Sink{
		fs:      fs,
		dir:     dir,
		allowed: allowed,
	}
}

// NewOsSink creates a sink on the local filesystem.
func NewOsSink(dir string, extensions []string) *Sink {
	return NewSink(afero.NewOsFs(), dir, extensions)
}

func (s *Sink) Dir() string {
	return s.dir
}

// Init creates the upload directory if it does not exist yet.
func (s *Sink) Init() error {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create upload directory '%s': %w", s.dir, err)
	}
	return nil
}

// Allowed reports whether filename carries one of the configured extensions.
func (s *Sink) Allowed(filename string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		return false
	}
	_, ok := s.allowed[ext]
	return ok
}

// GenerateName returns a fresh unique file name that keeps the lower-cased
// extension of original.
func GenerateName(original string) string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "") + strings.ToLower(filepath.Ext(original))
}

// Save writes data under name and returns the path it was stored at.
func (s *Sink) Save(data []byte, name string) (string, error) {
	path, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	if err := s.Init(); err != nil {
		return "", err
	}
	if err := afero.WriteFile(s.fs, path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write upload '%s': %w", name, err)
	}
	return path, nil
}

// Remove deletes the stored file. A file that is already gone is not an error.
func (s *Sink) Remove(name string) error {
	path, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove upload '%s': %w", name, err)
	}
	return nil
}

// Open returns a reader for the stored file.
func (s *Sink) Open(name string) (afero.File, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	return s.fs.Open(path)
}

func (s *Sink) ReadFile(name string) ([]byte, error) {
	f, err := s.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

func (s *Sink) resolve(name string) (string, error) {
	base := filepath.Base(name)
	if name == "" || base != name || base == "." || base == ".." {
		return "", fmt.Errorf("%w: '%s'", ErrInvalidName, name)
	}
	return filepath.Join(s.dir, base), nil
}
