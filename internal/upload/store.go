// Package upload stores user-supplied files on local disk under
// lexicographically sortable names.
package upload

import (
	"errors"
	"fmt"
	"io"
	mathrand "math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrTooLarge is returned when a file exceeds the store's size limit.
var ErrTooLarge = errors.New("file too large")

// URLPrefix is the public path under which stored files are served.
const URLPrefix = "/uploads/"

// Store writes files into a single directory.
type Store struct {
	dir      string
	maxBytes int64

	entropyMu sync.Mutex
	entropy   io.Reader
}

// NewStore creates the directory if needed.
func NewStore(dir string, maxBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}
	return &Store{
		dir:      dir,
		maxBytes: maxBytes,
		entropy:  ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0),
	}, nil
}

// Dir returns the directory files are written to.
func (s *Store) Dir() string {
	return s.dir
}

// MaxBytes returns the per-file size limit.
func (s *Store) MaxBytes() int64 {
	return s.maxBytes
}

// Save copies r into a new file keeping the extension of originalName and
// returns the public URL path of the stored file.
func (s *Store) Save(r io.Reader, originalName string) (string, error) {
	name := s.newID() + sanitizeExt(originalName)
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("creating upload file: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	closeErr := f.Close()
	if err == nil && n > s.maxBytes {
		err = ErrTooLarge
	}
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		if errors.Is(err, ErrTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("writing upload file: %w", err)
	}

	return URLPrefix + name, nil
}

// Remove deletes the file behind a URL returned by Save. URLs that do not
// name a file directly inside the store are ignored, as is a missing file.
func (s *Store) Remove(url string) error {
	name, ok := strings.CutPrefix(url, URLPrefix)
	if !ok || name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return nil
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing upload file: %w", err)
	}
	return nil
}

func (s *Store) newID() string {
	s.entropyMu.Lock()
	defer s.entropyMu.Unlock()
	return strings.ToLower(ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String())
}

func sanitizeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
