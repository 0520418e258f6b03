// Package media keeps synthesized audio on local disk until the gateway
// fetches it once.
package media

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"time"
)

var (
	ErrInvalidID = errors.New("media: invalid file id")
	ErrNotFound  = errors.New("media: file not found")
)

var idPattern = regexp.MustCompile(`^[a-f0-9]{15,18}$`)

const (
	suffixDigits = 5
	maxAttempts  = 5
)

// ValidID reports whether id has the shape produced by Save.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Store writes files under dir. Each file is readable exactly once.
type Store struct {
	dir string
	now func() time.Time
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("media: create temp dir: %w", err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

// Save writes data to a new file and returns its id.
func (s *Store) Save(data []byte) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		id, err := s.newID()
		if err != nil {
			return "", err
		}
		f, err := os.OpenFile(s.path(id), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("media: create %s: %w", id, err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(f.Name())
			return "", fmt.Errorf("media: write %s: %w", id, err)
		}
		if err := f.Close(); err != nil {
			os.Remove(f.Name())
			return "", fmt.Errorf("media: close %s: %w", id, err)
		}
		return id, nil
	}
	return "", fmt.Errorf("media: no free file id after %d attempts", maxAttempts)
}

// File is a claimed file. Close releases and deletes it.
type File struct {
	*os.File
	Size int64
}

func (f *File) Close() error {
	err := f.File.Close()
	if rmErr := os.Remove(f.File.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
		err = rmErr
	}
	return err
}

// Claim takes ownership of the file by renaming it, so a second claim for the
// same id gets ErrNotFound even while the first is still streaming.
func (s *Store) Claim(id string) (*File, error) {
	if !ValidID(id) {
		return nil, ErrInvalidID
	}
	claimed := s.path(id) + ".sending"
	if err := os.Rename(s.path(id), claimed); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("media: claim %s: %w", id, err)
	}
	f, err := os.Open(claimed)
	if err != nil {
		os.Remove(claimed)
		return nil, fmt.Errorf("media: open %s: %w", id, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		os.Remove(claimed)
		return nil, fmt.Errorf("media: stat %s: %w", id, err)
	}
	file := &File{File: f, Size: info.Size()}
	if file.Size == 0 {
		file.Close()
		return nil, ErrNotFound
	}
	return file, nil
}

// Discard removes a file that will never be fetched.
func (s *Store) Discard(id string) error {
	if !ValidID(id) {
		return ErrInvalidID
	}
	if err := os.Remove(s.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("media: discard %s: %w", id, err)
	}
	return nil
}

// Exists reports whether id is still waiting to be fetched.
func (s *Store) Exists(id string) bool {
	if !ValidID(id) {
		return false
	}
	_, err := os.Stat(s.path(id))
	return err == nil
}

var _ io.ReadCloser = (*File)(nil)

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id)
}

func (s *Store) newID() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<(4*suffixDigits)))
	if err != nil {
		return "", fmt.Errorf("media: random suffix: %w", err)
	}
	return fmt.Sprintf("%x%05x", s.now().UnixMilli(), n.Int64()), nil
}

// FileURL builds the public URL of a stored file from the service's webhook
// URL: the file route sits next to the webhook path and keeps its query.
func FileURL(webhookURL, id string) (string, error) {
	u, err := url.Parse(webhookURL)
	if err != nil {
		return "", fmt.Errorf("media: parse webhook url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("media: webhook url %q is not absolute", webhookURL)
	}
	base := path.Dir(u.Path)
	if base == "." {
		base = "/"
	}
	out := url.URL{
		Scheme:   u.Scheme,
		Host:     u.Host,
		Path:     path.Join(base, "files", id),
		RawQuery: u.RawQuery,
	}
	return out.String(), nil
}
