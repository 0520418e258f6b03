package media

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveProducesValidIDs(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id, err := s.Save([]byte("x"))
		require.NoError(t, err)
		assert.Len(t, id, 16)
		assert.True(t, ValidID(id), id)
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestSaveRetriesOnCollision(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	fixed := time.UnixMilli(1700000000000)
	s.now = func() time.Time { return fixed }

	a, err := s.Save([]byte("a"))
	require.NoError(t, err)
	b, err := s.Save([]byte("b"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestClaimStreamsOnceThenDeletes(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	id, err := s.Save([]byte("audio-bytes"))
	require.NoError(t, err)
	require.True(t, s.Exists(id))

	f, err := s.Claim(id)
	require.NoError(t, err)
	assert.Equal(t, int64(len("audio-bytes")), f.Size)

	// A concurrent claim loses while the first is still open.
	_, err = s.Claim(id)
	assert.ErrorIs(t, err, ErrNotFound)

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "audio-bytes", string(data))
	require.NoError(t, f.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = s.Claim(id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClaimRejectsMalformedIDs(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	for _, id := range []string{"", "abc", "../../etc/passwd", "ABCDEF0123456789", "0123456789abcdef0123"} {
		_, err := s.Claim(id)
		assert.ErrorIs(t, err, ErrInvalidID, id)
	}
}

func TestClaimIgnoresFilesOutsideStore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "media"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "18bcfe56800abcde"), []byte("x"), 0o600))

	_, err = s.Claim("18bcfe56800abcde")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileURL(t *testing.T) {
	tests := []struct {
		webhook, want string
	}{
		{"https://bot.example.com/webhook", "https://bot.example.com/files/abc"},
		{"https://bot.example.com/api/webhook?token=1", "https://bot.example.com/api/files/abc?token=1"},
		{"http://localhost:8080", "http://localhost:8080/files/abc"},
	}
	for _, tt := range tests {
		got, err := FileURL(tt.webhook, "abc")
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := FileURL("/relative/webhook", "abc")
	assert.Error(t, err)
}

func TestDiscard(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	id, err := s.Save([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, s.Discard(id))
	assert.False(t, s.Exists(id))
	assert.NoError(t, s.Discard(id))
	assert.ErrorIs(t, s.Discard("nope"), ErrInvalidID)
}

func TestClaimEmptyFileIsNotFound(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	id, err := s.Save(nil)
	require.NoError(t, err)

	_, err = s.Claim(id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, s.Exists(id))
}
