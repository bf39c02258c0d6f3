package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"m3uplay/internal/source"
)

func TestFetch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.m3u")
	require.NoError(t, os.WriteFile(path, []byte("#EXTM3U\n#EXTINF:-1,Caf\xe9\nhttp://a\n"), 0o644))

	text, err := New().Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "#EXTM3U\n#EXTINF:-1,Caf\nhttp://a\n", text)
}

func TestFetchMissingFile(t *testing.T) {
	_, err := New().Fetch(context.Background(), filepath.Join(t.TempDir(), "missing.m3u"))
	require.Error(t, err)
	assert.ErrorIs(t, err, source.ErrFile)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestAccepts(t *testing.T) {
	f := New()
	assert.True(t, f.Accepts("/tmp/list.m3u"))
	assert.True(t, f.Accepts("relative/list.m3u8"))
	assert.False(t, f.Accepts(""))
	assert.False(t, f.Accepts("http://example.com/list.m3u"))
}
