package playlist

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"m3uplay/internal/source"
	"m3uplay/sources/local"
	"m3uplay/sources/remote"
)

const sample = `#EXTM3U
#EXTINF:-1 tvg-name="CCTV-1" group-title="News",cctv1
http://example.com/cctv1.m3u8
#EXTINF:-1 group-title="Sports",ESPN
http://example.com/espn.m3u8
#EXTINF:-1,Orphan
#EXTINF:-1 group-title="News",BBC
http://example.com/bbc.m3u8
`

func newLoader() *Loader {
	return NewLoader(zap.NewNop(), remote.New(), local.New())
}

func TestLoadLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tv.m3u")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	p, err := newLoader().Load(context.Background(), "  "+path+"  ")
	require.NoError(t, err)
	assert.Equal(t, "file", p.Source)
	assert.Equal(t, path, p.Location)
	assert.Equal(t, 3, p.Count)
	require.Len(t, p.Channels, 3)
	assert.Equal(t, "CCTV-1", p.Channels[0].Name)
	require.Len(t, p.Dropped, 1)
}

func TestLoadRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sample))
	}))
	defer srv.Close()

	p, err := newLoader().Load(context.Background(), srv.URL+"/tv.m3u")
	require.NoError(t, err)
	assert.Equal(t, "http", p.Source)
	assert.Equal(t, 3, p.Count)
}

func TestLoadInvalidLocation(t *testing.T) {
	for _, loc := range []string{"", "   ", "ftp://example.com/tv.m3u"} {
		_, err := newLoader().Load(context.Background(), loc)
		assert.True(t, errors.Is(err, source.ErrInvalidLocation), "location %q", loc)
	}
}

func TestSearch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tv.m3u")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	p, err := newLoader().Load(context.Background(), path)
	require.NoError(t, err)

	news := p.Search("NEWS")
	require.Len(t, news, 2)
	assert.Equal(t, 0, news[0].Index)
	assert.Equal(t, 2, news[1].Index)
	assert.Equal(t, "BBC", news[1].Channel.Name)

	assert.Len(t, p.Search(""), 3)
	assert.Empty(t, p.Search("weather"))
	assert.Equal(t, []string{"News", "Sports"}, p.Groups())
}
