package emby

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const playbackPayload = `{
	"MediaSources": [
		{"Id": "src-1", "Path": "/mnt/Movies/A (2020)/A.mkv", "Bitrate": 8000000,
		 "Size": 1000000000, "Container": "mkv", "Name": "A (2020)", "IsRemote": false},
		{"Id": "src-2", "Path": "/mnt/Movies/A (2020)/A.strm", "Size": 100,
		 "Container": "strm", "Name": "A (2020) strm", "IsRemote": true}
	]
}`

func newEmbyStub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/emby/Items/42/PlaybackInfo", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.URL.Query().Get("api_key"))
		_, _ = w.Write([]byte(playbackPayload))
	})
	mux.HandleFunc("/emby/Items", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("Ids") {
		case "42":
			_, _ = w.Write([]byte(`{"Items":[{"Id":"42","Type":"Episode","SeriesId":"7","SeasonId":"9","IndexNumber":3}]}`))
		case "100":
			_, _ = w.Write([]byte(`{"Items":[{"Id":"100","Type":"Movie"}]}`))
		default:
			_, _ = w.Write([]byte(`{"Items":[]}`))
		}
	})
	mux.HandleFunc("/emby/Shows/7/Episodes", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "9", r.URL.Query().Get("SeasonId"))
		_, _ = w.Write([]byte(`{"Items":[
			{"Id":"42","IndexNumber":3},
			{"Id":"43","IndexNumber":4}
		]}`))
	})
	return httptest.NewServer(mux)
}

func TestPlaybackInfo(t *testing.T) {
	server := newEmbyStub(t)
	defer server.Close()

	c := NewClient(server.URL, "key", server.Client())

	fi, err := c.PlaybackInfo(context.Background(), "42", "src-1", "")
	require.NoError(t, err)
	assert.Equal(t, "/mnt/Movies/A (2020)/A.mkv", fi.Path)
	assert.Equal(t, int64(1000000000), fi.Size)
	assert.Equal(t, int64(8000000), fi.Bitrate)
	assert.Equal(t, "mkv", fi.Container)
	assert.Equal(t, int64(15000000), fi.HeadLen())
	assert.False(t, fi.Indirection())

	_, err = c.PlaybackInfo(context.Background(), "42", "nope", "")
	assert.Error(t, err)
}

func TestPlaybackSources(t *testing.T) {
	server := newEmbyStub(t)
	defer server.Close()

	c := NewClient(server.URL, "key", server.Client())

	files, err := c.PlaybackSources(context.Background(), "42", "")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.True(t, files[1].Indirection())
	assert.True(t, files[1].IsRemote)
}

func TestItem(t *testing.T) {
	server := newEmbyStub(t)
	defer server.Close()

	c := NewClient(server.URL, "key", server.Client())

	episode, err := c.Item(context.Background(), "42", "")
	require.NoError(t, err)
	assert.Equal(t, KindEpisode, episode.Kind)
	assert.Equal(t, "7", episode.SeriesID)
	assert.Equal(t, "9", episode.SeasonID)
	assert.Equal(t, 3, episode.IndexNumber)

	movie, err := c.Item(context.Background(), "100", "")
	require.NoError(t, err)
	assert.Equal(t, KindMovie, movie.Kind)
	assert.Empty(t, movie.SeriesID)

	missing, err := c.Item(context.Background(), "404", "")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestEpisodes(t *testing.T) {
	server := newEmbyStub(t)
	defer server.Close()

	c := NewClient(server.URL, "key", server.Client())

	episodes, err := c.Episodes(context.Background(), "7", "9", "")
	require.NoError(t, err)
	require.Len(t, episodes, 2)
	assert.Equal(t, "43", episodes[1].ItemID)
	assert.Equal(t, 4, episodes[1].IndexNumber)
}

func TestResolveKeyFallback(t *testing.T) {
	c := NewClient("http://emby.invalid", "configured", nil)
	assert.Equal(t, "caller", c.ResolveKey("caller"))
	assert.Equal(t, "configured", c.ResolveKey(""))
}
