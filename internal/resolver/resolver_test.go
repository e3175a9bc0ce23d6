package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsbai/embytoalist/internal/alist"
	"github.com/zsbai/embytoalist/pkg/xhttp"
)

func newAlistStub(t *testing.T, hits *atomic.Int64, rawURL string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/fs/get", r.URL.Path)
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":200,"message":"success","data":{"raw_url":"` + rawURL + `"}}`))
	}))
}

func newResolver(serverURL string) *Resolver {
	client := &http.Client{}
	return New(alist.NewClient(serverURL, "token", client), client, 600*time.Second)
}

func TestResolveCachesByTTL(t *testing.T) {
	var hits atomic.Int64
	server := newAlistStub(t, &hits, "https://signed.example.com/a.mkv")
	defer server.Close()

	r := newResolver(server.URL)
	ctx := context.Background()

	url, err := r.Resolve(ctx, "/media/a.mkv", "player/1.0", false)
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example.com/a.mkv", url)
	assert.EqualValues(t, 1, hits.Load())

	// second hit is served from the TTL cache
	url, err = r.Resolve(ctx, "/media/a.mkv", "player/1.0", false)
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example.com/a.mkv", url)
	assert.EqualValues(t, 1, hits.Load())

	// a different user agent is a different key
	_, err = r.Resolve(ctx, "/media/a.mkv", "other/2.0", false)
	require.NoError(t, err)
	assert.EqualValues(t, 2, hits.Load())
}

func TestResolveSingleFlight(t *testing.T) {
	var hits atomic.Int64
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write([]byte(`{"code":200,"data":{"raw_url":"https://signed.example.com/a.mkv"}}`))
	}))
	defer server.Close()

	r := newResolver(server.URL)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			url, err := r.Resolve(context.Background(), "/media/a.mkv", "player/1.0", false)
			assert.NoError(t, err)
			assert.Equal(t, "https://signed.example.com/a.mkv", url)
		}()
	}

	// let every caller pile onto the pending task before it completes
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, hits.Load(), "concurrent callers must share one fetch")
}

func TestPrefetchPopulatesCacheWhenAbandoned(t *testing.T) {
	var hits atomic.Int64
	server := newAlistStub(t, &hits, "https://signed.example.com/a.mkv")
	defer server.Close()

	r := newResolver(server.URL)

	// speculative start, result never awaited
	r.Prefetch("/media/a.mkv", "player/1.0", false)
	require.NoError(t, r.Drain(context.Background()))

	// the next caller reads the cache without a second fetch
	url, err := r.Resolve(context.Background(), "/media/a.mkv", "player/1.0", false)
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example.com/a.mkv", url)
	assert.EqualValues(t, 1, hits.Load())
}

func TestIndirectionRedirect(t *testing.T) {
	target := "https://cdn.example.com/signed/a.mkv"
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "player/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Location", target)
		w.WriteHeader(http.StatusFound)
	}))
	defer origin.Close()

	r := newResolver("http://unused.invalid")

	url, err := r.Resolve(context.Background(), origin.URL+"/a.strm", "player/1.0", true)
	require.NoError(t, err)
	assert.Equal(t, target, url)
}

func TestIndirectionPlain200ReusesURL(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer origin.Close()

	r := newResolver("http://unused.invalid")

	url, err := r.Resolve(context.Background(), origin.URL+"/a.strm", "", true)
	require.NoError(t, err)
	assert.Equal(t, origin.URL+"/a.strm", url)
}

func TestIndirectionNonURLPathRejected(t *testing.T) {
	r := newResolver("http://unused.invalid")

	_, err := r.Resolve(context.Background(), "/mnt/files/a.strm", "", true)
	require.Error(t, err)

	var e *xhttp.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, xhttp.KindUpstream, e.Kind)
}
