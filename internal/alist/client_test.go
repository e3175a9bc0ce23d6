package alist

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/zsbai/embytoalist/pkg/xhttp"
)

func TestRawURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/fs/get", r.URL.Path)
		require.Equal(t, "secret-token", r.Header.Get("Authorization"))
		require.Equal(t, "player/1.0", r.Header.Get("User-Agent"))

		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "/media/a.mkv", gjson.GetBytes(body, "path").String())
		assert.Equal(t, "", gjson.GetBytes(body, "password").String())

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":200,"message":"success","data":{"raw_url":"https://cdn.example.com/signed"}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "secret-token", server.Client())

	url, err := c.RawURL(context.Background(), "/media/a.mkv", "player/1.0")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/signed", url)
}

func TestRawURLAuthDenied(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":403,"message":"forbidden"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "bad-token", server.Client())

	_, err := c.RawURL(context.Background(), "/media/a.mkv", "")
	var e *xhttp.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, xhttp.KindAuthDenied, e.Kind)
}

func TestRawURLUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":500,"message":"object not found"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "token", server.Client())

	_, err := c.RawURL(context.Background(), "/media/missing.mkv", "")
	var e *xhttp.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, xhttp.KindUpstream, e.Kind)
	assert.Contains(t, e.Message, "object not found")
}

func TestRawURLHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := NewClient(server.URL, "token", server.Client())

	_, err := c.RawURL(context.Background(), "/media/a.mkv", "")
	var e *xhttp.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, xhttp.KindUpstream, e.Kind)
}
