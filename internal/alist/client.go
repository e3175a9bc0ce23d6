// Package alist is the link server client.
package alist

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/zsbai/embytoalist/contrib/log"
	"github.com/zsbai/embytoalist/pkg/xhttp"
)

type Client struct {
	base   string
	apiKey string
	client *http.Client
	log    *log.Helper
}

func NewClient(base, apiKey string, client *http.Client) *Client {
	return &Client{
		base:   strings.TrimSuffix(base, "/"),
		apiKey: apiKey,
		client: client,
		log:    log.NewHelper("alist"),
	}
}

type fsGetRequest struct {
	Path     string `json:"path"`
	Password string `json:"password"`
}

// RawURL asks the link server for a signed direct URL for path. The
// caller's user agent rides along so UA-bound storage links stay valid.
func (c *Client) RawURL(ctx context.Context, path, userAgent string) (string, error) {
	payload, err := json.Marshal(fsGetRequest{Path: path})
	if err != nil {
		return "", xhttp.Upstream("alist", err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/fs/get", bytes.NewReader(payload))
	if err != nil {
		return "", xhttp.Upstream("alist", err.Error())
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() || errors.Is(err, context.DeadlineExceeded) {
			return "", xhttp.Timeout("alist server timeout")
		}
		return "", xhttp.Upstream("alist", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", xhttp.Upstream("alist", "status "+resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", xhttp.Upstream("alist", err.Error())
	}

	switch code := gjson.GetBytes(body, "code").Int(); code {
	case http.StatusOK:
		rawURL := gjson.GetBytes(body, "data.raw_url").String()
		if rawURL == "" {
			return "", xhttp.Upstream("alist", "empty raw_url for "+path)
		}
		return rawURL, nil
	case http.StatusForbidden:
		c.log.Errorf("alist responded 403 Forbidden, check the configured key")
		return "", xhttp.AuthDenied("alist rejected the configured key")
	default:
		return "", xhttp.Upstream("alist", gjson.GetBytes(body, "message").String())
	}
}
