// Package emby is the metadata server client.
package emby

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/zsbai/embytoalist/contrib/log"
	"github.com/zsbai/embytoalist/pkg/xhttp"
)

type Client struct {
	base   string
	apiKey string
	client *http.Client
	log    *log.Helper
}

// NewClient wires the shared process HTTP client against the emby base
// URL. apiKey is the fallback when the request carries no token.
func NewClient(base, apiKey string, client *http.Client) *Client {
	return &Client{
		base:   strings.TrimSuffix(base, "/"),
		apiKey: apiKey,
		client: client,
		log:    log.NewHelper("emby"),
	}
}

// ResolveKey picks the caller token, falling back to the configured one.
func (c *Client) ResolveKey(apiKey string) string {
	if apiKey != "" {
		return apiKey
	}
	return c.apiKey
}

func (c *Client) get(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return xhttp.Upstream("emby", err.Error())
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return xhttp.Upstream("emby", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return xhttp.Upstream("emby", fmt.Sprintf("status %d for %s", resp.StatusCode, req.URL.Path))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return xhttp.Upstream("emby", err.Error())
	}
	if err := json.Unmarshal(body, out); err != nil {
		return xhttp.Upstream("emby", "bad payload: "+err.Error())
	}
	return nil
}

type mediaSource struct {
	Id        string `json:"Id"`
	Path      string `json:"Path"`
	Bitrate   int64  `json:"Bitrate"`
	Size      int64  `json:"Size"`
	Container string `json:"Container"`
	Name      string `json:"Name"`
	IsRemote  bool   `json:"IsRemote"`
}

type playbackInfo struct {
	MediaSources []mediaSource `json:"MediaSources"`
}

func fileInfoOf(src mediaSource) *FileInfo {
	return &FileInfo{
		Path:      src.Path,
		Size:      src.Size,
		Bitrate:   src.Bitrate,
		Container: src.Container,
		Name:      src.Name,
		IsRemote:  src.IsRemote,
	}
}

// PlaybackInfo returns the media source matching mediaSourceID.
func (c *Client) PlaybackInfo(ctx context.Context, itemID, mediaSourceID, apiKey string) (*FileInfo, error) {
	api := fmt.Sprintf("%s/emby/Items/%s/PlaybackInfo?MediaSourceId=%s&api_key=%s",
		c.base, url.PathEscape(itemID), url.QueryEscape(mediaSourceID), url.QueryEscape(c.ResolveKey(apiKey)))

	var info playbackInfo
	if err := c.get(ctx, api, &info); err != nil {
		return nil, err
	}

	for _, src := range info.MediaSources {
		if src.Id == mediaSourceID {
			return fileInfoOf(src), nil
		}
	}
	return nil, xhttp.Upstream("emby", "can't match MediaSourceId "+mediaSourceID)
}

// PlaybackSources returns every media source of an item; used by the
// next-episode warmup where no MediaSourceId is known yet.
func (c *Client) PlaybackSources(ctx context.Context, itemID, apiKey string) ([]*FileInfo, error) {
	api := fmt.Sprintf("%s/emby/Items/%s/PlaybackInfo?api_key=%s",
		c.base, url.PathEscape(itemID), url.QueryEscape(c.ResolveKey(apiKey)))

	var info playbackInfo
	if err := c.get(ctx, api, &info); err != nil {
		return nil, err
	}

	files := make([]*FileInfo, 0, len(info.MediaSources))
	for _, src := range info.MediaSources {
		files = append(files, fileInfoOf(src))
	}
	return files, nil
}

type itemPayload struct {
	Id          string `json:"Id"`
	Type        string `json:"Type"`
	SeriesId    string `json:"SeriesId"`
	SeasonId    string `json:"SeasonId"`
	IndexNumber int    `json:"IndexNumber"`
}

type itemsEnvelope struct {
	Items []itemPayload `json:"Items"`
}

func itemInfoOf(p itemPayload) *ItemInfo {
	kind := strings.ToLower(p.Type)
	if kind != KindMovie {
		kind = KindEpisode
	}
	info := &ItemInfo{
		ItemID:      p.Id,
		Kind:        kind,
		IndexNumber: p.IndexNumber,
	}
	if kind == KindEpisode {
		info.SeriesID = p.SeriesId
		info.SeasonID = p.SeasonId
	}
	return info
}

// Item looks up one library item. A missing item returns (nil, nil);
// playback does not depend on it.
func (c *Client) Item(ctx context.Context, itemID, apiKey string) (*ItemInfo, error) {
	api := fmt.Sprintf("%s/emby/Items?api_key=%s&Ids=%s",
		c.base, url.QueryEscape(c.ResolveKey(apiKey)), url.QueryEscape(itemID))

	var envelope itemsEnvelope
	if err := c.get(ctx, api, &envelope); err != nil {
		return nil, err
	}
	if len(envelope.Items) == 0 {
		c.log.Debugf("item not found: %s", itemID)
		return nil, nil
	}
	info := itemInfoOf(envelope.Items[0])
	info.ItemID = itemID
	return info, nil
}

// Episodes lists a season's episodes in order.
func (c *Client) Episodes(ctx context.Context, seriesID, seasonID, apiKey string) ([]*ItemInfo, error) {
	api := fmt.Sprintf("%s/emby/Shows/%s/Episodes?SeasonId=%s&api_key=%s",
		c.base, url.PathEscape(seriesID), url.QueryEscape(seasonID), url.QueryEscape(c.ResolveKey(apiKey)))

	var envelope itemsEnvelope
	if err := c.get(ctx, api, &envelope); err != nil {
		return nil, err
	}

	episodes := make([]*ItemInfo, 0, len(envelope.Items))
	for _, item := range envelope.Items {
		info := itemInfoOf(item)
		info.Kind = KindEpisode
		info.SeriesID = seriesID
		info.SeasonID = seasonID
		episodes = append(episodes, info)
	}
	return episodes, nil
}
