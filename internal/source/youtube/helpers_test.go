package youtube

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"catalog_ingest/internal/domain"
)

// fakeAPI serves canned YouTube Data API responses.
type fakeAPI struct {
	mu       sync.Mutex
	requests map[string][]url.Values

	search   func(q url.Values) (int, any)
	videos   func(q url.Values) (int, any)
	channels func(q url.Values) (int, any)
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	endpoint := strings.TrimPrefix(r.URL.Path, "/")
	q := r.URL.Query()

	f.mu.Lock()
	if f.requests == nil {
		f.requests = make(map[string][]url.Values)
	}
	f.requests[endpoint] = append(f.requests[endpoint], q)
	f.mu.Unlock()

	var handler func(url.Values) (int, any)
	switch endpoint {
	case "search":
		handler = f.search
	case "videos":
		handler = f.videos
	case "channels":
		handler = f.channels
	}
	if handler == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	status, body := handler(q)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (f *fakeAPI) calls(endpoint string) []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[endpoint]
}

type countingWaiter struct {
	mu    sync.Mutex
	waits int
}

func (c *countingWaiter) Wait(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waits++
	return nil
}

func (c *countingWaiter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waits
}

type recordingReserver struct {
	reserved []int
	err      error
}

func (r *recordingReserver) Reserve(units int) error {
	if r.err != nil {
		return r.err
	}
	r.reserved = append(r.reserved, units)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, api *fakeAPI, cfg ClientConfig) (*Client, *countingWaiter) {
	t.Helper()
	return newChargedClient(t, api, cfg, nil)
}

// newChargedClient is newTestClient with retries charged to quota.
func newChargedClient(t *testing.T, api *fakeAPI, cfg ClientConfig, quota Reserver) (*Client, *countingWaiter) {
	t.Helper()

	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	cfg.BaseURL = srv.URL
	if cfg.APIKey == "" {
		cfg.APIKey = "test-key"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}

	waiter := &countingWaiter{}
	return NewClient(cfg, waiter, quota, discardLogger()), waiter
}

func searchPage(next string, total int, ids ...string) SearchResponse {
	resp := SearchResponse{NextPageToken: next, PageInfo: PageInfo{TotalResults: total, ResultsPerPage: len(ids)}}
	for _, id := range ids {
		resp.Items = append(resp.Items, SearchResult{ID: ResourceID{Kind: "youtube#video", VideoID: id}})
	}
	return resp
}

// videoList answers videos.list for the requested ids using per-id durations;
// ids missing from durations get a 20 minute default.
func videoList(durations map[string]string) func(url.Values) (int, any) {
	return func(q url.Values) (int, any) {
		var resp VideoListResponse
		for _, id := range strings.Split(q.Get("id"), ",") {
			d, ok := durations[id]
			if !ok {
				d = "PT20M"
			}
			resp.Items = append(resp.Items, VideoResource{
				ID: id,
				Snippet: Snippet{
					Title:       "title " + id,
					Description: "description " + id,
					PublishedAt: "2024-01-02T15:04:05Z",
				},
				ContentDetails: ContentDetails{Duration: d},
			})
		}
		return http.StatusOK, resp
	}
}

func externalIDs(videos []domain.Video) []string {
	ids := make([]string, 0, len(videos))
	for _, v := range videos {
		ids = append(ids, v.ExternalID)
	}
	return ids
}
