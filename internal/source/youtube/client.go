package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"catalog_ingest/internal/metrics"
)

const breakerName = "youtube-api"

// Waiter is satisfied by ratelimit.Limiter.
type Waiter interface {
	Wait(ctx context.Context) error
}

// ClientConfig holds transport settings for the YouTube Data API.
type ClientConfig struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// BreakerFailures consecutive failures open the circuit for BreakerTimeout.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	// Retried attempts are charged again at these costs.
	SearchCost int
	DetailCost int
}

// TransportError is an HTTP or network failure talking to the API.
type TransportError struct {
	Endpoint   string
	StatusCode int
	Reason     string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		if e.Reason != "" {
			return fmt.Sprintf("youtube %s: unexpected status %d (%s): %v", e.Endpoint, e.StatusCode, e.Reason, e.Err)
		}
		return fmt.Sprintf("youtube %s: unexpected status %d: %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("youtube %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the same request may succeed.
func (e *TransportError) Temporary() bool {
	return e.StatusCode == 0 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client performs rate-limited, circuit-broken GET requests against the API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	limiter        Waiter
	quota          Reserver
	searchCost     int
	detailCost     int
	breaker        *gobreaker.CircuitBreaker[[]byte]
	logger         *slog.Logger
}

// NewClient builds a client. quota may be nil, in which case retries are
// not charged.
func NewClient(cfg ClientConfig, limiter Waiter, quota Reserver, logger *slog.Logger) *Client {
	logger = logger.With("client", breakerName)

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// 4xx answers mean the API is up; they must not open the circuit.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var te *TransportError
			return errors.As(err, &te) && !te.Temporary()
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"from", from.String(),
				"to", to.String(),
			)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		maxAttempts:    maxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		limiter:        limiter,
		quota:          quota,
		searchCost:     cfg.SearchCost,
		detailCost:     cfg.DetailCost,
		breaker:        breaker,
		logger:         logger,
	}
}

// SearchParams are the search.list parameters used by the ingester.
type SearchParams struct {
	Query      string
	ChannelID  string
	Type       string
	Order      string
	MaxResults int
	PageToken  string
	// Playable restricts results to embeddable, syndicated videos.
	Playable bool
}

func (c *Client) Search(ctx context.Context, p SearchParams) (*SearchResponse, error) {
	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("type", p.Type)
	q.Set("maxResults", strconv.Itoa(p.MaxResults))
	if p.Query != "" {
		q.Set("q", p.Query)
	}
	if p.ChannelID != "" {
		q.Set("channelId", p.ChannelID)
	}
	if p.Order != "" {
		q.Set("order", p.Order)
	}
	if p.PageToken != "" {
		q.Set("pageToken", p.PageToken)
	}
	if p.Playable {
		q.Set("videoEmbeddable", "true")
		q.Set("videoSyndicated", "true")
	}

	var resp SearchResponse
	if err := c.get(ctx, "search", q, c.searchCost, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Videos(ctx context.Context, ids []string) (*VideoListResponse, error) {
	q := url.Values{}
	q.Set("part", "contentDetails,snippet")
	q.Set("id", strings.Join(ids, ","))

	var resp VideoListResponse
	if err := c.get(ctx, "videos", q, len(ids)*c.detailCost, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Channels(ctx context.Context, ids []string) (*ChannelListResponse, error) {
	q := url.Values{}
	q.Set("part", "snippet,brandingSettings")
	q.Set("id", strings.Join(ids, ","))

	var resp ChannelListResponse
	if err := c.get(ctx, "channels", q, len(ids)*c.detailCost, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// get performs the request with retries. The caller has already reserved the
// first attempt; every further attempt reserves units before it is sent.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, units int, out any) error {
	params.Set("key", c.apiKey)
	reqURL := c.baseURL + "/" + endpoint + "?" + params.Encode()

	var body []byte
	var err error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 && c.quota != nil {
			if qerr := c.quota.Reserve(units); qerr != nil {
				c.logger.Warn("no quota left to retry",
					"endpoint", endpoint,
					"attempt", attempt,
					"units", units,
				)
				return fmt.Errorf("retry %s: %w", endpoint, qerr)
			}
		}

		body, err = c.execute(ctx, endpoint, reqURL)
		if err == nil || !retryable(err) || attempt == c.maxAttempts {
			break
		}

		backoff := c.calculateBackoff(attempt)
		c.logger.Warn("request failed, retrying",
			"endpoint", endpoint,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

func (c *Client) execute(ctx context.Context, endpoint, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.doRequest(ctx, endpoint, reqURL)
	})
	metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.APIRequests.WithLabelValues(endpoint, "rejected").Inc()
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	case err != nil:
		metrics.APIRequests.WithLabelValues(endpoint, "failure").Inc()
		return nil, err
	}

	metrics.APIRequests.WithLabelValues(endpoint, "success").Inc()
	return body, nil
}

func (c *Client) doRequest(ctx context.Context, endpoint, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "CatalogIngest/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url.Error carries the request URL, which includes the API key.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newStatusError(endpoint, resp.StatusCode, body)
	}

	return body, nil
}

func newStatusError(endpoint string, status int, body []byte) *TransportError {
	te := &TransportError{Endpoint: endpoint, StatusCode: status, Err: errors.New(http.StatusText(status))}

	var apiErr ErrorResponse
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		te.Err = errors.New(apiErr.Error.Message)
		if len(apiErr.Error.Errors) > 0 {
			te.Reason = apiErr.Error.Errors[0].Reason
		}
	}
	return te
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := c.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if c.maxBackoff > 0 && backoff > c.maxBackoff {
		backoff = c.maxBackoff
	}
	return backoff
}

func retryable(err error) bool {
	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}
	if errors.Is(te.Err, gobreaker.ErrOpenState) || errors.Is(te.Err, gobreaker.ErrTooManyRequests) {
		return false
	}
	return te.Temporary()
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
