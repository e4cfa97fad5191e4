// Package discovery is the HTTP client for the document search backend.
//
// The backend answers GET <endpoint><path>?query=<q>&count=<n> with a JSON
// object whose "passages" field holds the matching passages. Failures are
// returned as *errors.ChatError so callers can tell quota exhaustion (429)
// apart from everything else.
package discovery

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Aman-CERP/docchat/internal/config"
	dcerrors "github.com/Aman-CERP/docchat/internal/errors"
	"github.com/Aman-CERP/docchat/internal/session"
	"github.com/Aman-CERP/docchat/pkg/version"
)

const (
	// DefaultPoolSize is the number of idle connections kept per host.
	DefaultPoolSize = 4

	// maxBodyBytes caps how much of a response body is decoded.
	maxBodyBytes = 8 << 20

	// maxErrorSnippet caps the body excerpt attached to status errors.
	maxErrorSnippet = 256
)

// Config configures a Client.
type Config struct {
	Endpoint    string
	Path        string
	ResultCount int
	Timeout     time.Duration // zero means the caller's context alone governs
	PoolSize    int
	UserAgent   string
}

// ConfigFrom builds a client Config from the application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Endpoint:    cfg.Search.Endpoint,
		Path:        cfg.Search.Path,
		ResultCount: cfg.Search.ResultCount,
		Timeout:     cfg.RequestTimeout(),
	}
}

// Client performs search requests. Safe for concurrent use.
type Client struct {
	client    *http.Client
	transport *http.Transport
	base      string
	cfg       Config
}

var _ session.Searcher = (*Client)(nil)

// NewClient validates cfg and creates a Client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Path == "" {
		cfg.Path = config.DefaultSearchPath
	}
	if cfg.ResultCount <= 0 {
		cfg.ResultCount = config.DefaultResultCount
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = DefaultPoolSize
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = version.UserAgent()
	}

	u, err := url.Parse(cfg.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, dcerrors.New(dcerrors.ErrCodeInvalidEndpoint,
			fmt.Sprintf("invalid search endpoint %q", cfg.Endpoint), err).
			WithSuggestion("Use a full URL such as http://localhost:3000")
	}

	// No http.Client.Timeout: the per-request context carries the deadline.
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.PoolSize,
		MaxIdleConnsPerHost: cfg.PoolSize,
		IdleConnTimeout:     30 * time.Second,
	}

	return &Client{
		client:    &http.Client{Transport: transport},
		transport: transport,
		base:      strings.TrimRight(cfg.Endpoint, "/"),
		cfg:       cfg,
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.transport.CloseIdleConnections()
}

// SearchURL returns the request URL for query. Spaces are encoded as %20
// and the parameters keep the order query, count.
func (c *Client) SearchURL(query string) string {
	escaped := strings.ReplaceAll(url.QueryEscape(query), "+", "%20")
	return c.base + c.cfg.Path + "?query=" + escaped + "&count=" + strconv.Itoa(c.cfg.ResultCount)
}

// Search sends query to the backend and returns the formatted passages.
func (c *Client) Search(ctx context.Context, query string) ([]session.Passage, error) {
	if query == "" {
		return nil, dcerrors.New(dcerrors.ErrCodeQueryEmpty, "query is empty", nil)
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	target := c.SearchURL(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, dcerrors.InternalError("failed to create search request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	slog.Debug("search_request", slog.String("url", target))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, dcerrors.New(dcerrors.ErrCodeRateLimited, "search quota exceeded", nil).
			WithDetail("status", strconv.Itoa(resp.StatusCode)).
			WithSuggestion("The free query allowance is used up; try again next month")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorSnippet))
		return nil, dcerrors.New(dcerrors.ErrCodeUpstreamStatus,
			fmt.Sprintf("search backend returned status %d", resp.StatusCode), nil).
			WithDetail("status", strconv.Itoa(resp.StatusCode)).
			WithDetail("body", strings.TrimSpace(string(snippet)))
	}

	var body struct {
		Passages json.RawMessage `json:"passages"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return nil, dcerrors.New(dcerrors.ErrCodeMalformedResponse, "failed to decode search response", err)
	}

	formatted, err := FormatPassages(body.Passages)
	if err != nil {
		return nil, dcerrors.New(dcerrors.ErrCodeMalformedResponse, "unexpected passages payload", err)
	}
	return formatted.Results, nil
}

func transportError(err error) error {
	switch {
	case stderrors.Is(err, context.Canceled):
		return dcerrors.New(dcerrors.ErrCodeRequestCanceled, "search canceled", err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return dcerrors.New(dcerrors.ErrCodeNetworkTimeout, "search timed out", err).
			WithSuggestion("Raise search.timeout or check the backend")
	default:
		return dcerrors.NetworkError("search backend unreachable", err).
			WithSuggestion("Check search.endpoint and that the backend is running")
	}
}
