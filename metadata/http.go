package metadata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iobis/dupfinder/codec"
	"golang.org/x/time/rate"
)

// DefaultAPIBase is the public OBIS API.
const DefaultAPIBase = "https://api.obis.org/v3"

// HTTPOption configures an HTTPLookup.
type HTTPOption func(*HTTPLookup)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(l *HTTPLookup) {
		l.client = c
	}
}

// WithRateLimit limits requests per second, with the given burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) HTTPOption {
	return func(l *HTTPLookup) {
		if rps <= 0 {
			l.limiter = nil
			return
		}
		l.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// WithCodec sets the response codec.
func WithCodec(c codec.Codec) HTTPOption {
	return func(l *HTTPLookup) {
		l.codec = c
	}
}

// HTTPLookup fetches GET {base}/dataset/{id}. A 404 or an empty result list
// means not found.
type HTTPLookup struct {
	base    string
	client  *http.Client
	limiter *rate.Limiter
	codec   codec.Codec
}

// NewHTTPLookup creates a lookup against base. The default rate is 5 requests
// per second.
func NewHTTPLookup(base string, opts ...HTTPOption) *HTTPLookup {
	if base == "" {
		base = DefaultAPIBase
	}
	l := &HTTPLookup{
		base:    strings.TrimRight(base, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(5, 1),
		codec:   codec.Default,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lookup implements Lookup.
func (l *HTTPLookup) Lookup(ctx context.Context, id string) (Dataset, bool, error) {
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return Dataset{}, false, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.base+"/dataset/"+url.PathEscape(id), nil)
	if err != nil {
		return Dataset{}, false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return Dataset{}, false, fmt.Errorf("metadata: fetch %s: %w", id, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return Dataset{}, false, nil
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Dataset{}, false, fmt.Errorf("metadata: fetch %s: %s: %s", id, resp.Status, strings.TrimSpace(string(msg)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return Dataset{}, false, fmt.Errorf("metadata: read %s: %w", id, err)
	}

	var page apiPage
	if err := l.codec.Unmarshal(body, &page); err != nil {
		return Dataset{}, false, fmt.Errorf("metadata: decode %s: %w", id, err)
	}
	if len(page.Results) > 0 {
		return page.Results[0], true, nil
	}

	// Some deployments return the bare object.
	var d Dataset
	if err := l.codec.Unmarshal(body, &d); err == nil && d.ID != "" {
		return d, true, nil
	}
	return Dataset{}, false, nil
}
