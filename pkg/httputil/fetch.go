package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/ovalmerge/pkg/buildinfo"
	"github.com/matzehuels/ovalmerge/pkg/errors"
	"github.com/matzehuels/ovalmerge/pkg/observability"
)

// Defaults for FetcherOptions.
const (
	DefaultTimeout  = 5 * time.Minute
	DefaultAttempts = 3
	DefaultDelay    = time.Second
	DefaultMaxBytes = 1 << 30
)

// IsURL reports whether s names a remote feed rather than a local file.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// FetcherOptions configures a Fetcher. Zero values select the defaults.
type FetcherOptions struct {
	Client   *http.Client
	Cache    *Cache // nil disables caching
	Logger   *log.Logger
	Attempts int
	Delay    time.Duration
	MaxBytes int64
}

// Fetcher downloads feeds over HTTP.
type Fetcher struct {
	client   *http.Client
	cache    *Cache
	logger   *log.Logger
	attempts int
	delay    time.Duration
	maxBytes int64
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts FetcherOptions) *Fetcher {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: DefaultTimeout}
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	f := &Fetcher{
		client:   opts.Client,
		logger:   opts.Logger,
		attempts: opts.Attempts,
		delay:    opts.Delay,
		maxBytes: opts.MaxBytes,
	}
	if opts.Cache != nil {
		f.cache = opts.Cache.Namespace("feed:")
	}
	return f
}

// cachedFeed is a stored response body with its validators.
type cachedFeed struct {
	Body         string `json:"body"`
	ETag         string `json:"etag,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
}

// Fetch returns the body at url. A 404 yields FILE_NOT_FOUND; any other
// failure, after retries, FETCH_ERROR.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var stale *cachedFeed
	if f.cache != nil {
		var entry cachedFeed
		ok, err := f.cache.Get(url, &entry)
		switch {
		case ok:
			observability.Cache().OnCacheHit(ctx, "feed")
			f.logger.Debug("feed cache hit", "url", url)
			return []byte(entry.Body), nil
		case err == ErrExpired:
			stale = &entry
		case err != nil:
			f.logger.Warn("feed cache read failed", "url", url, "err", err)
		}
		observability.Cache().OnCacheMiss(ctx, "feed")
	}

	var (
		body    []byte
		current cachedFeed
	)
	err := Retry(ctx, f.attempts, f.delay, func() error {
		var err error
		body, current, err = f.get(ctx, url, stale)
		return err
	})
	if err != nil {
		if errors.GetCode(err) != "" || ctx.Err() != nil {
			return nil, err
		}
		return nil, errors.Wrap(errors.ErrCodeFetch, err, "fetch %s", url)
	}

	if body == nil && stale != nil {
		f.logger.Debug("feed not modified", "url", url)
		if f.cache != nil {
			_ = f.cache.Touch(url)
		}
		return []byte(stale.Body), nil
	}

	if f.cache != nil {
		if err := f.cache.Set(url, current); err != nil {
			f.logger.Warn("feed cache write failed", "url", url, "err", err)
		} else {
			observability.Cache().OnCacheSet(ctx, "feed", len(body))
		}
	}
	return body, nil
}

// get performs one request. A nil body with a nil error means 304.
func (f *Fetcher) get(ctx context.Context, url string, stale *cachedFeed) ([]byte, cachedFeed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, cachedFeed{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid url %q", url)
	}
	req.Header.Set("User-Agent", "ovalmerge/"+buildinfo.Version)
	req.Header.Set("Accept", "application/xml, text/xml;q=0.9, */*;q=0.1")
	if stale != nil {
		if stale.ETag != "" {
			req.Header.Set("If-None-Match", stale.ETag)
		}
		if stale.LastModified != "" {
			req.Header.Set("If-Modified-Since", stale.LastModified)
		}
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cachedFeed{}, ctx.Err()
		}
		return nil, cachedFeed{}, &RetryableError{Err: err}
	}
	defer resp.Body.Close()
	f.logger.Debug("fetched feed", "url", url, "status", resp.StatusCode, "duration", time.Since(start))

	switch {
	case resp.StatusCode == http.StatusNotModified && stale != nil:
		return nil, cachedFeed{}, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, cachedFeed{}, errors.New(errors.ErrCodeFileNotFound, "%s: 404 not found", url)
	case retryableStatus(resp.StatusCode):
		return nil, cachedFeed{}, &RetryableError{Err: fmt.Errorf("%s: %s", url, resp.Status)}
	case resp.StatusCode != http.StatusOK:
		return nil, cachedFeed{}, errors.New(errors.ErrCodeFetch, "%s: %s", url, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, cachedFeed{}, &RetryableError{Err: err}
	}
	if int64(len(body)) > f.maxBytes {
		return nil, cachedFeed{}, errors.New(errors.ErrCodeFetch, "%s: body exceeds %d bytes", url, f.maxBytes)
	}
	return body, cachedFeed{
		Body:         string(body),
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}, nil
}
