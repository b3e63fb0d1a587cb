// Package httputil downloads remote OVAL feeds.
//
// Vendors publish OVAL documents over HTTP, so the CLI accepts http(s)
// URLs wherever it accepts a file. A [Fetcher] downloads them with:
//
//   - [Retry]: exponential backoff for network errors, 429 and 5xx
//   - [Cache]: a file cache of response bodies with a TTL; expired
//     entries are revalidated with If-None-Match / If-Modified-Since
//     so an unchanged feed is not downloaded again
//
// Usage:
//
//	cache, err := httputil.NewCache(dir, time.Hour)
//	f := httputil.NewFetcher(httputil.FetcherOptions{Cache: cache})
//	body, err := f.Fetch(ctx, "https://example.com/rhel-9.oval.xml")
package httputil
