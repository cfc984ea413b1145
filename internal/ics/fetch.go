package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	appLog "eschedule/internal/log"
)

// Source represents a single ICS feed, either remote (URL) or local (Path).
type Source struct {
	// ID is an internal identifier (e.g., config ICS ID).
	ID string
	// Name is shown as the organization of the feed's events.
	Name string
	// URL is the ICS endpoint.
	URL string
	// Path is a local .ics file, used when URL is empty.
	Path string
	// Color is the CSS color token for the feed's events.
	Color string
}

func (s Source) redacted() string {
	if s.URL == "" {
		return "file://" + filepath.Base(s.Path)
	}
	return redactURL(s.URL)
}

// FetchResult contains the outcome of fetching a single ICS source.
type FetchResult struct {
	Source    Source
	Body      []byte // ICS payload (either freshly fetched or from cache)
	FromCache bool   // true if we reused cached body due to 304 or a fetch error
}

// maxFeedBytes caps the size of a downloaded feed.
const maxFeedBytes = 8 << 20

// Fetcher loads ICS feeds. Remote feeds are revalidated with ETag and
// Last-Modified, and the last good body is kept on disk for offline use.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// NewFetcher creates a Fetcher keeping its cache under cacheDir/ics.
func NewFetcher(cacheDir string) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./cache"
	}
	return &Fetcher{
		client:   &http.Client{Timeout: 15 * time.Second},
		cacheDir: filepath.Join(cacheDir, "ics"),
	}
}

// FetchAll fetches every source in order. The result slice only holds sources
// that produced a body; the others are reported in the error slice.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) ([]FetchResult, []error) {
	results := make([]FetchResult, 0, len(sources))
	var errs []error
	for _, src := range sources {
		res, err := f.FetchOne(ctx, src)
		if err != nil {
			appLog.Error("ics fetch failed", err, "id", src.ID, "source", src.redacted())
			errs = append(errs, fmt.Errorf("source %s: %w", src.ID, err))
			continue
		}
		results = append(results, res)
	}
	return results, errs
}

// FetchOne loads a single source. Local files are read as is.
func (f *Fetcher) FetchOne(ctx context.Context, src Source) (FetchResult, error) {
	switch {
	case src.URL != "":
		return f.fetchRemote(ctx, src)
	case src.Path != "":
		body, err := os.ReadFile(src.Path)
		if err != nil {
			return FetchResult{}, err
		}
		return FetchResult{Source: src, Body: body}, nil
	default:
		return FetchResult{}, errors.New("source has neither url nor path")
	}
}

func (f *Fetcher) fetchRemote(ctx context.Context, src Source) (FetchResult, error) {
	cache := f.cacheFor(src.URL)
	meta, cached := cache.load()

	// stale serves the cached body in place of a failed download.
	stale := func(cause error) (FetchResult, error) {
		if len(cached) == 0 {
			return FetchResult{}, cause
		}
		appLog.Error("ics fetch failed, serving cached body", cause, "id", src.ID, "cached_at", meta.UpdatedAt)
		return FetchResult{Source: src, Body: cached, FromCache: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	req.Header.Set("Accept", "text/calendar")
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return stale(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		if len(cached) == 0 {
			return FetchResult{}, errors.New("304 Not Modified without a cached body")
		}
		appLog.Debug("ics feed not modified", "id", src.ID, "source", src.redacted())
		return FetchResult{Source: src, Body: cached, FromCache: true}, nil
	case http.StatusOK:
	default:
		return stale(fmt.Errorf("unexpected status %s", resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes+1))
	if err != nil {
		return stale(err)
	}
	if len(body) > maxFeedBytes {
		return stale(fmt.Errorf("feed larger than %d bytes", maxFeedBytes))
	}

	next := feedMeta{
		URL:          src.URL,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		UpdatedAt:    time.Now().UTC(),
	}
	if err := cache.store(next, body); err != nil {
		appLog.Error("ics cache write failed", err, "id", src.ID)
	}
	appLog.Info("ics feed downloaded", "id", src.ID, "source", src.redacted(), "bytes", len(body))
	return FetchResult{Source: src, Body: body}, nil
}

// feedMeta is the HTTP validator state stored next to a cached body.
type feedMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// feedCache is the on-disk directory of one remote feed.
type feedCache string

func (f *Fetcher) cacheFor(url string) feedCache {
	sum := sha256.Sum256([]byte(url))
	return feedCache(filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8])))
}

// load returns whatever is cached; a missing or corrupt cache is empty.
func (c feedCache) load() (feedMeta, []byte) {
	var meta feedMeta
	if data, err := os.ReadFile(filepath.Join(string(c), "meta.json")); err == nil {
		if json.Unmarshal(data, &meta) != nil {
			meta = feedMeta{}
		}
	}
	body, _ := os.ReadFile(filepath.Join(string(c), "body.ics"))
	return meta, body
}

// store writes the body before the metadata so validators never refer to a
// body that is not on disk.
func (c feedCache) store(meta feedMeta, body []byte) error {
	if err := os.MkdirAll(string(c), 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(string(c), "body.ics"), body, 0o600); err != nil {
		return err
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(string(c), "meta.json"), data, 0o600)
}

// redactURL keeps only scheme and host of a feed URL for logging; private
// calendar URLs usually carry a token in the path or query.
func redactURL(u string) string {
	scheme, rest, ok := strings.Cut(u, "://")
	if !ok {
		return "ics://...(redacted)"
	}
	host, _, _ := strings.Cut(rest, "/")
	host, _, _ = strings.Cut(host, "?")
	return scheme + "://" + host + "/...(redacted)"
}
