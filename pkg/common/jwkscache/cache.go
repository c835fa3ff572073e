package jwkscache

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/quipper/lti/nrps/pkg/common/logger"
)

// Cache provides JWKS retrieval with HTTP caching semantics.
type Cache interface {
	Get(ctx context.Context, url string) (jwk.Set, error)
	Invalidate(url string)
}

// entry stores a cached JWKS and metadata derived from HTTP caching headers.
type entry struct {
	set             jwk.Set
	expiry          time.Time
	allowStaleUntil time.Time
	etag            string
	lastModified    time.Time
}

type memoryCache struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	client     *http.Client
	defaultTTL time.Duration
	staleGrace time.Duration
	clock      clock.Clock
	// concurrent misses for one URL share a single fetch
	fetches singleflight.Group
}

// Option customizes a cache built with New.
type Option func(*memoryCache)

// WithHTTPClient replaces the default 5s-timeout client.
func WithHTTPClient(c *http.Client) Option {
	return func(m *memoryCache) { m.client = c }
}

func WithClock(c clock.Clock) Option {
	return func(m *memoryCache) { m.clock = c }
}

var (
	defaultOnce sync.Once
	defaultC    Cache
)

// Default returns a process-wide JWKS cache with sensible defaults.
func Default() Cache {
	defaultOnce.Do(func() {
		defaultC = New(10*time.Minute, 1*time.Hour)
	})
	return defaultC
}

// New creates a new in-memory JWKS cache.
// defaultTTL is used when the response does not specify caching directives.
// staleGrace allows serving stale content on transient fetch failures.
func New(defaultTTL, staleGrace time.Duration, opts ...Option) Cache {
	c := &memoryCache{
		entries:    make(map[string]*entry),
		client:     &http.Client{Timeout: 5 * time.Second},
		defaultTTL: defaultTTL,
		staleGrace: staleGrace,
		clock:      clock.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Provider binds a cache to one JWKS URL, in the shape key set consumers expect.
func Provider(c Cache, url string) func(ctx context.Context) (jwk.Set, error) {
	return func(ctx context.Context) (jwk.Set, error) {
		return c.Get(ctx, url)
	}
}

func (c *memoryCache) Invalidate(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, url)
}

func (c *memoryCache) Get(ctx context.Context, url string) (jwk.Set, error) {
	if set := c.getFresh(url); set != nil {
		return set, nil
	}
	v, err, _ := c.fetches.Do(url, func() (any, error) {
		return c.fetch(ctx, url)
	})
	if err != nil {
		return nil, err
	}
	return v.(jwk.Set), nil
}

func (c *memoryCache) getFresh(url string) jwk.Set {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.entries[url]; ok && e.set != nil && c.clock.Now().Before(e.expiry) {
		return e.set
	}
	return nil
}

// stale returns the cached set when it may still be served after a failed fetch.
func (c *memoryCache) stale(e *entry) jwk.Set {
	if e != nil && e.set != nil && c.clock.Now().Before(e.allowStaleUntil) {
		return e.set
	}
	return nil
}

func (c *memoryCache) fetch(ctx context.Context, url string) (jwk.Set, error) {
	c.mu.RLock()
	e := c.entries[url]
	c.mu.RUnlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "jwkscache: build request")
	}
	if e != nil {
		if e.etag != "" {
			req.Header.Set("If-None-Match", e.etag)
		}
		if !e.lastModified.IsZero() {
			req.Header.Set("If-Modified-Since", e.lastModified.UTC().Format(http.TimeFormat))
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if set := c.stale(e); set != nil {
			logger.Warn("jwkscache: serving stale set url=%s err=%v", url, err)
			return set, nil
		}
		return nil, errors.Wrapf(err, "jwkscache: fetch %s", url)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		if e == nil || e.set == nil {
			return nil, errors.New("jwkscache: 304 but no cached entry")
		}
		expiry, allowStale := computeExpiry(resp.Header, c.clock.Now(), c.defaultTTL, c.staleGrace)
		c.mu.Lock()
		e.expiry = expiry
		e.allowStaleUntil = allowStale
		c.mu.Unlock()
		return e.set, nil
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1MB
		if err != nil {
			return nil, errors.Wrap(err, "jwkscache: read body")
		}
		set, err := jwk.Parse(body)
		if err != nil {
			return nil, errors.Wrap(err, "jwkscache: parse set")
		}
		fresh := &entry{set: set, etag: resp.Header.Get("ETag")}
		fresh.expiry, fresh.allowStaleUntil = computeExpiry(resp.Header, c.clock.Now(), c.defaultTTL, c.staleGrace)
		if lm := resp.Header.Get("Last-Modified"); lm != "" {
			if t, err := time.Parse(http.TimeFormat, lm); err == nil {
				fresh.lastModified = t
			}
		}
		c.mu.Lock()
		c.entries[url] = fresh
		c.mu.Unlock()
		logger.Debug("jwkscache: fetched url=%s keys=%d", url, set.Len())
		return set, nil
	default:
		if set := c.stale(e); set != nil {
			return set, nil
		}
		return nil, errors.New("jwkscache: unexpected status " + strconv.Itoa(resp.StatusCode))
	}
}

func computeExpiry(h http.Header, now time.Time, defTTL, staleGrace time.Duration) (expiry, allowStaleUntil time.Time) {
	cc := parseCacheControl(h.Get("Cache-Control"))
	if _, ok := cc["no-store"]; ok {
		return now, now
	}
	if maxAge, ok := cc["max-age"]; ok {
		if secs, err := strconv.Atoi(maxAge); err == nil {
			exp := now.Add(time.Duration(secs) * time.Second)
			return exp, exp.Add(staleGrace)
		}
	}
	if expStr := h.Get("Expires"); expStr != "" {
		if t, err := time.Parse(http.TimeFormat, expStr); err == nil {
			return t, t.Add(staleGrace)
		}
	}
	exp := now.Add(defTTL)
	return exp, exp.Add(staleGrace)
}

// parseCacheControl keeps directive names as keys; only max-age keeps a value.
func parseCacheControl(v string) map[string]string {
	m := map[string]string{}
	for _, part := range strings.Split(v, ",") {
		p := strings.TrimSpace(strings.ToLower(part))
		if p == "" {
			continue
		}
		if age, ok := strings.CutPrefix(p, "max-age="); ok {
			m["max-age"] = age
			continue
		}
		m[p] = ""
	}
	return m
}
