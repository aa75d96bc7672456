package docs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by Cache.Get when the key is absent.
var ErrCacheMiss = errors.New("docs: cache miss")

// Cache stores fetched document text keyed by document id.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// RedisCache backs the text cache with redis.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	v, err := c.rdb.Get(ctx, "doctext:"+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return v, err
}

func (c *RedisCache) Set(ctx context.Context, key, value string) error {
	return c.rdb.Set(ctx, "doctext:"+key, value, c.ttl).Err()
}

// MemoryCache is a process-local Cache, used when redis is not configured
// and in tests.
type MemoryCache struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{m: map[string]string{}}
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return v, nil
}

func (c *MemoryCache) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
	return nil
}

// TextFetcher retrieves the full text of a document.
type TextFetcher interface {
	Text(ctx context.Context, d Document) (string, error)
}

// Fetcher downloads document text over HTTP and caches it by document id.
// HTML responses go through readability extraction, everything else is
// returned verbatim.
type Fetcher struct {
	client *http.Client
	cache  Cache
	logger *log.Logger
}

func NewFetcher(timeout time.Duration, cache Cache) *Fetcher {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		cache:  cache,
		logger: log.New(log.Writer(), "[DOCS] ", log.LstdFlags),
	}
}

func (f *Fetcher) Text(ctx context.Context, d Document) (string, error) {
	if d.URL == "" {
		return "", fmt.Errorf("document %s has no URL", d.ID)
	}
	key := d.ID
	if key == "" {
		key = d.URL
	}
	if cached, err := f.cache.Get(ctx, key); err == nil {
		return cached, nil
	} else if !errors.Is(err, ErrCacheMiss) {
		f.logger.Printf("cache get %s: %v", key, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", d.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: %s", d.URL, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", err
	}

	text := string(body)
	if strings.Contains(resp.Header.Get("Content-Type"), "html") {
		if extracted, ok := f.extract(body, d.URL); ok {
			text = extracted
		}
	}
	if err := f.cache.Set(ctx, key, text); err != nil {
		f.logger.Printf("cache set %s: %v", key, err)
	}
	return text, nil
}

func (f *Fetcher) extract(body []byte, rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err != nil || strings.TrimSpace(article.TextContent) == "" {
		return "", false
	}
	return article.TextContent, true
}
