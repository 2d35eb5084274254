package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"salonbook/internal/domain"
	"salonbook/internal/models"
)

// BinClient reads and writes the shared document on a JSON-bin style HTTP
// endpoint: GET returns the document, optionally wrapped in "record", and
// PUT replaces it. The endpoint has no versioning, so writes always win.
type BinClient struct {
	url        string
	apiKey     string
	httpClient *http.Client

	redis    *redis.Client
	cacheKey string
	cacheTTL time.Duration
}

// NewBinClient constructs a client for the bin at url.
func NewBinClient(url, apiKey string) *BinClient {
	return &BinClient{
		url:        url,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cacheKey:   "salonbook:bin:" + url,
	}
}

// UseRedisCache configures optional Redis caching of the last GET.
func (c *BinClient) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// Load fetches the document.
func (c *BinClient) Load(ctx context.Context) (*models.Document, error) {
	var raw json.RawMessage
	if !c.readCache(ctx, &raw) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, http.NoBody)
		if err != nil {
			return nil, err
		}
		c.addHeaders(req)
		if err := c.do(req, &raw); err != nil {
			return nil, fmt.Errorf("get bin: %w", err)
		}
		c.writeCache(ctx, raw)
	}

	doc, err := decodeBin(raw)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Save replaces the remote document.
func (c *BinClient) Save(ctx context.Context, doc *models.Document) error {
	stored := *doc
	stored.Version = doc.Version + 1
	body, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Bin-Versioning", "false")
	c.addHeaders(req)

	c.dropCache(ctx)
	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("put bin: %w", err)
	}
	doc.Version = stored.Version
	return nil
}

// decodeBin accepts the document either bare or as {"record": {...}}.
// An empty body or a record of null means nothing is stored yet.
func decodeBin(raw json.RawMessage) (*models.Document, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, domain.ErrNoDocument
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return nil, fmt.Errorf("decode bin: %w", err)
	}
	if rec, ok := probe["record"]; ok {
		if _, bare := probe["appointments"]; !bare {
			return decodeBin(rec)
		}
	}
	if len(probe) == 0 {
		return nil, domain.ErrNoDocument
	}

	var doc models.Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("decode bin: %w", err)
	}
	return &doc, nil
}

func (c *BinClient) readCache(ctx context.Context, out *json.RawMessage) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, c.cacheKey).Bytes()
	if err != nil {
		return false
	}
	*out = val
	return true
}

func (c *BinClient) writeCache(ctx context.Context, raw json.RawMessage) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	_ = c.redis.Set(ctx, c.cacheKey, []byte(raw), c.cacheTTL).Err()
}

func (c *BinClient) dropCache(ctx context.Context) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, c.cacheKey).Err()
}

func (c *BinClient) do(req *http.Request, out *json.RawMessage) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *BinClient) addHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-Master-Key", c.apiKey)
		req.Header.Set("X-Access-Key", c.apiKey)
	}
}
