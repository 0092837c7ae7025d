package interfaces

import (
	"bytes"
	"context"
	"encoding/json"
	"github.com/ecom2122/ecom/internal/pkg/logger"
	"github.com/ecom2122/ecom/internal/pkg/metrics"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"net/http"
	"strconv"
	"time"
)

const cachePrefix = "catalog:http"

// ResponseCache 缓存 /api 下的 GET 响应（cache-aside）。
// 键中包含一个代数，任何成功的写请求都会递增代数，旧的缓存条目随 TTL 自然过期。
// Redis 不可用时直接穿透到处理器。
type ResponseCache struct {
	client  redis.UniversalClient
	ttl     time.Duration
	sfGroup singleflight.Group // 同一个键的并发未命中只执行一次处理器
}

func NewResponseCache(client redis.UniversalClient, ttl time.Duration) *ResponseCache {
	return &ResponseCache{client: client, ttl: ttl}
}

type cachedResponse struct {
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
}

func (c *ResponseCache) generationKey() string {
	return cachePrefix + ":generation"
}

func (c *ResponseCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, c.generationKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Invalidate 让当前所有缓存条目失效
func (c *ResponseCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, c.generationKey()).Err()
}

func (c *ResponseCache) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			c.serveWrite(w, r, next)
			return
		}
		c.serveRead(w, r, next)
	})
}

func (c *ResponseCache) serveWrite(w http.ResponseWriter, r *http.Request, next http.Handler) {
	rec := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	next.ServeHTTP(rec, r)
	if rec.status >= http.StatusBadRequest {
		return
	}
	if err := c.Invalidate(r.Context()); err != nil {
		logger.Ctx(r.Context()).Warn().Err(err).Msg("failed to invalidate response cache")
	}
}

func (c *ResponseCache) serveRead(w http.ResponseWriter, r *http.Request, next http.Handler) {
	ctx := r.Context()
	gen, err := c.generation(ctx)
	if err != nil {
		metrics.CacheLookups.WithLabelValues("bypass").Inc()
		logger.Ctx(ctx).Warn().Err(err).Msg("response cache unavailable, bypassing")
		next.ServeHTTP(w, r)
		return
	}
	key := cachePrefix + ":" + strconv.FormatInt(gen, 10) + ":" + r.URL.RequestURI()

	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var cached cachedResponse
		if err := json.Unmarshal(raw, &cached); err == nil {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			cached.writeTo(w)
			return
		}
	}

	metrics.CacheLookups.WithLabelValues("miss").Inc()
	v, _, _ := c.sfGroup.Do(key, func() (any, error) {
		buf := newBufferedResponse()
		// 共享结果的请求可能先于发起者取消，处理器不随单个请求取消
		next.ServeHTTP(buf, r.WithContext(context.WithoutCancel(ctx)))
		resp := buf.result()
		if resp.Status == http.StatusOK {
			c.store(ctx, key, resp)
		}
		return resp, nil
	})
	v.(*cachedResponse).writeTo(w)
}

func (c *ResponseCache) store(ctx context.Context, key string, resp *cachedResponse) {
	raw, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := c.client.Set(context.WithoutCancel(ctx), key, raw, c.ttl).Err(); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("failed to cache response")
	}
}

func (cr *cachedResponse) writeTo(w http.ResponseWriter) {
	for k, vs := range cr.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(cr.Status)
	w.Write(cr.Body)
}

// bufferedResponse 把处理器的输出留在内存中，供多个请求共享
type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: make(http.Header), status: http.StatusOK}
}

func (b *bufferedResponse) Header() http.Header         { return b.header }
func (b *bufferedResponse) Write(p []byte) (int, error) { return b.body.Write(p) }
func (b *bufferedResponse) WriteHeader(status int)      { b.status = status }

func (b *bufferedResponse) result() *cachedResponse {
	return &cachedResponse{Status: b.status, Header: b.header.Clone(), Body: b.body.Bytes()}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
