package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/dms-api/internal/config"
	"github.com/iliyamo/dms-api/internal/metrics"
)

// captureWriter tees the response body into a bounded buffer.
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	size   int64
	limit  int64
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if cw.limit <= 0 || cw.size+int64(len(b)) <= cw.limit {
		cw.buf.Write(b)
	}
	cw.size += int64(len(b))
	return cw.ResponseWriter.Write(b)
}

// overflow reports whether the body exceeded the capture limit.
func (cw *captureWriter) overflow() bool {
	return cw.limit > 0 && cw.size > cw.limit
}

// ResponseCache caches successful reads of one resource in Redis.  Every
// successful write to the resource bumps a generation counter, which moves
// all subsequent reads onto fresh keys; stale entries age out via TTL.
type ResponseCache struct {
	cfg      config.CacheConfig
	rdb      *redis.Client
	resource string
	methods  map[string]bool
	log      logrus.FieldLogger
}

// NewResponseCache returns a cache for the named resource.  A nil client or a
// disabled config yields a cache whose middleware passes requests through.
func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client, resourceName string, log logrus.FieldLogger) *ResponseCache {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "cache"
	}
	return &ResponseCache{cfg: cfg, rdb: rdb, resource: resourceName, methods: cfg.MethodSet(), log: log}
}

func (rc *ResponseCache) enabled() bool { return rc.cfg.Enabled && rc.rdb != nil }

func (rc *ResponseCache) generationKey() string {
	return fmt.Sprintf("%s:gen:%s", rc.cfg.Prefix, rc.resource)
}

// entryKey builds the key for a request under generation gen.
func (rc *ResponseCache) entryKey(gen int64, c echo.Context) string {
	r := c.Request()
	sum := sha1.Sum([]byte(r.Method + " " + c.Path() + " " + r.URL.Path + "?" + r.URL.RawQuery))
	return fmt.Sprintf("%s:%s:%d:%x", rc.cfg.Prefix, rc.resource, gen, sum[:])
}

// Invalidate moves readers to a new generation.
func (rc *ResponseCache) Invalidate(ctx context.Context) error {
	if !rc.enabled() {
		return nil
	}
	return rc.rdb.Incr(ctx, rc.generationKey()).Err()
}

// Middleware serves cached reads and invalidates on writes.
func (rc *ResponseCache) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if !rc.enabled() {
			return next
		}
		return func(c echo.Context) error {
			method := strings.ToUpper(c.Request().Method)
			if !rc.methods[method] {
				err := next(c)
				if err == nil && c.Response().Status < http.StatusBadRequest {
					if ierr := rc.Invalidate(c.Request().Context()); ierr != nil {
						rc.log.WithError(ierr).WithField("resource", rc.resource).Warn("cache: invalidate failed")
					}
				}
				return err
			}
			return rc.serve(c, next)
		}
	}
}

func (rc *ResponseCache) serve(c echo.Context, next echo.HandlerFunc) error {
	ctx := c.Request().Context()
	gen, err := rc.rdb.Get(ctx, rc.generationKey()).Int64()
	if err != nil && err != redis.Nil {
		rc.log.WithError(err).Warn("cache: generation lookup failed")
		return next(c)
	}
	key := rc.entryKey(gen, c)

	if bs, err := rc.rdb.Get(ctx, key).Bytes(); err == nil {
		if status, hdr, body, ok := decodePayload(bs); ok {
			metrics.RecordCacheLookup(true)
			for k, vals := range hdr {
				if strings.EqualFold(k, echo.HeaderContentLength) {
					continue
				}
				for _, v := range vals {
					c.Response().Header().Add(k, v)
				}
			}
			c.Response().Header().Set("X-Cache", "HIT")
			c.Response().WriteHeader(status)
			_, werr := c.Response().Write(body)
			return werr
		}
	}
	metrics.RecordCacheLookup(false)

	cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: int64(rc.cfg.MaxBodyBytes)}
	c.Response().Writer = cw
	c.Response().Header().Set("X-Cache", "MISS")

	if err := next(c); err != nil {
		return err
	}
	if cw.status != http.StatusOK || cw.overflow() {
		return nil
	}
	hdr := c.Response().Header().Clone()
	hdr.Del("X-Cache")
	payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes())
	if err != nil {
		return nil
	}
	// The request context may already be done once the body is flushed.
	if err := rc.rdb.Set(context.WithoutCancel(ctx), key, payload, rc.cfg.TTL).Err(); err != nil {
		rc.log.WithError(err).Warn("cache: store failed")
	}
	return nil
}

// encodePayload packs [4 bytes status][4 bytes header length][header JSON][body].
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	hdrJSON, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(hdrJSON)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
	copy(out[8:], hdrJSON)
	copy(out[8+len(hdrJSON):], body)
	return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
	if len(bs) < 8 {
		return 0, nil, nil, false
	}
	status = int(binary.BigEndian.Uint32(bs[0:4]))
	hlen := int(binary.BigEndian.Uint32(bs[4:8]))
	if hlen < 0 || 8+hlen > len(bs) {
		return 0, nil, nil, false
	}
	header = make(http.Header)
	if hlen > 0 {
		if err := json.Unmarshal(bs[8:8+hlen], &header); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, header, bs[8+hlen:], true
}
