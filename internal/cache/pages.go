package cache

import (
	"context"
	"errors"
	"time"

	"quill/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// PageCache returns a Fiber middleware caching the full rendered response of
// a GET route as an opaque blob keyed by route identity. A warm hit is served
// byte-identically to the original render until the entry expires or a post
// write invalidates it.
func PageCache(ttl time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if client == nil || c.Method() != fiber.MethodGet {
			return c.Next()
		}

		key := PageKey(c.Path())
		cached, err := client.Get(c.Context(), key).Bytes()
		if err == nil {
			observability.PageCacheHits.Inc()
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			c.Set("X-Page-Cache", "hit")
			return c.Send(cached)
		}
		if !errors.Is(err, redis.Nil) {
			// Degraded Redis: render normally without caching.
			return c.Next()
		}

		observability.PageCacheMisses.Inc()
		if err := c.Next(); err != nil {
			return err
		}

		if c.Response().StatusCode() == fiber.StatusOK {
			body := make([]byte, len(c.Response().Body()))
			copy(body, c.Response().Body())
			// Best-effort store; a failed write only costs the next read a render.
			client.Set(c.Context(), key, body, ttl)
		}
		return nil
	}
}

// InvalidatePages clears the entire page-cache namespace. Post writes call
// this synchronously so the next uncached read reflects the change. Clearing
// the whole namespace rather than single keys keeps the policy simple; the
// namespace only ever holds a handful of feed pages.
func InvalidatePages(ctx context.Context) {
	if client == nil {
		return
	}

	iter := client.Scan(ctx, 0, PageKey("*"), 0).Iterator()
	for iter.Next(ctx) {
		client.Del(ctx, iter.Val())
	}
	observability.PageCacheInvalidations.Inc()
}
