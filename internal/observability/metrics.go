// Package observability provides Prometheus metrics and OpenTelemetry tracing.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quill_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// PageCacheHits counts global-feed responses served from the page cache.
	PageCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quill_page_cache_hits_total",
		Help: "Responses served byte-identically from the whole-page cache",
	})

	// PageCacheMisses counts global-feed renders that went to the database.
	PageCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quill_page_cache_misses_total",
		Help: "Page-cache misses that fell through to a full render",
	})

	// PageCacheInvalidations counts namespace-wide cache clears on post writes.
	PageCacheInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quill_page_cache_invalidations_total",
		Help: "Whole-namespace page cache invalidations triggered by post writes",
	})

	// PostsCreated counts successfully created posts.
	PostsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quill_posts_created_total",
		Help: "Total number of posts created",
	})

	// FollowEdgesCreated counts new follow edges (idempotent re-follows excluded).
	FollowEdgesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quill_follow_edges_created_total",
		Help: "Total number of follow edges created",
	})
)
