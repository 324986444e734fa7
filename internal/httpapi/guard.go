package httpapi

import (
	"context"
	"net/http"
	"time"

	"dialer-platform/pkg/logger"
	"dialer-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const guardScopeRequestNext = "request-next"

// RequestGuard allows one in-flight request-next per worker across every API
// instance. Exclusive assignment does not depend on it; it only sheds
// double-clicks and runaway clients before they reach Postgres.
type RequestGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRequestGuard(rdb *redis.Client, ttl time.Duration) *RequestGuard {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RequestGuard{rdb: rdb, ttl: ttl}
}

// Acquire reports whether workerID may proceed. The returned release must be
// called when ok is true. Redis failures fail open.
func (g *RequestGuard) Acquire(c *gin.Context, workerID string) (release func(), ok bool) {
	noop := func() {}
	if g == nil || g.rdb == nil {
		return noop, true
	}
	key := utils.GuardKey(guardScopeRequestNext, workerID)
	ctx := c.Request.Context()

	ok, err := utils.AcquireConcurrencyCap(ctx, g.rdb, key, 1, g.ttl)
	if err != nil {
		logger.FromGin(c).Warn("request guard unavailable", "worker_id", workerID, "err", err)
		return noop, true
	}
	if !ok {
		return noop, false
	}
	return func() {
		// release even if the request context is already cancelled
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := utils.ReleaseConcurrencyCap(rctx, g.rdb, key); err != nil {
			logger.FromGin(c).Warn("request guard release failed", "worker_id", workerID, "err", err)
		}
	}, true
}

func tooManyRequests(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "a lead request is already in progress"})
}
