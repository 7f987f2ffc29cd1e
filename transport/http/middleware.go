package http

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/layer-3/beatauth/core"
	"github.com/layer-3/beatauth/service"
)

const principalKey = "principal"

// AuthMiddleware validates the bearer session token and stores the
// resolved principal in the request context
func AuthMiddleware(authService *service.AuthService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "invalid authorization header"})
			return
		}

		principal, err := authService.Authorize(c.Request.Context(), token)
		if err != nil {
			abortWithError(c, log, err)
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// GateMiddleware applies an access requirement to the principal set by
// AuthMiddleware.
func GateMiddleware(gate *service.AccessGate, req service.Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, _ := principalFrom(c)
		decision := gate.Evaluate(service.PrincipalSnapshot(principal), req)

		switch decision.Outcome {
		case service.OutcomeAllow:
			c.Next()
		case service.OutcomeDenied:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":  decision.CallToAction(),
				"denial": decision.Denial,
			})
		default:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   decision.CallToAction(),
				"outcome": decision.Outcome,
			})
		}
	}
}

func principalFrom(c *gin.Context) (*core.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*core.Principal)
	return p, ok
}

func bearerToken(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	if len(auth) < 8 || !strings.EqualFold(auth[:7], "Bearer ") {
		return "", false
	}
	return auth[7:], true
}

// RateLimiter throttles requests per client IP
type RateLimiter struct {
	limiters map[string]*visitor
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	idle     time.Duration
	log      zerolog.Logger
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing rps requests per second with
// the given burst for each client IP
func NewRateLimiter(rps float64, burst int, log zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*visitor),
		rate:     rate.Limit(rps),
		burst:    burst,
		idle:     10 * time.Minute,
		log:      log,
	}
}

func (rl *RateLimiter) limiter(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for k, v := range rl.limiters {
		if now.Sub(v.lastSeen) > rl.idle {
			delete(rl.limiters, k)
		}
	}

	v, ok := rl.limiters[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

// Handler returns the gin middleware
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if !rl.limiter(key, time.Now()).Allow() {
			rl.log.Warn().Str("client_ip", key).Str("path", c.FullPath()).Msg("rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Error: "too many requests"})
			return
		}
		c.Next()
	}
}

// RequestLogger logs one line per request
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		evt := log.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			evt = log.Error()
		}
		evt.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}
