package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"thesis-service/pkg/logger"
	"thesis-service/pkg/ratelimit"
	"thesis-service/prometheus"
)

// SubmissionRateLimit caps requests per caller, falling back to the client IP
// for unauthenticated requests. A nil limiter disables limiting.
func SubmissionRateLimit(limiter ratelimit.Limiter, limit int, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if limiter == nil {
				return next(c)
			}

			key := "ip:" + c.RealIP()
			if caller, ok := CallerFromContext(c); ok {
				key = "user:" + caller.ID
			}

			if !limiter.Allow(c.Request().Context(), key, limit, window) {
				logger.FromEcho(c).Warn("Submission rate limited", zap.String("key", key))
				prometheus.RateLimitedCounter.Inc()
				return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "too many submissions, try again later"})
			}
			return next(c)
		}
	}
}
