package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"thesis-service/internal/model"
	"thesis-service/pkg/jwtutil"
	"thesis-service/pkg/logger"
	"thesis-service/prometheus"
)

const callerKey = "caller"

// AuthMiddleware validates the JWT bearer token and stores the caller in the context
func AuthMiddleware(jwtUtil *jwtutil.JWTUtil) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)
			prometheus.AuthAttemptsCounter.Inc()

			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				log.Warn("Missing Authorization header")
				prometheus.RecordAuthError("missing_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization token"})
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				log.Warn("Invalid Authorization header format")
				prometheus.RecordAuthError("invalid_auth_format")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization format, expected Bearer token"})
			}

			claims, err := jwtUtil.ValidateToken(parts[1])
			if err != nil {
				log.Warn("Invalid JWT token", zap.Error(err))
				prometheus.RecordAuthError("invalid_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}

			caller := model.Caller{ID: claims.UserID, Email: claims.Email, Role: model.Role(strings.ToLower(claims.Role))}
			switch {
			case caller.ID == "":
				prometheus.RecordAuthError("invalid_claims")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token has no user"})
			case !caller.IsAdmin() && !caller.IsStudent() && !caller.IsTeacher():
				prometheus.RecordAuthError("invalid_claims")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token has an unknown role"})
			}

			c.Set(callerKey, caller)
			logger.WithEcho(c, log.With(zap.String("user_id", caller.ID), zap.String("role", string(caller.Role))))

			return next(c)
		}
	}
}

// CallerFromContext returns the authenticated caller set by AuthMiddleware
func CallerFromContext(c echo.Context) (model.Caller, bool) {
	caller, ok := c.Get(callerKey).(model.Caller)
	return caller, ok
}

// SetCaller stores caller in the context. Used by tests and trusted internal routes.
func SetCaller(c echo.Context, caller model.Caller) {
	c.Set(callerKey, caller)
}
