package middleware

import (
	"net/http"
	"sync"
	"time"

	"timezone-scheduler/core/constants"
	"timezone-scheduler/core/controller"
	"timezone-scheduler/core/errors"
	"timezone-scheduler/core/logger"
	"timezone-scheduler/core/utils"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

type Middleware struct {
	jwtSecret string
	limit     rate.Limit
	burst     int

	mu       sync.Mutex
	visitors map[string]*visitor
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewMiddleware(jwtSecret string, perSecond float64, burst int) *Middleware {
	if burst < 1 {
		burst = 1
	}
	return &Middleware{
		jwtSecret: jwtSecret,
		limit:     rate.Limit(perSecond),
		burst:     burst,
		visitors:  make(map[string]*visitor),
	}
}

// AuthMiddleware validates the bearer token and stores its claims on the context.
func (m *Middleware) AuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return c.JSON(http.StatusUnauthorized, controller.ActionResponse{
					Success: false,
					Code:    errors.ErrMissingAuthorizationHeader,
					Message: "missing authorization header",
				})
			}
			token, err := utils.GetTokenFromHeader(header)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, controller.ActionResponse{
					Success: false,
					Code:    errors.ErrInvalidTokenFormat,
					Message: "invalid authorization header",
				})
			}
			claims, err := utils.ValidateAndParseToken(m.jwtSecret, token)
			if err != nil || claims.Scope != constants.ScopeTokenAccess {
				logger.Warn("Middleware:AuthMiddleware:InvalidToken", "error", err)
				return c.JSON(http.StatusUnauthorized, controller.ActionResponse{
					Success: false,
					Code:    errors.ErrUnauthorized,
					Message: "invalid or expired token",
				})
			}
			c.Set(constants.ContextTokenData, claims)
			return next(c)
		}
	}
}

// RateLimit throttles requests per client IP.
func (m *Middleware) RateLimit() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !m.limiterFor(c.RealIP()).Allow() {
				return c.JSON(http.StatusTooManyRequests, controller.ActionResponse{
					Success:   false,
					Code:      errors.ErrTooManyRequests,
					Message:   "too many requests, please retry shortly",
					Retryable: true,
				})
			}
			return next(c)
		}
	}
}

func (m *Middleware) limiterFor(ip string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	v, ok := m.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(m.limit, m.burst)}
		m.visitors[ip] = v
	}
	v.lastSeen = now

	// Drop idle visitors so the map does not grow without bound.
	if len(m.visitors) > 1024 {
		for key, other := range m.visitors {
			if now.Sub(other.lastSeen) > 10*time.Minute {
				delete(m.visitors, key)
			}
		}
	}
	return v.limiter
}

// ClaimsFromContext returns the claims stored by AuthMiddleware.
func ClaimsFromContext(c echo.Context) (*utils.TokenClaims, bool) {
	claims, ok := c.Get(constants.ContextTokenData).(*utils.TokenClaims)
	return claims, ok && claims != nil
}
