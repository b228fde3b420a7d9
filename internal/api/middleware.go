package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/yakoovad/ctf-platform/internal/model"
	"github.com/yakoovad/ctf-platform/internal/service"
	"github.com/yakoovad/ctf-platform/pkg/logger"
	"go.uber.org/zap"
)

const identityKey = "identity"

func ZapLoggerMiddleware(l *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			req := c.Request()
			res := c.Response()

			requestID := c.Response().Header().Get(echo.HeaderXRequestID)

			reqLogger := l.With(
				zap.String("request_id", requestID),
			)

			ctx := logger.WithLogger(req.Context(), reqLogger)
			c.SetRequest(req.WithContext(ctx))

			err := next(c)

			latency := time.Since(start)

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("path", c.Path()),
				zap.String("remote_ip", c.RealIP()),
				zap.Int("status", res.Status),
				zap.Duration("latency", latency),
				zap.Int64("bytes_in", req.ContentLength),
				zap.Int64("bytes_out", res.Size),
			}

			if err != nil {
				fields = append(fields, zap.Error(err))
				reqLogger.Error("request failed", fields...)
			} else {
				reqLogger.Info("request completed", fields...)
			}

			return err
		}
	}
}

// SessionMiddleware attaches the caller's identity when the request carries
// a valid bearer token or session cookie. Anonymous requests pass through.
func SessionMiddleware(sessions *service.SessionService, cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := sessionToken(c, cookieName)
			if token == "" {
				return next(c)
			}

			if identity, ok := sessions.Resolve(c.Request().Context(), token); ok {
				c.Set(identityKey, identity)
			}
			return next(c)
		}
	}
}

// RequireSession rejects requests that SessionMiddleware could not authenticate.
func RequireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := IdentityFromContext(c); !ok {
			return transportError(c, service.NewError(service.ErrorCodeUnauthorized, "authentication required"))
		}
		return next(c)
	}
}

func IdentityFromContext(c echo.Context) (*model.Identity, bool) {
	identity, ok := c.Get(identityKey).(*model.Identity)
	return identity, ok && identity != nil
}

// sessionToken prefers the Authorization header over the cookie.
func sessionToken(c echo.Context, cookieName string) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}

	cookie, err := c.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

type CookieConfig struct {
	Name   string
	Secure bool
}

func (cc CookieConfig) set(c echo.Context, token string, expires time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     cc.Name,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   cc.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (cc CookieConfig) clear(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     cc.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cc.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
