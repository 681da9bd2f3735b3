package httpserver

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/userauth/internal/common"
	"github.com/dmitrijs2005/userauth/internal/logging"
	"github.com/labstack/echo/v4"
)

const userIDKey = "user_id"

// requestLogger logs one line per request after it has been served.
func requestLogger(logger logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			logger.Info(req.Context(), "http request",
				"method", req.Method,
				"path", req.URL.Path,
				"status", c.Response().Status,
				"latency_ms", time.Since(start).Milliseconds(),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			)
			return nil
		}
	}
}

// accessToken takes the token from the access cookie, else from a Bearer
// Authorization header.
func accessToken(c echo.Context) string {
	if ck, err := c.Cookie(common.AccessTokenCookieName); err == nil && ck.Value != "" {
		return ck.Value
	}
	authz := c.Request().Header.Get(echo.HeaderAuthorization)
	scheme, token, ok := strings.Cut(authz, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// requireAuth rejects requests without a valid access token and stores the
// user ID on the context.
func requireAuth(svc UserService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, err := svc.Authenticate(c.Request().Context(), accessToken(c))
			if err != nil {
				return err
			}
			c.Set(userIDKey, id)
			return next(c)
		}
	}
}

func currentUserID(c echo.Context) string {
	id, _ := c.Get(userIDKey).(string)
	return id
}
