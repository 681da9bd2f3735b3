package httpserver

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/userauth/internal/common"
	"github.com/dmitrijs2005/userauth/internal/server/services"
	"github.com/labstack/echo/v4"
)

func tokenCookie(name, value string, expires time.Time, opts services.CookieOptions) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: opts.HTTPOnly,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func setTokenCookies(c echo.Context, s *services.Session) {
	c.SetCookie(tokenCookie(common.AccessTokenCookieName, s.Tokens.AccessToken, s.Tokens.AccessTokenExpiresAt, s.Cookie))
	c.SetCookie(tokenCookie(common.RefreshTokenCookieName, s.Tokens.RefreshToken, s.Tokens.RefreshTokenExpiresAt, s.Cookie))
}

func clearTokenCookies(c echo.Context, opts services.CookieOptions) {
	for _, name := range []string{common.AccessTokenCookieName, common.RefreshTokenCookieName} {
		ck := tokenCookie(name, "", time.Unix(0, 0), opts)
		ck.MaxAge = -1
		c.SetCookie(ck)
	}
}
