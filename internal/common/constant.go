// Package common contains shared constants and error types used across
// the server and client components.
package common

// Cookie names carrying the token pair. The same names are used by login,
// refresh and logout.
const (
	AccessTokenCookieName  = "accessToken"
	RefreshTokenCookieName = "refreshToken"
)

// AccessTokenHeaderName is the gRPC metadata key an upstream service may use
// to forward the access token.
const AccessTokenHeaderName = "access_token"
