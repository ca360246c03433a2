// Package common contains shared constants and error kinds used across
// VidShare server components.
package common

// Token carriers understood by the transports.
const (
	// AccessTokenCookieName and RefreshTokenCookieName are the http-only
	// cookies mirroring the current session.
	AccessTokenCookieName  = "accessToken"
	RefreshTokenCookieName = "refreshToken"

	// AuthorizationHeaderName carries "Bearer <token>" over HTTP and as gRPC
	// metadata.
	AuthorizationHeaderName = "authorization"

	// AccessTokenHeaderName is the bare gRPC metadata key accepted as a
	// fallback to the authorization header.
	AccessTokenHeaderName = "access_token"

	// BearerPrefix precedes the token in the authorization header.
	BearerPrefix = "Bearer "
)
