package common

// Names of the cookies carrying the token pair.
const (
	AccessTokenCookieName  = "accessToken"
	RefreshTokenCookieName = "refreshToken"
)

// AuthorizationHeaderName carries "Bearer <access token>" for clients that do
// not keep cookies.
const AuthorizationHeaderName = "Authorization"
