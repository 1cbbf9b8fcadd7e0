package httputil

// Cookie names shared between the auth handlers and middleware.
const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
	CSRFTokenCookie    = "csrf_token"
)

// CSRFTokenHeader carries the double-submit token on mutating requests.
const CSRFTokenHeader = "X-CSRF-Token"
