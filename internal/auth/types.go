package auth

// ClientClaims identifies an API client holding a scanner token
type ClientClaims struct {
	ClientID string `json:"client_id"`
	Scope    string `json:"scope,omitempty"` // "read" or "scan"
}

const (
	ScopeRead = "read"
	ScopeScan = "scan"
)

// TokenResponse is returned when a token is minted
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// AuthError is an authentication failure with a stable code
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e AuthError) Error() string {
	return e.Message
}

var (
	ErrInvalidToken = AuthError{Code: "INVALID_TOKEN", Message: "invalid or expired token"}
	ErrTokenExpired = AuthError{Code: "TOKEN_EXPIRED", Message: "token has expired"}
	ErrUnauthorized = AuthError{Code: "UNAUTHORIZED", Message: "unauthorized access"}
	ErrForbidden    = AuthError{Code: "FORBIDDEN", Message: "access forbidden"}
	ErrEmptySecret  = AuthError{Code: "EMPTY_SECRET", Message: "jwt secret is empty"}
)
