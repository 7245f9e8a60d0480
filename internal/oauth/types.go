package oauth

import (
	"fmt"
	"time"
)

// OAuth 2.1 wire-level error codes (RFC 6749 §5.2, RFC 7591 §3.2.2).
const (
	ErrorInvalidRequest       = "invalid_request"
	ErrorInvalidClient        = "invalid_client"
	ErrorInvalidGrant         = "invalid_grant"
	ErrorUnsupportedGrantType = "unsupported_grant_type"
	ErrorInvalidRedirectURI   = "invalid_redirect_uri"
	ErrorServerError          = "server_error"
)

// Error is an OAuth protocol error, serialized on the wire as
// {"error": ..., "error_description": ...}.
type Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *Error) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// NewError builds an OAuth protocol error.
func NewError(code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Description: fmt.Sprintf(format, args...)}
}

// Token kinds persisted in the store.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

// Client is a dynamically registered OAuth client. Immutable after
// registration.
type Client struct {
	ID           string    `gorm:"type:text;primaryKey" json:"client_id"`
	Secret       string    `gorm:"type:text" json:"client_secret,omitempty"`
	Name         string    `gorm:"type:text;not null" json:"client_name"`
	RedirectURIs []string  `gorm:"type:text;serializer:json;not null" json:"redirect_uris"`
	CreatedAt    time.Time `json:"-"`
}

func (Client) TableName() string { return "oauth_clients" }

// RedirectURIAllowed reports whether uri was registered for this client.
func (c *Client) RedirectURIAllowed(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

// AuthorizationCode is a short-lived single-use credential bound to a PKCE
// challenge. Expiry is stored as epoch seconds.
type AuthorizationCode struct {
	Code          string `gorm:"type:text;primaryKey"`
	ClientID      string `gorm:"type:text;not null;index"`
	UserID        int64  `gorm:"not null"`
	RedirectURI   string `gorm:"type:text;not null"`
	CodeChallenge string `gorm:"type:text;not null"`
	Scope         string `gorm:"type:text"`
	ExpiresAt     int64  `gorm:"not null;index"`
	CreatedAt     time.Time
}

func (AuthorizationCode) TableName() string { return "oauth_codes" }

// Token is a persisted access or refresh token.
type Token struct {
	Value     string `gorm:"type:text;primaryKey"`
	Kind      string `gorm:"type:text;not null;index"`
	UserID    int64  `gorm:"not null;index"`
	ClientID  string `gorm:"type:text;not null"`
	Scope     string `gorm:"type:text"`
	IssuedAt  int64  `gorm:"not null"`
	ExpiresAt int64  `gorm:"not null;index"`
	Revoked   bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
}

func (Token) TableName() string { return "oauth_tokens" }

// Metadata is the RFC 8414 authorization server metadata document.
type Metadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RegistrationEndpoint              string   `json:"registration_endpoint"`
	ScopesSupported                   []string `json:"scopes_supported"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
}

// ProtectedResourceMetadata is the RFC 9728 protected resource metadata
// document. The MCP endpoints are the protected resource; this server is
// also their authorization server.
type ProtectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers"`
	ScopesSupported        []string `json:"scopes_supported"`
	BearerMethodsSupported []string `json:"bearer_methods_supported"`
}

// TokenResponse is the successful token endpoint response.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// AuthorizeRequest is a validated set of /authorize query parameters.
type AuthorizeRequest struct {
	ClientID      string
	RedirectURI   string
	Scope         string
	State         string
	CodeChallenge string
}
