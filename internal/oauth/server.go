package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"mealmcp/internal/auth"
	"mealmcp/pkg/logging"
)

// ScopesSupported are the scopes this server understands. Tokens issued
// without an explicit scope get the full set.
var ScopesSupported = []string{"read", "write"}

const codeLifetime = 10 * time.Minute

// Config carries the issuance parameters for the authorization server.
type Config struct {
	// Issuer is the public base URL, used verbatim in discovery metadata.
	Issuer string
	// AccessTTL is the access token lifetime.
	AccessTTL time.Duration
	// RefreshTTL is the refresh token lifetime.
	RefreshTTL time.Duration
}

// Server implements the OAuth 2.1 authorization-code + PKCE flows on top of
// the durable token store. Refresh tokens rotate on use: exchanging one
// revokes it and issues a replacement.
type Server struct {
	cfg   Config
	store *Store
	users *auth.Store
	now   func() time.Time
}

// NewServer wires the authorization server.
func NewServer(cfg Config, store *Store, users *auth.Store) *Server {
	return &Server{cfg: cfg, store: store, users: users, now: time.Now}
}

// Metadata returns the RFC 8414 discovery document.
func (s *Server) Metadata() Metadata {
	return Metadata{
		Issuer:                            s.cfg.Issuer,
		AuthorizationEndpoint:             s.cfg.Issuer + "/authorize",
		TokenEndpoint:                     s.cfg.Issuer + "/token",
		RegistrationEndpoint:              s.cfg.Issuer + "/register",
		ScopesSupported:                   ScopesSupported,
		ResponseTypesSupported:            []string{"code"},
		GrantTypesSupported:               []string{"authorization_code", "refresh_token"},
		CodeChallengeMethodsSupported:     []string{"S256"},
		TokenEndpointAuthMethodsSupported: []string{"none"},
	}
}

// ProtectedResourceMetadata returns the RFC 9728 resource document.
func (s *Server) ProtectedResourceMetadata() ProtectedResourceMetadata {
	return ProtectedResourceMetadata{
		Resource:               s.cfg.Issuer,
		AuthorizationServers:   []string{s.cfg.Issuer},
		ScopesSupported:        ScopesSupported,
		BearerMethodsSupported: []string{"header"},
	}
}

// RegisterClient handles RFC 7591 dynamic registration. Public clients get
// no secret; every client must bring at least one redirect URI.
func (s *Server) RegisterClient(ctx context.Context, name string, redirectURIs []string) (*Client, error) {
	if len(redirectURIs) == 0 {
		return nil, NewError(ErrorInvalidRedirectURI, "at least one redirect_uri is required")
	}
	for _, uri := range redirectURIs {
		parsed, err := url.Parse(uri)
		if err != nil || parsed.Scheme == "" {
			return nil, NewError(ErrorInvalidRedirectURI, "redirect_uri %q is not an absolute URL", uri)
		}
	}
	if name == "" {
		name = "unnamed client"
	}

	client := &Client{
		ID:           uuid.NewString(),
		Name:         name,
		RedirectURIs: redirectURIs,
	}
	if err := s.store.SaveClient(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to persist client: %w", err)
	}

	logging.Info("OAuth", "Registered client %s (%s)", client.ID, name)
	return client, nil
}

// ValidateAuthorizeRequest checks the /authorize query parameters against
// the registered client. PKCE with S256 is mandatory.
func (s *Server) ValidateAuthorizeRequest(ctx context.Context, q url.Values) (*AuthorizeRequest, error) {
	if rt := q.Get("response_type"); rt != "code" {
		return nil, NewError(ErrorInvalidRequest, "response_type must be \"code\", got %q", rt)
	}

	clientID := q.Get("client_id")
	if clientID == "" {
		return nil, NewError(ErrorInvalidRequest, "client_id is required")
	}
	client, err := s.store.ClientByID(ctx, clientID)
	if err != nil {
		return nil, NewError(ErrorInvalidClient, "unknown client %q", clientID)
	}

	redirectURI := q.Get("redirect_uri")
	if redirectURI == "" || !client.RedirectURIAllowed(redirectURI) {
		return nil, NewError(ErrorInvalidRequest, "redirect_uri is missing or not registered for this client")
	}

	challenge := q.Get("code_challenge")
	if challenge == "" {
		return nil, NewError(ErrorInvalidRequest, "code_challenge is required")
	}
	if method := q.Get("code_challenge_method"); method != "S256" {
		return nil, NewError(ErrorInvalidRequest, "code_challenge_method must be S256")
	}

	return &AuthorizeRequest{
		ClientID:      clientID,
		RedirectURI:   redirectURI,
		Scope:         q.Get("scope"),
		State:         q.Get("state"),
		CodeChallenge: challenge,
	}, nil
}

// IssueCode mints an authorization code for an authenticated user and
// returns the redirect URL carrying it.
func (s *Server) IssueCode(ctx context.Context, req *AuthorizeRequest, userID int64) (string, error) {
	value, err := randomToken()
	if err != nil {
		return "", err
	}

	code := &AuthorizationCode{
		Code:          value,
		ClientID:      req.ClientID,
		UserID:        userID,
		RedirectURI:   req.RedirectURI,
		CodeChallenge: req.CodeChallenge,
		Scope:         req.Scope,
		ExpiresAt:     s.now().Add(codeLifetime).Unix(),
	}
	if err := s.store.SaveCode(ctx, code); err != nil {
		return "", fmt.Errorf("failed to persist authorization code: %w", err)
	}

	redirect, err := url.Parse(req.RedirectURI)
	if err != nil {
		return "", err
	}
	q := redirect.Query()
	q.Set("code", value)
	if req.State != "" {
		q.Set("state", req.State)
	}
	redirect.RawQuery = q.Encode()

	logging.Debug("OAuth", "Issued authorization code for user %d, client %s", userID, req.ClientID)
	return redirect.String(), nil
}

// Exchange handles the token endpoint for both grant types. Protocol
// failures come back as *Error; anything else is an internal fault.
func (s *Server) Exchange(ctx context.Context, form url.Values) (*TokenResponse, error) {
	switch grant := form.Get("grant_type"); grant {
	case "authorization_code":
		return s.exchangeCode(ctx, form)
	case "refresh_token":
		return s.exchangeRefresh(ctx, form)
	default:
		return nil, NewError(ErrorUnsupportedGrantType, "unsupported grant_type %q", grant)
	}
}

func (s *Server) exchangeCode(ctx context.Context, form url.Values) (*TokenResponse, error) {
	value := form.Get("code")
	verifier := form.Get("code_verifier")
	clientID := form.Get("client_id")
	redirectURI := form.Get("redirect_uri")
	if value == "" || verifier == "" || clientID == "" || redirectURI == "" {
		return nil, NewError(ErrorInvalidRequest, "code, code_verifier, client_id and redirect_uri are required")
	}

	code, err := s.store.ConsumeCode(ctx, value)
	if err != nil {
		logging.Warn("OAuth", "Code exchange rejected: %v", err)
		return nil, NewError(ErrorInvalidGrant, "authorization code is invalid, expired, or already used")
	}

	if code.ClientID != clientID {
		return nil, NewError(ErrorInvalidGrant, "authorization code was issued to a different client")
	}
	if code.RedirectURI != redirectURI {
		return nil, NewError(ErrorInvalidGrant, "redirect_uri does not match the authorization request")
	}
	if !VerifyS256(verifier, code.CodeChallenge) {
		logging.Warn("OAuth", "PKCE verification failed for client %s", clientID)
		return nil, NewError(ErrorInvalidGrant, "PKCE verification failed")
	}

	return s.issueTokenPair(ctx, code.UserID, code.ClientID, code.Scope)
}

func (s *Server) exchangeRefresh(ctx context.Context, form url.Values) (*TokenResponse, error) {
	value := form.Get("refresh_token")
	clientID := form.Get("client_id")
	if value == "" || clientID == "" {
		return nil, NewError(ErrorInvalidRequest, "refresh_token and client_id are required")
	}

	token, err := s.store.Lookup(ctx, value)
	if err != nil {
		logging.Warn("OAuth", "Refresh rejected: %v", err)
		return nil, NewError(ErrorInvalidGrant, "refresh token is invalid or expired")
	}
	if token.Kind != KindRefresh {
		return nil, NewError(ErrorInvalidGrant, "token is not a refresh token")
	}
	if token.ClientID != clientID {
		return nil, NewError(ErrorInvalidGrant, "refresh token belongs to a different client")
	}

	access, refresh, resp, err := s.mintTokenPair(token.UserID, token.ClientID, token.Scope)
	if err != nil {
		return nil, err
	}
	// Revoking the old token and persisting its replacement share one
	// transaction; a concurrent exchange of the same value mints nothing.
	if err := s.store.RotateRefresh(ctx, value, access, refresh); err != nil {
		if errors.Is(err, ErrTokenRevoked) {
			logging.Warn("OAuth", "Refresh rejected: token already rotated")
			return nil, NewError(ErrorInvalidGrant, "refresh token is invalid or expired")
		}
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	logging.Info("OAuth", "Issued token pair for user %d, client %s", token.UserID, token.ClientID)
	return resp, nil
}

func (s *Server) issueTokenPair(ctx context.Context, userID int64, clientID, scope string) (*TokenResponse, error) {
	access, refresh, resp, err := s.mintTokenPair(userID, clientID, scope)
	if err != nil {
		return nil, err
	}

	if err := s.store.SaveToken(ctx, access); err != nil {
		return nil, fmt.Errorf("failed to persist access token: %w", err)
	}
	if err := s.store.SaveToken(ctx, refresh); err != nil {
		return nil, fmt.Errorf("failed to persist refresh token: %w", err)
	}

	logging.Info("OAuth", "Issued token pair for user %d, client %s", userID, clientID)
	return resp, nil
}

// mintTokenPair builds a fresh access and refresh token without touching
// the store, so callers choose how the pair is persisted.
func (s *Server) mintTokenPair(userID int64, clientID, scope string) (*Token, *Token, *TokenResponse, error) {
	accessValue, err := randomToken()
	if err != nil {
		return nil, nil, nil, err
	}
	refreshValue, err := randomToken()
	if err != nil {
		return nil, nil, nil, err
	}

	now := s.now()
	access := &Token{
		Value:     accessValue,
		Kind:      KindAccess,
		UserID:    userID,
		ClientID:  clientID,
		Scope:     scope,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.cfg.AccessTTL).Unix(),
	}
	refresh := &Token{
		Value:     refreshValue,
		Kind:      KindRefresh,
		UserID:    userID,
		ClientID:  clientID,
		Scope:     scope,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.cfg.RefreshTTL).Unix(),
	}
	resp := &TokenResponse{
		AccessToken:  accessValue,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.cfg.AccessTTL.Seconds()),
		RefreshToken: refreshValue,
		Scope:        scope,
	}
	return access, refresh, resp, nil
}

// ValidateAccessToken resolves a bearer token to its owning user.
func (s *Server) ValidateAccessToken(ctx context.Context, value string) (*Token, error) {
	token, err := s.store.Lookup(ctx, value)
	if err != nil {
		return nil, err
	}
	if token.Kind != KindAccess {
		return nil, ErrTokenNotFound
	}
	return token, nil
}

// Store exposes the underlying token store for maintenance commands.
func (s *Server) Store() *Store { return s.store }
