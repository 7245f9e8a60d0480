package dispatcher

import (
	"context"
	"crypto/subtle"
	"errors"
	"sync"

	"mealmcp/internal/auth"
	"mealmcp/internal/config"
	"mealmcp/internal/oauth"
	"mealmcp/internal/pantry"
	"mealmcp/pkg/logging"
)

// ErrAuthenticationRequired means the caller presented no credential or an
// unusable one. Transports turn this into a friendly prompt or a 401, never
// a stack trace.
var ErrAuthenticationRequired = errors.New("authentication required")

// UserContext is the authenticated execution context handed to the tool
// router. One exists per user, created lazily and kept for the process
// lifetime. Scope is per-credential, not per-user: oauth dispatches hand
// out a copy of the cached context with the token's scope filled in.
type UserContext struct {
	UserID   int64
	Username string
	Scope    string
	Pantry   pantry.Manager
}

// Dispatcher resolves inbound credentials to a UserContext according to the
// configured mode.
//
//	local: no authentication, one shared context
//	token: a pre-shared admin token guards the shared context
//	oauth: bearer access tokens resolve to per-user contexts
type Dispatcher struct {
	mode       string
	adminToken string
	factory    *pantry.Factory
	users      *auth.Store
	oauth      *oauth.Server

	mu       sync.RWMutex
	contexts map[int64]*UserContext
}

// New builds a dispatcher. users and oauthServer may be nil in local mode.
func New(mode, adminToken string, factory *pantry.Factory, users *auth.Store, oauthServer *oauth.Server) *Dispatcher {
	return &Dispatcher{
		mode:       mode,
		adminToken: adminToken,
		factory:    factory,
		users:      users,
		oauth:      oauthServer,
		contexts:   make(map[int64]*UserContext),
	}
}

// Mode returns the configured authentication mode.
func (d *Dispatcher) Mode() string { return d.mode }

// Local returns the shared unauthenticated context used by the stdio
// transport and local mode.
func (d *Dispatcher) Local() *UserContext {
	return d.contextFor(0, "local")
}

// Dispatch resolves a bearer credential to an execution context.
func (d *Dispatcher) Dispatch(ctx context.Context, bearer string) (*UserContext, error) {
	switch d.mode {
	case config.ModeLocal:
		return d.Local(), nil

	case config.ModeToken:
		if bearer == "" || subtle.ConstantTimeCompare([]byte(bearer), []byte(d.adminToken)) != 1 {
			return nil, ErrAuthenticationRequired
		}
		return d.contextFor(0, "admin"), nil

	case config.ModeOAuth:
		if bearer == "" {
			return nil, ErrAuthenticationRequired
		}
		token, err := d.oauth.ValidateAccessToken(ctx, bearer)
		if err != nil {
			logging.Debug("Dispatcher", "Rejected bearer token: %v", err)
			return nil, ErrAuthenticationRequired
		}

		username := ""
		if d.users != nil {
			if user, err := d.users.ByID(ctx, token.UserID); err == nil {
				username = user.Username
			}
		}
		// Copy the cached context so concurrent requests with
		// differently-scoped tokens never race on one struct.
		request := *d.contextFor(token.UserID, username)
		request.Scope = token.Scope
		return &request, nil

	default:
		return nil, ErrAuthenticationRequired
	}
}

// contextFor returns the cached context for a user, creating it on first
// use. Contexts are never evicted.
func (d *Dispatcher) contextFor(userID int64, username string) *UserContext {
	d.mu.RLock()
	uc, ok := d.contexts[userID]
	d.mu.RUnlock()
	if ok {
		return uc
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if uc, ok := d.contexts[userID]; ok {
		return uc
	}

	var manager pantry.Manager
	if userID == 0 {
		manager = d.factory.Local()
	} else {
		manager = d.factory.ForUser(userID)
		// First contact with this user on a shared backend; make sure
		// their default units exist.
		if err := d.factory.SeedUser(context.Background(), userID); err != nil {
			logging.Error("Dispatcher", err, "Failed to seed units for user %d", userID)
		}
	}
	uc = &UserContext{
		UserID:   userID,
		Username: username,
		Pantry:   manager,
	}
	d.contexts[userID] = uc
	logging.Debug("Dispatcher", "Created context for user %d (%s)", userID, username)
	return uc
}
