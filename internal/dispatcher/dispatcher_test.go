package dispatcher

import (
	"context"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mealmcp/internal/auth"
	"mealmcp/internal/config"
	"mealmcp/internal/oauth"
	"mealmcp/internal/pantry"
)

func newTestFactory(t *testing.T) *pantry.Factory {
	t.Helper()
	f, err := pantry.NewFactory(context.Background(), pantry.BackendSQLite,
		filepath.Join(t.TempDir(), "pantry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestLocalModeSharesOneContext(t *testing.T) {
	d := New(config.ModeLocal, "", newTestFactory(t), nil, nil)

	a, err := d.Dispatch(context.Background(), "")
	require.NoError(t, err)
	b, err := d.Dispatch(context.Background(), "anything-at-all")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.NotNil(t, a.Pantry)
}

func TestTokenMode(t *testing.T) {
	d := New(config.ModeToken, "s3cret-admin-token", newTestFactory(t), nil, nil)

	uc, err := d.Dispatch(context.Background(), "s3cret-admin-token")
	require.NoError(t, err)
	assert.Equal(t, "admin", uc.Username)

	_, err = d.Dispatch(context.Background(), "wrong-token")
	assert.ErrorIs(t, err, ErrAuthenticationRequired)
	_, err = d.Dispatch(context.Background(), "")
	assert.ErrorIs(t, err, ErrAuthenticationRequired)
}

func newOAuthFixture(t *testing.T) (*oauth.Server, *auth.Store, string, int64) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "oauth.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	store, err := oauth.NewStore(db)
	require.NoError(t, err)
	users, err := auth.NewStore(db)
	require.NoError(t, err)

	srv := oauth.NewServer(oauth.Config{
		Issuer:     "http://localhost:8000",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	}, store, users)

	ctx := context.Background()
	user, err := users.Register(ctx, "alice", "alice@example.com", "hunter2hunter2", "en")
	require.NoError(t, err)
	client, err := srv.RegisterClient(ctx, "test", []string{"http://cb"})
	require.NoError(t, err)

	verifier, err := oauth.GenerateVerifier()
	require.NoError(t, err)
	req, err := srv.ValidateAuthorizeRequest(ctx, url.Values{
		"response_type":         {"code"},
		"client_id":             {client.ID},
		"redirect_uri":          {"http://cb"},
		"scope":                 {"read"},
		"code_challenge":        {oauth.ChallengeS256(verifier)},
		"code_challenge_method": {"S256"},
	})
	require.NoError(t, err)
	redirect, err := srv.IssueCode(ctx, req, user.ID)
	require.NoError(t, err)
	parsed, err := url.Parse(redirect)
	require.NoError(t, err)

	resp, err := srv.Exchange(ctx, url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {parsed.Query().Get("code")},
		"code_verifier": {verifier},
		"client_id":     {client.ID},
		"redirect_uri":  {"http://cb"},
	})
	require.NoError(t, err)
	return srv, users, resp.AccessToken, user.ID
}

func TestOAuthMode(t *testing.T) {
	srv, users, accessToken, userID := newOAuthFixture(t)
	d := New(config.ModeOAuth, "", newTestFactory(t), users, srv)

	uc, err := d.Dispatch(context.Background(), accessToken)
	require.NoError(t, err)
	assert.Equal(t, userID, uc.UserID)
	assert.Equal(t, "alice", uc.Username)
	assert.Equal(t, "read", uc.Scope)

	// Dispatches hand out per-request copies sharing one cached pantry;
	// the cached context itself never carries a token's scope.
	again, err := d.Dispatch(context.Background(), accessToken)
	require.NoError(t, err)
	assert.NotSame(t, uc, again)
	assert.Same(t, uc.Pantry, again.Pantry)
	assert.Empty(t, d.contexts[userID].Scope)

	_, err = d.Dispatch(context.Background(), "forged-token")
	assert.ErrorIs(t, err, ErrAuthenticationRequired)
	_, err = d.Dispatch(context.Background(), "")
	assert.ErrorIs(t, err, ErrAuthenticationRequired)
}

func TestContextCacheIsPerUser(t *testing.T) {
	d := New(config.ModeLocal, "", newTestFactory(t), nil, nil)

	local := d.Local()
	other := d.contextFor(42, "bob")
	assert.NotSame(t, local, other)
	assert.Same(t, other, d.contextFor(42, "bob"))
}
