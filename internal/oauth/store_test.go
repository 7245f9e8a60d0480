package oauth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T, path string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(openTestDB(t, filepath.Join(t.TempDir(), "oauth.db")))
	require.NoError(t, err)
	return store
}

func TestTokenSaveAndLookup(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Now()

	token := &Token{
		Value:     "tok-1",
		Kind:      KindAccess,
		UserID:    7,
		ClientID:  "client-a",
		Scope:     "read write",
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(time.Hour).Unix(),
	}
	require.NoError(t, store.SaveToken(ctx, token))

	got, err := store.Lookup(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.UserID)
	assert.Equal(t, "read write", got.Scope)

	_, err = store.Lookup(ctx, "nope")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestSaveTokenIdempotentOnValue(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Now()

	base := Token{Value: "tok-1", Kind: KindAccess, UserID: 1, ClientID: "c", IssuedAt: now.Unix(), ExpiresAt: now.Add(time.Hour).Unix()}
	require.NoError(t, store.SaveToken(ctx, &base))
	updated := base
	updated.ExpiresAt = now.Add(2 * time.Hour).Unix()
	require.NoError(t, store.SaveToken(ctx, &updated))

	got, err := store.Lookup(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, updated.ExpiresAt, got.ExpiresAt)
}

func TestLookupRejectsExpiredToken(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, store.SaveToken(ctx, &Token{
		Value: "tok-1", Kind: KindAccess, UserID: 1, ClientID: "c",
		IssuedAt: now.Unix(), ExpiresAt: now.Add(time.Hour).Unix(),
	}))

	// Advance the clock past expiry instead of sleeping.
	store.now = func() time.Time { return now.Add(2 * time.Hour) }
	_, err := store.Lookup(ctx, "tok-1")
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Now()

	require.NoError(t, store.SaveToken(ctx, &Token{
		Value: "tok-1", Kind: KindRefresh, UserID: 1, ClientID: "c",
		IssuedAt: now.Unix(), ExpiresAt: now.Add(time.Hour).Unix(),
	}))
	require.NoError(t, store.Revoke(ctx, "tok-1"))

	_, err := store.Lookup(ctx, "tok-1")
	assert.ErrorIs(t, err, ErrTokenRevoked)

	// Unknown values revoke quietly.
	assert.NoError(t, store.Revoke(ctx, "never-issued"))
}

func TestLoadActiveTokensSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "oauth.db")
	now := time.Now()

	store, err := NewStore(openTestDB(t, path))
	require.NoError(t, err)
	require.NoError(t, store.SaveToken(ctx, &Token{
		Value: "live", Kind: KindAccess, UserID: 1, ClientID: "c",
		IssuedAt: now.Unix(), ExpiresAt: now.Add(time.Hour).Unix(),
	}))
	require.NoError(t, store.SaveToken(ctx, &Token{
		Value: "dead", Kind: KindAccess, UserID: 1, ClientID: "c",
		IssuedAt: now.Add(-2 * time.Hour).Unix(), ExpiresAt: now.Add(-time.Hour).Unix(),
	}))

	// A second store over the same file stands in for a process restart.
	reopened, err := NewStore(openTestDB(t, path))
	require.NoError(t, err)

	active, err := reopened.LoadActiveTokens(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "live", active[0].Value)

	got, err := reopened.Lookup(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.UserID)
}

func TestConsumeCodeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Now()

	code := &AuthorizationCode{
		Code: "code-1", ClientID: "c", UserID: 5, RedirectURI: "http://cb",
		CodeChallenge: "chal", ExpiresAt: now.Add(10 * time.Minute).Unix(),
	}
	require.NoError(t, store.SaveCode(ctx, code))

	got, err := store.ConsumeCode(ctx, "code-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.UserID)

	_, err = store.ConsumeCode(ctx, "code-1")
	assert.ErrorIs(t, err, ErrCodeConsumed)
}

func TestConsumeCodeRejectsExpired(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, store.SaveCode(ctx, &AuthorizationCode{
		Code: "code-1", ClientID: "c", UserID: 5, RedirectURI: "http://cb",
		CodeChallenge: "chal", ExpiresAt: now.Add(10 * time.Minute).Unix(),
	}))

	store.now = func() time.Time { return now.Add(11 * time.Minute) }
	_, err := store.ConsumeCode(ctx, "code-1")
	assert.ErrorIs(t, err, ErrCodeExpired)
}

func TestPurgeExpired(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Now()

	require.NoError(t, store.SaveCode(ctx, &AuthorizationCode{
		Code: "old-code", ClientID: "c", UserID: 1, RedirectURI: "http://cb",
		CodeChallenge: "x", ExpiresAt: now.Add(-time.Minute).Unix(),
	}))
	require.NoError(t, store.SaveToken(ctx, &Token{
		Value: "old-token", Kind: KindAccess, UserID: 1, ClientID: "c",
		IssuedAt: now.Add(-2 * time.Hour).Unix(), ExpiresAt: now.Add(-time.Hour).Unix(),
	}))
	require.NoError(t, store.SaveToken(ctx, &Token{
		Value: "live-token", Kind: KindAccess, UserID: 1, ClientID: "c",
		IssuedAt: now.Unix(), ExpiresAt: now.Add(time.Hour).Unix(),
	}))

	purged, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), purged)

	_, err = store.Lookup(ctx, "live-token")
	assert.NoError(t, err)
}

func TestRotateRefreshSpendsTokenOnce(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Now()

	require.NoError(t, store.SaveToken(ctx, &Token{
		Value: "old-refresh", Kind: KindRefresh, UserID: 3, ClientID: "c",
		IssuedAt: now.Unix(), ExpiresAt: now.Add(time.Hour).Unix(),
	}))

	pair := func(prefix string) (*Token, *Token) {
		access := &Token{Value: prefix + "-access", Kind: KindAccess, UserID: 3, ClientID: "c",
			IssuedAt: now.Unix(), ExpiresAt: now.Add(time.Hour).Unix()}
		refresh := &Token{Value: prefix + "-refresh", Kind: KindRefresh, UserID: 3, ClientID: "c",
			IssuedAt: now.Unix(), ExpiresAt: now.Add(24 * time.Hour).Unix()}
		return access, refresh
	}

	access, refresh := pair("first")
	require.NoError(t, store.RotateRefresh(ctx, "old-refresh", access, refresh))

	// The old token is dead and the replacements are live.
	_, err := store.Lookup(ctx, "old-refresh")
	assert.ErrorIs(t, err, ErrTokenRevoked)
	_, err = store.Lookup(ctx, "first-access")
	assert.NoError(t, err)
	_, err = store.Lookup(ctx, "first-refresh")
	assert.NoError(t, err)

	// A second rotation of the same value wins nothing and writes nothing.
	access, refresh = pair("second")
	err = store.RotateRefresh(ctx, "old-refresh", access, refresh)
	assert.ErrorIs(t, err, ErrTokenRevoked)
	_, err = store.Lookup(ctx, "second-access")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestRotateRefreshIgnoresAccessTokens(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Now()

	require.NoError(t, store.SaveToken(ctx, &Token{
		Value: "acc", Kind: KindAccess, UserID: 3, ClientID: "c",
		IssuedAt: now.Unix(), ExpiresAt: now.Add(time.Hour).Unix(),
	}))

	err := store.RotateRefresh(ctx, "acc",
		&Token{Value: "a2", Kind: KindAccess, UserID: 3, ClientID: "c", IssuedAt: now.Unix(), ExpiresAt: now.Add(time.Hour).Unix()},
		&Token{Value: "r2", Kind: KindRefresh, UserID: 3, ClientID: "c", IssuedAt: now.Unix(), ExpiresAt: now.Add(time.Hour).Unix()})
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestRevokeAllForUser(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Now()

	for _, v := range []string{"a", "b"} {
		require.NoError(t, store.SaveToken(ctx, &Token{
			Value: v, Kind: KindAccess, UserID: 9, ClientID: "c",
			IssuedAt: now.Unix(), ExpiresAt: now.Add(time.Hour).Unix(),
		}))
	}
	require.NoError(t, store.SaveToken(ctx, &Token{
		Value: "other", Kind: KindAccess, UserID: 10, ClientID: "c",
		IssuedAt: now.Unix(), ExpiresAt: now.Add(time.Hour).Unix(),
	}))

	require.NoError(t, store.RevokeAllForUser(ctx, 9))
	_, err := store.Lookup(ctx, "a")
	assert.ErrorIs(t, err, ErrTokenRevoked)
	_, err = store.Lookup(ctx, "other")
	assert.NoError(t, err)
}
