package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mealmcp/pkg/logging"
)

// Store errors. Callers translate these into OAuth protocol errors at the
// boundary.
var (
	ErrTokenNotFound = errors.New("token not found")
	ErrTokenExpired  = errors.New("token expired")
	ErrTokenRevoked  = errors.New("token revoked")
	ErrCodeConsumed  = errors.New("authorization code already consumed or unknown")
	ErrCodeExpired   = errors.New("authorization code expired")
)

// Store is the durable token store. Every mutation is committed before the
// caller proceeds, so live sessions survive a process restart.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore migrates the OAuth tables and returns the store.
func NewStore(db *gorm.DB) (*Store, error) {
	err := db.AutoMigrate(&Client{}, &AuthorizationCode{}, &Token{})
	if err != nil {
		return nil, fmt.Errorf("failed to migrate oauth tables: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// SaveClient persists a registered client.
func (s *Store) SaveClient(ctx context.Context, c *Client) error {
	return s.db.WithContext(ctx).Create(c).Error
}

// ClientByID looks up a registered client.
func (s *Store) ClientByID(ctx context.Context, id string) (*Client, error) {
	var c Client
	err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveCode persists an authorization code.
func (s *Store) SaveCode(ctx context.Context, code *AuthorizationCode) error {
	return s.db.WithContext(ctx).Create(code).Error
}

// ConsumeCode atomically deletes and returns an authorization code.
// Concurrent consumers race on the delete; exactly one sees the row
// disappear under its own transaction, so a code can never be spent twice.
func (s *Store) ConsumeCode(ctx context.Context, value string) (*AuthorizationCode, error) {
	var code AuthorizationCode
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&code, "code = ?", value).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCodeConsumed
			}
			return err
		}

		res := tx.Delete(&AuthorizationCode{}, "code = ?", value)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrCodeConsumed
		}

		if code.ExpiresAt <= s.now().Unix() {
			return ErrCodeExpired
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &code, nil
}

// SaveToken inserts or updates a token, idempotent on the token value.
func (s *Store) SaveToken(ctx context.Context, t *Token) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "value"}},
		DoUpdates: clause.AssignmentColumns([]string{"kind", "user_id", "client_id", "scope", "issued_at", "expires_at", "revoked"}),
	}).Create(t).Error
}

// Lookup returns an active token by value. Revoked and expired tokens fail
// with typed errors so callers can distinguish the cases.
func (s *Store) Lookup(ctx context.Context, value string) (*Token, error) {
	var t Token
	err := s.db.WithContext(ctx).First(&t, "value = ?", value).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	if t.Revoked {
		return nil, ErrTokenRevoked
	}
	if t.ExpiresAt <= s.now().Unix() {
		return nil, ErrTokenExpired
	}
	return &t, nil
}

// LoadActiveTokens returns all unexpired, unrevoked tokens. Called once at
// startup to report what survived the restart.
func (s *Store) LoadActiveTokens(ctx context.Context) ([]Token, error) {
	var tokens []Token
	err := s.db.WithContext(ctx).
		Where("expires_at > ? AND revoked = ?", s.now().Unix(), false).
		Find(&tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// Revoke marks a token unusable. Revoking an unknown value is not an error.
func (s *Store) Revoke(ctx context.Context, value string) error {
	return s.db.WithContext(ctx).Model(&Token{}).
		Where("value = ?", value).Update("revoked", true).Error
}

// RotateRefresh revokes a refresh token and persists its replacement pair
// inside one transaction. The revoke is conditional on the token still
// being live, so concurrent exchanges of the same value race on the row
// update and exactly one wins; the rest see ErrTokenRevoked.
func (s *Store) RotateRefresh(ctx context.Context, oldValue string, access, refresh *Token) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Token{}).
			Where("value = ? AND kind = ? AND revoked = ?", oldValue, KindRefresh, false).
			Update("revoked", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrTokenRevoked
		}

		if err := tx.Create(access).Error; err != nil {
			return err
		}
		return tx.Create(refresh).Error
	})
}

// RevokeAllForUser revokes every token belonging to a user.
func (s *Store) RevokeAllForUser(ctx context.Context, userID int64) error {
	return s.db.WithContext(ctx).Model(&Token{}).
		Where("user_id = ?", userID).Update("revoked", true).Error
}

// PurgeExpired deletes expired codes and tokens, returning how many rows
// went away. Safe to run periodically or from an operator command.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	now := s.now().Unix()
	var total int64

	res := s.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&AuthorizationCode{})
	if res.Error != nil {
		return 0, res.Error
	}
	total += res.RowsAffected

	res = s.db.WithContext(ctx).Where("expires_at <= ? OR revoked = ?", now, true).Delete(&Token{})
	if res.Error != nil {
		return 0, res.Error
	}
	total += res.RowsAffected

	if total > 0 {
		logging.Info("OAuth", "Purged %d expired token rows", total)
	}
	return total, nil
}
