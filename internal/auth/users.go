package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"mealmcp/pkg/logging"
)

// Errors returned by the user store.
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserExists         = errors.New("username or email already taken")
	ErrUserNotFound       = errors.New("user not found")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

const minPasswordLength = 8

// User is a registered account.
type User struct {
	ID                int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Username          string `gorm:"type:text;not null;uniqueIndex" json:"username"`
	Email             string `gorm:"type:text;not null;uniqueIndex" json:"email"`
	PasswordHash      string `gorm:"type:text;not null" json:"-"`
	IsActive          bool   `gorm:"not null;default:true" json:"is_active"`
	PreferredLanguage string `gorm:"type:text;not null;default:en" json:"preferred_language"`
	CreatedAt         time.Time `json:"created_at"`
}

func (User) TableName() string { return "users" }

// Store persists user accounts.
type Store struct {
	db *gorm.DB
}

// NewStore migrates the users table and returns the store.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&User{}); err != nil {
		return nil, fmt.Errorf("failed to migrate users table: %w", err)
	}
	return &Store{db: db}, nil
}

// Register creates a new account. The password is checked for minimum
// length and stored as an argon2id hash.
func (s *Store) Register(ctx context.Context, username, email, password, language string) (*User, error) {
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}
	if username == "" || email == "" {
		return nil, errors.New("username and email are required")
	}
	if language == "" {
		language = "en"
	}

	var count int64
	err := s.db.WithContext(ctx).Model(&User{}).
		Where("username = ? OR email = ?", username, email).Count(&count).Error
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrUserExists
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := User{
		Username:          username,
		Email:             email,
		PasswordHash:      hash,
		IsActive:          true,
		PreferredLanguage: language,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	logging.Info("Auth", "Registered user %s (id %d)", username, user.ID)
	return &user, nil
}

// Authenticate verifies a username and password, returning the account on
// success. Unknown users and wrong passwords are indistinguishable to the
// caller.
func (s *Store) Authenticate(ctx context.Context, username, password string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Burn a hash anyway so the timing does not reveal whether the
		// username exists.
		_, _ = VerifyPassword(password, dummyHash)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// ByID looks up an account by its ID.
func (s *Store) ByID(ctx context.Context, id int64) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ByUsername looks up an account by its username.
func (s *Store) ByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ChangePassword replaces the password after verifying the old one.
func (s *Store) ChangePassword(ctx context.Context, id int64, oldPassword, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return ErrWeakPassword
	}

	user, err := s.ByID(ctx, id)
	if err != nil {
		return err
	}
	ok, err := VerifyPassword(oldPassword, user.PasswordHash)
	if err != nil || !ok {
		return ErrInvalidCredentials
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(user).Update("password_hash", hash).Error
}

// dummyHash is verified against when the username does not exist, keeping
// the failure path roughly as slow as the success path.
var dummyHash = func() string {
	h, err := HashPassword("timing-equalizer")
	if err != nil {
		return ""
	}
	return h
}()
