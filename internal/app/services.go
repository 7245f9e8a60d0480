package app

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mealmcp/internal/auth"
	"mealmcp/internal/config"
	"mealmcp/internal/dispatcher"
	"mealmcp/internal/mcpserver"
	"mealmcp/internal/oauth"
	"mealmcp/internal/pantry"
	"mealmcp/internal/rest"
	"mealmcp/internal/tools"
	"mealmcp/pkg/logging"
)

// Transport is the common lifecycle of the MCP and REST servers.
type Transport interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Services holds every initialized component of a running instance.
// In local and token modes the auth and OAuth fields stay nil.
type Services struct {
	Config     *config.Config
	Factory    *pantry.Factory
	Users      *auth.Store
	OAuthStore *oauth.Store
	OAuth      *oauth.Server
	Dispatcher *dispatcher.Dispatcher
	Router     *tools.Router
	Server     Transport

	authDB *gorm.DB
}

// InitializeServices wires storage, authentication, and the configured
// transport together.
func InitializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	factory, err := pantry.NewFactory(ctx, cfg.Database.Backend, cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize pantry storage: %w", err)
	}

	s := &Services{
		Config:  cfg,
		Factory: factory,
		Router:  tools.NewRouter(tools.DefaultRegistry()),
	}

	var oauthHandler *oauth.Handler
	if cfg.Mode == config.ModeOAuth {
		if err := s.initOAuth(cfg); err != nil {
			factory.Close()
			return nil, err
		}
		oauthHandler = oauth.NewHandler(s.OAuth, s.Users)
	}

	s.Dispatcher = dispatcher.New(cfg.Mode, cfg.AdminToken, factory, s.Users, s.OAuth)

	switch cfg.Transport {
	case config.TransportREST:
		s.Server = rest.New(cfg, s.Dispatcher, s.Router, oauthHandler)
	default:
		s.Server = mcpserver.New(cfg, s.Dispatcher, s.Router, oauthHandler)
	}

	logging.Info("Bootstrap", "Initialized services: transport=%s mode=%s backend=%s",
		cfg.Transport, cfg.Mode, cfg.Database.Backend)
	return s, nil
}

// initOAuth opens the auth database and builds the user store, token
// store, and authorization server. The SQLite backend shares the pantry
// database file; PostgreSQL shares the connection URL.
func (s *Services) initOAuth(cfg *config.Config) error {
	db, err := OpenAuthDB(cfg)
	if err != nil {
		return fmt.Errorf("failed to open auth database: %w", err)
	}
	s.authDB = db

	users, err := auth.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to initialize user store: %w", err)
	}
	store, err := oauth.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to initialize token store: %w", err)
	}

	s.Users = users
	s.OAuthStore = store
	s.OAuth = oauth.NewServer(oauth.Config{
		Issuer:     cfg.BaseURL(),
		AccessTTL:  cfg.TokenExpiry(),
		RefreshTTL: cfg.RefreshExpiry(),
	}, store, users)

	// Persisted tokens survive restarts; log what came back.
	tokens, err := store.LoadActiveTokens(context.Background())
	if err != nil {
		return fmt.Errorf("failed to load persisted tokens: %w", err)
	}
	logging.Info("Bootstrap", "Loaded %d active tokens from storage", len(tokens))
	return nil
}

// OpenAuthDB opens the database holding users, clients, codes, and
// tokens. Commands that manage tokens offline use it directly.
func OpenAuthDB(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	if cfg.Database.Backend == config.BackendPostgreSQL {
		return gorm.Open(postgres.Open(cfg.Database.URL), gormCfg)
	}
	return gorm.Open(sqlite.Open(cfg.Database.Path), gormCfg)
}

// Close releases storage handles. Transports are stopped separately.
func (s *Services) Close() error {
	var firstErr error
	if s.Factory != nil {
		if err := s.Factory.Close(); err != nil {
			firstErr = err
		}
	}
	if s.authDB != nil {
		if sqlDB, err := s.authDB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
