package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	slogecho "github.com/samber/slog-echo"

	"mealmcp/internal/config"
	"mealmcp/internal/dispatcher"
	"mealmcp/internal/oauth"
	"mealmcp/internal/tools"
	"mealmcp/pkg/logging"
)

const userContextKey = "mealmcp.user"

// Server exposes the tool router as a plain JSON REST API, for callers
// that do not speak MCP. Tool envelopes pass through unchanged.
type Server struct {
	cfg        *config.Config
	dispatcher *dispatcher.Dispatcher
	router     *tools.Router
	oauth      *oauth.Handler // nil unless oauth mode

	echo       *echo.Echo
	httpServer *http.Server
	mu         sync.Mutex
}

// New creates the REST server. The oauth handler may be nil; it is
// required in oauth mode and ignored otherwise.
func New(cfg *config.Config, d *dispatcher.Dispatcher, router *tools.Router, oauthHandler *oauth.Handler) *Server {
	s := &Server{
		cfg:        cfg,
		dispatcher: d,
		router:     router,
		oauth:      oauthHandler,
	}
	s.echo = s.buildEcho()
	return s
}

func (s *Server) buildEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(slogecho.New(logging.Logger()))
	e.Use(middleware.Recover())

	e.GET("/healthz", s.handleHealthz)
	e.GET("/api/tools", s.handleListTools)
	e.POST("/api/tools/:name", s.handleCallTool, s.authenticate)

	if s.oauth != nil {
		mux := http.NewServeMux()
		s.oauth.Register(mux)
		wrapped := echo.WrapHandler(mux)
		for _, path := range []string{
			"/.well-known/oauth-authorization-server",
			"/.well-known/oauth-protected-resource",
			"/register",
			"/authorize",
			"/signup",
			"/token",
		} {
			e.Any(path, wrapped)
		}
	}
	return e
}

// Handler returns the underlying HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start begins listening. Serve errors are logged from the background
// goroutine.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer != nil {
		return fmt.Errorf("rest server already started")
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	logging.Info("REST", "Starting REST server on %s", addr)

	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	httpServer := s.httpServer
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("REST", err, "HTTP server error")
		}
	}()
	return nil
}

// Stop shuts the server down, waiting up to five seconds for in-flight
// requests.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	httpServer := s.httpServer
	s.httpServer = nil
	s.mu.Unlock()

	if httpServer == nil {
		return fmt.Errorf("rest server not started")
	}
	logging.Info("REST", "Stopping REST server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// authenticate resolves the caller's user context from the bearer token
// and stashes it for the handler. Failure modes follow the transport
// contract: oauth mode answers with a WWW-Authenticate challenge, token
// mode with a bare 401.
func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		bearer := oauth.BearerFromHeader(c.Request().Header.Get("Authorization"))
		uc, err := s.dispatcher.Dispatch(c.Request().Context(), bearer)
		if err != nil {
			if s.cfg.Mode == config.ModeOAuth {
				c.Response().Header().Set("WWW-Authenticate",
					oauth.BuildWWWAuthenticate(s.cfg.BaseURL(), "invalid_token", "valid bearer token required"))
			}
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"error": "authentication_required",
			})
		}
		c.Set(userContextKey, uc)
		return next(c)
	}
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// toolInfo is the wire shape of one tool listing entry.
type toolInfo struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Args        []argInfo `json:"args"`
}

type argInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

func (s *Server) handleListTools(c echo.Context) error {
	descriptors := s.router.Registry().All()
	infos := make([]toolInfo, 0, len(descriptors))
	for _, desc := range descriptors {
		info := toolInfo{
			Name:        desc.Name,
			Description: desc.Description,
			Args:        []argInfo{},
		}
		for _, spec := range desc.Args {
			info.Args = append(info.Args, argInfo{
				Name:        spec.Name,
				Type:        spec.Type,
				Description: spec.Description,
				Required:    spec.Required,
			})
		}
		infos = append(infos, info)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"tools": infos})
}

func (s *Server) handleCallTool(c echo.Context) error {
	uc, _ := c.Get(userContextKey).(*dispatcher.UserContext)
	if uc == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "authentication_required",
		})
	}

	args := tools.Args{}
	if c.Request().ContentLength != 0 {
		if err := json.NewDecoder(c.Request().Body).Decode(&args); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "request body must be a JSON object",
			})
		}
	}

	result := s.router.Call(c.Request().Context(), uc, c.Param("name"), args)
	return c.JSON(http.StatusOK, result)
}
