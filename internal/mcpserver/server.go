package mcpserver

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"mealmcp/internal/config"
	"mealmcp/internal/dispatcher"
	"mealmcp/internal/oauth"
	"mealmcp/internal/tools"
	"mealmcp/pkg/logging"
)

const (
	serverName    = "mealmcp"
	serverVersion = "1.0.0"
)

// Server exposes the tool router over one MCP transport: stdio for local
// use, or SSE / streamable-http behind bearer authentication. In oauth
// mode the authorization endpoints are mounted on the same HTTP mux.
type Server struct {
	cfg        *config.Config
	dispatcher *dispatcher.Dispatcher
	router     *tools.Router
	oauth      *oauth.Handler // nil unless oauth mode

	mcp *server.MCPServer

	stdioServer *server.StdioServer
	httpServer  *http.Server

	ctx        context.Context
	cancelFunc context.CancelFunc
	mu         sync.Mutex
}

// New creates a server for the configured transport. The oauth handler
// may be nil; it is required in oauth mode and ignored otherwise.
func New(cfg *config.Config, d *dispatcher.Dispatcher, router *tools.Router, oauthHandler *oauth.Handler) *Server {
	return &Server{
		cfg:        cfg,
		dispatcher: d,
		router:     router,
		oauth:      oauthHandler,
	}
}

// Start brings up the configured transport. It returns once the
// transport is listening; serve errors are logged from the background
// goroutine.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mcp != nil {
		return fmt.Errorf("mcp server already started")
	}
	s.ctx, s.cancelFunc = context.WithCancel(ctx)

	s.mcp = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
	)
	s.mcp.AddTools(s.serverTools()...)
	logging.Info("MCPServer", "Registered %d tools", len(s.router.Registry().Names()))

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	switch s.cfg.Transport {
	case config.TransportStdio:
		logging.Info("MCPServer", "Starting MCP server with stdio transport")
		s.stdioServer = server.NewStdioServer(s.mcp)
		stdioServer := s.stdioServer
		go func() {
			if err := stdioServer.Listen(s.ctx, os.Stdin, os.Stdout); err != nil {
				logging.Error("MCPServer", err, "Stdio server error")
			}
		}()
		return nil

	case config.TransportSSE:
		logging.Info("MCPServer", "Starting MCP server with SSE transport on %s", addr)
		sseServer := server.NewSSEServer(
			s.mcp,
			server.WithBaseURL(s.cfg.BaseURL()),
			server.WithSSEEndpoint("/sse"),
			server.WithMessageEndpoint("/message"),
			server.WithKeepAlive(true),
			server.WithKeepAliveInterval(30*time.Second),
			server.WithSSEContextFunc(bearerIntoContext),
		)
		mux := s.newMux()
		mux.Handle("/sse", s.requireAuth(sseServer))
		mux.Handle("/message", s.requireAuth(sseServer))
		s.serveHTTP(addr, mux)
		return nil

	case config.TransportStreamableHTTP:
		logging.Info("MCPServer", "Starting MCP server with streamable-http transport on %s", addr)
		streamableServer := server.NewStreamableHTTPServer(
			s.mcp,
			server.WithHTTPContextFunc(bearerIntoContext),
		)
		mux := s.newMux()
		mux.Handle("/mcp", s.requireAuth(streamableServer))
		s.serveHTTP(addr, mux)
		return nil

	default:
		return fmt.Errorf("unsupported transport %q", s.cfg.Transport)
	}
}

// Stop shuts the transport down, waiting up to five seconds for
// in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.mcp == nil {
		s.mu.Unlock()
		return fmt.Errorf("mcp server not started")
	}
	logging.Info("MCPServer", "Stopping MCP server")

	cancelFunc := s.cancelFunc
	httpServer := s.httpServer
	s.mu.Unlock()

	if cancelFunc != nil {
		cancelFunc()
	}

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logging.Error("MCPServer", err, "Error shutting down HTTP server")
		}
	}
	// The stdio server stops on context cancellation.

	s.mu.Lock()
	s.mcp = nil
	s.stdioServer = nil
	s.httpServer = nil
	s.mu.Unlock()
	return nil
}

// newMux builds the shared HTTP mux, with the OAuth endpoints mounted
// when the server runs in oauth mode.
func (s *Server) newMux() *http.ServeMux {
	mux := http.NewServeMux()
	if s.oauth != nil {
		s.oauth.Register(mux)
	}
	return mux
}

func (s *Server) serveHTTP(addr string, handler http.Handler) {
	s.httpServer = &http.Server{Addr: addr, Handler: handler}
	httpServer := s.httpServer
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("MCPServer", err, "HTTP server error")
		}
	}()
}

// requireAuth rejects unauthenticated requests before they reach the
// MCP handler. Local mode passes everything through; token mode answers
// plain 401; oauth mode adds the WWW-Authenticate challenge so clients
// can discover the authorization server.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	if s.cfg.Mode == config.ModeLocal {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bearer := oauth.BearerFromHeader(r.Header.Get("Authorization"))
		if _, err := s.dispatcher.Dispatch(r.Context(), bearer); err != nil {
			logging.Debug("MCPServer", "Rejected unauthenticated request to %s", r.URL.Path)
			if s.cfg.Mode == config.ModeOAuth {
				oauth.Challenge(w, s.cfg.BaseURL(), "invalid_token", "valid bearer token required")
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":"authentication_required"}`)
			return
		}
		next.ServeHTTP(w, r)
	})
}
