package mcpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealmcp/internal/config"
	"mealmcp/internal/dispatcher"
	"mealmcp/internal/pantry"
	"mealmcp/internal/tools"
)

func newTestServer(t *testing.T, mode, adminToken string) *Server {
	t.Helper()
	f, err := pantry.NewFactory(context.Background(), pantry.BackendSQLite,
		filepath.Join(t.TempDir(), "pantry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	cfg := &config.Config{
		Transport:  config.TransportStreamableHTTP,
		Mode:       mode,
		Host:       "localhost",
		Port:       8000,
		AdminToken: adminToken,
	}
	d := dispatcher.New(mode, adminToken, f, nil, nil)
	return New(cfg, d, tools.NewRouter(tools.DefaultRegistry()), nil)
}

func TestToolInputSchema(t *testing.T) {
	schema := toolInputSchema([]tools.ArgSpec{
		{Name: "name", Type: "string", Description: "Recipe name", Required: true},
		{Name: "days", Type: "integer"},
		{Name: "ingredients", Type: "array", Required: true},
	})

	assert.Equal(t, "object", schema.Type)
	assert.Equal(t, []string{"name", "ingredients"}, schema.Required)

	name := schema.Properties["name"].(map[string]interface{})
	assert.Equal(t, "string", name["type"])
	assert.Equal(t, "Recipe name", name["description"])

	ingredients := schema.Properties["ingredients"].(map[string]interface{})
	assert.NotNil(t, ingredients["items"])
}

func TestServerToolsCoverRegistry(t *testing.T) {
	s := newTestServer(t, config.ModeLocal, "")

	serverTools := s.serverTools()
	names := s.router.Registry().Names()
	require.Len(t, serverTools, len(names))
	for i, tool := range serverTools {
		assert.Equal(t, names[i], tool.Tool.Name)
		assert.NotNil(t, tool.Handler)
	}
}

func TestBearerIntoContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer tok-123")

	ctx := bearerIntoContext(context.Background(), req)
	assert.Equal(t, "tok-123", bearerFromContext(ctx))

	assert.Equal(t, "", bearerFromContext(context.Background()))
}

func TestRequireAuthLocalPassesThrough(t *testing.T) {
	s := newTestServer(t, config.ModeLocal, "")

	called := false
	h := s.requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))
	assert.True(t, called)
}

func TestRequireAuthTokenMode(t *testing.T) {
	s := newTestServer(t, config.ModeToken, "s3cret")

	h := s.requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAuthOAuthChallenges(t *testing.T) {
	s := newTestServer(t, config.ModeOAuth, "")

	h := s.requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), `Bearer realm=`)
}

func TestToolHandlerReturnsEnvelope(t *testing.T) {
	s := newTestServer(t, config.ModeLocal, "")

	handler := s.createToolHandler("list_units")
	res, err := handler(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	require.False(t, res.IsError)

	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, `"status":"success"`)
	assert.Contains(t, text.Text, "Teaspoon")
}

func TestToolHandlerErrorEnvelope(t *testing.T) {
	s := newTestServer(t, config.ModeLocal, "")

	handler := s.createToolHandler("get_recipe")
	res, err := handler(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: map[string]interface{}{"recipe_name": "Nonexistent"},
		},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestStartRejectsUnknownTransport(t *testing.T) {
	s := newTestServer(t, config.ModeLocal, "")
	s.cfg.Transport = "carrier-pigeon"

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported transport")
}
