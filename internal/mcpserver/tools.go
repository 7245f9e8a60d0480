package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"mealmcp/internal/oauth"
	"mealmcp/internal/tools"
	"mealmcp/pkg/logging"
)

type bearerKey struct{}

// bearerIntoContext carries the request's bearer token into the tool
// handler context. Installed as the HTTP and SSE context func.
func bearerIntoContext(ctx context.Context, r *http.Request) context.Context {
	token := oauth.BearerFromHeader(r.Header.Get("Authorization"))
	return context.WithValue(ctx, bearerKey{}, token)
}

func bearerFromContext(ctx context.Context) string {
	token, _ := ctx.Value(bearerKey{}).(string)
	return token
}

// serverTools converts every registry descriptor into an MCP tool with
// its JSON Schema and a handler bound to the shared router.
func (s *Server) serverTools() []server.ServerTool {
	descriptors := s.router.Registry().All()
	serverTools := make([]server.ServerTool, 0, len(descriptors))
	for _, desc := range descriptors {
		serverTools = append(serverTools, server.ServerTool{
			Tool: mcp.Tool{
				Name:        desc.Name,
				Description: desc.Description,
				InputSchema: toolInputSchema(desc.Args),
			},
			Handler: s.createToolHandler(desc.Name),
		})
	}
	return serverTools
}

// toolInputSchema converts argument specs to the JSON Schema object MCP
// clients expect.
func toolInputSchema(specs []tools.ArgSpec) mcp.ToolInputSchema {
	properties := make(map[string]interface{}, len(specs))
	required := []string{}
	for _, spec := range specs {
		property := map[string]interface{}{
			"type":        spec.Type,
			"description": spec.Description,
		}
		if spec.Type == "array" {
			property["items"] = map[string]interface{}{"type": "object"}
		}
		properties[spec.Name] = property
		if spec.Required {
			required = append(required, spec.Name)
		}
	}
	return mcp.ToolInputSchema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}

// createToolHandler wraps a router call in an MCP-compatible handler.
// The envelope is returned as JSON text either way; envelope errors also
// set the MCP error flag.
func (s *Server) createToolHandler(toolName string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		uc, err := s.dispatcher.Dispatch(ctx, bearerFromContext(ctx))
		if err != nil {
			return mcp.NewToolResultError("Authentication required"), nil
		}

		args := make(map[string]interface{})
		if req.Params.Arguments != nil {
			if argsMap, ok := req.Params.Arguments.(map[string]interface{}); ok {
				args = argsMap
			}
		}

		result := s.router.Call(ctx, uc, toolName, tools.Args(args))
		payload, err := json.Marshal(result)
		if err != nil {
			logging.Error("MCPServer", err, "Failed to encode result of %s", toolName)
			return mcp.NewToolResultError("Internal encoding error"), nil
		}
		if result.IsError() {
			return mcp.NewToolResultError(string(payload)), nil
		}
		return mcp.NewToolResultText(string(payload)), nil
	}
}
