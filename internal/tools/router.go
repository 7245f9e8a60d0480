package tools

import (
	"context"
	"runtime/debug"
	"strings"

	"mealmcp/internal/dispatcher"
	"mealmcp/pkg/logging"
)

// Router dispatches named tool calls against a registry. All failure modes
// come back as error envelopes; callers never see a panic or a raw error.
type Router struct {
	registry *Registry
}

// NewRouter wraps a registry.
func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

// Registry returns the underlying registry, for transports that need to
// advertise the tool list.
func (r *Router) Registry() *Registry {
	return r.registry
}

// Call looks up a tool, validates its arguments, and invokes the handler.
func (r *Router) Call(ctx context.Context, uc *dispatcher.UserContext, name string, args Args) (result Result) {
	desc, ok := r.registry.Get(name)
	if !ok {
		return Errorf("Unknown tool: %s", name)
	}
	if uc != nil && !scopeAllows(uc.Scope, desc.Scope) {
		return Errorf("Insufficient scope: %s requires %s", name, desc.Scope)
	}

	if args == nil {
		args = Args{}
	}
	if bad := validateArgs(desc, args); bad != nil {
		return bad
	}

	// Handler faults are logged with full context and surfaced as a
	// generic envelope; remote callers never see internals.
	defer func() {
		if rec := recover(); rec != nil {
			logging.Error("Tools", nil, "Tool %s panicked with args %v: %v\n%s",
				name, args, rec, debug.Stack())
			result = Errorf("Tool execution failed: %s", name)
		}
	}()

	return desc.Handler(ctx, uc, args)
}

// scopeAllows checks a space-separated scope grant against a tool's
// required scope. An empty grant means the credential is not
// scope-limited: local and token modes, and tokens issued without an
// explicit scope, get the full tool surface.
func scopeAllows(granted, required string) bool {
	if granted == "" || required == "" {
		return true
	}
	for _, scope := range strings.Fields(granted) {
		if scope == required {
			return true
		}
	}
	return false
}

func validateArgs(desc *Descriptor, args Args) Result {
	for _, spec := range desc.Args {
		value, present := args[spec.Name]
		if !present {
			if spec.Required {
				return Errorf("Missing required argument: %s", spec.Name)
			}
			continue
		}
		if !matchesType(value, spec.Type) {
			return Errorf("Argument %s must be of type %s", spec.Name, spec.Type)
		}
	}
	return nil
}
