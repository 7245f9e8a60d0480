package tools

import (
	"context"
	"fmt"

	"mealmcp/internal/dispatcher"
)

// Result is the normalized tool envelope. Every tool call produces one,
// with "status" set to "success" or "error".
type Result map[string]interface{}

// Success builds a success envelope from key/value pairs.
func Success(kv ...interface{}) Result {
	res := Result{"status": "success"}
	for i := 0; i+1 < len(kv); i += 2 {
		if key, ok := kv[i].(string); ok {
			res[key] = kv[i+1]
		}
	}
	return res
}

// Errorf builds an error envelope with a formatted message.
func Errorf(format string, args ...interface{}) Result {
	return Result{"status": "error", "message": fmt.Sprintf(format, args...)}
}

// IsError reports whether a result is an error envelope.
func (r Result) IsError() bool {
	return r["status"] == "error"
}

// Message returns the envelope message, if any.
func (r Result) Message() string {
	msg, _ := r["message"].(string)
	return msg
}

// ArgSpec describes one named argument of a tool, mirroring a JSON Schema
// property.
type ArgSpec struct {
	Name        string
	Type        string // string, number, integer, boolean, array, object
	Description string
	Required    bool
}

// HandlerFunc executes a tool against an authenticated user context.
// Handlers return envelopes, never panic on bad input; the router guards
// against the rest.
type HandlerFunc func(ctx context.Context, uc *dispatcher.UserContext, args Args) Result

// OAuth scopes a tool can require. Read-only tools need "read", anything
// that mutates stored data needs "write".
const (
	ScopeRead  = "read"
	ScopeWrite = "write"
)

// Descriptor binds a tool name to its argument schema and handler.
type Descriptor struct {
	Name        string
	Description string
	Scope       string
	Args        []ArgSpec
	Handler     HandlerFunc
}

// Registry is an explicit, immutable-after-startup mapping from tool name
// to descriptor. Built once and passed to the router; no global
// registration side effects.
type Registry struct {
	order  []string
	byName map[string]*Descriptor
}

// NewRegistry builds a registry from descriptors. Duplicate names are a
// programming error and panic at startup.
func NewRegistry(descriptors ...Descriptor) *Registry {
	r := &Registry{byName: make(map[string]*Descriptor, len(descriptors))}
	for i := range descriptors {
		d := descriptors[i]
		if _, exists := r.byName[d.Name]; exists {
			panic(fmt.Sprintf("duplicate tool %q", d.Name))
		}
		r.byName[d.Name] = &d
		r.order = append(r.order, d.Name)
	}
	return r
}

// Get returns the descriptor for a tool name.
func (r *Registry) Get(name string) (*Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// All returns descriptors in registration order.
func (r *Registry) All() []*Descriptor {
	all := make([]*Descriptor, 0, len(r.order))
	for _, name := range r.order {
		all = append(all, r.byName[name])
	}
	return all
}
