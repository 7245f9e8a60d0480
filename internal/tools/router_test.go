package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealmcp/internal/dispatcher"
)

func TestRouterUnknownTool(t *testing.T) {
	router := NewRouter(NewRegistry())

	res := router.Call(context.Background(), nil, "no_such_tool", Args{})
	assert.Equal(t, "error", res["status"])
	assert.Equal(t, "Unknown tool: no_such_tool", res.Message())
}

func TestRouterValidatesArguments(t *testing.T) {
	registry := NewRegistry(Descriptor{
		Name: "echo",
		Args: []ArgSpec{
			{Name: "text", Type: "string", Required: true},
			{Name: "count", Type: "integer"},
		},
		Handler: func(ctx context.Context, uc *dispatcher.UserContext, args Args) Result {
			return Success("text", args.String("text"))
		},
	})
	router := NewRouter(registry)
	ctx := context.Background()

	res := router.Call(ctx, nil, "echo", Args{})
	assert.Equal(t, "Missing required argument: text", res.Message())

	res = router.Call(ctx, nil, "echo", Args{"text": 42})
	assert.Equal(t, "Argument text must be of type string", res.Message())

	res = router.Call(ctx, nil, "echo", Args{"text": "hi", "count": 1.5})
	assert.Equal(t, "Argument count must be of type integer", res.Message())

	res = router.Call(ctx, nil, "echo", Args{"text": "hi", "count": float64(3)})
	require.False(t, res.IsError())
	assert.Equal(t, "hi", res["text"])
}

func TestRouterNilArgs(t *testing.T) {
	registry := NewRegistry(Descriptor{
		Name: "noop",
		Handler: func(ctx context.Context, uc *dispatcher.UserContext, args Args) Result {
			require.NotNil(t, args)
			return Success()
		},
	})

	res := NewRouter(registry).Call(context.Background(), nil, "noop", nil)
	assert.Equal(t, "success", res["status"])
}

func TestRouterEnforcesScope(t *testing.T) {
	registry := NewRegistry(
		Descriptor{
			Name:  "peek",
			Scope: ScopeRead,
			Handler: func(ctx context.Context, uc *dispatcher.UserContext, args Args) Result {
				return Success()
			},
		},
		Descriptor{
			Name:  "poke",
			Scope: ScopeWrite,
			Handler: func(ctx context.Context, uc *dispatcher.UserContext, args Args) Result {
				return Success()
			},
		},
	)
	router := NewRouter(registry)
	ctx := context.Background()

	readOnly := &dispatcher.UserContext{Scope: "read"}
	res := router.Call(ctx, readOnly, "peek", nil)
	require.False(t, res.IsError())

	res = router.Call(ctx, readOnly, "poke", nil)
	assert.Equal(t, "error", res["status"])
	assert.Equal(t, "Insufficient scope: poke requires write", res.Message())

	full := &dispatcher.UserContext{Scope: "read write"}
	res = router.Call(ctx, full, "poke", nil)
	require.False(t, res.IsError())

	// Unscoped credentials (local and token modes) see everything.
	res = router.Call(ctx, &dispatcher.UserContext{}, "poke", nil)
	require.False(t, res.IsError())
}

func TestRouterRecoversPanics(t *testing.T) {
	registry := NewRegistry(Descriptor{
		Name: "boom",
		Handler: func(ctx context.Context, uc *dispatcher.UserContext, args Args) Result {
			panic("handler bug")
		},
	})

	res := NewRouter(registry).Call(context.Background(), nil, "boom", Args{})
	assert.Equal(t, "error", res["status"])
	assert.Equal(t, "Tool execution failed: boom", res.Message())
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	assert.Panics(t, func() {
		NewRegistry(
			Descriptor{Name: "twice"},
			Descriptor{Name: "twice"},
		)
	})
}

func TestRegistryOrder(t *testing.T) {
	registry := NewRegistry(
		Descriptor{Name: "b"},
		Descriptor{Name: "a"},
		Descriptor{Name: "c"},
	)
	assert.Equal(t, []string{"b", "a", "c"}, registry.Names())

	all := registry.All()
	require.Len(t, all, 3)
	assert.Equal(t, "b", all[0].Name)
}
