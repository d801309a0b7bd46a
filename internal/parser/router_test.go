package parser

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedProvider struct {
	name      string
	available bool
	calls     int
	script    func(call int) *Response
}

func (s *scriptedProvider) Name() string    { return s.name }
func (s *scriptedProvider) Available() bool { return s.available }

func (s *scriptedProvider) Parse(context.Context, string, *ParseContext) *Response {
	s.calls++
	return s.script(s.calls)
}

func okResponse(provider string) *Response {
	return &Response{
		Success: true,
		Result:  &ParsedTransaction{Intent: IntentExpense, People: []string{}},
		Meta:    Metadata{Provider: provider},
	}
}

func failedResponse(provider string) *Response {
	return &Response{Success: false, Error: "boom", Meta: Metadata{Provider: provider}}
}

func newTestRouter(t *testing.T, now *time.Time, providers ...Provider) *Router {
	t.Helper()
	return NewRouter(providers, RouterConfig{
		Now: func() time.Time { return *now },
	}, nil, slog.Default())
}

func TestRouterReturnsFirstSuccess(t *testing.T) {
	now := time.Now()
	fast := &scriptedProvider{name: "fast", available: true, script: func(int) *Response { return okResponse("fast") }}
	slow := &scriptedProvider{name: "slow", available: true, script: func(int) *Response { return okResponse("slow") }}
	r := newTestRouter(t, &now, fast, slow)

	resp := r.Parse(context.Background(), "ăn sáng 30k", nil)
	require.True(t, resp.Success)
	assert.Equal(t, "fast", resp.Meta.Provider)
	assert.Equal(t, 0, slow.calls)
}

func TestRouterSkipsUnavailableAndFailsOver(t *testing.T) {
	now := time.Now()
	fast := &scriptedProvider{name: "fast", available: false, script: func(int) *Response { return okResponse("fast") }}
	accurate := &scriptedProvider{name: "accurate", available: true, script: func(int) *Response { return failedResponse("accurate") }}
	fallback := &scriptedProvider{name: "fallback", available: true, script: func(int) *Response { return okResponse("fallback") }}
	r := newTestRouter(t, &now, fast, accurate, fallback)

	resp := r.Parse(context.Background(), "x", nil)
	require.True(t, resp.Success)
	assert.Equal(t, "fallback", resp.Meta.Provider)
	assert.Equal(t, 0, fast.calls)
	assert.Equal(t, 1, accurate.calls)
}

func TestRouterCooldownAfterThreeFailures(t *testing.T) {
	now := time.Now()
	flaky := &scriptedProvider{name: "flaky", available: true, script: func(int) *Response { return failedResponse("flaky") }}
	backup := &scriptedProvider{name: "backup", available: true, script: func(int) *Response { return okResponse("backup") }}
	r := newTestRouter(t, &now, flaky, backup)

	for i := 0; i < 3; i++ {
		resp := r.Parse(context.Background(), "x", nil)
		require.True(t, resp.Success)
	}
	require.Equal(t, 3, flaky.calls)

	status := r.Status()
	require.Len(t, status, 2)
	assert.True(t, status[0].InCooldown)
	assert.Equal(t, 3, status[0].Failures)
	assert.Equal(t, now.Add(DefaultCooldown), status[0].CooldownUntil)

	// While cooling down the flaky provider is skipped entirely.
	r.Parse(context.Background(), "x", nil)
	assert.Equal(t, 3, flaky.calls)

	// After the window it becomes eligible again, counter intact.
	now = now.Add(DefaultCooldown + time.Second)
	r.Parse(context.Background(), "x", nil)
	assert.Equal(t, 4, flaky.calls)
	assert.Equal(t, 4, r.Status()[0].Failures)
}

func TestRouterSuccessResetsFailures(t *testing.T) {
	now := time.Now()
	flaky := &scriptedProvider{name: "flaky", available: true, script: func(call int) *Response {
		if call <= 2 {
			return failedResponse("flaky")
		}
		return okResponse("flaky")
	}}
	backup := &scriptedProvider{name: "backup", available: true, script: func(int) *Response { return okResponse("backup") }}
	r := newTestRouter(t, &now, flaky, backup)

	r.Parse(context.Background(), "x", nil)
	r.Parse(context.Background(), "x", nil)
	assert.Equal(t, 2, r.Status()[0].Failures)

	resp := r.Parse(context.Background(), "x", nil)
	require.True(t, resp.Success)
	assert.Equal(t, "flaky", resp.Meta.Provider)
	assert.Equal(t, 0, r.Status()[0].Failures)
	assert.False(t, r.Status()[0].InCooldown)
}

func TestRouterTerminalFailureWhenExhausted(t *testing.T) {
	now := time.Now()
	dead := &scriptedProvider{name: "dead", available: false, script: func(int) *Response { return nil }}
	r := newTestRouter(t, &now, dead)

	resp := r.Parse(context.Background(), "x", nil)
	require.False(t, resp.Success)
	assert.Equal(t, "router", resp.Meta.Provider)
	assert.NotEmpty(t, resp.Error)
}
