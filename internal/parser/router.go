package parser

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"bot-chitieu/internal/metrics"
)

const (
	// DefaultFailureThreshold is how many consecutive failures put a
	// provider into cooldown.
	DefaultFailureThreshold = 3
	// DefaultCooldown is how long a tripped provider sits out.
	DefaultCooldown = 5 * time.Minute
)

// RouterConfig tunes the failover behaviour.
type RouterConfig struct {
	FailureThreshold int
	Cooldown         time.Duration
	// Now is injectable for cooldown-expiry tests. Defaults to time.Now.
	Now func() time.Time
}

// Router tries providers in priority order and demotes flaky ones behind a
// cooldown window. Health counters are fleet-wide, shared by all concurrent
// callers, so they live behind a mutex.
type Router struct {
	providers []Provider
	cfg       RouterConfig
	metrics   *metrics.Metrics
	logger    *slog.Logger

	mu     sync.Mutex
	health map[string]*providerHealth
}

type providerHealth struct {
	failures      int
	cooldownUntil time.Time
}

// ProviderStatus is one provider's health snapshot.
type ProviderStatus struct {
	Name          string    `json:"name"`
	Available     bool      `json:"available"`
	Failures      int       `json:"failures"`
	InCooldown    bool      `json:"in_cooldown"`
	CooldownUntil time.Time `json:"cooldown_until,omitzero"`
}

// NewRouter creates a router over providers in the given priority order.
func NewRouter(providers []Provider, cfg RouterConfig, m *metrics.Metrics, logger *slog.Logger) *Router {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Router{
		providers: providers,
		cfg:       cfg,
		metrics:   m,
		logger:    logger.With("component", "parser_router"),
		health:    make(map[string]*providerHealth),
	}
}

// Parse tries each provider in order, skipping unavailable or cooling-down
// ones, and returns the first successful envelope. The deterministic fallback
// never fails, so a terminal failure here means every provider was skipped.
func (r *Router) Parse(ctx context.Context, text string, pctx *ParseContext) *Response {
	for _, p := range r.providers {
		if !p.Available() {
			continue
		}
		if r.inCooldown(p.Name()) {
			continue
		}

		resp := p.Parse(ctx, text, pctx)
		if resp != nil && resp.Success {
			r.recordSuccess(p.Name())
			r.observe(resp)
			return resp
		}
		r.recordFailure(p.Name())
		r.observe(resp)
		errMsg := ""
		if resp != nil {
			errMsg = resp.Error
		}
		r.logger.Warn("provider parse failed", "provider", p.Name(), "error", errMsg)
	}

	r.logger.Error("all providers exhausted")
	if r.metrics != nil {
		r.metrics.Errors.WithLabelValues("router_exhausted").Inc()
	}
	return &Response{
		Success: false,
		Error:   "no provider could parse the message",
		Meta:    Metadata{Provider: "router"},
	}
}

// Status exposes per-provider health for observability collaborators.
func (r *Router) Status() []ProviderStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.cfg.Now()
	out := make([]ProviderStatus, 0, len(r.providers))
	for _, p := range r.providers {
		st := ProviderStatus{Name: p.Name(), Available: p.Available()}
		if h, ok := r.health[p.Name()]; ok {
			st.Failures = h.failures
			if now.Before(h.cooldownUntil) {
				st.InCooldown = true
				st.CooldownUntil = h.cooldownUntil
			}
		}
		out = append(out, st)
	}
	return out
}

func (r *Router) inCooldown(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.health[name]
	return ok && r.cfg.Now().Before(h.cooldownUntil)
}

func (r *Router) recordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.health[name]; ok {
		h.failures = 0
		h.cooldownUntil = time.Time{}
	}
}

// recordFailure bumps the consecutive-failure counter and, once it reaches
// the threshold, starts (or extends) the cooldown window. Cooldown expiry
// alone does not reset the counter; only a later success does.
func (r *Router) recordFailure(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.health[name]
	if !ok {
		h = &providerHealth{}
		r.health[name] = h
	}
	h.failures++
	if h.failures >= r.cfg.FailureThreshold {
		h.cooldownUntil = r.cfg.Now().Add(r.cfg.Cooldown)
	}
}

func (r *Router) observe(resp *Response) {
	if r.metrics == nil || resp == nil {
		return
	}
	status := "success"
	if !resp.Success {
		status = "failed"
	}
	r.metrics.ParseRequests.WithLabelValues(resp.Meta.Provider, status).Inc()
	r.metrics.ParseLatency.WithLabelValues(resp.Meta.Provider).Observe(resp.Meta.Latency.Seconds())
}
