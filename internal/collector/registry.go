// File: internal/collector/registry.go
package collector

import (
	"context"

	"go.uber.org/zap"
)

// Registry holds an ordered set of collectors sharing one visit lifecycle.
// A collector failing any hook is logged and skipped; it never aborts its
// siblings or the visit.
type Registry struct {
	collectors []Collector
	log        *zap.Logger
}

// NewRegistry builds a registry. Order is preserved: hooks run over the
// collectors in registration order.
func NewRegistry(log *zap.Logger, collectors ...Collector) *Registry {
	return &Registry{
		collectors: collectors,
		log:        log.Named("collectors"),
	}
}

// Collectors returns the registered collectors in order.
func (r *Registry) Collectors() []Collector { return r.collectors }

// InitAll runs Init on every collector.
func (r *Registry) InitAll(ctx context.Context, opts InitOptions) {
	for _, c := range r.collectors {
		if err := c.Init(ctx, opts); err != nil {
			r.log.Warn("collector init failed",
				zap.String("collector", c.ID()), zap.Error(err))
		}
	}
}

// AddTargetAll runs AddTarget on every collector for one browsing context.
func (r *Registry) AddTargetAll(ctx context.Context, t *TargetHandle) {
	for _, c := range r.collectors {
		if err := c.AddTarget(ctx, t); err != nil {
			r.log.Warn("collector addTarget failed",
				zap.String("collector", c.ID()),
				zap.String("target", string(t.ID)),
				zap.Error(err))
		}
	}
}

// AddListenerAll runs AddListener on every collector for a pop-up page
// context. Pop-ups never go through AddTargetAll: they are disclosure or
// landing tabs, not independent crawl targets.
func (r *Registry) AddListenerAll(ctx context.Context, t *TargetHandle) {
	for _, c := range r.collectors {
		if err := c.AddListener(ctx, t); err != nil {
			r.log.Warn("collector addListener failed",
				zap.String("collector", c.ID()),
				zap.String("target", string(t.ID)),
				zap.Error(err))
		}
	}
}

// PostLoadAll runs PostLoad on every collector.
func (r *Registry) PostLoadAll(ctx context.Context) {
	for _, c := range r.collectors {
		if err := c.PostLoad(ctx); err != nil {
			r.log.Warn("collector postLoad failed",
				zap.String("collector", c.ID()), zap.Error(err))
		}
	}
}

// DataAll collects every collector's payload keyed by collector ID. A failing
// collector contributes no entry.
func (r *Registry) DataAll(ctx context.Context) map[string]any {
	out := make(map[string]any, len(r.collectors))
	for _, c := range r.collectors {
		data, err := c.GetData(ctx)
		if err != nil {
			r.log.Warn("collector getData failed",
				zap.String("collector", c.ID()), zap.Error(err))
			continue
		}
		out[c.ID()] = data
	}
	return out
}
