// File: internal/collector/collector.go

// Package collector defines the lifecycle contract shared by all per-visit
// data collectors. The crawler drives every registered collector through the
// same sequence: Init before navigation, AddTarget for each browsing context
// the browser reports, AddListener for pop-up tabs, PostLoad once the primary
// page has settled, and GetData at the end of the visit.
package collector

import (
	"context"

	"github.com/chromedp/cdproto/target"
	"go.uber.org/zap"
)

// TargetKind classifies a browsing context.
type TargetKind string

const (
	KindPage          TargetKind = "page"
	KindIframe        TargetKind = "iframe"
	KindWorker        TargetKind = "worker"
	KindServiceWorker TargetKind = "service_worker"
	KindOther         TargetKind = "other"
)

// KindOf maps a raw protocol target type onto a TargetKind.
func KindOf(targetType string) TargetKind {
	switch targetType {
	case "page":
		return KindPage
	case "iframe":
		return KindIframe
	case "worker":
		return KindWorker
	case "service_worker":
		return KindServiceWorker
	default:
		return KindOther
	}
}

// TargetHandle is an opaque reference to a live browsing context. The
// orchestrator owns the underlying context; collectors reference it but must
// never cancel or close it.
type TargetHandle struct {
	ID   target.ID
	Kind TargetKind
	URL  string
	// Ctx is a chromedp context attached to the target. It is nil for
	// contexts the orchestrator could not establish a session for.
	Ctx context.Context
	// Primary marks the first page-type context of the visit.
	Primary bool
}

// InitOptions carries the per-visit parameters handed to every collector.
type InitOptions struct {
	URL       string
	URLHash   string
	OutputDir string
	Mobile    bool
	Logger    *zap.Logger
	// Page is the primary page context, established before Init runs.
	Page *TargetHandle
}

// Collector is the lifecycle contract. Implementations must tolerate hostile
// page content: every hook degrades to partial or empty data rather than
// failing the visit.
type Collector interface {
	// ID returns a stable short name used as the key in the visit result.
	ID() string

	// Init prepares the collector for one visit (output directories,
	// injected scripts, per-visit state).
	Init(ctx context.Context, opts InitOptions) error

	// AddTarget is invoked exactly once per discovered browsing context,
	// before that context is resumed.
	AddTarget(ctx context.Context, t *TargetHandle) error

	// AddListener is invoked for pop-up page targets (disclosure and
	// landing tabs) instead of AddTarget.
	AddListener(ctx context.Context, t *TargetHandle) error

	// PostLoad runs after the primary navigation has settled.
	PostLoad(ctx context.Context) error

	// GetData produces the collector's final payload for the visit.
	GetData(ctx context.Context) (any, error)
}
