// File: internal/crawler/orchestrator.go

package crawler

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/adscope/adscope/internal/collector"
)

// ContextState tracks a browsing context through its lifecycle. Every
// context the browser spawns moves forward through these states; a context
// that fails instrumentation stays Paused and is skipped, never retried.
type ContextState int

const (
	StateDiscovered ContextState = iota
	StatePaused
	StateInstrumented
	StateRunning
	StateClosed
)

func (s ContextState) String() string {
	switch s {
	case StateDiscovered:
		return "discovered"
	case StatePaused:
		return "paused"
	case StateInstrumented:
		return "instrumented"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// BrowsingContext is the orchestrator's record of one page, frame or worker
// target observed during a visit.
type BrowsingContext struct {
	ID    target.ID
	Kind  collector.TargetKind
	URL   string
	State ContextState
}

type eventKind int

const (
	evAttached eventKind = iota
	evDetached
)

// targetEvent is one attach or detach notification. Detach events only
// carry a session ID; the drain goroutine resolves it through the mapping
// recorded at attach time.
type targetEvent struct {
	kind      eventKind
	info      *target.Info
	sessionID target.SessionID
	waiting   bool
}

// Orchestrator consumes target attachment events from the browser and walks
// each new browsing context through pause, instrumentation and resume. All
// events funnel through a single drain goroutine, so collector hooks for one
// context always finish before the next context is touched.
type Orchestrator struct {
	log      *zap.Logger
	registry *collector.Registry

	events chan targetEvent
	done   chan struct{}
	wg     sync.WaitGroup

	mu          sync.Mutex
	contexts    []*BrowsingContext
	ctxByID     map[target.ID]context.Context
	idBySession map[target.SessionID]target.ID
	cancels     []context.CancelFunc

	primaryID  target.ID
	primaryCtx context.Context

	// Overridable in tests to drive the state machine without a browser.
	attachFn func(ev targetEvent) (context.Context, context.CancelFunc, error)
	resumeFn func(ctx context.Context) error
}

// NewOrchestrator builds an orchestrator that hands every discovered context
// to the registry's collectors.
func NewOrchestrator(registry *collector.Registry, log *zap.Logger) *Orchestrator {
	o := &Orchestrator{
		log:         log.Named("orchestrator"),
		registry:    registry,
		events:      make(chan targetEvent, 64),
		done:        make(chan struct{}),
		ctxByID:     make(map[target.ID]context.Context),
		idBySession: make(map[target.SessionID]target.ID),
	}
	o.attachFn = o.attachSession
	o.resumeFn = resumeTarget
	return o
}

// Start hooks target events on the primary session, tells the browser to
// auto-attach every related target in a suspended state, and starts the
// drain goroutine. primaryCtx must be the chromedp context of the visit's
// first page.
func (o *Orchestrator) Start(primaryCtx context.Context, primaryID target.ID) error {
	o.primaryCtx = primaryCtx
	o.primaryID = primaryID

	chromedp.ListenTarget(primaryCtx, func(ev any) {
		switch e := ev.(type) {
		case *target.EventAttachedToTarget:
			o.enqueue(targetEvent{
				kind:      evAttached,
				info:      e.TargetInfo,
				sessionID: e.SessionID,
				waiting:   e.WaitingForDebugger,
			})
		case *target.EventDetachedFromTarget:
			o.enqueue(targetEvent{kind: evDetached, sessionID: e.SessionID})
		}
	})

	err := chromedp.Run(primaryCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return target.SetAutoAttach(true, true).WithFlatten(true).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("enabling target auto-attach: %w", err)
	}

	o.mu.Lock()
	o.ctxByID[primaryID] = primaryCtx
	o.contexts = append(o.contexts, &BrowsingContext{
		ID:    primaryID,
		Kind:  collector.KindPage,
		State: StateRunning,
	})
	o.mu.Unlock()

	o.wg.Add(1)
	go o.drain()
	return nil
}

// Stop shuts down the drain goroutine and releases every session the
// orchestrator opened.
func (o *Orchestrator) Stop() {
	close(o.done)
	o.wg.Wait()

	o.mu.Lock()
	cancels := o.cancels
	o.cancels = nil
	o.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

// Contexts returns a snapshot of every browsing context seen so far.
func (o *Orchestrator) Contexts() []BrowsingContext {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]BrowsingContext, 0, len(o.contexts))
	for _, bc := range o.contexts {
		out = append(out, *bc)
	}
	return out
}

// StopLoadingAll sends Page.stopLoading to every page context, primary
// included. Used when navigation exceeds its budget but a partial page is
// still worth collecting from.
func (o *Orchestrator) StopLoadingAll() {
	o.mu.Lock()
	ctxs := make([]context.Context, 0, len(o.ctxByID))
	for id, ctx := range o.ctxByID {
		if bc := o.lookupLocked(id); bc != nil && bc.Kind == collector.KindPage {
			ctxs = append(ctxs, ctx)
		}
	}
	o.mu.Unlock()

	for _, ctx := range ctxs {
		if err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			return page.StopLoading().Do(ctx)
		})); err != nil {
			o.log.Debug("stop loading failed", zap.Error(err))
		}
	}
}

func (o *Orchestrator) enqueue(ev targetEvent) {
	select {
	case o.events <- ev:
	case <-o.done:
	}
}

func (o *Orchestrator) drain() {
	defer o.wg.Done()
	for {
		select {
		case <-o.done:
			return
		case ev := <-o.events:
			if ev.kind == evDetached {
				o.markClosedSession(ev.sessionID)
				continue
			}
			o.handleAttached(ev)
		}
	}
}

// markClosedSession resolves a detach notification, which only names the
// session, back to the target it was attached to. Sessions the orchestrator
// never saw attach are ignored.
func (o *Orchestrator) markClosedSession(sid target.SessionID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	id, ok := o.idBySession[sid]
	if !ok {
		return
	}
	delete(o.idBySession, sid)
	if bc := o.lookupLocked(id); bc != nil {
		bc.State = StateClosed
	}
	delete(o.ctxByID, id)
}

func (o *Orchestrator) lookupLocked(id target.ID) *BrowsingContext {
	for _, bc := range o.contexts {
		if bc.ID == id {
			return bc
		}
	}
	return nil
}

// handleAttached walks one freshly attached target through the lifecycle.
// Instrumentation failures are structural: the context is logged and left
// behind, the visit continues.
func (o *Orchestrator) handleAttached(ev targetEvent) {
	if ev.info == nil || ev.info.TargetID == o.primaryID {
		return
	}

	bc := &BrowsingContext{
		ID:    ev.info.TargetID,
		Kind:  collector.KindOf(ev.info.Type),
		URL:   ev.info.URL,
		State: StateDiscovered,
	}
	if ev.waiting {
		bc.State = StatePaused
	}
	o.mu.Lock()
	o.contexts = append(o.contexts, bc)
	if ev.sessionID != "" {
		o.idBySession[ev.sessionID] = bc.ID
	}
	o.mu.Unlock()

	log := o.log.With(
		zap.String("target", string(bc.ID)),
		zap.String("kind", string(bc.Kind)),
		zap.String("url", bc.URL),
	)

	tabCtx, cancel, err := o.attachFn(ev)
	if err != nil {
		log.Warn("could not attach to target, skipping context", zap.Error(err))
		return
	}
	o.mu.Lock()
	o.ctxByID[bc.ID] = tabCtx
	o.cancels = append(o.cancels, cancel)
	o.mu.Unlock()

	handle := &collector.TargetHandle{
		ID:   bc.ID,
		Kind: bc.Kind,
		URL:  bc.URL,
		Ctx:  tabCtx,
	}

	if bc.Kind == collector.KindPage {
		// Popups and new tabs load their content before classification, so
		// they resume first and the listeners inspect them afterwards.
		if err := o.resumeFn(tabCtx); err != nil {
			log.Warn("could not resume popup", zap.Error(err))
			return
		}
		o.setState(bc.ID, StateInstrumented)
		o.registry.AddListenerAll(tabCtx, handle)
		o.setState(bc.ID, StateRunning)
		return
	}

	// Frames and workers are instrumented while still suspended, so
	// collectors see them before any of their code runs.
	o.registry.AddTargetAll(tabCtx, handle)
	o.setState(bc.ID, StateInstrumented)

	if err := o.resumeFn(tabCtx); err != nil {
		log.Warn("could not resume target", zap.Error(err))
		return
	}
	o.setState(bc.ID, StateRunning)
}

func (o *Orchestrator) setState(id target.ID, state ContextState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if bc := o.lookupLocked(id); bc != nil {
		bc.State = state
	}
}

// attachSession opens a session to the target via a child chromedp context
// and propagates auto-attach so nested frames and workers surface too.
func (o *Orchestrator) attachSession(ev targetEvent) (context.Context, context.CancelFunc, error) {
	tabCtx, cancel := chromedp.NewContext(o.primaryCtx, chromedp.WithTargetID(ev.info.TargetID))
	err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return target.SetAutoAttach(true, true).WithFlatten(true).Do(ctx)
	}))
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return tabCtx, cancel, nil
}

func resumeTarget(ctx context.Context) error {
	return chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return runtime.RunIfWaitingForDebugger().Do(ctx)
	}))
}
