// Package viewbridge bridges an embedding host and an embedded HTML/JS
// render engine running on a dedicated background goroutine.
//
// The host drives the engine through an ordered command queue and observes
// it through an ordered event queue drained by PollEvents. Scripts inside a
// rendered page call back into the host through a per-view capability token;
// calls bearing any other token are dropped without acknowledgement.
package viewbridge

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/embedkit/viewbridge/internal/engine"
	"github.com/embedkit/viewbridge/internal/engine/htmlcore"
	"github.com/embedkit/viewbridge/internal/infrastructure/logging"
	"github.com/embedkit/viewbridge/internal/infrastructure/monitoring"
	"github.com/embedkit/viewbridge/internal/shared/token"
)

// Options configures a Bridge.
type Options struct {
	// FrameRate is the render loop target in iterations per second.
	// Defaults to 60.
	FrameRate int

	// EngineFactory constructs the render engine when the init command is
	// applied. Defaults to the built-in htmlcore engine.
	EngineFactory engine.Factory

	// Logger defaults to a production zap logger.
	Logger *logging.Logger

	// Metrics defaults to a collector on a private registry.
	Metrics *monitoring.Metrics
}

// Bridge is one bridge runtime instance. All methods are safe to call from
// any goroutine; PollEvents must run on whichever goroutine the host wants
// its event handler invoked on.
type Bridge struct {
	opts    Options
	logger  *logging.Logger
	metrics *monitoring.Metrics

	running     atomic.Bool
	initialized atomic.Bool
	wg          sync.WaitGroup

	commands *commandQueue
	events   *eventQueue
	registry *registry
	tokens   *token.Generator

	handlerMu sync.RWMutex
	handler   EventHandler

	// eng is owned by the render goroutine once the init command runs.
	eng engine.Engine
}

// New creates a bridge. The render loop does not start until Start.
func New(opts Options) *Bridge {
	if opts.FrameRate <= 0 {
		opts.FrameRate = 60
	}
	if opts.EngineFactory == nil {
		opts.EngineFactory = htmlcore.New
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewDefault()
	}
	if opts.Metrics == nil {
		opts.Metrics = monitoring.New(nil)
	}

	return &Bridge{
		opts:     opts,
		logger:   opts.Logger.Named("viewbridge"),
		metrics:  opts.Metrics,
		commands: &commandQueue{},
		events:   &eventQueue{},
		registry: newRegistry(),
		tokens:   token.NewGenerator(),
	}
}

// SetEventHandler registers the callback PollEvents delivers through.
func (b *Bridge) SetEventHandler(fn EventHandler) {
	b.handlerMu.Lock()
	b.handler = fn
	b.handlerMu.Unlock()
}

// Start launches the render goroutine and queues engine initialization.
// Starting a running bridge is an error no-op.
func (b *Bridge) Start(useGPU bool, resourceBasePath string) {
	if !b.running.CompareAndSwap(false, true) {
		b.errorf("start: already running")
		return
	}

	b.wg.Add(1)
	go b.renderLoop()

	b.enqueue(cmdInit{gpu: useGPU, resourcePath: resourceBasePath})
	b.logf("render thread launched")
}

// Stop signals the render loop to exit and waits for it. Commands enqueued
// strictly before Stop are applied before teardown; after Stop returns, the
// engine and every view are released and the goroutine has exited. Stopping
// a stopped bridge is a no-op.
func (b *Bridge) Stop() {
	if b.running.CompareAndSwap(true, false) {
		b.logf("stopping render thread")
	}
	b.wg.Wait()
}

// Shutdown queues a shutdown command. The render thread tears the engine and
// every view down when it reaches the command, then keeps looping idle until
// Stop joins it; the bridge stays running so a Start in the meantime cannot
// race a second loop into existence.
func (b *Bridge) Shutdown() {
	b.enqueue(cmdShutdown{})
}

// IsRunning reports whether the render loop is active.
func (b *Bridge) IsRunning() bool { return b.running.Load() }

// IsInitialized reports whether the init command has been applied.
func (b *Bridge) IsInitialized() bool { return b.initialized.Load() }

// CreateView queues creation of a view with a host-chosen unique name.
func (b *Bridge) CreateView(name string, width, height int) {
	b.enqueue(cmdCreateView{name: name, width: width, height: height})
}

// DeleteView queues destruction of a view.
func (b *Bridge) DeleteView(name string) {
	b.enqueue(cmdDeleteView{name: name})
}

// LoadHTML queues loading inline markup into a view.
func (b *Bridge) LoadHTML(name, html string) {
	b.enqueue(cmdLoadHTML{name: name, html: html})
}

// LoadURL is permanently disabled: no outbound network access is permitted.
// It always fails with a security error directing callers to LoadHTML.
func (b *Bridge) LoadURL(name, url string) {
	b.metrics.SecurityViolations.WithLabelValues(monitoring.ViolationNetworkBlocked).Inc()
	b.errorf("load_url disabled for security (view %q, url %q); use LoadHTML instead", name, url)
}

// EvalScript queues script evaluation in a view. Scripts requested before
// the view's document is ready are backlogged and run, in order, right
// after the script bridge is installed.
func (b *Bridge) EvalScript(name, script string) {
	b.enqueue(cmdEvalScript{name: name, script: script})
}

// ResizeView queues a view resize.
func (b *Bridge) ResizeView(name string, width, height int) {
	b.enqueue(cmdResize{name: name, width: width, height: height})
}

// MouseEvent queues a mouse event. Events for unknown views are dropped
// silently; they are expected to race view deletion.
func (b *Bridge) MouseEvent(name string, x, y, kind, button int) {
	b.enqueue(cmdMouseInput{name: name, x: x, y: y, eventKind: kind, button: button})
}

// ScrollEvent queues a scroll event.
func (b *Bridge) ScrollEvent(name string, x, y, kind int) {
	b.enqueue(cmdScrollInput{name: name, x: x, y: y, eventKind: kind})
}

// KeyEvent queues a keyboard event. Kind: 0=KeyUp, 1=KeyDown, 2=RawKeyDown,
// 3=Char (virtualKey carries the character code).
func (b *Bridge) KeyEvent(name string, kind, virtualKey, modifiers int) {
	b.enqueue(cmdKeyInput{name: name, eventKind: kind, virtualKey: virtualKey, modifiers: modifiers})
}

// FocusView queues giving a view input focus.
func (b *Bridge) FocusView(name string) {
	b.enqueue(cmdFocus{name: name})
}

// UnfocusView queues removing a view's input focus.
func (b *Bridge) UnfocusView(name string) {
	b.enqueue(cmdUnfocus{name: name})
}

// RegisterImage queues registration of an in-memory BGRA image for virtual
// .imgsrc assets. The pixel data is copied before enqueueing since the
// caller's buffer lifetime is not guaranteed past the call. Returns false,
// with an Error event, on invalid parameters.
func (b *Bridge) RegisterImage(id string, bgra []byte, width, height int) bool {
	if id == "" || len(bgra) == 0 || width <= 0 || height <= 0 {
		b.errorf("register_image: invalid parameters (id=%q, %d bytes, %dx%d)", id, len(bgra), width, height)
		return false
	}
	need := width * height * 4
	if len(bgra) < need {
		b.errorf("register_image %q: pixel buffer too small (%d bytes, need %d)", id, len(bgra), need)
		return false
	}

	pixels := make([]byte, need)
	copy(pixels, bgra[:need])

	b.enqueue(cmdRegisterImage{id: id, pixels: pixels, width: width, height: height})
	return true
}

// PollEvents drains the event queue and invokes the registered handler once
// per event, in enqueue order, on the caller's goroutine. Events produced
// while the handler runs are held for the next poll. With no handler
// registered the queue is left untouched, so nothing is lost before the
// host wires one up.
func (b *Bridge) PollEvents() {
	b.handlerMu.RLock()
	handler := b.handler
	b.handlerMu.RUnlock()
	if handler == nil {
		return
	}

	drained := b.events.drain()

	for _, evt := range drained {
		handler(evt)
		b.metrics.EventsDelivered.Inc()
	}
}

// GetViewToken returns a view's capability token, or empty for an unknown
// view. Safe to call from any goroutine.
func (b *Bridge) GetViewToken(name string) string {
	return b.registry.tokenOf(name).String()
}

// IsViewDirty reports whether a view's surface changed since the last
// ReleasePixels.
func (b *Bridge) IsViewDirty(name string) bool {
	b.registry.mu.Lock()
	defer b.registry.mu.Unlock()

	v, ok := b.registry.views[name]
	if !ok {
		return false
	}
	return v.handle.Surface().Dirty()
}

// AcquirePixels locks a view's surface for host-side reading and returns
// the pixel buffer with its dimensions. Returns ok=false for unknown views.
// Every successful acquire must be paired with ReleasePixels.
func (b *Bridge) AcquirePixels(name string) (pixels []byte, width, height, stride int, ok bool) {
	b.registry.mu.Lock()
	defer b.registry.mu.Unlock()

	v, exists := b.registry.views[name]
	if !exists {
		return nil, 0, 0, 0, false
	}

	surface := v.handle.Surface()
	v.locked = surface
	v.pixels = surface.LockPixels()
	return v.pixels, surface.Width(), surface.Height(), surface.Stride(), true
}

// ReleasePixels unlocks a surface locked by AcquirePixels and clears its
// dirty flag. A release without a matching acquire is a no-op.
func (b *Bridge) ReleasePixels(name string) {
	b.registry.mu.Lock()
	defer b.registry.mu.Unlock()

	v, exists := b.registry.views[name]
	if !exists || v.locked == nil {
		return
	}
	v.locked.UnlockPixels()
	v.locked.ClearDirty()
	v.locked = nil
	v.pixels = nil
}

// ViewWidth returns the locked surface width. Valid only between
// AcquirePixels and ReleasePixels; zero otherwise.
func (b *Bridge) ViewWidth(name string) int {
	return b.lockedDim(name, func(s engine.Surface) int { return s.Width() })
}

// ViewHeight returns the locked surface height. Valid only between
// AcquirePixels and ReleasePixels; zero otherwise.
func (b *Bridge) ViewHeight(name string) int {
	return b.lockedDim(name, func(s engine.Surface) int { return s.Height() })
}

// ViewStride returns the locked surface stride in bytes. Valid only between
// AcquirePixels and ReleasePixels; zero otherwise.
func (b *Bridge) ViewStride(name string) int {
	return b.lockedDim(name, func(s engine.Surface) int { return s.Stride() })
}

func (b *Bridge) lockedDim(name string, dim func(engine.Surface) int) int {
	b.registry.mu.Lock()
	defer b.registry.mu.Unlock()

	v, exists := b.registry.views[name]
	if !exists || v.locked == nil {
		return 0
	}
	return dim(v.locked)
}

// HasFocus reports whether a view holds input focus.
func (b *Bridge) HasFocus(name string) bool {
	b.registry.mu.Lock()
	defer b.registry.mu.Unlock()

	v, ok := b.registry.views[name]
	if !ok {
		return false
	}
	return v.handle.HasFocus()
}

// enqueue appends a command. Always accepted, even mid-shutdown; whether a
// late command is applied depends on it being drained before loop exit.
func (b *Bridge) enqueue(cmd command) {
	b.commands.enqueue(cmd)
	b.metrics.CommandsEnqueued.Inc()
}

// queueEvent appends an event for the next PollEvents.
func (b *Bridge) queueEvent(kind EventKind, viewName string, data any) {
	b.events.queue(Event{Kind: kind, ViewName: viewName, Data: data})
	b.metrics.EventsQueued.WithLabelValues(kind.String()).Inc()
}

// logf logs and mirrors the line as a Log event.
func (b *Bridge) logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	b.logger.Info(msg)
	b.queueEvent(EventLog, "", MessagePayload{Message: msg})
}

// errorf logs and mirrors the line as an Error event.
func (b *Bridge) errorf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	b.logger.Error(msg)
	b.queueEvent(EventError, "", MessagePayload{Message: msg})
}

// preInitIdle is the pre-initialization drain interval.
const preInitIdle = 10 * time.Millisecond
