// Package engine defines the boundary to the embedded HTML/JS render engine.
//
// The bridge never depends on a concrete engine: it drives these interfaces
// from its render goroutine and receives observations back through the
// observer interfaces. The built-in implementation lives in
// internal/engine/htmlcore; tests substitute fakes.
package engine

import (
	"github.com/embedkit/viewbridge/internal/infrastructure/logging"
)

// Options configures engine construction.
type Options struct {
	// GPU requests accelerated rendering. The built-in engine always renders
	// on the CPU and logs when acceleration is requested.
	GPU bool

	// ResourceBasePath is the directory holding the engine's internal
	// resources; page assets are served from its "resources" subdirectory.
	ResourceBasePath string

	// FS serves page assets. Usually an assets.Sandbox.
	FS FileSystem

	Logger *logging.Logger
}

// Factory constructs an engine. Injected into the bridge so hosts and tests
// can supply their own implementation.
type Factory func(Options) (Engine, error)

// Engine is one render-engine instance. All methods except Surface access
// must be called from the bridge's render goroutine.
type Engine interface {
	// CreateView allocates a new view with the given pixel dimensions.
	CreateView(width, height int, cfg ViewConfig) (View, error)

	// Update advances timers and pending page work across all views.
	Update()

	// RefreshDisplay flags views with pending visual changes for repaint.
	RefreshDisplay()

	// Render paints every flagged view into its surface.
	Render()

	// RegisterImage stores a BGRA bitmap under id for virtual-asset lookup.
	// The pixel slice is owned by the engine after the call.
	RegisterImage(id string, bgra []byte, width, height int) error

	// Close destroys all remaining views and releases the engine.
	Close() error
}

// ViewConfig holds per-view creation settings.
type ViewConfig struct {
	Transparent bool
	DeviceScale float64
}

// View is one rendered page instance.
type View interface {
	LoadHTML(html string)
	EvaluateScript(src string)
	Resize(width, height int)

	FireMouseEvent(MouseEvent)
	FireScrollEvent(ScrollEvent)
	FireKeyEvent(KeyEvent)

	Focus()
	Unfocus()
	HasFocus() bool

	// Surface returns the view's pixel surface. The surface itself is safe
	// to use from the host thread between lock and unlock.
	Surface() Surface

	// BindHostFunction installs fn on the page's global object under the
	// given name, with non-enumerable, non-writable, non-configurable
	// attributes. Valid only once a document's script context exists.
	BindHostFunction(name string, fn HostFunc) error

	SetLoadObserver(LoadObserver)
	SetViewObserver(ViewObserver)
	SetNetworkGate(NetworkGate)

	// Destroy releases the view. The view must not be used afterwards.
	Destroy()
}

// HostFunc receives a script invocation of a bound host function. Args are
// the call arguments converted to strings; the engine does not invoke the
// func when an argument cannot be read. The bound function always returns
// null to the script regardless of what happens here.
type HostFunc func(args []string)

// Surface is a view's BGRA pixel buffer.
type Surface interface {
	Width() int
	Height() int
	Stride() int

	// Dirty reports whether the surface changed since ClearDirty.
	Dirty() bool
	ClearDirty()

	// LockPixels returns the pixel buffer for host-side reading. The buffer
	// stays valid until UnlockPixels. The engine does not repaint a locked
	// surface.
	LockPixels() []byte
	UnlockPixels()
}

// FileSystem serves sandboxed page assets.
type FileSystem interface {
	FileExists(path string) bool
	Open(path string) ([]byte, error)
	MimeType(path string) string
}

// LoadObserver receives main-frame load lifecycle notifications.
type LoadObserver interface {
	OnBeginLoading(frameID, url string)
	OnWindowObjectReady(frameID, url string)

	// OnDOMReady fires when the document structure is built and the script
	// context is live, before the page's own scripts run. The bridge uses
	// this window to install the host-call binding.
	OnDOMReady(frameID, url string)

	OnFinishLoading(frameID, url string)
	OnFailLoading(frameID, url, description, errorDomain string, errorCode int)
}

// ViewObserver receives console and cursor observations.
type ViewObserver interface {
	OnConsoleMessage(ConsoleMessage)
	OnCursorChanged(cursor int)
}

// NetworkGate decides whether a view may issue an outbound network request.
type NetworkGate interface {
	AllowRequest(url string) bool
}

// ConsoleMessage is one console line produced by page script.
type ConsoleMessage struct {
	Level    int
	Message  string
	SourceID string
	Line     int
	Column   int
}

// Console message levels.
const (
	ConsoleLevelLog     = 1
	ConsoleLevelWarning = 2
	ConsoleLevelError   = 3
	ConsoleLevelDebug   = 4
	ConsoleLevelInfo    = 5
)

// Cursor codes.
const (
	CursorPointer = 0
	CursorCross   = 1
	CursorHand    = 2
	CursorIBeam   = 3
)
