package htmlcore

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/embedkit/viewbridge/internal/engine"
)

// pageBaseURL is the synthetic URL documents load under. Relative asset
// references resolve against it into the sandboxed filesystem.
const pageBaseURL = "file:///asset/"

// View implements engine.View. Everything except the surface and the focus
// flag is owned by the render goroutine.
type View struct {
	eng     *Engine
	cfg     engine.ViewConfig
	surface *surface

	vm  *goja.Runtime
	doc *document

	loadObs engine.LoadObserver
	viewObs engine.ViewObserver
	gate    engine.NetworkGate

	pendingHTML *string
	frameID     string

	focused          atomic.Bool
	scrollX, scrollY int
	cursor           int

	timers   map[int64]*timerTask
	timerSeq int64
	rafQueue []goja.Callable

	displayPending bool
	paintQueued    bool
	destroyed      bool
}

func newView(e *Engine, width, height int, cfg engine.ViewConfig) *View {
	return &View{
		eng:     e,
		cfg:     cfg,
		surface: newSurface(width, height),
		cursor:  engine.CursorPointer,
		timers:  make(map[int64]*timerTask),
	}
}

// LoadHTML stages a document; the load runs on the next engine update.
func (v *View) LoadHTML(html string) {
	if v.destroyed {
		return
	}
	staged := html
	v.pendingHTML = &staged
}

// EvaluateScript runs src in the current document's script context. Script
// errors surface as console messages, never as Go errors.
func (v *View) EvaluateScript(src string) {
	if v.destroyed || v.vm == nil {
		return
	}
	v.runScript(src, "eval")
	v.displayPending = true
}

// Resize changes the surface geometry and notifies the page.
func (v *View) Resize(width, height int) {
	if v.destroyed || width <= 0 || height <= 0 {
		return
	}
	v.surface.resize(width, height)
	if v.vm != nil {
		v.vm.Set("innerWidth", width)
		v.vm.Set("innerHeight", height)
	}
	v.callHandler("onresize", map[string]interface{}{
		"width":  width,
		"height": height,
	})
	v.displayPending = true
}

func (v *View) FireMouseEvent(ev engine.MouseEvent) {
	if v.destroyed {
		return
	}
	payload := map[string]interface{}{
		"x":      ev.X,
		"y":      ev.Y,
		"button": int(ev.Button),
	}
	switch ev.Kind {
	case engine.MouseMoved:
		v.callHandler("onmousemove", payload)
	case engine.MouseDown:
		v.callHandler("onmousedown", payload)
	case engine.MouseUp:
		v.callHandler("onmouseup", payload)
	}
	v.syncCursor()
}

func (v *View) FireScrollEvent(ev engine.ScrollEvent) {
	if v.destroyed {
		return
	}
	dx, dy := ev.DeltaX, ev.DeltaY
	if ev.Kind == engine.ScrollByPage {
		dx *= v.surface.Width()
		dy *= v.surface.Height()
	}
	v.scrollX = clampScroll(v.scrollX - dx)
	v.scrollY = clampScroll(v.scrollY - dy)
	if v.vm != nil {
		v.vm.Set("scrollX", v.scrollX)
		v.vm.Set("scrollY", v.scrollY)
	}
	v.callHandler("onscroll", map[string]interface{}{
		"scrollX": v.scrollX,
		"scrollY": v.scrollY,
	})
	v.displayPending = true
}

func (v *View) FireKeyEvent(ev engine.KeyEvent) {
	if v.destroyed {
		return
	}
	switch ev.Kind {
	case engine.KeyDown, engine.RawKeyDown:
		v.callHandler("onkeydown", map[string]interface{}{
			"keyCode":   ev.VirtualKey,
			"modifiers": ev.Modifiers,
		})
	case engine.KeyUp:
		v.callHandler("onkeyup", map[string]interface{}{
			"keyCode":   ev.VirtualKey,
			"modifiers": ev.Modifiers,
		})
	case engine.KeyChar:
		v.callHandler("onkeypress", map[string]interface{}{
			"charCode":  ev.VirtualKey,
			"key":       string(rune(ev.VirtualKey)),
			"modifiers": ev.Modifiers,
		})
	}
}

func (v *View) Focus() {
	if v.destroyed || v.focused.Load() {
		return
	}
	v.focused.Store(true)
	v.callHandler("onfocus", nil)
}

func (v *View) Unfocus() {
	if v.destroyed || !v.focused.Load() {
		return
	}
	v.focused.Store(false)
	v.callHandler("onblur", nil)
}

func (v *View) HasFocus() bool {
	return v.focused.Load()
}

func (v *View) Surface() engine.Surface {
	return v.surface
}

// BindHostFunction installs fn on the global object as a non-writable,
// non-enumerable, non-configurable data property.
func (v *View) BindHostFunction(name string, fn engine.HostFunc) error {
	if v.vm == nil {
		return fmt.Errorf("htmlcore: no script context to bind %q into", name)
	}
	callable := func(call goja.FunctionCall) goja.Value {
		if args, ok := readCallArgs(call); ok {
			fn(args)
		}
		return goja.Null()
	}
	return v.vm.GlobalObject().DefineDataProperty(name, v.vm.ToValue(callable),
		goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
}

func (v *View) SetLoadObserver(obs engine.LoadObserver) { v.loadObs = obs }
func (v *View) SetViewObserver(obs engine.ViewObserver) { v.viewObs = obs }
func (v *View) SetNetworkGate(gate engine.NetworkGate)  { v.gate = gate }

func (v *View) Destroy() {
	if v.destroyed {
		return
	}
	v.destroyed = true
	v.vm = nil
	v.doc = nil
	v.timers = nil
	v.rafQueue = nil
	v.pendingHTML = nil
	v.loadObs = nil
	v.viewObs = nil
	v.gate = nil
	v.eng.removeView(v)
}

// step runs the view's per-frame work: a staged load, then due timers and
// animation frame callbacks.
func (v *View) step(now time.Time) {
	if v.destroyed {
		return
	}
	if v.pendingHTML != nil {
		html := *v.pendingHTML
		v.pendingHTML = nil
		v.performLoad(html)
	}
	v.runTimers(now)
	v.runAnimationFrames(now)
}

// performLoad drives the full load sequence. Ordering contract: the DOM
// ready notification fires after document structure and script context are
// built but before the page's own scripts execute, so observers can install
// bindings the scripts rely on.
func (v *View) performLoad(html string) {
	v.frameID = ulid.Make().String()
	url := pageBaseURL

	if v.loadObs != nil {
		v.loadObs.OnBeginLoading(v.frameID, url)
	}

	doc, err := parseDocument(html)
	if err != nil {
		v.eng.logger.Warn("document parse failed",
			zap.String("frame", v.frameID),
			zap.Error(err))
		if v.loadObs != nil {
			v.loadObs.OnFailLoading(v.frameID, url, err.Error(), "htmlcore", 1)
		}
		return
	}
	v.doc = doc

	v.setupRuntime()
	v.resolveResources()

	if v.loadObs != nil {
		v.loadObs.OnWindowObjectReady(v.frameID, url)
	}
	if v.loadObs != nil {
		v.loadObs.OnDOMReady(v.frameID, url)
	}

	v.runDocumentScripts()
	v.displayPending = true

	if v.loadObs != nil {
		v.loadObs.OnFinishLoading(v.frameID, url)
	}
}

func (v *View) paint() {
	// Rasterization is out of scope; painting clears to the page background
	// and bumps the dirty flag so hosts track visual generations.
	if v.cfg.Transparent {
		v.surface.fill(0, 0, 0, 0)
	} else {
		v.surface.fill(0xff, 0xff, 0xff, 0xff)
	}
}

func (v *View) syncCursor() {
	if v.doc == nil {
		return
	}
	cur := cursorCode(v.doc.cursorStyle())
	if cur == v.cursor {
		return
	}
	v.cursor = cur
	if v.viewObs != nil {
		v.viewObs.OnCursorChanged(cur)
	}
}

func cursorCode(style string) int {
	switch style {
	case "crosshair":
		return engine.CursorCross
	case "pointer", "hand":
		return engine.CursorHand
	case "text":
		return engine.CursorIBeam
	default:
		return engine.CursorPointer
	}
}

func clampScroll(pos int) int {
	if pos < 0 {
		return 0
	}
	return pos
}

// readCallArgs converts call arguments to strings. A value whose conversion
// panics aborts the whole call rather than passing partial arguments on.
func readCallArgs(call goja.FunctionCall) (args []string, ok bool) {
	defer func() {
		if recover() != nil {
			args, ok = nil, false
		}
	}()
	args = make([]string, len(call.Arguments))
	for i, a := range call.Arguments {
		args[i] = a.String()
	}
	return args, true
}
