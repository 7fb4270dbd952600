package viewbridge

import (
	"github.com/embedkit/viewbridge/internal/engine"
	"github.com/embedkit/viewbridge/internal/infrastructure/monitoring"
)

// BridgeFunctionName is the global function page scripts call to reach the
// host: window.__ulb_nc__(token, commandName, argsJSON).
const BridgeFunctionName = "__ulb_nc__"

// nativeCall builds the host-call entry point for one view binding. The
// closure carries only the generation-checked binding handle; once the view
// is deleted the handle stops resolving and calls fall through silently.
//
// Call contract: at least three arguments (token, command name, argument
// string) or the call is ignored. A token mismatch is also ignored with no
// event and no distinguishing error, so a hostile script gains no oracle
// against the token.
func (b *Bridge) nativeCall(h bindingHandle) engine.HostFunc {
	return func(args []string) {
		if len(args) < 3 {
			return
		}

		name, ok := b.registry.resolveBinding(h)
		if !ok {
			return
		}

		tok := b.registry.tokenOf(name)
		if tok.IsZero() || !tok.Matches(args[0]) {
			b.metrics.SecurityViolations.WithLabelValues(monitoring.ViolationTokenMismatch).Inc()
			return
		}

		b.queueEvent(EventCommand, name, CommandPayload{Command: args[1], Args: args[2]})
	}
}

// handleDOMReady runs the DOM-ready sequence for a view, in contract order:
// install the script bridge, run the backlogged scripts FIFO, mark the view
// ready, then emit the ready event — so a backlogged script that depends on
// the bridge being present succeeds, and the host sees the ready event only
// after those scripts ran.
func (b *Bridge) handleDOMReady(name, frameID, url string) {
	v, ok := b.registry.get(name)
	if !ok {
		return
	}

	// Reloads reach DOM-ready repeatedly; retire the previous binding
	// before installing a fresh one.
	b.registry.releaseBinding(v.binding)
	v.binding = b.registry.allocBinding(name)

	if err := v.handle.BindHostFunction(BridgeFunctionName, b.nativeCall(v.binding)); err != nil {
		b.errorf("install script bridge for %s: %v", name, err)
	}

	pending := v.pendingScripts
	v.pendingScripts = nil
	for _, script := range pending {
		v.handle.EvaluateScript(script)
	}

	v.domReady = true
	b.queueLoadEvent(name, LoadDOMReady, frameID, url)
}

func (b *Bridge) queueLoadEvent(name string, phase LoadPhase, frameID, url string) {
	b.queueEvent(EventLoad, name, LoadPayload{Phase: phase, FrameID: frameID, URL: url})
}

// loadObserver forwards a view's load lifecycle into the event queue.
type loadObserver struct {
	bridge *Bridge
	name   string
}

func (o *loadObserver) OnBeginLoading(frameID, url string) {
	o.bridge.queueLoadEvent(o.name, LoadBegin, frameID, url)
}

func (o *loadObserver) OnWindowObjectReady(frameID, url string) {
	o.bridge.queueLoadEvent(o.name, LoadWindowObjectReady, frameID, url)
}

func (o *loadObserver) OnDOMReady(frameID, url string) {
	o.bridge.handleDOMReady(o.name, frameID, url)
}

func (o *loadObserver) OnFinishLoading(frameID, url string) {
	o.bridge.queueLoadEvent(o.name, LoadFinish, frameID, url)
}

func (o *loadObserver) OnFailLoading(frameID, url, description, errorDomain string, errorCode int) {
	o.bridge.queueEvent(EventLoad, o.name, LoadPayload{
		Phase:            LoadFail,
		FrameID:          frameID,
		URL:              url,
		ErrorDescription: description,
		ErrorDomain:      errorDomain,
		ErrorCode:        errorCode,
	})
}

// viewObserver forwards console and cursor observations into the event queue.
type viewObserver struct {
	bridge *Bridge
	name   string
}

func (o *viewObserver) OnConsoleMessage(msg engine.ConsoleMessage) {
	o.bridge.queueEvent(EventConsole, o.name, ConsolePayload{
		Level:    msg.Level,
		Message:  msg.Message,
		SourceID: msg.SourceID,
		Line:     msg.Line,
		Column:   msg.Column,
	})
}

func (o *viewObserver) OnCursorChanged(cursor int) {
	o.bridge.queueEvent(EventCursor, o.name, CursorPayload{CursorType: cursor})
}

// blockAllGate rejects every outbound network request a view attempts.
type blockAllGate struct {
	bridge *Bridge
}

func (g *blockAllGate) AllowRequest(url string) bool {
	g.bridge.metrics.SecurityViolations.WithLabelValues(monitoring.ViolationNetworkBlocked).Inc()
	g.bridge.errorf("BLOCKED network request: %s", url)
	return false
}
