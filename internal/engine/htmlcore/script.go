package htmlcore

import (
	"sort"
	"strings"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/embedkit/viewbridge/internal/engine"
)

// timerTask is one setTimeout/setInterval registration.
type timerTask struct {
	id       int64
	fn       goja.Callable
	due      time.Time
	interval time.Duration
	repeat   bool
}

// setupRuntime builds a fresh script context for the current document. Each
// load gets its own VM; state from the previous document does not survive.
func (v *View) setupRuntime() {
	vm := goja.New()
	v.vm = vm
	v.timers = make(map[int64]*timerTask)
	v.rafQueue = nil

	global := vm.GlobalObject()
	vm.Set("window", global)
	vm.Set("self", global)
	vm.Set("innerWidth", v.surface.Width())
	vm.Set("innerHeight", v.surface.Height())
	vm.Set("devicePixelRatio", v.cfg.DeviceScale)
	vm.Set("scrollX", v.scrollX)
	vm.Set("scrollY", v.scrollY)

	console := vm.NewObject()
	console.Set("log", v.makeConsoleFunc(engine.ConsoleLevelLog))
	console.Set("warn", v.makeConsoleFunc(engine.ConsoleLevelWarning))
	console.Set("error", v.makeConsoleFunc(engine.ConsoleLevelError))
	console.Set("debug", v.makeConsoleFunc(engine.ConsoleLevelDebug))
	console.Set("info", v.makeConsoleFunc(engine.ConsoleLevelInfo))
	vm.Set("console", console)

	vm.Set("setTimeout", v.jsSetTimer(false))
	vm.Set("setInterval", v.jsSetTimer(true))
	vm.Set("clearTimeout", v.jsClearTimer)
	vm.Set("clearInterval", v.jsClearTimer)
	vm.Set("requestAnimationFrame", v.jsRequestAnimationFrame)

	v.installDocument()
}

func (v *View) makeConsoleFunc(level int) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, a := range call.Arguments {
			parts[i] = a.String()
		}
		v.console(level, strings.Join(parts, " "))
		return goja.Undefined()
	}
}

func (v *View) console(level int, msg string) {
	v.eng.logger.Debug("console",
		zap.Int("level", level),
		zap.String("message", msg))
	if v.viewObs != nil {
		v.viewObs.OnConsoleMessage(engine.ConsoleMessage{
			Level:    level,
			Message:  msg,
			SourceID: pageBaseURL,
		})
	}
}

func (v *View) jsSetTimer(repeat bool) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			return goja.Undefined()
		}
		delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
		if delay < 0 {
			delay = 0
		}
		v.timerSeq++
		id := v.timerSeq
		v.timers[id] = &timerTask{
			id:       id,
			fn:       fn,
			due:      time.Now().Add(delay),
			interval: delay,
			repeat:   repeat,
		}
		return v.vm.ToValue(id)
	}
}

func (v *View) jsClearTimer(call goja.FunctionCall) goja.Value {
	delete(v.timers, call.Argument(0).ToInteger())
	return goja.Undefined()
}

func (v *View) jsRequestAnimationFrame(call goja.FunctionCall) goja.Value {
	if fn, ok := goja.AssertFunction(call.Argument(0)); ok {
		v.rafQueue = append(v.rafQueue, fn)
	}
	return v.vm.ToValue(int64(len(v.rafQueue)))
}

// runTimers fires due tasks in due order, id as tiebreak. Tasks scheduled
// by a firing callback wait for the next frame.
func (v *View) runTimers(now time.Time) {
	if v.vm == nil || len(v.timers) == 0 {
		return
	}
	due := make([]*timerTask, 0, len(v.timers))
	for _, t := range v.timers {
		if !t.due.After(now) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].due.Equal(due[j].due) {
			return due[i].id < due[j].id
		}
		return due[i].due.Before(due[j].due)
	})

	for _, t := range due {
		if _, still := v.timers[t.id]; !still {
			continue
		}
		if t.repeat {
			t.due = now.Add(t.interval)
		} else {
			delete(v.timers, t.id)
		}
		if _, err := t.fn(goja.Undefined()); err != nil {
			v.console(engine.ConsoleLevelError, formatJSError(err))
		}
		if v.vm == nil {
			return
		}
	}
	v.displayPending = true
}

func (v *View) runAnimationFrames(now time.Time) {
	if v.vm == nil || len(v.rafQueue) == 0 {
		return
	}
	queue := v.rafQueue
	v.rafQueue = nil
	stamp := v.vm.ToValue(float64(now.UnixNano()) / float64(time.Millisecond))
	for _, fn := range queue {
		if _, err := fn(goja.Undefined(), stamp); err != nil {
			v.console(engine.ConsoleLevelError, formatJSError(err))
		}
		if v.vm == nil {
			return
		}
	}
	v.displayPending = true
}

// runDocumentScripts executes the document's script elements in order.
// External references resolve through the sandboxed filesystem; absolute
// URLs go to the network gate.
func (v *View) runDocumentScripts() {
	for _, s := range v.doc.scripts() {
		if s.src == "" {
			if strings.TrimSpace(s.inline) != "" {
				v.runScript(s.inline, "inline")
			}
			continue
		}
		if isAbsoluteURL(s.src) {
			if v.gate == nil || !v.gate.AllowRequest(s.src) {
				v.console(engine.ConsoleLevelWarning, "blocked external script: "+s.src)
			}
			continue
		}
		fs := v.eng.opts.FS
		if fs == nil {
			v.console(engine.ConsoleLevelError, "no filesystem to load script: "+s.src)
			continue
		}
		path := assetPath(s.src)
		if !fs.FileExists(path) {
			v.console(engine.ConsoleLevelError, "script not found: "+s.src)
			continue
		}
		data, err := fs.Open(path)
		if err != nil {
			v.console(engine.ConsoleLevelError, "script unreadable: "+s.src)
			continue
		}
		v.runScript(string(data), s.src)
	}
}

func (v *View) runScript(src, name string) {
	if v.vm == nil {
		return
	}
	if _, err := v.vm.RunScript(name, src); err != nil {
		v.console(engine.ConsoleLevelError, formatJSError(err))
	}
}

// callHandler invokes a page-installed global handler if one exists.
func (v *View) callHandler(name string, payload map[string]interface{}) {
	if v.vm == nil {
		return
	}
	val := v.vm.Get(name)
	if val == nil {
		return
	}
	fn, ok := goja.AssertFunction(val)
	if !ok {
		return
	}
	arg := goja.Undefined()
	if payload != nil {
		arg = v.vm.ToValue(payload)
	}
	if _, err := fn(goja.Undefined(), arg); err != nil {
		v.console(engine.ConsoleLevelError, formatJSError(err))
	}
}

func formatJSError(err error) string {
	if ex, ok := err.(*goja.Exception); ok {
		return ex.Error()
	}
	return err.Error()
}

func isAbsoluteURL(ref string) bool {
	return strings.Contains(ref, "://") || strings.HasPrefix(ref, "//")
}

// assetPath maps a page resource reference to a sandbox-relative path.
func assetPath(ref string) string {
	ref = strings.TrimPrefix(ref, pageBaseURL)
	ref = strings.TrimPrefix(ref, "/")
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	return ref
}
