package viewbridge

import (
	"path/filepath"

	"github.com/embedkit/viewbridge/internal/assets"
	"github.com/embedkit/viewbridge/internal/engine"
	"github.com/embedkit/viewbridge/internal/infrastructure/monitoring"
)

// apply runs one command on the render goroutine. The switch is exhaustive
// over the closed command set.
func (b *Bridge) apply(cmd command) {
	switch c := cmd.(type) {
	case cmdInit:
		b.applyInit(c)
	case cmdShutdown:
		b.applyShutdown()
	case cmdCreateView:
		b.applyCreateView(c)
	case cmdDeleteView:
		b.applyDeleteView(c)
	case cmdLoadHTML:
		b.applyLoadHTML(c)
	case cmdEvalScript:
		b.applyEvalScript(c)
	case cmdResize:
		b.applyResize(c)
	case cmdMouseInput:
		b.applyMouseInput(c)
	case cmdScrollInput:
		b.applyScrollInput(c)
	case cmdKeyInput:
		b.applyKeyInput(c)
	case cmdFocus:
		b.applyFocus(c)
	case cmdUnfocus:
		b.applyUnfocus(c)
	case cmdRegisterImage:
		b.applyRegisterImage(c)
	}
}

func (b *Bridge) applyInit(cmd cmdInit) {
	if b.initialized.Load() {
		b.errorf("init: engine already initialized")
		return
	}

	base := cmd.resourcePath
	if base == "" {
		base = "."
	}
	resources := filepath.Join(base, "resources")
	b.logf("engine resources: %s", resources)

	sandbox, err := assets.New(resources, b.opts.Logger)
	if err != nil {
		b.errorf("init: asset sandbox: %v", err)
		return
	}
	sandbox.SetViolationFunc(func(msg string) {
		b.metrics.SecurityViolations.WithLabelValues(monitoring.ViolationPathEscape).Inc()
		b.queueEvent(EventError, "", MessagePayload{Message: msg})
	})

	eng, err := b.opts.EngineFactory(engine.Options{
		GPU:              cmd.gpu,
		ResourceBasePath: resources,
		FS:               sandbox,
		Logger:           b.opts.Logger,
	})
	if err != nil {
		b.errorf("init: engine construction: %v", err)
		return
	}

	b.eng = eng
	b.initialized.Store(true)
}

// applyShutdown releases the engine but leaves the running flag alone: the
// goroutine is the host's to join via Stop, and flipping the flag from here
// would let a concurrent Start resurrect this loop alongside a fresh one.
func (b *Bridge) applyShutdown() {
	b.destroyAllViews()
	if b.eng != nil {
		if err := b.eng.Close(); err != nil {
			b.errorf("shutdown: engine close: %v", err)
		}
		b.eng = nil
	}
	b.initialized.Store(false)
}

func (b *Bridge) applyCreateView(cmd cmdCreateView) {
	if b.eng == nil {
		b.errorf("create_view %q: engine not initialized", cmd.name)
		return
	}

	if _, exists := b.registry.get(cmd.name); exists {
		// A fresh view under a live name replaces the old one; the token is
		// regenerated so the stale one stops authorizing calls.
		b.errorf("create_view: view %q already exists, replacing", cmd.name)
		b.destroyNamedView(cmd.name)
	}

	handle, err := b.eng.CreateView(cmd.width, cmd.height, engine.ViewConfig{
		Transparent: true,
		DeviceScale: 1.0,
	})
	if err != nil {
		b.errorf("create_view %q: %v", cmd.name, err)
		return
	}

	tok, err := b.tokens.Generate()
	if err != nil {
		handle.Destroy()
		b.errorf("create_view %q: token generation: %v", cmd.name, err)
		return
	}

	v := &view{handle: handle, token: tok}
	b.registry.insert(cmd.name, v)

	handle.SetLoadObserver(&loadObserver{bridge: b, name: cmd.name})
	handle.SetViewObserver(&viewObserver{bridge: b, name: cmd.name})
	handle.SetNetworkGate(&blockAllGate{bridge: b})

	b.metrics.ViewsActive.Set(float64(b.registry.count()))
	b.queueEvent(EventViewCreated, cmd.name, ViewCreatedPayload{SecurityToken: tok.String()})
}

func (b *Bridge) applyDeleteView(cmd cmdDeleteView) {
	if !b.destroyNamedView(cmd.name) {
		b.errorf("delete_view: view not found: %s", cmd.name)
		return
	}
	b.metrics.ViewsActive.Set(float64(b.registry.count()))
}

func (b *Bridge) applyLoadHTML(cmd cmdLoadHTML) {
	v, ok := b.registry.get(cmd.name)
	if !ok {
		b.errorf("load_html: view not found: %s", cmd.name)
		return
	}

	// Scripts requested from here until the next DOM-ready are backlogged
	// rather than run against a dying script context.
	v.domReady = false
	v.handle.LoadHTML(cmd.html)
}

func (b *Bridge) applyEvalScript(cmd cmdEvalScript) {
	v, ok := b.registry.get(cmd.name)
	if !ok {
		b.errorf("dropping eval_script for %s: view does not exist", cmd.name)
		return
	}

	if !v.domReady {
		v.pendingScripts = append(v.pendingScripts, cmd.script)
		return
	}
	v.handle.EvaluateScript(cmd.script)
}

func (b *Bridge) applyResize(cmd cmdResize) {
	v, ok := b.registry.get(cmd.name)
	if !ok {
		b.errorf("resize: view not found: %s", cmd.name)
		return
	}
	v.handle.Resize(cmd.width, cmd.height)
}

func (b *Bridge) applyMouseInput(cmd cmdMouseInput) {
	v, ok := b.registry.get(cmd.name)
	if !ok {
		// Input events race view deletion under normal operation.
		return
	}
	v.handle.FireMouseEvent(engine.MouseEvent{
		Kind:   engine.MouseEventKind(cmd.eventKind),
		X:      cmd.x,
		Y:      cmd.y,
		Button: engine.MouseButton(cmd.button),
	})
}

func (b *Bridge) applyScrollInput(cmd cmdScrollInput) {
	v, ok := b.registry.get(cmd.name)
	if !ok {
		return
	}
	v.handle.FireScrollEvent(engine.ScrollEvent{
		Kind:   engine.ScrollEventKind(cmd.eventKind),
		DeltaX: cmd.x,
		DeltaY: cmd.y,
	})
	if b.eng != nil {
		b.eng.RefreshDisplay()
	}
}

func (b *Bridge) applyKeyInput(cmd cmdKeyInput) {
	v, ok := b.registry.get(cmd.name)
	if !ok {
		return
	}
	if cmd.eventKind < int(engine.KeyUp) || cmd.eventKind > int(engine.KeyChar) {
		return
	}
	v.handle.FireKeyEvent(engine.KeyEvent{
		Kind:       engine.KeyEventKind(cmd.eventKind),
		VirtualKey: cmd.virtualKey,
		Modifiers:  cmd.modifiers,
	})
}

func (b *Bridge) applyFocus(cmd cmdFocus) {
	if v, ok := b.registry.get(cmd.name); ok {
		v.handle.Focus()
	}
}

func (b *Bridge) applyUnfocus(cmd cmdUnfocus) {
	if v, ok := b.registry.get(cmd.name); ok {
		v.handle.Unfocus()
	}
}

func (b *Bridge) applyRegisterImage(cmd cmdRegisterImage) {
	if b.eng == nil {
		b.errorf("register_image %q: engine not initialized", cmd.id)
		return
	}
	if err := b.eng.RegisterImage(cmd.id, cmd.pixels, cmd.width, cmd.height); err != nil {
		b.errorf("register_image %q: %v", cmd.id, err)
	}
}

// destroyNamedView removes and fully disposes a view. Returns false when no
// view by that name exists.
func (b *Bridge) destroyNamedView(name string) bool {
	v, ok := b.registry.remove(name)
	if !ok {
		return false
	}
	b.disposeView(v)
	return true
}

// disposeView tears down a removed registry entry: reverse-lookup binding
// first so script callbacks stop resolving, then any held pixel lock, then
// observers, then the engine view itself.
func (b *Bridge) disposeView(v *view) {
	b.registry.releaseBinding(v.binding)
	v.binding = bindingHandle{}

	if v.locked != nil {
		v.locked.UnlockPixels()
		v.locked = nil
		v.pixels = nil
	}

	v.handle.SetLoadObserver(nil)
	v.handle.SetViewObserver(nil)
	v.handle.SetNetworkGate(nil)
	v.handle.Destroy()
}

func (b *Bridge) destroyAllViews() {
	for _, name := range b.registry.names() {
		b.destroyNamedView(name)
	}
	b.metrics.ViewsActive.Set(0)
}
