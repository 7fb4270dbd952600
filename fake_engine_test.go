package viewbridge

import (
	"fmt"
	"sync"

	"github.com/embedkit/viewbridge/internal/engine"
)

// fakeEngine records the calls the bridge makes against the engine
// interface. Load lifecycles complete synchronously inside LoadHTML so
// tests can drive the dispatcher without a render loop.
type fakeEngine struct {
	mu         sync.Mutex
	opts       engine.Options
	views      []*fakeView
	images     map[string][]byte
	updates    int
	refreshes  int
	renders    int
	closed     bool
	failCreate bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{images: make(map[string][]byte)}
}

// factory returns an engine.Factory producing this instance.
func (f *fakeEngine) factory() engine.Factory {
	return func(opts engine.Options) (engine.Engine, error) {
		f.mu.Lock()
		f.opts = opts
		f.mu.Unlock()
		return f, nil
	}
}

func (f *fakeEngine) CreateView(width, height int, cfg engine.ViewConfig) (engine.View, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return nil, fmt.Errorf("fake: create refused")
	}
	v := &fakeView{
		eng:     f,
		surface: &fakeSurface{width: width, height: height},
		bound:   make(map[string]engine.HostFunc),
	}
	f.views = append(f.views, v)
	return v, nil
}

func (f *fakeEngine) Update()         { f.mu.Lock(); f.updates++; f.mu.Unlock() }
func (f *fakeEngine) RefreshDisplay() { f.mu.Lock(); f.refreshes++; f.mu.Unlock() }
func (f *fakeEngine) Render()         { f.mu.Lock(); f.renders++; f.mu.Unlock() }

func (f *fakeEngine) RegisterImage(id string, bgra []byte, width, height int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images[id] = bgra
	return nil
}

func (f *fakeEngine) image(id string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.images[id]
}

func (f *fakeEngine) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeEngine) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeEngine) view(i int) *fakeView {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.views) {
		return nil
	}
	return f.views[i]
}

func (f *fakeEngine) viewCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.views)
}

// fakeView completes a staged load synchronously, driving the observers the
// way a real engine would at its next update.
type fakeView struct {
	eng     *fakeEngine
	surface *fakeSurface

	loadObs engine.LoadObserver
	viewObs engine.ViewObserver
	gate    engine.NetworkGate

	mu        sync.Mutex
	loads     []string
	scripts   []string
	bound     map[string]engine.HostFunc
	resizes   [][2]int
	mouse     []engine.MouseEvent
	scrolls   []engine.ScrollEvent
	keys      []engine.KeyEvent
	focused   bool
	destroyed bool
	frameSeq  int
}

func (v *fakeView) LoadHTML(html string) {
	v.mu.Lock()
	v.loads = append(v.loads, html)
	v.frameSeq++
	frame := fmt.Sprintf("frame-%d", v.frameSeq)
	obs := v.loadObs
	v.mu.Unlock()

	if obs == nil {
		return
	}
	obs.OnBeginLoading(frame, "file:///asset/")
	obs.OnWindowObjectReady(frame, "file:///asset/")
	obs.OnDOMReady(frame, "file:///asset/")
	obs.OnFinishLoading(frame, "file:///asset/")
}

func (v *fakeView) EvaluateScript(src string) {
	v.mu.Lock()
	v.scripts = append(v.scripts, src)
	v.mu.Unlock()
}

func (v *fakeView) Resize(width, height int) {
	v.mu.Lock()
	v.resizes = append(v.resizes, [2]int{width, height})
	v.mu.Unlock()
}

func (v *fakeView) FireMouseEvent(ev engine.MouseEvent) {
	v.mu.Lock()
	v.mouse = append(v.mouse, ev)
	v.mu.Unlock()
}

func (v *fakeView) FireScrollEvent(ev engine.ScrollEvent) {
	v.mu.Lock()
	v.scrolls = append(v.scrolls, ev)
	v.mu.Unlock()
}

func (v *fakeView) FireKeyEvent(ev engine.KeyEvent) {
	v.mu.Lock()
	v.keys = append(v.keys, ev)
	v.mu.Unlock()
}

func (v *fakeView) Focus()   { v.mu.Lock(); v.focused = true; v.mu.Unlock() }
func (v *fakeView) Unfocus() { v.mu.Lock(); v.focused = false; v.mu.Unlock() }

func (v *fakeView) HasFocus() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.focused
}

func (v *fakeView) Surface() engine.Surface { return v.surface }

func (v *fakeView) BindHostFunction(name string, fn engine.HostFunc) error {
	v.mu.Lock()
	v.bound[name] = fn
	v.mu.Unlock()
	return nil
}

func (v *fakeView) SetLoadObserver(obs engine.LoadObserver) { v.loadObs = obs }
func (v *fakeView) SetViewObserver(obs engine.ViewObserver) { v.viewObs = obs }
func (v *fakeView) SetNetworkGate(gate engine.NetworkGate)  { v.gate = gate }

func (v *fakeView) Destroy() {
	v.mu.Lock()
	v.destroyed = true
	v.mu.Unlock()
}

func (v *fakeView) boundFunc(name string) engine.HostFunc {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.bound[name]
}

func (v *fakeView) recordedScripts() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, len(v.scripts))
	copy(out, v.scripts)
	return out
}

func (v *fakeView) isDestroyed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.destroyed
}

// fakeSurface is a fixed-geometry surface with settable dirtiness.
type fakeSurface struct {
	mu      sync.Mutex
	width   int
	height  int
	dirty   bool
	locks   int
	unlocks int
}

func (s *fakeSurface) Width() int  { s.mu.Lock(); defer s.mu.Unlock(); return s.width }
func (s *fakeSurface) Height() int { s.mu.Lock(); defer s.mu.Unlock(); return s.height }
func (s *fakeSurface) Stride() int { s.mu.Lock(); defer s.mu.Unlock(); return s.width * 4 }

func (s *fakeSurface) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

func (s *fakeSurface) ClearDirty() { s.mu.Lock(); s.dirty = false; s.mu.Unlock() }

func (s *fakeSurface) markDirty() { s.mu.Lock(); s.dirty = true; s.mu.Unlock() }

func (s *fakeSurface) LockPixels() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locks++
	return make([]byte, s.width*s.height*4)
}

func (s *fakeSurface) UnlockPixels() { s.mu.Lock(); s.unlocks++; s.mu.Unlock() }
