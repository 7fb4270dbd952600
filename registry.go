package viewbridge

import (
	"sync"

	"github.com/embedkit/viewbridge/internal/engine"
	"github.com/embedkit/viewbridge/internal/shared/token"
)

// view is the registry entry for one live view. The engine handle and the
// render-side fields (domReady, pendingScripts) are mutated only on the
// render goroutine; the registry lock guards the host-thread reads.
type view struct {
	handle engine.View

	// locked is non-nil only between AcquirePixels and ReleasePixels.
	locked engine.Surface
	pixels []byte

	domReady       bool
	pendingScripts []string

	token   token.Token
	binding bindingHandle
}

// bindingHandle is a generation-checked index into the registry's binding
// arena. Script-bridge callbacks carry the handle rather than a view
// reference, so a callback that outlives its view resolves to nothing
// instead of to a recycled entry.
type bindingHandle struct {
	index int
	gen   uint32
}

type bindingSlot struct {
	gen  uint32
	name string
	live bool
}

// registry owns the name-to-view mapping and the binding arena. One lock
// covers both; it is shared between the render-thread dispatcher and the
// synchronous host-thread reads, held only for the lookup or field access.
type registry struct {
	mu    sync.Mutex
	views map[string]*view
	slots []bindingSlot
	free  []int
}

func newRegistry() *registry {
	return &registry{views: make(map[string]*view)}
}

func (r *registry) insert(name string, v *view) {
	r.mu.Lock()
	r.views[name] = v
	r.mu.Unlock()
}

func (r *registry) get(name string) (*view, bool) {
	r.mu.Lock()
	v, ok := r.views[name]
	r.mu.Unlock()
	return v, ok
}

func (r *registry) remove(name string) (*view, bool) {
	r.mu.Lock()
	v, ok := r.views[name]
	if ok {
		delete(r.views, name)
	}
	r.mu.Unlock()
	return v, ok
}

func (r *registry) count() int {
	r.mu.Lock()
	n := len(r.views)
	r.mu.Unlock()
	return n
}

// names returns a snapshot of all live view names.
func (r *registry) names() []string {
	r.mu.Lock()
	out := make([]string, 0, len(r.views))
	for name := range r.views {
		out = append(out, name)
	}
	r.mu.Unlock()
	return out
}

// tokenOf returns the view's capability token, or empty if unknown.
func (r *registry) tokenOf(name string) token.Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.views[name]; ok {
		return v.token
	}
	return ""
}

// allocBinding reserves an arena slot mapping back to the named view.
func (r *registry) allocBinding(name string) bindingHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	var idx int
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		idx = len(r.slots)
		r.slots = append(r.slots, bindingSlot{})
	}

	slot := &r.slots[idx]
	slot.gen++
	slot.name = name
	slot.live = true
	return bindingHandle{index: idx, gen: slot.gen}
}

// releaseBinding retires an arena slot. Handles pointing at the slot stop
// resolving immediately; the slot may be reused under a new generation.
func (r *registry) releaseBinding(h bindingHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h.index < 0 || h.index >= len(r.slots) {
		return
	}
	slot := &r.slots[h.index]
	if !slot.live || slot.gen != h.gen {
		return
	}
	slot.live = false
	slot.name = ""
	r.free = append(r.free, h.index)
}

// resolveBinding maps a handle back to its view name. Stale handles
// (released, or recycled under a newer generation) do not resolve.
func (r *registry) resolveBinding(h bindingHandle) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h.index < 0 || h.index >= len(r.slots) {
		return "", false
	}
	slot := r.slots[h.index]
	if !slot.live || slot.gen != h.gen {
		return "", false
	}
	return slot.name, true
}
