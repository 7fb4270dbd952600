package htmlcore

import "sync"

// surface is a BGRA pixel buffer shared between the render goroutine and
// the host. The mutex guards geometry, the dirty flag, and the lock state;
// pixel contents are only written while unlocked.
type surface struct {
	mu     sync.Mutex
	width  int
	height int
	pixels []byte
	dirty  bool
	locked bool

	// Resize requested while the host held the lock; applied at unlock.
	pendingW, pendingH int
	resizePending      bool
}

func newSurface(width, height int) *surface {
	return &surface{
		width:  width,
		height: height,
		pixels: make([]byte, width*height*4),
	}
}

func (s *surface) Width() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width
}

func (s *surface) Height() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.height
}

func (s *surface) Stride() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width * 4
}

func (s *surface) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

func (s *surface) ClearDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = false
}

// LockPixels hands the buffer to the host. The render goroutine skips
// painting this surface until UnlockPixels.
func (s *surface) LockPixels() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked = true
	return s.pixels
}

func (s *surface) UnlockPixels() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked = false
	if s.resizePending {
		s.resizePending = false
		s.apply(s.pendingW, s.pendingH)
	}
}

func (s *surface) isLocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked
}

// resize reallocates the buffer. While the host holds the lock the swap is
// deferred, like painting, so the reported geometry always describes the
// buffer the host is holding.
func (s *surface) resize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked {
		s.pendingW = width
		s.pendingH = height
		s.resizePending = true
		return
	}
	s.apply(width, height)
}

func (s *surface) apply(width, height int) {
	s.width = width
	s.height = height
	s.pixels = make([]byte, width*height*4)
	s.dirty = true
}

// fill writes a solid BGRA color. Skipped while the host holds the buffer.
func (s *surface) fill(b, g, r, a byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked {
		return false
	}
	for i := 0; i+3 < len(s.pixels); i += 4 {
		s.pixels[i] = b
		s.pixels[i+1] = g
		s.pixels[i+2] = r
		s.pixels[i+3] = a
	}
	s.dirty = true
	return true
}
