// Package htmlcore is the built-in render engine: a goja-backed HTML/JS
// environment with a CPU pixel surface per view.
//
// It implements the engine interfaces the bridge drives. Layout and
// rasterization are outside its scope; it parses markup, executes page
// script in an isolated VM per load, observes console and cursor activity,
// serves asset references through the sandboxed filesystem, and tracks
// surface dirtiness for the host.
package htmlcore

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/embedkit/viewbridge/internal/engine"
	"github.com/embedkit/viewbridge/internal/infrastructure/logging"
)

// image is a runtime-registered BGRA bitmap referenced by .imgsrc assets.
type image struct {
	width, height int
	pixels        []byte
}

// Engine implements engine.Engine. All methods run on the bridge's render
// goroutine; surfaces carry their own locks for host access.
type Engine struct {
	id     string
	opts   engine.Options
	logger *logging.Logger

	images map[string]*image
	views  map[*View]struct{}
	closed bool
}

// New constructs an engine. Matches engine.Factory.
func New(opts engine.Options) (engine.Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	e := &Engine{
		id:     uuid.NewString(),
		opts:   opts,
		logger: logger.Named("htmlcore"),
		images: make(map[string]*image),
		views:  make(map[*View]struct{}),
	}

	if opts.GPU {
		e.logger.Info("gpu acceleration requested; htmlcore renders on the cpu",
			zap.String("engine", e.id))
	}
	e.logger.Info("engine created",
		zap.String("engine", e.id),
		zap.String("resources", opts.ResourceBasePath))
	return e, nil
}

// CreateView allocates a view with its own surface.
func (e *Engine) CreateView(width, height int, cfg engine.ViewConfig) (engine.View, error) {
	if e.closed {
		return nil, fmt.Errorf("htmlcore: engine is closed")
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("htmlcore: invalid view dimensions %dx%d", width, height)
	}

	v := newView(e, width, height, cfg)
	e.views[v] = struct{}{}
	return v, nil
}

// Update performs pending document loads and runs due timers and animation
// frame callbacks across all views.
func (e *Engine) Update() {
	now := time.Now()
	for v := range e.views {
		v.step(now)
	}
}

// RefreshDisplay queues a repaint for every view with pending visual
// changes.
func (e *Engine) RefreshDisplay() {
	for v := range e.views {
		if v.displayPending {
			v.paintQueued = true
		}
	}
}

// Render paints queued views into their surfaces. Locked surfaces are left
// alone and retried next frame.
func (e *Engine) Render() {
	for v := range e.views {
		if !v.paintQueued || v.surface.isLocked() {
			continue
		}
		v.paint()
		v.paintQueued = false
		v.displayPending = false
	}
}

// RegisterImage stores a BGRA bitmap for later .imgsrc lookup.
func (e *Engine) RegisterImage(id string, bgra []byte, width, height int) error {
	if id == "" || len(bgra) == 0 || width <= 0 || height <= 0 {
		return fmt.Errorf("htmlcore: invalid image parameters (id=%q, %d bytes, %dx%d)",
			id, len(bgra), width, height)
	}
	if need := width * height * 4; len(bgra) < need {
		return fmt.Errorf("htmlcore: image %q pixel buffer too small (%d bytes, need %d)",
			id, len(bgra), need)
	}

	e.images[id] = &image{width: width, height: height, pixels: bgra}
	e.logger.Debug("image registered",
		zap.String("id", id),
		zap.Int("width", width),
		zap.Int("height", height))
	return nil
}

// Close destroys all remaining views and shuts the engine down.
func (e *Engine) Close() error {
	remaining := make([]*View, 0, len(e.views))
	for v := range e.views {
		remaining = append(remaining, v)
	}
	for _, v := range remaining {
		v.Destroy()
	}

	e.closed = true
	e.images = nil
	e.logger.Info("engine closed", zap.String("engine", e.id))
	return nil
}

func (e *Engine) lookupImage(id string) (*image, bool) {
	img, ok := e.images[id]
	return img, ok
}

func (e *Engine) removeView(v *View) {
	delete(e.views, v)
}
