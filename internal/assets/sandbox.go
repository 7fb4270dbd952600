// Package assets serves page resources from a rooted directory sandbox.
//
// Every requested path is resolved against the sandbox root and verified to
// stay lexically inside it; anything that escapes is reported as a security
// violation and treated as nonexistent. Files with the reserved .imgsrc
// extension never touch disk: their content is synthesized in memory and
// names an image registered with the engine at runtime.
package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/embedkit/viewbridge/internal/infrastructure/logging"
)

// VirtualExt marks virtual image-reference assets.
const VirtualExt = ".imgsrc"

// virtualHeader precedes the image id in a synthesized .imgsrc payload.
const virtualHeader = "IMGSRC-V1\n"

// ErrPathEscape is returned when a requested path resolves outside the root.
var ErrPathEscape = errors.New("assets: path escapes sandbox root")

// ErrNotFound is returned for unreadable or missing assets.
var ErrNotFound = errors.New("assets: not found")

// ViolationFunc receives a description of each blocked path-escape attempt.
type ViolationFunc func(message string)

// Sandbox resolves and serves assets under a fixed root directory.
type Sandbox struct {
	root        string
	logger      *logging.Logger
	onViolation ViolationFunc
}

// New creates a sandbox rooted at root. The root is cleaned and made
// absolute; it does not need to exist yet.
func New(root string, logger *logging.Logger) (*Sandbox, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("assets: resolve root %q: %w", root, err)
	}
	return &Sandbox{
		root:   filepath.Clean(abs),
		logger: logger.Named("assets"),
	}, nil
}

// SetViolationFunc registers a callback invoked on each blocked escape
// attempt, in addition to logging. Must be set before the sandbox is used.
func (s *Sandbox) SetViolationFunc(fn ViolationFunc) {
	s.onViolation = fn
}

// Root returns the sandbox root directory.
func (s *Sandbox) Root() string { return s.root }

// Resolve joins the requested logical path onto the root, collapses any
// relative segments, and verifies the result is still contained in the root.
// Containment uses relative-path comparison, not string prefixes, so
// "/rootdir-evil" cannot pass for children of "/rootdir".
func (s *Sandbox) Resolve(requested string) (string, error) {
	joined := filepath.Join(s.root, filepath.FromSlash(requested))
	resolved := filepath.Clean(joined)

	rel, err := filepath.Rel(s.root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		s.reportEscape(requested, resolved)
		return "", ErrPathEscape
	}
	return resolved, nil
}

// FileExists reports whether the requested asset exists. Virtual assets
// always exist; escaped paths never do.
func (s *Sandbox) FileExists(requested string) bool {
	resolved, err := s.Resolve(requested)
	if err != nil {
		return false
	}
	if isVirtual(resolved) {
		return true
	}
	info, err := os.Stat(resolved)
	return err == nil && !info.IsDir()
}

// Open returns the asset's content. Virtual assets synthesize their payload;
// everything else is read from disk. Escapes and read failures both surface
// as ErrNotFound to the caller, with detail in the wrapped error.
func (s *Sandbox) Open(requested string) ([]byte, error) {
	resolved, err := s.Resolve(requested)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, requested)
	}

	if isVirtual(resolved) {
		id := imageID(resolved)
		return []byte(virtualHeader + id), nil
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		s.logger.Error("asset read failed",
			zap.String("requested", requested),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, requested, err)
	}
	return data, nil
}

// MimeType derives the asset's MIME type. The fixed extension table matches
// the render engine's expectations; unlisted extensions fall back to content
// sniffing when the file is readable.
func (s *Sandbox) MimeType(requested string) string {
	if isVirtual(requested) {
		return "text/plain"
	}

	switch strings.ToLower(filepath.Ext(requested)) {
	case ".html", ".htm":
		return "text/html"
	case ".js":
		return "application/javascript"
	case ".css":
		return "text/css"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	case ".json":
		return "application/json"
	case ".dat":
		return "application/octet-stream"
	}

	if resolved, err := s.Resolve(requested); err == nil {
		if mt, err := mimetype.DetectFile(resolved); err == nil {
			return mt.String()
		}
	}
	return "application/unknown"
}

// Charset returns the asset charset. Always UTF-8.
func (s *Sandbox) Charset(string) string { return "utf-8" }

// IsVirtual reports whether the requested path names a virtual asset.
func (s *Sandbox) IsVirtual(requested string) bool { return isVirtual(requested) }

// ImageID extracts the registered-image id from a virtual asset path.
func (s *Sandbox) ImageID(requested string) string { return imageID(requested) }

func (s *Sandbox) reportEscape(requested, resolved string) {
	msg := fmt.Sprintf("SECURITY: path escape attempt blocked: %s -> %s (must stay within %s)",
		requested, resolved, s.root)
	s.logger.Warn("path escape blocked",
		zap.String("requested", requested),
		zap.String("resolved", resolved))
	if s.onViolation != nil {
		s.onViolation(msg)
	}
}

func isVirtual(path string) bool {
	return strings.EqualFold(filepath.Ext(path), VirtualExt)
}

func imageID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
