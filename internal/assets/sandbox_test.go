package assets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embedkit/viewbridge/internal/infrastructure/logging"
)

func newTestSandbox(t *testing.T) (*Sandbox, string) {
	t.Helper()
	root := t.TempDir()
	s, err := New(root, logging.NewNop())
	require.NoError(t, err)
	return s, root
}

func TestResolveContainment(t *testing.T) {
	s, root := newTestSandbox(t)

	tests := []struct {
		name      string
		requested string
		wantErr   bool
	}{
		{"plain file", "index.html", false},
		{"subdirectory", "css/site.css", false},
		{"dot segment", "./img/logo.png", false},
		{"internal dotdot that stays inside", "css/../index.html", false},
		{"parent escape", "../secrets.txt", true},
		{"deep escape", "a/b/../../../etc/passwd", true},
		{"bare dotdot", "..", true},
		{"absolute path stays rooted", "/index.html", false},
		{"sibling prefix trick", "../" + filepath.Base(root) + "-evil/x", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved, err := s.Resolve(tt.requested)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrPathEscape)
				return
			}
			require.NoError(t, err)
			rel, err := filepath.Rel(root, resolved)
			require.NoError(t, err)
			assert.False(t, filepath.IsAbs(rel))
			assert.NotEqual(t, "..", rel)
		})
	}
}

func TestResolveRootItself(t *testing.T) {
	s, root := newTestSandbox(t)

	resolved, err := s.Resolve(".")
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean(root), resolved)
}

func TestEscapeReportsViolation(t *testing.T) {
	s, _ := newTestSandbox(t)

	var violations []string
	s.SetViolationFunc(func(msg string) { violations = append(violations, msg) })

	_, err := s.Resolve("../../etc/shadow")
	assert.ErrorIs(t, err, ErrPathEscape)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "SECURITY")

	// A contained resolve must not report anything.
	_, err = s.Resolve("ok.txt")
	require.NoError(t, err)
	assert.Len(t, violations, 1)
}

func TestOpenDiskFile(t *testing.T) {
	s, root := newTestSandbox(t)

	content := []byte("<html><body>hi</body></html>")
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), content, 0o644))

	got, err := s.Open("index.html")
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestOpenMissingFile(t *testing.T) {
	s, _ := newTestSandbox(t)

	_, err := s.Open("missing.js")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenEscapedPathIsNotFound(t *testing.T) {
	s, _ := newTestSandbox(t)

	_, err := s.Open("../outside.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVirtualAsset(t *testing.T) {
	s, _ := newTestSandbox(t)

	assert.True(t, s.FileExists("sprites/hero.imgsrc"))

	data, err := s.Open("sprites/hero.imgsrc")
	require.NoError(t, err)
	assert.Equal(t, "IMGSRC-V1\nhero", string(data))

	assert.Equal(t, "hero", s.ImageID("sprites/hero.imgsrc"))
	assert.True(t, s.IsVirtual("x.IMGSRC"))
	assert.False(t, s.IsVirtual("x.png"))
}

func TestVirtualAssetNeverTouchesDisk(t *testing.T) {
	s, root := newTestSandbox(t)

	// A real file with the virtual extension must still be synthesized.
	require.NoError(t, os.WriteFile(filepath.Join(root, "decoy.imgsrc"), []byte("disk bytes"), 0o644))

	data, err := s.Open("decoy.imgsrc")
	require.NoError(t, err)
	assert.Equal(t, "IMGSRC-V1\ndecoy", string(data))
}

func TestFileExists(t *testing.T) {
	s, root := newTestSandbox(t)

	require.NoError(t, os.WriteFile(filepath.Join(root, "app.js"), []byte("1"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))

	assert.True(t, s.FileExists("app.js"))
	assert.False(t, s.FileExists("nope.js"))
	assert.False(t, s.FileExists("sub"), "directories are not assets")
	assert.False(t, s.FileExists("../app.js"))
}

func TestMimeTypes(t *testing.T) {
	s, _ := newTestSandbox(t)

	tests := []struct {
		path string
		want string
	}{
		{"index.html", "text/html"},
		{"page.htm", "text/html"},
		{"app.js", "application/javascript"},
		{"site.css", "text/css"},
		{"logo.png", "image/png"},
		{"photo.jpg", "image/jpeg"},
		{"photo.jpeg", "image/jpeg"},
		{"anim.gif", "image/gif"},
		{"icon.svg", "image/svg+xml"},
		{"data.json", "application/json"},
		{"blob.dat", "application/octet-stream"},
		{"hero.imgsrc", "text/plain"},
		{"unknown.xyz", "application/unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, s.MimeType(tt.path))
		})
	}
}

func TestMimeTypeSniffFallback(t *testing.T) {
	s, root := newTestSandbox(t)

	// PNG magic bytes under an unlisted extension should be sniffed.
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}
	require.NoError(t, os.WriteFile(filepath.Join(root, "pic.bin"), png, 0o644))

	assert.Equal(t, "image/png", s.MimeType("pic.bin"))
}

func TestCharsetAlwaysUTF8(t *testing.T) {
	s, _ := newTestSandbox(t)
	assert.Equal(t, "utf-8", s.Charset("anything.html"))
	assert.Equal(t, "utf-8", s.Charset("hero.imgsrc"))
}
