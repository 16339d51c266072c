package plugin

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ayusman/boardsight/internal/logging"
)

// install writes a plugin directory named dir under root with the given
// manifest text. An empty manifest leaves the directory without one.
func install(t *testing.T, root, dir, manifest string) string {
	t.Helper()

	path := filepath.Join(root, dir)
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if manifest != "" {
		if err := os.WriteFile(filepath.Join(path, ManifestFile), []byte(manifest), 0o644); err != nil {
			t.Fatalf("write manifest: %v", err)
		}
	}
	return path
}

func names(plugins []*Plugin) []string {
	out := make([]string, 0, len(plugins))
	for _, p := range plugins {
		out = append(out, p.Name())
	}
	return out
}

func TestDiscover_LoadsManifest(t *testing.T) {
	root := t.TempDir()
	dir := install(t, root, "rubik-solver", `{
		"name": "rubik-solver",
		"version": "1.0.0",
		"description": "two-phase solver",
		"executable": "bin/rubik-solver",
		"actions": ["solve"],
		"configSchema": {"type": "object"}
	}`)

	m := NewManager(root, logging.Discard())
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	p, err := m.Get("rubik-solver")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.Dir != dir {
		t.Errorf("Dir = %q, want %q", p.Dir, dir)
	}
	if want := filepath.Join(dir, "bin", "rubik-solver"); p.Executable != want {
		t.Errorf("Executable = %q, want %q", p.Executable, want)
	}
	if p.Manifest.Version != "1.0.0" || p.Manifest.Description != "two-phase solver" {
		t.Errorf("Manifest = %+v", p.Manifest)
	}
	if !p.Manifest.Supports("solve") || p.Manifest.Supports("scramble") {
		t.Errorf("Supports() disagrees with actions %v", p.Manifest.Actions)
	}
	if string(p.Manifest.ConfigSchema) != `{"type": "object"}` {
		t.Errorf("ConfigSchema = %s", p.Manifest.ConfigSchema)
	}
}

func TestDiscover_SkipsBrokenPlugins(t *testing.T) {
	root := t.TempDir()
	install(t, root, "solver-b", `{"name":"solver-b","executable":"run","actions":["solve"]}`)
	install(t, root, "solver-a", `{"name":"solver-a","executable":"run","actions":["solve"]}`)
	install(t, root, "no-manifest", "")
	install(t, root, "bad-json", `{"name":`)
	install(t, root, "nameless", `{"executable":"run","actions":["solve"]}`)
	install(t, root, "no-exec", `{"name":"no-exec","actions":["solve"]}`)
	install(t, root, "escapes", `{"name":"escapes","executable":"../../bin/sh","actions":["solve"]}`)
	install(t, root, "idle", `{"name":"idle","executable":"run"}`)
	install(t, root, "zz-dup", `{"name":"solver-a","executable":"run","actions":["solve"]}`)
	if err := os.WriteFile(filepath.Join(root, "README"), []byte("not a plugin"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewManager(root, logging.Discard())
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	if diff := cmp.Diff([]string{"solver-a", "solver-b"}, names(m.List())); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
	// Directories are read in name order, so the first solver-a wins.
	if p, _ := m.Get("solver-a"); p == nil || filepath.Base(p.Dir) != "solver-a" {
		t.Errorf("solver-a loaded from %v", p)
	}
}

func TestDiscover_MissingRoot(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plugins")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		root string
	}{
		{name: "does not exist", root: filepath.Join(t.TempDir(), "plugins")},
		{name: "is a file", root: file},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(tt.root, nil)
			if err := m.Discover(); err != nil {
				t.Fatalf("Discover() error = %v", err)
			}
			if got := m.List(); len(got) != 0 {
				t.Errorf("List() = %v, want empty", names(got))
			}
		})
	}
}

func TestDiscover_ReplacesPreviousScan(t *testing.T) {
	root := t.TempDir()
	dir := install(t, root, "rubik-solver", `{"name":"rubik-solver","executable":"run","actions":["solve"]}`)

	m := NewManager(root, logging.Discard())
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	if err := m.Discover(); err != nil {
		t.Fatalf("second Discover() error = %v", err)
	}

	if _, err := m.Get("rubik-solver"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("Get() error = %v, want ErrPluginNotFound", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	m := NewManager(t.TempDir(), nil)

	_, err := m.Get("rubik-solver")
	if !errors.Is(err, ErrPluginNotFound) {
		t.Fatalf("Get() error = %v, want ErrPluginNotFound", err)
	}
	if got := err.Error(); got != "plugin not found: rubik-solver" {
		t.Errorf("Error() = %q", got)
	}
}

func TestRoot(t *testing.T) {
	if got := NewManager("/opt/boardsight/plugins", nil).Root(); got != "/opt/boardsight/plugins" {
		t.Errorf("Root() = %q", got)
	}
}
