package update

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/adamancini/hoist/internal/types"
)

// writeZip creates a zip archive at path holding files (name -> content).
// Names ending in "/" become directories.
func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create zip: %v", err)
	}
	defer func() { _ = f.Close() }()

	zw := zip.NewWriter(f)
	for name, content := range files {
		hdr := &zip.FileHeader{Name: name, Method: zip.Deflate}
		if name[len(name)-1] == '/' {
			hdr.SetMode(os.ModeDir | 0755)
		} else {
			hdr.SetMode(0755)
		}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			t.Fatalf("Failed to add %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to finish zip: %v", err)
	}
}

// bundleZip returns the bytes of a zip holding one App.app bundle whose
// executable contains marker.
func bundleZip(t *testing.T, marker string) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bundle.zip")
	writeZip(t, path, map[string]string{
		"App.app/Contents/MacOS/app":   marker,
		"App.app/Contents/Info.plist": "<plist/>",
	})
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read zip: %v", err)
	}
	return data
}

// makeBundle creates dir/name with an executable containing marker.
func makeBundle(t *testing.T, dir, name, marker string) string {
	t.Helper()
	bundle := filepath.Join(dir, name)
	exe := filepath.Join(bundle, "Contents", "MacOS", "app")
	if err := os.MkdirAll(filepath.Dir(exe), 0755); err != nil {
		t.Fatalf("Failed to create bundle: %v", err)
	}
	if err := os.WriteFile(exe, []byte(marker), 0755); err != nil {
		t.Fatalf("Failed to write executable: %v", err)
	}
	return bundle
}

// bundleMarker reads back the executable written by makeBundle.
func bundleMarker(t *testing.T, bundle string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(bundle, "Contents", "MacOS", "app"))
	if err != nil {
		t.Fatalf("Failed to read bundle executable: %v", err)
	}
	return string(data)
}

func skipIfRoot(t *testing.T) {
	t.Helper()
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
}

// fakeStrategy returns a fixed result and records calls.
type fakeStrategy struct {
	kind   types.StrategyKind
	result InstallResult
	mu     sync.Mutex
	calls  int
}

func (s *fakeStrategy) Kind() types.StrategyKind { return s.kind }

func (s *fakeStrategy) TryInstall(_ context.Context, _ *StagedBundle) InstallResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.result
}

func (s *fakeStrategy) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// fakeRunner records commands and replies from a script.
type fakeRunner struct {
	mu       sync.Mutex
	commands [][]string
	reply    func(name string, args []string) ([]byte, error)
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	r.commands = append(r.commands, append([]string{name}, args...))
	r.mu.Unlock()
	if r.reply == nil {
		return nil, nil
	}
	return r.reply(name, args)
}
