package workspace_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"codejudge/internal/judge/sandbox/workspace"
)

func TestWorkspaceLifecycle(t *testing.T) {
	mgr, err := workspace.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("create manager: %v", err)
	}

	ws, err := mgr.Acquire(context.Background(), "cpp")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(ws.RootDir), "cpp-") {
		t.Fatalf("unexpected workspace name %s", ws.RootDir)
	}
	for _, dir := range []string{ws.RootDir, ws.BuildDir, ws.TestsDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}

	path, err := ws.WriteFile("main.cpp", []byte("int main(){}"))
	if err != nil {
		t.Fatalf("write file: %v", err)
	}
	if path != ws.SourcePath("main.cpp") {
		t.Fatalf("unexpected source path %s", path)
	}

	testDir, release, err := ws.AcquireTestDir(1)
	if err != nil {
		t.Fatalf("acquire test dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(testDir, "junk.txt"), []byte("x"), 0o600); err != nil {
		t.Fatalf("write junk: %v", err)
	}
	release()
	release()
	if _, err := os.Stat(testDir); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected test dir to be removed, got %v", err)
	}

	if err := ws.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := ws.Release(); err != nil {
		t.Fatalf("second release: %v", err)
	}
	if _, err := os.Stat(ws.RootDir); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected workspace to be removed, got %v", err)
	}
}

func TestWorkspaceNamesAreUnique(t *testing.T) {
	mgr, err := workspace.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("create manager: %v", err)
	}
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		ws, err := mgr.Acquire(context.Background(), "python")
		if err != nil {
			t.Fatalf("acquire: %v", err)
		}
		if seen[ws.RootDir] {
			t.Fatalf("duplicate workspace %s", ws.RootDir)
		}
		seen[ws.RootDir] = true
		defer ws.Release()
	}
}

func TestWorkspacePrefixSanitized(t *testing.T) {
	mgr, err := workspace.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("create manager: %v", err)
	}
	ws, err := mgr.Acquire(context.Background(), "../../etc")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer ws.Release()
	if filepath.Dir(ws.RootDir) != mgr.Root() {
		t.Fatalf("workspace escaped root: %s", ws.RootDir)
	}
	if !strings.HasPrefix(filepath.Base(ws.RootDir), "etc-") {
		t.Fatalf("unexpected workspace name %s", ws.RootDir)
	}
}
