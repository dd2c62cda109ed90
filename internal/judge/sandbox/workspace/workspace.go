// Package workspace allocates request-scoped temporary directories with guaranteed cleanup.
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"

	appErr "codejudge/pkg/errors"
	"codejudge/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var unsafePrefix = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Manager creates workspaces under one root directory.
type Manager struct {
	root string
}

// NewManager creates a manager rooted at root, or at <tmp>/codejudge when empty.
func NewManager(root string) (*Manager, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "codejudge")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, appErr.Wrapf(err, appErr.WorkspaceError, "create workspace root failed")
	}
	return &Manager{root: root}, nil
}

// Root returns the directory workspaces are created in.
func (m *Manager) Root() string {
	return m.root
}

// Acquire creates a uniquely named workspace. The caller must defer Release.
func (m *Manager) Acquire(ctx context.Context, prefix string) (*Workspace, error) {
	prefix = unsafePrefix.ReplaceAllString(prefix, "")
	if prefix == "" {
		prefix = "run"
	}
	dir := filepath.Join(m.root, fmt.Sprintf("%s-%s", prefix, uuid.NewString()))
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, appErr.Wrapf(err, appErr.WorkspaceError, "create workspace failed")
	}
	ws := &Workspace{Layout: newLayout(dir), ctx: ctx}
	for _, sub := range []string{ws.BuildDir, ws.TestsDir} {
		if err := os.Mkdir(sub, 0o700); err != nil {
			_ = ws.Release()
			return nil, appErr.Wrapf(err, appErr.WorkspaceError, "create workspace layout failed")
		}
	}
	logger.Debug(ctx, "workspace acquired", zap.String("dir", dir))
	return ws, nil
}

// Workspace is one request's private directory tree.
type Workspace struct {
	Layout

	ctx     context.Context
	once    sync.Once
	release error
}

// WriteFile writes a file relative to the workspace root.
func (w *Workspace) WriteFile(name string, data []byte) (string, error) {
	path := w.SourcePath(name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", appErr.Wrapf(err, appErr.WorkspaceError, "write %s failed", name)
	}
	return path, nil
}

// AcquireTestDir creates an empty scratch directory for one test run.
// The returned release func removes it and is safe to call more than once.
func (w *Workspace) AcquireTestDir(ordinal int) (string, func(), error) {
	dir := filepath.Join(w.TestsDir, strconv.Itoa(ordinal))
	if err := os.Mkdir(dir, 0o700); err != nil {
		return "", func() {}, appErr.Wrapf(err, appErr.WorkspaceError, "create test dir failed")
	}
	var once sync.Once
	release := func() {
		once.Do(func() {
			if err := os.RemoveAll(dir); err != nil {
				logger.Warn(w.ctx, "remove test dir failed", zap.String("dir", dir), zap.Error(err))
			}
		})
	}
	return dir, release, nil
}

// Release removes the whole workspace. It is idempotent.
func (w *Workspace) Release() error {
	w.once.Do(func() {
		if err := os.RemoveAll(w.RootDir); err != nil {
			w.release = appErr.Wrapf(err, appErr.WorkspaceError, "remove workspace failed")
			logger.Warn(w.ctx, "workspace cleanup failed", zap.String("dir", w.RootDir), zap.Error(err))
			return
		}
		logger.Debug(w.ctx, "workspace released", zap.String("dir", w.RootDir))
	})
	return w.release
}
