// Package workdir manages per-request working directories. Each request owns
// exactly one directory for extracted archives and fetched attachments, and
// the directory is removed on every exit path.
package workdir

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager creates sibling request directories under a single root.
type Manager struct {
	root   string
	logger *zap.Logger
}

// NewManager ensures the root directory exists. An empty root defaults to a
// "verdikta" directory under the system temp dir.
func NewManager(root string, logger *zap.Logger) (*Manager, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "verdikta")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create workdir root %s: %w", root, err)
	}
	return &Manager{root: root, logger: logger}, nil
}

// Root returns the shared parent of all request directories.
func (m *Manager) Root() string { return m.root }

// Acquire creates a fresh directory owned exclusively by one request.
func (m *Manager) Acquire() (*Dir, error) {
	path := filepath.Join(m.root, "req-"+uuid.NewString())
	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, fmt.Errorf("create request workdir: %w", err)
	}
	m.logger.Debug("workdir acquired", zap.String("path", path))
	return &Dir{path: path, logger: m.logger}, nil
}

// Dir is a scoped request directory. Release is idempotent and safe to defer
// on every exit path.
type Dir struct {
	path   string
	logger *zap.Logger
	once   sync.Once
}

// Path returns the absolute directory path.
func (d *Dir) Path() string { return d.path }

// Join resolves a path inside the directory.
func (d *Dir) Join(elem ...string) string {
	return filepath.Join(append([]string{d.path}, elem...)...)
}

// Release removes the directory tree. Removal errors are logged, not
// returned; by this point the request outcome is already decided.
func (d *Dir) Release() {
	d.once.Do(func() {
		if err := os.RemoveAll(d.path); err != nil {
			d.logger.Warn("workdir cleanup failed", zap.String("path", d.path), zap.Error(err))
			return
		}
		d.logger.Debug("workdir released", zap.String("path", d.path))
	})
}
