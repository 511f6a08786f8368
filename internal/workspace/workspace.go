package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

// #region errors
// ErrPerimeter marks a path that would land outside the workspace root.
var ErrPerimeter = errors.New("path escapes workspace perimeter")

// #endregion errors

// #region workspace
// Workspace is one client corpus root. Every read and write performed on
// behalf of the pipeline goes through it so the perimeter check cannot be
// bypassed.
type Workspace struct {
	ID   string
	Root string

	lock *flock.Flock
}

// New creates a workspace rooted at dir. The directory is created if it
// does not exist yet.
func New(id, dir string) (*Workspace, error) {
	if id == "" {
		return nil, fmt.Errorf("workspace id must not be empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	return &Workspace{
		ID:   id,
		Root: abs,
		lock: flock.New(filepath.Join(abs, ".workspace.lock")),
	}, nil
}

// #endregion workspace

// #region perimeter
// Resolve maps a workspace-relative path to an absolute one, rejecting
// absolute inputs and any traversal that escapes the root.
func (w *Workspace) Resolve(rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("%w: empty path", ErrPerimeter)
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: absolute path %q", ErrPerimeter, rel)
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrPerimeter, rel)
	}
	return filepath.Join(w.Root, clean), nil
}

// #endregion perimeter

// #region lock
// Lock acquires the workspace-scoped file lock, serializing writers within
// one workspace while leaving other workspaces fully parallel. The returned
// function releases the lock.
func (w *Workspace) Lock() (func(), error) {
	if err := w.lock.Lock(); err != nil {
		return nil, fmt.Errorf("lock workspace %s: %w", w.ID, err)
	}
	return func() { _ = w.lock.Unlock() }, nil
}

// TryLock attempts the workspace lock without blocking.
func (w *Workspace) TryLock() (bool, func(), error) {
	ok, err := w.lock.TryLock()
	if err != nil {
		return false, nil, fmt.Errorf("try lock workspace %s: %w", w.ID, err)
	}
	if !ok {
		return false, nil, nil
	}
	return true, func() { _ = w.lock.Unlock() }, nil
}

// #endregion lock

// #region atomic-write
// AtomicWrite persists data at a workspace-relative path via a temp file and
// rename, so readers never observe a partial write. Parent directories are
// created as needed.
func (w *Workspace) AtomicWrite(rel string, data []byte) error {
	abs, err := w.Resolve(rel)
	if err != nil {
		return err
	}

	unlock, err := w.Lock()
	if err != nil {
		return err
	}
	defer unlock()

	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", rel, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", rel, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file for %s: %w", rel, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file for %s: %w", rel, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file for %s: %w", rel, err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", rel, err)
	}
	return nil
}

// #endregion atomic-write

// #region read
// Read returns the content of a workspace-relative path.
func (w *Workspace) Read(rel string) ([]byte, error) {
	abs, err := w.Resolve(rel)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(abs)
}

// Exists reports whether a workspace-relative path exists as a regular file.
func (w *Workspace) Exists(rel string) bool {
	abs, err := w.Resolve(rel)
	if err != nil {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && info.Mode().IsRegular()
}

// #endregion read
