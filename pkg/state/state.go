// Package state owns the on-disk runtime layout under the DB path.
package state

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths names the canonical runtime folders under the DB path.
type Paths struct {
	Store string
	Audit string
	Sweep string
	Tmp   string
}

// PathsVar holds the resolved layout after EnsureStateDirs.
var PathsVar Paths

// Resolve computes the folder layout for a DB path without touching disk.
func Resolve(dbPath string) Paths {
	statePath := filepath.Join(dbPath, "state")
	return Paths{
		Store: filepath.Join(dbPath, "store"),
		Audit: filepath.Join(statePath, "audit"),
		Sweep: filepath.Join(statePath, "sweep"),
		Tmp:   filepath.Join(statePath, "tmp"),
	}
}

// EnsureStateDirs creates the runtime folder layout under dbPath. Paths
// must not be symlinks, must have restrictive permissions and must be
// writable by the process.
func EnsureStateDirs(dbPath string) error {
	p := Resolve(dbPath)
	for _, dir := range []string{p.Store, p.Audit, p.Sweep, p.Tmp} {
		if err := os.MkdirAll(filepath.Dir(dir), 0o700); err != nil {
			return fmt.Errorf("cannot create parent for %s: %w", dir, err)
		}
		if fi, err := os.Lstat(dir); err == nil {
			if fi.Mode()&os.ModeSymlink != 0 {
				return fmt.Errorf("path is a symlink: %s", dir)
			}
			if !fi.IsDir() {
				return fmt.Errorf("path exists and is not a directory: %s", dir)
			}
			if fi.Mode().Perm()&0o022 != 0 {
				return fmt.Errorf("path has permissive mode (group/other write): %s", dir)
			}
		}
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("cannot create path %s: %w", dir, err)
		}
		// writability check: create and remove a temp file
		tmp, err := os.CreateTemp(dir, ".validate-*")
		if err != nil {
			return fmt.Errorf("path not writable: %s: %w", dir, err)
		}
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}
	PathsVar = p
	return nil
}
