// Package securefile writes user-private files (config, keystores) atomically.
package securefile

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/marketplace-client/internal/constants"
)

var ErrExists = errors.New("file already exists")

// WriteFile writes data to path through a temp file and a rename, creating
// the parent directory. Existing files are kept unless overwrite is set.
func WriteFile(path string, data []byte, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.Wrap(ErrExists, path)
		} else if !os.IsNotExist(err) {
			return errors.Wrapf(err, "stat %s", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), constants.DirectoryPerm); err != nil {
		return errors.Wrapf(err, "mkdir %s", filepath.Dir(path))
	}

	tmp := path + ".tmp"
	_ = os.Remove(tmp)

	if err := os.WriteFile(tmp, data, constants.FilePerm); err != nil {
		return errors.Wrap(err, "write tmp")
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "rename")
	}
	return nil
}

// ConfigPathCandidates returns where a per-user file for app may live, in priority order.
func ConfigPathCandidates(app, filename string) ([]string, error) {
	if app == "" || filename == "" {
		return nil, errors.New("app and filename must not be empty")
	}

	var paths []string
	seen := map[string]bool{}
	add := func(p string) {
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		paths = append(paths, p)
	}

	// snap confinement rewrites HOME
	if realHome := os.Getenv("SNAP_REAL_HOME"); realHome != "" {
		add(filepath.Join(realHome, ".config", app, filename))
	}
	if home := os.Getenv("HOME"); home != "" {
		add(filepath.Join(home, ".config", app, filename))
	}
	if dir, err := os.UserConfigDir(); err == nil {
		add(filepath.Join(dir, app, filename))
	} else if len(paths) == 0 {
		return nil, errors.Wrap(err, "UserConfigDir")
	}
	return paths, nil
}
