package gen

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// WriteResult summarizes what Write changed on disk.
type WriteResult struct {
	Written   []string
	Unchanged []string
	Removed   []string
}

// Write applies the plan. Files whose content did not change are left
// untouched so build caches and file watchers stay quiet.
func Write(plan *Plan) (*WriteResult, error) {
	res := &WriteResult{}
	for _, f := range plan.Files {
		existing, err := os.ReadFile(f.Path)
		if err == nil && bytes.Equal(existing, f.Content) {
			res.Unchanged = append(res.Unchanged, f.Path)
			continue
		}
		if err := writeFileAtomic(f.Path, f.Content); err != nil {
			return res, err
		}
		res.Written = append(res.Written, f.Path)
	}
	for _, path := range plan.Remove {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return res, fmt.Errorf("removing %s: %w", path, err)
		}
		res.Removed = append(res.Removed, path)
	}
	return res, nil
}

// Check reports the files that are out of date with respect to the plan.
func Check(plan *Plan) ([]string, error) {
	var stale []string
	for _, f := range plan.Files {
		existing, err := os.ReadFile(f.Path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading %s: %w", f.Path, err)
		}
		if !bytes.Equal(existing, f.Content) {
			stale = append(stale, f.Path)
		}
	}
	stale = append(stale, plan.Remove...)
	return stale, nil
}

func writeFileAtomic(path string, content []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming %s: %w", path, err)
	}
	return nil
}
