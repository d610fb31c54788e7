package framework

import (
	"os"
	"path/filepath"
)

// FileLocator finds configuration files in an ordered list of directories.
type FileLocator struct {
	dirs []string
}

// NewFileLocator creates a locator searching dirs in order.
func NewFileLocator(dirs ...string) *FileLocator {
	d := make([]string, len(dirs))
	copy(d, dirs)
	return &FileLocator{dirs: d}
}

// Dirs returns the search directories.
func (l *FileLocator) Dirs() []string {
	out := make([]string, len(l.dirs))
	copy(out, l.dirs)
	return out
}

// Locate returns the absolute path of the first regular file named name in
// the search directories. Absolute names are checked as they are.
// Returns *NotFoundError listing every probed path.
func (l *FileLocator) Locate(name string) (string, error) {
	return l.LocateFrom(name, "")
}

// LocateFrom is Locate with currentDir searched before the configured
// directories, so imports resolve relative to the importing file first.
func (l *FileLocator) LocateFrom(name, currentDir string) (string, error) {
	var candidates []string
	if filepath.IsAbs(name) {
		candidates = []string{filepath.Clean(name)}
	} else {
		if currentDir != "" {
			candidates = append(candidates, filepath.Join(currentDir, name))
		}
		for _, dir := range l.dirs {
			candidates = append(candidates, filepath.Join(dir, name))
		}
	}

	probed := make([]string, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, candidate := range candidates {
		abs, err := filepath.Abs(candidate)
		if err != nil {
			abs = candidate
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true
		probed = append(probed, abs)

		info, err := os.Stat(abs)
		if err == nil && info.Mode().IsRegular() {
			return abs, nil
		}
	}

	return "", &NotFoundError{Name: name, Paths: probed}
}
