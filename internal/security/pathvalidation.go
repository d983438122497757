// Package security keeps exported files inside the directory the user chose.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrOutsideDir is returned when a path resolves outside its directory.
var ErrOutsideDir = errors.New("path escapes directory")

const maxNameLen = 128

// CheckWithinDir reports whether path, once cleaned and with symlinks
// resolved, stays under dir. Neither needs to exist yet: the deepest existing
// ancestor is resolved and the rest is appended, so a symlinked category
// directory pointing elsewhere is still caught.
func CheckWithinDir(dir, path string) error {
	root, err := resolve(dir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dir, err)
	}
	target, err := resolve(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: %s is not under %s", ErrOutsideDir, path, dir)
	}
	return nil
}

func resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	var rest []string
	for p := abs; ; p = filepath.Dir(p) {
		if real, err := filepath.EvalSymlinks(p); err == nil {
			return filepath.Join(append([]string{real}, rest...)...), nil
		}
		if filepath.Dir(p) == p {
			return abs, nil
		}
		rest = append([]string{filepath.Base(p)}, rest...)
	}
}

// SafeName turns a category or image name into a single path segment of
// ASCII letters, digits, dot, underscore and dash. Runs of anything else
// become one underscore; an empty result becomes "unknown".
func SafeName(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range s {
		if b.Len() >= maxNameLen {
			break
		}
		ok := r == '.' || r == '_' || r == '-' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok {
			if !pending {
				b.WriteByte('_')
			}
			pending = true
			continue
		}
		b.WriteRune(r)
		pending = false
	}
	if out := strings.Trim(b.String(), "._"); out != "" {
		return out
	}
	return "unknown"
}
