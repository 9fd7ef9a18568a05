package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hpungsan/nestlog/internal/config"
	"github.com/hpungsan/nestlog/internal/errors"
)

// PathMode says whether a checked path will be read or written.
type PathMode int

const (
	PathRead  PathMode = iota // import
	PathWrite                 // export
)

// PathPolicy decides which files export and import may touch. A file must
// sit directly inside ExportsDir or one of AllowedDirs (no subdirectories),
// carry a .jsonl extension and not be a symlink. AllowUnsafe lifts only the
// directory rule.
type PathPolicy struct {
	ExportsDir  string
	AllowedDirs []string
	AllowUnsafe bool
}

// NewPathPolicy builds the policy for baseDir. Relative allowed paths are
// ignored.
func NewPathPolicy(baseDir string, cfg *config.Config) PathPolicy {
	p := PathPolicy{ExportsDir: filepath.Join(baseDir, "exports")}
	if cfg != nil {
		p.AllowUnsafe = cfg.AllowUnsafePaths
		for _, d := range cfg.AllowedPaths {
			if filepath.IsAbs(d) {
				p.AllowedDirs = append(p.AllowedDirs, filepath.Clean(d))
			}
		}
	}
	return p
}

// Check validates path for mode. Reads of missing files yield FILE_NOT_FOUND;
// every other rejection is INVALID_REQUEST.
func (p PathPolicy) Check(path string, mode PathMode) error {
	if path == "" {
		return errors.NewInvalidRequest("path is required")
	}
	if containsTraversal(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	if filepath.Ext(cleaned) != ".jsonl" {
		return errors.NewInvalidRequest("path must have .jsonl extension")
	}
	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	if !p.AllowUnsafe {
		dirs, err := p.resolvedDirs()
		if err != nil {
			return err
		}
		parent := filepath.Dir(absPath)
		if !slices.Contains(dirs, parent) {
			return errors.NewInvalidRequest(fmt.Sprintf(
				"file must be directly in an allowed directory (no subdirectories); allowed: %v", dirs))
		}
		if isSymlink(parent) {
			return errors.NewInvalidRequest("parent directory must not be a symlink")
		}
	}

	if mode == PathRead {
		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			return errors.NewFileNotFound(path)
		}
	}
	// O_NOFOLLOW rejects these at open time as well; this gives a clearer error.
	if isSymlink(absPath) {
		return errors.NewInvalidRequest("path must not be a symlink")
	}
	return nil
}

// resolvedDirs returns the allowed directories, absolute, with symlinked
// entries resolved to their targets.
func (p PathPolicy) resolvedDirs() ([]string, error) {
	all := append([]string{p.ExportsDir}, p.AllowedDirs...)
	out := make([]string, 0, len(all))
	for _, d := range all {
		abs, err := filepath.Abs(filepath.Clean(d))
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid allowed path: %v", err))
		}
		if isSymlink(abs) {
			if abs, err = filepath.EvalSymlinks(abs); err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot resolve symlink in allowed path: %v", err))
			}
		}
		out = append(out, abs)
	}
	return out, nil
}

func isSymlink(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.Mode()&os.ModeSymlink != 0
}

// containsTraversal reports whether any path component is "..", splitting
// on both separators.
func containsTraversal(path string) bool {
	parts := strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == filepath.Separator
	})
	return slices.Contains(parts, "..")
}

// SanitizeForFilename makes s safe to embed in a file name.
func SanitizeForFilename(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '/' || r == '\\':
			b.WriteRune('-')
		case r >= 32 && r != 127:
			b.WriteRune(r)
		}
	}
	s = strings.ReplaceAll(b.String(), "..", "-")
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-")
	if s == "" {
		return "unnamed"
	}
	return s
}
