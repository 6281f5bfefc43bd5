package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const maxIncludeDepth = 8

// includeWalker overlays the files named by "includes:" onto a Config.
// Files are applied in listing order, each file's own includes before the
// file itself is re-applied, so the outermost file always wins.
type includeWalker struct {
	cfg  *Config
	seen map[string]bool
}

// processIncludes merges the files listed in cfg.Includes into cfg.
// root is the absolute path of the file that declared them.
func processIncludes(cfg *Config, root string) error {
	w := &includeWalker{cfg: cfg, seen: map[string]bool{root: true}}
	includes := cfg.Includes
	cfg.Includes = nil
	return w.walk(filepath.Dir(root), includes, 0)
}

func (w *includeWalker) walk(baseDir string, includes []string, depth int) error {
	if depth >= maxIncludeDepth {
		return fmt.Errorf("config includes: nesting deeper than %d", maxIncludeDepth)
	}
	for _, pattern := range includes {
		paths, err := expandInclude(baseDir, pattern)
		if err != nil {
			return err
		}
		for _, p := range paths {
			if err := w.apply(p, depth); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *includeWalker) apply(path string, depth int) error {
	if w.seen[path] {
		return fmt.Errorf("config includes: %q is included twice (cycle?)", path)
	}
	w.seen[path] = true

	if err := validatePermissions(path); err != nil {
		return fmt.Errorf("config includes: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config includes: read %q: %w", path, err)
	}
	if len(data) == 0 {
		return nil
	}

	var nested struct {
		Includes []string `yaml:"includes"`
	}
	if err := yaml.Unmarshal(data, &nested); err != nil {
		return fmt.Errorf("config includes: parse %q: %w", path, err)
	}
	if err := w.walk(filepath.Dir(path), nested.Includes, depth+1); err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, w.cfg); err != nil {
		return fmt.Errorf("config includes: parse %q: %w", path, err)
	}
	w.cfg.Includes = nil
	return nil
}

// expandInclude resolves pattern against baseDir and expands globs. Relative
// patterns may not climb out of baseDir. A literal path that does not exist is
// returned as-is so the read reports it; an unmatched glob yields nothing.
func expandInclude(baseDir, pattern string) ([]string, error) {
	if !filepath.IsAbs(pattern) {
		joined := filepath.Clean(filepath.Join(baseDir, pattern))
		rel, err := filepath.Rel(baseDir, joined)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, fmt.Errorf("config includes: path %q escapes config directory", pattern)
		}
		pattern = joined
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("config includes: glob %q: %w", pattern, err)
	}
	if len(matches) == 0 && !strings.ContainsAny(pattern, "*?[") {
		matches = []string{pattern}
	}
	for i, m := range matches {
		abs, err := filepath.Abs(m)
		if err != nil {
			return nil, fmt.Errorf("config includes: abs path %q: %w", m, err)
		}
		matches[i] = abs
	}
	return matches, nil
}
