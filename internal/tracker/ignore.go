package tracker

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Repository metadata is never tracked, whatever the configuration says.
var defaultIgnores = []string{".vcs", ".git"}

// Ignorer matches slash-separated relative paths against glob patterns. A
// pattern matches a path if it matches the whole path, any leading directory
// of it, or any single path component.
type Ignorer struct {
	patterns []glob.Glob
}

func NewIgnorer(patterns []string) (*Ignorer, error) {
	all := append(append([]string{}, defaultIgnores...), patterns...)

	ig := &Ignorer{}
	for _, p := range all {
		p = strings.TrimSuffix(strings.TrimSpace(p), "/")
		if p == "" {
			continue
		}
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("compiling ignore pattern %q: %w", p, err)
		}
		ig.patterns = append(ig.patterns, g)
	}
	return ig, nil
}

func (ig *Ignorer) Ignored(rel string) bool {
	if rel == "" || rel == "." {
		return false
	}

	parts := strings.Split(rel, "/")
	for i, part := range parts {
		prefix := strings.Join(parts[:i+1], "/")
		for _, g := range ig.patterns {
			if g.Match(prefix) || g.Match(part) {
				return true
			}
		}
	}
	return false
}
