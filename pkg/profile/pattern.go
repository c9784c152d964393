package profile

import (
	"fmt"
	"path/filepath"

	"github.com/gobwas/glob"
)

// DefaultPattern selects profile files by base name.
const DefaultPattern = "*.{yaml,yml}"

// defaultExcludes skip hidden files and editor leftovers.
var defaultExcludes = []string{".*", "*~", "*.swp", "*.tmp"}

// PatternMatcher decides which file names in the users directory are profiles.
type PatternMatcher struct {
	includePatterns []glob.Glob
	excludePatterns []glob.Glob
}

// NewPatternMatcher creates a matcher. An empty include list selects
// DefaultPattern.
func NewPatternMatcher(include, exclude []string) (*PatternMatcher, error) {
	pm := &PatternMatcher{}

	if len(include) == 0 {
		include = []string{DefaultPattern}
	}
	for _, pattern := range include {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid profile pattern '%s': %w", pattern, err)
		}
		pm.includePatterns = append(pm.includePatterns, g)
	}

	for _, pattern := range append(append([]string(nil), defaultExcludes...), exclude...) {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern '%s': %w", pattern, err)
		}
		pm.excludePatterns = append(pm.excludePatterns, g)
	}

	return pm, nil
}

// Matches reports whether the base name of path is a profile file.
func (pm *PatternMatcher) Matches(path string) bool {
	name := filepath.Base(path)

	// Excludes take precedence
	for _, pattern := range pm.excludePatterns {
		if pattern.Match(name) {
			return false
		}
	}
	for _, pattern := range pm.includePatterns {
		if pattern.Match(name) {
			return true
		}
	}
	return false
}
