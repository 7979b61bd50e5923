// Package cli provides shared helpers for CLI commands.
package cli

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateFilter checks a filter expression for glob syntax errors
// before any rows are fetched, so a bad pattern fails fast.
func ValidateFilter(pattern string) error {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return fmt.Errorf("invalid filter '%s': %w", pattern, err)
	}
	return nil
}

// MatchesFilter reports whether a label matches a filter expression.
// Patterns containing glob characters (*?[) match the whole label;
// plain text matches as a substring. Both are case-insensitive.
func MatchesFilter(pattern, label string) (bool, error) {
	pattern = strings.ToLower(pattern)
	label = strings.ToLower(label)

	if !strings.ContainsAny(pattern, "*?[") {
		return strings.Contains(label, pattern), nil
	}

	matched, err := filepath.Match(pattern, label)
	if err != nil {
		return false, fmt.Errorf("invalid filter '%s': %w", pattern, err)
	}
	return matched, nil
}
