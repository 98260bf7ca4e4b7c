package partition

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// ErrInvalidJurisdiction is returned for names that are not safe as file names.
	ErrInvalidJurisdiction = errors.New("invalid jurisdiction: must be lowercase alphanumeric with hyphens/underscores")

	// ErrPathTraversal is returned when a jurisdiction name could escape its directory.
	ErrPathTraversal = errors.New("path traversal detected")
)

var jurisdictionPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// NormalizeJurisdiction lowercases and trims a jurisdiction name.
func NormalizeJurisdiction(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidateJurisdiction checks that name is safe to use in artifact paths.
func ValidateJurisdiction(name string) error {
	if name == "" {
		return ErrInvalidJurisdiction
	}
	if len(name) > 64 {
		return fmt.Errorf("%w: name too long (max 64)", ErrInvalidJurisdiction)
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`+"\x00") {
		return ErrPathTraversal
	}
	if !jurisdictionPattern.MatchString(name) {
		return ErrInvalidJurisdiction
	}
	if filepath.Clean(name) != name {
		return ErrPathTraversal
	}
	return nil
}
