package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"go.yaml.in/yaml/v3"
)

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// InvalidError is returned when a manifest does not match the schema.
type InvalidError struct {
	Path   string
	Issues []Issue
}

func (e *InvalidError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "manifest %s is invalid", e.Path)
	for _, issue := range e.Issues {
		if issue.Pointer != "" {
			fmt.Fprintf(&b, "\n  %s: %s", issue.Pointer, issue.Message)
		} else {
			fmt.Fprintf(&b, "\n  %s", issue.Message)
		}
	}
	return b.String()
}

// Load reads, validates and decodes the manifest at path.
func Load(path string) (*File, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, path)
}

// LoadOrDefault is Load, except that a missing file yields an empty
// manifest so every package falls back to the defaults.
func LoadOrDefault(path string) (*File, error) {
	f, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &File{}, nil
	}
	return f, err
}

// Parse validates data against the schema and decodes it. path is only
// used in error messages.
func Parse(data []byte, path string) (*File, error) {
	issues, err := checkSchema(data)
	if err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	if len(issues) > 0 {
		return nil, &InvalidError{Path: path, Issues: issues}
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}

	seen := make(map[string]bool, len(f.Packages))
	for _, p := range f.Packages {
		if seen[p.Name] {
			return nil, &InvalidError{Path: path, Issues: []Issue{{
				Pointer: "/packages",
				Message: fmt.Sprintf("package %q is listed more than once", p.Name),
				Keyword: "uniqueItems",
			}}}
		}
		seen[p.Name] = true
	}
	return &f, nil
}

// ValidName reports whether name is usable as a package name.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// readFile reads the contents of a file at the given path.
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	return data, nil
}
