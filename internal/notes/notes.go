// Package notes rewrites the per-package line of a release notes table.
//
// The notes are a markdown table with one row per package:
//
//	| **ucrt64** | 2024-01-01 00:00:00 UTC |     45 |
//
// A patch replaces everything after the package cell with a new timestamp
// and build number and leaves every other byte of the document alone.
package notes

import (
	"fmt"
	"regexp"
	"time"
)

// TimestampLayout is the layout of the timestamp cell.
const TimestampLayout = "2006-01-02 15:04:05 UTC"

// buildWidth is the width the build number is right-justified to.
const buildWidth = 6

// PatchNotFoundError is returned when no line carries the package marker.
type PatchNotFoundError struct {
	Package string
}

func (e *PatchNotFoundError) Error() string {
	return fmt.Sprintf("release notes have no line for **%s**", e.Package)
}

// AmbiguousPatchError is returned when more than one line carries the
// package marker.
type AmbiguousPatchError struct {
	Package string
	Count   int
}

func (e *AmbiguousPatchError) Error() string {
	return fmt.Sprintf("release notes have %d lines for **%s**, expected one", e.Count, e.Package)
}

// FormatTimestamp renders t in UTC the way the notes table shows it.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// linePattern matches the package cell at line start (group 1) and the
// rest of that line up to, not including, the line break.
func linePattern(pkg string) *regexp.Regexp {
	return regexp.MustCompile(`(?m)^(\| +\*\*` + regexp.QuoteMeta(pkg) + `\*\* +\|)[^\r\n]+`)
}

// Patch returns doc with the line for pkg rewritten to carry timestamp and
// build. Applying the same patch twice yields the same document.
func Patch(doc, pkg, timestamp, build string) (string, error) {
	pattern := linePattern(pkg)
	matches := pattern.FindAllStringSubmatchIndex(doc, -1)
	switch {
	case len(matches) == 0:
		return "", &PatchNotFoundError{Package: pkg}
	case len(matches) > 1:
		return "", &AmbiguousPatchError{Package: pkg, Count: len(matches)}
	}

	m := matches[0]
	prefix := doc[m[2]:m[3]]
	replacement := fmt.Sprintf("%s %s | %*s |", prefix, timestamp, buildWidth, build)
	return doc[:m[0]] + replacement + doc[m[1]:], nil
}

// Line returns the current line for pkg, without its line break.
func Line(doc, pkg string) (string, error) {
	matches := linePattern(pkg).FindAllString(doc, -1)
	switch len(matches) {
	case 0:
		return "", &PatchNotFoundError{Package: pkg}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousPatchError{Package: pkg, Count: len(matches)}
	}
}
