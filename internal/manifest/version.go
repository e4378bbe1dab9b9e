package manifest

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// CheckRequires fails when version does not satisfy the manifest's
// requires constraint. Development builds ("dev", or anything that is not
// a semver) are let through.
func (f *File) CheckRequires(version string) error {
	if f == nil || f.Requires == "" {
		return nil
	}
	constraint, err := semver.NewConstraint(f.Requires)
	if err != nil {
		return fmt.Errorf("parsing requires constraint %q: %w", f.Requires, err)
	}
	v, err := parseSemver(version)
	if err != nil {
		return nil
	}
	if !constraint.Check(v) {
		return fmt.Errorf("manifest requires version %s, running %s", f.Requires, version)
	}
	return nil
}

// parseSemver strips a leading "v" and parses the version string.
func parseSemver(version string) (*semver.Version, error) {
	version = strings.TrimPrefix(version, "v")
	return semver.NewVersion(version)
}
