package plugins

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// semverPattern accepts MAJOR.MINOR.PATCH with optional pre-release and build metadata
	semverPattern = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)(?:-([0-9A-Za-z.-]+))?(?:\+([0-9A-Za-z.-]+))?$`)
	// standardVersionPattern is the plain release form without suffixes
	standardVersionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
)

// Version is a parsed semantic version
type Version struct {
	Major      int
	Minor      int
	Patch      int
	PreRelease string
	Build      string
	Original   string
}

// ParseVersion parses a semantic version string such as "1.2.3-beta.1+build.5".
func ParseVersion(version string) (*Version, error) {
	m := semverPattern.FindStringSubmatch(version)
	if m == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPluginVersion, version)
	}
	v := &Version{PreRelease: m[4], Build: m[5], Original: version}
	var err error
	if v.Major, err = strconv.Atoi(m[1]); err != nil {
		return nil, fmt.Errorf("%w: major %q", ErrInvalidPluginVersion, m[1])
	}
	if v.Minor, err = strconv.Atoi(m[2]); err != nil {
		return nil, fmt.Errorf("%w: minor %q", ErrInvalidPluginVersion, m[2])
	}
	if v.Patch, err = strconv.Atoi(m[3]); err != nil {
		return nil, fmt.Errorf("%w: patch %q", ErrInvalidPluginVersion, m[3])
	}
	return v, nil
}

// IsSemver reports whether version has the semantic-version shape.
func IsSemver(version string) bool {
	return semverPattern.MatchString(version)
}

// IsStandardVersion reports whether version is a plain MAJOR.MINOR.PATCH release.
func IsStandardVersion(version string) bool {
	return standardVersionPattern.MatchString(version)
}

// String returns the canonical form of the version
func (v *Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.PreRelease != "" {
		s += "-" + v.PreRelease
	}
	if v.Build != "" {
		s += "+" + v.Build
	}
	return s
}

// Compare returns -1, 0 or 1. Build metadata is ignored and a pre-release sorts
// before the matching release.
func (v *Version) Compare(o *Version) int {
	if c := compareInt(v.Major, o.Major); c != 0 {
		return c
	}
	if c := compareInt(v.Minor, o.Minor); c != 0 {
		return c
	}
	if c := compareInt(v.Patch, o.Patch); c != 0 {
		return c
	}
	switch {
	case v.PreRelease == o.PreRelease:
		return 0
	case v.PreRelease == "":
		return 1
	case o.PreRelease == "":
		return -1
	}
	return comparePreRelease(v.PreRelease, o.PreRelease)
}

func comparePreRelease(a, b string) int {
	pa, pb := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(pa) && i < len(pb); i++ {
		na, errA := strconv.Atoi(pa[i])
		nb, errB := strconv.Atoi(pb[i])
		switch {
		case errA == nil && errB == nil:
			if c := compareInt(na, nb); c != 0 {
				return c
			}
		case errA == nil:
			return -1
		case errB == nil:
			return 1
		default:
			if c := strings.Compare(pa[i], pb[i]); c != 0 {
				return c
			}
		}
	}
	return compareInt(len(pa), len(pb))
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
