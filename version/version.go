// Package version implements the release version model: a semantic version
// triple with an optional "alphaK" pre-release marker, and the two mutations
// the release cycle applies to it.
//
//	Unstable(N.m.p-alphaK) --Stabilize--> Stable(N.m.p) --NextDevelopment--> Unstable(N.(m+1).0-alpha0)
package version

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// MarkerPrefix is the prefix of the pre-release marker.
const MarkerPrefix = "alpha"

// TagPrefix prefixes release tags.
const TagPrefix = "V"

var (
	// ErrInvalidVersion is returned for strings that are not N.m.p or N.m.p-alphaK.
	ErrInvalidVersion = errors.New("invalid version")

	// ErrNotPrerelease is returned when stabilizing a version without a marker.
	ErrNotPrerelease = errors.New("version has no pre-release marker")

	// ErrPrerelease is returned when bumping a version that still carries a marker.
	ErrPrerelease = errors.New("version still carries a pre-release marker")
)

var markerPattern = regexp.MustCompile(`^` + MarkerPrefix + `(0|[1-9][0-9]*)$`)

// Version is an immutable release version.
type Version struct {
	sv *semver.Version
}

// Parse parses "N.m.p" or "N.m.p-alphaK". A leading "v" or "V" is accepted.
func Parse(s string) (Version, error) {
	raw := strings.TrimSpace(s)
	if raw != "" && (raw[0] == 'v' || raw[0] == 'V') {
		raw = raw[1:]
	}

	sv, err := semver.StrictNewVersion(raw)
	if err != nil {
		return Version{}, fmt.Errorf("%w %q: %v", ErrInvalidVersion, s, err)
	}
	if sv.Metadata() != "" {
		return Version{}, fmt.Errorf("%w %q: build metadata is not supported", ErrInvalidVersion, s)
	}
	if pre := sv.Prerelease(); pre != "" && !markerPattern.MatchString(pre) {
		return Version{}, fmt.Errorf("%w %q: pre-release must look like %s<K>", ErrInvalidVersion, s, MarkerPrefix)
	}
	return Version{sv: sv}, nil
}

// MustParse is Parse that panics on error. Intended for tests and constants.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// New builds a version from its parts. alpha < 0 means no marker.
func New(major, minor, patch uint64, alpha int) Version {
	s := fmt.Sprintf("%d.%d.%d", major, minor, patch)
	if alpha >= 0 {
		s += fmt.Sprintf("-%s%d", MarkerPrefix, alpha)
	}
	return Version{sv: semver.MustParse(s)}
}

// Major returns the major component.
func (v Version) Major() uint64 { return v.sv.Major() }

// Minor returns the minor component.
func (v Version) Minor() uint64 { return v.sv.Minor() }

// Patch returns the patch component.
func (v Version) Patch() uint64 { return v.sv.Patch() }

// IsZero reports whether v is the zero Version.
func (v Version) IsZero() bool { return v.sv == nil }

// IsPrerelease reports whether v carries a marker.
func (v Version) IsPrerelease() bool {
	return v.sv != nil && v.sv.Prerelease() != ""
}

// Alpha returns K of the "alphaK" marker, or -1 when there is none.
func (v Version) Alpha() int {
	if !v.IsPrerelease() {
		return -1
	}
	k, _ := strconv.Atoi(strings.TrimPrefix(v.sv.Prerelease(), MarkerPrefix))
	return k
}

// Stabilize strips the marker. The triple is unchanged.
func (v Version) Stabilize() (Version, error) {
	if !v.IsPrerelease() {
		return Version{}, fmt.Errorf("%w: %s", ErrNotPrerelease, v)
	}
	return New(v.Major(), v.Minor(), v.Patch(), -1), nil
}

// NextDevelopment increments minor, resets patch and attaches alpha0.
func (v Version) NextDevelopment() (Version, error) {
	if v.IsZero() {
		return Version{}, fmt.Errorf("%w: empty version", ErrInvalidVersion)
	}
	if v.IsPrerelease() {
		return Version{}, fmt.Errorf("%w: %s", ErrPrerelease, v)
	}
	next := v.sv.IncMinor()
	return New(next.Major(), next.Minor(), 0, 0), nil
}

// Tag returns the release tag name, "V" followed by the version.
func (v Version) Tag() string {
	return TagPrefix + v.String()
}

// String renders the canonical form without any prefix.
func (v Version) String() string {
	if v.sv == nil {
		return ""
	}
	return v.sv.String()
}

// Equal reports whether both versions are identical.
func (v Version) Equal(o Version) bool {
	if v.sv == nil || o.sv == nil {
		return v.sv == o.sv
	}
	return v.sv.Equal(o.sv)
}

// LessThan orders versions by semver precedence.
func (v Version) LessThan(o Version) bool {
	return v.sv.LessThan(o.sv)
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*v = Version{}
		return nil
	}
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// PreviousTag returns the highest stable release tag strictly lower than
// current. Tags that are not "V<N.m.p>" are ignored.
func PreviousTag(tags []string, current Version) (string, bool) {
	type candidate struct {
		tag string
		v   Version
	}
	var found []candidate
	for _, tag := range tags {
		if !strings.HasPrefix(tag, TagPrefix) {
			continue
		}
		v, err := Parse(strings.TrimPrefix(tag, TagPrefix))
		if err != nil || v.IsPrerelease() {
			continue
		}
		if v.LessThan(current) {
			found = append(found, candidate{tag: tag, v: v})
		}
	}
	if len(found) == 0 {
		return "", false
	}
	sort.Slice(found, func(i, j int) bool { return found[j].v.LessThan(found[i].v) })
	return found[0].tag, true
}
