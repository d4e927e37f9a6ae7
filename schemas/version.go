package schema

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// SchemaVersion is the version of release.cue. Definitions declare the
// version they were written for in forgeVersion.
const SchemaVersion = "0.1.0"

// IsCompatible reports whether a definition written for userVersion can be
// read with SchemaVersion. The check is a caret constraint, so while the
// schema is 0.x only patch differences are compatible. Pre-release versions
// never match.
func IsCompatible(userVersion string) (bool, error) {
	constraint, err := semver.NewConstraint("^" + SchemaVersion)
	if err != nil {
		return false, fmt.Errorf("invalid schema version: %w", err)
	}

	v, err := semver.NewVersion(userVersion)
	if err != nil {
		return false, fmt.Errorf("invalid forgeVersion %q: %w", userVersion, err)
	}
	return constraint.Check(v), nil
}
