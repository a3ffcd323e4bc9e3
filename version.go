package enginelib

import "fmt"

// SemanticVersion identifies a schema revision of an Engine library.
// Versions are immutable values, totally ordered on (Major, Minor, Patch).
type SemanticVersion struct {
	Major int
	Minor int
	Patch int
}

// Known schema versions. Each corresponds to a hardware firmware release;
// new versions are appended, never changed.
var (
	// Version1_6_0 is the schema written by firmware 1.0.0
	Version1_6_0 = SemanticVersion{1, 6, 0}

	// Version1_7_1 is the schema written by firmware 1.0.3
	Version1_7_1 = SemanticVersion{1, 7, 1}

	// VersionLatest is the most recent schema version this library writes
	VersionLatest = Version1_7_1
)

// KnownVersions returns all schema versions supported by this build,
// in ascending order.
func KnownVersions() []SemanticVersion {
	versions := make([]SemanticVersion, len(schemaDefs))
	for i, def := range schemaDefs {
		versions[i] = def.version
	}
	return versions
}

// IsVersionSupported reports whether v is one of the known schema versions.
func IsVersionSupported(v SemanticVersion) bool {
	_, err := schemaFor(v)
	return err == nil
}

// String formats the version as "major.minor.patch"
func (v SemanticVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// ParseVersion parses a "major.minor.patch" string. Negative components
// and any other shape are rejected with ErrInvalidArgument.
func ParseVersion(s string) (SemanticVersion, error) {
	var v SemanticVersion
	n, err := fmt.Sscanf(s, "%d.%d.%d", &v.Major, &v.Minor, &v.Patch)
	if err != nil || n != 3 || v.Major < 0 || v.Minor < 0 || v.Patch < 0 {
		return SemanticVersion{}, fmt.Errorf("%w: malformed version %q", ErrInvalidArgument, s)
	}
	return v, nil
}

// Compare returns -1, 0, or +1 when v is respectively less than, equal to,
// or greater than other.
func (v SemanticVersion) Compare(other SemanticVersion) int {
	if v.Major != other.Major {
		return cmpInt(v.Major, other.Major)
	}
	if v.Minor != other.Minor {
		return cmpInt(v.Minor, other.Minor)
	}
	return cmpInt(v.Patch, other.Patch)
}

// Less reports whether v orders before other.
func (v SemanticVersion) Less(other SemanticVersion) bool {
	return v.Compare(other) < 0
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
