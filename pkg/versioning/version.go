// SPDX-License-Identifier: MPL-2.0

package versioning

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// maxNumericParts is the NuGet limit: major.minor.patch.revision.
const maxNumericParts = 4

// ErrInvalidVersion is the sentinel error wrapped by InvalidVersionError.
var ErrInvalidVersion = errors.New("invalid version")

type (
	// Version is a parsed package version. The zero value is 0.0.0.
	Version struct {
		Major    int
		Minor    int
		Patch    int
		Revision int
		// Release is the pre-release label without the leading dash (e.g. "beta.1").
		Release string
		// Metadata is the build metadata without the leading plus. It never
		// participates in ordering or equality.
		Metadata string
	}

	// InvalidVersionError is returned when text is not a valid version.
	InvalidVersionError struct {
		Value  string
		Reason string
	}
)

// Error implements the error interface.
func (e *InvalidVersionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid version %q", e.Value)
	}
	return fmt.Sprintf("invalid version %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidVersion so callers can use errors.Is for programmatic detection.
func (e *InvalidVersionError) Unwrap() error { return ErrInvalidVersion }

// ParseVersion parses text such as "1.0", "2.1.3.4", "1.0.0-rc.1" or "1.0.0+sha.5".
func ParseVersion(text string) (Version, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return Version{}, &InvalidVersionError{Value: text, Reason: "empty"}
	}

	var v Version
	if core, meta, ok := strings.Cut(s, "+"); ok {
		if !validLabel(meta) {
			return Version{}, &InvalidVersionError{Value: text, Reason: "malformed build metadata"}
		}
		v.Metadata = meta
		s = core
	}
	if core, rel, ok := strings.Cut(s, "-"); ok {
		if !validLabel(rel) {
			return Version{}, &InvalidVersionError{Value: text, Reason: "malformed pre-release label"}
		}
		v.Release = rel
		s = core
	}

	parts := strings.Split(s, ".")
	if len(parts) > maxNumericParts {
		return Version{}, &InvalidVersionError{Value: text, Reason: "too many numeric parts"}
	}
	nums := [maxNumericParts]int{}
	for i, p := range parts {
		n, err := parseNumeric(p)
		if err != nil {
			return Version{}, &InvalidVersionError{Value: text, Reason: err.Error()}
		}
		nums[i] = n
	}
	v.Major, v.Minor, v.Patch, v.Revision = nums[0], nums[1], nums[2], nums[3]
	return v, nil
}

// MustParseVersion is like ParseVersion but panics on malformed input.
// It is intended for constants and tests.
func MustParseVersion(text string) Version {
	v, err := ParseVersion(text)
	if err != nil {
		panic(err)
	}
	return v
}

func parseNumeric(p string) (int, error) {
	if p == "" {
		return 0, errors.New("empty numeric part")
	}
	for _, c := range p {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("non-numeric part %q", p)
		}
	}
	n, err := strconv.Atoi(p)
	if err != nil {
		return 0, fmt.Errorf("numeric part %q out of range", p)
	}
	return n, nil
}

// validLabel reports whether s is a non-empty dot-separated list of
// non-empty [0-9A-Za-z-] identifiers.
func validLabel(s string) bool {
	if s == "" {
		return false
	}
	for id := range strings.SplitSeq(s, ".") {
		if id == "" {
			return false
		}
		for _, c := range id {
			switch {
			case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '-':
			default:
				return false
			}
		}
	}
	return true
}

// IsPrerelease reports whether the version carries a pre-release label.
func (v Version) IsPrerelease() bool { return v.Release != "" }

// Compare returns -1, 0 or +1 when v sorts before, equal to or after o.
func (v Version) Compare(o Version) int {
	for _, d := range [...][2]int{
		{v.Major, o.Major},
		{v.Minor, o.Minor},
		{v.Patch, o.Patch},
		{v.Revision, o.Revision},
	} {
		switch {
		case d[0] < d[1]:
			return -1
		case d[0] > d[1]:
			return 1
		}
	}
	return compareRelease(v.Release, o.Release)
}

// Less reports whether v sorts before o.
func (v Version) Less(o Version) bool { return v.Compare(o) < 0 }

// Equal reports whether v and o denote the same version. Metadata is ignored.
func (v Version) Equal(o Version) bool { return v.Compare(o) == 0 }

// String returns the normalized form. The revision is only rendered when
// non-zero and metadata is omitted.
func (v Version) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Revision != 0 {
		fmt.Fprintf(&b, ".%d", v.Revision)
	}
	if v.Release != "" {
		b.WriteByte('-')
		b.WriteString(v.Release)
	}
	return b.String()
}

// compareRelease orders pre-release labels. A stable version (empty label)
// sorts after any pre-release of the same numeric version.
func compareRelease(a, b string) int {
	switch {
	case a == b:
		return 0
	case a == "":
		return 1
	case b == "":
		return -1
	}

	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		if c := compareIdentifier(as[i], bs[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	}
	return 0
}

func compareIdentifier(a, b string) int {
	an, aErr := strconv.Atoi(a)
	bn, bErr := strconv.Atoi(b)
	switch {
	case aErr == nil && bErr == nil:
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		}
		return 0
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	}
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}
