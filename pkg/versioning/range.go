// SPDX-License-Identifier: MPL-2.0

package versioning

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRange is the sentinel error wrapped by InvalidRangeError.
var ErrInvalidRange = errors.New("invalid version range")

type (
	// Range is a version interval. The zero value is the universal range
	// that every version satisfies.
	Range struct {
		hasMin       bool
		min          Version
		minInclusive bool
		hasMax       bool
		max          Version
		maxInclusive bool
	}

	// InvalidRangeError is returned when text is not a valid version range.
	InvalidRangeError struct {
		Value  string
		Reason string
	}
)

// Error implements the error interface.
func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid version range %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidRange so callers can use errors.Is for programmatic detection.
func (e *InvalidRangeError) Unwrap() error { return ErrInvalidRange }

// All returns the universal range.
func All() Range { return Range{} }

// AtLeast returns the range of versions >= v.
func AtLeast(v Version) Range {
	return Range{hasMin: true, min: v, minInclusive: true}
}

// Exact returns the range containing only v.
func Exact(v Version) Range {
	return Range{hasMin: true, min: v, minInclusive: true, hasMax: true, max: v, maxInclusive: true}
}

// ParseRange parses NuGet range notation. A bare version is a minimum
// inclusive bound, "[v]" is exact, "*" is universal, and bracketed
// intervals may leave either side open.
func ParseRange(text string) (Range, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return Range{}, &InvalidRangeError{Value: text, Reason: "empty"}
	}
	if s == "*" {
		return All(), nil
	}

	lb, rb := s[0], s[len(s)-1]
	if lb != '[' && lb != '(' {
		v, err := ParseVersion(s)
		if err != nil {
			return Range{}, &InvalidRangeError{Value: text, Reason: err.Error()}
		}
		return AtLeast(v), nil
	}
	if len(s) < 2 || (rb != ']' && rb != ')') {
		return Range{}, &InvalidRangeError{Value: text, Reason: "unbalanced brackets"}
	}

	inner := s[1 : len(s)-1]
	lo, hi, isInterval := strings.Cut(inner, ",")
	if !isInterval {
		if lb != '[' || rb != ']' {
			return Range{}, &InvalidRangeError{Value: text, Reason: "exact version requires inclusive brackets"}
		}
		v, err := ParseVersion(inner)
		if err != nil {
			return Range{}, &InvalidRangeError{Value: text, Reason: err.Error()}
		}
		return Exact(v), nil
	}
	if strings.Contains(hi, ",") {
		return Range{}, &InvalidRangeError{Value: text, Reason: "too many bounds"}
	}

	lo, hi = strings.TrimSpace(lo), strings.TrimSpace(hi)
	if lo == "" && hi == "" {
		return Range{}, &InvalidRangeError{Value: text, Reason: "no bounds"}
	}

	r := Range{minInclusive: lb == '[', maxInclusive: rb == ']'}
	if lo != "" {
		v, err := ParseVersion(lo)
		if err != nil {
			return Range{}, &InvalidRangeError{Value: text, Reason: err.Error()}
		}
		r.hasMin, r.min = true, v
	} else {
		r.minInclusive = false
	}
	if hi != "" {
		v, err := ParseVersion(hi)
		if err != nil {
			return Range{}, &InvalidRangeError{Value: text, Reason: err.Error()}
		}
		r.hasMax, r.max = true, v
	} else {
		r.maxInclusive = false
	}

	if r.hasMin && r.hasMax {
		switch c := r.min.Compare(r.max); {
		case c > 0:
			return Range{}, &InvalidRangeError{Value: text, Reason: "lower bound is above upper bound"}
		case c == 0 && (!r.minInclusive || !r.maxInclusive):
			return Range{}, &InvalidRangeError{Value: text, Reason: "empty interval"}
		}
	}
	return r, nil
}

// MustParseRange is like ParseRange but panics on malformed input.
func MustParseRange(text string) Range {
	r, err := ParseRange(text)
	if err != nil {
		panic(err)
	}
	return r
}

// Satisfies reports whether v lies inside the range.
func (r Range) Satisfies(v Version) bool {
	if r.hasMin {
		c := v.Compare(r.min)
		if c < 0 || (c == 0 && !r.minInclusive) {
			return false
		}
	}
	if r.hasMax {
		c := v.Compare(r.max)
		if c > 0 || (c == 0 && !r.maxInclusive) {
			return false
		}
	}
	return true
}

// IsAll reports whether the range has no bounds.
func (r Range) IsAll() bool { return !r.hasMin && !r.hasMax }

// Min returns the lower bound, if any.
func (r Range) Min() (Version, bool) { return r.min, r.hasMin }

// Max returns the upper bound, if any.
func (r Range) Max() (Version, bool) { return r.max, r.hasMax }

// Equal reports whether both ranges accept the same bounds.
func (r Range) Equal(o Range) bool {
	if r.hasMin != o.hasMin || r.hasMax != o.hasMax {
		return false
	}
	if r.hasMin && (r.minInclusive != o.minInclusive || !r.min.Equal(o.min)) {
		return false
	}
	if r.hasMax && (r.maxInclusive != o.maxInclusive || !r.max.Equal(o.max)) {
		return false
	}
	return true
}

// String returns the normalized interval notation, which ParseRange accepts.
func (r Range) String() string {
	if r.IsAll() {
		return "*"
	}
	if r.hasMin && r.hasMax && r.min.Equal(r.max) {
		return "[" + r.min.String() + "]"
	}

	var b strings.Builder
	if r.minInclusive {
		b.WriteByte('[')
	} else {
		b.WriteByte('(')
	}
	if r.hasMin {
		b.WriteString(r.min.String())
	}
	b.WriteString(", ")
	if r.hasMax {
		b.WriteString(r.max.String())
	}
	if r.maxInclusive {
		b.WriteByte(']')
	} else {
		b.WriteByte(')')
	}
	return b.String()
}
