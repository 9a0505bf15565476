// Package version parses content version strings and decides how stale a local cache is.
//
// A version looks like "major.minor.patch[-suffix]". A change in major or minor
// invalidates the whole topic list; a change in patch invalidates only the topic
// IDs listed in the suffix, e.g. "1.2.5-ids:[4,7]".
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Zero is the version assumed when nothing is cached.
const Zero = "0.0.0"

// ErrMalformed is returned for version strings or suffixes that cannot be parsed.
var ErrMalformed = errors.New("version: malformed")

// Version is a parsed version string.
type Version struct {
	Major  int
	Minor  int
	Patch  int
	Suffix string
}

// String returns the core "major.minor.patch" form followed by the suffix.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d%s", v.Major, v.Minor, v.Patch, v.Suffix)
}

// Core returns "major.minor.patch" without the suffix.
func (v Version) Core() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Parse parses "major.minor.patch" with an optional leading "v" and an optional
// "-suffix" (the suffix is kept verbatim, including the dash).
func Parse(s string) (Version, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "v")
	core, suffix := s, ""
	if i := strings.IndexByte(s, '-'); i >= 0 {
		core, suffix = s[:i], s[i:]
	}
	parts := strings.Split(core, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("%w: %q: want major.minor.patch", ErrMalformed, s)
	}
	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || strings.HasPrefix(p, "+") {
			return Version{}, fmt.Errorf("%w: %q: component %d", ErrMalformed, s, i+1)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2], Suffix: suffix}, nil
}

// ParseIDs decodes the topic IDs named in a version suffix. Accepted forms include
// "-ids:[4,7]", "ids:[4,7]", "[4,7]", "-4,7" and "4_7". An empty suffix yields no IDs.
func ParseIDs(suffix string) ([]int, error) {
	s := strings.TrimSpace(suffix)
	s = strings.TrimPrefix(s, "-")
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		if !strings.HasSuffix(s, "]") {
			return nil, fmt.Errorf("%w: suffix %q: unbalanced brackets", ErrMalformed, suffix)
		}
		s = s[1 : len(s)-1]
	}
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '_' || r == ';' || unicode.IsSpace(r)
	})
	seen := make(map[int]struct{}, len(fields))
	ids := make([]int, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.Atoi(f)
		if err != nil || id < 0 {
			return nil, fmt.Errorf("%w: suffix %q: bad id %q", ErrMalformed, suffix, f)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// ListChanged reports whether major or minor differ.
func ListChanged(cached, remote Version) bool {
	return cached.Major != remote.Major || cached.Minor != remote.Minor
}

// PatchChanged reports whether the patch component differs.
func PatchChanged(cached, remote Version) bool {
	return cached.Patch != remote.Patch
}
