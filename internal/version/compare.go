package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/starford/cheatsheet/internal/models"
)

// Staleness is the outcome class of a version comparison.
type Staleness int

const (
	UpToDate Staleness = iota
	ContentStale
	ListStale
)

func (s Staleness) String() string {
	switch s {
	case ContentStale:
		return "content-stale"
	case ListStale:
		return "list-stale"
	default:
		return "up-to-date"
	}
}

// MarshalText lets Staleness render as its name in JSON.
func (s Staleness) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome is the result of comparing a cached version with a remote one.
// IDs is only set for ContentStale.
type Outcome struct {
	Staleness Staleness `json:"staleness"`
	IDs       []int     `json:"ids,omitempty"`
}

// Compare decides whether the cache is list-stale, content-stale or up to date.
//
// An empty cached version counts as Zero and is always list-stale. An empty
// remote version means there is nothing to compare against, so the cache is
// used as-is. suffix names the changed topic IDs; when empty, the suffix
// embedded in remote is used instead.
func Compare(cached, remote, suffix string) (Outcome, error) {
	if strings.TrimSpace(remote) == "" {
		return Outcome{Staleness: UpToDate}, nil
	}
	rv, err := Parse(remote)
	if err != nil {
		return Outcome{}, err
	}
	if strings.TrimSpace(cached) == "" {
		return Outcome{Staleness: ListStale}, nil
	}
	cv, err := Parse(cached)
	if err != nil {
		return Outcome{}, err
	}
	if ListChanged(cv, rv) {
		return Outcome{Staleness: ListStale}, nil
	}
	if !PatchChanged(cv, rv) {
		return Outcome{Staleness: UpToDate}, nil
	}
	if suffix == "" {
		suffix = rv.Suffix
	}
	ids, err := ParseIDs(suffix)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Staleness: ContentStale, IDs: ids}, nil
}

var (
	gradleVersionCodeRe   = regexp.MustCompile(`versionCode\s*=\s*(\d+)`)
	gradleVersionNameRe   = regexp.MustCompile(`versionName\s*=\s*"([^"]*)"`)
	gradleVersionSuffixRe = regexp.MustCompile(`versionNameSuffix\s*=\s*"([^"]*)"`)
)

// ParseGradle extracts versionCode, versionName and versionNameSuffix from a
// Kotlin gradle build script. Missing values are left zero.
func ParseGradle(text string) (models.AppInfo, error) {
	var info models.AppInfo
	if m := gradleVersionCodeRe.FindStringSubmatch(text); m != nil {
		code, err := strconv.Atoi(m[1])
		if err != nil {
			return info, fmt.Errorf("%w: versionCode %q", ErrMalformed, m[1])
		}
		info.VersionCode = code
	}
	if m := gradleVersionNameRe.FindStringSubmatch(text); m != nil {
		info.VersionName = m[1]
	}
	if m := gradleVersionSuffixRe.FindStringSubmatch(text); m != nil {
		info.VersionSuffix = m[1]
	}
	return info, nil
}
