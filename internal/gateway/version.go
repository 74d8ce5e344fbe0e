package gateway

import (
	"strconv"
	"strings"
)

type semver struct {
	major, minor, patch int
}

func parseSemver(s string) (semver, bool) {
	parts := strings.SplitN(strings.TrimSpace(s), ".", 3)
	if len(parts) != 3 {
		return semver{}, false
	}
	var v semver
	for i, dst := range []*int{&v.major, &v.minor, &v.patch} {
		n, err := strconv.Atoi(parts[i])
		if err != nil || n < 0 {
			return semver{}, false
		}
		*dst = n
	}
	return v, true
}

func (v semver) atLeast(min semver) bool {
	if v.major != min.major {
		return v.major > min.major
	}
	if v.minor != min.minor {
		return v.minor > min.minor
	}
	return v.patch >= min.patch
}

// VersionCompatible compares an optional client version against the minimum
// supported one, numerically per major.minor.patch component. Malformed input
// on either side fails open: a parse bug must never lock clients out.
func VersionCompatible(client, min string) bool {
	if client == "" || min == "" {
		return true
	}
	cv, ok := parseSemver(client)
	if !ok {
		return true
	}
	mv, ok := parseSemver(min)
	if !ok {
		return true
	}
	return cv.atLeast(mv)
}
