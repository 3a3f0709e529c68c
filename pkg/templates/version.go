package templates

import (
	"strings"
)

// CompareVersions orders loosely semver template versions and returns -1, 0
// or 1.
//
// Versions are split on '.'. Each segment has a leading numeric part and an
// optional suffix; numeric parts compare by value and missing segments count
// as 0. A segment without a suffix ranks above the same number with one, so
// "1.0" > "1.0beta". Suffixes compare ordinally. A leading 'v' is ignored and
// a trailing "-pre" marks the whole version as a pre-release.
func CompareVersions(a, b string) int {
	av, apre := splitVersion(a)
	bv, bpre := splitVersion(b)

	n := len(av)
	if len(bv) > n {
		n = len(bv)
	}
	for i := 0; i < n; i++ {
		if c := compareSegment(segmentAt(av, i), segmentAt(bv, i)); c != 0 {
			return c
		}
	}

	switch {
	case apre == bpre:
		return 0
	case apre:
		return -1
	default:
		return 1
	}
}

type versionSegment struct {
	digits string
	suffix string
}

func splitVersion(v string) ([]versionSegment, bool) {
	v = strings.TrimSpace(v)
	if len(v) > 1 && (v[0] == 'v' || v[0] == 'V') && isDigit(v[1]) {
		v = v[1:]
	}
	pre := false
	if strings.HasSuffix(strings.ToLower(v), "-pre") {
		pre = true
		v = v[:len(v)-len("-pre")]
	}
	if v == "" {
		return nil, pre
	}

	parts := strings.Split(v, ".")
	out := make([]versionSegment, len(parts))
	for i, p := range parts {
		j := 0
		for j < len(p) && isDigit(p[j]) {
			j++
		}
		out[i] = versionSegment{digits: strings.TrimLeft(p[:j], "0"), suffix: p[j:]}
	}
	return out, pre
}

func segmentAt(segs []versionSegment, i int) versionSegment {
	if i < len(segs) {
		return segs[i]
	}
	return versionSegment{}
}

func compareSegment(a, b versionSegment) int {
	// Leading zeros are trimmed, so a longer digit run is a larger number.
	if len(a.digits) != len(b.digits) {
		if len(a.digits) < len(b.digits) {
			return -1
		}
		return 1
	}
	if c := strings.Compare(a.digits, b.digits); c != 0 {
		return c
	}
	switch {
	case a.suffix == b.suffix:
		return 0
	case a.suffix == "":
		return 1
	case b.suffix == "":
		return -1
	}
	return strings.Compare(a.suffix, b.suffix)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
