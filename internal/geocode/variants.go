package geocode

import (
	"regexp"
	"strings"
)

// DefaultRegionSuffix is appended to addresses that carry no region context.
const DefaultRegionSuffix = ", Minneapolis, MN"

// DefaultRegionTokens mark an address as already carrying its region.
var DefaultRegionTokens = []string{"MN", "Minnesota"}

var (
	intersectionRe = regexp.MustCompile(`(?i)^(.+?)\s*(?:&|\+|\band\b)\s*(.+?)(?:,|$)`)
	unitRe         = regexp.MustCompile(`(?i)\s*(?:\b(?:suite|ste|unit|apt)\b\.?|#)\s*\w+`)
)

// Variants expands raw address text into the ordered list of lookup queries.
// Earlier entries are more specific; duplicates are dropped keeping the
// first occurrence.
func Variants(address, defaultSuffix string, regionTokens []string) []string {
	base := strings.TrimSpace(address)
	if base == "" {
		return nil
	}
	hasRegion := containsAny(base, regionTokens)

	var out []string
	if m := intersectionRe.FindStringSubmatch(base); m != nil {
		first := strings.TrimSpace(m[1])
		second := strings.TrimSpace(m[2])
		suffix := defaultSuffix
		if i := strings.Index(base, ","); i >= 0 {
			suffix = base[i:]
		}
		out = append(out, first+" and "+second+suffix, first+suffix)
	}

	out = append(out, base)
	if !hasRegion {
		out = append(out, base+defaultSuffix)
	}

	if stripped := strings.TrimSpace(unitRe.ReplaceAllString(base, "")); stripped != base && stripped != "" {
		out = append(out, stripped)
		if !hasRegion {
			out = append(out, stripped+defaultSuffix)
		}
	}

	return dedupe(out)
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if t != "" && strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, q := range in {
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}
	return out
}
