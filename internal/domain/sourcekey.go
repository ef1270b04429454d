package domain

import (
	"regexp"
	"strings"
)

// MaxSourceKeyLen bounds the normalized dedup key, in runes.
const MaxSourceKeyLen = 100

var whitespaceRe = regexp.MustCompile(`\s+`)

// SourceKey normalizes raw address text into the dedup key: lowercase,
// whitespace runs collapsed to a single hyphen, bounded to MaxSourceKeyLen.
func SourceKey(address string) string {
	key := strings.ToLower(strings.TrimSpace(address))
	key = whitespaceRe.ReplaceAllString(key, "-")
	return truncateRunes(key, MaxSourceKeyLen)
}

// AddressPrefix returns the first comma-delimited segment of an address,
// trimmed. It is the match fragment for loose, feed-level dedup.
func AddressPrefix(address string) string {
	first, _, _ := strings.Cut(address, ",")
	return strings.TrimSpace(first)
}
