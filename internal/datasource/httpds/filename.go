package httpds

import (
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"
)

// filenameCleaner replaces runs of characters that are unsafe in file names.
var filenameCleaner = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// HashString returns a stable 64-bit xxh3 digest of s in hex.
func HashString(s string) string {
	return strconv.FormatUint(xxh3.HashString(s), 16)
}

// BaseName returns the last path element of rawURL, cleaned for use as a
// file name. It falls back to the URL hash when no usable name exists.
func BaseName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return HashString(rawURL)
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		return HashString(rawURL)
	}
	clean := strings.Trim(filenameCleaner.ReplaceAllString(base, "_"), "_")
	if clean == "" {
		return HashString(rawURL)
	}
	return clean
}

// TempPattern returns an os.CreateTemp pattern for rawURL. The URL hash keeps
// concurrent downloads of different files apart; the original base name keeps
// the extension so readers can sniff the format.
func TempPattern(rawURL string) string {
	base := BaseName(rawURL)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return "taxietl-" + HashString(rawURL) + "-" + stem + "-*" + ext
}
