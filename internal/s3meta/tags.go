package s3meta

import (
	"net/url"
	"strings"
	"unicode"
)

// maxTagValue is the S3 limit on tag value length.
const maxTagValue = 256

// EscapeTagValue turns an arbitrary string (usually a mount URL) into a
// legal S3 tag value. SharePoint sharing links percent-encode heavily and
// stay legal once decoded, so they are decoded instead of mangled; OneDrive
// links carry an opaque query string that is dropped. Anything else gets
// each illegal rune replaced with an underscore.
func EscapeTagValue(v string) string {
	switch {
	case strings.Contains(v, ".sharepoint.com"):
		if dec, err := url.QueryUnescape(v); err == nil {
			v = dec
		}
	case strings.Contains(v, "1drv.ms"), strings.Contains(v, "onedrive.live.com"):
		if i := strings.IndexByte(v, '?'); i >= 0 {
			v = v[:i]
		}
	}
	var b strings.Builder
	b.Grow(len(v))
	for _, r := range v {
		if legalTagRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	out := b.String()
	if len(out) > maxTagValue {
		out = out[:maxTagValue]
	}
	return out
}

func legalTagRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case ' ', '+', '-', '=', '.', '_', ':', '/', '@':
		return true
	}
	return false
}
