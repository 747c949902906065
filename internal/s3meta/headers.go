// Package s3meta maps HTTP response headers onto S3 system properties and
// user metadata, and escapes bucket tag values.
package s3meta

import (
	"net/http"
	"strings"
)

// Kind says where a header lands on the stored object.
type Kind int

const (
	// KindSystem headers map to native PutObject fields.
	KindSystem Kind = iota
	// KindMetadata headers become x-amz-meta user metadata.
	KindMetadata
)

// systemHeaders is the full set of headers S3 stores natively; only these
// three are ever written as system properties. Values are the PascalCase
// field names of the S3 PutObject API.
var systemHeaders = map[string]string{
	"content-type":  "ContentType",
	"cache-control": "CacheControl",
	"expires":       "Expires",
}

// metaRenames remaps headers whose names would collide with S3's own object
// fields. last-modified in particular must not shadow the S3 LastModified
// timestamp, which changes on every store.
var metaRenames = map[string]string{
	"last-modified": "x-source-last-modified",
}

// Classify routes a single header name to either a system property (with its
// S3 field name) or user metadata (with its metadata key).
func Classify(name string) (Kind, string) {
	n := strings.ToLower(name)
	if field, ok := systemHeaders[n]; ok {
		return KindSystem, field
	}
	if key, ok := metaRenames[n]; ok {
		return KindMetadata, key
	}
	return KindMetadata, n
}

// Attrs is the storage-side view of a response's headers.
type Attrs struct {
	ContentType  string
	CacheControl string
	Expires      string
	Metadata     map[string]string
}

// Split classifies every header of h. The first value wins for multi-valued
// headers.
func Split(h http.Header) Attrs {
	a := Attrs{Metadata: map[string]string{}}
	for name, vals := range h {
		if len(vals) == 0 {
			continue
		}
		v := vals[0]
		kind, key := Classify(name)
		if kind == KindMetadata {
			a.Metadata[key] = v
			continue
		}
		switch key {
		case "ContentType":
			a.ContentType = v
		case "CacheControl":
			a.CacheControl = v
		case "Expires":
			a.Expires = v
		}
	}
	return a
}
