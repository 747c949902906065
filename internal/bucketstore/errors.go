package bucketstore

import "errors"

var (
	// ErrNotFound indicates the requested key (or copy source) is absent.
	ErrNotFound = errors.New("not found")
	// ErrReadOnly indicates a mutating call on a read-only client.
	ErrReadOnly = errors.New("bucket client is read-only")
)
