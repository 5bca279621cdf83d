package wal

import "errors"

// ErrSaturated is returned by Append once the mapped region has no room
// for another record. The caller counts it and continues; it is never
// surfaced to the client.
var ErrSaturated = errors.New("wal: saturated")
