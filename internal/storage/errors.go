package storage

import "errors"

// ErrUnavailable is returned by every operation of a store that could not be constructed.
var ErrUnavailable = errors.New("storage unavailable")
