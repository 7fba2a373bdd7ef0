package kvstore

import "errors"

// ErrNotFound is returned by Get when the key is missing or has expired.
var ErrNotFound = errors.New("key not found")

// ErrNotInteger is returned by Incr when the stored value is not a decimal integer.
var ErrNotInteger = errors.New("value is not an integer")
