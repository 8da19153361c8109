package cache

import "errors"

var (
	// ErrInvalidKey indicates a blank key or one with control characters.
	ErrInvalidKey = errors.New("cache: key is invalid")

	// ErrKeyTooLong indicates a key longer than MaxKeyLength.
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
)
