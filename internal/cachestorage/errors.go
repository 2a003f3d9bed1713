package cachestorage

import "errors"

var (
	ErrNotFound     = errors.New("cache entry not found")
	ErrEmptyName    = errors.New("cache name is empty")
	ErrNilProvider  = errors.New("cache provider is nil")
	ErrInvalidEntry = errors.New("cache entry is invalid")
)
