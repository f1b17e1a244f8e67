package server

import "time"

// cacheKey identifies a cached build by its source directory.
type cacheKey struct {
	Dir string
}

func (k cacheKey) String() string {
	return k.Dir
}

// cacheRecord is the badgerhold-persisted value for a cacheKey.
type cacheRecord struct {
	Data    []byte
	BuiltAt time.Time
}
