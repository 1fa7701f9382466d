package store

import "errors"

var (
	// ErrNotInitialized is returned when the store is used before Begin succeeds
	ErrNotInitialized = errors.New("store not initialized")

	// ErrBadArgument is returned when a key or value violates the configured limits
	ErrBadArgument = errors.New("bad argument")

	// ErrKeyNotFound is returned when a key does not exist in the store
	ErrKeyNotFound = errors.New("key not found")

	// ErrStoreFull is returned when GC cannot secure an empty block or cannot
	// fit the live entries into one block
	ErrStoreFull = errors.New("store full")

	// ErrCorrupt is returned when the on-device state cannot be repaired
	ErrCorrupt = errors.New("storage corrupt")

	// errBlockFull signals that the pending entry does not fit in the active
	// block; the write pipeline reacts by running garbage collection
	errBlockFull = errors.New("active block full")
)
