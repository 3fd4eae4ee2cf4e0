package jsonable

import "time"

// Configuration constants for jsonable operations
const (
	// TimestampLayout formats created_at/updated_at. Fixed width, so stored
	// timestamps sort lexically in time order.
	TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

	// Document records
	DefaultDataPath       = "./data"
	DefaultDocumentSuffix = ".json"
	DefaultLockStripes    = 32

	// File backend configuration
	DefaultFilePermissions = 0644
	DefaultDirPermissions  = 0755

	// Remote backends fail fast after this many consecutive errors
	DefaultBreakerFailures = 5
	DefaultBreakerReset    = 30 * time.Second
)
