package cnst

import "errors"

var (
	// ErrUnsupportedStoreType is returned when the configured state store type is unknown
	ErrUnsupportedStoreType = errors.New("unsupported state store type")
	// ErrUnsupportedDatabaseType is returned when the configured scenario database type is unknown
	ErrUnsupportedDatabaseType = errors.New("unsupported database type")
)
