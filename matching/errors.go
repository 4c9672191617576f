package matching

import "errors"

var (
	// ErrStoreRequired is returned when an engine is built without repositories.
	ErrStoreRequired = errors.New("product and mapping repositories required")

	// ErrInvalidThreshold is returned for thresholds outside (0, 1].
	ErrInvalidThreshold = errors.New("similarity threshold must be in (0, 1]")
)
