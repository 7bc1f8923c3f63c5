package cache

import "fmt"

// Cache management errors. Entry-level failures use the pkg/errors kinds.
var (
	ErrCacheClean = fmt.Errorf("failed to clean cache")
	ErrCacheInfo  = fmt.Errorf("failed to read cache")
)
