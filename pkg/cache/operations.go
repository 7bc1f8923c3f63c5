package cache

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/cperrin88/nifpre/internal/logger"
)

// CacheOperation formats cache management results for the CLI.
type CacheOperation struct {
	manager Manager
}

// NewCacheOperation creates a new cache operation instance.
func NewCacheOperation(manager Manager) *CacheOperation {
	return &CacheOperation{
		manager: manager,
	}
}

// Clean cleans the cache and returns a human-readable summary.
func (op *CacheOperation) Clean(all, artifacts, metadata bool) (string, error) {
	options := CleanOptions{
		All:       all,
		Artifacts: artifacts,
		Metadata:  metadata,
	}

	logger.Debug("Cleaning cache", logger.Fields{
		"all":       options.All,
		"artifacts": options.Artifacts,
		"metadata":  options.Metadata,
	})

	result, err := op.manager.Clean(options)
	if err != nil {
		return "", fmt.Errorf("failed to clean cache: %w", err)
	}

	if result.TotalFreed == 0 {
		return "No files were removed from the cache.", nil
	}

	msg := fmt.Sprintf("Successfully cleaned cache. Freed %s of disk space.", formatBytes(result.TotalFreed))
	if result.ArtifactFreed > 0 {
		msg += fmt.Sprintf("\n- Artifacts: %s", formatBytes(result.ArtifactFreed))
	}
	if result.MetadataFreed > 0 {
		msg += fmt.Sprintf("\n- Metadata: %s", formatBytes(result.MetadataFreed))
	}
	return msg, nil
}

// GetInfo returns a human-readable description of the cache.
func (op *CacheOperation) GetInfo() (string, error) {
	info, err := op.manager.GetInfo()
	if err != nil {
		return "", fmt.Errorf("failed to get cache info: %w", err)
	}

	return fmt.Sprintf(`Cache Information:
  Directory:    %s
  Total Size:   %s
  Artifacts:    %s (%d files)
  Metadata:     %s (%d files)`,
		info.Directory,
		formatBytes(info.TotalSize),
		formatBytes(info.ArtifactSize),
		info.ArtifactFiles,
		formatBytes(info.MetadataSize),
		info.MetadataFiles,
	), nil
}

// GetDirectory returns the cache directory path.
func (op *CacheOperation) GetDirectory() string {
	return op.manager.GetDirectory()
}

func formatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}
