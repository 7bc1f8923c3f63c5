package cache

// Manager defines the interface for cache management operations.
type Manager interface {
	Clean(options CleanOptions) (*CleanResult, error)
	GetInfo() (*Info, error)
	GetDirectory() string
}

// CleanOptions specifies what to clean from the cache.
type CleanOptions struct {
	All       bool
	Artifacts bool
	Metadata  bool
}

// CleanResult contains information about what was cleaned.
type CleanResult struct {
	TotalFreed    int64
	ArtifactFreed int64
	MetadataFreed int64
}

// Info represents cache information.
type Info struct {
	Directory     string
	TotalSize     int64
	ArtifactSize  int64
	ArtifactFiles int
	MetadataSize  int64
	MetadataFiles int
}
