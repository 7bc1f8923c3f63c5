package fsutil

import (
	"os"
	"path/filepath"
)

const (
	// AppName is the name of the application used in paths.
	AppName = "nifpre"

	// CacheDirEnv overrides the whole cache root when set and non-empty.
	CacheDirEnv = "NIFPRE_CACHE_DIR"
)

// GetCacheDir returns the cache root. NIFPRE_CACHE_DIR wins when set;
// otherwise the platform cache directory is used:
// On Linux: ~/.cache/nifpre/
// On macOS: ~/Library/Caches/nifpre/
// On Windows: %LocalAppData%\nifpre\
func GetCacheDir(getenv func(string) string) (string, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if dir := getenv(CacheDirEnv); dir != "" {
		return filepath.Abs(dir)
	}
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, AppName), nil
}
