package cache

import "github.com/cperrin88/nifpre/pkg/fsutil"

// CacheDirPerm is the default permission mode for cache directories (rwxr-xr-x).
var CacheDirPerm = fsutil.DirModeDefault

// CacheFilePerm is the permission mode for cached archives.
var CacheFilePerm = fsutil.FileModeDefault
