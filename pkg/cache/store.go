// Package cache is the content-addressed store for downloaded and locally
// built artifact archives.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cperrin88/nifpre/pkg/errors"
	"github.com/cperrin88/nifpre/pkg/fsutil"
	"github.com/cperrin88/nifpre/pkg/metadata"
)

// Store is a cache rooted at one directory. Archives live directly in the
// root; metadata records live in the metadata subdirectory.
type Store struct {
	directory string
}

// NewStore creates a store rooted at directory. Nothing is created on disk
// until Root or Write is called.
func NewStore(directory string) *Store {
	return &Store{directory: directory}
}

// DefaultRoot returns NIFPRE_CACHE_DIR when set, otherwise the user cache
// directory namespaced by application. A nil getenv means os.Getenv.
func DefaultRoot(getenv func(string) string) (string, error) {
	dir, err := fsutil.GetCacheDir(getenv)
	if err != nil {
		return "", errors.New(errors.KindIO, "resolve cache root", "", err)
	}
	return dir, nil
}

// NewDefaultStore creates a store at DefaultRoot.
func NewDefaultStore(getenv func(string) string) (*Store, error) {
	dir, err := DefaultRoot(getenv)
	if err != nil {
		return nil, err
	}
	return NewStore(dir), nil
}

// GetDirectory returns the cache root path.
func (s *Store) GetDirectory() string {
	return s.directory
}

// Root returns the cache root, or subdir inside it, creating it if absent.
// Concurrent callers are safe: an existing directory is not an error.
func (s *Store) Root(subdir string) (string, error) {
	if s.directory == "" {
		return "", errors.New(errors.KindConfig, "cache root", "", errors.ErrCacheDirectory)
	}
	dir := s.directory
	if subdir != "" {
		dir = filepath.Join(dir, subdir)
		if !fsutil.IsWithin(s.directory, dir) {
			return "", errors.New(errors.KindIO, "cache root", subdir, errors.ErrInvalidPath)
		}
	}
	if err := os.MkdirAll(dir, CacheDirPerm); err != nil {
		return "", errors.New(errors.KindIO, "create cache directory", dir, err)
	}
	return dir, nil
}

// EntryPath returns where the archive for the given identity lives. It does
// no I/O.
func (s *Store) EntryPath(app, runtimeVersion, target, version string) string {
	name := metadata.ArtifactName{App: app, RuntimeVersion: runtimeVersion, Target: target, Version: version}
	return filepath.Join(s.directory, name.String())
}

// Exists reports whether path exists.
func (s *Store) Exists(path string) bool {
	return fsutil.Exists(path)
}

// Write stores data at path, creating parent directories first. The file is
// written next to path and renamed into place.
func (s *Store) Write(path string, data []byte) error {
	if path == "" || strings.HasSuffix(path, string(filepath.Separator)) {
		return errors.New(errors.KindIO, "write cache entry", path, errors.ErrInvalidPath)
	}
	if err := fsutil.WriteFileAtomic(path, data, CacheFilePerm); err != nil {
		return errors.New(errors.KindIO, "write cache entry", path, err)
	}
	return nil
}

// Remove deletes a cache entry. A missing entry is not an error.
func (s *Store) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.New(errors.KindIO, "remove cache entry", path, err)
	}
	return nil
}

// MetadataPath returns the metadata record path for app, creating the
// metadata directory.
func (s *Store) MetadataPath(app string) (string, error) {
	dir, err := s.Root(metadata.Dir)
	if err != nil {
		return "", err
	}
	return metadata.RecordPath(dir, app), nil
}

// Clean removes cached files according to the specified options.
func (s *Store) Clean(options CleanOptions) (*CleanResult, error) {
	result := &CleanResult{}

	if !options.Artifacts && !options.Metadata {
		options.All = true
	}

	if options.All || options.Artifacts {
		size, err := s.cleanArtifacts()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCacheClean, err)
		}
		result.ArtifactFreed = size
		result.TotalFreed += size
	}

	if options.All || options.Metadata {
		size, err := cleanDirectory(filepath.Join(s.directory, metadata.Dir))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCacheClean, err)
		}
		result.MetadataFreed = size
		result.TotalFreed += size
	}

	return result, nil
}

// GetInfo returns information about the cache.
func (s *Store) GetInfo() (*Info, error) {
	info := &Info{Directory: s.directory}

	artifacts, err := s.listArtifacts()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCacheInfo, err)
	}
	for _, a := range artifacts {
		info.ArtifactSize += a.size
	}
	info.ArtifactFiles = len(artifacts)

	metaSize, metaFiles, err := getDirSizeAndFiles(filepath.Join(s.directory, metadata.Dir))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCacheInfo, err)
	}
	info.MetadataSize = metaSize
	info.MetadataFiles = metaFiles

	info.TotalSize = info.ArtifactSize + info.MetadataSize
	return info, nil
}

type artifactFile struct {
	path string
	size int64
}

// listArtifacts returns the archives stored directly in the cache root.
func (s *Store) listArtifacts() ([]artifactFile, error) {
	entries, err := os.ReadDir(s.directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []artifactFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), metadata.ArchiveExt) {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			return nil, err
		}
		out = append(out, artifactFile{path: filepath.Join(s.directory, entry.Name()), size: fi.Size()})
	}
	return out, nil
}

func (s *Store) cleanArtifacts() (int64, error) {
	artifacts, err := s.listArtifacts()
	if err != nil {
		return 0, err
	}
	var freed int64
	for _, a := range artifacts {
		if err := os.Remove(a.path); err != nil && !os.IsNotExist(err) {
			return freed, errors.Wrapf(err, "failed to remove %s", a.path)
		}
		freed += a.size
	}
	return freed, nil
}

// cleanDirectory removes a directory and returns bytes freed.
func cleanDirectory(dir string) (int64, error) {
	size, _, err := getDirSizeAndFiles(dir)
	if err != nil {
		return 0, err
	}
	if err := os.RemoveAll(dir); err != nil {
		return 0, errors.Wrapf(err, "failed to remove directory %s", dir)
	}
	return size, nil
}

// getDirSizeAndFiles calculates directory size and file count. A missing
// directory is empty.
func getDirSizeAndFiles(dir string) (size int64, count int, err error) {
	if _, err = os.Stat(dir); os.IsNotExist(err) {
		return 0, 0, nil
	}

	err = filepath.Walk(dir, func(_ string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !info.IsDir() {
			size += info.Size()
			count++
		}
		return nil
	})
	if err != nil {
		err = errors.Wrapf(err, "error walking directory %s", dir)
	}
	return size, count, err
}
