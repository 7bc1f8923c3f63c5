// Package archive installs artifact archives into a destination directory
// and packages build output trees into archives.
package archive

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"

	"github.com/cperrin88/nifpre/internal/logger"
	"github.com/cperrin88/nifpre/pkg/errors"
	"github.com/cperrin88/nifpre/pkg/fsutil"
)

// Manager handles archive extraction and creation operations.
type Manager struct{}

// NewManager creates a new Manager instance.
func NewManager() *Manager {
	return &Manager{}
}

// SkippedEntry is an archive entry that was not written.
type SkippedEntry struct {
	Name   string `json:"name" yaml:"name"`
	Reason string `json:"reason" yaml:"reason"`
}

// Report lists what an extraction wrote and what it refused to write.
// Paths are relative to the destination root.
type Report struct {
	Files    []string       `json:"files" yaml:"files"`
	Dirs     []string       `json:"dirs" yaml:"dirs"`
	Symlinks []string       `json:"symlinks" yaml:"symlinks"`
	Skipped  []SkippedEntry `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// Extract unpacks archivePath into destRoot. Entries whose destination
// would fall outside destRoot are skipped with a warning and recorded in the
// report; the remaining entries are still extracted. Before the first
// regular file lands in a directory that existed before this call, that
// directory's stale contents are removed. Write failures abort.
func (am *Manager) Extract(ctx context.Context, archivePath, destRoot string) (*Report, error) {
	root, err := filepath.Abs(destRoot)
	if err != nil {
		return nil, errors.New(errors.KindExtraction, "extract", destRoot, err)
	}
	if err := fsutil.EnsureDir(root); err != nil {
		return nil, errors.New(errors.KindExtraction, "create destination", root, err)
	}

	file, err := os.Open(archivePath)
	if err != nil {
		return nil, errors.New(errors.KindExtraction, "extract", archivePath,
			fmt.Errorf("%w: %w", errors.ErrArchiveOpen, err))
	}
	defer func() { _ = file.Close() }()

	format, stream, err := archives.Identify(ctx, archivePath, file)
	if err != nil {
		return nil, errors.New(errors.KindExtraction, "identify archive", archivePath,
			fmt.Errorf("%w: %w", errors.ErrArchiveOpen, err))
	}
	extractor, ok := format.(archives.Extractor)
	if !ok {
		return nil, errors.New(errors.KindExtraction, "extract", archivePath,
			fmt.Errorf("%w: format %s cannot be extracted", errors.ErrArchiveOpen, format.Extension()))
	}

	x := newExtraction(root)
	if err := extractor.Extract(ctx, stream, x.handle); err != nil {
		var kerr *errors.Error
		if errors.As(err, &kerr) {
			return x.report, err
		}
		return x.report, errors.New(errors.KindExtraction, "extract", archivePath, err)
	}

	logger.Debug("Extracted archive", logger.Fields{
		"archive":  archivePath,
		"dest":     root,
		"files":    len(x.report.Files),
		"skipped":  len(x.report.Skipped),
		"symlinks": len(x.report.Symlinks),
	})
	return x.report, nil
}

// Create packages the contents of sourceDir into a gzip-compressed tar at
// archivePath.
func (am *Manager) Create(ctx context.Context, sourceDir, archivePath string) error {
	absolutePath, err := filepath.Abs(sourceDir)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for source directory: %w", err)
	}

	archiveFiles, err := archives.FilesFromDisk(ctx, nil, map[string]string{
		absolutePath + string(os.PathSeparator): "",
	})
	if err != nil {
		return fmt.Errorf("failed to read files from disk: %w", err)
	}

	if err := fsutil.EnsureFileDir(archivePath); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", archivePath, err)
	}
	file, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", archivePath, err)
	}
	defer func() {
		_ = file.Sync()
		_ = file.Close()
	}()

	format := archives.CompressedArchive{
		Compression: archives.Gz{},
		Archival:    archives.Tar{},
	}
	if err := format.Archive(ctx, file, archiveFiles); err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	return nil
}

// extraction is the state of one Extract call.
type extraction struct {
	root   string
	report *Report
	// prepared holds directories that were cleared or created by this
	// extraction and may receive files without further cleanup.
	prepared map[string]bool
	// touched holds every path this extraction wrote, plus its ancestors.
	touched map[string]bool
}

func newExtraction(root string) *extraction {
	return &extraction{
		root:     root,
		report:   &Report{},
		prepared: map[string]bool{root: true},
		touched:  map[string]bool{root: true},
	}
}

func (x *extraction) handle(ctx context.Context, f archives.FileInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target, rel, err := x.resolve(f.NameInArchive)
	if err != nil {
		x.skip(f.NameInArchive, err.Error())
		return nil
	}
	if rel == "." {
		return nil
	}

	switch {
	case f.IsDir():
		return x.writeDir(target, rel)
	case f.Mode()&fs.ModeSymlink != 0:
		return x.writeSymlink(f, target, rel)
	case f.Mode().IsRegular() && f.LinkTarget == "":
		return x.writeFile(f, target, rel)
	default:
		x.skip(f.NameInArchive, "unsupported entry type "+f.Mode().Type().String())
		return nil
	}
}

// resolve maps an archive name to an absolute path under the root.
func (x *extraction) resolve(name string) (string, string, error) {
	slashed := strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(slashed, "/") || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", "", fmt.Errorf("%w: absolute path", errors.ErrUnsafePath)
	}

	rel := filepath.Clean(filepath.FromSlash(slashed))
	target := filepath.Join(x.root, rel)
	if !fsutil.IsWithin(x.root, target) {
		return "", "", fmt.Errorf("%w: escapes destination", errors.ErrUnsafePath)
	}
	if err := x.checkNoSymlinkAncestor(filepath.Dir(target)); err != nil {
		return "", "", err
	}
	return target, rel, nil
}

// checkNoSymlinkAncestor refuses to write through a symlinked directory,
// which could point outside the root.
func (x *extraction) checkNoSymlinkAncestor(dir string) error {
	for d := dir; d != x.root && fsutil.IsWithin(x.root, d); d = filepath.Dir(d) {
		fi, err := os.Lstat(d)
		if err != nil {
			continue
		}
		if fi.Mode()&fs.ModeSymlink != 0 {
			return fmt.Errorf("%w: parent %s is a symlink", errors.ErrUnsafePath, d)
		}
	}
	return nil
}

func (x *extraction) skip(name, reason string) {
	logger.Warn("Skipping unsafe archive entry", logger.Fields{"entry": name, "dest": x.root, "reason": reason})
	x.report.Skipped = append(x.report.Skipped, SkippedEntry{Name: name, Reason: reason})
}

func (x *extraction) touch(path string) {
	for p := path; fsutil.IsWithin(x.root, p) && !x.touched[p]; p = filepath.Dir(p) {
		x.touched[p] = true
	}
}

// mkdirs creates dir and any missing ancestors. Directories created here
// count as prepared.
func (x *extraction) mkdirs(dir string) error {
	var missing []string
	for d := dir; fsutil.IsWithin(x.root, d) && !fsutil.Exists(d); d = filepath.Dir(d) {
		missing = append(missing, d)
	}
	if err := fsutil.EnsureDir(dir); err != nil {
		return errors.New(errors.KindExtraction, "create directory", dir, err)
	}
	for _, d := range missing {
		x.prepared[d] = true
	}
	x.touch(dir)
	return nil
}

// prepareDir clears stale entries from an existing directory once per
// extraction, keeping anything already written by this extraction.
func (x *extraction) prepareDir(dir string) error {
	if x.prepared[dir] {
		return nil
	}
	if !fsutil.Exists(dir) {
		return x.mkdirs(dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.New(errors.KindExtraction, "read directory", dir, err)
	}
	for _, entry := range entries {
		p := filepath.Join(dir, entry.Name())
		if x.touched[p] {
			continue
		}
		if err := os.RemoveAll(p); err != nil {
			return errors.New(errors.KindExtraction, "remove stale entry", p, err)
		}
	}
	x.prepared[dir] = true
	x.touch(dir)
	return nil
}

func (x *extraction) writeDir(target, rel string) error {
	if fi, err := os.Lstat(target); err == nil && !fi.IsDir() {
		if err := os.Remove(target); err != nil {
			return errors.New(errors.KindExtraction, "replace entry", target, err)
		}
	}
	if err := x.mkdirs(target); err != nil {
		return err
	}
	x.report.Dirs = append(x.report.Dirs, rel)
	return nil
}

func (x *extraction) writeSymlink(f archives.FileInfo, target, rel string) error {
	link := f.LinkTarget
	if link == "" || filepath.IsAbs(link) || strings.HasPrefix(link, "/") {
		x.skip(f.NameInArchive, fmt.Sprintf("%v: absolute symlink target %q", errors.ErrUnsafePath, link))
		return nil
	}
	if !fsutil.IsWithin(x.root, filepath.Join(filepath.Dir(target), filepath.FromSlash(link))) {
		x.skip(f.NameInArchive, fmt.Sprintf("%v: symlink target %q escapes destination", errors.ErrUnsafePath, link))
		return nil
	}

	if err := x.mkdirs(filepath.Dir(target)); err != nil {
		return err
	}
	if err := os.RemoveAll(target); err != nil {
		return errors.New(errors.KindExtraction, "replace entry", target, err)
	}
	if err := os.Symlink(filepath.FromSlash(link), target); err != nil {
		return errors.New(errors.KindExtraction, "create symlink", target, err)
	}
	x.touch(target)
	x.report.Symlinks = append(x.report.Symlinks, rel)
	return nil
}

func (x *extraction) writeFile(f archives.FileInfo, target, rel string) error {
	if err := x.prepareDir(filepath.Dir(target)); err != nil {
		return err
	}

	src, err := f.Open()
	if err != nil {
		return errors.New(errors.KindExtraction, "open entry", f.NameInArchive, err)
	}
	defer func() { _ = src.Close() }()

	// Never write through a symlink left at the target.
	if fi, err := os.Lstat(target); err == nil && !fi.Mode().IsRegular() {
		if err := os.RemoveAll(target); err != nil {
			return errors.New(errors.KindExtraction, "replace entry", target, err)
		}
	}

	perm := f.Mode().Perm() & fsutil.FileModeMask
	if perm == 0 {
		perm = fsutil.FileModeDefault
	}
	dst, err := fsutil.CreateFilePerm(target, perm)
	if err != nil {
		return errors.New(errors.KindExtraction, "create file", target, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return errors.New(errors.KindExtraction, "write file", target, err)
	}
	if err := dst.Close(); err != nil {
		return errors.New(errors.KindExtraction, "close file", target, err)
	}
	if err := os.Chmod(target, perm); err != nil {
		return errors.New(errors.KindExtraction, "set permissions", target, err)
	}
	if mt := f.ModTime(); !mt.IsZero() {
		_ = os.Chtimes(target, mt, mt)
	}

	x.touch(target)
	x.report.Files = append(x.report.Files, rel)
	return nil
}
