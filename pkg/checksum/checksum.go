// Package checksum keeps the per-project manifest that maps artifact
// basenames to their expected digests, and verifies files against it.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cperrin88/nifpre/internal/logger"
	"github.com/cperrin88/nifpre/pkg/errors"
	"github.com/cperrin88/nifpre/pkg/fsutil"
)

// AlgorithmSHA256 is the only supported digest algorithm.
const AlgorithmSHA256 = "sha256"

// RemedyCommand is the command that regenerates the manifest.
const RemedyCommand = "nifpre checksum --all"

// Sum is an algorithm and its hex digest.
type Sum struct {
	Algorithm string `yaml:"algorithm" json:"algorithm"`
	Digest    string `yaml:"digest" json:"digest"`
}

// String renders "algorithm:digest".
func (s Sum) String() string {
	return s.Algorithm + ":" + s.Digest
}

// ParseSum splits an "algorithm:digest" manifest value.
func ParseSum(value string) (Sum, error) {
	algo, digest, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok || algo == "" || digest == "" {
		return Sum{}, fmt.Errorf("%w: %q", errors.ErrMalformedChecksum, value)
	}
	return Sum{Algorithm: strings.ToLower(algo), Digest: strings.ToLower(digest)}, nil
}

// Supported reports whether algo is in the supported set.
func Supported(algo string) bool {
	return strings.EqualFold(algo, AlgorithmSHA256)
}

// ComputeBytes returns the SHA-256 sum of data.
func ComputeBytes(data []byte) Sum {
	h := sha256.Sum256(data)
	return Sum{Algorithm: AlgorithmSHA256, Digest: hex.EncodeToString(h[:])}
}

// Compute returns the SHA-256 sum of the full contents of the file at path.
func Compute(path string) (Sum, error) {
	f, err := os.Open(path)
	if err != nil {
		return Sum{}, errors.New(errors.KindIO, "open for checksum", path, err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return Sum{}, errors.New(errors.KindIO, "hash", path, err)
	}
	return Sum{Algorithm: AlgorithmSHA256, Digest: hex.EncodeToString(h.Sum(nil))}, nil
}

// Manifest maps artifact basenames to "algorithm:digest" values.
type Manifest map[string]string

// ManifestPath returns the manifest file for app inside projectDir.
func ManifestPath(projectDir, app string) string {
	return filepath.Join(projectDir, "checksum-"+app+".yaml")
}

// Load reads a manifest. A missing or unparseable file yields an empty
// manifest: on a first run there is nothing to read yet.
func Load(path string) Manifest {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("Cannot read checksum manifest, starting empty", logger.Fields{"path": path, "error": err.Error()})
		}
		return Manifest{}
	}

	m := Manifest{}
	if err := yaml.Unmarshal(data, &m); err != nil {
		logger.Warn("Cannot parse checksum manifest, starting empty", logger.Fields{"path": path, "error": err.Error()})
		return Manifest{}
	}
	if m == nil {
		return Manifest{}
	}
	return m
}

// Save writes m sorted by key, so equal manifests produce identical files.
func Save(path string, m Manifest) error {
	if m == nil {
		m = Manifest{}
	}
	data, err := yaml.Marshal(map[string]string(m))
	if err != nil {
		return errors.New(errors.KindIO, "encode checksum manifest", path, err)
	}
	if err := fsutil.WriteFileAtomic(path, data, fsutil.FileModeDefault); err != nil {
		return errors.New(errors.KindIO, "write checksum manifest", path, err)
	}
	logger.Debug("Saved checksum manifest", logger.Fields{"path": path, "entries": len(m)})
	return nil
}

// Merge returns a new manifest holding m's entries overlaid with other's.
func (m Manifest) Merge(other Manifest) Manifest {
	out := make(Manifest, len(m)+len(other))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Add records sum for the basename of path.
func (m Manifest) Add(path string, sum Sum) {
	m[filepath.Base(path)] = sum.String()
}

// Verify checks the file at path against its manifest entry. A missing
// entry is a failure, never a skip.
func Verify(m Manifest, path string) error {
	name := filepath.Base(path)
	value, ok := m[name]
	if !ok {
		return errors.New(errors.KindIntegrity, "verify", name, errors.ErrChecksumMissing).
			WithRemedy(RemedyCommand)
	}

	want, err := ParseSum(value)
	if err != nil {
		return errors.New(errors.KindIntegrity, "verify", name, err).WithRemedy(RemedyCommand)
	}
	if !Supported(want.Algorithm) {
		return errors.New(errors.KindIntegrity, "verify", name,
			fmt.Errorf("%w: %s", errors.ErrUnsupportedAlgorithm, want.Algorithm))
	}

	got, err := Compute(path)
	if err != nil {
		return err
	}
	if got.Digest != want.Digest {
		return errors.New(errors.KindIntegrity, "verify", name,
			fmt.Errorf("%w: expected %s, got %s", errors.ErrChecksumMismatch, want, got)).
			WithRemedy("nifpre fetch")
	}
	return nil
}
