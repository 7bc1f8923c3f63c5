package metadata

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactName_String(t *testing.T) {
	name := ArtifactName{App: "fast_json", RuntimeVersion: "2.16", Target: "x86_64-linux-gnu", Version: "0.4.1"}
	assert.Equal(t, "fast_json-nif-2.16-x86_64-linux-gnu-0.4.1.tar.gz", name.String())
	assert.Equal(t, "https://example.com/releases/v0.4.1/fast_json-nif-2.16-x86_64-linux-gnu-0.4.1.tar.gz",
		name.URL("https://example.com/releases/v0.4.1/"))
}

func TestParseArtifactName(t *testing.T) {
	tests := []struct {
		input   string
		want    ArtifactName
		wantErr bool
	}{
		{
			input: "fast_json-nif-2.16-x86_64-linux-gnu-0.4.1.tar.gz",
			want:  ArtifactName{App: "fast_json", RuntimeVersion: "2.16", Target: "x86_64-linux-gnu", Version: "0.4.1"},
		},
		{
			input: "my-app-nif-2.17-aarch64-apple-darwin-1.0.0-rc.1.tar.gz",
			want:  ArtifactName{App: "my-app", RuntimeVersion: "2.17", Target: "aarch64-apple-darwin", Version: "1.0.0-rc.1"},
		},
		{
			input: "fast_json-nif-2.16-x86_64-linux-gnu-1.0.0-rc-1.tar.gz",
			want:  ArtifactName{App: "fast_json", RuntimeVersion: "2.16", Target: "x86_64-linux-gnu", Version: "1.0.0-rc-1"},
		},
		{input: "fast_json-nif-2.16-x86_64-linux-gnu-0.4.1.zip", wantErr: true},
		{input: "fast_json-2.16-x86_64-linux-gnu-0.4.1.tar.gz", wantErr: true},
		{input: "fast_json-nif-2.16-0.4.1.tar.gz", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseArtifactName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.input, got.String())
		})
	}
}

func TestParseArtifactURL(t *testing.T) {
	t.Run("current shape", func(t *testing.T) {
		got, err := ParseArtifactURL("https://example.com/dl/v1/fast_json-nif-2.16-x86_64-linux-musl-1.2.3.tar.gz")
		require.NoError(t, err)
		assert.False(t, got.Legacy)
		assert.Equal(t, "https://example.com/dl/v1", got.BaseURL)
		assert.Equal(t, "x86_64-linux-musl", got.Name.Target)
		assert.Equal(t, "2.16", got.Name.RuntimeVersion)
	})

	t.Run("legacy shape", func(t *testing.T) {
		got, err := ParseArtifactURL("https://example.com/dl/v1/aarch64-macos.tar.gz")
		require.NoError(t, err)
		assert.True(t, got.Legacy)
		assert.Equal(t, "https://example.com/dl/v1", got.BaseURL)
		assert.Equal(t, "aarch64-macos", got.Name.Target)
	})

	t.Run("not an archive", func(t *testing.T) {
		_, err := ParseArtifactURL("https://example.com/dl/v1/readme.txt")
		assert.Error(t, err)
	})
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "a.tar.gz", FileName("https://example.com/x/a.tar.gz?token=1"))
	assert.Equal(t, "b.tar.gz", FileName("b.tar.gz"))
}

func TestRecord_SaveSkipsIdenticalContent(t *testing.T) {
	path := RecordPath(filepath.Join(t.TempDir(), Dir), "fast_json")
	rec := &Record{
		App:             "fast_json",
		BaseURL:         "https://example.com/dl",
		Target:          "x86_64-linux-gnu",
		Targets:         []string{"x86_64-linux-gnu", "aarch64-macos"},
		Version:         "0.4.1",
		RuntimeVersion:  "2.16",
		RuntimeVersions: []string{"2.16", "2.17"},
	}

	written, err := Save(path, rec)
	require.NoError(t, err)
	assert.True(t, written)

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	written, err = Save(path, rec)
	require.NoError(t, err)
	assert.False(t, written, "identical record must not be rewritten")
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.WithinDuration(t, old, info.ModTime(), time.Second)

	rec.Target = "aarch64-macos"
	written, err = Save(path, rec)
	require.NoError(t, err)
	assert.True(t, written)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, rec, loaded)
}

func TestLoad_Missing(t *testing.T) {
	rec, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRecord_AvailableURLs(t *testing.T) {
	t.Run("derived from targets and runtimes", func(t *testing.T) {
		rec := &Record{
			App:             "fast_json",
			BaseURL:         "https://example.com/dl",
			Targets:         []string{"x86_64-linux-gnu", "aarch64-macos"},
			Version:         "0.4.1",
			RuntimeVersions: []string{"2.16", "2.17"},
		}
		urls, err := rec.AvailableURLs()
		require.NoError(t, err)
		require.Len(t, urls, 4)
		assert.Equal(t, "https://example.com/dl/fast_json-nif-2.16-x86_64-linux-gnu-0.4.1.tar.gz", urls[0].URL)
		assert.Equal(t, "aarch64-macos", urls[3].Target)
		assert.Equal(t, "2.17", urls[3].RuntimeVersion)
	})

	t.Run("historical legacy urls", func(t *testing.T) {
		rec := &Record{
			App:  "fast_json",
			URLs: []string{"https://example.com/dl/x86_64-linux-gnu.tar.gz"},
		}
		urls, err := rec.AvailableURLs()
		require.NoError(t, err)
		require.Len(t, urls, 1)
		assert.True(t, urls[0].Legacy)
		assert.Equal(t, "x86_64-linux-gnu", urls[0].Target)
	})

	t.Run("record without runtime versions", func(t *testing.T) {
		rec := &Record{
			App:     "fast_json",
			BaseURL: "https://example.com/dl/",
			Targets: []string{"x86_64-linux-gnu", "aarch64-macos"},
			Version: "0.4.1",
		}
		urls, err := rec.AvailableURLs()
		require.NoError(t, err)
		require.Len(t, urls, 2)
		assert.Equal(t, "https://example.com/dl/x86_64-linux-gnu.tar.gz", urls[0].URL)
		assert.True(t, urls[0].Legacy)
		assert.Empty(t, urls[0].RuntimeVersion)
		assert.Equal(t, "aarch64-macos", urls[1].Target)
	})

	t.Run("missing base url", func(t *testing.T) {
		_, err := (&Record{App: "fast_json", Targets: []string{"x"}}).AvailableURLs()
		assert.Error(t, err)
	})
}
