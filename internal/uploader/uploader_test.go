package uploader

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"limbofuzz/internal/config"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestNewWithoutBackends(t *testing.T) {
	u, err := New(config.StorageConfig{})
	require.NoError(t, err)
	require.False(t, u.Enabled())
	loc, err := u.UploadDir(context.Background(), t.TempDir())
	require.NoError(t, err)
	require.Empty(t, loc)
}

func TestDisabledBackendsSkipUpload(t *testing.T) {
	s3u, err := NewS3(config.S3Config{})
	require.NoError(t, err)
	gcsu, err := NewGCS(config.GCSConfig{})
	require.NoError(t, err)
	m := Multi{s3u, gcsu}
	require.False(t, m.Enabled())
	loc, err := m.UploadDir(context.Background(), "missing")
	require.NoError(t, err)
	require.Empty(t, loc)
}

func TestEnabledBackendNeedsBucket(t *testing.T) {
	_, err := NewS3(config.S3Config{Enabled: true})
	require.Error(t, err)
	_, err = NewGCS(config.GCSConfig{Enabled: true})
	require.Error(t, err)
}

func TestUploadDirKeys(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "case_0001_x")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "case.sql"), []byte("SELECT 1;\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "summary.json"), []byte("{}"), 0o644))

	var (
		keys   []string
		types  []string
		bodies []string
	)
	prefix, err := uploadDir(context.Background(), dir, "/runs/a/", func(_ context.Context, obj object) error {
		data, err := io.ReadAll(obj.Body)
		if err != nil {
			return err
		}
		require.Equal(t, int64(len(data)), obj.Size)
		keys = append(keys, obj.Key)
		types = append(types, obj.ContentType)
		bodies = append(bodies, string(data))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "runs/a/case_0001_x/", prefix)
	require.Equal(t, []string{"runs/a/case_0001_x/case.sql", "runs/a/case_0001_x/summary.json"}, keys)
	require.Equal(t, []string{"application/sql", "application/json"}, types)
	require.Equal(t, []string{"SELECT 1;\n", "{}"}, bodies)

	_, err = uploadDir(context.Background(), dir, "", func(context.Context, object) error {
		return errors.New("denied")
	})
	require.ErrorContains(t, err, "denied")
}

type fakeUploader struct {
	loc string
	err error
}

func (f fakeUploader) Enabled() bool { return true }

func (f fakeUploader) UploadDir(context.Context, string) (string, error) { return f.loc, f.err }

func TestContentType(t *testing.T) {
	require.Equal(t, "application/zstd", contentType("case.tar.zst"))
	require.Equal(t, "text/markdown; charset=utf-8", contentType("README.md"))
	require.Equal(t, "application/octet-stream", contentType("dump.bin"))
}

func TestMultiCollectsLocationsAndErrors(t *testing.T) {
	m := Multi{fakeUploader{loc: "s3://b/k/"}, fakeUploader{err: errors.New("quota")}, fakeUploader{loc: "gs://b/k/"}}
	require.True(t, m.Enabled())
	loc, err := m.UploadDir(context.Background(), "dir")
	require.Equal(t, "s3://b/k/ gs://b/k/", loc)
	require.ErrorContains(t, err, "quota")
}
