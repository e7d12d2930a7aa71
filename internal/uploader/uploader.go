// Package uploader copies case directories to cloud object storage.
package uploader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"limbofuzz/internal/config"
	"limbofuzz/internal/util"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Uploader stores a case directory and returns its location.
type Uploader interface {
	Enabled() bool
	UploadDir(ctx context.Context, dir string) (string, error)
}

// NoopUploader is used when no storage is configured.
type NoopUploader struct{}

// Enabled is always false.
func (NoopUploader) Enabled() bool { return false }

// UploadDir does nothing.
func (NoopUploader) UploadDir(context.Context, string) (string, error) { return "", nil }

// New returns an uploader for every enabled backend, or a NoopUploader.
func New(cfg config.StorageConfig) (Uploader, error) {
	var all Multi
	if cfg.S3.Enabled {
		u, err := NewS3(cfg.S3)
		if err != nil {
			return nil, err
		}
		all = append(all, u)
	}
	if cfg.GCS.Enabled {
		u, err := NewGCS(cfg.GCS)
		if err != nil {
			return nil, err
		}
		all = append(all, u)
	}
	if len(all) == 0 {
		return NoopUploader{}, nil
	}
	return all, nil
}

// Multi uploads to several backends. Locations are joined with spaces.
type Multi []Uploader

// Enabled reports whether any backend is enabled.
func (m Multi) Enabled() bool {
	for _, u := range m {
		if u.Enabled() {
			return true
		}
	}
	return false
}

// UploadDir uploads to every backend, continuing past failures.
func (m Multi) UploadDir(ctx context.Context, dir string) (string, error) {
	var locations []string
	var errs *multierror.Error
	for _, u := range m {
		loc, err := u.UploadDir(ctx, dir)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		if loc != "" {
			locations = append(locations, loc)
		}
	}
	return strings.Join(locations, " "), errs.ErrorOrNil()
}

// object is one case file on its way to a bucket.
type object struct {
	Key         string
	Size        int64
	ContentType string
	Body        io.Reader
}

// putFunc stores one object.
type putFunc func(ctx context.Context, obj object) error

// caseContentTypes maps the files a case directory holds to the type they
// are served with.
var caseContentTypes = map[string]string{
	".json": "application/json",
	".sql":  "application/sql",
	".md":   "text/markdown; charset=utf-8",
	".zst":  "application/zstd",
}

func contentType(name string) string {
	if ct, ok := caseContentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// uploadDir stores the regular files of dir under prefix/<dir name>/ and
// returns that key prefix.
func uploadDir(ctx context.Context, dir, prefix string, put putFunc) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", errors.Wrapf(err, "read case dir %s", dir)
	}
	keyPrefix := objectPrefix(prefix, filepath.Base(dir))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := putFile(ctx, filepath.Join(dir, entry.Name()), keyPrefix+entry.Name(), put); err != nil {
			return "", errors.Wrapf(err, "upload %s", entry.Name())
		}
	}
	return keyPrefix, nil
}

func putFile(ctx context.Context, path, key string, put putFunc) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer util.CloseWithErr(f, "upload source")
	info, err := f.Stat()
	if err != nil {
		return err
	}
	return put(ctx, object{Key: key, Size: info.Size(), ContentType: contentType(path), Body: f})
}

func objectPrefix(prefix, base string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return base + "/"
	}
	return fmt.Sprintf("%s/%s/", prefix, base)
}
