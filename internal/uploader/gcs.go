package uploader

import (
	"context"
	"io"
	"strings"

	"limbofuzz/internal/config"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

// GCSUploader uploads case directories to Google Cloud Storage.
type GCSUploader struct {
	cfg    config.GCSConfig
	client *storage.Client
}

// NewGCS constructs an uploader from GCS configuration.
func NewGCS(cfg config.GCSConfig) (*GCSUploader, error) {
	if !cfg.Enabled {
		return &GCSUploader{cfg: cfg}, nil
	}
	if cfg.Bucket == "" {
		return nil, errors.New("gcs bucket is not set")
	}
	var opts []option.ClientOption
	if path := strings.TrimSpace(cfg.CredentialsFile); path != "" {
		opts = append(opts, option.WithCredentialsFile(path))
	}
	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create gcs client")
	}
	return &GCSUploader{cfg: cfg, client: client}, nil
}

// Enabled reports whether GCS uploads are configured.
func (u *GCSUploader) Enabled() bool {
	return u.cfg.Enabled
}

// UploadDir uploads a case directory and returns its gs:// URL prefix.
func (u *GCSUploader) UploadDir(ctx context.Context, dir string) (string, error) {
	if !u.cfg.Enabled {
		return "", nil
	}
	if u.client == nil {
		return "", errors.New("gcs uploader is not initialized")
	}
	key, err := uploadDir(ctx, dir, u.cfg.Prefix, u.put)
	if err != nil {
		return "", err
	}
	return "gs://" + u.cfg.Bucket + "/" + key, nil
}

func (u *GCSUploader) put(ctx context.Context, obj object) error {
	w := u.client.Bucket(u.cfg.Bucket).Object(obj.Key).NewWriter(ctx)
	w.ContentType = obj.ContentType
	if _, err := io.Copy(w, obj.Body); err != nil {
		_ = w.Close()
		return errors.Wrapf(err, "write gs://%s/%s", u.cfg.Bucket, obj.Key)
	}
	return errors.Wrapf(w.Close(), "close gs://%s/%s", u.cfg.Bucket, obj.Key)
}
