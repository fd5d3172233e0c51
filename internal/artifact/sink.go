package artifact

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/spf13/afero"
	"google.golang.org/api/option"
)

// Sink stores a named artifact and returns a locator callers can show to a
// user.
type Sink interface {
	Put(ctx context.Context, name string, r io.Reader) (string, error)
}

// FSSink writes artifacts below a directory of an afero filesystem.
type FSSink struct {
	fs  afero.Fs
	dir string
}

func NewFSSink(fs afero.Fs, dir string) *FSSink {
	return &FSSink{fs: fs, dir: dir}
}

func (s *FSSink) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating artifact dir %s: %w", s.dir, err)
	}
	target := filepath.Join(s.dir, filepath.Base(name))
	f, err := s.fs.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("opening artifact %s: %w", target, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("writing artifact %s: %w", target, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing artifact %s: %w", target, err)
	}
	return target, nil
}

// GCSSink uploads artifacts to a Google Cloud Storage bucket.
type GCSSink struct {
	client *storage.Client
	bucket string
	prefix string
}

// GCSConfig locates a bucket. Prefix is prepended to object names; Project,
// when set, is billed for requests.
type GCSConfig struct {
	Bucket          string
	Prefix          string
	Project         string
	CredentialsFile string
}

// NewGCSSink authenticates with a service account key file. An empty path
// falls back to application default credentials.
func NewGCSSink(ctx context.Context, cfg GCSConfig) (*GCSSink, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		if _, err := os.Stat(cfg.CredentialsFile); err != nil {
			return nil, fmt.Errorf("service account key not readable at %s: %w", cfg.CredentialsFile, err)
		}
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Project != "" {
		opts = append(opts, option.WithQuotaProject(cfg.Project))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating GCS client: %w", err)
	}
	return &GCSSink{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Put uploads r as one object. A failed read cancels the upload, so no
// partial object is left in the bucket.
func (s *GCSSink) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	object := path.Join(s.prefix, path.Base(name))
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	w.ContentType = "text/csv"
	w.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := io.Copy(w, r); err != nil {
		cancel()
		_ = w.Close()
		return "", fmt.Errorf("uploading %s to bucket %s: %w", object, s.bucket, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing %s in bucket %s: %w", object, s.bucket, err)
	}
	return "gs://" + s.bucket + "/" + object, nil
}

func (s *GCSSink) Close() error {
	return s.client.Close()
}
