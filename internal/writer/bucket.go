package writer

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"fraudforge/pkg/config"
	"fraudforge/pkg/errs"
)

// BucketExporter copies run artifacts to their long-term home. With an
// endpoint configured it uploads to S3-compatible storage, otherwise it
// copies the files into a local directory.
type BucketExporter struct {
	cfg *config.Bucket
	log zerolog.Logger
}

func NewBucketExporter(cfg *config.Bucket, log zerolog.Logger) *BucketExporter {
	return &BucketExporter{cfg: cfg, log: log}
}

// Export ships the given files. Remote uploads keep the base filename under
// the configured prefix.
func (e *BucketExporter) Export(ctx context.Context, paths ...string) error {
	if e.cfg.Endpoint != "" {
		return e.upload(ctx, paths)
	}
	return e.copyLocal(paths)
}

func (e *BucketExporter) upload(ctx context.Context, paths []string) error {
	client, err := minio.New(e.cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(e.cfg.AccessKey, e.cfg.SecretKey, ""),
		Secure: e.cfg.UseSSL,
	})
	if err != nil {
		return errs.Writerf("connect to bucket endpoint %s", e.cfg.Endpoint).WithError(err)
	}
	for _, p := range paths {
		object := path.Join(e.cfg.Prefix, filepath.Base(p))
		info, err := client.FPutObject(ctx, e.cfg.Bucket, object, p, minio.PutObjectOptions{})
		if err != nil {
			return errs.Writerf("upload %s to bucket %s", object, e.cfg.Bucket).WithError(err)
		}
		e.log.Info().
			Str("bucket", e.cfg.Bucket).
			Str("object", object).
			Int64("size", info.Size).
			Msg("artifact uploaded")
	}
	return nil
}

func (e *BucketExporter) copyLocal(paths []string) error {
	dir := filepath.Join(e.cfg.Dir, e.cfg.Prefix)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Writerf("create export directory %s", dir).WithError(err)
	}
	for _, p := range paths {
		dst := filepath.Join(dir, filepath.Base(p))
		if err := copyFile(p, dst); err != nil {
			return err
		}
		e.log.Info().Str("path", dst).Msg("artifact exported")
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errs.Writerf("open %s", src).WithError(err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return errs.Writerf("create %s", dst).WithError(err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errs.Writerf("copy %s", dst).WithError(err)
	}
	return out.Close()
}
