// Package store provides the S3-compatible remote artifact store client.
package store

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/scanvault/scanvault/internal/config"
	"github.com/scanvault/scanvault/internal/observability"
)

// Client uploads final artifacts to an S3-compatible object store such as
// SeaweedFS or MinIO.
type Client struct {
	mc     *minio.Client
	bucket string
	logger *observability.Logger
}

// New builds a client from the store configuration. The endpoint may carry
// an http or https scheme; http endpoints are treated as insecure local
// development stores.
func New(cfg config.StoreConfig, logger *observability.Logger) (*Client, error) {
	endpoint, secure, err := parseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	mc, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}

	return &Client{
		mc:     mc,
		bucket: cfg.Bucket,
		logger: logger.WithComponent("store"),
	}, nil
}

// EnsureBucket creates the target bucket if it does not exist. Losing a
// creation race to another worker is not an error.
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.mc.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", c.bucket, err)
	}
	if exists {
		return nil
	}

	err = c.mc.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{})
	if err != nil {
		switch minio.ToErrorResponse(err).Code {
		case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
			return nil
		}
		return fmt.Errorf("create bucket %q: %w", c.bucket, err)
	}

	c.logger.Info().Str("bucket", c.bucket).Msg("created bucket")
	return nil
}

// Upload puts the local file into the bucket under key.
func (c *Client) Upload(ctx context.Context, localPath, key string) error {
	_, err := c.mc.FPutObject(ctx, c.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: "application/pdf",
	})
	if err != nil {
		return fmt.Errorf("upload %q: %w", key, err)
	}

	c.logger.Debug().Str("key", key).Str("local_path", localPath).Msg("uploaded artifact")
	return nil
}

// Key derives the remote object key from a task's relative path: the
// extension is replaced with .pdf and separators are normalized to forward
// slashes, so the key space mirrors the source tree using POSIX paths on
// every platform.
func Key(relPath string) string {
	trimmed := strings.TrimSuffix(relPath, filepath.Ext(relPath))
	return filepath.ToSlash(trimmed) + ".pdf"
}

func parseEndpoint(raw string) (endpoint string, secure bool, err error) {
	if !strings.Contains(raw, "://") {
		return raw, false, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse store endpoint %q: %w", raw, err)
	}
	return u.Host, u.Scheme == "https", nil
}
