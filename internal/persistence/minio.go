package persistence

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/unihelp/helpdesk/internal/config"
)

// ObjectStore wraps the MinIO client and the attachment bucket.
type ObjectStore struct {
	Client *minio.Client
	Bucket string
}

// NewObjectStore connects to MinIO and makes sure the bucket exists.
// A missing endpoint returns nil so callers can fall back to local storage.
func NewObjectStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*ObjectStore, error) {
	if cfg.Endpoint == "" {
		logger.Warn("MINIO_ENDPOINT not provided; attachments kept in memory")
		return nil, nil
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
		logger.Info("created attachment bucket", zap.String("bucket", cfg.Bucket))
	}

	logger.Info("connected to minio", zap.String("endpoint", cfg.Endpoint))
	return &ObjectStore{Client: client, Bucket: cfg.Bucket}, nil
}

// Ping verifies the bucket is reachable.
func (o *ObjectStore) Ping(ctx context.Context) error {
	if o == nil || o.Client == nil {
		return fmt.Errorf("object store not configured")
	}
	_, err := o.Client.BucketExists(ctx, o.Bucket)
	return err
}
