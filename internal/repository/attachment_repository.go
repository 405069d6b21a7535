package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/minio/minio-go/v7"
)

// AttachmentRepository stores attachment bytes and returns a stable reference.
type AttachmentRepository interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
}

type attachmentRepository struct {
	client *minio.Client
	bucket string
}

// NewAttachmentRepository returns an object-store backed implementation.
func NewAttachmentRepository(client *minio.Client, bucket string) AttachmentRepository {
	return &attachmentRepository{client: client, bucket: bucket}
}

func (r *attachmentRepository) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	info, err := r.client.PutObject(ctx, r.bucket, key, body, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", info.Bucket, info.Key), nil
}

// MemoryAttachmentRepository keeps attachment bytes in memory.
type MemoryAttachmentRepository struct {
	mu      sync.Mutex
	objects map[string][]byte
}

// NewMemoryAttachmentRepository returns an empty in-memory store.
func NewMemoryAttachmentRepository() *MemoryAttachmentRepository {
	return &MemoryAttachmentRepository{objects: make(map[string][]byte)}
}

func (r *MemoryAttachmentRepository) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objects[key] = buf.Bytes()
	return "mem://" + key, nil
}

// Get returns stored bytes.
func (r *MemoryAttachmentRepository) Get(key string) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.objects[key]
	return b, ok
}
