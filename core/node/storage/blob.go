package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Blob is the content-addressed byte-blob store used for persisted
// user-value shares, preprocessing batches, and compute results. Three
// backends are provided, selected by config.Storage.BlobKind.
type Blob interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// MemoryBlob is an in-process Blob for tests and single-node bootstrap.
type MemoryBlob struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemoryBlob builds an empty MemoryBlob.
func NewMemoryBlob() *MemoryBlob {
	return &MemoryBlob{data: map[string][]byte{}}
}

func (m *MemoryBlob) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.data[key] = cp
	return nil
}

func (m *MemoryBlob) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, fmt.Errorf("blob: no such key %q", key)
	}
	return v, nil
}

func (m *MemoryBlob) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// FilesystemBlob stores each key as a file under Root, flattening any
// path separators in the key so it can't escape Root.
type FilesystemBlob struct {
	Root string
}

// NewFilesystemBlob builds a FilesystemBlob rooted at root, creating the
// directory if it doesn't exist.
func NewFilesystemBlob(root string) (*FilesystemBlob, error) {
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("creating blob root %s: %w", root, err)
	}
	return &FilesystemBlob{Root: root}, nil
}

func (f *FilesystemBlob) path(key string) string {
	return filepath.Join(f.Root, filepath.Base(key))
}

func (f *FilesystemBlob) Put(_ context.Context, key string, data []byte) error {
	return os.WriteFile(f.path(key), data, 0o600)
}

func (f *FilesystemBlob) Get(_ context.Context, key string) ([]byte, error) {
	return os.ReadFile(f.path(key))
}

func (f *FilesystemBlob) Delete(_ context.Context, key string) error {
	err := os.Remove(f.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// S3Blob stores blobs in a single S3-compatible bucket via
// aws-sdk-go-v2, for production multi-node deployments sharing storage.
type S3Blob struct {
	client *s3.Client
	bucket string
}

// NewS3Blob loads the default AWS config chain (environment, shared
// config, IMDS) and returns an S3Blob targeting bucket.
func NewS3Blob(ctx context.Context, bucket string) (*S3Blob, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return &S3Blob{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

func (b *S3Blob) Put(ctx context.Context, key string, data []byte) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	return err
}

func (b *S3Blob) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (b *S3Blob) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	return err
}

// OpenBlob selects a Blob backend by kind: config.Config.Storage.BlobKind's
// three values "in_memory", "filesystem" and "aws_s3", plus the short
// aliases "memory" (or empty) and "s3".
func OpenBlob(ctx context.Context, kind, path, bucket string) (Blob, error) {
	switch kind {
	case "", "memory", "in_memory":
		return NewMemoryBlob(), nil
	case "filesystem":
		return NewFilesystemBlob(path)
	case "s3", "aws_s3":
		return NewS3Blob(ctx, bucket)
	default:
		return nil, fmt.Errorf("blob: unknown backend kind %q", kind)
	}
}
