package audit

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/minio/minio-go/v7"
)

// MinioSink stores entries as objects <prefix>/audit-<id>.json in bucket.
type MinioSink struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewMinioSink(client *minio.Client, bucket, prefix string) *MinioSink {
	return &MinioSink{client: client, bucket: bucket, prefix: prefix}
}

func (s *MinioSink) Name() string { return "minio" }

func (s *MinioSink) Put(ctx context.Context, name string, body []byte) error {
	key, err := s.freeKey(ctx, name)
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}

func (s *MinioSink) freeKey(ctx context.Context, name string) (string, error) {
	for i := 0; i < maxNameAttempts; i++ {
		key := path.Join(s.prefix, suffixed(name, i))

		_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
		if err == nil {
			continue
		}
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return key, nil
		}
		return "", err
	}
	return "", fmt.Errorf("too many audit objects named %s", name)
}
