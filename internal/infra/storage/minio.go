package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore keeps saved image copies in an object-storage bucket instead of
// the local directory. Same random-prefix naming scheme as LocalStore.
type MinioStore struct {
	client     *minio.Client
	bucketName string
	region     string
}

// NewMinio connects and ensures the bucket exists.
func NewMinio(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool) (*MinioStore, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, err
		}
	}

	return &MinioStore{client: cli, bucketName: bucket, region: region}, nil
}

func (s *MinioStore) Save(ctx context.Context, fileName string, data []byte) (string, error) {
	key := fmt.Sprintf("%s_%s", uuid.New().String(), filepath.Base(fileName))

	contentType := "application/octet-stream"
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".png":
		contentType = "image/png"
	case ".jpg", ".jpeg":
		contentType = "image/jpeg"
	}

	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", err
	}

	// public URL (if bucket is public); private buckets need presigned URLs
	return objectURL(s.client.EndpointURL(), s.bucketName, key), nil
}

// objectURL builds the public address of a stored object, keeping the scheme
// the client was configured with.
func objectURL(endpoint *url.URL, bucket, key string) string {
	return fmt.Sprintf("%s://%s/%s/%s", endpoint.Scheme, endpoint.Host, bucket, key)
}

// Remove deletes the object behind a path returned by Save. Keys never contain
// slashes, so the last URL segment is the key.
func (s *MinioStore) Remove(ctx context.Context, savedPath string) error {
	key := path.Base(savedPath)
	return s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{})
}
