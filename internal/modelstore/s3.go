package modelstore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"greentwin/internal/anomaly"
	"greentwin/pkg/utils"
)

// S3Store keeps model blobs as objects <prefix><machine_id>.model in a bucket
type S3Store struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewS3Store connects to an S3 compatible endpoint and creates the bucket if it is missing
func NewS3Store(ctx context.Context, endpoint, accessKey, secretKey, bucket, prefix string, useSSL bool) (*S3Store, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("s3 bucket exists: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("s3 make bucket: %w", err)
		}
	}

	return &S3Store{client: client, bucket: bucket, prefix: prefix}, nil
}

// Key returns the object key for a machine
func (s *S3Store) Key(machineID string) string {
	return objectKey(s.prefix, machineID)
}

func objectKey(prefix, machineID string) string {
	return prefix + utils.SafeMachineID(machineID) + ".model"
}

func (s *S3Store) Load(ctx context.Context, machineID string) (*anomaly.Model, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.Key(machineID), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	defer obj.Close()

	blob, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("s3 read object: %w", err)
	}
	return decode(machineID, blob)
}

func (s *S3Store) Save(ctx context.Context, machineID string, m *anomaly.Model) error {
	blob, err := m.MarshalBinary()
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(
		ctx,
		s.bucket,
		s.Key(machineID),
		bytes.NewReader(blob),
		int64(len(blob)),
		minio.PutObjectOptions{
			ContentType: "application/octet-stream",
			UserMetadata: map[string]string{
				"model-id": m.ID,
			},
		},
	)
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}

func (s *S3Store) Close() error { return nil }
