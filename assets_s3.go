package postadmin

import (
	"bytes"
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the part of the S3 client the asset store uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3AssetStore keeps featured images in an S3 (or S3 compatible) bucket.
// References are object keys.
type S3AssetStore struct {
	client    S3API
	bucket    string
	publicURL string
}

func NewS3AssetStore(client S3API, bucket, publicURL string) *S3AssetStore {
	return &S3AssetStore{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// NewS3Client builds a client from the default credential chain. A custom
// endpoint (MinIO, LocalStack) switches to path-style addressing.
func NewS3Client(ctx context.Context, region, endpoint string) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func (s *S3AssetStore) StoreImage(ctx context.Context, data []byte, dirHint string) (string, error) {
	format, err := detectImage(data)
	if err != nil {
		return "", &StorageError{Op: "store", Err: err}
	}
	key := imageKey(dirHint, format)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("image/" + format),
	})
	if err != nil {
		return "", &StorageError{Op: "upload to s3", Err: err}
	}
	return key, nil
}

func (s *S3AssetStore) DeleteImage(ctx context.Context, ref string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		return &StorageError{Op: "delete from s3", Err: err}
	}
	return nil
}

func (s *S3AssetStore) URL(ref string) string {
	if s.publicURL == "" {
		return "/" + ref
	}
	return s.publicURL + "/" + ref
}
