package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type AWSS3Storage struct {
	client    *s3.Client
	bucket    string
	region    string
	cdnDomain string
}

// NewAWSS3Storage uses static credentials when both keys are given and the
// default AWS credential chain otherwise.
func NewAWSS3Storage(ctx context.Context, region, bucket, accessKeyID, secretAccessKey, cdnDomain string) (*AWSS3Storage, error) {
	if bucket == "" {
		return nil, errors.New("S3 bucket is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if accessKeyID != "" && secretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSS3Storage{
		client:    s3.NewFromConfig(cfg),
		bucket:    bucket,
		region:    region,
		cdnDomain: cdnDomain,
	}, nil
}

func (a *AWSS3Storage) Upload(ctx context.Context, request *UploadRequest) (*UploadResponse, error) {
	key, err := CleanKey(request.Key)
	if err != nil {
		return nil, err
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        request.Reader,
		ContentType: aws.String(request.ContentType),
	}
	if request.Size > 0 {
		input.ContentLength = aws.Int64(request.Size)
	}
	if request.CacheControl != "" {
		input.CacheControl = aws.String(request.CacheControl)
	}

	if _, err := a.client.PutObject(ctx, input); err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return &UploadResponse{
		Key:  key,
		URL:  a.generateURL(key),
		Size: request.Size,
	}, nil
}

func (a *AWSS3Storage) Delete(ctx context.Context, key string) error {
	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

func (a *AWSS3Storage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat S3 object: %w", err)
	}
	return true, nil
}

func (a *AWSS3Storage) generateURL(key string) string {
	if a.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", a.cdnDomain, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", a.bucket, a.region, key)
}
