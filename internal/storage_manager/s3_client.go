package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Client defines the S3 operations needed by S3Provider.
// Version tokens are ETags.
type S3Client interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, string, error)
	HeadObject(ctx context.Context, bucket, key string) (string, error)
	// PutObject writes with If-Match: ifMatch, or If-None-Match: * when ifMatch is empty.
	PutObject(ctx context.Context, bucket, key string, data []byte, ifMatch string) (string, error)
}

// AWSS3Client implements the S3Client interface using AWS SDK v2.
type AWSS3Client struct {
	s3Client *s3.Client
}

// NewAWSS3Client creates a new AWS S3 client.
func NewAWSS3Client(s3Client *s3.Client) *AWSS3Client {
	return &AWSS3Client{s3Client: s3Client}
}

// classifyS3Error maps S3 error codes onto the provider sentinel errors.
func classifyS3Error(op, bucket, key string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: s3://%s/%s", ErrNotFound, bucket, key)
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
			return fmt.Errorf("%w: s3 %s s3://%s/%s: %v", ErrUnauthorized, op, bucket, key, err)
		case "PreconditionFailed", "ConditionalRequestConflict":
			return fmt.Errorf("%w: s3 %s s3://%s/%s: %v", ErrConflict, op, bucket, key, err)
		}
	}
	return fmt.Errorf("failed to %s object %s in bucket %s: %w", op, key, bucket, err)
}

// GetObject retrieves an object and its ETag from S3.
func (c *AWSS3Client) GetObject(ctx context.Context, bucket, key string) ([]byte, string, error) {
	result, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", classifyS3Error("get", bucket, key, err)
	}
	defer func() { _ = result.Body.Close() }()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read object body: %w", err)
	}
	return data, aws.ToString(result.ETag), nil
}

// HeadObject returns the ETag of an object.
func (c *AWSS3Client) HeadObject(ctx context.Context, bucket, key string) (string, error) {
	result, err := c.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", classifyS3Error("head", bucket, key, err)
	}
	return aws.ToString(result.ETag), nil
}

// PutObject uploads an object with a conditional write.
func (c *AWSS3Client) PutObject(ctx context.Context, bucket, key string, data []byte, ifMatch string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}
	if ifMatch == "" {
		input.IfNoneMatch = aws.String("*")
	} else {
		input.IfMatch = aws.String(ifMatch)
	}

	result, err := c.s3Client.PutObject(ctx, input)
	if err != nil {
		return "", classifyS3Error("put", bucket, key, err)
	}
	return aws.ToString(result.ETag), nil
}

// S3Provider implements DocumentProvider for AWS S3.
type S3Provider struct {
	bucket   string
	prefix   string
	s3Client S3Client
}

// NewS3Provider creates a new S3 document provider.
func NewS3Provider(bucket, prefix string, s3Client S3Client) *S3Provider {
	return &S3Provider{bucket: bucket, prefix: prefix, s3Client: s3Client}
}

// Get reads a document from S3.
func (p *S3Provider) Get(ctx context.Context, path string) (*Object, error) {
	data, etag, err := p.s3Client.GetObject(ctx, p.bucket, p.getKey(path))
	if err != nil {
		return nil, err
	}
	return &Object{Data: data, Version: etag}, nil
}

// Head returns the ETag of a document.
func (p *S3Provider) Head(ctx context.Context, path string) (string, error) {
	return p.s3Client.HeadObject(ctx, p.bucket, p.getKey(path))
}

// Put writes a document to S3 under the ETag precondition.
func (p *S3Provider) Put(ctx context.Context, path string, data []byte, ifVersion string) (string, error) {
	return p.s3Client.PutObject(ctx, p.bucket, p.getKey(path), data, ifVersion)
}

// getKey constructs the full S3 key by combining prefix and path.
func (p *S3Provider) getKey(path string) string {
	if p.prefix == "" {
		return path
	}
	return p.prefix + "/" + path
}
