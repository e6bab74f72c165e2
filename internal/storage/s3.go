package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Presigner defines the interface for presigning S3 GET requests.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Store keeps objects in an S3-compatible bucket and hands out presigned
// GET links.
type S3Store struct {
	client    S3API
	presigner Presigner
	bucket    string
	ttl       time.Duration
}

// S3Options configures NewS3Store.
type S3Options struct {
	Bucket string
	Region string
	// Endpoint overrides the S3 endpoint for S3-compatible services.
	Endpoint string
	TTL      time.Duration
}

// NewS3Store loads the default AWS credential chain and builds a store for
// opts.Bucket.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, errors.New("storage: bucket is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3StoreWithClient(client, s3.NewPresignClient(client), opts.Bucket, opts.TTL), nil
}

// NewS3StoreWithClient wires explicit clients; tests pass fakes.
func NewS3StoreWithClient(client S3API, presigner Presigner, bucket string, ttl time.Duration) *S3Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &S3Store{client: client, presigner: presigner, bucket: bucket, ttl: ttl}
}

// Put uploads data and returns a presigned link to it.
func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) (Object, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return Object{}, err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(cleanKey),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return Object{}, fmt.Errorf("storage: put object: %w", err)
	}
	link, err := s.SignedURL(ctx, cleanKey, s.ttl)
	if err != nil {
		return Object{}, err
	}
	return Object{Key: cleanKey, URL: link}, nil
}

// SignedURL presigns a GET for key.
func (s *S3Store) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(cleanKey),
	}, func(o *s3.PresignOptions) { o.Expires = ttl })
	if err != nil {
		return "", fmt.Errorf("storage: presign: %w", err)
	}
	return req.URL, nil
}

// Remove deletes key from the bucket.
func (s *S3Store) Remove(ctx context.Context, key string) error {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return err
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(cleanKey),
	}); err != nil {
		return fmt.Errorf("storage: delete object: %w", err)
	}
	return nil
}

var _ ObjectStore = (*S3Store)(nil)
