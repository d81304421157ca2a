// Package s3store implements lockerd.ObjectStore against any S3-compatible
// service (AWS S3, MinIO) using aws-sdk-go-v2.
package s3store

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/lockerd/lockerd"
)

// Config holds the object storage connection settings.
type Config struct {
	// Endpoint overrides the S3 endpoint URL; empty means AWS.
	Endpoint string `mapstructure:"endpoint"`
	// Region is the bucket region (MinIO accepts any non-empty value).
	Region string `mapstructure:"region" validate:"required"`
	// Bucket is the bucket holding all user namespaces.
	Bucket string `mapstructure:"bucket" validate:"required"`
	// AccessKey and SecretKey are static credentials for the endpoint.
	AccessKey string `mapstructure:"access_key" validate:"required"`
	SecretKey string `mapstructure:"secret_key" validate:"required"`
	// UsePathStyle forces path-style addressing, needed by MinIO.
	UsePathStyle bool `mapstructure:"use_path_style"`
}

// Client talks to one bucket of an S3-compatible backend.
type Client struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// New builds a Client from static credentials and an optional endpoint
// override.
func New(ctx context.Context, cfg Config) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &Client{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
	}, nil
}

// Put stores content at key, overwriting any existing object.
func (c *Client) Put(ctx context.Context, key, contentType string, content io.Reader) error {
	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        content,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put object %q: %w", key, err)
	}

	return nil
}

// List returns all objects under prefix, in the order the backend reports
// them.
func (c *Client) List(ctx context.Context, prefix string) ([]lockerd.Object, error) {
	var objects []lockerd.Object

	paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects %q: %w", prefix, err)
		}

		for _, obj := range page.Contents {
			objects = append(objects, lockerd.Object{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}

	return objects, nil
}

// PresignGet issues a presigned GET URL for key, valid for expires.
func (c *Client) PresignGet(ctx context.Context, key string, expires time.Duration) (string, error) {
	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("presign get %q: %w", key, err)
	}

	return req.URL, nil
}

// Delete removes the object at key.
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %q: %w", key, err)
	}

	return nil
}
