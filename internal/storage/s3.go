package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/xerrors"
)

const s3Scheme = "s3://"

type s3Storage struct {
	client *s3.Client
	config S3Config
}

type S3Config struct {
	Bucket string
	// EndpointURL points the client at an S3 compatible service such as MinIO.
	EndpointURL string
}

func NewS3Storage(ctx context.Context, s S3Config) (Storage, error) {
	if s.Bucket == "" {
		return nil, xerrors.New("S3 bucket is required")
	}

	var optsFunc []func(*config.LoadOptions) error

	if s.EndpointURL != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               s.EndpointURL,
				HostnameImmutable: true,
			}, nil
		})
		optsFunc = append(optsFunc, config.WithEndpointResolverWithOptions(resolver))
	}

	c, err := config.LoadDefaultConfig(ctx, optsFunc...)
	if err != nil {
		return nil, xerrors.Errorf("failed to load AWS config: %w", err)
	}
	s3Client := s3.NewFromConfig(c, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	return &s3Storage{
		client: s3Client,
		config: s,
	}, nil
}

func (s *s3Storage) Put(ctx context.Context, key string, data []byte) (string, error) {
	contentType := http.DetectContentType(data)

	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}); err != nil {
		return "", xerrors.Errorf("failed to upload to S3: %w", err)
	}

	return fmt.Sprintf("%s%s/%s", s3Scheme, s.config.Bucket, key), nil
}

func (s *s3Storage) Get(ctx context.Context, url string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(s.key(url)),
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to download from S3: %w", err)
	}
	defer result.Body.Close()

	var buffer bytes.Buffer
	_, err = buffer.ReadFrom(result.Body)
	if err != nil {
		return nil, xerrors.Errorf("failed to read S3 object: %w", err)
	}

	return buffer.Bytes(), nil
}

func (s *s3Storage) Delete(ctx context.Context, url string) error {
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(s.key(url)),
	}); err != nil {
		return xerrors.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

func (s *s3Storage) key(url string) string {
	return strings.TrimPrefix(url, fmt.Sprintf("%s%s/", s3Scheme, s.config.Bucket))
}
