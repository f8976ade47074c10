package storage

import (
	"context"
	"errors"
	"io"
	"time"

	types "FrameForge/pkg"
	"FrameForge/pkg/awsconf"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

type S3Storage struct {
	client     *s3.Client
	presigner  *s3.PresignClient
	publicRead bool
}

func NewS3Storage(ctx context.Context, cfg types.S3Config) (*S3Storage, error) {
	awsConfig, err := awsconf.Load(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		o.BaseEndpoint = awsconf.Endpoint(cfg.AWS)
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &S3Storage{
		client:     client,
		presigner:  s3.NewPresignClient(client),
		publicRead: cfg.PublicRead,
	}, nil
}

func (s *S3Storage) Upload(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:        &bucket,
		Key:           &key,
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	}
	if s.publicRead {
		input.ACL = s3types.ObjectCannedACLPublicRead
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return &TransportError{Op: "upload", Err: err}
	}
	return nil
}

func (s *S3Storage) Download(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, &TransportError{Op: "download", Err: err}
	}
	return output.Body, nil
}

func (s *S3Storage) URL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", &TransportError{Op: "presign", Err: err}
	}
	return req.URL, nil
}

func isS3NotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *s3types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "NoSuchKey" || apiErr.ErrorCode() == "NotFound"
	}
	return false
}
