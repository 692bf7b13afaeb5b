package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
)

const defaultAwsRegion = "us-east-2"

// S3Store uploads artifacts to an S3 bucket.
type S3Store struct {
	Bucket string
	Logger *log.Logger

	uploader s3manageriface.UploaderAPI
}

// NewS3Store opens an AWS session in region using the default credential
// chain. An empty region selects us-east-2.
func NewS3Store(bucket, region string, logger *log.Logger) (*S3Store, error) {
	if bucket == "" {
		return nil, errors.New("s3 bucket must not be empty")
	}
	if region == "" {
		region = defaultAwsRegion
	}
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up aws session: %w", err)
	}
	return newS3Store(bucket, s3manager.NewUploader(sess), logger), nil
}

func newS3Store(bucket string, uploader s3manageriface.UploaderAPI, logger *log.Logger) *S3Store {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &S3Store{Bucket: bucket, Logger: logger, uploader: uploader}
}

// Put uploads localPath to s3://Bucket/key.
func (s *S3Store) Put(ctx context.Context, key, localPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
		Body:   file,
	})
	if err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", s.Bucket, key, err)
	}
	s.Logger.Printf("uploaded s3://%s/%s", s.Bucket, key)
	return nil
}
