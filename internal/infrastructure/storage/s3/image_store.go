// Package s3 archives meal photos in an S3-compatible bucket
package s3

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	awss3 "github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/nutriscan/tracker/internal/infrastructure/config"
	"github.com/nutriscan/tracker/internal/ports/outbound"
	"go.uber.org/zap"
)

// ImageStore uploads photos with the s3manager uploader
type ImageStore struct {
	uploader      s3manageriface.UploaderAPI
	client        s3iface.S3API
	bucket        string
	keyPrefix     string
	publicBaseURL string
	logger        *zap.Logger
}

var _ outbound.ImageStore = (*ImageStore)(nil)

// NewImageStore creates an S3 image store from storage settings. Static
// keys are optional; the default AWS credential chain is used otherwise.
func NewImageStore(cfg config.StorageConfig, logger *zap.Logger) (*ImageStore, error) {
	awsConfig := &aws.Config{
		Region: aws.String(cfg.Region),
	}
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}
	if cfg.AccessKeyID != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	client := awss3.New(sess)
	return NewImageStoreWithClients(s3manager.NewUploaderWithClient(client), client, cfg, logger), nil
}

// NewImageStoreWithClients creates an image store around an existing uploader
// and S3 client
func NewImageStoreWithClients(uploader s3manageriface.UploaderAPI, client s3iface.S3API, cfg config.StorageConfig, logger *zap.Logger) *ImageStore {
	return &ImageStore{
		uploader:      uploader,
		client:        client,
		bucket:        cfg.Bucket,
		keyPrefix:     strings.Trim(cfg.KeyPrefix, "/"),
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		logger:        logger.Named("s3-image-store"),
	}
}

func (s *ImageStore) objectKey(key string) string {
	if s.keyPrefix == "" {
		return key
	}
	return path.Join(s.keyPrefix, key)
}

// Put uploads data under key and returns its URL
func (s *ImageStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	objectKey := s.objectKey(key)

	out, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", objectKey, err)
	}

	s.logger.Debug("Meal image archived",
		zap.String("bucket", s.bucket),
		zap.String("key", objectKey),
		zap.Int("bytes", len(data)))

	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + objectKey, nil
	}
	return out.Location, nil
}

// Delete removes the object stored under key
func (s *ImageStore) Delete(ctx context.Context, key string) error {
	objectKey := s.objectKey(key)
	_, err := s.client.DeleteObjectWithContext(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", objectKey, err)
	}
	s.logger.Debug("Meal image removed", zap.String("bucket", s.bucket), zap.String("key", objectKey))
	return nil
}
