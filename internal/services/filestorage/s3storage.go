package filestorage

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"

	"github.com/cozy-creator/hf-mirror/internal/config"
)

// ObjectPutter is the part of the S3 client used for uploads.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3FileStorage struct {
	client ObjectPutter
	cfg    *config.S3Config
}

func NewS3FileStorage(ctx context.Context, cfg *config.Config) (*S3FileStorage, error) {
	if cfg.S3 == nil {
		return nil, fmt.Errorf("s3 config is not set")
	}
	if cfg.S3.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is not set")
	}

	region := cfg.S3.Region
	if region == "" {
		region = "auto"
	}

	options := []func(*awsConfig.LoadOptions) error{awsConfig.WithRegion(region)}
	if cfg.S3.AccessKey != "" {
		credentialsProvider := credentials.NewStaticCredentialsProvider(cfg.S3.AccessKey, cfg.S3.SecretKey, "")
		options = append(options, awsConfig.WithCredentialsProvider(credentialsProvider))
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, err
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3.EndpointUrl != "" {
			o.BaseEndpoint = aws.String(cfg.S3.EndpointUrl)
			o.UsePathStyle = true
		}
	})

	return NewS3FileStorageWithClient(s3Client, cfg.S3), nil
}

func NewS3FileStorageWithClient(client ObjectPutter, cfg *config.S3Config) *S3FileStorage {
	return &S3FileStorage{client: client, cfg: cfg}
}

// ObjectKey prefixes key with the configured folder.
func (u *S3FileStorage) ObjectKey(key string) string {
	folder := strings.Trim(u.cfg.Folder, "/")
	if folder == "" {
		return key
	}
	return path.Join(folder, key)
}

func (u *S3FileStorage) Upload(ctx context.Context, file FileInfo) (string, error) {
	key := u.ObjectKey(file.Key)

	mtype, err := mimetype.DetectFile(file.Path)
	if err != nil {
		return "", err
	}

	content, err := os.Open(file.Path)
	if err != nil {
		return "", err
	}
	defer content.Close()

	input := s3.PutObjectInput{
		Key:           aws.String(key),
		ContentType:   aws.String(mtype.String()),
		Bucket:        aws.String(u.cfg.Bucket),
		Body:          content,
		ContentLength: aws.Int64(file.Size),
	}
	if _, err := u.client.PutObject(ctx, &input); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	return u.objectURL(key), nil
}

func (u *S3FileStorage) objectURL(key string) string {
	if u.cfg.PublicUrl != "" {
		return fmt.Sprintf("%s/%s", strings.TrimSuffix(u.cfg.PublicUrl, "/"), key)
	}

	switch {
	case strings.Contains(u.cfg.EndpointUrl, "digitaloceanspaces.com"):
		return fmt.Sprintf("https://%s.%s.cdn.digitaloceanspaces.com/%s", u.cfg.Bucket, u.cfg.Region, key)
	case strings.Contains(u.cfg.EndpointUrl, "amazonaws.com"):
		endpoint := strings.TrimPrefix(u.cfg.EndpointUrl, "https://")
		endpoint = strings.TrimSuffix(endpoint, "/")
		return fmt.Sprintf("https://%s.%s/%s", u.cfg.Bucket, endpoint, key)
	}

	return fmt.Sprintf("s3://%s/%s", u.cfg.Bucket, key)
}
