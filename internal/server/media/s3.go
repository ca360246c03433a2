package media

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

type objectStore interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config addresses an S3-compatible bucket (AWS or MinIO).
type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Bucket          string
	BaseEndpoint    string
	Timeout         time.Duration
}

// S3Uploader puts objects with path-style addressing, so the public URL is
// <endpoint>/<bucket>/<key>.
type S3Uploader struct {
	client  objectStore
	bucket  string
	baseURL string
	timeout time.Duration
	now     func() time.Time
}

func NewS3Uploader(ctx context.Context, c S3Config) (*S3Uploader, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.AccessKeyID,
			c.SecretAccessKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(c.BaseEndpoint)
		o.UsePathStyle = true
	})

	return &S3Uploader{
		client:  client,
		bucket:  c.Bucket,
		baseURL: strings.TrimRight(c.BaseEndpoint, "/"),
		timeout: c.Timeout,
		now:     time.Now,
	}, nil
}

func (u *S3Uploader) Upload(ctx context.Context, localPath string) (Result, error) {
	contentType, ext, err := detect(localPath)
	if err != nil {
		return Result{}, uploadError(err)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return Result{}, uploadError(err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Result{}, uploadError(err)
	}

	ctx, cancel := u.withTimeout(ctx)
	defer cancel()

	key := storageKey(u.now(), ext)
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		return Result{}, uploadError(err)
	}

	return Result{
		URL:         u.baseURL + "/" + u.bucket + "/" + key,
		Key:         key,
		ContentType: contentType,
		Size:        info.Size(),
	}, nil
}

// Delete removes key from the bucket. S3 reports success for missing keys.
func (u *S3Uploader) Delete(ctx context.Context, key string) error {
	ctx, cancel := u.withTimeout(ctx)
	defer cancel()

	_, err := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (u *S3Uploader) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if u.timeout > 0 {
		return context.WithTimeout(ctx, u.timeout)
	}
	return context.WithCancel(ctx)
}
