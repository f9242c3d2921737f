package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/tubekeeper/internal/common"
	"github.com/dmitrijs2005/tubekeeper/internal/filex"
	"github.com/dmitrijs2005/tubekeeper/internal/logging"
	sc "github.com/dmitrijs2005/tubekeeper/internal/server/config"
	"github.com/dmitrijs2005/tubekeeper/internal/server/models"
	"github.com/google/uuid"
)

// objectAPI is the part of *s3.Client used by S3Store.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) objectAPI {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3Store is a Store backed by an S3-compatible bucket (MinIO in development).
type S3Store struct {
	client  objectAPI
	bucket  string
	baseURL string
	logger  logging.Logger
	now     func() time.Time
}

// NewS3Store builds the S3 client from the server config. Path-style
// addressing is used so that MinIO endpoints work without DNS tricks.
func NewS3Store(ctx context.Context, cfg *sc.Config, logger logging.Logger) (*S3Store, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return &S3Store{
		client:  client,
		bucket:  cfg.S3Bucket,
		baseURL: strings.TrimRight(cfg.S3BaseEndpoint, "/"),
		logger:  logger.With("module", "media_store"),
		now:     time.Now,
	}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *S3Store) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	if !errors.As(err, &notFound) {
		return fmt.Errorf("head bucket %s: %w", s.bucket, err)
	}

	if _, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	s.logger.Info(ctx, "bucket created", "bucket", s.bucket)
	return nil
}

func (s *S3Store) Upload(ctx context.Context, path string, kind models.MediaKind) (*models.Media, error) {
	defer s.removeLocal(ctx, path)

	if path == "" {
		return nil, fmt.Errorf("%w: no local file", common.ErrUpload)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", common.ErrUpload, filepath.Base(path), err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", common.ErrUpload, filepath.Base(path), err)
	}

	contentType, err := detectContentType(f, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUpload, err)
	}

	key := s.newObjectKey(kind, filepath.Ext(path))

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: put object: %v", common.ErrUpload, err)
	}

	s.logger.Debug(ctx, "media uploaded", "key", key, "kind", kind, "size", info.Size())

	return &models.Media{ID: key, URL: s.objectURL(key), Kind: kind}, nil
}

// Delete is idempotent: S3 reports success for absent keys, and NoSuchKey
// from stricter backends is swallowed too.
func (s *S3Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil
		}
		s.logger.Warn(ctx, "media delete failed", "key", id, "error", err)
		return fmt.Errorf("delete object %s: %w", id, err)
	}

	return nil
}

func (s *S3Store) removeLocal(ctx context.Context, path string) {
	if err := filex.Remove(path); err != nil {
		s.logger.Warn(ctx, "local file not removed", "path", path, "error", err)
	}
}

func (s *S3Store) newObjectKey(kind models.MediaKind, ext string) string {
	d := s.now().UTC()
	return fmt.Sprintf("%ss/%d/%02d/%02d/%v%s", kind, d.Year(), d.Month(), d.Day(), uuid.New(), strings.ToLower(ext))
}

func (s *S3Store) objectURL(key string) string {
	return s.baseURL + "/" + s.bucket + "/" + key
}

// detectContentType prefers the file extension and falls back to sniffing
// the first 512 bytes. The file offset is reset before returning.
func detectContentType(f *os.File, path string) (string, error) {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		return ct, nil
	}

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(buf[:n]), nil
}
