package shipper

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/ajitpratap0/parquetflow/pkg/config"
	"github.com/ajitpratap0/parquetflow/pkg/flowerrors"
	"github.com/ajitpratap0/parquetflow/pkg/format"
)

const (
	defaultRegion         = "us-east-1"
	defaultUploadPartSize = 16 * 1024 * 1024
	defaultConcurrency    = 4
	contentType           = "application/vnd.pqflow"
)

// Uploader is the subset of manager.Uploader used by S3.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3 uploads files to <bucket>/<prefix>/<file name>.
type S3 struct {
	uploader    Uploader
	bucket      string
	prefix      string
	deleteAfter bool
	logger      *zap.Logger
}

// NewS3 loads the default AWS credential chain and builds a multipart
// uploader. A non-empty endpoint switches to path-style addressing for
// S3-compatible stores.
func NewS3(ctx context.Context, cfg config.ShipperConfig, log *zap.Logger) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, flowerrors.New(flowerrors.CodeInvalidArgument, "s3 bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, flowerrors.Wrap(err, flowerrors.CodeInvalidArgument, "failed to load AWS configuration")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = defaultUploadPartSize
		u.Concurrency = defaultConcurrency
	})
	return NewS3WithUploader(uploader, cfg, log), nil
}

// NewS3WithUploader builds an S3 shipper around an existing uploader.
func NewS3WithUploader(u Uploader, cfg config.ShipperConfig, log *zap.Logger) *S3 {
	if log == nil {
		log = zap.NewNop()
	}
	return &S3{
		uploader:    u,
		bucket:      cfg.Bucket,
		prefix:      cfg.Prefix,
		deleteAfter: cfg.DeleteAfterUpload,
		logger:      log.With(zap.String("component", "s3_shipper"), zap.String("bucket", cfg.Bucket)),
	}
}

// Key returns the object key for a local file.
func (s *S3) Key(localPath string) string {
	return path.Join(s.prefix, filepath.Base(localPath))
}

// Ship implements Shipper.
func (s *S3) Ship(ctx context.Context, localPath string, md *format.FileMetadata) error {
	f, err := os.Open(localPath) //nolint:gosec // path comes from the sink
	if err != nil {
		return flowerrors.Wrap(err, flowerrors.CodeIO, "failed to open file for upload").
			WithDetail("path", localPath)
	}
	defer f.Close()

	meta := map[string]string{}
	if md != nil {
		meta["file-id"] = md.FileID
		meta["rows"] = strconv.FormatInt(md.NumRows, 10)
		meta["codec"] = md.Codec.String()
		meta["row-groups"] = strconv.Itoa(len(md.RowGroups))
	}

	key := s.Key(localPath)
	out, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
		Metadata:    meta,
	})
	if err != nil {
		return flowerrors.Wrap(err, flowerrors.CodeIO, "failed to upload to S3").
			WithDetail("key", key)
	}

	s.logger.Info("file shipped", zap.String("path", localPath), zap.String("location", out.Location))

	if s.deleteAfter {
		_ = f.Close()
		if err := os.Remove(localPath); err != nil {
			s.logger.Warn("failed to remove shipped file", zap.String("path", localPath), zap.Error(err))
		}
	}
	return nil
}
