package archive

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"ansifier-server/internal/domain"
)

// S3Service archives rendered artifacts to Amazon S3 (or compatible APIs),
// one object per gallery uid.
type S3Service struct {
	uploader *manager.Uploader
	opts     Options
}

func NewS3Service(client *s3.Client, opts Options) *S3Service {
	return &S3Service{
		uploader: manager.NewUploader(client),
		opts:     opts,
	}
}

// StoreArtifact uploads the content under <prefix>/<uid>.<ext> and returns
// the s3:// location.
func (s *S3Service) StoreArtifact(ctx context.Context, uid string, format domain.ArtifactFormat, content string) (string, error) {
	if s.opts.Bucket == "" {
		return "", fmt.Errorf("archive bucket is required")
	}
	if uid == "" {
		return "", fmt.Errorf("artifact uid is required")
	}

	key := objectKey(s.opts.KeyPrefix, uid, format)

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.opts.Bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(content),
		ContentType: aws.String(contentType(format)),
		ACL:         types.ObjectCannedACLPrivate,
	})
	if err != nil {
		return "", fmt.Errorf("upload artifact %s: %w", uid, err)
	}

	return fmt.Sprintf("s3://%s/%s", s.opts.Bucket, key), nil
}

func objectKey(prefix, uid string, format domain.ArtifactFormat) string {
	ext := ".ans"
	if format == domain.FormatHTMLCSS {
		ext = ".html"
	}
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return uid + ext
	}
	return prefix + "/" + uid + ext
}

func contentType(format domain.ArtifactFormat) string {
	if format == domain.FormatHTMLCSS {
		return "text/html; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}
