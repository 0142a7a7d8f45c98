package transport

import (
	"context"
	"io"

	"comicloader/internal/core/types"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// S3Transfer downloads objects from S3 or an S3 compatible endpoint.
type S3Transfer struct {
	session  *session.Session
	s3Client *s3.S3
}

// NewS3Transfer creates a session from cfg. An empty profile uses the
// default credential chain.
func NewS3Transfer(cfg types.S3SourceConfig) (*S3Transfer, error) {
	sessionConfig := aws.Config{}
	if cfg.Region != "" {
		sessionConfig.Region = aws.String(cfg.Region)
	}
	if cfg.Endpoint != "" {
		sessionConfig.Endpoint = aws.String(cfg.Endpoint)
		sessionConfig.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSessionWithOptions(session.Options{
		Profile: cfg.Profile,
		Config:  sessionConfig,
	})
	if err != nil {
		return nil, err
	}

	return &S3Transfer{
		session:  sess,
		s3Client: s3.New(sess),
	}, nil
}

// Download writes the object into w.
func (t *S3Transfer) Download(ctx context.Context, bucket, key string, w io.WriterAt) (int64, error) {
	downloader := s3manager.NewDownloader(t.session, func(d *s3manager.Downloader) {
		d.Concurrency = 1
	})
	return downloader.DownloadWithContext(ctx, w, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
}
