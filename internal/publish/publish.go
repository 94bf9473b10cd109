// SPDX-License-Identifier: MPL-2.0

package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/charmbracelet/log"

	"github.com/mobundle/mobundle/pkg/types"
)

// ErrNoBucket is returned when publishing is requested without a bucket.
var ErrNoBucket = errors.New("no publish bucket configured")

type (
	// ObjectPutter is the subset of the S3 client used for uploads.
	ObjectPutter interface {
		PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	}

	// Config selects the destination bucket and credentials.
	Config struct {
		Bucket string
		Prefix string
		Region string
		// Endpoint points the client at an S3-compatible service and
		// switches to path-style addressing.
		Endpoint string
		// AccessKeyID and SecretAccessKey override the default credential
		// chain when both are set.
		AccessKeyID     string
		SecretAccessKey string
	}

	// Publisher uploads artifacts.
	Publisher struct {
		client ObjectPutter
		bucket string
		prefix string
		logger *log.Logger
	}

	// Option configures a Publisher.
	Option func(*Publisher)

	// Upload describes one uploaded object.
	Upload struct {
		Bucket string
		Key    string
		Size   int64
	}
)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option { return func(p *Publisher) { p.logger = l } }

// New creates a Publisher around an existing client.
func New(client ObjectPutter, bucket, prefix string, opts ...Option) *Publisher {
	p := &Publisher{client: client, bucket: bucket, prefix: prefix, logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewFromConfig builds an S3 client from cfg and the default AWS
// configuration chain.
func NewFromConfig(ctx context.Context, cfg Config, opts ...Option) (*Publisher, error) {
	if cfg.Bucket == "" {
		return nil, ErrNoBucket
	}
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return New(client, cfg.Bucket, cfg.Prefix, opts...), nil
}

// Key returns the object key for file.
func Key(prefix string, id types.Identity, file string) string {
	return path.Join(strings.Trim(prefix, "/"), id.Name, id.VersionName(), filepath.Base(file))
}

// Publish uploads the artifact at file.
func (p *Publisher) Publish(ctx context.Context, id types.Identity, file string) (*Upload, error) {
	f, err := os.Open(file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &types.MissingInputError{Kind: "artifact", Path: file}
		}
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	key := Key(p.prefix, id, file)
	p.logger.Info("publishing artifact", "bucket", p.bucket, "key", key, "size", fi.Size())
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(fi.Size()),
		ContentType:   aws.String(ContentType(file)),
	})
	if err != nil {
		return nil, fmt.Errorf("upload s3://%s/%s: %w", p.bucket, key, err)
	}
	return &Upload{Bucket: p.bucket, Key: key, Size: fi.Size()}, nil
}

// ContentType returns the media type of an artifact by extension.
func ContentType(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".apk":
		return "application/vnd.android.package-archive"
	case ".aab", ".ipa", ".zip":
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}
