// Package s3 implements the artifact store over an S3-compatible bucket.
package s3

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"printstack/internal/blob/core"
)

// Store writes backup artifacts to a single bucket; keys map to object
// keys directly.
type Store struct {
	client  *s3.Client
	bucket  string
	presign *s3.PresignClient
}

// Config holds explicit construction parameters, mostly for tests. In
// production the store is built from environment variables.
type Config struct {
	Region    string
	Bucket    string
	Endpoint  string // optional custom endpoint, e.g. MinIO
	PathStyle bool
}

// Environment variables:
//
//	PRINTSTACK_BLOB_DRIVER=s3
//	PRINTSTACK_BLOB_S3_BUCKET=<bucket> (required)
//	PRINTSTACK_BLOB_S3_REGION=<region> (default us-east-1)
//	PRINTSTACK_BLOB_S3_ENDPOINT=<url> (optional, for MinIO)
//	PRINTSTACK_BLOB_S3_PATH_STYLE=true|false (default false)
//	AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY / AWS_SESSION_TOKEN (optional)

// New creates an S3 artifact store from Config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &Store{client: client, bucket: cfg.Bucket, presign: s3.NewPresignClient(client)}, nil
}

// OpenFromEnv constructs an S3 artifact store from the process environment.
func OpenFromEnv(ctx context.Context) (*Store, error) {
	bucket := os.Getenv("PRINTSTACK_BLOB_S3_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("PRINTSTACK_BLOB_S3_BUCKET required for s3 driver")
	}
	return New(ctx, Config{
		Bucket:    bucket,
		Region:    os.Getenv("PRINTSTACK_BLOB_S3_REGION"),
		Endpoint:  os.Getenv("PRINTSTACK_BLOB_S3_ENDPOINT"),
		PathStyle: strings.EqualFold(os.Getenv("PRINTSTACK_BLOB_S3_PATH_STYLE"), "true"),
	})
}

func (s *Store) Driver() core.Driver { return core.DriverS3 }

func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts core.PutOptions) (core.Artifact, error) {
	// Emulate create-only with a Head probe first.
	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &key}); err == nil {
		return core.Artifact{}, fmt.Errorf("artifact %s already exists", key)
	}
	input := &s3.PutObjectInput{Bucket: &s.bucket, Key: &key, Body: r}
	if opts.ContentType != "" {
		input.ContentType = &opts.ContentType
	}
	if len(opts.Metadata) > 0 {
		input.Metadata = opts.Metadata
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return core.Artifact{}, err
	}
	return s.Head(ctx, key)
}

func (s *Store) Get(ctx context.Context, key string) (core.Artifact, io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		return core.Artifact{}, nil, err
	}
	return s.describe(key, out.ContentLength, out.ContentType, out.ETag, out.Metadata, out.LastModified), out.Body, nil
}

func (s *Store) Head(ctx context.Context, key string) (core.Artifact, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		return core.Artifact{}, err
	}
	return s.describe(key, out.ContentLength, out.ContentType, out.ETag, out.Metadata, out.LastModified), nil
}

func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: &key}); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]core.Artifact, error) {
	var artifacts []core.Artifact
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &s.bucket,
			Prefix:            &prefix,
			ContinuationToken: token,
		})
		if err != nil {
			return nil, err
		}
		for _, obj := range out.Contents {
			artifacts = append(artifacts, core.Artifact{
				Key:      aws.ToString(obj.Key),
				Size:     aws.ToInt64(obj.Size),
				StoredAt: aws.ToTime(obj.LastModified),
			})
		}
		if out.IsTruncated != nil && *out.IsTruncated && out.NextContinuationToken != nil {
			token = out.NextContinuationToken
			continue
		}
		break
	}
	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].Key < artifacts[j].Key })
	return artifacts, nil
}

func (s *Store) PresignURL(ctx context.Context, key string, opts core.SignedURLOptions) (string, error) {
	method := strings.ToUpper(opts.Method)
	if method != "" && method != "GET" {
		return "", core.ErrUnsupported
	}
	expiry := opts.Expiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	out, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key},
		func(po *s3.PresignOptions) { po.Expires = expiry })
	if err != nil {
		return "", err
	}
	return out.URL, nil
}

func (s *Store) describe(key string, length *int64, contentType, etag *string, md map[string]string, lastModified *time.Time) core.Artifact {
	artifact := core.Artifact{
		Key:         key,
		Size:        aws.ToInt64(length),
		ContentType: aws.ToString(contentType),
		Checksum:    strings.Trim(aws.ToString(etag), "\""),
		Metadata:    md,
		StoredAt:    time.Now().UTC(),
	}
	if lastModified != nil {
		artifact.StoredAt = *lastModified
	}
	return artifact
}
