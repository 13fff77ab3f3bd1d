package blobstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3API is the subset of the S3 client the store uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3 is a Store keeping one JSON-encoded Entry per object under
// <prefix>/<version>/<key>.
type S3 struct {
	client S3API
	bucket string
	prefix string
	now    func() time.Time
}

// S3Option configures an S3 store.
type S3Option func(*s3Settings)

type s3Settings struct {
	region   string
	endpoint string
}

// WithRegion overrides the region from the default credential chain.
func WithRegion(region string) S3Option {
	return func(s *s3Settings) { s.region = region }
}

// WithEndpoint points the client at an S3-compatible endpoint and switches
// to path-style addressing.
func WithEndpoint(endpoint string) S3Option {
	return func(s *s3Settings) { s.endpoint = endpoint }
}

// OpenS3 builds an S3 store from the default AWS credential chain.
func OpenS3(ctx context.Context, bucket, prefix string, opts ...S3Option) (*S3, error) {
	if bucket == "" {
		return nil, errors.New("s3 cache bucket is required")
	}

	var settings s3Settings
	for _, opt := range opts {
		opt(&settings)
	}

	var loadOpts []func(*config.LoadOptions) error
	if settings.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(settings.region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if settings.endpoint != "" {
			o.BaseEndpoint = aws.String(settings.endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3(client, bucket, prefix), nil
}

// NewS3 wraps an existing client.
func NewS3(client S3API, bucket, prefix string) *S3 {
	return &S3{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		now:    time.Now,
	}
}

func (s *S3) objectKey(version, key string) string {
	if s.prefix == "" {
		return version + "/" + key
	}
	return s.prefix + "/" + version + "/" + key
}

// Save implements Store.
func (s *S3) Save(ctx context.Context, paths []string, key string) error {
	files, err := readFiles(paths)
	if err != nil {
		return fmt.Errorf("save cache %s: %w", key, err)
	}

	version := Version(paths)
	objKey := s.objectKey(version, key)

	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
	})
	switch {
	case err == nil:
		return fmt.Errorf("save cache %s: %w", key, ErrEntryExists)
	case !isNotFound(err):
		return fmt.Errorf("check cache entry: %w", err)
	}

	body, err := json.Marshal(Entry{
		Key:       key,
		Version:   version,
		CreatedAt: s.now().UTC(),
		Files:     files,
	})
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objKey),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

// Restore implements Store.
func (s *S3) Restore(ctx context.Context, paths []string, primaryKey string, restoreKeys ...string) (string, error) {
	version := Version(paths)
	for _, prefix := range prefixes(primaryKey, restoreKeys) {
		objKey, err := s.newest(ctx, s.objectKey(version, prefix))
		if err != nil {
			return "", err
		}
		if objKey == "" {
			continue
		}

		entry, err := s.get(ctx, objKey)
		if err != nil {
			return "", err
		}
		if err := writeFiles(entry.Files); err != nil {
			return "", fmt.Errorf("restore cache %s: %w", entry.Key, err)
		}
		return entry.Key, nil
	}
	return "", nil
}

// newest returns the most recently modified object under prefix, or "".
func (s *S3) newest(ctx context.Context, prefix string) (string, error) {
	var best types.Object
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return "", fmt.Errorf("list cache entries: %w", err)
		}
		for _, obj := range page.Contents {
			if best.Key == nil || newer(obj, best) {
				best = obj
			}
		}
	}
	return aws.ToString(best.Key), nil
}

func newer(a, b types.Object) bool {
	at, bt := aws.ToTime(a.LastModified), aws.ToTime(b.LastModified)
	if !at.Equal(bt) {
		return at.After(bt)
	}
	return aws.ToString(a.Key) > aws.ToString(b.Key)
}

func (s *S3) get(ctx context.Context, objKey string) (*Entry, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		return nil, fmt.Errorf("get cache entry: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read cache entry: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode cache entry %s: %w", objKey, err)
	}
	return &entry, nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

var _ Store = (*S3)(nil)
