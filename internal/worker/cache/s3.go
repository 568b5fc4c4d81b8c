package cache

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the part of the S3 client the storage needs.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
}

// NewS3Client builds a path-style client, suitable for MinIO as well as AWS.
func NewS3Client(ctx context.Context, c S3Config) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(c.Region)}
	if c.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
		}
		o.UsePathStyle = true
	}), nil
}

// generationMarker makes empty generations visible to Names.
const generationMarker = ".generation"

// S3Storage lays generations out as <prefix>/<name>/<encoded key>.
type S3Storage struct {
	api    S3API
	bucket string
	prefix string
	now    func() time.Time

	mu     sync.RWMutex
	closed bool
}

func NewS3Storage(api S3API, bucket, prefix string) *S3Storage {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3Storage{api: api, bucket: bucket, prefix: prefix, now: time.Now}
}

func (s *S3Storage) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *S3Storage) generationPrefix(name string) string {
	return s.prefix + name + "/"
}

func (s *S3Storage) Open(ctx context.Context, name string) (Cache, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("invalid generation name %q", name)
	}
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.generationPrefix(name) + generationMarker),
		Body:   bytes.NewReader([]byte(s.now().UTC().Format(time.RFC3339))),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open generation %s: %w", name, err)
	}
	return &s3Cache{storage: s, name: name}, nil
}

func (s *S3Storage) Names(ctx context.Context) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var names []string
	p := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(s.prefix),
		Delimiter: aws.String("/"),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list generations: %w", err)
		}
		for _, cp := range page.CommonPrefixes {
			n := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), s.prefix), "/")
			if n != "" {
				names = append(names, n)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *S3Storage) listKeys(ctx context.Context, name string) ([]string, error) {
	var keys []string
	p := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.generationPrefix(name)),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, o := range page.Contents {
			keys = append(keys, aws.ToString(o.Key))
		}
	}
	return keys, nil
}

// maxDeleteBatch is the S3 DeleteObjects limit.
const maxDeleteBatch = 1000

func (s *S3Storage) Delete(ctx context.Context, name string) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	keys, err := s.listKeys(ctx, name)
	if err != nil {
		return false, fmt.Errorf("failed to delete generation %s: %w", name, err)
	}
	if len(keys) == 0 {
		return false, nil
	}
	for start := 0; start < len(keys); start += maxDeleteBatch {
		end := min(start+maxDeleteBatch, len(keys))
		ids := make([]types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(k)})
		}
		out, err := s.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return false, fmt.Errorf("failed to delete generation %s: %w", name, err)
		}
		if len(out.Errors) > 0 {
			e := out.Errors[0]
			return false, fmt.Errorf("failed to delete generation %s: %s: %s",
				name, aws.ToString(e.Key), aws.ToString(e.Message))
		}
	}
	return true, nil
}

func (s *S3Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type s3Cache struct {
	storage *S3Storage
	name    string
}

func (c *s3Cache) Name() string { return c.name }

// objectKey encodes the request key so query strings survive as object names.
func (c *s3Cache) objectKey(key string) string {
	return c.storage.generationPrefix(c.name) + base64.RawURLEncoding.EncodeToString([]byte(key))
}

func (c *s3Cache) Match(ctx context.Context, key string) (*Entry, error) {
	if err := c.storage.checkOpen(); err != nil {
		return nil, err
	}
	out, err := c.storage.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.storage.bucket),
		Key:    aws.String(c.objectKey(key)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to match %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return &e, nil
}

func (c *s3Cache) Put(ctx context.Context, key string, e *Entry) error {
	if err := c.storage.checkOpen(); err != nil {
		return err
	}
	stored := *e
	if stored.StoredAt.IsZero() {
		stored.StoredAt = c.storage.now().UTC()
	}
	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	_, err = c.storage.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.storage.bucket),
		Key:         aws.String(c.objectKey(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

func (c *s3Cache) Keys(ctx context.Context) ([]string, error) {
	if err := c.storage.checkOpen(); err != nil {
		return nil, err
	}
	objects, err := c.storage.listKeys(ctx, c.name)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	keys := make([]string, 0, len(objects))
	for _, o := range objects {
		base := path.Base(o)
		if base == generationMarker {
			continue
		}
		raw, err := base64.RawURLEncoding.DecodeString(base)
		if err != nil {
			continue
		}
		keys = append(keys, string(raw))
	}
	sort.Strings(keys)
	return keys, nil
}
