package cloudhome

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bandvault/core/pkg/bverr"
)

// S3Config holds the parameters for the S3-compatible backend.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// S3Store is a cloud-home backend over an S3-compatible object store.
type S3Store struct {
	client *minio.Client
	bucket string
}

// NewS3 initialises an S3/MinIO client and ensures the bucket exists.
func NewS3(ctx context.Context, cfg S3Config) (*S3Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, bverr.Wrap(bverr.Storage, "minio.New", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, bverr.Wrap(bverr.Storage, "bucket exists check", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, bverr.Wrap(bverr.Storage, fmt.Sprintf("make bucket %q", cfg.Bucket), err)
		}
	}
	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

func (s *S3Store) Write(ctx context.Context, key string, r io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{})
	if err != nil {
		return bverr.Wrap(bverr.Storage, fmt.Sprintf("put %q", key), err)
	}
	return nil
}

func (s *S3Store) Read(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, bverr.Wrap(bverr.Storage, fmt.Sprintf("get %q", key), err)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if isNotFound(err) {
			return nil, bverr.New(bverr.NotFound, key)
		}
		return nil, bverr.Wrap(bverr.Storage, fmt.Sprintf("stat %q", key), err)
	}
	return obj, nil
}

func (s *S3Store) ReadRange(ctx context.Context, key string, start, endExclusive int64) (io.ReadCloser, error) {
	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(start, endExclusive-1); err != nil {
		return nil, bverr.Wrap(bverr.Storage, "set range", err)
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, opts)
	if err != nil {
		return nil, bverr.Wrap(bverr.Storage, fmt.Sprintf("get %q", key), err)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if isNotFound(err) {
			return nil, bverr.New(bverr.NotFound, key)
		}
		return nil, bverr.Wrap(bverr.Storage, fmt.Sprintf("stat %q", key), err)
	}
	return obj, nil
}

func (s *S3Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, bverr.Wrap(bverr.Storage, fmt.Sprintf("list %q", prefix), obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return bverr.Wrap(bverr.Storage, fmt.Sprintf("delete %q", key), err)
	}
	return nil
}

func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, bverr.Wrap(bverr.Storage, fmt.Sprintf("stat %q", key), err)
	}
	return true, nil
}

// GrantAccess issues bucket-scoped credentials is out of scope for this
// core; S3 access is provisioned out of band by the operator, so bandvault
// reports it the same way the platform-synced backend does.
func (s *S3Store) GrantAccess(context.Context, string) (JoinInfo, error) {
	return JoinInfo{}, bverr.New(bverr.Storage, "managed externally")
}

func (s *S3Store) RevokeAccess(context.Context, string) error {
	return bverr.New(bverr.Storage, "managed externally")
}

// isNotFound infers absence the way minio reports it: a structured error
// code from ToErrorResponse, falling back to string matching for wrapped
// transport errors, per spec's "NoSuchKey/not found/404" inference rule.
func isNotFound(err error) bool {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "nosuchkey") || strings.Contains(msg, "not found") || strings.Contains(msg, "404")
}

var _ Backend = (*S3Store)(nil)
