// Package logstore persists the raw output of an agent run somewhere
// durable and returns a reference the job row can carry in LogURI.
// Adapted from the teacher's execution-log store: same S3/local split,
// generalized from shell stdout/stderr to an agent's JSON result.
package logstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Store saves a job's output log and returns a reference suitable for
// models.Job.LogURI.
type Store interface {
	Store(ctx context.Context, jobID string, body []byte) (string, error)
	Retrieve(ctx context.Context, reference string) ([]byte, error)
}

// S3Store stores logs in S3-compatible object storage, with an
// optional local cache for frequently-read logs.
type S3Store struct {
	client     *s3.Client
	bucket     string
	prefix     string
	localCache string
}

// S3Config configures an S3Store.
type S3Config struct {
	Bucket          string
	Prefix          string // e.g. "logs/jobs/"
	Region          string
	Endpoint        string // for MinIO/local S3
	AccessKeyID     string
	SecretAccessKey string
	LocalCacheDir   string
}

// NewS3Store builds an S3Store.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	optFns := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		optFns = append(optFns, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), optFns...)
	if err != nil {
		return nil, fmt.Errorf("logstore: failed to load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	if cfg.LocalCacheDir != "" {
		if err := os.MkdirAll(cfg.LocalCacheDir, 0755); err != nil {
			return nil, fmt.Errorf("logstore: failed to create cache dir: %w", err)
		}
	}

	return &S3Store{
		client:     s3.NewFromConfig(awsCfg, clientOpts...),
		bucket:     cfg.Bucket,
		prefix:     cfg.Prefix,
		localCache: cfg.LocalCacheDir,
	}, nil
}

func (s *S3Store) Store(ctx context.Context, jobID string, body []byte) (string, error) {
	key := s.buildKey(jobID)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("logstore: failed to upload: %w", err)
	}

	if s.localCache != "" {
		_ = os.WriteFile(filepath.Join(s.localCache, jobID+".log"), body, 0644)
	}

	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

func (s *S3Store) Retrieve(ctx context.Context, reference string) ([]byte, error) {
	key := extractKey(reference)

	if s.localCache != "" {
		if data, err := os.ReadFile(filepath.Join(s.localCache, filepath.Base(key))); err == nil {
			return data, nil
		}
	}

	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("logstore: failed to fetch: %w", err)
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("logstore: failed to read: %w", err)
	}

	if s.localCache != "" {
		_ = os.WriteFile(filepath.Join(s.localCache, filepath.Base(key)), data, 0644)
	}
	return data, nil
}

func (s *S3Store) buildKey(jobID string) string {
	return fmt.Sprintf("%s%s/%s.log", s.prefix, time.Now().Format("2006/01/02"), jobID)
}

func extractKey(reference string) string {
	const s3Prefix = "s3://"
	if len(reference) > len(s3Prefix) && reference[:len(s3Prefix)] == s3Prefix {
		rest := reference[len(s3Prefix):]
		for i, c := range rest {
			if c == '/' {
				return rest[i+1:]
			}
		}
	}
	return reference
}

// LocalStore stores logs on the local filesystem, for development or a
// single-node deployment with no object storage configured.
type LocalStore struct {
	basePath string
}

// NewLocalStore builds a LocalStore rooted at basePath.
func NewLocalStore(basePath string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("logstore: failed to create log dir: %w", err)
	}
	return &LocalStore{basePath: basePath}, nil
}

func (l *LocalStore) Store(ctx context.Context, jobID string, body []byte) (string, error) {
	path := filepath.Join(l.basePath, jobID+".log")
	if err := os.WriteFile(path, body, 0644); err != nil {
		return "", fmt.Errorf("logstore: failed to write: %w", err)
	}
	return path, nil
}

func (l *LocalStore) Retrieve(ctx context.Context, reference string) ([]byte, error) {
	return os.ReadFile(reference)
}
