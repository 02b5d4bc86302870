// Package s3 stores chunks as objects in an S3 compatible bucket. Objects cannot be
// written at an offset, so partial chunk writes read the current object, patch it and
// put it back. Writers of the same chunk inside one process are serialized.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"path"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/AnishMulay/sandblock/internal/chunk_service"
	"github.com/AnishMulay/sandblock/internal/log_service"
)

const lockStripes = 64

// objectAPI is the subset of *s3.Client the chunk service needs.
type objectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type Options struct {
	Bucket          string `mapstructure:"bucket" validate:"required"`
	Region          string `mapstructure:"region" validate:"required"`
	Endpoint        string `mapstructure:"endpoint"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

type S3ChunkService struct {
	client    objectAPI
	bucket    string
	keyPrefix string
	ls        log_service.LogService
	locks     [lockStripes]sync.Mutex
}

// NewS3ChunkService builds an S3 client from opts. A custom endpoint switches to
// path-style addressing for MinIO and Localstack.
func NewS3ChunkService(ctx context.Context, opts Options, ls log_service.LogService) (*S3ChunkService, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 chunk store: bucket is required")
	}
	if opts.Region == "" {
		return nil, fmt.Errorf("s3 chunk store: region is required")
	}

	loadOpts := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(opts.Region),
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 5
	}
	loadOpts = append(loadOpts, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	cfg, err := awsConfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newWithClient(client, opts.Bucket, opts.KeyPrefix, ls), nil
}

func newWithClient(client objectAPI, bucket, keyPrefix string, ls log_service.LogService) *S3ChunkService {
	return &S3ChunkService{
		client:    client,
		bucket:    bucket,
		keyPrefix: keyPrefix,
		ls:        ls,
	}
}

func (cs *S3ChunkService) objectKey(chunkID string) string {
	return path.Join(cs.keyPrefix, "chunks", chunkID)
}

func (cs *S3ChunkService) lockFor(chunkID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(chunkID))
	return &cs.locks[h.Sum32()%lockStripes]
}

func (cs *S3ChunkService) getObject(ctx context.Context, key string) ([]byte, error) {
	out, err := cs.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(cs.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NoSuchKey
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (cs *S3ChunkService) WriteChunk(ctx context.Context, chunkID string, offset int64, data []byte) error {
	if err := chunk_service.ValidateRange(offset, int64(len(data))); err != nil {
		return err
	}

	mu := cs.lockFor(chunkID)
	mu.Lock()
	defer mu.Unlock()

	key := cs.objectKey(chunkID)
	current, err := cs.getObject(ctx, key)
	if err != nil {
		cs.ls.Error(log_service.LogEvent{
			Message:  "Failed to fetch chunk object for update",
			Metadata: map[string]any{"chunkID": chunkID, "error": err.Error()},
		})
		return fmt.Errorf("%w: %v", chunk_service.ErrChunkWriteFailed, err)
	}

	end := offset + int64(len(data))
	if int64(len(current)) < end {
		grown := make([]byte, end)
		copy(grown, current)
		current = grown
	}
	copy(current[offset:end], data)

	_, err = cs.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(cs.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(current),
		ContentLength: aws.Int64(int64(len(current))),
	})
	if err != nil {
		cs.ls.Error(log_service.LogEvent{
			Message:  "Failed to put chunk object",
			Metadata: map[string]any{"chunkID": chunkID, "error": err.Error()},
		})
		return fmt.Errorf("%w: %v", chunk_service.ErrChunkWriteFailed, err)
	}
	return nil
}

func (cs *S3ChunkService) ReadChunk(ctx context.Context, chunkID string, offset int64, length int64) ([]byte, error) {
	if err := chunk_service.ValidateRange(offset, length); err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	if length == 0 {
		return buf, nil
	}

	out, err := cs.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(cs.bucket),
		Key:    aws.String(cs.objectKey(chunkID)),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)),
	})
	if err != nil {
		var notFound *types.NoSuchKey
		if errors.As(err, &notFound) || isInvalidRange(err) {
			return buf, nil
		}
		cs.ls.Error(log_service.LogEvent{
			Message:  "Failed to read chunk object",
			Metadata: map[string]any{"chunkID": chunkID, "error": err.Error()},
		})
		return nil, fmt.Errorf("%w: %v", chunk_service.ErrChunkReadFailed, err)
	}
	defer out.Body.Close()

	if _, err := io.ReadFull(out.Body, buf); err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", chunk_service.ErrChunkReadFailed, err)
	}
	return buf, nil
}

func (cs *S3ChunkService) DeleteChunk(ctx context.Context, chunkID string) error {
	_, err := cs.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(cs.bucket),
		Key:    aws.String(cs.objectKey(chunkID)),
	})
	if err != nil {
		cs.ls.Error(log_service.LogEvent{
			Message:  "Failed to delete chunk object",
			Metadata: map[string]any{"chunkID": chunkID, "error": err.Error()},
		})
		return fmt.Errorf("%w: %v", chunk_service.ErrChunkDeleteFailed, err)
	}
	return nil
}

// isInvalidRange reports a 416 for a range starting past the end of a short object.
func isInvalidRange(err error) bool {
	var apiErr interface{ ErrorCode() string }
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "InvalidRange"
}
