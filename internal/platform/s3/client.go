package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/imamik/nodeforge/internal/state"
	"github.com/imamik/nodeforge/internal/util/retry"
)

// Client wraps the AWS S3 client for Hetzner Object Storage.
type Client struct {
	s3       *s3.Client
	endpoint string
	region   string

	// policyMu serializes read-modify-write of bucket policies and
	// lifecycle configurations, which S3 only replaces whole.
	policyMu sync.Mutex
}

var _ state.ObjectStore = (*Client)(nil)

// NewClient creates a new S3 client for the given endpoint. Requests use
// path-style addressing so bucket names never have to be valid host labels.
func NewClient(endpoint, region, accessKey, secretKey string) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return newClient(client, endpoint, region), nil
}

func newClient(client *s3.Client, endpoint, region string) *Client {
	return &Client{s3: client, endpoint: strings.TrimRight(endpoint, "/"), region: region}
}

// Endpoint returns the base URL objects are addressed under.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// EnsureBucket creates a bucket if it does not already exist. A bucket
// owned by another account is a fatal naming conflict for the caller.
func (c *Client) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := c.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	input := &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
	}
	_, err = c.s3.CreateBucket(ctx, input)
	if err != nil {
		if isBucketAlreadyOwnedByYou(err) {
			return nil
		}
		if isBucketAlreadyExists(err) {
			return retry.Fatal(fmt.Errorf("bucket name %s is taken by another account: %w", bucket, err))
		}
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return nil
}

// BucketExists checks if a bucket exists.
func (c *Client) BucketExists(ctx context.Context, bucket string) (bool, error) {
	_, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	return true, nil
}

// DeleteBucket removes an empty bucket. A bucket that still holds objects
// is left in place and reported as retained.
func (c *Client) DeleteBucket(ctx context.Context, bucket string) (retained bool, err error) {
	_, err = c.s3.DeleteBucket(ctx, &s3.DeleteBucketInput{
		Bucket: aws.String(bucket),
	})
	switch {
	case err == nil:
		return false, nil
	case isNotFoundError(err):
		return false, nil
	case hasErrorCode(err, "BucketNotEmpty"):
		return true, nil
	default:
		return false, fmt.Errorf("failed to delete bucket %s: %w", bucket, err)
	}
}

// ObjectExists reports whether key is present in bucket.
func (c *Client) ObjectExists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object %s/%s: %w", bucket, key, err)
	}
	return true, nil
}

// PutObject uploads data to the specified bucket and key.
func (c *Client) PutObject(ctx context.Context, bucket, key string, data []byte) error {
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// PutObjectIfAbsent uploads data only when key does not exist yet. It
// returns state.ErrPreconditionFailed when another writer got there first.
func (c *Client) PutObjectIfAbsent(ctx context.Context, bucket, key string, data []byte) error {
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		if isPreconditionFailed(err) {
			return fmt.Errorf("object %s/%s exists: %w", bucket, key, state.ErrPreconditionFailed)
		}
		return fmt.Errorf("failed to put object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// GetObject downloads an object from the specified bucket and key. A
// missing key wraps state.ErrObjectNotFound.
func (c *Client) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	result, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("object %s/%s: %w", bucket, key, state.ErrObjectNotFound)
		}
		return nil, fmt.Errorf("failed to get object %s/%s: %w", bucket, key, err)
	}
	defer func() { _ = result.Body.Close() }()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}
	return data, nil
}

// DeleteObject deletes an object from the specified bucket.
func (c *Client) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete object %s/%s: %w", bucket, key, err)
	}
	return nil
}

func isBucketAlreadyOwnedByYou(err error) bool {
	var owned *types.BucketAlreadyOwnedByYou
	if errors.As(err, &owned) {
		return true
	}
	return hasErrorCode(err, "BucketAlreadyOwnedByYou")
}

func isBucketAlreadyExists(err error) bool {
	var exists *types.BucketAlreadyExists
	if errors.As(err, &exists) {
		return true
	}
	return hasErrorCode(err, "BucketAlreadyExists")
}

func isNotFoundError(err error) bool {
	var noSuchBucket *types.NoSuchBucket
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchBucket) || errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}
	return hasErrorCode(err, "NotFound", "NoSuchBucket", "NoSuchKey")
}

func isPreconditionFailed(err error) bool {
	return hasErrorCode(err, "PreconditionFailed", "ConditionalRequestConflict")
}

func hasErrorCode(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, code := range codes {
		if apiErr.ErrorCode() == code {
			return true
		}
	}
	return false
}
