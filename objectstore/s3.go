package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/s3db-go/s3db/common"
)

// MaxConcurrentRequests bounds simultaneous in-flight S3 calls issued by a
// single client, protecting the object store from throttling and bounding
// memory on large bulk operations.
const MaxConcurrentRequests = 96

// multipartThreshold is the body size at or above which Put switches to the
// multipart uploader. Typical records stay in the single-call path; only
// body-only resources with large payloads (embeddings, binary blobs)
// cross it.
const multipartThreshold = 8 << 20

// sharedHTTPClient is reused across all S3 clients created in a process so
// idle connections are pooled rather than re-established per client.
var sharedHTTPClient = &http.Client{
	Timeout: 60 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: MaxConcurrentRequests,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	},
}

// S3Store implements Client against any S3-compatible endpoint (AWS S3,
// MinIO, LakeFS, Hetzner Cloud Storage).
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	sem      chan struct{}
	log      *common.ContextLogger
}

// NewS3Store builds an S3-backed Client from a parsed Config.
func NewS3Store(ctx context.Context, cfg *Config) (*S3Store, error) {
	if cfg.Scheme != SchemeS3 {
		return nil, fmt.Errorf("objectstore: NewS3Store requires an s3:// config, got %q", cfg.Scheme)
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
		awsconfig.WithHTTPClient(sharedHTTPClient),
		awsconfig.WithRetryer(func() aws.Retryer {
			return retry.NewStandard(func(o *retry.StandardOptions) {
				o.MaxAttempts = 5
			})
		}),
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("objectstore: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	store := &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		sem:      make(chan struct{}, MaxConcurrentRequests),
		log:      common.NewContextLogger(common.Logger, common.DatabaseFields("open", cfg.Bucket, 0, 0)),
	}
	store.log.WithField("endpoint", cfg.Endpoint).Debug("s3 object store ready")
	return store, nil
}

func (s *S3Store) acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *S3Store) release() { <-s.sem }

func (s *S3Store) Put(ctx context.Context, key string, metadata map[string]string, body []byte, opts PutOptions) (string, error) {
	if err := s.acquire(ctx); err != nil {
		return "", err
	}
	defer s.release()

	input := &s3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		Body:     bytes.NewReader(body),
		Metadata: metadata,
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if opts.IfMatch != "" {
		input.IfMatch = aws.String(opts.IfMatch)
	}

	// Multipart uploads don't support If-Match, so conditional writes stay
	// on the single-call path regardless of size.
	if len(body) >= multipartThreshold && opts.IfMatch == "" {
		out, err := s.uploader.Upload(ctx, input)
		if err != nil {
			return "", classifyS3Error(err)
		}
		return aws.ToString(out.ETag), nil
	}

	out, err := s.client.PutObject(ctx, input)
	if err != nil {
		return "", classifyS3Error(err)
	}
	if out.ETag != nil {
		return *out.ETag, nil
	}
	return "", nil
}

func (s *S3Store) Get(ctx context.Context, key string) (*Object, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classifyS3Error(err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrTransient, err)
	}

	obj := &Object{Metadata: out.Metadata, Body: body}
	if out.ContentType != nil {
		obj.ContentType = *out.ContentType
	}
	if out.ETag != nil {
		obj.ETag = *out.ETag
	}
	return obj, nil
}

func (s *S3Store) Head(ctx context.Context, key string) (*Object, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classifyS3Error(err)
	}

	obj := &Object{Metadata: out.Metadata}
	if out.ContentType != nil {
		obj.ContentType = *out.ContentType
	}
	if out.ETag != nil {
		obj.ETag = *out.ETag
	}
	return obj, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return classifyS3Error(err)
	}
	return nil
}

func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Head(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *S3Store) List(ctx context.Context, prefix, continuationToken string, limit int) (*Page, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}
	if limit > 0 {
		input.MaxKeys = aws.Int32(int32(limit))
	}
	if continuationToken != "" {
		input.ContinuationToken = aws.String(continuationToken)
	}

	out, err := s.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, classifyS3Error(err)
	}

	page := &Page{IsTruncated: aws.ToBool(out.IsTruncated)}
	for _, obj := range out.Contents {
		if obj.Key != nil {
			page.Keys = append(page.Keys, *obj.Key)
		}
	}
	if out.NextContinuationToken != nil {
		page.ContinuationToken = *out.NextContinuationToken
	}
	return page, nil
}

func classifyS3Error(err error) error {
	var nsk *types.NoSuchKey
	var nsb *types.NoSuchBucket
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nsb) || errors.As(err, &nf) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "NoSuchKey", "NotFound":
			// HeadObject reports 404 as a bare APIError rather than a
			// modeled NoSuchKey.
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case "PreconditionFailed":
			return fmt.Errorf("%w: %v", ErrPreconditionFailed, err)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "NotImplemented":
			return fmt.Errorf("%w: %v", ErrPermanent, err)
		case "SlowDown", "RequestTimeout", "ServiceUnavailable", "InternalError":
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
	}

	return fmt.Errorf("%w: %v", ErrTransient, err)
}
