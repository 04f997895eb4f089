package retrieve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3API is the subset of *s3.Client used by the S3 retriever.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3 reads references from a depot mirrored into an S3 bucket, keyed
// <prefix>/<ref>.
type S3 struct {
	Client S3API
	Bucket string
	Prefix string
}

// NewS3 creates an S3 retriever.
func NewS3(client S3API, bucket, prefix string) *S3 {
	return &S3{Client: client, Bucket: bucket, Prefix: prefix}
}

// Retrieve fetches the object for ref. Missing keys map to ErrNotFound and
// access errors are permanent.
func (s *S3) Retrieve(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := ValidateRef(ref); err != nil {
		return nil, err
	}

	key := ref
	if s.Prefix != "" {
		key = path.Join(s.Prefix, ref)
	}

	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, notFound(ref)
		}
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case "NotFound", "NoSuchKey":
				return nil, notFound(ref)
			case "AccessDenied", "NoSuchBucket", "InvalidAccessKeyId", "SignatureDoesNotMatch":
				return nil, Permanent(fmt.Errorf("failed to fetch s3://%s/%s: %w", s.Bucket, key, err))
			}
		}
		return nil, fmt.Errorf("failed to fetch s3://%s/%s: %w", s.Bucket, key, err)
	}

	return out.Body, nil
}

// NewS3Client builds an S3 client for region. Credentials come from the
// standard AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY / AWS_SESSION_TOKEN
// variables; without them requests are anonymous, which works for public
// depot buckets. A non-empty endpoint selects an S3-compatible service with
// path-style addressing.
func NewS3Client(region, endpoint string) *s3.Client {
	cfg := aws.Config{
		Region:      region,
		Credentials: envCredentials(),
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
}

func envCredentials() aws.CredentialsProvider {
	accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
	secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
	if accessKey == "" || secretKey == "" {
		return aws.AnonymousCredentials{}
	}
	sessionToken := os.Getenv("AWS_SESSION_TOKEN")

	return aws.NewCredentialsCache(aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		return aws.Credentials{
			AccessKeyID:     accessKey,
			SecretAccessKey: secretKey,
			SessionToken:    sessionToken,
			Source:          "voltron-env",
		}, nil
	}))
}
