package files

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/pkg/errors"
)

type S3Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Origin reads attachments from an S3-compatible bucket, keyed by reference.
type S3Origin struct {
	bucket string
	client objectGetter
}

func NewS3Origin(ctx context.Context, opts S3Options) (*S3Origin, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			// MinIO and friends do not serve virtual-hosted buckets.
			o.UsePathStyle = true
		}
	})

	return newS3Origin(opts.Bucket, client), nil
}

func newS3Origin(bucket string, client objectGetter) *S3Origin {
	return &S3Origin{bucket: bucket, client: client}
}

func (o *S3Origin) Fetch(ctx context.Context, ref string) (*Object, error) {
	segments, _, err := parseRef(ref)
	if err != nil {
		return nil, err
	}
	key := strings.Join(segments, "/")

	out, err := o.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "get object %s", key)
	}

	return withDefaults(&Object{
		Body:               out.Body,
		ContentType:        aws.ToString(out.ContentType),
		ContentDisposition: aws.ToString(out.ContentDisposition),
		ContentLength:      aws.ToInt64(out.ContentLength),
	}), nil
}
