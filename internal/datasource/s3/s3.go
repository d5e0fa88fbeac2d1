// Package s3 implements datasource.Store on an S3 bucket with aws-sdk-go.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	awss3 "github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"sparkify/internal/datasource"
)

// Config carries the AWS settings shared by the S3 reader and publisher.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint targets an S3-compatible store (MinIO, LocalStack). Path-style
	// addressing is enabled when it is set.
	Endpoint string
}

// NewSession builds an AWS session. Static keys are used when both are set;
// otherwise the SDK default credential chain applies.
func NewSession(cfg Config) (*session.Session, error) {
	ac := aws.NewConfig()
	if cfg.Region != "" {
		ac = ac.WithRegion(cfg.Region)
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		ac = ac.WithCredentials(credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, ""))
	}
	if cfg.Endpoint != "" {
		ac = ac.WithEndpoint(cfg.Endpoint).WithS3ForcePathStyle(true)
	}
	sess, err := session.NewSession(ac)
	if err != nil {
		return nil, fmt.Errorf("s3: new session: %w", err)
	}
	return sess, nil
}

// Bucket is a datasource.Store over s3://bucket/prefix.
type Bucket struct {
	api    s3iface.S3API
	bucket string
	prefix string
}

var _ datasource.Store = (*Bucket)(nil)

// NewBucket returns a store rooted at uri.
func NewBucket(api s3iface.S3API, uri string) (*Bucket, error) {
	bucket, prefix, err := datasource.SplitS3(uri)
	if err != nil {
		return nil, err
	}
	return &Bucket{api: api, bucket: bucket, prefix: prefix}, nil
}

func (b *Bucket) key(rel string) string {
	if b.prefix == "" {
		return rel
	}
	return b.prefix + "/" + rel
}

// Glob lists the keys under the literal prefix of pattern and keeps those
// whose root-relative path matches it. Results are full object keys. A
// missing bucket lists as empty.
func (b *Bucket) Glob(ctx context.Context, pattern string) ([]string, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("s3: glob %s: %w", pattern, err)
	}
	in := &awss3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(b.key(datasource.LiteralPrefix(pattern))),
	}
	var (
		out   []string
		mErr  error
		strip = b.key("")
	)
	err := b.api.ListObjectsV2PagesWithContext(ctx, in, func(page *awss3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			k := aws.StringValue(obj.Key)
			if strings.HasSuffix(k, "/") {
				continue
			}
			ok, err := path.Match(pattern, strings.TrimPrefix(k, strip))
			if err != nil {
				mErr = err
				return false
			}
			if ok {
				out = append(out, k)
			}
		}
		return true
	})
	var aerr awserr.Error
	if errors.As(err, &aerr) && aerr.Code() == awss3.ErrCodeNoSuchBucket {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("s3: list s3://%s/%s: %w", b.bucket, aws.StringValue(in.Prefix), err)
	}
	if mErr != nil {
		return nil, fmt.Errorf("s3: glob %s: %w", pattern, mErr)
	}
	sort.Strings(out)
	return out, nil
}

// Source returns the object stored under key.
func (b *Bucket) Source(key string) datasource.Source {
	return &Object{api: b.api, bucket: b.bucket, key: key}
}

// Object is one S3 object.
type Object struct {
	api    s3iface.S3API
	bucket string
	key    string
}

// Open starts a GET for the object and returns its body.
func (o *Object) Open(ctx context.Context) (io.ReadCloser, error) {
	out, err := o.api.GetObjectWithContext(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(o.key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3: get s3://%s/%s: %w", o.bucket, o.key, err)
	}
	return out.Body, nil
}
