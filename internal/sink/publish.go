package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"go.uber.org/zap"

	"sparkify/internal/datasource"
)

// Publisher replaces dest with the contents of the local directory src.
// After a successful Publish, dest holds exactly the files of src.
type Publisher interface {
	Publish(ctx context.Context, src, dest string) error
}

// LocalPublisher publishes to the local filesystem.
type LocalPublisher struct{}

// Publish removes dest and moves src into its place. When a rename is not
// possible (src on another device) the tree is copied.
func (LocalPublisher) Publish(ctx context.Context, src, dest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("sink: publish %s: %w", dest, err)
	}
	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("sink: remove old %s: %w", dest, err)
	}
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	if err := copyTree(ctx, src, dest); err != nil {
		return fmt.Errorf("sink: publish %s: %w", dest, err)
	}
	return nil
}

func copyTree(ctx context.Context, src, dest string) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(p, target)
	})
}

func copyFile(src, dest string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = io.Copy(out, in)
	return err
}

// deleteBatch is the DeleteObjects limit.
const deleteBatch = 1000

// S3Publisher publishes to an s3:// or s3a:// prefix.
type S3Publisher struct {
	api      s3iface.S3API
	uploader s3manageriface.UploaderAPI
	log      *zap.Logger
}

// NewS3Publisher builds a publisher from an S3 client and an uploader, e.g.
// s3.New(sess) and s3manager.NewUploader(sess).
func NewS3Publisher(api s3iface.S3API, uploader s3manageriface.UploaderAPI, log *zap.Logger) *S3Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &S3Publisher{api: api, uploader: uploader, log: log}
}

// Publish deletes every object under dest and uploads the files of src.
func (p *S3Publisher) Publish(ctx context.Context, src, dest string) error {
	bucket, prefix, err := datasource.SplitS3(dest)
	if err != nil {
		return err
	}
	if prefix == "" {
		return fmt.Errorf("sink: refusing to overwrite bucket root %s", dest)
	}

	removed, err := p.deletePrefix(ctx, bucket, prefix+"/")
	if err != nil {
		return fmt.Errorf("sink: clear %s: %w", dest, err)
	}

	var uploaded int
	err = filepath.WalkDir(src, func(fp string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(src, fp)
		if err != nil {
			return err
		}
		key := path.Join(prefix, filepath.ToSlash(rel))
		if err := p.upload(ctx, bucket, key, fp); err != nil {
			return err
		}
		uploaded++
		return nil
	})
	if err != nil {
		return fmt.Errorf("sink: upload %s: %w", dest, err)
	}
	p.log.Debug("sink: s3 prefix replaced",
		zap.String("dest", dest),
		zap.Int("removed", removed),
		zap.Int("uploaded", uploaded),
	)
	return nil
}

func (p *S3Publisher) upload(ctx context.Context, bucket, key, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = p.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// deletePrefix removes every object whose key starts with prefix and returns
// how many were removed.
func (p *S3Publisher) deletePrefix(ctx context.Context, bucket, prefix string) (int, error) {
	var keys []string
	err := p.api.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			keys = append(keys, aws.StringValue(obj.Key))
		}
		return true
	})
	if err != nil {
		return 0, err
	}

	for start := 0; start < len(keys); start += deleteBatch {
		end := min(start+deleteBatch, len(keys))
		ids := make([]*s3.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			ids = append(ids, &s3.ObjectIdentifier{Key: aws.String(k)})
		}
		out, err := p.api.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &s3.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return start, err
		}
		if len(out.Errors) > 0 {
			e := out.Errors[0]
			return start, errors.New(aws.StringValue(e.Key) + ": " + aws.StringValue(e.Message))
		}
	}
	return len(keys), nil
}
