package sink

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBucket is an in-memory bucket serving both the S3 client and the
// uploader side of S3Publisher.
type fakeBucket struct {
	s3iface.S3API
	s3manageriface.UploaderAPI

	mu      sync.Mutex
	objects map[string]string
	deletes int
}

func (f *fakeBucket) ListObjectsV2PagesWithContext(_ aws.Context, in *s3.ListObjectsV2Input, fn func(*s3.ListObjectsV2Output, bool) bool, _ ...request.Option) error {
	f.mu.Lock()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.StringValue(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	f.mu.Unlock()
	sort.Strings(keys)
	page := &s3.ListObjectsV2Output{}
	for _, k := range keys {
		page.Contents = append(page.Contents, &s3.Object{Key: aws.String(k)})
	}
	fn(page, true)
	return nil
}

func (f *fakeBucket) DeleteObjectsWithContext(_ aws.Context, in *s3.DeleteObjectsInput, _ ...request.Option) (*s3.DeleteObjectsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	for _, id := range in.Delete.Objects {
		delete(f.objects, aws.StringValue(id.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func (f *fakeBucket) UploadWithContext(_ aws.Context, in *s3manager.UploadInput, _ ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.StringValue(in.Key)] = string(b)
	return &s3manager.UploadOutput{}, nil
}

func (f *fakeBucket) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.objects))
	for k := range f.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, body := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	return dir
}

func TestS3Publisher_ReplacesPrefix(t *testing.T) {
	t.Parallel()

	fb := &fakeBucket{objects: map[string]string{
		"lake/songs/year=2000/artist_id=OLD/part-00000-old.snappy.parquet": "old",

		"lake/songs/_SUCCESS":        "",
		"lake/songsextra/keep.txt":   "keep",
		"lake/artist/part-0.parquet": "other table",
	}}
	src := writeTree(t, map[string]string{
		"_SUCCESS": "",
		"year=2018/artist_id=AR1/part-00000-new.snappy.parquet": "new",
	})

	p := NewS3Publisher(fb, fb, nil)
	require.NoError(t, p.Publish(context.Background(), src, "s3a://bucket/lake/songs"))

	assert.Equal(t, []string{
		"lake/artist/part-0.parquet",
		"lake/songs/_SUCCESS",
		"lake/songs/year=2018/artist_id=AR1/part-00000-new.snappy.parquet",
		"lake/songsextra/keep.txt",
	}, fb.keys())
	assert.Equal(t, 1, fb.deletes)
}

func TestS3Publisher_RefusesBucketRoot(t *testing.T) {
	t.Parallel()

	fb := &fakeBucket{objects: map[string]string{"a": "b"}}
	err := NewS3Publisher(fb, fb, nil).Publish(context.Background(), t.TempDir(), "s3://bucket/")
	require.Error(t, err)
	assert.Equal(t, []string{"a"}, fb.keys())
}

func TestLocalPublisher_Replaces(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "out", "users")
	require.NoError(t, os.MkdirAll(dest, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "stale.parquet"), []byte("x"), 0o644))

	src := writeTree(t, map[string]string{"part-00000-r.parquet": "data", "_SUCCESS": ""})
	require.NoError(t, LocalPublisher{}.Publish(context.Background(), src, dest))

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"_SUCCESS", "part-00000-r.parquet"}, names)
}

func TestCopyTree(t *testing.T) {
	t.Parallel()

	src := writeTree(t, map[string]string{"a/b/c.txt": "c", "d.txt": "d"})
	dest := filepath.Join(t.TempDir(), "copy")
	require.NoError(t, copyTree(context.Background(), src, dest))

	b, err := os.ReadFile(filepath.Join(dest, "a", "b", "c.txt"))
	require.NoError(t, err)
	assert.Equal(t, "c", string(b))
	assert.FileExists(t, filepath.Join(dest, "d.txt"))
}

func TestLocalPublisher_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := LocalPublisher{}.Publish(ctx, t.TempDir(), filepath.Join(t.TempDir(), "x"))
	assert.ErrorIs(t, err, context.Canceled)
}
