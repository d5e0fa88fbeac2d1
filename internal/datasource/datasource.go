// Package datasource defines how the job discovers and opens its raw input
// files. Concrete stores live in subpackages: file (local disk) and s3.
package datasource

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Source is a single openable input.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Store lists and opens the files under one root.
type Store interface {
	// Glob returns the names matching pattern, sorted. The pattern is
	// relative to the store root and uses path.Match syntax per segment.
	// No match, including a missing root, is an empty result and no error.
	Glob(ctx context.Context, pattern string) ([]string, error)

	// Source returns the input behind a name returned by Glob.
	Source(name string) Source
}

// IsS3 reports whether root names an S3 location (s3:// or s3a://).
func IsS3(root string) bool {
	return strings.HasPrefix(root, "s3://") || strings.HasPrefix(root, "s3a://")
}

// SplitS3 splits "s3://bucket/prefix" into bucket and prefix. The prefix has
// no leading or trailing slash.
func SplitS3(uri string) (bucket, prefix string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		rest, ok = strings.CutPrefix(uri, "s3a://")
	}
	if !ok {
		return "", "", fmt.Errorf("datasource: %q is not an s3 uri", uri)
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("datasource: %q has no bucket", uri)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}

// LiteralPrefix returns the leading part of pattern up to the last '/' before
// the first glob metacharacter. Stores use it to narrow listings.
func LiteralPrefix(pattern string) string {
	i := strings.IndexAny(pattern, "*?[\\")
	if i < 0 {
		return pattern
	}
	j := strings.LastIndex(pattern[:i], "/")
	if j < 0 {
		return ""
	}
	return pattern[:j+1]
}
