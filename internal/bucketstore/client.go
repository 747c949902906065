// Package bucketstore is a durable key/value store scoped to one tenant
// bucket, provisioned on first write. Payloads are gzip-compressed on store
// and decompressed on load; callers never see compressed bytes.
package bucketstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/klauspost/compress/gzip"

	"github.com/yourorg/doc-publisher/internal/s3meta"
)

const contentEncodingGzip = "gzip"

// Options configures a Client. Tags are attached, together with the
// template bucket's tag set, when the bucket is first created.
type Options struct {
	Region   string
	Template string
	Tags     map[string]string
	ReadOnly bool
	// Closer releases the network client; may be nil.
	Closer func()
}

// Client owns one bucket. Construct with New (no I/O); the bucket is
// provisioned lazily on the first operation that needs it. Not safe for
// concurrent use; each invocation builds its own Client.
type Client struct {
	api      API
	bucket   string
	region   string
	template string
	tags     map[string]string
	readOnly bool
	ready    bool
	closer   func()
}

// New returns an unprovisioned client for bucket. It performs no I/O.
func New(api API, bucket string, opts Options) *Client {
	return &Client{
		api:      api,
		bucket:   bucket,
		region:   opts.Region,
		template: opts.Template,
		tags:     opts.Tags,
		readOnly: opts.ReadOnly,
		closer:   opts.Closer,
	}
}

// Load returns the stored bytes at key, decompressed when the object was
// written with a gzip content encoding. Absent keys yield ErrNotFound.
func (c *Client) Load(ctx context.Context, key string) ([]byte, error) {
	if err := c.ensureReady(ctx); err != nil {
		return nil, err
	}
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s/%s: %w", c.bucket, key, err)
	}
	defer out.Body.Close()
	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", c.bucket, key, err)
	}
	if aws.ToString(out.ContentEncoding) != contentEncodingGzip {
		return raw, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decompress %s/%s: %w", c.bucket, key, err)
	}
	defer zr.Close()
	body, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress %s/%s: %w", c.bucket, key, err)
	}
	return body, nil
}

// Metadata returns the user metadata map at key without downloading the
// body. Absent keys yield ErrNotFound.
func (c *Client) Metadata(ctx context.Context, key string) (map[string]string, error) {
	if err := c.ensureReady(ctx); err != nil {
		return nil, err
	}
	out, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("head %s/%s: %w", c.bucket, key, err)
	}
	return out.Metadata, nil
}

// Store compresses body and writes it at key, splitting headers into S3
// system properties and user metadata. Existing objects are overwritten.
func (c *Client) Store(ctx context.Context, key string, body []byte, headers http.Header) error {
	if c.readOnly {
		return ErrReadOnly
	}
	if err := c.ensureReady(ctx); err != nil {
		return err
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(body); err != nil {
		return fmt.Errorf("compress %s/%s: %w", c.bucket, key, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compress %s/%s: %w", c.bucket, key, err)
	}

	attrs := s3meta.Split(headers)
	in := &s3.PutObjectInput{
		Bucket:          aws.String(c.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(buf.Bytes()),
		ContentEncoding: aws.String(contentEncodingGzip),
		Metadata:        attrs.Metadata,
	}
	if attrs.ContentType != "" {
		in.ContentType = aws.String(attrs.ContentType)
	}
	if attrs.CacheControl != "" {
		in.CacheControl = aws.String(attrs.CacheControl)
	}
	if attrs.Expires != "" {
		if t, err := http.ParseTime(attrs.Expires); err == nil {
			in.Expires = aws.Time(t)
		}
	}
	if _, err := c.api.PutObject(ctx, in); err != nil {
		return fmt.Errorf("put %s/%s: %w", c.bucket, key, err)
	}
	return nil
}

// Copy duplicates src to dst within the bucket, carrying content and
// attributes along. A missing source yields ErrNotFound and leaves dst
// untouched.
func (c *Client) Copy(ctx context.Context, src, dst string) error {
	if c.readOnly {
		return ErrReadOnly
	}
	if err := c.ensureReady(ctx); err != nil {
		return err
	}
	_, err := c.api.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:            aws.String(c.bucket),
		Key:               aws.String(dst),
		CopySource:        aws.String(c.bucket + "/" + src),
		MetadataDirective: types.MetadataDirectiveCopy,
	})
	if err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("copy %s/%s -> %s: %w", c.bucket, src, dst, err)
	}
	return nil
}

// Close releases the network client. Safe when the bucket was never
// provisioned, and safe to call more than once.
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
		c.closer = nil
	}
}

// isNotFound reports whether err is a missing-bucket/key answer rather than
// a real failure.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return true
		}
	}
	return false
}
