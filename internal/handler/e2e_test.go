package handler

// End-to-end over the real bucket store client: handler -> bucketstore ->
// in-memory S3. Only the S3 API itself is faked.

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/klauspost/compress/gzip"

	"github.com/yourorg/doc-publisher/internal/bucketstore"
	"github.com/yourorg/doc-publisher/internal/fetch"
	"github.com/yourorg/doc-publisher/internal/mount"
)

type memObject struct {
	body     []byte
	encoding string
	metadata map[string]string
}

// memS3 is a minimal in-memory bucketstore.API.
type memS3 struct {
	buckets map[string]bool
	objects map[string]memObject
}

func newMemS3() *memS3 {
	return &memS3{buckets: map[string]bool{}, objects: map[string]memObject{}}
}

func (m *memS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if m.buckets[aws.ToString(in.Bucket)] {
		return &s3.HeadBucketOutput{}, nil
	}
	return nil, &types.NotFound{}
}

func (m *memS3) CreateBucket(ctx context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	m.buckets[aws.ToString(in.Bucket)] = true
	return &s3.CreateBucketOutput{}, nil
}

func (m *memS3) PutPublicAccessBlock(ctx context.Context, in *s3.PutPublicAccessBlockInput, _ ...func(*s3.Options)) (*s3.PutPublicAccessBlockOutput, error) {
	return &s3.PutPublicAccessBlockOutput{}, nil
}

func (m *memS3) GetBucketTagging(ctx context.Context, in *s3.GetBucketTaggingInput, _ ...func(*s3.Options)) (*s3.GetBucketTaggingOutput, error) {
	return &s3.GetBucketTaggingOutput{}, nil
}

func (m *memS3) PutBucketTagging(ctx context.Context, in *s3.PutBucketTaggingInput, _ ...func(*s3.Options)) (*s3.PutBucketTaggingOutput, error) {
	return &s3.PutBucketTaggingOutput{}, nil
}

func (m *memS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	obj, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	out := &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(obj.body)), Metadata: obj.metadata}
	if obj.encoding != "" {
		out.ContentEncoding = aws.String(obj.encoding)
	}
	return out, nil
}

func (m *memS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	obj, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{Metadata: obj.metadata}, nil
}

func (m *memS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, _ := io.ReadAll(in.Body)
	m.objects[aws.ToString(in.Key)] = memObject{
		body:     body,
		encoding: aws.ToString(in.ContentEncoding),
		metadata: in.Metadata,
	}
	return &s3.PutObjectOutput{}, nil
}

func (m *memS3) CopyObject(ctx context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	src := aws.ToString(in.CopySource)
	if i := bytes.IndexByte([]byte(src), '/'); i >= 0 {
		src = src[i+1:]
	}
	obj, ok := m.objects[src]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	m.objects[aws.ToString(in.Key)] = obj
	return &s3.CopyObjectOutput{}, nil
}

func TestEndToEndUpdateAndPublish(t *testing.T) {
	mem := newMemS3()
	open := func(ctx context.Context, bucket, mountURL string) (Store, error) {
		return bucketstore.New(mem, bucket, bucketstore.Options{Template: "h3-template"}), nil
	}
	hdr := http.Header{}
	hdr.Set("Content-Type", "text/markdown")
	hdr.Set("Last-Modified", "Tue, 20 Oct 2026 07:28:00 GMT")
	ff := &fakeFetcher{resp: &fetch.Response{Status: 200, Header: hdr, Body: []byte("hello")}}
	h := New(ff, mount.Static{T: testTable()}, open, nil)

	res := h.Handle(context.Background(), okParams())
	if res.Status != http.StatusOK || len(res.Body) != 0 {
		t.Fatalf("update: status=%d body=%q X-Error=%q", res.Status, res.Body, res.Header.Get("X-Error"))
	}

	obj, ok := mem.objects["live/mnt/example-post.md"]
	if !ok {
		t.Fatalf("object not stored; have %v", keysOf(mem.objects))
	}
	if obj.encoding != "gzip" {
		t.Fatalf("encoding=%q", obj.encoding)
	}
	zr, err := gzip.NewReader(bytes.NewReader(obj.body))
	if err != nil {
		t.Fatalf("gzip: %v", err)
	}
	plain, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("gunzip: %v", err)
	}
	if string(plain) != "hello" {
		t.Fatalf("decompressed=%q; want hello", plain)
	}
	if obj.metadata["x-source-last-modified"] != "Tue, 20 Oct 2026 07:28:00 GMT" {
		t.Fatalf("metadata=%v", obj.metadata)
	}

	// Stage a draft and publish it.
	draft := mem.objects["live/mnt/example-post.md"]
	mem.objects["preview/mnt/other.md"] = draft
	p := okParams()
	p.Path = "/mnt/other.md"
	p.Action = ActionPublish
	res = h.Handle(context.Background(), p)
	if res.Status != http.StatusOK {
		t.Fatalf("publish: status=%d", res.Status)
	}
	if _, ok := mem.objects["live/mnt/other.md"]; !ok {
		t.Fatalf("published object missing")
	}
}

func keysOf(m map[string]memObject) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
