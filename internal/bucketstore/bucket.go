package bucketstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// bucketHashLen is how much of the mount-URL hash ends up in the bucket name.
// 96 bits; collisions across tenant mounts are negligible.
const bucketHashLen = 24

// BucketName derives the per-tenant bucket from its mount URL. The mapping
// is deterministic: the same URL always names the same bucket.
func BucketName(mountURL string) string {
	sum := sha256.Sum256([]byte(mountURL))
	return "h3-" + hex.EncodeToString(sum[:])[:bucketHashLen]
}

// ensureReady provisions the bucket on first use. It runs real work at most
// once per client; read-only clients never provision.
func (c *Client) ensureReady(ctx context.Context) error {
	if c.ready || c.readOnly {
		return nil
	}
	_, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	if err == nil {
		c.ready = true
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("head bucket %s: %w", c.bucket, err)
	}
	if err := c.createBucket(ctx); err != nil {
		return err
	}
	c.ready = true
	return nil
}

func (c *Client) createBucket(ctx context.Context) error {
	in := &s3.CreateBucketInput{Bucket: aws.String(c.bucket)}
	if c.region != "" && c.region != "us-east-1" {
		in.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(c.region),
		}
	}
	if _, err := c.api.CreateBucket(ctx, in); err != nil {
		return fmt.Errorf("create bucket %s: %w", c.bucket, err)
	}
	_, err := c.api.PutPublicAccessBlock(ctx, &s3.PutPublicAccessBlockInput{
		Bucket: aws.String(c.bucket),
		PublicAccessBlockConfiguration: &types.PublicAccessBlockConfiguration{
			BlockPublicAcls:       aws.Bool(true),
			BlockPublicPolicy:     aws.Bool(true),
			IgnorePublicAcls:      aws.Bool(true),
			RestrictPublicBuckets: aws.Bool(true),
		},
	})
	if err != nil {
		return fmt.Errorf("block public access on %s: %w", c.bucket, err)
	}
	return c.copyTemplateTags(ctx)
}

// copyTemplateTags seeds the new bucket with the template bucket's tag set
// plus the caller's own tags. An unreadable template is a configuration
// error and propagates.
func (c *Client) copyTemplateTags(ctx context.Context) error {
	out, err := c.api.GetBucketTagging(ctx, &s3.GetBucketTaggingInput{
		Bucket: aws.String(c.template),
	})
	if err != nil {
		return fmt.Errorf("read template bucket tags from %s: %w", c.template, err)
	}
	tagSet := out.TagSet
	for k, v := range c.tags {
		tagSet = append(tagSet, types.Tag{Key: aws.String(k), Value: aws.String(v)})
	}
	_, err = c.api.PutBucketTagging(ctx, &s3.PutBucketTaggingInput{
		Bucket:  aws.String(c.bucket),
		Tagging: &types.Tagging{TagSet: tagSet},
	})
	if err != nil {
		return fmt.Errorf("tag bucket %s: %w", c.bucket, err)
	}
	return nil
}
