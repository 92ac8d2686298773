// Package s3 implements a Backend backed by an Amazon S3 bucket,
// modeled on shastity's original S3Backend (which used boto) and
// reworked against github.com/aws/aws-sdk-go, the way
// registry/storage/driver/s3-aws wraps the same SDK for the
// distribution registry's StorageDriver.
package s3

import (
	"bytes"
	"context"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/scode/shastity/backend"
	"github.com/scode/shastity/backend/factory"
)

const scheme = "s3"

func init() {
	factory.Register(scheme, factoryImpl{})
}

type factoryImpl struct{}

func (factoryImpl) Create(ctx context.Context, identifier string) (backend.Backend, error) {
	sess, err := session.NewSession(aws.NewConfig())
	if err != nil {
		return nil, err
	}
	return &Driver{s3: s3.New(sess), bucket: identifier}, nil
}

// Driver stores each object as a key in a single S3 bucket, using the
// AWS access key and region picked up from the environment/shared
// config (mirroring how the original backend relied on boto reading
// AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY from the environment).
type Driver struct {
	s3     *s3.S3
	bucket string
}

var _ backend.Backend = (*Driver)(nil)

func (d *Driver) Put(ctx context.Context, name string, data []byte) error {
	_, err := d.s3.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(name),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	return err
}

func (d *Driver) Get(ctx context.Context, name string) ([]byte, error) {
	resp, err := d.s3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && (aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound") {
			return nil, backend.NotFoundError{Name: name}
		}
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func (d *Driver) List(ctx context.Context) ([]string, error) {
	var names []string

	err := d.s3.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(d.bucket),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			names = append(names, aws.StringValue(obj.Key))
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (d *Driver) Delete(ctx context.Context, name string) error {
	_, err := d.s3.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(name),
	})
	return err
}

func (d *Driver) Exists(ctx context.Context) (bool, error) {
	_, err := d.s3.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(d.bucket),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && (aerr.Code() == s3.ErrCodeNoSuchBucket || aerr.Code() == "NotFound") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (d *Driver) Create(ctx context.Context) error {
	_, err := d.s3.CreateBucketWithContext(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(d.bucket),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeBucketAlreadyOwnedByYou {
			return nil
		}
		return err
	}
	return d.s3.WaitUntilBucketExistsWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(d.bucket),
	})
}
