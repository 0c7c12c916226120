package aws

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/juju/errors"

	"github.com/anirudhbiyani/cloudjack/pkg/cloudjack"
)

// S3API is the subset of the S3 client used by Storage.
type S3API interface {
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, opts ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	DeleteBucket(ctx context.Context, in *s3.DeleteBucketInput, opts ...func(*s3.Options)) (*s3.DeleteBucketOutput, error)
	ListBuckets(ctx context.Context, in *s3.ListBucketsInput, opts ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	s3.ListObjectsV2APIClient
}

// Presigner is the subset of the S3 presign client used for signed URLs.
type Presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignPutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignDeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignHeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Storage implements cloudjack.Storage on S3.
type Storage struct {
	api     S3API
	presign Presigner
	region  string
}

var _ cloudjack.Storage = (*Storage)(nil)

// NewStorage returns a Storage. Buckets are created in region.
func NewStorage(api S3API, presign Presigner, region string) *Storage {
	return &Storage{api: api, presign: presign, region: region}
}

func (s *Storage) Domain() cloudjack.ServiceName { return cloudjack.ServiceStorage }

// CreateBucket creates bucket in the configured region. us-east-1 takes
// no location constraint.
func (s *Storage) CreateBucket(ctx context.Context, bucket string) error {
	in := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	if s.region != "" && s.region != "us-east-1" {
		in.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}
	_, err := s.api.CreateBucket(ctx, in)
	return errors.Trace(err)
}

func (s *Storage) DeleteBucket(ctx context.Context, bucket string) error {
	_, err := s.api.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)})
	return errors.Trace(err)
}

func (s *Storage) ListBuckets(ctx context.Context) ([]string, error) {
	out, err := s.api.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, errors.Trace(err)
	}
	names := make([]string, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		names = append(names, aws.ToString(b.Name))
	}
	return names, nil
}

// UploadFile stores the contents of localPath under key.
func (s *Storage) UploadFile(ctx context.Context, bucket, localPath, key string) error {
	f, err := os.Open(localPath)
	if errors.Is(err, fs.ErrNotExist) {
		return cloudjack.Errorf(cloudjack.KindInvalidArgument, "local file %q does not exist", localPath)
	}
	if err != nil {
		return errors.Annotatef(err, "opening %q", localPath)
	}
	defer f.Close()

	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	return errors.Trace(err)
}

// DownloadFile writes the object at key to localPath.
func (s *Storage) DownloadFile(ctx context.Context, bucket, key, localPath string) error {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Trace(err)
	}
	defer out.Body.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return cloudjack.Errorf(cloudjack.KindInvalidArgument, "cannot write %q: %v", localPath, err)
	}
	if _, err := io.Copy(f, out.Body); err != nil {
		f.Close()
		return errors.Annotatef(err, "downloading %s/%s", bucket, key)
	}
	return errors.Trace(f.Close())
}

func (s *Storage) PutObject(ctx context.Context, bucket, key string, data []byte) error {
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	return errors.Trace(err)
}

func (s *Storage) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.Annotatef(err, "reading %s/%s", bucket, key)
	}
	return data, nil
}

func (s *Storage) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	return errors.Trace(err)
}

// ListObjects returns every key under prefix.
func (s *Storage) ListObjects(ctx context.Context, bucket, prefix string) ([]string, error) {
	in := &s3.ListObjectsV2Input{Bucket: aws.String(bucket)}
	if prefix != "" {
		in.Prefix = aws.String(prefix)
	}
	var keys []string
	p := s3.NewListObjectsV2Paginator(s.api, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, errors.Trace(err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// GenerateSignedURL presigns a request for key with SigV4.
func (s *Storage) GenerateSignedURL(ctx context.Context, bucket, key string, opts cloudjack.SignedURLOptions) (string, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return "", err
	}
	expires := s3.WithPresignExpires(opts.Expiration)

	var req *v4.PresignedHTTPRequest
	switch opts.Method {
	case "GET":
		in := &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)}
		if opts.ResponseDisposition != "" {
			in.ResponseContentDisposition = aws.String(opts.ResponseDisposition)
		}
		if opts.ResponseContentType != "" {
			in.ResponseContentType = aws.String(opts.ResponseContentType)
		}
		req, err = s.presign.PresignGetObject(ctx, in, expires)
	case "PUT":
		in := &s3.PutObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)}
		if opts.ContentType != "" {
			in.ContentType = aws.String(opts.ContentType)
		}
		req, err = s.presign.PresignPutObject(ctx, in, expires)
	case "DELETE":
		req, err = s.presign.PresignDeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)}, expires)
	case "HEAD":
		req, err = s.presign.PresignHeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)}, expires)
	}
	if err != nil {
		return "", errors.Trace(err)
	}
	return req.URL, nil
}
