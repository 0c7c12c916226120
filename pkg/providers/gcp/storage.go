package gcp

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"net/url"
	"os"

	"cloud.google.com/go/storage"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"google.golang.org/api/iterator"

	"github.com/anirudhbiyani/cloudjack/pkg/cloudjack"
)

// Storage implements cloudjack.Storage on Cloud Storage.
type Storage struct {
	client  *storage.Client
	project string
	clock   clock.Clock
}

var _ cloudjack.Storage = (*Storage)(nil)

// NewStorage returns a Storage that creates and lists buckets in project.
func NewStorage(client *storage.Client, project string) *Storage {
	return &Storage{client: client, project: project, clock: clock.WallClock}
}

func (s *Storage) Domain() cloudjack.ServiceName { return cloudjack.ServiceStorage }

func (s *Storage) CreateBucket(ctx context.Context, bucket string) error {
	return errors.Trace(s.client.Bucket(bucket).Create(ctx, s.project, nil))
}

func (s *Storage) DeleteBucket(ctx context.Context, bucket string) error {
	return errors.Trace(s.client.Bucket(bucket).Delete(ctx))
}

func (s *Storage) ListBuckets(ctx context.Context) ([]string, error) {
	it := s.client.Buckets(ctx, s.project)
	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return names, nil
		}
		if err != nil {
			return nil, errors.Trace(err)
		}
		names = append(names, attrs.Name)
	}
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
	return s.write(ctx, bucket, key, f)
}

func (s *Storage) PutObject(ctx context.Context, bucket, key string, data []byte) error {
	return s.write(ctx, bucket, key, bytes.NewReader(data))
}

// write streams r to the object. The upload is committed by Close, so
// its error is the one that matters.
func (s *Storage) write(ctx context.Context, bucket, key string, r io.Reader) error {
	w := s.client.Bucket(bucket).Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return errors.Annotatef(err, "uploading %s/%s", bucket, key)
	}
	return errors.Trace(w.Close())
}

// DownloadFile writes the object at key to localPath.
func (s *Storage) DownloadFile(ctx context.Context, bucket, key, localPath string) error {
	r, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer r.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return cloudjack.Errorf(cloudjack.KindInvalidArgument, "cannot write %q: %v", localPath, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return errors.Annotatef(err, "downloading %s/%s", bucket, key)
	}
	return errors.Trace(f.Close())
}

func (s *Storage) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	r, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Annotatef(err, "reading %s/%s", bucket, key)
	}
	return data, nil
}

func (s *Storage) DeleteObject(ctx context.Context, bucket, key string) error {
	return errors.Trace(s.client.Bucket(bucket).Object(key).Delete(ctx))
}

// ListObjects returns every key under prefix.
func (s *Storage) ListObjects(ctx context.Context, bucket, prefix string) ([]string, error) {
	it := s.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var keys []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return keys, nil
		}
		if err != nil {
			return nil, errors.Trace(err)
		}
		keys = append(keys, attrs.Name)
	}
}

// GenerateSignedURL signs a V4 URL for key. The signing identity is
// detected from the client's credentials.
func (s *Storage) GenerateSignedURL(ctx context.Context, bucket, key string, opts cloudjack.SignedURLOptions) (string, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return "", err
	}
	signOpts := signedURLOptions(opts, s.clock)
	u, err := s.client.Bucket(bucket).SignedURL(key, signOpts)
	if err != nil {
		return "", errors.Trace(err)
	}
	return u, nil
}

func signedURLOptions(opts cloudjack.SignedURLOptions, clk clock.Clock) *storage.SignedURLOptions {
	out := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  opts.Method,
		Expires: clk.Now().Add(opts.Expiration),
	}
	switch opts.Method {
	case "PUT":
		out.ContentType = opts.ContentType
	case "GET":
		q := url.Values{}
		if opts.ResponseDisposition != "" {
			q.Set("response-content-disposition", opts.ResponseDisposition)
		}
		if opts.ResponseContentType != "" {
			q.Set("response-content-type", opts.ResponseContentType)
		}
		if len(q) > 0 {
			out.QueryParameters = q
		}
	}
	return out
}
