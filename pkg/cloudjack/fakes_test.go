package cloudjack

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// fakeStorage is an in-memory Storage. fail, when set, is consulted
// before every call and its error is returned as the native failure.
type fakeStorage struct {
	mu      sync.Mutex
	buckets map[string]map[string][]byte
	calls   map[string]int
	fail    func(op string, call int) error
	lastURL SignedURLOptions
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		buckets: make(map[string]map[string][]byte),
		calls:   make(map[string]int),
	}
}

func (f *fakeStorage) enter(op string) error {
	f.mu.Lock()
	f.calls[op]++
	n := f.calls[op]
	fail := f.fail
	f.mu.Unlock()
	if fail != nil {
		return fail(op, n)
	}
	return nil
}

func (f *fakeStorage) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeStorage) Domain() ServiceName { return ServiceStorage }

func (f *fakeStorage) CreateBucket(ctx context.Context, bucket string) error {
	if err := f.enter("create_bucket"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.buckets[bucket]; ok {
		return &nativeError{code: "BucketAlreadyExists", msg: bucket}
	}
	f.buckets[bucket] = make(map[string][]byte)
	return nil
}

func (f *fakeStorage) DeleteBucket(ctx context.Context, bucket string) error {
	if err := f.enter("delete_bucket"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.buckets[bucket]; !ok {
		return &nativeError{code: "NoSuchBucket", msg: bucket}
	}
	delete(f.buckets, bucket)
	return nil
}

func (f *fakeStorage) ListBuckets(ctx context.Context) ([]string, error) {
	if err := f.enter("list_buckets"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.buckets))
	for b := range f.buckets {
		out = append(out, b)
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeStorage) UploadFile(ctx context.Context, bucket, localPath, key string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	return f.PutObject(ctx, bucket, key, data)
}

func (f *fakeStorage) DownloadFile(ctx context.Context, bucket, key, localPath string) error {
	data, err := f.GetObject(ctx, bucket, key)
	if err != nil {
		return err
	}
	return os.WriteFile(localPath, data, 0o600)
}

func (f *fakeStorage) PutObject(ctx context.Context, bucket, key string, data []byte) error {
	if err := f.enter("put_object"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	objs, ok := f.buckets[bucket]
	if !ok {
		return &nativeError{code: "NoSuchBucket", msg: bucket}
	}
	objs[key] = append([]byte(nil), data...)
	return nil
}

func (f *fakeStorage) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := f.enter("get_object"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	objs, ok := f.buckets[bucket]
	if !ok {
		return nil, &nativeError{code: "NoSuchBucket", msg: bucket}
	}
	data, ok := objs[key]
	if !ok {
		return nil, &nativeError{code: "NoSuchKey", msg: key}
	}
	return data, nil
}

func (f *fakeStorage) DeleteObject(ctx context.Context, bucket, key string) error {
	if err := f.enter("delete_object"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if objs, ok := f.buckets[bucket]; ok {
		delete(objs, key)
	}
	return nil
}

func (f *fakeStorage) ListObjects(ctx context.Context, bucket, prefix string) ([]string, error) {
	if err := f.enter("list_objects"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for k := range f.buckets[bucket] {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeStorage) GenerateSignedURL(ctx context.Context, bucket, key string, opts SignedURLOptions) (string, error) {
	if err := f.enter("generate_signed_url"); err != nil {
		return "", err
	}
	opts, err := opts.Normalize()
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	f.lastURL = opts
	f.mu.Unlock()
	return fmt.Sprintf("https://fake/%s/%s?method=%s&expires=%d", bucket, key, opts.Method, int(opts.Expiration.Seconds())), nil
}

// testProvider is a registration for provider "x" offering only storage.
type testProvider struct {
	checks       atomic.Int32
	constructs   atomic.Int32
	constructErr error
	store        *fakeStorage
}

func newTestProvider() *testProvider {
	return &testProvider{store: newFakeStorage()}
}

func (p *testProvider) registration() Registration {
	return Registration{
		Provider: "x",
		Schema: ConfigSchema{
			Fields: []FieldSpec{
				{Name: "region"},
				{Name: "endpoint"},
				{Name: "token", Sensitive: true},
			},
			Check: func(ctx context.Context, cfg *Config) error {
				p.checks.Add(1)
				return nil
			},
			LookupEnv: func(string) (string, bool) { return "", false },
		},
		Classify: classifyNative,
		Errors:   nativeTable,
		Services: map[ServiceName]ServiceBinding{
			ServiceStorage: NewServiceBinding(
				func(ctx context.Context, cfg *Config) (*fakeStorage, error) {
					p.constructs.Add(1)
					if p.constructErr != nil {
						return nil, p.constructErr
					}
					return p.store, nil
				},
				func(c *fakeStorage, cfg *Config) Storage { return c },
				ErrorTable{"BucketAlreadyExists": {Kind: KindAlreadyExists, Resource: ResourceBucket}},
			),
		},
	}
}

func (p *testProvider) factory() *Factory {
	return NewFactory(MustNewRegistry(p.registration()), WithRetryPolicy(fastPolicy()))
}
