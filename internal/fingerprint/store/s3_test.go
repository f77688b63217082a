package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeObjectAPI is an in-memory bucket.
type fakeObjectAPI struct {
	mu      sync.Mutex
	objects map[string][]byte
	getErr  error
}

func newFakeObjectAPI() *fakeObjectAPI {
	return &fakeObjectAPI{objects: make(map[string][]byte)}
}

func (f *fakeObjectAPI) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeObjectAPI) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()

	t.Run("missing object is empty", func(t *testing.T) {
		store := NewS3Store(newFakeObjectAPI(), "bucket", "funded.json")
		hashes, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, hashes)
	})

	t.Run("round trip", func(t *testing.T) {
		api := newFakeObjectAPI()
		store := NewS3Store(api, "bucket", "funded.json")
		require.NoError(t, store.Persist(ctx, "b", []string{"a", "b"}))

		hashes, err := NewS3Store(api, "bucket", "funded.json").Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, hashes)
	})

	t.Run("transport error surfaces", func(t *testing.T) {
		api := newFakeObjectAPI()
		api.getErr = errors.New("access denied")
		_, err := NewS3Store(api, "bucket", "funded.json").Load(ctx)
		assert.ErrorContains(t, err, "access denied")
	})
}
