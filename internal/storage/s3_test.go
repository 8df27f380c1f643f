package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
	listErr error
	lastPut *s3.PutObjectInput
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := &s3.ListObjectsV2Output{}
	prefix := aws.ToString(in.Prefix)
	for k := range f.objects {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
		}
	}
	return out, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, _ := io.ReadAll(in.Body)
	f.objects[aws.ToString(in.Key)] = data
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	f.lastPut = in
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(in.Key)
	data, ok := f.objects[key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:        io.NopCloser(bytes.NewReader(data)),
		ContentType: aws.String(f.types[key]),
	}, nil
}

func TestS3StoreExistsNeedsExactKey(t *testing.T) {
	fake := newFakeS3()
	fake.objects["mirror/abc.webp.bak"] = []byte("x")
	store := newS3StoreWithClient(fake, "bucket", "https://cdn.example.com")

	ok, err := store.Exists(context.Background(), "mirror/abc.webp")
	require.NoError(t, err)
	assert.False(t, ok, "prefix match alone is not existence")

	fake.objects["mirror/abc.webp"] = []byte("y")
	ok, err = store.Exists(context.Background(), "mirror/abc.webp")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestS3StoreExistsError(t *testing.T) {
	fake := newFakeS3()
	fake.listErr = errors.New("boom")
	store := newS3StoreWithClient(fake, "bucket", "https://cdn.example.com")

	_, err := store.Exists(context.Background(), "k")
	assert.Error(t, err)
}

func TestS3StorePutGet(t *testing.T) {
	fake := newFakeS3()
	store := newS3StoreWithClient(fake, "bucket", "https://cdn.example.com")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "generated/a.png", []byte("png-bytes"), "image/png"))
	assert.Equal(t, "bucket", aws.ToString(fake.lastPut.Bucket))
	assert.Equal(t, "image/png", aws.ToString(fake.lastPut.ContentType))

	data, contentType, err := store.Get(ctx, "generated/a.png")
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
	assert.Equal(t, "image/png", contentType)

	_, _, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3StoreURLs(t *testing.T) {
	store := newS3StoreWithClient(newFakeS3(), "bucket", "https://cdn.example.com/pawtrip")

	assert.Equal(t, "https://cdn.example.com/pawtrip/mirror/x.webp", store.PublicURL("mirror/x.webp"))
	assert.True(t, store.IsOwnURL("https://cdn.example.com/pawtrip/mirror/x.webp"))
	assert.False(t, store.IsOwnURL("https://cdn.example.com/other/x.webp"))
}
