package minio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DRSN-tech/clip-backend/internal/cfg"
	"github.com/DRSN-tech/clip-backend/internal/domain"
	"github.com/DRSN-tech/clip-backend/internal/usecase"
	"github.com/DRSN-tech/clip-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeImageRepo struct {
	mu       sync.Mutex
	objects  map[string][]byte
	failName string
}

func newFakeImageRepo() *fakeImageRepo {
	return &fakeImageRepo{objects: map[string][]byte{}}
}

func (f *fakeImageRepo) Upload(_ context.Context, image *domain.Image) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failName != "" && image.ObjectKey == f.failName {
		return "", errors.New("minio: access denied")
	}
	f.objects[image.ObjectKey] = image.Bytes
	return image.ObjectKey, nil
}

func (f *fakeImageRepo) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeImageRepo) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

func uploadReq(ids ...string) *usecase.UploadImagesReq {
	req := &usecase.UploadImagesReq{}
	for _, id := range ids {
		req.Images = append(req.Images, usecase.UploadImage{ID: id, Data: []byte(id), MimeType: "image/png", Size: int64(len(id)), Name: id + ".png"})
	}
	return req
}

func newInfra(repo usecase.ImageRepository) *MinioInfrastructure {
	return NewMinioInfrastructure(repo, &cfg.MinIOCfg{BucketName: "clip", UploadImagesLimit: 2}, logger.Nop(), context.Background())
}

func TestUploadImages_KeepsOrder(t *testing.T) {
	repo := newFakeImageRepo()
	infra := newInfra(repo)

	res, err := infra.UploadImages(context.Background(), uploadReq("a", "b", "c"))

	require.NoError(t, err)
	assert.Equal(t, []string{"images/a.png", "images/b.png", "images/c.png"}, res.ImagesKeys)
	assert.Equal(t, 3, repo.len())
}

func TestUploadImages_CleansUpOnFailure(t *testing.T) {
	repo := newFakeImageRepo()
	repo.failName = "images/b.png"
	infra := newInfra(repo)

	_, err := infra.UploadImages(context.Background(), uploadReq("a", "b", "c"))
	require.Error(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, infra.WaitForCleanup(ctx))

	assert.Equal(t, 0, repo.len())
}

func TestUploadImages_UnsupportedMime(t *testing.T) {
	infra := newInfra(newFakeImageRepo())
	req := uploadReq("a")
	req.Images[0].MimeType = "application/zip"

	_, err := infra.UploadImages(context.Background(), req)

	assert.Error(t, err)
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "images/123.jpg", ObjectKey("123", "jpg"))
}
