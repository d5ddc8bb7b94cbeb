package usecase

import (
	"context"
	"testing"

	"github.com/DRSN-tech/clip-backend/pkg/e"
	"github.com/DRSN-tech/clip-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClipUseCase_EncodeTextUsesCache(t *testing.T) {
	enc := newFakeEncoder()
	cache := &fakeCache{data: map[string][]float32{}}
	uc := NewClipUC(enc, cache, 0, logger.Nop())

	first, err := uc.EncodeText(context.Background(), NewEncodeTextReq("a photo of a cat", true))
	require.NoError(t, err)
	second, err := uc.EncodeText(context.Background(), NewEncodeTextReq("a photo of a cat", true))
	require.NoError(t, err)

	assert.Equal(t, first.Vector, second.Vector)
	assert.Equal(t, 1, enc.textCalls)
	assert.Len(t, cache.data, 1)
}

func TestClipUseCase_CacheKeyDependsOnNormalize(t *testing.T) {
	assert.NotEqual(t,
		textCacheKey("m.gguf", true, "cat"),
		textCacheKey("m.gguf", false, "cat"),
	)
	assert.NotEqual(t,
		textCacheKey("a.gguf", true, "cat"),
		textCacheKey("b.gguf", true, "cat"),
	)
}

func TestClipUseCase_EncodeTextCacheFailureIgnored(t *testing.T) {
	enc := newFakeEncoder()
	uc := NewClipUC(enc, &fakeCache{data: map[string][]float32{}, failGet: true}, 0, logger.Nop())

	emb, err := uc.EncodeText(context.Background(), NewEncodeTextReq("dog", false))

	require.NoError(t, err)
	assert.Equal(t, testDims, emb.Dim())
}

func TestClipUseCase_EncodeTextEmpty(t *testing.T) {
	uc := NewClipUC(newFakeEncoder(), nil, 0, logger.Nop())

	_, err := uc.EncodeText(context.Background(), NewEncodeTextReq("  ", true))

	assert.ErrorIs(t, err, e.ErrEmptyText)
}

func TestClipUseCase_EncodeImagesKeepsOrder(t *testing.T) {
	enc := newFakeEncoder()
	uc := NewClipUC(enc, nil, 0, logger.Nop())

	images := []UploadedImage{pngUpload(t, "a.png", 3, 2), pngUpload(t, "b.png", 5, 2), pngUpload(t, "c.png", 7, 2)}
	embs, err := uc.EncodeImages(context.Background(), NewEncodeImagesReq(images, true))

	require.NoError(t, err)
	require.Len(t, embs, 3)
	assert.Equal(t, float32(3), embs[0].Vector[0])
	assert.Equal(t, float32(5), embs[1].Vector[0])
	assert.Equal(t, float32(7), embs[2].Vector[0])
}

func TestClipUseCase_EncodeImagesErrors(t *testing.T) {
	uc := NewClipUC(newFakeEncoder(), nil, 0, logger.Nop())

	_, err := uc.EncodeImages(context.Background(), NewEncodeImagesReq(nil, true))
	assert.ErrorIs(t, err, e.ErrNoImages)

	bad := *NewUploadedImage([]byte("not an image"), "text/plain", 12, "notes.txt")
	_, err = uc.EncodeImages(context.Background(), NewEncodeImagesReq([]UploadedImage{bad}, true))
	assert.ErrorIs(t, err, e.ErrUnsupportedMediaType)
}

func TestClipUseCase_Similarity(t *testing.T) {
	uc := NewClipUC(newFakeEncoder(), nil, 0, logger.Nop())

	tests := map[string]struct {
		a, b    []float32
		cos     float32
		wantErr error
	}{
		"identical":  {a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, cos: 1},
		"orthogonal": {a: []float32{1, 0}, b: []float32{0, 1}, cos: 0},
		"mismatch":   {a: []float32{1, 0}, b: []float32{1}, wantErr: e.ErrInvalidArgument},
		"empty":      {a: nil, b: nil, wantErr: e.ErrInvalidArgument},
		"zero":       {a: []float32{0, 0}, b: []float32{1, 0}, wantErr: e.ErrInvalidArgument},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			res, err := uc.Similarity(context.Background(), tt.a, tt.b)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.cos, res.Cosine, 1e-6)
		})
	}
}

func TestClipUseCase_CompareTextImage(t *testing.T) {
	enc := newFakeEncoder()
	enc.text["a cat"] = []float32{1, 0, 0, 0}
	uc := NewClipUC(enc, nil, 0, logger.Nop())

	res, err := uc.CompareTextImage(context.Background(), NewCompareReq("a cat", pngUpload(t, "cat.png", 4, 4)))

	require.NoError(t, err)
	assert.InDelta(t, 1, res.Score, 1e-6)
}

func TestClipUseCase_ZeroShotClassify(t *testing.T) {
	enc := newFakeEncoder()
	enc.text["a cat"] = []float32{1, 0, 0, 0}
	enc.text["a dog"] = []float32{0, 1, 0, 0}
	uc := NewClipUC(enc, nil, 0, logger.Nop())
	img := pngUpload(t, "cat.png", 4, 4)

	labels, err := uc.ZeroShotClassify(context.Background(), NewClassifyReq(img, []string{"a dog", " ", "a cat", "a dog"}, 0))

	require.NoError(t, err)
	require.Len(t, labels, 2)
	assert.Equal(t, "a cat", labels[0].Text)
	assert.Equal(t, 1, labels[0].Index)
	assert.InDelta(t, 1, labels[0].Score, 1e-6)
	assert.InDelta(t, 1, labels[0].Score+labels[1].Score, 1e-6)

	top, err := uc.ZeroShotClassify(context.Background(), NewClassifyReq(img, []string{"a dog", "a cat"}, 1))
	require.NoError(t, err)
	assert.Len(t, top, 1)
}

func TestClipUseCase_ZeroShotNeedsTwoLabels(t *testing.T) {
	uc := NewClipUC(newFakeEncoder(), nil, 0, logger.Nop())

	_, err := uc.ZeroShotClassify(context.Background(), NewClassifyReq(pngUpload(t, "x.png", 2, 2), []string{"cat", "cat", ""}, 0))

	assert.ErrorIs(t, err, e.ErrNotEnoughLabels)
}
