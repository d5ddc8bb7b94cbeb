package usecase

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/DRSN-tech/clip-backend/internal/domain"
	"github.com/DRSN-tech/clip-backend/internal/engine"
	"github.com/stretchr/testify/require"
)

const testDims = 4

type fakeEncoder struct {
	mu        sync.Mutex
	text      map[string][]float32
	image     []float32
	textCalls int
	batches   [][]domain.ImageBuffer
}

func newFakeEncoder() *fakeEncoder {
	return &fakeEncoder{
		text:  map[string][]float32{},
		image: []float32{1, 0, 0, 0},
	}
}

func (f *fakeEncoder) Info() (domain.ModelInfo, error) {
	vision := domain.DefaultVisionHyperParams
	vision.ProjectionDim = testDims
	text := domain.DefaultTextHyperParams
	text.ProjectionDim = testDims
	return domain.ModelInfo{Path: "models/test.gguf", Vision: vision, Text: text}, nil
}

func (f *fakeEncoder) EncodeImage(_ context.Context, _ domain.ImageBuffer, opts engine.EncodeOptions) (*domain.Embedding, error) {
	return domain.NewEmbedding(domain.ModalityImage, f.image, opts.Normalize), nil
}

func (f *fakeEncoder) EncodeImageBatch(_ context.Context, imgs []domain.ImageBuffer, opts engine.EncodeOptions) ([]domain.Embedding, error) {
	f.mu.Lock()
	f.batches = append(f.batches, imgs)
	f.mu.Unlock()

	out := make([]domain.Embedding, len(imgs))
	for i, img := range imgs {
		out[i] = *domain.NewEmbedding(domain.ModalityImage, []float32{float32(img.Width), 1, 0, 0}, opts.Normalize)
	}
	return out, nil
}

func (f *fakeEncoder) EncodeText(_ context.Context, text string, opts engine.EncodeOptions) (*domain.Embedding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.textCalls++

	vec, ok := f.text[text]
	if !ok {
		vec = []float32{0, 0, 0, 1}
	}
	return domain.NewEmbedding(domain.ModalityText, vec, opts.Normalize), nil
}

type fakeCache struct {
	data    map[string][]float32
	failGet bool
}

func (f *fakeCache) GetTextEmbedding(_ context.Context, key string) ([]float32, error) {
	if f.failGet {
		return nil, errors.New("redis: connection refused")
	}
	return f.data[key], nil
}

func (f *fakeCache) SetTextEmbedding(_ context.Context, key string, vector []float32) error {
	f.data[key] = vector
	return nil
}

type fakeImagesInfra struct {
	uploaded [][]UploadImage
	cleaned  []string
	err      error
}

func (f *fakeImagesInfra) UploadImages(_ context.Context, req *UploadImagesReq) (*UploadImagesRes, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.uploaded = append(f.uploaded, req.Images)
	keys := make([]string, len(req.Images))
	for i, img := range req.Images {
		keys[i] = "images/" + img.ID + ".png"
	}
	return NewUploadImagesRes(keys), nil
}

func (f *fakeImagesInfra) CleanupImages(keys []string) {
	f.cleaned = append(f.cleaned, keys...)
}

type fakeRecordRepo struct {
	records []domain.IndexedImage
}

func (f *fakeRecordRepo) CreateBatch(_ context.Context, images []domain.IndexedImage) error {
	f.records = append(f.records, images...)
	return nil
}

func (f *fakeRecordRepo) GetByIDs(_ context.Context, ids []string) ([]domain.IndexedImage, error) {
	var out []domain.IndexedImage
	for _, r := range f.records {
		for _, id := range ids {
			if r.ID == id {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

type fakeOutbox struct {
	events []*OutboxEvent
}

func (f *fakeOutbox) Create(_ context.Context, event *OutboxEvent) (*OutboxEvent, error) {
	event.ID = int64(len(f.events) + 1)
	f.events = append(f.events, event)
	return event, nil
}

func (f *fakeOutbox) GetAndMarkAsProcessing(context.Context, int) ([]*OutboxEvent, error) {
	return nil, nil
}

func (f *fakeOutbox) MarkAsProcessed(context.Context, int64) error { return nil }

func (f *fakeOutbox) ResetStale(context.Context, time.Duration) (int64, error) { return 0, nil }

type fakeEmbeddingRepo struct {
	points    []domain.Point
	deleted   []string
	upsertErr error
	lastReq   *VectorSearchReq
	hits      []domain.SearchHit
}

func (f *fakeEmbeddingRepo) Upsert(_ context.Context, points []domain.Point) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.points = append(f.points, points...)
	return nil
}

func (f *fakeEmbeddingRepo) Search(_ context.Context, req *VectorSearchReq) ([]domain.SearchHit, error) {
	f.lastReq = req
	return f.hits, nil
}

func (f *fakeEmbeddingRepo) Delete(_ context.Context, ids []string) error {
	f.deleted = append(f.deleted, ids...)
	return nil
}

type fakeEvents struct{}

func (fakeEvents) EncodeImageIndexed(image *domain.IndexedImage) ([]byte, error) {
	return []byte(image.ID), nil
}

// fakeTx имитирует транзакцию: commitErr возвращается после успешного fn.
type fakeTx struct {
	commitErr  error
	rolledBack bool
	committed  bool
}

func (f *fakeTx) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := fn(ctx); err != nil {
		f.rolledBack = true
		return err
	}
	if f.commitErr != nil {
		f.rolledBack = true
		return f.commitErr
	}
	f.committed = true
	return nil
}

func pngUpload(t *testing.T, name string, w, h int) UploadedImage {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return *NewUploadedImage(buf.Bytes(), "image/png", int64(buf.Len()), name)
}
