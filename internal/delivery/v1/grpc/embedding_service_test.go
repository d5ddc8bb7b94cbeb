package grpc

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/DRSN-tech/clip-backend/internal/cfg"
	"github.com/DRSN-tech/clip-backend/internal/domain"
	"github.com/DRSN-tech/clip-backend/internal/engine"
	"github.com/DRSN-tech/clip-backend/internal/rpc"
	"github.com/DRSN-tech/clip-backend/internal/usecase"
	"github.com/DRSN-tech/clip-backend/pkg/e"
	"github.com/DRSN-tech/clip-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type fakeClipUC struct {
	err       error
	lastText  *usecase.EncodeTextReq
	lastBatch *usecase.EncodePixelsBatchReq
}

func (f *fakeClipUC) ModelInfo(context.Context) (*domain.ModelInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return domain.NewModelInfo("models/clip.gguf", domain.DefaultVisionHyperParams, domain.DefaultTextHyperParams), nil
}

func (f *fakeClipUC) EncodeText(_ context.Context, req *usecase.EncodeTextReq) (*domain.Embedding, error) {
	f.lastText = req
	if f.err != nil {
		return nil, f.err
	}
	return domain.NewEmbedding(domain.ModalityText, []float32{0, 1}, req.Normalize), nil
}

func (f *fakeClipUC) EncodeImages(context.Context, *usecase.EncodeImagesReq) ([]domain.Embedding, error) {
	return nil, f.err
}

func (f *fakeClipUC) EncodePixels(_ context.Context, req *usecase.EncodePixelsReq) (*domain.Embedding, error) {
	if err := req.Image.Validate(); err != nil {
		return nil, e.Wrap("EncodePixels", err)
	}
	return domain.NewEmbedding(domain.ModalityImage, []float32{float32(req.Image.Width), 0}, req.Options.Normalize), nil
}

func (f *fakeClipUC) EncodePixelsBatch(_ context.Context, req *usecase.EncodePixelsBatchReq) ([]domain.Embedding, error) {
	f.lastBatch = req
	out := make([]domain.Embedding, len(req.Images))
	for i, img := range req.Images {
		out[i] = *domain.NewEmbedding(domain.ModalityImage, []float32{float32(img.Width), float32(i)}, req.Options.Normalize)
	}
	return out, nil
}

func (f *fakeClipUC) Similarity(_ context.Context, a, b []float32) (*usecase.SimilarityRes, error) {
	if len(a) != len(b) {
		return nil, e.ErrInvalidArgument
	}
	return &usecase.SimilarityRes{Cosine: 0.5, Dot: 3}, nil
}

func (f *fakeClipUC) CompareTextImage(context.Context, *usecase.CompareReq) (*usecase.CompareRes, error) {
	return nil, f.err
}

func (f *fakeClipUC) ZeroShotClassify(context.Context, *usecase.ClassifyReq) ([]domain.Label, error) {
	return nil, f.err
}

func newTestClient(t *testing.T, clipUC usecase.ClipUC) rpc.EmbeddingServiceClient {
	t.Helper()

	srv := NewGRPCServer(&cfg.GRPCConfig{NetworkMode: "tcp"}, logger.Nop())
	srv.RegisterServices(clipUC)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return rpc.NewEmbeddingServiceClient(conn)
}

func TestEmbeddingService_GetModelInfo(t *testing.T) {
	client := newTestClient(t, &fakeClipUC{})

	res, err := client.GetModelInfo(context.Background(), &rpc.ModelInfoRequest{})

	require.NoError(t, err)
	info := rpc.ModelInfoToDomain(res)
	assert.Equal(t, "models/clip.gguf", info.Path)
	assert.Equal(t, domain.DefaultVisionHyperParams, info.Vision)
	assert.Equal(t, domain.DefaultTextHyperParams, info.Text)
}

func TestEmbeddingService_Errors(t *testing.T) {
	tests := map[string]struct {
		err  error
		code codes.Code
		want error
	}{
		"not loaded":  {err: e.ErrModelNotLoaded, code: codes.FailedPrecondition, want: e.ErrModelNotLoaded},
		"closed":      {err: e.Wrap("Engine.EncodeText", e.ErrModelClosed), code: codes.FailedPrecondition, want: e.ErrModelClosed},
		"unavailable": {err: e.ErrEngineUnavailable, code: codes.Unavailable, want: e.ErrEngineUnavailable},
		"empty text":  {err: e.Wrap("ClipUseCase.EncodeText", e.ErrEmptyText), code: codes.InvalidArgument, want: e.ErrInvalidArgument},
		"encode fail": {err: e.ErrEncode, code: codes.InvalidArgument, want: e.ErrEncode},
		"internal":    {err: errors.New("disk full"), code: codes.Internal, want: e.ErrEncode},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, &fakeClipUC{err: tt.err})

			_, err := client.EncodeText(context.Background(), &rpc.EncodeTextRequest{Text: "cat"})

			require.Error(t, err)
			assert.Equal(t, tt.code, status.Code(err))
			assert.ErrorIs(t, rpc.FromStatus(err), tt.want)
		})
	}
}

// unitBackend возвращает единичный вектор размерности модели по умолчанию.
type unitBackend struct{}

func (unitBackend) Load(path string, _ int) (domain.ModelInfo, error) {
	return *domain.NewModelInfo(path, domain.DefaultVisionHyperParams, domain.DefaultTextHyperParams), nil
}

func (unitBackend) EncodeImage(context.Context, domain.ImageBuffer, int, int, bool) ([]float32, error) {
	return unitVector(), nil
}

func (unitBackend) EncodeImageBatch(_ context.Context, imgs []domain.ImageBuffer, _ int, _ int, _ bool) ([][]float32, error) {
	out := make([][]float32, len(imgs))
	for i := range imgs {
		out[i] = unitVector()
	}
	return out, nil
}

func (unitBackend) EncodeText(context.Context, string, int, int, bool) ([]float32, error) {
	return unitVector(), nil
}

func (unitBackend) Close() error { return nil }

func unitVector() []float32 {
	v := make([]float32, domain.DefaultVisionHyperParams.ProjectionDim)
	v[0] = 1
	return v
}

func TestEmbeddingService_EngineErrors(t *testing.T) {
	eng := engine.New(unitBackend{}, logger.Nop())
	_, err := eng.Load("models/clip.gguf", 0)
	require.NoError(t, err)

	client := newTestClient(t, usecase.NewClipUC(eng, nil, 0, logger.Nop()))

	_, err = client.EncodeText(context.Background(), &rpc.EncodeTextRequest{Text: "cat", Dims: 7})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.ErrorIs(t, rpc.FromStatus(err), e.ErrEncode)

	require.NoError(t, eng.Close())

	for range 2 {
		_, err = client.EncodeText(context.Background(), &rpc.EncodeTextRequest{Text: "cat"})
		assert.Equal(t, codes.FailedPrecondition, status.Code(err))
		assert.False(t, rpc.IsRetryable(err))
		assert.ErrorIs(t, rpc.FromStatus(err), e.ErrModelClosed)
	}
}

func TestEmbeddingService_EncodeText(t *testing.T) {
	clipUC := &fakeClipUC{}
	client := newTestClient(t, clipUC)

	res, err := client.EncodeText(context.Background(), &rpc.EncodeTextRequest{Text: "a cat", Threads: 2, Dims: 512, Normalize: true})

	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, res.Vector)
	assert.Equal(t, usecase.EncodeTextReq{Text: "a cat", Normalize: true, Threads: 2, Dims: 512}, *clipUC.lastText)
}

func TestEmbeddingService_EncodeImage(t *testing.T) {
	client := newTestClient(t, &fakeClipUC{})

	res, err := client.EncodeImage(context.Background(), &rpc.EncodeImageRequest{
		Image: rpc.Image{Width: 2, Height: 1, Pixels: make([]byte, 6)},
	})
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 0}, res.Vector)

	_, err = client.EncodeImage(context.Background(), &rpc.EncodeImageRequest{
		Image: rpc.Image{Width: 2, Height: 1, Pixels: make([]byte, 5)},
	})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestEmbeddingService_EncodeImageBatch(t *testing.T) {
	clipUC := &fakeClipUC{}
	client := newTestClient(t, clipUC)

	res, err := client.EncodeImageBatch(context.Background(), &rpc.EncodeImageBatchRequest{
		Images: []rpc.Image{
			{Width: 1, Height: 1, Pixels: []byte{1, 2, 3}},
			{Width: 2, Height: 1, Pixels: []byte{1, 2, 3, 4, 5, 6}},
		},
		Threads:   4,
		Normalize: true,
	})

	require.NoError(t, err)
	require.Len(t, res.Vectors, 2)
	assert.Equal(t, []float32{2, 1}, res.Vectors[1].Vector)
	assert.Equal(t, 4, clipUC.lastBatch.Options.Threads)
	assert.True(t, clipUC.lastBatch.Options.Normalize)
	assert.Equal(t, []byte{1, 2, 3}, clipUC.lastBatch.Images[0].Pixels)
}

func TestEmbeddingService_Similarity(t *testing.T) {
	client := newTestClient(t, &fakeClipUC{})

	res, err := client.Similarity(context.Background(), &rpc.SimilarityRequest{A: []float32{1, 0}, B: []float32{1, 1}})
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), res.Cosine)

	_, err = client.Similarity(context.Background(), &rpc.SimilarityRequest{A: []float32{1}, B: []float32{1, 1}})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
