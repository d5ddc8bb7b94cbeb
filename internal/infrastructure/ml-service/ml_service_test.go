package ml_service

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DRSN-tech/clip-backend/internal/cfg"
	"github.com/DRSN-tech/clip-backend/internal/domain"
	"github.com/DRSN-tech/clip-backend/internal/rpc"
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

type fakeServer struct {
	rpc.UnimplementedEmbeddingServiceServer

	failFirst   int32 // сколько первых вызовов вернут Unavailable
	calls       atomic.Int32
	batchCalls  atomic.Int32
	lastThreads atomic.Int32
}

func (f *fakeServer) fail() error {
	if f.calls.Add(1) <= f.failFirst {
		return status.Error(codes.Unavailable, "warming up")
	}
	return nil
}

func (f *fakeServer) GetModelInfo(context.Context, *rpc.ModelInfoRequest) (*rpc.ModelInfoResponse, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return rpc.ModelInfoFromDomain(domain.ModelInfo{
		Path:   "/models/clip-vit-b32.gguf",
		Vision: domain.DefaultVisionHyperParams,
		Text:   domain.DefaultTextHyperParams,
	}), nil
}

func (f *fakeServer) EncodeText(_ context.Context, req *rpc.EncodeTextRequest) (*rpc.EncodeResponse, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	if req.Text == "" {
		return nil, status.Error(codes.InvalidArgument, "empty text")
	}
	f.lastThreads.Store(req.Threads)
	return &rpc.EncodeResponse{Vector: []float32{float32(len(req.Text)), 0}}, nil
}

func (f *fakeServer) EncodeImageBatch(_ context.Context, req *rpc.EncodeImageBatchRequest) (*rpc.EncodeBatchResponse, error) {
	f.batchCalls.Add(1)
	res := &rpc.EncodeBatchResponse{}
	for _, img := range req.Images {
		res.Vectors = append(res.Vectors, rpc.EncodeResponse{Vector: []float32{float32(img.Width)}})
	}
	return res, nil
}

func newTestService(t *testing.T, srv *fakeServer, c *cfg.MLServiceCfg) *MLService {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	rpc.RegisterEmbeddingServiceServer(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	m := NewMLService(rpc.NewEmbeddingServiceClient(conn), conn, c, logger.Nop())
	t.Cleanup(func() { _ = m.Close() })

	return m
}

func testCfg() *cfg.MLServiceCfg {
	return &cfg.MLServiceCfg{MaxConcurrent: 2, MaxRetries: 3, BatchSize: 2, Timeout: time.Second}
}

func TestMLService_Load(t *testing.T) {
	m := newTestService(t, &fakeServer{}, testCfg())

	info, err := m.Load("grpc://ml-service:50051", 1)

	require.NoError(t, err)
	assert.Equal(t, "/models/clip-vit-b32.gguf", info.Path)
	assert.Equal(t, 512, info.ProjectionDim())
}

func TestMLService_RetriesUnavailable(t *testing.T) {
	srv := &fakeServer{failFirst: 1}
	m := newTestService(t, srv, testCfg())

	vec, err := m.EncodeText(context.Background(), "a cat", 4, 2, true)

	require.NoError(t, err)
	assert.Equal(t, []float32{5, 0}, vec)
	assert.Equal(t, int32(2), srv.calls.Load())
	assert.Equal(t, int32(4), srv.lastThreads.Load())
}

func TestMLService_GivesUpAfterMaxRetries(t *testing.T) {
	srv := &fakeServer{failFirst: 10}
	c := testCfg()
	c.MaxRetries = 2
	m := newTestService(t, srv, c)

	_, err := m.EncodeText(context.Background(), "a cat", 1, 2, true)

	assert.ErrorIs(t, err, e.ErrEngineUnavailable)
	assert.Equal(t, int32(2), srv.calls.Load())
}

func TestMLService_InvalidArgumentNotRetried(t *testing.T) {
	srv := &fakeServer{}
	m := newTestService(t, srv, testCfg())

	_, err := m.EncodeText(context.Background(), "", 1, 2, true)

	assert.ErrorIs(t, err, e.ErrInvalidArgument)
	assert.Equal(t, int32(1), srv.calls.Load())
}

func TestMLService_EncodeImageBatchKeepsOrder(t *testing.T) {
	srv := &fakeServer{}
	m := newTestService(t, srv, testCfg())

	imgs := make([]domain.ImageBuffer, 5)
	for i := range imgs {
		w := i + 1
		imgs[i] = domain.NewImageBuffer(w, 1, make([]byte, w*3))
	}

	vecs, err := m.EncodeImageBatch(context.Background(), imgs, 1, 1, false)

	require.NoError(t, err)
	require.Len(t, vecs, 5)
	for i, v := range vecs {
		assert.Equal(t, []float32{float32(i + 1)}, v)
	}
	assert.Equal(t, int32(3), srv.batchCalls.Load())
}

func TestMLService_CloseIdempotent(t *testing.T) {
	m := newTestService(t, &fakeServer{}, testCfg())

	require.NoError(t, m.Close())
	assert.NoError(t, m.Close())
}
