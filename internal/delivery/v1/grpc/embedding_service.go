package grpc

import (
	"context"

	"github.com/DRSN-tech/clip-backend/internal/domain"
	"github.com/DRSN-tech/clip-backend/internal/rpc"
	"github.com/DRSN-tech/clip-backend/internal/usecase"
	"github.com/DRSN-tech/clip-backend/pkg/e"
	"github.com/DRSN-tech/clip-backend/pkg/logger"
)

// EmbeddingService отдаёт локальный движок по gRPC, в том числе другим инстансам с бэкендом remote.
type EmbeddingService struct {
	rpc.UnimplementedEmbeddingServiceServer
	clipUC usecase.ClipUC
	logger logger.Logger
}

func NewEmbeddingService(clipUC usecase.ClipUC, logger logger.Logger) *EmbeddingService {
	return &EmbeddingService{clipUC: clipUC, logger: logger}
}

func (g *EmbeddingService) GetModelInfo(ctx context.Context, _ *rpc.ModelInfoRequest) (*rpc.ModelInfoResponse, error) {
	const op = "grpc.GetModelInfo"

	info, err := g.clipUC.ModelInfo(ctx)
	if err != nil {
		return nil, GRPCErrorResponse(g.logger, op, e.Wrap(op, err))
	}

	return rpc.ModelInfoFromDomain(*info), nil
}

func (g *EmbeddingService) EncodeText(ctx context.Context, req *rpc.EncodeTextRequest) (*rpc.EncodeResponse, error) {
	const op = "grpc.EncodeText"

	emb, err := g.clipUC.EncodeText(ctx, &usecase.EncodeTextReq{
		Text:      req.Text,
		Normalize: req.Normalize,
		Threads:   int(req.Threads),
		Dims:      int(req.Dims),
	})
	if err != nil {
		return nil, GRPCErrorResponse(g.logger, op, e.Wrap(op, err))
	}

	return toEncodeResponse(emb), nil
}

func (g *EmbeddingService) EncodeImage(ctx context.Context, req *rpc.EncodeImageRequest) (*rpc.EncodeResponse, error) {
	const op = "grpc.EncodeImage"

	emb, err := g.clipUC.EncodePixels(ctx, &usecase.EncodePixelsReq{
		Image:   req.Image.ToDomain(),
		Options: toEncodeOptions(req.Threads, req.Dims, req.Normalize),
	})
	if err != nil {
		return nil, GRPCErrorResponse(g.logger, op, e.Wrap(op, err))
	}

	return toEncodeResponse(emb), nil
}

func (g *EmbeddingService) EncodeImageBatch(ctx context.Context, req *rpc.EncodeImageBatchRequest) (*rpc.EncodeBatchResponse, error) {
	const op = "grpc.EncodeImageBatch"

	images := make([]domain.ImageBuffer, len(req.Images))
	for i, img := range req.Images {
		images[i] = img.ToDomain()
	}

	embs, err := g.clipUC.EncodePixelsBatch(ctx, &usecase.EncodePixelsBatchReq{
		Images:  images,
		Options: toEncodeOptions(req.Threads, req.Dims, req.Normalize),
	})
	if err != nil {
		return nil, GRPCErrorResponse(g.logger, op, e.Wrap(op, err))
	}

	res := &rpc.EncodeBatchResponse{Vectors: make([]rpc.EncodeResponse, len(embs))}
	for i := range embs {
		res.Vectors[i] = *toEncodeResponse(&embs[i])
	}

	return res, nil
}

func (g *EmbeddingService) Similarity(ctx context.Context, req *rpc.SimilarityRequest) (*rpc.SimilarityResponse, error) {
	const op = "grpc.Similarity"

	res, err := g.clipUC.Similarity(ctx, req.A, req.B)
	if err != nil {
		return nil, GRPCErrorResponse(g.logger, op, e.Wrap(op, err))
	}

	return &rpc.SimilarityResponse{Cosine: res.Cosine, Dot: res.Dot}, nil
}
