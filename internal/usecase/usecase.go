package usecase

import (
	"context"

	"github.com/DRSN-tech/clip-backend/internal/domain"
)

type ClipUC interface {
	ModelInfo(ctx context.Context) (*domain.ModelInfo, error)
	EncodeText(ctx context.Context, req *EncodeTextReq) (*domain.Embedding, error)
	EncodeImages(ctx context.Context, req *EncodeImagesReq) ([]domain.Embedding, error)
	EncodePixels(ctx context.Context, req *EncodePixelsReq) (*domain.Embedding, error)
	EncodePixelsBatch(ctx context.Context, req *EncodePixelsBatchReq) ([]domain.Embedding, error)
	Similarity(ctx context.Context, a, b []float32) (*SimilarityRes, error)
	CompareTextImage(ctx context.Context, req *CompareReq) (*CompareRes, error)
	ZeroShotClassify(ctx context.Context, req *ClassifyReq) ([]domain.Label, error)
}

type IndexUC interface {
	IndexImages(ctx context.Context, req *IndexImagesReq) (*IndexImagesRes, error)
	SearchByText(ctx context.Context, req *SearchByTextReq) ([]domain.SearchHit, error)
	SearchByImage(ctx context.Context, req *SearchByImageReq) ([]domain.SearchHit, error)
}
