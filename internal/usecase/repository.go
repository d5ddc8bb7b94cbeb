package usecase

import (
	"context"
	"time"

	"github.com/DRSN-tech/clip-backend/internal/domain"
)

type ImageRepository interface {
	Upload(ctx context.Context, image *domain.Image) (string, error)
	Delete(ctx context.Context, key string) error
}

type ImageRecordRepository interface {
	CreateBatch(ctx context.Context, images []domain.IndexedImage) error
	GetByIDs(ctx context.Context, ids []string) ([]domain.IndexedImage, error)
}

type OutboxRepository interface {
	Create(ctx context.Context, event *OutboxEvent) (*OutboxEvent, error)
	GetAndMarkAsProcessing(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkAsProcessed(ctx context.Context, id int64) error
	ResetStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

type EmbeddingRepository interface {
	Upsert(ctx context.Context, points []domain.Point) error
	Search(ctx context.Context, req *VectorSearchReq) ([]domain.SearchHit, error)
	Delete(ctx context.Context, ids []string) error
}

// CacheRepository хранит текстовые эмбеддинги. Промах возвращает (nil, nil).
type CacheRepository interface {
	GetTextEmbedding(ctx context.Context, key string) ([]float32, error)
	SetTextEmbedding(ctx context.Context, key string, vector []float32) error
}
