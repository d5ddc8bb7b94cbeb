package usecase

import (
	"context"

	"github.com/DRSN-tech/clip-backend/internal/domain"
	"github.com/DRSN-tech/clip-backend/internal/engine"
)

// Encoder — загруженная модель CLIP (*engine.Engine).
type Encoder interface {
	Info() (domain.ModelInfo, error)
	EncodeImage(ctx context.Context, img domain.ImageBuffer, opts engine.EncodeOptions) (*domain.Embedding, error)
	EncodeImageBatch(ctx context.Context, imgs []domain.ImageBuffer, opts engine.EncodeOptions) ([]domain.Embedding, error)
	EncodeText(ctx context.Context, text string, opts engine.EncodeOptions) (*domain.Embedding, error)
}

type ImagesInfra interface {
	UploadImages(ctx context.Context, req *UploadImagesReq) (*UploadImagesRes, error)
	CleanupImages(keys []string)
}

type MessageProducer interface {
	WriteRawMessage(ctx context.Context, req *WriteRawMessageReq) error
}

// EventEncoder сериализует события для outbox.
type EventEncoder interface {
	EncodeImageIndexed(image *domain.IndexedImage) ([]byte, error)
}

// TxManager выполняет fn в одной транзакции БД.
type TxManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}
