package converter

import (
	"github.com/DRSN-tech/clip-backend/internal/domain"
	"github.com/DRSN-tech/clip-backend/internal/usecase"
)

// ImageRecordConverter преобразует записи индекса между domain и моделью PostgreSQL.
type ImageRecordConverter struct{}

func NewImageRecordConverter() ImageRecordConverter {
	return ImageRecordConverter{}
}

func (ImageRecordConverter) ToModel(entity *domain.IndexedImage) *ImageRecordModel {
	return &ImageRecordModel{
		ID:        entity.ID,
		Name:      entity.Name,
		ObjectKey: entity.ObjectKey,
		MimeType:  entity.MimeType,
		Width:     int32(entity.Width),
		Height:    int32(entity.Height),
		ModelPath: entity.ModelPath,
		CreatedAt: entity.CreatedAt,
	}
}

func (ImageRecordConverter) ToEntity(model *ImageRecordModel) *domain.IndexedImage {
	return &domain.IndexedImage{
		ID:        model.ID,
		Name:      model.Name,
		ObjectKey: model.ObjectKey,
		MimeType:  model.MimeType,
		Width:     int(model.Width),
		Height:    int(model.Height),
		ModelPath: model.ModelPath,
		CreatedAt: model.CreatedAt,
	}
}

// OutboxEventConverter преобразует события между usecase и моделью PostgreSQL.
type OutboxEventConverter struct{}

func NewOutboxEventConverter() OutboxEventConverter {
	return OutboxEventConverter{}
}

func (OutboxEventConverter) ToModel(entity *usecase.OutboxEvent) *OutboxEventModel {
	return &OutboxEventModel{
		ID:          entity.ID,
		EventID:     entity.EventID,
		EventType:   string(entity.EventType),
		AggregateID: entity.AggregateID,
		Payload:     entity.Payload,
		Status:      string(entity.Status),
		CreatedAt:   entity.CreatedAt,
		ProcessedAt: entity.ProcessedAt,
	}
}

func (OutboxEventConverter) ToEntity(model *OutboxEventModel) *usecase.OutboxEvent {
	return &usecase.OutboxEvent{
		ID:          model.ID,
		EventID:     model.EventID,
		EventType:   usecase.OutboxEventType(model.EventType),
		AggregateID: model.AggregateID,
		Payload:     model.Payload,
		Status:      usecase.OutboxStatus(model.Status),
		CreatedAt:   model.CreatedAt,
		ProcessedAt: model.ProcessedAt,
	}
}

func (c OutboxEventConverter) ToArrEntity(models []*OutboxEventModel) []*usecase.OutboxEvent {
	out := make([]*usecase.OutboxEvent, 0, len(models))
	for _, m := range models {
		out = append(out, c.ToEntity(m))
	}
	return out
}
