package qdrant

import (
	"context"
	"time"

	"github.com/DRSN-tech/clip-backend/internal/cfg"
	"github.com/DRSN-tech/clip-backend/internal/domain"
	"github.com/DRSN-tech/clip-backend/internal/usecase"
	"github.com/DRSN-tech/clip-backend/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
)

// EmbeddingRepo хранит векторы изображений в коллекции Qdrant с косинусной метрикой.
type EmbeddingRepo struct {
	client *qdrant.Client
	cfg    *cfg.QdrantCfg
}

func NewEmbeddingRepo(client *qdrant.Client, cfg *cfg.QdrantCfg) *EmbeddingRepo {
	return &EmbeddingRepo{
		client: client,
		cfg:    cfg,
	}
}

// Upsert сохраняет или обновляет точки и ждёт их применения.
func (q *EmbeddingRepo) Upsert(ctx context.Context, points []domain.Point) error {
	reqPoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, point := range points {
		reqPoints = append(reqPoints, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(point.ID),
			Vectors: qdrant.NewVectors(point.Vector...),
			Payload: qdrant.NewValueMap(point.Payload),
		})
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Wait:           qdrant.PtrOf(true),
		Points:         reqPoints,
	})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// Search возвращает ближайшие по косинусу изображения, отсортированные по убыванию сходства.
func (q *EmbeddingRepo) Search(ctx context.Context, req *usecase.VectorSearchReq) ([]domain.SearchHit, error) {
	limit := req.Limit

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Query:          qdrant.NewQuery(req.Vector...),
		Limit:          &limit,
		ScoreThreshold: req.MinScore,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	hits := make([]domain.SearchHit, 0, len(points))
	for _, p := range points {
		image := imageFromPayload(p.GetPayload())
		if image.ID == "" {
			image.ID = p.GetId().GetUuid()
		}
		hits = append(hits, *domain.NewSearchHit(image, p.GetScore()))
	}

	return hits, nil
}

// Delete удаляет точки по идентификаторам изображений.
func (q *EmbeddingRepo) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewIDUUID(id)
	}

	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// imageFromPayload восстанавливает запись изображения из payload точки (см. domain.NewPayload).
func imageFromPayload(payload map[string]*qdrant.Value) domain.IndexedImage {
	image := domain.IndexedImage{
		ID:        payload["image_id"].GetStringValue(),
		Name:      payload["name"].GetStringValue(),
		ObjectKey: payload["object_key"].GetStringValue(),
		MimeType:  payload["mime_type"].GetStringValue(),
		Width:     int(payload["width"].GetIntegerValue()),
		Height:    int(payload["height"].GetIntegerValue()),
		ModelPath: payload["model_path"].GetStringValue(),
	}

	if ns := payload["created_at"].GetIntegerValue(); ns != 0 {
		image.CreatedAt = time.Unix(0, ns).UTC()
	}

	return image
}
