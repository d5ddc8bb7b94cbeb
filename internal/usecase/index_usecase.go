package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/DRSN-tech/clip-backend/internal/cfg"
	"github.com/DRSN-tech/clip-backend/internal/domain"
	"github.com/DRSN-tech/clip-backend/internal/engine"
	"github.com/DRSN-tech/clip-backend/pkg/e"
	"github.com/DRSN-tech/clip-backend/pkg/imgbuf"
	"github.com/DRSN-tech/clip-backend/pkg/logger"
	"github.com/google/uuid"
)

// MaxSearchLimit — верхняя граница числа результатов поиска
const MaxSearchLimit = 100

// IndexUseCase реализует индексацию изображений и поиск по ним.
type IndexUseCase struct {
	encoder       Encoder
	clip          ClipUC
	imagesInfra   ImagesInfra
	recordRepo    ImageRecordRepository
	outboxRepo    OutboxRepository
	embeddingRepo EmbeddingRepository
	events        EventEncoder
	txManager     TxManager
	cfg           *cfg.IndexCfg
	logger        logger.Logger
	now           func() time.Time
}

func NewIndexUC(
	encoder Encoder,
	clip ClipUC,
	imagesInfra ImagesInfra,
	recordRepo ImageRecordRepository,
	outboxRepo OutboxRepository,
	embeddingRepo EmbeddingRepository,
	events EventEncoder,
	txManager TxManager,
	cfg *cfg.IndexCfg,
	logger logger.Logger,
) *IndexUseCase {
	return &IndexUseCase{
		encoder:       encoder,
		clip:          clip,
		imagesInfra:   imagesInfra,
		recordRepo:    recordRepo,
		outboxRepo:    outboxRepo,
		embeddingRepo: embeddingRepo,
		events:        events,
		txManager:     txManager,
		cfg:           cfg,
		logger:        logger,
		now:           time.Now,
	}
}

// IndexImages кодирует изображения, сохраняет оригиналы в MinIO, записи и outbox-события в PostgreSQL
// и векторы в Qdrant. При ошибке транзакция откатывается, а загруженные объекты удаляются в фоне.
func (i *IndexUseCase) IndexImages(ctx context.Context, req *IndexImagesReq) (res *IndexImagesRes, err error) {
	const op = "IndexUseCase.IndexImages"

	if err := i.validateImages(req.Images); err != nil {
		return nil, e.Wrap(op, err)
	}

	info, err := i.encoder.Info()
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	records, bufs, err := i.prepareRecords(req.Images, info.Path)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	// Векторы считаются до загрузки в MinIO, чтобы не оставлять объекты при ошибке кодирования
	vectors, err := i.encodeChunks(ctx, bufs)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	uploadRes, err := i.imagesInfra.UploadImages(ctx, i.uploadReq(req.Images, records))
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	var upserted bool
	defer func() {
		if err == nil {
			return
		}

		i.logger.Warnf("Cleaning up orphaned images after indexing failure. count: %d, error: %v", len(uploadRes.ImagesKeys), err)
		i.imagesInfra.CleanupImages(uploadRes.ImagesKeys)

		if upserted {
			if delErr := i.embeddingRepo.Delete(context.WithoutCancel(ctx), ids(records)); delErr != nil {
				i.logger.Errorf(delErr, "failed to delete orphaned points")
			}
		}
	}()

	for idx := range records {
		records[idx].ObjectKey = uploadRes.ImagesKeys[idx]
	}

	err = i.txManager.Do(ctx, func(ctx context.Context) error {
		if err := i.recordRepo.CreateBatch(ctx, records); err != nil {
			return err
		}

		for idx := range records {
			if err := i.createIndexedEvent(ctx, &records[idx]); err != nil {
				return err
			}
		}

		points := make([]domain.Point, len(records))
		for idx := range records {
			points[idx] = *domain.NewPoint(records[idx].ID, vectors[idx], domain.NewPayload(&records[idx]))
		}

		// Векторы пишутся последними: если Qdrant недоступен, записи в БД откатываются
		if err := i.embeddingRepo.Upsert(ctx, points); err != nil {
			return err
		}
		upserted = true

		return nil
	})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	i.logger.Infof("indexed %d images", len(records))

	return &IndexImagesRes{Images: records}, nil
}

// SearchByText ищет изображения, наиболее близкие к текстовому запросу.
func (i *IndexUseCase) SearchByText(ctx context.Context, req *SearchByTextReq) ([]domain.SearchHit, error) {
	const op = "IndexUseCase.SearchByText"

	if strings.TrimSpace(req.Query) == "" {
		return nil, e.Wrap(op, e.ErrEmptyText)
	}

	searchReq, err := i.searchReq(req.Limit, req.MinScore)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	emb, err := i.clip.EncodeText(ctx, NewEncodeTextReq(req.Query, true))
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	searchReq.Vector = emb.Vector

	hits, err := i.search(ctx, searchReq)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return hits, nil
}

// SearchByImage ищет изображения, похожие на загруженное.
func (i *IndexUseCase) SearchByImage(ctx context.Context, req *SearchByImageReq) ([]domain.SearchHit, error) {
	const op = "IndexUseCase.SearchByImage"

	searchReq, err := i.searchReq(req.Limit, req.MinScore)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	buf, err := imgbuf.Decode(req.Image.Data, imgbuf.Options{MaxSide: i.cfg.MaxImageSide})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	emb, err := i.encoder.EncodeImage(ctx, buf, engine.EncodeOptions{Normalize: true})
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	searchReq.Vector = emb.Vector

	hits, err := i.search(ctx, searchReq)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return hits, nil
}

// search запрашивает Qdrant и сверяет найденные точки с записями в PostgreSQL.
// Точки без записи (например, после неудачной компенсации) отбрасываются.
func (i *IndexUseCase) search(ctx context.Context, req *VectorSearchReq) ([]domain.SearchHit, error) {
	hits, err := i.embeddingRepo.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	if len(hits) == 0 {
		return hits, nil
	}

	hitIDs := make([]string, len(hits))
	for idx, h := range hits {
		hitIDs[idx] = h.Image.ID
	}

	records, err := i.recordRepo.GetByIDs(ctx, hitIDs)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domain.IndexedImage, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	out := make([]domain.SearchHit, 0, len(hits))
	for _, h := range hits {
		record, ok := byID[h.Image.ID]
		if !ok {
			i.logger.Warnf("search hit %s has no image record, skipping", h.Image.ID)
			continue
		}
		out = append(out, *domain.NewSearchHit(record, h.Score))
	}

	return out, nil
}

func (i *IndexUseCase) validateImages(images []UploadedImage) error {
	if len(images) == 0 {
		return e.ErrNoImages
	}

	if len(images) > i.cfg.MaxImages {
		return fmt.Errorf("%w: got %d, max %d", e.ErrTooManyImages, len(images), i.cfg.MaxImages)
	}

	for _, img := range images {
		if !imgbuf.IsSupportedMIME(img.MimeType) {
			return fmt.Errorf("%w: %s (%s)", e.ErrUnsupportedMediaType, img.Name, img.MimeType)
		}
	}

	return nil
}

// prepareRecords декодирует изображения и создаёт записи индекса с новыми идентификаторами.
func (i *IndexUseCase) prepareRecords(images []UploadedImage, modelPath string) ([]domain.IndexedImage, []domain.ImageBuffer, error) {
	// PostgreSQL хранит время с точностью до микросекунд
	createdAt := i.now().UTC().Truncate(time.Microsecond)

	records := make([]domain.IndexedImage, len(images))
	bufs := make([]domain.ImageBuffer, len(images))
	for idx, img := range images {
		width, height, err := imgbuf.Dimensions(img.Data)
		if err != nil {
			return nil, nil, fmt.Errorf("image %d (%s): %w", idx, img.Name, err)
		}

		buf, err := imgbuf.Decode(img.Data, imgbuf.Options{MaxSide: i.cfg.MaxImageSide})
		if err != nil {
			return nil, nil, fmt.Errorf("image %d (%s): %w", idx, img.Name, err)
		}

		bufs[idx] = buf
		records[idx] = domain.IndexedImage{
			ID:        uuid.NewString(),
			Name:      img.Name,
			MimeType:  img.MimeType,
			Width:     width,
			Height:    height,
			ModelPath: modelPath,
			CreatedAt: createdAt,
		}
	}

	return records, bufs, nil
}

// encodeChunks кодирует изображения батчами по cfg.BatchSize, порядок векторов сохраняется.
func (i *IndexUseCase) encodeChunks(ctx context.Context, bufs []domain.ImageBuffer) ([][]float32, error) {
	vectors := make([][]float32, 0, len(bufs))
	for start := 0; start < len(bufs); start += i.cfg.BatchSize {
		end := min(start+i.cfg.BatchSize, len(bufs))

		embs, err := i.encoder.EncodeImageBatch(ctx, bufs[start:end], engine.EncodeOptions{Normalize: true})
		if err != nil {
			return nil, err
		}

		for _, emb := range embs {
			vectors = append(vectors, emb.Vector)
		}
	}

	if len(vectors) != len(bufs) {
		return nil, e.ErrImageVectorMismatch
	}

	return vectors, nil
}

func (i *IndexUseCase) uploadReq(images []UploadedImage, records []domain.IndexedImage) *UploadImagesReq {
	req := &UploadImagesReq{Images: make([]UploadImage, len(images))}
	for idx, img := range images {
		req.Images[idx] = UploadImage{
			ID:       records[idx].ID,
			Data:     img.Data,
			MimeType: img.MimeType,
			Size:     img.Size,
			Name:     img.Name,
		}
	}

	return req
}

func (i *IndexUseCase) createIndexedEvent(ctx context.Context, record *domain.IndexedImage) error {
	payload, err := i.events.EncodeImageIndexed(record)
	if err != nil {
		return err
	}

	event := NewOutboxEvent(uuid.NewString(), EventImageIndexed, record.ID, payload, record.CreatedAt)
	_, err = i.outboxRepo.Create(ctx, event)

	return err
}

func (i *IndexUseCase) searchReq(limit int, minScore *float32) (*VectorSearchReq, error) {
	if limit == 0 {
		limit = i.cfg.SearchLimit
	}

	if limit < 0 || limit > MaxSearchLimit {
		return nil, fmt.Errorf("%w: must be in [1, %d], got %d", e.ErrInvalidLimit, MaxSearchLimit, limit)
	}

	if minScore != nil && (*minScore < -1 || *minScore > 1) {
		return nil, fmt.Errorf("%w: must be in [-1, 1], got %v", e.ErrInvalidScore, *minScore)
	}

	return &VectorSearchReq{Limit: uint64(limit), MinScore: minScore}, nil
}

func ids(records []domain.IndexedImage) []string {
	out := make([]string, len(records))
	for idx, r := range records {
		out[idx] = r.ID
	}
	return out
}
