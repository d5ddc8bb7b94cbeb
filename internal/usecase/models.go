package usecase

import (
	"time"

	"github.com/DRSN-tech/clip-backend/internal/domain"
	"github.com/DRSN-tech/clip-backend/internal/engine"
)

// CLIP USECASE

// UploadedImage — изображение, загруженное через multipart/form-data.
type UploadedImage struct {
	Data     []byte // байты изображения
	MimeType string // определённый по содержимому MIME-тип (image/jpeg)
	Size     int64  // фактический размер в байтах
	Name     string // оригинальное имя файла (для логов)
}

type EncodeTextReq struct {
	Text      string
	Normalize bool
	Threads   int
	Dims      int // 0 — размерность модели
}

type EncodeImagesReq struct {
	Images    []UploadedImage
	Normalize bool
	Threads   int
}

type EncodePixelsReq struct {
	Image   domain.ImageBuffer
	Options engine.EncodeOptions
}

type EncodePixelsBatchReq struct {
	Images  []domain.ImageBuffer
	Options engine.EncodeOptions
}

type SimilarityRes struct {
	Cosine float32
	Dot    float32
}

// CompareReq — оценка соответствия текста изображению.
type CompareReq struct {
	Text  string
	Image UploadedImage
}

type CompareRes struct {
	Score float32
}

// ClassifyReq — zero-shot классификация изображения по текстовым меткам.
// TopK <= 0 возвращает все метки.
type ClassifyReq struct {
	Image  UploadedImage
	Labels []string
	TopK   int
}

// INDEX USECASE

type IndexImagesReq struct {
	Images []UploadedImage
}

type IndexImagesRes struct {
	Images []domain.IndexedImage
}

// SearchByTextReq — поиск изображений по тексту.
// Limit == 0 означает значение по умолчанию, MinScore == nil — без порога.
type SearchByTextReq struct {
	Query    string
	Limit    int
	MinScore *float32
}

type SearchByImageReq struct {
	Image    UploadedImage
	Limit    int
	MinScore *float32
}

// INFRASTRUCTURE

// UploadImage — объект для загрузки в MinIO.
type UploadImage struct {
	ID       string
	Data     []byte
	MimeType string
	Size     int64
	Name     string
}

type UploadImagesReq struct {
	Images []UploadImage
}

// UploadImagesRes — ключи объектов в порядке UploadImagesReq.Images.
type UploadImagesRes struct {
	ImagesKeys []string
}

type WriteRawMessageReq struct {
	Key     string
	Payload []byte
}

// REPOSITORIES

type VectorSearchReq struct {
	Vector   []float32
	Limit    uint64
	MinScore *float32
}

// OUTBOX

type OutboxStatus string

const (
	Pending    OutboxStatus = "pending"
	Processing OutboxStatus = "processing"
	Processed  OutboxStatus = "processed"
)

type OutboxEventType string

const (
	EventImageIndexed OutboxEventType = "image.indexed"
)

type OutboxEvent struct {
	ID          int64
	EventID     string
	EventType   OutboxEventType
	AggregateID string // ключ сообщения Kafka
	Payload     []byte
	Status      OutboxStatus
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// MAPPERS

func NewUploadedImage(data []byte, mimeType string, size int64, name string) *UploadedImage {
	return &UploadedImage{
		Data:     data,
		MimeType: mimeType,
		Size:     size,
		Name:     name,
	}
}

func NewEncodeTextReq(text string, normalize bool) *EncodeTextReq {
	return &EncodeTextReq{
		Text:      text,
		Normalize: normalize,
	}
}

func NewEncodeImagesReq(images []UploadedImage, normalize bool) *EncodeImagesReq {
	return &EncodeImagesReq{
		Images:    images,
		Normalize: normalize,
	}
}

func NewCompareReq(text string, image UploadedImage) *CompareReq {
	return &CompareReq{
		Text:  text,
		Image: image,
	}
}

func NewClassifyReq(image UploadedImage, labels []string, topK int) *ClassifyReq {
	return &ClassifyReq{
		Image:  image,
		Labels: labels,
		TopK:   topK,
	}
}

func NewIndexImagesReq(images []UploadedImage) *IndexImagesReq {
	return &IndexImagesReq{Images: images}
}

func NewSearchByTextReq(query string, limit int, minScore *float32) *SearchByTextReq {
	return &SearchByTextReq{
		Query:    query,
		Limit:    limit,
		MinScore: minScore,
	}
}

func NewSearchByImageReq(image UploadedImage, limit int, minScore *float32) *SearchByImageReq {
	return &SearchByImageReq{
		Image:    image,
		Limit:    limit,
		MinScore: minScore,
	}
}

func NewUploadImagesRes(imagesKeys []string) *UploadImagesRes {
	return &UploadImagesRes{
		ImagesKeys: imagesKeys,
	}
}

func NewWriteRawMessageReq(key string, payload []byte) *WriteRawMessageReq {
	return &WriteRawMessageReq{
		Key:     key,
		Payload: payload,
	}
}

func NewOutboxEvent(eventID string, eventType OutboxEventType, aggregateID string, payload []byte, createdAt time.Time) *OutboxEvent {
	return &OutboxEvent{
		EventID:     eventID,
		EventType:   eventType,
		AggregateID: aggregateID,
		Payload:     payload,
		Status:      Pending,
		CreatedAt:   createdAt,
	}
}
