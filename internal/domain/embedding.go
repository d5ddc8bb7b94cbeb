package domain

import "time"

// Modality определяет, каким энкодером получен эмбеддинг
type Modality string

const (
	ModalityImage Modality = "image"
	ModalityText  Modality = "text"
)

// Embedding — вектор эмбеддинга изображения или текста
type Embedding struct {
	Kind       Modality
	Vector     []float32
	Normalized bool
}

func NewEmbedding(kind Modality, vector []float32, normalized bool) *Embedding {
	return &Embedding{
		Kind:       kind,
		Vector:     vector,
		Normalized: normalized,
	}
}

// Dim возвращает размерность вектора
func (e Embedding) Dim() int {
	return len(e.Vector)
}

// Payload описывает дополнительную информацию вектора
type Payload map[string]any

// Point представляет запись вектора изображения в векторном хранилище
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

func NewPoint(id string, vector []float32, payload Payload) *Point {
	return &Point{
		ID:      id,
		Vector:  vector,
		Payload: payload,
	}
}

func NewPayload(image *IndexedImage) Payload {
	return Payload{
		"image_id":   image.ID,
		"name":       image.Name,
		"object_key": image.ObjectKey,
		"mime_type":  image.MimeType,
		"width":      int64(image.Width),
		"height":     int64(image.Height),
		"model_path": image.ModelPath,
		"created_at": image.CreatedAt.UTC().UnixNano(),
	}
}

// Label — результат zero-shot классификации для одной метки
type Label struct {
	Index int
	Text  string
	Score float32
}

// SearchHit — найденное изображение и его сходство с запросом
type SearchHit struct {
	Image IndexedImage
	Score float32
}

func NewSearchHit(image IndexedImage, score float32) *SearchHit {
	return &SearchHit{
		Image: image,
		Score: score,
	}
}

// IndexedImage описывает изображение поискового индекса
type IndexedImage struct {
	ID        string // uuid
	Name      string
	ObjectKey string
	MimeType  string
	Width     int
	Height    int
	ModelPath string
	CreatedAt time.Time
}
