package converter

import "time"

// TextEmbeddingConverter преобразует вектор в модель кэша и обратно.
type TextEmbeddingConverter struct {
	now func() time.Time
}

func NewTextEmbeddingConverter() *TextEmbeddingConverter {
	return &TextEmbeddingConverter{now: time.Now}
}

func (c *TextEmbeddingConverter) ToRedisModel(vector []float32) *TextEmbeddingRedisModel {
	return &TextEmbeddingRedisModel{
		Dims:     len(vector),
		Vector:   vector,
		CachedAt: c.now().UTC().Unix(),
	}
}

// ToVector возвращает вектор или nil, если модель повреждена.
func (c *TextEmbeddingConverter) ToVector(model *TextEmbeddingRedisModel) []float32 {
	if model == nil || model.Dims == 0 || len(model.Vector) != model.Dims {
		return nil
	}

	return model.Vector
}
