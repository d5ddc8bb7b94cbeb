package converter

type TextEmbeddingRedisModel struct {
	Dims     int       `json:"dims"`
	Vector   []float32 `json:"vector"`
	CachedAt int64     `json:"cached_at"`
}
