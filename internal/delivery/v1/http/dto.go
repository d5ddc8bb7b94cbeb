package http

import (
	"time"

	"github.com/DRSN-tech/clip-backend/internal/domain"
)

type ModelInfoResponse struct {
	ModelPath     string                   `json:"model_path"`
	ProjectionDim int                      `json:"projection_dim"`
	Vision        domain.VisionHyperParams `json:"vision"`
	Text          domain.TextHyperParams   `json:"text"`
}

type EncodeTextRequest struct {
	Text      string `json:"text"`
	Normalize *bool  `json:"normalize,omitempty"`
}

type EmbeddingResponse struct {
	Kind       string    `json:"kind"`
	Dim        int       `json:"dim"`
	Normalized bool      `json:"normalized"`
	Vector     []float32 `json:"vector"`
}

type EmbeddingsResponse struct {
	Embeddings []EmbeddingResponse `json:"embeddings"`
}

type SimilarityRequest struct {
	A []float32 `json:"a"`
	B []float32 `json:"b"`
}

type SimilarityResponse struct {
	Cosine float32 `json:"cosine"`
	Dot    float32 `json:"dot"`
}

type CompareResponse struct {
	Score float32 `json:"score"`
}

type LabelResponse struct {
	Index int     `json:"index"`
	Label string  `json:"label"`
	Score float32 `json:"score"`
}

type ClassifyResponse struct {
	Labels []LabelResponse `json:"labels"`
}

type ImageResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ObjectKey string    `json:"object_key"`
	MimeType  string    `json:"mime_type"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	ModelPath string    `json:"model_path"`
	CreatedAt time.Time `json:"created_at"`
}

type IndexImagesResponse struct {
	Images []ImageResponse `json:"images"`
}

type SearchHitResponse struct {
	Score float32       `json:"score"`
	Image ImageResponse `json:"image"`
}

type SearchResponse struct {
	Hits []SearchHitResponse `json:"hits"`
}

func toModelInfoResponse(info *domain.ModelInfo) ModelInfoResponse {
	return ModelInfoResponse{
		ModelPath:     info.Path,
		ProjectionDim: info.ProjectionDim(),
		Vision:        info.Vision,
		Text:          info.Text,
	}
}

func toEmbeddingResponse(emb *domain.Embedding) EmbeddingResponse {
	return EmbeddingResponse{
		Kind:       string(emb.Kind),
		Dim:        emb.Dim(),
		Normalized: emb.Normalized,
		Vector:     emb.Vector,
	}
}

func toArrEmbeddingResponse(embs []domain.Embedding) []EmbeddingResponse {
	res := make([]EmbeddingResponse, len(embs))
	for i := range embs {
		res[i] = toEmbeddingResponse(&embs[i])
	}
	return res
}

func toArrLabelResponse(labels []domain.Label) []LabelResponse {
	res := make([]LabelResponse, len(labels))
	for i, l := range labels {
		res[i] = LabelResponse{Index: l.Index, Label: l.Text, Score: l.Score}
	}
	return res
}

func toImageResponse(img *domain.IndexedImage) ImageResponse {
	return ImageResponse{
		ID:        img.ID,
		Name:      img.Name,
		ObjectKey: img.ObjectKey,
		MimeType:  img.MimeType,
		Width:     img.Width,
		Height:    img.Height,
		ModelPath: img.ModelPath,
		CreatedAt: img.CreatedAt,
	}
}

func toArrImageResponse(imgs []domain.IndexedImage) []ImageResponse {
	res := make([]ImageResponse, len(imgs))
	for i := range imgs {
		res[i] = toImageResponse(&imgs[i])
	}
	return res
}

func toArrSearchHitResponse(hits []domain.SearchHit) []SearchHitResponse {
	res := make([]SearchHitResponse, len(hits))
	for i := range hits {
		res[i] = SearchHitResponse{Score: hits[i].Score, Image: toImageResponse(&hits[i].Image)}
	}
	return res
}
