package domain

import (
	"fmt"

	"github.com/DRSN-tech/clip-backend/pkg/e"
)

// VisionHyperParams описывает архитектуру визуального энкодера
type VisionHyperParams struct {
	ImageSize     int `json:"image_size"`
	PatchSize     int `json:"patch_size"`
	HiddenSize    int `json:"hidden_size"`
	Intermediate  int `json:"n_intermediate"`
	ProjectionDim int `json:"projection_dim"`
	NumHeads      int `json:"n_head"`
	NumLayers     int `json:"n_layer"`
}

// TextHyperParams описывает архитектуру текстового энкодера
type TextHyperParams struct {
	VocabSize     int `json:"n_vocab"`
	NumPositions  int `json:"num_positions"`
	HiddenSize    int `json:"hidden_size"`
	Intermediate  int `json:"n_intermediate"`
	ProjectionDim int `json:"projection_dim"`
	NumHeads      int `json:"n_head"`
	NumLayers     int `json:"n_layer"`
}

// Гиперпараметры ViT-B/32
var (
	DefaultVisionHyperParams = VisionHyperParams{
		ImageSize:     224,
		PatchSize:     32,
		HiddenSize:    768,
		Intermediate:  3072,
		ProjectionDim: 512,
		NumHeads:      12,
		NumLayers:     12,
	}
	DefaultTextHyperParams = TextHyperParams{
		VocabSize:     49408,
		NumPositions:  77,
		HiddenSize:    512,
		Intermediate:  2048,
		ProjectionDim: 512,
		NumHeads:      8,
		NumLayers:     12,
	}
)

// ModelInfo — метаданные загруженной модели, не меняются после загрузки
type ModelInfo struct {
	Path   string
	Vision VisionHyperParams
	Text   TextHyperParams
}

func NewModelInfo(path string, vision VisionHyperParams, text TextHyperParams) *ModelInfo {
	return &ModelInfo{
		Path:   path,
		Vision: vision,
		Text:   text,
	}
}

// ProjectionDim возвращает размерность эмбеддингов модели
func (m ModelInfo) ProjectionDim() int {
	return m.Vision.ProjectionDim
}

// Validate проверяет, что оба энкодера проецируют в одно пространство
func (m ModelInfo) Validate() error {
	if m.Vision.ProjectionDim <= 0 || m.Text.ProjectionDim <= 0 {
		return fmt.Errorf("%w: projection dim must be positive (vision=%d, text=%d)",
			e.ErrLoad, m.Vision.ProjectionDim, m.Text.ProjectionDim)
	}

	if m.Vision.ProjectionDim != m.Text.ProjectionDim {
		return fmt.Errorf("%w: vision projection dim %d != text projection dim %d",
			e.ErrLoad, m.Vision.ProjectionDim, m.Text.ProjectionDim)
	}

	return nil
}
