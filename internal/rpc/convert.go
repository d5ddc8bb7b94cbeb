package rpc

import "github.com/DRSN-tech/clip-backend/internal/domain"

func ModelInfoToDomain(res *ModelInfoResponse) domain.ModelInfo {
	return domain.ModelInfo{
		Path: res.ModelPath,
		Vision: domain.VisionHyperParams{
			ImageSize:     int(res.Vision.ImageSize),
			PatchSize:     int(res.Vision.PatchSize),
			HiddenSize:    int(res.Vision.HiddenSize),
			Intermediate:  int(res.Vision.Intermediate),
			ProjectionDim: int(res.Vision.ProjectionDim),
			NumHeads:      int(res.Vision.NumHeads),
			NumLayers:     int(res.Vision.NumLayers),
		},
		Text: domain.TextHyperParams{
			VocabSize:     int(res.Text.VocabSize),
			NumPositions:  int(res.Text.NumPositions),
			HiddenSize:    int(res.Text.HiddenSize),
			Intermediate:  int(res.Text.Intermediate),
			ProjectionDim: int(res.Text.ProjectionDim),
			NumHeads:      int(res.Text.NumHeads),
			NumLayers:     int(res.Text.NumLayers),
		},
	}
}

func ModelInfoFromDomain(info domain.ModelInfo) *ModelInfoResponse {
	return &ModelInfoResponse{
		ModelPath: info.Path,
		Vision: VisionHyperParams{
			ImageSize:     int32(info.Vision.ImageSize),
			PatchSize:     int32(info.Vision.PatchSize),
			HiddenSize:    int32(info.Vision.HiddenSize),
			Intermediate:  int32(info.Vision.Intermediate),
			ProjectionDim: int32(info.Vision.ProjectionDim),
			NumHeads:      int32(info.Vision.NumHeads),
			NumLayers:     int32(info.Vision.NumLayers),
		},
		Text: TextHyperParams{
			VocabSize:     int32(info.Text.VocabSize),
			NumPositions:  int32(info.Text.NumPositions),
			HiddenSize:    int32(info.Text.HiddenSize),
			Intermediate:  int32(info.Text.Intermediate),
			ProjectionDim: int32(info.Text.ProjectionDim),
			NumHeads:      int32(info.Text.NumHeads),
			NumLayers:     int32(info.Text.NumLayers),
		},
	}
}

func ImageFromDomain(img domain.ImageBuffer) Image {
	return Image{
		Width:  int32(img.Width),
		Height: int32(img.Height),
		Pixels: img.Pixels,
	}
}

func ImagesFromDomain(imgs []domain.ImageBuffer) []Image {
	out := make([]Image, len(imgs))
	for i, img := range imgs {
		out[i] = ImageFromDomain(img)
	}
	return out
}

func (img Image) ToDomain() domain.ImageBuffer {
	return domain.NewImageBuffer(int(img.Width), int(img.Height), img.Pixels)
}
