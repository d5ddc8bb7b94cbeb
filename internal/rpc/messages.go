// Package rpc описывает контракт сервиса clip.v1.EmbeddingService:
// сообщения, дескриптор сервиса, клиент и JSON-кодек.
package rpc

type ModelInfoRequest struct{}

type VisionHyperParams struct {
	ImageSize     int32 `json:"image_size"`
	PatchSize     int32 `json:"patch_size"`
	HiddenSize    int32 `json:"hidden_size"`
	Intermediate  int32 `json:"n_intermediate"`
	ProjectionDim int32 `json:"projection_dim"`
	NumHeads      int32 `json:"n_head"`
	NumLayers     int32 `json:"n_layer"`
}

type TextHyperParams struct {
	VocabSize     int32 `json:"n_vocab"`
	NumPositions  int32 `json:"num_positions"`
	HiddenSize    int32 `json:"hidden_size"`
	Intermediate  int32 `json:"n_intermediate"`
	ProjectionDim int32 `json:"projection_dim"`
	NumHeads      int32 `json:"n_head"`
	NumLayers     int32 `json:"n_layer"`
}

type ModelInfoResponse struct {
	ModelPath string            `json:"model_path"`
	Vision    VisionHyperParams `json:"vision"`
	Text      TextHyperParams   `json:"text"`
}

// Image — RGB-буфер; Pixels передаётся в base64
type Image struct {
	Width  int32  `json:"width"`
	Height int32  `json:"height"`
	Pixels []byte `json:"pixels"`
}

type EncodeTextRequest struct {
	Text      string `json:"text"`
	Threads   int32  `json:"threads"`
	Dims      int32  `json:"dims"`
	Normalize bool   `json:"normalize"`
}

type EncodeImageRequest struct {
	Image     Image `json:"image"`
	Threads   int32 `json:"threads"`
	Dims      int32 `json:"dims"`
	Normalize bool  `json:"normalize"`
}

type EncodeImageBatchRequest struct {
	Images    []Image `json:"images"`
	Threads   int32   `json:"threads"`
	Dims      int32   `json:"dims"`
	Normalize bool    `json:"normalize"`
}

type EncodeResponse struct {
	Vector []float32 `json:"vector"`
}

type EncodeBatchResponse struct {
	Vectors []EncodeResponse `json:"vectors"`
}

type SimilarityRequest struct {
	A []float32 `json:"a"`
	B []float32 `json:"b"`
}

type SimilarityResponse struct {
	Cosine float32 `json:"cosine"`
	Dot    float32 `json:"dot"`
}
