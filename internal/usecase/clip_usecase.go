package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/DRSN-tech/clip-backend/internal/domain"
	"github.com/DRSN-tech/clip-backend/internal/engine"
	"github.com/DRSN-tech/clip-backend/pkg/e"
	"github.com/DRSN-tech/clip-backend/pkg/imgbuf"
	"github.com/DRSN-tech/clip-backend/pkg/logger"
	"github.com/DRSN-tech/clip-backend/pkg/vecmath"
)

// LogitScale — температура CLIP для zero-shot классификации
const LogitScale = 100

// ClipUseCase реализует операции над загруженной моделью CLIP.
type ClipUseCase struct {
	encoder   Encoder
	cacheRepo CacheRepository
	decode    imgbuf.Options
	logger    logger.Logger
}

// NewClipUC создаёт usecase. cacheRepo может быть nil.
func NewClipUC(encoder Encoder, cacheRepo CacheRepository, maxImageSide int, logger logger.Logger) *ClipUseCase {
	return &ClipUseCase{
		encoder:   encoder,
		cacheRepo: cacheRepo,
		decode:    imgbuf.Options{MaxSide: maxImageSide},
		logger:    logger,
	}
}

func (c *ClipUseCase) ModelInfo(ctx context.Context) (*domain.ModelInfo, error) {
	info, err := c.encoder.Info()
	if err != nil {
		return nil, e.Wrap("ClipUseCase.ModelInfo", err)
	}

	return &info, nil
}

// EncodeText кодирует текст, результат кэшируется по модели, флагу нормализации и тексту.
func (c *ClipUseCase) EncodeText(ctx context.Context, req *EncodeTextReq) (*domain.Embedding, error) {
	const op = "ClipUseCase.EncodeText"

	if strings.TrimSpace(req.Text) == "" {
		return nil, e.Wrap(op, e.ErrEmptyText)
	}

	emb, err := c.encodeText(ctx, req.Text, engine.EncodeOptions{Threads: req.Threads, Dims: req.Dims, Normalize: req.Normalize})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return emb, nil
}

// EncodeImages декодирует загруженные файлы и кодирует их одним батчем.
func (c *ClipUseCase) EncodeImages(ctx context.Context, req *EncodeImagesReq) ([]domain.Embedding, error) {
	const op = "ClipUseCase.EncodeImages"

	bufs, err := c.decodeAll(req.Images)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	embs, err := c.encoder.EncodeImageBatch(ctx, bufs, engine.EncodeOptions{Threads: req.Threads, Normalize: req.Normalize})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return embs, nil
}

// EncodePixels кодирует готовый RGB-буфер.
func (c *ClipUseCase) EncodePixels(ctx context.Context, req *EncodePixelsReq) (*domain.Embedding, error) {
	emb, err := c.encoder.EncodeImage(ctx, req.Image, req.Options)
	if err != nil {
		return nil, e.Wrap("ClipUseCase.EncodePixels", err)
	}

	return emb, nil
}

func (c *ClipUseCase) EncodePixelsBatch(ctx context.Context, req *EncodePixelsBatchReq) ([]domain.Embedding, error) {
	embs, err := c.encoder.EncodeImageBatch(ctx, req.Images, req.Options)
	if err != nil {
		return nil, e.Wrap("ClipUseCase.EncodePixelsBatch", err)
	}

	return embs, nil
}

// Similarity считает косинусное сходство и скалярное произведение двух векторов.
func (c *ClipUseCase) Similarity(_ context.Context, a, b []float32) (*SimilarityRes, error) {
	const op = "ClipUseCase.Similarity"

	if len(a) == 0 || len(b) == 0 {
		return nil, e.Wrap(op, fmt.Errorf("%w: %w", e.ErrInvalidArgument, e.ErrEmptyVectors))
	}

	cos, err := vecmath.Cosine(a, b)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	dot, err := vecmath.Dot(a, b)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return &SimilarityRes{Cosine: cos, Dot: dot}, nil
}

// CompareTextImage возвращает косинусное сходство текста и изображения.
func (c *ClipUseCase) CompareTextImage(ctx context.Context, req *CompareReq) (*CompareRes, error) {
	const op = "ClipUseCase.CompareTextImage"

	if strings.TrimSpace(req.Text) == "" {
		return nil, e.Wrap(op, e.ErrEmptyText)
	}

	imgEmb, err := c.encodeUpload(ctx, req.Image)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	textEmb, err := c.encodeText(ctx, req.Text, engine.EncodeOptions{Normalize: true})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	score, err := vecmath.Cosine(textEmb.Vector, imgEmb.Vector)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return &CompareRes{Score: score}, nil
}

// ZeroShotClassify ранжирует метки по вероятности соответствия изображению.
func (c *ClipUseCase) ZeroShotClassify(ctx context.Context, req *ClassifyReq) ([]domain.Label, error) {
	const op = "ClipUseCase.ZeroShotClassify"

	labels, err := normalizeLabels(req.Labels)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	imgEmb, err := c.encodeUpload(ctx, req.Image)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	scores := make([]float32, len(labels))
	for i, label := range labels {
		textEmb, err := c.encodeText(ctx, label, engine.EncodeOptions{Normalize: true})
		if err != nil {
			return nil, e.Wrap(op, fmt.Errorf("label %q: %w", label, err))
		}

		cos, err := vecmath.Cosine(imgEmb.Vector, textEmb.Vector)
		if err != nil {
			return nil, e.Wrap(op, err)
		}
		scores[i] = LogitScale * cos
	}

	probs, indices := vecmath.SoftmaxSorted(scores)

	n := len(probs)
	if req.TopK > 0 && req.TopK < n {
		n = req.TopK
	}

	out := make([]domain.Label, n)
	for i := 0; i < n; i++ {
		out[i] = domain.Label{
			Index: indices[i],
			Text:  labels[indices[i]],
			Score: probs[i],
		}
	}

	return out, nil
}

// encodeText кодирует текст через кэш. Ошибки кэша только логируются.
func (c *ClipUseCase) encodeText(ctx context.Context, text string, opts engine.EncodeOptions) (*domain.Embedding, error) {
	if c.cacheRepo == nil {
		return c.encoder.EncodeText(ctx, text, opts)
	}

	info, err := c.encoder.Info()
	if err != nil {
		return nil, err
	}
	key := textCacheKey(info.Path, opts.Normalize, text)

	vec, err := c.cacheRepo.GetTextEmbedding(ctx, key)
	if err != nil {
		c.logger.Warnf("text embedding cache read failed: %v", err)
	}
	if vec != nil && len(vec) == info.ProjectionDim() && (opts.Dims == 0 || opts.Dims == len(vec)) {
		return domain.NewEmbedding(domain.ModalityText, vec, opts.Normalize), nil
	}

	emb, err := c.encoder.EncodeText(ctx, text, opts)
	if err != nil {
		return nil, err
	}

	if err := c.cacheRepo.SetTextEmbedding(ctx, key, emb.Vector); err != nil {
		c.logger.Warnf("text embedding cache write failed: %v", err)
	}

	return emb, nil
}

func (c *ClipUseCase) encodeUpload(ctx context.Context, img UploadedImage) (*domain.Embedding, error) {
	buf, err := imgbuf.Decode(img.Data, c.decode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", img.Name, err)
	}

	return c.encoder.EncodeImage(ctx, buf, engine.EncodeOptions{Normalize: true})
}

func (c *ClipUseCase) decodeAll(images []UploadedImage) ([]domain.ImageBuffer, error) {
	if len(images) == 0 {
		return nil, e.ErrNoImages
	}

	bufs := make([]domain.ImageBuffer, len(images))
	for i, img := range images {
		buf, err := imgbuf.Decode(img.Data, c.decode)
		if err != nil {
			return nil, fmt.Errorf("image %d (%s): %w", i, img.Name, err)
		}
		bufs[i] = buf
	}

	return bufs, nil
}

// normalizeLabels убирает пробелы по краям и дубликаты, сохраняя порядок.
func normalizeLabels(labels []string) ([]string, error) {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}

	if len(out) < 2 {
		return nil, e.ErrNotEnoughLabels
	}

	return out, nil
}

func textCacheKey(modelPath string, normalize bool, text string) string {
	h := sha256.New()
	h.Write([]byte(modelPath))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatBool(normalize)))
	h.Write([]byte{0})
	h.Write([]byte(text))

	return "clip:text:" + hex.EncodeToString(h.Sum(nil))
}
