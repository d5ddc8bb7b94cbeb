//go:build clipcpp

package clipcpp

/*
#cgo LDFLAGS: -lclip -lggml -lstdc++ -lm
#include <stdlib.h>
#include <stdbool.h>
#include "clip.h"
*/
import "C"

import (
	"context"
	"fmt"
	"sync"
	"unsafe"

	"github.com/DRSN-tech/clip-backend/internal/domain"
	"github.com/DRSN-tech/clip-backend/pkg/e"
	"github.com/DRSN-tech/clip-backend/pkg/logger"
)

// Backend вызывает libclip через cgo.
// Контекст clip_ctx использует общий буфер вычислений, поэтому вызовы сериализуются.
type Backend struct {
	mu     sync.Mutex
	ctx    *C.struct_clip_ctx
	logger logger.Logger
}

func New(logger logger.Logger) *Backend {
	return &Backend{logger: logger}
}

// Load загружает модель через clip_model_load и читает гиперпараметры.
func (b *Backend) Load(path string, verbosity int) (domain.ModelInfo, error) {
	const op = "clipcpp.Backend.Load"

	mf, err := InspectModelFile(path)
	if err != nil {
		return domain.ModelInfo{}, e.Wrap(op, err)
	}
	b.logger.Debugf("model file %s: format=%s, version=%d, ftype=%s, size=%d", mf.Path, mf.Format, mf.Version, mf.FType, mf.Size)

	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctx != nil {
		return domain.ModelInfo{}, e.Wrap(op, e.ErrModelAlreadyLoaded)
	}

	ctx := C.clip_model_load(cPath, C.int(verbosity))
	if ctx == nil {
		return domain.ModelInfo{}, e.Wrap(op, fmt.Errorf("%w: clip_model_load failed for %s", e.ErrLoad, path))
	}
	b.ctx = ctx

	return domain.ModelInfo{
		Path:   path,
		Vision: visionParams(C.clip_get_vision_hparams(ctx)),
		Text:   textParams(C.clip_get_text_hparams(ctx)),
	}, nil
}

func (b *Backend) EncodeText(ctx context.Context, text string, threads int, dims int, normalize bool) ([]float32, error) {
	const op = "clipcpp.Backend.EncodeText"

	cText := C.CString(text)
	defer C.free(unsafe.Pointer(cText))

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ready(ctx); err != nil {
		return nil, e.Wrap(op, err)
	}

	// tokens.data выделяет libclip через new[], функции освобождения она не экспортирует
	var tokens C.struct_clip_tokens
	if !bool(C.clip_tokenize(b.ctx, cText, &tokens)) || tokens.size == 0 {
		return nil, e.Wrap(op, fmt.Errorf("%w: tokenization produced no tokens", e.ErrEncode))
	}

	vec := make([]float32, dims)
	if !bool(C.clip_text_encode(b.ctx, C.int(threads), &tokens, (*C.float)(unsafe.Pointer(&vec[0])), C.bool(normalize))) {
		return nil, e.Wrap(op, fmt.Errorf("%w: clip_text_encode failed", e.ErrEncode))
	}

	return vec, nil
}

func (b *Backend) EncodeImage(ctx context.Context, img domain.ImageBuffer, threads int, dims int, normalize bool) ([]float32, error) {
	const op = "clipcpp.Backend.EncodeImage"

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ready(ctx); err != nil {
		return nil, e.Wrap(op, err)
	}

	f32, err := b.preprocess(img)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	defer C.clip_image_f32_free(f32)

	vec := make([]float32, dims)
	if !bool(C.clip_image_encode(b.ctx, C.int(threads), f32, (*C.float)(unsafe.Pointer(&vec[0])), C.bool(normalize))) {
		return nil, e.Wrap(op, fmt.Errorf("%w: clip_image_encode failed", e.ErrEncode))
	}

	return vec, nil
}

// EncodeImageBatch предобрабатывает изображения по одному и кодирует их одним вызовом
// clip_image_batch_encode. Массив структур батча принадлежит Go-стороне, данные — libclip.
func (b *Backend) EncodeImageBatch(ctx context.Context, imgs []domain.ImageBuffer, threads int, dims int, normalize bool) ([][]float32, error) {
	const op = "clipcpp.Backend.EncodeImageBatch"

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ready(ctx); err != nil {
		return nil, e.Wrap(op, err)
	}

	n := len(imgs)
	preprocessed := make([]*C.struct_clip_image_f32, 0, n)
	defer func() {
		for _, f32 := range preprocessed {
			C.clip_image_f32_free(f32)
		}
	}()

	for i, img := range imgs {
		f32, err := b.preprocess(img)
		if err != nil {
			return nil, e.Wrap(op, fmt.Errorf("image %d: %w", i, err))
		}
		preprocessed = append(preprocessed, f32)
	}

	arr := (*C.struct_clip_image_f32)(C.malloc(C.size_t(n) * C.size_t(unsafe.Sizeof(C.struct_clip_image_f32{}))))
	if arr == nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: out of memory", e.ErrEncode))
	}
	defer C.free(unsafe.Pointer(arr))

	items := unsafe.Slice(arr, n)
	for i, f32 := range preprocessed {
		items[i] = *f32
	}
	batch := C.struct_clip_image_f32_batch{data: arr, size: C.size_t(n)}

	flat := make([]float32, n*dims)
	if !bool(C.clip_image_batch_encode(b.ctx, C.int(threads), &batch, (*C.float)(unsafe.Pointer(&flat[0])), C.bool(normalize))) {
		return nil, e.Wrap(op, fmt.Errorf("%w: clip_image_batch_encode failed", e.ErrEncode))
	}

	out := make([][]float32, n)
	for i := range out {
		out[i] = flat[i*dims : (i+1)*dims : (i+1)*dims]
	}

	return out, nil
}

// Close освобождает clip_ctx. Безопасен для повторного вызова и для незагруженной модели.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctx != nil {
		C.clip_free(b.ctx)
		b.ctx = nil
	}

	return nil
}

func (b *Backend) ready(ctx context.Context) error {
	if b.ctx == nil {
		return e.ErrModelNotLoaded
	}

	return ctx.Err()
}

// preprocess копирует пиксели в C-память и вызывает clip_image_preprocess.
// Результат нужно освободить через clip_image_f32_free.
func (b *Backend) preprocess(img domain.ImageBuffer) (*C.struct_clip_image_f32, error) {
	u8 := C.clip_image_u8_make()
	u8.nx = C.int(img.Width)
	u8.ny = C.int(img.Height)
	u8.data = (*C.uint8_t)(C.CBytes(img.Pixels))
	u8.size = C.size_t(len(img.Pixels))
	defer func() {
		C.free(unsafe.Pointer(u8.data))
		u8.data = nil
		u8.size = 0
		C.clip_image_u8_free(u8)
	}()

	f32 := C.clip_image_f32_make()
	if !bool(C.clip_image_preprocess(b.ctx, u8, f32)) {
		C.clip_image_f32_free(f32)
		return nil, fmt.Errorf("%w: clip_image_preprocess failed", e.ErrEncode)
	}

	return f32, nil
}

func visionParams(p *C.struct_clip_vision_hparams) domain.VisionHyperParams {
	return domain.VisionHyperParams{
		ImageSize:     int(p.image_size),
		PatchSize:     int(p.patch_size),
		HiddenSize:    int(p.hidden_size),
		Intermediate:  int(p.n_intermediate),
		ProjectionDim: int(p.projection_dim),
		NumHeads:      int(p.n_head),
		NumLayers:     int(p.n_layer),
	}
}

func textParams(p *C.struct_clip_text_hparams) domain.TextHyperParams {
	return domain.TextHyperParams{
		VocabSize:     int(p.n_vocab),
		NumPositions:  int(p.num_positions),
		HiddenSize:    int(p.hidden_size),
		Intermediate:  int(p.n_intermediate),
		ProjectionDim: int(p.projection_dim),
		NumHeads:      int(p.n_head),
		NumLayers:     int(p.n_layer),
	}
}
