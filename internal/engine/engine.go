// Package engine владеет дескриптором модели CLIP и проверяет все обращения к бэкенду:
// жизненный цикл load -> encode -> close, входные данные, размерность и нормализацию векторов.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"strings"
	"sync"

	"github.com/DRSN-tech/clip-backend/internal/domain"
	"github.com/DRSN-tech/clip-backend/pkg/e"
	"github.com/DRSN-tech/clip-backend/pkg/logger"
	"github.com/DRSN-tech/clip-backend/pkg/vecmath"
)

// normTolerance — допустимое отклонение L2-нормы нормализованного вектора от 1
const normTolerance = 1e-4

// Backend — внешний движок эмбеддингов (нативный clip.cpp или удалённый сервис).
type Backend interface {
	Load(path string, verbosity int) (domain.ModelInfo, error)
	EncodeImage(ctx context.Context, img domain.ImageBuffer, threads int, dims int, normalize bool) ([]float32, error)
	EncodeImageBatch(ctx context.Context, imgs []domain.ImageBuffer, threads int, dims int, normalize bool) ([][]float32, error)
	EncodeText(ctx context.Context, text string, threads int, dims int, normalize bool) ([]float32, error)
	Close() error
}

type state int

const (
	stateUnloaded state = iota
	stateLoaded
	stateClosed
)

func (s state) String() string {
	switch s {
	case stateUnloaded:
		return "unloaded"
	case stateLoaded:
		return "loaded"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// EncodeOptions — параметры одного вызова кодирования.
// Threads <= 0 — значение по умолчанию, Dims == 0 — размерность модели.
type EncodeOptions struct {
	Threads   int
	Dims      int
	Normalize bool
}

// Engine — единственный владелец загруженной модели.
type Engine struct {
	backend        Backend
	logger         logger.Logger
	defaultThreads int

	mu    sync.RWMutex
	state state
	info  domain.ModelInfo
}

// Option настраивает Engine.
type Option func(*Engine)

// WithDefaultThreads задаёт число потоков для вызовов без явного Threads.
func WithDefaultThreads(n int) Option {
	return func(en *Engine) {
		if n > 0 {
			en.defaultThreads = n
		}
	}
}

func New(backend Backend, logger logger.Logger, opts ...Option) *Engine {
	en := &Engine{
		backend:        backend,
		logger:         logger,
		defaultThreads: min(runtime.NumCPU(), 8),
	}
	for _, opt := range opts {
		opt(en)
	}

	return en
}

// Load загружает модель. Операция блокирующая и не отменяется.
// При любой ошибке ресурсы бэкенда освобождаются до возврата.
func (en *Engine) Load(path string, verbosity int) (domain.ModelInfo, error) {
	const op = "Engine.Load"

	en.mu.Lock()
	defer en.mu.Unlock()

	switch en.state {
	case stateLoaded:
		return domain.ModelInfo{}, e.Wrap(op, e.ErrModelAlreadyLoaded)
	case stateClosed:
		return domain.ModelInfo{}, e.Wrap(op, e.ErrModelClosed)
	}

	if strings.TrimSpace(path) == "" {
		return domain.ModelInfo{}, e.Wrap(op, fmt.Errorf("%w: empty model path", e.ErrLoad))
	}

	en.logger.Infof("loading model from %s (verbosity=%d)", path, verbosity)

	info, err := en.backend.Load(path, verbosity)
	if err == nil {
		err = info.Validate()
	}
	if err != nil {
		if closeErr := en.backend.Close(); closeErr != nil {
			en.logger.Warnf("release after failed load: %v", closeErr)
		}
		if !errors.Is(err, e.ErrLoad) {
			err = fmt.Errorf("%w: %w", e.ErrLoad, err)
		}
		return domain.ModelInfo{}, e.Wrap(op, err)
	}

	if info.Path == "" {
		info.Path = path
	}
	en.info = info
	en.state = stateLoaded
	en.logger.Infof("model loaded: projection_dim=%d, vision_layers=%d, text_layers=%d",
		info.ProjectionDim(), info.Vision.NumLayers, info.Text.NumLayers)

	return info, nil
}

// Info возвращает гиперпараметры загруженной модели.
func (en *Engine) Info() (domain.ModelInfo, error) {
	en.mu.RLock()
	defer en.mu.RUnlock()

	if err := en.checkLoaded(); err != nil {
		return domain.ModelInfo{}, e.Wrap("Engine.Info", err)
	}

	return en.info, nil
}

// EncodeImage кодирует одно изображение.
func (en *Engine) EncodeImage(ctx context.Context, img domain.ImageBuffer, opts EncodeOptions) (*domain.Embedding, error) {
	const op = "Engine.EncodeImage"

	en.mu.RLock()
	defer en.mu.RUnlock()

	threads, dims, err := en.prepare(ctx, opts)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	if err := img.Validate(); err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: %w", e.ErrEncode, err))
	}

	vec, err := en.backend.EncodeImage(ctx, img, threads, dims, opts.Normalize)
	if err != nil {
		return nil, e.Wrap(op, asEncodeErr(err))
	}

	vec, err = en.finish(vec, dims, opts.Normalize)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return domain.NewEmbedding(domain.ModalityImage, vec, opts.Normalize), nil
}

// EncodeImageBatch кодирует изображения, i-й вектор соответствует i-му изображению.
// Ошибка в любом элементе отменяет весь батч.
func (en *Engine) EncodeImageBatch(ctx context.Context, imgs []domain.ImageBuffer, opts EncodeOptions) ([]domain.Embedding, error) {
	const op = "Engine.EncodeImageBatch"

	en.mu.RLock()
	defer en.mu.RUnlock()

	threads, dims, err := en.prepare(ctx, opts)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	if len(imgs) == 0 {
		return nil, e.Wrap(op, fmt.Errorf("%w: %w", e.ErrEncode, e.ErrNoImages))
	}

	for i, img := range imgs {
		if err := img.Validate(); err != nil {
			return nil, e.Wrap(op, fmt.Errorf("%w: image %d: %w", e.ErrEncode, i, err))
		}
	}

	vecs, err := en.backend.EncodeImageBatch(ctx, imgs, threads, dims, opts.Normalize)
	if err != nil {
		return nil, e.Wrap(op, asEncodeErr(err))
	}

	if len(vecs) != len(imgs) {
		return nil, e.Wrap(op, fmt.Errorf("%w: backend returned %d vectors for %d images", e.ErrEncode, len(vecs), len(imgs)))
	}

	out := make([]domain.Embedding, len(vecs))
	for i, vec := range vecs {
		vec, err = en.finish(vec, dims, opts.Normalize)
		if err != nil {
			return nil, e.Wrap(op, fmt.Errorf("image %d: %w", i, err))
		}
		out[i] = *domain.NewEmbedding(domain.ModalityImage, vec, opts.Normalize)
	}

	return out, nil
}

// EncodeText кодирует строку текста.
func (en *Engine) EncodeText(ctx context.Context, text string, opts EncodeOptions) (*domain.Embedding, error) {
	const op = "Engine.EncodeText"

	en.mu.RLock()
	defer en.mu.RUnlock()

	threads, dims, err := en.prepare(ctx, opts)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	if strings.TrimSpace(text) == "" {
		return nil, e.Wrap(op, fmt.Errorf("%w: %w", e.ErrEncode, e.ErrEmptyText))
	}

	vec, err := en.backend.EncodeText(ctx, text, threads, dims, opts.Normalize)
	if err != nil {
		return nil, e.Wrap(op, asEncodeErr(err))
	}

	vec, err = en.finish(vec, dims, opts.Normalize)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return domain.NewEmbedding(domain.ModalityText, vec, opts.Normalize), nil
}

// Close освобождает модель. Повторный вызов ничего не делает.
func (en *Engine) Close() error {
	en.mu.Lock()
	defer en.mu.Unlock()

	if en.state == stateClosed {
		return nil
	}

	wasLoaded := en.state == stateLoaded
	en.state = stateClosed
	if !wasLoaded {
		return nil
	}

	if err := en.backend.Close(); err != nil {
		return e.Wrap("Engine.Close", err)
	}
	en.logger.Infof("model %s released", en.info.Path)

	return nil
}

// prepare проверяет состояние и подставляет значения по умолчанию. Вызывается под RLock.
func (en *Engine) prepare(ctx context.Context, opts EncodeOptions) (int, int, error) {
	if err := en.checkLoaded(); err != nil {
		return 0, 0, err
	}

	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	threads := opts.Threads
	if threads <= 0 {
		threads = en.defaultThreads
	}

	dims := en.info.ProjectionDim()
	if opts.Dims != 0 && opts.Dims != dims {
		return 0, 0, fmt.Errorf("%w: requested %d dims, model projects to %d", e.ErrEncode, opts.Dims, dims)
	}

	return threads, dims, nil
}

// finish проверяет вектор бэкенда и гарантирует единичную норму при normalize.
func (en *Engine) finish(vec []float32, dims int, normalize bool) ([]float32, error) {
	if len(vec) != dims {
		return nil, fmt.Errorf("%w: backend returned %d values, want %d", e.ErrEncode, len(vec), dims)
	}

	if !vecmath.IsFinite(vec) {
		return nil, fmt.Errorf("%w: backend returned non-finite values", e.ErrEncode)
	}

	if normalize {
		norm := vecmath.Norm(vec)
		if norm == 0 {
			return nil, fmt.Errorf("%w: cannot normalize zero vector", e.ErrEncode)
		}
		if math.Abs(float64(norm)-1) > normTolerance {
			vec = vecmath.Normalize(vec)
		}
	}

	return vec, nil
}

func (en *Engine) checkLoaded() error {
	switch en.state {
	case stateLoaded:
		return nil
	case stateClosed:
		return e.ErrModelClosed
	default:
		return e.ErrModelNotLoaded
	}
}

// asEncodeErr помечает ошибку бэкенда как ErrEncode, сохраняя исходную причину.
func asEncodeErr(err error) error {
	switch {
	case errors.Is(err, e.ErrEncode),
		errors.Is(err, e.ErrModelClosed),
		errors.Is(err, e.ErrModelNotLoaded),
		errors.Is(err, e.ErrEngineUnavailable),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", e.ErrEncode, err)
	}
}
