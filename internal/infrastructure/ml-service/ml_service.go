package ml_service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/DRSN-tech/clip-backend/internal/cfg"
	"github.com/DRSN-tech/clip-backend/internal/domain"
	"github.com/DRSN-tech/clip-backend/internal/rpc"
	"github.com/DRSN-tech/clip-backend/pkg/e"
	"github.com/DRSN-tech/clip-backend/pkg/jitter"
	"github.com/DRSN-tech/clip-backend/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const (
	baseJitter  = 200 * time.Millisecond
	maxJitter   = 5 * time.Second
	loadTimeout = 30 * time.Second
)

// MLService — бэкенд движка эмбеддингов поверх удалённого EmbeddingService.
type MLService struct {
	client        rpc.EmbeddingServiceClient
	conn          io.Closer
	maxConcurrent int
	maxRetries    int
	batchSize     int
	timeout       time.Duration
	logger        logger.Logger
	closeOnce     sync.Once
}

// NewMLService создаёт бэкенд. conn закрывается в Close и может быть nil.
func NewMLService(client rpc.EmbeddingServiceClient, conn io.Closer, cfg *cfg.MLServiceCfg, logger logger.Logger) *MLService {
	return &MLService{
		client:        client,
		conn:          conn,
		maxConcurrent: max(cfg.MaxConcurrent, 1),
		maxRetries:    max(cfg.MaxRetries, 1),
		batchSize:     max(cfg.BatchSize, 1),
		timeout:       cfg.Timeout,
		logger:        logger,
	}
}

// Load запрашивает гиперпараметры модели, загруженной на удалённой стороне.
// path и verbosity задаются конфигурацией сервера и здесь только логируются.
func (m *MLService) Load(path string, verbosity int) (domain.ModelInfo, error) {
	const op = "MLService.Load"

	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()

	var res *rpc.ModelInfoResponse
	err := m.withRetry(ctx, op, func(ctx context.Context) error {
		var err error
		res, err = m.client.GetModelInfo(ctx, &rpc.ModelInfoRequest{})
		return err
	})
	if err != nil {
		return domain.ModelInfo{}, e.Wrap(op, err)
	}

	info := rpc.ModelInfoToDomain(res)
	m.logger.Debugf("remote model %s (requested %s, verbosity=%d)", info.Path, path, verbosity)

	return info, nil
}

func (m *MLService) EncodeText(ctx context.Context, text string, threads int, dims int, normalize bool) ([]float32, error) {
	const op = "MLService.EncodeText"

	req := &rpc.EncodeTextRequest{
		Text:      text,
		Threads:   int32(threads),
		Dims:      int32(dims),
		Normalize: normalize,
	}

	var res *rpc.EncodeResponse
	err := m.withRetry(ctx, op, func(ctx context.Context) error {
		var err error
		res, err = m.client.EncodeText(ctx, req)
		return err
	})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return res.Vector, nil
}

func (m *MLService) EncodeImage(ctx context.Context, img domain.ImageBuffer, threads int, dims int, normalize bool) ([]float32, error) {
	const op = "MLService.EncodeImage"

	req := &rpc.EncodeImageRequest{
		Image:     rpc.ImageFromDomain(img),
		Threads:   int32(threads),
		Dims:      int32(dims),
		Normalize: normalize,
	}

	var res *rpc.EncodeResponse
	err := m.withRetry(ctx, op, func(ctx context.Context) error {
		var err error
		res, err = m.client.EncodeImage(ctx, req)
		return err
	})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return res.Vector, nil
}

// EncodeImageBatch делит изображения на чанки по batchSize и отправляет их параллельно
// с ограничением maxConcurrent. Порядок векторов совпадает с порядком изображений.
func (m *MLService) EncodeImageBatch(ctx context.Context, imgs []domain.ImageBuffer, threads int, dims int, normalize bool) ([][]float32, error) {
	const op = "MLService.EncodeImageBatch"

	out := make([][]float32, len(imgs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.maxConcurrent)

	for start := 0; start < len(imgs); start += m.batchSize {
		end := min(start+m.batchSize, len(imgs))
		chunk := imgs[start:end]

		g.Go(func() error {
			req := &rpc.EncodeImageBatchRequest{
				Images:    rpc.ImagesFromDomain(chunk),
				Threads:   int32(threads),
				Dims:      int32(dims),
				Normalize: normalize,
			}

			var res *rpc.EncodeBatchResponse
			err := m.withRetry(gctx, op, func(ctx context.Context) error {
				var err error
				res, err = m.client.EncodeImageBatch(ctx, req)
				return err
			})
			if err != nil {
				return fmt.Errorf("images %d..%d: %w", start, end-1, err)
			}

			if len(res.Vectors) != len(chunk) {
				return fmt.Errorf("%w: service returned %d vectors for %d images", e.ErrEncode, len(res.Vectors), len(chunk))
			}

			for i, v := range res.Vectors {
				out[start+i] = v.Vector
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, e.Wrap(op, err)
	}

	return out, nil
}

// Close закрывает соединение с сервисом. Повторные вызовы ничего не делают.
func (m *MLService) Close() error {
	var err error
	m.closeOnce.Do(func() {
		if m.conn != nil {
			err = m.conn.Close()
		}
	})

	return err
}

// withRetry повторяет call при временных ошибках транспорта с экспоненциальной задержкой.
func (m *MLService) withRetry(ctx context.Context, op string, call func(ctx context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := m.callWithTimeout(ctx, call)
		if err == nil {
			return nil
		}

		if !rpc.IsRetryable(err) || ctx.Err() != nil {
			return rpc.FromStatus(err)
		}

		if attempt == m.maxRetries-1 {
			return fmt.Errorf("all %d attempts failed: %w", m.maxRetries, rpc.FromStatus(err))
		}

		sleepTime := jitter.ExponentialBackoff(baseJitter, maxJitter, attempt, jitter.DefaultJitter)
		m.logger.Warnf("%s failed, retrying in %v (attempt %d): %v", op, sleepTime, attempt+1, err)

		if err := jitter.Sleep(ctx, sleepTime); err != nil {
			return err
		}
	}
}

func (m *MLService) callWithTimeout(ctx context.Context, call func(ctx context.Context) error) error {
	if m.timeout <= 0 {
		return call(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	return call(ctx)
}
