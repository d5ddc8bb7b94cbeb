package minio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/DRSN-tech/clip-backend/internal/cfg"
	"github.com/DRSN-tech/clip-backend/internal/domain"
	"github.com/DRSN-tech/clip-backend/internal/infrastructure"
	"github.com/DRSN-tech/clip-backend/internal/usecase"
	"github.com/DRSN-tech/clip-backend/pkg/e"
	"github.com/DRSN-tech/clip-backend/pkg/jitter"
	"github.com/DRSN-tech/clip-backend/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const (
	// objectPrefix — каталог оригиналов проиндексированных изображений в бакете
	objectPrefix = "images"

	cleanupTimeout  = 30 * time.Second
	cleanupAttempts = 3
	cleanupBackoff  = time.Second
	cleanupMaxDelay = 10 * time.Second
)

// MinioInfrastructure управляет загрузкой и очисткой изображений в MinIO.
type MinioInfrastructure struct {
	minioRepo         usecase.ImageRepository
	bucketName        string
	uploadImagesLimit int
	logger            logger.Logger
	shutdownCtx       context.Context
	wg                sync.WaitGroup
}

// NewMinioInfrastructure создаёт инфраструктуру. Отмена shutdownCtx прерывает фоновую очистку.
func NewMinioInfrastructure(minioRepo usecase.ImageRepository, cfg *cfg.MinIOCfg, logger logger.Logger, shutdownCtx context.Context) *MinioInfrastructure {
	return &MinioInfrastructure{
		minioRepo:         minioRepo,
		bucketName:        cfg.BucketName,
		uploadImagesLimit: max(cfg.UploadImagesLimit, 1),
		logger:            logger,
		shutdownCtx:       shutdownCtx,
	}
}

// UploadImages загружает изображения параллельно с ограничением одновременных операций.
// Ключи возвращаются в порядке req.Images. При ошибке остальные загрузки отменяются,
// а уже загруженные объекты удаляются в фоне.
func (m *MinioInfrastructure) UploadImages(ctx context.Context, req *usecase.UploadImagesReq) (*usecase.UploadImagesRes, error) {
	const op = "MinioInfrastructure.UploadImages"

	keys := make([]string, len(req.Images))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.uploadImagesLimit)

	for i, image := range req.Images {
		g.Go(func() error {
			ext, err := infrastructure.GetExtensionFromMIME(image.MimeType)
			if err != nil {
				return fmt.Errorf("invalid mime type %s for %s: %w", image.MimeType, image.Name, err)
			}

			objKey := ObjectKey(image.ID, ext)
			newImage := domain.NewImage(image.ID, m.bucketName, objKey, image.Data, &image.Size, &image.MimeType)

			key, err := m.minioRepo.Upload(gctx, newImage)
			if err != nil {
				return fmt.Errorf("upload %s failed: %w", image.Name, err)
			}

			keys[i] = key
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		m.CleanupImages(uploadedKeys(keys))
		return nil, e.Wrap(op, err)
	}

	return usecase.NewUploadImagesRes(keys), nil
}

// CleanupImages запускает фоновую очистку указанных ключей MinIO.
func (m *MinioInfrastructure) CleanupImages(keys []string) {
	if len(keys) == 0 {
		return
	}

	m.wg.Add(1)
	go m.cleanupUploadedKeys(keys)
}

// cleanupUploadedKeys удаляет объекты с экспоненциальной задержкой и джиттером между попытками.
func (m *MinioInfrastructure) cleanupUploadedKeys(keys []string) {
	defer m.wg.Done()
	const op = "MinioInfrastructure.cleanupUploadedKeys"

	m.logger.Infof("%s: cleaning up %d uploaded keys", op, len(keys))

	ctx, cancel := context.WithTimeout(m.shutdownCtx, cleanupTimeout)
	defer cancel()

	for _, key := range keys {
		for attempt := 0; attempt < cleanupAttempts; attempt++ {
			err := m.minioRepo.Delete(ctx, key)
			if err == nil {
				break
			}

			if attempt == cleanupAttempts-1 {
				m.logger.Errorf(err, "%s: giving up on key=%s", op, key)
				break
			}

			delay := jitter.ExponentialBackoff(cleanupBackoff, cleanupMaxDelay, attempt, jitter.DefaultJitter)
			if err := jitter.Sleep(ctx, delay); err != nil {
				m.logger.Warnf("cleanup interrupted by shutdown, key=%s", key)
				return
			}
		}
	}
}

// WaitForCleanup ожидает завершения фоновой очистки или истечения shutdownTimeoutCtx.
func (m *MinioInfrastructure) WaitForCleanup(shutdownTimeoutCtx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-shutdownTimeoutCtx.Done():
		return fmt.Errorf("minio cleanup timeout during shutdown: %w", shutdownTimeoutCtx.Err())
	}
}

// ObjectKey возвращает ключ объекта для изображения с идентификатором id.
func ObjectKey(id string, ext string) string {
	return fmt.Sprintf("%s/%s.%s", objectPrefix, id, ext)
}

func uploadedKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}
