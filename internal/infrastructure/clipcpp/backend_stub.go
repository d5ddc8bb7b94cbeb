//go:build !clipcpp

package clipcpp

import (
	"context"
	"fmt"

	"github.com/DRSN-tech/clip-backend/internal/domain"
	"github.com/DRSN-tech/clip-backend/pkg/e"
	"github.com/DRSN-tech/clip-backend/pkg/logger"
)

// Backend без тега сборки clipcpp: файл модели проверяется, но загрузка невозможна.
type Backend struct {
	logger logger.Logger
}

func New(logger logger.Logger) *Backend {
	return &Backend{logger: logger}
}

func (b *Backend) Load(path string, _ int) (domain.ModelInfo, error) {
	const op = "clipcpp.Backend.Load"

	if _, err := InspectModelFile(path); err != nil {
		return domain.ModelInfo{}, e.Wrap(op, err)
	}

	return domain.ModelInfo{}, e.Wrap(op, fmt.Errorf("%w: %w: built without the clipcpp tag", e.ErrLoad, e.ErrEngineUnavailable))
}

func (b *Backend) EncodeText(context.Context, string, int, int, bool) ([]float32, error) {
	return nil, e.ErrEngineUnavailable
}

func (b *Backend) EncodeImage(context.Context, domain.ImageBuffer, int, int, bool) ([]float32, error) {
	return nil, e.ErrEngineUnavailable
}

func (b *Backend) EncodeImageBatch(context.Context, []domain.ImageBuffer, int, int, bool) ([][]float32, error) {
	return nil, e.ErrEngineUnavailable
}

func (b *Backend) Close() error {
	return nil
}
