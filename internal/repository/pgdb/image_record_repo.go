package pgdb

import (
	"context"
	"fmt"
	"time"

	"github.com/DRSN-tech/clip-backend/internal/domain"
	"github.com/DRSN-tech/clip-backend/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/clip-backend/pkg/e"
	"github.com/DRSN-tech/clip-backend/pkg/tr"
	"github.com/jimlawless/whereami"
)

// ImageRecordRepo хранит метаданные проиндексированных изображений в PostgreSQL.
type ImageRecordRepo struct {
	db   DB
	conv converter.ImageRecordConverter
}

func NewImageRecordRepo(db DB, conv converter.ImageRecordConverter) *ImageRecordRepo {
	return &ImageRecordRepo{
		db:   db,
		conv: conv,
	}
}

// CreateBatch вставляет записи одним запросом в транзакции из контекста.
func (r *ImageRecordRepo) CreateBatch(ctx context.Context, images []domain.IndexedImage) error {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	var (
		ids        = make([]string, len(images))
		names      = make([]string, len(images))
		objectKeys = make([]string, len(images))
		mimeTypes  = make([]string, len(images))
		widths     = make([]int32, len(images))
		heights    = make([]int32, len(images))
		modelPaths = make([]string, len(images))
		createdAts = make([]time.Time, len(images))
	)
	for i := range images {
		m := r.conv.ToModel(&images[i])
		ids[i], names[i], objectKeys[i], mimeTypes[i] = m.ID, m.Name, m.ObjectKey, m.MimeType
		widths[i], heights[i], modelPaths[i], createdAts[i] = m.Width, m.Height, m.ModelPath, m.CreatedAt
	}

	query := `
		INSERT INTO image_records (
			id,
			name,
			object_key,
			mime_type,
			width,
			height,
			model_path,
			created_at
		)
		SELECT * FROM unnest(
			$1::uuid[], $2::text[], $3::text[], $4::text[],
			$5::int[], $6::int[], $7::text[], $8::timestamptz[]
		);
	`

	tag, err := tx.Exec(ctx, query, ids, names, objectKeys, mimeTypes, widths, heights, modelPaths, createdAts)
	if err != nil {
		if postgresDuplicate(err) {
			return fmt.Errorf("%s: image record %w: %w", whereami.WhereAmI(), e.ErrDuplicate, err)
		}
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if tag.RowsAffected() != int64(len(images)) {
		return fmt.Errorf("%s: %w: inserted %d of %d image records", whereami.WhereAmI(), ErrPartialInsert, tag.RowsAffected(), len(images))
	}

	return nil
}

// GetByIDs возвращает найденные записи, отсутствующие идентификаторы пропускаются.
func (r *ImageRecordRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.IndexedImage, error) {
	query := `
		SELECT id, name, object_key, mime_type, width, height, model_path, created_at
		FROM image_records
		WHERE id = ANY($1::uuid[])
		ORDER BY created_at, id;
	`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	var out []domain.IndexedImage
	for rows.Next() {
		var m converter.ImageRecordModel
		if err := rows.Scan(&m.ID, &m.Name, &m.ObjectKey, &m.MimeType, &m.Width, &m.Height, &m.ModelPath, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: failed to scan image record: %w", whereami.WhereAmI(), err)
		}
		out = append(out, *r.conv.ToEntity(&m))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows iterator error: %w", whereami.WhereAmI(), err)
	}

	return out, nil
}
