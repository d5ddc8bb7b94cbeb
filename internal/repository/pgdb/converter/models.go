package converter

import "time"

// ImageRecordModel представляет запись таблицы image_records в PostgreSQL.
type ImageRecordModel struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	ObjectKey string    `db:"object_key"`
	MimeType  string    `db:"mime_type"`
	Width     int32     `db:"width"`
	Height    int32     `db:"height"`
	ModelPath string    `db:"model_path"`
	CreatedAt time.Time `db:"created_at"`
}

// OutboxEventModel представляет запись таблицы outbox_events в PostgreSQL.
type OutboxEventModel struct {
	ID          int64      `db:"id"`
	EventID     string     `db:"event_id"`
	EventType   string     `db:"event_type"`
	AggregateID string     `db:"aggregate_id"`
	Payload     []byte     `db:"payload"`
	Status      string     `db:"status"`
	CreatedAt   time.Time  `db:"created_at"`
	ProcessedAt *time.Time `db:"processed_at"`
}
