package kafka

import (
	"time"

	"github.com/DRSN-tech/clip-backend/internal/domain"
	"github.com/DRSN-tech/clip-backend/internal/usecase"
	"github.com/DRSN-tech/clip-backend/pkg/e"
	"github.com/jimlawless/whereami"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// EventEncoder сериализует события индекса в protobuf Struct.
type EventEncoder struct {
	now func() time.Time
}

func NewEventEncoder() *EventEncoder {
	return &EventEncoder{now: time.Now}
}

func (enc *EventEncoder) EncodeImageIndexed(image *domain.IndexedImage) ([]byte, error) {
	event, err := structpb.NewStruct(map[string]any{
		"event_type":      string(usecase.EventImageIndexed),
		"event_timestamp": float64(enc.now().UnixMilli()),
		"image": map[string]any{
			"id":         image.ID,
			"name":       image.Name,
			"object_key": image.ObjectKey,
			"mime_type":  image.MimeType,
			"width":      float64(image.Width),
			"height":     float64(image.Height),
			"model_path": image.ModelPath,
			"created_at": image.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	data, err := proto.Marshal(event)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return data, nil
}
