package domain

import (
	"fmt"

	"github.com/DRSN-tech/clip-backend/pkg/e"
)

// Image описывает изображение, которое хранится в S3
type Image struct {
	ID        string // uuid
	Bucket    string
	ObjectKey string
	Bytes     []byte
	// Передайте значение -1 в Size, если размер потока неизвестен
	// (внимание: при передаче значения -1 будет выделен большой объем памяти).
	Size     *int64
	MimeType *string // Example: "image/jpeg"
}

func NewImage(id string, bucket string, objectKey string, data []byte, size *int64, mimeType *string) *Image {
	return &Image{
		ID:        id,
		Bucket:    bucket,
		ObjectKey: objectKey,
		Bytes:     data,
		Size:      size,
		MimeType:  mimeType,
	}
}

// ImageBuffer — несжатое RGB-изображение: Width*Height*3 байт, построчно, без выравнивания
type ImageBuffer struct {
	Width  int
	Height int
	Pixels []byte
}

func NewImageBuffer(width int, height int, pixels []byte) ImageBuffer {
	return ImageBuffer{
		Width:  width,
		Height: height,
		Pixels: pixels,
	}
}

// Validate проверяет размеры и длину буфера
func (b ImageBuffer) Validate() error {
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("%w: image size %dx%d", e.ErrInvalidImage, b.Width, b.Height)
	}

	if want := b.Width * b.Height * 3; len(b.Pixels) != want {
		return fmt.Errorf("%w: expected %d bytes for %dx%d RGB, got %d", e.ErrInvalidImage, want, b.Width, b.Height, len(b.Pixels))
	}

	return nil
}
