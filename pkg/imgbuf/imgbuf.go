// Package imgbuf превращает закодированные изображения в RGB-буферы для движка CLIP.
package imgbuf

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"

	"github.com/DRSN-tech/clip-backend/internal/domain"
	"github.com/DRSN-tech/clip-backend/pkg/e"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DefaultMaxPixels ограничивает площадь изображения до декодирования пикселей (около 7000x7000)
const DefaultMaxPixels = 50_000_000

// Options управляет декодированием.
// MaxSide > 0 уменьшает изображение так, чтобы большая сторона не превышала MaxSide.
// MaxPixels <= 0 означает DefaultMaxPixels.
type Options struct {
	MaxSide   int
	MaxPixels int
}

// Decode декодирует JPEG, PNG, GIF или WebP в буфер RGB без выравнивания строк.
func Decode(data []byte, opts Options) (domain.ImageBuffer, error) {
	const op = "imgbuf.Decode"

	if len(data) == 0 {
		return domain.ImageBuffer{}, e.Wrap(op, e.ErrInvalidImage)
	}

	if !IsSupportedMIME(DetectMIME(data)) {
		return domain.ImageBuffer{}, e.Wrap(op, e.ErrUnsupportedMediaType)
	}

	// Размер берётся из заголовка: полный буфер выделяется только для допустимых изображений
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return domain.ImageBuffer{}, e.Wrap(op, fmt.Errorf("%w: %v", e.ErrInvalidImage, err))
	}

	maxPixels := opts.MaxPixels
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return domain.ImageBuffer{}, e.Wrap(op, fmt.Errorf("%w: %dx%d exceeds %d pixels",
			e.ErrInvalidImage, cfg.Width, cfg.Height, maxPixels))
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return domain.ImageBuffer{}, e.Wrap(op, fmt.Errorf("%w: %v", e.ErrInvalidImage, err))
	}

	if opts.MaxSide > 0 {
		img = downscale(img, opts.MaxSide)
	}

	return FromImage(img), nil
}

// Dimensions читает размеры изображения из заголовка, не декодируя пиксели.
func Dimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, e.Wrap("imgbuf.Dimensions", fmt.Errorf("%w: %v", e.ErrInvalidImage, err))
	}

	return cfg.Width, cfg.Height, nil
}

// FromImage копирует image.Image в RGB-буфер. Альфа-канал отбрасывается,
// цвет берётся без премультипликации.
func FromImage(img image.Image) domain.ImageBuffer {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pixels := make([]byte, 0, w*h*3)

	switch src := img.(type) {
	case *image.NRGBA:
		for y := 0; y < h; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+w*4]
			for x := 0; x < w; x++ {
				pixels = append(pixels, row[x*4], row[x*4+1], row[x*4+2])
			}
		}
	case *image.RGBA:
		for y := 0; y < h; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+w*4]
			for x := 0; x < w; x++ {
				a := row[x*4+3]
				pixels = append(pixels, unpremultiply(row[x*4], a), unpremultiply(row[x*4+1], a), unpremultiply(row[x*4+2], a))
			}
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
				pixels = append(pixels, c.R, c.G, c.B)
			}
		}
	}

	return domain.NewImageBuffer(w, h, pixels)
}

func unpremultiply(c, a uint8) uint8 {
	if a == 0xff || a == 0 {
		return c
	}
	return uint8(uint16(c) * 0xff / uint16(a))
}

// DetectMIME определяет MIME-тип по первым 512 байтам.
func DetectMIME(data []byte) string {
	return http.DetectContentType(data[:min(len(data), 512)])
}

// IsSupportedMIME сообщает, умеет ли пакет декодировать данный тип.
func IsSupportedMIME(mime string) bool {
	switch mime {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

// downscale пропорционально уменьшает изображение до maxSide по большей стороне.
func downscale(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxSide && h <= maxSide {
		return img
	}

	nw, nh := maxSide, maxSide
	if w > h {
		nh = max(1, h*maxSide/w)
	} else {
		nw = max(1, w*maxSide/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)

	return dst
}
