package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/DRSN-tech/clip-backend/internal/usecase"
	"github.com/DRSN-tech/clip-backend/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/shopspring/decimal"
)

const (
	maxImageCount = 32
	maxFileSize   = 15 << 20
	maxMemory     = 32 << 20
	maxJSONBody   = 4 << 20
)

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewErrorResponse(code int, message string) *ErrorResponse {
	return &ErrorResponse{
		Code:    code,
		Message: message,
	}
}

// clientErrors возвращаются клиенту как 400 с текстом самой ошибки
var clientErrors = []error{
	e.ErrStatusBadRequest,
	e.ErrExpectedMultipart,
	e.ErrExpectedJSON,
	e.ErrMissingFields,
	e.ErrNoImages,
	e.ErrTooManyImages,
	e.ErrFileTooLarge,
	e.ErrInvalidImage,
	e.ErrEmptyText,
	e.ErrNotEnoughLabels,
	e.ErrInvalidLimit,
	e.ErrInvalidScore,
	e.ErrScorePrecision,
	e.ErrEmptyVectors,
	e.ErrInvalidArgument,
	e.ErrEncode,
}

func ToHTTPResponse(err error) (int, string) {
	for _, target := range clientErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest, target.Error()
		}
	}

	switch {
	case errors.Is(err, e.ErrDuplicate):
		return http.StatusConflict, e.ErrDuplicate.Error()
	case errors.Is(err, e.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType, e.ErrUnsupportedMediaType.Error()
	case errors.Is(err, e.ErrModelNotLoaded):
		return http.StatusServiceUnavailable, e.ErrModelNotLoaded.Error()
	case errors.Is(err, e.ErrModelClosed):
		return http.StatusServiceUnavailable, e.ErrModelClosed.Error()
	case errors.Is(err, e.ErrEngineUnavailable):
		return http.StatusServiceUnavailable, e.ErrEngineUnavailable.Error()
	default:
		return http.StatusInternalServerError, e.ErrInternalServerError.Error()
	}
}

func WriteError(w http.ResponseWriter, err error) {
	code, msg := ToHTTPResponse(err)
	WriteSuccess(w, code, NewErrorResponse(code, msg))
}

func WriteSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// parseMinScore разбирает порог сходства вида "0.25".
// Допускается не более 4 значащих знаков после запятой и диапазон [-1, 1].
func parseMinScore(s string) (*float32, error) {
	const op = "parseMinScore"

	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: %q", e.ErrInvalidScore, s))
	}

	if d.LessThan(decimal.NewFromInt(-1)) || d.GreaterThan(decimal.NewFromInt(1)) {
		return nil, e.Wrap(op, fmt.Errorf("%w: %s", e.ErrInvalidScore, d))
	}

	// Нули в конце не считаются: "0.25000" равно 0.25
	if !d.Equal(d.Round(4)) {
		return nil, e.Wrap(op, fmt.Errorf("%w: %s", e.ErrScorePrecision, d))
	}

	f, _ := d.Float64()
	score := float32(f)
	return &score, nil
}

// parseLimit разбирает limit; пустое значение означает лимит по умолчанию.
func parseLimit(s string) (int, error) {
	const op = "parseLimit"

	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	limit, err := strconv.Atoi(s)
	if err != nil || limit <= 0 {
		return 0, e.Wrap(op, fmt.Errorf("%w: %q", e.ErrInvalidLimit, s))
	}

	return limit, nil
}

func ensureMultipartForm(r *http.Request) error {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return e.Wrap(whereami.WhereAmI(), e.ErrExpectedMultipart)
	}
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		return fmt.Errorf("%w: %v", e.ErrStatusBadRequest, err)
	}
	return nil
}

func decodeJSON(r *http.Request, w http.ResponseWriter, dst any) error {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return e.Wrap(whereami.WhereAmI(), e.ErrExpectedJSON)
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", e.ErrStatusBadRequest, err)
	}
	return nil
}

func parseImages(files []*multipart.FileHeader) ([]usecase.UploadedImage, error) {
	if len(files) == 0 {
		return nil, e.ErrNoImages
	}
	if len(files) > maxImageCount {
		return nil, e.ErrTooManyImages
	}

	images := make([]usecase.UploadedImage, 0, len(files))
	for _, fh := range files {
		img, err := readImage(fh)
		if err != nil {
			return nil, err
		}
		images = append(images, *img)
	}
	return images, nil
}

// parseImage возвращает единственный файл поля field.
func parseImage(r *http.Request, field string) (*usecase.UploadedImage, error) {
	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		return nil, e.Wrap(field, e.ErrMissingFields)
	}
	if len(files) > 1 {
		return nil, e.Wrap(field, e.ErrTooManyImages)
	}
	return readImage(files[0])
}

func readImage(fh *multipart.FileHeader) (*usecase.UploadedImage, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxFileSize+1))
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	if int64(len(data)) > maxFileSize {
		return nil, e.Wrap(fh.Filename, e.ErrFileTooLarge)
	}
	if len(data) == 0 {
		return nil, e.Wrap(fh.Filename, e.ErrInvalidImage)
	}

	mimeType := http.DetectContentType(data[:min(len(data), 512)])
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, e.Wrap(fh.Filename, e.ErrUnsupportedMediaType)
	}

	return usecase.NewUploadedImage(data, mimeType, int64(len(data)), fh.Filename), nil
}

// formValues собирает непустые значения поля; значения через запятую разбиваются.
func formValues(r *http.Request, field string) []string {
	var out []string
	for _, v := range r.MultipartForm.Value[field] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
