package e

import "fmt"

var (
	// Ошибки движка эмбеддингов
	ErrLoad               = fmt.Errorf("model load failed")
	ErrEncode             = fmt.Errorf("encode failed")
	ErrInvalidArgument    = fmt.Errorf("invalid argument")
	ErrModelNotLoaded     = fmt.Errorf("model is not loaded")
	ErrModelAlreadyLoaded = fmt.Errorf("model is already loaded")
	ErrModelClosed        = fmt.Errorf("model is closed")
	ErrEngineUnavailable  = fmt.Errorf("engine unavailable")

	// Внутренние ошибки с транзакциями
	ErrTransactionNotFound = fmt.Errorf("transaction not found")

	// 409 Conflict
	ErrDuplicate = fmt.Errorf("already exists")

	// Внутренние ошибки с векторами
	ErrEmptyVectors        = fmt.Errorf("empty vectors")
	ErrImageVectorMismatch = fmt.Errorf("image vector mismatch")

	// Ошибки конфигурации
	ErrIncorrectEnvVariable = fmt.Errorf("incorrect env variable")

	// 400 Bad Request
	ErrStatusBadRequest     = fmt.Errorf("bad request")
	ErrExpectedMultipart    = fmt.Errorf("expected multipart/form-data")
	ErrExpectedJSON         = fmt.Errorf("expected application/json")
	ErrMissingFields        = fmt.Errorf("missing required fields")
	ErrNoImages             = fmt.Errorf("no images provided")
	ErrTooManyImages        = fmt.Errorf("too many images")
	ErrFileTooLarge         = fmt.Errorf("file too large")
	ErrInvalidImage         = fmt.Errorf("invalid image")
	ErrEmptyText            = fmt.Errorf("text is empty")
	ErrNotEnoughLabels      = fmt.Errorf("at least two labels are required")
	ErrInvalidLimit         = fmt.Errorf("invalid limit")
	ErrInvalidScore         = fmt.Errorf("invalid score threshold")
	ErrScorePrecision       = fmt.Errorf("score threshold must have at most 4 decimal places")
	ErrUnsupportedMediaType = fmt.Errorf("unsupported media type")

	// 500 Internal Server Error
	ErrInternalServerError = fmt.Errorf("internal server error")
)

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}
