package rpc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/DRSN-tech/clip-backend/pkg/e"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ToStatus переводит ошибку движка в gRPC-статус.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}

	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, e.ErrModelNotLoaded), errors.Is(err, e.ErrModelClosed):
		// Повтор не поможет: состояние модели меняет только сервер
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, e.ErrEngineUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, e.ErrInvalidArgument),
		errors.Is(err, e.ErrInvalidImage),
		errors.Is(err, e.ErrEmptyText),
		errors.Is(err, e.ErrNoImages),
		errors.Is(err, e.ErrEncode):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// FromStatus переводит gRPC-статус обратно в ошибки пакета e.
func FromStatus(err error) error {
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: %w", e.ErrEngineUnavailable, err)
	}

	msg := st.Message()
	switch st.Code() {
	case codes.Canceled:
		return fmt.Errorf("%w: %s", context.Canceled, msg)
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", context.DeadlineExceeded, msg)
	case codes.FailedPrecondition:
		if strings.Contains(msg, e.ErrModelClosed.Error()) {
			return fmt.Errorf("%w: %s", e.ErrModelClosed, msg)
		}
		return fmt.Errorf("%w: %s", e.ErrModelNotLoaded, msg)
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %w: %s", e.ErrEncode, e.ErrInvalidArgument, msg)
	case codes.Unavailable, codes.Unimplemented, codes.ResourceExhausted:
		return fmt.Errorf("%w: %s", e.ErrEngineUnavailable, msg)
	default:
		return fmt.Errorf("%w: %s", e.ErrEncode, msg)
	}
}

// IsRetryable сообщает, имеет ли смысл повторить вызов с такой ошибкой.
func IsRetryable(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}
