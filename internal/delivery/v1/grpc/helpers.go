package grpc

import (
	"github.com/DRSN-tech/clip-backend/internal/domain"
	"github.com/DRSN-tech/clip-backend/internal/engine"
	"github.com/DRSN-tech/clip-backend/internal/rpc"
	"github.com/DRSN-tech/clip-backend/pkg/logger"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GRPCErrorResponse логирует ошибку и переводит её в gRPC-статус.
// Клиентские ошибки пишутся как предупреждения.
func GRPCErrorResponse(log logger.Logger, op string, err error) error {
	st := rpc.ToStatus(err)

	switch status.Code(st) {
	case codes.Internal, codes.Unknown:
		log.Errorf(err, "%s", op)
	default:
		log.Warnf("%s: %v", op, err)
	}

	return st
}

func toEncodeOptions(threads, dims int32, normalize bool) engine.EncodeOptions {
	return engine.EncodeOptions{
		Threads:   int(threads),
		Dims:      int(dims),
		Normalize: normalize,
	}
}

func toEncodeResponse(emb *domain.Embedding) *rpc.EncodeResponse {
	return &rpc.EncodeResponse{Vector: emb.Vector}
}
