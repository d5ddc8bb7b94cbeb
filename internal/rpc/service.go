package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "clip.v1.EmbeddingService"

const (
	GetModelInfoFullMethodName     = "/" + ServiceName + "/GetModelInfo"
	EncodeTextFullMethodName       = "/" + ServiceName + "/EncodeText"
	EncodeImageFullMethodName      = "/" + ServiceName + "/EncodeImage"
	EncodeImageBatchFullMethodName = "/" + ServiceName + "/EncodeImageBatch"
	SimilarityFullMethodName       = "/" + ServiceName + "/Similarity"
)

// EmbeddingServiceClient — клиент сервиса эмбеддингов.
type EmbeddingServiceClient interface {
	GetModelInfo(ctx context.Context, in *ModelInfoRequest, opts ...grpc.CallOption) (*ModelInfoResponse, error)
	EncodeText(ctx context.Context, in *EncodeTextRequest, opts ...grpc.CallOption) (*EncodeResponse, error)
	EncodeImage(ctx context.Context, in *EncodeImageRequest, opts ...grpc.CallOption) (*EncodeResponse, error)
	EncodeImageBatch(ctx context.Context, in *EncodeImageBatchRequest, opts ...grpc.CallOption) (*EncodeBatchResponse, error)
	Similarity(ctx context.Context, in *SimilarityRequest, opts ...grpc.CallOption) (*SimilarityResponse, error)
}

type embeddingServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewEmbeddingServiceClient(cc grpc.ClientConnInterface) EmbeddingServiceClient {
	return &embeddingServiceClient{cc}
}

func (c *embeddingServiceClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *embeddingServiceClient) GetModelInfo(ctx context.Context, in *ModelInfoRequest, opts ...grpc.CallOption) (*ModelInfoResponse, error) {
	out := new(ModelInfoResponse)
	if err := c.invoke(ctx, GetModelInfoFullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *embeddingServiceClient) EncodeText(ctx context.Context, in *EncodeTextRequest, opts ...grpc.CallOption) (*EncodeResponse, error) {
	out := new(EncodeResponse)
	if err := c.invoke(ctx, EncodeTextFullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *embeddingServiceClient) EncodeImage(ctx context.Context, in *EncodeImageRequest, opts ...grpc.CallOption) (*EncodeResponse, error) {
	out := new(EncodeResponse)
	if err := c.invoke(ctx, EncodeImageFullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *embeddingServiceClient) EncodeImageBatch(ctx context.Context, in *EncodeImageBatchRequest, opts ...grpc.CallOption) (*EncodeBatchResponse, error) {
	out := new(EncodeBatchResponse)
	if err := c.invoke(ctx, EncodeImageBatchFullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *embeddingServiceClient) Similarity(ctx context.Context, in *SimilarityRequest, opts ...grpc.CallOption) (*SimilarityResponse, error) {
	out := new(SimilarityResponse)
	if err := c.invoke(ctx, SimilarityFullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// EmbeddingServiceServer — серверная часть сервиса эмбеддингов.
type EmbeddingServiceServer interface {
	GetModelInfo(context.Context, *ModelInfoRequest) (*ModelInfoResponse, error)
	EncodeText(context.Context, *EncodeTextRequest) (*EncodeResponse, error)
	EncodeImage(context.Context, *EncodeImageRequest) (*EncodeResponse, error)
	EncodeImageBatch(context.Context, *EncodeImageBatchRequest) (*EncodeBatchResponse, error)
	Similarity(context.Context, *SimilarityRequest) (*SimilarityResponse, error)
}

// UnimplementedEmbeddingServiceServer возвращает codes.Unimplemented для всех методов.
type UnimplementedEmbeddingServiceServer struct{}

func (UnimplementedEmbeddingServiceServer) GetModelInfo(context.Context, *ModelInfoRequest) (*ModelInfoResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetModelInfo not implemented")
}

func (UnimplementedEmbeddingServiceServer) EncodeText(context.Context, *EncodeTextRequest) (*EncodeResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method EncodeText not implemented")
}

func (UnimplementedEmbeddingServiceServer) EncodeImage(context.Context, *EncodeImageRequest) (*EncodeResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method EncodeImage not implemented")
}

func (UnimplementedEmbeddingServiceServer) EncodeImageBatch(context.Context, *EncodeImageBatchRequest) (*EncodeBatchResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method EncodeImageBatch not implemented")
}

func (UnimplementedEmbeddingServiceServer) Similarity(context.Context, *SimilarityRequest) (*SimilarityResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Similarity not implemented")
}

func RegisterEmbeddingServiceServer(s grpc.ServiceRegistrar, srv EmbeddingServiceServer) {
	s.RegisterService(&EmbeddingService_ServiceDesc, srv)
}

// unaryHandler собирает grpc.MethodHandler для метода с запросом типа Req.
func unaryHandler[Req any, Res any](fullMethod string, call func(EmbeddingServiceServer, context.Context, *Req) (*Res, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(EmbeddingServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(EmbeddingServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var EmbeddingService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EmbeddingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetModelInfo",
			Handler:    unaryHandler(GetModelInfoFullMethodName, EmbeddingServiceServer.GetModelInfo),
		},
		{
			MethodName: "EncodeText",
			Handler:    unaryHandler(EncodeTextFullMethodName, EmbeddingServiceServer.EncodeText),
		},
		{
			MethodName: "EncodeImage",
			Handler:    unaryHandler(EncodeImageFullMethodName, EmbeddingServiceServer.EncodeImage),
		},
		{
			MethodName: "EncodeImageBatch",
			Handler:    unaryHandler(EncodeImageBatchFullMethodName, EmbeddingServiceServer.EncodeImageBatch),
		},
		{
			MethodName: "Similarity",
			Handler:    unaryHandler(SimilarityFullMethodName, EmbeddingServiceServer.Similarity),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/rpc/service.go",
}
