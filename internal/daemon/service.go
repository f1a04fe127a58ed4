package daemon

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "tplstr.v1.TemplateService"

// Full method names, used for rate limits and client calls.
const (
	MethodPing             = "/" + ServiceName + "/Ping"
	MethodExtractVariables = "/" + ServiceName + "/ExtractVariables"
	MethodReconcile        = "/" + ServiceName + "/Reconcile"
	MethodRender           = "/" + ServiceName + "/Render"
)

// TemplateServiceServer is the server API of the template service. Messages
// are generic structs so the service needs no generated code.
type TemplateServiceServer interface {
	Ping(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ExtractVariables(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reconcile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Render(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterTemplateServiceServer registers srv on s.
func RegisterTemplateServiceServer(s grpc.ServiceRegistrar, srv TemplateServiceServer) {
	s.RegisterService(&templateServiceDesc, srv)
}

var templateServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TemplateServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Ping", Handler: pingHandler},
		{MethodName: "ExtractVariables", Handler: structHandler(MethodExtractVariables, TemplateServiceServer.ExtractVariables)},
		{MethodName: "Reconcile", Handler: structHandler(MethodReconcile, TemplateServiceServer.Reconcile)},
		{MethodName: "Render", Handler: structHandler(MethodRender, TemplateServiceServer.Render)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tplstr/v1/template.proto",
}

func pingHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TemplateServiceServer).Ping(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodPing}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TemplateServiceServer).Ping(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

type structMethod func(TemplateServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func structHandler(fullMethod string, call structMethod) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(TemplateServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(TemplateServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
