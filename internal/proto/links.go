package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// The Links service is described by hand: every message is a
// google.protobuf.Struct, so no generated code is needed.
const serviceName = "linker.Links"

type LinksServer interface {
	List(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Create(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Edit(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Update(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Delete(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(LinksServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

var linksServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*LinksServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("List", LinksServer.List),
		unary("Create", LinksServer.Create),
		unary("Edit", LinksServer.Edit),
		unary("Update", LinksServer.Update),
		unary("Delete", LinksServer.Delete),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "linker/links",
}

func RegisterLinksServer(s *grpc.Server, srv LinksServer) {
	s.RegisterService(&linksServiceDesc, srv)
}

func unary(method string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(LinksServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod(method),
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(LinksServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func fullMethod(method string) string {
	return "/" + serviceName + "/" + method
}

type LinksClient struct {
	cc grpc.ClientConnInterface
}

func NewLinksClient(cc grpc.ClientConnInterface) *LinksClient {
	return &LinksClient{cc: cc}
}

func (c *LinksClient) List(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "List", in, opts...)
}

func (c *LinksClient) Create(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Create", in, opts...)
}

func (c *LinksClient) Edit(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Edit", in, opts...)
}

func (c *LinksClient) Update(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Update", in, opts...)
}

func (c *LinksClient) Delete(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Delete", in, opts...)
}

func (c *LinksClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
