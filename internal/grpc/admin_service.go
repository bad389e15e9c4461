package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const adminServiceName = "hydro360.admin.v1.AdminService"

// AdminServiceServer is the staff API exposed over gRPC. Requests and
// responses are protobuf Structs shaped like the REST payloads.
type AdminServiceServer interface {
	DashboardStats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ListReports(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateReportStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EmergencyAlerts(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	SetUserRole(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// AdminServiceDesc describes AdminServiceServer for grpc.Server.RegisterService.
var AdminServiceDesc = grpc.ServiceDesc{
	ServiceName: adminServiceName,
	HandlerType: (*AdminServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("DashboardStats", newEmpty, AdminServiceServer.DashboardStats),
		unary("ListReports", newStruct, AdminServiceServer.ListReports),
		unary("UpdateReportStatus", newStruct, AdminServiceServer.UpdateReportStatus),
		unary("EmergencyAlerts", newEmpty, AdminServiceServer.EmergencyAlerts),
		unary("SetUserRole", newStruct, AdminServiceServer.SetUserRole),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "hydro360/admin/v1/admin.proto",
}

// RegisterAdminServiceServer registers srv on s.
func RegisterAdminServiceServer(s grpc.ServiceRegistrar, srv AdminServiceServer) {
	s.RegisterService(&AdminServiceDesc, srv)
}

func newEmpty() *emptypb.Empty    { return new(emptypb.Empty) }
func newStruct() *structpb.Struct { return new(structpb.Struct) }

func fullMethod(name string) string {
	return "/" + adminServiceName + "/" + name
}

// unary builds the method descriptor for one request/response call.
func unary[T proto.Message](name string, newReq func() T, call func(AdminServiceServer, context.Context, T) (*structpb.Struct, error)) grpc.MethodDesc {
	full := fullMethod(name)
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(AdminServiceServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(T))
			})
		},
	}
}

// AdminServiceClient calls AdminService over a client connection.
type AdminServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewAdminServiceClient(cc grpc.ClientConnInterface) *AdminServiceClient {
	return &AdminServiceClient{cc: cc}
}

func (c *AdminServiceClient) invoke(ctx context.Context, method string, in proto.Message, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AdminServiceClient) DashboardStats(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "DashboardStats", &emptypb.Empty{}, opts...)
}

func (c *AdminServiceClient) ListReports(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ListReports", in, opts...)
}

func (c *AdminServiceClient) UpdateReportStatus(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "UpdateReportStatus", in, opts...)
}

func (c *AdminServiceClient) EmergencyAlerts(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "EmergencyAlerts", &emptypb.Empty{}, opts...)
}

func (c *AdminServiceClient) SetUserRole(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "SetUserRole", in, opts...)
}
