package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName は EmpresaService の完全修飾名です。
const ServiceName = "empresa.v1.EmpresaService"

// EmpresaServer は EmpresaService のサーバー側インターフェースです。
//
// メッセージは well-known types のみで構成され、部署・社員は structpb.Struct で表現します。
type EmpresaServer interface {
	DepartmentExists(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	EmployeeExists(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	GetDepartment(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	GetDepartmentWithEmployees(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	GetEmployee(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	InsertDepartment(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	DeleteDepartment(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	DeleteDepartmentReassign(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	ReplaceDepartment(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	ReassignManager(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	InsertMissingEmployees(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	DeleteOrphanEmployees(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	ReassignOrphanEmployees(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	ListOperationSteps(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
}

// EmpresaServiceDesc は EmpresaService の grpc.ServiceDesc です。
var EmpresaServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EmpresaServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("DepartmentExists", EmpresaServer.DepartmentExists),
		unary("EmployeeExists", EmpresaServer.EmployeeExists),
		unary("GetDepartment", EmpresaServer.GetDepartment),
		unary("GetDepartmentWithEmployees", EmpresaServer.GetDepartmentWithEmployees),
		unary("GetEmployee", EmpresaServer.GetEmployee),
		unary("InsertDepartment", EmpresaServer.InsertDepartment),
		unary("DeleteDepartment", EmpresaServer.DeleteDepartment),
		unary("DeleteDepartmentReassign", EmpresaServer.DeleteDepartmentReassign),
		unary("ReplaceDepartment", EmpresaServer.ReplaceDepartment),
		unary("ReassignManager", EmpresaServer.ReassignManager),
		unary("InsertMissingEmployees", EmpresaServer.InsertMissingEmployees),
		unary("DeleteOrphanEmployees", EmpresaServer.DeleteOrphanEmployees),
		unary("ReassignOrphanEmployees", EmpresaServer.ReassignOrphanEmployees),
		unary("ListOperationSteps", EmpresaServer.ListOperationSteps),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "empresa/v1/empresa.proto",
}

// RegisterEmpresaServer は srv を EmpresaService として登録します。
func RegisterEmpresaServer(s grpc.ServiceRegistrar, srv EmpresaServer) {
	s.RegisterService(&EmpresaServiceDesc, srv)
}

// FullMethod はメソッド名から gRPC のフルメソッド名を返します。
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unary[Req, Resp any](method string, call func(EmpresaServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(EmpresaServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(EmpresaServer), ctx, req.(*Req))
			})
		},
	}
}
