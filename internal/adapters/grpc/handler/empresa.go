package handler

import (
	"context"

	"github.com/ogurasousui/basex-empresa/internal/core/org"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// EmpresaGrpcHandler は EmpresaService の gRPC 実装です。
type EmpresaGrpcHandler struct {
	svc org.UseCase
}

var _ EmpresaServer = (*EmpresaGrpcHandler)(nil)

// NewEmpresaGrpcHandler は EmpresaGrpcHandler を生成します。
func NewEmpresaGrpcHandler(svc org.UseCase) *EmpresaGrpcHandler {
	return &EmpresaGrpcHandler{svc: svc}
}

// DepartmentExists は部署の存在を確認します。
func (h *EmpresaGrpcHandler) DepartmentExists(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	exists, err := h.svc.DepartmentExists(ctx, req.GetValue())
	if err != nil {
		return nil, toStatusError(err)
	}
	return wrapperspb.Bool(exists), nil
}

// EmployeeExists は社員の存在を確認します。
func (h *EmpresaGrpcHandler) EmployeeExists(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	exists, err := h.svc.EmployeeExists(ctx, req.GetValue())
	if err != nil {
		return nil, toStatusError(err)
	}
	return wrapperspb.Bool(exists), nil
}

// GetDepartment は社員を含めずに部署を取得します。
func (h *EmpresaGrpcHandler) GetDepartment(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	return h.getDepartment(ctx, req, h.svc.FetchDepartment)
}

// GetDepartmentWithEmployees は所属社員を含めて部署を取得します。
func (h *EmpresaGrpcHandler) GetDepartmentWithEmployees(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	return h.getDepartment(ctx, req, h.svc.FetchDepartmentWithEmployees)
}

func (h *EmpresaGrpcHandler) getDepartment(ctx context.Context, req *wrapperspb.StringValue, fetch func(context.Context, string) (*org.Department, error)) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	dept, err := fetch(ctx, req.GetValue())
	if err != nil {
		return nil, toStatusError(err)
	}
	out, err := departmentToStruct(dept)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// GetEmployee は社員を取得します。
func (h *EmpresaGrpcHandler) GetEmployee(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	emp, err := h.svc.FetchEmployee(ctx, req.GetValue())
	if err != nil {
		return nil, toStatusError(err)
	}
	out, err := employeeToStruct(emp)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// InsertDepartment は部署と所属社員を挿入します。
func (h *EmpresaGrpcHandler) InsertDepartment(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	dept, err := structToDepartment(req)
	if err != nil {
		return nil, err
	}
	if err := h.svc.InsertDepartment(ctx, dept); err != nil {
		return nil, toStatusError(err)
	}
	return &emptypb.Empty{}, nil
}

// DeleteDepartment は部署と所属社員を削除します。
func (h *EmpresaGrpcHandler) DeleteDepartment(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if err := h.svc.DeleteDepartment(ctx, &org.Department{Code: req.GetValue()}); err != nil {
		return nil, toStatusError(err)
	}
	return &emptypb.Empty{}, nil
}

// DeleteDepartmentReassign は所属社員を target に移してから部署を削除します。
func (h *EmpresaGrpcHandler) DeleteDepartmentReassign(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	dept := &org.Department{Code: stringField(req, fieldDepartment)}
	target := &org.Department{Code: stringField(req, fieldTarget)}
	if err := h.svc.DeleteDepartmentReassign(ctx, dept, target); err != nil {
		return nil, toStatusError(err)
	}
	return &emptypb.Empty{}, nil
}

// ReplaceDepartment は replace の部署を、department の部署で置き換えます。
func (h *EmpresaGrpcHandler) ReplaceDepartment(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	in := req.GetFields()[fieldDepartment].GetStructValue()
	if in == nil {
		return nil, invalidField(fieldDepartment, "must be an object")
	}
	toInsert, err := structToDepartment(in)
	if err != nil {
		return nil, err
	}
	toReplace := &org.Department{Code: stringField(req, fieldReplace)}
	if err := h.svc.ReplaceDepartment(ctx, toInsert, toReplace); err != nil {
		return nil, toStatusError(err)
	}
	return &emptypb.Empty{}, nil
}

// ReassignManager は from を上司とする社員の上司を to に付け替えます。
func (h *EmpresaGrpcHandler) ReassignManager(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if err := h.svc.ReassignManager(ctx, stringField(req, fieldFrom), stringField(req, fieldTo)); err != nil {
		return nil, toStatusError(err)
	}
	return &emptypb.Empty{}, nil
}

// InsertMissingEmployees は既存の部署に未登録の所属社員を挿入します。
func (h *EmpresaGrpcHandler) InsertMissingEmployees(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	dept, err := structToDepartment(req)
	if err != nil {
		return nil, err
	}
	if err := h.svc.InsertMissingEmployees(ctx, dept); err != nil {
		return nil, toStatusError(err)
	}
	return &emptypb.Empty{}, nil
}

// DeleteOrphanEmployees は存在しない部署を参照している社員を削除します。
func (h *EmpresaGrpcHandler) DeleteOrphanEmployees(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if err := h.svc.DeleteOrphanEmployees(ctx, req.GetValue()); err != nil {
		return nil, toStatusError(err)
	}
	return &emptypb.Empty{}, nil
}

// ReassignOrphanEmployees は存在しない部署 from を参照している社員を to に付け替えます。
func (h *EmpresaGrpcHandler) ReassignOrphanEmployees(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if err := h.svc.ReassignOrphanEmployees(ctx, stringField(req, fieldFrom), stringField(req, fieldTo)); err != nil {
		return nil, toStatusError(err)
	}
	return &emptypb.Empty{}, nil
}

// ListOperationSteps は操作ジャーナルのステップを返します。
func (h *EmpresaGrpcHandler) ListOperationSteps(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	steps, err := h.svc.OperationSteps(ctx, req.GetValue())
	if err != nil {
		return nil, toStatusError(err)
	}
	out, err := stepsToStruct(req.GetValue(), steps)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}
