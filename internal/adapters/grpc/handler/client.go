package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ogurasousui/basex-empresa/internal/core/org"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// EmpresaClient は EmpresaService を呼び出す org.UseCase の実装です。
//
// gRPC ステータスは org のエラー分類に戻されるため、呼び出し側はローカルの Service と同様に errors.Is で判定できます。
type EmpresaClient struct {
	cc grpc.ClientConnInterface
}

var _ org.UseCase = (*EmpresaClient)(nil)

// NewEmpresaClient は EmpresaClient を生成します。
func NewEmpresaClient(cc grpc.ClientConnInterface) *EmpresaClient {
	return &EmpresaClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, FullMethod(method), in, out); err != nil {
		return nil, fromStatusError(err)
	}
	return out, nil
}

// DepartmentExists は部署の存在を確認します。
func (c *EmpresaClient) DepartmentExists(ctx context.Context, code string) (bool, error) {
	out, err := invoke[wrapperspb.BoolValue](ctx, c.cc, "DepartmentExists", wrapperspb.String(code))
	if err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

// EmployeeExists は社員の存在を確認します。
func (c *EmpresaClient) EmployeeExists(ctx context.Context, code string) (bool, error) {
	out, err := invoke[wrapperspb.BoolValue](ctx, c.cc, "EmployeeExists", wrapperspb.String(code))
	if err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

// FetchDepartment は社員を含めずに部署を取得します。
func (c *EmpresaClient) FetchDepartment(ctx context.Context, code string) (*org.Department, error) {
	return c.fetchDepartment(ctx, "GetDepartment", code)
}

// FetchDepartmentWithEmployees は所属社員を含めて部署を取得します。
func (c *EmpresaClient) FetchDepartmentWithEmployees(ctx context.Context, code string) (*org.Department, error) {
	dept, err := c.fetchDepartment(ctx, "GetDepartmentWithEmployees", code)
	if err != nil {
		return nil, err
	}
	if dept.Employees == nil {
		dept.Employees = []*org.Employee{}
	}
	return dept, nil
}

func (c *EmpresaClient) fetchDepartment(ctx context.Context, method, code string) (*org.Department, error) {
	out, err := invoke[structpb.Struct](ctx, c.cc, method, wrapperspb.String(code))
	if err != nil {
		return nil, err
	}
	dept, err := structToDepartment(out)
	if err != nil {
		return nil, fmt.Errorf("decode department: %w: %w", org.ErrCodec, err)
	}
	return dept, nil
}

// FetchEmployee は社員を取得します。
func (c *EmpresaClient) FetchEmployee(ctx context.Context, code string) (*org.Employee, error) {
	out, err := invoke[structpb.Struct](ctx, c.cc, "GetEmployee", wrapperspb.String(code))
	if err != nil {
		return nil, err
	}
	emp, err := structToEmployee(out)
	if err != nil {
		return nil, fmt.Errorf("decode employee: %w: %w", org.ErrCodec, err)
	}
	return emp, nil
}

// InsertDepartment は部署と所属社員を挿入します。
func (c *EmpresaClient) InsertDepartment(ctx context.Context, dept *org.Department) error {
	if dept == nil {
		return org.ErrNilEntity
	}
	in, err := departmentToStruct(dept)
	if err != nil {
		return fmt.Errorf("encode department: %w: %w", org.ErrCodec, err)
	}
	_, err = invoke[emptypb.Empty](ctx, c.cc, "InsertDepartment", in)
	return err
}

// DeleteDepartment は部署と所属社員を削除します。
func (c *EmpresaClient) DeleteDepartment(ctx context.Context, dept *org.Department) error {
	if dept == nil {
		return org.ErrNilEntity
	}
	_, err := invoke[emptypb.Empty](ctx, c.cc, "DeleteDepartment", wrapperspb.String(dept.Code))
	return err
}

// DeleteDepartmentReassign は所属社員を newDept に移してから部署を削除します。
func (c *EmpresaClient) DeleteDepartmentReassign(ctx context.Context, dept, newDept *org.Department) error {
	if dept == nil || newDept == nil {
		return org.ErrNilEntity
	}
	in, err := structpb.NewStruct(map[string]any{fieldDepartment: dept.Code, fieldTarget: newDept.Code})
	if err != nil {
		return fmt.Errorf("encode request: %w: %w", org.ErrCodec, err)
	}
	_, err = invoke[emptypb.Empty](ctx, c.cc, "DeleteDepartmentReassign", in)
	return err
}

// ReplaceDepartment は toReplace を toInsert で置き換えます。
func (c *EmpresaClient) ReplaceDepartment(ctx context.Context, toInsert, toReplace *org.Department) error {
	if toInsert == nil || toReplace == nil {
		return org.ErrNilEntity
	}
	dept, err := departmentToStruct(toInsert)
	if err != nil {
		return fmt.Errorf("encode department: %w: %w", org.ErrCodec, err)
	}
	in := &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldDepartment: structpb.NewStructValue(dept),
		fieldReplace:    structpb.NewStringValue(toReplace.Code),
	}}
	_, err = invoke[emptypb.Empty](ctx, c.cc, "ReplaceDepartment", in)
	return err
}

// ReassignManager は fromCode を上司とする社員の上司を toCode に付け替えます。
func (c *EmpresaClient) ReassignManager(ctx context.Context, fromCode, toCode string) error {
	in, err := structpb.NewStruct(map[string]any{fieldFrom: fromCode, fieldTo: toCode})
	if err != nil {
		return fmt.Errorf("encode request: %w: %w", org.ErrCodec, err)
	}
	_, err = invoke[emptypb.Empty](ctx, c.cc, "ReassignManager", in)
	return err
}

// InsertMissingEmployees は既存の部署に未登録の所属社員を挿入します。
func (c *EmpresaClient) InsertMissingEmployees(ctx context.Context, dept *org.Department) error {
	if dept == nil {
		return org.ErrNilEntity
	}
	in, err := departmentToStruct(dept)
	if err != nil {
		return fmt.Errorf("encode department: %w: %w", org.ErrCodec, err)
	}
	_, err = invoke[emptypb.Empty](ctx, c.cc, "InsertMissingEmployees", in)
	return err
}

// DeleteOrphanEmployees は存在しない部署を参照している社員を削除します。
func (c *EmpresaClient) DeleteOrphanEmployees(ctx context.Context, departmentCode string) error {
	_, err := invoke[emptypb.Empty](ctx, c.cc, "DeleteOrphanEmployees", wrapperspb.String(departmentCode))
	return err
}

// ReassignOrphanEmployees は存在しない部署 fromCode を参照している社員を toCode に付け替えます。
func (c *EmpresaClient) ReassignOrphanEmployees(ctx context.Context, fromCode, toCode string) error {
	in, err := structpb.NewStruct(map[string]any{fieldFrom: fromCode, fieldTo: toCode})
	if err != nil {
		return fmt.Errorf("encode request: %w: %w", org.ErrCodec, err)
	}
	_, err = invoke[emptypb.Empty](ctx, c.cc, "ReassignOrphanEmployees", in)
	return err
}

// OperationSteps は操作ジャーナルのステップを返します。
func (c *EmpresaClient) OperationSteps(ctx context.Context, operationID string) ([]org.Step, error) {
	out, err := invoke[structpb.Struct](ctx, c.cc, "ListOperationSteps", wrapperspb.String(operationID))
	if err != nil {
		return nil, err
	}
	return structToSteps(out)
}

func structToSteps(s *structpb.Struct) ([]org.Step, error) {
	operationID := stringField(s, fieldOperationID)
	values := s.GetFields()[fieldSteps].GetListValue().GetValues()
	steps := make([]org.Step, 0, len(values))
	for _, v := range values {
		f := v.GetStructValue()
		recordedAt, err := time.Parse(time.RFC3339Nano, stringField(f, fieldRecordedAt))
		if err != nil {
			return nil, fmt.Errorf("decode step: %w: %w", org.ErrCodec, err)
		}
		steps = append(steps, org.Step{
			OperationID: operationID,
			Index:       int(f.GetFields()[fieldIndex].GetNumberValue()),
			Name:        stringField(f, fieldName),
			Status:      org.StepStatus(stringField(f, fieldStatus)),
			Detail:      stringField(f, fieldDetail),
			RecordedAt:  recordedAt,
		})
	}
	return steps, nil
}

// fromStatusError は gRPC ステータスを org のエラー分類に戻します。
func fromStatusError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: %w", org.ErrTransport, err)
	}

	var kind error
	switch st.Code() {
	case codes.NotFound:
		kind = org.ErrNotFound
	case codes.AlreadyExists:
		kind = org.ErrAlreadyExists
	case codes.InvalidArgument:
		kind = org.ErrValidation
	case codes.FailedPrecondition:
		kind = org.ErrReferentialViolation
	case codes.DataLoss:
		kind = org.ErrCodec
	case codes.Unavailable:
		kind = org.ErrTransport
	case codes.DeadlineExceeded:
		kind = context.DeadlineExceeded
	case codes.Canceled:
		kind = context.Canceled
	default:
		return err
	}
	wrapped := fmt.Errorf("%s: %w", st.Message(), kind)

	info, ok := StepFailure(err)
	if !ok {
		return wrapped
	}
	md := info.GetMetadata()
	return &org.StepError{
		OperationID: md["operation_id"],
		Operation:   md["operation"],
		Step:        md["step"],
		Completed:   splitSteps(md["completed"]),
		Applied:     splitSteps(md["applied"]),
		Err:         wrapped,
	}
}

func splitSteps(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ",")
}
