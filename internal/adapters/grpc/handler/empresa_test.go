package handler

import (
	"context"
	"fmt"
	"testing"

	"github.com/ogurasousui/basex-empresa/internal/core/org"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type stubUseCase struct {
	existsOut bool
	existsErr error
	lastCode  string

	deptOut *org.Department
	deptErr error
	empOut  *org.Employee
	empErr  error

	inserted  *org.Department
	deleted   *org.Department
	reassign  [2]*org.Department
	replaced  [2]*org.Department
	managers  [2]string
	missing   *org.Department
	orphans   string
	adopted   [2]string
	mutateErr error

	stepsOut []org.Step
	stepsErr error
}

func (s *stubUseCase) DepartmentExists(_ context.Context, code string) (bool, error) {
	s.lastCode = code
	return s.existsOut, s.existsErr
}

func (s *stubUseCase) EmployeeExists(_ context.Context, code string) (bool, error) {
	s.lastCode = code
	return s.existsOut, s.existsErr
}

func (s *stubUseCase) FetchDepartment(_ context.Context, code string) (*org.Department, error) {
	s.lastCode = code
	return s.deptOut, s.deptErr
}

func (s *stubUseCase) FetchDepartmentWithEmployees(_ context.Context, code string) (*org.Department, error) {
	s.lastCode = code
	return s.deptOut, s.deptErr
}

func (s *stubUseCase) FetchEmployee(_ context.Context, code string) (*org.Employee, error) {
	s.lastCode = code
	return s.empOut, s.empErr
}

func (s *stubUseCase) InsertDepartment(_ context.Context, dept *org.Department) error {
	s.inserted = dept
	return s.mutateErr
}

func (s *stubUseCase) DeleteDepartment(_ context.Context, dept *org.Department) error {
	s.deleted = dept
	return s.mutateErr
}

func (s *stubUseCase) DeleteDepartmentReassign(_ context.Context, dept, newDept *org.Department) error {
	s.reassign = [2]*org.Department{dept, newDept}
	return s.mutateErr
}

func (s *stubUseCase) ReplaceDepartment(_ context.Context, toInsert, toReplace *org.Department) error {
	s.replaced = [2]*org.Department{toInsert, toReplace}
	return s.mutateErr
}

func (s *stubUseCase) ReassignManager(_ context.Context, fromCode, toCode string) error {
	s.managers = [2]string{fromCode, toCode}
	return s.mutateErr
}

func (s *stubUseCase) InsertMissingEmployees(_ context.Context, dept *org.Department) error {
	s.missing = dept
	return s.mutateErr
}

func (s *stubUseCase) DeleteOrphanEmployees(_ context.Context, departmentCode string) error {
	s.orphans = departmentCode
	return s.mutateErr
}

func (s *stubUseCase) ReassignOrphanEmployees(_ context.Context, fromCode, toCode string) error {
	s.adopted = [2]string{fromCode, toCode}
	return s.mutateErr
}

func (s *stubUseCase) OperationSteps(_ context.Context, operationID string) ([]org.Step, error) {
	s.lastCode = operationID
	return s.stepsOut, s.stepsErr
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("failed to build struct: %v", err)
	}
	return s
}

func TestEmpresaGrpcHandler_DepartmentExists(t *testing.T) {
	t.Parallel()

	stub := &stubUseCase{existsOut: true}
	h := NewEmpresaGrpcHandler(stub)

	resp, err := h.DepartmentExists(context.Background(), wrapperspb.String("D1"))
	if err != nil {
		t.Fatalf("DepartmentExists returned error: %v", err)
	}
	if !resp.GetValue() {
		t.Fatalf("expected true")
	}
	if stub.lastCode != "D1" {
		t.Fatalf("expected code D1 to be passed through, got %q", stub.lastCode)
	}

	if _, err := h.DepartmentExists(context.Background(), nil); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for nil request, got %v", status.Code(err))
	}
}

func TestEmpresaGrpcHandler_GetDepartmentWithEmployees(t *testing.T) {
	t.Parallel()

	dept := &org.Department{Code: "D1", Name: "Sales", Location: org.StringPtr("Boston")}
	dept.AddEmployee(&org.Employee{Code: "E1", DepartmentCode: "D1", Surname: "Smith", Salary: org.Int64Ptr(1800)})
	stub := &stubUseCase{deptOut: dept}
	h := NewEmpresaGrpcHandler(stub)

	resp, err := h.GetDepartmentWithEmployees(context.Background(), wrapperspb.String("D1"))
	if err != nil {
		t.Fatalf("GetDepartmentWithEmployees returned error: %v", err)
	}

	fields := resp.GetFields()
	if fields[fieldName].GetStringValue() != "Sales" || fields[fieldLocation].GetStringValue() != "Boston" {
		t.Fatalf("unexpected department fields: %v", fields)
	}
	employees := fields[fieldEmployees].GetListValue().GetValues()
	if len(employees) != 1 {
		t.Fatalf("expected 1 employee, got %d", len(employees))
	}
	emp := employees[0].GetStructValue().GetFields()
	if emp[fieldSurname].GetStringValue() != "Smith" || emp[fieldSalary].GetNumberValue() != 1800 {
		t.Fatalf("unexpected employee fields: %v", emp)
	}
	if _, ok := emp[fieldCommission]; ok {
		t.Fatalf("absent commission must not be rendered")
	}
}

func TestEmpresaGrpcHandler_GetDepartment_OmitsEmployeesWhenNotLoaded(t *testing.T) {
	t.Parallel()

	stub := &stubUseCase{deptOut: &org.Department{Code: "D1", Name: "Sales"}}
	h := NewEmpresaGrpcHandler(stub)

	resp, err := h.GetDepartment(context.Background(), wrapperspb.String("D1"))
	if err != nil {
		t.Fatalf("GetDepartment returned error: %v", err)
	}
	if _, ok := resp.GetFields()[fieldEmployees]; ok {
		t.Fatalf("employees must be omitted when not loaded")
	}
	if _, ok := resp.GetFields()[fieldLocation]; ok {
		t.Fatalf("absent location must be omitted")
	}
}

func TestEmpresaGrpcHandler_GetEmployee_NotFound(t *testing.T) {
	t.Parallel()

	stub := &stubUseCase{empErr: org.ErrEmployeeNotFound}
	h := NewEmpresaGrpcHandler(stub)

	_, err := h.GetEmployee(context.Background(), wrapperspb.String("E404"))
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", status.Code(err))
	}
}

func TestEmpresaGrpcHandler_InsertDepartment(t *testing.T) {
	t.Parallel()

	stub := &stubUseCase{}
	h := NewEmpresaGrpcHandler(stub)

	req := mustStruct(t, map[string]any{
		"code": "D1",
		"name": "Sales",
		"employees": []any{
			map[string]any{"code": "E1", "department": "D1", "surname": "Smith", "salary": 1500, "title": ""},
			map[string]any{"code": "E2", "department": "D1", "surname": "Jones", "manager": "E1", "commission": nil},
		},
	})

	if _, err := h.InsertDepartment(context.Background(), req); err != nil {
		t.Fatalf("InsertDepartment returned error: %v", err)
	}

	got := stub.inserted
	if got == nil || got.Code != "D1" || got.Name != "Sales" || got.Location != nil {
		t.Fatalf("unexpected department: %+v", got)
	}
	if len(got.Employees) != 2 {
		t.Fatalf("expected 2 employees, got %d", len(got.Employees))
	}
	if got.Employees[0].Salary == nil || *got.Employees[0].Salary != 1500 {
		t.Fatalf("unexpected salary: %+v", got.Employees[0].Salary)
	}
	if got.Employees[0].Title != nil {
		t.Fatalf("empty title must be absent")
	}
	if got.Employees[1].ManagerCode == nil || *got.Employees[1].ManagerCode != "E1" || got.Employees[1].Commission != nil {
		t.Fatalf("unexpected second employee: %+v", got.Employees[1])
	}
}

func TestEmpresaGrpcHandler_InsertDepartment_BadSalary(t *testing.T) {
	t.Parallel()

	stub := &stubUseCase{}
	h := NewEmpresaGrpcHandler(stub)

	for _, salary := range []any{12.5, "lots"} {
		req := mustStruct(t, map[string]any{
			"code":      "D1",
			"name":      "Sales",
			"employees": []any{map[string]any{"code": "E1", "department": "D1", "surname": "Smith", "salary": salary}},
		})
		if _, err := h.InsertDepartment(context.Background(), req); status.Code(err) != codes.InvalidArgument {
			t.Fatalf("salary %v: expected InvalidArgument, got %v", salary, status.Code(err))
		}
	}
	if stub.inserted != nil {
		t.Fatalf("use case must not be called for invalid input")
	}
}

func TestEmpresaGrpcHandler_DeleteDepartmentReassign(t *testing.T) {
	t.Parallel()

	stub := &stubUseCase{mutateErr: org.ErrTargetDepartmentNotFound}
	h := NewEmpresaGrpcHandler(stub)

	_, err := h.DeleteDepartmentReassign(context.Background(), mustStruct(t, map[string]any{"department": "D1", "target": "D9"}))
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition, got %v", status.Code(err))
	}
	if stub.reassign[0].Code != "D1" || stub.reassign[1].Code != "D9" {
		t.Fatalf("unexpected codes: %s -> %s", stub.reassign[0].Code, stub.reassign[1].Code)
	}
}

func TestEmpresaGrpcHandler_ReplaceDepartment(t *testing.T) {
	t.Parallel()

	stub := &stubUseCase{}
	h := NewEmpresaGrpcHandler(stub)

	req := mustStruct(t, map[string]any{
		"department": map[string]any{"code": "D2", "name": "Support"},
		"replace":    "D1",
	})
	if _, err := h.ReplaceDepartment(context.Background(), req); err != nil {
		t.Fatalf("ReplaceDepartment returned error: %v", err)
	}
	if stub.replaced[0].Code != "D2" || stub.replaced[1].Code != "D1" {
		t.Fatalf("unexpected departments: %+v", stub.replaced)
	}

	_, err := h.ReplaceDepartment(context.Background(), mustStruct(t, map[string]any{"department": "D2", "replace": "D1"}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", status.Code(err))
	}
}

func TestEmpresaGrpcHandler_ReassignManager(t *testing.T) {
	t.Parallel()

	stub := &stubUseCase{}
	h := NewEmpresaGrpcHandler(stub)

	if _, err := h.ReassignManager(context.Background(), mustStruct(t, map[string]any{"from": "E1", "to": "E2"})); err != nil {
		t.Fatalf("ReassignManager returned error: %v", err)
	}
	if stub.managers != [2]string{"E1", "E2"} {
		t.Fatalf("unexpected managers: %v", stub.managers)
	}
}

func TestEmpresaGrpcHandler_DeleteDepartment_PartialFailure(t *testing.T) {
	t.Parallel()

	stub := &stubUseCase{mutateErr: &org.StepError{
		OperationID: "5b0d7c9e-8f5a-4a57-9d4c-0a1e2f3b4c5d",
		Operation:   org.OpDeleteDepartment,
		Step:        "delete_employees",
		Completed:   []string{"check_department", "delete_department"},
		Applied:     []string{"delete_department"},
		Err:         fmt.Errorf("basex: %w", org.ErrTransport),
	}}
	h := NewEmpresaGrpcHandler(stub)

	_, err := h.DeleteDepartment(context.Background(), wrapperspb.String("D1"))
	if status.Code(err) != codes.Unavailable {
		t.Fatalf("expected Unavailable, got %v", status.Code(err))
	}

	info, ok := StepFailure(err)
	if !ok {
		t.Fatalf("expected step failure details")
	}
	md := info.GetMetadata()
	if md["step"] != "delete_employees" || md["partial"] != "true" || md["completed"] != "check_department,delete_department" || md["applied"] != "delete_department" {
		t.Fatalf("unexpected metadata: %v", md)
	}
	if md["operation_id"] != "5b0d7c9e-8f5a-4a57-9d4c-0a1e2f3b4c5d" {
		t.Fatalf("unexpected operation id: %s", md["operation_id"])
	}
	if stub.deleted == nil || stub.deleted.Code != "D1" {
		t.Fatalf("unexpected deleted department: %+v", stub.deleted)
	}
}

func TestEmpresaGrpcHandler_ListOperationSteps(t *testing.T) {
	t.Parallel()

	stub := &stubUseCase{stepsOut: []org.Step{
		{Index: 1, Name: "check_department", Status: org.StepDone},
		{Index: 2, Name: "delete_department", Status: org.StepFailed, Detail: "boom"},
	}}
	h := NewEmpresaGrpcHandler(stub)

	resp, err := h.ListOperationSteps(context.Background(), wrapperspb.String("op-1"))
	if err != nil {
		t.Fatalf("ListOperationSteps returned error: %v", err)
	}
	steps := resp.GetFields()[fieldSteps].GetListValue().GetValues()
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	second := steps[1].GetStructValue().GetFields()
	if second[fieldStatus].GetStringValue() != "failed" || second[fieldIndex].GetNumberValue() != 2 {
		t.Fatalf("unexpected step: %v", second)
	}

	stub.stepsErr = org.ErrOperationNotFound
	if _, err := h.ListOperationSteps(context.Background(), wrapperspb.String("op-1")); status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", status.Code(err))
	}
}

func TestEmpresaGrpcHandler_CleanupOperations(t *testing.T) {
	t.Parallel()

	stub := &stubUseCase{}
	h := NewEmpresaGrpcHandler(stub)
	ctx := context.Background()

	in := mustStruct(t, map[string]any{
		fieldCode: "D1",
		fieldName: "Sales",
		fieldEmployees: []any{
			map[string]any{fieldCode: "E2", fieldDepartment: "D1", fieldSurname: "Jones"},
		},
	})
	if _, err := h.InsertMissingEmployees(ctx, in); err != nil {
		t.Fatalf("InsertMissingEmployees returned error: %v", err)
	}
	if stub.missing == nil || stub.missing.Code != "D1" || len(stub.missing.Employees) != 1 {
		t.Fatalf("unexpected department: %+v", stub.missing)
	}

	if _, err := h.DeleteOrphanEmployees(ctx, wrapperspb.String("D9")); err != nil {
		t.Fatalf("DeleteOrphanEmployees returned error: %v", err)
	}
	if stub.orphans != "D9" {
		t.Fatalf("unexpected department code %q", stub.orphans)
	}

	if _, err := h.ReassignOrphanEmployees(ctx, mustStruct(t, map[string]any{fieldFrom: "D9", fieldTo: "D2"})); err != nil {
		t.Fatalf("ReassignOrphanEmployees returned error: %v", err)
	}
	if stub.adopted != [2]string{"D9", "D2"} {
		t.Fatalf("unexpected codes %v", stub.adopted)
	}

	stub.mutateErr = org.ErrDepartmentStillExists
	_, err := h.DeleteOrphanEmployees(ctx, wrapperspb.String("D1"))
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition, got %v", status.Code(err))
	}
}
