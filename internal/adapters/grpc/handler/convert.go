package handler

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/ogurasousui/basex-empresa/internal/core/org"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Struct のフィールド名
const (
	fieldCode        = "code"
	fieldName        = "name"
	fieldLocation    = "location"
	fieldEmployees   = "employees"
	fieldDepartment  = "department"
	fieldManager     = "manager"
	fieldSurname     = "surname"
	fieldTitle       = "title"
	fieldHireDate    = "hire_date"
	fieldSalary      = "salary"
	fieldCommission  = "commission"
	fieldTarget      = "target"
	fieldReplace     = "replace"
	fieldFrom        = "from"
	fieldTo          = "to"
	fieldSteps       = "steps"
	fieldIndex       = "index"
	fieldStatus      = "status"
	fieldDetail      = "detail"
	fieldRecordedAt  = "recorded_at"
	fieldOperationID = "operation_id"
)

func departmentToStruct(d *org.Department) (*structpb.Struct, error) {
	m := map[string]any{
		fieldCode: d.Code,
		fieldName: d.Name,
	}
	putString(m, fieldLocation, d.Location)
	if d.EmployeesLoaded() {
		employees := make([]any, 0, len(d.Employees))
		for _, e := range d.Employees {
			employees = append(employees, employeeMap(e))
		}
		m[fieldEmployees] = employees
	}
	return structpb.NewStruct(m)
}

func employeeToStruct(e *org.Employee) (*structpb.Struct, error) {
	return structpb.NewStruct(employeeMap(e))
}

func employeeMap(e *org.Employee) map[string]any {
	m := map[string]any{
		fieldCode:       e.Code,
		fieldDepartment: e.DepartmentCode,
		fieldSurname:    e.Surname,
	}
	putString(m, fieldManager, e.ManagerCode)
	putString(m, fieldTitle, e.Title)
	putString(m, fieldHireDate, e.HireDate)
	putInt(m, fieldSalary, e.Salary)
	putInt(m, fieldCommission, e.Commission)
	return m
}

// maxExactInt は float64 の number 値で誤差なく表現できる整数の上限です。
const maxExactInt = 1 << 53

// putInt は number 値で表現できない大きさの整数を 10 進文字列として格納します。
func putInt(m map[string]any, key string, v *int64) {
	if v == nil {
		return
	}
	if *v > maxExactInt || *v < -maxExactInt {
		m[key] = strconv.FormatInt(*v, 10)
		return
	}
	m[key] = *v
}

func putString(m map[string]any, key string, v *string) {
	if v != nil {
		m[key] = *v
	}
}

func structToDepartment(s *structpb.Struct) (*org.Department, error) {
	d := &org.Department{
		Code:     stringField(s, fieldCode),
		Name:     stringField(s, fieldName),
		Location: optionalStringField(s, fieldLocation),
	}

	v, ok := s.GetFields()[fieldEmployees]
	if !ok {
		return d, nil
	}
	list := v.GetListValue()
	if list == nil {
		return nil, invalidField(fieldEmployees, "must be a list")
	}
	d.Employees = make([]*org.Employee, 0, len(list.GetValues()))
	for i, item := range list.GetValues() {
		es := item.GetStructValue()
		if es == nil {
			return nil, invalidField(fmt.Sprintf("%s[%d]", fieldEmployees, i), "must be an object")
		}
		e, err := structToEmployee(es)
		if err != nil {
			return nil, err
		}
		d.Employees = append(d.Employees, e)
	}
	return d, nil
}

func structToEmployee(s *structpb.Struct) (*org.Employee, error) {
	salary, err := optionalIntField(s, fieldSalary)
	if err != nil {
		return nil, err
	}
	commission, err := optionalIntField(s, fieldCommission)
	if err != nil {
		return nil, err
	}
	return &org.Employee{
		Code:           stringField(s, fieldCode),
		DepartmentCode: stringField(s, fieldDepartment),
		ManagerCode:    optionalStringField(s, fieldManager),
		Surname:        stringField(s, fieldSurname),
		Title:          optionalStringField(s, fieldTitle),
		HireDate:       optionalStringField(s, fieldHireDate),
		Salary:         salary,
		Commission:     commission,
	}, nil
}

func stepsToStruct(operationID string, steps []org.Step) (*structpb.Struct, error) {
	items := make([]any, 0, len(steps))
	for _, st := range steps {
		items = append(items, map[string]any{
			fieldIndex:      st.Index,
			fieldName:       st.Name,
			fieldStatus:     string(st.Status),
			fieldDetail:     st.Detail,
			fieldRecordedAt: st.RecordedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return structpb.NewStruct(map[string]any{
		fieldOperationID: operationID,
		fieldSteps:       items,
	})
}

func stringField(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

// optionalStringField は欠落・null・空文字列をいずれも nil として扱います。
func optionalStringField(s *structpb.Struct, key string) *string {
	v := stringField(s, key)
	if v == "" {
		return nil
	}
	return &v
}

func optionalIntField(s *structpb.Struct, key string) (*int64, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return nil, nil
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return nil, nil
	case *structpb.Value_NumberValue:
		f := kind.NumberValue
		if f != math.Trunc(f) || math.Abs(f) > maxExactInt {
			return nil, invalidField(key, "must be an integer")
		}
		i := int64(f)
		return &i, nil
	case *structpb.Value_StringValue:
		i, err := strconv.ParseInt(kind.StringValue, 10, 64)
		if err != nil {
			return nil, invalidField(key, "must be an integer")
		}
		return &i, nil
	default:
		return nil, invalidField(key, "must be an integer")
	}
}

func invalidField(key, reason string) error {
	return status.Errorf(codes.InvalidArgument, "%s %s", key, reason)
}
