package basex

import (
	"context"

	"github.com/ogurasousui/basex-empresa/internal/core/org"
)

// EmployeeExists は社員ノードが存在するかを返します。
func (r *Repository) EmployeeExists(ctx context.Context, code string) (bool, error) {
	return r.exists(ctx, r.q.employeeExists(code))
}

// FindEmployee は項目ごとのスカラークエリで社員を取得します。
func (r *Repository) FindEmployee(ctx context.Context, code string) (*org.Employee, error) {
	dept, err := r.required(ctx, r.q.employeeAttr(code, attrDepartment), code, org.ErrEmployeeNotFound)
	if err != nil {
		return nil, err
	}
	surname, err := r.required(ctx, r.q.employeeField(code, fieldSurname), code, org.ErrEmployeeNotFound)
	if err != nil {
		return nil, err
	}

	manager, err := r.evaluate(ctx, r.q.employeeAttr(code, attrManager))
	if err != nil {
		return nil, err
	}
	title, err := r.evaluate(ctx, r.q.employeeField(code, fieldTitle))
	if err != nil {
		return nil, err
	}
	hireDate, err := r.evaluate(ctx, r.q.employeeField(code, fieldHireDate))
	if err != nil {
		return nil, err
	}

	salaryRaw, err := r.evaluate(ctx, r.q.employeeField(code, fieldSalary))
	if err != nil {
		return nil, err
	}
	salary, err := optionalInt(fieldSalary, salaryRaw)
	if err != nil {
		return nil, err
	}

	commissionRaw, err := r.evaluate(ctx, r.q.employeeField(code, fieldCommission))
	if err != nil {
		return nil, err
	}
	commission, err := optionalInt(fieldCommission, commissionRaw)
	if err != nil {
		return nil, err
	}

	return &org.Employee{
		Code:           code,
		DepartmentCode: dept,
		ManagerCode:    optionalString(manager),
		Surname:        surname,
		Title:          optionalString(title),
		HireDate:       optionalString(hireDate),
		Salary:         salary,
		Commission:     commission,
	}, nil
}

// ListEmployeeCodes は部署に所属する社員コードをストアの返却順で返します。
func (r *Repository) ListEmployeeCodes(ctx context.Context, departmentCode string) ([]string, error) {
	result, err := r.evaluate(ctx, r.q.employeeCodes(departmentCode))
	if err != nil {
		return nil, err
	}
	return splitLines(result), nil
}

// CreateEmployee は社員ノードを employees の末尾に挿入します。
func (r *Repository) CreateEmployee(ctx context.Context, emp *org.Employee) error {
	element, err := EncodeEmployee(emp)
	if err != nil {
		return err
	}
	return r.mutate(ctx, r.q.insertEmployee(element))
}

// DeleteEmployeesByDepartment は部署に所属する全社員ノードを削除します。
func (r *Repository) DeleteEmployeesByDepartment(ctx context.Context, departmentCode string) error {
	return r.mutate(ctx, r.q.deleteEmployeesOf(departmentCode))
}

// ReassignDepartment は fromCode に所属する全社員の dept 属性を toCode に書き換えます。
func (r *Repository) ReassignDepartment(ctx context.Context, fromCode, toCode string) error {
	return r.mutate(ctx, r.q.replaceAttr(attrDepartment, fromCode, toCode))
}

// ReassignManager は fromCode を上司とする全社員の cap 属性を toCode に書き換えます。
func (r *Repository) ReassignManager(ctx context.Context, fromCode, toCode string) error {
	return r.mutate(ctx, r.q.replaceAttr(attrManager, fromCode, toCode))
}
