package basex

import (
	"context"

	"github.com/ogurasousui/basex-empresa/internal/core/org"
)

// DepartmentExists は部署ノードが存在するかを返します。
func (r *Repository) DepartmentExists(ctx context.Context, code string) (bool, error) {
	return r.exists(ctx, r.q.departmentExists(code))
}

// FindDepartment は社員を含めずに部署を取得します。
func (r *Repository) FindDepartment(ctx context.Context, code string) (*org.Department, error) {
	name, err := r.required(ctx, r.q.departmentField(code, fieldName), code, org.ErrDepartmentNotFound)
	if err != nil {
		return nil, err
	}

	location, err := r.evaluate(ctx, r.q.departmentField(code, fieldLocation))
	if err != nil {
		return nil, err
	}

	return &org.Department{
		Code:     code,
		Name:     name,
		Location: optionalString(location),
	}, nil
}

// CreateDepartment は部署ノードを departments の末尾に挿入します。社員は挿入しません。
func (r *Repository) CreateDepartment(ctx context.Context, dept *org.Department) error {
	element, err := EncodeDepartment(dept)
	if err != nil {
		return err
	}
	return r.mutate(ctx, r.q.insertDepartment(element))
}

// DeleteDepartment は部署ノードを削除します。
func (r *Repository) DeleteDepartment(ctx context.Context, code string) error {
	return r.mutate(ctx, r.q.deleteDepartment(code))
}
