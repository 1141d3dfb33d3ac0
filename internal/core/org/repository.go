package org

import "context"

// Repository は部署・社員ドキュメントストアへのアクセスを抽象化します。
//
// 各メソッドはストアへの独立したリクエストで、複数メソッドをまたぐ原子性はありません。
type Repository interface {
	DepartmentExists(ctx context.Context, code string) (bool, error)
	EmployeeExists(ctx context.Context, code string) (bool, error)
	FindDepartment(ctx context.Context, code string) (*Department, error)
	FindEmployee(ctx context.Context, code string) (*Employee, error)
	ListEmployeeCodes(ctx context.Context, departmentCode string) ([]string, error)
	CreateDepartment(ctx context.Context, dept *Department) error
	CreateEmployee(ctx context.Context, emp *Employee) error
	DeleteDepartment(ctx context.Context, code string) error
	DeleteEmployeesByDepartment(ctx context.Context, departmentCode string) error
	ReassignDepartment(ctx context.Context, fromCode, toCode string) error
	ReassignManager(ctx context.Context, fromCode, toCode string) error
}
