package org

// Department は部署エンティティです。
//
// Employees は明示的に社員を読み込んだ場合のみ非 nil になります。
// nil は「未読み込み」、空スライスは「社員ゼロ」を意味します。
type Department struct {
	Code      string
	Name      string
	Location  *string
	Employees []*Employee
}

// Employee は社員エンティティです。
type Employee struct {
	Code           string
	DepartmentCode string
	ManagerCode    *string
	Surname        string
	Title          *string
	HireDate       *string
	Salary         *int64
	Commission     *int64
}

// EmployeesLoaded は社員コレクションが読み込み済みかを返します。
func (d *Department) EmployeesLoaded() bool {
	return d != nil && d.Employees != nil
}

// AddEmployee は社員をコレクションの末尾に追加します。
func (d *Department) AddEmployee(e *Employee) {
	if d.Employees == nil {
		d.Employees = make([]*Employee, 0, 1)
	}
	d.Employees = append(d.Employees, e)
}

// StringPtr は文字列のポインタを返します。
func StringPtr(v string) *string {
	return &v
}

// Int64Ptr は int64 のポインタを返します。
func Int64Ptr(v int64) *int64 {
	return &v
}
