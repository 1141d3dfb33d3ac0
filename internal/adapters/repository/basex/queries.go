package basex

import (
	"fmt"

	"github.com/ogurasousui/basex-empresa/internal/platform/config"
	"github.com/ogurasousui/basex-empresa/internal/platform/xquery"
)

// queries はストアのレイアウトに沿ってクエリ式を組み立てます。
type queries struct {
	departments xquery.Path
	employees   xquery.Path
}

func newQueries(layout config.LayoutConfig) (queries, error) {
	for _, name := range []string{layout.Root, layout.Departments, layout.Employees} {
		if err := xquery.ValidateName(name); err != nil {
			return queries{}, fmt.Errorf("basex: layout: %w", err)
		}
	}
	root := xquery.Root(layout.Root)
	return queries{
		departments: root.Child(layout.Departments),
		employees:   root.Child(layout.Employees),
	}, nil
}

func (q queries) departmentByCode(code string) xquery.Path {
	return q.departments.Child(elemDepartment).Where(xquery.AttrEquals(attrCode, code))
}

func (q queries) employeeByCode(code string) xquery.Path {
	return q.employees.Child(elemEmployee).Where(xquery.AttrEquals(attrCode, code))
}

func (q queries) employeesWhere(attr, value string) xquery.Path {
	return q.employees.Child(elemEmployee).Where(xquery.AttrEquals(attr, value))
}

// departmentExists はノード全体を選択します。空でない結果は存在を意味します。
func (q queries) departmentExists(code string) xquery.Expr {
	return q.departmentByCode(code)
}

func (q queries) employeeExists(code string) xquery.Expr {
	return q.employeeByCode(code)
}

func (q queries) departmentField(code, field string) xquery.Expr {
	return xquery.Data(q.departmentByCode(code).Child(field))
}

func (q queries) employeeField(code, field string) xquery.Expr {
	return xquery.Data(q.employeeByCode(code).Child(field))
}

func (q queries) employeeAttr(code, attr string) xquery.Expr {
	return xquery.Data(q.employeeByCode(code).Attr(attr))
}

// employeeCodes は部署に所属する社員コードを改行区切りで返すクエリです。
func (q queries) employeeCodes(departmentCode string) xquery.Expr {
	return xquery.For("e", q.employeesWhere(attrDepartment, departmentCode), xquery.Data(xquery.Var("e").Attr(attrCode)))
}

// insertDepartment は codec が出力した XML を直接要素構築子として埋め込みます。
func (q queries) insertDepartment(element []byte) xquery.Expr {
	return xquery.InsertLast(xquery.NewFragment(string(element)), q.departments)
}

func (q queries) insertEmployee(element []byte) xquery.Expr {
	return xquery.InsertLast(xquery.NewFragment(string(element)), q.employees)
}

func (q queries) deleteDepartment(code string) xquery.Expr {
	return xquery.Delete(q.departmentByCode(code))
}

func (q queries) deleteEmployeesOf(departmentCode string) xquery.Expr {
	return xquery.For("e", q.employeesWhere(attrDepartment, departmentCode), xquery.Delete(xquery.Var("e")))
}

// replaceAttr は attr が from に一致する全社員の attr を to に書き換えるクエリです。
func (q queries) replaceAttr(attr, from, to string) xquery.Expr {
	return xquery.For("a", q.employeesWhere(attr, from).Attr(attr), xquery.ReplaceValue(xquery.Var("a"), to))
}
