package basex

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ogurasousui/basex-empresa/internal/core/org"
)

// 要素名・属性名
const (
	elemDepartment = "dept"
	elemEmployee   = "emp"

	attrCode       = "codi"
	attrDepartment = "dept"
	attrManager    = "cap"

	fieldName       = "nom"
	fieldLocation   = "localitat"
	fieldSurname    = "cognom"
	fieldTitle      = "ofici"
	fieldHireDate   = "dataAlta"
	fieldSalary     = "salari"
	fieldCommission = "comissio"
)

type departmentXML struct {
	XMLName  xml.Name `xml:"dept"`
	Code     string   `xml:"codi,attr"`
	Name     string   `xml:"nom"`
	Location *string  `xml:"localitat,omitempty"`
}

type employeeXML struct {
	XMLName    xml.Name `xml:"emp"`
	Code       string   `xml:"codi,attr"`
	Department string   `xml:"dept,attr"`
	Manager    *string  `xml:"cap,attr,omitempty"`
	Surname    string   `xml:"cognom"`
	Title      *string  `xml:"ofici,omitempty"`
	HireDate   *string  `xml:"dataAlta,omitempty"`
	Salary     *string  `xml:"salari,omitempty"`
	Commission *string  `xml:"comissio,omitempty"`
}

// EncodeDepartment は部署を XML 宣言なしの dept 要素断片に変換します。社員は含みません。
//
// 返す断片はクエリ用のエスケープを含まず、DecodeDepartment でそのまま復元できます。
func EncodeDepartment(d *org.Department) ([]byte, error) {
	if d == nil {
		return nil, fmt.Errorf("encode department: %w", org.ErrNilEntity)
	}
	return marshalFragment(departmentXML{
		Code:     d.Code,
		Name:     d.Name,
		Location: present(d.Location),
	})
}

// EncodeEmployee は社員を emp 要素断片に変換します。
func EncodeEmployee(e *org.Employee) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("encode employee: %w", org.ErrNilEntity)
	}
	return marshalFragment(employeeXML{
		Code:       e.Code,
		Department: e.DepartmentCode,
		Manager:    present(e.ManagerCode),
		Surname:    e.Surname,
		Title:      present(e.Title),
		HireDate:   present(e.HireDate),
		Salary:     formatInt(e.Salary),
		Commission: formatInt(e.Commission),
	})
}

func marshalFragment(v any) ([]byte, error) {
	b, err := xml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode xml: %w: %w", org.ErrCodec, err)
	}
	return b, nil
}

// DecodeDepartment は dept 要素断片から部署を復元します。
func DecodeDepartment(data []byte) (*org.Department, error) {
	var v departmentXML
	if err := xml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode department: %w: %w", org.ErrCodec, err)
	}
	return v.toEntity()
}

// DecodeEmployee は emp 要素断片から社員を復元します。
func DecodeEmployee(data []byte) (*org.Employee, error) {
	var v employeeXML
	if err := xml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode employee: %w: %w", org.ErrCodec, err)
	}
	return v.toEntity()
}

// DecodeDocument は 1 つの dept 要素と任意個の emp 要素を含む文書を読み込みます。
//
// 要素は任意のラッパー要素の内側にあっても構いません。emp 要素は出現順に Employees へ追加されます。
func DecodeDocument(r io.Reader) (*org.Department, error) {
	dec := xml.NewDecoder(r)

	var (
		dept      *org.Department
		employees = make([]*org.Employee, 0)
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode document: %w: %w", org.ErrCodec, err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case elemDepartment:
			if dept != nil {
				return nil, fmt.Errorf("decode document: more than one dept element: %w", org.ErrCodec)
			}
			var v departmentXML
			if err := dec.DecodeElement(&v, &start); err != nil {
				return nil, fmt.Errorf("decode document: %w: %w", org.ErrCodec, err)
			}
			if dept, err = v.toEntity(); err != nil {
				return nil, err
			}
		case elemEmployee:
			var v employeeXML
			if err := dec.DecodeElement(&v, &start); err != nil {
				return nil, fmt.Errorf("decode document: %w: %w", org.ErrCodec, err)
			}
			emp, err := v.toEntity()
			if err != nil {
				return nil, err
			}
			employees = append(employees, emp)
		}
	}

	if dept == nil {
		return nil, fmt.Errorf("decode document: no dept element: %w", org.ErrCodec)
	}
	dept.Employees = employees
	return dept, nil
}

func (v departmentXML) toEntity() (*org.Department, error) {
	if strings.TrimSpace(v.Code) == "" || strings.TrimSpace(v.Name) == "" {
		return nil, fmt.Errorf("decode department: missing codi or nom: %w", org.ErrCodec)
	}
	return &org.Department{
		Code:     v.Code,
		Name:     v.Name,
		Location: present(v.Location),
	}, nil
}

func (v employeeXML) toEntity() (*org.Employee, error) {
	if strings.TrimSpace(v.Code) == "" || strings.TrimSpace(v.Department) == "" || strings.TrimSpace(v.Surname) == "" {
		return nil, fmt.Errorf("decode employee: missing codi, dept or cognom: %w", org.ErrCodec)
	}

	salary, err := optionalInt(fieldSalary, deref(v.Salary))
	if err != nil {
		return nil, err
	}
	commission, err := optionalInt(fieldCommission, deref(v.Commission))
	if err != nil {
		return nil, err
	}

	return &org.Employee{
		Code:           v.Code,
		DepartmentCode: v.Department,
		ManagerCode:    present(v.Manager),
		Surname:        v.Surname,
		Title:          present(v.Title),
		HireDate:       present(v.HireDate),
		Salary:         salary,
		Commission:     commission,
	}, nil
}

// present は空文字列を欠損として扱います。ストアは空値と欠損を区別できないためです。
func present(v *string) *string {
	if v == nil || *v == "" {
		return nil
	}
	out := *v
	return &out
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// optionalString はスカラークエリの結果を任意項目として解釈します。
func optionalString(value string) *string {
	return present(&value)
}

// optionalInt はスカラークエリの結果を整数の任意項目として解釈します。
func optionalInt(field, value string) (*int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("field %s value %q is not an integer: %w", field, value, org.ErrCodec)
	}
	return &n, nil
}

func formatInt(v *int64) *string {
	if v == nil {
		return nil
	}
	s := strconv.FormatInt(*v, 10)
	return &s
}
