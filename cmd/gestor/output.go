package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ogurasousui/basex-empresa/internal/core/org"
)

type departmentView struct {
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Location  *string         `json:"location,omitempty"`
	Employees []*employeeView `json:"employees,omitempty"`
}

type employeeView struct {
	Code       string  `json:"code"`
	Department string  `json:"department"`
	Manager    *string `json:"manager,omitempty"`
	Surname    string  `json:"surname"`
	Title      *string `json:"title,omitempty"`
	HireDate   *string `json:"hire_date,omitempty"`
	Salary     *int64  `json:"salary,omitempty"`
	Commission *int64  `json:"commission,omitempty"`
}

type stepView struct {
	Index      int       `json:"index"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Detail     string    `json:"detail,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

func toDepartmentView(d *org.Department) *departmentView {
	v := &departmentView{Code: d.Code, Name: d.Name, Location: d.Location}
	for _, e := range d.Employees {
		v.Employees = append(v.Employees, toEmployeeView(e))
	}
	return v
}

func toEmployeeView(e *org.Employee) *employeeView {
	return &employeeView{
		Code:       e.Code,
		Department: e.DepartmentCode,
		Manager:    e.ManagerCode,
		Surname:    e.Surname,
		Title:      e.Title,
		HireDate:   e.HireDate,
		Salary:     e.Salary,
		Commission: e.Commission,
	}
}

func toStepViews(steps []org.Step) []stepView {
	out := make([]stepView, 0, len(steps))
	for _, s := range steps {
		out = append(out, stepView{
			Index:      s.Index,
			Name:       s.Name,
			Status:     string(s.Status),
			Detail:     s.Detail,
			RecordedAt: s.RecordedAt,
		})
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeDepartment(w io.Writer, d *org.Department) error {
	fmt.Fprintf(w, "Code:      %s\n", d.Code)
	fmt.Fprintf(w, "Name:      %s\n", d.Name)
	fmt.Fprintf(w, "Location:  %s\n", orDash(d.Location))
	if !d.EmployeesLoaded() {
		return nil
	}
	fmt.Fprintf(w, "Employees: %d\n", len(d.Employees))
	if len(d.Employees) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  CODE\tSURNAME\tTITLE\tMANAGER\tSALARY")
	for _, e := range d.Employees {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", e.Code, e.Surname, orDash(e.Title), orDash(e.ManagerCode), intOrDash(e.Salary))
	}
	return tw.Flush()
}

func writeEmployee(w io.Writer, e *org.Employee) error {
	fmt.Fprintf(w, "Code:       %s\n", e.Code)
	fmt.Fprintf(w, "Department: %s\n", e.DepartmentCode)
	fmt.Fprintf(w, "Surname:    %s\n", e.Surname)
	fmt.Fprintf(w, "Title:      %s\n", orDash(e.Title))
	fmt.Fprintf(w, "Manager:    %s\n", orDash(e.ManagerCode))
	fmt.Fprintf(w, "Hire date:  %s\n", orDash(e.HireDate))
	fmt.Fprintf(w, "Salary:     %s\n", intOrDash(e.Salary))
	_, err := fmt.Fprintf(w, "Commission: %s\n", intOrDash(e.Commission))
	return err
}

func writeSteps(w io.Writer, steps []org.Step) error {
	if len(steps) == 0 {
		_, err := fmt.Fprintln(w, "no steps recorded")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSTEP\tSTATUS\tRECORDED\tDETAIL")
	for _, s := range steps {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", s.Index, s.Name, s.Status,
			s.RecordedAt.UTC().Format(time.RFC3339), strings.ReplaceAll(s.Detail, "\n", " "))
	}
	return tw.Flush()
}

func orDash(v *string) string {
	if v == nil {
		return "-"
	}
	return *v
}

func intOrDash(v *int64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}
