package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ogurasousui/basex-empresa/internal/core/org"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUseCase struct {
	org.UseCase

	depts    map[string]*org.Department
	inserted *org.Department
	deleted  string
	target   string
	replaced [2]string
	managers [2]string
	missing  *org.Department
	orphans  string
	adopted  [2]string
	steps    []org.Step
}

func (f *fakeUseCase) DepartmentExists(_ context.Context, code string) (bool, error) {
	_, ok := f.depts[code]
	return ok, nil
}

func (f *fakeUseCase) FetchDepartment(_ context.Context, code string) (*org.Department, error) {
	d, ok := f.depts[code]
	if !ok {
		return nil, org.ErrDepartmentNotFound
	}
	return &org.Department{Code: d.Code, Name: d.Name, Location: d.Location}, nil
}

func (f *fakeUseCase) FetchDepartmentWithEmployees(_ context.Context, code string) (*org.Department, error) {
	d, ok := f.depts[code]
	if !ok {
		return nil, org.ErrDepartmentNotFound
	}
	return d, nil
}

func (f *fakeUseCase) InsertDepartment(_ context.Context, dept *org.Department) error {
	f.inserted = dept
	return nil
}

func (f *fakeUseCase) DeleteDepartment(_ context.Context, dept *org.Department) error {
	f.deleted = dept.Code
	return nil
}

func (f *fakeUseCase) DeleteDepartmentReassign(_ context.Context, dept, newDept *org.Department) error {
	f.deleted = dept.Code
	f.target = newDept.Code
	return nil
}

func (f *fakeUseCase) ReplaceDepartment(_ context.Context, toInsert, toReplace *org.Department) error {
	f.replaced = [2]string{toInsert.Code, toReplace.Code}
	return nil
}

func (f *fakeUseCase) ReassignManager(_ context.Context, fromCode, toCode string) error {
	f.managers = [2]string{fromCode, toCode}
	return nil
}

func (f *fakeUseCase) InsertMissingEmployees(_ context.Context, dept *org.Department) error {
	f.missing = dept
	return nil
}

func (f *fakeUseCase) DeleteOrphanEmployees(_ context.Context, departmentCode string) error {
	f.orphans = departmentCode
	return nil
}

func (f *fakeUseCase) ReassignOrphanEmployees(_ context.Context, fromCode, toCode string) error {
	f.adopted = [2]string{fromCode, toCode}
	return nil
}

func (f *fakeUseCase) OperationSteps(context.Context, string) ([]org.Step, error) {
	return f.steps, nil
}

func newFake() *fakeUseCase {
	sales := &org.Department{Code: "D10", Name: "Comptabilitat", Location: org.StringPtr("Barcelona"), Employees: []*org.Employee{}}
	sales.AddEmployee(&org.Employee{Code: "E7782", DepartmentCode: "D10", Surname: "Cerezo", Salary: org.Int64Ptr(2450)})
	return &fakeUseCase{depts: map[string]*org.Department{"D10": sales}}
}

func execute(t *testing.T, fake *fakeUseCase, args ...string) (string, error) {
	t.Helper()

	out, opened, closed, err := executeWithRelease(fake, nil, args...)
	assert.Equal(t, opened, closed, "store connection must be released")
	return out, err
}

// executeWithRelease はコマンドを実行し、ストア接続が開かれたか・解放されたかを返します。
func executeWithRelease(fake *fakeUseCase, closeErr error, args ...string) (string, bool, bool, error) {
	opened, closed := false, false
	c := newCLI(func(context.Context, *cli) (org.UseCase, func() error, error) {
		opened = true
		return fake, func() error {
			closed = true
			return closeErr
		}, nil
	})
	var out bytes.Buffer
	c.root.SetOut(&out)
	c.root.SetErr(&out)
	c.root.SetArgs(args)
	err := c.execute()
	return out.String(), opened, closed, err
}

func TestGestor_DepartmentExists(t *testing.T) {
	t.Parallel()

	out, err := execute(t, newFake(), "department", "exists", "D10")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	out, err = execute(t, newFake(), "dept", "exists", "D99", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"exists": false}`, out)
}

func TestGestor_DepartmentGet(t *testing.T) {
	t.Parallel()

	out, err := execute(t, newFake(), "department", "get", "D10")
	require.NoError(t, err)
	assert.Contains(t, out, "Comptabilitat")
	assert.NotContains(t, out, "Cerezo")

	out, err = execute(t, newFake(), "department", "get", "D10", "--with-employees", "--json")
	require.NoError(t, err)
	var view departmentView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	require.Len(t, view.Employees, 1)
	assert.Equal(t, "Cerezo", view.Employees[0].Surname)
	assert.Equal(t, int64(2450), *view.Employees[0].Salary)

	_, err = execute(t, newFake(), "department", "get", "D99")
	require.ErrorIs(t, err, org.ErrNotFound)
}

func TestGestor_DepartmentInsertFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "d40.xml")
	doc := `<import><dept codi="D40"><nom>Operacions</nom></dept>` +
		`<emp codi="E8000" dept="D40"><cognom>Puig</cognom></emp></import>`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	fake := newFake()
	out, err := execute(t, fake, "department", "insert", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "inserted department D40 with 1 employee(s)")
	require.NotNil(t, fake.inserted)
	assert.Equal(t, "Operacions", fake.inserted.Name)
	require.Len(t, fake.inserted.Employees, 1)
	assert.Equal(t, "Puig", fake.inserted.Employees[0].Surname)
}

func TestGestor_DepartmentInsertFromFlags(t *testing.T) {
	t.Parallel()

	fake := newFake()
	_, err := execute(t, fake, "department", "insert", "--code", "D50", "--name", "Logistica")
	require.NoError(t, err)
	assert.Equal(t, &org.Department{Code: "D50", Name: "Logistica"}, fake.inserted)

	_, err = execute(t, newFake(), "department", "insert")
	require.Error(t, err)
}

func TestGestor_DepartmentDelete(t *testing.T) {
	t.Parallel()

	fake := newFake()
	out, err := execute(t, fake, "department", "delete", "D10")
	require.NoError(t, err)
	assert.Equal(t, "D10", fake.deleted)
	assert.Empty(t, fake.target)
	assert.True(t, strings.HasPrefix(out, "deleted department D10 and its employees"))

	fake = newFake()
	_, err = execute(t, fake, "department", "delete", "D10", "--reassign-to", "D20")
	require.NoError(t, err)
	assert.Equal(t, "D20", fake.target)
}

func TestGestor_DepartmentReplace(t *testing.T) {
	t.Parallel()

	fake := newFake()
	_, err := execute(t, fake, "department", "replace", "D10", "--code", "D11", "--name", "Finances")
	require.NoError(t, err)
	assert.Equal(t, [2]string{"D11", "D10"}, fake.replaced)
}

func TestGestor_ManagerReassignAndJournal(t *testing.T) {
	t.Parallel()

	fake := newFake()
	fake.steps = []org.Step{
		{Index: 1, Name: "check_manager", Status: org.StepDone},
		{Index: 2, Name: "reassign_manager", Status: org.StepFailed, Detail: "basex: transport error"},
	}

	_, err := execute(t, fake, "manager", "reassign", "E7839", "E7566")
	require.NoError(t, err)
	assert.Equal(t, [2]string{"E7839", "E7566"}, fake.managers)

	out, err := execute(t, fake, "journal", "5b0d7c9e-8f5a-4a57-9d4c-0a1e2f3b4c5d")
	require.NoError(t, err)
	assert.Contains(t, out, "reassign_manager")
	assert.Contains(t, out, "failed")

	_, err = execute(t, fake, "manager", "reassign", "E1")
	require.Error(t, err)
}

func TestGestor_ReleasesStoreWhenCommandFails(t *testing.T) {
	t.Parallel()

	_, opened, closed, err := executeWithRelease(newFake(), nil, "department", "get", "NOPE")
	require.ErrorIs(t, err, org.ErrDepartmentNotFound)
	assert.True(t, opened)
	assert.True(t, closed, "store connection must be released after a failed command")

	_, opened, closed, err = executeWithRelease(newFake(), nil, "manager", "reassign", "E1")
	require.Error(t, err)
	assert.False(t, opened, "argument errors must not connect")
	assert.False(t, closed)
}

func TestGestor_ReportsReleaseFailure(t *testing.T) {
	t.Parallel()

	releaseErr := errors.New("close: broken pipe")

	_, _, closed, err := executeWithRelease(newFake(), releaseErr, "department", "exists", "D10")
	assert.True(t, closed)
	require.ErrorIs(t, err, releaseErr)

	_, _, _, err = executeWithRelease(newFake(), releaseErr, "department", "get", "NOPE")
	require.ErrorIs(t, err, org.ErrDepartmentNotFound)
	assert.NotErrorIs(t, err, releaseErr)
}

func TestGestor_DepartmentRepair(t *testing.T) {
	t.Parallel()

	fake := newFake()
	out, err := execute(t, fake, "department", "repair", "insert", "--code", "D10", "--name", "Comptabilitat")
	require.NoError(t, err)
	assert.Contains(t, out, "inserted missing employees of department D10")
	require.NotNil(t, fake.missing)
	assert.Equal(t, "D10", fake.missing.Code)

	_, err = execute(t, fake, "department", "repair", "delete", "D30")
	require.NoError(t, err)
	assert.Equal(t, "D30", fake.orphans)

	out, err = execute(t, fake, "dept", "repair", "reassign", "D30", "D10", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"from": "D30", "to": "D10"}`, out)
	assert.Equal(t, [2]string{"D30", "D10"}, fake.adopted)
}
