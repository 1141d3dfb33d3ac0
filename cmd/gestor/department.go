package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	bxrepo "github.com/ogurasousui/basex-empresa/internal/adapters/repository/basex"
	"github.com/ogurasousui/basex-empresa/internal/core/org"
	"github.com/spf13/cobra"
)

func newDepartmentCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "department",
		Aliases: []string{"dept"},
		Short:   "Inspect and modify departments",
	}
	cmd.AddCommand(
		newDepartmentExistsCmd(c),
		newDepartmentGetCmd(c),
		newDepartmentInsertCmd(c),
		newDepartmentDeleteCmd(c),
		newDepartmentReplaceCmd(c),
		newDepartmentRepairCmd(c),
	)
	return cmd
}

func newDepartmentExistsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "exists <code>",
		Short: "Report whether a department exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uc, err := c.useCase()
			if err != nil {
				return err
			}
			exists, err := uc.DepartmentExists(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), map[string]bool{"exists": exists}, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, exists)
				return err
			})
		},
	}
}

func newDepartmentGetCmd(c *cli) *cobra.Command {
	var withEmployees bool
	cmd := &cobra.Command{
		Use:   "get <code>",
		Short: "Show a department",
		Long: `Get shows a department. With --with-employees the employees whose
department is <code> are listed in store order.

Example:
  gestor department get D10
  gestor department get D10 --with-employees --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uc, err := c.useCase()
			if err != nil {
				return err
			}
			fetch := uc.FetchDepartment
			if withEmployees {
				fetch = uc.FetchDepartmentWithEmployees
			}
			dept, err := fetch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), toDepartmentView(dept), func(w io.Writer) error {
				return writeDepartment(w, dept)
			})
		},
	}
	cmd.Flags().BoolVar(&withEmployees, "with-employees", false, "include the department's employees")
	return cmd
}

type departmentInput struct {
	file     string
	code     string
	name     string
	location string
}

func (in *departmentInput) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&in.file, "file", "f", "", "XML file holding one dept element and its emp elements")
	cmd.Flags().StringVar(&in.code, "code", "", "department code (without --file)")
	cmd.Flags().StringVar(&in.name, "name", "", "department name (without --file)")
	cmd.Flags().StringVar(&in.location, "location", "", "department location (without --file)")
	cmd.MarkFlagsMutuallyExclusive("file", "code")
	cmd.MarkFlagsOneRequired("file", "code")
}

func (in *departmentInput) department(stdin io.Reader) (*org.Department, error) {
	if in.file == "" {
		return &org.Department{
			Code:     in.code,
			Name:     in.name,
			Location: optional(in.location),
		}, nil
	}

	var r io.Reader = stdin
	if in.file != "-" {
		f, err := os.Open(in.file)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", in.file, err)
		}
		defer f.Close()
		r = f
	}
	dept, err := bxrepo.DecodeDocument(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", in.file, err)
	}
	return dept, nil
}

func optional(v string) *string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return &v
}

func newDepartmentInsertCmd(c *cli) *cobra.Command {
	var in departmentInput
	cmd := &cobra.Command{
		Use:   "insert",
		Short: "Insert a department and its employees",
		Long: `Insert adds a department and every listed employee that is not already
stored. Use --file to import an XML document ("-" reads stdin):

  <import>
    <dept codi="D40"><nom>Operacions</nom></dept>
    <emp codi="E8000" dept="D40"><cognom>Puig</cognom></emp>
  </import>`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			uc, err := c.useCase()
			if err != nil {
				return err
			}
			dept, err := in.department(cmd.InOrStdin())
			if err != nil {
				return err
			}
			if err := uc.InsertDepartment(cmd.Context(), dept); err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), toDepartmentView(dept), func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "inserted department %s with %d employee(s)\n", dept.Code, len(dept.Employees))
				return err
			})
		},
	}
	in.register(cmd)
	return cmd
}

func newDepartmentDeleteCmd(c *cli) *cobra.Command {
	var reassignTo string
	cmd := &cobra.Command{
		Use:   "delete <code>",
		Short: "Delete a department",
		Long: `Delete removes a department together with its employees. With
--reassign-to the employees are moved to another existing department
instead of being deleted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uc, err := c.useCase()
			if err != nil {
				return err
			}
			dept := &org.Department{Code: args[0]}
			if reassignTo == "" {
				err = uc.DeleteDepartment(cmd.Context(), dept)
			} else {
				err = uc.DeleteDepartmentReassign(cmd.Context(), dept, &org.Department{Code: reassignTo})
			}
			if err != nil {
				return err
			}
			result := map[string]string{"deleted": dept.Code}
			if reassignTo != "" {
				result["reassigned_to"] = reassignTo
			}
			return c.print(cmd.OutOrStdout(), result, func(w io.Writer) error {
				if reassignTo != "" {
					_, err := fmt.Fprintf(w, "deleted department %s; employees moved to %s\n", dept.Code, reassignTo)
					return err
				}
				_, err := fmt.Fprintf(w, "deleted department %s and its employees\n", dept.Code)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&reassignTo, "reassign-to", "", "move employees to this department instead of deleting them")
	return cmd
}

func newDepartmentReplaceCmd(c *cli) *cobra.Command {
	var in departmentInput
	cmd := &cobra.Command{
		Use:   "replace <code>",
		Short: "Replace a department with a new one",
		Long: `Replace inserts the new department, deletes <code> and moves the employees
of <code> to the new department.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uc, err := c.useCase()
			if err != nil {
				return err
			}
			dept, err := in.department(cmd.InOrStdin())
			if err != nil {
				return err
			}
			if err := uc.ReplaceDepartment(cmd.Context(), dept, &org.Department{Code: args[0]}); err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), map[string]string{"replaced": args[0], "by": dept.Code}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "replaced department %s with %s\n", args[0], dept.Code)
				return err
			})
		},
	}
	in.register(cmd)
	return cmd
}

func newDepartmentRepairCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Finish or clean up a partially applied department operation",
		Long: `Repair commands complete what a failed insert, delete or reassignment left
behind. Use "gestor journal <operation-id>" to see which steps were applied.`,
	}
	cmd.AddCommand(
		newRepairInsertCmd(c),
		newRepairDeleteCmd(c),
		newRepairReassignCmd(c),
	)
	return cmd
}

func newRepairInsertCmd(c *cli) *cobra.Command {
	var in departmentInput
	cmd := &cobra.Command{
		Use:   "insert",
		Short: "Insert the employees missing from an existing department",
		Long: `Insert takes the same input as "department insert" and adds every listed
employee that is not stored yet. The department itself must already exist.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			uc, err := c.useCase()
			if err != nil {
				return err
			}
			dept, err := in.department(cmd.InOrStdin())
			if err != nil {
				return err
			}
			if err := uc.InsertMissingEmployees(cmd.Context(), dept); err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), map[string]string{"completed": dept.Code}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "inserted missing employees of department %s\n", dept.Code)
				return err
			})
		},
	}
	in.register(cmd)
	return cmd
}

func newRepairDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <code>",
		Short: "Delete employees left behind by a deleted department",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uc, err := c.useCase()
			if err != nil {
				return err
			}
			if err := uc.DeleteOrphanEmployees(cmd.Context(), args[0]); err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), map[string]string{"orphans_deleted": args[0]}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "deleted employees of removed department %s\n", args[0])
				return err
			})
		},
	}
}

func newRepairReassignCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "reassign <from> <to>",
		Short: "Move employees of a deleted department to an existing one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			uc, err := c.useCase()
			if err != nil {
				return err
			}
			if err := uc.ReassignOrphanEmployees(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), map[string]string{"from": args[0], "to": args[1]}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "moved employees of removed department %s to %s\n", args[0], args[1])
				return err
			})
		},
	}
}
