package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newEmployeeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "employee",
		Aliases: []string{"emp"},
		Short:   "Inspect employees",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "exists <code>",
			Short: "Report whether an employee exists",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				uc, err := c.useCase()
				if err != nil {
					return err
				}
				exists, err := uc.EmployeeExists(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return c.print(cmd.OutOrStdout(), map[string]bool{"exists": exists}, func(w io.Writer) error {
					_, err := fmt.Fprintln(w, exists)
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "get <code>",
			Short: "Show an employee",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				uc, err := c.useCase()
				if err != nil {
					return err
				}
				emp, err := uc.FetchEmployee(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return c.print(cmd.OutOrStdout(), toEmployeeView(emp), func(w io.Writer) error {
					return writeEmployee(w, emp)
				})
			},
		},
	)
	return cmd
}

func newManagerCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manager",
		Short: "Manage reporting lines",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "reassign <from> <to>",
		Short: "Move every report of <from> to <to>",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			uc, err := c.useCase()
			if err != nil {
				return err
			}
			if err := uc.ReassignManager(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), map[string]string{"from": args[0], "to": args[1]}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "reports of %s now report to %s\n", args[0], args[1])
				return err
			})
		},
	})
	return cmd
}

func newJournalCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "journal <operation-id>",
		Short: "Show the recorded steps of an operation",
		Long: `Journal lists the steps recorded for a multi-step operation, so that a
partially applied operation can be inspected before re-running it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uc, err := c.useCase()
			if err != nil {
				return err
			}
			steps, err := uc.OperationSteps(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), toStepViews(steps), func(w io.Writer) error {
				return writeSteps(w, steps)
			})
		},
	}
}
