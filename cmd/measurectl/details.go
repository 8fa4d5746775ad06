package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/straye-as/measure-api/internal/domain"
	"github.com/straye-as/measure-api/internal/measurement"
)

func newDetailsCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "details",
		Short: "List and manage measurement details",
	}
	cmd.AddCommand(newDetailsListCmd(g))
	cmd.AddCommand(newDetailsAddCmd(g))
	cmd.AddCommand(newDetailsUpdateCmd(g))
	cmd.AddCommand(newDetailsDeleteCmd(g))
	cmd.AddCommand(newDetailsReviewCmd(g))
	return cmd
}

func newDetailsListCmd(g *globalFlags) *cobra.Command {
	var (
		sel    selectionFlags
		status int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the details of the selected period",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd, g)
			if err != nil {
				return err
			}
			if err := navigate(cmd.Context(), e.ctrl, e.profile.UserID, sel); err != nil {
				return err
			}

			details := e.ctrl.Snapshot().Details
			if cmd.Flags().Changed("status") {
				s := domain.MeasurementStatus(status)
				if !s.IsValid() {
					return fmt.Errorf("status must be 0, 1 or 2")
				}
				if details, err = e.ctrl.FetchMeasurementDetailList(cmd.Context(), &measurement.DetailFilter{Status: &s}); err != nil {
					return err
				}
			}
			return printDetails(cmd.OutOrStdout(), details)
		},
	}
	sel.register(cmd, true)
	cmd.Flags().IntVar(&status, "status", 0, "only details in this status (0 pending, 1 approved, 2 rejected)")
	return cmd
}

func newDetailsAddCmd(g *globalFlags) *cobra.Command {
	var (
		sel    selectionFlags
		count  string
		remark string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a measured quantity for an item in the selected period",
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := decimal.NewFromString(count)
			if err != nil {
				return fmt.Errorf("invalid --count %q", count)
			}

			e, err := newEnv(cmd, g)
			if err != nil {
				return err
			}
			if err := navigate(cmd.Context(), e.ctrl, e.profile.UserID, sel); err != nil {
				return err
			}

			flow := measurement.NewWorkflow(e.ctrl)
			flow.New()
			values := measurement.DetailValues{CurrentCount: &qty}
			if cmd.Flags().Changed("remark") {
				values.Remark = &remark
			}
			saved, err := flow.AddOrUpdate(cmd.Context(), values)
			if err != nil {
				return err
			}
			return printDetails(cmd.OutOrStdout(), []domain.MeasurementDetailDTO{*saved})
		},
	}
	sel.register(cmd, true)
	cmd.Flags().StringVar(&count, "count", "", "measured quantity (required)")
	cmd.Flags().StringVar(&remark, "remark", "", "free-text remark")
	_ = cmd.MarkFlagRequired("count")
	_ = cmd.MarkFlagRequired("item")
	return cmd
}

func newDetailsUpdateCmd(g *globalFlags) *cobra.Command {
	var (
		sel    selectionFlags
		count  string
		remark string
		item   int64
	)
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change a pending or rejected detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var values measurement.DetailValues
			if cmd.Flags().Changed("count") {
				qty, err := decimal.NewFromString(count)
				if err != nil {
					return fmt.Errorf("invalid --count %q", count)
				}
				values.CurrentCount = &qty
			}
			if cmd.Flags().Changed("remark") {
				values.Remark = &remark
			}
			values.MeasurementItemID = item

			e, err := newEnv(cmd, g)
			if err != nil {
				return err
			}
			detail, err := locateDetail(cmd, e, sel, id)
			if err != nil {
				return err
			}

			flow := measurement.NewWorkflow(e.ctrl)
			if err := flow.Edit(detail); err != nil {
				return err
			}
			saved, err := flow.AddOrUpdate(cmd.Context(), values)
			if err != nil {
				return err
			}
			return printDetails(cmd.OutOrStdout(), []domain.MeasurementDetailDTO{*saved})
		},
	}
	sel.register(cmd, false)
	cmd.Flags().StringVar(&count, "count", "", "new measured quantity")
	cmd.Flags().StringVar(&remark, "remark", "", "new remark")
	cmd.Flags().Int64Var(&item, "item", 0, "move the detail to another item")
	return cmd
}

func newDetailsDeleteCmd(g *globalFlags) *cobra.Command {
	var sel selectionFlags
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a pending or rejected detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			e, err := newEnv(cmd, g)
			if err != nil {
				return err
			}
			if _, err := locateDetail(cmd, e, sel, id); err != nil {
				return err
			}
			if err := measurement.NewWorkflow(e.ctrl).Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted measurement %d\n", id)
			return nil
		},
	}
	sel.register(cmd, false)
	return cmd
}

func newDetailsReviewCmd(g *globalFlags) *cobra.Command {
	var (
		sel     selectionFlags
		approve bool
		reject  bool
		comment string
	)
	cmd := &cobra.Command{
		Use:   "review ID",
		Short: "Approve or reject a detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if approve == reject {
				return fmt.Errorf("exactly one of --approve or --reject is required")
			}
			decision := domain.ReviewDecisionReject
			if approve {
				decision = domain.ReviewDecisionApprove
			}

			e, err := newEnv(cmd, g)
			if err != nil {
				return err
			}
			if _, err := locateDetail(cmd, e, sel, id); err != nil {
				return err
			}
			reviewed, err := measurement.NewWorkflow(e.ctrl).Review(cmd.Context(), id, decision, comment)
			if err != nil {
				return err
			}
			return printDetails(cmd.OutOrStdout(), []domain.MeasurementDetailDTO{*reviewed})
		},
	}
	sel.register(cmd, false)
	cmd.Flags().BoolVar(&approve, "approve", false, "approve the detail")
	cmd.Flags().BoolVar(&reject, "reject", false, "reject the detail")
	cmd.Flags().StringVar(&comment, "comment", "", "review comment")
	return cmd
}

// locateDetail navigates to the period and finds id in its detail list
func locateDetail(cmd *cobra.Command, e *env, sel selectionFlags, id int64) (domain.MeasurementDetailDTO, error) {
	if err := navigate(cmd.Context(), e.ctrl, e.profile.UserID, sel); err != nil {
		return domain.MeasurementDetailDTO{}, err
	}
	snap := e.ctrl.Snapshot()
	for _, d := range snap.Details {
		if d.ID == id {
			return d, nil
		}
	}
	return domain.MeasurementDetailDTO{}, fmt.Errorf("measurement %d not found in period %d", id, snap.SelectedPeriodID)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func printDetails(out io.Writer, details []domain.MeasurementDetailDTO) error {
	if len(details) == 0 {
		fmt.Fprintln(out, "No measurements found.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tITEM\tTYPE\tCOUNT\tTOTAL\tREMAINING\tAMOUNT\tSTATUS\tREMARK")
	for _, d := range details {
		remaining := "-"
		if d.RemainingCount != nil {
			remaining = d.RemainingCount.String()
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			d.ID, truncate(orDash(d.ItemName), 30), d.ItemType, d.CurrentCount.String(), d.TotalCount.String(),
			remaining, d.Amount.StringFixed(2), d.MeasurementStatus, truncate(orDash(d.Remark), 30))
	}
	return w.Flush()
}
