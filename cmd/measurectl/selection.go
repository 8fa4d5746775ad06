package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/straye-as/measure-api/internal/domain"
	"github.com/straye-as/measure-api/internal/measurement"
)

// selectionFlags pick a point in the project → contract → period → item chain.
// Zero values keep the controller's default of selecting the first entry.
type selectionFlags struct {
	project  int64
	contract int64
	period   int64
	item     int64
	category string
}

func (s *selectionFlags) register(cmd *cobra.Command, withItem bool) {
	cmd.Flags().Int64Var(&s.project, "project", 0, "project id (default: first visible project)")
	cmd.Flags().Int64Var(&s.contract, "contract", 0, "contract id (default: first contract)")
	cmd.Flags().Int64Var(&s.period, "period", 0, "period id (default: latest period)")
	if withItem {
		cmd.Flags().Int64Var(&s.item, "item", 0, "measurement item id")
		cmd.Flags().StringVar(&s.category, "category", "", "item category (cost, material)")
	}
}

// navigate drives the controller down the chain. Each step is checked against the list the
// previous step loaded, so ids outside the caller's visibility fail early.
func navigate(ctx context.Context, ctrl *measurement.Controller, userID string, sel selectionFlags) error {
	if sel.item != 0 && sel.category != "" {
		return fmt.Errorf("--item and --category are mutually exclusive")
	}

	if err := ctrl.LoadProjects(ctx, userID); err != nil {
		return err
	}
	snap := ctrl.Snapshot()
	if len(snap.Projects) == 0 {
		return fmt.Errorf("no projects visible to %s", userID)
	}

	if sel.project != 0 && sel.project != snap.SelectedProjectID {
		if !containsID(snap.Projects, sel.project, func(p domain.ProjectDTO) int64 { return p.ID }) {
			return fmt.Errorf("project %d not found", sel.project)
		}
		if err := ctrl.OnProjectChange(ctx, sel.project); err != nil {
			return err
		}
		snap = ctrl.Snapshot()
	}

	if sel.contract != 0 && sel.contract != snap.SelectedContractID {
		if !containsID(snap.Contracts, sel.contract, func(c domain.ContractDTO) int64 { return c.ID }) {
			return fmt.Errorf("contract %d not found in project %d", sel.contract, snap.SelectedProjectID)
		}
		if err := ctrl.OnContractChange(ctx, sel.contract); err != nil {
			return err
		}
		snap = ctrl.Snapshot()
	}

	if sel.period != 0 && sel.period != snap.SelectedPeriodID {
		if !containsID(snap.Periods, sel.period, func(p domain.PeriodDTO) int64 { return p.ID }) {
			return fmt.Errorf("period %d not found in contract %d", sel.period, snap.SelectedContractID)
		}
		if err := ctrl.OnPeriodChange(ctx, sel.period); err != nil {
			return err
		}
	}

	switch {
	case sel.item != 0:
		leaf, ok := ctrl.Snapshot().ItemTree.Find(sel.item)
		if !ok {
			return fmt.Errorf("item %d not found in contract %d", sel.item, snap.SelectedContractID)
		}
		return ctrl.OnItemSelect(ctx, leaf)
	case sel.category != "":
		t := domain.MeasurementItemType(sel.category)
		if !t.IsValid() {
			return fmt.Errorf("unknown category %q", sel.category)
		}
		return ctrl.OnItemSelect(ctx, ctrl.Snapshot().ItemTree.Root(t))
	}
	return nil
}

func containsID[T any](list []T, id int64, key func(T) int64) bool {
	for _, v := range list {
		if key(v) == id {
			return true
		}
	}
	return false
}
