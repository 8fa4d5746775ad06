package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newProjectsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List the projects visible to the profile user",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd, g)
			if err != nil {
				return err
			}
			if err := e.ctrl.LoadProjects(cmd.Context(), e.profile.UserID); err != nil {
				return err
			}

			projects := e.ctrl.Snapshot().Projects
			out := cmd.OutOrStdout()
			if len(projects) == 0 {
				fmt.Fprintln(out, "No projects found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCODE\tNAME\tOWNER\tMEMBERS")
			for _, p := range projects {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
					p.ID, orDash(p.Code), truncate(p.Name, 40), orDash(p.OwnerName), orDash(strings.Join(p.Members, ",")))
			}
			return w.Flush()
		},
	}
}

func newContractsCmd(g *globalFlags) *cobra.Command {
	var sel selectionFlags
	cmd := &cobra.Command{
		Use:   "contracts",
		Short: "List the contracts of a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd, g)
			if err != nil {
				return err
			}
			if err := navigate(cmd.Context(), e.ctrl, e.profile.UserID, selectionFlags{project: sel.project}); err != nil {
				return err
			}

			contracts := e.ctrl.Snapshot().Contracts
			out := cmd.OutOrStdout()
			if len(contracts) == 0 {
				fmt.Fprintln(out, "No contracts found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCODE\tNAME\tAMOUNT\tSIGNED\tCOST\tMATERIAL")
			for _, c := range contracts {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%d\n",
					c.ID, orDash(c.Code), truncate(c.Name, 40), c.Amount.StringFixed(2), orDash(c.SignedDate),
					len(c.CostItems), len(c.MaterialItems))
			}
			return w.Flush()
		},
	}
	cmd.Flags().Int64Var(&sel.project, "project", 0, "project id (default: first visible project)")
	return cmd
}

func newPeriodsCmd(g *globalFlags) *cobra.Command {
	var sel selectionFlags
	cmd := &cobra.Command{
		Use:   "periods",
		Short: "List the periods of a contract",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd, g)
			if err != nil {
				return err
			}
			if err := navigate(cmd.Context(), e.ctrl, e.profile.UserID, selectionFlags{project: sel.project, contract: sel.contract}); err != nil {
				return err
			}

			snap := e.ctrl.Snapshot()
			out := cmd.OutOrStdout()
			if len(snap.Periods) == 0 {
				fmt.Fprintln(out, "No periods found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTART\tEND\tARCHIVED")
			for _, p := range snap.Periods {
				archived := "no"
				if p.IsArchived {
					archived = "yes"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", p.ID, p.Name, p.StartDate, p.EndDate, archived)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Int64Var(&sel.project, "project", 0, "project id (default: first visible project)")
	cmd.Flags().Int64Var(&sel.contract, "contract", 0, "contract id (default: first contract)")
	return cmd
}

func newItemsCmd(g *globalFlags) *cobra.Command {
	var sel selectionFlags
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Show the item tree of a contract",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd, g)
			if err != nil {
				return err
			}
			if err := navigate(cmd.Context(), e.ctrl, e.profile.UserID, selectionFlags{project: sel.project, contract: sel.contract}); err != nil {
				return err
			}

			tree := e.ctrl.Snapshot().ItemTree
			out := cmd.OutOrStdout()
			if tree.IsEmpty() {
				fmt.Fprintln(out, "No items found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tITEM\tUNIT PRICE\tDESIGN QTY")
			for _, root := range tree.Roots() {
				fmt.Fprintf(w, "-\t%s\t\t\n", root.Title())
				for _, leaf := range root.Children {
					fmt.Fprintf(w, "%d\t  %s\t%s\t%s\n",
						leaf.ItemID, leaf.Title(), leaf.Item.UnitPrice.String(), leaf.Item.DesignQuantity.String())
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().Int64Var(&sel.project, "project", 0, "project id (default: first visible project)")
	cmd.Flags().Int64Var(&sel.contract, "contract", 0, "contract id (default: first contract)")
	return cmd
}
