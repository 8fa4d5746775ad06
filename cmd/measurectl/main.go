package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// globalFlags are shared by every command that talks to the API
type globalFlags struct {
	profile string
	verbose bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	cmd := &cobra.Command{
		Use:           "measurectl",
		Short:         "Measurement API operator CLI",
		Long:          "measurectl walks the project, contract, period and item selection and manages measurement details.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&g.profile, "profile", defaultProfilePath(), "path to the yaml profile")
	cmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log requests and notifications")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newProjectsCmd(g))
	cmd.AddCommand(newContractsCmd(g))
	cmd.AddCommand(newPeriodsCmd(g))
	cmd.AddCommand(newItemsCmd(g))
	cmd.AddCommand(newDetailsCmd(g))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "measurectl %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
