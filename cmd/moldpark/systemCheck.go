package main

import (
	"github.com/mmdatafocus/moldpark_backend/monitor"
	"github.com/spf13/cobra"
)

var (
	checkFix     bool
	checkVerbose bool
)

func systemCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "system-check",
		Short: "Check database integrity, security, configuration and performance",
		Long: `Run the maintenance checks.

With --fix, orphan users are removed, privileged producer accounts are demoted,
broken networks are deleted and missing media, static and log directories are
created.`,
		Args: cobra.NoArgs,
		RunE: runSystemCheck,
	}

	cmd.Flags().BoolVar(&checkFix, "fix", false, "Repair what can be repaired automatically")
	cmd.Flags().BoolVar(&checkVerbose, "verbose", false, "Print counts for passing checks")

	return cmd
}

func runSystemCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	report := rt.Jobs.SystemChecker(rt.Environment()).Run(ctx, checkFix, checkVerbose)
	monitor.RenderCheckReport(cmd.OutOrStdout(), report, style())
	return nil
}
