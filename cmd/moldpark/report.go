package main

import (
	"fmt"

	"github.com/mmdatafocus/moldpark_backend/monitor"
	"github.com/mmdatafocus/moldpark_backend/reports"
	"github.com/spf13/cobra"
)

var (
	reportXLSX string
	reportJSON bool
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the dashboard status snapshot",
		Long: `Print the system status, production pipeline and active alerts.

Examples:
  # Export the snapshot as a workbook
  moldpark report --xlsx status.xlsx

  # Machine readable output
  moldpark report --json`,
		Args: cobra.NoArgs,
		RunE: runReport,
	}

	cmd.Flags().StringVar(&reportXLSX, "xlsx", "", "Also write the snapshot to this .xlsx file")
	cmd.Flags().BoolVar(&reportJSON, "json", false, "Print JSON instead of text")

	return cmd
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	snap, err := rt.Jobs.Snapshot(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if reportJSON {
		raw, err := snap.JSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(raw))
	} else {
		monitor.RenderStatus(out, snap.Status, snap.Pipeline, snap.Alerts, style())
	}

	if reportXLSX != "" {
		if err := reports.SaveStatusWorkbook(reportXLSX, snap); err != nil {
			return fmt.Errorf("write %s: %w", reportXLSX, err)
		}
		if !reportJSON {
			fmt.Fprintln(out, style().Success("Workbook written to "+reportXLSX))
		}
	}
	return nil
}
