package main

import (
	"fmt"

	"github.com/mmdatafocus/moldpark_backend/monitor"
	"github.com/mmdatafocus/moldpark_backend/workflow"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var monitorOpts workflow.MonitorOptions

func monitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run the system monitor and alert administrators",
		Long: `Check the platform for critical issues and warnings.

The result is printed, sent as a system alert notification to every
administrator and, with --send-alerts, mailed once the number of issues
reaches --alert-threshold.

Examples:
  # Print the report only
  moldpark monitor

  # Mail administrators when 3 or more issues are found, archive the snapshot
  moldpark monitor --send-alerts --alert-threshold 3 --archive`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if monitorOpts.AlertThreshold < 1 {
				return fmt.Errorf("--alert-threshold must be at least 1")
			}
			return nil
		},
		RunE: runMonitor,
	}

	cmd.Flags().BoolVar(&monitorOpts.SendAlerts, "send-alerts", false, "E-mail administrators when the threshold is reached")
	cmd.Flags().IntVar(&monitorOpts.AlertThreshold, "alert-threshold", 5, "Minimum number of issues before alert e-mails are sent")
	cmd.Flags().BoolVar(&monitorOpts.Archive, "archive", false, "Upload the status snapshot to the configured GCS bucket")

	return cmd
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := rt.Jobs.RunSystemMonitor(ctx, monitorOpts)
	if err != nil {
		return err
	}

	st := style()
	out := cmd.OutOrStdout()
	monitor.RenderMonitorReport(out, res.Report, st)
	fmt.Fprintln(out)
	if res.Alert.Sent+res.Alert.Suppressed+res.Alert.Failed > 0 {
		fmt.Fprintf(out, "System alert: %d sent, %d suppressed, %d failed\n", res.Alert.Sent, res.Alert.Suppressed, res.Alert.Failed)
	}
	switch {
	case res.Email.Sent:
		fmt.Fprintln(out, st.Success(fmt.Sprintf("Alert e-mail sent to %d administrators", res.Email.Recipients)))
	case res.Email.Attempted:
		fmt.Fprintln(out, st.Error("Alert e-mail "+res.Email.String()))
	}
	if res.ArchivedAs != "" {
		fmt.Fprintln(out, st.Info("Snapshot archived as "+res.ArchivedAs))
	}

	rt.Logger.WithFields(logrus.Fields{
		"module":   "cmd/moldpark",
		"critical": len(res.Report.Critical),
		"warnings": len(res.Report.Warnings),
		"health":   res.Health,
		"stats":    res.Report.Stats,
	}).Info("system monitor finished")
	return nil
}
