package main

import (
	"fmt"
	"strings"

	"github.com/mmdatafocus/moldpark_backend/monitor"
	"github.com/spf13/cobra"
)

var (
	notifyType       string
	notifyCenterID   uint
	notifyProducerID uint
	notifyDryRun     bool
)

func notifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Run the smart notification rules",
		Long: `Evaluate the notification rules and deliver the findings.

Examples:
  # All categories
  moldpark notify

  # One center, analysis only
  moldpark notify --type center --center-id 12 --dry-run`,
		Args: cobra.NoArgs,
		RunE: runNotify,
	}

	cmd.Flags().StringVar(&notifyType, "type", "all", "Notification type: all, center, producer, admin")
	cmd.Flags().UintVar(&notifyCenterID, "center-id", 0, "Only evaluate this center")
	cmd.Flags().UintVar(&notifyProducerID, "producer-id", 0, "Only evaluate this producer")
	cmd.Flags().BoolVar(&notifyDryRun, "dry-run", false, "Analyse without sending notifications")

	return cmd
}

func runNotify(cmd *cobra.Command, args []string) error {
	scope, err := monitor.ParseScope(notifyType, notifyCenterID, notifyProducerID)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	rt, err := openRuntime(ctx, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	st := style()
	out := cmd.OutOrStdout()
	report, err := rt.Jobs.RunNotifications(ctx, scope, notifyDryRun, func(c monitor.CategoryReport) {
		fmt.Fprintln(out, st.Info(fmt.Sprintf("%s notifications checked: %d findings", strings.ToUpper(string(c.Category)), len(c.Findings))))
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	monitor.RenderPassReport(out, report, st)
	return nil
}
