// moldpark runs the MoldPark monitoring and notification jobs. An external
// scheduler (cron, Cloud Scheduler) invokes one command per run.
//
// Usage:
//
//	moldpark monitor --send-alerts --alert-threshold 5
//	moldpark notify --type center --dry-run
//	moldpark system-check --fix
//	moldpark report --xlsx status.xlsx
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/mmdatafocus/moldpark_backend/config"
	"github.com/mmdatafocus/moldpark_backend/metrics"
	"github.com/mmdatafocus/moldpark_backend/monitor"
	"github.com/mmdatafocus/moldpark_backend/workflow"
	"github.com/spf13/cobra"
)

var (
	dbAttempts int
	noColor    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "moldpark",
		Short: "MoldPark monitoring and notification jobs",
		Long: `moldpark evaluates the MoldPark platform state and notifies
centers, producers and administrators about what needs attention.

Each command runs a single pass and exits. Findings never change the exit
code; only an unreachable database, a pass already in progress or invalid
flags do.`,
		Version:       monitor.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	rootCmd.PersistentFlags().IntVar(&dbAttempts, "db-attempts", 3, "Database connection attempts before giving up (0 retries forever)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(monitorCmd())
	rootCmd.AddCommand(notifyCmd())
	rootCmd.AddCommand(systemCheckCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(createAdminCmd())
	rootCmd.AddCommand(tokenCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, style().Error("Error: "+err.Error()))
		os.Exit(exitCode(err))
	}
}

// exitCode separates a busy pass from a broken one so schedulers can tell them apart.
func exitCode(err error) int {
	switch {
	case errors.Is(err, workflow.ErrPassInProgress):
		return 3
	case errors.Is(err, monitor.ErrDatabaseDown):
		return 2
	default:
		return 1
	}
}

func style() monitor.Style {
	return monitor.Style{
		Title:   color.New(color.Bold, color.FgHiBlue).Sprint,
		Success: color.New(color.FgHiGreen).Sprint,
		Error:   color.New(color.FgRed).Sprint,
		Warning: color.New(color.FgYellow).Sprint,
		Info:    color.New(color.FgCyan).Sprint,
	}
}

// openRuntime loads the settings and connects what the command needs.
func openRuntime(ctx context.Context, withoutExternal bool) (*workflow.Runtime, error) {
	s, err := config.LoadSettings()
	if err != nil {
		return nil, err
	}
	logger := config.NewLogger(s)
	metrics.Register()
	return workflow.Open(ctx, s, logger, workflow.OpenOptions{
		DBAttempts:      dbAttempts,
		WithoutExternal: withoutExternal,
	})
}
