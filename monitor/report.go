package monitor

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Style decorates report sections; the CLI plugs in terminal colors.
type Style struct {
	Title   func(a ...interface{}) string
	Success func(a ...interface{}) string
	Error   func(a ...interface{}) string
	Warning func(a ...interface{}) string
	Info    func(a ...interface{}) string
}

func PlainStyle() Style {
	return Style{
		Title:   fmt.Sprint,
		Success: fmt.Sprint,
		Error:   fmt.Sprint,
		Warning: fmt.Sprint,
		Info:    fmt.Sprint,
	}
}

const reportTimeLayout = "02.01.2006 15:04"

// RenderMonitorReport writes the system monitor result as text.
func RenderMonitorReport(w io.Writer, r MonitorReport, st Style) {
	fmt.Fprintln(w, st.Title("MoldPark system monitor"))
	fmt.Fprintf(w, "Date: %s\n\n", r.GeneratedAt.Format(reportTimeLayout))
	if r.Total() == 0 {
		fmt.Fprintln(w, st.Success("System healthy, no issues detected."))
	}
	if len(r.Critical) > 0 {
		fmt.Fprintln(w, st.Error(fmt.Sprintf("%d CRITICAL ISSUES DETECTED:", len(r.Critical))))
		for _, f := range r.Critical {
			fmt.Fprintf(w, "  x %s\n", f.Message)
		}
	}
	if len(r.Warnings) > 0 {
		fmt.Fprintln(w, st.Warning(fmt.Sprintf("%d WARNINGS DETECTED:", len(r.Warnings))))
		for _, f := range r.Warnings {
			fmt.Fprintf(w, "  ! %s\n", f.Message)
		}
	}
	s := r.Stats
	fmt.Fprintln(w)
	fmt.Fprintln(w, st.Info(fmt.Sprintf(
		"Statistics: %d users, %d centers, %d producers (%d verified), %d orders (%d active), %d molds, %d active networks",
		s.Users, s.Centers, s.Producers, s.VerifiedProducers, s.TotalOrders, s.ActiveOrders, s.TotalMolds, s.ActiveNetworks)))
}

// AlertEmail builds the subject and body of the administrator alert e-mail.
func AlertEmail(r MonitorReport) (subject, body string) {
	subject = fmt.Sprintf("MoldPark system alert - %d issues detected", r.Total())

	var b strings.Builder
	b.WriteString("MoldPark System Monitor Report\n")
	b.WriteString(strings.Repeat("=", 40) + "\n")
	fmt.Fprintf(&b, "Date: %s\n\n", r.GeneratedAt.Format(reportTimeLayout))
	if len(r.Critical) > 0 {
		b.WriteString("CRITICAL ISSUES:\n")
		b.WriteString(strings.Repeat("-", 20) + "\n")
		for _, f := range r.Critical {
			fmt.Fprintf(&b, "x %s\n", f.Message)
		}
		b.WriteString("\n")
	}
	if len(r.Warnings) > 0 {
		b.WriteString("WARNINGS:\n")
		b.WriteString(strings.Repeat("-", 10) + "\n")
		for _, f := range r.Warnings {
			fmt.Fprintf(&b, "! %s\n", f.Message)
		}
	}
	b.WriteString("\nCheck the admin panel for a detailed review.\n\nThis is an automated message.\n")
	return subject, b.String()
}

// RenderPassReport writes a notification pass as text.
func RenderPassReport(w io.Writer, p PassReport, st Style) {
	mode := "sending"
	if p.DryRun {
		mode = "dry run"
	}
	fmt.Fprintln(w, st.Title(fmt.Sprintf("MoldPark smart notifications (%s, type %s)", mode, p.Scope.Type)))
	for _, c := range p.Categories {
		fmt.Fprintf(w, "\n%s: %d subjects, %d findings\n", strings.ToUpper(string(c.Category)), c.Subjects, len(c.Findings))
		if c.Failures > 0 {
			fmt.Fprintln(w, st.Error(fmt.Sprintf("  %d checks failed, see the log", c.Failures)))
		}
		for _, f := range c.Findings {
			line := fmt.Sprintf("  [%s] %s: %s", f.Severity, Label(f.Subject), f.Message)
			switch f.Severity {
			case SeverityCritical:
				fmt.Fprintln(w, st.Error(line))
			case SeverityWarning:
				fmt.Fprintln(w, st.Warning(line))
			default:
				fmt.Fprintln(w, line)
			}
		}
	}
	d := p.Dispatch()
	fmt.Fprintln(w)
	verb := "sent"
	if p.DryRun {
		verb = "would be sent"
	}
	fmt.Fprintln(w, st.Success(fmt.Sprintf("%d notifications %s, %d suppressed by cooldown, %d failed", d.Sent, verb, d.Suppressed, d.Failed)))
	if p.Interrupted {
		fmt.Fprintln(w, st.Warning("pass interrupted before every category ran"))
	}
	fmt.Fprintf(w, "Took %s\n", p.FinishedAt.Sub(p.StartedAt).Round(time.Millisecond))
}

// RenderStatus writes the dashboard snapshot as text.
func RenderStatus(w io.Writer, s SystemStatus, pl Pipeline, al AlertList, st Style) {
	health := fmt.Sprintf("Health: %d (%s)", s.System.HealthScore, s.System.Status)
	switch s.System.Status {
	case HealthExcellent, HealthGood:
		health = st.Success(health)
	case HealthWarning:
		health = st.Warning(health)
	default:
		health = st.Error(health)
	}
	fmt.Fprintln(w, st.Title("MoldPark status "+s.System.LastUpdated.Format(reportTimeLayout)))
	fmt.Fprintln(w, health)
	for _, p := range s.System.Penalties {
		fmt.Fprintf(w, "  -%d %s\n", p.Points, p.Reason)
	}
	fmt.Fprintf(w, "Users %d (24h active %d), centers %d, producers %d (%d verified)\n",
		s.Users.Total, s.Users.Active24h, s.Users.Centers, s.Users.Producers, s.Users.VerifiedProducers)
	fmt.Fprintf(w, "Orders %d, active %d, pending %d, overdue %d, delivered in 30 days %d, revenue %s\n",
		s.Orders.Total, s.Orders.Active, s.Orders.Pending, s.Orders.Overdue, s.Orders.Completed30d, s.Orders.Revenue30d.StringFixed(2))
	fmt.Fprintf(w, "Molds %d (24h %d, 7d %d, 30d %d)\n", s.Molds.Total, s.Molds.Created24h, s.Molds.Created7d, s.Molds.Created30d)
	fmt.Fprintf(w, "Networks %d, active %d, pending %d, suspended %d, terminated %d\n",
		s.Networks.Total, s.Networks.Active, s.Networks.Pending, s.Networks.Suspended, s.Networks.Terminated)
	fmt.Fprintf(w, "Average delivery %.1f days, quality %.1f, completion %s%%\n",
		s.Performance.AvgDeliveryDays, s.Performance.AvgQualityScore, formatPercent(s.Performance.CompletionRate))

	fmt.Fprintln(w, st.Title("\nPipeline"))
	for _, stage := range pl.Stages {
		fmt.Fprintf(w, "  %-16s %5d  %5s%%\n", stage.Stage, stage.Count, formatPercent(stage.Percentage))
	}
	fmt.Fprintf(w, "  %-16s %5d\n", "Total", pl.TotalActiveOrders)

	fmt.Fprintln(w, st.Title(fmt.Sprintf("\nAlerts (%d, %d high priority)", al.TotalAlerts, al.HighPriority)))
	for _, a := range al.Alerts {
		line := fmt.Sprintf("  [%s] %s: %s", a.Priority, a.Title, a.Message)
		if a.Priority == "high" {
			line = st.Error(line)
		}
		fmt.Fprintln(w, line)
	}
}

// Snapshot is the structured payload of the report command and the archive.
type Snapshot struct {
	GeneratedAt time.Time    `json:"generated_at"`
	Status      SystemStatus `json:"status"`
	Pipeline    Pipeline     `json:"pipeline"`
	Alerts      AlertList    `json:"alerts"`
}

func (s Snapshot) JSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
