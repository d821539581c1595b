package monitor

import (
	"context"
	"time"
)

type CategoryReport struct {
	Category Category        `json:"category"`
	Subjects int             `json:"subjects"`
	Failures int             `json:"failures"`
	Findings []Finding       `json:"findings"`
	Dispatch DispatchSummary `json:"dispatch"`
}

type PassReport struct {
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Scope      Scope            `json:"scope"`
	DryRun     bool             `json:"dry_run"`
	Categories []CategoryReport `json:"categories"`
	// Interrupted is set when the context ended before every category ran.
	Interrupted bool `json:"interrupted"`
}

func (p PassReport) Findings() []Finding {
	var out []Finding
	for _, c := range p.Categories {
		out = append(out, c.Findings...)
	}
	return out
}

func (p PassReport) Dispatch() DispatchSummary {
	sum := DispatchSummary{DryRun: p.DryRun}
	for _, c := range p.Categories {
		sum.Merge(c.Dispatch)
	}
	return sum
}

// RunPass evaluates each category of scope and dispatches its findings before
// moving to the next one. onCategory, when set, sees every category as soon as
// it is dispatched.
func RunPass(ctx context.Context, ev *Evaluator, d *Dispatcher, scope Scope, admins []Recipient, dryRun bool, onCategory func(CategoryReport)) PassReport {
	report := PassReport{StartedAt: ev.clock(), Scope: scope, DryRun: dryRun}
	for _, cat := range scope.Categories() {
		if ctx.Err() != nil {
			report.Interrupted = true
			break
		}
		res := ev.Evaluate(ctx, cat, scope, admins)
		cr := CategoryReport{
			Category: cat,
			Subjects: res.Subjects,
			Failures: res.Failures,
			Findings: res.Findings,
			Dispatch: d.Dispatch(ctx, res.Findings, admins, dryRun),
		}
		report.Categories = append(report.Categories, cr)
		if onCategory != nil {
			onCategory(cr)
		}
	}
	report.FinishedAt = ev.clock()
	return report
}
