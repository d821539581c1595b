package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/moldpark_backend/models"
)

func checkWeeklyReport(ctx context.Context, ev *Evaluator, admins []Recipient, now time.Time) ([]Finding, error) {
	if len(admins) == 0 {
		return nil, nil
	}
	total, err := ev.store.CountOrders(ctx, models.OrderQuery{})
	if err != nil {
		return nil, fmt.Errorf("total orders: %w", err)
	}
	active, err := ev.store.CountOrders(ctx, models.OrderQuery{Statuses: models.ActiveOrderStatuses})
	if err != nil {
		return nil, fmt.Errorf("active orders: %w", err)
	}
	msg := fmt.Sprintf("System summary: %d total orders, %d active orders. Details are in the admin panel.", total, active)
	out := make([]Finding, 0, len(admins))
	for _, a := range admins {
		out = append(out, Finding{
			Kind:     KindWeeklyReport,
			Category: CategoryAdmin,
			Severity: SeverityInfo,
			Subject:  AdminActor{Admin: a},
			Audience: AudienceOwner,
			Message:  msg,
			Count:    total,
		})
	}
	return out, nil
}

func checkSecurity(ctx context.Context, ev *Evaluator, admins []Recipient, now time.Time) ([]Finding, error) {
	n, err := ev.store.CountProducers(ctx, models.ProducerFilter{Privileged: true})
	if err != nil {
		return nil, fmt.Errorf("privileged producers: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	return []Finding{{
		Kind:     KindSecurityRisk,
		Category: CategoryAdmin,
		Severity: SeverityCritical,
		Subject:  SystemActor{},
		Audience: AudienceAdmins,
		Message:  fmt.Sprintf("%d producer accounts have admin privileges. Security risk!", n),
		Count:    n,
	}}, nil
}

func checkOverdueWorkflow(ctx context.Context, ev *Evaluator, admins []Recipient, now time.Time) ([]Finding, error) {
	n, err := ev.store.CountOrders(ctx, models.Overdue(now))
	if err != nil {
		return nil, fmt.Errorf("overdue orders: %w", err)
	}
	if n <= ev.cfg.Thresholds.OverdueCritical {
		return nil, nil
	}
	return []Finding{{
		Kind:     KindOverdueWorkflow,
		Category: CategoryAdmin,
		Severity: SeverityCritical,
		Subject:  SystemActor{},
		Audience: AudienceAdmins,
		Message:  fmt.Sprintf("%d orders are overdue. Reviewing producer capacity is recommended.", n),
		Count:    n,
	}}, nil
}

func checkUnassignedOrders(ctx context.Context, ev *Evaluator, admins []Recipient, now time.Time) ([]Finding, error) {
	n, err := ev.store.CountOrders(ctx, models.OrderQuery{Unassigned: true, ExcludeStatuses: models.TerminalOrderStatuses})
	if err != nil {
		return nil, fmt.Errorf("unassigned orders: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	return []Finding{{
		Kind:     KindUnassignedOrders,
		Category: CategoryAdmin,
		Severity: SeverityWarning,
		Subject:  SystemActor{},
		Audience: AudienceAdmins,
		Message:  fmt.Sprintf("%d open orders have no producer assigned.", n),
		Count:    n,
	}}, nil
}
