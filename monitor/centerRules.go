package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/moldpark_backend/models"
)

func checkCenterInactivity(ctx context.Context, ev *Evaluator, c models.Center, now time.Time) ([]Finding, error) {
	last, err := ev.store.LastMoldAt(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("last mold of center %d: %w", c.ID, err)
	}
	// a center that never created a mold has no activity to lose
	if last == nil {
		return nil, nil
	}
	days := WholeDays(now.Sub(*last))
	if days < ev.cfg.Thresholds.InactiveDays {
		return nil, nil
	}
	actor := centerActor(c)
	return []Finding{
		{
			Kind:     KindCenterInactive,
			Category: CategoryCenter,
			Severity: SeverityInfo,
			Subject:  actor,
			Audience: AudienceOwner,
			Message:  fmt.Sprintf("You have not ordered a new mold for %d days. Do you need help?", days),
			Count:    days,
		},
		{
			Kind:     KindCenterInactiveAdmin,
			Category: CategoryCenter,
			Severity: SeverityWarning,
			Subject:  actor,
			Audience: AudienceAdmins,
			Message:  fmt.Sprintf("%s has been inactive for %d days. Get in touch.", c.Name, days),
			Count:    days,
		},
	}, nil
}

func checkCenterQuota(ctx context.Context, ev *Evaluator, c models.Center, now time.Time) ([]Finding, error) {
	if c.MoldLimit <= 0 {
		return nil, nil
	}
	used, err := ev.store.CountMolds(ctx, c.ID, nil)
	if err != nil {
		return nil, fmt.Errorf("molds of center %d: %w", c.ID, err)
	}
	limit := int64(c.MoldLimit)
	if !reaches(used, limit, ev.cfg.Thresholds.QuotaPressureRatio) {
		return nil, nil
	}
	pct := Percentage(used, limit)
	f := Finding{
		Kind:     KindQuotaPressure,
		Category: CategoryCenter,
		Severity: SeverityInfo,
		Subject:  centerActor(c),
		Audience: AudienceOwner,
		Count:    limit - used,
		Percent:  pct,
	}
	// Count is molds remaining, or molds over the limit once exceeded.
	if used > limit {
		f.Severity = SeverityWarning
		f.Count = used - limit
		f.Message = fmt.Sprintf("You have used %s%% of your mold limit. %d molds over the limit.", formatPercent(pct), f.Count)
	} else {
		f.Message = fmt.Sprintf("You have used %s%% of your mold limit. %d molds remaining.", formatPercent(pct), f.Count)
	}
	return []Finding{f}, nil
}

func checkCenterCompletedOrders(ctx context.Context, ev *Evaluator, c models.Center, now time.Time) ([]Finding, error) {
	n, err := ev.store.CountOrders(ctx, models.OrderQuery{
		CenterID:       c.ID,
		Statuses:       []models.OrderStatus{models.OrderStatusDelivered},
		DeliveredSince: ago(now, ev.cfg.Thresholds.CompletedWindow),
	})
	if err != nil {
		return nil, fmt.Errorf("delivered orders of center %d: %w", c.ID, err)
	}
	if n == 0 {
		return nil, nil
	}
	return []Finding{{
		Kind:     KindOrdersCompleted,
		Category: CategoryCenter,
		Severity: SeverityInfo,
		Subject:  centerActor(c),
		Audience: AudienceOwner,
		Message:  fmt.Sprintf("%d of your mold orders were completed and delivered.", n),
		Count:    n,
	}}, nil
}

func checkCenterStaleRevisions(ctx context.Context, ev *Evaluator, c models.Center, now time.Time) ([]Finding, error) {
	n, err := ev.store.CountRevisions(ctx, c.ID, models.RevisionStatusPending, ago(now, ev.cfg.Thresholds.StaleRevisionAge))
	if err != nil {
		return nil, fmt.Errorf("pending revisions of center %d: %w", c.ID, err)
	}
	if n == 0 {
		return nil, nil
	}
	return []Finding{{
		Kind:     KindStaleRevisions,
		Category: CategoryCenter,
		Severity: SeverityWarning,
		Subject:  centerActor(c),
		Audience: AudienceOwner,
		Message: fmt.Sprintf("%d revision requests have been pending for more than %d days. Would you like to follow up?",
			n, WholeDays(ev.cfg.Thresholds.StaleRevisionAge)),
		Count: n,
	}}, nil
}

func checkCenterPerformance(ctx context.Context, ev *Evaluator, c models.Center, now time.Time) ([]Finding, error) {
	q := models.OrderQuery{CenterID: c.ID, CreatedSince: ago(now, ev.cfg.Thresholds.PerformanceWindow)}
	n, err := ev.store.CountOrders(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("recent orders of center %d: %w", c.ID, err)
	}
	if n < ev.cfg.Thresholds.PerformanceMinOrders {
		return nil, nil
	}
	msg := "Last month's order analysis is ready. See the dashboard for details."
	durations, err := ev.store.DeliveryDurations(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("delivery durations of center %d: %w", c.ID, err)
	}
	if avg, ok := AverageDays(durations); ok {
		msg = fmt.Sprintf("Last month's order analysis is ready: %d orders, %.1f days average delivery. See the dashboard for details.", n, avg)
	}
	return []Finding{{
		Kind:     KindPerformanceSuggestion,
		Category: CategoryCenter,
		Severity: SeverityInfo,
		Subject:  centerActor(c),
		Audience: AudienceOwner,
		Message:  msg,
		Count:    n,
		Link:     ev.cfg.DashboardURL,
	}}, nil
}
