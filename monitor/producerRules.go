package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/moldpark_backend/models"
)

func checkProducerBacklog(ctx context.Context, ev *Evaluator, p models.Producer, now time.Time) ([]Finding, error) {
	n, err := ev.store.CountOrders(ctx, models.OrderQuery{
		ProducerID:    p.ID,
		Statuses:      []models.OrderStatus{models.OrderStatusReceived},
		CreatedBefore: ago(now, ev.cfg.Thresholds.PendingOrderAge),
	})
	if err != nil {
		return nil, fmt.Errorf("pending orders of producer %d: %w", p.ID, err)
	}
	if n == 0 {
		return nil, nil
	}
	return []Finding{{
		Kind:     KindPendingBacklog,
		Category: CategoryProducer,
		Severity: SeverityWarning,
		Subject:  producerActor(p),
		Audience: AudienceOwner,
		Message:  fmt.Sprintf("%d orders have been waiting for more than 24 hours and need to be processed.", n),
		Count:    n,
	}}, nil
}

func currentMonthOrders(ctx context.Context, ev *Evaluator, p models.Producer, now time.Time) (int64, error) {
	start := monthStart(now)
	n, err := ev.store.CountOrders(ctx, models.OrderQuery{ProducerID: p.ID, CreatedSince: &start})
	if err != nil {
		return 0, fmt.Errorf("current month orders of producer %d: %w", p.ID, err)
	}
	return n, nil
}

func checkProducerCapacity(ctx context.Context, ev *Evaluator, p models.Producer, now time.Time) ([]Finding, error) {
	if p.MoldLimit <= 0 {
		return nil, nil
	}
	n, err := currentMonthOrders(ctx, ev, p, now)
	if err != nil {
		return nil, err
	}
	limit := int64(p.MoldLimit)
	if !reaches(n, limit, ev.cfg.Thresholds.CapacityPressureRatio) {
		return nil, nil
	}
	pct := Percentage(n, limit)
	return []Finding{{
		Kind:     KindCapacityPressure,
		Category: CategoryProducer,
		Severity: SeverityWarning,
		Subject:  producerActor(p),
		Audience: AudienceOwner,
		Message:  fmt.Sprintf("You have used %s%% of your monthly capacity. Planning ahead is recommended.", formatPercent(pct)),
		Count:    n,
		Percent:  pct,
	}}, nil
}

func checkProducerOnTime(ctx context.Context, ev *Evaluator, p models.Producer, now time.Time) ([]Finding, error) {
	q := models.OrderQuery{ProducerID: p.ID, CreatedSince: ago(now, ev.cfg.Thresholds.OnTimeWindow)}
	total, err := ev.store.CountOrders(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("recent orders of producer %d: %w", p.ID, err)
	}
	if total < ev.cfg.Thresholds.OnTimeMinSamples {
		return nil, nil
	}
	q.OnTime = true
	onTime, err := ev.store.CountOrders(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("on-time orders of producer %d: %w", p.ID, err)
	}
	pct := Percentage(onTime, total)
	if pct >= ev.cfg.Thresholds.OnTimeMinPercent {
		return nil, nil
	}
	return []Finding{{
		Kind:     KindOnTimeRate,
		Category: CategoryProducer,
		Severity: SeverityWarning,
		Subject:  producerActor(p),
		Audience: AudienceOwner,
		Message:  fmt.Sprintf("Your on-time delivery rate last month was %s%%. Get in touch for improvement suggestions.", formatPercent(pct)),
		Count:    total,
		Percent:  pct,
	}}, nil
}

func checkProducerExpansion(ctx context.Context, ev *Evaluator, p models.Producer, now time.Time) ([]Finding, error) {
	if p.MoldLimit <= 0 {
		return nil, nil
	}
	n, err := currentMonthOrders(ctx, ev, p, now)
	if err != nil {
		return nil, err
	}
	if !exceeds(n, int64(p.MoldLimit), ev.cfg.Thresholds.ExpansionRatio) {
		return nil, nil
	}
	active, err := ev.store.CountNetworks(ctx, models.NetworkQuery{
		ProducerID: p.ID,
		Statuses:   []models.NetworkStatus{models.NetworkStatusActive},
	})
	if err != nil {
		return nil, fmt.Errorf("active networks of producer %d: %w", p.ID, err)
	}
	if active >= ev.cfg.Thresholds.ExpansionMaxNetworks {
		return nil, nil
	}
	return []Finding{{
		Kind:     KindNetworkExpansion,
		Category: CategoryProducer,
		Severity: SeverityInfo,
		Subject:  producerActor(p),
		Audience: AudienceOwner,
		Message:  "Your capacity usage is high. Networking with more hearing centers can grow your business.",
		Count:    active,
		Percent:  Percentage(n, int64(p.MoldLimit)),
	}}, nil
}
