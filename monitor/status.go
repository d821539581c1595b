package monitor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/moldpark_backend/models"
	"github.com/mmdatafocus/moldpark_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const Version = "2.0.0"

var ErrDatabaseDown = errors.New("database unreachable")

// CacheProbe writes and reads back a marker value.
type CacheProbe interface {
	Check(ctx context.Context) CacheState
}

type SystemInfo struct {
	Status      HealthStatus `json:"status"`
	Version     string       `json:"version"`
	LastUpdated time.Time    `json:"last_updated"`
	HealthScore int          `json:"health_score"`
	Penalties   []Penalty    `json:"penalties"`
	Database    string       `json:"database"`
	Cache       string       `json:"cache"`
	DiskUsage   float64      `json:"disk_usage"`
}

type UserStats struct {
	Total             int64 `json:"total"`
	Active24h         int64 `json:"active_24h"`
	Centers           int64 `json:"centers"`
	Producers         int64 `json:"producers"`
	VerifiedProducers int64 `json:"verified_producers"`
}

type OrderStats struct {
	Total        int64           `json:"total"`
	Active       int64           `json:"active"`
	Completed30d int64           `json:"completed_30d"`
	Pending      int64           `json:"pending"`
	Overdue      int64           `json:"overdue"`
	Revenue30d   decimal.Decimal `json:"revenue_30d"`
}

type MoldStats struct {
	Total      int64 `json:"total"`
	Created24h int64 `json:"created_24h"`
	Created7d  int64 `json:"created_7d"`
	Created30d int64 `json:"created_30d"`
}

type NetworkStats struct {
	Total       int64   `json:"total"`
	Active      int64   `json:"active"`
	Pending     int64   `json:"pending"`
	Suspended   int64   `json:"suspended"`
	Terminated  int64   `json:"terminated"`
	HealthScore float64 `json:"health_score"`
}

type Performance struct {
	AvgDeliveryDays float64 `json:"avg_delivery_days"`
	AvgQualityScore float64 `json:"avg_quality_score"`
	CompletionRate  float64 `json:"completion_rate"`
}

type SystemStatus struct {
	System      SystemInfo   `json:"system"`
	Users       UserStats    `json:"users"`
	Orders      OrderStats   `json:"orders"`
	Molds       MoldStats    `json:"molds"`
	Networks    NetworkStats `json:"networks"`
	Performance Performance  `json:"performance"`
	Critical    []Finding    `json:"critical_items"`
}

type PipelineStage struct {
	Stage      string             `json:"stage"`
	StageCode  models.OrderStatus `json:"stage_code"`
	Count      int64              `json:"count"`
	Percentage float64            `json:"percentage"`
}

type Pipeline struct {
	Stages            []PipelineStage `json:"pipeline"`
	TotalActiveOrders int64           `json:"total_active_orders"`
	LastUpdated       time.Time       `json:"last_updated"`
}

var stageNames = map[models.OrderStatus]string{
	models.OrderStatusReceived:     "Received Orders",
	models.OrderStatusDesigning:    "3D Design",
	models.OrderStatusProduction:   "In Production",
	models.OrderStatusQualityCheck: "Quality Check",
	models.OrderStatusPackaging:    "Packaging",
	models.OrderStatusShipping:     "In Shipping",
}

type Alert struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Count    int64  `json:"count"`
	Priority string `json:"priority"`
}

type AlertList struct {
	Alerts       []Alert   `json:"alerts"`
	TotalAlerts  int       `json:"total_alerts"`
	HighPriority int       `json:"high_priority"`
	LastUpdated  time.Time `json:"last_updated"`
}

type Suggestion struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Priority string `json:"priority"`
}

type NotificationSummary struct {
	Total24h    int64            `json:"total_notifications_24h"`
	Unread      int64            `json:"unread_count"`
	Kinds       map[string]int64 `json:"notification_types"`
	Suggestions []Suggestion     `json:"suggestions"`
}

type NotificationStatus struct {
	User        NotificationSummary  `json:"user"`
	System      *NotificationSummary `json:"system,omitempty"`
	LastUpdated time.Time            `json:"last_updated"`
}

// StatusService answers the dashboard and API summaries. It reads the same
// data the rules do but produces no findings of its own.
type StatusService struct {
	store   Reader
	notes   NotificationStats
	monitor *SystemMonitor
	cfg     Config
	logger  *logrus.Logger
	clock   func() time.Time
	disk    DiskProbe
	baseDir string
	cache   CacheProbe
}

type StatusOption func(*StatusService)

func WithStatusClock(clock func() time.Time) StatusOption {
	return func(s *StatusService) { s.clock = clock }
}

func WithStatusDisk(p DiskProbe, baseDir string) StatusOption {
	return func(s *StatusService) {
		s.disk = p
		s.baseDir = baseDir
	}
}

func WithCacheProbe(p CacheProbe) StatusOption {
	return func(s *StatusService) { s.cache = p }
}

func NewStatusService(store Reader, notes NotificationStats, sysMonitor *SystemMonitor, cfg Config, logger *logrus.Logger, opts ...StatusOption) *StatusService {
	s := &StatusService{
		store:   store,
		notes:   notes,
		monitor: sysMonitor,
		cfg:     cfg,
		logger:  logger,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// tally runs count queries until the first one fails.
type tally struct {
	err error
}

func (t *tally) count(fn func() (int64, error)) int64 {
	if t.err != nil {
		return 0
	}
	n, err := fn()
	if err != nil {
		t.err = err
		return 0
	}
	return n
}

// SystemStatus reports counts and the health score. An unreachable database
// is reported as a critical status rather than an error.
func (s *StatusService) SystemStatus(ctx context.Context) (SystemStatus, error) {
	now := s.clock()
	out := SystemStatus{System: SystemInfo{Version: Version, LastUpdated: now, Database: "connected"}}
	in := HealthInputs{DatabaseUp: true, OverdueLimit: s.cfg.Thresholds.OverdueCritical}

	if err := s.store.Ping(ctx); err != nil {
		s.logger.WithFields(logrus.Fields{"module": "monitor", "funcName": "SystemStatus"}).Error(err.Error())
		in.DatabaseUp = false
		out.System.Database = "unreachable"
		out.Critical = append(out.Critical, dataAccessFinding(CategorySystem, "system status", err))
	} else if err := s.collect(ctx, now, &out); err != nil {
		return SystemStatus{}, err
	}

	in.Producers = out.Users.Producers
	in.VerifiedProducers = out.Users.VerifiedProducers
	in.Networks = out.Networks.Total
	in.ActiveNetworks = out.Networks.Active
	in.ActiveOrders = out.Orders.Active
	in.CompletedLast30Days = out.Orders.Completed30d
	in.OverdueOrders = out.Orders.Overdue
	if in.DatabaseUp {
		privileged, err := s.store.CountProducers(ctx, models.ProducerFilter{Privileged: true})
		if err != nil {
			return SystemStatus{}, err
		}
		in.PrivilegedProducers = privileged
		if privileged > 0 {
			out.Critical = append(out.Critical, systemFinding(KindSecurityRisk, SeverityCritical, privileged,
				fmt.Sprintf("%d producer accounts have admin privileges", privileged)))
		}
		if out.Orders.Overdue > s.cfg.Thresholds.OverdueCritical {
			out.Critical = append(out.Critical, systemFinding(KindOverdueOrders, SeverityCritical, out.Orders.Overdue,
				fmt.Sprintf("%d orders are overdue", out.Orders.Overdue)))
		}
	}
	if s.disk != nil {
		if usage, err := s.disk.Usage(s.baseDir); err == nil {
			in.DiskKnown = true
			in.DiskUsagePercent = usage.UsedPercent()
			out.System.DiskUsage = roundTenth(in.DiskUsagePercent)
		}
	}
	if s.cache != nil {
		in.Cache = s.cache.Check(ctx)
	}
	out.System.Cache = in.Cache.String()

	health := ScoreHealth(in)
	out.System.HealthScore = health.Score
	out.System.Status = health.Status
	out.System.Penalties = health.Penalties
	return out, nil
}

func (s *StatusService) collect(ctx context.Context, now time.Time, out *SystemStatus) error {
	last24h, last7d, last30d := ago(now, day), ago(now, 7*day), ago(now, 30*day)
	t := &tally{}

	users := func(q models.UserQuery) func() (int64, error) {
		return func() (int64, error) { return s.store.CountUsers(ctx, q) }
	}
	producers := func(f models.ProducerFilter) func() (int64, error) {
		return func() (int64, error) { return s.store.CountProducers(ctx, f) }
	}
	orders := func(q models.OrderQuery) func() (int64, error) {
		return func() (int64, error) { return s.store.CountOrders(ctx, q) }
	}
	molds := func(since *time.Time) func() (int64, error) {
		return func() (int64, error) { return s.store.CountMolds(ctx, 0, since) }
	}
	networks := func(st ...models.NetworkStatus) func() (int64, error) {
		return func() (int64, error) { return s.store.CountNetworks(ctx, models.NetworkQuery{Statuses: st}) }
	}

	out.Users.Total = t.count(users(models.UserQuery{}))
	out.Users.Active24h = t.count(users(models.UserQuery{LoginSince: last24h}))
	out.Users.Centers = t.count(func() (int64, error) { return s.store.CountCenters(ctx, models.CenterFilter{}) })
	out.Users.Producers = t.count(producers(models.ProducerFilter{}))
	out.Users.VerifiedProducers = t.count(producers(models.ProducerFilter{VerifiedOnly: true}))

	completed := models.OrderQuery{Statuses: []models.OrderStatus{models.OrderStatusDelivered}, CreatedSince: last30d}
	out.Orders.Total = t.count(orders(models.OrderQuery{}))
	out.Orders.Active = t.count(orders(models.OrderQuery{Statuses: models.StatusActiveOrderStatuses}))
	out.Orders.Completed30d = t.count(orders(completed))
	out.Orders.Pending = t.count(orders(models.OrderQuery{Statuses: []models.OrderStatus{models.OrderStatusReceived}}))
	out.Orders.Overdue = t.count(orders(models.Overdue(now)))

	out.Molds.Total = t.count(molds(nil))
	out.Molds.Created24h = t.count(molds(last24h))
	out.Molds.Created7d = t.count(molds(last7d))
	out.Molds.Created30d = t.count(molds(last30d))

	out.Networks.Total = t.count(networks())
	out.Networks.Active = t.count(networks(models.NetworkStatusActive))
	out.Networks.Pending = t.count(networks(models.NetworkStatusPending))
	out.Networks.Suspended = t.count(networks(models.NetworkStatusSuspended))
	out.Networks.Terminated = t.count(networks(models.NetworkStatusTerminated))
	out.Networks.HealthScore = Percentage(out.Networks.Active, out.Networks.Total)

	created30d := t.count(orders(models.OrderQuery{CreatedSince: last30d}))
	if t.err != nil {
		return t.err
	}
	out.Performance.CompletionRate = Percentage(out.Orders.Completed30d, created30d)

	revenue, err := s.store.SumOrderPrice(ctx, completed)
	if err != nil {
		return err
	}
	out.Orders.Revenue30d = revenue

	durations, err := s.store.DeliveryDurations(ctx, completed)
	if err != nil {
		return err
	}
	out.Performance.AvgDeliveryDays, _ = AverageDays(durations)

	quality, ok, err := s.store.AverageQualityScore(ctx)
	if err != nil {
		return err
	}
	if ok {
		out.Performance.AvgQualityScore = roundTenth(quality)
	}
	return nil
}

// Pipeline counts orders per production stage. Percentages are of the orders in the pipeline.
func (s *StatusService) Pipeline(ctx context.Context) (Pipeline, error) {
	counts, err := s.store.OrderStatusCounts(ctx)
	if err != nil {
		return Pipeline{}, err
	}
	out := Pipeline{LastUpdated: s.clock()}
	for _, st := range models.PipelineStages {
		out.TotalActiveOrders += counts[st]
	}
	for _, st := range models.PipelineStages {
		out.Stages = append(out.Stages, PipelineStage{
			Stage:      stageNames[st],
			StageCode:  st,
			Count:      counts[st],
			Percentage: Percentage(counts[st], out.TotalActiveOrders),
		})
	}
	return out, nil
}

// Alerts lists the currently active operational alerts.
func (s *StatusService) Alerts(ctx context.Context) (AlertList, error) {
	now := s.clock()
	t := &tally{}
	overdue := t.count(func() (int64, error) { return s.store.CountOrders(ctx, models.Overdue(now)) })
	suspended := t.count(func() (int64, error) {
		return s.store.CountNetworks(ctx, models.NetworkQuery{Statuses: []models.NetworkStatus{models.NetworkStatusSuspended}})
	})
	unverified := t.count(func() (int64, error) {
		return s.store.CountProducers(ctx, models.ProducerFilter{ActiveOnly: true, Unverified: true})
	})
	urgent := t.count(func() (int64, error) {
		return s.store.CountOrders(ctx, models.OrderQuery{Priority: models.OrderPriorityUrgent, Statuses: models.ActiveOrderStatuses})
	})
	privileged := t.count(func() (int64, error) {
		return s.store.CountProducers(ctx, models.ProducerFilter{Privileged: true})
	})
	if t.err != nil {
		return AlertList{}, t.err
	}

	out := AlertList{Alerts: []Alert{}, LastUpdated: now}
	if overdue > 0 {
		priority := "medium"
		if overdue > s.cfg.Thresholds.OverdueCritical {
			priority = "high"
		}
		out.Alerts = append(out.Alerts, Alert{
			Type:     "warning",
			Title:    "Overdue Orders",
			Message:  fmt.Sprintf("%d orders are past their estimated delivery date", overdue),
			Count:    overdue,
			Priority: priority,
		})
	}
	if suspended > 0 {
		out.Alerts = append(out.Alerts, Alert{
			Type:     "danger",
			Title:    "Suspended Networks",
			Message:  fmt.Sprintf("%d producer networks are suspended", suspended),
			Count:    suspended,
			Priority: "high",
		})
	}
	if unverified > 0 {
		out.Alerts = append(out.Alerts, Alert{
			Type:     "info",
			Title:    "Producers Awaiting Verification",
			Message:  fmt.Sprintf("%d producers are waiting for verification", unverified),
			Count:    unverified,
			Priority: "low",
		})
	}
	if urgent > 0 {
		out.Alerts = append(out.Alerts, Alert{
			Type:     "warning",
			Title:    "Urgent Orders",
			Message:  fmt.Sprintf("%d urgent orders are waiting", urgent),
			Count:    urgent,
			Priority: "high",
		})
	}
	if privileged > 0 {
		out.Alerts = append(out.Alerts, Alert{
			Type:     "danger",
			Title:    "Security Risk",
			Message:  fmt.Sprintf("%d producer accounts have admin privileges", privileged),
			Count:    privileged,
			Priority: "high",
		})
	}
	out.TotalAlerts = len(out.Alerts)
	for _, a := range out.Alerts {
		if a.Priority == "high" {
			out.HighPriority++
		}
	}
	return out, nil
}

// HealthCheck runs the full system monitor and returns its plain text report.
func (s *StatusService) HealthCheck(ctx context.Context) (string, error) {
	if err := s.store.Ping(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDatabaseDown, err)
	}
	var buf bytes.Buffer
	RenderMonitorReport(&buf, s.monitor.Run(ctx), PlainStyle())
	return buf.String(), nil
}

// NotificationStatus summarises the caller's last 24 hours of notifications.
// Administrators also get the system wide figures.
func (s *StatusService) NotificationStatus(ctx context.Context, userID uint, isAdmin bool) (NotificationStatus, error) {
	now := s.clock()
	since := ago(now, day)
	out := NotificationStatus{LastUpdated: now}

	user, err := s.summary(ctx, models.NotificationQuery{RecipientID: userID, Since: since})
	if err != nil {
		return NotificationStatus{}, err
	}
	user.Suggestions, err = s.suggestions(ctx, userID, now)
	if err != nil {
		return NotificationStatus{}, err
	}
	out.User = user

	if isAdmin {
		sys, err := s.summary(ctx, models.NotificationQuery{Since: since})
		if err != nil {
			return NotificationStatus{}, err
		}
		sys.Suggestions = []Suggestion{}
		out.System = &sys
	}
	return out, nil
}

func (s *StatusService) summary(ctx context.Context, q models.NotificationQuery) (NotificationSummary, error) {
	var out NotificationSummary
	var err error
	if out.Total24h, err = s.notes.CountNotifications(ctx, q); err != nil {
		return out, err
	}
	unread := q
	unread.UnreadOnly = true
	if out.Unread, err = s.notes.CountNotifications(ctx, unread); err != nil {
		return out, err
	}
	out.Kinds, err = s.notes.NotificationKindCounts(ctx, q)
	return out, err
}

func (s *StatusService) suggestions(ctx context.Context, userID uint, now time.Time) ([]Suggestion, error) {
	out := []Suggestion{}

	center, err := s.notes.CenterOwnedBy(ctx, userID)
	switch {
	case err == nil:
		return s.centerSuggestions(ctx, *center, now, out)
	case !errors.Is(err, utils.ErrorRecordNotFound):
		return nil, err
	}

	producer, err := s.notes.ProducerOwnedBy(ctx, userID)
	switch {
	case err == nil:
		return s.producerSuggestions(ctx, *producer, now, out)
	case errors.Is(err, utils.ErrorRecordNotFound):
		return out, nil
	default:
		return nil, err
	}
}

func (s *StatusService) centerSuggestions(ctx context.Context, c models.Center, now time.Time, out []Suggestion) ([]Suggestion, error) {
	used, err := s.store.CountMolds(ctx, c.ID, nil)
	if err != nil {
		return nil, err
	}
	pct := Percentage(used, int64(c.MoldLimit))
	if pct > 80 {
		priority := "medium"
		if pct > 90 {
			priority = "high"
		}
		out = append(out, Suggestion{
			Type:     "limit_warning",
			Message:  fmt.Sprintf("You have used %s%% of your mold limit", formatPercent(pct)),
			Priority: priority,
		})
	}
	last, err := s.store.LastMoldAt(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if last != nil {
		if days := WholeDays(now.Sub(*last)); days >= 7 {
			out = append(out, Suggestion{
				Type:     "inactive_warning",
				Message:  fmt.Sprintf("You have not placed a new order for %d days", days),
				Priority: "medium",
			})
		}
	}
	return out, nil
}

func (s *StatusService) producerSuggestions(ctx context.Context, p models.Producer, now time.Time, out []Suggestion) ([]Suggestion, error) {
	pending, err := s.store.CountOrders(ctx, models.OrderQuery{ProducerID: p.ID, Statuses: []models.OrderStatus{models.OrderStatusReceived}})
	if err != nil {
		return nil, err
	}
	if pending > 5 {
		out = append(out, Suggestion{
			Type:     "pending_orders",
			Message:  fmt.Sprintf("%d orders are waiting", pending),
			Priority: "high",
		})
	}
	start := monthStart(now)
	month, err := s.store.CountOrders(ctx, models.OrderQuery{ProducerID: p.ID, CreatedSince: &start})
	if err != nil {
		return nil, err
	}
	if pct := Percentage(month, int64(p.MoldLimit)); pct > 90 {
		out = append(out, Suggestion{
			Type:     "capacity_warning",
			Message:  fmt.Sprintf("You have used %s%% of your monthly capacity", formatPercent(pct)),
			Priority: "high",
		})
	}
	return out, nil
}
