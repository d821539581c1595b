package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/moldpark_backend/models"
	"github.com/sirupsen/logrus"
)

// DiskUsage is a filesystem reading.
type DiskUsage struct {
	TotalBytes uint64
	FreeBytes  uint64
}

func (d DiskUsage) UsedPercent() float64 {
	if d.TotalBytes == 0 {
		return 0
	}
	return float64(d.TotalBytes-d.FreeBytes) / float64(d.TotalBytes) * 100
}

func (d DiskUsage) FreeGB() uint64 {
	return d.FreeBytes / (1 << 30)
}

type DiskProbe interface {
	Usage(path string) (DiskUsage, error)
}

// SystemStats is the snapshot logged at the end of every monitor run.
type SystemStats struct {
	Timestamp         time.Time `json:"timestamp"`
	Users             int64     `json:"users"`
	Centers           int64     `json:"centers"`
	Producers         int64     `json:"producers"`
	VerifiedProducers int64     `json:"verified_producers"`
	TotalOrders       int64     `json:"total_orders"`
	ActiveOrders      int64     `json:"active_orders"`
	TotalMolds        int64     `json:"total_molds"`
	ActiveNetworks    int64     `json:"active_networks"`
}

type MonitorReport struct {
	GeneratedAt time.Time   `json:"generated_at"`
	Critical    []Finding   `json:"critical"`
	Warnings    []Finding   `json:"warnings"`
	Stats       SystemStats `json:"stats"`
}

func (r MonitorReport) Total() int {
	return len(r.Critical) + len(r.Warnings)
}

func (r MonitorReport) Findings() []Finding {
	out := make([]Finding, 0, r.Total())
	out = append(out, r.Critical...)
	return append(out, r.Warnings...)
}

// SystemMonitor runs the system-wide health checks of the monitor command.
type SystemMonitor struct {
	store   Reader
	cfg     Config
	logger  *logrus.Logger
	clock   func() time.Time
	disk    DiskProbe
	baseDir string
}

type SystemMonitorOption func(*SystemMonitor)

func WithMonitorClock(clock func() time.Time) SystemMonitorOption {
	return func(m *SystemMonitor) { m.clock = clock }
}

// WithDiskProbe enables the disk usage check for the filesystem holding baseDir.
func WithDiskProbe(p DiskProbe, baseDir string) SystemMonitorOption {
	return func(m *SystemMonitor) {
		m.disk = p
		m.baseDir = baseDir
	}
}

func NewSystemMonitor(store Reader, cfg Config, logger *logrus.Logger, opts ...SystemMonitorOption) *SystemMonitor {
	m := &SystemMonitor{store: store, cfg: cfg, logger: logger, clock: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type systemCheck struct {
	name string
	run  func(ctx context.Context, now time.Time) ([]Finding, error)
}

// Run executes every check. A check that cannot read its data reports a
// critical data access finding and the remaining checks still run.
func (m *SystemMonitor) Run(ctx context.Context) MonitorReport {
	now := m.clock()
	report := MonitorReport{GeneratedAt: now}

	checks := []systemCheck{
		{"overdue_orders", m.checkOverdue},
		{"large_mold_table", m.checkMoldTable},
		{"orphan_users", m.checkOrphans},
		{"security_risk", m.checkPrivilegedProducers},
		{"weak_passwords", m.checkWeakPasswords},
		{"disk_space", m.checkDisk},
		{"suspended_networks", m.checkSuspendedNetworks},
		{"network_terminations", m.checkTerminations},
		{"unassigned_orders", m.checkUnassigned},
	}
	for _, c := range checks {
		fs, err := c.run(ctx, now)
		if err != nil {
			m.logger.WithFields(logrus.Fields{"module": "monitor", "check": c.name}).Error(err.Error())
			fs = []Finding{dataAccessFinding(CategorySystem, c.name, err)}
		}
		for _, f := range fs {
			if f.Severity == SeverityCritical {
				report.Critical = append(report.Critical, f)
			} else {
				report.Warnings = append(report.Warnings, f)
			}
		}
	}

	for _, f := range report.Critical {
		m.logger.WithFields(logrus.Fields{"module": "monitor", "kind": f.Kind, "count": f.Count}).Error("critical issue: " + f.Message)
	}
	for _, f := range report.Warnings {
		m.logger.WithFields(logrus.Fields{"module": "monitor", "kind": f.Kind, "count": f.Count}).Warn("warning: " + f.Message)
	}
	if report.Total() == 0 {
		m.logger.WithFields(logrus.Fields{"module": "monitor"}).Info("system health check: no issues")
	}

	stats, err := m.Stats(ctx, now)
	if err != nil {
		m.logger.WithFields(logrus.Fields{"module": "monitor", "funcName": "Stats"}).Error(err.Error())
	}
	report.Stats = stats
	m.logger.WithFields(logrus.Fields{
		"module":             "monitor",
		"users":              stats.Users,
		"centers":            stats.Centers,
		"producers":          stats.Producers,
		"verified_producers": stats.VerifiedProducers,
		"total_orders":       stats.TotalOrders,
		"active_orders":      stats.ActiveOrders,
		"total_molds":        stats.TotalMolds,
		"active_networks":    stats.ActiveNetworks,
	}).Info("system statistics")
	return report
}

func systemFinding(kind Kind, sev Severity, n int64, msg string) Finding {
	return Finding{
		Kind:     kind,
		Category: CategorySystem,
		Severity: sev,
		Subject:  SystemActor{},
		Audience: AudienceAdmins,
		Message:  msg,
		Count:    n,
	}
}

func (m *SystemMonitor) checkOverdue(ctx context.Context, now time.Time) ([]Finding, error) {
	n, err := m.store.CountOrders(ctx, models.Overdue(now))
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	sev := SeverityWarning
	if n > m.cfg.Thresholds.OverdueCritical {
		sev = SeverityCritical
	}
	return []Finding{systemFinding(KindOverdueOrders, sev, n, fmt.Sprintf("%d orders are past their estimated delivery date", n))}, nil
}

func (m *SystemMonitor) checkMoldTable(ctx context.Context, now time.Time) ([]Finding, error) {
	n, err := m.store.CountMolds(ctx, 0, nil)
	if err != nil {
		return nil, err
	}
	if n <= m.cfg.Thresholds.LargeMoldTable {
		return nil, nil
	}
	return []Finding{systemFinding(KindLargeMoldTable, SeverityWarning, n,
		fmt.Sprintf("Ear mold table is very large: %d records, indexing may be needed", n))}, nil
}

func (m *SystemMonitor) checkOrphans(ctx context.Context, now time.Time) ([]Finding, error) {
	n, err := m.store.CountUsers(ctx, models.UserQuery{Orphans: true})
	if err != nil {
		return nil, err
	}
	if n <= m.cfg.Thresholds.OrphanUserLimit {
		return nil, nil
	}
	return []Finding{systemFinding(KindOrphanUsers, SeverityWarning, n,
		fmt.Sprintf("%d orphan user records, cleanup may be needed", n))}, nil
}

func (m *SystemMonitor) checkPrivilegedProducers(ctx context.Context, now time.Time) ([]Finding, error) {
	n, err := m.store.CountProducers(ctx, models.ProducerFilter{Privileged: true})
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return []Finding{systemFinding(KindSecurityRisk, SeverityCritical, n,
		fmt.Sprintf("%d producer accounts have admin privileges. SECURITY RISK!", n))}, nil
}

func (m *SystemMonitor) checkWeakPasswords(ctx context.Context, now time.Time) ([]Finding, error) {
	if m.cfg.Thresholds.WeakPasswordSample == 0 || len(m.cfg.WeakPasswords) == 0 {
		return nil, nil
	}
	users, err := m.store.SampleUsers(ctx, models.UserQuery{JoinedSince: ago(now, m.cfg.Thresholds.WeakPasswordWindow)}, m.cfg.Thresholds.WeakPasswordSample)
	if err != nil {
		return nil, err
	}
	var weak int64
	for _, u := range users {
		for _, pw := range m.cfg.WeakPasswords {
			if u.CheckPassword(pw) {
				weak++
				break
			}
		}
	}
	if weak == 0 {
		return nil, nil
	}
	return []Finding{systemFinding(KindWeakPasswords, SeverityCritical, weak,
		fmt.Sprintf("%d users are using a weak password", weak))}, nil
}

func (m *SystemMonitor) checkDisk(ctx context.Context, now time.Time) ([]Finding, error) {
	if m.disk == nil {
		return nil, nil
	}
	usage, err := m.disk.Usage(m.baseDir)
	if err != nil {
		// an unreadable filesystem is not a finding
		m.logger.WithFields(logrus.Fields{"module": "monitor", "check": "disk_space", "path": m.baseDir}).Warn(err.Error())
		return nil, nil
	}
	pct := usage.UsedPercent()
	if pct <= m.cfg.Thresholds.DiskUsageWarning {
		return nil, nil
	}
	f := systemFinding(KindDiskSpace, SeverityWarning, int64(usage.FreeGB()),
		fmt.Sprintf("Disk usage is %.1f%%, %dGB free", pct, usage.FreeGB()))
	f.Percent = pct
	return []Finding{f}, nil
}

func (m *SystemMonitor) checkSuspendedNetworks(ctx context.Context, now time.Time) ([]Finding, error) {
	n, err := m.store.CountNetworks(ctx, models.NetworkQuery{Statuses: []models.NetworkStatus{models.NetworkStatusSuspended}})
	if err != nil {
		return nil, err
	}
	if n <= m.cfg.Thresholds.SuspendedNetworkLimit {
		return nil, nil
	}
	return []Finding{systemFinding(KindSuspendedNetworks, SeverityWarning, n,
		fmt.Sprintf("%d producer networks are suspended", n))}, nil
}

func (m *SystemMonitor) checkTerminations(ctx context.Context, now time.Time) ([]Finding, error) {
	n, err := m.store.CountNetworks(ctx, models.NetworkQuery{
		Statuses:        []models.NetworkStatus{models.NetworkStatusTerminated},
		TerminatedSince: ago(now, m.cfg.Thresholds.TerminationWindow),
	})
	if err != nil {
		return nil, err
	}
	if n <= m.cfg.Thresholds.TerminationLimit {
		return nil, nil
	}
	return []Finding{systemFinding(KindNetworkTerminations, SeverityWarning, n,
		fmt.Sprintf("%d networks were terminated in the last %d days, activity may be abnormal", n, WholeDays(m.cfg.Thresholds.TerminationWindow)))}, nil
}

func (m *SystemMonitor) checkUnassigned(ctx context.Context, now time.Time) ([]Finding, error) {
	n, err := m.store.CountOrders(ctx, models.OrderQuery{Unassigned: true, ExcludeStatuses: models.TerminalOrderStatuses})
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return []Finding{systemFinding(KindUnassignedOrders, SeverityWarning, n,
		fmt.Sprintf("%d open orders have no producer assigned", n))}, nil
}

// Stats collects the counts logged after a run. It stops at the first failing query.
func (m *SystemMonitor) Stats(ctx context.Context, now time.Time) (SystemStats, error) {
	s := SystemStats{Timestamp: now}
	var err error
	if s.Users, err = m.store.CountUsers(ctx, models.UserQuery{}); err != nil {
		return s, err
	}
	if s.Centers, err = m.store.CountCenters(ctx, models.CenterFilter{}); err != nil {
		return s, err
	}
	if s.Producers, err = m.store.CountProducers(ctx, models.ProducerFilter{}); err != nil {
		return s, err
	}
	if s.VerifiedProducers, err = m.store.CountProducers(ctx, models.ProducerFilter{VerifiedOnly: true}); err != nil {
		return s, err
	}
	if s.TotalOrders, err = m.store.CountOrders(ctx, models.OrderQuery{}); err != nil {
		return s, err
	}
	if s.ActiveOrders, err = m.store.CountOrders(ctx, models.OrderQuery{Statuses: models.ActiveOrderStatuses}); err != nil {
		return s, err
	}
	if s.TotalMolds, err = m.store.CountMolds(ctx, 0, nil); err != nil {
		return s, err
	}
	s.ActiveNetworks, err = m.store.CountNetworks(ctx, models.NetworkQuery{Statuses: []models.NetworkStatus{models.NetworkStatusActive}})
	return s, err
}

// SystemAlert is the notification every administrator gets when a run found critical issues.
func SystemAlert(r MonitorReport) (Finding, bool) {
	if len(r.Critical) == 0 {
		return Finding{}, false
	}
	return Finding{
		Kind:     KindSystemAlert,
		Category: CategorySystem,
		Severity: SeverityCritical,
		Subject:  SystemActor{},
		Audience: AudienceAdmins,
		Message: fmt.Sprintf("%d critical issues, %d warnings detected. Check the admin panel.",
			len(r.Critical), len(r.Warnings)),
		Count: int64(r.Total()),
	}, true
}
