package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/moldpark_backend/metrics"
	"github.com/mmdatafocus/moldpark_backend/monitor"
	"github.com/mmdatafocus/moldpark_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("moldpark-monitor")

// Store is everything the jobs read and write. *models.Store implements it.
type Store interface {
	monitor.CheckStore
	monitor.NotificationStore
	monitor.NotificationStats
}

type Deps struct {
	Store    Store
	Config   monitor.Config
	Logger   *logrus.Logger
	Lock     *PassLock
	Mailer   monitor.Mailer
	MailFrom string
	Disk     monitor.DiskProbe
	BaseDir  string
	Cache    monitor.CacheProbe
	// Archive is nil when no bucket is configured.
	Archive utils.ObjectUploader
	Clock   func() time.Time
}

// Jobs runs the notification pass and the system monitor under the pass lock.
type Jobs struct {
	deps Deps
}

func NewJobs(d Deps) *Jobs {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Lock == nil {
		d.Lock = NewPassLock(nil, nil, false, d.Logger)
	}
	return &Jobs{deps: d}
}

func (j *Jobs) SystemMonitor() *monitor.SystemMonitor {
	opts := []monitor.SystemMonitorOption{monitor.WithMonitorClock(j.deps.Clock)}
	if j.deps.Disk != nil {
		opts = append(opts, monitor.WithDiskProbe(j.deps.Disk, j.deps.BaseDir))
	}
	return monitor.NewSystemMonitor(j.deps.Store, j.deps.Config, j.deps.Logger, opts...)
}

func (j *Jobs) Status() *monitor.StatusService {
	opts := []monitor.StatusOption{monitor.WithStatusClock(j.deps.Clock)}
	if j.deps.Disk != nil {
		opts = append(opts, monitor.WithStatusDisk(j.deps.Disk, j.deps.BaseDir))
	}
	if j.deps.Cache != nil {
		opts = append(opts, monitor.WithCacheProbe(j.deps.Cache))
	}
	return monitor.NewStatusService(j.deps.Store, j.deps.Store, j.SystemMonitor(), j.deps.Config, j.deps.Logger, opts...)
}

func (j *Jobs) SystemChecker(env monitor.Environment) *monitor.SystemChecker {
	return monitor.NewSystemChecker(j.deps.Store, env, j.deps.Config, j.deps.Logger, j.deps.Cache)
}

func (j *Jobs) begin(ctx context.Context, job string) (func(), error) {
	release, err := j.deps.Lock.Acquire(ctx)
	if err != nil {
		if errors.Is(err, ErrPassInProgress) {
			metrics.PassesTotal.WithLabelValues(job, "locked").Inc()
		}
		return nil, err
	}
	if err := j.deps.Store.Ping(ctx); err != nil {
		release()
		metrics.PassesTotal.WithLabelValues(job, "db_down").Inc()
		return nil, fmt.Errorf("%w: %v", monitor.ErrDatabaseDown, err)
	}
	return release, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// RunNotifications evaluates scope and dispatches its findings one category at
// a time. onCategory may be nil.
func (j *Jobs) RunNotifications(ctx context.Context, scope monitor.Scope, dryRun bool, onCategory func(monitor.CategoryReport)) (report monitor.PassReport, err error) {
	ctx, span := tracer.Start(ctx, "RunNotifications", trace.WithAttributes(
		attribute.String("scope", string(scope.Type)),
		attribute.Bool("dry_run", dryRun),
	))
	defer func() { endSpan(span, err) }()

	release, err := j.begin(ctx, "notify")
	if err != nil {
		return monitor.PassReport{}, err
	}
	defer release()

	admins, err := monitor.LoadAdmins(ctx, j.deps.Store)
	if err != nil {
		j.deps.Logger.WithFields(logrus.Fields{"module": "workflow", "funcName": "RunNotifications"}).Error("load administrators: " + err.Error())
		admins = nil
	}

	ev := monitor.NewEvaluator(j.deps.Store, j.deps.Config, j.deps.Logger, monitor.WithClock(j.deps.Clock))
	d := monitor.NewDispatcher(j.deps.Store, j.deps.Config, j.deps.Logger, j.deps.Clock)
	report = monitor.RunPass(ctx, ev, d, scope, admins, dryRun, func(cr monitor.CategoryReport) {
		metrics.ObserveFindings(cr.Findings)
		metrics.ObserveDispatch(cr.Dispatch)
		if onCategory != nil {
			onCategory(cr)
		}
	})

	result := "ok"
	if report.Interrupted {
		result = "interrupted"
	}
	metrics.PassesTotal.WithLabelValues("notify", result).Inc()
	metrics.PassDuration.WithLabelValues("notify").Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())

	sum := report.Dispatch()
	span.SetAttributes(
		attribute.Int("findings", len(report.Findings())),
		attribute.Int("sent", sum.Sent),
		attribute.Int("suppressed", sum.Suppressed),
	)
	j.deps.Logger.WithFields(logrus.Fields{
		"module":      "workflow",
		"funcName":    "RunNotifications",
		"scope":       scope.Type,
		"dry_run":     dryRun,
		"findings":    len(report.Findings()),
		"sent":        sum.Sent,
		"suppressed":  sum.Suppressed,
		"failed":      sum.Failed,
		"interrupted": report.Interrupted,
	}).Info("notification pass finished")
	return report, nil
}

type MonitorOptions struct {
	SendAlerts     bool
	AlertThreshold int
	Archive        bool
}

type MonitorResult struct {
	Report monitor.MonitorReport   `json:"report"`
	Alert  monitor.DispatchSummary `json:"alert"`
	Email  monitor.EmailOutcome    `json:"email"`
	Health int                     `json:"health_score"`
	// ArchivedAs is the object name of the archived snapshot, if any.
	ArchivedAs string `json:"archived_as,omitempty"`
}

// RunSystemMonitor runs the system checks, notifies administrators of
// critical issues and optionally mails and archives the result.
func (j *Jobs) RunSystemMonitor(ctx context.Context, opts MonitorOptions) (res MonitorResult, err error) {
	ctx, span := tracer.Start(ctx, "RunSystemMonitor", trace.WithAttributes(
		attribute.Bool("send_alerts", opts.SendAlerts),
		attribute.Int("alert_threshold", opts.AlertThreshold),
	))
	defer func() { endSpan(span, err) }()

	release, err := j.begin(ctx, "monitor")
	if err != nil {
		return MonitorResult{}, err
	}
	defer release()

	logger := j.deps.Logger.WithFields(logrus.Fields{"module": "workflow", "funcName": "RunSystemMonitor"})
	started := j.deps.Clock()
	res.Report = j.SystemMonitor().Run(ctx)
	metrics.ObserveFindings(res.Report.Findings())

	admins, err := monitor.LoadAdmins(ctx, j.deps.Store)
	if err != nil {
		logger.Error("load administrators: " + err.Error())
		admins = nil
	}

	if alert, ok := monitor.SystemAlert(res.Report); ok {
		d := monitor.NewDispatcher(j.deps.Store, j.deps.Config, j.deps.Logger, j.deps.Clock)
		res.Alert = d.Dispatch(ctx, []monitor.Finding{alert}, admins, false)
		metrics.ObserveDispatch(res.Alert)
	}

	if monitor.ShouldEmail(opts.SendAlerts, res.Report.Total(), opts.AlertThreshold) {
		subject, body := monitor.AlertEmail(res.Report)
		res.Email = monitor.EmailAlert(ctx, j.deps.Mailer, j.deps.MailFrom, admins, subject, body, j.deps.Logger)
	}

	status := j.Status()
	sys, statusErr := status.SystemStatus(ctx)
	if statusErr != nil {
		logger.Warn("health score unavailable: " + statusErr.Error())
	} else {
		res.Health = sys.System.HealthScore
		metrics.HealthScore.Set(float64(sys.System.HealthScore))
	}

	if opts.Archive {
		res.ArchivedAs = j.archive(ctx, status, sys, statusErr == nil, logger)
	}

	metrics.PassesTotal.WithLabelValues("monitor", "ok").Inc()
	metrics.PassDuration.WithLabelValues("monitor").Observe(j.deps.Clock().Sub(started).Seconds())
	span.SetAttributes(
		attribute.Int("critical", len(res.Report.Critical)),
		attribute.Int("warnings", len(res.Report.Warnings)),
	)
	return res, nil
}

func (j *Jobs) archive(ctx context.Context, status *monitor.StatusService, sys monitor.SystemStatus, haveStatus bool, logger *logrus.Entry) string {
	if j.deps.Archive == nil {
		logger.Warn("archive requested but no bucket is configured")
		return ""
	}
	if !haveStatus {
		return ""
	}
	snap, err := j.snapshot(ctx, status, sys)
	if err != nil {
		logger.Error("build snapshot: " + err.Error())
		return ""
	}
	data, err := snap.JSON()
	if err != nil {
		logger.Error("encode snapshot: " + err.Error())
		return ""
	}
	name, err := utils.ArchiveReport(ctx, j.deps.Archive, snap.GeneratedAt, data)
	if err != nil {
		logger.Error("archive snapshot: " + err.Error())
		return ""
	}
	logger.WithField("object", name).Info("monitor snapshot archived")
	return name
}

func (j *Jobs) snapshot(ctx context.Context, status *monitor.StatusService, sys monitor.SystemStatus) (monitor.Snapshot, error) {
	pl, err := status.Pipeline(ctx)
	if err != nil {
		return monitor.Snapshot{}, err
	}
	al, err := status.Alerts(ctx)
	if err != nil {
		return monitor.Snapshot{}, err
	}
	return monitor.Snapshot{GeneratedAt: j.deps.Clock(), Status: sys, Pipeline: pl, Alerts: al}, nil
}

// Snapshot collects the status, pipeline and alerts reported by the report command.
func (j *Jobs) Snapshot(ctx context.Context) (monitor.Snapshot, error) {
	status := j.Status()
	sys, err := status.SystemStatus(ctx)
	if err != nil {
		return monitor.Snapshot{}, err
	}
	return j.snapshot(ctx, status, sys)
}
