package monitor

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/mmdatafocus/moldpark_backend/models"
	"github.com/sirupsen/logrus"
)

// CenterCheck inspects one center.
type CenterCheck func(ctx context.Context, ev *Evaluator, c models.Center, now time.Time) ([]Finding, error)

// ProducerCheck inspects one producer.
type ProducerCheck func(ctx context.Context, ev *Evaluator, p models.Producer, now time.Time) ([]Finding, error)

// AdminCheck runs once per pass over the system-wide state.
type AdminCheck func(ctx context.Context, ev *Evaluator, admins []Recipient, now time.Time) ([]Finding, error)

type namedCheck[T any] struct {
	name  string
	check T
}

// Evaluator holds the registered checks. It keeps no state between passes.
type Evaluator struct {
	store  Reader
	cfg    Config
	logger *logrus.Logger
	clock  func() time.Time

	centerChecks   []namedCheck[CenterCheck]
	producerChecks []namedCheck[ProducerCheck]
	adminChecks    []namedCheck[AdminCheck]
}

type EvaluatorOption func(*Evaluator)

// WithClock overrides time.Now.
func WithClock(clock func() time.Time) EvaluatorOption {
	return func(e *Evaluator) { e.clock = clock }
}

// WithoutDefaultChecks starts from an empty rule set.
func WithoutDefaultChecks() EvaluatorOption {
	return func(e *Evaluator) {
		e.centerChecks = nil
		e.producerChecks = nil
		e.adminChecks = nil
	}
}

func NewEvaluator(store Reader, cfg Config, logger *logrus.Logger, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		store:  store,
		cfg:    cfg,
		logger: logger,
		clock:  time.Now,
	}
	registerDefaultChecks(e)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func registerDefaultChecks(e *Evaluator) {
	e.RegisterCenterCheck("center_inactivity", checkCenterInactivity)
	e.RegisterCenterCheck("center_quota", checkCenterQuota)
	e.RegisterCenterCheck("center_completed_orders", checkCenterCompletedOrders)
	e.RegisterCenterCheck("center_stale_revisions", checkCenterStaleRevisions)
	e.RegisterCenterCheck("center_performance", checkCenterPerformance)

	e.RegisterProducerCheck("producer_pending_backlog", checkProducerBacklog)
	e.RegisterProducerCheck("producer_capacity", checkProducerCapacity)
	e.RegisterProducerCheck("producer_on_time_rate", checkProducerOnTime)
	e.RegisterProducerCheck("producer_network_expansion", checkProducerExpansion)

	e.RegisterAdminCheck("admin_weekly_report", checkWeeklyReport)
	e.RegisterAdminCheck("admin_security", checkSecurity)
	e.RegisterAdminCheck("admin_overdue_workflow", checkOverdueWorkflow)
	e.RegisterAdminCheck("admin_unassigned_orders", checkUnassignedOrders)
}

func (e *Evaluator) RegisterCenterCheck(name string, c CenterCheck) {
	e.centerChecks = append(e.centerChecks, namedCheck[CenterCheck]{name: name, check: c})
}

func (e *Evaluator) RegisterProducerCheck(name string, c ProducerCheck) {
	e.producerChecks = append(e.producerChecks, namedCheck[ProducerCheck]{name: name, check: c})
}

func (e *Evaluator) RegisterAdminCheck(name string, c AdminCheck) {
	e.adminChecks = append(e.adminChecks, namedCheck[AdminCheck]{name: name, check: c})
}

func (e *Evaluator) Config() Config {
	return e.cfg
}

func (e *Evaluator) Store() Reader {
	return e.store
}

// CategoryResult is what one category of a pass produced.
type CategoryResult struct {
	Category Category
	Subjects int
	Failures int
	Findings []Finding
}

// Evaluate runs every check of cat within scope. It never returns an error:
// a failed listing becomes a data access finding, a failed check is logged and skipped.
func (e *Evaluator) Evaluate(ctx context.Context, cat Category, scope Scope, admins []Recipient) CategoryResult {
	now := e.clock()
	res := CategoryResult{Category: cat}

	switch cat {
	case CategoryCenter:
		centers, err := e.store.ListCenters(ctx, models.CenterFilter{ID: scope.CenterID, ActiveOnly: scope.CenterID == 0})
		if err != nil {
			e.logFailure(cat, "list_centers", "", err)
			res.Failures++
			res.Findings = append(res.Findings, dataAccessFinding(cat, "centers", err))
			return res
		}
		res.Subjects = len(centers)
		for _, c := range centers {
			for _, nc := range e.centerChecks {
				fs, ok := e.run(cat, nc.name, fmt.Sprintf("center:%d", c.ID), func() ([]Finding, error) {
					return nc.check(ctx, e, c, now)
				})
				if !ok {
					res.Failures++
				}
				res.Findings = append(res.Findings, fs...)
			}
		}
	case CategoryProducer:
		producers, err := e.store.ListProducers(ctx, models.ProducerFilter{
			ID:           scope.ProducerID,
			ActiveOnly:   scope.ProducerID == 0,
			VerifiedOnly: scope.ProducerID == 0,
		})
		if err != nil {
			e.logFailure(cat, "list_producers", "", err)
			res.Failures++
			res.Findings = append(res.Findings, dataAccessFinding(cat, "producers", err))
			return res
		}
		res.Subjects = len(producers)
		for _, p := range producers {
			for _, nc := range e.producerChecks {
				fs, ok := e.run(cat, nc.name, fmt.Sprintf("producer:%d", p.ID), func() ([]Finding, error) {
					return nc.check(ctx, e, p, now)
				})
				if !ok {
					res.Failures++
				}
				res.Findings = append(res.Findings, fs...)
			}
		}
	case CategoryAdmin:
		res.Subjects = len(admins)
		for _, nc := range e.adminChecks {
			fs, ok := e.run(cat, nc.name, "system", func() ([]Finding, error) {
				return nc.check(ctx, e, admins, now)
			})
			if !ok {
				res.Failures++
			}
			res.Findings = append(res.Findings, fs...)
		}
	default:
		e.logger.WithFields(logrus.Fields{"module": "monitor", "category": cat}).Warn("unknown category; nothing evaluated")
	}
	return res
}

// run isolates one check: an error or a panic yields no findings.
func (e *Evaluator) run(cat Category, name, subject string, fn func() ([]Finding, error)) (out []Finding, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.WithFields(logrus.Fields{
				"module":   "monitor",
				"category": cat,
				"rule":     name,
				"subject":  subject,
				"stack":    string(debug.Stack()),
			}).Errorf("rule panicked: %v", r)
			out, ok = nil, false
		}
	}()
	fs, err := fn()
	if err != nil {
		e.logFailure(cat, name, subject, err)
		return nil, false
	}
	return fs, true
}

func (e *Evaluator) logFailure(cat Category, name, subject string, err error) {
	e.logger.WithFields(logrus.Fields{
		"module":   "monitor",
		"category": cat,
		"rule":     name,
		"subject":  subject,
	}).Error(err.Error())
}

func dataAccessFinding(cat Category, what string, err error) Finding {
	return Finding{
		Kind:     KindDataAccess,
		Category: cat,
		Severity: SeverityCritical,
		Subject:  SystemActor{},
		Audience: AudienceAdmins,
		Message:  fmt.Sprintf("Could not load %s: %v", what, err),
		Count:    1,
	}
}
