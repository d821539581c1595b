package monitor

import (
	"testing"

	"github.com/mmdatafocus/moldpark_backend/models"
	"github.com/mmdatafocus/moldpark_backend/models/modelstest"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"gorm.io/gorm"
)

type fixture struct {
	store  *models.Store
	db     *gorm.DB
	logger *logrus.Logger
	hook   *test.Hook
	cfg    Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, db := modelstest.NewStore(t)
	logger, hook := test.NewNullLogger()
	return &fixture{store: store, db: db, logger: logger, hook: hook, cfg: DefaultConfig()}
}

func (f *fixture) evaluator(opts ...EvaluatorOption) *Evaluator {
	return NewEvaluator(f.store, f.cfg, f.logger, append([]EvaluatorOption{WithClock(modelstest.Clock)}, opts...)...)
}

func (f *fixture) dispatcher() *Dispatcher {
	return NewDispatcher(f.store, f.cfg, f.logger, modelstest.Clock)
}

func byKind(findings []Finding) map[Kind][]Finding {
	out := make(map[Kind][]Finding)
	for _, f := range findings {
		out[f.Kind] = append(out[f.Kind], f)
	}
	return out
}

func recipient(u models.User) Recipient {
	return RecipientFromUser(u)
}
