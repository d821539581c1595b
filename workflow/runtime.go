package workflow

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/mmdatafocus/moldpark_backend/config"
	"github.com/mmdatafocus/moldpark_backend/mailer"
	"github.com/mmdatafocus/moldpark_backend/models"
	"github.com/mmdatafocus/moldpark_backend/monitor"
	"github.com/mmdatafocus/moldpark_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Runtime owns the connections a process opens from its settings.
type Runtime struct {
	Settings config.Settings
	Logger   *logrus.Logger
	DB       *gorm.DB
	Store    *models.Store
	Redis    *config.Redis
	Monitor  monitor.Config
	Jobs     *Jobs

	pubsub *pubsub.Client
	gcs    *storage.Client
}

type OpenOptions struct {
	// DBAttempts bounds the connection retries; <= 0 retries forever.
	DBAttempts int
	// WithoutExternal skips pubsub and GCS, for commands that never mail or archive.
	WithoutExternal bool
}

// Open connects the database, then the optional redis, pubsub and GCS
// services. Only a database or rules failure is fatal; the optional services
// degrade to their fallbacks with a warning.
func Open(ctx context.Context, s config.Settings, logger *logrus.Logger, opts OpenOptions) (*Runtime, error) {
	log := logger.WithFields(logrus.Fields{"module": "workflow", "funcName": "Open"})

	cfg, err := config.LoadMonitorConfig(s.RulesFile, s)
	if err != nil {
		return nil, err
	}

	db, err := config.ConnectDatabaseWithRetry(s, opts.DBAttempts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", monitor.ErrDatabaseDown, err)
	}
	if !s.SkipMigrations {
		if err := models.MigrateTable(db); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	} else {
		log.Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	rt := &Runtime{Settings: s, Logger: logger, DB: db, Store: models.NewStore(db), Monitor: cfg}

	rt.Redis, err = config.ConnectRedisWithRetry(ctx, s, 3)
	if err != nil {
		log.Warn("redis unavailable; running without cache and redis lock: " + err.Error())
		rt.Redis = nil
	}

	deps := Deps{
		Store:    rt.Store,
		Config:   cfg,
		Logger:   logger,
		MailFrom: cfg.MailFrom,
		Disk:     StatfsProbe{},
		BaseDir:  s.BaseDir,
		Mailer:   mailer.NewLogMailer(logger),
	}
	if rt.Redis != nil {
		deps.Cache = CacheRoundTrip{Cache: rt.Redis}
		deps.Lock = NewPassLock(rt.Redis.Locker, db, s.DBEngine == config.DBEngineMySQL, logger)
	} else {
		deps.Lock = NewPassLock(nil, db, s.DBEngine == config.DBEngineMySQL, logger)
	}

	if !opts.WithoutExternal {
		rt.openExternal(ctx, &deps, log)
	}
	rt.Jobs = NewJobs(deps)
	return rt, nil
}

func (rt *Runtime) openExternal(ctx context.Context, deps *Deps, log *logrus.Entry) {
	s := rt.Settings
	if s.MailTopic != "" {
		client, err := config.NewPubSubClient(ctx, s, 3)
		if err != nil {
			log.Warn("pubsub unavailable; alert e-mails will only be logged: " + err.Error())
		} else {
			rt.pubsub = client
			topic, err := config.EnsureTopic(ctx, client, s.MailTopic)
			if err != nil {
				log.Warn("mail topic unavailable; alert e-mails will only be logged: " + err.Error())
			} else {
				deps.Mailer = mailer.NewPubSubMailer(mailer.TopicPublisher(topic), rt.Logger)
			}
		}
	}
	if s.GCSBucket != "" {
		client, err := utils.NewGCSClient(ctx, s.GCSCredJSON)
		if err != nil {
			log.Warn("cloud storage unavailable; reports will not be archived: " + err.Error())
			return
		}
		rt.gcs = client
		uploader, err := utils.NewGCSUploader(client, s.GCSBucket)
		if err != nil {
			log.Warn(err.Error())
			return
		}
		deps.Archive = uploader
	}
}

// Environment is what the system check inspects about this deployment.
func (rt *Runtime) Environment() monitor.Environment {
	s := rt.Settings
	return monitor.Environment{
		Production:      s.IsProduction(),
		Debug:           s.Debug,
		SecretKey:       s.SecretKey,
		AllowedHosts:    s.AllowedHosts,
		DBEngine:        s.DBEngine,
		MediaRoot:       s.MediaRoot,
		StaticRoot:      s.StaticRoot,
		LogDir:          s.LogDir,
		CacheConfigured: rt.Redis != nil,
	}
}

func (rt *Runtime) Close() {
	if rt.pubsub != nil {
		_ = rt.pubsub.Close()
	}
	if rt.gcs != nil {
		_ = rt.gcs.Close()
	}
	if err := rt.Redis.Close(); err != nil {
		rt.Logger.WithFields(logrus.Fields{"module": "workflow", "funcName": "Close"}).Warn("close redis: " + err.Error())
	}
	if sqlDB, err := rt.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// CacheTTL is how long summaries stay in redis.
const CacheTTL = 30 * time.Second
