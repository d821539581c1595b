package config

import (
	"fmt"
	"log"
	"net"
	"os"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// ConnectDatabaseWithRetry opens the configured engine. maxAttempts <= 0 retries forever,
// which is what the server wants; CLI commands pass a small bound so an unreachable
// database turns into a non-zero exit.
func ConnectDatabaseWithRetry(s Settings, maxAttempts int) (*gorm.DB, error) {
	dialector, err := dialectorFor(s)
	if err != nil {
		return nil, err
	}

	var attempt int
	for {
		attempt++
		db, err := gorm.Open(dialector, initConfig())
		if err == nil {
			if sqlDB, derr := db.DB(); derr == nil && sqlDB != nil {
				err = sqlDB.Ping()
				if err == nil {
					tunePool(s, db)
				}
			} else {
				err = derr
			}
		}
		if err == nil {
			if pluginErr := db.Use(otelgorm.NewPlugin()); pluginErr != nil {
				log.Printf("db connected but failed to install otelgorm plugin: %v", pluginErr)
			}
			log.Printf("connected to database (engine=%s attempt=%d)", s.DBEngine, attempt)
			return db, nil
		}

		if maxAttempts > 0 && attempt >= maxAttempts {
			return nil, fmt.Errorf("connect database (engine=%s attempts=%d): %w", s.DBEngine, attempt, err)
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("failed to connect database (attempt=%d): %v; retrying in %s", attempt, err, sleep)
		time.Sleep(sleep)
	}
}

func dialectorFor(s Settings) (gorm.Dialector, error) {
	switch s.DBEngine {
	case DBEngineSQLite:
		return sqlite.Open(s.DBSQLitePath), nil
	case DBEngineMySQL:
		cfg := mysqldriver.NewConfig()
		cfg.User = s.DBUser
		cfg.Passwd = s.DBPassword
		cfg.DBName = s.DBName
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		// Cloud SQL: DB_HOST=/cloudsql/<CONNECTION_NAME> is a unix socket from the auth proxy.
		if strings.HasPrefix(s.DBHost, "/cloudsql/") {
			cfg.Net = "unix"
			cfg.Addr = s.DBHost
		} else {
			cfg.Net = "tcp"
			cfg.Addr = net.JoinHostPort(s.DBHost, s.DBPort)
		}
		return mysql.Open(cfg.FormatDSN()), nil
	default:
		return nil, fmt.Errorf("unsupported DB_ENGINE %q", s.DBEngine)
	}
}

func tunePool(s Settings, db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil || sqlDB == nil {
		return
	}
	if s.DBEngine == DBEngineSQLite {
		// one writer; avoids "database is locked" under concurrent handlers
		sqlDB.SetMaxOpenConns(1)
		return
	}
	if s.DBMaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(s.DBMaxOpenConns)
	}
	if s.DBMaxIdleConns >= 0 {
		sqlDB.SetMaxIdleConns(s.DBMaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Minute)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func initConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         initLog(),
		NamingStrategy: initNamingStrategy(),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func initLog() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			Colorful:                  false,
			LogLevel:                  logger.Error,
			SlowThreshold:             time.Second,
			IgnoreRecordNotFoundError: true,
		},
	)
}

func initNamingStrategy() *schema.NamingStrategy {
	return &schema.NamingStrategy{
		SingularTable: false,
		TablePrefix:   "",
	}
}
