package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	DBEngineMySQL  = "mysql"
	DBEngineSQLite = "sqlite"

	defaultMailFrom = "noreply@moldpark.com"
)

// Settings is the process configuration. It is loaded once in main and passed
// down explicitly; nothing in this module reads the environment after that.
type Settings struct {
	Env       string `validate:"omitempty,oneof=development staging production test"`
	Debug     bool
	SecretKey string
	Port      string `validate:"required,numeric"`
	LogLevel  string `validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`

	DBEngine        string `validate:"required,oneof=mysql sqlite"`
	DBUser          string `validate:"required_if=DBEngine mysql"`
	DBPassword      string
	DBHost          string `validate:"required_if=DBEngine mysql"`
	DBPort          string
	DBName          string `validate:"required_if=DBEngine mysql"`
	DBSQLitePath    string `validate:"required_if=DBEngine sqlite"`
	DBMaxOpenConns  int    `validate:"gte=0"`
	DBMaxIdleConns  int    `validate:"gte=0"`
	DBConnectTries  int    `validate:"gte=0"`
	SkipMigrations  bool
	RedisAddress    string
	AllowedHosts    []string
	CORSOrigins     []string
	APISecret       string
	TokenHours      int `validate:"gt=0"`
	MailFrom        string `validate:"required,email"`
	MailTopic       string
	PubSubProjectID string
	PubSubCredJSON  string
	GCSBucket       string
	GCSCredJSON     string
	BaseDir         string `validate:"required"`
	MediaRoot       string
	StaticRoot      string
	LogDir          string
	RulesFile       string
	DashboardURL    string

	// RateLimitRequests per RateLimitWindow seconds and client IP; 0 disables the limiter.
	RateLimitRequests int `validate:"gte=0"`
	RateLimitWindow   int `validate:"gte=0"`
}

// IsProduction reports whether GO_ENV is production.
func (s Settings) IsProduction() bool {
	return strings.EqualFold(s.Env, "production")
}

// LoadSettings reads .env (when present) and the environment.
func LoadSettings() (Settings, error) {
	_ = godotenv.Load()

	baseDir := stringFromEnv("BASE_DIR", ".")
	s := Settings{
		Env:       strings.ToLower(stringFromEnv("GO_ENV", "development")),
		Debug:     boolFromEnv("DEBUG", false),
		SecretKey: os.Getenv("SECRET_KEY"),
		Port:      firstNonEmpty(os.Getenv("API_PORT"), os.Getenv("PORT"), "8080"),
		LogLevel:  strings.ToLower(stringFromEnv("LOG_LEVEL", "info")),

		DBEngine:       strings.ToLower(stringFromEnv("DB_ENGINE", DBEngineMySQL)),
		DBUser:         os.Getenv("DB_USER"),
		DBPassword:     os.Getenv("DB_PASSWORD"),
		DBHost:         os.Getenv("DB_HOST"),
		DBPort:         stringFromEnv("DB_PORT", "3306"),
		DBName:         os.Getenv("DB_NAME"),
		DBSQLitePath:   stringFromEnv("DB_SQLITE_PATH", "moldpark.db"),
		DBMaxOpenConns: intFromEnv("DB_MAX_OPEN_CONNS", 50),
		DBMaxIdleConns: intFromEnv("DB_MAX_IDLE_CONNS", 25),
		DBConnectTries: intFromEnv("DB_CONNECT_TRIES", 0),
		SkipMigrations: boolFromEnv("SKIP_MIGRATIONS", false),

		RedisAddress: os.Getenv("REDIS_ADDRESS"),
		AllowedHosts: splitAndTrim(os.Getenv("ALLOWED_HOSTS")),
		CORSOrigins:  splitAndTrim(os.Getenv("CORS_ALLOWED_ORIGINS")),
		APISecret:    os.Getenv("API_SECRET"),
		TokenHours:   intFromEnv("TOKEN_HOUR_LIFESPAN", 24),

		MailFrom:        stringFromEnv("MAIL_FROM", defaultMailFrom),
		MailTopic:       os.Getenv("MAIL_TOPIC"),
		PubSubProjectID: firstNonEmpty(os.Getenv("PUBSUB_PROJECT_ID"), os.Getenv("GOOGLE_CLOUD_PROJECT"), os.Getenv("GCP_PROJECT")),
		PubSubCredJSON:  os.Getenv("PUBSUB_CREDENTIALS_JSON"),
		GCSBucket:       os.Getenv("GCS_BUCKET"),
		GCSCredJSON:     os.Getenv("GCS_CREDENTIALS_JSON"),

		BaseDir:      baseDir,
		MediaRoot:    stringFromEnv("MEDIA_ROOT", baseDir+"/media"),
		StaticRoot:   stringFromEnv("STATIC_ROOT", baseDir+"/static"),
		LogDir:       stringFromEnv("LOG_DIR", baseDir+"/logs"),
		RulesFile:    os.Getenv("MONITOR_RULES_FILE"),
		DashboardURL: stringFromEnv("DASHBOARD_URL", "/center/dashboard/"),

		RateLimitRequests: intFromEnv("RATE_LIMIT_MAX_REQUESTS", 0),
		RateLimitWindow:   intFromEnv("RATE_LIMIT_WINDOW_SECONDS", 60),
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s Settings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

func stringFromEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func boolFromEnv(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
