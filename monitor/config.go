package monitor

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Thresholds are the numeric trip points of every rule.
type Thresholds struct {
	InactiveDays          int64         `yaml:"inactive_days" validate:"gt=0"`
	QuotaPressureRatio    float64       `yaml:"quota_pressure_ratio" validate:"gt=0,lte=1"`
	CompletedWindow       time.Duration `yaml:"completed_window" validate:"gt=0"`
	StaleRevisionAge      time.Duration `yaml:"stale_revision_age" validate:"gt=0"`
	PerformanceWindow     time.Duration `yaml:"performance_window" validate:"gt=0"`
	PerformanceMinOrders  int64         `yaml:"performance_min_orders" validate:"gt=0"`
	PendingOrderAge       time.Duration `yaml:"pending_order_age" validate:"gt=0"`
	CapacityPressureRatio float64       `yaml:"capacity_pressure_ratio" validate:"gt=0,lte=1"`
	OnTimeWindow          time.Duration `yaml:"on_time_window" validate:"gt=0"`
	OnTimeMinSamples      int64         `yaml:"on_time_min_samples" validate:"gt=0"`
	OnTimeMinPercent      float64       `yaml:"on_time_min_percent" validate:"gt=0,lte=100"`
	ExpansionRatio        float64       `yaml:"expansion_ratio" validate:"gt=0,lte=1"`
	ExpansionMaxNetworks  int64         `yaml:"expansion_max_networks" validate:"gt=0"`
	OverdueCritical       int64         `yaml:"overdue_critical" validate:"gte=0"`

	LargeMoldTable        int64         `yaml:"large_mold_table" validate:"gt=0"`
	OrphanUserLimit       int64         `yaml:"orphan_user_limit" validate:"gte=0"`
	WeakPasswordWindow    time.Duration `yaml:"weak_password_window" validate:"gt=0"`
	WeakPasswordSample    int           `yaml:"weak_password_sample" validate:"gte=0"`
	DiskUsageWarning      float64       `yaml:"disk_usage_warning" validate:"gt=0,lte=100"`
	SuspendedNetworkLimit int64         `yaml:"suspended_network_limit" validate:"gte=0"`
	TerminationWindow     time.Duration `yaml:"termination_window" validate:"gt=0"`
	TerminationLimit      int64         `yaml:"termination_limit" validate:"gte=0"`
	AlertThreshold        int           `yaml:"alert_threshold" validate:"gt=0"`
}

// Config is handed to the evaluator, dispatcher and status service at construction.
type Config struct {
	Thresholds    Thresholds             `yaml:"thresholds"`
	Cooldowns     map[Kind]time.Duration `yaml:"cooldowns"`
	DashboardURL  string                 `yaml:"dashboard_url"`
	MailFrom      string                 `yaml:"mail_from" validate:"omitempty,email"`
	WeakPasswords []string               `yaml:"weak_passwords"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		InactiveDays:          30,
		QuotaPressureRatio:    0.80,
		CompletedWindow:       day,
		StaleRevisionAge:      3 * day,
		PerformanceWindow:     30 * day,
		PerformanceMinOrders:  5,
		PendingOrderAge:       day,
		CapacityPressureRatio: 0.90,
		OnTimeWindow:          30 * day,
		OnTimeMinSamples:      10,
		OnTimeMinPercent:      70,
		ExpansionRatio:        0.80,
		ExpansionMaxNetworks:  5,
		OverdueCritical:       10,

		LargeMoldTable:        50000,
		OrphanUserLimit:       10,
		WeakPasswordWindow:    7 * day,
		WeakPasswordSample:    20,
		DiskUsageWarning:      85,
		SuspendedNetworkLimit: 5,
		TerminationWindow:     7 * day,
		TerminationLimit:      10,
		AlertThreshold:        5,
	}
}

func DefaultCooldowns() map[Kind]time.Duration {
	return map[Kind]time.Duration{
		KindPerformanceSuggestion: 7 * day,
		KindWeeklyReport:          7 * day,
		KindStaleRevisions:        3 * day,
	}
}

func DefaultConfig() Config {
	return Config{
		Thresholds:    DefaultThresholds(),
		Cooldowns:     DefaultCooldowns(),
		DashboardURL:  "/center/dashboard/",
		MailFrom:      "noreply@moldpark.com",
		WeakPasswords: []string{"123456", "password"},
	}
}

// Cooldown returns the minimum spacing between two notifications of kind to one recipient.
func (c Config) Cooldown(kind Kind) (time.Duration, bool) {
	d, ok := c.Cooldowns[kind]
	return d, ok && d > 0
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid monitor config: %w", err)
	}
	return nil
}
