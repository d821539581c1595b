package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/mmdatafocus/moldpark_backend/monitor"
	"gopkg.in/yaml.v3"
)

// LoadMonitorConfig builds the engine configuration: built-in defaults, then
// the settings, then the rules file at path when one is given. Keys absent
// from the file keep their earlier value.
func LoadMonitorConfig(path string, s Settings) (monitor.Config, error) {
	cfg := monitor.DefaultConfig()
	if s.MailFrom != "" {
		cfg.MailFrom = s.MailFrom
	}
	if s.DashboardURL != "" {
		cfg.DashboardURL = s.DashboardURL
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return monitor.Config{}, fmt.Errorf("rules file %s not found", path)
			}
			return monitor.Config{}, err
		}
		if err := decodeRules(raw, &cfg); err != nil {
			return monitor.Config{}, fmt.Errorf("rules file %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return monitor.Config{}, err
	}
	return cfg, nil
}

func decodeRules(raw []byte, cfg *monitor.Config) error {
	if len(raw) == 0 {
		return nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	// an empty or comment-only document decodes to nothing
	if len(doc.Content) == 0 {
		return nil
	}
	return doc.Decode(cfg)
}
