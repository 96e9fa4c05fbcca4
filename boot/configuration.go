package boot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"

	wlog "github.com/go-lynx/widget/log"
)

// ConfigKey is the root of every runtime setting
const ConfigKey = "widget"

// LoadConfig reads the configuration file or directory at path and scans the
// widget section over DefaultConf. The returned config stays open for Watch;
// the caller closes it.
func LoadConfig(path string) (config.Config, Conf, error) {
	if path == "" {
		return nil, Conf{}, fmt.Errorf("configuration path is empty: pass --conf or set %s", ConfigPathEnv)
	}
	wlog.Infof("loading widget configuration from: %s", path)

	cfg := config.New(config.WithSource(file.NewSource(path)))
	if err := cfg.Load(); err != nil {
		return nil, Conf{}, fmt.Errorf("failed to load configuration from %s: %w", path, err)
	}
	c, err := ScanConf(cfg)
	if err != nil {
		_ = cfg.Close()
		return nil, Conf{}, err
	}
	return cfg, c, nil
}

// ScanConf reads the widget section of cfg. A missing section yields DefaultConf.
func ScanConf(cfg config.Config) (Conf, error) {
	c := DefaultConf()
	if err := cfg.Value(ConfigKey).Scan(&c); err != nil && !errors.Is(err, config.ErrNotFound) {
		return Conf{}, fmt.Errorf("failed to read %s configuration: %w", ConfigKey, err)
	}
	if err := validateConf(c); err != nil {
		return Conf{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return c, nil
}

func validateConf(c Conf) error {
	var errs []error
	if strings.TrimSpace(c.Application.Name) == "" {
		errs = append(errs, fmt.Errorf("%s.application.name is required", ConfigKey))
	}
	if c.Recovery.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("%s.recovery.max_attempts must not be negative", ConfigKey))
	}
	if c.Events.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("%s.events.rate_limit must not be negative", ConfigKey))
	}
	if _, err := c.Cache.ParseTTL(); err != nil {
		errs = append(errs, fmt.Errorf("%s.cache.ttl: %w", ConfigKey, err))
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, fmt.Errorf("%s.metrics.addr is required when metrics are enabled", ConfigKey))
	}
	return errors.Join(errs...)
}
