// Package config loads and validates the service configuration from
// YAML files and GLSENTINEL_-prefixed environment variables, with
// optional hot reload.
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Aidin1998/glsentinel/internal/anomaly"
)

// Config is the full service configuration.
type Config struct {
	Log       LogConfig               `json:"log" mapstructure:"log" yaml:"log"`
	Database  DatabaseConfig          `json:"database" mapstructure:"database" yaml:"database"`
	Detection anomaly.DetectionConfig `json:"detection" mapstructure:"detection" yaml:"detection"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level string `json:"level" mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
}

// DatabaseConfig configures the GL data source connection.
type DatabaseConfig struct {
	Driver string `json:"driver" mapstructure:"driver" yaml:"driver" validate:"oneof=postgres sqlite"`
	DSN    string `json:"dsn" mapstructure:"dsn" yaml:"dsn"`
}

// Manager owns the loaded configuration and its reload lifecycle.
type Manager struct {
	mu       sync.RWMutex
	logger   *zap.SugaredLogger
	viper    *viper.Viper
	validate *validator.Validate
	config   *Config
	onReload []func(*Config)
}

// NewManager creates an unloaded configuration manager.
func NewManager(logger *zap.SugaredLogger) *Manager {
	return &Manager{
		logger:   logger,
		viper:    viper.New(),
		validate: validator.New(),
	}
}

// Load reads configuration from the given file (optional) plus the
// environment, applies defaults, and validates the result.
func (m *Manager) Load(configPath string) (*Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.viper.SetConfigType("yaml")
	m.viper.SetEnvPrefix("GLSENTINEL")
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.viper.AutomaticEnv()
	m.setDefaults()

	if configPath != "" {
		m.viper.SetConfigFile(configPath)
		if err := m.viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	config, err := m.unmarshal()
	if err != nil {
		return nil, err
	}

	m.config = config
	m.logger.Infow("Configuration loaded",
		"file", configPath,
		"log_level", config.Log.Level,
		"db_driver", config.Database.Driver)
	return config, nil
}

func (m *Manager) unmarshal() (*Config, error) {
	var config Config
	if err := m.viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := m.validate.Struct(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	if err := config.Detection.Validate(); err != nil {
		return nil, fmt.Errorf("detection configuration invalid: %w", err)
	}
	return &config, nil
}

// setDefaults registers every default; a run with no config file at all
// is fully specified.
func (m *Manager) setDefaults() {
	m.viper.SetDefault("log.level", "info")
	m.viper.SetDefault("database.driver", "sqlite")
	m.viper.SetDefault("database.dsn", "glsentinel.db")

	m.viper.SetDefault("detection.benford_law.enabled", true)
	m.viper.SetDefault("detection.benford_law.min_transactions", 100)
	m.viper.SetDefault("detection.benford_law.significance_level", 0.05)

	m.viper.SetDefault("detection.statistical_outliers.enabled", true)
	m.viper.SetDefault("detection.statistical_outliers.method", "IQR")
	m.viper.SetDefault("detection.statistical_outliers.z_score_threshold", 3.0)
	m.viper.SetDefault("detection.statistical_outliers.iqr_multiplier", 1.5)
	m.viper.SetDefault("detection.statistical_outliers.mad_threshold", 3.5)

	m.viper.SetDefault("detection.behavioral_anomalies.enabled", true)
	m.viper.SetDefault("detection.behavioral_anomalies.timezone", "UTC")
	m.viper.SetDefault("detection.behavioral_anomalies.check_after_hours", true)
	m.viper.SetDefault("detection.behavioral_anomalies.after_hours_start", 19)
	m.viper.SetDefault("detection.behavioral_anomalies.after_hours_end", 7)
	m.viper.SetDefault("detection.behavioral_anomalies.check_weekends", true)
	m.viper.SetDefault("detection.behavioral_anomalies.check_reversals", true)
	m.viper.SetDefault("detection.behavioral_anomalies.same_day_reversal_window", 24*time.Hour)

	m.viper.SetDefault("detection.velocity_analysis.enabled", true)
	m.viper.SetDefault("detection.velocity_analysis.deviation_threshold", 200.0)
	m.viper.SetDefault("detection.velocity_analysis.lookback_periods", 12)

	m.viper.SetDefault("detection.round_numbers.enabled", true)
	m.viper.SetDefault("detection.round_numbers.thresholds", []float64{1000, 5000, 10000})
	m.viper.SetDefault("detection.round_numbers.min_occurrences", 5)

	m.viper.SetDefault("detection.duplicate_detection.enabled", true)
	m.viper.SetDefault("detection.duplicate_detection.time_window", 24*time.Hour)
	m.viper.SetDefault("detection.duplicate_detection.amount_tolerance", 0.01)
}

// Get returns the currently loaded configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// OnReload registers a callback invoked with the new configuration after
// a successful hot reload.
func (m *Manager) OnReload(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReload = append(m.onReload, fn)
}

// Watch re-reads the config file on filesystem changes. Invalid reloads
// are logged and discarded; the previous configuration stays active.
func (m *Manager) Watch() {
	m.viper.OnConfigChange(func(event fsnotify.Event) {
		m.mu.Lock()
		config, err := m.unmarshal()
		if err != nil {
			m.mu.Unlock()
			m.logger.Warnw("Ignoring invalid configuration reload",
				"file", event.Name,
				"error", err)
			return
		}
		m.config = config
		callbacks := make([]func(*Config), len(m.onReload))
		copy(callbacks, m.onReload)
		m.mu.Unlock()

		m.logger.Infow("Configuration reloaded", "file", event.Name)
		for _, fn := range callbacks {
			fn(config)
		}
	})
	m.viper.WatchConfig()
}
