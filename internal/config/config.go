// Package config loads and hot-reloads the engine's configuration, adapted
// from the teacher's viper-based config manager but narrowed to the
// sections this matching engine actually uses.
package config

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// EngineConfig controls matching-core tuning knobs.
type EngineConfig struct {
	MaxOrdersPerSymbol int  `mapstructure:"max_orders_per_symbol"`
	StartMatching      bool `mapstructure:"start_matching"`
}

// IngressConfig controls command-queue backpressure and sharding.
type IngressConfig struct {
	CommandsPerSecond float64 `mapstructure:"commands_per_second"`
	CommandBurst      int     `mapstructure:"command_burst"`
	WorkerPoolSize    int     `mapstructure:"worker_pool_size"`
}

// TransportConfig controls the HTTP/WS/admin surfaces.
type TransportConfig struct {
	HTTPAddr          string        `mapstructure:"http_addr"`
	WSAddr            string        `mapstructure:"ws_addr"`
	AdminAddr         string        `mapstructure:"admin_addr"`
	JWTSecret         string        `mapstructure:"jwt_secret"`
	AdminPasswordHash string        `mapstructure:"admin_password_hash"`
	CORSOrigins       []string      `mapstructure:"cors_origins"`
	RateLimitRPS      int           `mapstructure:"rate_limit_rps"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	MinAPIVersion     string        `mapstructure:"min_api_version"`
}

// EventsConfig controls the async market-event bus.
type EventsConfig struct {
	Driver      string `mapstructure:"driver"` // "memory" or "nats"
	NATSUrl     string `mapstructure:"nats_url"`
	TopicPrefix string `mapstructure:"topic_prefix"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Path    string `mapstructure:"path"`
}

// defaultAdminPasswordHash is a bcrypt hash of the placeholder password
// "change-me-admin", used only when no configuration file overrides it —
// the same "obviously a placeholder" convention as JWTSecret's default.
var defaultAdminPasswordHash = mustBcryptHash("change-me-admin")

func mustBcryptHash(password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		panic(fmt.Sprintf("config: hash default admin password: %v", err))
	}
	return string(hash)
}

// LoggingConfig controls zap construction.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Production bool   `mapstructure:"production"`
}

// Config is the root configuration object.
type Config struct {
	Engine    EngineConfig    `mapstructure:"engine"`
	Ingress   IngressConfig   `mapstructure:"ingress"`
	Transport TransportConfig `mapstructure:"transport"`
	Events    EventsConfig    `mapstructure:"events"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// Validate rejects configurations that would leave the engine unusable.
func (c *Config) Validate() error {
	if c.Engine.MaxOrdersPerSymbol <= 0 {
		return fmt.Errorf("engine.max_orders_per_symbol must be positive")
	}
	if c.Ingress.CommandsPerSecond <= 0 {
		return fmt.Errorf("ingress.commands_per_second must be positive")
	}
	if c.Transport.JWTSecret == "" {
		return fmt.Errorf("transport.jwt_secret must not be empty")
	}
	return nil
}

// Default returns the built-in configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			MaxOrdersPerSymbol: 1_000_000,
			StartMatching:      true,
		},
		Ingress: IngressConfig{
			CommandsPerSecond: 50_000,
			CommandBurst:      5_000,
			WorkerPoolSize:    8,
		},
		Transport: TransportConfig{
			HTTPAddr:        "0.0.0.0:8080",
			WSAddr:          "0.0.0.0:8081",
			AdminAddr:       "0.0.0.0:8082",
			JWTSecret:         "change-me",
			AdminPasswordHash: defaultAdminPasswordHash,
			CORSOrigins:       []string{"*"},
			RateLimitRPS:      1000,
			ShutdownTimeout:   10 * time.Second,
			MinAPIVersion:     "1.0.0",
		},
		Events: EventsConfig{
			Driver:      "memory",
			TopicPrefix: "lobengine",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    "0.0.0.0:9090",
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Production: true,
		},
	}
}

// Manager loads a Config from disk via viper, watches the file for changes,
// and exposes the latest validated snapshot. Fields that are unsafe to swap
// live (ports, worker pool sizing) still require a restart; callers should
// only read Ingress/Logging/Transport.RateLimitRPS from hot-reloaded state.
type Manager struct {
	v       *viper.Viper
	logger  *zap.Logger
	current atomic.Value // *Config
}

// NewManager loads configPath (or built-in defaults if empty) and starts
// watching it for changes.
func NewManager(configPath string, logger *zap.Logger) (*Manager, error) {
	v := viper.New()
	m := &Manager{v: v, logger: logger}

	cfg := Default()
	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetEnvPrefix("LOBENGINE")
		v.AutomaticEnv()
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	m.current.Store(cfg)

	if configPath != "" {
		v.OnConfigChange(func(e fsnotify.Event) {
			m.reload()
		})
		v.WatchConfig()
	}

	return m, nil
}

// Get returns the latest validated configuration snapshot.
func (m *Manager) Get() *Config {
	return m.current.Load().(*Config)
}

func (m *Manager) reload() {
	next := Default()
	if err := m.v.Unmarshal(next); err != nil {
		m.logger.Warn("config reload failed to unmarshal, keeping previous", zap.Error(err))
		return
	}
	if err := next.Validate(); err != nil {
		m.logger.Warn("config reload produced an invalid configuration, keeping previous", zap.Error(err))
		return
	}
	m.current.Store(next)
	m.logger.Info("configuration reloaded")
}
