package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/annel0/blockbase/internal/cache"
	"github.com/annel0/blockbase/internal/logging"
	"github.com/annel0/blockbase/internal/storage"
	"github.com/annel0/blockbase/internal/world/block"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath - переменная окружения с путём к конфигу
const EnvConfigPath = "BLOCKBASE_CONFIG"

// Config корневая структура конфигурации приложения.
type Config struct {
	Registry  RegistryConfig  `yaml:"registry"`
	Logging   logging.Config  `yaml:"logging"`
	Storage   storage.Config  `yaml:"storage"`
	Cache     CacheConfig     `yaml:"cache"`
	Events    EventsConfig    `yaml:"events"`
	Admin     AdminConfig     `yaml:"admin"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Sentry    SentryConfig    `yaml:"sentry"`
	Seed      SeedConfig      `yaml:"seed"`

	// FailureWindow - окно дедупликации ошибок диспетчера; 0 - раз за жизнь процесса
	FailureWindow time.Duration `yaml:"failure_window"`
}

type RegistryConfig struct {
	Capacity int         `yaml:"capacity"`
	Default  block.Props `yaml:"default"`
}

type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	// NodeID - имя узла в сообщениях инвалидации; пустое - случайный UUID
	NodeID string                  `yaml:"node_id"`
	NATS   cache.InvalidatorConfig `yaml:"nats"`
}

// EventsConfig - журнал изменений мира
type EventsConfig struct {
	// Backend: "" (выключен), "memory" или "jetstream"
	Backend   string        `yaml:"backend"`
	NATSURL   string        `yaml:"nats_url"`
	Stream    string        `yaml:"stream"`
	Retention time.Duration `yaml:"retention"`
	Buffer    int           `yaml:"buffer"`
	LogEvents bool          `yaml:"log_events"`
}

type AdminConfig struct {
	Port      int    `yaml:"port"`
	JWTSecret string `yaml:"jwt_secret"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

type SentryConfig struct {
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
}

// SeedConfig - начальное заполнение пустого мира шумом
type SeedConfig struct {
	Enabled bool  `yaml:"enabled"`
	Seed    int64 `yaml:"seed"`
	Radius  int   `yaml:"radius"`
	Y       int   `yaml:"y"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Registry: RegistryConfig{
			Capacity: 16,
			Default:  block.DefaultProps(),
		},
		Logging: logging.Config{Level: "info", Format: "console"},
		Storage: storage.Config{
			Backend: storage.BackendMemory,
			Path:    "data",
			Redis:   *storage.DefaultRedisConfig(),
		},
		Cache: CacheConfig{
			NATS: cache.InvalidatorConfig{NATSURL: "nats://localhost:4222"},
		},
		Events: EventsConfig{
			NATSURL:   "nats://localhost:4222",
			Stream:    "BLOCKS",
			Retention: 24 * time.Hour,
			Buffer:    1024,
		},
		Admin:         AdminConfig{},
		Telemetry:     TelemetryConfig{ServiceName: "blockbase"},
		Sentry:        SentryConfig{Environment: "development"},
		Seed:          SeedConfig{Seed: 1, Radius: 32, Y: 64},
		FailureWindow: time.Minute,
	}
}

// GetAdminPort возвращает порт admin API с поддержкой fallback значений
func (a *AdminConfig) GetAdminPort() int {
	return getPortWithEnvFallback(a.Port, "BLOCKBASE_ADMIN_PORT", 8088)
}

// GetJWTSecret возвращает секрет токенов: config -> env
func (a *AdminConfig) GetJWTSecret() string {
	if a.JWTSecret != "" {
		return a.JWTSecret
	}
	return os.Getenv("BLOCKBASE_JWT_SECRET")
}

// GetDSN возвращает DSN Sentry: config -> env SENTRY_DSN
func (s *SentryConfig) GetDSN() string {
	if s.DSN != "" {
		return s.DSN
	}
	return os.Getenv("SENTRY_DSN")
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	// Если порт задан в конфиге и больше 0, используем его
	if configPort > 0 {
		return configPort
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Validate проверяет значения, которые нельзя исправить молча
func (c *Config) Validate() error {
	if c.Registry.Capacity <= 0 || c.Registry.Capacity > block.MaxVariantID+1 {
		return fmt.Errorf("registry.capacity %d вне диапазона 1..%d", c.Registry.Capacity, block.MaxVariantID+1)
	}
	switch c.Storage.Backend {
	case storage.BackendMemory, storage.BackendBadger, storage.BackendRedis, storage.BackendMaria, storage.BackendMongo:
	default:
		return fmt.Errorf("storage.backend %q не поддерживается", c.Storage.Backend)
	}
	switch c.Events.Backend {
	case "", "memory", "jetstream":
	default:
		return fmt.Errorf("events.backend %q не поддерживается", c.Events.Backend)
	}
	if c.Storage.Backend == storage.BackendMaria && c.Storage.MariaDSN == "" {
		return fmt.Errorf("storage.maria_dsn обязателен для backend maria")
	}
	return nil
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать из ENV BLOCKBASE_CONFIG или возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfigPath)
		if path == "" {
			return cfg, nil // конфиг не задан - использовать дефолты
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение конфига %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("разбор конфига %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
