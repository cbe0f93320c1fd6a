package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar задает путь к YAML-файлу конфигурации
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfigPaths — пути поиска файла конфигурации по порядку
var defaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/logcompany/config.yaml",
}

// Config — полная конфигурация tracking-service
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	RabbitMQ RabbitMQConfig `koanf:"rabbitmq"`
	Redis    RedisConfig    `koanf:"redis"`
	HTTP     HTTPConfig     `koanf:"http"`
	JWT      JWTConfig      `koanf:"jwt"`
	Logging  LoggingConfig  `koanf:"logging"`
	Tracking TrackingConfig `koanf:"tracking"`
}

type DatabaseConfig struct {
	Host     string `koanf:"host" validate:"required"`
	Port     int    `koanf:"port" validate:"gt=0,lte=65535"`
	User     string `koanf:"user" validate:"required"`
	Password string `koanf:"password"`
	Database string `koanf:"database" validate:"required"`
	SSLMode  string `koanf:"sslmode" validate:"oneof=disable require verify-ca verify-full"`
}

// DSN возвращает строку подключения для pgx
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

type RabbitMQConfig struct {
	Host     string `koanf:"host" validate:"required"`
	Port     int    `koanf:"port" validate:"gt=0,lte=65535"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	VHost    string `koanf:"vhost"`
}

// AMQPURL возвращает URL подключения к RabbitMQ
func (c RabbitMQConfig) AMQPURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d%s", c.User, c.Password, c.Host, c.Port, c.VHost)
}

type RedisConfig struct {
	Addr     string `koanf:"addr" validate:"required"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" validate:"gte=0"`
}

type HTTPConfig struct {
	Port            int           `koanf:"port" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type JWTConfig struct {
	Secret        string `koanf:"secret" validate:"required"`
	ExpiryMinutes int    `koanf:"expiry_minutes" validate:"gt=0"`
}

type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// TrackingConfig — параметры ядра трекинга
type TrackingConfig struct {
	// StalenessThreshold — максимальный возраст точки (recorded_at vs now),
	// при котором она еще транслируется подписчикам как "текущая позиция".
	// Более старые точки сохраняются только в историю.
	StalenessThreshold time.Duration `koanf:"staleness_threshold" validate:"gt=0"`

	// PresenceWindow — окно для запроса "все активные водители"
	PresenceWindow time.Duration `koanf:"presence_window" validate:"gt=0"`

	// MaxClockSkew — допустимое опережение recorded_at над серверным временем
	MaxClockSkew time.Duration `koanf:"max_clock_skew" validate:"gt=0"`

	// MaxBatchSize — максимальное число точек в одном батче offline-реплея
	MaxBatchSize int `koanf:"max_batch_size" validate:"gt=0"`
}

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "logcompany_user",
			Password: "logcompany_pass",
			Database: "logcompany_db",
			SSLMode:  "disable",
		},
		RabbitMQ: RabbitMQConfig{
			Host:     "localhost",
			Port:     5672,
			User:     "guest",
			Password: "guest",
			VHost:    "/",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			DB:   0,
		},
		HTTP: HTTPConfig{
			Port:            3000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		JWT: JWTConfig{
			Secret:        "dev_secret",
			ExpiryMinutes: 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracking: TrackingConfig{
			StalenessThreshold: 2 * time.Minute,
			PresenceWindow:     time.Hour,
			MaxClockSkew:       2 * time.Minute,
			MaxBatchSize:       500,
		},
	}
}

// Load загружает конфигурацию слоями: defaults → YAML-файл → ENV.
// ENV имеет высший приоритет.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range defaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envTransform отображает имена переменных окружения на пути конфигурации.
// Имена переменных совпадают с остальными сервисами платформы (DB_HOST и т.д.).
func envTransform(key string) string {
	mappings := map[string]string{
		"DB_HOST":     "database.host",
		"DB_PORT":     "database.port",
		"DB_USER":     "database.user",
		"DB_PASSWORD": "database.password",
		"DB_NAME":     "database.database",
		"DB_SSLMODE":  "database.sslmode",

		"RABBITMQ_HOST":     "rabbitmq.host",
		"RABBITMQ_PORT":     "rabbitmq.port",
		"RABBITMQ_USER":     "rabbitmq.user",
		"RABBITMQ_PASSWORD": "rabbitmq.password",
		"RABBITMQ_VHOST":    "rabbitmq.vhost",

		"REDIS_ADDR":     "redis.addr",
		"REDIS_PASSWORD": "redis.password",
		"REDIS_DB":       "redis.db",

		"HTTP_PORT": "http.port",

		"JWT_SECRET":         "jwt.secret",
		"JWT_EXPIRY_MINUTES": "jwt.expiry_minutes",

		"LOG_LEVEL":  "logging.level",
		"LOG_FORMAT": "logging.format",

		"TRACKING_STALENESS_THRESHOLD": "tracking.staleness_threshold",
		"TRACKING_PRESENCE_WINDOW":     "tracking.presence_window",
		"TRACKING_MAX_CLOCK_SKEW":      "tracking.max_clock_skew",
		"TRACKING_MAX_BATCH_SIZE":      "tracking.max_batch_size",
	}

	if path, ok := mappings[strings.ToUpper(key)]; ok {
		return path
	}
	// Неизвестные переменные не участвуют в конфигурации
	return ""
}
