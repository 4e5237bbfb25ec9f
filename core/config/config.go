package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"timezone-scheduler/core/constants"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Report    ReportConfig    `mapstructure:"report"`
}

type ServerConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	BaseURL string `mapstructure:"base_url"`
	// PublicRateLimit is requests per second allowed per client IP on public routes.
	PublicRateLimit float64 `mapstructure:"public_rate_limit"`
	PublicRateBurst int     `mapstructure:"public_rate_burst"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // postgres | sqlite
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	// Path is the sqlite file (or ":memory:").
	Path    string `mapstructure:"path"`
	Migrate bool   `mapstructure:"migrate"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type SchedulerConfig struct {
	// ProjectID is the record store hosting the appointment fields.
	ProjectID        int64            `mapstructure:"project_id"`
	ProjectTitle     string           `mapstructure:"project_title"`
	ServerTimezone   string           `mapstructure:"server_timezone"`
	LockWait         time.Duration    `mapstructure:"lock_wait"`
	LockTTL          time.Duration    `mapstructure:"lock_ttl"`
	CancelTokenTTL   time.Duration    `mapstructure:"cancel_token_ttl"`
	CancelLinkSecret string           `mapstructure:"cancel_link_secret"`
	Instances        []InstanceConfig `mapstructure:"instances"`
}

// InstanceConfig is one raw scheduling entry as written in the config file.
// It is validated into a typed config by the scheduler registry.
type InstanceConfig struct {
	SlotProjectID              int64  `mapstructure:"slot-project-id"`
	SlotIDField                string `mapstructure:"slot-id-field"`
	SlotIDFieldEventID         int64  `mapstructure:"slot-id-field-event-id"`
	SlotFilterField            string `mapstructure:"slot-filter-field"`
	SlotFilterValue            string `mapstructure:"slot-filter-value"`
	ParticipantTextDateFormat  string `mapstructure:"participant-text-date-format"`
	ParticipantDescriptionTmpl string `mapstructure:"participant-description-template"`
	ApptDatetimeField          string `mapstructure:"appt-datetime-field"`
	ApptDatetimeFieldFormat    string `mapstructure:"appt-datetime-field-format"`
	ApptTextDateField          string `mapstructure:"appt-text-date-field"`
	ApptDescriptionField       string `mapstructure:"appt-description-field"`
	ApptCancelURLField         string `mapstructure:"appt-cancel-url-field"`
	ApptSlotURLField           string `mapstructure:"appt-slot-url-field"`
	ButtonLabel                string `mapstructure:"button-label"`
	Disabled                   bool   `mapstructure:"disabled"`
}

type ReportConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

var (
	mu       sync.RWMutex
	instance *Config
)

// Load reads .env (when present), then the config file at path (optional), then TZS_* env overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TZS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	Set(&cfg)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 7070)
	v.SetDefault("server.base_url", "")
	v.SetDefault("server.public_rate_limit", 2.0)
	v.SetDefault("server.public_rate_burst", 5)

	v.SetDefault("log.level", "info")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "tz_scheduler")
	v.SetDefault("database.sslmode", constants.DatabaseSSLMode)
	v.SetDefault("database.path", "tz_scheduler.db")
	v.SetDefault("database.migrate", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("scheduler.project_id", 0)
	v.SetDefault("scheduler.project_title", "")
	v.SetDefault("scheduler.server_timezone", "")
	v.SetDefault("scheduler.lock_wait", constants.DefaultLockWait)
	v.SetDefault("scheduler.lock_ttl", constants.DefaultLockTTL)
	v.SetDefault("scheduler.cancel_token_ttl", constants.DefaultCancelWindow)
	v.SetDefault("scheduler.cancel_link_secret", "")

	v.SetDefault("report.bucket", "")
	v.SetDefault("report.region", "us-east-1")
	v.SetDefault("report.endpoint", "")
	v.SetDefault("report.access_key_id", "")
	v.SetDefault("report.secret_access_key", "")
}

// Set installs cfg as the process configuration.
func Set(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = cfg
}

// Get returns the loaded configuration. It panics when Load has not run.
func Get() *Config {
	cfg, ok := GetSafe()
	if !ok {
		panic("config: not initialized")
	}
	return cfg
}

// GetSafe returns the configuration and whether it has been loaded.
func GetSafe() (*Config, bool) {
	mu.RLock()
	defer mu.RUnlock()
	return instance, instance != nil
}

// PublicBaseURL is the externally reachable base used in generated links.
func (c *Config) PublicBaseURL() string {
	if c.Server.BaseURL != "" {
		return strings.TrimRight(c.Server.BaseURL, "/")
	}
	host := c.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, c.Server.Port)
}
