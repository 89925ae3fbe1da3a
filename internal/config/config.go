package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"

	"github.com/bryanwahyu/leakwatch/internal/domain/assets"
)

type Config struct {
	Server struct {
		Port              int      `yaml:"port"`
		AllowedOrigins    []string `yaml:"allowed_origins"`
		RequestsPerMinute int      `yaml:"requests_per_minute"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres | sqlite
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslmode"`
		Path     string `yaml:"path"`
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	NATS struct {
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
		Stream        string `yaml:"stream"`
	} `yaml:"nats"`

	OpenAI struct {
		APIKey  string `yaml:"api_key"`
		Model   string `yaml:"model"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"openai"`

	Telemetry struct {
		OTLPEndpoint string `yaml:"otlp_endpoint"`
		ServiceName  string `yaml:"service_name"`
	} `yaml:"telemetry"`

	Roblox struct {
		CatalogURL        string        `yaml:"catalog_url"`
		GamesURL          string        `yaml:"games_url"`
		BadgesURL         string        `yaml:"badges_url"`
		RequestsPerSecond float64       `yaml:"requests_per_second"`
		Burst             int           `yaml:"burst"`
		Timeout           time.Duration `yaml:"timeout"`
		MaxPages          int           `yaml:"max_pages"`
		UserAgent         string        `yaml:"user_agent"`
	} `yaml:"roblox"`

	Scan struct {
		Interval     time.Duration `yaml:"interval"`
		InitialDelay time.Duration `yaml:"initial_delay"`
		RunOnStart   bool          `yaml:"run_on_start"`
		Concurrency  int           `yaml:"concurrency"`
	} `yaml:"scan"`

	// Targets are scanned in this order; the first target listing an asset owns it.
	Targets    []assets.Target `yaml:"targets"`
	Developers []string        `yaml:"developers"`

	Uploads struct {
		MaxBytes          int64         `yaml:"max_bytes"`
		AllowedExtensions []string      `yaml:"allowed_extensions"`
		SessionTTL        time.Duration `yaml:"session_ttl"`
	} `yaml:"uploads"`

	Bot struct {
		Prefix string `yaml:"prefix"`
	} `yaml:"bot"`
}

// env overrides, read with the LEAKWATCH_ prefix (LEAKWATCH_DB_PASSWORD, ...)
type envOverlay struct {
	Port          int           `env:"PORT"`
	LogLevel      string        `env:"LOG_LEVEL"`
	DBDriver      string        `env:"DB_DRIVER"`
	DBHost        string        `env:"DB_HOST"`
	DBPort        int           `env:"DB_PORT"`
	DBUser        string        `env:"DB_USER"`
	DBPassword    string        `env:"DB_PASSWORD"`
	DBName        string        `env:"DB_NAME"`
	DBPath        string        `env:"DB_PATH"`
	MinioEndpoint string        `env:"MINIO_ENDPOINT"`
	MinioAccess   string        `env:"MINIO_ACCESS_KEY"`
	MinioSecret   string        `env:"MINIO_SECRET_KEY"`
	NATSURL       string        `env:"NATS_URL"`
	OpenAIKey     string        `env:"OPENAI_API_KEY"`
	OTLPEndpoint  string        `env:"OTLP_ENDPOINT"`
	ScanInterval  time.Duration `env:"SCAN_INTERVAL"`
}

const EnvPrefix = "LEAKWATCH_"

// Load baca file config.yaml, lalu override dari environment
func Load(ctx context.Context, path string) (*Config, error) {
	return LoadWith(ctx, path, envconfig.OsLookuper())
}

// LoadWith is Load with an explicit env source.
func LoadWith(ctx context.Context, path string, env envconfig.Lookuper) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	var o envOverlay
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &o,
		Lookuper: envconfig.PrefixLookuper(EnvPrefix, env),
	}); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	cfg.overlay(o)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) overlay(o envOverlay) {
	setInt(&c.Server.Port, o.Port)
	setString(&c.Log.Level, o.LogLevel)
	setString(&c.Database.Driver, o.DBDriver)
	setString(&c.Database.Host, o.DBHost)
	setInt(&c.Database.Port, o.DBPort)
	setString(&c.Database.User, o.DBUser)
	setString(&c.Database.Password, o.DBPassword)
	setString(&c.Database.Name, o.DBName)
	setString(&c.Database.Path, o.DBPath)
	setString(&c.Minio.Endpoint, o.MinioEndpoint)
	setString(&c.Minio.AccessKey, o.MinioAccess)
	setString(&c.Minio.SecretKey, o.MinioSecret)
	setString(&c.NATS.URL, o.NATSURL)
	setString(&c.OpenAI.APIKey, o.OpenAIKey)
	setString(&c.Telemetry.OTLPEndpoint, o.OTLPEndpoint)
	if o.ScanInterval > 0 {
		c.Scan.Interval = o.ScanInterval
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Server.RequestsPerMinute == 0 {
		c.Server.RequestsPerMinute = 120
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "leakwatch.db"
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "leakwatch"
	}
	if c.NATS.Stream == "" {
		c.NATS.Stream = "LEAKWATCH"
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "leakwatch"
	}
	if c.Scan.Interval == 0 {
		c.Scan.Interval = 3 * time.Hour
	}
	if c.Scan.InitialDelay == 0 {
		c.Scan.InitialDelay = 10 * time.Second
	}
	if c.Scan.Concurrency == 0 {
		c.Scan.Concurrency = 1
	}
	if c.Uploads.MaxBytes == 0 {
		c.Uploads.MaxBytes = 10 << 20
	}
	if len(c.Uploads.AllowedExtensions) == 0 {
		c.Uploads.AllowedExtensions = []string{"rbxm", "rbxl", "png", "jpg", "lua", "obj", "fbx", "mp3", "ogg"}
	}
	if c.Uploads.SessionTTL == 0 {
		c.Uploads.SessionTTL = 10 * time.Minute
	}
	if c.Bot.Prefix == "" {
		c.Bot.Prefix = "/"
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "mysql", "postgres":
		if c.Database.Host == "" || c.Database.Name == "" {
			errs = append(errs, fmt.Errorf("database.host and database.name are required for %s", c.Database.Driver))
		}
	case "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unknown database.driver %q (mysql, postgres, sqlite)", c.Database.Driver))
	}
	if c.Scan.Interval < time.Minute {
		errs = append(errs, fmt.Errorf("scan.interval %s is below 1m", c.Scan.Interval))
	}
	if c.Scan.Concurrency < 1 {
		errs = append(errs, errors.New("scan.concurrency must be at least 1"))
	}
	if c.Uploads.MaxBytes < 0 {
		errs = append(errs, errors.New("uploads.max_bytes must not be negative"))
	}
	if c.Roblox.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("roblox.requests_per_second must not be negative"))
	}
	if strings.ContainsAny(c.Bot.Prefix, " \t\n") {
		errs = append(errs, fmt.Errorf("bot.prefix %q must not contain whitespace", c.Bot.Prefix))
	}

	seen := make(map[string]bool, len(c.Targets))
	for i, t := range c.Targets {
		switch {
		case strings.TrimSpace(t.ID) == "":
			errs = append(errs, fmt.Errorf("targets[%d]: id is required", i))
		case seen[t.ID]:
			errs = append(errs, fmt.Errorf("targets[%d]: duplicate id %s", i, t.ID))
		case !t.Kind.Valid():
			errs = append(errs, fmt.Errorf("targets[%d]: invalid kind %q (user, group, place)", i, t.Kind))
		}
		seen[t.ID] = true
	}
	return errors.Join(errs...)
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// Helper untuk build DSN Postgres
func (c *Config) PostgresDSN() string {
	sslmode := c.Database.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     "/" + c.Database.Name,
		RawQuery: url.Values{"sslmode": {sslmode}}.Encode(),
	}
	return u.String()
}
