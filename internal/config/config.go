package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Challenge ChallengeConfig `mapstructure:"challenge"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Checklist ChecklistConfig `mapstructure:"checklist"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Version     string `mapstructure:"version"`
	Debug       bool   `mapstructure:"debug"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	HTTPPort        int           `mapstructure:"http_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

type RedisConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	TimeFormat string `mapstructure:"time_format"`
}

// UpstreamConfig describes the municipal REST API this gateway fronts.
type UpstreamConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIPrefix string        `mapstructure:"api_prefix"`
	AssetBase string        `mapstructure:"asset_base"`
	Timeout   time.Duration `mapstructure:"timeout"`
	AuthToken string        `mapstructure:"auth_token"`

	// ReadEndpoints is the ordered candidate list for permission-gated
	// report reads. Different deployment roles expose the same data under
	// different routes; order matters for the 403 fallback.
	ReadEndpoints []string `mapstructure:"read_endpoints"`
}

type ChallengeConfig struct {
	TTL          time.Duration `mapstructure:"ttl"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"`
	ImageWidth   int           `mapstructure:"image_width"`
	ImageHeight  int           `mapstructure:"image_height"`
	NoiseStrokes int           `mapstructure:"noise_strokes"`
}

type UploadConfig struct {
	ChunkSize int64         `mapstructure:"chunk_size"`
	Timeout   time.Duration `mapstructure:"timeout"`

	// PlaybackProbePaths are tried in order when resolving a playback URL
	// for an uploaded video; all probe failures are swallowed.
	PlaybackProbePaths []string `mapstructure:"playback_probe_paths"`
}

type ChecklistConfig struct {
	StateTTL time.Duration `mapstructure:"state_ttl"`
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/civigate")
	}

	v.SetEnvPrefix("CIVIGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind nested env vars explicitly (viper doesn't auto-bind nested struct fields)
	v.BindEnv("redis.host", "CIVIGATE_REDIS_HOST")
	v.BindEnv("redis.port", "CIVIGATE_REDIS_PORT")
	v.BindEnv("redis.password", "CIVIGATE_REDIS_PASSWORD")
	v.BindEnv("database.host", "CIVIGATE_DATABASE_HOST")
	v.BindEnv("database.port", "CIVIGATE_DATABASE_PORT")
	v.BindEnv("database.user", "CIVIGATE_DATABASE_USER")
	v.BindEnv("database.password", "CIVIGATE_DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "CIVIGATE_DATABASE_DBNAME")
	v.BindEnv("database.sslmode", "CIVIGATE_DATABASE_SSLMODE")
	v.BindEnv("upstream.base_url", "CIVIGATE_UPSTREAM_BASE_URL")
	v.BindEnv("upstream.api_prefix", "CIVIGATE_UPSTREAM_API_PREFIX")
	v.BindEnv("upstream.asset_base", "CIVIGATE_UPSTREAM_ASSET_BASE")
	v.BindEnv("upstream.auth_token", "CIVIGATE_UPSTREAM_AUTH_TOKEN")
	v.BindEnv("app.environment", "CIVIGATE_APP_ENVIRONMENT")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional; env vars and defaults can carry a deployment.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadDefault loads configuration with default path
func LoadDefault() (*Config, error) {
	return Load("")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "civigate")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "1.0.0")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "civigate")
	v.SetDefault("database.dbname", "civigate")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "civigate:")

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"})
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.requests_per_minute", 120)

	v.SetDefault("upstream.api_prefix", "/api/v1")
	v.SetDefault("upstream.timeout", 30*time.Second)
	v.SetDefault("upstream.read_endpoints", []string{
		"/reports/my",
		"/reports",
		"/web/reports",
		"/mobile/reports",
	})

	v.SetDefault("challenge.ttl", 10*time.Minute)
	v.SetDefault("challenge.retry_delay", time.Second)
	v.SetDefault("challenge.image_width", 180)
	v.SetDefault("challenge.image_height", 60)
	v.SetDefault("challenge.noise_strokes", 24)

	v.SetDefault("upload.chunk_size", int64(2<<20))
	v.SetDefault("upload.timeout", 2*time.Minute)
	v.SetDefault("upload.playback_probe_paths", []string{
		"/media/%s/info",
		"/videos/%s/meta",
		"/media/%s/play",
		"/videos/%s/stream",
	})

	v.SetDefault("checklist.state_ttl", 72*time.Hour)
}
