package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Scan provider selection modes.
const (
	ScanModeAuto    = "auto"
	ScanModeHost    = "host"
	ScanModeBrowser = "browser"
)

type Config struct {
	Env       string `validate:"required,oneof=development production test"`
	Port      int    `validate:"required,min=1,max=65535"`
	APIPrefix string

	Backend  BackendConfig
	Scan     ScanConfig
	Session  SessionConfig
	Redis    RedisConfig
	Cache    CacheConfig
	Database DatabaseConfig
	Journal  JournalConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Exports  ExportsConfig
}

// BackendConfig points the agent at the attendance backend.
type BackendConfig struct {
	BaseURL  string `validate:"required,url"`
	Email    string
	Password string
	Timeout  time.Duration
}

// ScanConfig selects and tunes the scan provider.
type ScanConfig struct {
	Mode            string `validate:"oneof=auto host browser"`
	HostBridgeURL   string
	StaticLatitude  *float64
	StaticLongitude *float64
	LocationTimeout time.Duration
	HostScanTimeout time.Duration
	ProbeTimeout    time.Duration
}

// SessionConfig tunes the attendance session controller.
type SessionConfig struct {
	StabilizationDelay time.Duration
	CameraTimeout      time.Duration
	SubmitTimeout      time.Duration
	RefreshInterval    time.Duration
	Timezone           string
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig governs timetable and summary caching.
type CacheConfig struct {
	Enabled      bool
	TimetableTTL time.Duration
	SummaryTTL   time.Duration
}

// JournalConfig toggles the local attempt journal.
type JournalConfig struct {
	Enabled bool
	Workers int
	Retries int
}

type JWTConfig struct {
	Secret      string `validate:"required"`
	Expiration  time.Duration
	APIKeyHash  string
	TokenIssuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string `validate:"omitempty,oneof=json console"`
}

// ExportsConfig controls history export storage and download links.
type ExportsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := fromViper(v)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints on the loaded configuration.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Scan.Mode == ScanModeHost && cfg.Scan.HostBridgeURL == "" {
		return errors.New("invalid configuration: SCAN_MODE=host requires HOST_BRIDGE_URL")
	}
	return nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Backend = BackendConfig{
		BaseURL:  strings.TrimRight(v.GetString("BACKEND_BASE_URL"), "/"),
		Email:    v.GetString("BACKEND_EMAIL"),
		Password: v.GetString("BACKEND_PASSWORD"),
		Timeout:  parseDuration(v.GetString("BACKEND_TIMEOUT"), 20*time.Second),
	}

	cfg.Scan = ScanConfig{
		Mode:            strings.ToLower(v.GetString("SCAN_MODE")),
		HostBridgeURL:   strings.TrimRight(v.GetString("HOST_BRIDGE_URL"), "/"),
		StaticLatitude:  optionalFloat(v, "STATIC_LATITUDE"),
		StaticLongitude: optionalFloat(v, "STATIC_LONGITUDE"),
		LocationTimeout: parseDuration(v.GetString("LOCATION_TIMEOUT"), 10*time.Second),
		HostScanTimeout: parseDuration(v.GetString("HOST_SCAN_TIMEOUT"), 20*time.Second),
		ProbeTimeout:    parseDuration(v.GetString("HOST_BRIDGE_PROBE_TIMEOUT"), 2*time.Second),
	}

	cfg.Session = SessionConfig{
		StabilizationDelay: parseDuration(v.GetString("CAMERA_STABILIZATION_DELAY"), time.Second),
		CameraTimeout:      parseDuration(v.GetString("CAMERA_TIMEOUT"), 10*time.Second),
		SubmitTimeout:      parseDuration(v.GetString("SUBMIT_TIMEOUT"), 15*time.Second),
		RefreshInterval:    parseDuration(v.GetString("REFRESH_INTERVAL"), 30*time.Second),
		Timezone:           v.GetString("TIMEZONE"),
	}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Cache = CacheConfig{
		Enabled:      v.GetBool("ENABLE_CACHE"),
		TimetableTTL: parseDuration(v.GetString("TIMETABLE_CACHE_TTL"), 10*time.Minute),
		SummaryTTL:   parseDuration(v.GetString("SUMMARY_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Journal = JournalConfig{
		Enabled: v.GetBool("ENABLE_JOURNAL"),
		Workers: v.GetInt("JOURNAL_WORKERS"),
		Retries: v.GetInt("JOURNAL_RETRIES"),
	}

	cfg.JWT = JWTConfig{
		Secret:      v.GetString("JWT_SECRET"),
		Expiration:  parseDuration(v.GetString("JWT_EXPIRATION"), 12*time.Hour),
		APIKeyHash:  v.GetString("LOCAL_API_KEY_HASH"),
		TokenIssuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Exports = ExportsConfig{
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 30*time.Minute),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8765)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("BACKEND_BASE_URL", "http://localhost:5000")
	v.SetDefault("BACKEND_EMAIL", "")
	v.SetDefault("BACKEND_PASSWORD", "")
	v.SetDefault("BACKEND_TIMEOUT", "20s")

	v.SetDefault("SCAN_MODE", ScanModeAuto)
	v.SetDefault("HOST_BRIDGE_URL", "http://127.0.0.1:8766")
	v.SetDefault("LOCATION_TIMEOUT", "10s")
	v.SetDefault("HOST_SCAN_TIMEOUT", "20s")
	v.SetDefault("HOST_BRIDGE_PROBE_TIMEOUT", "2s")

	v.SetDefault("CAMERA_STABILIZATION_DELAY", "1s")
	v.SetDefault("CAMERA_TIMEOUT", "10s")
	v.SetDefault("SUBMIT_TIMEOUT", "15s")
	v.SetDefault("REFRESH_INTERVAL", "30s")
	v.SetDefault("TIMEZONE", "Local")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "attendance_agent")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 4)
	v.SetDefault("DB_MAX_IDLE_CONNS", 2)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("TIMETABLE_CACHE_TTL", "10m")
	v.SetDefault("SUMMARY_CACHE_TTL", "5m")

	v.SetDefault("ENABLE_JOURNAL", false)
	v.SetDefault("JOURNAL_WORKERS", 1)
	v.SetDefault("JOURNAL_RETRIES", 3)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "12h")
	v.SetDefault("JWT_ISSUER", "sma-attendance-agent")
	v.SetDefault("LOCAL_API_KEY_HASH", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "30m")
}

// Location resolves the configured timezone, falling back to the host zone.
func (c SessionConfig) Location() *time.Location {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func optionalFloat(v *viper.Viper, key string) *float64 {
	if strings.TrimSpace(v.GetString(key)) == "" {
		return nil
	}
	f := v.GetFloat64(key)
	return &f
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
