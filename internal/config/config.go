package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the SkyAnchor backend server.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Astrometry AstrometryConfig
	Archive    ArchiveConfig
	Upload     UploadConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// AstrometryConfig configures the solve client that talks to solverd.
type AstrometryConfig struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	PollInterval time.Duration
	MaxWait      time.Duration
}

// ArchiveConfig configures optional MinIO archival of solved images.
type ArchiveConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type UploadConfig struct {
	Dir string
}

// SolverConfig holds all configuration for the solverd service.
type SolverConfig struct {
	Port         int
	BinPath      string
	UploadDir    string
	ResultsDir   string
	CPULimit     time.Duration
	Workers      int
	QueueSize    int
	APIKeyHash   string
	CleanupCron  string
	JobRetention time.Duration
}

// Load reads backend configuration from environment variables and returns
// a validated Config. Returns an error with a descriptive message if any
// required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("SKYANCHOR_PORT", 8080),
			Env:  envString("SKYANCHOR_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Astrometry: AstrometryConfig{
			BaseURL:      envString("ASTROMETRY_API_URL", "http://localhost:5000"),
			APIKey:       os.Getenv("ASTROMETRY_API_KEY"),
			Timeout:      envDuration("ASTROMETRY_TIMEOUT", 30*time.Second),
			PollInterval: envDuration("ASTROMETRY_POLL_INTERVAL", 2*time.Second),
			MaxWait:      envDuration("ASTROMETRY_MAX_WAIT", 300*time.Second),
		},
		Archive: ArchiveConfig{
			Enabled:   envBool("ARCHIVE_ENABLED", false),
			Endpoint:  envString("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    envString("MINIO_BUCKET", "skyanchor-images"),
			UseSSL:    envBool("MINIO_USE_SSL", false),
		},
		Upload: UploadConfig{
			Dir: envString("SKYANCHOR_UPLOAD_DIR", "uploads/positioning"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadSolver reads solverd configuration from environment variables.
func LoadSolver() (*SolverConfig, error) {
	cfg := &SolverConfig{
		Port:         envInt("SOLVERD_PORT", 5000),
		BinPath:      envString("SOLVERD_BIN", "/usr/local/astrometry/bin/solve-field"),
		UploadDir:    envString("SOLVERD_UPLOAD_DIR", "/tmp/astrometry_uploads"),
		ResultsDir:   envString("SOLVERD_RESULTS_DIR", "/tmp/astrometry_results"),
		CPULimit:     envDurationSecs("SOLVERD_CPULIMIT_SECS", 300*time.Second),
		Workers:      envInt("SOLVERD_WORKERS", 4),
		QueueSize:    envInt("SOLVERD_QUEUE_SIZE", 64),
		APIKeyHash:   os.Getenv("SOLVERD_API_KEY_HASH"),
		CleanupCron:  envString("SOLVERD_CLEANUP_CRON", "*/10 * * * *"),
		JobRetention: envDuration("SOLVERD_JOB_RETENTION", 24*time.Hour),
	}

	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("SOLVERD_WORKERS must be positive, got %d", cfg.Workers)
	}
	if cfg.QueueSize <= 0 {
		return nil, fmt.Errorf("SOLVERD_QUEUE_SIZE must be positive, got %d", cfg.QueueSize)
	}
	if cfg.CPULimit <= 0 {
		return nil, fmt.Errorf("SOLVERD_CPULIMIT_SECS must be positive")
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if !strings.HasPrefix(c.Astrometry.BaseURL, "http://") && !strings.HasPrefix(c.Astrometry.BaseURL, "https://") {
		return fmt.Errorf("ASTROMETRY_API_URL must start with http:// or https://, got %q", c.Astrometry.BaseURL)
	}
	if c.Astrometry.PollInterval <= 0 {
		return fmt.Errorf("ASTROMETRY_POLL_INTERVAL must be positive")
	}
	if c.Astrometry.MaxWait < c.Astrometry.PollInterval {
		return fmt.Errorf("ASTROMETRY_MAX_WAIT must be at least the poll interval")
	}

	if c.Archive.Enabled && (c.Archive.AccessKey == "" || c.Archive.SecretKey == "") {
		return fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when ARCHIVE_ENABLED is true")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
