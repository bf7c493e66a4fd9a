package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"go-medreport-scanner/pkg/validation"
)

// Storage drivers
const (
	StorageFile   = "file"
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
)

// Permission modes
const (
	PermissionGrant  = "grant"
	PermissionDeny   = "deny"
	PermissionPrompt = "prompt"
)

type Config struct {
	Host               string        `yaml:"host"`
	Port               string        `yaml:"port"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	MaxRequestBodySize int64         `yaml:"max_request_body_size"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	Summary    SummaryConfig    `yaml:"summary"`
	Storage    StorageConfig    `yaml:"storage"`
	Camera     CameraConfig     `yaml:"camera"`
	Gallery    GalleryConfig    `yaml:"gallery"`
	Enhance    EnhanceConfig    `yaml:"enhance"`
	Share      ShareConfig      `yaml:"share"`
	Permission PermissionConfig `yaml:"permission"`
}

// SummaryConfig selects the summary backend. An empty endpoint selects the mock.
type SummaryConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

type StorageConfig struct {
	Driver        string `yaml:"driver"`
	DataDir       string `yaml:"data_dir"`
	SQLitePath    string `yaml:"sqlite_path"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

type CameraConfig struct {
	SnapshotURL string        `yaml:"snapshot_url"`
	ImagePath   string        `yaml:"image_path"`
	Timeout     time.Duration `yaml:"timeout"`
}

type GalleryConfig struct {
	Dir            string `yaml:"dir"`
	Album          string `yaml:"album"`
	AzureAccount   string `yaml:"azure_account"`
	AzureKey       string `yaml:"azure_key"`
	AzureContainer string `yaml:"azure_container"`
}

// UseAzure reports whether the gallery lives in Azure Blob Storage.
func (g GalleryConfig) UseAzure() bool {
	return g.AzureAccount != "" && g.AzureKey != "" && g.AzureContainer != ""
}

type EnhanceConfig struct {
	TargetWidth int     `yaml:"target_width"`
	Contrast    float64 `yaml:"contrast"`
	Sharpen     float64 `yaml:"sharpen"`
	Quality     float64 `yaml:"quality"`
}

type ShareConfig struct {
	OutputDir string `yaml:"output_dir"`
	FontPath  string `yaml:"font_path"`
	Title     string `yaml:"title"`
}

type PermissionConfig struct {
	Mode string `yaml:"mode"`
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	dataDir := defaultDataDir()
	return &Config{
		Host:               "0.0.0.0",
		Port:               "8080",
		RequestTimeout:     60 * time.Second,
		MaxRequestBodySize: 10 * 1024 * 1024, // 10MB
		LogLevel:           "info",
		LogFormat:          "json",
		Summary: SummaryConfig{
			Timeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Driver:     StorageFile,
			DataDir:    dataDir,
			SQLitePath: dataDir + string(os.PathSeparator) + "medscan.db",
			RedisAddr:  "localhost:6379",
		},
		Camera: CameraConfig{
			Timeout: 15 * time.Second,
		},
		Gallery: GalleryConfig{
			Album: "DEECOGS",
		},
		Enhance: EnhanceConfig{
			TargetWidth: 1200,
			Contrast:    1.2,
			Sharpen:     0.5,
			Quality:     0.8,
		},
		Share: ShareConfig{
			OutputDir: os.TempDir(),
			Title:     "Medical Report Summary",
		},
		Permission: PermissionConfig{
			Mode: PermissionGrant,
		},
	}
}

// LoadFromEnv builds the configuration from defaults, the optional YAML file
// named by MEDSCAN_CONFIG, a .env file and the process environment, in that
// order of increasing precedence.
func LoadFromEnv() (*Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("MEDSCAN_CONFIG")); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Host = getEnvOrDefault("HOST", cfg.Host)
	cfg.Port = getEnvOrDefault("PORT", cfg.Port)
	cfg.RequestTimeout = parseDurationOrDefault("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.MaxRequestBodySize = parseIntOrDefault("MAX_REQUEST_BODY_SIZE", cfg.MaxRequestBodySize)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnvOrDefault("LOG_FORMAT", cfg.LogFormat)

	cfg.Summary.Endpoint = getEnvOrDefault("SUMMARY_ENDPOINT", cfg.Summary.Endpoint)
	cfg.Summary.Timeout = parseDurationOrDefault("SUMMARY_TIMEOUT", cfg.Summary.Timeout)

	cfg.Storage.Driver = strings.ToLower(getEnvOrDefault("STORAGE_DRIVER", cfg.Storage.Driver))
	cfg.Storage.DataDir = getEnvOrDefault("DATA_DIR", cfg.Storage.DataDir)
	cfg.Storage.SQLitePath = getEnvOrDefault("SQLITE_PATH", cfg.Storage.SQLitePath)
	cfg.Storage.RedisAddr = getEnvOrDefault("REDIS_ADDR", cfg.Storage.RedisAddr)
	cfg.Storage.RedisPassword = getEnvOrDefault("REDIS_PASSWORD", cfg.Storage.RedisPassword)
	cfg.Storage.RedisDB = int(parseIntOrDefault("REDIS_DB", int64(cfg.Storage.RedisDB)))

	cfg.Camera.SnapshotURL = getEnvOrDefault("CAMERA_SNAPSHOT_URL", cfg.Camera.SnapshotURL)
	cfg.Camera.ImagePath = getEnvOrDefault("CAMERA_IMAGE_PATH", cfg.Camera.ImagePath)
	cfg.Camera.Timeout = parseDurationOrDefault("CAMERA_TIMEOUT", cfg.Camera.Timeout)

	cfg.Gallery.Dir = getEnvOrDefault("GALLERY_DIR", cfg.Gallery.Dir)
	cfg.Gallery.Album = getEnvOrDefault("GALLERY_ALBUM", cfg.Gallery.Album)
	cfg.Gallery.AzureAccount = getEnvOrDefault("AZURE_STORAGE_ACCOUNT", cfg.Gallery.AzureAccount)
	cfg.Gallery.AzureKey = getEnvOrDefault("AZURE_STORAGE_KEY", cfg.Gallery.AzureKey)
	cfg.Gallery.AzureContainer = getEnvOrDefault("AZURE_GALLERY_CONTAINER", cfg.Gallery.AzureContainer)

	cfg.Share.OutputDir = getEnvOrDefault("SHARE_OUTPUT_DIR", cfg.Share.OutputDir)
	cfg.Share.FontPath = getEnvOrDefault("PDF_FONT_PATH", cfg.Share.FontPath)
	cfg.Share.Title = getEnvOrDefault("SHARE_TITLE", cfg.Share.Title)

	cfg.Permission.Mode = strings.ToLower(getEnvOrDefault("PERMISSION_MODE", cfg.Permission.Mode))
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.Summary.Timeout <= 0 || c.Camera.Timeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, summary=%s, camera=%s)",
			c.RequestTimeout, c.Summary.Timeout, c.Camera.Timeout)
	}
	switch c.Storage.Driver {
	case StorageFile, StorageSQLite, StorageRedis:
	default:
		return fmt.Errorf("invalid STORAGE_DRIVER: %q", c.Storage.Driver)
	}
	switch c.Permission.Mode {
	case PermissionGrant, PermissionDeny, PermissionPrompt:
	default:
		return fmt.Errorf("invalid PERMISSION_MODE: %q", c.Permission.Mode)
	}
	if c.Enhance.TargetWidth <= 0 {
		return fmt.Errorf("enhance target width must be > 0 (got %d)", c.Enhance.TargetWidth)
	}
	if c.Enhance.Quality <= 0 || c.Enhance.Quality > 1 {
		return fmt.Errorf("enhance quality must be in (0, 1] (got %g)", c.Enhance.Quality)
	}
	if c.Enhance.Contrast <= 0 {
		return fmt.Errorf("enhance contrast must be > 0 (got %g)", c.Enhance.Contrast)
	}
	if c.Enhance.Sharpen < 0 {
		return fmt.Errorf("enhance sharpen must be >= 0 (got %g)", c.Enhance.Sharpen)
	}

	endpoints := validation.NewEndpointValidator()
	if err := endpoints.Validate("SUMMARY_ENDPOINT", c.Summary.Endpoint); err != nil {
		return err
	}
	if err := endpoints.Validate("CAMERA_SNAPSHOT_URL", c.Camera.SnapshotURL); err != nil {
		return err
	}
	return nil
}

func defaultDataDir() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return dir + string(os.PathSeparator) + ".medscan"
	}
	return ".medscan"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
