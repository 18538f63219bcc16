package startup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"image-browser/internal/logging"
	"image-browser/internal/media"
	"image-browser/internal/metacache"
	"image-browser/internal/workers"
)

// Config holds all application configuration
type Config struct {
	ImageRoot         string
	CacheDir          string
	Port              string
	Thumbnail         media.ThumbnailConfig
	MetadataRetention time.Duration
	VipsEnabled       bool
	Workers           int
	WatchEnabled      bool
	LogThumbnails     bool
	LogHealthChecks   bool
	MetricsInterval   time.Duration
	CORSOrigins       []string
}

// FileConfig is the optional TOML file named by CONFIG_FILE. Unset keys
// keep their defaults; environment variables override the file.
type FileConfig struct {
	ImageRoot         string   `toml:"image_root"`
	CacheDir          string   `toml:"cache_dir"`
	Port              string   `toml:"port"`
	MetadataRetention string   `toml:"metadata_cache_retention"`
	VipsEnabled       *bool    `toml:"vips_enabled"`
	Workers           int      `toml:"workers"`
	Watch             *bool    `toml:"watch"`
	CORSOrigins       []string `toml:"cors_allowed_origins"`

	Thumbnail struct {
		Size    int    `toml:"size"`
		Quality int    `toml:"quality"`
		Format  string `toml:"format"`
	} `toml:"thumbnail"`

	Logging struct {
		Thumbnails   *bool `toml:"thumbnails"`
		HealthChecks *bool `toml:"health_checks"`
	} `toml:"logging"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		ImageRoot:         "/images",
		CacheDir:          "/cache",
		Port:              "8080",
		Thumbnail:         media.DefaultThumbnailConfig(),
		MetadataRetention: metacache.DefaultRetention,
		VipsEnabled:       true,
		WatchEnabled:      true,
		LogThumbnails:     false,
		LogHealthChecks:   true,
		MetricsInterval:   time.Minute,
	}
}

// ReadFileConfig decodes a TOML config file.
func ReadFileConfig(path string) (*FileConfig, error) {
	var fc FileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}
	return &fc, nil
}

// apply copies the keys set in fc onto c.
func (fc *FileConfig) apply(c *Config) {
	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setBool := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	setString(&c.ImageRoot, fc.ImageRoot)
	setString(&c.CacheDir, fc.CacheDir)
	setString(&c.Port, fc.Port)
	setString(&c.Thumbnail.Format, fc.Thumbnail.Format)
	if fc.Thumbnail.Size != 0 {
		c.Thumbnail.Size = fc.Thumbnail.Size
	}
	if fc.Thumbnail.Quality != 0 {
		c.Thumbnail.Quality = fc.Thumbnail.Quality
	}
	if fc.MetadataRetention != "" {
		c.MetadataRetention = parseDuration("metadata_cache_retention", fc.MetadataRetention, c.MetadataRetention)
	}
	if fc.Workers != 0 {
		c.Workers = fc.Workers
	}
	if len(fc.CORSOrigins) > 0 {
		c.CORSOrigins = fc.CORSOrigins
	}
	setBool(&c.VipsEnabled, fc.VipsEnabled)
	setBool(&c.WatchEnabled, fc.Watch)
	setBool(&c.LogThumbnails, fc.Logging.Thumbnails)
	setBool(&c.LogHealthChecks, fc.Logging.HealthChecks)
}

// ReadConfig builds the configuration from defaults, then CONFIG_FILE,
// then environment variables. It only validates; directories are not
// touched.
func ReadConfig() (*Config, error) {
	c := DefaultConfig()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		fc, err := ReadFileConfig(path)
		if err != nil {
			return nil, err
		}
		fc.apply(&c)
	}

	c.ImageRoot = getEnv("IMAGE_ROOT", c.ImageRoot)
	c.CacheDir = getEnv("CACHE_DIR", c.CacheDir)
	c.Port = getEnv("PORT", c.Port)
	c.Thumbnail.Size = getEnvInt("THUMBNAIL_SIZE", c.Thumbnail.Size)
	c.Thumbnail.Quality = getEnvInt("THUMBNAIL_QUALITY", c.Thumbnail.Quality)
	c.Thumbnail.Format = getEnv("THUMBNAIL_FORMAT", c.Thumbnail.Format)
	if v := os.Getenv("METADATA_CACHE_RETENTION"); v != "" {
		c.MetadataRetention = parseDuration("METADATA_CACHE_RETENTION", v, c.MetadataRetention)
	}
	c.VipsEnabled = getEnvBool("VIPS_ENABLED", c.VipsEnabled)
	c.WatchEnabled = getEnvBool("WATCH_ENABLED", c.WatchEnabled)
	c.LogThumbnails = getEnvBool("LOG_THUMBNAILS", c.LogThumbnails)
	c.LogHealthChecks = getEnvBool("LOG_HEALTH_CHECKS", c.LogHealthChecks)
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}
	c.Workers = getEnvInt("IMAGE_WORKERS", c.Workers)
	if c.Workers <= 0 {
		c.Workers = workers.ForCPU(0)
	}

	if err := c.Thumbnail.Validate(); err != nil {
		return nil, fmt.Errorf("invalid thumbnail configuration: %w", err)
	}
	if c.MetadataRetention <= 0 {
		return nil, fmt.Errorf("metadata cache retention must be positive, got %v", c.MetadataRetention)
	}

	var err error
	if c.ImageRoot, err = filepath.Abs(c.ImageRoot); err != nil {
		return nil, fmt.Errorf("failed to resolve image root path: %w", err)
	}
	if c.CacheDir, err = filepath.Abs(c.CacheDir); err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory path: %w", err)
	}
	return &c, nil
}

// LoadConfig loads .env, reads the configuration, logs it and prepares
// the directories. The image root only warns when missing; the cache
// directory must be writable.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.Warn("Failed to load .env: %v", err)
	}

	c, err := ReadConfig()
	if err != nil {
		return nil, err
	}

	section("CONFIGURATION")
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		logging.Info("  CONFIG_FILE:              %s", path)
	}
	logging.Info("  IMAGE_ROOT:               %s", c.ImageRoot)
	logging.Info("  CACHE_DIR:                %s", c.CacheDir)
	logging.Info("  PORT:                     %s", c.Port)
	logging.Info("  THUMBNAIL_SIZE:           %d", c.Thumbnail.Size)
	logging.Info("  THUMBNAIL_QUALITY:        %d", c.Thumbnail.Quality)
	logging.Info("  THUMBNAIL_FORMAT:         %s", c.Thumbnail.Format)
	logging.Info("  METADATA_CACHE_RETENTION: %v", c.MetadataRetention)
	logging.Info("  VIPS_ENABLED:             %v", c.VipsEnabled)
	logging.Info("  WATCH_ENABLED:            %v", c.WatchEnabled)
	logging.Info("  IMAGE_WORKERS:            %d", c.Workers)
	logging.Info("  LOG_THUMBNAILS:           %v", c.LogThumbnails)
	logging.Info("  LOG_HEALTH_CHECKS:        %v", c.LogHealthChecks)
	logging.Info("  LOG_LEVEL:                %s", logging.GetLevel())
	if len(c.CORSOrigins) > 0 {
		logging.Info("  CORS_ALLOWED_ORIGINS:     %s", strings.Join(c.CORSOrigins, ", "))
	}

	section("DIRECTORY SETUP")
	if err := ensureDirectory(c.ImageRoot, "image"); err != nil {
		logging.Warn("  Image root issue: %v", err)
	} else if logging.IsDebugEnabled() {
		images, dirs := countImages(c.ImageRoot)
		logging.Debug("    Top level: %d images, %d directories", images, dirs)
	}
	if err := ensureDirectory(c.CacheDir, "cache"); err != nil {
		return nil, fmt.Errorf("cache directory error: %w", err)
	}
	if err := testWriteAccess(c.CacheDir); err != nil {
		return nil, fmt.Errorf("cache directory is not writable: %w", err)
	}
	ok("Cache directory is writable")

	return c, nil
}

// splitList splits a comma-separated value, dropping empty items.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func parseDuration(key, value string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return d
}
