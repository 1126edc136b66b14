package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cozy-creator/hf-mirror/internal/templates"
	"github.com/cozy-creator/hf-mirror/internal/utils/pathutil"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	FilesystemLocal = "local"
	FilesystemS3    = "s3"
)

const EnvPrefix = "HFMIRROR"

type Config struct {
	Environment string            `mapstructure:"environment"`
	Home        string            `mapstructure:"home"`
	Endpoint    string            `mapstructure:"endpoint"`
	CacheDir    string            `mapstructure:"cache_dir"`
	Token       string            `mapstructure:"hf_token"`
	Host        string            `mapstructure:"host"`
	Port        int               `mapstructure:"port"`
	Filesystem  string            `mapstructure:"filesystem_type"`
	PublishDir  string            `mapstructure:"publish_dir"`
	Downloader  *DownloaderConfig `mapstructure:"downloader"`
	Locks       *LocksConfig      `mapstructure:"locks"`
	DB          *DBConfig         `mapstructure:"db"`
	S3          *S3Config         `mapstructure:"s3"`
}

type DownloaderConfig struct {
	Binary            string        `mapstructure:"binary"`
	Python            string        `mapstructure:"python"`
	Attempts          int           `mapstructure:"attempts"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"`
	DowngradePause    time.Duration `mapstructure:"downgrade_pause"`
	ProbeAcceleration bool          `mapstructure:"probe_acceleration"`
}

type LocksConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type DBConfig struct {
	DSN string `mapstructure:"dsn"`
}

type S3Config struct {
	Folder      string `mapstructure:"folder"`
	Region      string `mapstructure:"region_name"`
	Bucket      string `mapstructure:"bucket_name"`
	AccessKey   string `mapstructure:"access_key"`
	SecretKey   string `mapstructure:"secret_key"`
	EndpointUrl string `mapstructure:"endpoint_url"`
	PublicUrl   string `mapstructure:"public_url"`
}

var config *Config

// SetDefaults registers every known key so that AutomaticEnv can resolve
// HFMIRROR_* variables for nested keys as well.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("environment", "production")
	v.SetDefault("home", DefaultHome)
	v.SetDefault("endpoint", DefaultEndpoint)
	v.SetDefault("cache_dir", DefaultCacheDir)
	v.SetDefault("hf_token", "")
	v.SetDefault("host", DefaultHost)
	v.SetDefault("port", DefaultPort)
	v.SetDefault("filesystem_type", FilesystemLocal)
	v.SetDefault("publish_dir", "")

	v.SetDefault("downloader.binary", DefaultBinary)
	v.SetDefault("downloader.python", DefaultPython)
	v.SetDefault("downloader.attempts", DefaultAttempts)
	v.SetDefault("downloader.retry_delay", DefaultRetryDelay)
	v.SetDefault("downloader.downgrade_pause", DefaultDowngradePause)
	v.SetDefault("downloader.probe_acceleration", true)

	v.SetDefault("locks.timeout", DefaultLockTimeout)
	v.SetDefault("locks.poll_interval", DefaultLockPollInterval)

	v.SetDefault("db.dsn", "")

	v.SetDefault("s3.folder", DefaultS3Folder)
	v.SetDefault("s3.region_name", "")
	v.SetDefault("s3.bucket_name", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.endpoint_url", "")
	v.SetDefault("s3.public_url", "")
}

// BindEnvs binds the environment variables that do not follow the HFMIRROR_ prefix.
func BindEnvs(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(`-`, `_`, `.`, `_`))
	v.AutomaticEnv()

	// External services (does NOT use HFMIRROR_ prefix)
	v.BindEnv("hf_token", "HF_TOKEN")
}

// InitConfig loads the process-wide config from the global viper instance.
func InitConfig() error {
	if config != nil {
		return ErrConfigAlreadyLoaded
	}

	cfg, err := LoadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	config = cfg
	return nil
}

// LoadConfig resolves the home directory, loads the .env file and the optional
// YAML config file, and decodes the result.
func LoadConfig(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	BindEnvs(v)

	home, err := getHome(v)
	if err != nil {
		return nil, err
	}
	v.Set("home", home)

	envFile, explicitEnv := resolveFile(v.GetString("env_file"), filepath.Join(home, ".env"))
	if err := loadEnvFile(envFile, explicitEnv); err != nil {
		return nil, err
	}

	configFile, explicitConfig := resolveFile(v.GetString("config_file"), filepath.Join(home, "config.yaml"))
	if err := readConfigFile(v, configFile, explicitConfig); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func GetConfig() (*Config, error) {
	if config == nil {
		return nil, ErrConfigNotLoaded
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.Home == "" {
		return ErrHomeNotSet
	}
	if c.Endpoint == "" {
		return ErrEndpointNotSet
	}
	if c.Downloader.Attempts < 1 {
		return ErrInvalidAttempts
	}

	switch c.Filesystem {
	case FilesystemLocal, FilesystemS3:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidFilesystem, c.Filesystem)
	}

	return nil
}

// DSN returns the history database DSN, defaulting to a SQLite file in the home dir.
func (c *Config) DSN() string {
	if c.DB != nil && c.DB.DSN != "" {
		return c.DB.DSN
	}

	return fmt.Sprintf("file:%s?cache=shared", filepath.Join(c.Home, historyDBFilename))
}

// CreateHomeDir creates the home directory and drops the example templates in it.
func (c *Config) CreateHomeDir() error {
	if c.Home == "" {
		return ErrHomeNotSet
	}

	if err := os.MkdirAll(c.Home, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create home directory: %w", err)
	}

	return templates.WriteExampleTemplates(c.Home)
}

func (c *Config) normalize() error {
	var err error

	c.Filesystem = strings.ToLower(c.Filesystem)
	c.Endpoint = strings.TrimSuffix(c.Endpoint, "/")

	if c.CacheDir, err = pathutil.ExpandPath(c.CacheDir); err != nil {
		return fmt.Errorf("failed to expand cache dir: %w", err)
	}

	if c.PublishDir == "" {
		c.PublishDir = filepath.Join(c.Home, "published")
	}
	if c.PublishDir, err = pathutil.ExpandPath(c.PublishDir); err != nil {
		return fmt.Errorf("failed to expand publish dir: %w", err)
	}

	if c.Downloader == nil {
		c.Downloader = &DownloaderConfig{Binary: DefaultBinary, Python: DefaultPython, Attempts: DefaultAttempts}
	}
	if c.Locks == nil {
		c.Locks = &LocksConfig{Timeout: DefaultLockTimeout, PollInterval: DefaultLockPollInterval}
	}
	if c.DB == nil {
		c.DB = &DBConfig{}
	}
	if c.S3 == nil {
		c.S3 = &S3Config{Folder: DefaultS3Folder}
	}

	return nil
}

// Returns the home directory path.
// It attempts to retrieve the home directory from the following sources in order:
// 1. The `home` flag or HFMIRROR_HOME, through viper.
// 2. The default home directory.
func getHome(v *viper.Viper) (string, error) {
	home := v.GetString("home")
	if home == "" {
		home = DefaultHome
	}

	home, err := pathutil.ExpandPath(home)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHomeExpandFailed, err)
	}

	return home, nil
}

// resolveFile returns the explicit path when set, the fallback otherwise, and
// whether the path was explicit.
func resolveFile(explicit string, fallback string) (string, bool) {
	if explicit != "" {
		if expanded, err := pathutil.ExpandPath(explicit); err == nil {
			return expanded, true
		}
		return explicit, true
	}

	return fallback, false
}

func loadEnvFile(path string, required bool) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("failed to stat env file: %w", err)
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}

	return nil
}

func readConfigFile(v *viper.Viper, path string, required bool) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("failed to stat config file: %w", err)
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config: %w", err)
	}

	return nil
}
