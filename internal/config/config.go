package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

//go:embed default.toml
var defaultTOML []byte

// EnvPrefix prefixes environment overrides, e.g. TOKPOST_UPLOAD_RETRIES.
const EnvPrefix = "TOKPOST"

// Success policies for a post click that no indicator confirms.
const (
	SuccessPolicyPresume = "presume"
	SuccessPolicyStrict  = "strict"
)

// Config holds all application configuration. It is built once at start-up
// and handed to every component constructor; nothing mutates it afterwards.
type Config struct {
	Version   int             `mapstructure:"version" toml:"version"`
	Paths     PathsConfig     `mapstructure:"paths" toml:"paths"`
	Browser   BrowserConfig   `mapstructure:"browser" toml:"browser"`
	Proxy     ProxyConfig     `mapstructure:"proxy" toml:"proxy"`
	Timeouts  TimeoutsConfig  `mapstructure:"timeouts" toml:"timeouts"`
	Upload    UploadConfig    `mapstructure:"upload" toml:"upload"`
	Batch     BatchConfig     `mapstructure:"batch" toml:"batch"`
	Auth      AuthConfig      `mapstructure:"auth" toml:"auth"`
	Logger    LoggerConfig    `mapstructure:"logger" toml:"logger"`
	Selectors SelectorsConfig `mapstructure:"selectors" toml:"selectors"`
}

type PathsConfig struct {
	Main   string `mapstructure:"main" toml:"main"`
	Login  string `mapstructure:"login" toml:"login"`
	Upload string `mapstructure:"upload" toml:"upload"`
}

type BrowserConfig struct {
	Headless bool `mapstructure:"headless" toml:"headless"`
	// KeepOpen leaves the browser running after a batch finishes.
	KeepOpen bool `mapstructure:"keep_open" toml:"keep_open"`
	// RemoteURL attaches to an already running browser's DevTools endpoint.
	RemoteURL string `mapstructure:"remote_url" toml:"remote_url"`
	UserAgent string `mapstructure:"user_agent" toml:"user_agent"`
	// UserDataDir runs the browser in a persistent profile. Empty means a
	// fresh temporary profile per run.
	UserDataDir string `mapstructure:"user_data_dir" toml:"user_data_dir"`
}

type ProxyConfig struct {
	Host         string        `mapstructure:"host" toml:"host"`
	Port         string        `mapstructure:"port" toml:"port"`
	User         string        `mapstructure:"user" toml:"user"`
	Pass         string        `mapstructure:"pass" toml:"pass"`
	CheckURL     string        `mapstructure:"check_url" toml:"check_url"`
	CheckTimeout time.Duration `mapstructure:"check_timeout" toml:"check_timeout"`
	// ExpectHostIP requires the check response to echo the proxy host.
	ExpectHostIP bool `mapstructure:"expect_host_ip" toml:"expect_host_ip"`
}

// Enabled reports whether a proxy is configured.
func (p ProxyConfig) Enabled() bool {
	return p.Host != ""
}

// HasAuth reports whether the proxy needs credentials.
func (p ProxyConfig) HasAuth() bool {
	return p.User != "" && p.Pass != ""
}

// Address returns host:port.
func (p ProxyConfig) Address() string {
	return net.JoinHostPort(p.Host, p.Port)
}

type TimeoutsConfig struct {
	// Implicit bounds lookups of elements expected to be on the page already.
	Implicit time.Duration `mapstructure:"implicit" toml:"implicit"`
	// Explicit bounds navigation and other page-level waits.
	Explicit         time.Duration `mapstructure:"explicit" toml:"explicit"`
	UploadProcessing time.Duration `mapstructure:"upload_processing" toml:"upload_processing"`
	ProcessingStart  time.Duration `mapstructure:"processing_start" toml:"processing_start"`
	Login            time.Duration `mapstructure:"login" toml:"login"`
	PostEnabled      time.Duration `mapstructure:"post_enabled" toml:"post_enabled"`
	PostConfirmation time.Duration `mapstructure:"post_confirmation" toml:"post_confirmation"`
	SuccessIndicator time.Duration `mapstructure:"success_indicator" toml:"success_indicator"`
	PollInterval     time.Duration `mapstructure:"poll_interval" toml:"poll_interval"`
	MentionLookup    time.Duration `mapstructure:"mention_lookup" toml:"mention_lookup"`
	HashtagWait      time.Duration `mapstructure:"hashtag_wait" toml:"hashtag_wait"`
	Settle           time.Duration `mapstructure:"settle" toml:"settle"`
}

type UploadConfig struct {
	MaxCaptionLength   int      `mapstructure:"max_caption_length" toml:"max_caption_length"`
	SupportedFileTypes []string `mapstructure:"supported_file_types" toml:"supported_file_types"`
	// Retries is the number of extra attempts after the first one fails.
	Retries         int    `mapstructure:"retries" toml:"retries"`
	SuccessPolicy   string `mapstructure:"success_policy" toml:"success_policy"`
	Comment         bool   `mapstructure:"comment" toml:"comment"`
	Stitch          bool   `mapstructure:"stitch" toml:"stitch"`
	Duet            bool   `mapstructure:"duet" toml:"duet"`
	SkipSplitWindow bool   `mapstructure:"skip_split_window" toml:"skip_split_window"`
}

// Supports reports whether ext (with or without the dot) is an accepted
// video extension.
func (u UploadConfig) Supports(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, t := range u.SupportedFileTypes {
		if strings.ToLower(t) == ext {
			return true
		}
	}
	return false
}

type BatchConfig struct {
	// UploadsPerMinute paces consecutive uploads. Zero disables pacing.
	UploadsPerMinute float64 `mapstructure:"uploads_per_minute" toml:"uploads_per_minute"`
	Cron             string  `mapstructure:"cron" toml:"cron"`
	Timezone         string  `mapstructure:"timezone" toml:"timezone"`
	SaveReports      bool    `mapstructure:"save_reports" toml:"save_reports"`
}

type AuthConfig struct {
	CookieOfInterest string `mapstructure:"cookie_of_interest" toml:"cookie_of_interest"`
	CookieDomain     string `mapstructure:"cookie_domain" toml:"cookie_domain"`
}

type LoggerConfig struct {
	Level       string `mapstructure:"level" toml:"level"`
	Format      string `mapstructure:"format" toml:"format"`
	ServiceName string `mapstructure:"service_name" toml:"service_name"`
	LogFile     string `mapstructure:"log_file" toml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" toml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" toml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" toml:"max_age"`
	Compress    bool   `mapstructure:"compress" toml:"compress"`
	AddSource   bool   `mapstructure:"add_source" toml:"add_source"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	cfg, err := FromViper(newViper())
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// newViper returns a viper instance seeded with the embedded defaults and
// wired for environment overrides.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("toml")
	if err := v.ReadConfig(bytes.NewReader(defaultTOML)); err != nil {
		panic(fmt.Sprintf("config: embedded defaults do not parse: %v", err))
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// FromViper decodes and validates a Config from v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "tokpost"), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the directory for run reports and other artifacts.
func CacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "tokpost"), nil
}

// Load reads config from path, or from ConfigPath when path is empty.
// A missing file is not an error: defaults and environment overrides apply.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	v := newViper()
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	return FromViper(v)
}

// Save writes config to path, or to ConfigPath when path is empty.
func (c *Config) Save(path string) error {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}

// Validate checks the values that components rely on.
func (c *Config) Validate() error {
	if c.Paths.Upload == "" || c.Paths.Main == "" {
		return fmt.Errorf("paths.main and paths.upload are required")
	}
	if c.Upload.MaxCaptionLength <= 0 {
		return fmt.Errorf("upload.max_caption_length must be a positive integer")
	}
	if c.Upload.Retries < 0 {
		return fmt.Errorf("upload.retries must not be negative")
	}
	switch c.Upload.SuccessPolicy {
	case SuccessPolicyPresume, SuccessPolicyStrict:
	default:
		return fmt.Errorf("upload.success_policy must be %q or %q, got %q",
			SuccessPolicyPresume, SuccessPolicyStrict, c.Upload.SuccessPolicy)
	}
	if len(c.Upload.SupportedFileTypes) == 0 {
		return fmt.Errorf("upload.supported_file_types must not be empty")
	}
	if c.Timeouts.PollInterval <= 0 {
		return fmt.Errorf("timeouts.poll_interval must be positive")
	}
	if c.Timeouts.Explicit <= 0 || c.Timeouts.Implicit <= 0 || c.Timeouts.UploadProcessing <= 0 {
		return fmt.Errorf("timeouts.implicit, timeouts.explicit and timeouts.upload_processing must be positive")
	}
	if c.Batch.UploadsPerMinute < 0 {
		return fmt.Errorf("batch.uploads_per_minute must not be negative")
	}
	if c.Auth.CookieOfInterest == "" {
		return fmt.Errorf("auth.cookie_of_interest is required")
	}
	if c.Proxy.Enabled() && c.Proxy.Port == "" {
		return fmt.Errorf("proxy.port is required when proxy.host is set")
	}
	return nil
}
