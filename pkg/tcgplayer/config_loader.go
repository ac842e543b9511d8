package tcgplayer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/joshwilhelmi/tcgplayer-go/internal/constants"
)

// fileConfig is the on-disk and environment representation of Config.
// Durations are decoded from strings like "30s" or "5m".
type fileConfig struct {
	APIEndpoint          string        `mapstructure:"api_endpoint"`
	ClientID             string        `mapstructure:"client_id"`
	ClientSecret         string        `mapstructure:"client_secret"`
	BearerToken          string        `mapstructure:"bearer_token"`
	TokenURL             string        `mapstructure:"token_url"`
	TokenRefreshMargin   time.Duration `mapstructure:"token_refresh_margin"`
	MaxRequestsPerSecond int           `mapstructure:"max_requests_per_second"`
	RetryMaxAttempts     int           `mapstructure:"retry_max_attempts"`
	RetryBaseDelay       time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay        time.Duration `mapstructure:"retry_max_delay"`
	DisableCache         bool          `mapstructure:"disable_cache"`
	CacheTTL             time.Duration `mapstructure:"cache_ttl"`
	CacheMaxSize         int           `mapstructure:"cache_max_size"`
	ConnectionPoolSize   int           `mapstructure:"connection_pool_size"`
	PerHostPoolSize      int           `mapstructure:"per_host_pool_size"`
	HTTPTimeout          time.Duration `mapstructure:"http_timeout"`
	SkipTLSVerify        bool          `mapstructure:"skip_tls_verify"`
	Debug                bool          `mapstructure:"debug"`
	UserAgent            string        `mapstructure:"user_agent"`
}

func (fc *fileConfig) toConfig() *Config {
	return &Config{
		APIEndpoint:          fc.APIEndpoint,
		ClientID:             fc.ClientID,
		ClientSecret:         fc.ClientSecret,
		BearerToken:          fc.BearerToken,
		TokenURL:             fc.TokenURL,
		TokenRefreshMargin:   fc.TokenRefreshMargin,
		MaxRequestsPerSecond: fc.MaxRequestsPerSecond,
		RetryMaxAttempts:     fc.RetryMaxAttempts,
		RetryBaseDelay:       fc.RetryBaseDelay,
		RetryMaxDelay:        fc.RetryMaxDelay,
		DisableCache:         fc.DisableCache,
		CacheTTL:             fc.CacheTTL,
		CacheMaxSize:         fc.CacheMaxSize,
		ConnectionPoolSize:   fc.ConnectionPoolSize,
		PerHostPoolSize:      fc.PerHostPoolSize,
		HTTPTimeout:          fc.HTTPTimeout,
		SkipTLSVerify:        fc.SkipTLSVerify,
		Debug:                fc.Debug,
		UserAgent:            fc.UserAgent,
	}
}

// LoadConfig builds a Config from an optional YAML file plus environment
// variables. Environment variables use the TCGPLAYER_ prefix with underscores
// (TCGPLAYER_CLIENT_ID, TCGPLAYER_CACHE_TTL, ...) and always override file
// values.
//
// When configFile is empty, "tcgplayer.yaml" is searched for in the current
// directory and in $HOME/.tcgplayer; a missing file is not an error.
func LoadConfig(configFile string) (*Config, error) {
	v := newConfigViper()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("tcgplayer")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".tcgplayer"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	return unmarshalConfig(v)
}

// LoadConfigFromEnv builds a Config from TCGPLAYER_* environment variables
// only, ignoring any config file on disk.
func LoadConfigFromEnv() (*Config, error) {
	return unmarshalConfig(newConfigViper())
}

func newConfigViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("TCGPLAYER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("api_endpoint", constants.DefaultAPIEndpoint)
	v.SetDefault("max_requests_per_second", constants.DefaultRequestsPerSecond)
	v.SetDefault("retry_max_attempts", constants.DefaultRetryMaxAttempts)
	v.SetDefault("retry_base_delay", constants.DefaultRetryBaseDelay)
	v.SetDefault("retry_max_delay", constants.DefaultRetryMaxDelay)
	v.SetDefault("cache_ttl", constants.DefaultCacheTTL)
	v.SetDefault("cache_max_size", constants.DefaultCacheSize)
	v.SetDefault("connection_pool_size", constants.DefaultConnectionPoolSize)
	v.SetDefault("per_host_pool_size", constants.DefaultPerHostPoolSize)
	v.SetDefault("http_timeout", constants.DefaultHTTPTimeout)

	// AutomaticEnv only resolves keys viper already knows about, so bind the
	// credential keys that have no defaults.
	for _, key := range []string{"client_id", "client_secret", "bearer_token", "token_url", "user_agent", "debug", "disable_cache", "token_refresh_margin", "skip_tls_verify"} {
		_ = v.BindEnv(key)
	}

	return v
}

func unmarshalConfig(v *viper.Viper) (*Config, error) {
	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return fc.toConfig(), nil
}

// starterConfig mirrors fileConfig for writing. Durations are rendered as
// strings ("30s", "5m") so the generated file stays human-editable.
type starterConfig struct {
	APIEndpoint          string `yaml:"api_endpoint"`
	ClientID             string `yaml:"client_id"`
	ClientSecret         string `yaml:"client_secret"`
	MaxRequestsPerSecond int    `yaml:"max_requests_per_second"`
	RetryMaxAttempts     int    `yaml:"retry_max_attempts"`
	RetryBaseDelay       string `yaml:"retry_base_delay"`
	RetryMaxDelay        string `yaml:"retry_max_delay"`
	DisableCache         bool   `yaml:"disable_cache"`
	CacheTTL             string `yaml:"cache_ttl"`
	CacheMaxSize         int    `yaml:"cache_max_size"`
	ConnectionPoolSize   int    `yaml:"connection_pool_size"`
	PerHostPoolSize      int    `yaml:"per_host_pool_size"`
	HTTPTimeout          string `yaml:"http_timeout"`
	Debug                bool   `yaml:"debug"`
}

// WriteDefaultConfig writes a starter config file with default values to
// path, creating parent directories as needed. Credentials are left blank.
func WriteDefaultConfig(path string) error {
	starter := starterConfig{
		APIEndpoint:          constants.DefaultAPIEndpoint,
		MaxRequestsPerSecond: constants.DefaultRequestsPerSecond,
		RetryMaxAttempts:     constants.DefaultRetryMaxAttempts,
		RetryBaseDelay:       constants.DefaultRetryBaseDelay.String(),
		RetryMaxDelay:        constants.DefaultRetryMaxDelay.String(),
		CacheTTL:             constants.DefaultCacheTTL.String(),
		CacheMaxSize:         constants.DefaultCacheSize,
		ConnectionPoolSize:   constants.DefaultConnectionPoolSize,
		PerHostPoolSize:      constants.DefaultPerHostPoolSize,
		HTTPTimeout:          constants.DefaultHTTPTimeout.String(),
	}

	data, err := yaml.Marshal(&starter)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, constants.ConfigDirPerm); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, constants.ConfigFilePerm); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
