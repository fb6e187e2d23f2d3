package config

import (
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const defaultConfigFile = "/config/bookreader.yaml"

type Config struct {
	// Database
	DatabaseFilePath          string        `koanf:"database_file_path" validate:"required"`
	DatabaseDebug             bool          `koanf:"database_debug"`
	DatabaseMaxRetries        int           `koanf:"database_max_retries" default:"5"`
	DatabaseBusyTimeout       time.Duration `koanf:"database_busy_timeout" default:"5s"`
	DatabaseConnectRetryCount int           `koanf:"database_connect_retry_count" default:"5"`
	DatabaseConnectRetryDelay time.Duration `koanf:"database_connect_retry_delay" default:"2s"`

	// Local API server
	ServerHost string `koanf:"server_host" default:"127.0.0.1"`
	ServerPort int    `koanf:"server_port" default:"3690"`

	// DocumentsDir is the app's private documents area. Every book file the
	// store references lives somewhere below it.
	DocumentsDir string `koanf:"documents_dir" validate:"required"`

	// Catalog API
	APIBaseURL       string        `koanf:"api_base_url" validate:"required"`
	APIToken         string        `koanf:"api_token"`
	APITimeout       time.Duration `koanf:"api_timeout" default:"30s"`
	MaxDownloadBytes int64         `koanf:"max_download_bytes" default:"268435456"`

	// Progress sync
	SyncWorkers         int           `koanf:"sync_workers" default:"1"`
	SyncQueueSize       int           `koanf:"sync_queue_size" default:"64"`
	SyncMaxAttempts     int           `koanf:"sync_max_attempts" default:"5"`
	SyncBaseDelay       time.Duration `koanf:"sync_base_delay" default:"1s"`
	SyncMaxDelay        time.Duration `koanf:"sync_max_delay" default:"1m"`
	SyncIntervalMinutes int           `koanf:"sync_interval_minutes" default:"60"`
}

// New loads the config from defaults, then the YAML file at CONFIG_FILE, then
// environment variables. Later sources win.
func New() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	k := koanf.New(".")

	configFile := os.Getenv("CONFIG_FILE")
	if configFile == "" {
		configFile = defaultConfigFile
	}
	if _, err := os.Stat(configFile); err == nil {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load config file %s", configFile)
		}
	}

	known := knownKeys()
	err := k.Load(env.Provider("", ".", func(s string) string {
		key := strings.ToLower(s)
		if _, ok := known[key]; !ok {
			return ""
		}
		return key
	}), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewForTest returns a config backed by an in-memory database.
func NewForTest() *Config {
	cfg := &Config{}
	_ = defaults.Set(cfg)
	cfg.DatabaseFilePath = ":memory:"
	cfg.DocumentsDir = os.TempDir()
	cfg.APIBaseURL = "http://127.0.0.1:0"
	cfg.SyncBaseDelay = 10 * time.Millisecond
	cfg.SyncMaxDelay = 50 * time.Millisecond
	return cfg
}

// SyncInterval returns the period of the scheduled bulk progress sync.
func (cfg *Config) SyncInterval() time.Duration {
	return time.Duration(cfg.SyncIntervalMinutes) * time.Minute
}

func (cfg *Config) validate() error {
	var missing []string
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Tag.Get("validate") != "required" {
			continue
		}
		if v.Field(i).IsZero() {
			key := field.Tag.Get("koanf")
			missing = append(missing, strings.ToUpper(key)+" ("+key+")")
		}
	}
	if len(missing) > 0 {
		return errors.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return nil
}

func knownKeys() map[string]struct{} {
	keys := map[string]struct{}{}
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		keys[t.Field(i).Tag.Get("koanf")] = struct{}{}
	}
	return keys
}
