package serv

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dosco/bsonq/core"
	"github.com/dosco/bsonq/mongodriver"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

const envPrefix = "BQ"

type Core = core.Config

// Configuration for the bsonq service
type Config struct {
	// Configuration for the compiler core
	Core `mapstructure:",squash"`

	// Configuration for the service
	Serv `mapstructure:",squash"`

	viper *viper.Viper
}

// Configuration for the service
type Serv struct {
	// Application name is sent to the database and used in log messages
	AppName string `mapstructure:"app_name"`

	// When enabled logs default to json
	Production bool `mapstructure:"production"`

	// The default path to find the config and statement files
	ConfigPath string `mapstructure:"config_path"`

	// Logging level must be one of debug, error, warn, info
	LogLevel string `mapstructure:"log_level"`

	// Logging format: "auto" (json in production), "json" or "simple"
	LogFormat string `mapstructure:"log_format"`

	// Trace commands with the global OpenTelemetry tracer provider
	EnableTracing bool `mapstructure:"enable_tracing"`

	// Database configuration
	DB Database `mapstructure:"database"`

	// Bulk write configuration
	Bulk Bulk `mapstructure:"bulk"`

	// Column discovery used by the columns command
	Introspect mongodriver.IntrospectOptions `mapstructure:"introspect"`
}

// Database configuration
type Database struct {
	// Full connection string, overrides host, port, user and password.
	// Example: mongodb://localhost:27017
	ConnString string `mapstructure:"connection_string"`

	Host     string `mapstructure:"host"`
	Port     uint16 `mapstructure:"port"`
	DBName   string `mapstructure:"dbname"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`

	// Max size of the connection pool
	PoolSize uint64 `mapstructure:"pool_size"`

	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`

	// Database ping timeout is used when connecting
	PingTimeout time.Duration `mapstructure:"ping_timeout"`

	// Set up a TLS encrypted database connection
	EnableTLS bool `mapstructure:"enable_tls"`

	ServerName string `mapstructure:"server_name"`

	// Required for TLS. Can be a file path or the contents of the PEM file
	ServerCert string `mapstructure:"server_cert"`

	// Can be a file path or the contents of the PEM file
	ClientCert string `mapstructure:"client_cert"`

	// Required with client_cert. Can be a file path or the contents of the PEM file
	ClientKey string `mapstructure:"client_key"`
}

// Bulk write configuration
type Bulk struct {
	// Number of queued writes sent in one batch
	BatchSize int `mapstructure:"batch_size"`

	// Stop a batch at the first failed write. Defaults to true
	Ordered bool `mapstructure:"ordered"`
}

// ReadInConfig reads in the config file for the environment specified in the
// GO_ENV environment variable.
func ReadInConfig(configFile string) (*Config, error) {
	return readInConfig(configFile, nil)
}

// ReadInConfigFS is the same as ReadInConfig but it also takes a filesytem as an argument
func ReadInConfigFS(configFile string, fs afero.Fs) (*Config, error) {
	return readInConfig(configFile, fs)
}

func readInConfig(configFile string, fs afero.Fs) (*Config, error) {
	cp := filepath.Dir(configFile)
	vi := newViper(cp, filepath.Base(configFile))

	if fs != nil {
		vi.SetFs(fs)
	}

	if err := vi.ReadInConfig(); err != nil {
		return nil, err
	}

	if pcf := vi.GetString("inherits"); pcf != "" {
		cf := vi.ConfigFileUsed()
		vi = newViper(cp, pcf)
		if fs != nil {
			vi.SetFs(fs)
		}

		if err := vi.ReadInConfig(); err != nil {
			return nil, err
		}

		if value := vi.GetString("inherits"); value != "" {
			return nil, fmt.Errorf("inherited config '%s' cannot itself inherit '%s'", pcf, value)
		}

		vi.SetConfigFile(cf)

		if err := vi.MergeInConfig(); err != nil {
			return nil, err
		}
	}

	config := &Config{viper: vi}
	config.ConfigPath = cp

	if err := vi.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to decode config, %v", err)
	}

	return config, nil
}

// NewConfig creates a new configuration from the provided config string
func NewConfig(config, format string) (*Config, error) {
	if format == "" {
		format = "yaml"
	}

	vi := newViperWithDefaults()
	vi.SetConfigType(format)

	if err := vi.ReadConfig(strings.NewReader(config)); err != nil {
		return nil, err
	}

	c := &Config{viper: vi}

	if err := vi.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("failed to decode config, %v", err)
	}

	return c, nil
}

// newViperWithDefaults returns a new viper instance with the default settings.
// Every setting can be overridden with a BQ_ prefixed environment variable,
// eg. BQ_DATABASE_CONNECTION_STRING.
func newViperWithDefaults() *viper.Viper {
	vi := viper.New()

	vi.SetDefault("app_name", "bsonq")
	vi.SetDefault("production", false)
	vi.SetDefault("log_level", "info")
	vi.SetDefault("log_format", "auto")
	vi.SetDefault("enable_tracing", false)

	vi.SetDefault("id_generator", "objectid")

	vi.SetDefault("database.connection_string", "")
	vi.SetDefault("database.host", "localhost")
	vi.SetDefault("database.port", 27017)
	vi.SetDefault("database.dbname", "")
	vi.SetDefault("database.user", "")
	vi.SetDefault("database.password", "")
	vi.SetDefault("database.pool_size", 10)
	vi.SetDefault("database.connect_timeout", "10s")
	vi.SetDefault("database.ping_timeout", "5s")
	vi.SetDefault("database.enable_tls", false)

	vi.SetDefault("bulk.batch_size", 500)
	vi.SetDefault("bulk.ordered", true)

	vi.SetDefault("introspect.sample_size", 100)
	vi.SetDefault("introspect.include_validators", true)

	vi.SetEnvPrefix(envPrefix)
	vi.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vi.AutomaticEnv()

	return vi
}

// newViper returns a new viper instance with the default settings
func newViper(configPath, configFile string) *viper.Viper {
	vi := newViperWithDefaults()
	vi.SetConfigName(strings.TrimSuffix(configFile, filepath.Ext(configFile)))

	if configPath == "" {
		vi.AddConfigPath("./config")
	} else {
		vi.AddConfigPath(configPath)
	}

	return vi
}

// AbsolutePath returns the absolute path of the file
func (c *Config) AbsolutePath(p string) string {
	if filepath.IsAbs(p) || c.ConfigPath == "" {
		return p
	}
	return filepath.Join(c.ConfigPath, p)
}

// ShouldUseJSONLogs returns true if logs should be in JSON format.
// Returns true if log_format is "json" or if log_format is "auto" and
// production mode is enabled.
func (c *Config) ShouldUseJSONLogs() bool {
	if c.LogFormat == "json" {
		return true
	}
	if c.LogFormat == "auto" && c.Production {
		return true
	}
	return false
}

// GetConfigName returns the name of the configuration
func GetConfigName() string {
	goEnv := strings.TrimSpace(strings.ToLower(os.Getenv("GO_ENV")))

	switch goEnv {
	case "production", "prod":
		return "prod"

	case "staging", "stage":
		return "stage"

	case "testing", "test":
		return "test"

	case "development", "dev", "":
		return "dev"

	default:
		return goEnv
	}
}
