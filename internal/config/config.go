package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
)

type Config struct {
	Primary    Primary          `koanf:"primary"`
	Paths      PathsConfig      `koanf:"paths"`
	Transport  TransportConfig  `koanf:"transport"`
	Session    SessionConfig    `koanf:"session"`
	Correlator CorrelatorConfig `koanf:"correlator"`
	Database   DatabaseConfig   `koanf:"database"`
	Listener   ListenerConfig   `koanf:"listener"`
	Logger     LoggerConfig     `koanf:"logger"`
}

type Primary struct {
	Env    string `koanf:"env" validate:"required"`
	Market string `koanf:"market" validate:"required"`
	Site   string `koanf:"site" validate:"required"`
}

type PathsConfig struct {
	CommonFixtures string   `koanf:"common_fixtures" validate:"required"`
	TestData       []string `koanf:"test_data" validate:"required,min=1"`
	SessionKeys    string   `koanf:"session_keys" validate:"required"`
	Cache          string   `koanf:"cache" validate:"required"`
	Store          string   `koanf:"store" validate:"required"`
	RunState       string   `koanf:"run_state" validate:"required"`
	RecordCSV      string   `koanf:"record_csv"`
	OpenAPISpec    string   `koanf:"openapi_spec"`
}

type TransportConfig struct {
	Timeout        time.Duration `koanf:"timeout" validate:"required"`
	MaxRetries     int           `koanf:"max_retries" validate:"min=1"`
	RetryBaseDelay time.Duration `koanf:"retry_base_delay"`
	ClientCertFile string        `koanf:"client_cert_file"`
	ClientKeyFile  string        `koanf:"client_key_file"`
	CAFile         string        `koanf:"ca_file"`
}

// MutualTLS reports whether a client certificate is configured.
func (c TransportConfig) MutualTLS() bool {
	return c.ClientCertFile != "" || c.ClientKeyFile != ""
}

type SessionConfig struct {
	Allowance      time.Duration `koanf:"allowance" validate:"required"`
	Lifetime       time.Duration `koanf:"lifetime" validate:"required"`
	ExpectedStatus int           `koanf:"expected_status" validate:"required"`
	SessionField   string        `koanf:"session_field" validate:"required"`
}

type CorrelatorConfig struct {
	Attempts   int           `koanf:"attempts" validate:"required,min=1"`
	Interval   time.Duration `koanf:"interval" validate:"required"`
	MatchField string        `koanf:"match_field" validate:"required"`
	IDField    string        `koanf:"id_field" validate:"required"`
}

type DatabaseConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	User            string        `koanf:"user"`
	Password        string        `koanf:"password"`
	Name            string        `koanf:"name"`
	SSLMode         string        `koanf:"ssl_mode"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
}

type ListenerConfig struct {
	Port          string        `koanf:"port" validate:"required"`
	ReadTimeout   time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout  time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout   time.Duration `koanf:"idle_timeout" validate:"required"`
	Retention     time.Duration `koanf:"retention" validate:"required"`
	SweepInterval time.Duration `koanf:"sweep_interval" validate:"required"`
}

type LoggerConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Defaults holds the values used when neither the config file nor the
// environment sets a key.
var Defaults = map[string]any{
	"primary.env":                 "staging",
	"primary.market":              "vodafoneGHA",
	"primary.site":                "openapi",
	"paths.common_fixtures":       "testdata/fixtures/common.json",
	"paths.test_data":             []string{"testdata/environment.json"},
	"paths.session_keys":          "output/session-keys.json",
	"paths.cache":                 "output/cache.json",
	"paths.store":                 "output/store.json",
	"paths.run_state":             "output/run-state.json",
	"transport.timeout":           "30s",
	"transport.max_retries":       1,
	"transport.retry_base_delay":  "500ms",
	"session.allowance":           "2h",
	"session.lifetime":            "24h",
	"session.expected_status":     200,
	"session.session_field":       "output_SessionID",
	"correlator.attempts":         15,
	"correlator.interval":         "5s",
	"correlator.match_field":      "input_OriginalConversationID",
	"correlator.id_field":         "output_ConversationID",
	"database.port":               5432,
	"database.ssl_mode":           "disable",
	"database.max_open_conns":     5,
	"database.max_idle_conns":     1,
	"database.conn_max_lifetime":  "1h",
	"database.conn_max_idle_time": "30m",
	"listener.port":               "8090",
	"listener.read_timeout":       "10s",
	"listener.write_timeout":      "10s",
	"listener.idle_timeout":       "60s",
	"listener.retention":          "1h",
	"listener.sweep_interval":     "1m",
	"logger.level":                "info",
	"logger.format":               "text",
}

func LoadConfig() (*Config, error) {
	return Load(os.Getenv("FLOW_CONFIG_FILE"))
}

// Load builds the configuration from defaults, an optional YAML file and
// FLOW_ prefixed environment variables, in that order of precedence.
func Load(path string) (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults, "."), nil); err != nil {
		logger.Error("failed to load defaults", "error", err)
		return nil, err
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			logger.Error("failed to load config file", "path", path, "error", err)
			return nil, err
		}
	}

	err := k.Load(env.Provider("FLOW_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "FLOW_")),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	mainConfig := &Config{}

	err = k.Unmarshal("", mainConfig)
	if err != nil {
		logger.Error("could not unmarshal main config", "error", err)
		return nil, err
	}

	validate := validator.New()

	err = validate.Struct(mainConfig)
	if err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	return mainConfig, nil
}
