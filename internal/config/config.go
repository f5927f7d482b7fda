package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/opcua-alarms/internal/domain/event"
)

// Config holds the settings shared by the alarm binaries.
type Config struct {
	// ServerAddress is the gRPC address of the condition service.
	ServerAddress string `yaml:"server_addr"`
	// MetricsAddress is the HTTP address of the Prometheus endpoint, empty disables it.
	MetricsAddress string `yaml:"metrics_addr,omitempty"`
	// StateFile is the path to the JSON file storing condition snapshots.
	StateFile string `yaml:"state_file"`
	// Timeout is the duration for network operations and RPC calls.
	Timeout time.Duration `yaml:"timeout"`
	// Log configures log level and file output.
	Log LogConfig `yaml:"log,omitempty"`
	// Dispatch configures the notification queue.
	Dispatch DispatchConfig `yaml:"dispatch,omitempty"`
	// Journal configures the SQL event journal.
	Journal JournalConfig `yaml:"journal,omitempty"`
	// Redis configures the Redis stream sink, disabled without an address.
	Redis RedisConfig `yaml:"redis,omitempty"`
	// MQTT configures the MQTT sink, disabled without a broker.
	MQTT MQTTConfig `yaml:"mqtt,omitempty"`
	// Alarms lists the limit alarms served by the server.
	Alarms []AlarmConfig `yaml:"alarms,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level,omitempty"`
	// Format is console or json for stdout.
	Format string `yaml:"format,omitempty"`
	File   string `yaml:"file,omitempty"`
	// FileLevel overrides Level for the file, e.g. debug on disk and info on stdout.
	FileLevel  string `yaml:"file_level,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
	Compress   bool   `yaml:"compress,omitempty"`
}

// DispatchConfig configures the notification dispatcher.
type DispatchConfig struct {
	// QueueSize bounds the number of pending notifications.
	QueueSize int `yaml:"queue_size,omitempty"`
}

// JournalConfig configures the event journal.
type JournalConfig struct {
	// DSN selects the driver: postgres:// or postgresql:// use pgx, anything else is a SQLite path.
	DSN string `yaml:"dsn,omitempty"`
}

// RedisConfig configures the Redis stream sink.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Stream   string `yaml:"stream,omitempty"`
	// MaxLen trims the stream approximately, zero keeps everything.
	MaxLen int64 `yaml:"max_len,omitempty"`
}

// MQTTConfig configures the MQTT sink.
type MQTTConfig struct {
	Broker      string `yaml:"broker,omitempty"`
	ClientID    string `yaml:"client_id,omitempty"`
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"`
	QoS         byte   `yaml:"qos,omitempty"`
}

// AlarmConfig describes one exclusive limit alarm.
type AlarmConfig struct {
	// Name is the condition name, unique across the server.
	Name string `yaml:"name"`
	// Source is the browse name of the monitored object.
	Source string `yaml:"source"`
	// Message prefixes notification messages.
	Message string `yaml:"message,omitempty"`
	// Limits are the band thresholds; at least one is required.
	Limits LimitsConfig `yaml:"limits"`
	// Severities overrides the default band severities.
	Severities SeveritiesConfig `yaml:"severities,omitempty"`
	// Deadband is the hysteresis applied when leaving a band.
	Deadband float64 `yaml:"deadband,omitempty"`
	// ConfirmAllowed enables the Confirm step.
	ConfirmAllowed bool `yaml:"confirm_allowed,omitempty"`
}

// LimitsConfig holds optional band thresholds.
type LimitsConfig struct {
	HighHigh *float64 `yaml:"high_high,omitempty"`
	High     *float64 `yaml:"high,omitempty"`
	Low      *float64 `yaml:"low,omitempty"`
	LowLow   *float64 `yaml:"low_low,omitempty"`
}

// SeveritiesConfig holds optional band severities, zero means default.
type SeveritiesConfig struct {
	Normal   uint16 `yaml:"normal,omitempty"`
	HighHigh uint16 `yaml:"high_high,omitempty"`
	High     uint16 `yaml:"high,omitempty"`
	Low      uint16 `yaml:"low,omitempty"`
	LowLow   uint16 `yaml:"low_low,omitempty"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "ua-alarm-settings.yaml"

	// DefaultStateFilename is the default filename for condition snapshots.
	DefaultStateFilename = "ua-alarm-state.json"

	// DefaultJournalDSN is the default SQLite journal path.
	DefaultJournalDSN = "ua-alarm-journal.db"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultQueueSize is the default dispatcher queue capacity.
	DefaultQueueSize = 1024

	// DefaultRedisStream is the default stream key.
	DefaultRedisStream = "ua:events"

	// DefaultMQTTTopicPrefix is the default topic prefix.
	DefaultMQTTTopicPrefix = "ua/events"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errServerSocketRequired is returned when server address is missing.
	errServerSocketRequired = errors.New("server address must be provided")
	// errAlarmNameRequired is returned for alarms without a name.
	errAlarmNameRequired = errors.New("alarm name must be provided")
	// errAlarmSourceRequired is returned for alarms without a source.
	errAlarmSourceRequired = errors.New("alarm source must be provided")
	// errDuplicateAlarm is returned when two alarms share a name.
	errDuplicateAlarm = errors.New("duplicate alarm name")
	// errNoLimits is returned for alarms without limits.
	errNoLimits = errors.New("at least one limit must be configured")
	// errLimitOrder is returned when limits are not ordered.
	errLimitOrder = errors.New("limits must satisfy low_low < low < high < high_high")
	// errNegativeDeadband is returned for a deadband below zero.
	errNegativeDeadband = errors.New("deadband must not be negative")
	// errInvalidQoS is returned for an MQTT QoS above 2.
	errInvalidQoS = errors.New("mqtt qos must be 0, 1 or 2")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and formatting
// and fills in defaults.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.ServerAddress == "" {
		return errServerSocketRequired
	}

	if _, err := net.ResolveTCPAddr("tcp", settings.ServerAddress); err != nil {
		return fmt.Errorf("invalid server socket: %w", err)
	}

	if settings.MetricsAddress != "" {
		if _, err := net.ResolveTCPAddr("tcp", settings.MetricsAddress); err != nil {
			return fmt.Errorf("invalid metrics socket: %w", err)
		}
	}

	// Set default timeout if not specified
	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	// Set default state file if not specified
	if settings.StateFile == "" {
		settings.StateFile = DefaultStateFilename
	}

	if settings.Dispatch.QueueSize <= 0 {
		settings.Dispatch.QueueSize = DefaultQueueSize
	}

	if settings.Journal.DSN == "" {
		settings.Journal.DSN = DefaultJournalDSN
	}

	if settings.Redis.Addr != "" && settings.Redis.Stream == "" {
		settings.Redis.Stream = DefaultRedisStream
	}

	if settings.MQTT.Broker != "" {
		if settings.MQTT.TopicPrefix == "" {
			settings.MQTT.TopicPrefix = DefaultMQTTTopicPrefix
		}

		if settings.MQTT.QoS > 2 { //nolint:mnd // MQTT defines QoS 0..2.
			return errInvalidQoS
		}
	}

	return validateAlarms(settings.Alarms)
}

func validateAlarms(alarms []AlarmConfig) error {
	seen := make(map[string]struct{}, len(alarms))

	for i := range alarms {
		a := &alarms[i]

		if a.Name == "" {
			return fmt.Errorf("alarm #%d: %w", i+1, errAlarmNameRequired)
		}

		if a.Source == "" {
			return fmt.Errorf("alarm %q: %w", a.Name, errAlarmSourceRequired)
		}

		if _, ok := seen[a.Name]; ok {
			return fmt.Errorf("alarm %q: %w", a.Name, errDuplicateAlarm)
		}

		seen[a.Name] = struct{}{}

		if err := a.Limits.validate(); err != nil {
			return fmt.Errorf("alarm %q: %w", a.Name, err)
		}

		if a.Deadband < 0 {
			return fmt.Errorf("alarm %q: %w", a.Name, errNegativeDeadband)
		}

		for _, severity := range a.Severities.values() {
			if severity == 0 {
				continue
			}

			if err := event.ValidateSeverity(severity); err != nil {
				return fmt.Errorf("alarm %q severity %d: %w", a.Name, severity, err)
			}
		}
	}

	return nil
}

func (l LimitsConfig) validate() error {
	var ordered []float64

	for _, limit := range []*float64{l.LowLow, l.Low, l.High, l.HighHigh} {
		if limit != nil {
			ordered = append(ordered, *limit)
		}
	}

	if len(ordered) == 0 {
		return errNoLimits
	}

	for i := 1; i < len(ordered); i++ {
		if ordered[i-1] >= ordered[i] {
			return errLimitOrder
		}
	}

	return nil
}

func (s SeveritiesConfig) values() []uint16 {
	return []uint16{s.Normal, s.HighHigh, s.High, s.Low, s.LowLow}
}
