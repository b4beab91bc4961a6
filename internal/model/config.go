package model

// Config holds engine tunables loaded from config.yaml. User-facing schedule
// settings live in GlobalSettings, not here.
type Config struct {
	Daemon  DaemonConfig  `yaml:"daemon"`
	Monitor MonitorConfig `yaml:"monitor"`
	Notify  NotifyConfig  `yaml:"notify"`
	Logging LoggingConfig `yaml:"logging"`
}

type DaemonConfig struct {
	TickIntervalSec    int `yaml:"tick_interval_sec"`
	ShutdownTimeoutSec int `yaml:"shutdown_timeout_sec"`
}

type MonitorConfig struct {
	// CaseInsensitive overrides the platform default for signature matching.
	CaseInsensitive *bool `yaml:"case_insensitive,omitempty"`
}

type NotifyConfig struct {
	// TimeoutSec bounds a single delivery attempt so a stuck notifier cannot
	// stall the tick loop.
	TimeoutSec int `yaml:"timeout_sec"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func DefaultConfig() Config {
	return Config{
		Daemon:  DaemonConfig{TickIntervalSec: 10, ShutdownTimeoutSec: 30},
		Notify:  NotifyConfig{TimeoutSec: 10},
		Logging: LoggingConfig{Level: "info"},
	}
}
