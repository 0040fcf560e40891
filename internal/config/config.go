package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	// BurstWindow is the coalescing interval for unreliable updates.
	// The default of 50ms matches a 20Hz tick rate.
	BurstWindow time.Duration `mapstructure:"burst_window" yaml:"burst_window"`

	// SnapshotDir holds the users.json and rooms.json state snapshots.
	SnapshotDir      string        `mapstructure:"snapshot_dir" yaml:"snapshot_dir"`
	SnapshotInterval time.Duration `mapstructure:"snapshot_interval" yaml:"snapshot_interval"`

	// WSConnLimit caps new websocket connections per minute; 0 disables.
	WSConnLimit int `mapstructure:"ws_conn_limit" yaml:"ws_conn_limit"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		LogLevel:          "info",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		BurstWindow:       50 * time.Millisecond,
		SnapshotDir:       "./state",
		SnapshotInterval:  60 * time.Second,
		WSConnLimit:       0,
	}
}
