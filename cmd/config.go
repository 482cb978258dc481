package cmd

import (
	"fmt"

	"github.com/spf13/viper"
)

// DatabaseConfig describes one connection role (source or target). DSN, if
// set, overrides Host/Port/Database/User/Password entirely.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DSN      string `mapstructure:"dsn"`
}

// DatabasesConfig generalizes db-pump's DBConfig list (one active: true
// entry) into named roles: tablesync always needs exactly one source and
// one target (spec.md §1), so role names replace the active-flag search.
type DatabasesConfig struct {
	Source DatabaseConfig `mapstructure:"source"`
	Target DatabaseConfig `mapstructure:"target"`
}

// GetDatabasesConfig reads the `databases:` block from the layered config.
func GetDatabasesConfig() (*DatabasesConfig, error) {
	var cfg DatabasesConfig
	if err := viper.UnmarshalKey("databases", &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse databases config: %w", err)
	}
	return &cfg, nil
}
