package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile       string
	sourceDSNFlag string
	targetDSNFlag string
)

var RootCmd = &cobra.Command{
	Use:   "tablesync",
	Short: "One-way incremental bulk replicator between two SQL Server databases",
	Long: `
 _        _     _
| |_ __ _| |__ | | ___  ___ _   _ _ __   ___
| __/ _  | '_ \| |/ _ \/ __| | | | '_ \ / __|
| || (_| | |_) | |  __/\__ \ |_| | | | | (__
 \__\__,_|_.__/|_|\___||___/\__, |_| |_|\___|
                             |___/

tablesync - incremental and full-refresh replication, SQL Server to SQL Server
`,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: tablesync.yaml in the executable's directory, then in ./)")
	RootCmd.PersistentFlags().StringVar(&sourceDSNFlag, "source-dsn", "", "full source connection string (overrides config)")
	RootCmd.PersistentFlags().StringVar(&targetDSNFlag, "target-dsn", "", "full target connection string (overrides config)")

	viper.BindPFlag("databases.source.dsn", RootCmd.PersistentFlags().Lookup("source-dsn"))
	viper.BindPFlag("databases.target.dsn", RootCmd.PersistentFlags().Lookup("target-dsn"))
}

// initConfig reads in config file and ENV variables if set, mirroring
// db-pump/cmd/root.go's search order (executable directory, then cwd).
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if ex, err := os.Executable(); err == nil {
			viper.AddConfigPath(filepath.Dir(ex))
		}
		viper.AddConfigPath(".")
		viper.SetConfigName("tablesync")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}
