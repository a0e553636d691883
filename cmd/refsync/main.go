// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the refsync CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the refsync CLI.
var rootCmd = &cobra.Command{
	Use:   "refsync",
	Short: "Replicate arXiv papers into a reference library",
	Long: `refsync searches arXiv for papers matching a query, maps their metadata
into the reference-library schema through a declarative mapping spec, and
replicates each paper (plus its PDF) into the library service.

Use "search" to preview what a query finds and "collect" to replicate the
results.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./refsync.yaml or ~/.config/refsync/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("refsync")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "refsync"))
		}
	}

	viper.SetEnvPrefix("REFSYNC")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
