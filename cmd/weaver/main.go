package main

import (
	"os"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "weaver",
		Short: "Weaver - turn plain-language intent into deployable workflows",
		Long: `weaver converts free-text automation requests into validated workflow
graphs. Every request produces a deployable workflow: matched from the
curated library or community catalogue when possible, repaired when
validation fails, and served from the guaranteed fallback otherwise.`,
		Version: version,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to config file")

	rootCmd.AddCommand(newGenerateCommand())
	rootCmd.AddCommand(newServeCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	if path := os.Getenv("WEAVER_CONFIG"); path != "" {
		return path
	}
	return "weaver.yaml"
}
