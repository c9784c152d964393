// Package main provides the booker command: an unattended appointment
// booking pipeline driven by per-user profile files.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/entrhq/booker/pkg/config"
)

const version = "0.1.0"

var (
	configPath string
	envFile    string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "booker",
		Short:         "Unattended appointment booking for a queue of users",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// The vault passphrase usually lives in .env next to settings.yaml.
			if err := godotenv.Load(envFile); err != nil {
				if !errors.Is(err, os.ErrNotExist) || cmd.Flags().Changed("env-file") {
					return fmt.Errorf("failed to load %s: %w", envFile, err)
				}
			}
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "settings.yaml", "path to settings file")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with the vault passphrase")

	root.AddCommand(runCmd(), validateCmd(), controlCmd(), sealCmd())
	return root
}

// loadSettings reads and validates the settings file. A missing default
// settings file yields the built-in defaults.
func loadSettings(cmd *cobra.Command) (*config.Settings, error) {
	settings, err := config.Load(configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) || cmd.Flags().Changed("config") {
			return nil, err
		}
		settings = config.DefaultSettings()
		wd, wdErr := os.Getwd()
		if wdErr != nil {
			return nil, wdErr
		}
		settings.ResolvePaths(wd)
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return settings, nil
}
