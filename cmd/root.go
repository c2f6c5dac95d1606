// Package cmd provides the command-line interface for WinForge with
// configuration management supporting multiple configuration sources.
//
// Configuration System:
//
//	The CLI supports flexible configuration through multiple sources with clear precedence:
//	1. Command-line flags (--config, --strict, etc.) - highest priority
//	2. WINFORGE_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (WINFORGE_SERVER_PORT, etc.)
//	4. Configuration files (.winforge.yml) - lowest priority
//
// Environment Variables:
//
//	WINFORGE_CONFIG_FILE: Path to custom configuration file
//	WINFORGE_SERVER_PORT: Override preview server port
//	WINFORGE_BUILD_OUTPUT: Override assembled answer file path
//	WINFORGE_IMAGE_SOURCE_ISO: Override source installation ISO
//	And more following the WINFORGE_<SECTION>_<OPTION> pattern
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "winforge",
	Short: "Forge customized Windows installation media from an answer-file template",
	Long: `WinForge assembles per-pass XML fragments into a complete autounattend.xml,
validates the result, and rebuilds bootable Windows installation media with the
answer file and post-install scripts injected.

Key Features:
  • Pass-by-pass answer file assembly from XML fragments
  • Shallow validation with errors, warnings, and suggestions
  • ISO extraction, script injection, and oscdimg rebuild
  • File watching with automatic rebuilds
  • Browser preview with WebSocket-based live reload

Quick Start:
  winforge init                   Initialize a new project
  winforge build                  Assemble and validate the answer file
  winforge passes                 Show fragment status per pass
  winforge image                  Forge the customized installation ISO
  winforge serve                  Start the preview server

Command Aliases (for faster typing):
  init (i), build (b), validate (v), passes (p), watch (w), serve (s)

Documentation: https://github.com/conneroisu/winforge`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .winforge.yml, can also use WINFORGE_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig initializes the configuration system with support for multiple config sources.
//
// Configuration Loading Priority (highest to lowest):
//  1. --config flag: Explicitly specified config file path
//  2. WINFORGE_CONFIG_FILE environment variable: Custom config file path
//  3. Default: .winforge.yml in current directory
//
// Environment Variable Usage:
//
//	export WINFORGE_CONFIG_FILE=/path/to/custom-config.yml
//	winforge build  # Uses custom-config.yml
//
//	export WINFORGE_CONFIG_FILE=./configs/lab.yml
//	winforge build --config prod.yml  # Uses prod.yml (flag overrides env var)
//
// The function also enables automatic environment variable binding for all
// configuration values with the WINFORGE_ prefix (e.g., WINFORGE_SERVER_PORT=8080).
func initConfig() {
	// Priority 1: Use config file specified via --config flag (highest priority)
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("WINFORGE_CONFIG_FILE"); envConfigFile != "" {
		// Priority 2: Use config file specified via WINFORGE_CONFIG_FILE environment variable
		// This allows users to set a project-specific config without modifying command line
		// Supports both relative paths (./custom-config.yml) and absolute paths
		viper.SetConfigFile(envConfigFile)
	} else {
		// Priority 3: Search for default .winforge.yml in current directory (lowest priority)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".winforge")
	}

	// Enable automatic environment variable binding with WINFORGE_ prefix
	// Examples: WINFORGE_SERVER_PORT, WINFORGE_BUILD_OUTPUT, WINFORGE_IMAGE_WORKDIR
	viper.SetEnvPrefix("WINFORGE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Attempt to read the configuration file
	// If file doesn't exist or has errors, Viper will use defaults without failing
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
