// Package config provides configuration management for WinForge applications
// using Viper for flexible configuration loading from files, environment
// variables, and command-line flags.
//
// The configuration system supports YAML files, environment variable overrides
// with WINFORGE_ prefix, validation, and security checks. It manages answer
// file assembly paths, installation image pipeline settings, script injection,
// the preview server, and logging.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Fixed default locations for the answer file pipeline. Relative paths are
// resolved against the working directory the command runs in.
const (
	DefaultTemplatePath = "config/autounattend.template.xml"
	DefaultFragmentsDir = "config/passes"
	DefaultOutputPath   = "build/autounattend.xml"

	DefaultScriptsDir = "config/scripts"

	DefaultWorkDir    = "build/media"
	DefaultOutputISO  = "build/winforge.iso"
	DefaultImageLabel = "WINFORGE"
	DefaultBiosBoot   = "boot/etfsboot.com"
	DefaultEfiBoot    = "efi/microsoft/boot/efisys.bin"

	DefaultServerPort = 8080
	DefaultServerHost = "localhost"
)

type Config struct {
	Build   BuildConfig   `yaml:"build"`
	Image   ImageConfig   `yaml:"image"`
	Scripts ScriptsConfig `yaml:"scripts"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
}

type BuildConfig struct {
	Template  string `yaml:"template"`
	Fragments string `yaml:"fragments"`
	Output    string `yaml:"output"`
	Strict    bool   `yaml:"strict"`
}

type ImageConfig struct {
	SourceISO string `yaml:"source_iso"`
	WorkDir   string `yaml:"workdir"`
	OutputISO string `yaml:"output_iso"`
	Label     string `yaml:"label"`
	BiosBoot  string `yaml:"bios_boot"`
	EfiBoot   string `yaml:"efi_boot"`
	Oscdimg   string `yaml:"oscdimg"`
}

type ScriptsConfig struct {
	Dir string `yaml:"dir"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	Open           bool     `yaml:"open"`
	NoOpen         bool     `yaml:"no-open"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Dir    string `yaml:"dir"`
}

func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Handle snake_case image keys set via viper (workaround for viper
	// field-name matching)
	if viper.IsSet("image.source_iso") && config.Image.SourceISO == "" {
		config.Image.SourceISO = viper.GetString("image.source_iso")
	}
	if viper.IsSet("image.output_iso") && config.Image.OutputISO == "" {
		config.Image.OutputISO = viper.GetString("image.output_iso")
	}
	if viper.IsSet("image.bios_boot") && config.Image.BiosBoot == "" {
		config.Image.BiosBoot = viper.GetString("image.bios_boot")
	}
	if viper.IsSet("image.efi_boot") && config.Image.EfiBoot == "" {
		config.Image.EfiBoot = viper.GetString("image.efi_boot")
	}

	// Handle allowed origins set via viper (workaround for viper slice
	// handling)
	if viper.IsSet("server.allowed_origins") && len(config.Server.AllowedOrigins) == 0 {
		origins := viper.GetStringSlice("server.allowed_origins")
		if len(origins) > 0 {
			config.Server.AllowedOrigins = origins
		}
	}

	// Handle strict mode set via viper (workaround for viper bool handling)
	if viper.IsSet("build.strict") {
		config.Build.Strict = viper.GetBool("build.strict")
	}

	// Apply default values for BuildConfig if not set
	if config.Build.Template == "" {
		config.Build.Template = DefaultTemplatePath
	}
	if config.Build.Fragments == "" {
		config.Build.Fragments = DefaultFragmentsDir
	}
	if config.Build.Output == "" {
		config.Build.Output = DefaultOutputPath
	}

	// Apply default values for ImageConfig if not set
	if config.Image.WorkDir == "" {
		config.Image.WorkDir = DefaultWorkDir
	}
	if config.Image.OutputISO == "" {
		config.Image.OutputISO = DefaultOutputISO
	}
	if config.Image.Label == "" {
		config.Image.Label = DefaultImageLabel
	}
	if config.Image.BiosBoot == "" {
		config.Image.BiosBoot = DefaultBiosBoot
	}
	if config.Image.EfiBoot == "" {
		config.Image.EfiBoot = DefaultEfiBoot
	}
	if config.Image.Oscdimg == "" {
		config.Image.Oscdimg = "oscdimg"
	}

	// Apply default values for ScriptsConfig if not set
	if config.Scripts.Dir == "" {
		config.Scripts.Dir = DefaultScriptsDir
	}

	// Apply default values for ServerConfig if not set
	if config.Server.Port == 0 && !viper.IsSet("server.port") {
		config.Server.Port = DefaultServerPort
	}
	if config.Server.Host == "" {
		config.Server.Host = DefaultServerHost
	}

	// Apply default values for LogConfig if not set
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}

	// Override no-open if explicitly set via flag
	if viper.IsSet("server.no-open") && viper.GetBool("server.no-open") {
		config.Server.Open = false
	}

	// Validate configuration values
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateBuildConfig(&config.Build); err != nil {
		return fmt.Errorf("build config: %w", err)
	}

	if err := validateImageConfig(&config.Image); err != nil {
		return fmt.Errorf("image config: %w", err)
	}

	if err := validateScriptsConfig(&config.Scripts); err != nil {
		return fmt.Errorf("scripts config: %w", err)
	}

	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := validateLogConfig(&config.Log); err != nil {
		return fmt.Errorf("log config: %w", err)
	}

	return nil
}

// validateBuildConfig validates assembly path configuration values
func validateBuildConfig(config *BuildConfig) error {
	if err := validatePath(config.Template); err != nil {
		return fmt.Errorf("invalid template path '%s': %w", config.Template, err)
	}
	if err := validatePath(config.Fragments); err != nil {
		return fmt.Errorf("invalid fragments path '%s': %w", config.Fragments, err)
	}
	if err := validatePath(config.Output); err != nil {
		return fmt.Errorf("invalid output path '%s': %w", config.Output, err)
	}
	return nil
}

// validateImageConfig validates image pipeline configuration values
func validateImageConfig(config *ImageConfig) error {
	// Source ISO is optional until the image command runs
	if config.SourceISO != "" {
		if err := validatePath(config.SourceISO); err != nil {
			return fmt.Errorf("invalid source_iso path '%s': %w", config.SourceISO, err)
		}
	}
	if err := validatePath(config.WorkDir); err != nil {
		return fmt.Errorf("invalid workdir path '%s': %w", config.WorkDir, err)
	}
	if err := validatePath(config.OutputISO); err != nil {
		return fmt.Errorf("invalid output_iso path '%s': %w", config.OutputISO, err)
	}
	if err := validatePath(config.BiosBoot); err != nil {
		return fmt.Errorf("invalid bios_boot path '%s': %w", config.BiosBoot, err)
	}
	if err := validatePath(config.EfiBoot); err != nil {
		return fmt.Errorf("invalid efi_boot path '%s': %w", config.EfiBoot, err)
	}

	// oscdimg rejects labels longer than 32 characters
	if len(config.Label) > 32 {
		return fmt.Errorf("label '%s' exceeds 32 characters", config.Label)
	}
	if strings.ContainsAny(config.Label, " \t") {
		return fmt.Errorf("label '%s' contains whitespace", config.Label)
	}

	return nil
}

// validateScriptsConfig validates script injection configuration values
func validateScriptsConfig(config *ScriptsConfig) error {
	if err := validatePath(config.Dir); err != nil {
		return fmt.Errorf("invalid scripts dir '%s': %w", config.Dir, err)
	}
	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// Validate port range (allow 0 for system-assigned ports in testing)
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	// Validate host
	if config.Host != "" {
		// Basic validation - no dangerous characters
		dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
		for _, char := range dangerousChars {
			if strings.Contains(config.Host, char) {
				return fmt.Errorf("host contains dangerous character: %s", char)
			}
		}
		for _, r := range config.Host {
			if r < 0x20 || r == 0x7f {
				return fmt.Errorf("host contains control character")
			}
		}
	}

	return nil
}

// validateLogConfig validates logging configuration values
func validateLogConfig(config *LogConfig) error {
	switch config.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level: %s", config.Level)
	}

	switch config.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format: %s", config.Format)
	}

	if config.Dir != "" {
		if err := validatePath(config.Dir); err != nil {
			return fmt.Errorf("invalid log dir '%s': %w", config.Dir, err)
		}
	}

	return nil
}

// validatePath validates a file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	// Clean the path
	cleanPath := filepath.Clean(path)

	// Reject path traversal attempts
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	// Reject dangerous characters
	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}
