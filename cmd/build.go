package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/conneroisu/winforge/internal/assembly"
	"github.com/conneroisu/winforge/internal/build"
	"github.com/conneroisu/winforge/internal/config"
	"github.com/conneroisu/winforge/internal/logging"
	"github.com/conneroisu/winforge/internal/report"
	"github.com/conneroisu/winforge/internal/validation"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Assemble and validate the answer file",
	Long: `Assemble the answer file from the template and per-pass fragments,
validate the result, and report the outcome.

Fragments are substituted in the fixed Windows Setup pass order. A missing
fragment is a warning, not a failure: its placeholder is replaced with an
empty string and the build continues.

Examples:
  winforge build                  # Assemble and validate
  winforge build --strict         # Exit non-zero when the document is invalid
  winforge build --format json    # Emit the build result as JSON
  winforge build --plain          # Plain output for CI logs`,
	RunE: runBuild,
}

var (
	buildFormat string
	buildPlain  bool
	buildStrict bool
)

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringVarP(&buildFormat, "format", "f", "text", "Output format (text|json)")
	buildCmd.Flags().BoolVar(&buildPlain, "plain", false, "Plain output without styling")
	buildCmd.Flags().BoolVar(&buildStrict, "strict", false, "Treat an invalid document as a build failure")

	viper.BindPFlag("build.strict", buildCmd.Flags().Lookup("strict"))
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if buildFormat != "text" && buildFormat != "json" {
		return fmt.Errorf("unsupported format: %s (supported: text, json)", buildFormat)
	}

	logger := newCommandLogger(cfg)

	// Progress goes to stderr when the result itself is written to stdout
	// as JSON.
	out := os.Stdout
	if buildFormat == "json" {
		out = os.Stderr
	}

	var reporter report.Reporter
	if buildPlain {
		reporter = report.NewBasicReporter(out)
	} else {
		reporter = report.NewRichReporter(out)
	}

	driver := newBuildDriver(cfg, logger, reporter)

	result := driver.Run(context.Background())

	if buildFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			return fmt.Errorf("failed to encode build result: %w", err)
		}
	}

	if !result.Success {
		return fmt.Errorf("build failed: %s", result.Error)
	}

	if cfg.Build.Strict && !result.Valid {
		return fmt.Errorf("answer file failed validation with %d error(s)", len(result.Validation.Errors))
	}

	return nil
}

// newBuildDriver wires the assembly pipeline from configuration. The watch,
// serve, and image commands reuse it with their own reporters.
func newBuildDriver(cfg *config.Config, logger logging.Logger, reporter report.Reporter) *build.Driver {
	store := assembly.NewFragmentStore(cfg.Build.Fragments)
	assembler := assembly.NewAssembler(cfg.Build.Template, cfg.Build.Output, store, logger)
	validator := validation.NewValidator(logger)

	return build.NewDriver(assembler, validator, reporter, logger)
}

// newCommandLogger creates the structured logger every command shares,
// configured from the loaded config. Logs go to stderr so stdout stays
// machine-readable.
func newCommandLogger(cfg *config.Config) logging.Logger {
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
}
