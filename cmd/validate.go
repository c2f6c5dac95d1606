package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/conneroisu/winforge/internal/config"
	"github.com/conneroisu/winforge/internal/validation"
	"github.com/spf13/cobra"
)

var validateFormat string

// validateCmd represents the validate command.
var validateCmd = &cobra.Command{
	Use:     "validate [file]",
	Aliases: []string{"v"},
	Short:   "Validate an assembled answer file",
	Long: `Validate an assembled answer file for common problems:

- Missing XML declaration or unattend root element
- Leftover unsubstituted placeholder tokens
- Missing or deprecated Windows Setup components
- Mixed processor architectures
- Weak administrator passwords

The checks are shallow text inspection, not schema validation. Windows Setup
remains the final authority on whether an answer file is accepted.

Examples:
  winforge validate                       # Validate the configured output
  winforge validate build/autounattend.xml
  winforge validate --format json         # Output results as JSON`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().
		StringVarP(&validateFormat, "format", "f", "text", "Output format (text, json)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	path := cfg.Build.Output
	if len(args) > 0 {
		path = args[0]
	}

	logger := newCommandLogger(cfg)
	validator := validation.NewValidator(logger)

	result, err := validator.ValidateFile(context.Background(), path)
	if err != nil {
		return fmt.Errorf("validation aborted: %w", err)
	}

	switch validateFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			return fmt.Errorf("failed to encode validation result: %w", err)
		}
	case "text":
		fmt.Print(validation.RenderReport(result))
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json)", validateFormat)
	}

	if !result.Valid {
		return fmt.Errorf("answer file %s failed validation with %d error(s)", path, len(result.Errors))
	}

	return nil
}
