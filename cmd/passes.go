package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/conneroisu/winforge/internal/assembly"
	"github.com/conneroisu/winforge/internal/config"
	"github.com/conneroisu/winforge/internal/types"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var passesCmd = &cobra.Command{
	Use:     "passes",
	Aliases: []string{"p"},
	Short:   "List the configuration passes and their fragment status",
	Long: `List the seven Windows Setup configuration passes in substitution order,
with each pass's placeholder token, fragment path, and on-disk status.

Examples:
  winforge passes                 # List passes in table format
  winforge passes -f json         # Output as JSON (short flag)
  winforge passes --format csv    # Output as CSV
  winforge passes -f yaml         # Output as YAML`,
	RunE: runPasses,
}

var passesFlags *StandardFlags

func init() {
	rootCmd.AddCommand(passesCmd)

	// Use standardized flags
	passesFlags = AddStandardFlags(passesCmd, "output")

	// Add format validation
	AddFlagValidation(passesCmd, "format", func(format string) error {
		return ValidateFormatWithSuggestion(format, []string{"table", "json", "yaml", "csv"})
	})
}

func runPasses(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store := assembly.NewFragmentStore(cfg.Build.Fragments)
	fragments := store.List()

	switch strings.ToLower(passesFlags.Format) {
	case "json":
		return outputPassesJSON(fragments)
	case "yaml":
		return outputPassesYAML(fragments)
	case "table":
		return outputPassesTable(fragments)
	case "csv":
		return outputPassesCSV(fragments)
	default:
		return fmt.Errorf("unsupported format: %s", passesFlags.Format)
	}
}

func outputPassesJSON(fragments []types.FragmentInfo) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(fragments)
}

func outputPassesYAML(fragments []types.FragmentInfo) error {
	encoder := yaml.NewEncoder(os.Stdout)
	defer encoder.Close()
	return encoder.Encode(fragments)
}

func outputPassesTable(fragments []types.FragmentInfo) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	// Write header
	fmt.Fprintln(w, "PASS\tPLACEHOLDER\tFRAGMENT\tPRESENT\tSIZE")

	// Write separator
	separator := strings.Repeat(
		"-",
		4,
	) + "\t" + strings.Repeat(
		"-",
		11,
	) + "\t" + strings.Repeat(
		"-",
		8,
	) + "\t" + strings.Repeat(
		"-",
		7,
	) + "\t" + strings.Repeat(
		"-",
		4,
	)
	fmt.Fprintln(w, separator)

	present := 0
	for _, fragment := range fragments {
		presence := "no"
		size := "-"
		if fragment.Present {
			present++
			presence = "yes"
			size = humanize.Bytes(uint64(fragment.Size))
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			fragment.Pass.DisplayName(),
			fragment.Placeholder,
			fragment.Path,
			presence,
			size,
		)
	}

	// Write summary
	fmt.Fprintf(w, "\nTotal: %d/%d fragments present\n", present, len(fragments))

	return nil
}

func outputPassesCSV(fragments []types.FragmentInfo) error {
	// Write header
	fmt.Println("pass,placeholder,path,present,size")

	// Write passes
	for _, fragment := range fragments {
		fmt.Printf("%s,%s,%s,%t,%d\n",
			fragment.Pass.DisplayName(),
			fragment.Placeholder,
			fragment.Path,
			fragment.Present,
			fragment.Size,
		)
	}

	return nil
}
