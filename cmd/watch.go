package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/conneroisu/winforge/internal/config"
	"github.com/conneroisu/winforge/internal/report"
	"github.com/conneroisu/winforge/internal/watcher"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Watch for file changes and rebuild the answer file",
	Long: `Watch the template, fragments, and scripts for changes and automatically
rebuild the answer file. This is useful for iterating on fragments without
re-running the build command by hand.

Examples:
  winforge watch                         # Watch and rebuild on changes
  winforge watch --verbose               # Watch with per-file change output
  winforge watch --command "make sync"   # Run custom command after each rebuild`,
	RunE: runWatch,
}

var (
	watchVerbose bool
	watchCommand string
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVarP(&watchVerbose, "verbose", "v", false, "Verbose output")
	watchCmd.Flags().StringVarP(&watchCommand, "command", "c", "", "Custom command to run after each rebuild")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := newCommandLogger(cfg)
	reporter := report.NewRichReporter(os.Stdout)
	driver := newBuildDriver(cfg, logger, reporter)

	// Create file watcher
	fileWatcher, err := watcher.NewFileWatcher(300 * time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fileWatcher.Stop()

	// Add filters: react to fragment and script edits, ignore the build
	// output so a rebuild does not retrigger itself
	fileWatcher.AddFilter(watcher.AnyFilter(watcher.XMLFilter, watcher.ScriptFilter))
	fileWatcher.AddFilter(watcher.NoGitFilter)
	fileWatcher.AddFilter(watcher.ExcludePathFilter(cfg.Build.Output))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Add change handler
	fileWatcher.AddHandler(func(events []watcher.ChangeEvent) error {
		if watchVerbose {
			fmt.Printf("📁 File changes detected:\n")
			for _, event := range events {
				fmt.Printf("   %s: %s\n", event.Type, event.Path)
			}
		} else {
			fmt.Printf("📁 %d file(s) changed\n", len(events))
		}

		driver.Run(ctx)

		// Run custom command if specified
		if watchCommand != "" {
			if err := runCustomCommand(watchCommand); err != nil {
				fmt.Fprintf(os.Stderr, "Custom command failed: %v\n", err)
			}
		}

		return nil
	})

	// Add watch paths
	fmt.Println("🔍 Setting up file watching...")
	for _, path := range watchPaths(cfg) {
		if err := fileWatcher.AddRecursive(path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to watch path %s: %v\n", path, err)
		} else {
			fmt.Printf("   - Watching: %s\n", path)
		}
	}

	// Initial build
	fmt.Println("🔨 Performing initial build...")
	driver.Run(ctx)

	// Start watching
	if err := fileWatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}

	fmt.Println("👀 Watching for changes... (Press Ctrl+C to stop)")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	fmt.Println("\n🛑 Stopping file watcher...")
	cancel()

	return nil
}

// watchPaths lists the directories a rebuild depends on, deduplicated. The
// template's directory usually contains the fragments and scripts too; the
// watcher tolerates overlapping registrations.
func watchPaths(cfg *config.Config) []string {
	candidates := []string{
		filepath.Dir(cfg.Build.Template),
		cfg.Build.Fragments,
		cfg.Scripts.Dir,
	}

	seen := make(map[string]bool, len(candidates))
	paths := make([]string, 0, len(candidates))
	for _, path := range candidates {
		clean := filepath.Clean(path)
		if seen[clean] {
			continue
		}
		seen[clean] = true
		paths = append(paths, clean)
	}

	return paths
}

func runCustomCommand(command string) error {
	fmt.Printf("🔨 Running custom command: %s\n", command)

	// Parse the command into parts
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return errors.New("empty custom command")
	}

	// For security, validate the command
	if err := validateCustomCommand(parts[0], parts[1:]); err != nil {
		return fmt.Errorf("invalid custom command: %w", err)
	}

	// Execute the command
	cmd := exec.Command(parts[0], parts[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("custom command failed: %w", err)
	}

	return nil
}

// validateCustomCommand validates custom commands with a security-focused allowlist
func validateCustomCommand(command string, args []string) error {
	// Allowlist of deployment-adjacent commands only (security-hardened)
	allowedCommands := map[string]bool{
		"robocopy":   true, // Media sync to deployment shares
		"xcopy":      true, // Legacy copy fallback
		"powershell": true, // Post-build scripting
		"oscdimg":    true, // Manual ISO rebuilds
		"dism":       true, // Image servicing
		"make":       true, // Build automation
		"git":        true, // Version control (read-only operations recommended)
		"echo":       true, // Safe output command
	}

	// Check if command is in allowlist
	if err := validateCommand(command, allowedCommands); err != nil {
		return fmt.Errorf("custom command validation failed: %w", err)
	}

	// Enhanced validation for potentially dangerous commands
	if err := validateCommandSpecific(command, args); err != nil {
		return fmt.Errorf("command validation failed: %w", err)
	}

	// Validate arguments - prevent shell metacharacters and path traversal
	if err := validateArguments(args); err != nil {
		return fmt.Errorf("argument validation failed: %w", err)
	}

	return nil
}

// validateCommandSpecific provides enhanced validation for specific commands
func validateCommandSpecific(command string, args []string) error {
	switch command {
	case "git":
		return validateGitCommand(args)
	case "powershell":
		return validatePowerShellCommand(args)
	}
	return nil
}

// validateGitCommand ensures git commands are safe (read-only operations)
func validateGitCommand(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("git command requires arguments")
	}

	// Allow only safe, read-only git operations
	safeGitCommands := map[string]bool{
		"status":    true,
		"log":       true,
		"show":      true,
		"diff":      true,
		"branch":    true,
		"tag":       true,
		"remote":    true,
		"ls-files":  true,
		"ls-tree":   true,
		"rev-parse": true,
	}

	subcommand := args[0]
	if !safeGitCommands[subcommand] {
		return fmt.Errorf("git subcommand '%s' is not allowed (only read-only operations permitted)", subcommand)
	}

	return nil
}

// validatePowerShellCommand blocks the PowerShell invocation styles that hide
// their payload from the argument validator
func validatePowerShellCommand(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("powershell command requires arguments")
	}

	for _, arg := range args {
		lowered := strings.ToLower(arg)
		if strings.HasPrefix(lowered, "-e") && strings.HasPrefix("-encodedcommand", lowered) {
			return fmt.Errorf("powershell -EncodedCommand is not allowed")
		}
		if lowered == "-command" || lowered == "-c" {
			return fmt.Errorf("powershell -Command is not allowed (use -File with a script)")
		}
	}

	return nil
}
