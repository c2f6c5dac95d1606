package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/conneroisu/winforge/internal/config"
	"github.com/conneroisu/winforge/internal/report"
	"github.com/conneroisu/winforge/internal/server"
	"github.com/conneroisu/winforge/internal/watcher"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the preview server with live reload",
	Long: `Start a local preview server showing the build report: validation status,
errors, warnings, suggestions, and the assembled document. The page reloads
automatically whenever a fragment or script change triggers a rebuild.

Examples:
  winforge serve                  # Serve on the configured port
  winforge serve --port 3000      # Serve on a specific port
  winforge serve --no-open        # Don't open the browser`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	AddStandardFlags(serveCmd, "server")

	AddFlagValidation(serveCmd, "port", ValidatePort)

	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("server.no-open", serveCmd.Flags().Lookup("no-open"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := newCommandLogger(cfg)
	reporter := report.NewRichReporter(os.Stdout)
	driver := newBuildDriver(cfg, logger, reporter)
	srv := server.NewPreviewServer(cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// rebuild runs the pipeline and pushes the outcome to connected pages
	rebuild := func() {
		result := driver.Run(ctx)

		document := ""
		if result.Success {
			if data, err := os.ReadFile(cfg.Build.Output); err == nil {
				document = string(data)
			}
		}

		srv.Update(result, document)
	}

	fileWatcher, err := watcher.NewFileWatcher(300 * time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fileWatcher.Stop()

	fileWatcher.AddFilter(watcher.AnyFilter(watcher.XMLFilter, watcher.ScriptFilter))
	fileWatcher.AddFilter(watcher.NoGitFilter)
	fileWatcher.AddFilter(watcher.ExcludePathFilter(cfg.Build.Output))

	fileWatcher.AddHandler(func(events []watcher.ChangeEvent) error {
		fmt.Printf("📁 %d file(s) changed, rebuilding\n", len(events))
		rebuild()
		return nil
	})

	for _, path := range watchPaths(cfg) {
		if err := fileWatcher.AddRecursive(path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to watch path %s: %v\n", path, err)
		}
	}

	// Initial build so the first page load has a report to show
	rebuild()

	if err := fileWatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Shutting down preview server...")
		cancel()
	}()

	fmt.Printf("Starting WinForge preview server at http://%s\n", srv.Addr())

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
