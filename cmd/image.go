package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/conneroisu/winforge/internal/config"
	"github.com/conneroisu/winforge/internal/imaging"
	"github.com/conneroisu/winforge/internal/logging"
	"github.com/conneroisu/winforge/internal/media"
	"github.com/conneroisu/winforge/internal/report"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Forge a customized installation ISO",
	Long: `Run the full media pipeline: extract the source installation ISO into the
working directory, assemble and validate the answer file, inject it together
with the post-install scripts into the media tree, and rebuild a bootable
ISO with oscdimg.

Extraction mounts the source ISO with PowerShell and bulk-copies its contents,
so the image command runs on Windows. Every other step is cross-platform;
--source-dir substitutes an already-extracted installation tree for the
mount-and-copy step.

Examples:
  winforge image                           # Full pipeline from image.source_iso
  winforge image --iso ~/isos/win11.iso    # Override the source ISO
  winforge image --source-dir ./extracted  # Start from an extracted tree
  winforge image --skip-extract            # Reuse the populated workdir
  winforge image --skip-iso                # Stop after injection, no ISO build`,
	RunE: runImage,
}

var (
	imageSourceDir   string
	imageSkipExtract bool
	imageSkipConfig  bool
	imageSkipISO     bool
	imageClean       bool
	imagePlain       bool
)

func init() {
	rootCmd.AddCommand(imageCmd)

	imageCmd.Flags().String("iso", "", "Source installation ISO (overrides image.source_iso)")
	imageCmd.Flags().StringP("output", "o", "", "Output ISO path (overrides image.output_iso)")
	imageCmd.Flags().StringVar(&imageSourceDir, "source-dir", "", "Already-extracted installation tree to copy instead of mounting an ISO")
	imageCmd.Flags().BoolVar(&imageSkipExtract, "skip-extract", false, "Skip ISO extraction, reuse the working directory")
	imageCmd.Flags().BoolVar(&imageSkipConfig, "skip-config", false, "Skip answer file assembly, reuse the existing output")
	imageCmd.Flags().BoolVar(&imageSkipISO, "skip-iso", false, "Skip the oscdimg rebuild, stop after injection")
	imageCmd.Flags().BoolVar(&imageClean, "clean", false, "Remove the working directory before extraction")
	imageCmd.Flags().BoolVar(&imagePlain, "plain", false, "Plain output without styling")

	AddFlagValidation(imageCmd, "iso", ValidateFileExists)
	AddFlagValidation(imageCmd, "source-dir", ValidateFileExists)

	viper.BindPFlag("image.source_iso", imageCmd.Flags().Lookup("iso"))
	viper.BindPFlag("image.output_iso", imageCmd.Flags().Lookup("output"))
}

func runImage(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := newCommandLogger(cfg)

	var reporter report.Reporter
	if imagePlain {
		reporter = report.NewBasicReporter(os.Stdout)
	} else {
		reporter = report.NewRichReporter(os.Stdout)
	}

	ctx := context.Background()
	workDir := cfg.Image.WorkDir

	if imageClean {
		reporter.Step("Cleaning working directory...")
		if err := os.RemoveAll(workDir); err != nil {
			return fmt.Errorf("failed to clean working directory: %w", err)
		}
	}

	if !imageSkipExtract {
		if err := extractMedia(ctx, cfg, reporter, logger); err != nil {
			return err
		}
	} else {
		reporter.Step("Skipping extraction, reusing working directory")
		if _, err := os.Stat(workDir); err != nil {
			return fmt.Errorf("working directory %s is not usable: %w (run without --skip-extract first)", workDir, err)
		}
	}

	if !imageSkipConfig {
		driver := newBuildDriver(cfg, logger, reporter)
		result := driver.Run(ctx)
		if !result.Success {
			return fmt.Errorf("answer file build failed: %s", result.Error)
		}
		if cfg.Build.Strict && !result.Valid {
			return fmt.Errorf("answer file failed validation with %d error(s)", len(result.Validation.Errors))
		}
	} else {
		reporter.Step("Skipping answer file assembly, reusing existing output")
		if _, err := os.Stat(cfg.Build.Output); err != nil {
			return fmt.Errorf("no assembled answer file at %s (run winforge build first)", cfg.Build.Output)
		}
	}

	reporter.Step("Injecting answer file and scripts...")
	injector := media.NewInjector(logger)
	if err := injector.InjectAnswerFile(ctx, cfg.Build.Output, workDir); err != nil {
		return fmt.Errorf("failed to inject answer file: %w", err)
	}
	count, err := injector.InjectScripts(ctx, cfg.Scripts.Dir, workDir)
	if err != nil {
		return fmt.Errorf("failed to inject scripts: %w", err)
	}
	reporter.Success(fmt.Sprintf("Injected answer file and %d script(s)", count))

	if imageSkipISO {
		reporter.Success(fmt.Sprintf("Media tree ready: %s (ISO build skipped)", workDir))
		return nil
	}

	reporter.Step("Building bootable ISO with oscdimg...")
	builder := imaging.NewImageBuilder(cfg.Image.Oscdimg, logger)
	opts := imaging.ISOOptions{
		Label:    cfg.Image.Label,
		BiosBoot: cfg.Image.BiosBoot,
		EfiBoot:  cfg.Image.EfiBoot,
	}
	if err := builder.Build(ctx, workDir, cfg.Image.OutputISO, opts); err != nil {
		return fmt.Errorf("ISO build failed: %w", err)
	}

	if fi, err := os.Stat(cfg.Image.OutputISO); err == nil {
		reporter.Success(fmt.Sprintf("Installation media ready: %s (%s)", cfg.Image.OutputISO, humanize.Bytes(uint64(fi.Size()))))
	} else {
		reporter.Success(fmt.Sprintf("Installation media ready: %s", cfg.Image.OutputISO))
	}

	return nil
}

// extractMedia populates the working directory from either an extracted
// source tree or a mounted ISO.
func extractMedia(ctx context.Context, cfg *config.Config, reporter report.Reporter, logger logging.Logger) error {
	copier := imaging.NewBulkCopier(logger)

	if imageSourceDir != "" {
		reporter.Step(fmt.Sprintf("Copying installation tree from %s...", imageSourceDir))
		if err := copier.Copy(ctx, imageSourceDir, cfg.Image.WorkDir); err != nil {
			return fmt.Errorf("failed to copy installation tree: %w", err)
		}
		reporter.Success("Installation tree copied")
		return nil
	}

	if cfg.Image.SourceISO == "" {
		return fmt.Errorf("no source ISO configured: set image.source_iso, pass --iso, or use --source-dir")
	}

	reporter.Step(fmt.Sprintf("Mounting %s...", cfg.Image.SourceISO))
	mounter := imaging.NewMounter(logger)
	root, err := mounter.Mount(ctx, cfg.Image.SourceISO)
	if err != nil {
		return fmt.Errorf("failed to mount source ISO: %w", err)
	}

	reporter.Step(fmt.Sprintf("Copying installation files from %s...", root))
	copyErr := copier.Copy(ctx, root, cfg.Image.WorkDir)

	if err := mounter.Dismount(ctx, cfg.Image.SourceISO); err != nil {
		reporter.Warning(fmt.Sprintf("Failed to dismount %s: %v", cfg.Image.SourceISO, err))
	}

	if copyErr != nil {
		return fmt.Errorf("failed to copy installation files: %w", copyErr)
	}

	reporter.Success("Installation files extracted")
	return nil
}
