// Package media places build products into an extracted Windows
// installation tree: the assembled answer file at the media root and
// post-install scripts under the OEM distribution folder.
package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/conneroisu/winforge/internal/errors"
	"github.com/conneroisu/winforge/internal/logging"
)

// AnswerFileName is the name Windows Setup probes for at the media root.
const AnswerFileName = "autounattend.xml"

// ScriptsDir returns the OEM scripts directory under the media root. The
// `$$` segment expands to %WINDIR% at install time, so files land in
// C:\Windows\Setup\Scripts where SetupComplete.cmd is picked up.
func ScriptsDir(workDir string) string {
	return filepath.Join(workDir, "sources", "$OEM$", "$$", "Setup", "Scripts")
}

// Injector copies build products into an extracted media tree.
type Injector struct {
	logger logging.Logger
}

// NewInjector creates an Injector.
func NewInjector(logger logging.Logger) *Injector {
	if logger == nil {
		logger = logging.Discard()
	}

	return &Injector{logger: logger.WithComponent("media")}
}

// InjectAnswerFile copies the assembled answer file to the media root,
// byte-for-byte.
func (i *Injector) InjectAnswerFile(ctx context.Context, answerPath, workDir string) error {
	data, err := os.ReadFile(answerPath)
	if err != nil {
		return errors.WrapIO(err, errors.ErrCodeInjectFailed,
			fmt.Sprintf("failed to read answer file: %s", answerPath))
	}

	dest := filepath.Join(workDir, AnswerFileName)
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return errors.WrapIO(err, errors.ErrCodeInjectFailed,
			fmt.Sprintf("failed to write answer file into media tree: %s", dest))
	}

	i.logger.Info(ctx, "injected answer file", "destination", dest, "bytes", len(data))

	return nil
}

// InjectScripts copies every regular file under scriptsDir into the OEM
// scripts directory, preserving subdirectories. A missing scripts directory
// is not an error; the step is logged and skipped. Returns the number of
// files copied.
func (i *Injector) InjectScripts(ctx context.Context, scriptsDir, workDir string) (int, error) {
	info, err := os.Stat(scriptsDir)
	if os.IsNotExist(err) {
		i.logger.Info(ctx, "no scripts directory, skipping script injection", "dir", scriptsDir)
		return 0, nil
	}
	if err != nil {
		return 0, errors.WrapIO(err, errors.ErrCodeInjectFailed,
			fmt.Sprintf("failed to read scripts directory: %s", scriptsDir))
	}
	if !info.IsDir() {
		return 0, errors.NewIOError(errors.ErrCodeInjectFailed,
			fmt.Sprintf("scripts path is not a directory: %s", scriptsDir), nil)
	}

	dest := ScriptsDir(workDir)
	count := 0

	err = filepath.Walk(scriptsDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		relPath, err := filepath.Rel(scriptsDir, path)
		if err != nil {
			return err
		}

		destPath := filepath.Join(dest, relPath)

		if info.IsDir() {
			return os.MkdirAll(destPath, 0755)
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := os.WriteFile(destPath, data, 0644); err != nil {
			return err
		}

		count++

		return nil
	})
	if err != nil {
		return count, errors.WrapIO(err, errors.ErrCodeInjectFailed,
			fmt.Sprintf("failed to copy scripts into media tree: %s", dest))
	}

	i.logger.Info(ctx, "injected setup scripts", "count", count, "destination", dest)

	return count, nil
}
