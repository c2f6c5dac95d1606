package imaging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/conneroisu/winforge/internal/errors"
	"github.com/conneroisu/winforge/internal/logging"
)

// robocopy exit codes at or above this value report failure; lower codes are
// informational combinations of "files copied" and "extras present".
const robocopyFailureThreshold = 8

// BulkCopier replicates a directory tree. On Windows it uses robocopy, which
// handles multi-gigabyte installation media far better than a file-by-file
// loop; elsewhere it falls back to a portable recursive copy.
type BulkCopier struct {
	logger logging.Logger
}

// NewBulkCopier creates a BulkCopier.
func NewBulkCopier(logger logging.Logger) *BulkCopier {
	if logger == nil {
		logger = logging.Discard()
	}

	return &BulkCopier{logger: logger.WithComponent("imaging")}
}

// Copy replicates src into dst, creating dst if needed.
func (c *BulkCopier) Copy(ctx context.Context, src, dst string) error {
	if runtime.GOOS == "windows" {
		return c.robocopy(ctx, src, dst)
	}

	return c.copyTree(ctx, src, dst)
}

func (c *BulkCopier) robocopy(ctx context.Context, src, dst string) error {
	output, code, err := run(ctx, "robocopy", src, dst, "/E", "/NFL", "/NDL")
	if err != nil {
		if notFound(err) {
			return errors.NewImagingError(errors.ErrCodeToolNotFound, "robocopy not found in PATH", err)
		}

		return errors.WrapImaging(err, errors.ErrCodeToolFailed, "failed to run robocopy")
	}

	if code >= robocopyFailureThreshold {
		return toolError("robocopy", code, output).WithPath(dst)
	}

	c.logger.Info(ctx, "copied media tree", "source", src, "destination", dst, "robocopy_code", code)

	return nil
}

// copyTree is the portable fallback used off Windows.
func (c *BulkCopier) copyTree(ctx context.Context, src, dst string) error {
	if err := os.MkdirAll(dst, 0755); err != nil {
		return errors.WrapIO(err, errors.ErrCodeToolFailed,
			fmt.Sprintf("failed to create destination directory: %s", dst))
	}

	err := filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		relPath, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		destPath := filepath.Join(dst, relPath)

		if info.IsDir() {
			return os.MkdirAll(destPath, info.Mode())
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		return copyFile(path, destPath)
	})
	if err != nil {
		return errors.WrapIO(err, errors.ErrCodeToolFailed,
			fmt.Sprintf("failed to copy %s to %s", src, dst))
	}

	c.logger.Info(ctx, "copied media tree", "source", src, "destination", dst)

	return nil
}

// copyFile streams src into dst. Installation media carries files in the
// multi-gigabyte range, so the whole file is never held in memory.
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}

	_, err = io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}

	return err
}
