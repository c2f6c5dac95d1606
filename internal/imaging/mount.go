package imaging

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/conneroisu/winforge/internal/errors"
	"github.com/conneroisu/winforge/internal/logging"
)

// Mounter attaches and detaches ISO images through PowerShell's disk image
// cmdlets. Mounting only works on Windows; other platforms get a descriptive
// error so callers can suggest --source-dir instead.
type Mounter struct {
	powershell string
	logger     logging.Logger
}

// NewMounter creates a Mounter that shells out to powershell.
func NewMounter(logger logging.Logger) *Mounter {
	if logger == nil {
		logger = logging.Discard()
	}

	return &Mounter{
		powershell: "powershell",
		logger:     logger.WithComponent("imaging"),
	}
}

// Mount attaches the ISO and returns the root of the mounted filesystem,
// e.g. `E:\`.
func (m *Mounter) Mount(ctx context.Context, isoPath string) (string, error) {
	if runtime.GOOS != "windows" {
		return "", errors.NewImagingError(errors.ErrCodeUnsupportedOS,
			fmt.Sprintf("mounting ISO images requires Windows, running on %s; extract the ISO manually and point --source-dir at the tree", runtime.GOOS), nil)
	}

	return m.mount(ctx, isoPath)
}

func (m *Mounter) mount(ctx context.Context, isoPath string) (string, error) {
	script := fmt.Sprintf(
		"$image = Mount-DiskImage -ImagePath %s -PassThru; ($image | Get-Volume).DriveLetter",
		psQuote(isoPath))

	output, code, err := run(ctx, m.powershell, "-NoProfile", "-NonInteractive", "-Command", script)
	if err != nil {
		if notFound(err) {
			return "", errors.NewImagingError(errors.ErrCodeToolNotFound, "powershell not found in PATH", err)
		}

		return "", errors.WrapImaging(err, errors.ErrCodeToolFailed, "failed to run Mount-DiskImage")
	}

	if code != 0 {
		return "", toolError("Mount-DiskImage", code, output).WithPath(isoPath)
	}

	letter := strings.TrimSpace(string(output))
	if letter == "" {
		return "", errors.NewImagingError(errors.ErrCodeToolFailed,
			"Mount-DiskImage returned no drive letter", nil).WithPath(isoPath)
	}

	root := letter + `:\`
	m.logger.Info(ctx, "mounted ISO image", "iso", isoPath, "root", root)

	return root, nil
}

// Dismount detaches a previously mounted ISO.
func (m *Mounter) Dismount(ctx context.Context, isoPath string) error {
	if runtime.GOOS != "windows" {
		return errors.NewImagingError(errors.ErrCodeUnsupportedOS,
			fmt.Sprintf("dismounting ISO images requires Windows, running on %s", runtime.GOOS), nil)
	}

	return m.dismount(ctx, isoPath)
}

func (m *Mounter) dismount(ctx context.Context, isoPath string) error {
	script := fmt.Sprintf("Dismount-DiskImage -ImagePath %s | Out-Null", psQuote(isoPath))

	output, code, err := run(ctx, m.powershell, "-NoProfile", "-NonInteractive", "-Command", script)
	if err != nil {
		if notFound(err) {
			return errors.NewImagingError(errors.ErrCodeToolNotFound, "powershell not found in PATH", err)
		}

		return errors.WrapImaging(err, errors.ErrCodeToolFailed, "failed to run Dismount-DiskImage")
	}

	if code != 0 {
		return toolError("Dismount-DiskImage", code, output).WithPath(isoPath)
	}

	m.logger.Info(ctx, "dismounted ISO image", "iso", isoPath)

	return nil
}

// psQuote wraps s in PowerShell single quotes, doubling any embedded quotes
// so paths with apostrophes cannot break out of the string.
func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
