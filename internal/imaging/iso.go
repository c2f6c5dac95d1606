package imaging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/conneroisu/winforge/internal/config"
	"github.com/conneroisu/winforge/internal/errors"
	"github.com/conneroisu/winforge/internal/logging"
)

// ISOOptions configures the oscdimg invocation. Boot image paths are
// relative to the source directory.
type ISOOptions struct {
	Label    string
	BiosBoot string
	EfiBoot  string
}

// ImageBuilder produces bootable UDF images with oscdimg from the Windows
// ADK.
type ImageBuilder struct {
	oscdimg string
	logger  logging.Logger
}

// NewImageBuilder creates an ImageBuilder shelling out to the given oscdimg
// binary ("oscdimg" when empty, resolved via PATH).
func NewImageBuilder(oscdimg string, logger logging.Logger) *ImageBuilder {
	if oscdimg == "" {
		oscdimg = "oscdimg"
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &ImageBuilder{
		oscdimg: oscdimg,
		logger:  logger.WithComponent("imaging"),
	}
}

// Build writes a bootable dual-BIOS/UEFI image of srcDir to outputISO.
func (b *ImageBuilder) Build(ctx context.Context, srcDir, outputISO string, opts ISOOptions) error {
	if opts.Label == "" {
		opts.Label = config.DefaultImageLabel
	}
	if opts.BiosBoot == "" {
		opts.BiosBoot = config.DefaultBiosBoot
	}
	if opts.EfiBoot == "" {
		opts.EfiBoot = config.DefaultEfiBoot
	}

	biosBoot := filepath.Join(srcDir, filepath.FromSlash(opts.BiosBoot))
	efiBoot := filepath.Join(srcDir, filepath.FromSlash(opts.EfiBoot))

	for _, boot := range []string{biosBoot, efiBoot} {
		if _, err := os.Stat(boot); err != nil {
			return errors.NewImagingError(errors.ErrCodeToolFailed,
				fmt.Sprintf("boot image not found in media tree: %s", boot), err)
		}
	}

	if dir := filepath.Dir(outputISO); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.WrapIO(err, errors.ErrCodeOutputWrite,
				fmt.Sprintf("failed to create output directory: %s", dir))
		}
	}

	args := []string{
		"-m",
		"-o",
		"-u2",
		"-udfver102",
		fmt.Sprintf("-bootdata:2#p0,e,b%s#pEF,e,b%s", biosBoot, efiBoot),
		"-l" + opts.Label,
		srcDir,
		outputISO,
	}

	output, code, err := run(ctx, b.oscdimg, args...)
	if err != nil {
		if notFound(err) {
			return errors.NewImagingError(errors.ErrCodeToolNotFound,
				fmt.Sprintf("%s not found in PATH; install the Windows ADK deployment tools", b.oscdimg), err)
		}

		return errors.WrapImaging(err, errors.ErrCodeToolFailed, "failed to run oscdimg")
	}

	if code != 0 {
		return toolError("oscdimg", code, output).WithPath(outputISO)
	}

	b.logger.Info(ctx, "wrote bootable ISO", "iso", outputISO, "label", opts.Label)

	return nil
}
