package imaging

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/conneroisu/winforge/internal/config"
	forgeerrors "github.com/conneroisu/winforge/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeMediaTree lays out a minimal media tree carrying both boot images at
// their default locations and returns its root.
func writeMediaTree(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	bios := filepath.Join(root, filepath.FromSlash(config.DefaultBiosBoot))
	efi := filepath.Join(root, filepath.FromSlash(config.DefaultEfiBoot))

	require.NoError(t, os.MkdirAll(filepath.Dir(bios), 0755))
	require.NoError(t, os.MkdirAll(filepath.Dir(efi), 0755))
	require.NoError(t, os.WriteFile(bios, []byte("etfsboot"), 0644))
	require.NoError(t, os.WriteFile(efi, []byte("efisys"), 0644))

	return root
}

func TestBuildCommandLine(t *testing.T) {
	src := writeMediaTree(t)
	iso := filepath.Join(t.TempDir(), "winforge.iso")

	captured := interceptRun(t, nil, 0, nil)
	b := NewImageBuilder("", nil)

	err := b.Build(context.Background(), src, iso, ISOOptions{Label: "WIN11CUSTOM"})

	require.NoError(t, err)
	assert.Equal(t, "oscdimg", captured.name)

	bios := filepath.Join(src, filepath.FromSlash(config.DefaultBiosBoot))
	efi := filepath.Join(src, filepath.FromSlash(config.DefaultEfiBoot))
	assert.Equal(t, []string{
		"-m",
		"-o",
		"-u2",
		"-udfver102",
		fmt.Sprintf("-bootdata:2#p0,e,b%s#pEF,e,b%s", bios, efi),
		"-lWIN11CUSTOM",
		src,
		iso,
	}, captured.args)
}

func TestBuildDefaultLabel(t *testing.T) {
	src := writeMediaTree(t)
	iso := filepath.Join(t.TempDir(), "winforge.iso")

	captured := interceptRun(t, nil, 0, nil)
	b := NewImageBuilder("", nil)

	require.NoError(t, b.Build(context.Background(), src, iso, ISOOptions{}))
	assert.Contains(t, captured.args, "-l"+config.DefaultImageLabel)
}

func TestBuildCustomBinary(t *testing.T) {
	src := writeMediaTree(t)
	iso := filepath.Join(t.TempDir(), "winforge.iso")

	captured := interceptRun(t, nil, 0, nil)
	b := NewImageBuilder(`C:\adk\oscdimg.exe`, nil)

	require.NoError(t, b.Build(context.Background(), src, iso, ISOOptions{}))
	assert.Equal(t, `C:\adk\oscdimg.exe`, captured.name)
}

func TestBuildMissingBootImage(t *testing.T) {
	src := t.TempDir()
	iso := filepath.Join(t.TempDir(), "winforge.iso")

	invoked := false
	SetRunForTesting(func(ctx context.Context, name string, args ...string) ([]byte, int, error) {
		invoked = true
		return nil, 0, nil
	})
	t.Cleanup(func() { SetRunForTesting(DefaultRun) })

	b := NewImageBuilder("", nil)
	err := b.Build(context.Background(), src, iso, ISOOptions{})

	require.Error(t, err)
	var fe *forgeerrors.ForgeError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, forgeerrors.ErrCodeToolFailed, fe.Code)
	assert.Contains(t, fe.Message, "boot image not found")
	assert.False(t, invoked, "oscdimg must not run without boot images")
}

func TestBuildToolFailure(t *testing.T) {
	src := writeMediaTree(t)
	iso := filepath.Join(t.TempDir(), "winforge.iso")

	interceptRun(t, []byte("ERROR: Could not open boot sector file"), 1, nil)
	b := NewImageBuilder("", nil)

	err := b.Build(context.Background(), src, iso, ISOOptions{})

	require.Error(t, err)
	var fe *forgeerrors.ForgeError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, forgeerrors.ErrCodeToolFailed, fe.Code)
	assert.Contains(t, fe.Message, "Could not open boot sector file")
	assert.Equal(t, iso, fe.Path)
}

func TestBuildToolMissing(t *testing.T) {
	src := writeMediaTree(t)
	iso := filepath.Join(t.TempDir(), "winforge.iso")

	interceptRun(t, nil, -1, &exec.Error{Name: "oscdimg", Err: exec.ErrNotFound})
	b := NewImageBuilder("", nil)

	err := b.Build(context.Background(), src, iso, ISOOptions{})

	require.Error(t, err)
	var fe *forgeerrors.ForgeError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, forgeerrors.ErrCodeToolNotFound, fe.Code)
	assert.Contains(t, fe.Message, "Windows ADK")
}

func TestBuildCreatesOutputDir(t *testing.T) {
	src := writeMediaTree(t)
	iso := filepath.Join(t.TempDir(), "out", "nested", "winforge.iso")

	interceptRun(t, nil, 0, nil)
	b := NewImageBuilder("", nil)

	require.NoError(t, b.Build(context.Background(), src, iso, ISOOptions{}))

	info, err := os.Stat(filepath.Dir(iso))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
