package assembly

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	forgeerrors "github.com/conneroisu/winforge/internal/errors"
	"github.com/conneroisu/winforge/internal/logging"
	"github.com/conneroisu/winforge/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalTemplate = `<?xml version="1.0"?><unattend xmlns="urn:schemas-microsoft-com:unattend">{{WINDOWSPE_PASS}}{{OFFLINESERVICING_PASS}}{{GENERALIZE_PASS}}{{SPECIALIZE_PASS}}{{AUDITSYSTEM_PASS}}{{AUDITUSER_PASS}}{{OOBESYSTEM_PASS}}</unattend>`

// writeTemplate writes template content into dir and returns its path.
func writeTemplate(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "autounattend.template.xml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// writeFragments writes one fragment file per entry into the fragments dir.
func writeFragments(t *testing.T, dir string, fragments map[types.Pass]string) string {
	t.Helper()
	fragDir := filepath.Join(dir, "passes")
	require.NoError(t, os.MkdirAll(fragDir, 0755))
	for pass, content := range fragments {
		path := filepath.Join(fragDir, pass.FragmentFile())
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return fragDir
}

func newTestAssembler(t *testing.T, template string, fragments map[types.Pass]string) (*Assembler, string) {
	t.Helper()
	dir := t.TempDir()
	templatePath := writeTemplate(t, dir, template)
	fragDir := writeFragments(t, dir, fragments)
	outputPath := filepath.Join(dir, "build", "autounattend.xml")
	store := NewFragmentStore(fragDir)
	return NewAssembler(templatePath, outputPath, store, logging.Discard()), outputPath
}

func TestAssembleAllFragmentsPresent(t *testing.T) {
	fragments := make(map[types.Pass]string)
	for _, pass := range types.AllPasses {
		fragments[pass] = `<settings pass="` + pass.DisplayName() + `"/>`
	}

	assembler, outputPath := newTestAssembler(t, minimalTemplate, fragments)

	result, err := assembler.Assemble(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 7, result.PassesProcessed)
	assert.Empty(t, result.Warnings)
	assert.NotContains(t, result.Document, "{{")
	assert.NotContains(t, result.Document, "}}")
	for _, pass := range types.AllPasses {
		assert.Contains(t, result.Document, fragments[pass])
	}

	written, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Equal(t, result.Document, string(written))
}

func TestAssembleMissingFragment(t *testing.T) {
	fragments := make(map[types.Pass]string)
	for _, pass := range types.AllPasses {
		if pass == types.PassGeneralize {
			continue
		}
		fragments[pass] = "<X/>"
	}

	assembler, _ := newTestAssembler(t, minimalTemplate, fragments)

	result, err := assembler.Assemble(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 6, result.PassesProcessed)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "generalize")
	assert.Contains(t, result.Warnings[0], types.PassGeneralize.FragmentFile())
	assert.NotContains(t, result.Document, types.PassGeneralize.Placeholder())
}

func TestAssembleTwoFragmentScenario(t *testing.T) {
	template := `<?xml version="1.0"?><unattend xmlns="urn:schemas-microsoft-com:unattend">{{WINDOWSPE_PASS}}{{OOBESYSTEM_PASS}}</unattend>`
	fragments := map[types.Pass]string{
		types.PassWindowsPE:  "<A/>",
		types.PassOOBESystem: "<B/>",
	}

	assembler, outputPath := newTestAssembler(t, template, fragments)

	result, err := assembler.Assemble(context.Background())
	require.NoError(t, err)

	expected := `<?xml version="1.0"?><unattend xmlns="urn:schemas-microsoft-com:unattend"><A/><B/></unattend>`
	assert.Equal(t, expected, result.Document)
	assert.Equal(t, 2, result.PassesProcessed)
	assert.Len(t, result.Warnings, 5)

	written, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Equal(t, expected, string(written))
}

func TestAssembleTemplateMissing(t *testing.T) {
	dir := t.TempDir()
	templatePath := filepath.Join(dir, "does-not-exist.xml")
	outputPath := filepath.Join(dir, "build", "autounattend.xml")
	store := NewFragmentStore(writeFragments(t, dir, nil))

	assembler := NewAssembler(templatePath, outputPath, store, logging.Discard())

	result, err := assembler.Assemble(context.Background())
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), templatePath)
	assert.True(t, forgeerrors.IsFatal(err))

	var fe *forgeerrors.ForgeError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, forgeerrors.ErrCodeTemplateNotFound, fe.Code)

	_, statErr := os.Stat(outputPath)
	assert.True(t, os.IsNotExist(statErr), "no output should be written when the template is missing")
}

func TestAssembleTemplateMissingLeavesExistingOutput(t *testing.T) {
	dir := t.TempDir()
	outputPath := filepath.Join(dir, "build", "autounattend.xml")
	require.NoError(t, os.MkdirAll(filepath.Dir(outputPath), 0755))
	require.NoError(t, os.WriteFile(outputPath, []byte("previous run"), 0644))

	store := NewFragmentStore(writeFragments(t, dir, nil))
	assembler := NewAssembler(filepath.Join(dir, "missing.xml"), outputPath, store, logging.Discard())

	_, err := assembler.Assemble(context.Background())
	require.Error(t, err)

	data, readErr := os.ReadFile(outputPath)
	require.NoError(t, readErr)
	assert.Equal(t, "previous run", string(data), "fatal failure before the write step must leave prior output untouched")
}

func TestAssembleUnreadableTemplate(t *testing.T) {
	dir := t.TempDir()
	// A directory at the template path fails the read without IsNotExist
	templatePath := filepath.Join(dir, "template-as-dir")
	require.NoError(t, os.MkdirAll(templatePath, 0755))

	store := NewFragmentStore(writeFragments(t, dir, nil))
	assembler := NewAssembler(templatePath, filepath.Join(dir, "out.xml"), store, logging.Discard())

	_, err := assembler.Assemble(context.Background())
	require.Error(t, err)
	assert.True(t, forgeerrors.IsFatal(err))
}

func TestAssembleUnreadableFragmentIsFatal(t *testing.T) {
	dir := t.TempDir()
	templatePath := writeTemplate(t, dir, minimalTemplate)
	fragDir := writeFragments(t, dir, nil)
	// A directory where a fragment file is expected fails the read without
	// IsNotExist
	require.NoError(t, os.MkdirAll(filepath.Join(fragDir, types.PassWindowsPE.FragmentFile()), 0755))

	assembler := NewAssembler(templatePath, filepath.Join(dir, "out.xml"), NewFragmentStore(fragDir), logging.Discard())

	_, err := assembler.Assemble(context.Background())
	require.Error(t, err)

	var fe *forgeerrors.ForgeError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, forgeerrors.ErrCodeFragmentRead, fe.Code)
}

func TestAssembleEmptyFragmentCounts(t *testing.T) {
	fragments := map[types.Pass]string{
		types.PassWindowsPE: "",
	}
	template := `<unattend xmlns="urn:schemas-microsoft-com:unattend">{{WINDOWSPE_PASS}}</unattend>`

	assembler, _ := newTestAssembler(t, template, fragments)

	result, err := assembler.Assemble(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.PassesProcessed, "an empty fragment that exists still counts as processed")
	assert.Empty(t, result.Warnings)
	assert.Equal(t, `<unattend xmlns="urn:schemas-microsoft-com:unattend"></unattend>`, result.Document)
}

func TestAssembleFirstOccurrenceOnly(t *testing.T) {
	template := `{{WINDOWSPE_PASS}} and again {{WINDOWSPE_PASS}}`
	fragments := map[types.Pass]string{
		types.PassWindowsPE: "<A/>",
	}

	assembler, _ := newTestAssembler(t, template, fragments)

	result, err := assembler.Assemble(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "<A/> and again {{WINDOWSPE_PASS}}", result.Document,
		"only the first occurrence of a repeated placeholder is substituted")
}

func TestAssembleUnrecognizedPlaceholderUntouched(t *testing.T) {
	template := `{{WINDOWSPE_PASS}}{{CUSTOM_TOKEN}}`
	fragments := map[types.Pass]string{
		types.PassWindowsPE: "<A/>",
	}

	assembler, _ := newTestAssembler(t, template, fragments)

	result, err := assembler.Assemble(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "<A/>{{CUSTOM_TOKEN}}", result.Document)
}

// A fragment whose content contains a later pass's placeholder token steals
// that pass's substitution: the injected token comes earlier in the document,
// and substitution replaces first occurrences only. This pins down the
// current behavior so any change to it is deliberate.
func TestAssembleFragmentInjectingPlaceholderToken(t *testing.T) {
	template := `A {{WINDOWSPE_PASS}} B {{OOBESYSTEM_PASS}} C`
	fragments := map[types.Pass]string{
		types.PassWindowsPE:  "[{{OOBESYSTEM_PASS}}]",
		types.PassOOBESystem: "X",
	}

	assembler, _ := newTestAssembler(t, template, fragments)

	result, err := assembler.Assemble(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "A [X] B {{OOBESYSTEM_PASS}} C", result.Document)
}

func TestAssemblePreservesFragmentBytes(t *testing.T) {
	fragments := map[types.Pass]string{
		types.PassWindowsPE: "<A/>\r\n  <B/>\n",
	}
	template := `[{{WINDOWSPE_PASS}}]`

	assembler, outputPath := newTestAssembler(t, template, fragments)

	result, err := assembler.Assemble(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "[<A/>\r\n  <B/>\n]", result.Document)

	written, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Equal(t, []byte(result.Document), written)
}

func TestAssembleCreatesOutputDirectory(t *testing.T) {
	dir := t.TempDir()
	templatePath := writeTemplate(t, dir, "{{WINDOWSPE_PASS}}")
	fragDir := writeFragments(t, dir, map[types.Pass]string{types.PassWindowsPE: "<A/>"})
	outputPath := filepath.Join(dir, "deep", "nested", "out", "autounattend.xml")

	assembler := NewAssembler(templatePath, outputPath, NewFragmentStore(fragDir), logging.Discard())

	_, err := assembler.Assemble(context.Background())
	require.NoError(t, err)

	_, statErr := os.Stat(outputPath)
	assert.NoError(t, statErr)
}

func TestAssembleOverwritesPreviousOutput(t *testing.T) {
	dir := t.TempDir()
	templatePath := writeTemplate(t, dir, "{{WINDOWSPE_PASS}}")
	fragDir := writeFragments(t, dir, map[types.Pass]string{types.PassWindowsPE: "first"})
	outputPath := filepath.Join(dir, "out.xml")
	store := NewFragmentStore(fragDir)

	assembler := NewAssembler(templatePath, outputPath, store, logging.Discard())
	_, err := assembler.Assemble(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(fragDir, types.PassWindowsPE.FragmentFile()), []byte("second"), 0644))
	_, err = assembler.Assemble(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestAssembleWriteFailure(t *testing.T) {
	dir := t.TempDir()
	templatePath := writeTemplate(t, dir, "{{WINDOWSPE_PASS}}")
	fragDir := writeFragments(t, dir, map[types.Pass]string{types.PassWindowsPE: "<A/>"})

	// The output parent is a regular file, so directory creation fails
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("file"), 0644))
	outputPath := filepath.Join(blocker, "autounattend.xml")

	assembler := NewAssembler(templatePath, outputPath, NewFragmentStore(fragDir), logging.Discard())

	_, err := assembler.Assemble(context.Background())
	require.Error(t, err)

	var fe *forgeerrors.ForgeError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, forgeerrors.ErrCodeOutputWrite, fe.Code)
	assert.True(t, forgeerrors.IsFatal(err))
}

func TestAssembleIdempotent(t *testing.T) {
	fragments := make(map[types.Pass]string)
	for _, pass := range types.AllPasses {
		fragments[pass] = `<settings pass="` + pass.DisplayName() + `"/>`
	}

	assembler, outputPath := newTestAssembler(t, minimalTemplate, fragments)

	first, err := assembler.Assemble(context.Background())
	require.NoError(t, err)
	firstBytes, err := os.ReadFile(outputPath)
	require.NoError(t, err)

	second, err := assembler.Assemble(context.Background())
	require.NoError(t, err)
	secondBytes, err := os.ReadFile(outputPath)
	require.NoError(t, err)

	assert.Equal(t, first.Document, second.Document)
	assert.Equal(t, first.PassesProcessed, second.PassesProcessed)
	assert.Equal(t, firstBytes, secondBytes)
}
