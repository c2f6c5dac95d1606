package assembly

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/winforge/internal/errors"
	"github.com/conneroisu/winforge/internal/logging"
	"github.com/conneroisu/winforge/internal/types"
)

// Assembler substitutes pass fragments into the answer-file template and
// writes the result to the output path.
type Assembler struct {
	templatePath string
	outputPath   string
	store        *FragmentStore
	logger       logging.Logger
}

// Result carries the assembled document and per-pass diagnostics from one
// assembly run.
type Result struct {
	// Document is the fully substituted answer file text
	Document string
	// Warnings records one entry per missing fragment, in pass order
	Warnings []string
	// PassesProcessed counts fragments that existed and were read; missing
	// fragments do not count
	PassesProcessed int
}

// NewAssembler creates an assembler for the given template, output path, and
// fragment store.
func NewAssembler(templatePath, outputPath string, store *FragmentStore, logger logging.Logger) *Assembler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Assembler{
		templatePath: templatePath,
		outputPath:   outputPath,
		store:        store,
		logger:       logger.WithComponent("assembler"),
	}
}

// OutputPath returns where Assemble writes the assembled document.
func (a *Assembler) OutputPath() string {
	return a.outputPath
}

// TemplatePath returns the template file location.
func (a *Assembler) TemplatePath() string {
	return a.templatePath
}

// Assemble reads the template, substitutes every pass placeholder in the
// fixed pass order, and writes the document to the output path.
//
// Each placeholder is replaced at its first occurrence only. A template that
// repeats a placeholder keeps the later occurrences verbatim, and a token the
// assembler does not recognize passes through untouched; the validator
// reports such leftovers.
//
// A missing template or a failed write aborts the build. A missing fragment
// does not: its placeholder is substituted with an empty string and a warning
// is recorded. Any other fragment read failure aborts.
func (a *Assembler) Assemble(ctx context.Context) (*Result, error) {
	template, err := os.ReadFile(a.templatePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewAssemblyError(errors.ErrCodeTemplateNotFound,
				fmt.Sprintf("template file not found: %s", a.templatePath), err).WithPath(a.templatePath)
		}
		return nil, errors.WrapIO(err, errors.ErrCodeTemplateNotFound,
			fmt.Sprintf("failed to read template file: %s", a.templatePath)).WithPath(a.templatePath)
	}

	a.logger.Debug(ctx, "template loaded",
		"path", a.templatePath,
		"size", len(template))

	document := string(template)
	result := &Result{}

	for _, pass := range types.AllPasses {
		content, err := a.store.Load(pass)
		switch {
		case err == nil:
			result.PassesProcessed++
			a.logger.Debug(ctx, "fragment loaded",
				"pass", pass.String(),
				"size", len(content))
		case os.IsNotExist(err):
			warning := fmt.Sprintf("missing fragment for pass %s: %s", pass.DisplayName(), a.store.Path(pass))
			result.Warnings = append(result.Warnings, warning)
			a.logger.Warn(ctx, nil, "fragment file not found, substituting empty content",
				"pass", pass.String(),
				"path", a.store.Path(pass))
			content = ""
		default:
			return nil, errors.WrapIO(err, errors.ErrCodeFragmentRead,
				fmt.Sprintf("failed to read fragment for pass %s", pass.DisplayName())).WithPath(a.store.Path(pass))
		}

		document = strings.Replace(document, pass.Placeholder(), content, 1)
	}

	if err := a.write(ctx, document); err != nil {
		return nil, err
	}

	result.Document = document
	return result, nil
}

// write persists the assembled document verbatim, creating the output's
// parent directory when absent.
func (a *Assembler) write(ctx context.Context, document string) error {
	dir := filepath.Dir(a.outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.WrapIO(err, errors.ErrCodeOutputWrite,
			fmt.Sprintf("failed to create output directory: %s", dir)).WithPath(dir)
	}

	if err := os.WriteFile(a.outputPath, []byte(document), 0644); err != nil {
		return errors.WrapIO(err, errors.ErrCodeOutputWrite,
			fmt.Sprintf("failed to write assembled document: %s", a.outputPath)).WithPath(a.outputPath)
	}

	a.logger.Info(ctx, "assembled document written",
		"path", a.outputPath,
		"size", len(document))

	return nil
}
