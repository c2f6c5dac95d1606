// Package build sequences assembly and validation into one build run and
// collects timing, size, and memory statistics.
package build

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/conneroisu/winforge/internal/assembly"
	"github.com/conneroisu/winforge/internal/logging"
	"github.com/conneroisu/winforge/internal/report"
	"github.com/conneroisu/winforge/internal/types"
	"github.com/conneroisu/winforge/internal/validation"
)

// Driver runs the linear build pipeline: assemble, validate, report. Every
// collaborator is injected at construction; the driver holds no global
// state and a single driver can run any number of sequential builds.
type Driver struct {
	assembler *assembly.Assembler
	validator *validation.Validator
	reporter  report.Reporter
	logger    logging.Logger
}

// NewDriver creates a build driver with explicit collaborators.
func NewDriver(assembler *assembly.Assembler, validator *validation.Validator, reporter report.Reporter, logger logging.Logger) *Driver {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Driver{
		assembler: assembler,
		validator: validator,
		reporter:  reporter,
		logger:    logger.WithComponent("driver"),
	}
}

// Run executes one build. The returned result is never nil: a fatal
// assembly problem yields Success=false with the triggering message and
// whatever statistics were gathered before the failure.
func (d *Driver) Run(ctx context.Context) *types.BuildResult {
	stats := &types.BuildStats{StartTime: time.Now()}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	stats.HeapAllocStart = mem.HeapAlloc

	result := &types.BuildResult{Stats: stats}

	d.logger.Info(ctx, "build started",
		"template", d.assembler.TemplatePath(),
		"output", d.assembler.OutputPath())

	d.reporter.Step("Assembling answer file...")
	assembled, err := d.assembler.Assemble(ctx)
	if err != nil {
		d.finish(stats)
		result.Error = err.Error()
		d.logger.Error(ctx, err, "assembly failed")
		d.reporter.Summary(result)
		return result
	}

	stats.PassesProcessed = assembled.PassesProcessed
	stats.FileSize = int64(len(assembled.Document))
	result.Warnings = append(result.Warnings, assembled.Warnings...)
	for _, warning := range assembled.Warnings {
		d.reporter.Warning(warning)
	}
	d.reporter.Success(fmt.Sprintf("Assembled %d/%d passes", assembled.PassesProcessed, len(types.AllPasses)))

	d.reporter.Step("Validating assembled document...")
	validated, err := d.validator.ValidateFile(ctx, d.assembler.OutputPath())
	if err != nil {
		d.finish(stats)
		result.Error = err.Error()
		d.logger.Error(ctx, err, "validation aborted")
		d.reporter.Summary(result)
		return result
	}

	d.finish(stats)

	result.Success = true
	result.OutputPath = d.assembler.OutputPath()
	result.Valid = validated.Valid
	result.Validation = validated
	result.Warnings = append(result.Warnings, validated.Warnings...)

	d.logger.Info(ctx, "build finished",
		"valid", validated.Valid,
		"passes", stats.PassesProcessed,
		"size", stats.FileSize,
		"duration", stats.Duration)

	d.reporter.Summary(result)
	return result
}

// finish stamps the end of the run. EndTime lands immediately after
// validation completes, or at the point of failure.
func (d *Driver) finish(stats *types.BuildStats) {
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	stats.HeapAllocEnd = mem.HeapAlloc
}
