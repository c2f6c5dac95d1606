package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/conneroisu/winforge/internal/assembly"
	"github.com/conneroisu/winforge/internal/build"
	"github.com/conneroisu/winforge/internal/config"
	"github.com/conneroisu/winforge/internal/report"
	"github.com/conneroisu/winforge/internal/server"
	"github.com/conneroisu/winforge/internal/types"
	"github.com/conneroisu/winforge/internal/validation"
	"github.com/conneroisu/winforge/internal/watcher"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const integrationTemplate = `<?xml version="1.0" encoding="utf-8"?>
<unattend xmlns="urn:schemas-microsoft-com:unattend">
  {{WINDOWSPE_PASS}}
  {{OFFLINESERVICING_PASS}}
  {{GENERALIZE_PASS}}
  {{SPECIALIZE_PASS}}
  {{AUDITSYSTEM_PASS}}
  {{AUDITUSER_PASS}}
  {{OOBESYSTEM_PASS}}
</unattend>
`

// writeAnswerProject lays out a minimal project: a template plus fragments
// for the windowsPE and specialize passes. The other five passes have no
// fragment on disk.
func writeAnswerProject(t *testing.T, dir string) (templatePath, fragmentsDir, outputPath string) {
	t.Helper()

	fragmentsDir = filepath.Join(dir, "config", "passes")
	require.NoError(t, os.MkdirAll(fragmentsDir, 0755))

	templatePath = filepath.Join(dir, "config", "autounattend.template.xml")
	require.NoError(t, os.WriteFile(templatePath, []byte(integrationTemplate), 0644))

	windowsPE := `<settings pass="windowsPE">
  <component name="Microsoft-Windows-Setup" processorArchitecture="amd64" publicKeyToken="31bf3856ad364e35" language="neutral" versionScope="nonSxS">
    <UserData>
      <AcceptEula>true</AcceptEula>
    </UserData>
  </component>
</settings>`
	require.NoError(t, os.WriteFile(filepath.Join(fragmentsDir, "windowspe.xml"), []byte(windowsPE), 0644))

	specialize := `<settings pass="specialize">
  <component name="Microsoft-Windows-Shell-Setup" processorArchitecture="amd64" publicKeyToken="31bf3856ad364e35" language="neutral" versionScope="nonSxS">
    <ComputerName>LAB-01</ComputerName>
    <TimeZone>UTC</TimeZone>
  </component>
</settings>`
	require.NoError(t, os.WriteFile(filepath.Join(fragmentsDir, "specialize.xml"), []byte(specialize), 0644))

	outputPath = filepath.Join(dir, "build", "autounattend.xml")
	return templatePath, fragmentsDir, outputPath
}

func newTestDriver(templatePath, fragmentsDir, outputPath string, out *bytes.Buffer) *build.Driver {
	return build.NewDriver(
		assembly.NewAssembler(templatePath, outputPath, assembly.NewFragmentStore(fragmentsDir), nil),
		validation.NewValidator(nil),
		report.NewBasicReporter(out),
		nil,
	)
}

func TestIntegration_FullBuildPipeline(t *testing.T) {
	tempDir := t.TempDir()
	templatePath, fragmentsDir, outputPath := writeAnswerProject(t, tempDir)

	var out bytes.Buffer
	driver := newTestDriver(templatePath, fragmentsDir, outputPath, &out)

	result := driver.Run(context.Background())
	require.True(t, result.Success, "build should succeed: %s", result.Error)
	assert.True(t, result.Valid)
	assert.Equal(t, outputPath, result.OutputPath)

	require.NotNil(t, result.Stats)
	assert.Equal(t, 2, result.Stats.PassesProcessed)
	assert.Greater(t, result.Stats.FileSize, int64(0))

	// One warning per absent fragment
	assert.Len(t, result.Warnings, 5)

	document, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Contains(t, string(document), `<unattend xmlns="urn:schemas-microsoft-com:unattend">`)
	assert.Contains(t, string(document), "<ComputerName>LAB-01</ComputerName>")
	assert.NotContains(t, string(document), "{{")

	assert.Contains(t, out.String(), "build completed")
}

func TestIntegration_BuildReportsInvalidDocument(t *testing.T) {
	tempDir := t.TempDir()
	templatePath, fragmentsDir, outputPath := writeAnswerProject(t, tempDir)

	// A token the assembler does not recognize passes through and fails
	// validation without failing the build.
	template := strings.Replace(integrationTemplate,
		"{{OOBESYSTEM_PASS}}",
		"{{OOBESYSTEM_PASS}}\n  {{FIRSTLOGON_COMMANDS}}", 1)
	require.NoError(t, os.WriteFile(templatePath, []byte(template), 0644))

	var out bytes.Buffer
	driver := newTestDriver(templatePath, fragmentsDir, outputPath, &out)

	result := driver.Run(context.Background())
	assert.True(t, result.Success)
	assert.False(t, result.Valid)

	require.NotNil(t, result.Validation)
	require.Len(t, result.Validation.Errors, 1)
	assert.Contains(t, result.Validation.Errors[0], "{{FIRSTLOGON_COMMANDS}}")
}

func TestIntegration_ServerStartStop(t *testing.T) {
	// Set up configuration
	viper.Reset()
	viper.Set("server.port", 0) // Use random port
	viper.Set("server.host", "localhost")
	viper.Set("server.open", false)

	cfg, err := config.Load()
	require.NoError(t, err)

	// Create server
	srv := server.NewPreviewServer(cfg, nil)

	// Start server
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := srv.Start(ctx); err != nil {
			t.Errorf("Server start failed: %v", err)
		}
	}()

	// Give server time to start
	time.Sleep(100 * time.Millisecond)

	// Test server shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	err = srv.Shutdown(shutdownCtx)
	assert.NoError(t, err)
}

func TestIntegration_ServerReceivesBuildResult(t *testing.T) {
	viper.Reset()
	viper.Set("server.port", 0)
	viper.Set("server.host", "localhost")
	viper.Set("server.open", false)

	cfg, err := config.Load()
	require.NoError(t, err)

	srv := server.NewPreviewServer(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := srv.Start(ctx); err != nil {
			t.Errorf("Server start failed: %v", err)
		}
	}()

	// Give server time to start
	time.Sleep(100 * time.Millisecond)

	valid := &types.BuildResult{
		Success:    true,
		OutputPath: "build/autounattend.xml",
		Valid:      true,
		Validation: types.NewValidationResult(),
		Stats: &types.BuildStats{
			Duration:        150 * time.Millisecond,
			PassesProcessed: 7,
			FileSize:        4096,
		},
	}
	srv.Update(valid, "<unattend></unattend>")

	invalid := &types.BuildResult{
		Success:    true,
		OutputPath: "build/autounattend.xml",
		Valid:      false,
		Validation: types.NewValidationResult(),
		Stats:      &types.BuildStats{Duration: 90 * time.Millisecond},
	}
	invalid.Validation.AddError("unresolved placeholders: {{SPECIALIZE_PASS}}")
	srv.Update(invalid, "{{SPECIALIZE_PASS}}")

	snapshot := srv.Metrics().Snapshot()
	assert.Equal(t, int64(2), snapshot.TotalBuilds)
	assert.Equal(t, int64(2), snapshot.SuccessfulBuilds)
	assert.Equal(t, int64(1), snapshot.InvalidDocuments)
	assert.Equal(t, int64(0), snapshot.FailedBuilds)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	err = srv.Shutdown(shutdownCtx)
	assert.NoError(t, err)
}

func TestIntegration_WatcherRebuild(t *testing.T) {
	oldDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	defer os.Chdir(oldDir)

	// Watch paths must live under the working directory.
	templatePath, fragmentsDir, outputPath := writeAnswerProject(t, ".")

	var out bytes.Buffer
	driver := newTestDriver(templatePath, fragmentsDir, outputPath, &out)
	require.True(t, driver.Run(context.Background()).Success)

	w, err := watcher.NewFileWatcher(100 * time.Millisecond)
	require.NoError(t, err)
	defer w.Stop()

	w.AddFilter(watcher.XMLFilter)

	var rebuilds int64
	w.AddHandler(func(events []watcher.ChangeEvent) error {
		atomic.AddInt64(&rebuilds, 1)
		driver.Run(context.Background())
		return nil
	})

	require.NoError(t, w.AddRecursive(fragmentsDir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	// Give the watch loop time to come up
	time.Sleep(100 * time.Millisecond)

	updated := `<settings pass="specialize">
  <component name="Microsoft-Windows-Shell-Setup" processorArchitecture="amd64" publicKeyToken="31bf3856ad364e35" language="neutral" versionScope="nonSxS">
    <ComputerName>LAB-02</ComputerName>
    <TimeZone>UTC</TimeZone>
  </component>
</settings>`
	require.NoError(t, os.WriteFile(filepath.Join(fragmentsDir, "specialize.xml"), []byte(updated), 0644))

	// Give the watcher time to detect and debounce the change
	time.Sleep(500 * time.Millisecond)

	assert.GreaterOrEqual(t, atomic.LoadInt64(&rebuilds), int64(1))

	document, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Contains(t, string(document), "<ComputerName>LAB-02</ComputerName>")
}

func TestIntegration_ConfigurationLoading(t *testing.T) {
	tests := []struct {
		name   string
		setup  func()
		verify func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "default configuration",
			setup: func() {
				viper.Reset()
				viper.Set("server.port", 8080)
				viper.Set("server.host", "localhost")
			},
			verify: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Server.Host)
				assert.Equal(t, config.DefaultTemplatePath, cfg.Build.Template)
				assert.Equal(t, config.DefaultFragmentsDir, cfg.Build.Fragments)
				assert.Equal(t, config.DefaultOutputPath, cfg.Build.Output)
				assert.False(t, cfg.Build.Strict)
			},
		},
		{
			name: "custom configuration",
			setup: func() {
				viper.Reset()
				viper.Set("server.port", 3000)
				viper.Set("server.host", "0.0.0.0")
				viper.Set("build.strict", true)
				viper.Set("image.label", "DEPLOY")
			},
			verify: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, 3000, cfg.Server.Port)
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.True(t, cfg.Build.Strict)
				assert.Equal(t, "DEPLOY", cfg.Image.Label)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()

			cfg, err := config.Load()
			require.NoError(t, err)

			tt.verify(t, cfg)
		})
	}
}

func TestIntegration_ErrorHandling(t *testing.T) {
	// Configuration validation rejects out-of-range ports
	viper.Reset()
	viper.Set("server.port", 99999)

	_, err := config.Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.Contains(t, err.Error(), "not in valid range")
}

func TestIntegration_ResourceCleanup(t *testing.T) {
	viper.Reset()
	viper.Set("server.port", 0)
	viper.Set("server.host", "localhost")
	viper.Set("server.open", false)

	cfg, err := config.Load()
	require.NoError(t, err)

	// Create multiple servers to test resource cleanup
	for i := 0; i < 3; i++ {
		srv := server.NewPreviewServer(cfg, nil)

		ctx, cancel := context.WithCancel(context.Background())

		go func() {
			if err := srv.Start(ctx); err != nil {
				t.Errorf("Server start failed: %v", err)
			}
		}()

		// Give server time to start
		time.Sleep(50 * time.Millisecond)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)

		err = srv.Shutdown(shutdownCtx)
		assert.NoError(t, err)

		shutdownCancel()
		cancel()
	}
}

func TestIntegration_FullSystem(t *testing.T) {
	// This test verifies the entire system works together
	// It covers:
	// 1. Configuration loading
	// 2. Build pipeline execution
	// 3. Preview server startup
	// 4. File watching
	// 5. Graceful shutdown

	oldDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	defer os.Chdir(oldDir)

	// Watch paths must live under the working directory.
	templatePath, fragmentsDir, outputPath := writeAnswerProject(t, ".")

	// Set up configuration
	viper.Reset()
	viper.Set("server.port", 0)
	viper.Set("server.host", "localhost")
	viper.Set("server.open", false)

	cfg, err := config.Load()
	require.NoError(t, err)

	// Create server
	srv := server.NewPreviewServer(cfg, nil)

	var out bytes.Buffer
	driver := newTestDriver(templatePath, fragmentsDir, outputPath, &out)

	// Start server
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := srv.Start(ctx); err != nil {
			t.Errorf("Server start failed: %v", err)
		}
	}()

	// Give server time to start
	time.Sleep(100 * time.Millisecond)

	// Initial build feeds the preview
	result := driver.Run(context.Background())
	require.True(t, result.Success)
	document, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	srv.Update(result, string(document))

	// Rebuild on fragment changes
	w, err := watcher.NewFileWatcher(100 * time.Millisecond)
	require.NoError(t, err)
	defer w.Stop()

	w.AddFilter(watcher.XMLFilter)
	w.AddHandler(func(events []watcher.ChangeEvent) error {
		rebuilt := driver.Run(context.Background())
		doc, err := os.ReadFile(outputPath)
		if err != nil {
			return err
		}
		srv.Update(rebuilt, string(doc))
		return nil
	})

	require.NoError(t, w.AddRecursive(fragmentsDir))
	require.NoError(t, w.Start(ctx))

	// Give the watch loop time to come up
	time.Sleep(100 * time.Millisecond)

	// Modify a fragment to trigger a rebuild
	updated := `<settings pass="specialize">
  <component name="Microsoft-Windows-Shell-Setup" processorArchitecture="amd64" publicKeyToken="31bf3856ad364e35" language="neutral" versionScope="nonSxS">
    <ComputerName>LAB-99</ComputerName>
    <TimeZone>UTC</TimeZone>
  </component>
</settings>`
	require.NoError(t, os.WriteFile(filepath.Join(fragmentsDir, "specialize.xml"), []byte(updated), 0644))

	// Give the watcher time to detect change and rebuild
	time.Sleep(500 * time.Millisecond)

	snapshot := srv.Metrics().Snapshot()
	assert.GreaterOrEqual(t, snapshot.TotalBuilds, int64(2))
	assert.Equal(t, snapshot.TotalBuilds, snapshot.SuccessfulBuilds)

	rebuilt, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Contains(t, string(rebuilt), "<ComputerName>LAB-99</ComputerName>")

	// Test graceful shutdown
	require.NoError(t, w.Stop())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	err = srv.Shutdown(shutdownCtx)
	assert.NoError(t, err)
}
