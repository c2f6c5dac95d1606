package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/conneroisu/winforge/internal/assembly"
	"github.com/conneroisu/winforge/internal/config"
	"github.com/conneroisu/winforge/internal/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose project setup and imaging-tool availability",
	Long: `Diagnose your winforge project and check for setup issues.

The doctor command analyzes your project and environment and reports on
everything a build or imaging run depends on. It checks for:

- Configuration file presence and validity
- Template and pass fragment coverage
- Imaging tool availability (oscdimg, dism, robocopy)
- Port conflicts for the preview server
- Output directory writability

Examples:
  winforge doctor                   # Full project diagnosis
  winforge doctor --verbose         # Detailed diagnostic output
  winforge doctor --format json    # Output as JSON for tooling`,
	RunE: runDoctor,
}

var (
	doctorVerbose bool
	doctorFormat  string
)

// DiagnosticResult represents the result of a diagnostic check
type DiagnosticResult struct {
	Name        string                 `json:"name" yaml:"name"`
	Category    string                 `json:"category" yaml:"category"`
	Status      string                 `json:"status" yaml:"status"` // "ok", "warning", "error", "info"
	Message     string                 `json:"message" yaml:"message"`
	Suggestion  string                 `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty" yaml:"details,omitempty"`
	AutoFixable bool                   `json:"auto_fixable" yaml:"auto_fixable"`
}

// DoctorReport represents the complete diagnostic report
type DoctorReport struct {
	Timestamp   time.Time          `json:"timestamp" yaml:"timestamp"`
	Environment map[string]string  `json:"environment" yaml:"environment"`
	Results     []DiagnosticResult `json:"results" yaml:"results"`
	Summary     ReportSummary      `json:"summary" yaml:"summary"`
}

// ReportSummary provides an overview of diagnostic results
type ReportSummary struct {
	Total    int `json:"total" yaml:"total"`
	OK       int `json:"ok" yaml:"ok"`
	Warnings int `json:"warnings" yaml:"warnings"`
	Errors   int `json:"errors" yaml:"errors"`
	Info     int `json:"info" yaml:"info"`
}

func init() {
	rootCmd.AddCommand(doctorCmd)

	doctorCmd.Flags().BoolVarP(&doctorVerbose, "verbose", "v", false, "Show verbose diagnostic information")
	doctorCmd.Flags().StringVarP(&doctorFormat, "format", "f", "table", "Output format (table|json|yaml)")

	AddFlagValidation(doctorCmd, "format", func(format string) error {
		return ValidateFormatWithSuggestion(format, []string{"table", "json", "yaml"})
	})
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	fmt.Println("🔍 WinForge Project Doctor")
	fmt.Println("==========================")
	fmt.Println()

	// Create diagnostic report
	report := &DoctorReport{
		Timestamp:   time.Now(),
		Environment: gatherEnvironmentInfo(),
		Results:     []DiagnosticResult{},
	}

	// Run all diagnostic checks
	checks := []func(context.Context, *DoctorReport) DiagnosticResult{
		checkWinforgeConfiguration,
		checkAnswerFileTemplate,
		checkPassFragments,
		checkSetupScripts,
		checkOutputDirectory,
		checkImagingTools,
		checkPortAvailability,
		checkOperatingSystem,
	}

	for _, check := range checks {
		result := check(ctx, report)
		report.Results = append(report.Results, result)

		if !doctorVerbose && result.Status == "info" {
			continue
		}

		displayResult(result)
	}

	// Calculate summary
	report.Summary = calculateSummary(report.Results)

	// Display summary
	fmt.Println("\n📊 Summary")
	fmt.Println("==========")
	displaySummary(report.Summary)

	// Output formatted report if requested
	if doctorFormat != "table" {
		fmt.Println("\n📋 Detailed Report")
		fmt.Println("==================")
		if err := outputReport(report, doctorFormat); err != nil {
			return fmt.Errorf("failed to output report: %w", err)
		}
	}

	// Provide final recommendations
	provideFinalRecommendations(report)

	return nil
}

func gatherEnvironmentInfo() map[string]string {
	env := map[string]string{
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"go_version": runtime.Version(),
		"user":       os.Getenv("USER"),
		"shell":      os.Getenv("SHELL"),
		"editor":     getPreferredEditor(),
	}

	// Add working directory info
	if wd, err := os.Getwd(); err == nil {
		env["working_dir"] = wd
	}

	return env
}

func checkWinforgeConfiguration(ctx context.Context, report *DoctorReport) DiagnosticResult {
	result := DiagnosticResult{
		Name:     "WinForge Configuration",
		Category: "Configuration",
		Status:   "ok",
	}

	// Check if .winforge.yml exists
	configPath := ".winforge.yml"
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		result.Status = "warning"
		result.Message = "No .winforge.yml configuration file found"
		result.Suggestion = "Run 'winforge init' to scaffold a project with a default configuration"
		result.AutoFixable = true
		return result
	}

	// Try to load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Configuration file exists but has errors: %v", err)
		result.Suggestion = "Fix the reported configuration errors in .winforge.yml"
		return result
	}

	result.Message = "Configuration file is valid"
	result.Details = map[string]interface{}{
		"template":    cfg.Build.Template,
		"fragments":   cfg.Build.Fragments,
		"output":      cfg.Build.Output,
		"workdir":     cfg.Image.WorkDir,
		"server_port": cfg.Server.Port,
	}

	return result
}

func checkAnswerFileTemplate(ctx context.Context, report *DoctorReport) DiagnosticResult {
	result := DiagnosticResult{
		Name:     "Answer File Template",
		Category: "Configuration",
		Status:   "ok",
	}

	cfg, err := config.Load()
	if err != nil {
		result.Status = "info"
		result.Message = "Skipped: configuration could not be loaded"
		return result
	}

	data, err := os.ReadFile(cfg.Build.Template)
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Template not readable: %s", cfg.Build.Template)
		result.Suggestion = "Run 'winforge init' to create a template, or point build.template at an existing file"
		result.AutoFixable = true
		return result
	}

	// A pass whose placeholder is absent from the template never assembles
	content := string(data)
	var missing []string
	for _, pass := range types.AllPasses {
		if !strings.Contains(content, pass.Placeholder()) {
			missing = append(missing, pass.Placeholder())
		}
	}

	if len(missing) > 0 {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Template is missing %d pass placeholder(s)", len(missing))
		result.Suggestion = fmt.Sprintf("Add %s to the template so those passes can be assembled", strings.Join(missing, ", "))
		result.Details = map[string]interface{}{
			"missing_placeholders": missing,
		}
		return result
	}

	result.Message = fmt.Sprintf("Template contains all %d pass placeholders", len(types.AllPasses))
	result.Details = map[string]interface{}{
		"template": cfg.Build.Template,
		"size":     len(data),
	}

	return result
}

func checkPassFragments(ctx context.Context, report *DoctorReport) DiagnosticResult {
	result := DiagnosticResult{
		Name:     "Pass Fragments",
		Category: "Configuration",
		Status:   "ok",
	}

	cfg, err := config.Load()
	if err != nil {
		result.Status = "info"
		result.Message = "Skipped: configuration could not be loaded"
		return result
	}

	if _, err := os.Stat(cfg.Build.Fragments); os.IsNotExist(err) {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Fragment directory does not exist: %s", cfg.Build.Fragments)
		result.Suggestion = "Run 'winforge init' to scaffold the fragment directory"
		result.AutoFixable = true
		return result
	}

	store := assembly.NewFragmentStore(cfg.Build.Fragments)
	fragments := store.List()

	present := 0
	for _, fragment := range fragments {
		if fragment.Present {
			present++
		}
	}

	result.Message = fmt.Sprintf("%d of %d pass fragments present", present, len(fragments))
	result.Details = map[string]interface{}{
		"fragments_dir": cfg.Build.Fragments,
		"present":       present,
		"total":         len(fragments),
	}

	if present == 0 {
		result.Status = "warning"
		result.Message = "No pass fragments found; a build would produce an empty document"
		result.Suggestion = fmt.Sprintf("Create fragments under %s, or run 'winforge init' for starters", cfg.Build.Fragments)
		result.AutoFixable = true
	}

	return result
}

func checkSetupScripts(ctx context.Context, report *DoctorReport) DiagnosticResult {
	result := DiagnosticResult{
		Name:     "Setup Scripts",
		Category: "Configuration",
		Status:   "info",
	}

	cfg, err := config.Load()
	if err != nil {
		result.Message = "Skipped: configuration could not be loaded"
		return result
	}

	entries, err := os.ReadDir(cfg.Scripts.Dir)
	if err != nil {
		result.Message = fmt.Sprintf("No script directory at %s (scripts are optional)", cfg.Scripts.Dir)
		return result
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".cmd", ".bat", ".ps1":
			count++
		}
	}

	result.Status = "ok"
	result.Message = fmt.Sprintf("%d setup script(s) ready for injection", count)
	result.Details = map[string]interface{}{
		"scripts_dir": cfg.Scripts.Dir,
		"count":       count,
	}

	return result
}

func checkOutputDirectory(ctx context.Context, report *DoctorReport) DiagnosticResult {
	result := DiagnosticResult{
		Name:     "Output Directory",
		Category: "Environment",
		Status:   "ok",
	}

	cfg, err := config.Load()
	if err != nil {
		result.Status = "info"
		result.Message = "Skipped: configuration could not be loaded"
		return result
	}

	outputDir := filepath.Dir(cfg.Build.Output)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Cannot create output directory %s: %v", outputDir, err)
		result.Suggestion = "Check filesystem permissions or choose another build.output path"
		return result
	}

	// Probe writability with a throwaway file
	probe := filepath.Join(outputDir, ".winforge-doctor")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Output directory %s is not writable: %v", outputDir, err)
		result.Suggestion = "Check filesystem permissions or choose another build.output path"
		return result
	}
	os.Remove(probe)

	result.Message = fmt.Sprintf("Output directory %s is writable", outputDir)
	result.Details = map[string]interface{}{
		"output_dir": outputDir,
	}

	return result
}

func checkImagingTools(ctx context.Context, report *DoctorReport) DiagnosticResult {
	result := DiagnosticResult{
		Name:     "Imaging Tools",
		Category: "Tools",
		Status:   "ok",
	}

	if runtime.GOOS != "windows" {
		result.Status = "info"
		result.Message = fmt.Sprintf("Imaging tools are Windows-only (detected %s)", runtime.GOOS)
		result.Suggestion = "Answer-file commands work anywhere; run 'winforge image' on a Windows host with the ADK installed"
		return result
	}

	tools := []string{"oscdimg", "dism", "robocopy", "powershell"}
	found := map[string]interface{}{}
	var missing []string

	for _, tool := range tools {
		path := getCommandPath(tool)
		found[tool] = path
		if path == "not found" {
			missing = append(missing, tool)
		}
	}

	result.Details = found

	if len(missing) > 0 {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Imaging tools not found: %s", strings.Join(missing, ", "))
		result.Suggestion = "Install the missing tools and ensure they are on PATH"
		for _, tool := range missing {
			if tool == "oscdimg" {
				result.Suggestion = "Install the Windows ADK Deployment Tools, or set image.oscdimg to the full oscdimg.exe path"
			}
		}
		result.AutoFixable = true
		return result
	}

	result.Message = "All imaging tools available"

	return result
}

func checkPortAvailability(ctx context.Context, report *DoctorReport) DiagnosticResult {
	result := DiagnosticResult{
		Name:     "Port Availability",
		Category: "Network",
		Status:   "ok",
	}

	configuredPort := config.DefaultServerPort
	if cfg, err := config.Load(); err == nil {
		configuredPort = cfg.Server.Port
	}

	portsToCheck := []int{configuredPort, 8080, 8081, 3000, 4000}
	availablePorts := []int{}
	conflictPorts := []int{}
	seen := map[int]bool{}

	for _, port := range portsToCheck {
		if seen[port] {
			continue
		}
		seen[port] = true

		if isPortAvailable(port) {
			availablePorts = append(availablePorts, port)
		} else {
			conflictPorts = append(conflictPorts, port)
			if port == configuredPort {
				result.Status = "warning"
			}
		}
	}

	if len(conflictPorts) == 0 {
		result.Message = "All candidate preview ports are available"
	} else {
		result.Message = fmt.Sprintf("Port conflicts detected: %v", conflictPorts)
		if contains(conflictPorts, configuredPort) && len(availablePorts) > 0 {
			result.Suggestion = fmt.Sprintf("Use an alternative port: winforge serve --port %d", availablePorts[0])
		} else {
			result.Suggestion = "Stop the conflicting services or configure another server.port"
		}
	}

	result.Details = map[string]interface{}{
		"configured_port": configuredPort,
		"available_ports": availablePorts,
		"conflict_ports":  conflictPorts,
	}

	return result
}

func checkOperatingSystem(ctx context.Context, report *DoctorReport) DiagnosticResult {
	result := DiagnosticResult{
		Name:     "Operating System",
		Category: "Environment",
		Status:   "info",
	}

	result.Message = fmt.Sprintf("Running on %s/%s", runtime.GOOS, runtime.GOARCH)
	result.Details = map[string]interface{}{
		"os":   runtime.GOOS,
		"arch": runtime.GOARCH,
	}

	if runtime.GOOS == "windows" {
		result.Status = "ok"
		result.Message = "Running on Windows; the full build-to-ISO pipeline is available"
	}

	return result
}

func getPreferredEditor() string {
	editors := []string{"VISUAL", "EDITOR"}
	for _, env := range editors {
		if editor := os.Getenv(env); editor != "" {
			return editor
		}
	}
	return "unknown"
}

func getCommandPath(command string) string {
	if path, err := exec.LookPath(command); err == nil {
		return path
	}
	return "not found"
}

func isPortAvailable(port int) bool {
	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
	if err != nil {
		return false
	}
	listener.Close()
	return true
}

func contains(slice []int, item int) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

func displayResult(result DiagnosticResult) {
	var icon string
	switch result.Status {
	case "ok":
		icon = "✅"
	case "warning":
		icon = "⚠️"
	case "error":
		icon = "❌"
	case "info":
		icon = "ℹ️"
	default:
		icon = "•"
	}

	fmt.Printf("%s [%s] %s: %s\n", icon, strings.ToUpper(result.Category), result.Name, result.Message)

	if result.Suggestion != "" {
		fmt.Printf("   💡 %s\n", result.Suggestion)
	}

	if doctorVerbose && result.Details != nil && len(result.Details) > 0 {
		fmt.Printf("   📋 Details: %+v\n", result.Details)
	}

	fmt.Println()
}

func calculateSummary(results []DiagnosticResult) ReportSummary {
	summary := ReportSummary{
		Total: len(results),
	}

	for _, result := range results {
		switch result.Status {
		case "ok":
			summary.OK++
		case "warning":
			summary.Warnings++
		case "error":
			summary.Errors++
		case "info":
			summary.Info++
		}
	}

	return summary
}

func displaySummary(summary ReportSummary) {
	fmt.Printf("Total Checks: %d\n", summary.Total)
	fmt.Printf("✅ OK: %d\n", summary.OK)
	fmt.Printf("⚠️  Warnings: %d\n", summary.Warnings)
	fmt.Printf("❌ Errors: %d\n", summary.Errors)
	fmt.Printf("ℹ️  Info: %d\n", summary.Info)

	// Calculate health score
	healthScore := float64(summary.OK) / float64(summary.Total) * 100
	fmt.Printf("\n🎯 Project Health Score: %.0f%%\n", healthScore)
}

func outputReport(report *DoctorReport, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	case "yaml":
		encoder := yaml.NewEncoder(os.Stdout)
		return encoder.Encode(report)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func provideFinalRecommendations(report *DoctorReport) {
	fmt.Println("\n🚀 Final Recommendations")
	fmt.Println("========================")

	hasErrors := report.Summary.Errors > 0
	hasWarnings := report.Summary.Warnings > 0

	if hasErrors {
		fmt.Println("❌ Critical Issues Detected:")
		fmt.Println("   Address the errors above before building installation media")
		fmt.Println()
	}

	if hasWarnings {
		fmt.Println("⚠️  Setup Opportunities:")
		fmt.Println("   Review warnings above to complete your project setup")
		fmt.Println()
	}

	if !hasErrors && !hasWarnings {
		fmt.Println("🎉 Your project looks ready to forge!")
		fmt.Println()
	}

	// Provide specific next steps based on findings
	fmt.Println("📝 Next Steps:")

	if !hasWinforgeConfig(report) {
		fmt.Println("   1. Run 'winforge init' to scaffold a project")
	} else {
		fmt.Println("   1. Run 'winforge build' to assemble the answer file")
	}

	if hasSetupOpportunities(report) {
		fmt.Println("   2. Work through the suggestions above before an imaging run")
	}

	fmt.Println()
}

func hasWinforgeConfig(report *DoctorReport) bool {
	for _, result := range report.Results {
		if result.Name == "WinForge Configuration" && result.Status == "ok" {
			return true
		}
	}
	return false
}

func hasSetupOpportunities(report *DoctorReport) bool {
	for _, result := range report.Results {
		if result.AutoFixable && (result.Status == "warning" || result.Status == "error") {
			return true
		}
	}
	return false
}
