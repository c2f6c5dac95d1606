package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/winforge/internal/types"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var initCmd = &cobra.Command{
	Use:     "init [name]",
	Aliases: []string{"i"},
	Short:   "Initialize a new winforge project",
	Long: `Initialize a new winforge project with the necessary directory structure
and configuration files. If no name is provided, initializes in the current
directory.

The scaffold includes an answer-file template with every pass placeholder,
starter fragments that assemble into a valid document, a sample
SetupComplete.cmd post-install script, and a .winforge.yml configuration.

Examples:
  winforge init                   # Initialize in current directory
  winforge init my-deployment     # Initialize in new directory 'my-deployment'
  winforge init --minimal         # Template and config only, no starter fragments`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var initMinimal bool

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVar(&initMinimal, "minimal", false, "Minimal setup without starter fragments and scripts")
}

func runInit(cmd *cobra.Command, args []string) error {
	var projectDir string

	if len(args) == 0 {
		// Initialize in current directory
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		projectDir = cwd
	} else {
		// Create new directory
		projectDir = args[0]
		if err := os.MkdirAll(projectDir, 0755); err != nil {
			return fmt.Errorf("failed to create project directory: %w", err)
		}
	}

	fmt.Printf("Initializing winforge project in %s\n", projectDir)

	// Create directory structure
	if err := createDirectoryStructure(projectDir); err != nil {
		return fmt.Errorf("failed to create directory structure: %w", err)
	}

	// Create the answer-file template
	if err := createTemplateFile(projectDir); err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}

	// Create configuration file
	if err := createConfigFile(projectDir); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	// Create starter fragments and scripts unless minimal
	if !initMinimal {
		if err := createStarterFragments(projectDir); err != nil {
			return fmt.Errorf("failed to create starter fragments: %w", err)
		}
		if err := createSetupScript(projectDir); err != nil {
			return fmt.Errorf("failed to create setup script: %w", err)
		}
	}

	if err := createGitignore(projectDir); err != nil {
		return fmt.Errorf("failed to create .gitignore: %w", err)
	}

	fmt.Println("✓ Project initialized successfully!")
	fmt.Println("\nNext steps:")
	if len(args) > 0 {
		fmt.Println("  1. cd " + projectDir)
		fmt.Println("  2. Edit the fragments under config/passes/")
		fmt.Println("  3. winforge build")
	} else {
		fmt.Println("  1. Edit the fragments under config/passes/")
		fmt.Println("  2. winforge build")
	}
	fmt.Println("\nSet image.source_iso in .winforge.yml and run 'winforge image' to forge installation media.")

	return nil
}

func createDirectoryStructure(projectDir string) error {
	dirs := []string{
		"config",
		"config/passes",
		"config/scripts",
		"build",
	}

	for _, dir := range dirs {
		dirPath := filepath.Join(projectDir, dir)
		if err := os.MkdirAll(dirPath, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

func createTemplateFile(projectDir string) error {
	templatePath := filepath.Join(projectDir, "config", "autounattend.template.xml")

	// Don't overwrite an existing template
	if _, err := os.Stat(templatePath); err == nil {
		fmt.Println("⚠ Template already exists, skipping")
		return nil
	}

	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n")
	b.WriteString("<unattend xmlns=\"urn:schemas-microsoft-com:unattend\">\n")
	for _, pass := range types.AllPasses {
		b.WriteString("  " + pass.Placeholder() + "\n")
	}
	b.WriteString("</unattend>\n")

	if err := os.WriteFile(templatePath, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write template: %w", err)
	}

	fmt.Println("✓ Created config/autounattend.template.xml")
	return nil
}

func createConfigFile(projectDir string) error {
	configPath := filepath.Join(projectDir, ".winforge.yml")

	// Don't overwrite existing config
	if _, err := os.Stat(configPath); err == nil {
		fmt.Println("⚠ Configuration file already exists, skipping")
		return nil
	}

	configContent := `# WinForge configuration file
build:
  template: config/autounattend.template.xml
  fragments: config/passes
  output: build/autounattend.xml
  strict: false

image:
  # source_iso: path/to/windows11.iso
  workdir: build/media
  output_iso: build/winforge.iso
  label: WINFORGE
  bios_boot: boot/etfsboot.com
  efi_boot: efi/microsoft/boot/efisys.bin

scripts:
  dir: config/scripts

server:
  port: 8080
  host: localhost
  open: true

log:
  level: info
  format: text
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Println("✓ Created .winforge.yml configuration file")
	return nil
}

// createStarterFragments writes one fragment per pass. The populated passes
// assemble into a document the validator accepts; the rest hold empty
// settings elements ready for editing.
func createStarterFragments(projectDir string) error {
	owner := projectDisplayName(projectDir)

	starters := map[types.Pass]string{
		types.PassWindowsPE: `<settings pass="windowsPE">
  <component name="Microsoft-Windows-Setup" processorArchitecture="amd64" publicKeyToken="31bf3856ad364e35" language="neutral" versionScope="nonSxS">
    <UserData>
      <AcceptEula>true</AcceptEula>
      <FullName>` + owner + `</FullName>
      <Organization>` + owner + `</Organization>
    </UserData>
  </component>
</settings>`,
		types.PassSpecialize: `<settings pass="specialize">
  <component name="Microsoft-Windows-Shell-Setup" processorArchitecture="amd64" publicKeyToken="31bf3856ad364e35" language="neutral" versionScope="nonSxS">
    <ComputerName>WINFORGE-PC</ComputerName>
    <TimeZone>UTC</TimeZone>
    <RegisteredOwner>` + owner + `</RegisteredOwner>
  </component>
</settings>`,
		types.PassOOBESystem: `<settings pass="oobeSystem">
  <component name="Microsoft-Windows-International-Core" processorArchitecture="amd64" publicKeyToken="31bf3856ad364e35" language="neutral" versionScope="nonSxS">
    <InputLocale>en-US</InputLocale>
    <SystemLocale>en-US</SystemLocale>
    <UILanguage>en-US</UILanguage>
    <UserLocale>en-US</UserLocale>
  </component>
  <component name="Microsoft-Windows-Shell-Setup" processorArchitecture="amd64" publicKeyToken="31bf3856ad364e35" language="neutral" versionScope="nonSxS">
    <OOBE>
      <HideEULAPage>true</HideEULAPage>
      <ProtectYourPC>3</ProtectYourPC>
    </OOBE>
  </component>
</settings>`,
	}

	created := 0
	for _, pass := range types.AllPasses {
		fragmentPath := filepath.Join(projectDir, "config", "passes", pass.FragmentFile())
		if _, err := os.Stat(fragmentPath); err == nil {
			continue
		}

		content, ok := starters[pass]
		if !ok {
			content = fmt.Sprintf("<settings pass=%q>\n</settings>", pass.DisplayName())
		}

		if err := os.WriteFile(fragmentPath, []byte(content+"\n"), 0644); err != nil {
			return fmt.Errorf("failed to write fragment %s: %w", pass.FragmentFile(), err)
		}
		created++
	}

	fmt.Printf("✓ Created %d pass fragments under config/passes/\n", created)
	return nil
}

func createSetupScript(projectDir string) error {
	scriptPath := filepath.Join(projectDir, "config", "scripts", "SetupComplete.cmd")

	if _, err := os.Stat(scriptPath); err == nil {
		fmt.Println("⚠ SetupComplete.cmd already exists, skipping")
		return nil
	}

	// CRLF line endings: cmd.exe mishandles bare LF in batch files
	scriptContent := "@echo off\r\n" +
		"rem Runs once after Windows Setup completes, before first logon.\r\n" +
		"echo WinForge provisioning complete > %WINDIR%\\Setup\\Scripts\\winforge.log\r\n"

	if err := os.WriteFile(scriptPath, []byte(scriptContent), 0644); err != nil {
		return fmt.Errorf("failed to write setup script: %w", err)
	}

	fmt.Println("✓ Created config/scripts/SetupComplete.cmd")
	return nil
}

func createGitignore(projectDir string) error {
	gitignorePath := filepath.Join(projectDir, ".gitignore")

	if _, err := os.Stat(gitignorePath); err == nil {
		return nil
	}

	if err := os.WriteFile(gitignorePath, []byte("build/\n"), 0644); err != nil {
		return fmt.Errorf("failed to write .gitignore: %w", err)
	}

	fmt.Println("✓ Created .gitignore")
	return nil
}

// projectDisplayName derives a human-readable owner name from the project
// directory, e.g. "fleet-imaging" becomes "Fleet Imaging".
func projectDisplayName(projectDir string) string {
	name := filepath.Base(projectDir)
	if name == "." || name == string(filepath.Separator) {
		if cwd, err := os.Getwd(); err == nil {
			name = filepath.Base(cwd)
		}
	}

	name = strings.ReplaceAll(name, "-", " ")
	name = strings.ReplaceAll(name, "_", " ")

	return cases.Title(language.English).String(name)
}
