// Package validation inspects assembled answer files for structural markers,
// leftover placeholder tokens, and security-relevant patterns.
//
// Every check operates on raw text. The validator does not parse XML: the
// root-element check is an exact string match and the tag-balance check is a
// counting heuristic that deliberately miscounts self-closing tags. Windows
// Setup is the real parser; these checks only catch the mistakes people make
// when editing fragments by hand, and their exact outcomes are part of the
// tool's observable behavior.
package validation

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/conneroisu/winforge/internal/errors"
	"github.com/conneroisu/winforge/internal/logging"
	"github.com/conneroisu/winforge/internal/types"
)

// Structural markers every assembled answer file must carry.
const (
	xmlDeclaration = `<?xml version="1.0"`
	rootOpen       = `<unattend xmlns="urn:schemas-microsoft-com:unattend">`
	rootClose      = `</unattend>`
)

// Component names Windows Setup expects in a typical unattended install.
var requiredComponents = []string{
	"Microsoft-Windows-Setup",
	"Microsoft-Windows-Shell-Setup",
}

// Component names retired from modern Windows releases.
var deprecatedComponents = []string{
	"Microsoft-Windows-Security-Licensing-SLC",
	"Microsoft-Windows-Security-SPP",
}

// weakPasswords are checked as case-insensitive substrings of each password
// value after Base64 decoding where applicable.
var weakPasswords = []string{"password", "123456", "admin", "user"}

var (
	// openTagPattern counts self-closing tags as opens; the imbalance
	// warning this causes is expected
	openTagPattern      = regexp.MustCompile(`<[A-Za-z][^>]*>`)
	closeTagPattern     = regexp.MustCompile(`</[A-Za-z][^>]*>`)
	placeholderPattern  = regexp.MustCompile(`\{\{[^}]*\}\}`)
	architecturePattern = regexp.MustCompile(`processorArchitecture="([^"]+)"`)
	// passwordPattern stays on one line: a password value spanning lines
	// is not matched
	passwordPattern = regexp.MustCompile(`<Password>(.*?)</Password>`)
)

// Validator performs shallow textual checks on an assembled answer file.
type Validator struct {
	logger logging.Logger
}

// NewValidator creates a new answer file validator.
func NewValidator(logger logging.Logger) *Validator {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Validator{logger: logger.WithComponent("validator")}
}

// ValidateFile reads the assembled document at path and validates it.
func (v *Validator) ValidateFile(ctx context.Context, path string) (*types.ValidationResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeValidationFailed,
			fmt.Sprintf("failed to read assembled document: %s", path)).WithPath(path)
	}

	result := v.ValidateContent(ctx, string(data))
	return result, nil
}

// ValidateContent runs every check against the document text and returns the
// accumulated result. Checks never abort early: one run produces the complete
// report.
func (v *Validator) ValidateContent(ctx context.Context, content string) *types.ValidationResult {
	result := types.NewValidationResult()

	v.checkStructure(content, result)
	v.checkTagBalance(content, result)
	v.checkPlaceholders(content, result)
	v.checkComponents(content, result)
	v.checkArchitectures(content, result)
	v.checkPasswords(content, result)
	v.checkAutoLogon(content, result)
	v.checkSuggestions(content, result)

	v.logger.Debug(ctx, "validation finished",
		"valid", result.Valid,
		"errors", len(result.Errors),
		"warnings", len(result.Warnings),
		"suggestions", len(result.Suggestions))

	return result
}

// checkStructure verifies the three hard structural markers: XML
// declaration, exact root opening tag, and root closing tag.
func (v *Validator) checkStructure(content string, result *types.ValidationResult) {
	if !strings.Contains(content, xmlDeclaration) {
		result.AddError(`missing XML declaration (<?xml version="1.0")`)
	}
	if !strings.Contains(content, rootOpen) {
		result.AddError("missing or malformed <unattend> root element")
	}
	if !strings.Contains(content, rootClose) {
		result.AddError("missing closing </unattend> tag")
	}
}

// checkTagBalance compares open-shaped and close-shaped tag counts.
func (v *Validator) checkTagBalance(content string, result *types.ValidationResult) {
	opens := len(openTagPattern.FindAllString(content, -1))
	closes := len(closeTagPattern.FindAllString(content, -1))
	if opens != closes {
		result.AddWarning(fmt.Sprintf("unbalanced tags: %d opening vs %d closing", opens, closes))
	}
}

// checkPlaceholders reports every placeholder-shaped token that survived
// assembly as a single error listing all matches.
func (v *Validator) checkPlaceholders(content string, result *types.ValidationResult) {
	leftovers := placeholderPattern.FindAllString(content, -1)
	if len(leftovers) > 0 {
		result.AddError(fmt.Sprintf("unresolved placeholders: %s", strings.Join(leftovers, ", ")))
	}
}

// checkComponents warns about absent recommended components and present
// deprecated ones.
func (v *Validator) checkComponents(content string, result *types.ValidationResult) {
	for _, component := range requiredComponents {
		if !strings.Contains(content, component) {
			result.AddWarning(fmt.Sprintf("missing recommended component: %s", component))
		}
	}
	for _, component := range deprecatedComponents {
		if strings.Contains(content, component) {
			result.AddWarning(fmt.Sprintf("deprecated component present: %s", component))
		}
	}
}

// checkArchitectures warns when component entries disagree on processor
// architecture.
func (v *Validator) checkArchitectures(content string, result *types.ValidationResult) {
	matches := architecturePattern.FindAllStringSubmatch(content, -1)

	seen := make(map[string]bool)
	var distinct []string
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			distinct = append(distinct, m[1])
		}
	}

	if len(distinct) > 1 {
		result.AddWarning(fmt.Sprintf("mixed processor architectures: %s", strings.Join(distinct, ", ")))
	}
}

// checkPasswords warns for every password value that is not Base64 encoded,
// and for every value whose effective text contains a known weak password.
func (v *Validator) checkPasswords(content string, result *types.ValidationResult) {
	for _, m := range passwordPattern.FindAllStringSubmatch(content, -1) {
		value := m[1]

		effective, encoded := decodeIfBase64(value)
		if !encoded {
			result.AddWarning("plaintext password detected (value is not Base64 encoded)")
			effective = value
		}

		lowered := strings.ToLower(effective)
		for _, weak := range weakPasswords {
			if strings.Contains(lowered, weak) {
				result.AddWarning(fmt.Sprintf("weak password detected (contains %q)", weak))
				break
			}
		}
	}
}

// checkAutoLogon warns when auto-logon is configured but no password element
// exists anywhere in the document.
func (v *Validator) checkAutoLogon(content string, result *types.ValidationResult) {
	if strings.Contains(content, "<AutoLogon>") && !strings.Contains(content, "<Password>") {
		result.AddWarning("auto-logon configured without a password")
	}
}

// checkSuggestions appends one fixed suggestion per absent optional section.
// The four checks are independent.
func (v *Validator) checkSuggestions(content string, result *types.ValidationResult) {
	if !strings.Contains(content, "wuauserv") {
		result.AddSuggestion("add a Windows Update services section (wuauserv) to control update behavior")
	}
	if !strings.Contains(content, "Microsoft-Windows-International-Core") {
		result.AddSuggestion("add Microsoft-Windows-International-Core settings for language and locale")
	}
	if !strings.Contains(content, "<DiskConfiguration>") {
		result.AddSuggestion("add a <DiskConfiguration> section for unattended disk layout")
	}
	if !strings.Contains(content, "DisableWER") {
		result.AddSuggestion("add DisableWER settings to opt out of Windows Error Reporting")
	}
}

// decodeIfBase64 reports whether value round-trips through standard Base64,
// returning the decoded text when it does. Short alphabet-only values can
// round-trip by coincidence; that false negative is accepted.
func decodeIfBase64(value string) (string, bool) {
	decoded, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return "", false
	}
	if base64.StdEncoding.EncodeToString(decoded) != value {
		return "", false
	}
	return string(decoded), true
}
