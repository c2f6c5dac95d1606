// Package types provides common type definitions used throughout the WinForge
// CLI. This package contains shared types to avoid circular dependencies
// between packages.
package types

import (
	"strings"
	"time"
)

// Pass identifies one configuration pass of Windows Setup. Each pass is
// configured by exactly one fragment file and substituted into exactly one
// placeholder token in the answer-file template.
type Pass string

const (
	PassWindowsPE        Pass = "WINDOWSPE"
	PassOfflineServicing Pass = "OFFLINESERVICING"
	PassGeneralize       Pass = "GENERALIZE"
	PassSpecialize       Pass = "SPECIALIZE"
	PassAuditSystem      Pass = "AUDITSYSTEM"
	PassAuditUser        Pass = "AUDITUSER"
	PassOOBESystem       Pass = "OOBESYSTEM"
)

// AllPasses lists every pass in substitution order. The order is part of the
// assembler contract: fragments are read and substituted exactly in this
// sequence.
var AllPasses = []Pass{
	PassWindowsPE,
	PassOfflineServicing,
	PassGeneralize,
	PassSpecialize,
	PassAuditSystem,
	PassAuditUser,
	PassOOBESystem,
}

// displayNames maps each pass to the camelCase name Windows Setup uses in
// unattend.xml <settings pass="..."> attributes.
var displayNames = map[Pass]string{
	PassWindowsPE:        "windowsPE",
	PassOfflineServicing: "offlineServicing",
	PassGeneralize:       "generalize",
	PassSpecialize:       "specialize",
	PassAuditSystem:      "auditSystem",
	PassAuditUser:        "auditUser",
	PassOOBESystem:       "oobeSystem",
}

// String returns the pass identifier.
func (p Pass) String() string {
	return string(p)
}

// DisplayName returns the camelCase pass name as it appears in the settings
// elements of a Windows answer file.
func (p Pass) DisplayName() string {
	if name, ok := displayNames[p]; ok {
		return name
	}
	return string(p)
}

// Placeholder returns the template token this pass's fragment replaces,
// e.g. "{{WINDOWSPE_PASS}}".
func (p Pass) Placeholder() string {
	return "{{" + string(p) + "_PASS}}"
}

// FragmentFile returns the file name of the pass's fragment inside the
// fragments directory, e.g. "windowspe.xml".
func (p Pass) FragmentFile() string {
	return strings.ToLower(string(p)) + ".xml"
}

// FragmentInfo describes one pass fragment as found on disk, used by the
// passes listing command and the preview server.
type FragmentInfo struct {
	// Pass is the pass this fragment configures
	Pass Pass `json:"pass" yaml:"pass"`
	// Placeholder is the template token the fragment replaces
	Placeholder string `json:"placeholder" yaml:"placeholder"`
	// Path is the fragment file path relative to the project root
	Path string `json:"path" yaml:"path"`
	// Present reports whether the fragment file exists
	Present bool `json:"present" yaml:"present"`
	// Size is the fragment file size in bytes (zero when absent)
	Size int64 `json:"size" yaml:"size"`
	// ModTime is the fragment's last modification time (zero when absent)
	ModTime time.Time `json:"mod_time,omitempty" yaml:"mod_time,omitempty"`
}
