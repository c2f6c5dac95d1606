package cmd

import (
	"fmt"
	"strings"
)

// validateArgument validates individual command arguments for security.
// Custom hooks run through exec.Command without a shell, but metacharacters
// in arguments usually mean a pasted shell one-liner that will not do what
// the author expects.
func validateArgument(arg string) error {
	// Reject arguments containing shell metacharacters. Backslash stays
	// legal: UNC and drive paths need it.
	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "{", "}", "[", "]", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(arg, char) {
			return fmt.Errorf("contains dangerous character: %s", char)
		}
	}

	// Reject path traversal attempts
	if strings.Contains(arg, "..") {
		return fmt.Errorf("path traversal attempt detected")
	}

	// POSIX absolute paths are allowed only under the usual scratch roots.
	// A lone leading slash with no further separator is a Windows tool
	// switch (/MIR, /Image:...), not a path.
	if strings.HasPrefix(arg, "/") && strings.Contains(arg[1:], "/") &&
		!strings.HasPrefix(arg, "/tmp/") && !strings.HasPrefix(arg, "/usr/") {
		return fmt.Errorf("absolute path not allowed: %s", arg)
	}

	return nil
}

// validateCommand validates command names against an allowlist
func validateCommand(command string, allowedCommands map[string]bool) error {
	if !allowedCommands[command] {
		return fmt.Errorf("command '%s' is not allowed", command)
	}
	return nil
}

// validateArguments validates a slice of arguments
func validateArguments(args []string) error {
	for _, arg := range args {
		if err := validateArgument(arg); err != nil {
			return fmt.Errorf("invalid argument '%s': %w", arg, err)
		}
	}
	return nil
}
