// Package internal contains the core implementation packages for winforge.
//
// This package follows Go's internal package convention, making these
// packages unavailable for import by external modules while providing
// all the core functionality for the winforge CLI tool.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - assembly: Answer file template substitution and fragment storage
//   - build: Build pipeline sequencing assembly and validation with metrics
//   - config: Configuration management with validation and security
//   - errors: Structured error types with codes and path context
//   - imaging: External imaging tool execution (dism, robocopy, oscdimg)
//   - logging: Structured logging with text and JSON output
//   - media: Installation media staging, script injection, and ISO mastering
//   - report: Build progress and outcome rendering for terminals and logs
//   - server: Preview HTTP server with WebSocket live reload
//   - types: Shared data types for passes, results, and statistics
//   - validation: Shallow textual checks on assembled answer files
//   - version: Build-time version metadata
//   - watcher: File system monitoring with debouncing
//
// # Inter-Package Communication
//
// Packages communicate through explicit construction:
//
//   - Assembly reads fragments from the store and produces the document
//   - Validation inspects the assembled document text
//   - Build drives assembly and validation and reports through a Reporter
//   - Watcher monitors input files and triggers rebuilds
//   - Server publishes the latest build result to connected browsers
//   - Media stages extracted installation files and shells out to imaging
//
// # Security Considerations
//
// Security is implemented at multiple layers:
//
//   - Config package validates all configuration inputs
//   - Server package implements WebSocket origin validation
//   - Imaging package prevents command injection with strict allowlisting
//   - Watcher package validates watched paths and rejects traversal
//
// For detailed documentation, see the individual package documentation.
package internal
