// Package logging provides a simple leveled logging interface for the
// image browser engine.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions (for example a failed XMP update)
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable, or
// forced to debug with DEBUG=true.
//
// ForPath returns a logger that tags each line with the tail of a file path,
// which keeps concurrent per-file operations distinguishable:
//
//	l := logging.ForPath(path)
//	l.Warn("XMP update failed: %v", err)
package logging
