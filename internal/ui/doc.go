// Package ui provides helpers for formatting human-readable console output.
//
// The helpers translate command lifecycle events into concise messages so
// that an operator following the journal sees what the audit run is doing
// while detailed telemetry continues to flow through structured loggers.
package ui
