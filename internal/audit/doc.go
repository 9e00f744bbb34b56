// Package audit runs one audit attempt: it resolves the configured watch paths
// to candidate executables and hands them to cargo-audit in binary mode, turning
// the tool output into a report.Report.
//
// BinaryEnumerator walks the watch paths over an afero.Fs, Invoker drives the
// auditor through execshell, and Service combines both into Attempt.
package audit
