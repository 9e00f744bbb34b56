package report

import (
	"fmt"
	"strings"
	"time"
)

const (
	failedHeaderTemplateConstant    = "[%s] Audit FAILED.\n"
	resultsHeaderTemplateConstant   = "[%s] Audit results:\n"
	entryLineTemplateConstant       = "  %s: %s\n"
	detailBlockTemplateConstant     = "\n\n%s:\n%s\n"
	entryStatusOkConstant           = "Ok"
	entryStatusVulnerableConstant   = "VULNERABLE"
	failedSubjectPrefixConstant     = "[AUDIT FAILED] "
	vulnerableSubjectPrefixConstant = "[VULNERABILITIES FOUND] "
	stampLayoutConstant             = time.RFC3339
	lineTerminatorConstant          = "\n"
)

// Render produces the human-readable form of the report that every dispatch
// channel delivers.
func (report Report) Render() string {
	var builder strings.Builder
	stamp := report.stamp.Format(stampLayoutConstant)

	if report.failed {
		fmt.Fprintf(&builder, failedHeaderTemplateConstant, stamp)
	} else {
		fmt.Fprintf(&builder, resultsHeaderTemplateConstant, stamp)
		for _, entry := range report.entries {
			fmt.Fprintf(&builder, entryLineTemplateConstant, entry.Path, entryStatus(entry))
		}
		builder.WriteString(lineTerminatorConstant)
	}

	for _, message := range report.messages {
		builder.WriteString(message)
		builder.WriteString(lineTerminatorConstant)
	}

	if report.failed {
		return builder.String()
	}

	for _, entry := range report.entries {
		if !entry.Vulnerable {
			continue
		}
		fmt.Fprintf(&builder, detailBlockTemplateConstant, entry.Path, entry.JSONPretty)
	}

	return builder.String()
}

// Subject prefixes the configured mail subject with the report outcome.
func Subject(configuredSubject string, report Report) string {
	switch {
	case report.Failed():
		return failedSubjectPrefixConstant + configuredSubject
	case report.Vulnerable():
		return vulnerableSubjectPrefixConstant + configuredSubject
	default:
		return configuredSubject
	}
}

func entryStatus(entry Entry) string {
	if entry.Vulnerable {
		return entryStatusVulnerableConstant
	}
	return entryStatusOkConstant
}
