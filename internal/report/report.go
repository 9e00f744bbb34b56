package report

import "time"

const (
	initialEntryCapacityConstant   = 32
	initialMessageCapacityConstant = 8
)

// Clock abstracts time-dependent functionality for deterministic testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the standard library.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Entry is the audit result of one binary.
type Entry struct {
	Path       string
	Vulnerable bool
	JSON       string
	JSONPretty string
}

// Report accumulates the outcome of one audit attempt. Entries and messages
// are append-only; a failed report is produced by Fail and never carries
// entries.
type Report struct {
	stamp    time.Time
	entries  []Entry
	messages []string
	failed   bool
}

// New creates an empty report stamped with the current time of clock.
func New(clock Clock) *Report {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Report{
		stamp:    clock.Now().UTC(),
		entries:  make([]Entry, 0, initialEntryCapacityConstant),
		messages: make([]string, 0, initialMessageCapacityConstant),
	}
}

// AddEntry appends an audited binary result.
func (report *Report) AddEntry(entry Entry) {
	report.entries = append(report.entries, entry)
}

// AddMessage appends a diagnostic message.
func (report *Report) AddMessage(message string) {
	report.messages = append(report.messages, message)
}

// Fail returns a terminal copy of the report that keeps the messages recorded
// so far, appends message and drops all entries.
func (report Report) Fail(message string) Report {
	messages := make([]string, 0, len(report.messages)+1)
	messages = append(messages, report.messages...)
	messages = append(messages, message)
	return Report{
		stamp:    report.stamp,
		messages: messages,
		failed:   true,
	}
}

// Stamp returns the creation time of the report.
func (report Report) Stamp() time.Time {
	return report.stamp
}

// Entries returns a copy of the recorded entries in enumeration order.
func (report Report) Entries() []Entry {
	entries := make([]Entry, 0, len(report.entries))
	return append(entries, report.entries...)
}

// Messages returns a copy of the recorded messages in insertion order.
func (report Report) Messages() []string {
	messages := make([]string, 0, len(report.messages))
	return append(messages, report.messages...)
}

// Failed reports whether an unrecoverable error ended the attempt.
func (report Report) Failed() bool {
	return report.failed
}

// Vulnerable reports whether any entry has a known vulnerability.
func (report Report) Vulnerable() bool {
	for _, entry := range report.entries {
		if entry.Vulnerable {
			return true
		}
	}
	return false
}
