package alarm

import (
	"fmt"
	"strings"
)

// Severity is the alarm severity as reported by the host platform.
type Severity int

// Known severities, ordered from least to most severe.
const (
	SeverityIndeterminate Severity = iota + 1
	SeverityCleared
	SeverityNormal
	SeverityWarning
	SeverityMinor
	SeverityMajor
	SeverityCritical
)

//nolint:gochecknoglobals // Read-only lookup table.
var severityNames = map[Severity]string{
	SeverityIndeterminate: "INDETERMINATE",
	SeverityCleared:       "CLEARED",
	SeverityNormal:        "NORMAL",
	SeverityWarning:       "WARNING",
	SeverityMinor:         "MINOR",
	SeverityMajor:         "MAJOR",
	SeverityCritical:      "CRITICAL",
}

// String returns the upper-case severity label.
func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}

	return "INDETERMINATE"
}

// ParseSeverity converts a case-insensitive label to a Severity.
func ParseSeverity(s string) (Severity, error) {
	label := strings.ToUpper(strings.TrimSpace(s))
	for severity, name := range severityNames {
		if name == label {
			return severity, nil
		}
	}

	return SeverityIndeterminate, fmt.Errorf("%w: %q", ErrUnknownSeverity, s)
}

// Type is the alarm type.
type Type int

// Known alarm types.
const (
	TypeProblem Type = iota + 1
	TypeResolution
	TypeProblemWithoutClear
)

//nolint:gochecknoglobals // Read-only lookup table.
var typeNames = map[Type]string{
	TypeProblem:             "PROBLEM",
	TypeResolution:          "RESOLUTION",
	TypeProblemWithoutClear: "PROBLEM_WITHOUT_CLEAR",
}

// String returns the upper-case type label, or an empty string for an unset type.
func (t Type) String() string {
	return typeNames[t]
}

// ParseType converts a case-insensitive label to a Type. An empty label yields the zero Type.
func ParseType(s string) (Type, error) {
	label := strings.ToUpper(strings.TrimSpace(s))
	if label == "" {
		return 0, nil
	}

	for t, name := range typeNames {
		if name == label {
			return t, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// Node is the monitored node an alarm belongs to.
type Node struct {
	// Label is the node's display label.
	Label string
	// AssetRecord is the rendered asset record.
	AssetRecord string
	// MetaData is the rendered node metadata.
	MetaData string
	// Categories lists the surveillance categories of the node.
	Categories []string
	// IPAddresses lists the addresses of the node's IP interfaces, primary first.
	IPAddresses []string
}

// Parameter is a single name/value pair of an event.
type Parameter struct {
	Name  string
	Value string
}

// LastEvent is the most recent event that updated an alarm.
type LastEvent struct {
	// UEI is the event identifier.
	UEI string
	// Parameters are the event parameters in their original order.
	Parameters []Parameter
}

// Alarm is a snapshot of an alarm delivered by a lifecycle callback.
// Callers must treat it as immutable.
type Alarm struct {
	// ID is the numeric alarm id.
	ID int
	// ReductionKey identifies the alarm across its whole lifecycle.
	ReductionKey string
	// Severity is the current severity.
	Severity Severity
	// Acknowledged is true once an operator acknowledged the alarm.
	Acknowledged bool
	// Type is the alarm type.
	Type Type
	// LogMessage is the short log message of the alarm.
	LogMessage string
	// Node is optional.
	Node *Node
	// LastEvent is optional.
	LastEvent *LastEvent
}

// IsCleared reports whether the alarm is resolved, either by severity or by type.
func (a *Alarm) IsCleared() bool {
	return a.Severity == SeverityCleared || a.Type == TypeResolution
}
