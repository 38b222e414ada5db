package notifications

import "time"

// Severity indicates the importance of a notification.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Notification is the webhook payload for one fleet change.
type Notification struct {
	Action    string    `json:"action"`
	Severity  Severity  `json:"severity"`
	Droid     string    `json:"droid"`
	Actor     string    `json:"actor"`
	Message   string    `json:"message"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// severityOf classifies a cluster action. Removals and disconnects are
// warnings; everything else is informational.
func severityOf(action string) Severity {
	switch action {
	case "droid_removed", "droid_disconnected", "extension_removed", "key_removed":
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// ParseSeverity maps a configured name to a Severity, defaulting to info.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeverityWarning, SeverityCritical:
		return Severity(s)
	default:
		return SeverityInfo
	}
}
