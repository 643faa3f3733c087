package report

import "fmt"

// Severity levels for validation messages.
type Severity string

const (
	Fatal   Severity = "FATAL"
	Error   Severity = "ERROR"
	Warning Severity = "WARNING"
	Info    Severity = "INFO"
)

// Message represents a single validation finding.
type Message struct {
	Severity Severity `json:"severity"`
	CheckID  string   `json:"check_id"`
	Message  string   `json:"message"`
	Location string   `json:"location,omitempty"`
}

func (m Message) String() string {
	if m.Location != "" {
		return fmt.Sprintf("%s(%s): %s [%s]", m.Severity, m.CheckID, m.Message, m.Location)
	}
	return fmt.Sprintf("%s(%s): %s", m.Severity, m.CheckID, m.Message)
}

// Report collects all messages from a validation run over one or more
// files.
type Report struct {
	RunID    string    `json:"run_id,omitempty"`
	Files    int       `json:"files,omitempty"`
	Messages []Message `json:"messages"`
}

// NewReport creates an empty report.
func NewReport() *Report {
	return &Report{}
}

// Add appends a message to the report.
func (r *Report) Add(sev Severity, checkID string, msg string) {
	r.Messages = append(r.Messages, Message{
		Severity: sev,
		CheckID:  checkID,
		Message:  msg,
	})
}

// AddWithLocation appends a message with a location to the report.
func (r *Report) AddWithLocation(sev Severity, checkID string, msg string, location string) {
	r.Messages = append(r.Messages, Message{
		Severity: sev,
		CheckID:  checkID,
		Message:  msg,
		Location: location,
	})
}

// Merge appends the messages of other and counts its files.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.Messages = append(r.Messages, other.Messages...)
	r.Files += max(other.Files, 1)
}

func (r *Report) count(sev Severity) int {
	n := 0
	for _, m := range r.Messages {
		if m.Severity == sev {
			n++
		}
	}
	return n
}

// FatalCount returns the number of FATAL messages.
func (r *Report) FatalCount() int { return r.count(Fatal) }

// ErrorCount returns the number of ERROR messages.
func (r *Report) ErrorCount() int { return r.count(Error) }

// WarningCount returns the number of WARNING messages.
func (r *Report) WarningCount() int { return r.count(Warning) }

// IsValid returns true if there are no FATAL or ERROR messages.
func (r *Report) IsValid() bool {
	return r.FatalCount() == 0 && r.ErrorCount() == 0
}

// HasCheck reports whether any message carries checkID.
func (r *Report) HasCheck(checkID string) bool {
	for _, m := range r.Messages {
		if m.CheckID == checkID {
			return true
		}
	}
	return false
}

// Downgrade changes the severity of messages at severity from whose
// CheckID is in the given set to to. Advisory rules use it to report
// failures as warnings.
func (r *Report) Downgrade(checkIDs map[string]bool, from, to Severity) {
	for i := range r.Messages {
		if r.Messages[i].Severity == from && checkIDs[r.Messages[i].CheckID] {
			r.Messages[i].Severity = to
		}
	}
}
