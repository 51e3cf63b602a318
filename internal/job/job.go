package job

import "strings"

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusError     Status = "error"

	// statusProcessing is how some server versions spell running.
	statusProcessing = "processing"
)

// ParseStatus maps a status string reported by the server to a Status.
// Unrecognized values are returned verbatim; check them with Known.
func ParseStatus(s string) Status {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case statusProcessing:
		return StatusRunning
	case string(StatusRunning), string(StatusCompleted), string(StatusCancelled), string(StatusError):
		return Status(v)
	default:
		return Status(s)
	}
}

// IsTerminal reports whether no further transition can follow s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusError:
		return true
	default:
		return false
	}
}

func (s Status) Known() bool {
	return s == StatusRunning || s.IsTerminal()
}

func (s Status) String() string {
	return string(s)
}

// Job is a submitted annotation run as seen by the client.
type Job struct {
	// ProcessKey identifies the job for status checks and cancellation.
	ProcessKey string `json:"process_key"`
	// Timestamp identifies the job's result artifacts.
	Timestamp      string `json:"timestamp"`
	PID            int    `json:"pid,omitempty"`
	AnnotationType string `json:"annotation_type"`
	Status         Status `json:"status"`
}

// ResultFilename is the name a downloaded result file is saved under.
func (j Job) ResultFilename() string {
	return ResultFilename(j.AnnotationType, j.Timestamp)
}

func ResultFilename(annotationType, timestamp string) string {
	return annotationType + "_annotated_variants_" + timestamp + ".csv"
}
