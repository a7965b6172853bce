package audit

import (
	"errors"
	"time"
)

// Kind is the notification kind used when records are published.
const Kind = "progress.session"

// Record summarizes one finished progress stream session.
type Record struct {
	SessionID  string    `json:"session_id"`
	SubjectID  string    `json:"subject_id"`
	Transport  string    `json:"transport"`
	Outcome    string    `json:"outcome"`
	Frames     int       `json:"frames"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
}

// Validate rejects records missing the fields sinks key on.
func (r Record) Validate() error {
	switch {
	case r.SessionID == "":
		return errors.New("session id is required")
	case r.SubjectID == "":
		return errors.New("subject id is required")
	case r.Outcome == "":
		return errors.New("outcome is required")
	case r.Frames < 0:
		return errors.New("frames must be non-negative")
	}
	return nil
}
