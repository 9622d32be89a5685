package domain

import (
	"net/http"
	"time"
)

// BranchStats summarises one successful branch.
type BranchStats struct {
	Origin     string `json:"origin_identifier"`
	Fetched    int    `json:"fetched"`
	Written    int    `json:"written"`
	Skipped    int    `json:"skipped"`
	Errors     int    `json:"errors"`
	Published  int    `json:"published"`
	DurationMS int64  `json:"duration_ms"`
}

// Outcome is the normalized result of one branch.
type Outcome struct {
	Source    SourceKind   `json:"source"`
	Success   bool         `json:"success"`
	Data      *BranchStats `json:"data,omitempty"`
	Error     string       `json:"error,omitempty"`
	ErrorKind string       `json:"error_kind,omitempty"`
}

// FailedOutcome builds the outcome of a failed branch.
func FailedOutcome(source SourceKind, err error) Outcome {
	return Outcome{
		Source:    source,
		Success:   false,
		Error:     err.Error(),
		ErrorKind: ErrorKind(err),
	}
}

// Notification reports how delivery of the aggregated result went.
type Notification struct {
	URL        string `json:"url"`
	Delivered  bool   `json:"delivered"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
	ErrorKind  string `json:"error_kind,omitempty"`
}

// Result is the response of a completed job.
type Result struct {
	JobID        string        `json:"job_id"`
	Brand        string        `json:"brand"`
	Outcomes     []Outcome     `json:"outcomes"`
	Notification *Notification `json:"notification,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
}

// Succeeded counts successful branches.
func (r Result) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Success {
			n++
		}
	}
	return n
}

// Failed counts failed branches.
func (r Result) Failed() int {
	return len(r.Outcomes) - r.Succeeded()
}

// StatusCode is 200 for any job that ran, however many branches failed.
func (r Result) StatusCode() int {
	return http.StatusOK
}

// Ack is what a notifier returns on delivery.
type Ack struct {
	StatusCode int
	Body       map[string]any
}

// Notice is the payload delivered to the downstream consumer.
type Notice struct {
	JobID    string    `json:"job_id"`
	Brand    string    `json:"brand"`
	Outcomes []Outcome `json:"collection_results"`
}
