package wire

import "time"

// TaskRequest asks the mesh to run a unit of work. The admission filter
// encodes the set of responder identities the requester is willing to accept
// work from; peers test their own public key against it before executing.
// Deadline is an absolute unix-milli timestamp, never a duration.
type TaskRequest struct {
	TaskID             string `json:"task_id"`
	Deadline           int64  `json:"deadline"`
	Input              []byte `json:"input"`
	AdmissionFilter    []byte `json:"admission_filter"`
	RequesterPublicKey string `json:"requester_public_key"`
}

// Expired reports whether the request's deadline has passed at time now.
func (r *TaskRequest) Expired(now time.Time) bool {
	return now.UnixMilli() > r.Deadline
}

// TaskResponse carries a successful execution result back to the requester.
// TaskID matches the request so the requester can correlate.
type TaskResponse struct {
	TaskID string     `json:"task_id"`
	Result []byte     `json:"result"`
	Stats  *ExecStats `json:"stats"`
}

// TaskError is published instead of a TaskResponse when execution fails. It
// is still signed and delivered so the requester can tell "answered with
// failure" apart from "no answer".
type TaskError struct {
	TaskID string     `json:"task_id"`
	Error  string     `json:"error"`
	Model  string     `json:"model"`
	Stats  *ExecStats `json:"stats"`
}

// ExecStats describes how a task was executed.
type ExecStats struct {
	Model      string `json:"model"`
	StartedAt  int64  `json:"started_at"`
	DurationMs int64  `json:"duration_ms"`
}
