package wire

import "time"

// ProbeRequest is a liveness probe. It goes through the same signing and
// deadline pipeline as tasks but skips admission and execution.
type ProbeRequest struct {
	ProbeID  string `json:"probe_id"`
	Deadline int64  `json:"deadline"`
}

// Expired reports whether the probe's deadline has passed at time now.
func (r *ProbeRequest) Expired(now time.Time) bool {
	return now.UnixMilli() > r.Deadline
}

// ProbeResponse echoes the probe's correlation id.
type ProbeResponse struct {
	ProbeID string `json:"probe_id"`
}
