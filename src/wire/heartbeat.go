package wire

import "time"

// HeartbeatRequest is a periodic capacity report. PendingSingle and
// PendingBatch are the publisher's current queue depths; BatchSize is its
// configured capacity. Upstream routers use these to back off from overloaded
// peers.
type HeartbeatRequest struct {
	HeartbeatID   string `json:"heartbeat_id"`
	Deadline      int64  `json:"deadline"`
	PendingSingle uint   `json:"pending_single"`
	PendingBatch  uint   `json:"pending_batch"`
	BatchSize     uint   `json:"batch_size"`
}

// Expired reports whether the heartbeat's deadline has passed at time now.
func (r *HeartbeatRequest) Expired(now time.Time) bool {
	return now.UnixMilli() > r.Deadline
}

// Healthy evaluates the cooperative backpressure rule: a heartbeat is healthy
// when its deadline has not passed and the reported batch queue fits within
// the reported capacity.
func (r *HeartbeatRequest) Healthy(now time.Time) (bool, string) {
	if r.Expired(now) {
		return false, "deadline passed"
	}
	if r.PendingBatch > r.BatchSize {
		return false, "overloaded"
	}
	return true, ""
}

// HeartbeatResponse acknowledges a heartbeat. A nil Error signals healthy;
// otherwise it carries the rejection reason.
type HeartbeatResponse struct {
	HeartbeatID string  `json:"heartbeat_id"`
	Error       *string `json:"error"`
}
