package node

import (
	"context"
	"time"

	"github.com/taskmesh/taskmesh/src/mesh"
	"github.com/taskmesh/taskmesh/src/wire"
)

// ProbeHandler answers liveness probes. Same pipeline as tasks minus
// admission and execution: verify, check the deadline, echo back signed.
type ProbeHandler struct {
	node *Node
}

// NewProbeHandler creates a ProbeHandler bound to node.
func NewProbeHandler(node *Node) *ProbeHandler {
	return &ProbeHandler{node: node}
}

// Topic implements the Handler interface.
func (h *ProbeHandler) Topic() string {
	return wire.TopicProbeRequest
}

// Validate implements the Handler interface.
func (h *ProbeHandler) Validate(ctx context.Context, env *wire.Envelope) mesh.Verdict {
	var req wire.ProbeRequest
	if err := env.Decode(&req); err != nil {
		return mesh.Reject
	}
	if req.ProbeID == "" {
		return mesh.Reject
	}
	if req.Expired(time.Now()) {
		return mesh.Ignore
	}
	return mesh.Accept
}

// Deliver implements the Handler interface.
func (h *ProbeHandler) Deliver(ctx context.Context, env *wire.Envelope) {
	var req wire.ProbeRequest
	if err := env.Decode(&req); err != nil {
		return
	}

	h.node.logger.WithField("probe_id", req.ProbeID).Debug("answering probe")

	// publish retries can take a while; keep the event loop pumping
	resp := &wire.ProbeResponse{ProbeID: req.ProbeID}
	h.node.goFunc(func() {
		if err := h.node.publish(ctx, wire.TopicProbeResponse, resp); err != nil {
			h.node.logger.WithField("probe_id", req.ProbeID).WithError(err).Error("publishing probe response")
		}
	})
}
