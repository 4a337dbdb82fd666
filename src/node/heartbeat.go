package node

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/taskmesh/taskmesh/src/mesh"
	"github.com/taskmesh/taskmesh/src/wire"
)

// heartbeatLoop periodically publishes a capacity report. This runs
// independently of task traffic so routers learn about overload even when no
// work is flowing.
func (n *Node) heartbeatLoop() {
	ticker := time.NewTicker(n.conf.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			n.publishHeartbeat()
		}
	}
}

func (n *Node) publishHeartbeat() {
	pendingSingle, pendingBatch := n.queueDepths()

	hb := &wire.HeartbeatRequest{
		HeartbeatID:   uuid.New().String(),
		Deadline:      time.Now().Add(n.conf.HeartbeatInterval).UnixMilli(),
		PendingSingle: pendingSingle,
		PendingBatch:  pendingBatch,
		BatchSize:     n.conf.BatchSize,
	}

	n.logger.WithFields(logrus.Fields{
		"heartbeat_id":   hb.HeartbeatID,
		"pending_single": hb.PendingSingle,
		"pending_batch":  hb.PendingBatch,
	}).Debug("publishing heartbeat")

	if err := n.publish(n.ctx, wire.TopicHeartbeatRequest, hb); err != nil {
		n.logger.WithError(err).Error("publishing heartbeat")
		return
	}

	n.metrics.heartbeats.Inc()
}

// HeartbeatHandler acknowledges other peers' capacity reports. An unhealthy
// report still gets an ack; the error field carries the judgement. This is
// the router side of the cooperative backpressure scheme.
type HeartbeatHandler struct {
	node *Node
}

// NewHeartbeatHandler creates a HeartbeatHandler bound to node.
func NewHeartbeatHandler(node *Node) *HeartbeatHandler {
	return &HeartbeatHandler{node: node}
}

// Topic implements the Handler interface.
func (h *HeartbeatHandler) Topic() string {
	return wire.TopicHeartbeatRequest
}

// Validate implements the Handler interface. Expired heartbeats are not
// Ignored here: the deadline judgement belongs in the ack's error field, so
// the publisher learns it is late rather than hearing nothing.
func (h *HeartbeatHandler) Validate(ctx context.Context, env *wire.Envelope) mesh.Verdict {
	var hb wire.HeartbeatRequest
	if err := env.Decode(&hb); err != nil {
		return mesh.Reject
	}
	if hb.HeartbeatID == "" {
		return mesh.Reject
	}
	return mesh.Accept
}

// Deliver implements the Handler interface.
func (h *HeartbeatHandler) Deliver(ctx context.Context, env *wire.Envelope) {
	var hb wire.HeartbeatRequest
	if err := env.Decode(&hb); err != nil {
		return
	}

	ack := &wire.HeartbeatResponse{HeartbeatID: hb.HeartbeatID}
	if healthy, reason := hb.Healthy(time.Now()); !healthy {
		ack.Error = &reason
	}

	logger := h.node.logger.WithField("heartbeat_id", hb.HeartbeatID)
	if ack.Error != nil {
		logger = logger.WithField("error", *ack.Error)
	}
	logger.Debug("acking heartbeat")

	// publish retries can take a while; keep the event loop pumping
	h.node.goFunc(func() {
		if err := h.node.publish(ctx, wire.TopicHeartbeatAck, ack); err != nil {
			logger.WithError(err).Error("publishing heartbeat ack")
		}
	})
}
