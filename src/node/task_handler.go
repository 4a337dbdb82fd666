package node

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/taskmesh/taskmesh/src/admission"
	"github.com/taskmesh/taskmesh/src/mesh"
	"github.com/taskmesh/taskmesh/src/wire"
)

// TaskHandler runs the task pipeline: deadline and duplicate checks during
// validation, then admission testing and execution on delivery.
//
// The admission miss case returns Accept on purpose: the message is perfectly
// well-formed and other peers may be members of its filter, so it must keep
// relaying; this peer merely skips execution.
type TaskHandler struct {
	node *Node
}

// NewTaskHandler creates a TaskHandler bound to node.
func NewTaskHandler(node *Node) *TaskHandler {
	return &TaskHandler{node: node}
}

// Topic implements the Handler interface.
func (h *TaskHandler) Topic() string {
	return wire.TopicTaskRequest
}

// Validate implements the Handler interface.
func (h *TaskHandler) Validate(ctx context.Context, env *wire.Envelope) mesh.Verdict {
	var req wire.TaskRequest
	if err := env.Decode(&req); err != nil {
		return mesh.Reject
	}
	if req.TaskID == "" {
		return mesh.Reject
	}
	if _, err := admission.UnmarshalFilter(req.AdmissionFilter); err != nil {
		return mesh.Reject
	}
	if req.Expired(time.Now()) {
		return mesh.Ignore
	}
	if h.node.seen.Seen(req.TaskID) {
		return mesh.Ignore
	}
	return mesh.Accept
}

// Deliver implements the Handler interface.
func (h *TaskHandler) Deliver(ctx context.Context, env *wire.Envelope) {
	var req wire.TaskRequest
	if err := env.Decode(&req); err != nil {
		return
	}

	logger := h.node.logger.WithField("task_id", req.TaskID)

	filter, err := admission.UnmarshalFilter(req.AdmissionFilter)
	if err != nil {
		return
	}

	if !filter.Test(h.node.identity.PublicKeyBytes()) {
		logger.Debug("not admitted, skipping execution")
		h.node.metrics.execution("not_admitted")
		return
	}

	// conditions can change between validation and delivery
	if req.Expired(time.Now()) {
		logger.Debug("deadline passed before execution")
		return
	}

	// exactly one delivery per task id wins the reservation
	if !h.node.seen.Reserve(req.TaskID, req.Deadline) {
		logger.Debug("duplicate task, already reserved")
		return
	}

	logger.WithFields(logrus.Fields{
		"deadline": req.Deadline,
		"input":    len(req.Input),
	}).Debug("task admitted")

	h.node.runTask(&req)
}
