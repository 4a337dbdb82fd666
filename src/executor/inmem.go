package executor

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/taskmesh/taskmesh/src/wire"
)

// ExecuteFunc adapts a plain function to the Executor interface.
type ExecuteFunc func(ctx context.Context, req *wire.TaskRequest) (*Result, error)

// InmemExecutor wraps an in-process function. It is used in tests and by the
// standalone mode, where the node echoes inputs back instead of calling an
// external model.
type InmemExecutor struct {
	executeFn ExecuteFunc
	model     string
	logger    *logrus.Entry
}

// NewInmemExecutor creates an InmemExecutor around fn.
func NewInmemExecutor(fn ExecuteFunc, logger *logrus.Entry) *InmemExecutor {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	return &InmemExecutor{
		executeFn: fn,
		model:     "inmem",
		logger:    logger,
	}
}

// NewEchoExecutor returns an InmemExecutor that echoes the task input.
func NewEchoExecutor(logger *logrus.Entry) *InmemExecutor {
	e := NewInmemExecutor(func(ctx context.Context, req *wire.TaskRequest) (*Result, error) {
		return &Result{Output: req.Input, Model: "echo"}, nil
	}, logger)
	e.model = "echo"
	return e
}

// Execute implements the Executor interface.
func (e *InmemExecutor) Execute(ctx context.Context, req *wire.TaskRequest) (*Result, error) {
	e.logger.WithField("task_id", req.TaskID).Debug("executing in-process")
	return e.executeFn(ctx, req)
}

// Model implements the Executor interface.
func (e *InmemExecutor) Model() string {
	return e.model
}
