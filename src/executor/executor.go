// Package executor defines the interface between the node and the component
// that actually computes task results. The node treats execution as a black
// box: input bytes in, output bytes out, possibly after a very long time.
package executor

import (
	"context"

	"github.com/taskmesh/taskmesh/src/wire"
)

// Result is the outcome of a successful execution.
type Result struct {
	// Output is the raw result payload returned to the requester.
	Output []byte
	// Model names whatever computed the result, echoed in response stats.
	Model string
}

// Executor computes task results. Implementations must honor context
// cancellation; an invocation may run for minutes.
type Executor interface {
	Execute(ctx context.Context, req *wire.TaskRequest) (*Result, error)

	// Model names the executor. A successful Execute may report something
	// more specific in its Result; this label identifies the model in task
	// errors, where there is no Result to take it from.
	Model() string
}
