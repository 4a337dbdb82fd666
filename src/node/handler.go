package node

import (
	"context"

	"github.com/taskmesh/taskmesh/src/mesh"
	"github.com/taskmesh/taskmesh/src/wire"
)

// Handler implements one task family. The node decodes and signature-checks
// the envelope before either method is called.
//
// Validate runs inside the transport's validation path, so it must stay fast
// and read-only: it decides whether the message is processed and relayed, but
// does not execute anything. Deliver runs from the node's event loop for
// messages that validated as Accept and may start long-running work, as long
// as it hands that work off instead of blocking.
type Handler interface {
	Topic() string
	Validate(ctx context.Context, env *wire.Envelope) mesh.Verdict
	Deliver(ctx context.Context, env *wire.Envelope)
}
