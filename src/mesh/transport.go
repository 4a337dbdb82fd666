// Package mesh provides the gossip transport layer. Peers discover each
// other through a DHT rendezvous and exchange messages over pub-sub topics.
// Message admission into the relay graph is controlled by per-topic
// validation callbacks returning a Verdict.
package mesh

import "context"

// Event is an inbound message that passed topic validation with an Accept
// verdict. From identifies the original publisher at the transport level.
type Event struct {
	Topic string
	Data  []byte
	From  string
}

// ValidateFunc inspects an inbound message before the transport relays it.
// It must be fast and must not block on long-running work; execution belongs
// in the event consumer, not here.
type ValidateFunc func(ctx context.Context, from string, data []byte) Verdict

// Transport is the pub-sub abstraction the node runs on. Implementations
// must allow Publish to be called concurrently from multiple goroutines.
type Transport interface {
	// Subscribe joins a topic and installs its validation callback.
	// Messages that validate as Accept are delivered on Events().
	Subscribe(topic string, validate ValidateFunc) error

	// Publish sends data on a topic, joining it first if necessary.
	Publish(ctx context.Context, topic string, data []byte) error

	// Events returns the stream of accepted inbound messages.
	Events() <-chan Event

	// LocalID identifies this transport endpoint on the mesh.
	LocalID() string

	// PeerCount returns the number of currently connected peers.
	PeerCount() int

	// Close tears down subscriptions and network resources.
	Close() error
}
