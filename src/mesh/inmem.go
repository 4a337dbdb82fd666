package mesh

import (
	"context"
	"fmt"
	"sync"
)

// InmemNetwork connects InmemTransports directly, bypassing the network.
// Publishing on one transport runs every other subscriber's validation
// callback and delivers on Accept, mimicking gossip semantics closely enough
// for handler and node tests.
type InmemNetwork struct {
	mu         sync.Mutex
	transports []*InmemTransport
}

// NewInmemNetwork creates an empty in-memory network.
func NewInmemNetwork() *InmemNetwork {
	return &InmemNetwork{}
}

// NewTransport creates a transport endpoint attached to this network.
func (n *InmemNetwork) NewTransport(id string) *InmemTransport {
	t := &InmemTransport{
		id:        id,
		network:   n,
		validates: map[string]ValidateFunc{},
		events:    make(chan Event, eventBufferSize),
	}

	n.mu.Lock()
	n.transports = append(n.transports, t)
	n.mu.Unlock()

	return t
}

// route fans a published message out to every other subscribed transport.
func (n *InmemNetwork) route(from *InmemTransport, topic string, data []byte) {
	n.mu.Lock()
	targets := make([]*InmemTransport, len(n.transports))
	copy(targets, n.transports)
	n.mu.Unlock()

	for _, t := range targets {
		if t == from {
			continue
		}
		t.deliver(from.id, topic, data)
	}
}

// InmemTransport implements Transport over an InmemNetwork.
type InmemTransport struct {
	id      string
	network *InmemNetwork

	mu        sync.Mutex
	validates map[string]ValidateFunc
	closed    bool

	events chan Event
}

// Subscribe installs the topic's validation callback.
func (t *InmemTransport) Subscribe(topic string, validate ValidateFunc) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.validates[topic]; ok {
		return fmt.Errorf("already subscribed to %s", topic)
	}
	t.validates[topic] = validate
	return nil
}

// Publish fans the message out to the other transports on the network.
func (t *InmemTransport) Publish(ctx context.Context, topic string, data []byte) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return fmt.Errorf("transport closed")
	}

	t.network.route(t, topic, data)
	return nil
}

func (t *InmemTransport) deliver(from string, topic string, data []byte) {
	t.mu.Lock()
	validate, subscribed := t.validates[topic]
	closed := t.closed
	t.mu.Unlock()

	if !subscribed || closed {
		return
	}

	if validate(context.Background(), from, data) != Accept {
		return
	}

	select {
	case t.events <- Event{Topic: topic, Data: data, From: from}:
	default:
		// test networks should never fill the buffer; drop rather than block
	}
}

// Events returns the stream of accepted inbound messages.
func (t *InmemTransport) Events() <-chan Event {
	return t.events
}

// LocalID returns the identifier the transport was created with.
func (t *InmemTransport) LocalID() string {
	return t.id
}

// PeerCount returns the number of other endpoints on the network.
func (t *InmemTransport) PeerCount() int {
	t.network.mu.Lock()
	defer t.network.mu.Unlock()
	return len(t.network.transports) - 1
}

// Close detaches the transport from the network.
func (t *InmemTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}
