package mesh

import (
	"context"
	"testing"
	"time"
)

func acceptAll(ctx context.Context, from string, data []byte) Verdict {
	return Accept
}

func TestInmemPublishSubscribe(t *testing.T) {
	network := NewInmemNetwork()

	alice := network.NewTransport("alice")
	bob := network.NewTransport("bob")

	if err := bob.Subscribe("greetings", acceptAll); err != nil {
		t.Fatalf("err: %v", err)
	}

	if err := alice.Publish(context.Background(), "greetings", []byte("hello")); err != nil {
		t.Fatalf("err: %v", err)
	}

	select {
	case ev := <-bob.Events():
		if ev.Topic != "greetings" {
			t.Fatalf("topic %s, expected greetings", ev.Topic)
		}
		if string(ev.Data) != "hello" {
			t.Fatalf("data %q, expected hello", ev.Data)
		}
		if ev.From != "alice" {
			t.Fatalf("from %s, expected alice", ev.From)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for event")
	}
}

func TestInmemNoSelfDelivery(t *testing.T) {
	network := NewInmemNetwork()

	alice := network.NewTransport("alice")

	if err := alice.Subscribe("greetings", acceptAll); err != nil {
		t.Fatalf("err: %v", err)
	}

	if err := alice.Publish(context.Background(), "greetings", []byte("hello")); err != nil {
		t.Fatalf("err: %v", err)
	}

	select {
	case ev := <-alice.Events():
		t.Fatalf("publisher should not receive its own message, got %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestInmemValidationGate(t *testing.T) {
	network := NewInmemNetwork()

	alice := network.NewTransport("alice")
	bob := network.NewTransport("bob")

	rejectAll := func(ctx context.Context, from string, data []byte) Verdict {
		return Reject
	}

	if err := bob.Subscribe("greetings", rejectAll); err != nil {
		t.Fatalf("err: %v", err)
	}

	if err := alice.Publish(context.Background(), "greetings", []byte("hello")); err != nil {
		t.Fatalf("err: %v", err)
	}

	select {
	case ev := <-bob.Events():
		t.Fatalf("rejected message should not be delivered, got %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestInmemPeerCount(t *testing.T) {
	network := NewInmemNetwork()

	alice := network.NewTransport("alice")
	network.NewTransport("bob")
	network.NewTransport("carol")

	if c := alice.PeerCount(); c != 2 {
		t.Fatalf("peer count %d, expected 2", c)
	}
}

func TestInmemClosedPublish(t *testing.T) {
	network := NewInmemNetwork()

	alice := network.NewTransport("alice")

	if err := alice.Close(); err != nil {
		t.Fatalf("err: %v", err)
	}

	if err := alice.Publish(context.Background(), "greetings", []byte("hello")); err == nil {
		t.Fatalf("publishing on a closed transport should fail")
	}
}

func TestVerdictString(t *testing.T) {
	if Accept.String() != "accept" || Reject.String() != "reject" || Ignore.String() != "ignore" {
		t.Fatalf("unexpected verdict strings")
	}
	if Verdict(42).String() != "unknown" {
		t.Fatalf("out-of-range verdict should stringify as unknown")
	}
}
