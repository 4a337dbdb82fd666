package mesh

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"sync"
	"time"

	libp2p "github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	drouting "github.com/libp2p/go-libp2p/p2p/discovery/routing"
	connmgr "github.com/libp2p/go-libp2p/p2p/net/connmgr"
	noise "github.com/libp2p/go-libp2p/p2p/security/noise"
	multiaddr "github.com/multiformats/go-multiaddr"
	"github.com/sirupsen/logrus"

	"github.com/taskmesh/taskmesh/src/crypto/keys"
	"github.com/taskmesh/taskmesh/src/wire"
)

const (
	dhtProtocolPrefix = "/taskmesh"
	rendezvousNS      = "taskmesh/v1"

	advertiseInterval = 30 * time.Second
	discoverInterval  = 15 * time.Second

	eventBufferSize = 256
)

// Config holds the tunables of the libp2p transport.
type Config struct {
	// Key is the node's signing key. The libp2p identity is derived from
	// it, so the transport-level peer id and the application-level
	// publisher claim belong to the same keypair.
	Key *ecdsa.PrivateKey

	// ListenAddrs are multiaddrs to listen on, e.g. /ip4/0.0.0.0/tcp/1337.
	ListenAddrs []string

	// BootstrapPeers are full multiaddrs (with /p2p/ suffix) dialed at
	// startup. Discovery backfills the rest of the mesh afterwards.
	BootstrapPeers []string

	// ConnLow and ConnHigh are the connection manager watermarks.
	ConnLow  int
	ConnHigh int

	Logger *logrus.Entry
}

// Libp2pTransport implements Transport on a GossipSub mesh with DHT
// rendezvous discovery.
type Libp2pTransport struct {
	ctx    context.Context
	cancel context.CancelFunc

	host   host.Host
	dht    *dht.IpfsDHT
	gossip *pubsub.PubSub

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
	subs   map[string]*pubsub.Subscription

	events chan Event

	wg     sync.WaitGroup
	logger *logrus.Entry
}

// NewLibp2pTransport builds the host, DHT and GossipSub router, dials the
// bootstrap peers, and starts the background discovery loops. The returned
// transport has no subscriptions yet.
func NewLibp2pTransport(parent context.Context, cfg Config) (*Libp2pTransport, error) {
	if cfg.Key == nil {
		return nil, fmt.Errorf("transport requires a signing key")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(logrus.New())
	}

	ctx, cancel := context.WithCancel(parent)

	priv, err := crypto.UnmarshalSecp256k1PrivateKey(keys.DumpPrivateKey(cfg.Key))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("deriving libp2p identity: %v", err)
	}

	low, high := cfg.ConnLow, cfg.ConnHigh
	if low <= 0 || high <= low {
		low, high = 16, 64
	}
	cm, err := connmgr.NewConnManager(low, high, connmgr.WithGracePeriod(time.Minute))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("connection manager: %v", err)
	}

	listenAddrs := cfg.ListenAddrs
	if len(listenAddrs) == 0 {
		listenAddrs = []string{"/ip4/0.0.0.0/tcp/1337"}
	}

	h, err := libp2p.New(
		libp2p.Identity(priv),
		libp2p.ListenAddrStrings(listenAddrs...),
		libp2p.ConnectionManager(cm),
		libp2p.Security(noise.ID, noise.New),
		libp2p.ProtocolVersion(wire.ProtocolVersion),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("libp2p host: %v", err)
	}

	kad, err := dht.New(ctx, h,
		dht.ProtocolPrefix(protocol.ID(dhtProtocolPrefix+"/kad")),
		dht.Mode(dht.ModeAuto),
	)
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("dht: %v", err)
	}

	gossip, err := pubsub.NewGossipSub(ctx, h,
		pubsub.WithMessageSigning(true),
		pubsub.WithStrictSignatureVerification(true),
	)
	if err != nil {
		kad.Close()
		h.Close()
		cancel()
		return nil, fmt.Errorf("gossipsub: %v", err)
	}

	t := &Libp2pTransport{
		ctx:    ctx,
		cancel: cancel,
		host:   h,
		dht:    kad,
		gossip: gossip,
		topics: map[string]*pubsub.Topic{},
		subs:   map[string]*pubsub.Subscription{},
		events: make(chan Event, eventBufferSize),
		logger: cfg.Logger,
	}

	t.logger.WithFields(logrus.Fields{
		"peer_id": h.ID().String(),
		"addrs":   h.Addrs(),
	}).Debug("transport up")

	t.dialBootstrapPeers(cfg.BootstrapPeers)

	if err := kad.Bootstrap(ctx); err != nil {
		t.logger.WithError(err).Warning("dht bootstrap")
	}

	rd := drouting.NewRoutingDiscovery(kad)

	t.wg.Add(2)
	go t.advertiseLoop(rd)
	go t.discoverLoop(rd)

	return t, nil
}

func (t *Libp2pTransport) dialBootstrapPeers(addrs []string) {
	for _, a := range addrs {
		ma, err := multiaddr.NewMultiaddr(a)
		if err != nil {
			t.logger.WithField("addr", a).WithError(err).Warning("bad bootstrap multiaddr")
			continue
		}
		info, err := peer.AddrInfoFromP2pAddr(ma)
		if err != nil {
			t.logger.WithField("addr", a).WithError(err).Warning("bootstrap multiaddr lacks /p2p id")
			continue
		}
		if err := t.host.Connect(t.ctx, *info); err != nil {
			t.logger.WithField("peer", info.ID.String()).WithError(err).Warning("bootstrap dial failed")
			continue
		}
		t.logger.WithField("peer", info.ID.String()).Debug("bootstrap peer connected")
	}
}

// advertiseLoop periodically announces our presence under the rendezvous
// namespace so other peers can find us through the DHT.
func (t *Libp2pTransport) advertiseLoop(rd *drouting.RoutingDiscovery) {
	defer t.wg.Done()

	ticker := time.NewTicker(advertiseInterval)
	defer ticker.Stop()

	// announce once up front
	if _, err := rd.Advertise(t.ctx, rendezvousNS); err != nil && t.ctx.Err() == nil {
		t.logger.WithError(err).Debug("advertise")
	}

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			if _, err := rd.Advertise(t.ctx, rendezvousNS); err != nil && t.ctx.Err() == nil {
				t.logger.WithError(err).Debug("advertise")
			}
		}
	}
}

// discoverLoop periodically queries the rendezvous namespace and dials any
// peer we are not yet connected to.
func (t *Libp2pTransport) discoverLoop(rd *drouting.RoutingDiscovery) {
	defer t.wg.Done()

	ticker := time.NewTicker(discoverInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			peerCh, err := rd.FindPeers(t.ctx, rendezvousNS)
			if err != nil {
				if t.ctx.Err() == nil {
					t.logger.WithError(err).Debug("find peers")
				}
				continue
			}
			for info := range peerCh {
				if info.ID == t.host.ID() || len(info.Addrs) == 0 {
					continue
				}
				if t.host.Network().Connectedness(info.ID) == network.Connected {
					continue
				}
				if err := t.host.Connect(t.ctx, info); err != nil {
					t.logger.WithField("peer", info.ID.String()).WithError(err).Debug("dial discovered peer")
				}
			}
		}
	}
}

// Subscribe joins a topic, installs the validation callback as a GossipSub
// topic validator, and starts consuming accepted messages into the event
// stream. The validator maps Verdicts onto GossipSub validation results, so
// Reject also penalizes the sender in the router's peer scoring and Ignore
// merely stops relaying.
func (t *Libp2pTransport) Subscribe(topic string, validate ValidateFunc) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.subs[topic]; ok {
		return fmt.Errorf("already subscribed to %s", topic)
	}

	wrapped := func(ctx context.Context, from peer.ID, msg *pubsub.Message) pubsub.ValidationResult {
		// our own publishes are already validated at construction time
		if msg.GetFrom() == t.host.ID() {
			return pubsub.ValidationAccept
		}
		switch validate(ctx, msg.GetFrom().String(), msg.Data) {
		case Accept:
			return pubsub.ValidationAccept
		case Reject:
			return pubsub.ValidationReject
		default:
			return pubsub.ValidationIgnore
		}
	}

	if err := t.gossip.RegisterTopicValidator(topic, wrapped); err != nil {
		return fmt.Errorf("registering validator for %s: %v", topic, err)
	}

	th, err := t.joinLocked(topic)
	if err != nil {
		return err
	}

	sub, err := th.Subscribe()
	if err != nil {
		return fmt.Errorf("subscribing to %s: %v", topic, err)
	}
	t.subs[topic] = sub

	t.wg.Add(1)
	go t.consume(topic, sub)

	return nil
}

// consume pumps validated messages from a subscription into the shared event
// channel, skipping our own publishes.
func (t *Libp2pTransport) consume(topic string, sub *pubsub.Subscription) {
	defer t.wg.Done()

	for {
		msg, err := sub.Next(t.ctx)
		if err != nil {
			// subscription cancelled or context done
			return
		}
		if msg.GetFrom() == t.host.ID() {
			continue
		}
		select {
		case t.events <- Event{Topic: topic, Data: msg.Data, From: msg.GetFrom().String()}:
		case <-t.ctx.Done():
			return
		}
	}
}

// Publish sends data on a topic, joining it first if necessary.
func (t *Libp2pTransport) Publish(ctx context.Context, topic string, data []byte) error {
	t.mu.Lock()
	th, err := t.joinLocked(topic)
	t.mu.Unlock()
	if err != nil {
		return err
	}
	return th.Publish(ctx, data)
}

func (t *Libp2pTransport) joinLocked(topic string) (*pubsub.Topic, error) {
	if th, ok := t.topics[topic]; ok {
		return th, nil
	}
	th, err := t.gossip.Join(topic)
	if err != nil {
		return nil, fmt.Errorf("joining topic %s: %v", topic, err)
	}
	t.topics[topic] = th
	return th, nil
}

// Events returns the stream of accepted inbound messages.
func (t *Libp2pTransport) Events() <-chan Event {
	return t.events
}

// LocalID returns the libp2p peer id.
func (t *Libp2pTransport) LocalID() string {
	return t.host.ID().String()
}

// PeerCount returns the number of connected peers.
func (t *Libp2pTransport) PeerCount() int {
	return len(t.host.Network().Peers())
}

// Close cancels the background loops and tears down the subscriptions, the
// DHT and the host.
func (t *Libp2pTransport) Close() error {
	t.cancel()

	t.mu.Lock()
	for _, sub := range t.subs {
		sub.Cancel()
	}
	t.mu.Unlock()

	t.wg.Wait()

	if err := t.dht.Close(); err != nil {
		t.host.Close()
		return err
	}
	return t.host.Close()
}
