// Package taskmesh assembles a node from configuration: key, peer roster,
// transport, executor, orchestrator and diagnostics service.
package taskmesh

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/taskmesh/taskmesh/src/config"
	"github.com/taskmesh/taskmesh/src/crypto/keys"
	"github.com/taskmesh/taskmesh/src/executor"
	"github.com/taskmesh/taskmesh/src/mesh"
	"github.com/taskmesh/taskmesh/src/node"
	"github.com/taskmesh/taskmesh/src/peers"
	"github.com/taskmesh/taskmesh/src/service"
)

// Taskmesh is a wrapper around a node that initializes all its collaborators
// from a config object.
type Taskmesh struct {
	Config    *config.Config
	Peers     []*peers.Peer
	Transport mesh.Transport
	Executor  executor.Executor
	Node      *node.Node
	Service   *service.Service

	logger *logrus.Entry
}

// NewTaskmesh is a factory method that returns an uninitialized Taskmesh
// object with the provided config. Call Init before Run.
func NewTaskmesh(config *config.Config) *Taskmesh {
	engine := &Taskmesh{
		Config: config,
		logger: config.Logger(),
	}

	return engine
}

// Init initializes the node based on the config object. The initialization
// order matters: the key seeds the transport identity, the transport feeds
// the node, and the service wraps the node.
func (t *Taskmesh) Init() error {
	if err := t.initKey(); err != nil {
		t.logger.WithError(err).Error("taskmesh.go:Init() initKey")
		return err
	}

	if err := t.initPeers(); err != nil {
		t.logger.WithError(err).Error("taskmesh.go:Init() initPeers")
		return err
	}

	if err := t.initTransport(); err != nil {
		t.logger.WithError(err).Error("taskmesh.go:Init() initTransport")
		return err
	}

	if err := t.initExecutor(); err != nil {
		t.logger.WithError(err).Error("taskmesh.go:Init() initExecutor")
		return err
	}

	if err := t.initNode(); err != nil {
		t.logger.WithError(err).Error("taskmesh.go:Init() initNode")
		return err
	}

	if err := t.initService(); err != nil {
		t.logger.WithError(err).Error("taskmesh.go:Init() initService")
		return err
	}

	return nil
}

// initKey loads the signing key from the keyfile unless one was provided
// directly in the config. A node cannot run without a key; generate one with
// the keygen command first.
func (t *Taskmesh) initKey() error {
	if t.Config.Key != nil {
		return nil
	}

	keyfile := keys.NewSimpleKeyfile(t.Config.Keyfile())

	key, err := keyfile.ReadKey()
	if err != nil {
		return fmt.Errorf("reading %s: %v", t.Config.Keyfile(), err)
	}

	t.Config.Key = key
	return nil
}

// initPeers loads the optional peer roster. A missing peers file is fine;
// the roster only seeds diagnostics and locally built admission filters.
func (t *Taskmesh) initPeers() error {
	store := peers.NewJSONPeerSet(t.Config.DataDir)

	roster, err := store.Peers()
	if err != nil {
		if os.IsNotExist(err) {
			t.logger.Debug("no peers file, starting with an empty roster")
			return nil
		}
		return err
	}

	t.Peers = roster
	return nil
}

func (t *Taskmesh) initTransport() error {
	// roster addresses supplement the configured bootstrap peers
	bootstrap := t.Config.BootstrapPeers
	for _, p := range t.Peers {
		bootstrap = append(bootstrap, p.Addrs...)
	}

	trans, err := mesh.NewLibp2pTransport(context.Background(), mesh.Config{
		Key:            t.Config.Key,
		ListenAddrs:    t.Config.ListenAddrs,
		BootstrapPeers: bootstrap,
		ConnLow:        t.Config.ConnLow,
		ConnHigh:       t.Config.ConnHigh,
		Logger:         t.logger,
	})
	if err != nil {
		return err
	}

	t.Transport = trans
	return nil
}

func (t *Taskmesh) initExecutor() error {
	if t.Config.ExecutorURL != "" {
		t.Executor = executor.NewHTTPExecutor(t.Config.ExecutorURL, t.logger)
		return nil
	}

	t.logger.Debug("no executor configured, echoing task inputs")
	t.Executor = executor.NewEchoExecutor(t.logger)
	return nil
}

func (t *Taskmesh) initNode() error {
	nodeConf := &node.Config{
		HeartbeatInterval: t.Config.HeartbeatInterval,
		SpecsInterval:     t.Config.SpecsInterval,
		BatchSize:         t.Config.BatchSize,
		MaxInflight:       t.Config.MaxInflight,
		CacheSize:         t.Config.CacheSize,
	}

	identity := node.NewIdentity(t.Config.Key, t.Config.Moniker)

	t.Node = node.NewNode(nodeConf, identity, t.Transport, t.Executor, t.logger)

	return t.Node.Init()
}

func (t *Taskmesh) initService() error {
	if t.Config.NoService {
		return nil
	}

	t.Service = service.NewService(t.Config.ServiceAddr, t.Node, t.Peers, t.logger)
	return nil
}

// Run starts the diagnostics service and the node. It blocks until the node
// shuts down.
func (t *Taskmesh) Run() {
	if t.Service != nil {
		go t.Service.Serve()
	}

	t.Node.Run()
}
