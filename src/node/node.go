// Package node implements the orchestrator that ties the mesh transport, the
// handler pipeline, the heartbeat monitor and the executor together.
package node

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/taskmesh/taskmesh/src/executor"
	"github.com/taskmesh/taskmesh/src/mesh"
	"github.com/taskmesh/taskmesh/src/specs"
	"github.com/taskmesh/taskmesh/src/wire"
)

const (
	publishAttempts = 3
	publishBackoff  = 500 * time.Millisecond
)

// Node drives the inbound event stream, dispatches to handlers, runs the
// heartbeat monitor, and owns all shared state: the immutable identity, the
// seen-task cache and the transport handle. Cancellation is hierarchical;
// Shutdown cancels one context and every loop and in-flight execution winds
// down on its own path.
type Node struct {
	conf *Config

	identity *Identity
	trans    mesh.Transport
	exec     executor.Executor

	handlers map[string]Handler
	seen     *SeenCache
	metrics  *Metrics

	// queue depths reported in heartbeats: single counts running
	// executions, batch counts admitted tasks waiting for a slot
	pendingSingle int32
	pendingBatch  int32
	execSem       chan struct{}

	lastSpecs atomic.Value // *specs.Snapshot

	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	shutdownOnce sync.Once

	start  time.Time
	logger *logrus.Entry
}

// NewNode creates a node around an identity, a transport and an executor.
// Call Init to subscribe the handlers, then Run.
func NewNode(conf *Config,
	identity *Identity,
	trans mesh.Transport,
	exec executor.Executor,
	logger *logrus.Entry) *Node {

	if conf == nil {
		conf = DefaultConfig()
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	ctx, cancel := context.WithCancel(context.Background())

	node := &Node{
		conf:     conf,
		identity: identity,
		trans:    trans,
		exec:     exec,
		handlers: map[string]Handler{},
		seen:     NewSeenCache(conf.CacheSize),
		metrics:  NewMetrics(),
		execSem:  make(chan struct{}, conf.MaxInflight),
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.WithField("this_id", identity.ID()),
	}

	node.register(NewTaskHandler(node))
	node.register(NewProbeHandler(node))
	node.register(NewHeartbeatHandler(node))

	node.lastSpecs.Store(specs.Take())

	return node
}

func (n *Node) register(h Handler) {
	n.handlers[h.Topic()] = h
}

// Init subscribes every registered handler's topic with a validation wrapper
// that decodes the envelope, checks its signature against the publisher
// claim, and defers the topic-specific checks to the handler.
func (n *Node) Init() error {
	for topic, h := range n.handlers {
		if err := n.trans.Subscribe(topic, n.validator(h)); err != nil {
			return fmt.Errorf("subscribing %s: %v", topic, err)
		}
		n.logger.WithField("topic", topic).Debug("subscribed")
	}
	return nil
}

func (n *Node) validator(h Handler) mesh.ValidateFunc {
	return func(ctx context.Context, from string, data []byte) mesh.Verdict {
		verdict := n.validate(ctx, h, data)
		n.metrics.message(h.Topic(), verdict.String())
		if verdict != mesh.Accept {
			n.logger.WithFields(logrus.Fields{
				"topic":   h.Topic(),
				"from":    from,
				"verdict": verdict.String(),
			}).Debug("message dropped")
		}
		return verdict
	}
}

func (n *Node) validate(ctx context.Context, h Handler, data []byte) mesh.Verdict {
	env := &wire.Envelope{}
	if err := env.Unmarshal(data); err != nil {
		return mesh.Reject
	}
	if env.Topic != h.Topic() {
		return mesh.Reject
	}
	if _, err := env.Verify(); err != nil {
		return mesh.Reject
	}
	return h.Validate(ctx, env)
}

// Run starts the background loops and blocks until Shutdown is called.
func (n *Node) Run() {
	n.logger.WithField("moniker", n.identity.Moniker).Debug("node running")

	n.start = time.Now()

	n.goFunc(n.eventLoop)
	n.goFunc(n.heartbeatLoop)
	n.goFunc(n.specsLoop)

	<-n.ctx.Done()
	n.wg.Wait()
}

func (n *Node) goFunc(f func()) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		f()
	}()
}

// eventLoop pumps accepted inbound messages into their handlers. Handlers
// hand long-running work off to goroutines, so this loop never blocks on
// execution and the heartbeat cadence is unaffected by slow tasks.
func (n *Node) eventLoop() {
	for {
		select {
		case <-n.ctx.Done():
			return
		case ev, ok := <-n.trans.Events():
			if !ok {
				return
			}
			n.dispatch(ev)
		}
	}
}

func (n *Node) dispatch(ev mesh.Event) {
	h, ok := n.handlers[ev.Topic]
	if !ok {
		n.logger.WithField("topic", ev.Topic).Warning("no handler for topic")
		return
	}

	env := &wire.Envelope{}
	if err := env.Unmarshal(ev.Data); err != nil {
		// validation already passed, this should not happen
		n.logger.WithField("topic", ev.Topic).WithError(err).Error("decoding delivered envelope")
		return
	}

	h.Deliver(n.ctx, env)
}

// runTask executes an admitted task as an independent unit of work, bounded
// by the inflight semaphore, and publishes a signed response or error.
func (n *Node) runTask(req *wire.TaskRequest) {
	atomic.AddInt32(&n.pendingBatch, 1)

	n.goFunc(func() {
		select {
		case n.execSem <- struct{}{}:
		case <-n.ctx.Done():
			atomic.AddInt32(&n.pendingBatch, -1)
			return
		}

		atomic.AddInt32(&n.pendingBatch, -1)
		atomic.AddInt32(&n.pendingSingle, 1)
		n.metrics.inflight.Inc()

		defer func() {
			<-n.execSem
			atomic.AddInt32(&n.pendingSingle, -1)
			n.metrics.inflight.Dec()
		}()

		n.executeTask(req)
	})
}

func (n *Node) executeTask(req *wire.TaskRequest) {
	logger := n.logger.WithField("task_id", req.TaskID)

	// the task's own deadline bounds the execution
	ctx, cancel := context.WithDeadline(n.ctx, time.UnixMilli(req.Deadline))
	defer cancel()

	start := time.Now()
	res, err := n.exec.Execute(ctx, req)
	stats := &wire.ExecStats{
		StartedAt:  start.UnixMilli(),
		DurationMs: time.Since(start).Milliseconds(),
	}

	if err != nil {
		logger.WithError(err).Error("task execution failed")
		n.metrics.execution("error")

		taskErr := &wire.TaskError{
			TaskID: req.TaskID,
			Error:  err.Error(),
			Model:  n.exec.Model(),
			Stats:  stats,
		}
		if err := n.publish(n.ctx, wire.TopicTaskResponse, taskErr); err != nil {
			logger.WithError(err).Error("publishing task error")
		}
		return
	}

	stats.Model = res.Model
	logger.WithFields(logrus.Fields{
		"model":       res.Model,
		"duration_ms": stats.DurationMs,
	}).Debug("task executed")
	n.metrics.execution("success")

	resp := &wire.TaskResponse{
		TaskID: req.TaskID,
		Result: res.Output,
		Stats:  stats,
	}
	if err := n.publish(n.ctx, wire.TopicTaskResponse, resp); err != nil {
		logger.WithError(err).Error("publishing task response")
	}
}

// publish signs payload into an envelope and publishes it, retrying with a
// linear backoff. Gossip publishes can fail transiently while the mesh forms.
func (n *Node) publish(ctx context.Context, topic string, payload interface{}) error {
	env, err := wire.NewEnvelope(topic, payload, n.identity.Key)
	if err != nil {
		return err
	}

	data, err := env.Marshal()
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < publishAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * publishBackoff):
			}
		}
		if lastErr = n.trans.Publish(ctx, topic, data); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

// specsLoop periodically samples host capacity for diagnostics.
func (n *Node) specsLoop() {
	ticker := time.NewTicker(n.conf.SpecsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			snapshot := specs.Take()
			n.lastSpecs.Store(snapshot)
			n.logger.WithFields(logrus.Fields{
				"cpu_percent":  snapshot.CPUPercent,
				"load_1":       snapshot.Load1,
				"mem_used_pct": snapshot.MemUsedPercent,
			}).Debug("host capacity")
		}
	}
}

// Shutdown cancels the node's context and waits for every loop and in-flight
// execution to wind down, then closes the transport. Safe to call more than
// once.
func (n *Node) Shutdown() {
	n.shutdownOnce.Do(func() {
		n.logger.Debug("shutting down")

		n.cancel()
		n.wg.Wait()

		if err := n.trans.Close(); err != nil {
			n.logger.WithError(err).Error("closing transport")
		}
	})
}

func (n *Node) queueDepths() (pendingSingle, pendingBatch uint) {
	return uint(atomic.LoadInt32(&n.pendingSingle)), uint(atomic.LoadInt32(&n.pendingBatch))
}

// GetStats returns a summary of the node's state for diagnostics.
func (n *Node) GetStats() map[string]string {
	pendingSingle, pendingBatch := n.queueDepths()

	return map[string]string{
		"id":             strconv.FormatUint(uint64(n.identity.ID()), 10),
		"moniker":        n.identity.Moniker,
		"public_key":     n.identity.PublicKeyHex(),
		"transport_id":   n.trans.LocalID(),
		"num_peers":      strconv.Itoa(n.trans.PeerCount()),
		"pending_single": strconv.FormatUint(uint64(pendingSingle), 10),
		"pending_batch":  strconv.FormatUint(uint64(pendingBatch), 10),
		"batch_size":     strconv.FormatUint(uint64(n.conf.BatchSize), 10),
		"seen_tasks":     strconv.Itoa(n.seen.Len()),
		"uptime":         time.Since(n.start).String(),
	}
}

// LastSpecs returns the most recent host capacity snapshot.
func (n *Node) LastSpecs() *specs.Snapshot {
	return n.lastSpecs.Load().(*specs.Snapshot)
}

// Metrics exposes the node's metric registry for the diagnostics endpoint.
func (n *Node) Metrics() *Metrics {
	return n.metrics
}
