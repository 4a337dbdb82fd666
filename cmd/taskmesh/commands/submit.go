package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/taskmesh/taskmesh/src/admission"
	"github.com/taskmesh/taskmesh/src/crypto/keys"
	"github.com/taskmesh/taskmesh/src/mesh"
	"github.com/taskmesh/taskmesh/src/peers"
	"github.com/taskmesh/taskmesh/src/wire"
)

var (
	submitDeadline time.Duration
	submitWarmup   time.Duration
)

// NewSubmitCmd returns the command that publishes a task on the mesh and
// waits for signed responses until the task's deadline.
func NewSubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "submit [input]",
		Short:   "Submit a task and wait for responses",
		Args:    cobra.ExactArgs(1),
		PreRunE: loadConfig,
		RunE:    submit,
	}
	AddRunFlags(cmd)
	cmd.Flags().Duration("task-deadline", 2*time.Minute, "How long responders get before the task expires")
	cmd.Flags().Duration("warmup", 10*time.Second, "How long to wait for mesh connections before publishing")
	return cmd
}

func submit(cmd *cobra.Command, args []string) error {
	logger := _config.Logger()

	submitDeadline, _ = cmd.Flags().GetDuration("task-deadline")
	submitWarmup, _ = cmd.Flags().GetDuration("warmup")

	keyfile := keys.NewSimpleKeyfile(_config.Keyfile())
	key, err := keyfile.ReadKey()
	if err != nil {
		return fmt.Errorf("reading %s: %v", _config.Keyfile(), err)
	}

	// the admission filter is built over the known roster; responders not in
	// peers.json will relay the task but never execute it
	store := peers.NewJSONPeerSet(_config.DataDir)
	roster, err := store.Peers()
	if err != nil {
		return fmt.Errorf("reading peers: %v", err)
	}
	if len(roster) == 0 {
		return fmt.Errorf("peers.json should define at least one peer")
	}

	filter, err := admission.NewFilter(_config.AdmissionCapacity, _config.AdmissionFPRate)
	if err != nil {
		return err
	}
	for _, p := range roster {
		raw, err := p.PubKeyBytes()
		if err != nil {
			return fmt.Errorf("peer %s: %v", p.Moniker, err)
		}
		filter.Add(raw)
	}
	filterBytes, err := filter.Marshal()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bootstrap := _config.BootstrapPeers
	for _, p := range roster {
		bootstrap = append(bootstrap, p.Addrs...)
	}

	trans, err := mesh.NewLibp2pTransport(ctx, mesh.Config{
		Key:            key,
		ListenAddrs:    _config.ListenAddrs,
		BootstrapPeers: bootstrap,
		ConnLow:        _config.ConnLow,
		ConnHigh:       _config.ConnHigh,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	defer trans.Close()

	acceptAll := func(ctx context.Context, from string, data []byte) mesh.Verdict {
		return mesh.Accept
	}
	if err := trans.Subscribe(wire.TopicTaskResponse, acceptAll); err != nil {
		return err
	}

	if err := waitForPeers(ctx, trans, submitWarmup); err != nil {
		return err
	}

	deadline := time.Now().Add(submitDeadline)

	task := &wire.TaskRequest{
		TaskID:             uuid.New().String(),
		Deadline:           deadline.UnixMilli(),
		Input:              []byte(args[0]),
		AdmissionFilter:    filterBytes,
		RequesterPublicKey: keys.PublicKeyHex(&key.PublicKey),
	}

	env, err := wire.NewEnvelope(wire.TopicTaskRequest, task, key)
	if err != nil {
		return err
	}
	data, err := env.Marshal()
	if err != nil {
		return err
	}
	if err := trans.Publish(ctx, wire.TopicTaskRequest, data); err != nil {
		return err
	}

	fmt.Printf("task %s submitted, waiting until %s\n", task.TaskID, deadline.Format(time.RFC3339))

	return collectResponses(ctx, trans, task.TaskID, deadline)
}

func waitForPeers(ctx context.Context, trans mesh.Transport, warmup time.Duration) error {
	timeout := time.After(warmup)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			if trans.PeerCount() == 0 {
				return fmt.Errorf("no mesh peers after %s", warmup)
			}
			return nil
		case <-ticker.C:
			if trans.PeerCount() > 0 {
				return nil
			}
		}
	}
}

// taskOutcome covers both TaskResponse and TaskError payloads; a non-empty
// Error marks the latter.
type taskOutcome struct {
	TaskID string `json:"task_id"`
	Result []byte `json:"result"`
	Error  string `json:"error"`
	Model  string `json:"model"`
}

func collectResponses(ctx context.Context, trans mesh.Transport, taskID string, deadline time.Time) error {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	responses := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			fmt.Printf("%d response(s) received\n", responses)
			return nil
		case ev := <-trans.Events():
			env := &wire.Envelope{}
			if err := env.Unmarshal(ev.Data); err != nil {
				continue
			}
			responder, err := env.Verify()
			if err != nil {
				continue
			}

			var outcome taskOutcome
			if err := env.Decode(&outcome); err != nil {
				continue
			}
			if outcome.TaskID != taskID {
				continue
			}

			responses++
			if outcome.Error != "" {
				fmt.Printf("error from %s: %s\n", keys.PublicKeyHex(responder), outcome.Error)
			} else {
				fmt.Printf("result from %s: %s\n", keys.PublicKeyHex(responder), outcome.Result)
			}
		}
	}
}
