package service

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/taskmesh/taskmesh/src/common"
	"github.com/taskmesh/taskmesh/src/crypto/keys"
	"github.com/taskmesh/taskmesh/src/executor"
	"github.com/taskmesh/taskmesh/src/mesh"
	"github.com/taskmesh/taskmesh/src/node"
	"github.com/taskmesh/taskmesh/src/peers"
)

func newTestService(t *testing.T) (*Service, *node.Node) {
	key, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	network := mesh.NewInmemNetwork()
	trans := network.NewTransport("svc")
	exec := executor.NewEchoExecutor(common.NewTestEntry(t))

	n := node.NewNode(node.DefaultConfig(), node.NewIdentity(key, "svc"), trans, exec, common.NewTestEntry(t))

	roster := []*peers.Peer{
		peers.NewPeer(keys.PublicKeyHex(&key.PublicKey), "svc"),
	}

	return NewService(":0", n, roster, common.NewTestEntry(t)), n
}

func TestGetStats(t *testing.T) {
	service, _ := newTestService(t)

	server := httptest.NewServer(service.Handler())
	defer server.Close()

	resp, err := server.Client().Get(server.URL + "/stats")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("status %d", resp.StatusCode)
	}

	var stats map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("err: %v", err)
	}

	if stats["moniker"] != "svc" {
		t.Fatalf("moniker %s, expected svc", stats["moniker"])
	}
}

func TestGetPeers(t *testing.T) {
	service, _ := newTestService(t)

	server := httptest.NewServer(service.Handler())
	defer server.Close()

	resp, err := server.Client().Get(server.URL + "/peers")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer resp.Body.Close()

	var roster []*peers.Peer
	if err := json.NewDecoder(resp.Body).Decode(&roster); err != nil {
		t.Fatalf("err: %v", err)
	}

	if len(roster) != 1 || roster[0].Moniker != "svc" {
		t.Fatalf("unexpected roster %+v", roster)
	}
}

func TestGetSpecs(t *testing.T) {
	service, _ := newTestService(t)

	server := httptest.NewServer(service.Handler())
	defer server.Close()

	resp, err := server.Client().Get(server.URL + "/specs")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer resp.Body.Close()

	var snapshot map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		t.Fatalf("err: %v", err)
	}

	if _, ok := snapshot["num_cpu"]; !ok {
		t.Fatalf("snapshot should report cpu count, got %+v", snapshot)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	service, _ := newTestService(t)

	server := httptest.NewServer(service.Handler())
	defer server.Close()

	resp, err := server.Client().Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("status %d", resp.StatusCode)
	}
}
