// Package service exposes node diagnostics over HTTP.
package service

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/taskmesh/taskmesh/src/node"
	"github.com/taskmesh/taskmesh/src/peers"
)

// Service implements an HTTP API to query the underlying node: live stats,
// the known peer roster, host capacity, and Prometheus metrics.
type Service struct {
	bindAddress string
	node        *node.Node
	roster      []*peers.Peer
	mux         *http.ServeMux
	logger      *logrus.Entry
}

// NewService creates a Service wired to a node and a peer roster. The roster
// may be nil when the node runs without a peers file.
func NewService(bindAddress string, n *node.Node, roster []*peers.Peer, logger *logrus.Entry) *Service {
	service := &Service{
		bindAddress: bindAddress,
		node:        n,
		roster:      roster,
		mux:         http.NewServeMux(),
		logger:      logger,
	}

	service.mux.HandleFunc("/stats", service.makeHandler(service.GetStats))
	service.mux.HandleFunc("/peers", service.makeHandler(service.GetPeers))
	service.mux.HandleFunc("/specs", service.makeHandler(service.GetSpecs))
	service.mux.Handle("/metrics", promhttp.HandlerFor(n.Metrics().Registry(), promhttp.HandlerOpts{}))

	return service
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")
		fn(w, r)
	}
}

// Serve starts the HTTP server. It blocks.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("serving diagnostics api")

	if err := http.ListenAndServe(s.bindAddress, s.mux); err != nil {
		s.logger.WithError(err).Error("diagnostics api stopped")
	}
}

// Handler exposes the underlying mux, mainly for tests.
func (s *Service) Handler() http.Handler {
	return s.mux
}

// GetStats returns the node's stats summary.
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.node.GetStats())
}

// GetPeers returns the known peer roster.
func (s *Service) GetPeers(w http.ResponseWriter, r *http.Request) {
	roster := s.roster
	if roster == nil {
		roster = []*peers.Peer{}
	}
	s.writeJSON(w, roster)
}

// GetSpecs returns the latest host capacity snapshot.
func (s *Service) GetSpecs(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.node.LastSpecs())
}

func (s *Service) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("encoding response")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
