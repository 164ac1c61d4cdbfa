package lib

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

/* This file implements dev-ops telemetry for the storage node in the form of prometheus metrics */

const metricsPattern = "/metrics"

// Metrics represents a server that exposes Prometheus metrics
// A nil *Metrics is valid and silently discards every update
type Metrics struct {
	server   *http.Server         // the http prometheus server
	config   MetricsConfig        // the configuration
	registry *prometheus.Registry // the registry owned by this instance
	log      LoggerI              // the logger

	CommitteeMetrics // membership telemetry
	RequestMetrics   // quorum request telemetry
	StoreMetrics     // sliver store telemetry
}

// CommitteeMetrics represents the telemetry of the committee service
type CommitteeMetrics struct {
	Epoch                    prometheus.Gauge       // what's the current epoch?
	ChangeInProgress         prometheus.Gauge       // is an epoch change in progress?
	NodeServices             prometheus.Gauge       // how many member services are registered?
	ServiceConstructionFails prometheus.Counter     // how many times did building a member service fail?
	Transitions              *prometheus.CounterVec // how many begin/end transitions completed?
}

// RequestMetrics represents the telemetry of requests to other storage nodes
type RequestMetrics struct {
	SyncShardRequests *prometheus.CounterVec // how many shard syncs succeeded or failed?
	SyncShardTime     prometheus.Histogram   // how long does a shard sync page take?
	QuorumRequests    *prometheus.CounterVec // how many executor requests per kind and result?
}

// StoreMetrics represents the telemetry of the sliver store
type StoreMetrics struct {
	SliversWritten prometheus.Counter // how many slivers were written?
}

// NewMetricsServer() creates a new telemetry server with its own prometheus registry
func NewMetricsServer(config MetricsConfig, log LoggerI) *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	mux := http.NewServeMux()
	mux.Handle(metricsPattern, promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	if log == nil {
		log = NewNullLogger()
	}
	return &Metrics{
		server:   &http.Server{Addr: config.PrometheusAddress, Handler: mux},
		config:   config,
		registry: registry,
		log:      log,
		CommitteeMetrics: CommitteeMetrics{
			Epoch: factory.NewGauge(prometheus.GaugeOpts{
				Name: "shardnode_committee_epoch",
				Help: "The epoch of the current committee",
			}),
			ChangeInProgress: factory.NewGauge(prometheus.GaugeOpts{
				Name: "shardnode_committee_change_in_progress",
				Help: "Epoch change status (1 while changing, 0 otherwise)",
			}),
			NodeServices: factory.NewGauge(prometheus.GaugeOpts{
				Name: "shardnode_committee_node_services",
				Help: "Number of registered member services",
			}),
			ServiceConstructionFails: factory.NewCounter(prometheus.CounterOpts{
				Name: "shardnode_committee_service_construction_failures",
				Help: "Number of member services that failed to build",
			}),
			Transitions: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "shardnode_committee_transitions",
				Help: "Number of completed committee transitions by phase",
			}, []string{"phase"}),
		},
		RequestMetrics: RequestMetrics{
			SyncShardRequests: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "shardnode_sync_shard_requests",
				Help: "Number of shard sync requests by result",
			}, []string{"result"}),
			SyncShardTime: factory.NewHistogram(prometheus.HistogramOpts{
				Name: "shardnode_sync_shard_seconds",
				Help: "Time to complete a shard sync request in seconds",
			}),
			QuorumRequests: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "shardnode_quorum_requests",
				Help: "Number of quorum executor requests by kind and result",
			}, []string{"kind", "result"}),
		},
		StoreMetrics: StoreMetrics{
			SliversWritten: factory.NewCounter(prometheus.CounterOpts{
				Name: "shardnode_store_slivers_written",
				Help: "Number of slivers written to the store",
			}),
		},
	}
}

// Registry() exposes the instance registry to tests and embedding processes
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Start() starts the telemetry server
func (m *Metrics) Start() {
	// exit if empty or disabled
	if m == nil || !m.config.Enabled {
		return
	}
	go func() {
		m.log.Infof("Starting metrics server on %s", m.config.PrometheusAddress)
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.log.Errorf("Metrics server failed with err: %s", err.Error())
		}
	}()
}

// Stop() gracefully stops the telemetry server
func (m *Metrics) Stop() {
	// exit if empty or disabled
	if m == nil || !m.config.Enabled {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.server.Shutdown(ctx); err != nil {
		m.log.Error(err.Error())
	}
}

// UpdateCommittee() sets the epoch and change status gauges
func (m *Metrics) UpdateCommittee(epoch Epoch, changing bool) {
	// exit if empty
	if m == nil {
		return
	}
	m.Epoch.Set(float64(epoch))
	if changing {
		m.ChangeInProgress.Set(1)
	} else {
		m.ChangeInProgress.Set(0)
	}
}

// UpdateNodeServices() sets the number of registered member services
func (m *Metrics) UpdateNodeServices(count int) {
	// exit if empty
	if m == nil {
		return
	}
	m.NodeServices.Set(float64(count))
}

// AddServiceConstructionFailure() increments the failed service constructions
func (m *Metrics) AddServiceConstructionFailure() {
	// exit if empty
	if m == nil {
		return
	}
	m.ServiceConstructionFails.Inc()
}

// AddTransition() counts a completed 'begin' or 'end' transition
func (m *Metrics) AddTransition(phase string) {
	// exit if empty
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(phase).Inc()
}

// ObserveSyncShard() records the outcome and duration of a shard sync request
func (m *Metrics) ObserveSyncShard(err error, duration time.Duration) {
	// exit if empty
	if m == nil {
		return
	}
	m.SyncShardRequests.WithLabelValues(resultLabel(err)).Inc()
	m.SyncShardTime.Observe(duration.Seconds())
}

// AddQuorumRequest() counts the outcome of an executor request
func (m *Metrics) AddQuorumRequest(kind string, err error) {
	// exit if empty
	if m == nil {
		return
	}
	m.QuorumRequests.WithLabelValues(kind, resultLabel(err)).Inc()
}

// AddSliversWritten() counts slivers persisted to the store
func (m *Metrics) AddSliversWritten(n int) {
	// exit if empty
	if m == nil {
		return
	}
	m.SliversWritten.Add(float64(n))
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
