// Package metrics exposes prometheus instrumentation for the three role
// actors: a small struct of pre-registered collectors handed to each actor
// at construction time rather than actors reaching into a global registry.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// LeaderMetrics instruments a single Leader.
type LeaderMetrics struct {
	BallotRound    prometheus.Gauge
	Active         prometheus.Gauge
	ScoutRetries   prometheus.Counter
	Decisions      prometheus.Counter
	Preemptions    prometheus.Counter
	CurrentTimeout prometheus.Gauge
}

// ReplicaMetrics instruments a single Replica.
type ReplicaMetrics struct {
	SlotIn          prometheus.Gauge
	SlotOut         prometheus.Gauge
	WindowDepth     prometheus.Gauge
	PendingRequests prometheus.Gauge
	Reproposals     prometheus.Counter
	Reconfigs       prometheus.Counter
}

// AcceptorMetrics instruments a single Acceptor.
type AcceptorMetrics struct {
	PromisesGranted prometheus.Counter
	AcceptsGranted  prometheus.Counter
	CompactedSlots  prometheus.Counter
}

// NewLeaderMetrics registers and returns a LeaderMetrics set for the named
// leader. Callers typically use a role-scoped registry so re-registering a
// leader with the same id under test does not panic.
func NewLeaderMetrics(reg prometheus.Registerer, id string) *LeaderMetrics {
	labels := prometheus.Labels{"leader": id}
	m := &LeaderMetrics{
		BallotRound: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "multifaustus_leader_ballot_round", Help: "Current ballot round.", ConstLabels: labels,
		}),
		Active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "multifaustus_leader_active", Help: "1 if the leader holds a phase-1 quorum.", ConstLabels: labels,
		}),
		ScoutRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "multifaustus_leader_scout_retries_total", Help: "SendScout timer firings.", ConstLabels: labels,
		}),
		Decisions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "multifaustus_leader_decisions_total", Help: "Decisions emitted.", ConstLabels: labels,
		}),
		Preemptions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "multifaustus_leader_preemptions_total", Help: "Times this leader was preempted.", ConstLabels: labels,
		}),
		CurrentTimeout: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "multifaustus_leader_current_timeout_ms", Help: "Current adaptive backoff in milliseconds.", ConstLabels: labels,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.BallotRound, m.Active, m.ScoutRetries, m.Decisions, m.Preemptions, m.CurrentTimeout)
	}
	return m
}

// NewReplicaMetrics registers and returns a ReplicaMetrics set for the
// named replica.
func NewReplicaMetrics(reg prometheus.Registerer, id string) *ReplicaMetrics {
	labels := prometheus.Labels{"replica": id}
	m := &ReplicaMetrics{
		SlotIn: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "multifaustus_replica_slot_in", Help: "Next slot to be proposed.", ConstLabels: labels,
		}),
		SlotOut: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "multifaustus_replica_slot_out", Help: "Next slot awaiting delivery.", ConstLabels: labels,
		}),
		WindowDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "multifaustus_replica_window_depth", Help: "slot_in - slot_out.", ConstLabels: labels,
		}),
		PendingRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "multifaustus_replica_pending_requests", Help: "Requests queued but not yet proposed.", ConstLabels: labels,
		}),
		Reproposals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "multifaustus_replica_reproposals_total", Help: "Pending proposals resent by the ReproposePendingRequests timer, one per slot.", ConstLabels: labels,
		}),
		Reconfigs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "multifaustus_replica_reconfigs_total", Help: "Reconfig commands installed.", ConstLabels: labels,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.SlotIn, m.SlotOut, m.WindowDepth, m.PendingRequests, m.Reproposals, m.Reconfigs)
	}
	return m
}

// NewAcceptorMetrics registers and returns an AcceptorMetrics set for the
// named acceptor.
func NewAcceptorMetrics(reg prometheus.Registerer, id string) *AcceptorMetrics {
	labels := prometheus.Labels{"acceptor": id}
	m := &AcceptorMetrics{
		PromisesGranted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "multifaustus_acceptor_promises_total", Help: "P1b replies sent.", ConstLabels: labels,
		}),
		AcceptsGranted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "multifaustus_acceptor_accepts_total", Help: "P2b replies sent.", ConstLabels: labels,
		}),
		CompactedSlots: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "multifaustus_acceptor_compacted_slots_total", Help: "Slots dropped by the heartbeat compaction pass.", ConstLabels: labels,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.PromisesGranted, m.AcceptsGranted, m.CompactedSlots)
	}
	return m
}
