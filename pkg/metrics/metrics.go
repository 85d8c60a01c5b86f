// Package metrics exposes Prometheus counters for an ISO-TP session
// context (it registers no gauges), grounded on the counter vocabulary used by
// kstaniek-go-ampio-server's internal/metrics package for its CAN
// hubs: per-event counters labeled by a stable, low-cardinality tag
// (there, "where"; here, the context's name) rather than one registered
// metric family per instance.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "isotp_frames_sent_total",
		Help: "Total ISO-TP frames transmitted, by context and frame kind.",
	}, []string{"context", "kind"})

	framesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "isotp_frames_received_total",
		Help: "Total ISO-TP frames consumed, by context and frame kind.",
	}, []string{"context", "kind"})

	fcWaitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "isotp_fc_wait_total",
		Help: "Total FC.WAIT frames received while sending, by context.",
	}, []string{"context"})

	timerExpiredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "isotp_timer_expired_total",
		Help: "Total protocol timer expirations, by context and timer name.",
	}, []string{"context", "timer"})

	transfersAbortedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "isotp_transfers_aborted_total",
		Help: "Total aborted transfers, by context and reason.",
	}, []string{"context", "reason"})

	transfersCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "isotp_transfers_completed_total",
		Help: "Total transfers that reached DONE, by context and direction.",
	}, []string{"context", "direction"})
)

// Recorder records metrics for one named session context. The zero
// value is not usable; construct with NewRecorder. A nil *Recorder is
// safe to call methods on and records nothing, so it can be left unset
// on a Context without a nil check at every call site.
type Recorder struct {
	name string
}

// NewRecorder returns a Recorder that labels every metric it emits with
// name (e.g. "ecu-7-diag"). Reusing the same name across contexts is
// fine; Prometheus aggregates by label value, not by Go identity.
func NewRecorder(name string) *Recorder {
	return &Recorder{name: name}
}

func (r *Recorder) FrameSent(kind string) {
	if r == nil {
		return
	}
	framesSent.WithLabelValues(r.name, kind).Inc()
}

func (r *Recorder) FrameReceived(kind string) {
	if r == nil {
		return
	}
	framesReceived.WithLabelValues(r.name, kind).Inc()
}

func (r *Recorder) FCWait() {
	if r == nil {
		return
	}
	fcWaitTotal.WithLabelValues(r.name).Inc()
}

func (r *Recorder) TimerExpired(timer string) {
	if r == nil {
		return
	}
	timerExpiredTotal.WithLabelValues(r.name, timer).Inc()
}

func (r *Recorder) TransferAborted(reason string) {
	if r == nil {
		return
	}
	transfersAbortedTotal.WithLabelValues(r.name, reason).Inc()
}

func (r *Recorder) TransferCompleted(direction string) {
	if r == nil {
		return
	}
	transfersCompletedTotal.WithLabelValues(r.name, direction).Inc()
}
