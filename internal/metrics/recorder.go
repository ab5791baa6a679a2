package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder exports tree build and query figures to Prometheus.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	BuildsTotal   *prometheus.CounterVec
	BuildDuration *prometheus.HistogramVec
	TreeNodes     prometheus.Gauge
	TreeBuckets   prometheus.Gauge
	TreeDepth     prometheus.Gauge
	Bodies        prometheus.Gauge

	Interactions  *prometheus.CounterVec
	QueryDuration prometheus.Histogram

	StepsTotal   prometheus.Counter
	StepDuration prometheus.Histogram
	TotalEnergy  prometheus.Gauge
	EnergyDrift  prometheus.Gauge
}

// NewRecorder registers the collectors on reg. A nil reg leaves them
// unregistered, which is what tests want.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		BuildsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gravtree_builds_total",
				Help: "Total number of tree builds",
			},
			[]string{"status"}, // status: success, failed
		),
		BuildDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gravtree_build_duration_seconds",
				Help:    "Duration of tree builds in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"status"},
		),
		TreeNodes: f.NewGauge(prometheus.GaugeOpts{
			Name: "gravtree_tree_nodes",
			Help: "Aggregate nodes in the current tree",
		}),
		TreeBuckets: f.NewGauge(prometheus.GaugeOpts{
			Name: "gravtree_tree_buckets",
			Help: "Multi-body leaf buckets in the current tree",
		}),
		TreeDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "gravtree_tree_depth",
			Help: "Maximum depth of the current tree",
		}),
		Bodies: f.NewGauge(prometheus.GaugeOpts{
			Name: "gravtree_bodies",
			Help: "Bodies in the current tree",
		}),
		Interactions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gravtree_interactions_total",
				Help: "Gravity contributions applied during force queries",
			},
			[]string{"kind"}, // kind: direct, approx
		),
		QueryDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gravtree_query_duration_seconds",
			Help:    "Duration of a full force query pass in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		StepsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "gravtree_sim_steps_total",
			Help: "Integration steps taken",
		}),
		StepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gravtree_sim_step_duration_seconds",
			Help:    "Duration of one integration step in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		TotalEnergy: f.NewGauge(prometheus.GaugeOpts{
			Name: "gravtree_sim_total_energy",
			Help: "Total energy at the latest snapshot",
		}),
		EnergyDrift: f.NewGauge(prometheus.GaugeOpts{
			Name: "gravtree_sim_energy_drift",
			Help: "Relative energy drift since the first snapshot",
		}),
	}
}

func status(err error) string {
	if err != nil {
		return "failed"
	}
	return "success"
}

func (r *Recorder) ObserveBuild(d time.Duration, err error) {
	if r == nil {
		return
	}
	s := status(err)
	r.BuildsTotal.WithLabelValues(s).Inc()
	r.BuildDuration.WithLabelValues(s).Observe(d.Seconds())
}

func (r *Recorder) SetTree(bodies, nodes, buckets, depth int) {
	if r == nil {
		return
	}
	r.Bodies.Set(float64(bodies))
	r.TreeNodes.Set(float64(nodes))
	r.TreeBuckets.Set(float64(buckets))
	r.TreeDepth.Set(float64(depth))
}

func (r *Recorder) ObserveQuery(d time.Duration, direct, approx int) {
	if r == nil {
		return
	}
	r.QueryDuration.Observe(d.Seconds())
	r.Interactions.WithLabelValues("direct").Add(float64(direct))
	r.Interactions.WithLabelValues("approx").Add(float64(approx))
}

func (r *Recorder) ObserveStep(d time.Duration) {
	if r == nil {
		return
	}
	r.StepsTotal.Inc()
	r.StepDuration.Observe(d.Seconds())
}

func (r *Recorder) SetEnergy(total, drift float64) {
	if r == nil {
		return
	}
	r.TotalEnergy.Set(total)
	r.EnergyDrift.Set(drift)
}
