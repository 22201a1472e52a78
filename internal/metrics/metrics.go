// Package metrics exports cache activity as Prometheus metrics.
//
// A Recorder is a cache.Observer: subscribe it to one or more sessions and
// it counts every delivered event by kind, EntityChanged events by action
// and state, and validation errors as they are added and removed.
// Resident and pending-change gauges are read from a session on scrape.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/graphcache/internal/cache"
)

const namespace = "graphcache"

// Recorder counts cache events.
type Recorder struct {
	events     *prometheus.CounterVec
	actions    *prometheus.CounterVec
	validation *prometheus.CounterVec
	members    *prometheus.CounterVec
}

// NewRecorder creates a Recorder and registers its collectors with reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Events delivered to observers, by kind.",
		}, []string{"kind"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entity_actions_total",
			Help:      "EntityChanged events, by action and resulting state.",
		}, []string{"action", "state"}),
		validation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_errors_total",
			Help:      "Validation errors added to or removed from entities.",
		}, []string{"change"}),
		members: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relationship_members_total",
			Help:      "Collection members added or removed by relationship events.",
		}, []string{"change"}),
	}
	for _, c := range []prometheus.Collector{r.events, r.actions, r.validation, r.members} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Observe implements cache.Observer.
func (r *Recorder) Observe(ev cache.Event) {
	r.events.WithLabelValues(ev.Kind().String()).Inc()
	switch e := ev.(type) {
	case cache.EntityChanged:
		r.actions.WithLabelValues(e.Action.String(), e.State.String()).Inc()
	case cache.ValidationErrorsChanged:
		r.validation.WithLabelValues("added").Add(float64(len(e.Added)))
		r.validation.WithLabelValues("removed").Add(float64(len(e.Removed)))
	case cache.RelationshipChanged:
		r.members.WithLabelValues("added").Add(float64(len(e.Added)))
		r.members.WithLabelValues("removed").Add(float64(len(e.Removed)))
	}
}

// Instrument subscribes r to s. The returned function unsubscribes.
func (r *Recorder) Instrument(s *cache.Session) func() {
	return s.Subscribe(r)
}

// RegisterSessionGauges registers gauges that read the resident and
// pending-change counts of s on every scrape. name labels the session.
func RegisterSessionGauges(reg prometheus.Registerer, name string, s *cache.Session) error {
	labels := prometheus.Labels{"session": name}
	resident := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "resident_entities",
		Help:        "Entities currently resident in the session.",
		ConstLabels: labels,
	}, func() float64 { return float64(s.Len()) })
	pending := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "pending_changes",
		Help:        "Resident entities in the Added, Modified or Deleted state.",
		ConstLabels: labels,
	}, func() float64 { return float64(len(s.Changes())) })
	unresolved := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "unresolved_references",
		Help:        "Entities waiting on an unresolved principal.",
		ConstLabels: labels,
	}, func() float64 { return float64(s.Unresolved().Len()) })
	for _, c := range []prometheus.Collector{resident, pending, unresolved} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
