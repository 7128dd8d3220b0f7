package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Stats is a JSON-friendly view of the pipeline counters.
type Stats struct {
	Received map[string]float64 `json:"received"`
	Dropped  map[string]float64 `json:"dropped"`
	Jobs     map[string]float64 `json:"jobs"`
	InFlight float64            `json:"in_flight"`
}

// Snapshot sums the pipeline counters in g: received by topic, dropped by
// reason, jobs by state.
func Snapshot(g prometheus.Gatherer) (Stats, error) {
	families, err := g.Gather()
	if err != nil {
		return Stats{}, fmt.Errorf("gather metrics: %w", err)
	}

	s := Stats{
		Received: map[string]float64{},
		Dropped:  map[string]float64{},
		Jobs:     map[string]float64{},
	}
	for _, mf := range families {
		switch mf.GetName() {
		case "updatesvc_events_received_total":
			sumBy(mf, "topic", s.Received)
		case "updatesvc_events_dropped_total":
			sumBy(mf, "reason", s.Dropped)
		case "updatesvc_jobs_total":
			sumBy(mf, "state", s.Jobs)
		case "updatesvc_messages_in_flight":
			for _, m := range mf.GetMetric() {
				s.InFlight += m.GetGauge().GetValue()
			}
		}
	}
	return s, nil
}

func sumBy(mf *dto.MetricFamily, label string, into map[string]float64) {
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label {
				into[lp.GetValue()] += m.GetCounter().GetValue()
			}
		}
	}
}
