// Package metrics holds the prometheus collectors shared by the guard and
// the session cache.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type (
	// Recorder implements the observer hooks used by session.Cache and
	// guard.Guard. The zero value is not usable, use New.
	Recorder struct {
		results *prometheus.CounterVec
		evicted *prometheus.CounterVec
		issued  prometheus.Counter
	}
)

func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "backstage",
			Name:      "auth_results_total",
			Help:      "Authentication decisions by result",
		}, []string{"result"}),
		evicted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "backstage",
			Name:      "sessions_evicted_total",
			Help:      "Session tokens removed from the cache by reason",
		}, []string{"reason"}),
		issued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "backstage",
			Name:      "sessions_issued_total",
			Help:      "Session tokens issued after a successful password check",
		}),
	}
	for _, c := range []prometheus.Collector{r.results, r.evicted, r.issued} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Recorder) Result(name string) {
	r.results.WithLabelValues(name).Inc()
}

func (r *Recorder) Issued() {
	r.issued.Inc()
}

func (r *Recorder) Evicted(reason string, n int) {
	if n <= 0 {
		return
	}
	r.evicted.WithLabelValues(reason).Add(float64(n))
}
