package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink exposes trainer scalars as gauges. Scalar names such as
// "eval/wer" become label values on a single gauge vector, and the latest
// reported step is tracked separately so dashboards can correlate values.
type PrometheusSink struct {
	namespace string
	registry  prometheus.Registerer

	mu      sync.Mutex
	scalars *prometheus.GaugeVec
	step    prometheus.Gauge
}

// NewPrometheusSink registers the trainer gauges with the given registerer.
func NewPrometheusSink(registry prometheus.Registerer, namespace string) (*PrometheusSink, error) {
	if namespace == "" {
		namespace = "asrtune"
	}
	s := &PrometheusSink{
		namespace: namespace,
		registry:  registry,
		scalars: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "training_scalar",
			Help:      "Latest value of a named training scalar.",
		}, []string{"name"}),
		step: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "training_step",
			Help:      "Global optimizer step of the most recent scalar.",
		}),
	}
	if err := registry.Register(s.scalars); err != nil {
		return nil, err
	}
	if err := registry.Register(s.step); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PrometheusSink) Scalar(name string, value float64, step int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scalars.WithLabelValues(sanitizeName(name)).Set(value)
	s.step.Set(float64(step))
}

// sanitizeName maps scalar names like "eval/wer" onto label-safe values.
func sanitizeName(name string) string {
	return strings.NewReplacer("/", "_", " ", "_").Replace(name)
}
