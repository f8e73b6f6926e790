package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

type captureSink struct {
	names  []string
	values []float64
	steps  []int
}

func (c *captureSink) Scalar(name string, value float64, step int) {
	c.names = append(c.names, name)
	c.values = append(c.values, value)
	c.steps = append(c.steps, step)
}

func TestMultiSinkFansOut(t *testing.T) {
	a := &captureSink{}
	b := &captureSink{}
	m := MultiSink{a, b, Discard{}}

	m.Scalar("train/loss", 1.25, 7)

	for i, c := range []*captureSink{a, b} {
		if len(c.names) != 1 || c.names[0] != "train/loss" || c.values[0] != 1.25 || c.steps[0] != 7 {
			t.Errorf("sink %d did not receive the scalar: %+v", i, c)
		}
	}
}

func TestPrometheusSink(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := NewPrometheusSink(reg, "asrtune_test")
	if err != nil {
		t.Fatalf("NewPrometheusSink: %v", err)
	}

	s.Scalar("eval/wer", 0.31, 400)
	s.Scalar("eval/wer", 0.29, 800)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	var scalar *dto.MetricFamily
	for _, mf := range families {
		if mf.GetName() == "asrtune_test_training_scalar" {
			scalar = mf
		}
	}
	if scalar == nil {
		t.Fatalf("training_scalar family not registered; got %v", families)
	}

	if len(scalar.Metric) != 1 {
		t.Fatalf("expected one labeled gauge, got %d", len(scalar.Metric))
	}
	m := scalar.Metric[0]
	if got := m.GetLabel()[0].GetValue(); got != "eval_wer" {
		t.Errorf("expected sanitized label eval_wer, got %q", got)
	}
	if got := m.GetGauge().GetValue(); got != 0.29 {
		t.Errorf("expected latest value 0.29, got %g", got)
	}
}
