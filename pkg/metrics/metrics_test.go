package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestObserveVerifyIncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New()
	r.MustRegister(reg)

	r.ObserveVerify("checked", "attested-ok", 0.02)

	metricFamilies, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if !hasCounterValue(t, metricFamilies, "ochrance_verify_cycles_total", 1) {
		t.Fatal("expected ochrance_verify_cycles_total to have been incremented")
	}
}

func TestObserveRepairAccumulatesBlocksRestored(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New()
	r.MustRegister(reg)

	r.ObserveRepair("repaired", 3)
	r.ObserveRepair("repaired", 2)

	metricFamilies, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if !hasCounterValue(t, metricFamilies, "ochrance_repair_blocks_restored_total", 5) {
		t.Fatal("expected blocks_restored_total to equal 5 after two observations")
	}
}

func hasCounterValue(t *testing.T, families []*dto.MetricFamily, name string, want float64) bool {
	t.Helper()
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			if m.GetCounter().GetValue() == want {
				return true
			}
		}
	}
	return false
}
