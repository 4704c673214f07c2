package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestStorefrontMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewStorefrontMetrics(reg)
	metrics.IncDocumentWrite("cart")
	metrics.IncDocumentWriteFailure("cart")
	metrics.IncWriteCoalesced()
	metrics.IncOrderSubmitted("success")
	metrics.IncAttachmentUpload("error")
	metrics.ObserveOrderDuration(250 * time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "document_writes", "name", "cart"); err != nil {
		t.Fatalf("fetch writes: %v", err)
	} else if got != 1 {
		t.Fatalf("expected writes=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "document_write_failures", "name", "cart"); err != nil {
		t.Fatalf("fetch failures: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failures=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "orders_submitted", "outcome", "success"); err != nil {
		t.Fatalf("fetch orders: %v", err)
	} else if got != 1 {
		t.Fatalf("expected orders=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "attachments_uploaded", "outcome", "error"); err != nil {
		t.Fatalf("fetch attachments: %v", err)
	} else if got != 1 {
		t.Fatalf("expected attachments=1, got %f", got)
	}

	if mf := findMetricFamily(mfs, "order_submit_duration_seconds"); mf == nil {
		t.Fatal("duration histogram not registered")
	} else if sum := mf.GetMetric()[0].GetHistogram().GetSampleSum(); sum <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", sum)
	}
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var metrics *StorefrontMetrics
	metrics.IncDocumentWrite("cart")
	metrics.IncWriteCoalesced()
	metrics.IncOrderSubmitted("success")
	metrics.ObserveOrderDuration(time.Second)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
