package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StorefrontMetrics records cart persistence and order submission activity.
type StorefrontMetrics struct {
	docWrites     *prometheus.CounterVec
	docFailures   *prometheus.CounterVec
	docCoalesced  prometheus.Counter
	orders        *prometheus.CounterVec
	attachments   *prometheus.CounterVec
	orderDuration prometheus.Histogram
}

// NewStorefrontMetrics registers the storefront metrics on the provided registerer.
func NewStorefrontMetrics(reg prometheus.Registerer) *StorefrontMetrics {
	if reg == nil {
		return &StorefrontMetrics{}
	}
	docWrites := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "document_writes",
		Help: "Physical document store writes.",
	}, []string{"name"})
	docFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "document_write_failures",
		Help: "Failed document store writes.",
	}, []string{"name"})
	docCoalesced := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "document_writes_coalesced",
		Help: "Writes absorbed by the debounce window before flushing.",
	})
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_submitted",
		Help: "Order submissions by outcome.",
	}, []string{"outcome"})
	attachments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attachments_uploaded",
		Help: "Attachment uploads by outcome.",
	}, []string{"outcome"})
	orderDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_submit_duration_seconds",
		Help:    "Duration of order submissions in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(docWrites, docFailures, docCoalesced, orders, attachments, orderDuration)
	return &StorefrontMetrics{
		docWrites:     docWrites,
		docFailures:   docFailures,
		docCoalesced:  docCoalesced,
		orders:        orders,
		attachments:   attachments,
		orderDuration: orderDuration,
	}
}

// IncDocumentWrite counts one physical write of the named document.
func (m *StorefrontMetrics) IncDocumentWrite(name string) {
	if m == nil || m.docWrites == nil {
		return
	}
	m.docWrites.WithLabelValues(normalizeLabel(name)).Inc()
}

// IncDocumentWriteFailure counts one failed write of the named document.
func (m *StorefrontMetrics) IncDocumentWriteFailure(name string) {
	if m == nil || m.docFailures == nil {
		return
	}
	m.docFailures.WithLabelValues(normalizeLabel(name)).Inc()
}

// IncWriteCoalesced counts a write that was superseded inside the debounce window.
func (m *StorefrontMetrics) IncWriteCoalesced() {
	if m == nil || m.docCoalesced == nil {
		return
	}
	m.docCoalesced.Inc()
}

// IncOrderSubmitted counts an order submission with the given outcome.
func (m *StorefrontMetrics) IncOrderSubmitted(outcome string) {
	if m == nil || m.orders == nil {
		return
	}
	m.orders.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncAttachmentUpload counts an attachment upload with the given outcome.
func (m *StorefrontMetrics) IncAttachmentUpload(outcome string) {
	if m == nil || m.attachments == nil {
		return
	}
	m.attachments.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveOrderDuration records how long one order submission took.
func (m *StorefrontMetrics) ObserveOrderDuration(duration time.Duration) {
	if m == nil || m.orderDuration == nil {
		return
	}
	m.orderDuration.Observe(duration.Seconds())
}

func normalizeLabel(label string) string {
	if label == "" {
		return "unknown"
	}
	return label
}
