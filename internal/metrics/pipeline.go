package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline holds the order pipeline counters. A Pipeline built with a nil
// registerer, or a nil *Pipeline, records nothing.
type Pipeline struct {
	confirmations   *prometheus.CounterVec
	codesDelivered  *prometheus.CounterVec
	shortfalls      *prometheus.CounterVec
	fulfillFailures *prometheus.CounterVec
	webhookEvents   *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
}

func NewPipeline(reg prometheus.Registerer) *Pipeline {
	if reg == nil {
		return &Pipeline{}
	}
	p := &Pipeline{
		confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_confirmations_total",
			Help: "Payment confirmations by result.",
		}, []string{"result"}),
		codesDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codes_delivered_total",
			Help: "Redemption codes bound to order items.",
		}, []string{"product"}),
		shortfalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fulfillment_shortfalls_total",
			Help: "Order items left short because stock ran out.",
		}, []string{"product"}),
		fulfillFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fulfillment_failures_total",
			Help: "Fulfillment passes or item claims that errored and need a manual re-run.",
		}, []string{"stage"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_webhook_events_total",
			Help: "Provider webhook deliveries by result.",
		}, []string{"provider", "result"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payment_provider_request_seconds",
			Help:    "Latency of payment provider calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider", "operation"}),
	}
	reg.MustRegister(p.confirmations, p.codesDelivered, p.shortfalls, p.fulfillFailures, p.webhookEvents, p.providerLatency)
	return p
}

func (p *Pipeline) Confirmation(result string) {
	if p == nil || p.confirmations == nil {
		return
	}
	p.confirmations.WithLabelValues(normalizeLabel(result)).Inc()
}

func (p *Pipeline) CodesDelivered(productID string, n int) {
	if p == nil || p.codesDelivered == nil || n <= 0 {
		return
	}
	p.codesDelivered.WithLabelValues(normalizeLabel(productID)).Add(float64(n))
}

func (p *Pipeline) Shortfall(productID string) {
	if p == nil || p.shortfalls == nil {
		return
	}
	p.shortfalls.WithLabelValues(normalizeLabel(productID)).Inc()
}

func (p *Pipeline) WebhookEvent(provider, result string) {
	if p == nil || p.webhookEvents == nil {
		return
	}
	p.webhookEvents.WithLabelValues(normalizeLabel(provider), normalizeLabel(result)).Inc()
}

// FulfillmentFailure counts errors by stage: "claim" for a single item,
// "order" for a pass that could not start.
func (p *Pipeline) FulfillmentFailure(stage string) {
	if p == nil || p.fulfillFailures == nil {
		return
	}
	p.fulfillFailures.WithLabelValues(normalizeLabel(stage)).Inc()
}

// ProviderTimer starts a latency timer for one provider call. Stop it with
// ObserveDuration.
func (p *Pipeline) ProviderTimer(provider, operation string) *prometheus.Timer {
	return prometheus.NewTimer(prometheus.ObserverFunc(func(seconds float64) {
		if p == nil || p.providerLatency == nil {
			return
		}
		p.providerLatency.WithLabelValues(normalizeLabel(provider), normalizeLabel(operation)).Observe(seconds)
	}))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
