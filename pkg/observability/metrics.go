package observability

import (
	"context"
	"errors"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks total number of RPC requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_rpc_requests_total",
			Help: "Total number of RPC requests",
		},
		[]string{"procedure", "code"},
	)

	// RequestDuration tracks request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "billing_rpc_duration_seconds",
			Help:    "RPC request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"procedure"},
	)

	// ActiveRequests tracks currently active requests
	ActiveRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "billing_rpc_active_requests",
			Help: "Number of active RPC requests",
		},
		[]string{"procedure"},
	)

	// ParseItemsTotal counts line items produced, by source tag and parse strategy
	ParseItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_parse_items_total",
			Help: "Line items produced by the parser",
		},
		[]string{"source", "strategy"},
	)

	// ParseDocumentsTotal counts parsed documents by outcome
	ParseDocumentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_parse_documents_total",
			Help: "Documents submitted to the parser",
		},
		[]string{"outcome"},
	)

	// StripeRequestsTotal counts Stripe API calls
	StripeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_stripe_requests_total",
			Help: "Stripe API calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)
)

// Parse outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeEmpty   = "empty"
	OutcomeError   = "error"
	OutcomeUnknown = "unknown"
)

// RecordParse counts one parsed document.
func RecordParse(source, strategy string, items int, err error) {
	switch {
	case err == nil:
		ParseDocumentsTotal.WithLabelValues(OutcomeOK).Inc()
		ParseItemsTotal.WithLabelValues(source, strategy).Add(float64(items))
	case items == 0:
		ParseDocumentsTotal.WithLabelValues(OutcomeEmpty).Inc()
	default:
		ParseDocumentsTotal.WithLabelValues(OutcomeError).Inc()
	}
}

// RecordStripe counts one Stripe call.
func RecordStripe(operation string, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	StripeRequestsTotal.WithLabelValues(operation, outcome).Inc()
}

// NewMetricsInterceptor creates an interceptor that collects Prometheus metrics
func NewMetricsInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			procedure := req.Spec().Procedure

			ActiveRequests.WithLabelValues(procedure).Inc()
			defer ActiveRequests.WithLabelValues(procedure).Dec()

			start := time.Now()
			defer func() {
				RequestDuration.WithLabelValues(procedure).Observe(time.Since(start).Seconds())
			}()

			resp, err := next(ctx, req)

			code := OutcomeOK
			if err != nil {
				var connectErr *connect.Error
				if errors.As(err, &connectErr) {
					code = connectErr.Code().String()
				} else {
					code = OutcomeUnknown
				}
			}
			RequestsTotal.WithLabelValues(procedure, code).Inc()

			return resp, err
		}
	}
}
