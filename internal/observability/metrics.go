package observability

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MarkoPoloResearchLab/commerce/pkg/commerce"
)

const (
	metricsNamespace = "commerce"
	labelOperation   = "operation"
	labelStatus      = "status"
	labelMethod      = "method"
	labelCode        = "code"
)

// Metrics holds the Prometheus collectors for commerce operations and RPCs.
type Metrics struct {
	operations  *prometheus.CounterVec
	payments    *prometheus.CounterVec
	rpcDuration *prometheus.HistogramVec
}

// NewMetrics registers the commerce collectors on registerer.
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	if registerer == nil {
		return nil, errors.New("observability: registerer is nil")
	}
	metrics := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "operations_total",
			Help:      "Commerce ledger operations by outcome.",
		}, []string{labelOperation, labelStatus}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "payment_amount_total",
			Help:      "Payment amounts forwarded by committed purchases and refunds.",
		}, []string{labelOperation}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "rpc_duration_seconds",
			Help:      "Latency of commerce gRPC calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{labelMethod, labelCode}),
	}
	for _, collector := range []prometheus.Collector{metrics.operations, metrics.payments, metrics.rpcDuration} {
		if err := registerer.Register(collector); err != nil {
			return nil, err
		}
	}
	return metrics, nil
}

// LogOperation implements commerce.OperationLogger by counting outcomes and forwarded payments.
func (metrics *Metrics) LogOperation(_ context.Context, entry commerce.OperationLog) {
	metrics.operations.WithLabelValues(entry.Operation, entry.Status).Inc()
	if entry.Error != nil || entry.Amount <= 0 {
		return
	}
	switch entry.Operation {
	case commerce.OperationPurchase, commerce.OperationProductRefund:
		metrics.payments.WithLabelValues(entry.Operation).Add(float64(entry.Amount.Int64()))
	}
}

// ObserveRPC records the duration of one RPC.
func (metrics *Metrics) ObserveRPC(method string, code string, seconds float64) {
	metrics.rpcDuration.WithLabelValues(method, code).Observe(seconds)
}
