package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	commercev1 "github.com/MarkoPoloResearchLab/commerce/api/commerce/v1"
	"github.com/MarkoPoloResearchLab/commerce/pkg/commerce"
)

const testMethod = "/commerce.v1.CommerceService/Purchase"

func purchaseEntry(t *testing.T, err error) commerce.OperationLog {
	t.Helper()
	ledgerID, ledgerErr := commerce.NewLedgerID("ledger-1")
	require.NoError(t, ledgerErr)
	caller, callerErr := commerce.NewCallerID("buyer-1")
	require.NoError(t, callerErr)
	index := commerce.ProductIndex(2)
	entry := commerce.OperationLog{
		Operation:    commerce.OperationPurchase,
		LedgerID:     ledgerID,
		Caller:       caller,
		ProductIndex: &index,
		Quantity:     5,
		Amount:       300,
		Status:       commerce.OperationStatusOK,
		Error:        err,
	}
	if err != nil {
		entry.Status = commerce.OperationStatusError
	}
	return entry
}

func TestZapOperationLoggerWritesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	operationLogger := NewZapOperationLogger(zap.New(core))

	operationLogger.LogOperation(context.Background(), purchaseEntry(t, nil))
	operationLogger.LogOperation(context.Background(), purchaseEntry(t, commerce.ErrInsufficientStock))

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	require.Equal(t, zapcore.InfoLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	require.Equal(t, commerce.OperationPurchase, fields["operation"])
	require.Equal(t, "ledger-1", fields["ledger_id"])
	require.Equal(t, int64(2), fields["product_index"])
	require.Equal(t, int64(300), fields["amount"])
	require.Equal(t, zapcore.WarnLevel, entries[1].Level)
	require.Equal(t, commerce.ErrInsufficientStock.Error(), entries[1].ContextMap()["error"])
}

func TestMetricsCountOperationsAndPayments(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewMetrics(registry)
	require.NoError(t, err)

	metrics.LogOperation(context.Background(), purchaseEntry(t, nil))
	metrics.LogOperation(context.Background(), purchaseEntry(t, nil))
	metrics.LogOperation(context.Background(), purchaseEntry(t, commerce.ErrInsufficientPayment))

	require.Equal(t, float64(2), testutil.ToFloat64(metrics.operations.WithLabelValues(commerce.OperationPurchase, commerce.OperationStatusOK)))
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.operations.WithLabelValues(commerce.OperationPurchase, commerce.OperationStatusError)))
	require.Equal(t, float64(600), testutil.ToFloat64(metrics.payments.WithLabelValues(commerce.OperationPurchase)))

	_, err = NewMetrics(registry)
	require.Error(t, err)
	_, err = NewMetrics(nil)
	require.Error(t, err)
}

func TestUnaryServerLoggingRecordsDuration(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	registry := prometheus.NewRegistry()
	metrics, err := NewMetrics(registry)
	require.NoError(t, err)
	interceptor := UnaryServerLogging(zap.New(core), metrics)
	info := &grpc.UnaryServerInfo{FullMethod: testMethod}

	_, err = interceptor(context.Background(), nil, info, func(ctx context.Context, request any) (any, error) {
		return nil, status.Error(codes.FailedPrecondition, "insufficient_stock")
	})
	require.Equal(t, codes.FailedPrecondition, status.Code(err))
	response, err := interceptor(context.Background(), nil, info, func(ctx context.Context, request any) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", response)

	require.Equal(t, 2, logs.Len())
	require.Equal(t, 2, testutil.CollectAndCount(metrics.rpcDuration))
}

type recordingTracer struct {
	noop.Tracer
	spans []string
}

func (tracer *recordingTracer) Start(ctx context.Context, name string, options ...trace.SpanStartOption) (context.Context, trace.Span) {
	tracer.spans = append(tracer.spans, name)
	return tracer.Tracer.Start(ctx, name, options...)
}

func TestUnaryServerTracingStartsSpanPerCall(t *testing.T) {
	tracer := &recordingTracer{}
	interceptor := UnaryServerTracing(tracer)
	info := &grpc.UnaryServerInfo{FullMethod: testMethod}
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(commercev1.CallerMetadataKey, "buyer-1"))
	failure := errors.New("boom")

	_, err := interceptor(ctx, nil, info, func(ctx context.Context, request any) (any, error) {
		return nil, failure
	})
	require.ErrorIs(t, err, failure)
	require.Equal(t, []string{testMethod}, tracer.spans)
	require.Equal(t, "buyer-1", callerFromIncoming(ctx))
	require.Empty(t, callerFromIncoming(context.Background()))
}
