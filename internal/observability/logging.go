// Package observability adapts commerce operations and RPCs to zap, Prometheus, and OpenTelemetry.
package observability

import (
	"context"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/commerce/pkg/commerce"
)

// ZapOperationLogger writes every commerce operation as a structured log line.
type ZapOperationLogger struct {
	logger *zap.Logger
}

// NewZapOperationLogger wraps logger. A nil logger discards entries.
func NewZapOperationLogger(logger *zap.Logger) *ZapOperationLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapOperationLogger{logger: logger}
}

// LogOperation implements commerce.OperationLogger.
func (operationLogger *ZapOperationLogger) LogOperation(_ context.Context, entry commerce.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
		zap.String("ledger_id", entry.LedgerID.String()),
		zap.String("caller", entry.Caller.String()),
		zap.Int64("quantity", entry.Quantity.Int64()),
		zap.Int64("amount", entry.Amount.Int64()),
	}
	if entry.ProductIndex != nil {
		fields = append(fields, zap.Int64("product_index", entry.ProductIndex.Int64()))
	}
	if entry.Metadata.String() != "{}" {
		fields = append(fields, zap.String("metadata", entry.Metadata.String()))
	}
	if entry.Error != nil {
		operationLogger.logger.Warn("commerce operation failed", append(fields, zap.Error(entry.Error))...)
		return
	}
	operationLogger.logger.Info("commerce operation", fields...)
}
