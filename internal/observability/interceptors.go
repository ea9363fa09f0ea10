package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	commercev1 "github.com/MarkoPoloResearchLab/commerce/api/commerce/v1"
)

// UnaryServerLogging logs every unary RPC and, when metrics is non-nil, records its duration.
func UnaryServerLogging(logger *zap.Logger, metrics *Metrics) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, request any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		startedAt := time.Now()
		response, err := handler(ctx, request)
		elapsed := time.Since(startedAt)
		code := status.Code(err)
		if metrics != nil {
			metrics.ObserveRPC(info.FullMethod, code.String(), elapsed.Seconds())
		}
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("duration", elapsed),
		}
		if err != nil {
			logger.Warn("rpc failed", append(fields, zap.Error(err))...)
			return response, err
		}
		logger.Debug("rpc served", fields...)
		return response, nil
	}
}

// UnaryServerTracing opens one span per unary RPC.
func UnaryServerTracing(tracer trace.Tracer) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, request any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		attributes := []attribute.KeyValue{attribute.String("rpc.method", info.FullMethod)}
		if caller := callerFromIncoming(ctx); caller != "" {
			attributes = append(attributes, attribute.String("commerce.caller", caller))
		}
		ctx, span := tracer.Start(ctx, info.FullMethod, trace.WithSpanKind(trace.SpanKindServer), trace.WithAttributes(attributes...))
		defer span.End()
		response, err := handler(ctx, request)
		span.SetAttributes(attribute.String("rpc.grpc.status_code", status.Code(err).String()))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
		}
		return response, err
	}
}

func callerFromIncoming(ctx context.Context) string {
	incoming, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := incoming.Get(commercev1.CallerMetadataKey)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
