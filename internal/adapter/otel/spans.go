package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "licensed"

// StartActivateSpan starts a span for a seat activation.
func StartActivateSpan(ctx context.Context, machineID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "ledger.activate",
		trace.WithAttributes(attribute.String("machine.id", machineID)),
	)
}

// StartDeactivateSpan starts a span for an activation removal.
func StartDeactivateSpan(ctx context.Context, activationID int64) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "ledger.deactivate",
		trace.WithAttributes(attribute.Int64("activation.id", activationID)),
	)
}

// StartReconcileSpan starts a span for a seat counter repair.
func StartReconcileSpan(ctx context.Context, licenseID int64) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "ledger.reconcile",
		trace.WithAttributes(attribute.Int64("license.id", licenseID)),
	)
}

// StartValidateSpan starts a span for a read-only license validation.
func StartValidateSpan(ctx context.Context, productID int64) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "license.validate",
		trace.WithAttributes(attribute.Int64("product.id", productID)),
	)
}

// SetLicense tags span with the license it ended up operating on.
func SetLicense(span trace.Span, licenseID int64) {
	span.SetAttributes(attribute.Int64("license.id", licenseID))
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
