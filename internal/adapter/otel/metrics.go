package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "licensed"

// Metrics holds the ledger and registry instruments.
type Metrics struct {
	ActivationsGranted  metric.Int64Counter
	ActivationsRejected metric.Int64Counter
	ActivationsReused   metric.Int64Counter
	ActivationsReleased metric.Int64Counter
	Validations         metric.Int64Counter
	LicensesCreated     metric.Int64Counter
	SeatsReconciled     metric.Int64Counter
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.ActivationsGranted, err = meter.Int64Counter("licensed.activations.granted",
		metric.WithDescription("Activations that consumed a new seat"))
	if err != nil {
		return nil, err
	}

	m.ActivationsRejected, err = meter.Int64Counter("licensed.activations.rejected",
		metric.WithDescription("Activations refused, by reason"))
	if err != nil {
		return nil, err
	}

	m.ActivationsReused, err = meter.Int64Counter("licensed.activations.reused",
		metric.WithDescription("Repeated activations answered with the existing record"))
	if err != nil {
		return nil, err
	}

	m.ActivationsReleased, err = meter.Int64Counter("licensed.activations.released",
		metric.WithDescription("Activations deleted and their seat released"))
	if err != nil {
		return nil, err
	}

	m.Validations, err = meter.Int64Counter("licensed.validations",
		metric.WithDescription("License validations, by result"))
	if err != nil {
		return nil, err
	}

	m.LicensesCreated, err = meter.Int64Counter("licensed.licenses.created",
		metric.WithDescription("Licenses issued"))
	if err != nil {
		return nil, err
	}

	m.SeatsReconciled, err = meter.Int64Counter("licensed.seats.reconciled",
		metric.WithDescription("Licenses whose seat counter was repaired"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Reason returns the attribute set for a reason-labelled counter.
func Reason(reason string) metric.AddOption {
	return metric.WithAttributes(attribute.String("reason", reason))
}

// Result returns the attribute set for a result-labelled counter.
func Result(result string) metric.AddOption {
	return metric.WithAttributes(attribute.String("result", result))
}
