package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

const meterName = "loanapi"

// Instruments are the loan service's metric instruments. Each one is created once
// from the Provider's meter and handed to the component that records it.
type Instruments struct {
	// RateLimitDecisions counts admit and reject decisions, tagged "allowed".
	RateLimitDecisions metric.Int64Counter
	// LoansCreated counts persisted loans, tagged with their status.
	LoansCreated metric.Int64Counter
	// StorageDuration is the latency of every store call in seconds.
	StorageDuration metric.Float64Histogram
	// StorageErrors counts failed store calls.
	StorageErrors metric.Int64Counter
}

// NewInstruments registers the loan service's instruments on mp.
func NewInstruments(mp metric.MeterProvider) (*Instruments, error) {
	meter := mp.Meter(meterName)
	inst := &Instruments{}
	var err error

	if inst.RateLimitDecisions, err = meter.Int64Counter(
		"ratelimit.decisions",
		metric.WithDescription("Number of rate limit decisions"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("ratelimit.decisions: %w", err)
	}

	if inst.LoansCreated, err = meter.Int64Counter(
		"loans.created",
		metric.WithDescription("Number of loans created"),
		metric.WithUnit("{loan}"),
	); err != nil {
		return nil, fmt.Errorf("loans.created: %w", err)
	}

	if inst.StorageDuration, err = meter.Float64Histogram(
		"storage.operation.duration",
		metric.WithDescription("Duration of storage operations in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("storage.operation.duration: %w", err)
	}

	if inst.StorageErrors, err = meter.Int64Counter(
		"storage.operation.errors",
		metric.WithDescription("Number of storage operation errors"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, fmt.Errorf("storage.operation.errors: %w", err)
	}

	return inst, nil
}
