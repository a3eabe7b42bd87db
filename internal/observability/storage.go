package observability

import (
	"context"
	"time"

	"loanapi/internal/models"
	"loanapi/internal/storage"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedStorage wraps a storage.Storage implementation with
// OpenTelemetry tracing and metrics instrumentation.
type InstrumentedStorage struct {
	inner    storage.Storage
	backend  string
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
	created  metric.Int64Counter
}

// NewInstrumentedStorage wraps inner so every call records a span plus the
// storage instruments from inst. backend is the configured storage type,
// attached to every span and measurement.
func NewInstrumentedStorage(inner storage.Storage, backend string, inst *Instruments) *InstrumentedStorage {
	return &InstrumentedStorage{
		inner:    inner,
		backend:  backend,
		tracer:   otel.Tracer("loanapi/storage"),
		duration: inst.StorageDuration,
		errors:   inst.StorageErrors,
		created:  inst.LoansCreated,
	}
}

func (s *InstrumentedStorage) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "storage."+operation,
		trace.WithAttributes(append([]attribute.KeyValue{
			attribute.String("storage.operation", operation),
			attribute.String("storage.backend", s.backend),
		}, attrs...)...),
	)
	return ctx, span
}

func (s *InstrumentedStorage) record(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	elapsed := time.Since(start).Seconds()
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("backend", s.backend),
	)

	s.duration.Record(ctx, elapsed, attrs)

	if err != nil {
		s.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

func (s *InstrumentedStorage) Loans(ctx context.Context) ([]*models.Loan, error) {
	ctx, span := s.startSpan(ctx, "Loans")
	start := time.Now()
	result, err := s.inner.Loans(ctx)
	if err == nil {
		span.SetAttributes(attribute.Int("loans.count", len(result)))
	}
	s.record(ctx, span, "Loans", start, err)
	return result, err
}

func (s *InstrumentedStorage) CreateLoan(ctx context.Context, req *models.CreateLoanRequest) (*models.Loan, error) {
	ctx, span := s.startSpan(ctx, "CreateLoan")
	start := time.Now()
	loan, err := s.inner.CreateLoan(ctx, req)
	if err == nil {
		span.SetAttributes(
			attribute.String("loan.id", loan.ID),
			attribute.String("loan.status", loan.Status),
		)
		s.created.Add(ctx, 1, metric.WithAttributes(attribute.String("status", loan.Status)))
	}
	s.record(ctx, span, "CreateLoan", start, err)
	return loan, err
}

func (s *InstrumentedStorage) Ping(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "Ping")
	start := time.Now()
	err := s.inner.Ping(ctx)
	s.record(ctx, span, "Ping", start, err)
	return err
}

func (s *InstrumentedStorage) Close() error {
	return s.inner.Close()
}
