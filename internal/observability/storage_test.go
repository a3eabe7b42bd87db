package observability

import (
	"context"
	"errors"
	"testing"

	"loanapi/internal/models"
	"loanapi/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// installTestProviders routes spans into a recorder and builds the service
// instruments on a manual reader.
func installTestProviders(t *testing.T) (*tracetest.SpanRecorder, *sdkmetric.ManualReader, *Instruments) {
	t.Helper()

	prevTracer := otel.GetTracerProvider()
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	otel.SetTracerProvider(tp)

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	inst, err := NewInstruments(mp)
	require.NoError(t, err)

	t.Cleanup(func() {
		otel.SetTracerProvider(prevTracer)
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})
	return spans, reader, inst
}

func setupMemoryStorage(t *testing.T) storage.Storage {
	t.Helper()
	s, err := storage.NewMemoryStorage(storage.Config{Type: "memory"})
	require.NoError(t, err)
	return s
}

func floatPtr(f float64) *float64 { return &f }

func validRequest() *models.CreateLoanRequest {
	return &models.CreateLoanRequest{
		Name:         "Home Loan",
		Amount:       floatPtr(250000),
		Borrower:     "John Doe",
		InterestRate: floatPtr(4.5),
	}
}

func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestNewInstrumentedStorage(t *testing.T) {
	_, _, inst := installTestProviders(t)

	instrumented := NewInstrumentedStorage(setupMemoryStorage(t), models.StorageTypeMemory, inst)
	assert.NotNil(t, instrumented)
	assert.Equal(t, models.StorageTypeMemory, instrumented.backend)
}

func TestInstrumentedStorage_Ping(t *testing.T) {
	spans, _, inst := installTestProviders(t)

	instrumented := NewInstrumentedStorage(setupMemoryStorage(t), models.StorageTypeMemory, inst)

	assert.NoError(t, instrumented.Ping(context.Background()))

	ended := spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "storage.Ping", ended[0].Name())
	assert.Equal(t, codes.Ok, ended[0].Status().Code)
}

func TestInstrumentedStorage_LoanOperations(t *testing.T) {
	spans, reader, inst := installTestProviders(t)
	ctx := context.Background()

	instrumented := NewInstrumentedStorage(setupMemoryStorage(t), models.StorageTypeMemory, inst)

	loan, err := instrumented.CreateLoan(ctx, validRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, loan.ID)
	assert.Equal(t, models.LoanStatusPending, loan.Status)

	loans, err := instrumented.Loans(ctx)
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, loan.ID, loans[0].ID)

	ended := spans.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "storage.CreateLoan", ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), attribute.String("loan.id", loan.ID))
	assert.Contains(t, ended[0].Attributes(), attribute.String("storage.backend", "memory"))
	assert.Equal(t, "storage.Loans", ended[1].Name())
	assert.Contains(t, ended[1].Attributes(), attribute.Int("loans.count", 1))

	assert.Equal(t, int64(1), counterValue(t, reader, "loans.created"))
	assert.Equal(t, int64(0), counterValue(t, reader, "storage.operation.errors"))
}

func TestInstrumentedStorage_ErrorRecording(t *testing.T) {
	spans, reader, inst := installTestProviders(t)
	ctx := context.Background()

	instrumented := NewInstrumentedStorage(setupMemoryStorage(t), models.StorageTypeMemory, inst)

	_, err := instrumented.CreateLoan(ctx, &models.CreateLoanRequest{Name: "Home Loan"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrValidation))

	ended := spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)

	assert.Equal(t, int64(1), counterValue(t, reader, "storage.operation.errors"))
	assert.Equal(t, int64(0), counterValue(t, reader, "loans.created"))
}

func TestInstrumentedStorage_UnavailableStore(t *testing.T) {
	_, _, inst := installTestProviders(t)

	instrumented := NewInstrumentedStorage(storage.NewUnavailableStorage(errors.New("no reachable servers")), models.StorageTypeMongo, inst)

	_, err := instrumented.Loans(context.Background())
	assert.ErrorIs(t, err, storage.ErrUnavailable)
	assert.ErrorIs(t, instrumented.Ping(context.Background()), storage.ErrUnavailable)
}

func TestInstrumentedStorage_Close(t *testing.T) {
	_, _, inst := installTestProviders(t)

	instrumented := NewInstrumentedStorage(setupMemoryStorage(t), models.StorageTypeMemory, inst)
	assert.NoError(t, instrumented.Close())
}

func TestInstrumentedStorage_ImplementsInterface(t *testing.T) {
	var _ storage.Storage = (*InstrumentedStorage)(nil)
}
