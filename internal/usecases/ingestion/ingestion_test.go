package ingestion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hilthontt/cheahlytics/internal/domain"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/logging"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/metrics"
	"github.com/hilthontt/cheahlytics/internal/persistence/dbtest"
	"github.com/hilthontt/cheahlytics/internal/persistence/repository"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"gorm.io/gorm"
)

type memoryAudit struct {
	mu   sync.Mutex
	logs []domain.IngestionAuditLog
	err  error
}

func (m *memoryAudit) Log(_ context.Context, log *domain.IngestionAuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, *log)
	return m.err
}

func (m *memoryAudit) GetByApplicationID(context.Context, int64, int) ([]domain.IngestionAuditLog, error) {
	return nil, nil
}

func (m *memoryAudit) GetByOutcome(context.Context, int64, domain.IngestionOutcome, time.Time, time.Time) ([]domain.IngestionAuditLog, error) {
	return nil, nil
}

func (m *memoryAudit) DeleteOlderThan(context.Context, time.Time) error { return nil }
func (m *memoryAudit) EnsureIndexes(context.Context) error              { return nil }

func (m *memoryAudit) outcomes() []domain.IngestionOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.IngestionOutcome, 0, len(m.logs))
	for _, l := range m.logs {
		out = append(out, l.Outcome)
	}
	return out
}

type recordingNotifier struct {
	name   string
	err    error
	events []*domain.Event
}

func (n *recordingNotifier) Notify(_ context.Context, event *domain.Event) error {
	n.events = append(n.events, event)
	return n.err
}

func (n *recordingNotifier) Name() string { return n.name }

type harness struct {
	db       *gorm.DB
	uc       IngestionUseCase
	events   domain.EventRepository
	audit    *memoryAudit
	notifier *recordingNotifier
	metrics  *metrics.Metrics
}

func newHarness(t *testing.T, notifierErr error) harness {
	t.Helper()

	gdb := dbtest.New(t)
	events := repository.NewEventRepository(gdb)
	h := harness{
		db:       gdb,
		events:   events,
		audit:    &memoryAudit{},
		notifier: &recordingNotifier{name: "test", err: notifierErr},
		metrics:  metrics.New(),
	}
	h.uc = NewIngestionUseCase(
		repository.NewApplicationRepository(gdb),
		events,
		logging.NewNop(),
		WithNotifiers(h.notifier),
		WithAuditLog(h.audit),
		WithMetrics(h.metrics),
	)
	return h
}

// seedApplication stores an application with a fixed id and code.
func (h harness) seedApplication(t *testing.T, id int64, code int) *domain.Application {
	t.Helper()

	owner, err := domain.NewUser("owner@example.com", "password")
	require.NoError(t, err)
	require.NoError(t, h.db.Create(owner).Error)

	app := &domain.Application{ID: id, Name: "Blog", URL: "blog.example.com", Code: code, UserID: owner.ID}
	require.NoError(t, h.db.Create(app).Error)
	return app
}

func (h harness) eventCount(t *testing.T) int64 {
	t.Helper()

	var n int64
	require.NoError(t, h.db.Model(&domain.Event{}).Count(&n).Error)
	return n
}

func (h harness) outcomeCount(outcome domain.IngestionOutcome) float64 {
	return testutil.ToFloat64(h.metrics.EventsIngested.WithLabelValues(string(outcome)))
}

func TestRecord_CreatesEvent(t *testing.T) {
	h := newHarness(t, nil)
	h.seedApplication(t, 7, 4242)

	event, err := h.uc.Record(context.Background(), "Pageview", "7-4242")
	require.NoError(t, err)

	assert.NotZero(t, event.ID)
	assert.Equal(t, "Pageview", event.Name)
	assert.EqualValues(t, 7, event.ApplicationID)
	assert.EqualValues(t, 1, h.eventCount(t))

	stored, err := h.events.ListByApplication(context.Background(), 7, 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "Pageview", stored[0].Name)

	require.Len(t, h.notifier.events, 1)
	assert.Equal(t, event.ID, h.notifier.events[0].ID)
	assert.Equal(t, []domain.IngestionOutcome{domain.OutcomeRecorded}, h.audit.outcomes())
	assert.Equal(t, 1.0, h.outcomeCount(domain.OutcomeRecorded))
}

func TestRecord_Failures(t *testing.T) {
	tests := []struct {
		name         string
		eventName    string
		trackingCode string
		wantErr      error
		outcome      domain.IngestionOutcome
	}{
		{"code mismatch", "Pageview", "7-9999", domain.ErrTrackingCodeMismatch, domain.OutcomeMismatch},
		{"unknown application", "Pageview", "8-4242", domain.ErrApplicationNotFound, domain.OutcomeUnregistered},
		{"no separator", "Pageview", "74242", domain.ErrMalformedTrackingCode, domain.OutcomeMalformed},
		{"empty code", "Pageview", "", domain.ErrMalformedTrackingCode, domain.OutcomeMalformed},
		{"separator first", "Pageview", "-4242", domain.ErrMalformedTrackingCode, domain.OutcomeMalformed},
		{"non numeric id", "Pageview", "abc-4242", domain.ErrMalformedTrackingCode, domain.OutcomeMalformed},
		{"missing name", "", "7-4242", domain.ErrValidationFailed, domain.OutcomeInvalid},
		{"trailing space", "Pageview", "7-4242 ", domain.ErrTrackingCodeMismatch, domain.OutcomeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.seedApplication(t, 7, 4242)

			event, err := h.uc.Record(context.Background(), tt.eventName, tt.trackingCode)
			assert.Nil(t, event)
			assert.ErrorIs(t, err, tt.wantErr)

			assert.Zero(t, h.eventCount(t))
			assert.Empty(t, h.notifier.events)
			assert.Equal(t, []domain.IngestionOutcome{tt.outcome}, h.audit.outcomes())
			assert.Equal(t, 1.0, h.outcomeCount(tt.outcome))
		})
	}
}

func TestRecord_InvalidEventCarriesFieldErrors(t *testing.T) {
	h := newHarness(t, nil)
	h.seedApplication(t, 7, 4242)

	_, err := h.uc.Record(context.Background(), "", "7-4242")

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "name")
}

func TestRecord_NotifierFailureDoesNotFailRecording(t *testing.T) {
	h := newHarness(t, errors.New("broker unavailable"))
	h.seedApplication(t, 7, 4242)

	event, err := h.uc.Record(context.Background(), "Ad Click", "7-4242")
	require.NoError(t, err)
	assert.NotNil(t, event)
	assert.EqualValues(t, 1, h.eventCount(t))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.NotifierFailures.WithLabelValues("test")))
}

func TestRecord_AuditFailureDoesNotFailRecording(t *testing.T) {
	h := newHarness(t, nil)
	h.audit.err = errors.New("mongo down")
	h.seedApplication(t, 7, 4242)

	_, err := h.uc.Record(context.Background(), "Pageview", "7-4242")
	require.NoError(t, err)
	assert.EqualValues(t, 1, h.eventCount(t))
}

func TestRecord_WithoutOptionalCollaborators(t *testing.T) {
	gdb := dbtest.New(t)
	uc := NewIngestionUseCase(
		repository.NewApplicationRepository(gdb),
		repository.NewEventRepository(gdb),
		logging.NewNop(),
	)

	_, err := uc.Record(context.Background(), "Pageview", "1-1")
	assert.ErrorIs(t, err, domain.ErrApplicationNotFound)
}

func TestRecord_ConcurrentSubmissionsAreIndependent(t *testing.T) {
	gdb := dbtest.New(t)
	uc := NewIngestionUseCase(
		repository.NewApplicationRepository(gdb),
		repository.NewEventRepository(gdb),
		logging.NewNop(),
	)
	h := harness{db: gdb}
	h.seedApplication(t, 3, 17)

	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			_, err := uc.Record(context.Background(), "Pageview", "3-17")
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	assert.EqualValues(t, 10, h.eventCount(t))
}

func TestRecord_SpanCarriesOutcome(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	h := newHarness(t, nil)
	h.seedApplication(t, 7, 4242)

	_, err := h.uc.Record(context.Background(), "Pageview", "7-4242")
	require.NoError(t, err)
	_, err = h.uc.Record(context.Background(), "Pageview", "7-1")
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	for i, want := range []domain.IngestionOutcome{domain.OutcomeRecorded, domain.OutcomeMismatch} {
		assert.Equal(t, "ingestion.Record", spans[i].Name())
		assert.Contains(t, spans[i].Attributes(), attribute.String("ingestion.outcome", string(want)))
		assert.Contains(t, spans[i].Attributes(), attribute.String("event.name", "Pageview"))
	}
}
