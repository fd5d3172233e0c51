package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alexanderramin/strata/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestLogUseCaseObserver_WritesSortedFields(t *testing.T) {
	var buf bytes.Buffer
	obs := NewLogUseCaseObserver(&buf)

	obs.ObserveUseCase(context.Background(), UseCaseEvent{
		Name:     "rebase-order",
		Duration: 3 * time.Millisecond,
		Success:  true,
		Fields:   map[string]any{"target": 2, "id": "t-1"},
	})
	line := buf.String()
	assert.Contains(t, line, "use_case=rebase-order")
	assert.Contains(t, line, "success=true")
	assert.Less(t, strings.Index(line, "id=t-1"), strings.Index(line, "target=2"))
}

func TestMetricsUseCaseObserver_CountsResults(t *testing.T) {
	env, ctx := setupEnv(t)
	reg := prometheus.NewRegistry()
	obs := NewMetricsUseCaseObserver(reg)
	a := env.addTask(t, "A", testutil.WithOrder(1))

	svc := NewTaskHierarchyService(env.tasks, env.uow, obs)
	require.NoError(t, svc.Rebase(ctx, a.ID, 3))
	require.Error(t, svc.Rebase(ctx, "missing", 1))

	m := obs.(*metricsUseCaseObserver)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.total.WithLabelValues("rebase-order", "success")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.total.WithLabelValues("rebase-order", "error")))
	assert.Equal(t, 1, promtest.CollectAndCount(m.duration))
}

func TestTraceUseCaseObserver_RecordsSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	obs := NewTraceUseCaseObserver(tp)

	started := time.Now().Add(-time.Second)
	obs.ObserveUseCase(context.Background(), UseCaseEvent{
		Name:      "clone-subtree",
		StartedAt: started,
		Duration:  250 * time.Millisecond,
		Err:       errors.New("boom"),
		Fields:    map[string]any{"root": "t-1"},
	})

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "service.clone-subtree", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.True(t, spans[0].StartTime().Equal(started))
	assert.Equal(t, 250*time.Millisecond, spans[0].EndTime().Sub(spans[0].StartTime()))
}

func TestMultiUseCaseObserver_SkipsNil(t *testing.T) {
	var buf bytes.Buffer
	obs := useCaseObserverOrNoop([]UseCaseObserver{nil, NewLogUseCaseObserver(&buf), NewLogUseCaseObserver(&buf)})

	obs.ObserveUseCase(context.Background(), UseCaseEvent{Name: "x", Success: true})
	assert.Equal(t, 2, strings.Count(buf.String(), "use_case=x"))
	assert.IsType(t, NoopUseCaseObserver{}, useCaseObserverOrNoop(nil))
}
