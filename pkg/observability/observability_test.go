package observability

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ajitpratap0/zfits/pkg/errors"
	"github.com/ajitpratap0/zfits/pkg/metrics"
)

func TestTracingExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultTracingConfig()
	cfg.Output = &buf

	shutdown, err := InitTracing(cfg)
	require.NoError(t, err)

	ctx, span := StartSpan(context.Background(), "dump")
	span.SetAttribute("table", "Events")
	span.SetAttribute("rows", 3)
	assert.True(t, span.SpanContext().IsValid())

	_, child := StartSpan(ctx, "decode")
	child.End(errors.New(errors.ErrorTypeUnknownField, "no field"))
	span.End(nil)

	require.NoError(t, shutdown(context.Background()))

	out := buf.String()
	assert.Contains(t, out, `"Name":"dump"`)
	assert.Contains(t, out, `"Name":"decode"`)
	assert.Contains(t, out, "unknown_field")
	assert.Contains(t, out, "Events")

	// A second shutdown is a no-op.
	assert.NoError(t, Shutdown(context.Background()))
}

func TestSpanWithoutInit(t *testing.T) {
	_, span := StartSpan(context.Background(), "noop")
	span.SetAttribute("x", struct{}{})
	span.End(nil)
	assert.False(t, span.SpanContext().IsValid())
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.TraceIDRatioBased(0.25).Description(), sampler(0.25).Description())
}

func TestMetricsServer(t *testing.T) {
	metrics.RowsMerged.Add(0)

	s, err := StartMetricsServer("127.0.0.1:0", zap.NewNop())
	require.NoError(t, err)

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "zfits_rows_merged_total")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, s.Shutdown(ctx))
}

func TestMetricsServerBadAddr(t *testing.T) {
	_, err := StartMetricsServer("not-an-address", zap.NewNop())
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestProgress(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := NewProgress(zap.New(core), "copy")

	clock := p.startTime
	p.now = func() time.Time { return clock }
	p.SetLogInterval(time.Second)

	p.Row(10)
	assert.Equal(t, 0, logs.Len())

	clock = clock.Add(2 * time.Second)
	p.Row(10)
	p.Error()
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "processing progress", logs.All()[0].Message)

	p.Done()
	entries := logs.FilterMessage("processing completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(2), fields["rows"])
	assert.Equal(t, int64(1), fields["errors"])
	assert.Equal(t, int64(20), fields["bytes"])
	assert.Equal(t, "copy", fields["operation"])
	assert.Equal(t, 1.0, fields["rows_per_second"])
	assert.Equal(t, int64(2), p.Rows())
}
