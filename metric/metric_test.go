package metric

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/sunecz/Media-Downloader-Default-Plugins-sub000/errors"
)

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics()

	m.ChannelOpened()
	m.ChannelOpened()
	m.ChannelClosed()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChannelsOpen))

	m.RecordFrame("document_change")
	m.RecordFrame("document_change")
	m.RecordFrame("target_change")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FramesReceived.WithLabelValues("document_change")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesReceived.WithLabelValues("target_change")))

	m.RecordPoll(nil)
	m.RecordPoll(errors.New("reset"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Polls.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Polls.WithLabelValues("error")))

	m.RecordCommand("add_target", 20*time.Millisecond, nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commands.WithLabelValues("add_target", "ok")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.CommandDuration))

	m.TargetAdded()
	m.TargetAdded()
	m.TargetRemoved()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TargetsActive))

	m.RecordDeferredRemoval("queued")
	m.RecordError("transport")
	m.RecordCorrelation(time.Second)
	m.RecordPoolChannels(2, 3)
	m.RecordCacheLookup(true)
	m.RecordCacheLookup(false)
	m.RecordPublished("listen.videos", 4)
	m.RecordNATSStatus(true)
	m.RecordCircuitBreakerState(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeferredRemovals.WithLabelValues("queued")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues("transport")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PoolChannels.WithLabelValues("busy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.DocumentsPublished.WithLabelValues("listen.videos")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NATSConnected))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.NATSCircuitBreaker))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ChannelOpened()
		m.ChannelClosed()
		m.RecordFrame("other")
		m.RecordPoll(nil)
		m.RecordCommand("remove_target", time.Millisecond, nil)
		m.TargetAdded()
		m.TargetRemoved()
		m.RecordDeferredRemoval("sent")
		m.RecordError("framing")
		m.RecordCorrelation(time.Millisecond)
		m.RecordPoolChannels(0, 0)
		m.RecordCacheLookup(true)
		m.RecordPublished("s", 1)
		m.RecordNATSStatus(false)
		m.RecordCircuitBreakerState(true)
	})
}

func TestMetricsRegistry_CoreMetricsRegistered(t *testing.T) {
	registry := NewMetricsRegistry()
	registry.CoreMetrics().ChannelOpened()
	registry.CoreMetrics().RecordFrame("other")

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["listen_channel_open"])
	assert.True(t, names["listen_stream_frames_total"])
	assert.True(t, names["go_goroutines"])
}

func TestMetricsRegistry_Register(t *testing.T) {
	registry := NewMetricsRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "listenctl_runs_total", Help: "runs"})

	require.NoError(t, registry.Register("listenctl", "runs", counter))

	err := registry.Register("listenctl", "runs", counter)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsInvalid(err))

	other := prometheus.NewCounter(prometheus.CounterOpts{Name: "listenctl_runs_total", Help: "runs"})
	err = registry.Register("other", "runs", other)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsInvalid(err))

	assert.True(t, registry.Unregister("listenctl", "runs"))
	assert.False(t, registry.Unregister("listenctl", "runs"))
	require.NoError(t, registry.Register("other", "runs", other))
}

func TestMetricsRegistry_ConcurrentRegister(t *testing.T) {
	registry := NewMetricsRegistry()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g := prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "worker_" + string(rune('a'+i)),
				Help: "worker gauge",
			})
			errs <- registry.Register("worker", string(rune('a'+i)), g)
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestServer_Handler(t *testing.T) {
	registry := NewMetricsRegistry()
	registry.CoreMetrics().RecordFrame("document_change")

	server := NewServer(0, "", registry)
	server.Handle("/custom", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("custom"))
	}))

	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	body := get(t, ts.URL+"/metrics")
	assert.Contains(t, body, `listen_stream_frames_total{kind="document_change"} 1`)
	assert.Equal(t, "OK", get(t, ts.URL+"/health"))
	assert.Equal(t, "custom", get(t, ts.URL+"/custom"))
	assert.Equal(t, "http://localhost:9090/metrics", server.Address())
}

func TestServer_StopWithoutStart(t *testing.T) {
	server := NewServer(0, "", NewMetricsRegistry())
	assert.NoError(t, server.Stop())
}

func get(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return strings.TrimSpace(string(data))
}
