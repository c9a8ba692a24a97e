package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/configd/internal/cderrors"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestCollectionObserveInsertAndUpdate(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollection(reg)

	c.ObserveInsert("setA")
	c.ObserveParameterSetsTotal(3)
	c.ObserveUpdate("setA", nil)
	c.ObserveUpdate("setA", cderrors.New(cderrors.KindParameterSetNotFound, ""))

	assert.Equal(t, float64(1), counterValue(t, c.InsertsTotal.WithLabelValues("setA")))
	assert.Equal(t, float64(3), gaugeValue(t, c.ParameterSets))
	assert.Equal(t, float64(1), counterValue(t, c.UpdatesTotal.WithLabelValues("setA")))
	assert.Equal(t, float64(1), counterValue(t, c.UpdateErrors.WithLabelValues("setA", cderrors.KindParameterSetNotFound.String())))
}

func TestNewIPCRegistersDistinctMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewIPC(reg)

	m.RequestsTotal.WithLabelValues("ok").Inc()
	m.DroppedSamples.Inc()
	m.SubscribersGauge.Set(2)

	assert.Equal(t, float64(1), counterValue(t, m.RequestsTotal.WithLabelValues("ok")))
	assert.Equal(t, float64(1), counterValue(t, m.DroppedSamples))
	assert.Equal(t, float64(2), gaugeValue(t, m.SubscribersGauge))
}

func TestNewProviderRegistersDistinctMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewProvider(reg)

	m.CacheHits.WithLabelValues("setA").Inc()
	m.ProxyConnected.Set(1)

	assert.Equal(t, float64(1), counterValue(t, m.CacheHits.WithLabelValues("setA")))
	assert.Equal(t, float64(1), gaugeValue(t, m.ProxyConnected))
}

func TestSameRegistryAcrossConstructorsDoesNotPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	assert.NotPanics(t, func() {
		NewCollection(reg)
		NewIPC(reg)
		NewProvider(reg)
	})
}
