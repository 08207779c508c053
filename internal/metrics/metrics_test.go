package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollector(t *testing.T) {
	c := NewCollector("test")
	require.NotNil(t, c)
	assert.NotNil(t, c.Registry())
}

func TestCollector_FetchAndCache(t *testing.T) {
	c := NewCollector("test")

	c.RecordFetch(true)
	c.RecordFetch(true)
	c.RecordFetch(false)
	c.RecordCacheRequest(TierMemory, true)
	c.RecordCacheRequest(TierPersistent, false)
	c.RecordEvictions(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.fetchTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.fetchTotal.WithLabelValues("fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheRequests.WithLabelValues(TierMemory, "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheRequests.WithLabelValues(TierPersistent, "miss")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.cacheEvictions))
}

func TestCollector_Loads(t *testing.T) {
	c := NewCollector("test")

	c.RecordProgress(40)
	c.RecordLoad(2*time.Second, OutcomeLoaded)
	c.RecordLoad(0, OutcomeAborted)

	assert.Equal(t, 40.0, testutil.ToFloat64(c.loadProgress))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.loadsTotal.WithLabelValues(OutcomeLoaded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.loadsTotal.WithLabelValues(OutcomeAborted)))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("")
	c.RecordFetch(true)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `ramadan_fetch_total{result="success"} 1`))
}

func TestNoOpCollector(t *testing.T) {
	var r Recorder = NewNoOpCollector()

	// Should not panic
	r.RecordFetch(true)
	r.RecordCacheRequest(TierMemory, false)
	r.RecordEvictions(1)
	r.RecordLoad(time.Second, OutcomeFailed)
	r.RecordProgress(100)
}
