package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestForSinkSharesSeries(t *testing.T) {
	a := ForSink("metrics-test")
	b := ForSink("metrics-test")

	a.RecordsLogged.Inc()
	b.RecordsLogged.Add(2)
	assert.Equal(t, 3.0, testutil.ToFloat64(RecordsLogged.WithLabelValues("metrics-test")))

	a.DroppedFull.Inc()
	a.DroppedMalformed.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(RecordsDropped.WithLabelValues("metrics-test", ReasonFull)))
	assert.Equal(t, 0.0, testutil.ToFloat64(RecordsDropped.WithLabelValues("metrics-test", ReasonFailed)))
}

func TestTimerObserves(t *testing.T) {
	m := ForSink("timer-test")
	d := NewTimer().ObserveDuration(m.RowGroupWrite)
	assert.GreaterOrEqual(t, int64(d), int64(0))
	assert.Equal(t, 1, testutil.CollectAndCount(RowGroupWriteSeconds, "pqflow_row_group_write_seconds"))
}
