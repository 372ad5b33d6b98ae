package metrics

import (
	"testing"
	"time"

	"gohan/variantstore/models/dtos"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordLoad(t *testing.T) {
	before := testutil.ToFloat64(CounterLoadRecords.WithLabelValues("test", "new"))
	RecordLoad("test", dtos.WriteResult{NewVariants: 3, SkippedVariants: 1})
	assert.Equal(t, before+3, testutil.ToFloat64(CounterLoadRecords.WithLabelValues("test", "new")))
	assert.Equal(t, float64(1), testutil.ToFloat64(CounterLoadRecords.WithLabelValues("test", "skipped")))
}

func TestObserveQuery(t *testing.T) {
	ObserveQuery("test", "count", time.Now())
	assert.Equal(t, float64(1), testutil.ToFloat64(CounterQueries.WithLabelValues("test", "count")))
}
