package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(apiRequests.WithLabelValues("genres", OutcomeFailure))
	RecordAPIRequest("genres", false)
	assert.Equal(t, before+1, testutil.ToFloat64(apiRequests.WithLabelValues("genres", OutcomeFailure)))
}

func TestRecordRawWrites(t *testing.T) {
	before := testutil.ToFloat64(rawWrites.WithLabelValues("raw_genres", "inserted"))
	RecordRawWrites("raw_genres", 3, 1, 0, 2)
	assert.Equal(t, before+3, testutil.ToFloat64(rawWrites.WithLabelValues("raw_genres", "inserted")))
}

func TestObserveStage(t *testing.T) {
	before := testutil.ToFloat64(stageRuns.WithLabelValues("extract_genres", OutcomeSuccess))
	ObserveStage("extract_genres", time.Second, true)
	assert.Equal(t, before+1, testutil.ToFloat64(stageRuns.WithLabelValues("extract_genres", OutcomeSuccess)))
}

func TestRecordWarehouseRows(t *testing.T) {
	before := testutil.ToFloat64(warehouseRows.WithLabelValues("raw_movies", OutcomeFailure))
	RecordWarehouseRows("raw_movies", 10, 1)
	assert.Equal(t, before+1, testutil.ToFloat64(warehouseRows.WithLabelValues("raw_movies", OutcomeFailure)))
}
