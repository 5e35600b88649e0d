package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordPrediction(t *testing.T) {
	before := testutil.ToFloat64(PredictionsTotal.WithLabelValues("rice", "blast"))
	RecordPrediction("rice", "blast")
	assert.Equal(t, before+1, testutil.ToFloat64(PredictionsTotal.WithLabelValues("rice", "blast")))
}

func TestHealthStatus(t *testing.T) {
	SetHealthy()
	assert.Equal(t, 1.0, testutil.ToFloat64(HealthStatus))
	SetUnhealthy()
	assert.Equal(t, 0.0, testutil.ToFloat64(HealthStatus))
}

func TestSetModelsLoaded(t *testing.T) {
	SetModelsLoaded(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(ModelsLoaded))
}
