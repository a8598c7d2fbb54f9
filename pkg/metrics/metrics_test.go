package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveCase(t *testing.T) {
	r := New()
	r.ObserveCase("m", OutcomeValid, 0.8, time.Second)
	r.ObserveCase("m", OutcomeValid, 0.4, time.Second)
	r.ObserveCase("m", OutcomeUndefined, 0, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.cases.WithLabelValues("m", OutcomeValid)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cases.WithLabelValues("m", OutcomeUndefined)))
	assert.Equal(t, 1, testutil.CollectAndCount(r.iou))
}

func TestObserveGenerated(t *testing.T) {
	r := New()
	r.ObserveGenerated("m", "stl")
	r.ObserveGenerated("m", "stl")
	assert.Equal(t, 2.0, testutil.ToFloat64(r.generated.WithLabelValues("m", "stl")))
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.ObserveCase("m", OutcomeValid, 1, time.Millisecond)
	r.MarkRunFinished(time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "textfile", "cadbench.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `cadbench_score_cases_total{model="m",outcome="valid"} 1`)
	assert.Contains(t, string(data), "cadbench_last_run_timestamp_seconds 1.7e+09")
}
