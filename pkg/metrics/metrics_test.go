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

func TestObserveOperation(t *testing.T) {
	m := NewOperations()
	m.ObserveOperation("upgrade", "failed", 3*time.Second)
	m.ObserveOperation("upgrade", "success", 40*time.Second)
	m.ObserveOperation("upgrade", "success", 50*time.Second)
	m.ObserveFetchAttempt(false)
	m.ObserveAutoRollback(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("upgrade", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("upgrade", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetchAttempts.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.autoRollbacks.WithLabelValues("success")))
}

func TestWriteTextfile(t *testing.T) {
	m := NewOperations()
	m.ObserveOperation("deploy", "success", time.Second)

	path := filepath.Join(t.TempDir(), "ops_agent.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `ops_agent_operations_total{action="deploy",status="success"} 1`)
}

func TestRestoreCarriesCountersAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ops_agent.prom")

	first := NewOperations()
	require.NoError(t, first.Restore(path))
	first.ObserveOperation("deploy", "success", 10*time.Second)
	first.ObserveFetchAttempt(true)
	require.NoError(t, first.WriteTextfile(path))

	second := NewOperations()
	require.NoError(t, second.Restore(path))
	second.ObserveOperation("deploy", "success", 20*time.Second)
	second.ObserveOperation("upgrade", "failed", 5*time.Second)
	require.NoError(t, second.WriteTextfile(path))

	assert.Equal(t, 2.0, testutil.ToFloat64(second.operations.WithLabelValues("deploy", "success")))
	assert.Equal(t, 30.0, testutil.ToFloat64(second.durationSum.WithLabelValues("deploy")))
	assert.Equal(t, 20.0, testutil.ToFloat64(second.lastDuration.WithLabelValues("deploy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(second.fetchAttempts.WithLabelValues("success")))

	third := NewOperations()
	require.NoError(t, third.Restore(path))
	assert.Equal(t, 2.0, testutil.ToFloat64(third.operations.WithLabelValues("deploy", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(third.operations.WithLabelValues("upgrade", "failed")))
}

func TestRestoreRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ops_agent.prom")
	require.NoError(t, os.WriteFile(path, []byte("not { a metric\n"), 0o644))
	assert.Error(t, NewOperations().Restore(path))
}

func TestNilOperationsIsNoop(t *testing.T) {
	var m *Operations
	m.ObserveOperation("deploy", "success", time.Second)
	m.ObserveFetchAttempt(true)
	m.ObserveAutoRollback(false)
	assert.NoError(t, m.WriteTextfile("/nonexistent/dir/x.prom"))
	assert.NoError(t, m.Restore("/nonexistent/dir/x.prom"))
	assert.Nil(t, m.Registry())
}
