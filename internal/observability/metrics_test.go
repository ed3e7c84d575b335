package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/issuedesk/issue-service/internal/config"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/issues", "GET", 200, 3*time.Millisecond)
	m.RecordRequest("/issues", "GET", 200, 2*time.Millisecond)
	m.RecordError("/issues/:id/claim", "POST", "CONFLICT")
	m.RecordEvent("issue_claimed")
	m.RecordWriteConflict()

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Requests["/issues|GET|200"])
	assert.Equal(t, int64(5), snap.RequestDurationMs["/issues|GET|200"])
	assert.Equal(t, int64(1), snap.Errors["/issues/:id/claim|POST|CONFLICT"])
	assert.Equal(t, int64(1), snap.Events["issue_claimed"])
	assert.Equal(t, int64(1), snap.WriteConflicts)

	snap.Requests["/issues|GET|200"] = 99
	assert.Equal(t, int64(2), m.Snapshot().Requests["/issues|GET|200"])
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordEvent("x")
	assert.Empty(t, m.Snapshot().Requests)
}

func TestNewLoggerFallsBackOnBadLevel(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "loud"})
	assert.NoError(t, err)
	assert.NotNil(t, logger)
}
