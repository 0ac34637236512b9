package telemetry

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Disabled(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})

	// Recording on a disabled or nil collector is a no-op.
	m.ObserveQuery("classification", time.Millisecond, 3)
	m.RuleChange("classification", "insert")
	m.SetPolicyRules("classification", 10)
	m.ObservePoll("nova", "ok", time.Millisecond, 5)
	assert.Nil(t, m.Handler())

	var nilMetrics *Metrics
	nilMetrics.ObserveQuery("classification", time.Millisecond, 3)
	assert.Nil(t, nilMetrics.Handler())
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics(DefaultMetricsConfig())
	m.ObserveQuery("classification", 2*time.Millisecond, 3)
	m.RuleChange("classification", "insert")
	m.SetPolicyRules("classification", 10)
	m.ObservePoll("nova", "ok", time.Millisecond, 5)
	m.ObservePoll("nova", "error", time.Millisecond, 0)

	handler := m.Handler()
	require.NotNil(t, handler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "congress_queries_total")
	assert.Contains(t, body, "congress_rule_changes_total")
	assert.Contains(t, body, "congress_policy_rules")
	assert.Contains(t, body, "congress_datasource_polls_total")
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(DefaultLoggingConfig())
	require.NoError(t, err)
	logger.Info().Msg("boot")

	_, err = NewLogger(LoggingConfig{Level: "debug", Format: "json", Output: "stdout"})
	require.NoError(t, err)

	// Unknown levels fall back to info.
	assert.Equal(t, "info", parseLogLevel("mystery").String())
}
