package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// TestRecorders registers the collectors once and checks every helper records.
func TestRecorders(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))

	IncTriggered("ExclusiveLimitAlarmType")
	IncTriggered("ExclusiveLimitAlarmType")
	IncDropped()
	SetQueueLength(7)
	IncSinkError("journal")
	IncMethodCall("Acknowledge", OutcomeOK)
	IncMethodCall("Acknowledge", OutcomeRejected)
	SetActiveBand("LevelAlarm", "High", []string{"HighHigh", "High"})

	require.InDelta(t, 2.0, testutil.ToFloat64(eventsTriggered.WithLabelValues("ExclusiveLimitAlarmType")), 0)
	require.InDelta(t, 1.0, testutil.ToFloat64(dispatchDropped), 0)
	require.InDelta(t, 7.0, testutil.ToFloat64(dispatchQueue), 0)
	require.InDelta(t, 1.0, testutil.ToFloat64(sinkErrors.WithLabelValues("journal")), 0)
	require.InDelta(t, 1.0, testutil.ToFloat64(methodCalls.WithLabelValues("Acknowledge", OutcomeRejected)), 0)
	require.InDelta(t, 1.0, testutil.ToFloat64(activeBand.WithLabelValues("LevelAlarm", "High")), 0)
	require.InDelta(t, 0.0, testutil.ToFloat64(activeBand.WithLabelValues("LevelAlarm", "HighHigh")), 0)

	SetActiveBand("LevelAlarm", "", []string{"HighHigh", "High"})
	require.InDelta(t, 0.0, testutil.ToFloat64(activeBand.WithLabelValues("LevelAlarm", "High")), 0)

	count, err := testutil.GatherAndCount(reg, "ua_alarm_condition_method_calls_total")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}
