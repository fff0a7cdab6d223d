package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avrelay/types"
)

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.RecordTapReceived(types.KindVideo)
	m.RecordTapForwarded(types.KindVideo)
	m.RecordTapDropped(types.KindVideo, "full")
	m.RecordTick(types.KindAudio, "fresh", time.Millisecond, true)
	m.SetDriftGap(time.Second)
	m.RecordPushFailure(types.KindAudio)
	m.SetPipelineState("running", []string{"idle", "running"})
}

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordTapDropped(types.KindVideo, "malformed")
	m.RecordTapDropped(types.KindVideo, "malformed")
	require.Equal(t, 2.0, testutil.ToFloat64(m.TapDropped.WithLabelValues("video", "malformed")))

	m.RecordTick(types.KindAudio, "placeholder", 21*time.Millisecond, false)
	m.RecordTick(types.KindAudio, "fresh", 40*time.Millisecond, true)
	require.Equal(t, 1.0, testutil.ToFloat64(m.Ticks.WithLabelValues("audio", "placeholder")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Boosts.WithLabelValues("audio")))

	m.SetDriftGap(150 * time.Millisecond)
	require.InDelta(t, 0.15, testutil.ToFloat64(m.DriftGap), 1e-9)

	m.SetPipelineState("running", []string{"idle", "running", "stopped"})
	require.Equal(t, 1.0, testutil.ToFloat64(m.PipelineStates.WithLabelValues("running")))
	require.Equal(t, 0.0, testutil.ToFloat64(m.PipelineStates.WithLabelValues("idle")))
}
