package metrics

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/voxstream/internal/audio"
)

func TestObserverEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ChunkCaptured(640)
	m.ChunkCaptured(640)
	m.Played(800)
	m.Dropped(audio.ReasonSilent, 800)
	m.Dropped(audio.ReasonSilent, 400)
	m.DeviceError("write")
	m.StateChanged(audio.StateDraining)
	m.RingLevel(1234)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ChunksCaptured))
	assert.Equal(t, 1280.0, testutil.ToFloat64(m.BytesCaptured))
	assert.Equal(t, 800.0, testutil.ToFloat64(m.BytesPlayed))
	assert.Equal(t, 1200.0, testutil.ToFloat64(m.Drops.WithLabelValues(audio.ReasonSilent)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeviceErrors.WithLabelValues("write")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.StreamingState))
	assert.Equal(t, 1234.0, testutil.ToFloat64(m.RingLevelGauge))
}

func TestSessionMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordSessionStarted()
	m.RecordSessionStarted()
	m.RecordSessionEnded()
	m.RecordFrameSent()
	m.RecordFrameReceived("audio")
	m.RecordControl("tts_end")
	m.RecordReconnect()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SessionsStarted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveSessions))

	expected := `
# HELP voxstream_control_messages_total Control messages received from the server, by type
# TYPE voxstream_control_messages_total counter
voxstream_control_messages_total{type="tts_end"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "voxstream_control_messages_total"))
}

func TestManagerReportsToMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	opts := audio.DefaultOptions(16000)
	opts.Observer = m
	mgr, err := audio.NewManager(nopDevice{}, opts)
	require.NoError(t, err)
	defer mgr.Close()

	require.NoError(t, mgr.PlayAudio(context.Background(), audio.SamplesToBytes([]int16{0, 1000, -1000, 0})))
	assert.Equal(t, 8.0, testutil.ToFloat64(m.BytesPlayed))
}

type nopDevice struct{}

func (nopDevice) Read(ctx context.Context, p []byte) (int, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func (nopDevice) Write(_ context.Context, p []byte) (int, error) { return len(p), nil }

func (nopDevice) Stop() error { return nil }
