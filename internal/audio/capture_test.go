package audio

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCapture(t *testing.T, m *Manager) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, m.Run(ctx))
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestCapture_RecordsAndQueues(t *testing.T) {
	dev := newFakeDevice()
	m := newTestManager(t, dev, func(o *Options) { o.CaptureIdle = time.Millisecond })
	runCapture(t, m)

	m.StartRecording()
	chunk := m.Options().CaptureChunk
	data := tone(3 * chunk)
	for i := 0; i < 3; i++ {
		dev.reads <- data[i*chunk : (i+1)*chunk]
	}

	assert.Eventually(t, func() bool { return m.SendQueue().Len() == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, data, m.Recording())

	for i := 0; i < 3; i++ {
		it, ok := m.SendQueue().TryDequeue()
		require.True(t, ok)
		assert.Equal(t, data[i*chunk:(i+1)*chunk], it.Data)
		it.Release()
	}
	assert.Equal(t, uint64(3), m.Stats().CapturedChunks)
}

func TestCapture_IdleWhenNotRecording(t *testing.T) {
	dev := newFakeDevice()
	m := newTestManager(t, dev, func(o *Options) { o.CaptureIdle = time.Millisecond })
	runCapture(t, m)

	dev.reads <- tone(640)
	time.Sleep(20 * time.Millisecond)

	assert.Len(t, dev.reads, 1, "device must not be read while idle")
	assert.Empty(t, m.Recording())
	assert.Equal(t, 0, m.SendQueue().Len())
}

func TestCapture_SendQueueFullDropsNewest(t *testing.T) {
	dev := newFakeDevice()
	m := newTestManager(t, dev, func(o *Options) { o.SendQueueSize = 2 })
	runCapture(t, m)

	m.StartRecording()
	for i := 0; i < 5; i++ {
		dev.reads <- tone(640)
	}

	assert.Eventually(t, func() bool { return m.Stats().CapturedChunks == 5 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, m.SendQueue().Len())
	assert.Equal(t, uint64(3), m.Stats().SendQueueDrops)
	assert.Len(t, m.Recording(), 5*640, "recording is independent of the send queue")
}

func TestCapture_RecordingTruncatesAtCapacity(t *testing.T) {
	dev := newFakeDevice()
	m := newTestManager(t, dev, func(o *Options) { o.RecordingBytes = 2 * 640 })
	runCapture(t, m)

	m.StartRecording()
	for i := 0; i < 3; i++ {
		dev.reads <- tone(640)
	}

	assert.Eventually(t, func() bool { return m.Stats().CapturedChunks == 3 }, time.Second, 5*time.Millisecond)
	assert.Len(t, m.Recording(), 2*640)
	assert.Equal(t, uint64(1), m.Stats().RecordingDrops)
	assert.Equal(t, 3, m.SendQueue().Len())
}

func TestCapture_StartRecordingResets(t *testing.T) {
	dev := newFakeDevice()
	m := newTestManager(t, dev, nil)
	runCapture(t, m)

	m.StartRecording()
	dev.reads <- tone(640)
	assert.Eventually(t, func() bool { return len(m.Recording()) == 640 }, time.Second, 5*time.Millisecond)

	m.StopRecording()
	assert.False(t, m.IsRecording())
	assert.Len(t, m.Recording(), 640, "stop keeps the recording")

	m.StartRecording()
	assert.Empty(t, m.Recording())
	assert.True(t, m.IsRecording())
}

func TestCapture_ReadTimeoutIsCounted(t *testing.T) {
	dev := newFakeDevice()
	m := newTestManager(t, dev, func(o *Options) { o.DeviceTimeout = 5 * time.Millisecond })
	runCapture(t, m)

	m.StartRecording()
	assert.Eventually(t, func() bool { return m.Stats().DeviceReadErrors > 0 }, time.Second, 5*time.Millisecond)

	dev.reads <- tone(640)
	assert.Eventually(t, func() bool { return len(m.Recording()) == 640 }, time.Second, 5*time.Millisecond)
}

func TestCapture_EndOfSourceStopsRecording(t *testing.T) {
	in := filepath.Join(t.TempDir(), "in.raw")
	data := tone(1600)
	require.NoError(t, os.WriteFile(in, data, 0o644))

	d, err := NewFileDevice(16000, in, "", false, false)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	m := newTestManager(t, d, nil)
	runCapture(t, m)

	m.StartRecording()
	require.Eventually(t, func() bool { return !m.IsRecording() }, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, data, m.Recording())
	assert.Zero(t, m.Stats().DeviceReadErrors)
}
