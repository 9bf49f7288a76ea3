package convert

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/voxstream/internal/config"
)

func TestArgs(t *testing.T) {
	cfg := config.Default()
	cfg.Audio.SampleRate = 24000
	c := New(cfg)

	assert.Equal(t, "ffmpeg", c.ffmpeg)
	assert.Equal(t, []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "in.mp3",
		"-ar", "24000",
		"-ac", "1",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-y",
		"out.raw",
	}, c.args("in.mp3", "out.raw"))
}

func TestMissingInput(t *testing.T) {
	c := New(config.Default())

	err := c.ToFile(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"), "out.raw")
	assert.ErrorContains(t, err, "input file not found")

	_, err = c.ToPCM(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"))
	assert.ErrorContains(t, err, "input file not found")
}

func TestToPCM_WithFFmpeg(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	dir := t.TempDir()
	in := filepath.Join(dir, "tone.wav")
	gen := exec.Command("ffmpeg", "-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "sine=frequency=440:duration=0.1", "-ar", "44100", in)
	require.NoError(t, gen.Run())

	c := New(config.Default())
	pcm, err := c.ToPCM(context.Background(), in)
	require.NoError(t, err)
	// 100 ms at 16 kHz mono
	assert.InDelta(t, 3200, len(pcm), 64)

	out := filepath.Join(dir, "tone.raw")
	require.NoError(t, c.ToFile(context.Background(), in, out))
	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, int64(len(pcm)), info.Size())
}
