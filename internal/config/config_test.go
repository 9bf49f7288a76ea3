package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voxstream.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const profileConfig = `
active_profile: studio

logging:
  level: debug

profiles:
  default:
    audio:
      sample_rate: 16000
      feed_chunk: 25ms
      drain_limit: 8192
    device:
      backend: pipewire
      capture_target: "alsa_input.usb:capture_MONO"
    transport:
      url: ws://10.0.0.2:8765/ws

  studio:
    audio:
      play_chunk: 40ms
    device:
      playback_target: studio_speakers
    session:
      greeting_file: ~/prompts/hello.wav

  broken:
    audio:
      sample_rate: 1000
`

func TestLoadWithProfile_ActiveProfileInheritsDefault(t *testing.T) {
	path := createTempConfig(t, profileConfig)

	cfg, err := LoadWithProfile(path, "")
	require.NoError(t, err)

	assert.Equal(t, "studio", cfg.Profile)
	assert.Equal(t, 16000, cfg.Audio.SampleRate)
	assert.Equal(t, 40*time.Millisecond, cfg.Audio.PlayChunk)
	assert.Equal(t, 25*time.Millisecond, cfg.Audio.FeedChunk)
	assert.Equal(t, 8192, cfg.Audio.DrainLimit)
	assert.Equal(t, "pipewire", cfg.Device.Backend)
	assert.Equal(t, "alsa_input.usb:capture_MONO", cfg.Device.CaptureTarget)
	assert.Equal(t, "studio_speakers", cfg.Device.PlaybackTarget)
	assert.Equal(t, "ws://10.0.0.2:8765/ws", cfg.Transport.URL)

	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, "prompts/hello.wav"), cfg.Session.GreetingFile)
}

func TestLoadWithProfile_BuiltInDefaultsFillGaps(t *testing.T) {
	path := createTempConfig(t, profileConfig)

	cfg, err := LoadWithProfile(path, "default")
	require.NoError(t, err)

	assert.Equal(t, 65536, cfg.Audio.RingCapacity)
	assert.Equal(t, 20, cfg.Audio.SendQueueSize)
	assert.Equal(t, 128, cfg.Audio.MinPayload)
	assert.Equal(t, 30, cfg.Audio.VariationThreshold)
	assert.Equal(t, 3*time.Millisecond, cfg.Audio.ShortWait)
	assert.Equal(t, 8*time.Millisecond, cfg.Audio.IdleWait)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "127.0.0.1:8090", cfg.HTTP.Address)
}

func TestLoadWithProfile_FlagOverridesActive(t *testing.T) {
	path := createTempConfig(t, profileConfig)

	cfg, err := LoadWithProfile(path, "default")
	require.NoError(t, err)
	assert.Equal(t, "default", cfg.Profile)
	assert.Equal(t, 25*time.Millisecond, cfg.Audio.PlayChunk)
}

func TestLoadWithProfile_Errors(t *testing.T) {
	path := createTempConfig(t, profileConfig)

	_, err := LoadWithProfile("", "")
	assert.ErrorContains(t, err, "no config file specified")

	_, err = LoadWithProfile(path, "missing")
	assert.ErrorContains(t, err, "profile 'missing' not found")

	_, err = LoadWithProfile(path, "broken")
	assert.ErrorContains(t, err, "sample_rate")

	_, err = LoadWithProfile(filepath.Join(t.TempDir(), "nope.yaml"), "")
	assert.ErrorContains(t, err, "error reading config file")
}

func TestLoadWithProfile_NoProfilesUsesBuiltIns(t *testing.T) {
	path := createTempConfig(t, "logging:\n  format: json\n")

	cfg, err := LoadWithProfile(path, "")
	require.NoError(t, err)
	assert.Equal(t, "default", cfg.Profile)
	assert.Equal(t, 16000, cfg.Audio.SampleRate)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestMergeConfigs_NonZeroOverride(t *testing.T) {
	base := Default()
	profile := &Config{
		Audio:  AudioConfig{SampleRate: 24000, Prime: 0},
		Device: DeviceConfig{Realtime: true},
	}

	result := mergeConfigs(base, profile)
	assert.Equal(t, 24000, result.Audio.SampleRate)
	assert.Equal(t, base.Audio.Prime, result.Audio.Prime)
	assert.True(t, result.Device.Realtime)
	assert.Equal(t, "auto", result.Device.Backend)

	// base must not be modified
	assert.Equal(t, 16000, base.Audio.SampleRate)
}

func TestGeometry(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 640, cfg.CaptureChunkBytes())
	assert.Equal(t, 800, cfg.FeedChunkBytes())
	assert.Equal(t, 800, cfg.PlayChunkBytes())
	assert.Equal(t, 320000, cfg.RecordingBytes())
	assert.Equal(t, 320, cfg.PrimeBytes())
}

func TestUpdateActiveProfile(t *testing.T) {
	path := createTempConfig(t, profileConfig)

	require.NoError(t, UpdateActiveProfile(path, "default"))

	root, err := ReadRoot(path)
	require.NoError(t, err)
	assert.Equal(t, "default", root.ActiveProfile)

	assert.Error(t, UpdateActiveProfile(path, "missing"))
	assert.Error(t, UpdateActiveProfile("", "default"))
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := createTempConfig(t, profileConfig)

	var mu sync.Mutex
	var levels []string
	require.NoError(t, Watch(path, "", func(cfg *Config, err error) {
		if err != nil {
			return
		}
		mu.Lock()
		levels = append(levels, cfg.Logging.Level)
		mu.Unlock()
	}))

	updated := strings.Replace(profileConfig, "level: debug", "level: warn", 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, l := range levels {
			if l == "warn" {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)
}
