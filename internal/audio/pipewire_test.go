package audio

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/voxstream/internal/config"
)

func TestParsePortList(t *testing.T) {
	output := `Output ports:
alsa_input.usb-mic:capture_MONO
Input ports:
alsa_output.pci:playback_FL
alsa_output.pci:playback_FR

`
	ports := parsePortList(output)
	assert.Equal(t, []string{
		"alsa_input.usb-mic:capture_MONO",
		"alsa_output.pci:playback_FL",
		"alsa_output.pci:playback_FR",
	}, ports)
}

func TestValidatePortIn(t *testing.T) {
	ports := []string{
		"alsa_input.usb-mic:capture_MONO",
		"alsa_input.usb-mic:capture_MONO", // same name twice
		"alsa_input.usb-mic-2:capture_MONO",
		"system:playback_1",
	}

	assert.NoError(t, validatePortIn("system:playback_1", ports))
	assert.NoError(t, validatePortIn("alsa_input.usb-mic-2:capture_MONO", ports))

	err := validatePortIn("missing:port", ports)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "port not found"))

	err = validatePortIn("alsa_input.usb-mic:capture_MONO", ports)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate ports detected")
}

func TestFindPortDuplicatesInList(t *testing.T) {
	ports := []string{"Firefox:output_FL", "Firefox:output_FL", "Firefox (1):output_FL"}
	assert.Len(t, findPortDuplicatesInList("Firefox:output_FL", ports), 2)
	assert.Len(t, findPortDuplicatesInList("Firefox (1):output_FL", ports), 1)
	assert.Empty(t, findPortDuplicatesInList("Chrome:output_FL", ports))
}

func TestResolveBackend(t *testing.T) {
	tests := []struct {
		name   string
		device config.DeviceConfig
		want   BackendType
	}{
		{"explicit pipewire", config.DeviceConfig{Backend: "pipewire", CaptureFile: "in.wav"}, BackendTypePipeWire},
		{"explicit file", config.DeviceConfig{Backend: "FILE"}, BackendTypeFile},
		{"auto with files", config.DeviceConfig{Backend: "auto", PlaybackFile: "out.raw"}, BackendTypeFile},
		{"auto without files", config.DeviceConfig{Backend: "auto"}, BackendTypePipeWire},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Device = tt.device
			assert.Equal(t, tt.want, ResolveBackend(cfg))
		})
	}
}

func TestPipeWireArgs(t *testing.T) {
	d := NewPipeWireDevice(16000, "", "speakers", true)

	assert.Equal(t, []string{"pw-record", "--format", "s16", "--rate", "16000", "--channels", "1", "--latency", "320/16000", "-"},
		d.args("pw-record", ""))
	assert.Contains(t, strings.Join(d.args("pw-play", "speakers"), " "), "--target speakers")
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(config.Default())

	assert.Equal(t, 640, opts.CaptureChunk)
	assert.Equal(t, 800, opts.FeedChunk)
	assert.Equal(t, 800, opts.PlayChunk)
	assert.Equal(t, 320000, opts.RecordingBytes)
	assert.Equal(t, 320, opts.PrimeBytes)
	assert.NoError(t, opts.validate())
}
