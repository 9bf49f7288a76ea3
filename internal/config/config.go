package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// RootConfig is the layout of the configuration file.
type RootConfig struct {
	ActiveProfile string             `mapstructure:"active_profile" yaml:"active_profile"`
	Logging       LoggingConfig      `mapstructure:"logging" yaml:"logging"`
	HTTP          HTTPConfig         `mapstructure:"http" yaml:"http"`
	Profiles      map[string]*Config `mapstructure:"profiles" yaml:"profiles"`
}

// Config is one resolved profile plus the global sections.
type Config struct {
	Audio     AudioConfig     `mapstructure:"audio" yaml:"audio"`
	Device    DeviceConfig    `mapstructure:"device" yaml:"device"`
	Transport TransportConfig `mapstructure:"transport" yaml:"transport"`
	Session   SessionConfig   `mapstructure:"session" yaml:"session"`
	Logging   LoggingConfig   `mapstructure:"-" yaml:"logging"`
	HTTP      HTTPConfig      `mapstructure:"-" yaml:"http"`

	// Profile is the name the config was resolved from.
	Profile string `mapstructure:"-" yaml:"profile"`
}

// AudioConfig holds buffer geometry and timing of the pipeline.
type AudioConfig struct {
	SampleRate         int           `mapstructure:"sample_rate" yaml:"sample_rate"`
	RecordingSeconds   int           `mapstructure:"recording_seconds" yaml:"recording_seconds"`
	CaptureChunk       time.Duration `mapstructure:"capture_chunk" yaml:"capture_chunk"`
	CaptureIdle        time.Duration `mapstructure:"capture_idle" yaml:"capture_idle"`
	FeedChunk          time.Duration `mapstructure:"feed_chunk" yaml:"feed_chunk"`
	PlayChunk          time.Duration `mapstructure:"play_chunk" yaml:"play_chunk"`
	RingCapacity       int           `mapstructure:"ring_capacity" yaml:"ring_capacity"`
	SendQueueSize      int           `mapstructure:"send_queue_size" yaml:"send_queue_size"`
	FeedQueueSize      int           `mapstructure:"feed_queue_size" yaml:"feed_queue_size"`
	MinPayload         int           `mapstructure:"min_payload" yaml:"min_payload"`
	VariationThreshold int           `mapstructure:"variation_threshold" yaml:"variation_threshold"`
	DrainLimit         int           `mapstructure:"drain_limit" yaml:"drain_limit"`
	ShortWait          time.Duration `mapstructure:"short_wait" yaml:"short_wait"`
	IdleWait           time.Duration `mapstructure:"idle_wait" yaml:"idle_wait"`
	DeviceTimeout      time.Duration `mapstructure:"device_timeout" yaml:"device_timeout"`
	ErrorBackoff       time.Duration `mapstructure:"error_backoff" yaml:"error_backoff"`
	Prime              time.Duration `mapstructure:"prime" yaml:"prime"`
	MaxDeviceErrors    int           `mapstructure:"max_device_errors" yaml:"max_device_errors"`
}

// DeviceConfig selects the sample device backend.
type DeviceConfig struct {
	Backend        string `mapstructure:"backend" yaml:"backend"` // "pipewire", "file", "auto"
	CaptureTarget  string `mapstructure:"capture_target" yaml:"capture_target"`
	PlaybackTarget string `mapstructure:"playback_target" yaml:"playback_target"`
	CaptureFile    string `mapstructure:"capture_file" yaml:"capture_file"`
	PlaybackFile   string `mapstructure:"playback_file" yaml:"playback_file"`
	Loop           bool   `mapstructure:"loop" yaml:"loop"`
	Realtime       bool   `mapstructure:"realtime" yaml:"realtime"`
}

// TransportConfig points at the voice server.
type TransportConfig struct {
	URL            string        `mapstructure:"url" yaml:"url"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay"`
}

// SessionConfig tunes a conversation session.
type SessionConfig struct {
	GreetingFile string `mapstructure:"greeting_file" yaml:"greeting_file"`
	FFmpegPath   string `mapstructure:"ffmpeg_path" yaml:"ffmpeg_path"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`   // "debug", "info", "warn", "error"
	Format     string `mapstructure:"format" yaml:"format"` // "text", "json"
	Output     string `mapstructure:"output" yaml:"output"` // "stderr", "stdout" or a file path
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Address string `mapstructure:"address" yaml:"address"`
}

var defaultConfig = Config{
	Audio: AudioConfig{
		SampleRate:         16000,
		RecordingSeconds:   10,
		CaptureChunk:       20 * time.Millisecond,
		CaptureIdle:        100 * time.Millisecond,
		FeedChunk:          25 * time.Millisecond,
		PlayChunk:          25 * time.Millisecond,
		RingCapacity:       65536,
		SendQueueSize:      20,
		FeedQueueSize:      8,
		MinPayload:         128,
		VariationThreshold: 30,
		DrainLimit:         16384,
		ShortWait:          3 * time.Millisecond,
		IdleWait:           8 * time.Millisecond,
		DeviceTimeout:      500 * time.Millisecond,
		ErrorBackoff:       50 * time.Millisecond,
		Prime:              10 * time.Millisecond,
		MaxDeviceErrors:    10,
	},
	Device: DeviceConfig{
		Backend: "auto",
	},
	Transport: TransportConfig{
		URL:            "ws://localhost:8765/ws",
		DialTimeout:    5 * time.Second,
		WriteTimeout:   2 * time.Second,
		ReconnectDelay: 3 * time.Second,
	},
	Session: SessionConfig{
		FFmpegPath: "ffmpeg",
	},
	Logging: LoggingConfig{
		Level:      "info",
		Format:     "text",
		Output:     "stderr",
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
	},
	HTTP: HTTPConfig{
		Address: "127.0.0.1:8090",
	},
	Profile: "default",
}

// Default returns the built-in configuration.
func Default() *Config {
	c := defaultConfig
	return &c
}

// DefaultPath is where the CLI looks for its config file.
func DefaultPath() string {
	return os.ExpandEnv("$HOME/.config/voxstream.yaml")
}

func decodeHook() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
}

func newViper(configFile string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetEnvPrefix("VOXSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ReadRoot reads and decodes the configuration file without resolving a profile.
func ReadRoot(configFile string) (*RootConfig, error) {
	return readRoot(newViper(configFile), configFile)
}

func readRoot(v *viper.Viper, configFile string) (*RootConfig, error) {
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var root RootConfig
	if err := v.Unmarshal(&root, decodeHook()); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &root, nil
}

// LoadWithProfile reads configFile and resolves profile, falling back to
// active_profile and then "default". A named profile inherits every unset
// field from the default profile, which in turn inherits the built-in values.
func LoadWithProfile(configFile, profile string) (*Config, error) {
	if configFile == "" {
		return nil, fmt.Errorf("no config file specified, use --config flag")
	}

	root, err := ReadRoot(configFile)
	if err != nil {
		return nil, err
	}
	return Resolve(root, profile)
}

// Resolve picks a profile out of root and applies inheritance and defaults.
func Resolve(root *RootConfig, profile string) (*Config, error) {
	name := profile
	if name == "" {
		name = root.ActiveProfile
	}
	if name == "" {
		name = "default"
	}

	selected, exists := root.Profiles[name]
	if !exists && name != "default" {
		return nil, fmt.Errorf("configuration profile '%s' not found", name)
	}

	resolved := &Config{}
	if selected != nil {
		c := *selected
		resolved = &c
	}
	if name != "default" {
		if base, ok := root.Profiles["default"]; ok && base != nil {
			resolved = mergeConfigs(base, resolved)
		}
	}
	resolved = mergeConfigs(&defaultConfig, resolved)

	resolved.Logging = mergeLogging(defaultConfig.Logging, root.Logging)
	resolved.HTTP = mergeHTTP(defaultConfig.HTTP, root.HTTP)
	resolved.Profile = name

	resolved.Device.CaptureFile = expandPath(resolved.Device.CaptureFile)
	resolved.Device.PlaybackFile = expandPath(resolved.Device.PlaybackFile)
	resolved.Session.GreetingFile = expandPath(resolved.Session.GreetingFile)
	if resolved.Logging.Output != "stderr" && resolved.Logging.Output != "stdout" {
		resolved.Logging.Output = expandPath(resolved.Logging.Output)
	}

	if err := resolved.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed for profile '%s': %w", name, err)
	}
	return resolved, nil
}

// UpdateActiveProfile rewrites the active_profile field of configFile.
func UpdateActiveProfile(configFile, name string) error {
	if configFile == "" {
		return fmt.Errorf("no config file specified")
	}

	// Create a new viper instance to avoid interfering with a watcher
	v := viper.New()
	v.SetConfigFile(configFile)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var root RootConfig
	if err := v.Unmarshal(&root, decodeHook()); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}
	if _, ok := root.Profiles[name]; !ok && name != "default" {
		return fmt.Errorf("configuration profile '%s' not found", name)
	}

	v.Set("active_profile", name)
	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configFile, err)
	}
	return nil
}

// Watch calls fn with the re-resolved config each time configFile changes.
// Resolution errors are passed to fn with a nil config.
func Watch(configFile, profile string, fn func(*Config, error)) error {
	v := newViper(configFile)
	if _, err := readRoot(v, configFile); err != nil {
		return err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		slog.Debug("Config file changed", "file", e.Name, "op", e.Op.String())

		var root RootConfig
		if err := v.Unmarshal(&root, decodeHook()); err != nil {
			fn(nil, fmt.Errorf("error unmarshaling config: %w", err))
			return
		}
		fn(Resolve(&root, profile))
	})
	v.WatchConfig()
	return nil
}

func pick[T comparable](base, override T) T {
	var zero T
	if override != zero {
		return override
	}
	return base
}

// mergeConfigs overlays every non-zero field of profile on base.
// Booleans can only be switched on by a profile.
func mergeConfigs(base, profile *Config) *Config {
	result := *base
	if profile == nil {
		return &result
	}

	a, p := &result.Audio, profile.Audio
	a.SampleRate = pick(a.SampleRate, p.SampleRate)
	a.RecordingSeconds = pick(a.RecordingSeconds, p.RecordingSeconds)
	a.CaptureChunk = pick(a.CaptureChunk, p.CaptureChunk)
	a.CaptureIdle = pick(a.CaptureIdle, p.CaptureIdle)
	a.FeedChunk = pick(a.FeedChunk, p.FeedChunk)
	a.PlayChunk = pick(a.PlayChunk, p.PlayChunk)
	a.RingCapacity = pick(a.RingCapacity, p.RingCapacity)
	a.SendQueueSize = pick(a.SendQueueSize, p.SendQueueSize)
	a.FeedQueueSize = pick(a.FeedQueueSize, p.FeedQueueSize)
	a.MinPayload = pick(a.MinPayload, p.MinPayload)
	a.VariationThreshold = pick(a.VariationThreshold, p.VariationThreshold)
	a.DrainLimit = pick(a.DrainLimit, p.DrainLimit)
	a.ShortWait = pick(a.ShortWait, p.ShortWait)
	a.IdleWait = pick(a.IdleWait, p.IdleWait)
	a.DeviceTimeout = pick(a.DeviceTimeout, p.DeviceTimeout)
	a.ErrorBackoff = pick(a.ErrorBackoff, p.ErrorBackoff)
	a.Prime = pick(a.Prime, p.Prime)
	a.MaxDeviceErrors = pick(a.MaxDeviceErrors, p.MaxDeviceErrors)

	d, pd := &result.Device, profile.Device
	d.Backend = pick(d.Backend, pd.Backend)
	d.CaptureTarget = pick(d.CaptureTarget, pd.CaptureTarget)
	d.PlaybackTarget = pick(d.PlaybackTarget, pd.PlaybackTarget)
	d.CaptureFile = pick(d.CaptureFile, pd.CaptureFile)
	d.PlaybackFile = pick(d.PlaybackFile, pd.PlaybackFile)
	d.Loop = d.Loop || pd.Loop
	d.Realtime = d.Realtime || pd.Realtime

	t, pt := &result.Transport, profile.Transport
	t.URL = pick(t.URL, pt.URL)
	t.DialTimeout = pick(t.DialTimeout, pt.DialTimeout)
	t.WriteTimeout = pick(t.WriteTimeout, pt.WriteTimeout)
	t.ReconnectDelay = pick(t.ReconnectDelay, pt.ReconnectDelay)

	result.Session.GreetingFile = pick(result.Session.GreetingFile, profile.Session.GreetingFile)
	result.Session.FFmpegPath = pick(result.Session.FFmpegPath, profile.Session.FFmpegPath)

	return &result
}

func mergeLogging(base, override LoggingConfig) LoggingConfig {
	return LoggingConfig{
		Level:      pick(base.Level, override.Level),
		Format:     pick(base.Format, override.Format),
		Output:     pick(base.Output, override.Output),
		MaxSizeMB:  pick(base.MaxSizeMB, override.MaxSizeMB),
		MaxBackups: pick(base.MaxBackups, override.MaxBackups),
		MaxAgeDays: pick(base.MaxAgeDays, override.MaxAgeDays),
	}
}

func mergeHTTP(base, override HTTPConfig) HTTPConfig {
	return HTTPConfig{
		Enabled: base.Enabled || override.Enabled,
		Address: pick(base.Address, override.Address),
	}
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
