package play

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/audiolibrelab/voxstream/internal/audio"
	"github.com/audiolibrelab/voxstream/internal/config"
	"github.com/audiolibrelab/voxstream/internal/convert"
)

// Target receives a complete prompt. audio.Manager satisfies it.
type Target interface {
	PlayAudio(ctx context.Context, data []byte) error
}

type Player struct {
	cfg       *config.Config
	converter *convert.Converter
}

func New(cfg *config.Config) *Player {
	return &Player{cfg: cfg, converter: convert.New(cfg)}
}

// Load returns the prompt at path as raw PCM at the configured rate. WAV and
// raw files are read directly, anything else goes through ffmpeg.
func (p *Player) Load(ctx context.Context, path string) ([]byte, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("audio file not found: %s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".raw", ".pcm":
		pcm, err := audio.LoadPCM(path, p.cfg.Audio.SampleRate)
		if err == nil {
			return pcm, nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".wav") {
			return nil, err
		}
		// a WAV in another format or rate still converts fine
		slog.Debug("WAV not usable as-is, converting", "file", path, "error", err)
	}
	return p.converter.ToPCM(ctx, path)
}

// Play loads the prompt at path and plays it to completion on t.
func (p *Player) Play(ctx context.Context, t Target, path string) error {
	pcm, err := p.Load(ctx, path)
	if err != nil {
		return err
	}
	if len(pcm) == 0 {
		return fmt.Errorf("audio file is empty: %s", path)
	}

	slog.Info("Playing prompt", "file", path, "bytes", len(pcm),
		"duration", audio.BytesDuration(p.cfg.Audio.SampleRate, len(pcm)))
	if err := t.PlayAudio(ctx, pcm); err != nil {
		return fmt.Errorf("playback failed: %w", err)
	}
	return nil
}

// Greeting plays the configured greeting, if any.
func (p *Player) Greeting(ctx context.Context, t Target) error {
	if p.cfg.Session.GreetingFile == "" {
		return nil
	}
	return p.Play(ctx, t, p.cfg.Session.GreetingFile)
}
