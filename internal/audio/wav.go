package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// wavHeader is the canonical 44-byte header for mono 16-bit PCM.
type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

const wavHeaderSize = 44

// ErrNotWAV is returned when data does not carry a RIFF/WAVE header.
var ErrNotWAV = errors.New("not a WAV file")

// WAVInfo describes a decoded WAV file.
type WAVInfo struct {
	SampleRate    int           `json:"sample_rate"`
	Channels      int           `json:"channels"`
	BitsPerSample int           `json:"bits_per_sample"`
	DataSize      int           `json:"data_size_bytes"`
	Duration      time.Duration `json:"duration"`
}

// WriteWAV writes pcm as a mono 16-bit WAV file.
func WriteWAV(w io.Writer, pcm []byte, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if len(pcm)%BytesPerSample != 0 {
		return ErrOddLength
	}

	dataSize := uint32(len(pcm))
	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   1,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(ByteRate(sampleRate)),
		BlockAlign:    BytesPerSample,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("failed to write WAV header: %w", err)
	}
	if _, err := w.Write(pcm); err != nil {
		return fmt.Errorf("failed to write audio data: %w", err)
	}
	return nil
}

// EncodeWAV returns pcm wrapped in a WAV container.
func EncodeWAV(pcm []byte, sampleRate int) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(pcm)))
	if err := WriteWAV(buf, pcm, sampleRate); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeWAV extracts mono 16-bit PCM from a WAV file. Chunks other than
// "fmt " and "data" are skipped.
func DecodeWAV(data []byte) ([]byte, WAVInfo, error) {
	var info WAVInfo
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, info, ErrNotWAV
	}

	var pcm []byte
	haveFmt := false
	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if size < 0 || body+size > len(data) {
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, info, fmt.Errorf("invalid WAV file: short fmt chunk")
			}
			f := data[body:]
			if format := binary.LittleEndian.Uint16(f[0:2]); format != 1 {
				return nil, info, fmt.Errorf("unsupported audio format: %d (only PCM is supported)", format)
			}
			info.Channels = int(binary.LittleEndian.Uint16(f[2:4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(f[4:8]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(f[14:16]))
			haveFmt = true
		case "data":
			pcm = data[body : body+size]
		}

		off = body + size + size%2
	}

	if !haveFmt {
		return nil, info, fmt.Errorf("invalid WAV file: missing fmt chunk")
	}
	if pcm == nil {
		return nil, info, fmt.Errorf("invalid WAV file: missing data chunk")
	}
	if info.BitsPerSample != 16 {
		return nil, info, fmt.Errorf("unsupported bit depth: %d (only 16-bit is supported)", info.BitsPerSample)
	}
	if info.Channels != 1 {
		return nil, info, fmt.Errorf("unsupported channel count: %d (only mono is supported)", info.Channels)
	}

	pcm = pcm[:len(pcm)&^1]
	info.DataSize = len(pcm)
	info.Duration = BytesDuration(info.SampleRate, len(pcm))
	return pcm, info, nil
}
