package audio

import (
	"encoding/binary"
	"time"
)

// BytesPerSample is the size of one mono 16-bit linear PCM sample.
const BytesPerSample = 2

// minVariationBytes is the shortest payload the variation check looks at (4 samples).
const minVariationBytes = 4 * BytesPerSample

// Sample returns the i-th little-endian sample of p.
func Sample(p []byte, i int) int16 {
	return int16(binary.LittleEndian.Uint16(p[i*BytesPerSample:]))
}

// BytesToSamples converts S16LE bytes to samples. A trailing odd byte is ignored.
func BytesToSamples(p []byte) []int16 {
	n := len(p) / BytesPerSample
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = Sample(p, i)
	}
	return samples
}

// SamplesToBytes converts samples to S16LE bytes.
func SamplesToBytes(samples []int16) []byte {
	p := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(p[i*BytesPerSample:], uint16(s))
	}
	return p
}

// Audible reports whether any two adjacent samples differ by more than threshold.
// Feed validation and the playback task share this predicate so that what gets
// buffered and what gets played are judged the same way.
func Audible(p []byte, threshold int) bool {
	n := len(p) / BytesPerSample
	if n < 2 {
		return false
	}
	prev := int(Sample(p, 0))
	for i := 1; i < n; i++ {
		cur := int(Sample(p, i))
		d := cur - prev
		if d < 0 {
			d = -d
		}
		if d > threshold {
			return true
		}
		prev = cur
	}
	return false
}

// ByteRate returns the number of bytes per second of mono 16-bit audio.
func ByteRate(sampleRate int) int {
	return sampleRate * BytesPerSample
}

// DurationBytes converts a duration to a sample-aligned byte count.
func DurationBytes(sampleRate int, d time.Duration) int {
	samples := int(int64(sampleRate) * int64(d) / int64(time.Second))
	return samples * BytesPerSample
}

// BytesDuration converts a byte count back to playback time.
func BytesDuration(sampleRate, n int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(n/BytesPerSample) * int64(time.Second) / int64(sampleRate))
}
