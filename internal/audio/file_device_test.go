package audio

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileDevice_ReadAndLoop(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.raw")
	require.NoError(t, os.WriteFile(in, []byte{1, 2, 3, 4, 5, 6}, 0o644))

	d, err := NewFileDevice(16000, in, "", true, false)
	require.NoError(t, err)
	defer d.Close()

	p := make([]byte, 4)
	ctx := context.Background()
	n, err := d.Read(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, p[:n])

	n, err = d.Read(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 6, 1, 2}, p[:n])
}

func TestFileDevice_EOFWithoutLoop(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.raw")
	require.NoError(t, os.WriteFile(in, []byte{1, 2, 3, 4, 5, 6}, 0o644))

	d, err := NewFileDevice(16000, in, "", false, false)
	require.NoError(t, err)

	p := make([]byte, 4)
	_, err = d.Read(context.Background(), p)
	require.NoError(t, err)
	n, err := d.Read(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	_, err = d.Read(context.Background(), p)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFileDevice_NoCaptureBlocksUntilDeadline(t *testing.T) {
	d, err := NewFileDevice(16000, "", "", false, false)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = d.Read(ctx, make([]byte, 4))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFileDevice_RealtimePacing(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.raw")
	require.NoError(t, os.WriteFile(in, tone(640), 0o644))

	d, err := NewFileDevice(16000, in, "", true, true)
	require.NoError(t, err)

	p := make([]byte, 640)
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := d.Read(context.Background(), p)
		require.NoError(t, err)
	}
	// the first read is immediate, the next two wait 20 ms each
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
}

func TestFileDevice_WriteAppends(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.raw")

	d, err := NewFileDevice(16000, "", out, false, false)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = d.Write(ctx, []byte{1, 2})
	require.NoError(t, err)
	require.NoError(t, d.Stop())
	_, err = d.Write(ctx, []byte{3, 4})
	require.NoError(t, err)
	require.NoError(t, d.Close())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, data)
}

func TestFileDevice_DrivesManager(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.raw")
	d, err := NewFileDevice(16000, "", out, false, false)
	require.NoError(t, err)

	m, err := NewManager(d, testOptions())
	require.NoError(t, err)

	data := tone(2400)
	require.NoError(t, m.PlayAudio(context.Background(), data))
	require.NoError(t, m.Close())
	require.NoError(t, d.Close())

	written, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, data, written)
}
