package audio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
)

// processStopTimeout bounds how long a pw-* process gets to exit after SIGINT.
const processStopTimeout = 5 * time.Second

// PipeWireDevice captures with pw-record and plays with pw-play, exchanging
// raw S16LE mono samples over pipes. Each direction has its own process so
// reads and writes may run concurrently.
type PipeWireDevice struct {
	sampleRate     int
	captureTarget  string
	playbackTarget string
	realtime       bool

	recMu  sync.Mutex
	rec    *exec.Cmd
	recOut *os.File

	playMu sync.Mutex
	play   *exec.Cmd
	playIn *os.File
}

// NewPipeWireDevice prepares a device. Processes start on first use.
func NewPipeWireDevice(sampleRate int, captureTarget, playbackTarget string, realtime bool) *PipeWireDevice {
	return &PipeWireDevice{
		sampleRate:     sampleRate,
		captureTarget:  captureTarget,
		playbackTarget: playbackTarget,
		realtime:       realtime,
	}
}

func (d *PipeWireDevice) args(tool, target string) []string {
	args := []string{
		tool,
		"--format", "s16",
		"--rate", strconv.Itoa(d.sampleRate),
		"--channels", "1",
	}
	if target != "" {
		args = append(args, "--target", target)
	}
	if d.realtime {
		// keep the PipeWire graph quantum close to one playback chunk
		args = append(args, "--latency", fmt.Sprintf("%d/%d", d.sampleRate/50, d.sampleRate))
	}
	return append(args, "-")
}

func (d *PipeWireDevice) startRecord() error {
	if d.rec != nil {
		return nil
	}

	r, w, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("failed to create capture pipe: %w", err)
	}

	args := d.args("pw-record", d.captureTarget)
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdout = w
	stderr, err := cmd.StderrPipe()
	if err != nil {
		r.Close()
		w.Close()
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	slog.Debug("Starting pw-record", "command", strings.Join(args, " "))
	if err := cmd.Start(); err != nil {
		r.Close()
		w.Close()
		return fmt.Errorf("failed to start pw-record: %w", err)
	}
	w.Close()

	go logOutput(stderr, "pw-record")
	d.rec = cmd
	d.recOut = r
	return nil
}

func (d *PipeWireDevice) startPlay() error {
	if d.play != nil {
		return nil
	}

	r, w, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("failed to create playback pipe: %w", err)
	}

	args := d.args("pw-play", d.playbackTarget)
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdin = r
	stderr, err := cmd.StderrPipe()
	if err != nil {
		r.Close()
		w.Close()
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	slog.Debug("Starting pw-play", "command", strings.Join(args, " "))
	if err := cmd.Start(); err != nil {
		r.Close()
		w.Close()
		return fmt.Errorf("failed to start pw-play: %w", err)
	}
	r.Close()

	go logOutput(stderr, "pw-play")
	d.play = cmd
	d.playIn = w
	return nil
}

// logOutput forwards a process' diagnostic output to the debug log.
func logOutput(pipe io.ReadCloser, label string) {
	scanner := bufio.NewScanner(pipe)
	for scanner.Scan() {
		slog.Debug("PipeWire output", "process", label, "line", scanner.Text())
	}
	pipe.Close()
}

// Read implements Device.
func (d *PipeWireDevice) Read(ctx context.Context, p []byte) (int, error) {
	d.recMu.Lock()
	defer d.recMu.Unlock()

	if err := d.startRecord(); err != nil {
		return 0, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		d.recOut.SetReadDeadline(deadline)
	}

	n, err := io.ReadFull(d.recOut, p)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return n, context.DeadlineExceeded
		}
		slog.Debug("pw-record stream ended", "error", err)
		d.stopRecordLocked()
		return n, err
	}
	return n, nil
}

// Write implements Device.
func (d *PipeWireDevice) Write(ctx context.Context, p []byte) (int, error) {
	d.playMu.Lock()
	defer d.playMu.Unlock()

	if err := d.startPlay(); err != nil {
		return 0, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		d.playIn.SetWriteDeadline(deadline)
	} else {
		d.playIn.SetWriteDeadline(time.Time{})
	}

	n, err := d.playIn.Write(p)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return n, context.DeadlineExceeded
		}
		d.stopPlayLocked()
		return n, err
	}
	return n, nil
}

// Stop ends the playback process after it played what it was given.
func (d *PipeWireDevice) Stop() error {
	d.playMu.Lock()
	defer d.playMu.Unlock()
	return d.stopPlayLocked()
}

// Close ends both processes.
func (d *PipeWireDevice) Close() error {
	d.recMu.Lock()
	recErr := d.stopRecordLocked()
	d.recMu.Unlock()

	d.playMu.Lock()
	playErr := d.stopPlayLocked()
	d.playMu.Unlock()

	return multierr.Combine(recErr, playErr)
}

func (d *PipeWireDevice) stopPlayLocked() error {
	if d.play == nil {
		return nil
	}
	// closing stdin lets pw-play flush and exit on its own
	d.playIn.Close()
	err := stopProcess(d.play, "pw-play", false)
	d.play = nil
	d.playIn = nil
	return err
}

func (d *PipeWireDevice) stopRecordLocked() error {
	if d.rec == nil {
		return nil
	}
	err := stopProcess(d.rec, "pw-record", true)
	d.recOut.Close()
	d.rec = nil
	d.recOut = nil
	return err
}

// stopProcess waits for cmd to exit, sending SIGINT first when interrupt is
// set, and kills it if it is still running after processStopTimeout.
func stopProcess(cmd *exec.Cmd, name string, interrupt bool) error {
	if interrupt && cmd.Process != nil {
		slog.Debug("Sending SIGINT", "process", name)
		if err := cmd.Process.Signal(os.Interrupt); err != nil {
			slog.Debug("Failed to send interrupt, killing", "process", name, "error", err)
			cmd.Process.Kill()
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) && exitErr.ProcessState != nil {
				state := exitErr.ProcessState.String()
				if state == "signal: interrupt" || state == "signal: killed" {
					return nil
				}
			}
			return fmt.Errorf("%s exited: %w", name, err)
		}
		return nil

	case <-time.After(processStopTimeout):
		slog.Warn("Process did not exit within timeout, force killing", "process", name)
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
		<-done
		return nil
	}
}
