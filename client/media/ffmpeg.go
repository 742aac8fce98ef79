package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	ffmpegChunkSize   = 3200
	ffmpegStopTimeout = 3 * time.Second
)

// FFmpeg captures from local devices through an ffmpeg subprocess.
type FFmpeg struct {
	Path       string
	AudioInput string
	VideoInput string
	SampleRate int
}

func (f FFmpeg) binary() (string, error) {
	name := f.Path
	if name == "" {
		name = "ffmpeg"
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: ffmpeg not found", ErrUnsupported)
	}
	return path, nil
}

func (f FFmpeg) audioArgs() ([]string, error) {
	input := f.AudioInput
	var format string
	switch runtime.GOOS {
	case "darwin":
		format = "avfoundation"
		if input == "" {
			input = ":default"
		}
	case "linux":
		format = "pulse"
		if input == "" {
			input = "default"
		}
	default:
		return nil, fmt.Errorf("%w: no audio input on %s", ErrUnsupported, runtime.GOOS)
	}

	rate := f.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", format,
		"-i", input,
		"-ac", "1",
		"-ar", strconv.Itoa(rate),
		"-f", "s16le",
		"-",
	}, nil
}

func (f FFmpeg) videoArgs(facing Facing) ([]string, error) {
	input := f.VideoInput
	var format string
	switch runtime.GOOS {
	case "darwin":
		format = "avfoundation"
		if input == "" {
			input = "0"
			if facing == FacingUser {
				input = "1"
			}
		}
	case "linux":
		format = "v4l2"
		if input == "" {
			input = "/dev/video0"
			if facing == FacingUser {
				input = "/dev/video1"
			}
		}
		if _, err := os.Stat(input); err != nil {
			return nil, ErrDeviceNotFound
		}
	default:
		return nil, fmt.Errorf("%w: no camera input on %s", ErrUnsupported, runtime.GOOS)
	}
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", format,
		"-i", input,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-",
	}, nil
}

// classify maps ffmpeg diagnostics to capture errors.
func classify(stderr string, err error) error {
	msg := strings.ToLower(stderr)
	switch {
	case strings.Contains(msg, "permission denied"), strings.Contains(msg, "not authorized"):
		return ErrPermissionDenied
	case strings.Contains(msg, "no such file"), strings.Contains(msg, "no such device"),
		strings.Contains(msg, "not found"), strings.Contains(msg, "input/output error"):
		return ErrDeviceNotFound
	}
	return fmt.Errorf("%w: %v: %s", ErrUnsupported, err, strings.TrimSpace(stderr))
}

type FFmpegAudio struct {
	FFmpeg
}

func (a FFmpegAudio) Open(ctx context.Context) (AudioStream, error) {
	bin, err := a.binary()
	if err != nil {
		return nil, err
	}
	args, err := a.audioArgs()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open ffmpeg output: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, classify(stderr.String(), err)
	}

	rate := a.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	s := &ffmpegAudioStream{
		cmd:    cmd,
		stdout: stdout,
		format: AudioFormat{SampleRate: rate, Channels: 1},
	}

	// A device that cannot be opened makes ffmpeg exit before any audio.
	first, err := s.readChunk()
	if err != nil {
		waitErr := cmd.Wait()
		if waitErr == nil {
			waitErr = err
		}
		return nil, classify(stderr.String(), waitErr)
	}
	s.pending = first

	if ctx.Err() != nil {
		s.Close()
		return nil, ctx.Err()
	}
	return s, nil
}

type ffmpegAudioStream struct {
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	format  AudioFormat
	pending []byte

	mu     sync.Mutex
	closed bool
	once   sync.Once
}

func (s *ffmpegAudioStream) Format() AudioFormat {
	return s.format
}

func (s *ffmpegAudioStream) readChunk() ([]byte, error) {
	buf := make([]byte, ffmpegChunkSize)
	n, err := io.ReadFull(s.stdout, buf)
	// Keep whole samples only.
	n -= n % 2
	if n > 0 {
		return buf[:n], nil
	}
	if err == nil || errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	return nil, err
}

func (s *ffmpegAudioStream) Read() ([]byte, error) {
	if s.pending != nil {
		chunk := s.pending
		s.pending = nil
		return chunk, nil
	}

	chunk, err := s.readChunk()
	if err != nil {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed || errors.Is(err, os.ErrClosed) {
			return nil, io.EOF
		}
		return nil, err
	}
	return chunk, nil
}

func (s *ffmpegAudioStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	var err error
	s.once.Do(func() {
		err = stopProcess(s.cmd)
	})
	return err
}

// stopProcess asks ffmpeg to finish and kills it if it does not.
func stopProcess(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	_ = cmd.Process.Signal(os.Interrupt)
	select {
	case <-done:
		return nil
	case <-time.After(ffmpegStopTimeout):
		if err := cmd.Process.Kill(); err != nil {
			return fmt.Errorf("failed to kill ffmpeg: %w", err)
		}
		<-done
		return nil
	}
}

type FFmpegVideo struct {
	FFmpeg
}

func (v FFmpegVideo) Open(ctx context.Context, facing Facing) (VideoStream, error) {
	bin, err := v.binary()
	if err != nil {
		return nil, err
	}
	args, err := v.videoArgs(facing)
	if err != nil {
		return nil, err
	}
	return &ffmpegVideoStream{bin: bin, args: args}, nil
}

// ffmpegVideoStream grabs one frame per call; the device is only held
// while a frame is taken.
type ffmpegVideoStream struct {
	bin  string
	args []string
}

func (s *ffmpegVideoStream) Frame(ctx context.Context) ([]byte, error) {
	cmd := exec.CommandContext(ctx, s.bin, s.args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, captureError("camera", classify(stderr.String(), err))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg returned no frame")
	}
	return stdout.Bytes(), nil
}

func (s *ffmpegVideoStream) Close() error {
	return nil
}
