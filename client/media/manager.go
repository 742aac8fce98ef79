// Package media acquires and releases the microphone and camera for a notes
// session and turns what they capture into timeline entries.
package media

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/clock"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/gen"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/logger"
)

const (
	WaveformSize          = 30
	DefaultSampleInterval = 50 * time.Millisecond
)

type Options struct {
	Audio AudioSource
	Video VideoSource
	// NewTranscriber, when set, starts a live transcriber per recording.
	NewTranscriber func() Transcriber
	Clock          clock.Clock
	Log            *slog.Logger
	SampleInterval time.Duration
}

type Manager struct {
	audio          AudioSource
	video          VideoSource
	newTranscriber func() Transcriber
	clock          clock.Clock
	log            *slog.Logger
	interval       time.Duration
	ids            gen.UUIDGenerator

	// micMu serializes microphone start and stop.
	micMu sync.Mutex

	mu      sync.Mutex
	mic     *RecordingSession
	cameras map[*Camera]struct{}
	closed  bool
}

func NewManager(opts Options) *Manager {
	m := &Manager{
		audio:          opts.Audio,
		video:          opts.Video,
		newTranscriber: opts.NewTranscriber,
		clock:          clock.OrReal(opts.Clock),
		log:            logger.OrDefault(opts.Log),
		interval:       opts.SampleInterval,
		ids:            gen.UUID(),
		cameras:        map[*Camera]struct{}{},
	}
	if m.interval <= 0 {
		m.interval = DefaultSampleInterval
	}
	return m
}

// Recording returns the active microphone session, or nil.
func (m *Manager) Recording() *RecordingSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mic
}

// StartMicrophone opens the microphone and starts buffering audio. Only one
// recording may be active.
func (m *Manager) StartMicrophone(ctx context.Context) (*RecordingSession, error) {
	m.micMu.Lock()
	defer m.micMu.Unlock()

	m.mu.Lock()
	closed, active := m.closed, m.mic != nil
	m.mu.Unlock()
	switch {
	case closed:
		return nil, ErrClosed
	case active:
		return nil, ErrRecordingActive
	case m.audio == nil:
		return nil, &CaptureError{Device: "microphone", Err: ErrUnsupported}
	}

	stream, err := m.audio.Open(ctx)
	if err != nil {
		err = captureError("microphone", err)
		m.log.Warn("microphone unavailable", slog.String("error", err.Error()))
		return nil, err
	}

	s := &RecordingSession{
		m:       m,
		stream:  stream,
		format:  stream.Format(),
		started: m.clock.Now(),
		done:    make(chan struct{}),
	}
	if m.newTranscriber != nil {
		s.transcriber = m.newTranscriber()
	}

	go s.readLoop()
	s.mu.Lock()
	s.sampler = m.clock.AfterFunc(m.interval, s.sample)
	s.mu.Unlock()

	m.mu.Lock()
	m.mic = s
	m.mu.Unlock()

	m.log.Info("recording started")
	return s, nil
}

// StopMicrophone ends the recording and returns its audio entry, plus a
// transcript entry when a live transcript was produced. Stopping a stopped
// session returns no entries and no error.
func (m *Manager) StopMicrophone(s *RecordingSession) ([]Entry, error) {
	if s == nil {
		return nil, nil
	}

	m.micMu.Lock()
	defer m.micMu.Unlock()

	return s.stop()
}

// StartCamera opens a camera, preferring the environment-facing one.
func (m *Manager) StartCamera(ctx context.Context) (*Camera, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	switch {
	case closed:
		return nil, ErrClosed
	case m.video == nil:
		return nil, &CaptureError{Device: "camera", Err: ErrUnsupported}
	}

	facing := FacingEnvironment
	stream, err := m.video.Open(ctx, facing)
	if errors.Is(err, ErrDeviceNotFound) {
		facing = FacingUser
		stream, err = m.video.Open(ctx, facing)
	}
	if err != nil {
		err = captureError("camera", err)
		m.log.Warn("camera unavailable", slog.String("error", err.Error()))
		return nil, err
	}

	cam := &Camera{m: m, stream: stream, facing: facing}
	m.mu.Lock()
	m.cameras[cam] = struct{}{}
	m.mu.Unlock()
	return cam, nil
}

// CaptureFrame snapshots the camera into an image entry.
func (m *Manager) CaptureFrame(ctx context.Context, cam *Camera) (Entry, error) {
	cam.mu.Lock()
	defer cam.mu.Unlock()

	if cam.stopped {
		return Entry{}, ErrCameraStopped
	}

	frame, err := cam.stream.Frame(ctx)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to capture frame: %w", err)
	}

	now := m.clock.Now()
	entry := Entry{
		ID:          m.ids.String(),
		Timestamp:   now,
		Type:        EntryImage,
		Content:     frame,
		MIME:        "image/jpeg",
		Description: "Photo captured",
	}
	if rec := m.Recording(); rec != nil {
		entry.RelativeTime = RelativeTime(now.Sub(rec.started))
	}
	return entry, nil
}

// StopCamera releases the camera. Stopping twice is a no-op.
func (m *Manager) StopCamera(cam *Camera) error {
	if cam == nil {
		return nil
	}

	cam.mu.Lock()
	defer cam.mu.Unlock()

	if cam.stopped {
		return nil
	}
	cam.stopped = true

	m.mu.Lock()
	delete(m.cameras, cam)
	m.mu.Unlock()

	if err := cam.stream.Close(); err != nil {
		m.log.Warn("failed to close camera", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// Close releases every device. Entries of an unfinished recording are
// dropped.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	cams := make([]*Camera, 0, len(m.cameras))
	for cam := range m.cameras {
		cams = append(cams, cam)
	}
	m.mu.Unlock()

	if rec := m.Recording(); rec != nil {
		if _, err := m.StopMicrophone(rec); err != nil {
			m.log.Warn("recording dropped on close", slog.String("error", err.Error()))
		}
	}
	for _, cam := range cams {
		m.StopCamera(cam)
	}
}

type Camera struct {
	m      *Manager
	stream VideoStream
	facing Facing

	mu      sync.Mutex
	stopped bool
}

func (c *Camera) Facing() Facing {
	return c.facing
}

func (c *Camera) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

type RecordingSession struct {
	m           *Manager
	stream      AudioStream
	transcriber Transcriber
	format      AudioFormat
	started     time.Time
	done        chan struct{}

	mu       sync.Mutex
	chunks   [][]byte
	size     int
	latest   []byte
	ring     [WaveformSize]float64
	ringLen  int
	ringPos  int
	sampler  clock.Timer
	stopped  bool
	released bool
	elapsed  time.Duration
}

func (s *RecordingSession) readLoop() {
	defer close(s.done)

	for {
		chunk, err := s.stream.Read()
		if err != nil {
			return
		}
		if len(chunk) == 0 {
			continue
		}

		s.mu.Lock()
		s.chunks = append(s.chunks, chunk)
		s.size += len(chunk)
		s.latest = chunk
		s.mu.Unlock()

		if s.transcriber != nil {
			s.transcriber.Feed(chunk)
		}
	}
}

func (s *RecordingSession) sample() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.ring[s.ringPos] = amplitude(s.latest)
	s.ringPos = (s.ringPos + 1) % WaveformSize
	s.ringLen = min(s.ringLen+1, WaveformSize)
	s.sampler = s.m.clock.AfterFunc(s.m.interval, s.sample)
}

// amplitude is the RMS of a 16-bit PCM chunk scaled to 0..1.
func amplitude(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}

	var sum float64
	for i := range n {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
		sum += v * v
	}
	return min(math.Sqrt(sum/float64(n))/math.MaxInt16, 1)
}

// Waveform returns the most recent amplitude samples, oldest first.
func (s *RecordingSession) Waveform() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]float64, 0, s.ringLen)
	start := (s.ringPos - s.ringLen + WaveformSize) % WaveformSize
	for i := range s.ringLen {
		out = append(out, s.ring[(start+i)%WaveformSize])
	}
	return out
}

// Elapsed is the recording time so far, frozen once stopped.
func (s *RecordingSession) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return s.elapsed
	}
	return s.m.clock.Now().Sub(s.started)
}

func (s *RecordingSession) BufferedBytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

func (s *RecordingSession) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.stopped
}

// Released reports whether the hardware and transcriber were let go.
func (s *RecordingSession) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// LiveTranscript is the transcript accumulated so far.
func (s *RecordingSession) LiveTranscript() string {
	if s.transcriber == nil {
		return ""
	}
	return s.transcriber.Transcript()
}

func (s *RecordingSession) stop() ([]Entry, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, nil
	}
	s.stopped = true
	now := s.m.clock.Now()
	s.elapsed = now.Sub(s.started)
	if s.sampler != nil {
		s.sampler.Stop()
	}
	s.mu.Unlock()

	defer s.release()

	if err := s.stream.Close(); err != nil {
		s.m.log.Warn("failed to close microphone", slog.String("error", err.Error()))
	}
	<-s.done

	s.mu.Lock()
	chunks := s.chunks
	s.mu.Unlock()

	wav, err := EncodeWAV(s.format, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble recording: %w", err)
	}

	rel := RelativeTime(s.elapsed)
	entries := []Entry{{
		ID:           s.m.ids.String(),
		Timestamp:    now,
		Type:         EntryAudio,
		Content:      wav,
		MIME:         "audio/wav",
		Description:  "Audio recording (" + rel + ")",
		RelativeTime: rel,
	}}
	if text := s.LiveTranscript(); text != "" {
		entries = append(entries, Entry{
			ID:           s.m.ids.String(),
			Timestamp:    now,
			Type:         EntryTranscript,
			Text:         text,
			MIME:         "text/plain",
			Description:  "Live transcript",
			RelativeTime: rel,
		})
	}

	s.m.log.Info("recording stopped",
		slog.Duration("elapsed", s.elapsed),
		slog.Int("bytes", len(wav)))
	return entries, nil
}

func (s *RecordingSession) release() {
	if s.transcriber != nil {
		if err := s.transcriber.Close(); err != nil {
			s.m.log.Warn("failed to close transcriber", slog.String("error", err.Error()))
		}
	}

	s.m.mu.Lock()
	if s.m.mic == s {
		s.m.mic = nil
	}
	s.m.mu.Unlock()

	s.mu.Lock()
	s.released = true
	s.mu.Unlock()
}
