package media

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/clock"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type fakeStream struct {
	chunks chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{chunks: make(chan []byte, 64), closed: make(chan struct{})}
}

func (s *fakeStream) Format() AudioFormat {
	return AudioFormat{SampleRate: 16000, Channels: 1}
}

func (s *fakeStream) Read() ([]byte, error) {
	select {
	case c := <-s.chunks:
		return c, nil
	default:
	}
	select {
	case c := <-s.chunks:
		return c, nil
	case <-s.closed:
		select {
		case c := <-s.chunks:
			return c, nil
		default:
			return nil, io.EOF
		}
	}
}

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeStream) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

type fakeAudio struct {
	stream *fakeStream
	err    error
	opens  atomic.Int32
}

func (a *fakeAudio) Open(ctx context.Context) (AudioStream, error) {
	a.opens.Add(1)
	if a.err != nil {
		return nil, a.err
	}
	return a.stream, nil
}

type fakeTranscriber struct {
	text   string
	fed    atomic.Int32
	closed atomic.Bool
}

func (t *fakeTranscriber) Feed(chunk []byte) { t.fed.Add(1) }
func (t *fakeTranscriber) Transcript() string { return t.text }
func (t *fakeTranscriber) Close() error {
	t.closed.Store(true)
	return nil
}

type fakeVideoStream struct {
	facing Facing
	closed atomic.Int32
}

func (s *fakeVideoStream) Frame(ctx context.Context) ([]byte, error) {
	return []byte("jpeg:" + string(s.facing)), nil
}

func (s *fakeVideoStream) Close() error {
	s.closed.Add(1)
	return nil
}

type fakeVideo struct {
	missing map[Facing]bool
	opened  []*fakeVideoStream
}

func (v *fakeVideo) Open(ctx context.Context, facing Facing) (VideoStream, error) {
	if v.missing[facing] {
		return nil, ErrDeviceNotFound
	}
	s := &fakeVideoStream{facing: facing}
	v.opened = append(v.opened, s)
	return s, nil
}

// pcm returns n samples of constant value v.
func pcm(n int, v int16) []byte {
	b := make([]byte, 2*n)
	for i := range n {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(v))
	}
	return b
}

type fixture struct {
	clock       *clock.Fake
	audio       *fakeAudio
	video       *fakeVideo
	transcriber *fakeTranscriber
	created     atomic.Int32
	m           *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		clock:       clock.NewFake(t0),
		audio:       &fakeAudio{stream: newFakeStream()},
		video:       &fakeVideo{missing: map[Facing]bool{}},
		transcriber: &fakeTranscriber{},
	}
	f.m = NewManager(Options{
		Audio: f.audio,
		Video: f.video,
		NewTranscriber: func() Transcriber {
			f.created.Add(1)
			return f.transcriber
		},
		Clock: f.clock,
		Log:   logger.Discard(),
	})
	t.Cleanup(f.m.Close)
	return f
}

func (f *fixture) push(t *testing.T, rec *RecordingSession, chunk []byte) {
	t.Helper()

	want := rec.BufferedBytes() + len(chunk)
	f.audio.stream.chunks <- chunk
	require.Eventually(t, func() bool { return rec.BufferedBytes() == want },
		time.Second, time.Millisecond)
}

func TestRecordingProducesAudioAndTranscript(t *testing.T) {
	f := newFixture(t)
	f.transcriber.text = "coffee prices are up"

	rec, err := f.m.StartMicrophone(context.Background())
	require.NoError(t, err)
	assert.Same(t, rec, f.m.Recording())

	f.push(t, rec, pcm(800, 1000))
	f.push(t, rec, pcm(800, -1000))
	f.clock.Advance(10 * time.Second)
	assert.Equal(t, 10*time.Second, rec.Elapsed())

	entries, err := f.m.StopMicrophone(rec)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	audio := entries[0]
	assert.Equal(t, EntryAudio, audio.Type)
	assert.Equal(t, "audio/wav", audio.MIME)
	assert.Equal(t, "0:10", audio.RelativeTime)
	assert.Equal(t, t0.Add(10*time.Second), audio.Timestamp)
	assert.Len(t, audio.Content, wavHeaderSize+3200)
	assert.NotEmpty(t, audio.ID)

	text := entries[1]
	assert.Equal(t, EntryTranscript, text.Type)
	assert.Equal(t, "coffee prices are up", text.Text)
	assert.Equal(t, "0:10", text.RelativeTime)
	assert.NotEqual(t, audio.ID, text.ID)

	assert.True(t, f.audio.stream.isClosed())
	assert.True(t, f.transcriber.closed.Load())
	assert.EqualValues(t, 2, f.transcriber.fed.Load())
	assert.True(t, rec.Released())
	assert.False(t, rec.Active())
	assert.Nil(t, f.m.Recording())
	assert.Zero(t, f.clock.Pending())
}

func TestRecordingWithoutTranscript(t *testing.T) {
	f := newFixture(t)

	rec, err := f.m.StartMicrophone(context.Background())
	require.NoError(t, err)
	f.clock.Advance(3 * time.Second)

	entries, err := f.m.StopMicrophone(rec)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, EntryAudio, entries[0].Type)
	assert.Equal(t, "0:03", entries[0].RelativeTime)
	assert.Len(t, entries[0].Content, wavHeaderSize)
}

func TestStopTwice(t *testing.T) {
	f := newFixture(t)

	rec, err := f.m.StartMicrophone(context.Background())
	require.NoError(t, err)
	f.clock.Advance(time.Second)

	entries, err := f.m.StopMicrophone(rec)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	again, err := f.m.StopMicrophone(rec)
	require.NoError(t, err)
	assert.Empty(t, again)
	assert.True(t, rec.Released())
	assert.Nil(t, f.m.Recording())
	assert.Equal(t, time.Second, rec.Elapsed())
}

func TestConcurrentStopsYieldOneRecording(t *testing.T) {
	f := newFixture(t)

	rec, err := f.m.StartMicrophone(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	var produced atomic.Int32
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entries, err := f.m.StopMicrophone(rec)
			assert.NoError(t, err)
			if len(entries) > 0 {
				produced.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, produced.Load())
	assert.True(t, rec.Released())
}

func TestStartWhileRecording(t *testing.T) {
	f := newFixture(t)

	rec, err := f.m.StartMicrophone(context.Background())
	require.NoError(t, err)

	_, err = f.m.StartMicrophone(context.Background())
	assert.ErrorIs(t, err, ErrRecordingActive)
	assert.EqualValues(t, 1, f.audio.opens.Load())

	_, err = f.m.StopMicrophone(rec)
	require.NoError(t, err)

	f.audio.stream = newFakeStream()
	_, err = f.m.StartMicrophone(context.Background())
	assert.NoError(t, err)
}

func TestPermissionDeniedAcquiresNothing(t *testing.T) {
	f := newFixture(t)
	f.audio.err = ErrPermissionDenied

	rec, err := f.m.StartMicrophone(context.Background())
	require.Error(t, err)
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	var ce *CaptureError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "microphone", ce.Device)
	assert.Contains(t, Remedy(err), "privacy settings")

	assert.Zero(t, f.created.Load())
	assert.Zero(t, f.clock.Pending())
	assert.Nil(t, f.m.Recording())
}

func TestUnknownOpenErrorIsUnsupported(t *testing.T) {
	f := newFixture(t)
	f.audio.err = errors.New("exec format error")

	_, err := f.m.StartMicrophone(context.Background())
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.Contains(t, err.Error(), "exec format error")
}

func TestMissingSource(t *testing.T) {
	m := NewManager(Options{Log: logger.Discard()})

	_, err := m.StartMicrophone(context.Background())
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = m.StartCamera(context.Background())
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestWaveform(t *testing.T) {
	f := newFixture(t)

	rec, err := f.m.StartMicrophone(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rec.Waveform())

	f.push(t, rec, pcm(160, 16383))
	f.clock.Advance(DefaultSampleInterval)

	wave := rec.Waveform()
	require.Len(t, wave, 1)
	assert.InDelta(t, 0.5, wave[0], 0.001)

	f.push(t, rec, pcm(160, 0))
	f.clock.Advance(40 * DefaultSampleInterval)

	wave = rec.Waveform()
	require.Len(t, wave, WaveformSize)
	for _, v := range wave {
		assert.Zero(t, v)
	}
	assert.Equal(t, 1, f.clock.Pending())

	_, err = f.m.StopMicrophone(rec)
	require.NoError(t, err)
	assert.Zero(t, f.clock.Pending())
}

func TestAmplitude(t *testing.T) {
	assert.Zero(t, amplitude(nil))
	assert.Zero(t, amplitude([]byte{1}))
	assert.InDelta(t, 1.0, amplitude(pcm(4, -32768)), 0.0001)
	assert.InDelta(t, 1.0, amplitude(pcm(4, 32767)), 0.0001)
}

func TestCameraPrefersEnvironment(t *testing.T) {
	f := newFixture(t)

	cam, err := f.m.StartCamera(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FacingEnvironment, cam.Facing())

	entry, err := f.m.CaptureFrame(context.Background(), cam)
	require.NoError(t, err)
	assert.Equal(t, EntryImage, entry.Type)
	assert.Equal(t, "image/jpeg", entry.MIME)
	assert.Equal(t, []byte("jpeg:environment"), entry.Content)
	assert.Equal(t, t0, entry.Timestamp)
	assert.Empty(t, entry.RelativeTime)
}

func TestCameraFallsBackToUser(t *testing.T) {
	f := newFixture(t)
	f.video.missing[FacingEnvironment] = true

	cam, err := f.m.StartCamera(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FacingUser, cam.Facing())

	f.video.missing[FacingUser] = true
	_, err = f.m.StartCamera(context.Background())
	assert.ErrorIs(t, err, ErrDeviceNotFound)
	assert.Contains(t, Remedy(err), "No device")
}

func TestFrameDuringRecordingIsTimed(t *testing.T) {
	f := newFixture(t)

	rec, err := f.m.StartMicrophone(context.Background())
	require.NoError(t, err)
	cam, err := f.m.StartCamera(context.Background())
	require.NoError(t, err)

	f.clock.Advance(65 * time.Second)
	entry, err := f.m.CaptureFrame(context.Background(), cam)
	require.NoError(t, err)
	assert.Equal(t, "1:05", entry.RelativeTime)

	_, err = f.m.StopMicrophone(rec)
	require.NoError(t, err)
}

func TestStopCamera(t *testing.T) {
	f := newFixture(t)

	cam, err := f.m.StartCamera(context.Background())
	require.NoError(t, err)

	require.NoError(t, f.m.StopCamera(cam))
	require.NoError(t, f.m.StopCamera(cam))
	assert.True(t, cam.Stopped())
	assert.EqualValues(t, 1, f.video.opened[0].closed.Load())

	_, err = f.m.CaptureFrame(context.Background(), cam)
	assert.ErrorIs(t, err, ErrCameraStopped)
}

func TestCloseReleasesEverything(t *testing.T) {
	f := newFixture(t)

	rec, err := f.m.StartMicrophone(context.Background())
	require.NoError(t, err)
	cam, err := f.m.StartCamera(context.Background())
	require.NoError(t, err)

	f.m.Close()

	assert.True(t, rec.Released())
	assert.True(t, f.audio.stream.isClosed())
	assert.True(t, cam.Stopped())
	assert.Zero(t, f.clock.Pending())

	_, err = f.m.StartMicrophone(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	_, err = f.m.StartCamera(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRelativeTime(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00"},
		{-time.Second, "0:00"},
		{9*time.Second + 900*time.Millisecond, "0:09"},
		{10 * time.Second, "0:10"},
		{12*time.Minute + 5*time.Second, "12:05"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RelativeTime(tt.in), tt.in.String())
	}
}

func TestSortTimelineIsStable(t *testing.T) {
	entries := []Entry{
		{ID: "c", Timestamp: t0.Add(2 * time.Second)},
		{ID: "a1", Timestamp: t0},
		{ID: "b", Timestamp: t0.Add(time.Second)},
		{ID: "a2", Timestamp: t0},
		{ID: "a3", Timestamp: t0},
	}
	SortTimeline(entries)

	var ids []string
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"a1", "a2", "a3", "b", "c"}, ids)
}

func TestEncodeWAV(t *testing.T) {
	data, err := EncodeWAV(AudioFormat{SampleRate: 16000, Channels: 1},
		[][]byte{pcm(2, 1), pcm(3, 2)})
	require.NoError(t, err)
	require.Len(t, data, wavHeaderSize+10)

	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.EqualValues(t, 36+10, binary.LittleEndian.Uint32(data[4:8]))
	assert.Equal(t, "WAVE", string(data[8:12]))
	assert.Equal(t, "fmt ", string(data[12:16]))
	assert.EqualValues(t, 1, binary.LittleEndian.Uint16(data[20:22]))
	assert.EqualValues(t, 1, binary.LittleEndian.Uint16(data[22:24]))
	assert.EqualValues(t, 16000, binary.LittleEndian.Uint32(data[24:28]))
	assert.EqualValues(t, 32000, binary.LittleEndian.Uint32(data[28:32]))
	assert.EqualValues(t, 2, binary.LittleEndian.Uint16(data[32:34]))
	assert.EqualValues(t, 16, binary.LittleEndian.Uint16(data[34:36]))
	assert.Equal(t, "data", string(data[36:40]))
	assert.EqualValues(t, 10, binary.LittleEndian.Uint32(data[40:44]))

	_, err = EncodeWAV(AudioFormat{SampleRate: 16000, Channels: 2}, [][]byte{pcm(1, 1)})
	assert.Error(t, err)
	_, err = EncodeWAV(AudioFormat{}, nil)
	assert.Error(t, err)
}

func TestClassifyFFmpegErrors(t *testing.T) {
	cause := errors.New("exit status 1")

	assert.ErrorIs(t, classify("[avfoundation] Permission denied", cause), ErrPermissionDenied)
	assert.ErrorIs(t, classify("/dev/video0: No such file or directory", cause), ErrDeviceNotFound)
	err := classify("Unknown input format: 'pulse'", cause)
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.Contains(t, err.Error(), "pulse")
}
