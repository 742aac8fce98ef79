package notes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Danwoltrs/wolthers-travel-app-sub001/client/api"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/client/media"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/clock"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/logger"
	filesEntity "github.com/Danwoltrs/wolthers-travel-app-sub001/services/files/entity"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/services/notes/entity"
	pb "github.com/Danwoltrs/wolthers-travel-app-sub001/specs/asr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type fakeAPI struct {
	mu        sync.Mutex
	notes     []*entity.Note
	saves     []*entity.SaveNoteRequest
	saveErr   error
	deleted   []string
	summarize *pb.SummarizeRequest
	transcript string

	gate     chan struct{}
	started  chan struct{}
	onSave   func()
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeAPI) ListNotes(ctx context.Context, activityID string) ([]*entity.Note, error) {
	return f.notes, nil
}

func (f *fakeAPI) SaveNote(ctx context.Context, activityID string, req *entity.SaveNoteRequest) (*entity.Note, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	if n > f.maxSeen.Load() {
		f.maxSeen.Store(n)
	}

	if f.onSave != nil {
		f.onSave()
	}
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, req)
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	return &entity.Note{ID: "note-1", ActivityID: activityID, UserID: "user-1", Content: req.Content}, nil
}

func (f *fakeAPI) DeleteNote(ctx context.Context, activityID, noteID string) error {
	f.deleted = append(f.deleted, noteID)
	return nil
}

func (f *fakeAPI) Transcribe(ctx context.Context, activityID, fileName, mimeType string, audio []byte) (*api.TranscribeResponse, error) {
	return &api.TranscribeResponse{Transcript: f.transcript, Success: true, ID: "tr-1"}, nil
}

func (f *fakeAPI) Summarize(ctx context.Context, req *pb.SummarizeRequest) (*pb.SummarizeResult, error) {
	f.summarize = req
	return &pb.SummarizeResult{Summary: "Prices agreed.\nShip in May."}, nil
}

func (f *fakeAPI) Upload(ctx context.Context, activityID, fileName, mimeType string, data []byte) (*filesEntity.UploadResponse, error) {
	return &filesEntity.UploadResponse{
		ID:           "file-1",
		URL:          "https://cdn/" + activityID + "/" + fileName,
		OriginalName: fileName,
		Size:         len(data),
		Type:         mimeType,
		Success:      true,
	}, nil
}

func (f *fakeAPI) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

func (f *fakeAPI) lastDoc(t *testing.T) Document {
	t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.saves)
	var doc Document
	require.NoError(t, json.Unmarshal(f.saves[len(f.saves)-1].Content, &doc))
	return doc
}

type fakeStream struct {
	once   sync.Once
	closed chan struct{}
}

func (s *fakeStream) Format() media.AudioFormat {
	return media.AudioFormat{SampleRate: 16000, Channels: 1}
}

func (s *fakeStream) Read() ([]byte, error) {
	<-s.closed
	return nil, io.EOF
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

	// opening and gate hold Open until the test releases it
	opening chan struct{}
	gate    chan struct{}
}

func (a *fakeAudio) Open(ctx context.Context) (media.AudioStream, error) {
	if a.opening != nil {
		a.opening <- struct{}{}
	}
	if a.gate != nil {
		<-a.gate
	}
	if a.err != nil {
		return nil, a.err
	}
	return a.stream, nil
}

type fakeVideoStream struct {
	mu     sync.Mutex
	closed bool
}

func (s *fakeVideoStream) Frame(ctx context.Context) ([]byte, error) {
	return []byte{0xff, 0xd8, 0xff, 0xd9}, nil
}

func (s *fakeVideoStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeVideoStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeVideo struct {
	mu      sync.Mutex
	streams []*fakeVideoStream
	opening chan struct{}
	gate    chan struct{}
}

func (v *fakeVideo) Open(ctx context.Context, facing media.Facing) (media.VideoStream, error) {
	if v.opening != nil {
		v.opening <- struct{}{}
	}
	if v.gate != nil {
		<-v.gate
	}
	s := &fakeVideoStream{}
	v.mu.Lock()
	v.streams = append(v.streams, s)
	v.mu.Unlock()
	return s, nil
}

type fakeTranscriber struct{ text string }

func (t *fakeTranscriber) Feed([]byte)         {}
func (t *fakeTranscriber) Transcript() string { return t.text }
func (t *fakeTranscriber) Close() error       { return nil }

type fixture struct {
	api     *fakeAPI
	clock   *clock.Fake
	audio   *fakeAudio
	video   *fakeVideo
	tr      *fakeTranscriber
	manager *media.Manager
	c       *Controller
}

func newFixture(t *testing.T, configure ...func(*Options)) *fixture {
	t.Helper()

	f := &fixture{
		api:   &fakeAPI{},
		clock: clock.NewFake(t0),
		audio: &fakeAudio{stream: &fakeStream{closed: make(chan struct{})}},
		video: &fakeVideo{},
		tr:    &fakeTranscriber{},
	}
	manager := media.NewManager(media.Options{
		Audio:          f.audio,
		Video:          f.video,
		NewTranscriber: func() media.Transcriber { return f.tr },
		Clock:          f.clock,
		Log:            logger.Discard(),
	})
	t.Cleanup(manager.Close)
	f.manager = manager

	opts := Options{
		API:        f.api,
		ActivityID: "act-1",
		UserID:     "user-1",
		UserName:   "Daniel",
		Title:      "Cooxupé visit",
		Meeting:    t0,
		Companies: []Company{
			{ID: "c1", Name: "Cooxupé", Representatives: []string{"Ana", "Rui"}},
			{ID: "c2", Name: "Volcafe"},
		},
		Media: manager,
		Clock: f.clock,
		Log:   logger.Discard(),
	}
	for _, fn := range configure {
		fn(&opts)
	}
	f.c = New(opts)
	return f
}

func (f *fixture) open(t *testing.T) {
	t.Helper()
	require.NoError(t, f.c.Open(context.Background()))
}

func TestOpenWithoutNotesUsesTemplate(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	doc := f.c.Document()
	assert.Equal(t,
		"<h3>Cooxupé visit</h3><p><strong>Monday, March 10, 09:00 AM</strong></p>"+
			"<p><strong>Companies Present:</strong><br>Cooxupé (Ana, Rui)<br>Volcafe</p>"+
			"<p><br></p><p>Meeting notes...</p>",
		doc.HTML)
	assert.Equal(t, "Cooxupé visit", doc.PlainText)

	assert.False(t, f.c.Dirty())
	assert.Empty(t, f.c.Status().NoteID)
	assert.Zero(t, f.clock.Pending())

	f.clock.Advance(time.Minute)
	assert.Zero(t, f.api.saveCount())
}

func TestOpenExistingNote(t *testing.T) {
	f := newFixture(t)
	updated := t0.Add(-time.Hour)
	f.api.notes = []*entity.Note{
		{ID: "n-other", UserID: "user-2", Content: json.RawMessage(`{"html":"<p>theirs</p>"}`)},
		{ID: "n-own", UserID: "user-1", UpdatedAt: updated,
			Content: json.RawMessage(`{"html":"<p>mine</p>","plainText":"mine","media":[` +
				`{"id":"b","timestamp":"2025-03-10T08:00:02Z","type":"image"},` +
				`{"id":"a","timestamp":"2025-03-10T08:00:01Z","type":"image"}]}`)},
	}
	f.open(t)

	doc := f.c.Document()
	assert.Equal(t, "<p>mine</p>", doc.HTML)
	require.Len(t, doc.Media, 2)
	assert.Equal(t, "a", doc.Media[0].ID)

	status := f.c.Status()
	assert.Equal(t, "n-own", status.NoteID)
	assert.Equal(t, updated, status.LastSaved)

	others := f.c.Others()
	require.Len(t, others, 1)
	assert.Equal(t, "n-other", others[0].ID)
}

func TestOpenLegacyTextNote(t *testing.T) {
	f := newFixture(t)
	f.api.notes = []*entity.Note{
		{ID: "n1", UserID: "user-1", Content: json.RawMessage(`"line one\nline <two>"`)},
	}
	f.open(t)

	doc := f.c.Document()
	assert.Equal(t, "line one<br>line &lt;two&gt;", doc.HTML)
	assert.Equal(t, "line one\nline <two>", doc.PlainText)
}

func TestEditBeforeOpen(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.c.Edit("<p>x</p>"), ErrNotOpen)
}

func TestAutoSaveEveryFiveSeconds(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	require.NoError(t, f.c.Edit("<p>first</p>"))
	f.clock.Advance(5 * time.Second)

	require.Equal(t, 1, f.api.saveCount())
	assert.Equal(t, "<p>first</p>", f.api.lastDoc(t).HTML)
	assert.Equal(t, "first", f.api.lastDoc(t).PlainText)
	assert.Equal(t, t0.Add(5*time.Second), f.c.Status().LastSaved)
	assert.Equal(t, "note-1", f.c.Status().NoteID)
	assert.False(t, f.c.Dirty())
	assert.Zero(t, f.clock.Pending())

	require.NoError(t, f.c.Edit("<p>second</p>"))
	f.clock.Advance(2 * time.Second)
	assert.Equal(t, 1, f.api.saveCount())

	f.clock.Advance(3 * time.Second)
	assert.Equal(t, 2, f.api.saveCount())
	assert.Equal(t, "<p>second</p>", f.api.lastDoc(t).HTML)
}

func TestTypingDoesNotDelayFirstSave(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	for i := range 9 {
		require.NoError(t, f.c.Edit("<p>draft "+string(rune('a'+i))+"</p>"))
		f.clock.Advance(500 * time.Millisecond)
	}
	assert.Zero(t, f.api.saveCount())

	f.clock.Advance(500 * time.Millisecond)
	assert.Equal(t, 1, f.api.saveCount())
	assert.Equal(t, "<p>draft i</p>", f.api.lastDoc(t).HTML)
}

func TestDirtyFlag(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	ctx := context.Background()

	require.NoError(t, f.c.Edit("<p>a</p>"))
	assert.True(t, f.c.Dirty())

	f.api.saveErr = errors.New("offline")
	err := f.c.Save(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offline")
	assert.True(t, f.c.Dirty())
	assert.Equal(t, "offline", f.c.Status().Error)
	assert.Equal(t, "<p>a</p>", f.c.Document().HTML)

	f.api.saveErr = nil
	require.NoError(t, f.c.Save(ctx))
	assert.False(t, f.c.Dirty())
	assert.Empty(t, f.c.Status().Error)

	require.NoError(t, f.c.Edit("<p>b</p>"))
	assert.True(t, f.c.Dirty())
	assert.True(t, f.c.Status().Dirty)
}

func TestFailedAutoSaveRetriesOnNextTick(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	f.api.saveErr = errors.New("offline")

	require.NoError(t, f.c.Edit("<p>a</p>"))
	f.clock.Advance(5 * time.Second)
	assert.Equal(t, 1, f.api.saveCount())
	assert.True(t, f.c.Dirty())
	assert.Equal(t, "offline", f.c.Status().Error)

	f.clock.Advance(5 * time.Second)
	assert.Equal(t, 2, f.api.saveCount())

	f.api.saveErr = nil
	f.clock.Advance(5 * time.Second)
	assert.Equal(t, 3, f.api.saveCount())
	assert.False(t, f.c.Dirty())
	assert.Zero(t, f.clock.Pending())
}

func TestTickDuringManualSaveIsDeferred(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	f.api.gate = make(chan struct{})
	f.api.started = make(chan struct{}, 4)

	require.NoError(t, f.c.Edit("<p>a</p>"))

	done := make(chan error, 1)
	go func() { done <- f.c.Save(context.Background()) }()
	<-f.api.started

	f.clock.Advance(5 * time.Second)
	assert.EqualValues(t, 1, f.api.inFlight.Load())

	close(f.api.gate)
	require.NoError(t, <-done)

	f.clock.Advance(0)
	assert.EqualValues(t, 1, f.api.maxSeen.Load())
	assert.Equal(t, 1, f.api.saveCount())
	assert.False(t, f.c.Dirty())
}

func TestEditDuringSaveStaysDirty(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	f.api.gate = make(chan struct{})
	f.api.started = make(chan struct{}, 4)

	require.NoError(t, f.c.Edit("<p>a</p>"))

	done := make(chan error, 1)
	go func() { done <- f.c.Save(context.Background()) }()
	<-f.api.started

	require.NoError(t, f.c.Edit("<p>ab</p>"))
	close(f.api.gate)
	require.NoError(t, <-done)

	assert.True(t, f.c.Dirty())
	assert.Equal(t, 1, f.clock.Pending())

	f.clock.Advance(5 * time.Second)
	assert.Equal(t, 2, f.api.saveCount())
	assert.Equal(t, "<p>ab</p>", f.api.lastDoc(t).HTML)
	assert.False(t, f.c.Dirty())
}

func TestTranscriptReplacesLivePlaceholder(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	base := f.c.Document().HTML

	f.c.SetLiveTranscript("prices are")
	assert.Contains(t, f.c.Document().HTML, "Live transcript: prices are")
	assert.False(t, f.c.Dirty())

	f.c.SetLiveTranscript("prices are up")
	assert.NotContains(t, f.c.Document().HTML, "Live transcript: prices are<")

	require.NoError(t, f.c.AddMedia(media.Entry{
		ID:           "img",
		Timestamp:    t0.Add(5 * time.Second),
		Type:         media.EntryImage,
		RelativeTime: "0:05",
	}))
	require.NoError(t, f.c.AddMedia(media.Entry{
		ID:           "tr",
		Timestamp:    t0.Add(2 * time.Second),
		Type:         media.EntryTranscript,
		Text:         "prices are up <10%>",
		RelativeTime: "0:02",
	}))

	doc := f.c.Document()
	assert.Equal(t, base+
		`<div class="transcript"><p><strong>Transcript (0:02)</strong></p><p>prices are up &lt;10%&gt;</p></div>`,
		doc.HTML)
	assert.Contains(t, doc.PlainText, "prices are up <10%>")
	require.Len(t, doc.Media, 2)
	assert.Equal(t, "tr", doc.Media[0].ID)
	assert.Equal(t, "img", doc.Media[1].ID)
	assert.Equal(t, "prices are up <10%>", f.c.Transcript())
	assert.True(t, f.c.Dirty())
}

func TestLiveTranscriptIsNotSaved(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	require.NoError(t, f.c.Edit("<p>a</p>"))
	f.c.SetLiveTranscript("hello")
	require.NoError(t, f.c.Save(context.Background()))

	assert.Equal(t, "<p>a</p>", f.api.lastDoc(t).HTML)
	assert.Contains(t, f.c.Document().HTML, "Live transcript: hello")
}

func TestRecording(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	f.tr.text = "harvest starts in May"
	ctx := context.Background()

	require.NoError(t, f.c.StartRecording(ctx))
	require.NotNil(t, f.c.Recording())
	f.clock.Advance(10 * time.Second)

	entries, err := f.c.StopRecording(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "0:10", entries[0].RelativeTime)
	assert.Equal(t, "0:10", entries[1].RelativeTime)
	assert.True(t, f.audio.stream.isClosed())
	assert.Nil(t, f.c.Recording())

	doc := f.c.Document()
	assert.Len(t, doc.Media, 2)
	assert.Contains(t, doc.HTML, "Transcript (0:10)")
	assert.True(t, f.c.Dirty())

	_, err = f.c.StopRecording(ctx)
	assert.ErrorIs(t, err, ErrNotRecording)
}

func TestRecordingTranscribedByServer(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.TranscribeRecordings = true })
	f.open(t)
	f.api.transcript = "transcribed later"
	ctx := context.Background()

	require.NoError(t, f.c.StartRecording(ctx))
	f.clock.Advance(3 * time.Second)

	entries, err := f.c.StopRecording(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, media.EntryTranscript, entries[1].Type)
	assert.Equal(t, "transcribed later", entries[1].Text)
	assert.Equal(t, "tr-1", entries[1].ID)
	assert.Equal(t, "0:03", entries[1].RelativeTime)
}

func TestRecordingPermissionDenied(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	f.audio.err = media.ErrPermissionDenied

	err := f.c.StartRecording(context.Background())
	assert.ErrorIs(t, err, media.ErrPermissionDenied)
	assert.Nil(t, f.c.Recording())
	assert.Contains(t, f.c.Status().MediaError, "privacy settings")
	assert.Zero(t, f.clock.Pending())

	assert.NoError(t, f.c.Edit("<p>still usable</p>"))
}

func TestCloseReleasesRecordingBeforeSaving(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	f.tr.text = "closing remarks"

	require.NoError(t, f.c.StartRecording(context.Background()))
	require.NoError(t, f.c.Edit("<p>notes</p>"))
	f.clock.Advance(4 * time.Second)

	var releasedFirst bool
	f.api.onSave = func() { releasedFirst = f.audio.stream.isClosed() }

	require.NoError(t, f.c.Close(context.Background()))
	assert.True(t, releasedFirst)
	assert.Equal(t, 1, f.api.saveCount())

	doc := f.api.lastDoc(t)
	assert.Len(t, doc.Media, 2)
	assert.Contains(t, doc.HTML, "closing remarks")
	assert.Zero(t, f.clock.Pending())

	assert.ErrorIs(t, f.c.Edit("<p>late</p>"), ErrClosed)
	assert.NoError(t, f.c.Close(context.Background()))
}

func TestCloseFailedSaveStillReleases(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	f.api.saveErr = errors.New("offline")

	require.NoError(t, f.c.StartRecording(context.Background()))
	err := f.c.Close(context.Background())
	require.Error(t, err)
	assert.True(t, f.audio.stream.isClosed())
}

func TestCloseDuringMicrophoneStartReleasesIt(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	f.audio.opening = make(chan struct{}, 1)
	f.audio.gate = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- f.c.StartRecording(context.Background()) }()
	<-f.audio.opening

	require.NoError(t, f.c.Close(context.Background()))
	close(f.audio.gate)

	assert.ErrorIs(t, <-done, ErrClosed)
	assert.True(t, f.audio.stream.isClosed())
	assert.Nil(t, f.c.Recording())
	assert.Nil(t, f.manager.Recording())
	assert.Zero(t, f.clock.Pending())
}

func TestCloseDuringCameraStartReleasesIt(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	f.video.opening = make(chan struct{}, 1)
	f.video.gate = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.c.CapturePhoto(context.Background())
		done <- err
	}()
	<-f.video.opening

	require.NoError(t, f.c.Close(context.Background()))
	close(f.video.gate)

	assert.ErrorIs(t, <-done, ErrClosed)
	f.video.mu.Lock()
	defer f.video.mu.Unlock()
	require.Len(t, f.video.streams, 1)
	assert.True(t, f.video.streams[0].isClosed())
	assert.Zero(t, f.api.saveCount())
}

func TestCapturePhotoStartsCameraOnce(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	ctx := context.Background()

	first, err := f.c.CapturePhoto(ctx)
	require.NoError(t, err)
	_, err = f.c.CapturePhoto(ctx)
	require.NoError(t, err)

	assert.Equal(t, media.EntryImage, first.Type)
	assert.Len(t, f.c.Document().Media, 2)
	assert.True(t, f.c.Dirty())

	f.video.mu.Lock()
	require.Len(t, f.video.streams, 1)
	stream := f.video.streams[0]
	f.video.mu.Unlock()

	require.NoError(t, f.c.StopCamera())
	assert.True(t, stream.isClosed())
}

func TestCloseWhenClean(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	require.NoError(t, f.c.Close(context.Background()))
	assert.Zero(t, f.api.saveCount())
}

func TestAttach(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	a, err := f.c.Attach(context.Background(), "contract.pdf", "application/pdf", []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/act-1/contract.pdf", a.URL)
	assert.Equal(t, 4, a.Size)
	assert.Equal(t, t0, a.UploadedAt)

	doc := f.c.Document()
	require.Len(t, doc.Attachments, 1)
	assert.Equal(t, "contract.pdf", doc.Attachments[0].Name)
	assert.True(t, f.c.Dirty())
}

func TestSummarize(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	ctx := context.Background()

	_, err := f.c.Summarize(ctx)
	assert.ErrorIs(t, err, ErrNoTranscript)

	require.NoError(t, f.c.AddMedia(media.Entry{ID: "t1", Timestamp: t0, Type: media.EntryTranscript, Text: "first"}))
	require.NoError(t, f.c.AddMedia(media.Entry{ID: "t2", Timestamp: t0.Add(time.Minute), Type: media.EntryTranscript, Text: "second"}))

	res, err := f.c.Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Prices agreed.\nShip in May.", res.Summary)

	req := f.api.summarize
	require.NotNil(t, req)
	assert.Equal(t, "first\n\nsecond", req.Transcript)
	assert.Equal(t, "Cooxupé visit", req.Context.ActivityTitle)
	assert.Equal(t, []string{"Cooxupé", "Volcafe"}, req.Context.Companies)

	assert.Contains(t, f.c.Document().HTML,
		`<div class="summary"><h4>AI Summary</h4><p>Prices agreed.</p><p>Ship in May.</p></div>`)
}

func TestDeleteOwnNote(t *testing.T) {
	f := newFixture(t)
	f.api.notes = []*entity.Note{
		{ID: "n-own", UserID: "user-1", Content: json.RawMessage(`{"html":"<p>mine</p>"}`)},
		{ID: "n-other", UserID: "user-2"},
	}
	f.open(t)
	require.NoError(t, f.c.Edit("<p>mine, edited</p>"))

	require.NoError(t, f.c.Delete(context.Background(), "n-own"))
	assert.Equal(t, []string{"n-own"}, f.api.deleted)
	assert.Contains(t, f.c.Document().HTML, "Meeting notes...")
	assert.Empty(t, f.c.Status().NoteID)
	assert.False(t, f.c.Dirty())
	assert.Zero(t, f.clock.Pending())
	assert.Len(t, f.c.Others(), 1)

	require.NoError(t, f.c.Delete(context.Background(), "n-other"))
	assert.Empty(t, f.c.Others())
}

func TestStatusCallback(t *testing.T) {
	var mu sync.Mutex
	var seen []Status
	f := newFixture(t, func(o *Options) {
		o.OnStatus = func(s Status) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, s)
		}
	})
	f.open(t)

	require.NoError(t, f.c.Edit("<p>a</p>"))
	require.NoError(t, f.c.Save(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(seen), 4)
	assert.True(t, seen[len(seen)-2].IsSaving)
	last := seen[len(seen)-1]
	assert.False(t, last.IsSaving)
	assert.False(t, last.Dirty)
	assert.Equal(t, "note-1", last.NoteID)
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"plain", "plain"},
		{"<p>a</p><p>b</p>", "a\nb"},
		{"<h3>Title</h3><p><strong>Mon</strong></p>", "Title\nMon"},
		{"<p>one<br>two</p>", "one\ntwo"},
		{"<p>a &amp; b</p>", "a & b"},
		{"<ul><li> x </li><li>y</li></ul>", "x\ny"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PlainText(tt.in), tt.in)
	}
}
