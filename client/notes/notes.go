// Package notes keeps one user's meeting note for an activity, saving it in
// the background while it is dirty and folding captured media into it.
package notes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Danwoltrs/wolthers-travel-app-sub001/client/api"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/client/debounce"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/client/media"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/clock"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/logger"
	filesEntity "github.com/Danwoltrs/wolthers-travel-app-sub001/services/files/entity"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/services/notes/entity"
	pb "github.com/Danwoltrs/wolthers-travel-app-sub001/specs/asr"
)

const DefaultSaveInterval = 5 * time.Second

var (
	ErrNotOpen      = errors.New("notes are not open")
	ErrClosed       = errors.New("notes are closed")
	ErrNoTranscript = errors.New("no transcript to summarize")
	ErrNoMedia      = errors.New("media capture is not available")
	ErrNotRecording = errors.New("no recording is active")
)

type API interface {
	ListNotes(ctx context.Context, activityID string) ([]*entity.Note, error)
	SaveNote(ctx context.Context, activityID string, req *entity.SaveNoteRequest) (*entity.Note, error)
	DeleteNote(ctx context.Context, activityID, noteID string) error
	Transcribe(ctx context.Context, activityID, fileName, mimeType string, audio []byte) (*api.TranscribeResponse, error)
	Summarize(ctx context.Context, req *pb.SummarizeRequest) (*pb.SummarizeResult, error)
	Upload(ctx context.Context, activityID, fileName, mimeType string, data []byte) (*filesEntity.UploadResponse, error)
}

type Options struct {
	API        API
	ActivityID string
	UserID     string
	UserName   string
	Title      string
	Meeting    time.Time
	Companies  []Company
	Private    bool
	// Media is optional; without it recording and photos are unavailable.
	Media *media.Manager
	// TranscribeRecordings sends finished recordings without a live
	// transcript to the server for transcription.
	TranscribeRecordings bool
	Clock                clock.Clock
	Log                  *slog.Logger
	SaveInterval         time.Duration
	// Context is used by background saves.
	Context  context.Context
	OnStatus func(Status)
}

type Status struct {
	IsSaving  bool
	LastSaved time.Time
	Error     string
	Dirty     bool
	NoteID    string
	// MediaError is the remedy for the last capture failure.
	MediaError string
}

type snapshot struct {
	doc      Document
	revision uint64
	// force saves even when the revision is already stored.
	force bool
}

type Controller struct {
	api        API
	activityID string
	userID     string
	userName   string
	title      string
	meeting    time.Time
	companies  []Company
	private    bool
	media      *media.Manager
	transcribe bool
	clock      clock.Clock
	log        *slog.Logger
	interval   time.Duration
	onStatus   func(Status)
	saver      *debounce.Debouncer[snapshot]

	mu       sync.Mutex
	opened   bool
	closed   bool
	doc      Document
	others   []*entity.Note
	status   Status
	ticker   clock.Timer
	revision uint64
	acked    uint64
	live     string
	rec      *media.RecordingSession
	cam      *media.Camera
}

func New(opts Options) *Controller {
	c := &Controller{
		api:        opts.API,
		activityID: opts.ActivityID,
		userID:     opts.UserID,
		userName:   opts.UserName,
		title:      opts.Title,
		meeting:    opts.Meeting,
		companies:  opts.Companies,
		private:    opts.Private,
		media:      opts.Media,
		transcribe: opts.TranscribeRecordings,
		clock:      clock.OrReal(opts.Clock),
		log:        logger.OrDefault(opts.Log).With(slog.String("activity_id", opts.ActivityID)),
		interval:   opts.SaveInterval,
		onStatus:   opts.OnStatus,
	}
	if c.interval <= 0 {
		c.interval = DefaultSaveInterval
	}

	c.saver = debounce.New(c.save, debounce.Options{
		Clock:   c.clock,
		Log:     c.log,
		Context: opts.Context,
	})
	return c
}

// Open loads the caller's note for the activity, or starts one from the
// meeting template. Other users' notes are kept as read-only siblings.
func (c *Controller) Open(ctx context.Context) error {
	list, err := c.api.ListNotes(ctx, c.activityID)
	if err != nil {
		return fmt.Errorf("failed to load notes: %w", err)
	}

	var own *entity.Note
	others := make([]*entity.Note, 0, len(list))
	for _, n := range list {
		if own == nil && n.UserID == c.userID && n.IsPrivate == c.private {
			own = n
			continue
		}
		others = append(others, n)
	}

	doc := Template(c.title, c.meeting, c.companies)
	var lastSaved time.Time
	if own != nil {
		if doc, err = DecodeDocument(own.Content); err != nil {
			return err
		}
		lastSaved = own.UpdatedAt
	}

	c.mu.Lock()
	c.opened = true
	c.doc = doc
	c.others = others
	c.status = Status{LastSaved: lastSaved}
	if own != nil {
		c.status.NoteID = own.ID
	}
	status := c.status
	c.mu.Unlock()

	c.notify(status)
	c.log.Info("notes opened",
		slog.Bool("existing", own != nil),
		slog.Int("others", len(others)))
	return nil
}

func (c *Controller) Document() Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc.clone()
}

// Others returns the other users' notes for the activity.
func (c *Controller) Others() []*entity.Note {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*entity.Note(nil), c.others...)
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Dirty reports whether the note has edits the server has not stored.
func (c *Controller) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirtyLocked()
}

func (c *Controller) dirtyLocked() bool {
	return c.revision != c.acked
}

func (c *Controller) usableLocked() error {
	switch {
	case c.closed:
		return ErrClosed
	case !c.opened:
		return ErrNotOpen
	}
	return nil
}

// Edit replaces the note body.
func (c *Controller) Edit(body string) error {
	c.mu.Lock()
	if err := c.usableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.doc.HTML = body
	c.doc.PlainText = PlainText(body)
	status := c.markDirtyLocked()
	c.mu.Unlock()

	c.notify(status)
	return nil
}

// AddElement appends a structured insert such as a table.
func (c *Controller) AddElement(element json.RawMessage) error {
	c.mu.Lock()
	if err := c.usableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.doc.Elements = append(c.doc.Elements, element)
	status := c.markDirtyLocked()
	c.mu.Unlock()

	c.notify(status)
	return nil
}

// AddMedia puts a captured entry on the timeline. Transcripts also replace
// the live transcript in the body.
func (c *Controller) AddMedia(e media.Entry) error {
	c.mu.Lock()
	if err := c.usableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	status := c.addMediaLocked(e)
	c.mu.Unlock()

	c.notify(status)
	return nil
}

func (c *Controller) addMediaLocked(e media.Entry) Status {
	c.doc.Media = append(c.doc.Media, e)
	media.SortTimeline(c.doc.Media)

	if e.Type == media.EntryTranscript {
		c.live = ""
		c.doc.HTML = removeLiveTranscript(c.doc.HTML) + transcriptBlock(e)
		c.doc.PlainText = PlainText(c.doc.HTML)
	}
	return c.markDirtyLocked()
}

// SetLiveTranscript shows the in-progress transcript in the body. It is
// not persisted on its own and does not mark the note dirty.
func (c *Controller) SetLiveTranscript(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.usableLocked() != nil || text == c.live {
		return
	}
	c.live = text
	body := removeLiveTranscript(c.doc.HTML)
	if text != "" {
		body += liveBlock(text)
	}
	c.doc.HTML = body
}

// markDirtyLocked records an edit and starts the save ticker when the note
// turns dirty.
func (c *Controller) markDirtyLocked() Status {
	c.revision++
	c.status.Dirty = true
	if c.ticker == nil && !c.closed {
		c.ticker = c.clock.AfterFunc(c.interval, c.tick)
	}
	return c.status
}

func (c *Controller) stopTickerLocked() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
}

func (c *Controller) tick() {
	c.mu.Lock()
	c.ticker = nil
	if c.closed || !c.dirtyLocked() {
		c.mu.Unlock()
		return
	}
	snap := c.snapshotLocked()
	c.ticker = c.clock.AfterFunc(c.interval, c.tick)
	c.mu.Unlock()

	c.saver.Schedule(snap, 0)
}

func (c *Controller) snapshotLocked() snapshot {
	doc := c.doc.clone()
	doc.HTML = removeLiveTranscript(doc.HTML)
	return snapshot{doc: doc, revision: c.revision}
}

// Save stores the note now and reports the outcome.
func (c *Controller) Save(ctx context.Context) error {
	c.mu.Lock()
	if err := c.usableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	snap := c.snapshotLocked()
	snap.force = true
	c.mu.Unlock()

	return c.saver.Flush(ctx, snap)
}

// save is the persistence effect shared by the ticker, Save and Close.
func (c *Controller) save(ctx context.Context, snap snapshot) error {
	c.mu.Lock()
	stored := snap.revision <= c.acked
	c.mu.Unlock()
	if stored && !snap.force {
		return nil
	}

	content, err := json.Marshal(snap.doc)
	if err != nil {
		return fmt.Errorf("failed to encode note: %w", err)
	}
	access, err := json.Marshal(c.companies)
	if err != nil {
		return fmt.Errorf("failed to encode company access: %w", err)
	}

	c.mu.Lock()
	c.status.IsSaving = true
	status := c.status
	c.mu.Unlock()
	c.notify(status)

	note, err := c.api.SaveNote(ctx, c.activityID, &entity.SaveNoteRequest{
		Content:       content,
		CompanyAccess: access,
		IsPrivate:     c.private,
		CreatedByName: c.userName,
	})

	c.mu.Lock()
	c.status.IsSaving = false
	if err != nil {
		c.status.Error = err.Error()
		status = c.status
		c.mu.Unlock()
		c.notify(status)
		return fmt.Errorf("failed to save note: %w", err)
	}

	if snap.revision > c.acked {
		c.acked = snap.revision
	}
	c.status.NoteID = note.ID
	c.status.LastSaved = c.clock.Now()
	c.status.Error = ""
	c.status.Dirty = c.dirtyLocked()
	if !c.status.Dirty {
		c.stopTickerLocked()
	}
	status = c.status
	c.mu.Unlock()

	c.notify(status)
	c.log.Debug("note saved",
		slog.String("note_id", note.ID),
		slog.Uint64("revision", snap.revision))
	return nil
}

// StartRecording starts capturing the microphone. A capture failure leaves
// the note usable and is reported in the status.
func (c *Controller) StartRecording(ctx context.Context) error {
	c.mu.Lock()
	if err := c.usableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()
	if c.media == nil {
		return ErrNoMedia
	}

	rec, err := c.media.StartMicrophone(ctx)

	c.mu.Lock()
	if err == nil && c.closed {
		c.mu.Unlock()
		if _, serr := c.media.StopMicrophone(rec); serr != nil {
			c.log.Warn("failed to release microphone", slog.String("error", serr.Error()))
		}
		return ErrClosed
	}
	if err != nil {
		c.status.MediaError = media.Remedy(err)
	} else {
		c.rec = rec
		c.status.MediaError = ""
	}
	status := c.status
	c.mu.Unlock()

	c.notify(status)
	return err
}

// Recording returns the active recording, or nil.
func (c *Controller) Recording() *media.RecordingSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec
}

// StopRecording ends the recording and adds what it produced to the note.
func (c *Controller) StopRecording(ctx context.Context) ([]media.Entry, error) {
	c.mu.Lock()
	rec := c.rec
	c.rec = nil
	c.mu.Unlock()
	if rec == nil {
		return nil, ErrNotRecording
	}

	entries, err := c.media.StopMicrophone(rec)
	if err != nil {
		return nil, err
	}
	entries = c.transcribeIfMissing(ctx, entries)

	c.mu.Lock()
	if err := c.usableLocked(); err != nil {
		c.mu.Unlock()
		return entries, err
	}
	var status Status
	for _, e := range entries {
		status = c.addMediaLocked(e)
	}
	c.mu.Unlock()

	c.notify(status)
	return entries, nil
}

func (c *Controller) transcribeIfMissing(ctx context.Context, entries []media.Entry) []media.Entry {
	if !c.transcribe {
		return entries
	}

	var audio *media.Entry
	for i := range entries {
		switch entries[i].Type {
		case media.EntryTranscript:
			return entries
		case media.EntryAudio:
			audio = &entries[i]
		}
	}
	if audio == nil {
		return entries
	}

	res, err := c.api.Transcribe(ctx, c.activityID, "recording.wav", audio.MIME, audio.Content)
	if err != nil {
		c.log.Warn("failed to transcribe recording", slog.String("error", err.Error()))
		return entries
	}
	text := strings.TrimSpace(res.Text())
	if text == "" {
		return entries
	}

	return append(entries, media.Entry{
		ID:           res.ID,
		Timestamp:    audio.Timestamp,
		Type:         media.EntryTranscript,
		Text:         text,
		MIME:         "text/plain",
		Description:  "Meeting transcript",
		RelativeTime: audio.RelativeTime,
	})
}

// CapturePhoto snapshots the camera, starting it on first use.
func (c *Controller) CapturePhoto(ctx context.Context) (media.Entry, error) {
	c.mu.Lock()
	if err := c.usableLocked(); err != nil {
		c.mu.Unlock()
		return media.Entry{}, err
	}
	cam := c.cam
	c.mu.Unlock()
	if c.media == nil {
		return media.Entry{}, ErrNoMedia
	}

	if cam == nil {
		var err error
		if cam, err = c.media.StartCamera(ctx); err != nil {
			c.mu.Lock()
			c.status.MediaError = media.Remedy(err)
			status := c.status
			c.mu.Unlock()
			c.notify(status)
			return media.Entry{}, err
		}
		c.mu.Lock()
		switch {
		case c.closed:
			c.mu.Unlock()
			if serr := c.media.StopCamera(cam); serr != nil {
				c.log.Warn("failed to release camera", slog.String("error", serr.Error()))
			}
			return media.Entry{}, ErrClosed
		case c.cam != nil:
			// another capture started the camera first
			started := cam
			cam = c.cam
			c.mu.Unlock()
			_ = c.media.StopCamera(started)
		default:
			c.cam = cam
			c.mu.Unlock()
		}
	}

	entry, err := c.media.CaptureFrame(ctx, cam)
	if err != nil {
		return media.Entry{}, err
	}
	return entry, c.AddMedia(entry)
}

func (c *Controller) StopCamera() error {
	c.mu.Lock()
	cam := c.cam
	c.cam = nil
	c.mu.Unlock()

	if cam == nil || c.media == nil {
		return nil
	}
	return c.media.StopCamera(cam)
}

// Attach uploads a file and lists it on the note.
func (c *Controller) Attach(ctx context.Context, name, mimeType string, data []byte) (Attachment, error) {
	c.mu.Lock()
	err := c.usableLocked()
	c.mu.Unlock()
	if err != nil {
		return Attachment{}, err
	}

	res, err := c.api.Upload(ctx, c.activityID, name, mimeType, data)
	if err != nil {
		return Attachment{}, fmt.Errorf("failed to upload %s: %w", name, err)
	}

	a := Attachment{
		ID:         res.ID,
		Name:       res.OriginalName,
		URL:        res.URL,
		Size:       res.Size,
		Type:       res.Type,
		UploadedAt: c.clock.Now(),
	}

	c.mu.Lock()
	c.doc.Attachments = append(c.doc.Attachments, a)
	status := c.markDirtyLocked()
	c.mu.Unlock()

	c.notify(status)
	return a, nil
}

// Transcript joins the transcript entries of the timeline.
func (c *Controller) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var parts []string
	for _, e := range c.doc.Media {
		if e.Type == media.EntryTranscript && strings.TrimSpace(e.Text) != "" {
			parts = append(parts, strings.TrimSpace(e.Text))
		}
	}
	return strings.Join(parts, "\n\n")
}

// Summarize asks for a summary of the note's transcripts and appends it to
// the body.
func (c *Controller) Summarize(ctx context.Context) (*pb.SummarizeResult, error) {
	c.mu.Lock()
	if err := c.usableLocked(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.mu.Unlock()

	transcript := c.Transcript()
	if transcript == "" {
		return nil, ErrNoTranscript
	}

	names := make([]string, 0, len(c.companies))
	for _, co := range c.companies {
		names = append(names, co.Name)
	}
	res, err := c.api.Summarize(ctx, &pb.SummarizeRequest{
		Transcript: transcript,
		Context: &pb.SummaryContext{
			ActivityTitle: c.title,
			MeetingDate:   c.meeting.Format(MeetingDateLayout),
			Companies:     names,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to summarize transcript: %w", err)
	}

	c.mu.Lock()
	c.doc.HTML = removeLiveTranscript(c.doc.HTML) + summaryBlock(res.Summary)
	c.doc.PlainText = PlainText(c.doc.HTML)
	status := c.markDirtyLocked()
	c.mu.Unlock()

	c.notify(status)
	return res, nil
}

// Delete removes a note. Deleting the caller's own note starts a fresh
// document from the template.
func (c *Controller) Delete(ctx context.Context, noteID string) error {
	if err := c.api.DeleteNote(ctx, c.activityID, noteID); err != nil {
		return fmt.Errorf("failed to delete note %s: %w", noteID, err)
	}

	c.mu.Lock()
	if noteID == c.status.NoteID {
		c.doc = Template(c.title, c.meeting, c.companies)
		c.acked = c.revision
		c.live = ""
		c.stopTickerLocked()
		c.status = Status{}
	} else {
		kept := c.others[:0]
		for _, n := range c.others {
			if n.ID != noteID {
				kept = append(kept, n)
			}
		}
		c.others = kept
	}
	status := c.status
	c.mu.Unlock()

	c.notify(status)
	return nil
}

// Close stops any recording first, then saves pending edits. Hardware is
// released even when the save fails.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	// devices acquired from here on are released by whoever acquired them
	c.closed = true
	rec, cam := c.rec, c.cam
	c.rec, c.cam = nil, nil
	c.stopTickerLocked()
	c.mu.Unlock()

	if rec != nil {
		entries, err := c.media.StopMicrophone(rec)
		if err != nil {
			c.log.Warn("recording lost on close", slog.String("error", err.Error()))
		}
		c.mu.Lock()
		if c.opened {
			for _, e := range entries {
				c.addMediaLocked(e)
			}
		}
		c.mu.Unlock()
	}
	if cam != nil {
		if err := c.media.StopCamera(cam); err != nil {
			c.log.Warn("failed to stop camera", slog.String("error", err.Error()))
		}
	}

	c.mu.Lock()
	c.stopTickerLocked()
	dirty := c.opened && c.dirtyLocked()
	snap := c.snapshotLocked()
	snap.force = true
	c.mu.Unlock()

	c.saver.Cancel()
	var err error
	if dirty {
		err = c.saver.Flush(ctx, snap)
	}
	c.saver.Close()

	c.log.Info("notes closed", slog.Bool("saved", dirty && err == nil))
	return err
}

func (c *Controller) notify(status Status) {
	if c.onStatus != nil {
		c.onStatus(status)
	}
}
