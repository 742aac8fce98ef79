package main

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Danwoltrs/wolthers-travel-app-sub001/client/media"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/client/notes"
)

const notesHelp = `commands:
  write TEXT        append a paragraph
  body HTML         replace the whole note
  record | stop     start or stop recording the microphone
  photo             capture a camera frame
  camera-off        release the camera
  attach PATH       upload a file to the note
  summarize         summarize the transcripts with AI
  save | status | show | others
  delete NOTE_ID    delete a note
  quit              save and exit`

type notesOpenOptions struct {
	title      string
	meeting    string
	companies  []string
	private    bool
	transcribe bool
	noMedia    bool
	interval   time.Duration
}

func newNotesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notes",
		Short: "Take and manage meeting notes for an activity",
	}
	cmd.AddCommand(newNotesOpenCommand(ctx))
	cmd.AddCommand(newNotesListCommand(ctx))
	cmd.AddCommand(newNotesDeleteCommand(ctx))
	return cmd
}

func newNotesOpenCommand(ctx *commandContext) *cobra.Command {
	var opts notesOpenOptions

	cmd := &cobra.Command{
		Use:   "open ACTIVITY_ID",
		Short: "Edit your note for an activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.openNotes(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.title, "title", "Meeting", "Activity title used for a new note")
	cmd.Flags().StringVar(&opts.meeting, "meeting", "", "Meeting time as YYYY-MM-DD HH:MM (default now)")
	cmd.Flags().StringArrayVar(&opts.companies, "company", nil, "Company present, as NAME or NAME:REP,REP (repeatable)")
	cmd.Flags().BoolVar(&opts.private, "private", false, "Edit your private note")
	cmd.Flags().BoolVar(&opts.transcribe, "transcribe", true, "Transcribe recordings on the server")
	cmd.Flags().BoolVar(&opts.noMedia, "no-media", false, "Disable microphone and camera")
	cmd.Flags().DurationVar(&opts.interval, "autosave-interval", notes.DefaultSaveInterval, "How often unsaved edits are saved")
	return cmd
}

func (c *commandContext) openNotes(cmd *cobra.Command, activityID string, opts notesOpenOptions) error {
	client, err := c.client(cmd)
	if err != nil {
		return err
	}
	who, err := c.identity()
	if err != nil {
		return err
	}

	meeting := time.Now()
	if opts.meeting != "" {
		if meeting, err = time.ParseInLocation("2006-01-02 15:04", opts.meeting, time.Local); err != nil {
			return fmt.Errorf("bad --meeting: %w", err)
		}
	}

	log := c.logger(cmd)
	out := &syncWriter{w: cmd.OutOrStdout()}

	var manager *media.Manager
	if !opts.noMedia {
		capture := c.capture()
		manager = media.NewManager(media.Options{
			Audio: media.FFmpegAudio{FFmpeg: capture},
			Video: media.FFmpegVideo{FFmpeg: capture},
			Log:   log,
		})
		defer manager.Close()
	}

	ctl := notes.New(notes.Options{
		API:                  client,
		ActivityID:           activityID,
		UserID:               who.Subject,
		UserName:             who.Name,
		Title:                opts.title,
		Meeting:              meeting,
		Companies:            parseCompanies(opts.companies),
		Private:              opts.private,
		Media:                manager,
		TranscribeRecordings: opts.transcribe,
		Log:                  log,
		SaveInterval:         opts.interval,
		Context:              cmd.Context(),
		OnStatus: func(s notes.Status) {
			if s.Error != "" && !s.IsSaving {
				fmt.Fprintf(out, "autosave failed: %s\n", s.Error)
			}
		},
	})
	if err := ctl.Open(cmd.Context()); err != nil {
		return err
	}

	doc := ctl.Document()
	fmt.Fprintf(out, "%s\n\n", doc.PlainText)
	if n := len(ctl.Others()); n > 0 {
		fmt.Fprintf(out, "%d other note(s) on this activity. Type 'others' to read them.\n", n)
	}
	fmt.Fprintln(out, "Type 'help' for commands.")

	prompt := func() string {
		switch {
		case ctl.Recording() != nil:
			return "notes (rec)> "
		case ctl.Dirty():
			return "notes*> "
		}
		return "notes> "
	}
	err = runPrompt(cmd.Context(), newLineReader(cmd.InOrStdin()), out, prompt, func(ctx context.Context, verb, rest string) error {
		return notesCommand(ctx, out, ctl, verb, rest)
	})

	if cerr := ctl.Close(context.WithoutCancel(cmd.Context())); cerr != nil {
		return errors.Join(err, fmt.Errorf("final save: %w", cerr))
	}
	return err
}

func notesCommand(ctx context.Context, out io.Writer, ctl *notes.Controller, verb, rest string) error {
	switch verb {
	case "help":
		fmt.Fprintln(out, notesHelp)
	case "write":
		if rest == "" {
			return errors.New("usage: write TEXT")
		}
		return ctl.Edit(ctl.Document().HTML + "<p>" + html.EscapeString(rest) + "</p>")
	case "body":
		return ctl.Edit(rest)
	case "record":
		if err := ctl.StartRecording(ctx); err != nil {
			if remedy := media.Remedy(err); remedy != "" {
				return fmt.Errorf("%w. %s", err, remedy)
			}
			return err
		}
		fmt.Fprintln(out, "Recording. Type 'stop' to finish.")
	case "stop":
		entries, err := ctl.StopRecording(ctx)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Fprintf(out, "added %s at %s\n", e.Type, e.RelativeTime)
		}
	case "photo":
		e, err := ctl.CapturePhoto(ctx)
		if err != nil {
			if remedy := media.Remedy(err); remedy != "" {
				return fmt.Errorf("%w. %s", err, remedy)
			}
			return err
		}
		fmt.Fprintf(out, "added photo (%d bytes)\n", len(e.Content))
	case "camera-off":
		return ctl.StopCamera()
	case "attach":
		if rest == "" {
			return errors.New("usage: attach PATH")
		}
		data, err := os.ReadFile(rest)
		if err != nil {
			return err
		}
		a, err := ctl.Attach(ctx, filepath.Base(rest), contentType(rest, data), data)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "attached %s: %s\n", a.Name, a.URL)
	case "summarize":
		res, err := ctl.Summarize(ctx)
		if err != nil {
			return err
		}
		if res.Fallback {
			fmt.Fprintln(out, "(basic summary, AI unavailable)")
		}
		fmt.Fprintln(out, res.Summary)
	case "save":
		if err := ctl.Save(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "Saved.")
	case "status":
		s := ctl.Status()
		fmt.Fprintf(out, "dirty: %s\nrecording: %s\n", yesNo(ctl.Dirty()), yesNo(ctl.Recording() != nil))
		if !s.LastSaved.IsZero() {
			fmt.Fprintf(out, "last saved: %s\n", s.LastSaved.Local().Format(time.TimeOnly))
		}
		if s.Error != "" {
			fmt.Fprintf(out, "error: %s\n", s.Error)
		}
		if s.MediaError != "" {
			fmt.Fprintf(out, "media: %s\n", s.MediaError)
		}
	case "show":
		doc := ctl.Document()
		fmt.Fprintln(out, doc.PlainText)
		for _, e := range doc.Media {
			fmt.Fprintf(out, "  [%s] %s %s\n", e.RelativeTime, e.Type, e.Description)
		}
		for _, a := range doc.Attachments {
			fmt.Fprintf(out, "  attachment: %s %s\n", a.Name, a.URL)
		}
	case "others":
		for _, n := range ctl.Others() {
			doc, err := notes.DecodeDocument(n.Content)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "--- %s (%s)\n%s\n", n.CreatedByName, n.ID, doc.PlainText)
		}
	case "delete":
		if rest == "" {
			return errors.New("usage: delete NOTE_ID")
		}
		if err := ctl.Delete(ctx, rest); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted note %s\n", rest)
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q; type 'help'", verb)
	}
	return nil
}

func newNotesListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list ACTIVITY_ID",
		Short: "List the notes on an activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client(cmd)
			if err != nil {
				return err
			}
			list, err := client.ListNotes(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if ctx.flags.json {
				return writeJSON(cmd, list)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No notes.")
				return nil
			}

			rows := make([][]string, 0, len(list))
			for _, n := range list {
				preview := ""
				if doc, err := notes.DecodeDocument(n.Content); err == nil {
					preview = truncate(strings.ReplaceAll(doc.PlainText, "\n", " "), 40)
				}
				rows = append(rows, []string{
					n.ID,
					n.CreatedByName,
					yesNo(n.IsPrivate),
					n.UpdatedAt.Local().Format("2006-01-02 15:04"),
					preview,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Author", "Private", "Updated", "Preview"},
				rows,
				nil,
			))
			return nil
		},
	}
}

func newNotesDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ACTIVITY_ID NOTE_ID",
		Short: "Delete one of your notes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client(cmd)
			if err != nil {
				return err
			}
			if err := client.DeleteNote(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted note %s\n", args[1])
			return nil
		},
	}
}

// parseCompanies reads "Name" or "Name:Rep One,Rep Two".
func parseCompanies(values []string) []notes.Company {
	out := make([]notes.Company, 0, len(values))
	for _, v := range values {
		name, reps, _ := strings.Cut(v, ":")
		c := notes.Company{Name: strings.TrimSpace(name)}
		for _, r := range strings.Split(reps, ",") {
			if r = strings.TrimSpace(r); r != "" {
				c.Representatives = append(c.Representatives, r)
			}
		}
		if c.Name != "" {
			out = append(out, c)
		}
	}
	return out
}

func contentType(path string, data []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return http.DetectContentType(data)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
