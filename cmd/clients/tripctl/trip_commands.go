package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Danwoltrs/wolthers-travel-app-sub001/client/session"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/client/wizard"
)

const tripHelp = `commands:
  type convention|in_land|none   choose the trip type (step 1)
  title TEXT | description TEXT | subject TEXT
  company ID NAME                add a company
  participant NAME
  dates START END                YYYY-MM-DD
  budget AMOUNT
  convention ID
  day DATE [ACTIVITY; ACTIVITY]  add an itinerary day
  staff NAME | driver NAME | vehicle NAME
  next | back | save | status | show
  finalize                       commit the trip
  reset                          abandon this trip
  quit                           save meaningful progress and exit`

func newTripCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trip",
		Short: "Create, resume and manage trips",
	}
	cmd.AddCommand(newTripNewCommand(ctx))
	cmd.AddCommand(newTripResumeCommand(ctx))
	cmd.AddCommand(newTripDraftsCommand(ctx))
	cmd.AddCommand(newTripDeleteCommand(ctx))
	cmd.AddCommand(newTripFinalizeCommand(ctx))
	return cmd
}

func newTripNewCommand(ctx *commandContext) *cobra.Command {
	var delay time.Duration

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Start the trip creation wizard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, out, err := ctx.newWizard(cmd, delay)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "New trip. Type 'help' for commands.")
			return runWizard(cmd.Context(), cmd.InOrStdin(), out, w)
		},
	}
	cmd.Flags().DurationVar(&delay, "autosave-delay", wizard.DefaultDebounceDelay, "Quiet period before edits are saved")
	return cmd
}

func newTripResumeCommand(ctx *commandContext) *cobra.Command {
	var delay time.Duration

	cmd := &cobra.Command{
		Use:   "resume ACCESS_CODE",
		Short: "Continue a saved trip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, out, err := ctx.newWizard(cmd, delay)
			if err != nil {
				return err
			}
			res, err := w.Resume(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Resumed %q at step %d of %d", res.Trip.Title, w.Step(), w.State().TotalSteps())
			if !res.CanEdit {
				fmt.Fprint(out, " (view only)")
			}
			fmt.Fprintln(out)
			return runWizard(cmd.Context(), cmd.InOrStdin(), out, w)
		},
	}
	cmd.Flags().DurationVar(&delay, "autosave-delay", wizard.DefaultDebounceDelay, "Quiet period before edits are saved")
	return cmd
}

func newTripDraftsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "drafts",
		Short: "List your unfinished trips",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client(cmd)
			if err != nil {
				return err
			}
			res, err := client.ListDrafts(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.flags.json {
				return writeJSON(cmd, res)
			}
			if len(res.Drafts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No drafts.")
				return nil
			}

			rows := make([][]string, 0, len(res.Drafts))
			for _, d := range res.Drafts {
				rows = append(rows, []string{
					d.AccessCode,
					d.Title,
					string(d.TripType),
					strconv.Itoa(d.CurrentStep),
					strconv.Itoa(d.CompletionPercentage) + "%",
					d.UpdatedAt.Local().Format("2006-01-02 15:04"),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Code", "Title", "Type", "Step", "Done", "Updated"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
}

func newTripDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete TRIP_ID",
		Short: "Delete a draft trip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client(cmd)
			if err != nil {
				return err
			}
			if err := client.DeleteDraft(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted draft %s\n", args[0])
			return nil
		},
	}
}

func newTripFinalizeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "finalize TRIP_ID",
		Short: "Commit a draft trip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client(cmd)
			if err != nil {
				return err
			}
			res, err := client.FinalizeTrip(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if ctx.flags.json {
				return writeJSON(cmd, res)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		},
	}
}

func (c *commandContext) newWizard(cmd *cobra.Command, delay time.Duration) (*wizard.Controller, io.Writer, error) {
	client, err := c.client(cmd)
	if err != nil {
		return nil, nil, err
	}
	store, err := session.NewFileStore(c.config.StateDir, "wizard")
	if err != nil {
		return nil, nil, err
	}

	out := &syncWriter{w: cmd.OutOrStdout()}
	w := wizard.New(wizard.Options{
		API:           client,
		Session:       store,
		Log:           c.logger(cmd),
		DebounceDelay: delay,
		Context:       cmd.Context(),
		OnStatus: func(s wizard.SaveStatus) {
			if s.Error != "" && !s.IsSaving {
				fmt.Fprintf(out, "autosave failed: %s\n", s.Error)
			}
		},
	})
	return w, out, nil
}

func runWizard(ctx context.Context, in io.Reader, out io.Writer, w *wizard.Controller) error {
	prompt := func() string {
		s := w.State()
		return fmt.Sprintf("trip [%d/%d]> ", s.CurrentStep, s.TotalSteps())
	}

	lines := newLineReader(in)
	for {
		err := runPrompt(ctx, lines, out, prompt, func(ctx context.Context, verb, rest string) error {
			return wizardCommand(ctx, out, w, verb, rest)
		})

		if w.Phase() == wizard.PhaseFinalized {
			return err
		}
		cerr := w.Close(context.WithoutCancel(ctx))
		if cerr == nil {
			return err
		}
		if err != nil || lines.eof || ctx.Err() != nil {
			return errors.Join(err, fmt.Errorf("final save: %w", cerr))
		}
		// the wizard kept its state; let the user retry or discard it
		fmt.Fprintf(out, "Final save failed: %v\nType 'quit' to retry or 'reset' to discard the trip.\n", cerr)
	}
}

func wizardCommand(ctx context.Context, out io.Writer, w *wizard.Controller, verb, rest string) error {
	need := func(n int, usage string) ([]string, error) {
		parts := strings.Fields(rest)
		if len(parts) < n {
			return nil, fmt.Errorf("usage: %s", usage)
		}
		return parts, nil
	}
	text := func(set func(*wizard.State, string)) error {
		if rest == "" {
			return fmt.Errorf("usage: %s TEXT", verb)
		}
		return w.Update(func(s *wizard.State) { set(s, rest) })
	}

	switch verb {
	case "help":
		fmt.Fprintln(out, tripHelp)
	case "type":
		return w.SetTripType(wizard.TripType(rest))
	case "title":
		return text(func(s *wizard.State, v string) { s.Title = v })
	case "description":
		return text(func(s *wizard.State, v string) { s.Description = v })
	case "subject":
		return text(func(s *wizard.State, v string) { s.Subject = v })
	case "participant":
		return text(func(s *wizard.State, v string) { s.Participants = append(s.Participants, v) })
	case "convention":
		return text(func(s *wizard.State, v string) { s.SelectedConvention = v })
	case "staff":
		return text(func(s *wizard.State, v string) { s.Staff = append(s.Staff, v) })
	case "driver":
		return text(func(s *wizard.State, v string) { s.Drivers = append(s.Drivers, v) })
	case "vehicle":
		return text(func(s *wizard.State, v string) { s.Vehicles = append(s.Vehicles, v) })
	case "company":
		parts, err := need(2, "company ID NAME")
		if err != nil {
			return err
		}
		name := strings.TrimSpace(strings.TrimPrefix(rest, parts[0]))
		return w.Update(func(s *wizard.State) {
			s.Companies = append(s.Companies, wizard.Company{ID: parts[0], Name: name})
		})
	case "dates":
		parts, err := need(2, "dates START END")
		if err != nil {
			return err
		}
		start, err := time.Parse(time.DateOnly, parts[0])
		if err != nil {
			return fmt.Errorf("bad start date: %w", err)
		}
		end, err := time.Parse(time.DateOnly, parts[1])
		if err != nil {
			return fmt.Errorf("bad end date: %w", err)
		}
		if end.Before(start) {
			return errors.New("end date is before start date")
		}
		return w.Update(func(s *wizard.State) {
			s.StartDate, s.EndDate = parts[0], parts[1]
		})
	case "budget":
		amount, err := strconv.ParseFloat(rest, 64)
		if err != nil || amount < 0 {
			return fmt.Errorf("bad amount %q", rest)
		}
		return w.Update(func(s *wizard.State) { s.EstimatedBudget = amount })
	case "day":
		parts, err := need(1, "day DATE [ACTIVITY; ACTIVITY]")
		if err != nil {
			return err
		}
		if _, err := time.Parse(time.DateOnly, parts[0]); err != nil {
			return fmt.Errorf("bad date: %w", err)
		}
		activities := fields(strings.TrimPrefix(rest, parts[0]))
		return w.Update(func(s *wizard.State) {
			s.ItineraryDays = append(s.ItineraryDays, wizard.ItineraryDay{Date: parts[0], Activities: activities})
		})
	case "next":
		if err := w.Advance(ctx); err != nil {
			return err
		}
		printSaved(out, w.Status())
	case "back":
		w.Back()
	case "save":
		if err := w.Save(ctx); err != nil {
			return err
		}
		printSaved(out, w.Status())
	case "status":
		s := w.Status()
		fmt.Fprintf(out, "phase: %s\nstep: %d\ndirty: %s\n", w.Phase(), w.Step(), yesNo(w.Dirty()))
		if s.TripID != "" {
			fmt.Fprintf(out, "trip: %s (%s)\n", s.TripID, s.AccessCode)
		}
		if !s.LastSaved.IsZero() {
			fmt.Fprintf(out, "last saved: %s\n", s.LastSaved.Local().Format(time.TimeOnly))
		}
		if s.Error != "" {
			fmt.Fprintf(out, "error: %s\n", s.Error)
		}
		if err := w.CanProceed(); err != nil {
			fmt.Fprintf(out, "next: %v\n", err)
		}
	case "show":
		return writeJSONTo(out, w.State())
	case "finalize":
		res, err := w.Finalize(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, res.Message)
		return errQuit
	case "reset":
		if err := w.Reset(); err != nil {
			return err
		}
		fmt.Fprintln(out, "Trip abandoned.")
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q; type 'help'", verb)
	}
	return nil
}

func printSaved(out io.Writer, s wizard.SaveStatus) {
	if s.TripID == "" {
		return
	}
	fmt.Fprintf(out, "Saved trip %s (%s)\n", s.AccessCode, s.ContinueURL)
}
