package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Danwoltrs/wolthers-travel-app-sub001/client/notes"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/jwt"
	notesEntity "github.com/Danwoltrs/wolthers-travel-app-sub001/services/notes/entity"
	tripsEntity "github.com/Danwoltrs/wolthers-travel-app-sub001/services/trips/entity"
)

type fakeServer struct {
	mu        sync.Mutex
	saves     []tripsEntity.ProgressiveSaveRequest
	noteSaves []notesEntity.SaveNoteRequest
	notes     []*notesEntity.Note
	finalized []string
	deleted   []string
	healthy   bool
	// failSaves lists progressive-save call indexes answered with 502
	failSaves map[int]bool
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	t.Helper()

	f := &fakeServer{healthy: true}
	reply := func(w http.ResponseWriter, code int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(v)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		healthy := f.healthy
		f.mu.Unlock()
		if !healthy {
			reply(w, http.StatusServiceUnavailable, map[string]string{"error": "service temporarily unavailable"})
			return
		}
		reply(w, http.StatusOK, map[string]bool{"status": true})
	})
	mux.HandleFunc("POST /api/trips/progressive-save", func(w http.ResponseWriter, r *http.Request) {
		var req tripsEntity.ProgressiveSaveRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.saves = append(f.saves, req)
		fail := f.failSaves[len(f.saves)-1]
		f.mu.Unlock()
		if fail {
			reply(w, http.StatusBadGateway, map[string]string{"error": "bad gateway"})
			return
		}
		reply(w, http.StatusOK, tripsEntity.ProgressiveSaveResponse{
			Success:     true,
			TripID:      "trip-1",
			AccessCode:  "MIN_HAR_25_1234",
			ContinueURL: "/trips/continue/MIN_HAR_25_1234",
			SavedAt:     time.Now(),
		})
	})
	mux.HandleFunc("PATCH /api/trips/{id}/finalize", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.finalized = append(f.finalized, r.PathValue("id"))
		f.mu.Unlock()
		reply(w, http.StatusOK, tripsEntity.FinalizeResponse{Success: true, TripID: r.PathValue("id"), Message: "Trip finalized successfully"})
	})
	mux.HandleFunc("GET /api/trips/drafts", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, tripsEntity.ListDraftsResponse{Drafts: []tripsEntity.DraftSummary{{
			TripID:               "trip-1",
			Title:                "Minas harvest",
			TripType:             tripsEntity.TripTypeInLand,
			AccessCode:           "MIN_HAR_25_1234",
			CurrentStep:          3,
			CompletionPercentage: 60,
			UpdatedAt:            time.Now(),
		}}})
	})
	mux.HandleFunc("GET /api/activities/{id}/notes", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		reply(w, http.StatusOK, notesEntity.ListNotesResponse{Notes: f.notes})
	})
	mux.HandleFunc("POST /api/activities/{id}/notes", func(w http.ResponseWriter, r *http.Request) {
		var req notesEntity.SaveNoteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.noteSaves = append(f.noteSaves, req)
		f.mu.Unlock()
		reply(w, http.StatusOK, notesEntity.Note{ID: "note-1", ActivityID: r.PathValue("id"), UserID: "user-1", Content: req.Content})
	})
	mux.HandleFunc("DELETE /api/activities/{id}/notes", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.deleted = append(f.deleted, r.URL.Query().Get("note_id"))
		f.mu.Unlock()
		reply(w, http.StatusOK, map[string]bool{"success": true})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func setupEnv(t *testing.T, url string) {
	t.Helper()

	token, err := jwt.Generate(context.Background(), "user-1", "Daniel", "secret", time.Hour)
	require.NoError(t, err)

	t.Setenv("TRIPCTL_CONFIG", "")
	t.Setenv("TRIPCTL_API_URL", url)
	t.Setenv("TRIPCTL_API_TOKEN", token)
	t.Setenv("TRIPCTL_STATE_DIR", t.TempDir())
	t.Setenv("TRIPCTL_LOG_LEVEL", "error")
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestHealth(t *testing.T) {
	f, srv := newFakeServer(t)
	setupEnv(t, srv.URL)

	out, err := runCLI(t, "", "health")
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)

	f.mu.Lock()
	f.healthy = false
	f.mu.Unlock()
	_, err = runCLI(t, "", "health")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestAPIFlagOverridesConfig(t *testing.T) {
	_, srv := newFakeServer(t)
	setupEnv(t, "http://127.0.0.1:1")

	out, err := runCLI(t, "", "health", "--api", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)
}

func TestTripDrafts(t *testing.T) {
	_, srv := newFakeServer(t)
	setupEnv(t, srv.URL)

	out, err := runCLI(t, "", "trip", "drafts")
	require.NoError(t, err)
	assert.Contains(t, out, "MIN_HAR_25_1234")
	assert.Contains(t, out, "Minas harvest")
	assert.Contains(t, out, "60%")

	out, err = runCLI(t, "", "trip", "drafts", "--json")
	require.NoError(t, err)
	var res tripsEntity.ListDraftsResponse
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Drafts, 1)
	assert.Equal(t, "trip-1", res.Drafts[0].TripID)
}

func TestTripWizard(t *testing.T) {
	f, srv := newFakeServer(t)
	setupEnv(t, srv.URL)

	script := strings.Join([]string{
		"type in_land",
		"next",
		"title Minas harvest",
		"next",
		"company c1 Cooxupé Regional",
		"dates 2025-05-01 2025-05-04",
		"dates 2025-05-04 2025-05-01",
		"next",
		"bogus",
		"status",
		"quit",
	}, "\n")

	out, err := runCLI(t, script, "trip", "new", "--autosave-delay", "1h")
	require.NoError(t, err)

	assert.Contains(t, out, "Saved trip MIN_HAR_25_1234")
	assert.Contains(t, out, "error: required fields are missing: companies, dates")
	assert.Contains(t, out, "end date is before start date")
	assert.Contains(t, out, `unknown command "bogus"`)
	assert.Contains(t, out, "trip: trip-1 (MIN_HAR_25_1234)")

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.saves, 3)
	assert.Equal(t, 1, f.saves[0].CurrentStep)
	assert.Empty(t, f.saves[0].TripID)
	assert.Equal(t, 2, f.saves[1].CurrentStep)
	assert.Equal(t, "trip-1", f.saves[1].TripID)
	assert.Equal(t, 3, f.saves[2].CurrentStep)
	assert.Equal(t, f.saves[0].ClientTempID, f.saves[2].ClientTempID)

	var state map[string]any
	require.NoError(t, json.Unmarshal(f.saves[1].StepData, &state))
	assert.Equal(t, "Minas harvest", state["title"])
	assert.Equal(t, "2025-05-01", state["startDate"])
}

func TestTripWizardQuitRetriesFailedSave(t *testing.T) {
	f, srv := newFakeServer(t)
	setupEnv(t, srv.URL)
	f.mu.Lock()
	f.failSaves = map[int]bool{1: true}
	f.mu.Unlock()

	out, err := runCLI(t, "type in_land\nnext\ncompany c1 Cooxupé\nquit\nquit\n", "trip", "new", "--autosave-delay", "1h")
	require.NoError(t, err)
	assert.Contains(t, out, "Final save failed")
	assert.Contains(t, out, "bad gateway")

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.saves, 3)
	assert.Equal(t, "trip-1", f.saves[2].TripID)
	assert.Equal(t, 2, f.saves[2].CurrentStep)
}

func TestTripWizardFailedSaveAtEndOfInput(t *testing.T) {
	f, srv := newFakeServer(t)
	setupEnv(t, srv.URL)
	f.mu.Lock()
	f.failSaves = map[int]bool{1: true}
	f.mu.Unlock()

	_, err := runCLI(t, "type in_land\nnext\ncompany c1 Cooxupé\n", "trip", "new", "--autosave-delay", "1h")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "final save")

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Len(t, f.saves, 2)
}

func TestTripWizardFinalize(t *testing.T) {
	f, srv := newFakeServer(t)
	setupEnv(t, srv.URL)

	out, err := runCLI(t, "type none\nnext\nfinalize\n", "trip", "new", "--autosave-delay", "1h")
	require.NoError(t, err)
	assert.Contains(t, out, "Trip finalized successfully")

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, []string{"trip-1"}, f.finalized)
	assert.Len(t, f.saves, 1)
}

func TestTripWizardQuitWithoutProgress(t *testing.T) {
	f, srv := newFakeServer(t)
	setupEnv(t, srv.URL)

	_, err := runCLI(t, "title Only a title\n", "trip", "new")
	require.NoError(t, err)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Empty(t, f.saves)
}

func TestNotesOpenTemplateAndSave(t *testing.T) {
	f, srv := newFakeServer(t)
	setupEnv(t, srv.URL)

	out, err := runCLI(t, "write Prices <agreed>\nsave\nshow\nquit\n",
		"notes", "open", "act-1",
		"--no-media",
		"--title", "Cooxupé visit",
		"--company", "Cooxupé:Ana, Rui",
		"--meeting", "2025-03-10 09:00",
		"--autosave-interval", "1h")
	require.NoError(t, err)
	assert.Contains(t, out, "Cooxupé visit")
	assert.Contains(t, out, "Saved.")
	assert.Contains(t, out, "Prices <agreed>")

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.noteSaves, 1)

	doc, err := notes.DecodeDocument(f.noteSaves[0].Content)
	require.NoError(t, err)
	assert.Contains(t, doc.HTML, "Monday, March 10, 09:00 AM")
	assert.Contains(t, doc.HTML, "Cooxupé (Ana, Rui)")
	assert.Contains(t, doc.HTML, "<p>Prices &lt;agreed&gt;</p>")
	assert.Equal(t, "Daniel", f.noteSaves[0].CreatedByName)
}

func TestNotesCloseSavesPendingEdits(t *testing.T) {
	f, srv := newFakeServer(t)
	setupEnv(t, srv.URL)

	_, err := runCLI(t, "write unsaved line\n", "notes", "open", "act-1", "--no-media", "--autosave-interval", "1h")
	require.NoError(t, err)

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.noteSaves, 1)
	assert.Contains(t, string(f.noteSaves[0].Content), "unsaved line")
}

func TestNotesRecordWithoutMedia(t *testing.T) {
	_, srv := newFakeServer(t)
	setupEnv(t, srv.URL)

	out, err := runCLI(t, "record\nquit\n", "notes", "open", "act-1", "--no-media")
	require.NoError(t, err)
	assert.Contains(t, out, "media capture is not available")
}

func TestNotesListAndDelete(t *testing.T) {
	f, srv := newFakeServer(t)
	setupEnv(t, srv.URL)
	f.notes = []*notesEntity.Note{{
		ID:            "note-9",
		UserID:        "user-2",
		CreatedByName: "Ana",
		Content:       json.RawMessage(`{"html":"<p>Harvest in May</p>","plainText":"Harvest in May"}`),
		UpdatedAt:     time.Now(),
	}}

	out, err := runCLI(t, "", "notes", "list", "act-1")
	require.NoError(t, err)
	assert.Contains(t, out, "note-9")
	assert.Contains(t, out, "Ana")
	assert.Contains(t, out, "Harvest in May")

	out, err = runCLI(t, "", "notes", "delete", "act-1", "note-9")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted note note-9")
	assert.Equal(t, []string{"note-9"}, f.deleted)
}

func TestParseCompanies(t *testing.T) {
	got := parseCompanies([]string{"Cooxupé:Ana, Rui", " Volcafe ", ":nobody"})
	assert.Equal(t, []notes.Company{
		{Name: "Cooxupé", Representatives: []string{"Ana", "Rui"}},
		{Name: "Volcafe"},
	}, got)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
