package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"media-translator/internal/artifacts"
	"media-translator/internal/domain"
	"media-translator/internal/gateway"
	"media-translator/internal/history"
	"media-translator/internal/jobs"
	"media-translator/internal/monitor"
	"media-translator/internal/store"
)

// fakeService is an in-process translation service with injectable responses.
type fakeService struct {
	status   func(call int) (int, string)
	transfer func(kind string, attempt int) (int, string)

	// submitGate, when set, holds every submission until it is closed.
	submitGate chan struct{}

	mu           sync.Mutex
	submitStatus int
	statusCalls  int
	cancelCalls int
	uploads     int
	probed      map[string]int
	transfers   map[string]int
	submitted   []map[string]string
	deleted     []string
}

func newFakeService() *fakeService {
	return &fakeService{probed: map[string]int{}, transfers: map[string]int{}}
}

func (s *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	submit := func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.mu.Lock()
		s.submitted = append(s.submitted, body)
		code := s.submitStatus
		s.mu.Unlock()
		if s.submitGate != nil {
			<-s.submitGate
		}
		if code != 0 {
			w.WriteHeader(code)
			_, _ = io.WriteString(w, `{"detail":"submission rejected"}`)
			return
		}
		_, _ = io.WriteString(w, `{"task_id":"job-1","status":"queued"}`)
	}
	mux.HandleFunc("POST /translate", submit)
	mux.HandleFunc("POST /translate-file", submit)
	mux.HandleFunc("POST /upload", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		s.mu.Lock()
		s.uploads++
		s.mu.Unlock()
		_, _ = io.WriteString(w, `{"file_id":"f1","filename":"clip.mp4","file_path":"/srv/uploads/f1.mp4","size":9}`)
	})
	mux.HandleFunc("GET /status/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.statusCalls++
		call := s.statusCalls
		s.mu.Unlock()

		code, body := http.StatusOK, `{"status":"processing","progress":5}`
		if s.status != nil {
			code, body = s.status(call)
		}
		w.WriteHeader(code)
		_, _ = io.WriteString(w, body)
	})
	mux.HandleFunc("POST /tasks/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.cancelCalls++
		s.mu.Unlock()
		_, _ = io.WriteString(w, `{"message":"cancelled"}`)
	})
	mux.HandleFunc("HEAD /download/{id}/{kind}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.probed[r.PathValue("kind")]++
		s.mu.Unlock()
		w.Header().Set("Content-Length", "512")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /download/{id}/{kind}", func(w http.ResponseWriter, r *http.Request) {
		kind := r.PathValue("kind")
		s.mu.Lock()
		s.transfers[kind]++
		attempt := s.transfers[kind]
		s.mu.Unlock()

		code, body := http.StatusOK, strings.Repeat("m", 512)
		if s.transfer != nil {
			code, body = s.transfer(kind, attempt)
		}
		w.WriteHeader(code)
		_, _ = io.WriteString(w, body)
	})
	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"total_tasks":3,"completed_tasks":2,"failed_tasks":1,"processing_tasks":0,"success_rate":66.67}`)
	})
	mux.HandleFunc("DELETE /task/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.deleted = append(s.deleted, r.PathValue("id"))
		s.mu.Unlock()
		_, _ = io.WriteString(w, `{"message":"Task deleted successfully"}`)
	})
	mux.HandleFunc("GET /languages", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	return mux
}

// counts returns a consistent snapshot of call counters.
func (s *fakeService) counts() (status, cancel int, probed map[string]int, transfers map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	probed = make(map[string]int, len(s.probed))
	for k, v := range s.probed {
		probed[k] = v
	}
	transfers = make(map[string]int, len(s.transfers))
	for k, v := range s.transfers {
		transfers[k] = v
	}
	return s.statusCalls, s.cancelCalls, probed, transfers
}

func completedStatus() string {
	return `{"status":"completed","progress":100,"message":"done","steps":{` +
		`"download":{"status":"completed","progress":100},` +
		`"extract_audio":{"status":"completed","progress":100},` +
		`"speech_to_text":{"status":"completed","progress":100},` +
		`"translate":{"status":"completed","progress":100},` +
		`"text_to_speech":{"status":"completed","progress":100},` +
		`"merge_video":{"status":"completed","progress":100}}}`
}

func newTestApp(t *testing.T, svc *fakeService) (*App, string) {
	t.Helper()
	server := httptest.NewServer(svc.handler())
	t.Cleanup(server.Close)

	client, err := gateway.New(gateway.Options{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("gateway.New() error = %v", err)
	}

	root := t.TempDir()
	downloadDir := filepath.Join(root, "downloads")
	repo := store.NewRepository(store.NewFileBackend(filepath.Join(root, store.FileName)), domain.Preferences{
		DownloadDir:    downloadDir,
		SourceLanguage: domain.SourceLanguageAuto,
		TargetLanguage: "th",
		Locale:         domain.LocaleEnglish,
	})

	app, err := NewWithDeps(Deps{
		Service: client,
		Ledger:  history.NewLedger(repo, 0),
		SyncOptions: monitor.Options{
			Interval:      5 * time.Millisecond,
			FastInterval:  5 * time.Millisecond,
			CancelTimeout: time.Second,
		},
	})
	if err != nil {
		t.Fatalf("NewWithDeps() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = app.Shutdown(ctx)
	})
	return app, downloadDir
}

func submitScenarioJob(t *testing.T, app *App) {
	t.Helper()
	state, err := app.SubmitJob(domain.JobRequest{
		MediaURL:       "https://example/video1",
		SourceLanguage: "auto",
		TargetLanguage: "th",
	})
	if err != nil {
		t.Fatalf("SubmitJob() error = %v", err)
	}
	if state.JobID != "job-1" {
		t.Fatalf("job id = %q, want job-1", state.JobID)
	}
}

// TestScenarioCompletedJobProbesArtifacts verifies submit, progress mapping, completion and probing.
func TestScenarioCompletedJobProbesArtifacts(t *testing.T) {
	svc := newFakeService()
	svc.status = func(call int) (int, string) {
		if call == 1 {
			return http.StatusOK, `{"status":"processing","progress":10,"steps":{"download":{"status":"processing","progress":50}}}`
		}
		return http.StatusOK, completedStatus()
	}
	app, _ := newTestApp(t, svc)

	submitScenarioJob(t, app)
	entry := waitForHistory(t, app, "job-1")

	if entry.FinalStatus != domain.JobStatusCompleted {
		t.Fatalf("final status = %s, want completed", entry.FinalStatus)
	}
	if len(entry.Artifacts) != 3 {
		t.Fatalf("history artifacts = %d, want 3", len(entry.Artifacts))
	}
	if entry.Request.MediaURL != "https://example/video1" || entry.CompletedAt == nil {
		t.Fatalf("entry = %+v", entry)
	}

	_, _, probed, _ := svc.counts()
	for _, kind := range []string{"video", "audio", "subtitle"} {
		if probed[kind] != 1 {
			t.Fatalf("probes for %s = %d, want 1", kind, probed[kind])
		}
	}

	current := app.CurrentJob()
	for _, stage := range domain.Stages() {
		if current.Stages[stage].Status != domain.StageStatusCompleted {
			t.Fatalf("stage %s = %s, want completed", stage, current.Stages[stage].Status)
		}
	}

	var sawFirstPoll bool
	for _, event := range app.JobEvents(0) {
		if event.State == nil || event.State.Status != domain.JobStatusProcessing {
			continue
		}
		download := event.State.Stages[domain.StageDownload]
		if event.State.Progress == 10 && download.Status == domain.StageStatusProcessing && download.Progress == 50 {
			sawFirstPoll = true
		}
	}
	if !sawFirstPoll {
		t.Fatal("no event reflected the first poll exactly")
	}
	assertEventTypeExists(t, app.JobEvents(0), jobs.EventTypeArtifact)
}

// TestScenarioJobNeverMaterializes verifies five not-found polls end the job without a sixth.
func TestScenarioJobNeverMaterializes(t *testing.T) {
	svc := newFakeService()
	svc.status = func(int) (int, string) {
		return http.StatusNotFound, `{"detail":"Task not found"}`
	}
	app, _ := newTestApp(t, svc)

	submitScenarioJob(t, app)
	entry := waitForHistory(t, app, "job-1")

	if entry.FinalStatus != domain.JobStatusFailed {
		t.Fatalf("final status = %s, want failed", entry.FinalStatus)
	}
	current := app.CurrentJob()
	if current.Failure != domain.FailureJobNeverMaterialized {
		t.Fatalf("failure = %q, want job_never_materialized", current.Failure)
	}

	time.Sleep(50 * time.Millisecond)
	if calls, _, _, _ := svc.counts(); calls != 5 {
		t.Fatalf("status calls = %d, want 5", calls)
	}

	events := app.JobEvents(0)
	assertEventTypeExists(t, events, jobs.EventTypeWaiting)
	assertEventTypeExists(t, events, jobs.EventTypeError)
}

// TestScenarioForbiddenTransferCanBeRetried verifies access-denied classification and independent retry.
func TestScenarioForbiddenTransferCanBeRetried(t *testing.T) {
	svc := newFakeService()
	svc.status = func(int) (int, string) { return http.StatusOK, completedStatus() }
	svc.transfer = func(kind string, attempt int) (int, string) {
		if kind == "video" && attempt == 1 {
			return http.StatusForbidden, `{"detail":"forbidden"}`
		}
		return http.StatusOK, strings.Repeat("v", 512)
	}
	app, downloadDir := newTestApp(t, svc)

	submitScenarioJob(t, app)
	waitForHistory(t, app, "job-1")

	failed, err := app.DownloadArtifact("video")
	var transferErr *artifacts.TransferError
	if !errors.As(err, &transferErr) {
		t.Fatalf("DownloadArtifact() error = %v, want TransferError", err)
	}
	if failed.Transfer != domain.TransferFailed || failed.Failure != domain.FailureAccessDenied {
		t.Fatalf("descriptor = %+v, want failed/access_denied", failed)
	}

	retried, err := app.RetryArtifact("video")
	if err != nil {
		t.Fatalf("RetryArtifact() error = %v", err)
	}
	if retried.Transfer != domain.TransferSucceeded {
		t.Fatalf("transfer = %s, want succeeded", retried.Transfer)
	}
	if filepath.Dir(retried.LocalPath) != downloadDir {
		t.Fatalf("saved to %s, want under %s", retried.LocalPath, downloadDir)
	}
	if _, _, _, transfers := svc.counts(); transfers["video"] != 2 {
		t.Fatalf("video transfers = %d, want 2", transfers["video"])
	}
}

// TestSubmitJobEnforcesSingleRunningJob checks single-job guard and cancellation.
func TestSubmitJobEnforcesSingleRunningJob(t *testing.T) {
	svc := newFakeService()
	app, _ := newTestApp(t, svc)

	submitScenarioJob(t, app)
	if _, err := app.SubmitJob(domain.JobRequest{MediaURL: "https://example/video2", TargetLanguage: "th"}); !errors.Is(err, jobs.ErrJobAlreadyRunning) {
		t.Fatalf("second submit error = %v, want %v", err, jobs.ErrJobAlreadyRunning)
	}

	if err := app.CancelJob(); err != nil {
		t.Fatalf("CancelJob() error = %v", err)
	}
	waitForStatus(t, app, domain.JobStatusCancelled)

	entry := waitForHistory(t, app, "job-1")
	if entry.FinalStatus != domain.JobStatusCancelled {
		t.Fatalf("final status = %s, want cancelled", entry.FinalStatus)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, cancels, _, _ := svc.counts(); cancels == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, cancels, _, _ := svc.counts(); cancels != 1 {
		t.Fatalf("remote cancels = %d, want 1", cancels)
	}
	if err := app.CancelJob(); !errors.Is(err, jobs.ErrNoRunningJob) {
		t.Fatalf("second cancel error = %v, want %v", err, jobs.ErrNoRunningJob)
	}
}

// TestSubmitJobRejectsInvalidRequest verifies validation happens before any network call.
func TestSubmitJobRejectsInvalidRequest(t *testing.T) {
	svc := newFakeService()
	app, _ := newTestApp(t, svc)

	_, err := app.SubmitJob(domain.JobRequest{MediaURL: "https://example/video1", SourceLanguage: "th", TargetLanguage: "th"})
	if !errors.Is(err, jobs.ErrSameLanguage) {
		t.Fatalf("SubmitJob() error = %v, want %v", err, jobs.ErrSameLanguage)
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if len(svc.submitted) != 0 {
		t.Fatalf("submitted = %d, want 0", len(svc.submitted))
	}
}

// TestSubmitJobReservesSlotDuringSubmission verifies a concurrent submit is refused while the first is in flight.
func TestSubmitJobReservesSlotDuringSubmission(t *testing.T) {
	svc := newFakeService()
	svc.submitGate = make(chan struct{})
	app, _ := newTestApp(t, svc)

	firstErr := make(chan error, 1)
	go func() {
		_, err := app.SubmitJob(domain.JobRequest{MediaURL: "https://example/video1", TargetLanguage: "th"})
		firstErr <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		svc.mu.Lock()
		arrived := len(svc.submitted)
		svc.mu.Unlock()
		if arrived == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	_, err := app.SubmitJob(domain.JobRequest{MediaURL: "https://example/video2", TargetLanguage: "th"})
	close(svc.submitGate)
	if !errors.Is(err, jobs.ErrJobAlreadyRunning) {
		t.Fatalf("second submit error = %v, want %v", err, jobs.ErrJobAlreadyRunning)
	}
	if err := <-firstErr; err != nil {
		t.Fatalf("first submit error = %v", err)
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if len(svc.submitted) != 1 {
		t.Fatalf("submitted = %d, want 1", len(svc.submitted))
	}
}

// TestSubmitJobReleasesSlotOnServiceError verifies a failed submission leaves the app idle.
func TestSubmitJobReleasesSlotOnServiceError(t *testing.T) {
	svc := newFakeService()
	svc.submitStatus = http.StatusInternalServerError
	app, _ := newTestApp(t, svc)

	_, err := app.SubmitJob(domain.JobRequest{MediaURL: "https://example/video1", TargetLanguage: "th"})
	if got := gateway.KindOf(err); got != gateway.KindServerError {
		t.Fatalf("SubmitJob() kind = %v, want %v", got, gateway.KindServerError)
	}
	if app.Jobs.IsRunning() {
		t.Fatal("expected idle after failed submission")
	}

	svc.mu.Lock()
	svc.submitStatus = 0
	svc.mu.Unlock()
	submitScenarioJob(t, app)
}

// TestUploadAndSubmitValidatesLanguagesFirst verifies bad languages never reach the upload endpoint.
func TestUploadAndSubmitValidatesLanguagesFirst(t *testing.T) {
	svc := newFakeService()
	app, _ := newTestApp(t, svc)

	cases := []struct {
		name string
		req  domain.JobRequest
		want error
	}{
		{"missing target", domain.JobRequest{}, jobs.ErrMissingTargetLanguage},
		{"auto target", domain.JobRequest{TargetLanguage: "auto"}, jobs.ErrAutoTargetLanguage},
		{"same language", domain.JobRequest{SourceLanguage: "th", TargetLanguage: "TH"}, jobs.ErrSameLanguage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := app.UploadAndSubmit(context.Background(), "clip.mp4", strings.NewReader("mediadata"), tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("UploadAndSubmit() error = %v, want %v", err, tc.want)
			}
		})
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if svc.uploads != 0 {
		t.Fatalf("uploads = %d, want 0", svc.uploads)
	}
}

// TestUploadAndSubmitPublishesProgress verifies upload progress events reach 100 percent.
func TestUploadAndSubmitPublishesProgress(t *testing.T) {
	svc := newFakeService()
	svc.status = func(int) (int, string) { return http.StatusOK, completedStatus() }
	app, _ := newTestApp(t, svc)

	if _, err := app.UploadAndSubmit(context.Background(), "/tmp/clip.mp4", strings.NewReader(strings.Repeat("m", 128<<10)), domain.JobRequest{TargetLanguage: "ja"}); err != nil {
		t.Fatalf("UploadAndSubmit() error = %v", err)
	}

	last := -1
	for _, event := range app.JobEvents(0) {
		if event.Type != jobs.EventTypeUpload {
			continue
		}
		if event.Progress < last {
			t.Fatalf("upload progress went backwards: %d after %d", event.Progress, last)
		}
		last = event.Progress
	}
	if last != 100 {
		t.Fatalf("last upload progress = %d, want 100", last)
	}
}

// TestUploadAndSubmitUsesUploadedPath verifies uploads are submitted by their server path.
func TestUploadAndSubmitUsesUploadedPath(t *testing.T) {
	svc := newFakeService()
	svc.status = func(int) (int, string) { return http.StatusOK, completedStatus() }
	app, _ := newTestApp(t, svc)

	_, err := app.UploadAndSubmit(context.Background(), "clip.mp4", strings.NewReader("mediadata"), domain.JobRequest{TargetLanguage: "ja"})
	if err != nil {
		t.Fatalf("UploadAndSubmit() error = %v", err)
	}
	entry := waitForHistory(t, app, "job-1")
	if entry.Request.UploadHandle != "/srv/uploads/f1.mp4" {
		t.Fatalf("upload handle = %q", entry.Request.UploadHandle)
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if len(svc.submitted) != 1 || svc.submitted[0]["file_path"] != "/srv/uploads/f1.mp4" {
		t.Fatalf("submitted = %+v", svc.submitted)
	}
}

// TestResumeJobFollowsKnownJob verifies a job id can be followed again after restart.
func TestResumeJobFollowsKnownJob(t *testing.T) {
	svc := newFakeService()
	svc.status = func(int) (int, string) { return http.StatusOK, completedStatus() }
	app, _ := newTestApp(t, svc)

	if _, err := app.ResumeJob("job-7"); err != nil {
		t.Fatalf("ResumeJob() error = %v", err)
	}
	entry := waitForHistory(t, app, "job-7")
	if entry.FinalStatus != domain.JobStatusCompleted {
		t.Fatalf("final status = %s, want completed", entry.FinalStatus)
	}
	if _, err := app.ResumeJob(" "); err == nil {
		t.Fatal("expected error for empty job id")
	}
}

// TestSavePreferencesRedirectsDownloads verifies new preferences reach the artifact manager.
func TestSavePreferencesRedirectsDownloads(t *testing.T) {
	svc := newFakeService()
	svc.status = func(int) (int, string) { return http.StatusOK, completedStatus() }
	app, _ := newTestApp(t, svc)

	target := filepath.Join(t.TempDir(), "elsewhere")
	if _, err := app.SavePreferences(domain.Preferences{DownloadDir: target, TargetLanguage: "th"}); err != nil {
		t.Fatalf("SavePreferences() error = %v", err)
	}

	submitScenarioJob(t, app)
	waitForHistory(t, app, "job-1")

	saved, err := app.DownloadArtifact("subtitle")
	if err != nil {
		t.Fatalf("DownloadArtifact() error = %v", err)
	}
	if filepath.Dir(saved.LocalPath) != target {
		t.Fatalf("saved to %s, want under %s", saved.LocalPath, target)
	}
	if _, err := os.Stat(saved.LocalPath); err != nil {
		t.Fatalf("stat saved file: %v", err)
	}
}

// TestAutoDownloadSavesAvailableArtifacts verifies completed jobs are downloaded when the preference is on.
func TestAutoDownloadSavesAvailableArtifacts(t *testing.T) {
	svc := newFakeService()
	svc.status = func(int) (int, string) { return http.StatusOK, completedStatus() }
	app, _ := newTestApp(t, svc)

	target := filepath.Join(t.TempDir(), "auto")
	if _, err := app.SavePreferences(domain.Preferences{DownloadDir: target, TargetLanguage: "th", AutoDownload: true}); err != nil {
		t.Fatalf("SavePreferences() error = %v", err)
	}

	submitScenarioJob(t, app)
	waitForHistory(t, app, "job-1")

	_, _, _, transfers := svc.counts()
	for _, kind := range []string{"video", "audio", "subtitle"} {
		if transfers[kind] != 1 {
			t.Fatalf("transfers for %s = %d, want 1", kind, transfers[kind])
		}
	}
	for _, descriptor := range app.ListArtifacts() {
		if descriptor.Transfer != domain.TransferSucceeded || filepath.Dir(descriptor.LocalPath) != target {
			t.Fatalf("descriptor = %+v, want saved under %s", descriptor, target)
		}
	}
}

// TestCompletedJobKeepsArtifactsRemoteByDefault verifies artifacts stay remote by default.
func TestCompletedJobKeepsArtifactsRemoteByDefault(t *testing.T) {
	svc := newFakeService()
	svc.status = func(int) (int, string) { return http.StatusOK, completedStatus() }
	app, _ := newTestApp(t, svc)

	submitScenarioJob(t, app)
	waitForHistory(t, app, "job-1")

	if _, _, _, transfers := svc.counts(); len(transfers) != 0 {
		t.Fatalf("transfers = %v, want none", transfers)
	}
}

// TestServiceStatsAndDeleteRemoteTask verifies the service counters and remote delete guard.
func TestServiceStatsAndDeleteRemoteTask(t *testing.T) {
	svc := newFakeService()
	app, _ := newTestApp(t, svc)

	stats, err := app.ServiceStats()
	if err != nil {
		t.Fatalf("ServiceStats() error = %v", err)
	}
	if stats.TotalTasks != 3 || stats.CompletedTasks != 2 || stats.SuccessRate != 66.67 {
		t.Fatalf("stats = %+v", stats)
	}

	if err := app.DeleteRemoteTask(" job-9 "); err != nil {
		t.Fatalf("DeleteRemoteTask() error = %v", err)
	}
	if err := app.DeleteRemoteTask(""); !errors.Is(err, jobs.ErrMissingJobID) {
		t.Fatalf("DeleteRemoteTask(empty) error = %v, want %v", err, jobs.ErrMissingJobID)
	}

	submitScenarioJob(t, app)
	if err := app.DeleteRemoteTask("job-1"); !errors.Is(err, jobs.ErrJobAlreadyRunning) {
		t.Fatalf("DeleteRemoteTask(active) error = %v, want %v", err, jobs.ErrJobAlreadyRunning)
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if len(svc.deleted) != 1 || svc.deleted[0] != "job-9" {
		t.Fatalf("deleted = %v, want [job-9]", svc.deleted)
	}
}

// TestShutdownResetsActiveJob verifies a stopped app holds no job slot.
func TestShutdownResetsActiveJob(t *testing.T) {
	app, _ := newTestApp(t, newFakeService())
	submitScenarioJob(t, app)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := app.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if app.Jobs.IsRunning() {
		t.Fatal("expected no running job after shutdown")
	}
	if got := app.CurrentJob().JobID; got != "" {
		t.Fatalf("current job = %q, want empty", got)
	}
}

// TestLanguagesFallsBackToBuiltin verifies the built-in catalog is used when the service fails.
func TestLanguagesFallsBackToBuiltin(t *testing.T) {
	app, _ := newTestApp(t, newFakeService())
	if got, want := len(app.Languages()), len(domain.BuiltinLanguages()); got != want {
		t.Fatalf("languages = %d, want %d", got, want)
	}
}

// TestDownloadArtifactRejectsUnknownKind verifies kind parsing.
func TestDownloadArtifactRejectsUnknownKind(t *testing.T) {
	app, _ := newTestApp(t, newFakeService())
	if _, err := app.DownloadArtifact("thumbnail"); !errors.Is(err, artifacts.ErrUnknownKind) {
		t.Fatalf("DownloadArtifact() error = %v, want %v", err, artifacts.ErrUnknownKind)
	}
}

// waitForStatus polls until job reaches desired status or times out.
func waitForStatus(t *testing.T, app *App, want domain.JobStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if app.CurrentJob().Status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("status = %s, want %s", app.CurrentJob().Status, want)
}

// waitForHistory polls until the ledger has an entry for jobID.
func waitForHistory(t *testing.T, app *App, jobID string) domain.HistoryEntry {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if entry, err := app.GetHistoryEntry(jobID); err == nil {
			return entry
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("history entry %s not recorded; job = %+v", jobID, app.CurrentJob())
	return domain.HistoryEntry{}
}

// assertEventTypeExists verifies at least one event of given type exists.
func assertEventTypeExists(t *testing.T, events []jobs.Event, want jobs.EventType) {
	t.Helper()
	for _, event := range events {
		if event.Type == want {
			return
		}
	}
	t.Fatalf("event type %s not found", want)
}
