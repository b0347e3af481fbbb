package artifacts

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"media-translator/internal/domain"
	"media-translator/internal/gateway"
)

// fakeGateway allows injecting probe and transfer behavior per test.
type fakeGateway struct {
	probe    func(url string) (gateway.ProbeResult, error)
	transfer func(ctx context.Context, url string) (io.ReadCloser, int64, error)
}

// ArtifactURL derives a fake URL from job and kind.
func (g *fakeGateway) ArtifactURL(jobID string, kind domain.ArtifactKind) string {
	return "http://svc/download/" + jobID + "/" + string(kind)
}

// ProbeArtifact delegates to the injected function.
func (g *fakeGateway) ProbeArtifact(_ context.Context, url string) (gateway.ProbeResult, error) {
	if g.probe == nil {
		return gateway.ProbeResult{SizeHint: 1024}, nil
	}
	return g.probe(url)
}

// TransferArtifact delegates to the injected function.
func (g *fakeGateway) TransferArtifact(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	if g.transfer == nil {
		body := strings.Repeat("x", 512)
		return io.NopCloser(strings.NewReader(body)), int64(len(body)), nil
	}
	return g.transfer(ctx, url)
}

func newTestManager(t *testing.T, gw Gateway) (*Manager, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "downloads")
	m := NewManager(gw, Options{DownloadDir: dir})
	m.now = func() time.Time { return time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC) }
	return m, dir
}

// TestOpenBuildsThreeDescriptors verifies kinds, formats and derived URLs.
func TestOpenBuildsThreeDescriptors(t *testing.T) {
	m, _ := newTestManager(t, &fakeGateway{})
	items := m.Open("job-1")

	if len(items) != 3 {
		t.Fatalf("descriptors = %d, want 3", len(items))
	}
	want := map[domain.ArtifactKind]string{
		domain.ArtifactVideo:    "mp4",
		domain.ArtifactAudio:    "mp3",
		domain.ArtifactSubtitle: "srt",
	}
	for _, item := range items {
		if item.Format != want[item.Kind] {
			t.Fatalf("%s format = %s, want %s", item.Kind, item.Format, want[item.Kind])
		}
		if item.URL != "http://svc/download/job-1/"+string(item.Kind) {
			t.Fatalf("%s url = %s", item.Kind, item.URL)
		}
		if item.Availability != domain.AvailabilityUnknown || item.Transfer != domain.TransferIdle {
			t.Fatalf("%s initial state = %+v", item.Kind, item)
		}
	}
}

// TestProbeAllIsolatesUnavailableKinds verifies one failed probe leaves others usable.
func TestProbeAllIsolatesUnavailableKinds(t *testing.T) {
	gw := &fakeGateway{probe: func(url string) (gateway.ProbeResult, error) {
		if strings.HasSuffix(url, "/audio") {
			return gateway.ProbeResult{}, &gateway.Error{Op: "probe_artifact", Kind: gateway.KindNotFound, StatusCode: 404}
		}
		return gateway.ProbeResult{SizeHint: 4096}, nil
	}}
	m, dir := newTestManager(t, gw)
	m.Open("job-1")

	items, err := m.ProbeAll(context.Background())
	if err != nil {
		t.Fatalf("ProbeAll() error = %v", err)
	}
	for _, item := range items {
		switch item.Kind {
		case domain.ArtifactAudio:
			if item.Availability != domain.AvailabilityUnavailable {
				t.Fatalf("audio availability = %s, want unavailable", item.Availability)
			}
		default:
			if item.Availability != domain.AvailabilityAvailable || item.SizeHint != 4096 {
				t.Fatalf("%s = %+v, want available", item.Kind, item)
			}
		}
	}

	if _, err := m.Download(context.Background(), domain.ArtifactAudio); !errors.Is(err, ErrArtifactUnavailable) {
		t.Fatalf("Download(audio) error = %v, want %v", err, ErrArtifactUnavailable)
	}
	for _, kind := range []domain.ArtifactKind{domain.ArtifactVideo, domain.ArtifactSubtitle} {
		got, err := m.Download(context.Background(), kind)
		if err != nil {
			t.Fatalf("Download(%s) error = %v", kind, err)
		}
		if got.Transfer != domain.TransferSucceeded {
			t.Fatalf("%s transfer = %s, want succeeded", kind, got.Transfer)
		}
		if filepath.Dir(got.LocalPath) != dir {
			t.Fatalf("%s saved to %s, want dir %s", kind, got.LocalPath, dir)
		}
	}
}

// TestDownloadWritesDatedFileName verifies the local naming scheme and contents.
func TestDownloadWritesDatedFileName(t *testing.T) {
	m, dir := newTestManager(t, &fakeGateway{transfer: func(context.Context, string) (io.ReadCloser, int64, error) {
		return io.NopCloser(strings.NewReader(strings.Repeat("s", 200))), 200, nil
	}})
	m.Open("job-1")

	got, err := m.Download(context.Background(), domain.ArtifactSubtitle)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	want := filepath.Join(dir, "subtitle_job-1_2026-03-09.srt")
	if got.LocalPath != want {
		t.Fatalf("path = %s, want %s", got.LocalPath, want)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	if len(data) != 200 {
		t.Fatalf("saved %d bytes, want 200", len(data))
	}
	if _, err := os.Stat(want + ".download"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

// TestDownloadFailureCategories verifies each gateway kind maps to a distinct category.
func TestDownloadFailureCategories(t *testing.T) {
	cases := map[gateway.Kind]domain.FailureCategory{
		gateway.KindNotFound:           domain.FailureArtifactNotReady,
		gateway.KindForbidden:          domain.FailureAccessDenied,
		gateway.KindServerError:        domain.FailureServerFault,
		gateway.KindMalformedResponse:  domain.FailureServerFault,
		gateway.KindNetworkUnreachable: domain.FailureConnectivity,
		gateway.KindTimeout:            domain.FailureConnectivity,
	}
	for kind, want := range cases {
		gw := &fakeGateway{transfer: func(context.Context, string) (io.ReadCloser, int64, error) {
			return nil, 0, &gateway.Error{Op: "transfer_artifact", Kind: kind}
		}}
		m, _ := newTestManager(t, gw)
		m.Open("job-1")

		got, err := m.Download(context.Background(), domain.ArtifactVideo)
		var transferErr *TransferError
		if !errors.As(err, &transferErr) || transferErr.Category != want {
			t.Fatalf("%s: error = %v, want category %s", kind, err, want)
		}
		if got.Transfer != domain.TransferFailed || got.Failure != want || got.Message == "" {
			t.Fatalf("%s: descriptor = %+v", kind, got)
		}
	}
}

// TestDownloadLocalStorageFailure verifies write problems are reported as local storage.
func TestDownloadLocalStorageFailure(t *testing.T) {
	m, _ := newTestManager(t, &fakeGateway{})
	m.mkdirAll = func(string, os.FileMode) error { return errors.New("read-only filesystem") }
	m.Open("job-1")

	got, err := m.Download(context.Background(), domain.ArtifactVideo)
	if err == nil {
		t.Fatal("expected error")
	}
	if got.Failure != domain.FailureLocalStorage {
		t.Fatalf("failure = %s, want local_storage", got.Failure)
	}
}

// TestRetryIgnoresUnavailableProbe verifies explicit retry always re-attempts.
func TestRetryIgnoresUnavailableProbe(t *testing.T) {
	gw := &fakeGateway{probe: func(string) (gateway.ProbeResult, error) {
		return gateway.ProbeResult{}, &gateway.Error{Op: "probe_artifact", Kind: gateway.KindNotFound}
	}}
	m, _ := newTestManager(t, gw)
	m.Open("job-1")

	if _, err := m.Probe(context.Background(), domain.ArtifactVideo); err == nil {
		t.Fatal("expected probe error")
	}
	got, err := m.Retry(context.Background(), domain.ArtifactVideo)
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if got.Transfer != domain.TransferSucceeded || got.Availability != domain.AvailabilityAvailable {
		t.Fatalf("descriptor = %+v", got)
	}
}

// TestDownloadRejectsConcurrentTransfer verifies one transfer per kind at a time.
func TestDownloadRejectsConcurrentTransfer(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	gw := &fakeGateway{transfer: func(context.Context, string) (io.ReadCloser, int64, error) {
		close(started)
		<-release
		return io.NopCloser(strings.NewReader(strings.Repeat("v", 300))), 300, nil
	}}
	m, _ := newTestManager(t, gw)
	m.Open("job-1")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := m.Download(context.Background(), domain.ArtifactVideo); err != nil {
			t.Errorf("first Download() error = %v", err)
		}
	}()

	<-started
	if _, err := m.Download(context.Background(), domain.ArtifactVideo); !errors.Is(err, ErrTransferInProgress) {
		t.Fatalf("second Download() error = %v, want %v", err, ErrTransferInProgress)
	}
	close(release)
	wg.Wait()
}

// TestProbeIsIdempotent verifies repeated probes without state change agree.
func TestProbeIsIdempotent(t *testing.T) {
	m, _ := newTestManager(t, &fakeGateway{})
	m.Open("job-1")

	first, err := m.Probe(context.Background(), domain.ArtifactAudio)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	second, err := m.Probe(context.Background(), domain.ArtifactAudio)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if first != second {
		t.Fatalf("probe results differ: %+v vs %+v", first, second)
	}
}

// TestOperationsBeforeOpen verifies calls without a job are rejected.
func TestOperationsBeforeOpen(t *testing.T) {
	m, _ := newTestManager(t, &fakeGateway{})
	if _, err := m.ProbeAll(context.Background()); !errors.Is(err, ErrNoJob) {
		t.Fatalf("ProbeAll() error = %v, want %v", err, ErrNoJob)
	}
	if _, err := m.Download(context.Background(), domain.ArtifactVideo); !errors.Is(err, ErrNoJob) {
		t.Fatalf("Download() error = %v, want %v", err, ErrNoJob)
	}
}

// TestSmallFileStillSucceeds verifies a tiny artifact is saved and flagged.
func TestSmallFileStillSucceeds(t *testing.T) {
	var mu sync.Mutex
	var messages []string
	gw := &fakeGateway{transfer: func(context.Context, string) (io.ReadCloser, int64, error) {
		return io.NopCloser(strings.NewReader("tiny")), 4, nil
	}}
	dir := filepath.Join(t.TempDir(), "downloads")
	m := NewManager(gw, Options{DownloadDir: dir, Notifier: domain.NotifierFunc(func(n domain.Notification) {
		mu.Lock()
		defer mu.Unlock()
		messages = append(messages, n.Message)
	})})
	m.Open("job-1")

	got, err := m.Download(context.Background(), domain.ArtifactAudio)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if got.Transfer != domain.TransferSucceeded {
		t.Fatalf("transfer = %s, want succeeded", got.Transfer)
	}

	mu.Lock()
	defer mu.Unlock()
	want := domain.Message(domain.LocaleEnglish, domain.MsgArtifactSmallFile, domain.ArtifactAudio)
	for _, msg := range messages {
		if msg == want {
			return
		}
	}
	t.Fatalf("messages = %v, want small-file warning", messages)
}
