package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"media-translator/internal/domain"
)

const (
	DefaultStatusTimeout   = 30 * time.Second
	DefaultTransferTimeout = 10 * time.Minute

	requestIDHeader = "X-Request-ID"
	userAgent       = "media-translator"
	maxErrorBody    = 4 << 10
)

// TokenSource supplies a bearer token for outbound calls.
type TokenSource interface {
	Token() (string, error)
}

// Options configures a Client.
type Options struct {
	BaseURL         string
	HTTPClient      *http.Client
	StatusTimeout   time.Duration
	TransferTimeout time.Duration
	Limiter         *rate.Limiter
	Tokens          TokenSource
	Logger          *slog.Logger
}

// Client is the only component that talks to the translation service.
type Client struct {
	baseURL         *url.URL
	httpClient      *http.Client
	statusTimeout   time.Duration
	transferTimeout time.Duration
	limiter         *rate.Limiter
	tokens          TokenSource
	logger          *slog.Logger
	newRequestID    func() string
}

// New validates options and builds a client.
func New(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		return nil, fmt.Errorf("service base url is required")
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse service base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("service base url must be http or https: %s", raw)
	}

	c := &Client{
		baseURL:         base,
		httpClient:      opts.HTTPClient,
		statusTimeout:   opts.StatusTimeout,
		transferTimeout: opts.TransferTimeout,
		limiter:         opts.Limiter,
		tokens:          opts.Tokens,
		logger:          opts.Logger,
		newRequestID:    uuid.NewString,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.statusTimeout <= 0 {
		c.statusTimeout = DefaultStatusTimeout
	}
	if c.transferTimeout <= 0 {
		c.transferTimeout = DefaultTransferTimeout
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// BaseURL returns the configured service root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Submit creates a job for a media URL or an uploaded handle.
func (c *Client) Submit(ctx context.Context, req domain.JobRequest) (string, error) {
	const op = "submit"

	var (
		endpoint string
		body     any
	)
	switch {
	case req.UploadHandle != "":
		endpoint = "/translate-file"
		body = translateFileRequest{
			FilePath:       req.UploadHandle,
			SourceLanguage: req.SourceLanguage,
			TargetLanguage: req.TargetLanguage,
		}
	case req.MediaURL != "":
		endpoint = "/translate"
		body = translateURLRequest{
			YoutubeURL:     req.MediaURL,
			SourceLanguage: req.SourceLanguage,
			TargetLanguage: req.TargetLanguage,
		}
	default:
		return "", fmt.Errorf("%s: media url or upload handle is required", op)
	}

	var resp submitResponse
	if err := c.doJSON(ctx, op, http.MethodPost, endpoint, body, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.TaskID) == "" {
		return "", malformed(op, "response has no task_id", nil)
	}
	return resp.TaskID, nil
}

// FetchStatus reads the current status snapshot of a job.
func (c *Client) FetchStatus(ctx context.Context, jobID string) (domain.StatusSnapshot, error) {
	const op = "fetch_status"

	var payload statusPayload
	if err := c.doJSON(ctx, op, http.MethodGet, "/status/"+url.PathEscape(jobID), nil, &payload); err != nil {
		return domain.StatusSnapshot{}, err
	}
	snapshot, detail, ok := payload.toSnapshot()
	if !ok {
		return domain.StatusSnapshot{}, malformed(op, detail, nil)
	}
	return snapshot, nil
}

// ArtifactURL derives the download location of one artifact kind.
func (c *Client) ArtifactURL(jobID string, kind domain.ArtifactKind) string {
	return c.resolve(path.Join("/download", url.PathEscape(jobID), string(kind)))
}

// ProbeArtifact checks availability without transferring the body.
func (c *Client) ProbeArtifact(ctx context.Context, artifactURL string) (ProbeResult, error) {
	const op = "probe_artifact"

	ctx, cancel := context.WithTimeout(ctx, c.statusTimeout)
	defer cancel()

	resp, err := c.send(ctx, op, http.MethodHead, artifactURL, nil, "")
	if err != nil {
		return ProbeResult{}, err
	}
	defer resp.Body.Close()

	return ProbeResult{
		SizeHint:    resp.ContentLength,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// TransferArtifact streams an artifact body. The caller must close the reader.
func (c *Client) TransferArtifact(ctx context.Context, artifactURL string) (io.ReadCloser, int64, error) {
	const op = "transfer_artifact"

	ctx, cancel := context.WithTimeout(ctx, c.transferTimeout)
	resp, err := c.send(ctx, op, http.MethodGet, artifactURL, nil, "")
	if err != nil {
		cancel()
		return nil, 0, err
	}
	return &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}, resp.ContentLength, nil
}

// Cancel asks the service to stop a job. Unknown and finished jobs are not errors.
func (c *Client) Cancel(ctx context.Context, jobID string) error {
	const op = "cancel"

	err := c.doJSON(ctx, op, http.MethodPost, "/tasks/"+url.PathEscape(jobID)+"/cancel", nil, nil)
	if err == nil {
		return nil
	}
	var gwErr *Error
	if errors.As(err, &gwErr) && (gwErr.StatusCode == http.StatusNotFound || gwErr.StatusCode == http.StatusBadRequest) {
		return nil
	}
	return err
}

// ListHistory returns the service-side task list.
func (c *Client) ListHistory(ctx context.Context, limit int) ([]RemoteTask, error) {
	const op = "list_history"

	endpoint := "/tasks"
	if limit > 0 {
		endpoint += "?limit=" + strconv.Itoa(limit)
	}
	var payload taskListPayload
	if err := c.doJSON(ctx, op, http.MethodGet, endpoint, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Tasks, nil
}

// Stats returns the service-wide task counters.
func (c *Client) Stats(ctx context.Context) (ServiceStats, error) {
	var stats ServiceStats
	if err := c.doJSON(ctx, "stats", http.MethodGet, "/stats", nil, &stats); err != nil {
		return ServiceStats{}, err
	}
	return stats, nil
}

// DeleteTask removes a task and its files from the service.
func (c *Client) DeleteTask(ctx context.Context, jobID string) error {
	return c.doJSON(ctx, "delete_task", http.MethodDelete, "/task/"+url.PathEscape(jobID), nil, nil)
}

// CreateShareLink creates a public link that expires after ttl.
func (c *Client) CreateShareLink(ctx context.Context, jobID string, ttl time.Duration) (ShareLink, error) {
	const op = "create_share_link"

	body := sharePayload{TaskID: jobID, TTLSeconds: int64(ttl / time.Second)}
	var resp shareResponse
	if err := c.doJSON(ctx, op, http.MethodPost, "/share", body, &resp); err != nil {
		return ShareLink{}, err
	}
	if resp.ShareURL == "" {
		return ShareLink{}, malformed(op, "response has no share_url", nil)
	}
	return ShareLink{
		URL:       resp.ShareURL,
		Token:     resp.ShareToken,
		ExpiresAt: unixSeconds(resp.ExpiresAt),
	}, nil
}

// UploadMedia uploads a local media file and returns the handle used for
// submission. progress, when set, is called as request bytes are sent.
func (c *Client) UploadMedia(ctx context.Context, filename string, content io.Reader, progress func(sent, total int64)) (UploadHandle, error) {
	const op = "upload_media"

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("video", path.Base(filename))
	if err != nil {
		return UploadHandle{}, fmt.Errorf("%s: create form file: %w", op, err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return UploadHandle{}, fmt.Errorf("%s: read media: %w", op, err)
	}
	if err := form.Close(); err != nil {
		return UploadHandle{}, fmt.Errorf("%s: close form: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.transferTimeout)
	defer cancel()

	var body io.Reader = &buf
	if progress != nil {
		body = &progressReader{r: &buf, total: int64(buf.Len()), report: progress}
	}
	resp, err := c.send(ctx, op, http.MethodPost, c.resolve("/upload"), body, form.FormDataContentType())
	if err != nil {
		return UploadHandle{}, err
	}
	defer resp.Body.Close()

	var handle UploadHandle
	if err := json.NewDecoder(resp.Body).Decode(&handle); err != nil {
		return UploadHandle{}, malformed(op, "decode upload response", err)
	}
	if handle.FilePath == "" {
		return UploadHandle{}, malformed(op, "response has no file_path", nil)
	}
	return handle, nil
}

// Health checks that the service answers.
func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, "health", http.MethodGet, "/health", nil, nil)
}

// Languages returns the service language catalog.
func (c *Client) Languages(ctx context.Context) ([]domain.Language, error) {
	var payload languagesPayload
	if err := c.doJSON(ctx, "languages", http.MethodGet, "/languages", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Languages, nil
}

// doJSON runs one bounded JSON call against a service path.
func (c *Client) doJSON(ctx context.Context, op, method, endpoint string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.statusTimeout)
	defer cancel()

	var reader io.Reader
	contentType := ""
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}

	resp, err := c.send(ctx, op, method, c.resolve(endpoint), reader, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return transportError(op, ctx.Err())
		}
		return malformed(op, "decode response", err)
	}
	return nil
}

// send performs the round trip and maps non-2xx responses to typed errors.
func (c *Client) send(ctx context.Context, op, method, target string, body io.Reader, contentType string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{Op: op, Kind: KindTimeout, Detail: "rate limit wait", Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	if sized, ok := body.(interface{ Size() int64 }); ok {
		req.ContentLength = sized.Size()
	}
	requestID := c.newRequestID()
	req.Header.Set(requestIDHeader, requestID)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			return nil, fmt.Errorf("%s: issue service token: %w", op, err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("gateway request failed", "op", op, "request_id", requestID, "error", err)
		return nil, transportError(op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := readErrorDetail(resp.Body)
		resp.Body.Close()
		c.logger.Debug("gateway request rejected", "op", op, "request_id", requestID, "status", resp.StatusCode)
		return nil, statusError(op, resp.StatusCode, detail)
	}
	return resp, nil
}

// resolve joins a service path or passes an absolute URL through.
func (c *Client) resolve(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return c.baseURL.String() + endpoint
}

// readErrorDetail extracts a FastAPI style {"detail": ...} body when present.
func readErrorDetail(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload errorPayload
	if err := json.Unmarshal(data, &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	return strings.TrimSpace(string(data))
}

// cancelOnClose releases the transfer deadline together with the body.
// progressReader reports cumulative bytes read from r.
type progressReader struct {
	r      io.Reader
	total  int64
	sent   int64
	report func(sent, total int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		p.report(p.sent, p.total)
	}
	return n, err
}

func (p *progressReader) Size() int64 {
	return p.total
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *cancelOnClose) Close() error {
	err := r.ReadCloser.Close()
	r.cancel()
	return err
}
