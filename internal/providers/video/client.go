package video

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"camclip/internal/domain"
	"camclip/internal/infra"
)

// Timing contract for the provider.
const (
	SubmitTimeout    = 30 * time.Second
	SubmitAttempts   = 3
	SubmitRetryDelay = 1 * time.Second
	PollInterval     = 10 * time.Second
	PollTimeout      = 600 * time.Second
	DownloadTimeout  = 60 * time.Second
)

const (
	maxDownloadBytes = 512 << 20
	negativePrompt   = "looking at the camera, waving at the camera, breaking the fourth wall, text, watermark, distorted face"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("video: api key is required")

// ImageSource is either a ready base64 payload or a URL to fetch.
type ImageSource struct {
	Base64 string
	URL    string
}

// Request describes one generation job.
type Request struct {
	OrderID  string
	Image    ImageSource
	Prompt   string
	Duration string
	Enhance  bool
	Scene    *domain.SceneAnalysis
	// OnStatus is invoked after submission and whenever the mapped provider
	// status changes.
	OnStatus func(jobID string, status Status)
}

// Result is returned for every generation attempt; failures are reported in
// it rather than as errors.
type Result struct {
	Success      bool
	JobID        string
	VideoURL     string
	ThumbnailURL string
	Error        string
	Failure      FailureKind
	ElapsedMs    int64
}

// Generator is the capability the workflow depends on.
type Generator interface {
	GenerateVideo(ctx context.Context, req Request) Result
	Download(ctx context.Context, rawURL string) ([]byte, string, error)
}

// Options configures the Freepik image-to-video client.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger

	// Clock hooks; tests replace them to simulate time.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error

	SubmitAttempts   int
	SubmitRetryDelay time.Duration
	PollInterval     time.Duration
	PollTimeout      time.Duration
}

// Client drives a Freepik image-to-video job from submission to a terminal
// state.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     infra.Logger
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error

	submitAttempts   int
	submitRetryDelay time.Duration
	pollInterval     time.Duration
	pollTimeout      time.Duration
}

type submitRequest struct {
	Image          string  `json:"image"`
	Prompt         string  `json:"prompt"`
	Duration       string  `json:"duration"`
	NegativePrompt string  `json:"negative_prompt,omitempty"`
	CFGScale       float64 `json:"cfg_scale,omitempty"`
}

type providerError struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details"`
}

type taskPayload struct {
	TaskID    string          `json:"task_id"`
	Status    string          `json:"status"`
	Generated json.RawMessage `json:"generated"`
	VideoURL  string          `json:"video_url"`
	Thumbnail string          `json:"thumbnail"`
	Message   string          `json:"message"`
	Error     *providerError  `json:"error"`
}

// taskEnvelope accepts both {data:{task_id}} and a flat {task_id}.
type taskEnvelope struct {
	Data *taskPayload `json:"data"`
	taskPayload
}

func (e taskEnvelope) payload() taskPayload {
	if e.Data != nil && (e.Data.TaskID != "" || e.Data.Status != "") {
		return *e.Data
	}
	return e.taskPayload
}

type errorResponse struct {
	Message       string         `json:"message"`
	Error         *providerError `json:"error"`
	InvalidParams []struct {
		Field  string `json:"field"`
		Reason string `json:"reason"`
	} `json:"invalid_params"`
}

// NewClient constructs a client with the contract timings and injected
// dependencies.
// NewHTTPClient returns the transport the video client expects: no overall
// Client.Timeout, since submit, status checks and downloads each carry their
// own context deadline, and a bound on waiting for response headers.
func NewHTTPClient(headerTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = headerTimeout
	return &http.Client{Transport: transport}
}

func NewClient(opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.freepik.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "kling-v2-1-pro"
	}
	logger := infra.NopLogger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	c := &Client{
		apiKey:           apiKey,
		baseURL:          baseURL,
		model:            model,
		httpClient:       httpClient,
		logger:           logger.With().Str("provider", "freepik").Logger(),
		now:              now,
		sleep:            sleep,
		submitAttempts:   SubmitAttempts,
		submitRetryDelay: SubmitRetryDelay,
		pollInterval:     PollInterval,
		pollTimeout:      PollTimeout,
	}
	if opts.SubmitAttempts > 0 {
		c.submitAttempts = opts.SubmitAttempts
	}
	if opts.SubmitRetryDelay > 0 {
		c.submitRetryDelay = opts.SubmitRetryDelay
	}
	if opts.PollInterval > 0 {
		c.pollInterval = opts.PollInterval
	}
	if opts.PollTimeout > 0 {
		c.pollTimeout = opts.PollTimeout
	}
	return c, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GenerateVideo resolves the image, optionally enhances the prompt, submits
// the job and polls it to a terminal state within the poll ceiling.
func (c *Client) GenerateVideo(ctx context.Context, req Request) Result {
	start := c.now()
	log := c.logger.With().Str("order_id", req.OrderID).Logger()
	finish := func(res Result) Result {
		res.ElapsedMs = c.now().Sub(start).Milliseconds()
		return res
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return finish(Result{Error: "prompt is required", Failure: FailureInput})
	}
	if req.Enhance {
		prompt = EnhancePrompt(prompt, req.Scene)
	}

	image, err := c.resolveImage(ctx, req.Image)
	if err != nil {
		log.Error().Err(err).Msg("resolve source image failed")
		return finish(Result{Error: err.Error(), Failure: FailureInput})
	}

	payload := submitRequest{
		Image:          image,
		Prompt:         prompt,
		Duration:       NormalizeDuration(req.Duration),
		NegativePrompt: negativePrompt,
		CFGScale:       0.5,
	}

	var (
		task      taskPayload
		submitErr error
	)
	for attempt := 1; attempt <= c.submitAttempts; attempt++ {
		task, submitErr = c.submit(ctx, payload)
		if submitErr == nil {
			break
		}
		log.Warn().Err(submitErr).Int("attempt", attempt).Msg("video submission failed")
		if attempt < c.submitAttempts {
			if err := c.sleep(ctx, c.submitRetryDelay); err != nil {
				submitErr = err
				break
			}
		}
	}
	if submitErr != nil {
		return finish(Result{Error: submitErr.Error(), Failure: FailureSubmission})
	}

	jobID := task.TaskID
	status := ParseProviderStatus(task.Status)
	if status == StatusUnknown {
		status = StatusQueued
	}
	log = log.With().Str("task_id", jobID).Logger()
	log.Info().Str("status", string(status)).Msg("video job submitted")
	notify(req.OnStatus, jobID, status)

	res := c.poll(ctx, log, jobID, status, req.OnStatus)
	res.JobID = jobID
	return finish(res)
}

func (c *Client) poll(ctx context.Context, log infra.Logger, jobID string, last Status, onStatus func(string, Status)) Result {
	submittedAt := c.now()
	deadline := submittedAt.Add(c.pollTimeout)

	for {
		if err := c.sleep(ctx, c.pollInterval); err != nil {
			return Result{Error: "video generation interrupted: " + err.Error(), Failure: FailureTimeout}
		}
		if !c.now().Before(deadline) {
			log.Warn().Dur("waited", c.now().Sub(submittedAt)).Msg("video job timed out")
			return Result{Error: fmt.Sprintf("video generation timed out after %s", c.pollTimeout), Failure: FailureTimeout}
		}

		task, err := c.fetchStatus(ctx, jobID)
		if err != nil {
			if deadline.Sub(c.now()) <= c.pollInterval {
				log.Error().Err(err).Msg("status check failed near timeout")
				return Result{Error: "video generation timed out, last status check failed: " + err.Error(), Failure: FailureTimeout}
			}
			log.Warn().Err(err).Msg("status check failed, retrying")
			continue
		}

		status := ParseProviderStatus(task.Status)
		if status == StatusUnknown {
			log.Warn().Str("provider_status", task.Status).Msg("unknown provider status")
		}
		if status != last {
			last = status
			notify(onStatus, jobID, status)
		}

		if !status.Terminal() {
			continue
		}
		switch status {
		case StatusCompleted:
			urls := artifactURLs(task)
			if len(urls) == 0 {
				return Result{Error: "video generation completed but no artifact was returned", Failure: FailureNoArtifact}
			}
			log.Info().Str("video_url", urls[0]).Msg("video job completed")
			return Result{Success: true, VideoURL: urls[0], ThumbnailURL: strings.TrimSpace(task.Thumbnail)}
		case StatusFailed:
			return Result{Error: providerMessage(task, "video generation failed"), Failure: FailureProvider}
		case StatusCancelled:
			return Result{Error: providerMessage(task, "video generation was cancelled"), Failure: FailureCancelled}
		}
	}
}

func notify(fn func(string, Status), jobID string, status Status) {
	if fn != nil {
		fn(jobID, status)
	}
}

func (c *Client) endpoint() string {
	return c.baseURL + "/ai/image-to-video/" + url.PathEscape(c.model)
}

func (c *Client) submit(ctx context.Context, payload submitRequest) (taskPayload, error) {
	ctx, cancel := context.WithTimeout(ctx, SubmitTimeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return taskPayload{}, fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return taskPayload{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	task, err := c.do(httpReq)
	if err != nil {
		return taskPayload{}, err
	}
	if strings.TrimSpace(task.TaskID) == "" {
		return taskPayload{}, errors.New("provider response did not include a task id")
	}
	return task, nil
}

func (c *Client) fetchStatus(ctx context.Context, jobID string) (taskPayload, error) {
	ctx, cancel := context.WithTimeout(ctx, SubmitTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint()+"/"+url.PathEscape(jobID), nil)
	if err != nil {
		return taskPayload{}, fmt.Errorf("build status request: %w", err)
	}
	return c.do(httpReq)
}

func (c *Client) do(httpReq *http.Request) (taskPayload, error) {
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("x-freepik-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return taskPayload{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return taskPayload{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return taskPayload{}, errors.New(apiErrorMessage(resp.StatusCode, raw))
	}

	var env taskEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return taskPayload{}, fmt.Errorf("decode response: %w", err)
	}
	return env.payload(), nil
}

// apiErrorMessage prefers the provider's structured message and falls back to
// the raw body.
func apiErrorMessage(status int, raw []byte) string {
	var detail errorResponse
	if err := json.Unmarshal(raw, &detail); err == nil {
		msg := detail.Message
		if detail.Error != nil && detail.Error.Message != "" {
			msg = detail.Error.Message
		}
		if msg != "" {
			for _, p := range detail.InvalidParams {
				msg += fmt.Sprintf("; %s: %s", p.Field, p.Reason)
			}
			return msg
		}
	}
	body := strings.TrimSpace(string(raw))
	if body == "" {
		return fmt.Sprintf("provider returned status %d", status)
	}
	return body
}

func providerMessage(task taskPayload, fallback string) string {
	if e := task.Error; e != nil && e.Message != "" {
		msg := e.Message
		if e.Code != "" {
			msg += " (" + e.Code + ")"
		}
		if details := strings.TrimSpace(string(e.Details)); details != "" && details != "null" && details != `""` {
			msg += ": " + strings.Trim(details, `"`)
		}
		return msg
	}
	if msg := strings.TrimSpace(task.Message); msg != "" {
		return msg
	}
	return fallback
}

// artifactURLs reads the generated list, which is either strings or objects
// carrying a url field.
func artifactURLs(task taskPayload) []string {
	var out []string
	if len(task.Generated) > 0 {
		var plain []string
		if err := json.Unmarshal(task.Generated, &plain); err == nil {
			for _, u := range plain {
				if u = strings.TrimSpace(u); u != "" {
					out = append(out, u)
				}
			}
		} else {
			var objects []struct {
				URL string `json:"url"`
			}
			if err := json.Unmarshal(task.Generated, &objects); err == nil {
				for _, o := range objects {
					if u := strings.TrimSpace(o.URL); u != "" {
						out = append(out, u)
					}
				}
			}
		}
	}
	if u := strings.TrimSpace(task.VideoURL); u != "" {
		out = append(out, u)
	}
	return out
}

func (c *Client) resolveImage(ctx context.Context, src ImageSource) (string, error) {
	if b64 := strings.TrimSpace(src.Base64); b64 != "" {
		if i := strings.Index(b64, ";base64,"); i >= 0 {
			b64 = b64[i+len(";base64,"):]
		}
		return b64, nil
	}
	if strings.TrimSpace(src.URL) == "" {
		return "", errors.New("source image is required")
	}
	data, _, err := c.Download(ctx, src.URL)
	if err != nil {
		return "", fmt.Errorf("fetch source image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Download fetches an artifact with its own timeout and returns the bytes and
// content type.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, "", fmt.Errorf("invalid download url: %q", rawURL)
	}
	ctx, cancel := context.WithTimeout(ctx, DownloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read download: %w", err)
	}
	if len(data) > maxDownloadBytes {
		return nil, "", fmt.Errorf("download exceeds %d bytes", maxDownloadBytes)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

var _ Generator = (*Client)(nil)
