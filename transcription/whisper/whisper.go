// Package whisper is the production transcription backend. It forwards each
// request to a faster-whisper HTTP sidecar and reshapes the result for the
// requested response format.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/kbukum/speechgate/errors"
	"github.com/kbukum/speechgate/logger"
	"github.com/kbukum/speechgate/provider"
	"github.com/kbukum/speechgate/resilience"
	"github.com/kbukum/speechgate/transcription"
)

const (
	// ProviderName is the registered name for the Whisper backend.
	ProviderName = "whisper"

	defaultWhisperURL     = "http://localhost:8387"
	defaultWhisperModel   = "base"
	defaultWhisperTimeout = 120 * time.Second
	maxErrorBody          = 4 << 10
)

// Config holds configuration for the Whisper backend.
type Config struct {
	URL            string                          `mapstructure:"url"`
	Model          string                          `mapstructure:"model"`
	Device         string                          `mapstructure:"device"`
	ComputeType    string                          `mapstructure:"compute_type"`
	Timeout        time.Duration                   `mapstructure:"timeout"`
	Retry          resilience.RetryConfig          `mapstructure:"retry"`
	CircuitBreaker resilience.CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// Backend implements transcription.Backend against the sidecar.
type Backend struct {
	cfg     Config
	client  *http.Client
	breaker *resilience.CircuitBreaker
	log     *logger.Logger
}

// New creates a Whisper backend.
func New(cfg Config) *Backend {
	if cfg.URL == "" {
		cfg.URL = defaultWhisperURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultWhisperModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultWhisperTimeout
	}
	cfg.Retry.ApplyDefaults()

	log := logger.WithComponent("backend." + ProviderName)
	cbCfg := cfg.CircuitBreaker
	cbCfg.Name = ProviderName
	cbCfg.IsFailure = isBackendFailure
	cbCfg.OnStateChange = func(name string, from, to resilience.State) {
		log.Warn("circuit breaker state changed", logger.Fields("breaker", name, "from", from.String(), "to", to.String()))
	}

	return &Backend{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: resilience.NewCircuitBreaker(cbCfg),
		log:     log,
	}
}

// Factory returns a provider.Factory that builds Whisper backends from a
// generic config map.
func Factory() provider.Factory[transcription.Backend] {
	return func(cfg map[string]any) (transcription.Backend, error) {
		var c Config
		if err := provider.DecodeConfig(cfg, &c); err != nil {
			return nil, err
		}
		return New(c), nil
	}
}

// Name returns the provider name.
func (b *Backend) Name() string { return ProviderName }

// Ping checks that the sidecar's /health endpoint answers 200.
func (b *Backend) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.cfg.URL+"/health", http.NoBody)
	if err != nil {
		return err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("whisper sidecar unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("whisper sidecar health returned %d", resp.StatusCode)
	}
	return nil
}

// Health reports degraded while the circuit breaker is not closed.
func (b *Backend) Health(ctx context.Context) provider.HealthStatus {
	state := b.breaker.State()
	details := map[string]any{"url": b.cfg.URL, "model": b.cfg.Model, "circuit": state.String()}
	if err := b.Ping(ctx); err != nil {
		return provider.HealthStatus{Status: provider.StatusUnavailable, Message: err.Error(), Details: details}
	}
	if state != resilience.StateClosed {
		return provider.HealthStatus{Status: provider.StatusDegraded, Message: "circuit " + state.String(), Details: details}
	}
	return provider.HealthStatus{Status: provider.StatusHealthy, Details: details}
}

// Handle transcribes req through the sidecar.
func (b *Backend) Handle(ctx context.Context, req transcription.Request, out transcription.Sink) error {
	body, contentType, err := b.encode(req)
	if err != nil {
		return errors.Internal(err)
	}

	cfg := b.cfg.Retry
	cfg.OnRetry = func(attempt int, err error, backoff time.Duration) {
		b.log.WithContext(ctx).Warn("retrying whisper request", logger.Fields("attempt", attempt, "backoff", backoff.String(), logger.FieldError, err.Error()))
	}
	result, err := resilience.Retry(ctx, cfg, func() (*whisperResponse, error) {
		var resp *whisperResponse
		err := b.breaker.Execute(func() error {
			var callErr error
			resp, callErr = b.post(ctx, body, contentType)
			return callErr
		})
		return resp, err
	})
	if err != nil {
		if stderrors.Is(err, resilience.ErrCircuitOpen) {
			return errors.ServiceUnavailable("whisper backend").WithCause(err)
		}
		return err
	}

	res, err := toResult(req, result)
	if err != nil {
		return err
	}

	if req.Stream() {
		w := transcription.NewStreamWriter(out)
		for _, seg := range res.Segments {
			if !w.Delta(seg.Text) {
				return nil
			}
		}
		if len(res.Segments) == 0 && res.Text != "" {
			w.Delta(res.Text)
		}
		w.Done()
		return nil
	}
	out.Send(transcription.NewResponse(req, res))
	return nil
}

// encode builds the sidecar form once so every retry can resend it.
func (b *Backend) encode(req transcription.Request) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	filename := req.Filename()
	if filename == "" {
		filename = "audio"
	}
	part, err := writer.CreateFormFile("audio", filename)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(req.File()); err != nil {
		return nil, "", fmt.Errorf("write audio data: %w", err)
	}

	fields := map[string]string{
		"model":       b.cfg.Model,
		"language":    req.Language(),
		"temperature": strconv.FormatFloat(req.Temperature(), 'f', -1, 64),
	}
	if req.Prompt() != "" {
		fields["initial_prompt"] = req.Prompt()
	}
	if b.cfg.Device != "" {
		fields["device"] = b.cfg.Device
	}
	if b.cfg.ComputeType != "" {
		fields["compute_type"] = b.cfg.ComputeType
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}

func (b *Backend) post(ctx context.Context, body []byte, contentType string) (*whisperResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.URL+"/transcribe", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", contentType)
	if id := logger.RequestIDFromContext(ctx); id != "" {
		httpReq.Header.Set("X-Request-Id", id)
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.ExternalServiceError(ProviderName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		cause := fmt.Errorf("whisper error (status %d): %s", resp.StatusCode, bytes.TrimSpace(msg))
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			return nil, errors.ExternalServiceError(ProviderName, cause)
		}
		return nil, errors.HandlerFailed(cause)
	}

	var result whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.HandlerFailed(fmt.Errorf("decode whisper response: %w", err))
	}
	return &result, nil
}

// isBackendFailure keeps caller cancellations and client-side rejections
// from tripping the breaker.
func isBackendFailure(err error) bool {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr.Code == errors.ErrCodeExternalService
	}
	return true
}
