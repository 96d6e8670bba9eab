// Package stub provides a deterministic transcription backend that never
// touches a model. It is the default backend for tests and local runs.
package stub

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kbukum/speechgate/logger"
	"github.com/kbukum/speechgate/provider"
	"github.com/kbukum/speechgate/transcription"
)

// ProviderName is the registered name of the stub backend.
const ProviderName = "stub"

const defaultBytesPerSecond = 32000 // 16 kHz, 16-bit mono PCM

// Config tunes the stub backend.
type Config struct {
	// Text is returned as the transcript. When empty the transcript
	// describes the received file.
	Text string `mapstructure:"text"`
	// Delay simulates inference latency. The wait honours cancellation.
	Delay time.Duration `mapstructure:"delay"`
	// BytesPerSecond converts the file size into an audio duration.
	BytesPerSecond int `mapstructure:"bytes_per_second"`
	// WordsPerSegment splits verbose output and streaming deltas.
	WordsPerSegment int `mapstructure:"words_per_segment"`
}

// Backend implements transcription.Backend without inference.
type Backend struct {
	cfg Config
	log *logger.Logger
}

// New creates a stub backend.
func New(cfg Config) *Backend {
	if cfg.BytesPerSecond <= 0 {
		cfg.BytesPerSecond = defaultBytesPerSecond
	}
	if cfg.WordsPerSegment <= 0 {
		cfg.WordsPerSegment = 8
	}
	return &Backend{cfg: cfg, log: logger.WithComponent("backend." + ProviderName)}
}

// Factory returns a provider.Factory building stub backends from a config map.
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

// Ping always succeeds.
func (b *Backend) Ping(context.Context) error { return nil }

// Handle replies with a deterministic transcript shaped for the request.
// Streaming requests receive one Delta per segment followed by Done.
func (b *Backend) Handle(ctx context.Context, req transcription.Request, out transcription.Sink) error {
	if b.cfg.Delay > 0 {
		t := time.NewTimer(b.cfg.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}

	text := b.cfg.Text
	if text == "" {
		text = fmt.Sprintf("received %d bytes of %s audio", req.Size(), req.ContentType())
	}
	duration := float64(req.Size()) / float64(b.cfg.BytesPerSecond)
	chunks := split(text, b.cfg.WordsPerSegment)

	b.log.Debug("stub transcript", logger.Fields("bytes", req.Size(), "chunks", len(chunks), "stream", req.Stream()))

	if req.Stream() {
		w := transcription.NewStreamWriter(out)
		for i, c := range chunks {
			if i > 0 {
				c = " " + c
			}
			if !w.Delta(c) {
				return nil
			}
		}
		w.Done()
		return nil
	}

	var segments []transcription.Segment
	if req.ResponseFormat() == transcription.FormatVerboseJSON {
		var err error
		if segments, err = b.segments(req, chunks, duration); err != nil {
			return err
		}
	}
	out.Send(transcription.NewResponse(req, transcription.Result{
		Text:     text,
		Duration: duration,
		Language: req.Language(),
		Segments: segments,
	}))
	return nil
}

// segments spreads chunks evenly over duration.
func (b *Backend) segments(req transcription.Request, chunks []string, duration float64) ([]transcription.Segment, error) {
	step := duration / float64(len(chunks))
	segments := make([]transcription.Segment, 0, len(chunks))
	for i, c := range chunks {
		tokens := make([]uint32, 0, len(c))
		for _, r := range c {
			tokens = append(tokens, uint32(r))
		}
		seg, err := transcription.NewSegmentBuilder().
			ID(i).
			Start(float64(i) * step).
			End(float64(i+1) * step).
			Temperature(req.Temperature()).
			Text(c).
			Tokens(tokens).
			CompressionRatio(transcription.CompressionRatio(c)).
			Build()
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// split groups the words of text into chunks of n words.
func split(text string, n int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{text}
	}
	var chunks []string
	for len(words) > 0 {
		k := min(n, len(words))
		chunks = append(chunks, strings.Join(words[:k], " "))
		words = words[k:]
	}
	return chunks
}
