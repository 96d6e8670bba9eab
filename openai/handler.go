package openai

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/speechgate/errors"
	"github.com/kbukum/speechgate/logger"
	"github.com/kbukum/speechgate/observability"
	"github.com/kbukum/speechgate/scheduler"
	"github.com/kbukum/speechgate/server"
	"github.com/kbukum/speechgate/sse"
	"github.com/kbukum/speechgate/transcription"
	"github.com/kbukum/speechgate/util"
)

var errClientGone = stderrors.New("openai: client connection lost")

// TranscriptionsPath is the transcription route relative to the API prefix.
const TranscriptionsPath = "/audio/transcriptions"

// Handler serves the OpenAI-compatible transcription endpoint on top of a
// transcription scheduler.
type Handler struct {
	sched   *transcription.Scheduler
	cfg     Config
	log     *logger.Logger
	metrics *observability.Metrics
	opts    []transcription.RequestOption
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithMetrics records failed requests by error category. m may be nil.
func WithMetrics(m *observability.Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// NewHandler creates a handler that schedules onto sched.
func NewHandler(sched *transcription.Scheduler, cfg Config, log *logger.Logger, opts ...HandlerOption) *Handler {
	cfg.ApplyDefaults()
	h := &Handler{
		sched: sched,
		cfg:   cfg,
		log:   log.WithComponent("openai"),
		opts:  cfg.requestOptions(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the handler's routes under the configured prefix.
func (h *Handler) Register(r gin.IRouter) {
	r.Group(h.cfg.APIPrefix).POST(TranscriptionsPath, h.Transcribe)
}

// Transcribe handles one transcription request from form decoding to the
// final byte of the response.
func (h *Handler) Transcribe(c *gin.Context) {
	ctx := c.Request.Context()
	log := h.log.WithContext(ctx)

	raw, err := readForm(c.Request)
	if err != nil {
		h.fail(c, err)
		return
	}
	req, err := transcription.NewRequest(raw, h.opts...)
	if err != nil {
		h.fail(c, err)
		return
	}

	log.Info(fmt.Sprintf("Received audio file %s (%d kB)", req.ContentType(), req.Size()/1024), logger.Fields(
		"filename", util.SanitizeString(req.Filename()),
		"response_format", string(req.ResponseFormat()),
		"language", req.Language(),
		"stream", req.Stream(),
	))
	observability.SetSpanAttribute(ctx, observability.AttrResponseFormat, string(req.ResponseFormat()))
	observability.SetSpanAttribute(ctx, observability.AttrLanguage, req.Language())
	observability.SetSpanAttribute(ctx, observability.AttrStream, req.Stream())
	observability.SetSpanAttribute(ctx, observability.AttrFileSize, req.Size())

	rx, err := h.sched.Schedule(ctx, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer rx.Abandon()

	waitCtx := ctx
	if h.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, h.cfg.RequestTimeout)
		defer cancel()
	}

	if req.Stream() {
		h.stream(waitCtx, c, rx)
		return
	}
	h.reply(waitCtx, c, rx)
}

func (h *Handler) reply(ctx context.Context, c *gin.Context, rx *scheduler.Receiver[transcription.Response]) {
	resp, err := scheduler.Await(ctx, rx)
	if err != nil {
		h.failWait(c, err)
		return
	}
	contentType, body, err := transcription.Render(resp)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, contentType, body)
}

// stream waits for the first event before committing to a 200 so that
// failures ahead of any output still get a proper error status. Once the
// stream is open a failure is sent as a final "error" event.
func (h *Handler) stream(ctx context.Context, c *gin.Context, rx *scheduler.Receiver[transcription.Response]) {
	first, err := rx.Next(ctx)
	if err != nil {
		h.failWait(c, err)
		return
	}

	stream, err := sse.NewStream(c.Writer)
	if err != nil {
		h.fail(c, errors.Internal(err))
		return
	}
	c.Status(http.StatusOK)

	// The request timeout covers the wait for the first event only.
	ctx = c.Request.Context()
	log := h.log.WithContext(ctx)
	keepAlive := time.NewTicker(h.cfg.StreamKeepAlive)
	defer keepAlive.Stop()

	events := 0
	resp := first
	for {
		if err := stream.Send(sse.Event{Data: eventData(resp)}); err != nil {
			log.Debug("stream write failed", logger.Fields(logger.FieldError, err.Error()))
			return
		}
		events++

		resp, err = h.nextEvent(ctx, rx, stream, keepAlive.C)
		switch {
		case err == io.EOF:
			log.Debug("stream finished", logger.Fields("events", events))
			return
		case err != nil && (ctx.Err() != nil || stderrors.Is(err, errClientGone)):
			log.Debug("client disconnected mid-stream", logger.Fields("events", events))
			return
		case err != nil:
			appErr := h.record(ctx, err)
			log.Warn("stream failed", logger.Fields(logger.FieldError, appErr.Error(), "events", events))
			body, _ := json.Marshal(appErr.ToResponse())
			_ = stream.Send(sse.Event{Name: "error", Data: body})
			return
		}
	}
}

// nextEvent waits for the next reply, writing keep-alive comments while
// the handler is quiet.
func (h *Handler) nextEvent(ctx context.Context, rx *scheduler.Receiver[transcription.Response], stream *sse.Stream, tick <-chan time.Time) (transcription.Response, error) {
	type result struct {
		resp transcription.Response
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		resp, err := rx.Next(ctx)
		ch <- result{resp, err}
	}()
	for {
		select {
		case r := <-ch:
			return r.resp, r.err
		case <-tick:
			if err := stream.KeepAlive(); err != nil {
				rx.Abandon()
				<-ch
				return nil, errClientGone
			}
		}
	}
}

func eventData(resp transcription.Response) []byte {
	ev, ok := resp.(transcription.Event)
	if !ok {
		ev = transcription.Delta(transcription.TextOf(resp))
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return []byte("{}")
	}
	return data
}

// failWait reports a failed wait for a reply. A client that went away gets
// nothing written.
func (h *Handler) failWait(c *gin.Context, err error) {
	reqCtx := c.Request.Context()
	switch {
	case reqCtx.Err() != nil:
		h.log.WithContext(reqCtx).Debug("client disconnected before reply", logger.Fields("reason", reqCtx.Err().Error()))
		c.Abort()
	case stderrors.Is(err, context.DeadlineExceeded):
		h.fail(c, errors.Timeout("transcription"))
	default:
		h.fail(c, err)
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	appErr := h.record(c.Request.Context(), err)
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		h.log.WithContext(c.Request.Context()).Error("transcription failed", logger.Fields(
			logger.FieldError, appErr.Error(),
			"code", string(appErr.Code),
		))
	}
	server.RespondWithError(c, appErr)
}

func (h *Handler) record(ctx context.Context, err error) *errors.AppError {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		appErr = errors.Internal(err)
	}
	observability.SetSpanAttribute(ctx, observability.AttrErrorCode, string(appErr.Code))
	if h.metrics != nil {
		h.metrics.RecordError(ctx, string(appErr.Category()), "openai")
	}
	return appErr
}
