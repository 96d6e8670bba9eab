// Package openai exposes the transcription scheduler over an
// OpenAI-compatible HTTP surface.
//
// Handler serves POST {prefix}/audio/transcriptions. It decodes the
// multipart form, validates it into a transcription.Request, schedules it
// and writes either a single rendered body or a server-sent event stream of
// transcript deltas followed by a done event.
//
// Monitor publishes the scheduler's occupancy as engine_state_event events
// on GET {prefix}/state.
//
//	h := openai.NewHandler(sched, cfg, log)
//	h.Register(srv.GinEngine())
package openai
