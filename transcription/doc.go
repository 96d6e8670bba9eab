// Package transcription is the protocol model of the OpenAI-compatible audio
// transcription endpoint: request validation, response shapes, segment
// construction and the streaming event model carried through the scheduler.
//
// Raw form input becomes a Request only through NewRequest; invalid input
// never reaches the work queue. Handlers reply with one of the Response
// variants:
//
//   - Transcription for response_format=json
//   - Text for response_format=text
//   - VerboseTranscription for response_format=verbose_json
//   - Event (Delta or Done) when the request asked for streaming
//
// # Usage
//
//	req, err := transcription.NewRequest(raw)
//	if err != nil {
//	    return err // *errors.AppError, category "validation"
//	}
//	rx, err := sched.Schedule(ctx, req)
//
// Handlers are registered by name in a Registry and instantiated once per
// worker, since inference backends are not assumed to be reentrant.
package transcription
