package transcription

import (
	"encoding/json"
	"fmt"

	"github.com/kbukum/speechgate/errors"
)

// Content types produced by Render.
const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain; charset=utf-8"
)

// Response is a value a handler sends back for a Request: Transcription,
// Text, VerboseTranscription or Event.
type Response interface {
	response()
}

// Transcription is the response_format=json body.
type Transcription struct {
	Text string `json:"text"`
}

// Text is the response_format=text body, rendered verbatim.
type Text string

// VerboseTranscription is the response_format=verbose_json body.
type VerboseTranscription struct {
	Text     string    `json:"text"`
	Duration float64   `json:"duration"`
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

func (Transcription) response()        {}
func (Text) response()                 {}
func (VerboseTranscription) response() {}
func (Event) response()                {}

// Result is the material a handler has once inference finished. NewResponse
// shapes it for the request's response format.
type Result struct {
	Text     string
	Duration float64
	Language string
	Segments []Segment
}

// NewResponse returns the Response variant matching req.ResponseFormat().
func NewResponse(req Request, res Result) Response {
	switch req.ResponseFormat() {
	case FormatText:
		return Text(res.Text)
	case FormatVerboseJSON:
		lang := res.Language
		if lang == "" {
			lang = req.Language()
		}
		segments := res.Segments
		if segments == nil {
			segments = []Segment{}
		}
		return VerboseTranscription{
			Text:     res.Text,
			Duration: res.Duration,
			Language: lang,
			Segments: segments,
		}
	default:
		return Transcription{Text: res.Text}
	}
}

// Render serializes a non-streaming response into a content type and body.
// Events are written by the streaming path and cannot be rendered here.
func Render(resp Response) (string, []byte, error) {
	switch r := resp.(type) {
	case Text:
		return ContentTypeText, []byte(r), nil
	case Transcription, VerboseTranscription:
		body, err := json.Marshal(r)
		if err != nil {
			return "", nil, errors.Internal(err)
		}
		return ContentTypeJSON, body, nil
	case nil:
		return "", nil, errors.NoResponse()
	default:
		return "", nil, errors.Internal(fmt.Errorf("cannot render %T as a single response", resp))
	}
}
