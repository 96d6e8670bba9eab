package transcription

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/kbukum/speechgate/errors"
	"github.com/kbukum/speechgate/validation"
)

// Form field names accepted by the transcription endpoint.
const (
	FieldFile           = "file"
	FieldLanguage       = "language"
	FieldModel          = "model"
	FieldPrompt         = "prompt"
	FieldTemperature    = "temperature"
	FieldResponseFormat = "response_format"
	FieldStream         = "stream"
)

// KnownFields lists every recognized form field.
var KnownFields = []string{
	FieldFile, FieldLanguage, FieldModel, FieldPrompt,
	FieldTemperature, FieldResponseFormat, FieldStream,
}

// DefaultLanguage is used when the language field is omitted.
const DefaultLanguage = "en"

// UnknownContentType is recorded when the file part carries no content type.
const UnknownContentType = "unknown"

// ResponseFormat selects the shape of a non-streaming response.
type ResponseFormat string

const (
	FormatJSON        ResponseFormat = "json"
	FormatText        ResponseFormat = "text"
	FormatVerboseJSON ResponseFormat = "verbose_json"
)

// ParseResponseFormat returns the format named by s. An empty s yields
// FormatJSON.
func ParseResponseFormat(s string) (ResponseFormat, error) {
	switch ResponseFormat(s) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatText:
		return FormatText, nil
	case FormatVerboseJSON:
		return FormatVerboseJSON, nil
	default:
		return "", errors.Validation(fmt.Sprintf("Unknown response_format: %s. Possible values are: 'json', 'verbose_json', 'text'.", s)).
			WithDetail("field", FieldResponseFormat)
	}
}

// FilePart is the decoded binary file field of a form.
type FilePart struct {
	Data        []byte
	ContentType string
	Filename    string
}

// RawInput is a decoded multipart form before validation.
type RawInput struct {
	// Fields holds the text fields by name.
	Fields map[string]string
	// File is nil when the form had no file part.
	File *FilePart
	// Unknown lists field names outside KnownFields, in arrival order.
	Unknown []string
}

// Set records a text field, tracking names outside KnownFields. A text
// part named "file" is dropped since the file must arrive as a binary part.
func (r *RawInput) Set(name, value string) {
	if name == FieldFile {
		return
	}
	if !slices.Contains(KnownFields, name) {
		r.Unknown = append(r.Unknown, name)
		return
	}
	if r.Fields == nil {
		r.Fields = make(map[string]string)
	}
	r.Fields[name] = value
}

// Request is a validated transcription request. It is immutable.
type Request struct {
	file        []byte
	contentType string
	filename    string
	language    string
	prompt      string
	model       string
	temperature float64
	format      ResponseFormat
	stream      bool
}

// RequestOption tunes NewRequest.
type RequestOption func(*requestOptions)

type requestOptions struct {
	defaultLanguage string
	strictLanguage  bool
}

// WithDefaultLanguage overrides DefaultLanguage.
func WithDefaultLanguage(lang string) RequestOption {
	return func(o *requestOptions) {
		if lang != "" {
			o.defaultLanguage = lang
		}
	}
}

// WithStrictLanguage rejects languages outside the ISO-639-1 table.
func WithStrictLanguage(strict bool) RequestOption {
	return func(o *requestOptions) { o.strictLanguage = strict }
}

// NewRequest validates raw and builds a Request. Checks run in order:
// unknown fields, file presence, response_format, language, temperature,
// stream. The first failure is returned as a validation *errors.AppError.
func NewRequest(raw RawInput, opts ...RequestOption) (Request, error) {
	o := requestOptions{defaultLanguage: DefaultLanguage}
	for _, opt := range opts {
		opt(&o)
	}

	if len(raw.Unknown) > 0 {
		return Request{}, errors.Validation(fmt.Sprintf("Unknown field: %s", raw.Unknown[0])).
			WithDetail("field", raw.Unknown[0])
	}
	if raw.File == nil {
		return Request{}, errors.MissingField(FieldFile, "Required parameter 'file' was not provided")
	}

	field := func(name string) string { return strings.TrimSpace(raw.Fields[name]) }

	format, err := ParseResponseFormat(field(FieldResponseFormat))
	if err != nil {
		return Request{}, err
	}

	language := strings.ToLower(field(FieldLanguage))
	if language == "" {
		language = o.defaultLanguage
	}
	if o.strictLanguage && !IsSupportedLanguage(language) {
		return Request{}, errors.Validation(fmt.Sprintf("%s is not a valid ISO-639-1 language format.", language)).
			WithDetail("field", FieldLanguage)
	}

	var temperature float64
	if s := field(FieldTemperature); s != "" {
		temperature, err = strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(temperature) || math.IsInf(temperature, 0) {
			return Request{}, errors.InvalidFormat(FieldTemperature, "float between 0 and 1")
		}
	}
	if err := validation.New().FloatRange(FieldTemperature, temperature, 0, 1).Err(); err != nil {
		return Request{}, err
	}

	var stream bool
	if s := field(FieldStream); s != "" {
		stream, err = strconv.ParseBool(s)
		if err != nil {
			return Request{}, errors.InvalidFormat(FieldStream, "boolean")
		}
	}

	contentType := raw.File.ContentType
	if contentType == "" {
		contentType = UnknownContentType
	}

	return Request{
		file:        raw.File.Data,
		contentType: contentType,
		filename:    raw.File.Filename,
		language:    language,
		prompt:      raw.Fields[FieldPrompt],
		model:       field(FieldModel),
		temperature: temperature,
		format:      format,
		stream:      stream,
	}, nil
}

// File returns the audio bytes. Callers must not modify the slice.
func (r Request) File() []byte { return r.file }

// ContentType returns the content type of the file part.
func (r Request) ContentType() string { return r.contentType }

// Filename returns the client-supplied file name, possibly empty.
func (r Request) Filename() string { return r.filename }

// Language returns the ISO-639-1 language of the audio.
func (r Request) Language() string { return r.language }

// Prompt returns the optional decoding prompt.
func (r Request) Prompt() string { return r.prompt }

// Model returns the requested model name. The gateway does not route on it.
func (r Request) Model() string { return r.model }

// Temperature returns the sampling temperature in [0, 1].
func (r Request) Temperature() float64 { return r.temperature }

// ResponseFormat returns the requested non-streaming response shape.
func (r Request) ResponseFormat() ResponseFormat { return r.format }

// Stream reports whether the caller asked for Delta/Done events.
func (r Request) Stream() bool { return r.stream }

// Size returns the file size in bytes.
func (r Request) Size() int { return len(r.file) }
