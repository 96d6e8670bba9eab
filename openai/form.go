package openai

import (
	stderrors "errors"
	"fmt"
	"io"
	"net/http"

	"github.com/kbukum/speechgate/errors"
	"github.com/kbukum/speechgate/server/middleware"
	"github.com/kbukum/speechgate/transcription"
)

// readForm decodes a multipart/form-data body part by part, keeping field
// arrival order so the first unknown field is the one reported. The "file"
// part counts as the audio file when it carries a filename or a content
// type; a plain text part of that name is ignored.
func readForm(r *http.Request) (transcription.RawInput, error) {
	var raw transcription.RawInput

	mr, err := r.MultipartReader()
	if err != nil {
		return raw, formError(err)
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return raw, nil
		}
		if err != nil {
			return raw, formError(err)
		}

		name := part.FormName()
		filename := part.FileName()
		contentType := part.Header.Get("Content-Type")
		data, err := io.ReadAll(part)
		_ = part.Close()
		if err != nil {
			return raw, formError(err)
		}
		if name == "" {
			continue
		}

		if name == transcription.FieldFile && (filename != "" || contentType != "") {
			raw.File = &transcription.FilePart{
				Data:        data,
				ContentType: contentType,
				Filename:    filename,
			}
			continue
		}
		raw.Set(name, string(data))
	}
}

func formError(err error) error {
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		return middleware.BodyTooLarge(tooLarge.Limit)
	}
	return errors.Validation(fmt.Sprintf("Invalid multipart form: %v", err)).WithCause(err)
}
