package whisper

import (
	"github.com/kbukum/speechgate/transcription"
)

type whisperResponse struct {
	Text     string           `json:"text"`
	Segments []whisperSegment `json:"segments"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
}

type whisperSegment struct {
	ID               *int     `json:"id"`
	Seek             int      `json:"seek"`
	Start            float64  `json:"start"`
	End              float64  `json:"end"`
	Text             string   `json:"text"`
	Tokens           []uint32 `json:"tokens"`
	Temperature      *float64 `json:"temperature"`
	AvgLogprob       float64  `json:"avg_logprob"`
	CompressionRatio float64  `json:"compression_ratio"`
	NoSpeechProb     float64  `json:"no_speech_prob"`
}

// toResult converts the sidecar payload. Missing ids and temperatures fall
// back to the segment index and the request temperature, and a missing
// compression ratio is computed from the text.
func toResult(req transcription.Request, resp *whisperResponse) (transcription.Result, error) {
	segments := make([]transcription.Segment, 0, len(resp.Segments))
	for i, s := range resp.Segments {
		id := i
		if s.ID != nil {
			id = *s.ID
		}
		temperature := req.Temperature()
		if s.Temperature != nil {
			temperature = *s.Temperature
		}
		ratio := s.CompressionRatio
		if ratio == 0 {
			ratio = transcription.CompressionRatio(s.Text)
		}
		seg, err := transcription.NewSegmentBuilder().
			ID(id).
			Seek(s.Seek).
			Start(s.Start).
			End(s.End).
			Temperature(temperature).
			Text(s.Text).
			Tokens(s.Tokens).
			AvgLogprob(s.AvgLogprob).
			CompressionRatio(ratio).
			NoSpeechProb(s.NoSpeechProb).
			Build()
		if err != nil {
			return transcription.Result{}, err
		}
		segments = append(segments, seg)
	}

	duration := resp.Duration
	if duration == 0 && len(segments) > 0 {
		duration = segments[len(segments)-1].End
	}
	language := resp.Language
	if language == "" {
		language = req.Language()
	}
	return transcription.Result{
		Text:     resp.Text,
		Duration: duration,
		Language: language,
		Segments: segments,
	}, nil
}
