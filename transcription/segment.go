package transcription

import (
	"fmt"

	"github.com/kbukum/speechgate/errors"
)

// Segment is a time-aligned part of a verbose transcription.
type Segment struct {
	ID               int      `json:"id"`
	Start            float64  `json:"start"`
	End              float64  `json:"end"`
	Seek             int      `json:"seek"`
	Temperature      float64  `json:"temperature"`
	Text             string   `json:"text"`
	Tokens           []uint32 `json:"tokens"`
	AvgLogprob       float64  `json:"avg_logprob"`
	CompressionRatio float64  `json:"compression_ratio"`
	NoSpeechProb     float64  `json:"no_speech_prob"`
}

// SegmentBuilder assembles a Segment. ID, Start, End, Temperature, Text and
// Tokens must be set before Build; the remaining fields default to zero.
type SegmentBuilder struct {
	seg Segment
	set uint8
}

const (
	segID uint8 = 1 << iota
	segStart
	segEnd
	segTemperature
	segText
	segTokens
)

var requiredSegmentFields = []struct {
	bit  uint8
	name string
}{
	{segID, "id"},
	{segStart, "start"},
	{segEnd, "end"},
	{segTemperature, "temperature"},
	{segText, "text"},
	{segTokens, "tokens"},
}

// NewSegmentBuilder returns an empty builder.
func NewSegmentBuilder() *SegmentBuilder {
	return &SegmentBuilder{}
}

func (b *SegmentBuilder) ID(id int) *SegmentBuilder {
	b.seg.ID = id
	b.set |= segID
	return b
}

func (b *SegmentBuilder) Start(sec float64) *SegmentBuilder {
	b.seg.Start = sec
	b.set |= segStart
	return b
}

func (b *SegmentBuilder) End(sec float64) *SegmentBuilder {
	b.seg.End = sec
	b.set |= segEnd
	return b
}

func (b *SegmentBuilder) Temperature(t float64) *SegmentBuilder {
	b.seg.Temperature = t
	b.set |= segTemperature
	return b
}

func (b *SegmentBuilder) Text(text string) *SegmentBuilder {
	b.seg.Text = text
	b.set |= segText
	return b
}

// Tokens sets the token ids. A nil slice still counts as set and renders as [].
func (b *SegmentBuilder) Tokens(tokens []uint32) *SegmentBuilder {
	if tokens == nil {
		tokens = []uint32{}
	}
	b.seg.Tokens = tokens
	b.set |= segTokens
	return b
}

func (b *SegmentBuilder) Seek(seek int) *SegmentBuilder {
	b.seg.Seek = seek
	return b
}

func (b *SegmentBuilder) AvgLogprob(v float64) *SegmentBuilder {
	b.seg.AvgLogprob = v
	return b
}

func (b *SegmentBuilder) CompressionRatio(v float64) *SegmentBuilder {
	b.seg.CompressionRatio = v
	return b
}

func (b *SegmentBuilder) NoSpeechProb(v float64) *SegmentBuilder {
	b.seg.NoSpeechProb = v
	return b
}

// Build returns the segment, or a MISSING_FIELD error naming the first
// required field that was never set.
func (b *SegmentBuilder) Build() (Segment, error) {
	for _, f := range requiredSegmentFields {
		if b.set&f.bit == 0 {
			return Segment{}, errors.MissingField(f.name, fmt.Sprintf("segment %s is not set", f.name))
		}
	}
	return b.seg, nil
}
