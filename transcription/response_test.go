package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	apperrors "github.com/kbukum/speechgate/errors"
	"github.com/kbukum/speechgate/scheduler"
)

type collectSink struct {
	got    []Response
	closed bool
}

func (c *collectSink) Send(r Response) bool {
	if c.closed {
		return false
	}
	c.got = append(c.got, r)
	return true
}

func TestSegmentBuilder(t *testing.T) {
	seg, err := NewSegmentBuilder().
		ID(1).Start(0.5).End(2).Temperature(0.2).Text("hi").Tokens([]uint32{7, 8}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if seg.Seek != 0 || seg.AvgLogprob != 0 || seg.CompressionRatio != 0 || seg.NoSpeechProb != 0 {
		t.Errorf("optional fields not zeroed: %+v", seg)
	}

	body, _ := json.Marshal(seg)
	want := `{"id":1,"start":0.5,"end":2,"seek":0,"temperature":0.2,"text":"hi","tokens":[7,8],"avg_logprob":0,"compression_ratio":0,"no_speech_prob":0}`
	if string(body) != want {
		t.Errorf("segment JSON\n got %s\nwant %s", body, want)
	}
}

func TestSegmentBuilder_MissingFields(t *testing.T) {
	full := func() *SegmentBuilder {
		return NewSegmentBuilder().ID(0).Start(0).End(1).Temperature(0).Text("").Tokens(nil)
	}
	if _, err := full().Build(); err != nil {
		t.Fatalf("zero values count as set: %v", err)
	}

	tests := []struct {
		field string
		b     *SegmentBuilder
	}{
		{"id", NewSegmentBuilder().Start(0).End(1).Temperature(0).Text("").Tokens(nil)},
		{"start", NewSegmentBuilder().ID(0).End(1).Temperature(0).Text("").Tokens(nil)},
		{"end", NewSegmentBuilder().ID(0).Start(0).Temperature(0).Text("").Tokens(nil)},
		{"temperature", NewSegmentBuilder().ID(0).Start(0).End(1).Text("").Tokens(nil)},
		{"text", NewSegmentBuilder().ID(0).Start(0).End(1).Temperature(0).Tokens(nil)},
		{"tokens", NewSegmentBuilder().ID(0).Start(0).End(1).Temperature(0).Text("")},
		{"id", NewSegmentBuilder()},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			_, err := tt.b.Build()
			if !apperrors.HasCode(err, apperrors.ErrCodeMissingField) {
				t.Fatalf("expected MISSING_FIELD, got %v", err)
			}
			if !strings.Contains(err.Error(), "segment "+tt.field+" is not set") {
				t.Errorf("error %q does not name %s", err, tt.field)
			}
		})
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		name        string
		resp        Response
		contentType string
		body        string
	}{
		{"json", Transcription{Text: "hi"}, ContentTypeJSON, `{"text":"hi"}`},
		{"text", Text("plain words\n"), ContentTypeText, "plain words\n"},
		{
			"verbose",
			VerboseTranscription{Text: "a", Duration: 1.5, Language: "en", Segments: []Segment{}},
			ContentTypeJSON,
			`{"text":"a","duration":1.5,"language":"en","segments":[]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct, body, err := Render(tt.resp)
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			if ct != tt.contentType || string(body) != tt.body {
				t.Errorf("Render() = %q %q, want %q %q", ct, body, tt.contentType, tt.body)
			}
		})
	}

	if _, _, err := Render(Delta("x")); !apperrors.HasCode(err, apperrors.ErrCodeInternal) {
		t.Errorf("rendering an event should fail internally, got %v", err)
	}
	if _, _, err := Render(nil); !apperrors.HasCode(err, apperrors.ErrCodeNoResponse) {
		t.Errorf("rendering nil should be NO_RESPONSE, got %v", err)
	}
}

func TestNewResponse_FollowsFormat(t *testing.T) {
	res := Result{Text: "hi", Duration: 2}

	jsonReq, _ := NewRequest(RawInput{File: &FilePart{Data: []byte("12345")}})
	_, body, _ := Render(NewResponse(jsonReq, res))
	if string(body) != `{"text":"hi"}` {
		t.Errorf("json body = %s", body)
	}

	textReq, _ := NewRequest(fileInput(map[string]string{FieldResponseFormat: "text"}))
	if got := NewResponse(textReq, res); got != Text("hi") {
		t.Errorf("text response = %#v", got)
	}

	verboseReq, _ := NewRequest(fileInput(map[string]string{FieldResponseFormat: "verbose_json", FieldLanguage: "de"}))
	v, ok := NewResponse(verboseReq, res).(VerboseTranscription)
	if !ok {
		t.Fatalf("expected VerboseTranscription")
	}
	if v.Language != "de" || v.Segments == nil || v.Duration != 2 {
		t.Errorf("verbose response = %+v", v)
	}
}

func TestEventJSON(t *testing.T) {
	d, _ := json.Marshal(Delta("ab"))
	if string(d) != `{"type":"transcript.text.delta","delta":"ab"}` {
		t.Errorf("delta = %s", d)
	}
	done, _ := json.Marshal(Done("abc"))
	if string(done) != `{"type":"transcript.text.done","text":"abc"}` {
		t.Errorf("done = %s", done)
	}

	var e Event
	if err := json.Unmarshal(done, &e); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !e.IsDone() || e.Text != "abc" {
		t.Errorf("decoded %+v", e)
	}
}

func TestStreamWriter(t *testing.T) {
	sink := &collectSink{}
	w := NewStreamWriter(sink)
	w.Delta("a")
	w.Delta("b")
	if !w.Done() {
		t.Fatal("Done should send")
	}
	if w.Done() || w.Delta("c") {
		t.Error("nothing may be sent after Done")
	}

	want := []Response{Delta("a"), Delta("b"), Done("ab")}
	if len(sink.got) != len(want) {
		t.Fatalf("got %d events, want %d", len(sink.got), len(want))
	}
	for i := range want {
		if sink.got[i] != want[i] {
			t.Errorf("event %d = %#v, want %#v", i, sink.got[i], want[i])
		}
	}
	if !w.Finished() || w.Text() != "ab" {
		t.Errorf("Finished=%v Text=%q", w.Finished(), w.Text())
	}
}

func TestStreamMiddleware(t *testing.T) {
	streamReq, _ := NewRequest(fileInput(map[string]string{FieldStream: "true"}))
	plainReq, _ := NewRequest(fileInput(nil))

	run := func(req Request, h HandlerFunc) ([]Response, error) {
		sink := &collectSink{}
		err := StreamMiddleware()(h).Handle(context.Background(), req, sink)
		return sink.got, err
	}

	t.Run("appends missing done", func(t *testing.T) {
		got, err := run(streamReq, func(_ context.Context, _ Request, out scheduler.Sink[Response]) error {
			out.Send(Delta("a"))
			out.Send(Delta("b"))
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 3 || got[2] != Done("ab") {
			t.Errorf("events = %#v", got)
		}
	})

	t.Run("single done", func(t *testing.T) {
		got, _ := run(streamReq, func(_ context.Context, _ Request, out scheduler.Sink[Response]) error {
			out.Send(Delta("a"))
			out.Send(Done("a"))
			if out.Send(Delta("late")) {
				t.Error("send after Done should report false")
			}
			out.Send(Done("again"))
			return nil
		})
		if len(got) != 2 || got[1] != Done("a") {
			t.Errorf("events = %#v", got)
		}
	})

	t.Run("whole response becomes delta", func(t *testing.T) {
		got, _ := run(streamReq, func(_ context.Context, _ Request, out scheduler.Sink[Response]) error {
			out.Send(Transcription{Text: "hi"})
			return nil
		})
		if len(got) != 2 || got[0] != Delta("hi") || got[1] != Done("hi") {
			t.Errorf("events = %#v", got)
		}
	})

	t.Run("silent handler ends with empty done", func(t *testing.T) {
		got, err := run(streamReq, func(context.Context, Request, scheduler.Sink[Response]) error {
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0] != Done("") {
			t.Errorf("events = %#v", got)
		}
	})

	t.Run("error suppresses done", func(t *testing.T) {
		boom := errors.New("boom")
		got, err := run(streamReq, func(_ context.Context, _ Request, out scheduler.Sink[Response]) error {
			out.Send(Delta("a"))
			return boom
		})
		if !errors.Is(err, boom) {
			t.Errorf("err = %v", err)
		}
		if len(got) != 1 {
			t.Errorf("events = %#v", got)
		}
	})

	t.Run("non-stream passthrough", func(t *testing.T) {
		got, _ := run(plainReq, func(_ context.Context, _ Request, out scheduler.Sink[Response]) error {
			out.Send(Transcription{Text: "hi"})
			return nil
		})
		if len(got) != 1 || got[0] != (Transcription{Text: "hi"}) {
			t.Errorf("responses = %#v", got)
		}
	})
}

func TestTextOf(t *testing.T) {
	cases := map[string]Response{
		"a": Transcription{Text: "a"},
		"b": Text("b"),
		"c": VerboseTranscription{Text: "c"},
		"d": Delta("d"),
		"e": Done("e"),
	}
	for want, r := range cases {
		if got := TextOf(r); got != want {
			t.Errorf("TextOf(%#v) = %q, want %q", r, got, want)
		}
	}
}
