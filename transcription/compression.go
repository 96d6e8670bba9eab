package transcription

import (
	"bytes"
	"compress/zlib"
)

// CompressionRatio returns len(text) / len(zlib(text)) over the UTF-8 bytes
// of text. Whisper treats segments above 2.4 as failed decodes. Empty text
// yields 0.
func CompressionRatio(text string) float64 {
	if text == "" {
		return 0
	}
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, _ = zw.Write([]byte(text))
	_ = zw.Close()
	return float64(len(text)) / float64(buf.Len())
}
