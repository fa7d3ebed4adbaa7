package sdsextract

import (
	"bytes"
	"compress/zlib"
	"io"
)

// extractRawScan is the always-available baseline: a pure byte scan over
// the file. It inflates every Flate stream it can find, runs the content
// stream text operators over both the inflated bodies and the raw bytes,
// and keeps whatever comes out. Lowest fidelity of the chain, with no xref
// or encoding tables, but it cannot fail, which is the property the chain
// ends on before OCR.
func extractRawScan(data []byte) string {
	var out bytes.Buffer

	for _, stream := range streamBodies(data) {
		body := stream
		if inflated, ok := inflate(stream); ok {
			body = inflated
		}
		if text := textFromContentStream(body); text != "" {
			if out.Len() > 0 {
				out.WriteByte('\n')
			}
			out.WriteString(text)
		}
	}

	// Some ancient producers emit text operators outside stream objects.
	if out.Len() == 0 {
		return textFromContentStream(data)
	}
	return out.String()
}

var (
	streamStart = []byte("stream")
	streamEnd   = []byte("endstream")
)

// streamBodies returns every byte range between stream/endstream keywords.
func streamBodies(data []byte) [][]byte {
	var bodies [][]byte
	rest := data
	for {
		i := bytes.Index(rest, streamStart)
		if i < 0 {
			break
		}
		body := rest[i+len(streamStart):]
		// The keyword is followed by CRLF or LF per the PDF spec.
		body = bytes.TrimPrefix(body, []byte("\r\n"))
		body = bytes.TrimPrefix(body, []byte("\n"))

		j := bytes.Index(body, streamEnd)
		if j < 0 {
			break
		}
		bodies = append(bodies, body[:j])
		rest = body[j+len(streamEnd):]
	}
	return bodies
}

// inflate attempts a zlib decode (FlateDecode without predictors). Failure
// just means the stream used another filter; the caller keeps the raw bytes.
func inflate(data []byte) ([]byte, bool) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, false
	}
	defer zr.Close()
	// Cap the inflated size; a hostile stream must not balloon memory.
	out, err := io.ReadAll(io.LimitReader(zr, 64<<20))
	if err != nil && len(out) == 0 {
		return nil, false
	}
	return out, true
}
