package pactrecord

import (
	"bytes"
	"net/http"
	"strconv"
)

// captureWriter buffers a proxied response instead of streaming it to the
// client, so the controller can validate or record it before deciding what
// to send.
type captureWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newCaptureWriter() *captureWriter {
	return &captureWriter{header: make(http.Header)}
}

func (w *captureWriter) Header() http.Header {
	return w.header
}

func (w *captureWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(b)
}

func (w *captureWriter) WriteHeader(statusCode int) {
	if w.status == 0 {
		w.status = statusCode
	}
}

// writeTo replays the buffered response onto a real writer, recomputing
// Content-Length and stripping Transfer-Encoding so the response stays
// well-formed after any body rewriting.
func (w *captureWriter) writeTo(res http.ResponseWriter, body []byte) error {
	copyHeaders(res.Header(), w.header, len(body))
	res.WriteHeader(w.statusCode())
	_, err := res.Write(body)
	return err
}

func (w *captureWriter) statusCode() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func copyHeaders(dst, src http.Header, contentLength int) {
	for name, values := range src {
		if http.CanonicalHeaderKey(name) == "Transfer-Encoding" {
			continue
		}
		for _, value := range values {
			dst.Add(name, value)
		}
	}
	dst.Del("Transfer-Encoding")
	dst.Set("Content-Length", strconv.Itoa(contentLength))
}
