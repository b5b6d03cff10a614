package engine

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prasenjit/go-assertive/internal/models"
)

// DefaultMaxBodyBytes caps how much of a request body is recorded
const DefaultMaxBodyBytes = 10 << 20

// Handler serves mocked requests over HTTP
type Handler struct {
	dispatcher   *Dispatcher
	maxBodyBytes int64
}

// NewHandler creates an http.Handler backed by the dispatcher
func NewHandler(dispatcher *Dispatcher, maxBodyBytes int64) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handler{dispatcher: dispatcher, maxBodyBytes: maxBodyBytes}
}

// ServeHTTP handles incoming requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec, err := NewRequestRecord(r, h.maxBodyBytes)
	switch {
	case errors.Is(err, ErrBodyTooLarge):
		WriteResponse(w, h.dispatcher.Reject(rec, http.StatusRequestEntityTooLarge, err.Error()))
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := h.dispatcher.Dispatch(r.Context(), rec)
	if err != nil {
		// Client went away during a delay; nothing to write
		return
	}

	WriteResponse(w, resp)
}

// ErrBodyTooLarge is returned by NewRequestRecord when the body exceeds the limit
var ErrBodyTooLarge = errors.New("request body too large")

// NewRequestRecord snapshots an incoming HTTP request. A body over
// maxBodyBytes yields a record truncated to the limit together with an
// error wrapping ErrBodyTooLarge.
func NewRequestRecord(r *http.Request, maxBodyBytes int64) (models.RequestRecord, error) {
	var (
		body    []byte
		tooLong error
	)
	if r.Body != nil {
		limited := io.LimitReader(r.Body, maxBodyBytes+1)
		data, err := io.ReadAll(limited)
		if err != nil {
			return models.RequestRecord{}, fmt.Errorf("failed to read request body: %w", err)
		}
		if int64(len(data)) > maxBodyBytes {
			data = data[:maxBodyBytes]
			tooLong = fmt.Errorf("%w: exceeds %d bytes", ErrBodyTooLarge, maxBodyBytes)
		}
		body = data
	}

	headers := make(map[string][]string, len(r.Header))
	for key, values := range r.Header {
		headers[key] = append([]string(nil), values...)
	}

	query := make(map[string][]string)
	for key, values := range r.URL.Query() {
		query[key] = values
	}

	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	return models.RequestRecord{
		Method:      r.Method,
		Path:        r.URL.Path,
		Host:        host,
		Query:       query,
		Headers:     headers,
		Body:        body,
		ContentType: models.InferContentType(headers, body),
		Truncated:   tooLong != nil,
		Timestamp:   time.Now(),
	}, tooLong
}

// WriteResponse serializes a response record, rendering transport faults
func WriteResponse(w http.ResponseWriter, resp *models.ResponseRecord) {
	switch resp.Fault {
	case models.FaultCloseConnection:
		closeConnection(w, nil)
		return
	case models.FaultTruncate:
		closeConnection(w, resp)
		return
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.Header().Set("X-Request-Seq", strconv.FormatInt(resp.RequestSeq, 10))

	w.WriteHeader(resp.StatusCode)
	if len(resp.Body) > 0 {
		w.Write(resp.Body)
	}
}

// closeConnection takes over the connection and drops it. With a response
// it first writes the headers and half of the body, declaring the full length.
func closeConnection(w http.ResponseWriter, resp *models.ResponseRecord) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		// HTTP/2 and test recorders cannot be hijacked
		panic(http.ErrAbortHandler)
	}

	conn, buf, err := hj.Hijack()
	if err != nil {
		log.Printf("Failed to hijack connection: %v", err)
		return
	}
	defer conn.Close()

	if resp != nil {
		writeTruncated(buf.Writer, resp)
		buf.Flush()
	}
}

func writeTruncated(w *bufio.Writer, resp *models.ResponseRecord) {
	header := make(http.Header, len(resp.Headers)+1)
	for key, value := range resp.Headers {
		header.Set(key, value)
	}
	header.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	header.Set("X-Request-Seq", strconv.FormatInt(resp.RequestSeq, 10))

	fmt.Fprintf(w, "HTTP/1.1 %d %s\r\n", resp.StatusCode, http.StatusText(resp.StatusCode))
	header.Write(w)
	w.WriteString("\r\n")
	w.Write(resp.Body[:len(resp.Body)/2])
}
