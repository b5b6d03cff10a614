package models

import (
	"encoding/base64"
	"encoding/json"
	"mime"
	"net/http"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// RequestRecord is an immutable snapshot of one received request.
// Seq is assigned by the history log and is strictly increasing per server instance.
type RequestRecord struct {
	Seq         int64               `json:"seq"`
	Method      string              `json:"method"`
	Path        string              `json:"path"`
	Host        string              `json:"host"`
	Query       map[string][]string `json:"query"`
	Headers     map[string][]string `json:"headers"`
	Body        []byte              `json:"-"`
	ContentType string              `json:"contentType,omitempty"`
	Truncated   bool                `json:"truncated,omitempty"` // body cut at the size limit
	Timestamp   time.Time           `json:"timestamp"`
}

// HeaderValues returns every value of the named header, comparing names case-insensitively.
func (r *RequestRecord) HeaderValues(name string) []string {
	// Exact key first, then other spellings in key order
	out := append([]string(nil), r.Headers[name]...)
	var others []string
	for k := range r.Headers {
		if k != name && strings.EqualFold(k, name) {
			others = append(others, k)
		}
	}
	sort.Strings(others)
	for _, k := range others {
		out = append(out, r.Headers[k]...)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// QueryValues returns every value of the named query parameter in request order.
func (r *RequestRecord) QueryValues(key string) []string {
	return r.Query[key]
}

// BodyString returns the body as a string.
func (r *RequestRecord) BodyString() string {
	return string(r.Body)
}

// MarshalJSON renders the body as text when it is valid UTF-8 and as base64 otherwise.
func (r RequestRecord) MarshalJSON() ([]byte, error) {
	type plain RequestRecord
	out := struct {
		plain
		Body         string `json:"body"`
		BodyEncoding string `json:"bodyEncoding,omitempty"`
	}{plain: plain(r)}

	if utf8.Valid(r.Body) {
		out.Body = string(r.Body)
	} else {
		out.Body = base64.StdEncoding.EncodeToString(r.Body)
		out.BodyEncoding = "base64"
	}
	return json.Marshal(out)
}

// InferContentType returns the media type of a request body, preferring the
// Content-Type header and falling back to sniffing the bytes.
func InferContentType(headers map[string][]string, body []byte) string {
	for k, vals := range headers {
		if strings.EqualFold(k, "Content-Type") && len(vals) > 0 && vals[0] != "" {
			if mt, _, err := mime.ParseMediaType(vals[0]); err == nil {
				return mt
			}
			return vals[0]
		}
	}
	if len(body) == 0 {
		return ""
	}
	if gjson.ValidBytes(body) {
		return "application/json"
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(body))
	return mt
}

// Fault kinds understood by the transport layer
const (
	FaultCloseConnection = "closeConnection"
	FaultTruncate        = "truncate"
)

// ResponseRecord is the concrete response produced for one dispatch.
type ResponseRecord struct {
	StatusCode    int               `json:"statusCode"`
	Headers       map[string]string `json:"headers"`
	Body          []byte            `json:"-"`
	Fault         string            `json:"fault,omitempty"`
	ExpectationID string            `json:"expectationId,omitempty"`
	Delay         time.Duration     `json:"delay,omitempty"`
	RequestSeq    int64             `json:"requestSeq"`
	Matched       bool              `json:"matched"`
}
