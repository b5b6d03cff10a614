package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestRequestRecord_HeaderValues(t *testing.T) {
	rec := &RequestRecord{
		Headers: map[string][]string{
			"Content-Type": {"application/json"},
			"X-Multi":      {"a", "b"},
			"x-multi":      {"c"},
			"X-MULTI":      {"d"},
		},
	}

	tests := []struct {
		name string
		want []string
	}{
		{"Content-Type", []string{"application/json"}},
		{"content-type", []string{"application/json"}},
		{"X-Multi", []string{"a", "b", "d", "c"}},
		{"x-multi", []string{"c", "d", "a", "b"}},
		{"X-multi", []string{"d", "a", "b", "c"}},
		{"Missing", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rec.HeaderValues(tt.name)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") || len(got) != len(tt.want) {
				t.Errorf("HeaderValues(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestRequestRecord_MarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		body     []byte
		wantBody string
		encoding string
	}{
		{"text", []byte(`{"a":1}`), `{"a":1}`, ""},
		{"binary", []byte{0xff, 0xfe}, "//4=", "base64"},
		{"empty", nil, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(&RequestRecord{Seq: 1, Method: "POST", Body: tt.body})
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}

			var out map[string]interface{}
			if err := json.Unmarshal(data, &out); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if out["body"] != tt.wantBody {
				t.Errorf("Expected body %q, got %v", tt.wantBody, out["body"])
			}
			enc, _ := out["bodyEncoding"].(string)
			if enc != tt.encoding {
				t.Errorf("Expected encoding %q, got %q", tt.encoding, enc)
			}
			if out["seq"] != float64(1) {
				t.Errorf("Expected seq 1, got %v", out["seq"])
			}
		})
	}
}

func TestInferContentType(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string][]string
		body    []byte
		want    string
	}{
		{"header wins", map[string][]string{"content-type": {"application/xml; charset=utf-8"}}, []byte(`{}`), "application/xml"},
		{"json sniffed", nil, []byte(`{"a":1}`), "application/json"},
		{"text sniffed", nil, []byte("hello"), "text/plain"},
		{"empty body", nil, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InferContentType(tt.headers, tt.body); got != tt.want {
				t.Errorf("InferContentType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrors(t *testing.T) {
	ve := NewValidationError("response.status", "must be between 100 and 599, got %d", 42)
	wrapped := fmt.Errorf("register: %w", ve)

	if !IsValidationError(wrapped) {
		t.Error("Expected wrapped ValidationError to be detected")
	}
	if IsTemplateError(wrapped) {
		t.Error("ValidationError reported as TemplateError")
	}
	if ve.Error() != "invalid response.status: must be between 100 and 599, got 42" {
		t.Errorf("Unexpected message %q", ve.Error())
	}

	te := &TemplateError{Token: "body.missing", Reason: "no value"}
	if !IsTemplateError(fmt.Errorf("render: %w", te)) {
		t.Error("Expected wrapped TemplateError to be detected")
	}

	if !errors.Is(fmt.Errorf("expectation x: %w", ErrNotFound), ErrNotFound) {
		t.Error("Expected ErrNotFound to survive wrapping")
	}
}
