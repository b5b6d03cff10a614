package template

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prasenjit/go-assertive/internal/models"
)

func TestNewEngine(t *testing.T) {
	e := NewEngine()
	if e == nil {
		t.Fatal("Expected engine to be created")
	}
}

func TestRender_PathParams(t *testing.T) {
	e := NewEngine()

	tests := []struct {
		name     string
		template string
		ctx      *Context
		expected string
	}{
		{
			name:     "single path param",
			template: `{"id": "{{path.id}}"}`,
			ctx:      &Context{PathParams: map[string]string{"id": "123"}},
			expected: `{"id": "123"}`,
		},
		{
			name:     "multiple path params",
			template: `{"userId": "{{path.userId}}", "postId": "{{path.postId}}"}`,
			ctx:      &Context{PathParams: map[string]string{"userId": "u1", "postId": "p1"}},
			expected: `{"userId": "u1", "postId": "p1"}`,
		},
		{
			name:     "leading dot and spaces",
			template: `{{ .path.id }}`,
			ctx:      &Context{PathParams: map[string]string{"id": "7"}},
			expected: `7`,
		},
		{
			name:     "single brace shorthand",
			template: `{"name": "user-{id}"}`,
			ctx:      &Context{PathParams: map[string]string{"id": "42"}},
			expected: `{"name": "user-42"}`,
		},
		{
			name:     "shorthand for unknown name stays literal",
			template: `{other} {id}`,
			ctx:      &Context{PathParams: map[string]string{"id": "42"}},
			expected: `{other} 42`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := e.Render(tt.template, tt.ctx)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, result)
			}
		})
	}
}

func TestRender_RequestSources(t *testing.T) {
	e := NewEngine()
	ctx := &Context{
		Method:      "POST",
		Path:        "/orders",
		Seq:         9,
		QueryParams: map[string][]string{"page": {"2", "3"}},
		Headers:     map[string][]string{"X-Request-Id": {"abc"}},
		Body:        `{"user":{"name":"Ada","tags":["a","b"]}}`,
	}

	tests := []struct {
		template string
		expected string
	}{
		{"{{query.page}}", "2"},
		{"{{header.x-request-id}}", "abc"},
		{"{{body.user.name}}", "Ada"},
		{"{{body.user.tags.1}}", "b"},
		{"{{request.method}} {{request.path}} #{{request.seq}}", "POST /orders #9"},
		{"no variables here", "no variables here"},
	}

	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			result, err := e.Render(tt.template, ctx)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, result)
			}
		})
	}
}

func TestRender_Errors(t *testing.T) {
	e := NewEngine()
	ctx := &Context{
		PathParams: map[string]string{"id": "1"},
		Body:       `{"a":1}`,
	}

	tests := []struct {
		name     string
		template string
		token    string
	}{
		{"missing path param", `{"id": "{{path.id}}", "x": "{{path.missing}}"}`, "path.missing"},
		{"missing body field", `{{body.b}}`, "body.b"},
		{"missing header", `{{header.X-None}}`, "header.X-None"},
		{"unknown source", `{{cookie.session}}`, "cookie.session"},
		{"empty token", `{{}}`, ""},
		{"unterminated", `hello {{path.id`, "path.id"},
		{"unknown random", `{{random.color}}`, "random.color"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := e.Render(tt.template, ctx)
			if err == nil {
				t.Fatalf("Expected error, got result %q", result)
			}
			if result != "" {
				t.Errorf("Expected no partial output, got %q", result)
			}
			te, ok := err.(*models.TemplateError)
			if !ok {
				t.Fatalf("Expected *models.TemplateError, got %T", err)
			}
			if te.Token != tt.token {
				t.Errorf("Expected token %q, got %q", tt.token, te.Token)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	e := NewEngine()

	valid := []string{"", "plain", "{{path.id}}", "{{timestamp}}", "{{random.int(1,5)}}", `{"a":{"b":1}}`}
	for _, tmpl := range valid {
		if err := e.Validate(tmpl); err != nil {
			t.Errorf("Validate(%q): unexpected error %v", tmpl, err)
		}
	}

	invalid := []string{"{{nope.x}}", "{{path}}", "{{path.id"}
	for _, tmpl := range invalid {
		if err := e.Validate(tmpl); err == nil {
			t.Errorf("Validate(%q): expected error", tmpl)
		}
	}
}

func TestRender_RandomValues(t *testing.T) {
	e := NewEngine()
	ctx := &Context{}

	uuidPattern := regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	result, err := e.Render("{{random.uuid}}", ctx)
	if err != nil || !uuidPattern.MatchString(result) {
		t.Errorf("Expected UUID, got %q (err %v)", result, err)
	}

	for i := 0; i < 50; i++ {
		result, err = e.Render("{{random.int(5,7)}}", ctx)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		n, _ := strconv.Atoi(result)
		if n < 5 || n > 7 {
			t.Fatalf("Expected int in [5,7], got %s", result)
		}
	}

	result, _ = e.Render("{{random.string(16)}}", ctx)
	if len(result) != 16 {
		t.Errorf("Expected 16 chars, got %d", len(result))
	}

	result, _ = e.Render("{{random.bool}}", ctx)
	if result != "true" && result != "false" {
		t.Errorf("Expected bool, got %s", result)
	}
}

func TestRandom_Bounds(t *testing.T) {
	e := NewEngine()
	ctx := &Context{}

	t.Run("extreme int ranges", func(t *testing.T) {
		tests := []struct {
			template string
			min, max int64
		}{
			{"{{random.int(-9223372036854775808,9223372036854775807)}}", math.MinInt64, math.MaxInt64},
			{"{{random.int(-9223372036854775807,9223372036854775807)}}", math.MinInt64 + 1, math.MaxInt64},
			{"{{random.int(9223372036854775806,9223372036854775807)}}", math.MaxInt64 - 1, math.MaxInt64},
			{"{{random.int(-3,-3)}}", -3, -3},
		}
		for _, tt := range tests {
			if err := e.Validate(tt.template); err != nil {
				t.Fatalf("Validate(%q): unexpected error %v", tt.template, err)
			}
			for i := 0; i < 20; i++ {
				result, err := e.Render(tt.template, ctx)
				if err != nil {
					t.Fatalf("Render(%q): unexpected error %v", tt.template, err)
				}
				n, err := strconv.ParseInt(result, 10, 64)
				if err != nil || n < tt.min || n > tt.max {
					t.Fatalf("Render(%q) = %s, want int in [%d,%d]", tt.template, result, tt.min, tt.max)
				}
			}
		}
	})

	t.Run("rejected generators", func(t *testing.T) {
		tests := []struct {
			name     string
			template string
		}{
			{"inverted int range", "{{random.int(5,1)}}"},
			{"non-numeric int bounds", "{{random.int(a,b)}}"},
			{"int bound overflow", "{{random.int(0,9223372036854775808)}}"},
			{"huge string", "{{random.string(2000000000)}}"},
			{"string over limit", "{{random.string(4097)}}"},
			{"zero length string", "{{random.string(0)}}"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := e.Validate(tt.template)
				if !models.IsTemplateError(err) {
					t.Fatalf("Validate: expected TemplateError, got %v", err)
				}
				result, err := e.Render(tt.template, ctx)
				if err == nil {
					t.Fatalf("Render: expected error, got %d bytes", len(result))
				}
			})
		}
	})

	result, err := e.Render("{{random.string(4096)}}", ctx)
	if err != nil || len(result) != maxRandomStringLength {
		t.Errorf("Expected %d chars at the limit, got %d (err %v)", maxRandomStringLength, len(result), err)
	}
}

func TestRender_Timestamp(t *testing.T) {
	e := NewEngine()
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return fixed }
	ctx := &Context{}

	tests := []struct {
		template string
		expected string
	}{
		{"{{timestamp}}", strconv.FormatInt(fixed.Unix(), 10)},
		{"{{timestamp.unixMilli}}", strconv.FormatInt(fixed.UnixMilli(), 10)},
		{"{{timestamp.iso}}", "2024-03-01T12:00:00Z"},
		{"{{timestamp.date}}", "2024-03-01"},
		{"{{timestamp.add(1h)}}", "2024-03-01T13:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			result, err := e.Render(tt.template, ctx)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, result)
			}
		})
	}
}

func TestRenderHeaders(t *testing.T) {
	e := NewEngine()
	ctx := &Context{PathParams: map[string]string{"id": "5"}}

	headers, err := e.RenderHeaders(map[string]string{
		"Location":     "/items/{{path.id}}",
		"Content-Type": "application/json",
	}, ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if headers["Location"] != "/items/5" {
		t.Errorf("Expected /items/5, got %s", headers["Location"])
	}

	if headers["Content-Type"] != "application/json" {
		t.Errorf("Expected literal header kept, got %s", headers["Content-Type"])
	}

	headers, err = e.RenderHeaders(map[string]string{"X-Id": "item-{id}", "X-Brace": "{other}"}, ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if headers["X-Id"] != "item-5" || headers["X-Brace"] != "{other}" {
		t.Errorf("Expected shorthand expanded only for captures, got %v", headers)
	}

	if _, err := e.RenderHeaders(map[string]string{"X": "{{path.nope}}"}, ctx); err == nil {
		t.Error("Expected error for unresolved header token")
	}
}

func TestRender_Concurrent(t *testing.T) {
	e := NewEngine()
	ctx := &Context{}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if _, err := e.Render("{{random.string(8)}}-{{random.int}}", ctx); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		key      string
		funcName string
		expected []string
	}{
		{"int(1,100)", "int", []string{"1", "100"}},
		{"string(10)", "string", []string{"10"}},
		{"format(2006-01-02)", "format", []string{"2006-01-02"}},
		{"int()", "int", nil},
		{"other(1)", "int", nil},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			result := parseParams(tt.key, tt.funcName)
			if strings.Join(result, "|") != strings.Join(tt.expected, "|") {
				t.Errorf("Expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestExpandCaptures(t *testing.T) {
	e := NewEngine()

	result := e.ExpandCaptures("user-{id} {{path.id}} {x}", map[string]string{"id": "42"})
	if result != "user-42 {{path.id}} {x}" {
		t.Errorf("Expected literal tokens untouched, got %s", result)
	}

	if result := e.ExpandCaptures("user-{id}", nil); result != "user-{id}" {
		t.Errorf("Expected no change without captures, got %s", result)
	}
}
