package parser

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/prasenjit/go-assertive/internal/storage"
)

const usersSpec = `
openapi: 3.0.0
info:
  title: Test API
  version: 1.0.0
paths:
  /users:
    get:
      operationId: getUsers
      responses:
        '200':
          description: Success
          headers:
            X-Total:
              schema:
                type: integer
              example: 2
          content:
            application/json:
              example:
                users:
                  - id: 1
                    name: John
    post:
      responses:
        '201':
          description: Created
          content:
            application/json:
              schema:
                type: object
                properties:
                  id:
                    type: integer
                    example: 123
                  tags:
                    type: array
                    items:
                      type: string
  /users/{id}:
    delete:
      operationId: deleteUser
      parameters:
        - name: id
          in: path
          required: true
          schema:
            type: string
      responses:
        '204':
          description: No Content
    get:
      parameters:
        - name: id
          in: path
          required: true
          schema:
            type: string
      responses:
        '404':
          description: Not found
`

func TestNewParser(t *testing.T) {
	p := NewParser()
	if p == nil {
		t.Fatal("NewParser returned nil")
	}
}

func TestParse_Expectations(t *testing.T) {
	p := NewParser()

	result, err := p.Parse([]byte(usersSpec), ImportOptions{Priority: 2})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if result.Title != "Test API" || result.Version != "1.0.0" {
		t.Errorf("Unexpected info %q %q", result.Title, result.Version)
	}
	if len(result.Expectations) != 3 {
		t.Fatalf("Expected 3 expectations, got %d", len(result.Expectations))
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != "GET /users/{id}" {
		t.Errorf("Expected GET /users/{id} to be skipped, got %v", result.Skipped)
	}

	// Sorted by path, then method order
	getUsers := result.Expectations[0]
	if getUsers.Name != "getUsers" || getUsers.Request.Method.Value != "GET" {
		t.Errorf("Expected getUsers first, got %s %s", getUsers.Name, getUsers.Request.Method.Value)
	}
	if getUsers.Priority != 2 {
		t.Errorf("Expected priority 2, got %d", getUsers.Priority)
	}
	if getUsers.Response.StatusCode != 200 {
		t.Errorf("Expected status 200, got %d", getUsers.Response.StatusCode)
	}
	if !strings.Contains(string(getUsers.Response.JSON), "John") {
		t.Errorf("Expected example body, got %s", getUsers.Response.JSON)
	}
	if getUsers.Response.Headers["X-Total"] != "2" {
		t.Errorf("Expected X-Total header example, got %q", getUsers.Response.Headers["X-Total"])
	}

	createUser := result.Expectations[1]
	if createUser.Name != "post_users" {
		t.Errorf("Expected generated name post_users, got %s", createUser.Name)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(createUser.Response.JSON, &body); err != nil {
		t.Fatalf("Expected JSON from schema: %v", err)
	}
	if body["id"] != float64(123) {
		t.Errorf("Expected schema example id 123, got %v", body["id"])
	}
	if tags, ok := body["tags"].([]interface{}); !ok || len(tags) != 1 || tags[0] != "string" {
		t.Errorf("Expected generated tags array, got %v", body["tags"])
	}

	deleteUser := result.Expectations[2]
	if deleteUser.Response.StatusCode != 204 || len(deleteUser.Response.JSON) != 0 {
		t.Errorf("Expected empty 204, got %d %s", deleteUser.Response.StatusCode, deleteUser.Response.JSON)
	}
	if deleteUser.Request.Path.Value != "/users/{id}" {
		t.Errorf("Expected template path, got %s", deleteUser.Request.Path.Value)
	}
}

func TestParse_RegistersCleanly(t *testing.T) {
	result, err := NewParser().Parse([]byte(usersSpec), ImportOptions{BasePath: "api/v1/"})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	store := storage.NewMemoryStore()
	for _, in := range result.Expectations {
		if !strings.HasPrefix(in.Request.Path.Value, "/api/v1/users") {
			t.Errorf("Expected base path prefix, got %s", in.Request.Path.Value)
		}
		if _, err := store.Register(in); err != nil {
			t.Errorf("Register %s failed: %v", in.Name, err)
		}
	}

	// Stable ids: importing again replaces instead of duplicating
	again, _ := NewParser().Parse([]byte(usersSpec), ImportOptions{BasePath: "api/v1/"})
	for _, in := range again.Expectations {
		_, _ = store.Register(in)
	}
	if n := len(store.Snapshot()); n != 3 {
		t.Errorf("Expected 3 expectations after re-import, got %d", n)
	}
}

func TestParse_InvalidSpec(t *testing.T) {
	p := NewParser()

	tests := []struct {
		name string
		spec string
	}{
		{"invalid yaml", `this is not valid: yaml: content`},
		{"missing info", "openapi: 3.0.0\npaths: {}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.Parse([]byte(tt.spec), ImportOptions{}); err == nil {
				t.Error("Expected error for invalid spec")
			}
		})
	}
}

func TestParse_JSONSpec(t *testing.T) {
	spec := `{
  "openapi": "3.0.0",
  "info": {"title": "JSON API", "version": "2.0.0"},
  "paths": {
    "/items": {
      "get": {
        "operationId": "getItems",
        "responses": {"200": {"description": "OK"}}
      }
    }
  }
}`

	result, err := NewParser().Parse([]byte(spec), ImportOptions{})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if result.Title != "JSON API" {
		t.Errorf("Expected title 'JSON API', got %q", result.Title)
	}
	if len(result.Expectations) != 1 || result.Expectations[0].Response.StatusCode != 200 {
		t.Errorf("Expected one 200 expectation, got %+v", result.Expectations)
	}
}

func TestNormalizeBasePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"/api/v1", "/api/v1"},
		{"/api/v1/", "/api/v1"},
		{"api/v1", "/api/v1"},
		{"/", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := normalizeBasePath(tt.input)
			if result != tt.expected {
				t.Errorf("normalizeBasePath(%q) = %q, expected %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"/users", "users"},
		{"/users/{id}", "users_id"},
		{"/users/{userId}/posts/{postId}", "users_userId_posts_postId"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := sanitizePath(tt.input)
			if result != tt.expected {
				t.Errorf("sanitizePath(%q) = %q, expected %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestGenerateExpectationID(t *testing.T) {
	a := generateExpectationID("API", "GET", "/x")
	b := generateExpectationID("API", "GET", "/x")
	c := generateExpectationID("API", "POST", "/x")

	if a != b {
		t.Error("Expected deterministic ids")
	}
	if a == c {
		t.Error("Expected different ids for different methods")
	}
	if !strings.HasPrefix(a, "oas-") {
		t.Errorf("Expected oas- prefix, got %s", a)
	}
}
