package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/prasenjit/go-assertive/internal/models"
)

// Parser turns OpenAPI 3 documents into expectations
type Parser struct{}

// NewParser creates a new OpenAPI parser
func NewParser() *Parser {
	return &Parser{}
}

// ImportOptions controls how operations become expectations
type ImportOptions struct {
	BasePath string // Prefix for every path
	Priority int    // Priority given to every generated expectation
}

// ImportResult contains the document info and the generated expectations
type ImportResult struct {
	Title        string                     `json:"title"`
	Version      string                     `json:"version"`
	Expectations []*models.ExpectationInput `json:"expectations"`
	Skipped      []string                   `json:"skipped,omitempty"` // Operations without a usable example
}

// Parse parses an OpenAPI 3 document and builds one expectation per operation
// that declares a success response.
func (p *Parser) Parse(content []byte, opts ImportOptions) (*ImportResult, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false

	doc, err := loader.LoadFromData(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI spec: %w", err)
	}

	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI spec: %w", err)
	}

	result := &ImportResult{
		Expectations: make([]*models.ExpectationInput, 0),
	}
	if doc.Info != nil {
		result.Title = doc.Info.Title
		result.Version = doc.Info.Version
	}

	basePath := normalizeBasePath(opts.BasePath)

	for _, pathPattern := range sortedPaths(doc) {
		pathItem := doc.Paths.Value(pathPattern)
		if pathItem == nil {
			continue
		}

		for _, method := range []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"} {
			op := pathItem.GetOperation(method)
			if op == nil {
				continue
			}

			resp := extractExampleResponse(op)
			if resp == nil {
				result.Skipped = append(result.Skipped, method+" "+pathPattern)
				continue
			}

			name := op.OperationID
			if name == "" {
				name = fmt.Sprintf("%s_%s", strings.ToLower(method), sanitizePath(pathPattern))
			}
			fullPath := path.Join("/", basePath, pathPattern)

			result.Expectations = append(result.Expectations, &models.ExpectationInput{
				ID:       generateExpectationID(result.Title, method, fullPath),
				Name:     name,
				Priority: opts.Priority,
				Request: models.RequestInput{
					Method: &models.Matcher{Value: method},
					Path:   &models.Matcher{Value: fullPath},
				},
				Response: *resp,
			})
		}
	}

	return result, nil
}

func sortedPaths(doc *openapi3.T) []string {
	if doc.Paths == nil {
		return nil
	}
	paths := make([]string, 0, doc.Paths.Len())
	for p := range doc.Paths.Map() {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// extractExampleResponse extracts an example success response from an OpenAPI operation
func extractExampleResponse(op *openapi3.Operation) *models.ResponseInput {
	if op.Responses == nil {
		return nil
	}

	// Try success status codes in order of preference
	for _, statusCode := range []int{200, 201, 202, 204} {
		response := op.Responses.Status(statusCode)
		if response == nil || response.Value == nil {
			continue
		}

		example := &models.ResponseInput{
			StatusCode: statusCode,
			Headers:    make(map[string]string),
		}

		for name, header := range response.Value.Headers {
			if header.Value != nil && header.Value.Example != nil {
				example.Headers[name] = fmt.Sprintf("%v", header.Value.Example)
			}
		}

		for _, mediaType := range sortedMediaTypes(response.Value.Content) {
			if !strings.Contains(mediaType, "json") {
				continue
			}
			content := response.Value.Content[mediaType]
			example.Headers["Content-Type"] = mediaType

			var value interface{}
			switch {
			case content.Example != nil:
				value = content.Example
			case len(content.Examples) > 0:
				// Named examples: first by name
				names := make([]string, 0, len(content.Examples))
				for n := range content.Examples {
					names = append(names, n)
				}
				sort.Strings(names)
				for _, n := range names {
					if ex := content.Examples[n]; ex != nil && ex.Value != nil && ex.Value.Value != nil {
						value = ex.Value.Value
						break
					}
				}
			case content.Schema != nil && content.Schema.Value != nil:
				value = exampleFromSchema(content.Schema.Value, 0)
			}

			if value != nil {
				if data, err := json.Marshal(value); err == nil {
					example.JSON = data
					return example
				}
			}
			break
		}

		// Even without body, return if we have a valid status (e.g., 204 No Content)
		if statusCode == 204 || len(response.Value.Content) == 0 {
			return example
		}
	}

	return nil
}

func sortedMediaTypes(content openapi3.Content) []string {
	types := make([]string, 0, len(content))
	for mt := range content {
		types = append(types, mt)
	}
	sort.Strings(types)
	return types
}

// normalizeBasePath ensures the base path is properly formatted
func normalizeBasePath(basePath string) string {
	if basePath == "" {
		return ""
	}

	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	return strings.TrimSuffix(basePath, "/")
}

// sanitizePath converts a path to a valid identifier
func sanitizePath(pathPattern string) string {
	result := strings.ReplaceAll(pathPattern, "{", "")
	result = strings.ReplaceAll(result, "}", "")
	result = strings.ReplaceAll(result, "/", "_")
	result = strings.TrimPrefix(result, "_")
	result = strings.TrimSuffix(result, "_")
	return result
}

// generateExpectationID derives a stable id so re-importing a document
// replaces its expectations instead of duplicating them.
func generateExpectationID(title, method, path string) string {
	data := fmt.Sprintf("%s:%s:%s", title, method, path)
	hash := sha256.Sum256([]byte(data))
	return "oas-" + hex.EncodeToString(hash[:8])
}

const maxSchemaDepth = 5

// exampleFromSchema builds an example value from an OpenAPI schema
func exampleFromSchema(schema *openapi3.Schema, depth int) interface{} {
	if schema.Example != nil {
		return schema.Example
	}
	if len(schema.Enum) > 0 {
		return schema.Enum[0]
	}
	if depth > maxSchemaDepth {
		return nil
	}

	typ := ""
	if schema.Type != nil && len(schema.Type.Slice()) > 0 {
		typ = schema.Type.Slice()[0]
	} else if len(schema.Properties) > 0 {
		typ = "object"
	}

	switch typ {
	case "object":
		obj := make(map[string]interface{}, len(schema.Properties))
		for name, prop := range schema.Properties {
			if prop != nil && prop.Value != nil {
				obj[name] = exampleFromSchema(prop.Value, depth+1)
			}
		}
		return obj
	case "array":
		if schema.Items != nil && schema.Items.Value != nil {
			return []interface{}{exampleFromSchema(schema.Items.Value, depth+1)}
		}
		return []interface{}{}
	case "string":
		return "string"
	case "integer":
		return 0
	case "number":
		return 0.0
	case "boolean":
		return false
	default:
		return nil
	}
}
