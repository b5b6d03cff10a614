package models

// Condition is the wire form of a single predicate against one request dimension.
type Condition struct {
	Source   string   `json:"source"`          // method, path, host, query, header, body
	Key      string   `json:"key,omitempty"`   // Header/query name or JSON path into the body
	Operator string   `json:"operator"`        // eq, eqi, regex, exists, notExists, range, jsonPath, wildcard, template, ...
	Value    string   `json:"value,omitempty"` // Expected value or pattern
	Min      *float64 `json:"min,omitempty"`   // Lower bound for range
	Max      *float64 `json:"max,omitempty"`   // Upper bound for range
	All      bool     `json:"all,omitempty"`   // Every value of a multi-valued key must pass
}

// Supported condition sources
const (
	SourceMethod = "method"
	SourcePath   = "path"
	SourceHost   = "host"
	SourceQuery  = "query"
	SourceHeader = "header"
	SourceBody   = "body"
)

// Supported condition operators
const (
	OpEquals     = "eq"
	OpEqualFold  = "eqi"
	OpRegex      = "regex"
	OpExists     = "exists"
	OpNotExists  = "notExists"
	OpRange      = "range"
	OpJSONPath   = "jsonPath"
	OpWildcard   = "wildcard"
	OpTemplate   = "template"
	OpContains   = "contains"
	OpStartsWith = "startsWith"
	OpEndsWith   = "endsWith"
)

// ValidSources returns all valid condition sources
func ValidSources() []string {
	return []string{SourceMethod, SourcePath, SourceHost, SourceQuery, SourceHeader, SourceBody}
}

// ValidOperators returns all valid condition operators
func ValidOperators() []string {
	return []string{
		OpEquals, OpEqualFold, OpRegex, OpExists, OpNotExists,
		OpRange, OpJSONPath, OpWildcard, OpTemplate,
		OpContains, OpStartsWith, OpEndsWith,
	}
}

// KeyedSource reports whether conditions on source address a named value.
func KeyedSource(source string) bool {
	return source == SourceQuery || source == SourceHeader
}
