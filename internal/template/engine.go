package template

import (
	"fmt"
	"math"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prasenjit/go-assertive/internal/models"
	"github.com/tidwall/gjson"
)

// Engine renders response templates against the matched request.
// It is safe for concurrent use.
type Engine struct {
	now func() time.Time
}

// NewEngine creates a new template engine
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// Context contains all data available for template rendering
type Context struct {
	Method      string
	Path        string
	Seq         int64
	PathParams  map[string]string
	QueryParams map[string][]string
	Headers     map[string][]string
	Body        string
}

// NewContext builds a rendering context from a request record and its path captures
func NewContext(rec *models.RequestRecord, captures map[string]string) *Context {
	return &Context{
		Method:      rec.Method,
		Path:        rec.Path,
		Seq:         rec.Seq,
		PathParams:  captures,
		QueryParams: rec.Query,
		Headers:     rec.Headers,
		Body:        rec.BodyString(),
	}
}

// templateVarPattern matches template variables like {{variable}}
var templateVarPattern = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

// shorthandPattern matches {name} path capture shorthand
var shorthandPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

var knownSources = map[string]bool{
	"path": true, "query": true, "header": true, "body": true,
	"request": true, "random": true, "timestamp": true,
}

// HasTokens reports whether s contains {{...}} tokens
func HasTokens(s string) bool {
	return strings.Contains(s, "{{")
}

// Validate checks token syntax and sources without rendering
func (e *Engine) Validate(tmpl string) error {
	rest := templateVarPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		return ""
	})
	if i := strings.Index(rest, "{{"); i >= 0 {
		return &models.TemplateError{Token: snippet(rest[i+2:]), Reason: "unterminated token"}
	}

	for _, m := range templateVarPattern.FindAllStringSubmatch(tmpl, -1) {
		name := normalize(m[1])
		source, key, _ := strings.Cut(name, ".")
		if !knownSources[source] {
			return &models.TemplateError{Token: name, Reason: "unknown source " + strconv.Quote(source)}
		}
		if key == "" && source != "timestamp" {
			return &models.TemplateError{Token: name, Reason: "missing key"}
		}
		if source == "random" {
			if _, err := parseRandom(key); err != nil {
				return &models.TemplateError{Token: name, Reason: err.Error()}
			}
		}
	}
	return nil
}

// Render renders a template. Any token that cannot be resolved fails the whole
// render with a *models.TemplateError; no partial output is returned.
func (e *Engine) Render(tmpl string, ctx *Context) (string, error) {
	if err := e.Validate(tmpl); err != nil {
		return "", err
	}

	var (
		out      strings.Builder
		last     int
		firstErr error
	)
	for _, loc := range templateVarPattern.FindAllStringSubmatchIndex(tmpl, -1) {
		out.WriteString(e.expandShorthand(tmpl[last:loc[0]], ctx))
		name := normalize(tmpl[loc[2]:loc[3]])
		val, err := e.resolveVariable(name, ctx)
		if err != nil {
			firstErr = err
			break
		}
		out.WriteString(val)
		last = loc[1]
	}
	if firstErr != nil {
		return "", firstErr
	}
	out.WriteString(e.expandShorthand(tmpl[last:], ctx))

	return out.String(), nil
}

// RenderHeaders renders all header values
func (e *Engine) RenderHeaders(headers map[string]string, ctx *Context) (map[string]string, error) {
	result := make(map[string]string, len(headers))
	for key, value := range headers {
		if !HasTokens(value) {
			result[key] = e.expandShorthand(value, ctx)
			continue
		}
		rendered, err := e.Render(value, ctx)
		if err != nil {
			return nil, err
		}
		result[key] = rendered
	}
	return result, nil
}

// ExpandCaptures replaces {name} in a literal body with path captures of the
// same name. {{...}} tokens are not interpreted.
func (e *Engine) ExpandCaptures(s string, captures map[string]string) string {
	return e.expandShorthand(s, &Context{PathParams: captures})
}

// expandShorthand replaces {name} with a path capture when one exists by that name.
// Anything else in braces is left as written.
func (e *Engine) expandShorthand(s string, ctx *Context) string {
	if len(ctx.PathParams) == 0 || !strings.Contains(s, "{") {
		return s
	}
	return shorthandPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val, ok := ctx.PathParams[match[1:len(match)-1]]; ok {
			return val
		}
		return match
	})
}

// normalize trims spaces and an optional leading dot ({{.path.id}} == {{path.id}})
func normalize(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), ".")
}

// resolveVariable resolves a single variable to its value
func (e *Engine) resolveVariable(varName string, ctx *Context) (string, error) {
	source, key, _ := strings.Cut(varName, ".")
	missing := &models.TemplateError{Token: varName, Reason: "no value in request"}

	switch source {
	case "path":
		if val, ok := ctx.PathParams[key]; ok {
			return val, nil
		}
	case "query":
		if vals, ok := ctx.QueryParams[key]; ok && len(vals) > 0 {
			return vals[0], nil
		}
	case "header":
		// Headers are case-insensitive
		for k, vals := range ctx.Headers {
			if strings.EqualFold(k, key) && len(vals) > 0 {
				return vals[0], nil
			}
		}
	case "body":
		if ctx.Body != "" {
			result := gjson.Get(ctx.Body, key)
			if result.Exists() {
				return result.String(), nil
			}
		}
	case "request":
		switch key {
		case "method":
			return ctx.Method, nil
		case "path":
			return ctx.Path, nil
		case "seq":
			return strconv.FormatInt(ctx.Seq, 10), nil
		case "body":
			return ctx.Body, nil
		}
		return "", &models.TemplateError{Token: varName, Reason: "unknown request field"}
	case "random":
		val, err := e.resolveRandom(key)
		if err != nil {
			return "", &models.TemplateError{Token: varName, Reason: err.Error()}
		}
		return val, nil
	case "timestamp":
		return e.resolveTimestamp(key), nil
	}

	return "", missing
}

// maxRandomStringLength caps random.string(n)
const maxRandomStringLength = 4096

// randomGen is a parsed random.* generator
type randomGen struct {
	kind     string
	min, max int64
	length   int
}

// parseRandom parses and checks a random generator key such as int(1,6)
func parseRandom(key string) (randomGen, error) {
	switch {
	case key == "uuid", key == "float", key == "bool":
		return randomGen{kind: key}, nil
	case key == "int":
		return randomGen{kind: "int", min: 0, max: 999999}, nil
	case key == "string":
		return randomGen{kind: "string", length: 10}, nil
	case strings.HasPrefix(key, "int("):
		params := parseParams(key, "int")
		if len(params) != 2 {
			return randomGen{}, fmt.Errorf("int expects (min,max)")
		}
		min, err1 := strconv.ParseInt(strings.TrimSpace(params[0]), 10, 64)
		max, err2 := strconv.ParseInt(strings.TrimSpace(params[1]), 10, 64)
		if err1 != nil || err2 != nil {
			return randomGen{}, fmt.Errorf("int bounds must be 64-bit integers")
		}
		if min > max {
			return randomGen{}, fmt.Errorf("int min %d exceeds max %d", min, max)
		}
		return randomGen{kind: "int", min: min, max: max}, nil
	case strings.HasPrefix(key, "string("):
		params := parseParams(key, "string")
		if len(params) != 1 {
			return randomGen{}, fmt.Errorf("string expects (length)")
		}
		n, err := strconv.Atoi(strings.TrimSpace(params[0]))
		if err != nil || n < 1 || n > maxRandomStringLength {
			return randomGen{}, fmt.Errorf("string length must be between 1 and %d", maxRandomStringLength)
		}
		return randomGen{kind: "string", length: n}, nil
	}
	return randomGen{}, fmt.Errorf("unknown random generator")
}

// resolveRandom resolves random value generators
func (e *Engine) resolveRandom(key string) (string, error) {
	gen, err := parseRandom(key)
	if err != nil {
		return "", err
	}

	switch gen.kind {
	case "uuid":
		return uuid.New().String(), nil
	case "int":
		// span is computed in uint64 so the full int64 range cannot overflow
		span := uint64(gen.max) - uint64(gen.min)
		var offset uint64
		if span == math.MaxUint64 {
			offset = rand.Uint64()
		} else {
			offset = rand.Uint64N(span + 1)
		}
		return strconv.FormatInt(int64(uint64(gen.min)+offset), 10), nil
	case "float":
		return fmt.Sprintf("%.2f", rand.Float64()*1000), nil
	case "string":
		return randomString(gen.length), nil
	default:
		return strconv.FormatBool(rand.IntN(2) == 1), nil
	}
}

// resolveTimestamp resolves timestamp generators
func (e *Engine) resolveTimestamp(key string) string {
	now := e.now()

	switch {
	case key == "" || key == "unix":
		return strconv.FormatInt(now.Unix(), 10)
	case key == "unixMilli":
		return strconv.FormatInt(now.UnixMilli(), 10)
	case key == "iso":
		return now.Format(time.RFC3339)
	case key == "date":
		return now.Format("2006-01-02")
	case strings.HasPrefix(key, "format("):
		if params := parseParams(key, "format"); len(params) == 1 {
			return now.Format(params[0])
		}
	case strings.HasPrefix(key, "add("):
		// Add duration to current time: timestamp.add(1h)
		if params := parseParams(key, "add"); len(params) == 1 {
			if d, err := time.ParseDuration(params[0]); err == nil {
				return now.Add(d).Format(time.RFC3339)
			}
		}
	}

	return strconv.FormatInt(now.Unix(), 10)
}

// parseParams extracts parameters from a function call like "func(param1,param2)"
func parseParams(key, funcName string) []string {
	prefix := funcName + "("
	if !strings.HasPrefix(key, prefix) {
		return nil
	}

	paramsStr := strings.TrimSuffix(strings.TrimPrefix(key, prefix), ")")
	if paramsStr == "" {
		return nil
	}
	return strings.Split(paramsStr, ",")
}

// randomString generates a random alphanumeric string
func randomString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	for i := range result {
		result[i] = charset[rand.IntN(len(charset))]
	}
	return string(result)
}

func snippet(s string) string {
	if len(s) > 20 {
		return s[:20]
	}
	return s
}
