package condition

import (
	"strings"
	"testing"

	"github.com/prasenjit/go-assertive/internal/models"
)

func TestCompile_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		cond  models.Condition
		field string
	}{
		{"unknown operator", models.Condition{Source: models.SourcePath, Operator: "like"}, "c.operator"},
		{"unknown source", models.Condition{Source: "cookie", Operator: models.OpEquals}, "c.source"},
		{"header without key", models.Condition{Source: models.SourceHeader, Operator: models.OpEquals}, "c.key"},
		{"method with key", models.Condition{Source: models.SourceMethod, Key: "x", Operator: models.OpEquals}, "c.key"},
		{"bad regex", models.Condition{Source: models.SourcePath, Operator: models.OpRegex, Value: "("}, "c.value"},
		{"empty range", models.Condition{Source: models.SourceQuery, Key: "n", Operator: models.OpRange}, "c"},
		{"inverted range", models.Condition{Source: models.SourceQuery, Key: "n", Operator: models.OpRange, Min: ptr(5), Max: ptr(1)}, "c"},
		{"jsonPath on header", models.Condition{Source: models.SourceHeader, Key: "x", Operator: models.OpJSONPath}, "c.source"},
		{"jsonPath without key", models.Condition{Source: models.SourceBody, Operator: models.OpJSONPath}, "c.key"},
		{"template on host", models.Condition{Source: models.SourceHost, Operator: models.OpTemplate, Value: "/{x}"}, "c.source"},
		{"partial segment param", models.Condition{Source: models.SourcePath, Operator: models.OpTemplate, Value: "/users/id-{id}"}, "c.value"},
		{"duplicate param", models.Condition{Source: models.SourcePath, Operator: models.OpTemplate, Value: "/{id}/{id}"}, "c.value"},
		{"bad wildcard", models.Condition{Source: models.SourcePath, Operator: models.OpWildcard, Value: "/[a"}, "c.value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile("c", tt.cond)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			ve, ok := err.(*models.ValidationError)
			if !ok {
				t.Fatalf("Expected *ValidationError, got %T", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Expected field %q, got %q", tt.field, ve.Field)
			}
		})
	}
}

func TestCompile_ErrorListsChoices(t *testing.T) {
	_, err := Compile("c", models.Condition{Source: models.SourcePath, Operator: "like"})
	for _, op := range models.ValidOperators() {
		if !strings.Contains(err.Error(), op) {
			t.Errorf("Expected operator error to list %q, got %v", op, err)
		}
	}

	_, err = Compile("c", models.Condition{Source: "cookie", Operator: models.OpEquals})
	for _, src := range models.ValidSources() {
		if !strings.Contains(err.Error(), src) {
			t.Errorf("Expected source error to list %q, got %v", src, err)
		}
	}
}

func TestValidOperators_AllCompile(t *testing.T) {
	if len(models.ValidOperators()) != len(operatorKinds) {
		t.Errorf("Expected %d operators, got %d", len(operatorKinds), len(models.ValidOperators()))
	}
	for _, op := range models.ValidOperators() {
		if _, ok := operatorKinds[op]; !ok {
			t.Errorf("Operator %q has no predicate kind", op)
		}
	}
}

func TestCompile_SourceKeys(t *testing.T) {
	for _, src := range models.ValidSources() {
		t.Run(src, func(t *testing.T) {
			_, errNoKey := Compile("c", models.Condition{Source: src, Operator: models.OpExists})
			_, errKey := Compile("c", models.Condition{Source: src, Key: "k", Operator: models.OpExists})
			switch {
			case models.KeyedSource(src):
				if errNoKey == nil || errKey != nil {
					t.Errorf("Expected key required, got %v / %v", errNoKey, errKey)
				}
			case src == models.SourceBody:
				if errNoKey != nil || errKey != nil {
					t.Errorf("Expected optional key, got %v / %v", errNoKey, errKey)
				}
			default:
				if errNoKey != nil || errKey == nil {
					t.Errorf("Expected key rejected, got %v / %v", errNoKey, errKey)
				}
			}
		})
	}
}

func TestWeights(t *testing.T) {
	tests := []struct {
		cond     models.Condition
		expected int
	}{
		{models.Condition{Source: models.SourcePath, Operator: models.OpEquals, Value: "/a"}, WeightEquals},
		{models.Condition{Source: models.SourceBody, Key: "a", Operator: models.OpJSONPath, Value: "1"}, WeightJSONPath},
		{models.Condition{Source: models.SourceHost, Operator: models.OpEqualFold, Value: "x"}, WeightEqualFold},
		{models.Condition{Source: models.SourcePath, Operator: models.OpTemplate, Value: "/a/{b}"}, WeightTemplate},
		{models.Condition{Source: models.SourcePath, Operator: models.OpRegex, Value: "^/a"}, WeightRegex},
		{models.Condition{Source: models.SourceQuery, Key: "n", Operator: models.OpRange, Min: ptr(1)}, WeightRange},
		{models.Condition{Source: models.SourcePath, Operator: models.OpWildcard, Value: "/a/*"}, WeightWildcard},
		{models.Condition{Source: models.SourcePath, Operator: models.OpWildcard, Value: "**"}, 0},
		{models.Condition{Source: models.SourceHeader, Key: "x", Operator: models.OpExists}, WeightPresence},
	}

	for _, tt := range tests {
		t.Run(tt.cond.Operator+" "+tt.cond.Value, func(t *testing.T) {
			if w := MustCompile(tt.cond).Weight(); w != tt.expected {
				t.Errorf("Expected weight %d, got %d", tt.expected, w)
			}
		})
	}

	// exact must outrank every looser form
	if !(WeightEquals > WeightTemplate && WeightTemplate > WeightRegex && WeightRegex > WeightWildcard && WeightWildcard > WeightPresence) {
		t.Error("Weights are not strictly ordered")
	}
}

func TestPredicate_ConditionRoundTrip(t *testing.T) {
	c := models.Condition{Source: models.SourceHeader, Key: "X-Id", Operator: models.OpRegex, Value: "^a", All: true}
	if got := MustCompile(c).Condition(); got.Source != c.Source || got.Key != c.Key || got.Operator != c.Operator || got.Value != c.Value || !got.All {
		t.Errorf("Expected %+v, got %+v", c, got)
	}
}

func TestHasPathParams(t *testing.T) {
	if !HasPathParams("/users/{id}") {
		t.Error("Expected /users/{id} to have params")
	}
	if HasPathParams("/users/42") {
		t.Error("Expected /users/42 to have no params")
	}
	if HasPathParams("/users/{}") {
		t.Error("Expected empty braces not to be a param")
	}
}
