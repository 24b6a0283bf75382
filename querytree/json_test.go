// querytree/json_test.go
package querytree

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseJSON_Grouped(t *testing.T) {
	data := []byte(`{
		"id": "root",
		"combinator": "and",
		"not": true,
		"rules": [
			{"id": "r1", "field": "firstName", "operator": "=", "value": "Steve"},
			{"id": "g1", "combinator": "or", "rules": [
				{"id": "r2", "field": "age", "operator": ">", "value": 28}
			]}
		]
	}`)

	q, err := ParseJSON(data)
	if err != nil {
		t.Fatalf("ParseJSON() error = %v, want nil", err)
	}
	if q.Combinator != "and" || !q.Not {
		t.Errorf("root = %q not=%v, want and/true", q.Combinator, q.Not)
	}

	r, ok := q.Rules[0].(*Rule)
	if !ok {
		t.Fatalf("Rules[0] = %T, want *Rule", q.Rules[0])
	}
	if r.Field != "firstName" || r.Value != "Steve" {
		t.Errorf("rule = %v/%v, want firstName/Steve", r.Field, r.Value)
	}

	g, ok := q.Rules[1].(*RuleGroup)
	if !ok {
		t.Fatalf("Rules[1] = %T, want *RuleGroup", q.Rules[1])
	}
	if v := g.Rules[0].(*Rule).Value; v != float64(28) {
		t.Errorf("nested value = %v (%T), want 28", v, v)
	}
}

func TestParseJSON_IndependentCombinators(t *testing.T) {
	data := []byte(`{
		"rules": [
			{"field": "a", "operator": "=", "value": 1},
			"or",
			{"field": "b", "operator": "=", "value": 2}
		]
	}`)

	q, err := ParseJSON(data)
	if err != nil {
		t.Fatalf("ParseJSON() error = %v, want nil", err)
	}
	if !q.Independent() {
		t.Errorf("Independent() = false, want true")
	}
	if c, ok := q.Rules[1].(Combinator); !ok || c != "or" {
		t.Errorf("Rules[1] = %v, want combinator \"or\"", q.Rules[1])
	}
}

func TestParseJSON_EmptyRulesGroupDiscrimination(t *testing.T) {
	// An object with a "rules" key is a group even when the array is empty.
	data := []byte(`{"combinator": "and", "rules": [{"combinator": "or", "rules": []}]}`)

	q, err := ParseJSON(data)
	if err != nil {
		t.Fatalf("ParseJSON() error = %v, want nil", err)
	}
	g, ok := q.Rules[0].(*RuleGroup)
	if !ok {
		t.Fatalf("Rules[0] = %T, want *RuleGroup", q.Rules[0])
	}
	if len(g.Rules) != 0 {
		t.Errorf("nested rules = %d, want 0", len(g.Rules))
	}
}

func TestParseJSON_Invalid(t *testing.T) {
	if _, err := ParseJSON([]byte(`{`)); err == nil {
		t.Errorf("truncated input: error = nil, want error")
	}
	if _, err := ParseJSON([]byte(`{"rules": [42]}`)); err == nil {
		t.Errorf("numeric rules element: error = nil, want error")
	}
}

func TestMarshalJSON_RulesNeverNull(t *testing.T) {
	data, err := json.Marshal(&RuleGroup{ID: "g", Combinator: "and"})
	if err != nil {
		t.Fatalf("Marshal() error = %v, want nil", err)
	}
	if !strings.Contains(string(data), `"rules":[]`) {
		t.Errorf("output %s, want rules to serialize as []", data)
	}
	if strings.Contains(string(data), "null") {
		t.Errorf("output %s contains null", data)
	}
}

func TestJSON_RoundTrip(t *testing.T) {
	q := newGroup("and",
		&Rule{ID: "r1", Field: "a", Operator: "in", Value: "x, y", ValueSource: ValueSourceValue},
		newICGroup(
			&Rule{ID: "r2", Field: "b", Operator: "=", Value: float64(1)},
			Combinator("or"),
			&Rule{ID: "r3", Field: "c", Operator: "null", Value: nil},
		),
	)

	data, err := json.Marshal(q)
	if err != nil {
		t.Fatalf("Marshal() error = %v, want nil", err)
	}
	back, err := ParseJSON(data)
	if err != nil {
		t.Fatalf("ParseJSON() error = %v, want nil", err)
	}

	if back.Combinator != "and" || len(back.Rules) != 2 {
		t.Fatalf("root = %q/%d rules, want and/2", back.Combinator, len(back.Rules))
	}
	ic := back.Rules[1].(*RuleGroup)
	if !ic.Independent() || len(ic.Rules) != 3 {
		t.Fatalf("nested = independent %v/%d rules, want true/3", ic.Independent(), len(ic.Rules))
	}
	if c := ic.Rules[1].(Combinator); c != "or" {
		t.Errorf("inline combinator = %q, want or", c)
	}
}

func TestCloneWithNewIDs(t *testing.T) {
	q := newGroup("and", newRule("a"), newGroup("or", newRule("b")))
	out := CloneWithNewIDs(q).(*RuleGroup)

	if out.ID == q.ID {
		t.Errorf("root ID unchanged")
	}
	if out.Rules[0].(*Rule).ID == q.Rules[0].(*Rule).ID {
		t.Errorf("rule ID unchanged")
	}
	inner := out.Rules[1].(*RuleGroup)
	if inner.Rules[0].(*Rule).ID == q.Rules[1].(*RuleGroup).Rules[0].(*Rule).ID {
		t.Errorf("nested rule ID unchanged")
	}
	if got := fieldAt(t, out, Path{0}); got != "a" {
		t.Errorf("structure changed: field = %q, want a", got)
	}
}
