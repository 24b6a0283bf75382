// querytree/convert_test.go
package querytree

import (
	"testing"
)

func TestConvertQuery_GroupedToIC(t *testing.T) {
	q := newGroup("or",
		newRule("a"),
		newGroup("and", newRule("b"), newRule("c")),
		newRule("d"),
	)
	out := ConvertQuery(q)

	if !out.Independent() {
		t.Fatalf("Independent() = false, want true")
	}
	if len(out.Rules) != 5 {
		t.Fatalf("len(out.Rules) = %d, want 5", len(out.Rules))
	}
	for _, i := range []int{1, 3} {
		if c, ok := out.Rules[i].(Combinator); !ok || c != "or" {
			t.Errorf("out.Rules[%d] = %v, want combinator \"or\"", i, out.Rules[i])
		}
	}

	nested := out.Rules[2].(*RuleGroup)
	if !nested.Independent() {
		t.Errorf("nested group not converted")
	}
	if len(nested.Rules) != 3 {
		t.Errorf("nested len = %d, want 3", len(nested.Rules))
	}

	if q.Independent() {
		t.Errorf("input mutated")
	}
}

func TestConvertQuery_ICToGrouped(t *testing.T) {
	q := newICGroup(
		newRule("a"),
		Combinator("or"),
		newICGroup(newRule("b"), Combinator("and"), newRule("c")),
		Combinator("and"),
		newRule("d"),
	)
	out := ConvertQuery(q)

	if out.Independent() {
		t.Fatalf("Independent() = true, want false")
	}
	// Mixed inline combinators normalize to the first one.
	if out.Combinator != "or" {
		t.Errorf("Combinator = %q, want or (first inline combinator)", out.Combinator)
	}
	if len(out.Rules) != 3 {
		t.Fatalf("len(out.Rules) = %d, want 3", len(out.Rules))
	}

	nested := out.Rules[1].(*RuleGroup)
	if nested.Independent() || nested.Combinator != "and" {
		t.Errorf("nested group = %q independent=%v, want grouped and", nested.Combinator, nested.Independent())
	}
}

func TestConvertQuery_EmptyAndNil(t *testing.T) {
	if got := ConvertQuery(nil); got != nil {
		t.Errorf("ConvertQuery(nil) = %v, want nil", got)
	}

	empty := ConvertQuery(newGroup("and"))
	if !empty.Independent() || len(empty.Rules) != 0 {
		t.Errorf("empty grouped: got %q/%d rules, want independent empty", empty.Combinator, len(empty.Rules))
	}

	back := ConvertQuery(empty)
	if back.Independent() || back.Combinator != DefaultCombinator {
		t.Errorf("empty IC: got %q, want default combinator", back.Combinator)
	}
}

func TestConvertQuery_RoundTrip(t *testing.T) {
	q := newGroup("or",
		newRule("a"),
		newGroup("and", newRule("b"), newRule("c")),
	)
	back := ConvertQuery(ConvertQuery(q))

	if back.Combinator != "or" {
		t.Errorf("Combinator = %q, want or", back.Combinator)
	}
	if len(back.Rules) != 2 {
		t.Fatalf("len = %d, want 2", len(back.Rules))
	}
	if got := fieldAt(t, back, Path{0}); got != "a" {
		t.Errorf("first field = %q, want a", got)
	}
	nested := back.Rules[1].(*RuleGroup)
	if nested.Combinator != "and" || len(nested.Rules) != 2 {
		t.Errorf("nested = %q/%d rules, want and/2", nested.Combinator, len(nested.Rules))
	}
}
