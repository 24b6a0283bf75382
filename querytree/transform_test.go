// querytree/transform_test.go
package querytree

import (
	"testing"
)

func TestTransformQuery_DeepCopy(t *testing.T) {
	q := newGroup("and",
		&Rule{ID: "r1", Field: "a", Operator: "=", Value: "x"},
		newGroup("or", &Rule{ID: "r2", Field: "b", Operator: ">", Value: float64(5)}),
	)
	out := TransformQuery(q, nil)

	if out["combinator"] != "and" {
		t.Errorf("combinator = %v, want and", out["combinator"])
	}
	rules := out["rules"].([]any)
	if len(rules) != 2 {
		t.Fatalf("len(rules) = %d, want 2", len(rules))
	}
	first := rules[0].(map[string]any)
	if first["field"] != "a" || first["operator"] != "=" {
		t.Errorf("first rule = %v, want field a operator =", first)
	}
	nested := rules[1].(map[string]any)
	nestedRules := nested["rules"].([]any)
	if len(nestedRules) != 1 {
		t.Errorf("nested rules = %d, want 1", len(nestedRules))
	}
}

func TestTransformQuery_Processors(t *testing.T) {
	q := newGroup("and", &Rule{ID: "r1", Field: "a", Operator: "=", Value: "x"})

	var seenPaths []Path
	out := TransformQuery(q, &TransformOptions{
		RuleProcessor: func(rule map[string]any, path Path) map[string]any {
			seenPaths = append(seenPaths, path)
			rule["extra"] = true
			return rule
		},
		GroupProcessor: func(group map[string]any, path Path) map[string]any {
			group["rules"] = "clobbered"
			return group
		},
	})

	if len(seenPaths) != 1 || !seenPaths[0].Equal(Path{0}) {
		t.Errorf("rule paths = %v, want [[0]]", seenPaths)
	}
	rules, ok := out["rules"].([]any)
	if !ok {
		t.Fatalf("rules = %T, want recursion to overwrite the processor's value", out["rules"])
	}
	if rules[0].(map[string]any)["extra"] != true {
		t.Errorf("rule processor output dropped")
	}
}

func TestTransformQuery_Maps(t *testing.T) {
	q := &RuleGroup{
		ID: "g1",
		Rules: []Node{
			&Rule{ID: "r1", Field: "a", Operator: "=", Value: "x"},
			Combinator("and"),
			&Rule{ID: "r2", Field: "b", Operator: "!=", Value: "y"},
		},
	}
	out := TransformQuery(q, &TransformOptions{
		CombinatorMap: map[string]string{"and": "&&"},
		OperatorMap:   map[string]string{"=": "=="},
	})

	rules := out["rules"].([]any)
	if rules[1] != "&&" {
		t.Errorf("inline combinator = %v, want &&", rules[1])
	}
	if rules[0].(map[string]any)["operator"] != "==" {
		t.Errorf("operator = %v, want ==", rules[0].(map[string]any)["operator"])
	}
	if rules[2].(map[string]any)["operator"] != "!=" {
		t.Errorf("unmapped operator = %v, want !=", rules[2].(map[string]any)["operator"])
	}
}

func TestTransformQuery_PropertyMap(t *testing.T) {
	q := newGroup("and", &Rule{ID: "r1", Field: "a", Operator: "=", Value: "x"})

	out := TransformQuery(q, &TransformOptions{
		PropertyMap: map[string]string{"field": "column"},
	})
	r := out["rules"].([]any)[0].(map[string]any)
	if r["column"] != "a" {
		t.Errorf("column = %v, want a", r["column"])
	}
	if _, ok := r["field"]; ok {
		t.Errorf("field key kept, want deleted")
	}

	out = TransformQuery(q, &TransformOptions{
		PropertyMap:            map[string]string{"field": "column"},
		KeepRemappedProperties: true,
	})
	r = out["rules"].([]any)[0].(map[string]any)
	if r["field"] != "a" || r["column"] != "a" {
		t.Errorf("keep remapped: field=%v column=%v, want both a", r["field"], r["column"])
	}
}

func TestTransformQuery_Nil(t *testing.T) {
	if out := TransformQuery(nil, nil); out != nil {
		t.Errorf("TransformQuery(nil) = %v, want nil", out)
	}
}
