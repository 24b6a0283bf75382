// formatquery/jsonexport.go
package formatquery

import (
	"encoding/json"

	"github.com/solatis/querykit/querytree"
)

/*
 * JSON interchange export. "json" is the canonical tree, indented;
 * "json_without_ids" strips the generated id and cached path keys via the
 * generic tree transformer so persisted queries diff cleanly.
 */

// JSON renders the canonical interchange form, indented.
func JSON(q *querytree.RuleGroup) string {
	if q == nil {
		return "{}"
	}
	data, err := json.MarshalIndent(q, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// JSONWithoutIDs renders the canonical form with id and path keys removed
// from every node.
func JSONWithoutIDs(q *querytree.RuleGroup) string {
	if q == nil {
		return "{}"
	}
	strip := func(m map[string]any, _ querytree.Path) map[string]any {
		delete(m, "id")
		delete(m, "path")
		return m
	}
	stripped := querytree.TransformQuery(q, &querytree.TransformOptions{
		RuleProcessor:  strip,
		GroupProcessor: strip,
	})
	data, err := json.Marshal(stripped)
	if err != nil {
		return "{}"
	}
	return string(data)
}
