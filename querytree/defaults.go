// querytree/defaults.go
package querytree

// DefaultCombinators lists the combinator vocabulary in preference order.
// The first entry is used wherever a combinator must be invented, e.g. when
// appending to a non-empty independent-combinator group.
var DefaultCombinators = []string{"and", "or"}

// DefaultCombinator is the combinator used when none is specified.
const DefaultCombinator = "and"

// DefaultOperators lists the operator vocabulary shared by the export engine
// and the parsers.
var DefaultOperators = []string{
	"=", "!=", "<", ">", "<=", ">=",
	"contains", "beginsWith", "endsWith",
	"doesNotContain", "doesNotBeginWith", "doesNotEndWith",
	"null", "notNull",
	"in", "notIn",
	"between", "notBetween",
}

// DefaultValueSources is the value-source list assumed when a field catalog
// does not restrict sources.
var DefaultValueSources = []string{ValueSourceValue}
