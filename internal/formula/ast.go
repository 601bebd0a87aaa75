package formula

import "github.com/shopspring/decimal"

// Expr is an immutable parsed expression node. Trees are built once at
// formula-save time and shared read-only across concurrent evaluations.
type Expr interface {
	node()
}

type numberExpr struct {
	value decimal.Decimal
}

type identExpr struct {
	name string
	pos  int
}

type binaryExpr struct {
	op    tokenKind
	left  Expr
	right Expr
	pos   int
}

type callExpr struct {
	fn   string
	args []Expr
	pos  int
}

func (numberExpr) node() {}
func (identExpr) node()  {}
func (binaryExpr) node() {}
func (callExpr) node()   {}

// Identifiers returns every identifier referenced by the expression,
// deduplicated. Used to build the concept dependency graph.
func Identifiers(e Expr) []string {
	seen := map[string]struct{}{}
	var names []string
	var walk func(Expr)
	walk = func(e Expr) {
		switch n := e.(type) {
		case identExpr:
			if _, ok := seen[n.name]; !ok {
				seen[n.name] = struct{}{}
				names = append(names, n.name)
			}
		case binaryExpr:
			walk(n.left)
			walk(n.right)
		case callExpr:
			for _, arg := range n.args {
				walk(arg)
			}
		}
	}
	walk(e)
	return names
}
