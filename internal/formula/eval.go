package formula

import (
	"fmt"
	"strings"

	"github.com/nominalabs/nomina/internal/rounding"
	"github.com/shopspring/decimal"
)

func normalizeIdent(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// DefaultStepLimit bounds how many AST nodes a single evaluation may visit.
// Formulas are short; anything approaching the limit is hostile or broken.
const DefaultStepLimit = 10_000

type funcSpec struct {
	arity int
}

var functions = map[string]funcSpec{
	"min":        {arity: 2},
	"max":        {arity: 2},
	"round":      {arity: 1},
	"si":         {arity: 3},
	"porcentaje": {arity: 2},
}

// Context is the read-only variable bag an expression evaluates against:
// employee attributes, period attributes and previously computed concept
// results for the same employee. Never persisted.
type Context struct {
	vars map[string]decimal.Decimal
}

func NewContext() *Context {
	return &Context{vars: map[string]decimal.Decimal{}}
}

func (c *Context) Set(name string, value decimal.Decimal) {
	c.vars[normalizeIdent(name)] = value
}

func (c *Context) Get(name string) (decimal.Decimal, bool) {
	v, ok := c.vars[normalizeIdent(name)]
	return v, ok
}

// Names returns the identifiers the context resolves, unordered.
func (c *Context) Names() []string {
	names := make([]string, 0, len(c.vars))
	for name := range c.vars {
		names = append(names, name)
	}
	return names
}

// value is the evaluator's runtime value: a number or, transiently, a boolean
// produced by a comparison and consumed by si().
type value struct {
	num    decimal.Decimal
	isBool bool
	b      bool
}

type evaluator struct {
	ctx       *Context
	steps     int
	stepLimit int
}

// Eval evaluates a parsed expression against ctx, bounded by stepLimit
// (DefaultStepLimit when zero). The result is rounding-normalized.
func Eval(expr Expr, ctx *Context, stepLimit int) (decimal.Decimal, error) {
	if stepLimit <= 0 {
		stepLimit = DefaultStepLimit
	}
	ev := &evaluator{ctx: ctx, stepLimit: stepLimit}
	v, err := ev.eval(expr)
	if err != nil {
		return decimal.Zero, err
	}
	if v.isBool {
		return decimal.Zero, fmt.Errorf("%w: expression yields a boolean, expected a number", ErrTypeMismatch)
	}
	return rounding.Currency(v.num), nil
}

func (ev *evaluator) eval(expr Expr) (value, error) {
	ev.steps++
	if ev.steps > ev.stepLimit {
		return value{}, ErrStepLimitExceeded
	}

	switch n := expr.(type) {
	case numberExpr:
		return value{num: n.value}, nil

	case identExpr:
		v, ok := ev.ctx.Get(n.name)
		if !ok {
			return value{}, &UnknownIdentifierError{Name: n.name}
		}
		return value{num: v}, nil

	case binaryExpr:
		return ev.evalBinary(n)

	case callExpr:
		return ev.evalCall(n)
	}
	return value{}, fmt.Errorf("%w: unsupported expression node", ErrTypeMismatch)
}

func (ev *evaluator) evalBinary(n binaryExpr) (value, error) {
	left, err := ev.eval(n.left)
	if err != nil {
		return value{}, err
	}
	right, err := ev.eval(n.right)
	if err != nil {
		return value{}, err
	}
	if left.isBool || right.isBool {
		return value{}, fmt.Errorf("%w: boolean operand in arithmetic or comparison", ErrTypeMismatch)
	}

	switch n.op {
	case tokenPlus:
		return value{num: left.num.Add(right.num)}, nil
	case tokenMinus:
		return value{num: left.num.Sub(right.num)}, nil
	case tokenStar:
		return value{num: left.num.Mul(right.num)}, nil
	case tokenSlash:
		if right.num.IsZero() {
			return value{}, ErrDivisionByZero
		}
		return value{num: left.num.DivRound(right.num, 12)}, nil
	case tokenLT:
		return boolValue(left.num.LessThan(right.num)), nil
	case tokenLE:
		return boolValue(left.num.LessThanOrEqual(right.num)), nil
	case tokenGT:
		return boolValue(left.num.GreaterThan(right.num)), nil
	case tokenGE:
		return boolValue(left.num.GreaterThanOrEqual(right.num)), nil
	case tokenEQ:
		return boolValue(left.num.Equal(right.num)), nil
	case tokenNE:
		return boolValue(!left.num.Equal(right.num)), nil
	}
	return value{}, fmt.Errorf("%w: unsupported operator", ErrTypeMismatch)
}

func (ev *evaluator) evalCall(n callExpr) (value, error) {
	switch n.fn {
	case "si":
		cond, err := ev.eval(n.args[0])
		if err != nil {
			return value{}, err
		}
		if !cond.isBool {
			// Numbers are accepted as conditions: non-zero is true. Matches
			// how authors write `si(antiguedad_anios, ...)`.
			cond = boolValue(!cond.num.IsZero())
		}
		if cond.b {
			return ev.eval(n.args[1])
		}
		return ev.eval(n.args[2])
	}

	args := make([]value, len(n.args))
	for i, argExpr := range n.args {
		arg, err := ev.eval(argExpr)
		if err != nil {
			return value{}, err
		}
		if arg.isBool {
			return value{}, fmt.Errorf("%w: boolean argument to %s", ErrTypeMismatch, n.fn)
		}
		args[i] = arg
	}

	switch n.fn {
	case "min":
		if args[0].num.LessThan(args[1].num) {
			return args[0], nil
		}
		return args[1], nil
	case "max":
		if args[0].num.GreaterThan(args[1].num) {
			return args[0], nil
		}
		return args[1], nil
	case "round":
		return value{num: rounding.Currency(args[0].num)}, nil
	case "porcentaje":
		// porcentaje(pct, base) = base * pct / 100
		return value{num: args[1].num.Mul(args[0].num).Div(decimal.NewFromInt(100))}, nil
	}
	return value{}, fmt.Errorf("%w: unknown function %s", ErrTypeMismatch, n.fn)
}

func boolValue(b bool) value { return value{isBool: true, b: b} }
