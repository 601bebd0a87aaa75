package formula

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Engine is the authoring and evaluation surface over the expression language.
// Parsed ASTs are cached by source text so a formula is compiled once at save
// time and evaluated thousands of times per payroll run without re-parsing.
type Engine struct {
	log       *zap.Logger
	stepLimit int

	cache sync.Map // expression text -> Expr
}

type EngineParam struct {
	fx.In

	Log *zap.Logger
}

func NewEngine(p EngineParam) *Engine {
	return &Engine{
		log:       p.Log.Named("formula.engine"),
		stepLimit: DefaultStepLimit,
	}
}

// Compile parses (or returns the cached tree for) an expression.
func (e *Engine) Compile(expression string) (Expr, error) {
	if cached, ok := e.cache.Load(expression); ok {
		return cached.(Expr), nil
	}
	expr, err := Parse(expression)
	if err != nil {
		return nil, err
	}
	e.cache.Store(expression, expr)
	return expr, nil
}

// Validate reports whether the expression parses. The returned error is a
// *SyntaxError with position detail.
func (e *Engine) Validate(expression string) error {
	_, err := e.Compile(expression)
	return err
}

// Evaluate runs the expression against ctx.
func (e *Engine) Evaluate(expression string, ctx *Context) (decimal.Decimal, error) {
	expr, err := e.Compile(expression)
	if err != nil {
		return decimal.Zero, err
	}
	return Eval(expr, ctx, e.stepLimit)
}

// Test evaluates an expression against a caller-supplied sample context. Used
// by the authoring surface; identical semantics to Evaluate, kept separate so
// handlers read naturally.
func (e *Engine) Test(expression string, sample map[string]decimal.Decimal) (decimal.Decimal, error) {
	ctx := NewContext()
	for name, value := range sample {
		ctx.Set(name, value)
	}
	return e.Evaluate(expression, ctx)
}

// FunctionNames lists the callable functions of the language.
func FunctionNames() []string {
	names := make([]string, 0, len(functions))
	for name := range functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var Module = fx.Module("formula.engine",
	fx.Provide(NewEngine),
)
