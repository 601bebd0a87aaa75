package formula_test

import (
	"errors"
	"testing"

	"github.com/nominalabs/nomina/internal/formula"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newEngine(t *testing.T) *formula.Engine {
	t.Helper()
	return formula.NewEngine(formula.EngineParam{Log: zap.NewNop()})
}

func ctxWith(vars map[string]string) *formula.Context {
	ctx := formula.NewContext()
	for name, v := range vars {
		ctx.Set(name, decimal.RequireFromString(v))
	}
	return ctx
}

func TestEvaluateArithmetic(t *testing.T) {
	eng := newEngine(t)
	cases := []struct {
		expr string
		vars map[string]string
		want string
	}{
		{"a + b", map[string]string{"a": "2", "b": "3"}, "5"},
		{"2 + 3 * 4", nil, "14"},
		{"(2 + 3) * 4", nil, "20"},
		{"10 / 4", nil, "2.5"},
		{"-salario + 100", map[string]string{"salario": "40"}, "60"},
		{"salario_diario * dias_trabajados", map[string]string{"salario_diario": "537.50", "dias_trabajados": "15"}, "8062.50"},
		{"min(10, 3) + max(1, 2)", nil, "5"},
		{"round(10.005)", nil, "10.01"},
		{"porcentaje(16, 250)", nil, "40"},
		{"si(dias > 10, 100, 50)", map[string]string{"dias": "15"}, "100"},
		{"si(dias > 10, 100, 50)", map[string]string{"dias": "3"}, "50"},
		{"si(bono, bono * 2, 0)", map[string]string{"bono": "5"}, "10"},
		{"SALARIO + 1", map[string]string{"salario": "9"}, "10"}, // identifiers are case-insensitive
	}
	for _, tc := range cases {
		got, err := eng.Evaluate(tc.expr, ctxWith(tc.vars))
		require.NoError(t, err, tc.expr)
		assert.True(t, got.Equal(decimal.RequireFromString(tc.want)), "%s = %s, want %s", tc.expr, got, tc.want)
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	eng := newEngine(t)
	ctx := ctxWith(map[string]string{"x": "7.77"})
	first, err := eng.Evaluate("x * 3 / 7", ctx)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		again, err := eng.Evaluate("x * 3 / 7", ctx)
		require.NoError(t, err)
		assert.True(t, first.Equal(again))
	}
}

func TestDivisionByZero(t *testing.T) {
	eng := newEngine(t)
	_, err := eng.Evaluate("x / 0", ctxWith(map[string]string{"x": "5"}))
	assert.ErrorIs(t, err, formula.ErrDivisionByZero)

	_, err = eng.Evaluate("x / (y - y)", ctxWith(map[string]string{"x": "5", "y": "2"}))
	assert.ErrorIs(t, err, formula.ErrDivisionByZero)
}

func TestUnknownIdentifier(t *testing.T) {
	eng := newEngine(t)
	_, err := eng.Evaluate("undefined_var + 1", formula.NewContext())
	var unknown *formula.UnknownIdentifierError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "undefined_var", unknown.Name)
}

func TestTypeMismatch(t *testing.T) {
	eng := newEngine(t)

	// Bare comparison is not a number.
	_, err := eng.Evaluate("1 < 2", formula.NewContext())
	assert.ErrorIs(t, err, formula.ErrTypeMismatch)

	// Comparison result used in arithmetic.
	_, err = eng.Evaluate("(1 < 2) + 3", formula.NewContext())
	assert.ErrorIs(t, err, formula.ErrTypeMismatch)

	// Boolean fed to a numeric function.
	_, err = eng.Evaluate("min(1 < 2, 3)", formula.NewContext())
	assert.ErrorIs(t, err, formula.ErrTypeMismatch)
}

func TestStepLimit(t *testing.T) {
	// Step limit trips on a tree wide enough to exceed the bound.
	expr := "1"
	for i := 0; i < 40; i++ {
		expr = "(" + expr + "+" + expr + ")"
		if len(expr) > 40_000 {
			break
		}
	}
	parsed, err := formula.Parse(expr)
	require.NoError(t, err)
	_, err = formula.Eval(parsed, formula.NewContext(), 100)
	assert.ErrorIs(t, err, formula.ErrStepLimitExceeded)
}

func TestValidate(t *testing.T) {
	eng := newEngine(t)
	require.NoError(t, eng.Validate("salario_diario * 1.15"))

	var syntaxErr *formula.SyntaxError
	for _, bad := range []string{"1 +", "(1 + 2", "1 ++ 2", "foo(1)", "min(1)", "1 = 2", "1..2", "@"} {
		err := eng.Validate(bad)
		require.Error(t, err, bad)
		assert.True(t, errors.As(err, &syntaxErr), "%s should be a syntax error, got %v", bad, err)
	}
}

func TestValidateDoesNotNeedContext(t *testing.T) {
	eng := newEngine(t)
	// Unknown identifiers are an evaluation-time concern, not a syntax one.
	assert.NoError(t, eng.Validate("whatever_var * 2"))
}

func TestIdentifiersWalk(t *testing.T) {
	parsed, err := formula.Parse("si(dias > 7, sueldo_base * 0.25, otro_concepto)")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"dias", "sueldo_base", "otro_concepto"}, formula.Identifiers(parsed))
}

func TestTestOperation(t *testing.T) {
	eng := newEngine(t)
	got, err := eng.Test("porcentaje(10, base)", map[string]decimal.Decimal{
		"base": decimal.NewFromInt(900),
	})
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(90)))
}

func TestFunctionNames(t *testing.T) {
	assert.Equal(t, []string{"max", "min", "porcentaje", "round", "si"}, formula.FunctionNames())
}
