package rounding_test

import (
	"testing"

	"github.com/nominalabs/nomina/internal/rounding"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCurrencyHalfUp(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0.005", "0.01"},
		{"0.004", "0.00"},
		{"1.015", "1.02"},
		{"1.025", "1.03"}, // banker's would give 1.02
		{"123.456", "123.46"},
		{"123.454", "123.45"},
		{"-0.005", "-0.01"},
		{"10", "10"},
	}
	for _, tc := range cases {
		got := rounding.Currency(d(tc.in))
		assert.True(t, got.Equal(d(tc.want)), "Currency(%s) = %s, want %s", tc.in, got, tc.want)
	}
}

func TestSumRoundsOnce(t *testing.T) {
	// Rounding each item before summing drifts a cent; the total must be
	// summed at full precision and rounded once.
	items := []decimal.Decimal{d("0.005"), d("0.005"), d("0.005")}
	assert.True(t, rounding.Sum(items).Equal(d("0.02")))

	perItem := decimal.Zero
	for _, it := range items {
		perItem = perItem.Add(rounding.Currency(it))
	}
	assert.True(t, perItem.Equal(d("0.03")), "sanity: per-item rounding drifts")
}

func TestSumEmpty(t *testing.T) {
	assert.True(t, rounding.Sum(nil).Equal(decimal.Zero))
}

func TestPercentage(t *testing.T) {
	assert.True(t, rounding.Percentage(d("16.666")).Equal(d("16.67")))
	assert.True(t, rounding.Percentage(d("10.125")).Equal(d("10.13")))
}
