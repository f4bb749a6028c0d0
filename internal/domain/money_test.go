package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatINR(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "₹0.00"},
		{"999", "₹999.00"},
		{"1000", "₹1,000.00"},
		{"99999", "₹99,999.00"},
		{"100000", "₹1,00,000.00"},
		{"500000", "₹5,00,000.00"},
		{"1234567.89", "₹12,34,567.89"},
		{"123456789.5", "₹12,34,56,789.50"},
		{"-500000", "-₹5,00,000.00"},
	}

	for _, tc := range cases {
		d, err := decimal.NewFromString(tc.in)
		assert.NoError(t, err)
		assert.Equal(t, tc.want, FormatINR(d), "input %s", tc.in)
	}
}
