package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatINR renders an amount in Indian rupee notation: two decimal places,
// lakh/crore digit grouping, e.g. 500000 -> "₹5,00,000.00".
func FormatINR(d decimal.Decimal) string {
	s := d.StringFixed(2)

	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	intPart, fracPart, _ := strings.Cut(s, ".")

	grouped := intPart
	if len(intPart) > 3 {
		head := intPart[:len(intPart)-3]
		tail := intPart[len(intPart)-3:]

		var parts []string
		for len(head) > 2 {
			parts = append([]string{head[len(head)-2:]}, parts...)
			head = head[:len(head)-2]
		}
		if head != "" {
			parts = append([]string{head}, parts...)
		}
		grouped = strings.Join(parts, ",") + "," + tail
	}

	out := "₹" + grouped + "." + fracPart
	if neg {
		out = "-" + out
	}
	return out
}
