package training

import (
	"fmt"
	"math"
	"strconv"
)

type ValueFormat string

const (
	FormatHHMM    ValueFormat = "hhmm"
	FormatDecimal ValueFormat = "decimal"
	FormatInteger ValueFormat = "integer"
)

func ParseValueFormat(s string) (ValueFormat, error) {
	switch ValueFormat(s) {
	case FormatHHMM, FormatDecimal, FormatInteger:
		return ValueFormat(s), nil
	case "":
		return FormatInteger, nil
	default:
		return "", fmt.Errorf("unknown value format: %s", s)
	}
}

// FormatRank gives the ordinal, e.g. 1st, 22nd, 113th.
func FormatRank(rank int) string {
	suffix := "th"
	switch rank % 100 {
	case 11, 12, 13:
	default:
		switch rank % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(rank) + suffix
}

// PercentileExpression places the rank in the top or bottom percent of n,
// e.g. rank 1 of 13 is "top 8%", rank 13 of 13 is "bottom 8%".
func PercentileExpression(rank, n int) string {
	if n <= 0 || rank <= 0 || rank > n {
		return ""
	}
	if rank <= ceilDiv(n, 2) {
		return fmt.Sprintf("top %d%%", ceilDiv(rank*100, n))
	}
	return fmt.Sprintf("bottom %d%%", ceilDiv((n-rank+1)*100, n))
}

// ConvertMinsToHHMM formats minutes as hours and minutes, 125 is "02:05".
func ConvertMinsToHHMM(mins float64) string {
	total := int(math.Round(mins))
	sign := ""
	if total < 0 {
		sign = "-"
		total = -total
	}
	return fmt.Sprintf("%s%02d:%02d", sign, total/60, total%60)
}

func FormatMetricValue(value float64, format ValueFormat, unit string) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "-"
	}

	var formatted string
	switch format {
	case FormatHHMM:
		return ConvertMinsToHHMM(value)
	case FormatDecimal:
		formatted = strconv.FormatFloat(Round1(value), 'f', 1, 64)
	default:
		formatted = strconv.Itoa(int(math.Round(value)))
	}
	if unit == "" {
		return formatted
	}
	return formatted + " " + unit
}

// Round1 rounds to one decimal.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
