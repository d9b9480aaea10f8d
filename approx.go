package forkfixture

import "math/big"

// ApproxEqual reports whether actual is within rel of expected:
// |actual - expected| <= rel * |expected|. Two zeros are equal.
func ApproxEqual(actual, expected *big.Int, rel float64) bool {
	diff := new(big.Float).SetInt(new(big.Int).Sub(actual, expected))
	diff.Abs(diff)
	tolerance := new(big.Float).SetInt(new(big.Int).Abs(expected))
	tolerance.Mul(tolerance, big.NewFloat(rel))
	return diff.Cmp(tolerance) <= 0
}

// ApproxEqualFloat is ApproxEqual for float amounts such as prices
func ApproxEqualFloat(actual, expected, rel float64) bool {
	diff := actual - expected
	if diff < 0 {
		diff = -diff
	}
	if expected < 0 {
		expected = -expected
	}
	return diff <= rel*expected
}
