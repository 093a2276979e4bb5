// Package formulas provides the statistical primitives used by the
// analytics engine. All functions treat an empty input as a zero result
// rather than an error, so downstream consumers stay branch-free when a
// portfolio has no positions yet.
package formulas

import (
	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// Variance calculates the population variance of a slice of float64 values
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	// gonum's PopVariance matches the divide-by-N convention used for
	// position-return dispersion.
	return stat.PopVariance(data, nil)
}

// StdDev calculates the population standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.PopStdDev(data, nil)
}

// PercentageReturn calculates the total return of a holding as a percentage
// of the invested amount, with dividends counted as part of the return.
//
// A non-positive invested amount yields 0: a position with no cost basis has
// no meaningful return and must never produce NaN or Infinity.
func PercentageReturn(capitalReturn, dividends, invested float64) float64 {
	if invested <= 0 {
		return 0
	}
	return (capitalReturn + dividends) / invested * 100
}
