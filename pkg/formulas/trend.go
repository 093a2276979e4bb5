package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// TrendSMA calculates the Simple Moving Average of the last `length` samples.
// Returns nil when there are not enough samples for a full window.
func TrendSMA(values []float64, length int) *float64 {
	if length <= 0 || len(values) < length {
		return nil
	}

	sma := talib.Sma(values, length)
	if len(sma) > 0 && !math.IsNaN(sma[len(sma)-1]) {
		result := sma[len(sma)-1]
		return &result
	}
	return nil
}

// TrendEMA calculates the Exponential Moving Average over a sampled series.
//
// With fewer samples than the requested period the plain mean is returned
// instead, so a freshly started engine still reports a usable trend.
func TrendEMA(values []float64, length int) *float64 {
	if len(values) == 0 || length <= 0 {
		return nil
	}

	if len(values) < length {
		mean := Mean(values)
		return &mean
	}

	ema := talib.Ema(values, length)
	if len(ema) > 0 && !math.IsNaN(ema[len(ema)-1]) {
		result := ema[len(ema)-1]
		return &result
	}

	mean := Mean(values[len(values)-length:])
	return &mean
}
