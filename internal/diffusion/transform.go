package diffusion

import (
	"fmt"
	"math"

	"tdadiffusion/domain/core"
	"tdadiffusion/domain/diffusion"
)

const (
	minTransformPoints = 3
	secondsPerMinute   = 60.0
)

// Transform builds the (x, y) coordinates for mode from the samples at or
// after tailStart. The returned slices are fresh allocations.
func Transform(mode diffusion.Mode, series diffusion.TimeSeries, tailStart float64) ([]float64, []float64, error) {
	switch mode {
	case diffusion.RateVsInverseSqrtTime:
		return InverseSqrtTime(series.TimeMinutes, series.Rate, tailStart)
	case diffusion.CumulativeVsSqrtTime:
		return SqrtTime(series.TimeMinutes, series.Cumulative, tailStart)
	case diffusion.LogRateVsLogTime:
		return LogLog(series.TimeMinutes, series.Rate, tailStart)
	}
	return nil, nil, core.NewUnknownModeError(string(mode))
}

// InverseSqrtTime maps the tail to x = 1/√(t·60), y = rate. Time is converted
// to seconds before the root. Samples with non-positive or non-finite rate,
// or t <= 0, are dropped.
func InverseSqrtTime(timeMinutes, rate []float64, tailStart float64) ([]float64, []float64, error) {
	x, y := tailPoints(timeMinutes, rate, tailStart, func(t, v float64) bool {
		return v > 0 && isFinite(v) && t > 0
	})
	if len(x) < minTransformPoints {
		return nil, nil, insufficientTail(diffusion.RateVsInverseSqrtTime, len(x))
	}
	for i, t := range x {
		x[i] = 1.0 / math.Sqrt(t*secondsPerMinute)
	}
	return x, y, nil
}

// SqrtTime maps the tail to x = √(t·60), y = cumulative. Samples with a
// non-finite cumulative value or t <= 0 are dropped.
func SqrtTime(timeMinutes, cumulative []float64, tailStart float64) ([]float64, []float64, error) {
	x, y := tailPoints(timeMinutes, cumulative, tailStart, func(t, v float64) bool {
		return isFinite(v) && isFinite(t) && t > 0
	})
	if len(x) < minTransformPoints {
		return nil, nil, insufficientTail(diffusion.CumulativeVsSqrtTime, len(x))
	}
	for i, t := range x {
		x[i] = math.Sqrt(t * secondsPerMinute)
	}
	return x, y, nil
}

// LogLog maps the tail to x = log10(t), y = log10(rate) with t in minutes;
// only the slope is of interest so no unit conversion is applied. Negative or
// zero rates are dropped silently.
func LogLog(timeMinutes, rate []float64, tailStart float64) ([]float64, []float64, error) {
	x, y := tailPoints(timeMinutes, rate, tailStart, func(t, v float64) bool {
		return v > 0 && isFinite(v) && t > 0 && isFinite(t)
	})
	if len(x) < minTransformPoints {
		return nil, nil, insufficientTail(diffusion.LogRateVsLogTime, len(x))
	}
	for i := range x {
		x[i] = math.Log10(x[i])
		y[i] = math.Log10(y[i])
	}
	return x, y, nil
}

// tailPoints copies the (t, v) pairs with t >= tailStart that satisfy keep.
func tailPoints(timeMinutes, values []float64, tailStart float64, keep func(t, v float64) bool) ([]float64, []float64) {
	n := len(timeMinutes)
	if len(values) < n {
		n = len(values)
	}
	xs := make([]float64, 0, n)
	ys := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		t, v := timeMinutes[i], values[i]
		if t >= tailStart && keep(t, v) {
			xs = append(xs, t)
			ys = append(ys, v)
		}
	}
	return xs, ys
}

func insufficientTail(mode diffusion.Mode, have int) error {
	return fmt.Errorf("%w: %s transform kept %d points, need %d",
		core.ErrInsufficientTailData, mode.Name(), have, minTransformPoints)
}
