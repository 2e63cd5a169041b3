package diffusion

import (
	"fmt"
	"math"

	"tdadiffusion/domain/core"
	"tdadiffusion/domain/diffusion"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// DefaultNoiseThreshold drops |y| at or below this value before fitting.
	DefaultNoiseThreshold = 1e-12
	// FitLinePoints is the number of evenly spaced samples on the fit line.
	FitLinePoints = 100

	minRegressionPoints = 3
)

// Fit performs ordinary least-squares regression of y on x after dropping
// points whose |y| is at or below noiseThreshold. The slope p-value is
// two-sided against a Student's t distribution with n-2 degrees of freedom.
func Fit(x, y []float64, noiseThreshold float64) (diffusion.RegressionResult, error) {
	if len(x) != len(y) {
		return diffusion.RegressionResult{}, fmt.Errorf("%w: regression x=%d y=%d",
			core.ErrInsufficientData, len(x), len(y))
	}
	if len(x) < minRegressionPoints {
		return diffusion.RegressionResult{}, core.NewInsufficientDataError("regression input", len(x), minRegressionPoints)
	}

	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for i := range x {
		if math.Abs(y[i]) > noiseThreshold {
			xs = append(xs, x[i])
			ys = append(ys, y[i])
		}
	}
	n := len(xs)
	if n < minRegressionPoints {
		return diffusion.RegressionResult{}, fmt.Errorf("%w: %d of %d points above %g, need %d",
			core.ErrInsufficientDataAboveNoise, n, len(x), noiseThreshold, minRegressionPoints)
	}

	meanX, meanY := stat.Mean(xs, nil), stat.Mean(ys, nil)
	var sxx, syy, sxy float64
	for i := range xs {
		dx, dy := xs[i]-meanX, ys[i]-meanY
		sxx += dx * dx
		syy += dy * dy
		sxy += dx * dy
	}
	if sxx == 0 {
		return diffusion.RegressionResult{}, fmt.Errorf("%w (x=%g, n=%d)", core.ErrDegenerateRegression, xs[0], n)
	}

	intercept, slope := stat.LinearRegression(xs, ys, nil, false)

	var r float64
	if syy > 0 {
		r = stat.Correlation(xs, ys, nil)
		if math.IsNaN(r) {
			r = 0
		}
		r = math.Max(-1, math.Min(1, r))
	}

	df := float64(n - 2)
	pValue, stdErr := slopeSignificance(r, sxx, syy, df)

	fitX := make([]float64, FitLinePoints)
	floats.Span(fitX, floats.Min(xs), floats.Max(xs))
	fitY := make([]float64, FitLinePoints)
	for i, fx := range fitX {
		fitY[i] = slope*fx + intercept
	}

	return diffusion.RegressionResult{
		Slope:     slope,
		Intercept: intercept,
		RValue:    r,
		RSquared:  math.Min(1, r*r),
		PValue:    pValue,
		StdError:  stdErr,
		NumPoints: n,
		X:         xs,
		Y:         ys,
		FitX:      fitX,
		FitY:      fitY,
	}, nil
}

// slopeSignificance returns the two-sided p-value for slope != 0 and the
// standard error of the slope.
func slopeSignificance(r, sxx, syy, df float64) (float64, float64) {
	if df <= 0 {
		return 1, 0
	}
	resid := (1 - r) * (1 + r)
	if resid <= 0 {
		// Perfect correlation: the residual variance vanishes.
		return 0, 0
	}
	stdErr := math.Sqrt(resid * syy / sxx / df)
	t := r * math.Sqrt(df/resid)
	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * tDist.Survival(math.Abs(t))
	return math.Min(1, p), stdErr
}

// AssessFitQuality grades a fit. Thresholds are checked in order and the
// first match wins.
func AssessFitQuality(rSquared, pValue float64, numPoints int) diffusion.Grade {
	switch {
	case rSquared >= 0.95 && pValue < 0.01 && numPoints >= 10:
		return diffusion.GradeExcellent
	case rSquared >= 0.90 && pValue < 0.05 && numPoints >= 8:
		return diffusion.GradeGood
	case rSquared >= 0.80 && pValue < 0.10 && numPoints >= 5:
		return diffusion.GradeFair
	default:
		return diffusion.GradePoor
	}
}
