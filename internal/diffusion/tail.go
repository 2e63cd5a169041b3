package diffusion

import (
	"fmt"
	"math"

	"tdadiffusion/domain/core"
	"tdadiffusion/domain/diffusion"
)

const (
	// DefaultMinTime is the earliest time (minutes) considered part of the tail.
	DefaultMinTime = 60.0
	// DefaultPeakFraction is the fraction of the peak rate below which the tail begins.
	DefaultPeakFraction = 0.1

	minTailInputPoints  = 10
	minTailValidPoints  = 5
	minTailRegionPoints = 10
	minTailSpanMinutes  = 60.0
	warnFewTailPoints   = "Insufficient data points for reliable analysis (minimum 10 recommended)"
	warnShortTailSpan   = "Short tail duration may affect analysis quality"
)

// TailOptions tunes tail-start detection.
type TailOptions struct {
	MinTime      float64
	PeakFraction float64
}

// DefaultTailOptions returns the documented detection defaults.
func DefaultTailOptions() TailOptions {
	return TailOptions{MinTime: DefaultMinTime, PeakFraction: DefaultPeakFraction}
}

// FindTailStart locates the time at which diffusion-controlled behaviour is
// assumed to begin: the earliest sample after opts.MinTime whose rate has
// fallen below opts.PeakFraction of the peak rate.
//
// This is a single-pass threshold crossing, not changepoint detection, and
// can misfire on noisy or multi-peak curves. When no sample crosses the
// threshold the result falls back to max(MinTime, t[n/3]) over the valid
// samples and FellBack is set; that value is a degraded-mode default and
// callers should prefer a manual tail start in that case.
func FindTailStart(timeMinutes, rate []float64, opts TailOptions) (diffusion.TailDetection, error) {
	if len(timeMinutes) != len(rate) {
		return diffusion.TailDetection{}, fmt.Errorf("%w: time=%d rate=%d",
			core.ErrInsufficientData, len(timeMinutes), len(rate))
	}
	if len(timeMinutes) < minTailInputPoints {
		return diffusion.TailDetection{}, core.NewInsufficientDataError("tail detection input", len(timeMinutes), minTailInputPoints)
	}

	validTime := make([]float64, 0, len(timeMinutes))
	validRate := make([]float64, 0, len(rate))
	for i := range timeMinutes {
		t, r := timeMinutes[i], rate[i]
		if r > 0 && isFinite(r) && isFinite(t) {
			validTime = append(validTime, t)
			validRate = append(validRate, r)
		}
	}
	if len(validTime) < minTailValidPoints {
		return diffusion.TailDetection{}, core.NewInsufficientDataError("tail detection valid samples", len(validTime), minTailValidPoints)
	}

	maxRate := validRate[0]
	for _, r := range validRate[1:] {
		if r > maxRate {
			maxRate = r
		}
	}
	threshold := maxRate * opts.PeakFraction

	for i, t := range validTime {
		if validRate[i] < threshold && t > opts.MinTime {
			return diffusion.TailDetection{Start: t, Auto: true, Threshold: threshold}, nil
		}
	}

	return diffusion.TailDetection{
		Start:     math.Max(opts.MinTime, validTime[len(validTime)/3]),
		Auto:      true,
		FellBack:  true,
		Threshold: threshold,
	}, nil
}

// ValidateTailRegion reports whether the region at or after tailStart holds
// enough positive, finite samples for a fit. Warnings are advisory; callers
// must check IsValid.
func ValidateTailRegion(timeMinutes, rate []float64, tailStart float64) diffusion.ValidationReport {
	n := len(timeMinutes)
	if len(rate) < n {
		n = len(rate)
	}

	tailTime := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		t, r := timeMinutes[i], rate[i]
		if t >= tailStart && r > 0 && isFinite(r) && isFinite(t) {
			tailTime = append(tailTime, t)
		}
	}

	report := diffusion.ValidationReport{
		NumPoints: len(tailTime),
		IsValid:   len(tailTime) >= minTailRegionPoints,
		Warnings:  []string{},
	}

	var span float64
	if len(tailTime) > 0 {
		report.MinTime = tailTime[0]
		report.MaxTime = tailTime[len(tailTime)-1]
	}
	if len(tailTime) > 1 {
		span = report.MaxTime - report.MinTime
	}
	report.DurationHours = span / 60

	if len(tailTime) < minTailRegionPoints {
		report.Warnings = append(report.Warnings, warnFewTailPoints)
	}
	if span < minTailSpanMinutes {
		report.Warnings = append(report.Warnings, warnShortTailSpan)
	}

	return report
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
