// Package diffusion implements the diffusion-regime analysis of thermal
// desorption tails: tail detection, coordinate transforms, filtered linear
// regression with fit grading, and diffusion-coefficient estimation.
//
// Every function is a pure function of its arguments. An Engine holds only
// immutable options, so one Engine may serve concurrent callers.
package diffusion

import (
	"fmt"
	"strings"

	"tdadiffusion/domain/core"
	"tdadiffusion/domain/diffusion"
	"tdadiffusion/internal"
)

// Analysis steps, reported in AnalysisError.Step.
const (
	StepRequest   = "request"
	StepTail      = "tail_detection"
	StepValidate  = "tail_validation"
	StepTransform = "transform"
	StepFit       = "regression"
	StepEstimate  = "diffusion_coefficient"
)

// AnalysisError is returned by Engine.Analyze for every failure. It matches
// core.ErrDiffusionAnalysis with errors.Is and also unwraps to the specific
// cause, so callers can test for either.
type AnalysisError struct {
	Step     string
	Warnings []string
	Cause    error
}

func (e *AnalysisError) Error() string {
	msg := fmt.Sprintf("%s at %s: %v", core.ErrDiffusionAnalysis, e.Step, e.Cause)
	if len(e.Warnings) > 0 {
		msg += " [" + strings.Join(e.Warnings, "; ") + "]"
	}
	return msg
}

func (e *AnalysisError) Unwrap() []error {
	return []error{core.ErrDiffusionAnalysis, e.Cause}
}

// Options are the tunable heuristics of the engine.
type Options struct {
	Tail           TailOptions
	NoiseThreshold float64
	// ConcentrationRatio is ΔC in the D estimate; 1 means normalised.
	ConcentrationRatio float64
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		Tail:               DefaultTailOptions(),
		NoiseThreshold:     DefaultNoiseThreshold,
		ConcentrationRatio: 1.0,
	}
}

// Engine runs complete analyses.
type Engine struct {
	opts   Options
	logger *internal.Logger
}

// NewEngine creates an engine. A nil logger disables logging.
func NewEngine(opts Options, logger *internal.Logger) *Engine {
	if opts.ConcentrationRatio == 0 {
		opts.ConcentrationRatio = 1.0
	}
	return &Engine{opts: opts, logger: logger.With("diffusion")}
}

// Options returns the engine's options.
func (e *Engine) Options() Options {
	return e.opts
}

// Analyze runs tail detection, validation, transform, regression, grading
// and, for RateVsInverseSqrtTime with ComputeD set, the diffusion
// coefficient estimate. The caller's slices are copied before use.
func (e *Engine) Analyze(series diffusion.TimeSeries, req diffusion.Request) (result diffusion.Result, err error) {
	step := StepRequest
	defer func() {
		if r := recover(); r != nil {
			err = &AnalysisError{Step: step, Cause: fmt.Errorf("unexpected failure: %v", r)}
		}
	}()

	if err := series.Validate(); err != nil {
		return diffusion.Result{}, &AnalysisError{Step: step, Cause: err}
	}
	if err := req.Validate(); err != nil {
		return diffusion.Result{}, &AnalysisError{Step: step, Cause: err}
	}
	series = series.Clone()

	step = StepTail
	detection, err := e.tailStart(series, req)
	if err != nil {
		return diffusion.Result{}, &AnalysisError{Step: step, Cause: err}
	}
	if detection.FellBack {
		e.logger.Warn("no threshold crossing after %.1f min; using fallback tail start %.2f min, manual override recommended",
			e.opts.Tail.MinTime, detection.Start)
	}

	step = StepValidate
	report := ValidateTailRegion(series.TimeMinutes, series.Rate, detection.Start)
	if !report.IsValid {
		return diffusion.Result{}, &AnalysisError{
			Step:     step,
			Warnings: report.Warnings,
			Cause: fmt.Errorf("%w: %d points at or after %.2f min",
				core.ErrInvalidTailRegion, report.NumPoints, detection.Start),
		}
	}
	for _, w := range report.Warnings {
		e.logger.Debug("tail region warning: %s", w)
	}

	step = StepTransform
	x, y, err := Transform(req.Mode, series, detection.Start)
	if err != nil {
		return diffusion.Result{}, &AnalysisError{Step: step, Warnings: report.Warnings, Cause: err}
	}

	step = StepFit
	fit, err := Fit(x, y, e.opts.NoiseThreshold)
	if err != nil {
		return diffusion.Result{}, &AnalysisError{Step: step, Warnings: report.Warnings, Cause: err}
	}
	grade := AssessFitQuality(fit.RSquared, fit.PValue, fit.NumPoints)

	fields := diffusion.ResultFields{
		TailStartTime: detection.Start,
		TailDetection: detection,
		Mode:          req.Mode,
		Slope:         fit.Slope,
		Intercept:     fit.Intercept,
		RSquared:      fit.RSquared,
		PValue:        fit.PValue,
		StdError:      fit.StdError,
		NumPoints:     fit.NumPoints,
		XData:         fit.X,
		YData:         fit.Y,
		FitX:          fit.FitX,
		FitY:          fit.FitY,
		Grade:         grade,
		ThicknessCM:   req.ThicknessCM,
		TemperatureC:  req.TemperatureC,
		Warnings:      report.Warnings,
	}

	step = StepEstimate
	if req.ComputeD && req.Mode == diffusion.RateVsInverseSqrtTime {
		d := EstimateDiffusionCoefficient(fit.Slope, req.ThicknessCM, e.opts.ConcentrationRatio)
		d25 := TemperatureCorrect(d, req.TemperatureC, ReferenceTemperatureC, ActivationEnergy(req.Material))
		lit := CompareWithLiterature(d25, req.Material)
		fields.DiffusionCoefficient = d
		fields.DiffusionCoefficient25C = d25
		fields.Literature = &lit
	}

	e.logger.Info("%s fit: slope=%.6g R²=%.4f n=%d grade=%s D=%.3g",
		req.Mode.Name(), fit.Slope, fit.RSquared, fit.NumPoints, grade, fields.DiffusionCoefficient)

	return diffusion.NewResult(fields), nil
}

func (e *Engine) tailStart(series diffusion.TimeSeries, req diffusion.Request) (diffusion.TailDetection, error) {
	if req.TailStart != nil {
		return diffusion.TailDetection{Start: *req.TailStart}, nil
	}
	return FindTailStart(series.TimeMinutes, series.Rate, e.opts.Tail)
}
