package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound         = errors.New("resource not found")
	ErrAnalysisNotFound = fmt.Errorf("%w: analysis", ErrNotFound)

	// Input errors
	ErrInsufficientData           = errors.New("insufficient data for analysis")
	ErrInsufficientTailData       = errors.New("insufficient valid data points in tail region")
	ErrInsufficientDataAboveNoise = errors.New("insufficient data above noise threshold")
	ErrLengthMismatch             = errors.New("time series arrays differ in length")
	ErrInvalidThickness           = errors.New("sample thickness must be positive")
	ErrUnknownAnalysisMode        = errors.New("unknown analysis mode")

	// Analysis errors
	ErrInvalidTailRegion    = errors.New("invalid tail region")
	ErrDegenerateRegression = errors.New("cannot fit a line when all x values are identical")
	ErrDiffusionAnalysis    = errors.New("diffusion analysis failed")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewInsufficientDataError(stage string, have, want int) error {
	return fmt.Errorf("%w: %s has %d points, need %d", ErrInsufficientData, stage, have, want)
}

func NewUnknownModeError(mode string) error {
	return fmt.Errorf("%w: %q", ErrUnknownAnalysisMode, mode)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInputError reports whether err was caused by the caller's data or request
// rather than by the analysis itself.
func IsInputError(err error) bool {
	return errors.Is(err, ErrLengthMismatch) ||
		errors.Is(err, ErrInvalidThickness) ||
		errors.Is(err, ErrUnknownAnalysisMode)
}

// IsDataQualityError reports whether err means the series cannot support a fit.
func IsDataQualityError(err error) bool {
	return errors.Is(err, ErrInsufficientData) ||
		errors.Is(err, ErrInsufficientTailData) ||
		errors.Is(err, ErrInsufficientDataAboveNoise) ||
		errors.Is(err, ErrInvalidTailRegion) ||
		errors.Is(err, ErrDegenerateRegression)
}
