// Package diffusion holds the value types exchanged with the diffusion-regime
// analysis engine: input series, analysis requests and immutable results.
package diffusion

import (
	"fmt"
	"math"
	"strings"

	"tdadiffusion/domain/core"
)

// Mode selects the diagnostic coordinate system used for the linear fit.
type Mode string

const (
	// RateVsInverseSqrtTime plots desorption rate against 1/√t (t in seconds).
	RateVsInverseSqrtTime Mode = "1_sqrt_t"
	// CumulativeVsSqrtTime plots cumulative hydrogen against √t (t in seconds).
	CumulativeVsSqrtTime Mode = "sqrt_t"
	// LogRateVsLogTime plots log10(rate) against log10(t) (t in minutes).
	LogRateVsLogTime Mode = "log_log"
)

// Modes returns every supported mode in a stable order.
func Modes() []Mode {
	return []Mode{RateVsInverseSqrtTime, CumulativeVsSqrtTime, LogRateVsLogTime}
}

// Name returns the long descriptive name of the mode.
func (m Mode) Name() string {
	switch m {
	case RateVsInverseSqrtTime:
		return "RateVsInverseSqrtTime"
	case CumulativeVsSqrtTime:
		return "CumulativeVsSqrtTime"
	case LogRateVsLogTime:
		return "LogRateVsLogTime"
	}
	return string(m)
}

// AxisLabels returns the x and y labels a plotting consumer should use.
func (m Mode) AxisLabels() (string, string) {
	switch m {
	case RateVsInverseSqrtTime:
		return "1/√t (s^-1/2)", "Desorption rate"
	case CumulativeVsSqrtTime:
		return "√t (s^1/2)", "Cumulative hydrogen"
	case LogRateVsLogTime:
		return "log10 t (min)", "log10 desorption rate"
	}
	return "x", "y"
}

// Valid reports whether m is one of the supported modes.
func (m Mode) Valid() bool {
	switch m {
	case RateVsInverseSqrtTime, CumulativeVsSqrtTime, LogRateVsLogTime:
		return true
	}
	return false
}

// ParseMode accepts either the short alias ("1_sqrt_t") or the long name
// ("RateVsInverseSqrtTime"), case-insensitively.
func ParseMode(s string) (Mode, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, m := range Modes() {
		if key == string(m) || key == strings.ToLower(m.Name()) {
			return m, nil
		}
	}
	return "", core.NewUnknownModeError(s)
}

// Grade is the qualitative classification of a linear fit.
type Grade string

const (
	GradeExcellent Grade = "Excellent"
	GradeGood      Grade = "Good"
	GradeFair      Grade = "Fair"
	GradePoor      Grade = "Poor"
)

// Rank orders grades from Poor (0) to Excellent (3).
func (g Grade) Rank() int {
	switch g {
	case GradeExcellent:
		return 3
	case GradeGood:
		return 2
	case GradeFair:
		return 1
	}
	return 0
}

// TimeSeries is the caller-supplied desorption record: three parallel
// sequences of elapsed time (minutes), instantaneous rate and running total.
type TimeSeries struct {
	TimeMinutes []float64 `json:"time_minutes"`
	Rate        []float64 `json:"rate"`
	Cumulative  []float64 `json:"cumulative"`
}

// Len returns the number of samples in the time column.
func (s TimeSeries) Len() int {
	return len(s.TimeMinutes)
}

// Validate checks that all three columns have the same length.
func (s TimeSeries) Validate() error {
	n := len(s.TimeMinutes)
	if len(s.Rate) != n || len(s.Cumulative) != n {
		return fmt.Errorf("%w: time=%d rate=%d cumulative=%d",
			core.ErrLengthMismatch, n, len(s.Rate), len(s.Cumulative))
	}
	return nil
}

// Clone returns a deep copy so the caller's slices are never retained.
func (s TimeSeries) Clone() TimeSeries {
	return TimeSeries{
		TimeMinutes: cloneFloats(s.TimeMinutes),
		Rate:        cloneFloats(s.Rate),
		Cumulative:  cloneFloats(s.Cumulative),
	}
}

// Hash fingerprints the series contents.
func (s TimeSeries) Hash(b *core.HashBuilder) *core.HashBuilder {
	return b.Floats(s.TimeMinutes).Floats(s.Rate).Floats(s.Cumulative)
}

const (
	DefaultThicknessCM  = 0.1
	DefaultTemperatureC = 25.0
	DefaultMaterial     = "steel"
)

// Request describes one analysis of a TimeSeries.
type Request struct {
	Mode Mode `json:"mode" validate:"required,oneof=1_sqrt_t sqrt_t log_log"`
	// TailStart is the manual tail start in minutes; nil triggers auto-detection.
	TailStart    *float64 `json:"tail_start,omitempty"`
	ThicknessCM  float64  `json:"thickness_cm" validate:"gt=0"`
	ComputeD     bool     `json:"compute_d"`
	TemperatureC float64  `json:"temperature_c" validate:"gt=-273.15"`
	Material     string   `json:"material"`
}

// DefaultRequest returns a request for mode with the documented defaults.
func DefaultRequest(mode Mode) Request {
	return Request{
		Mode:         mode,
		ThicknessCM:  DefaultThicknessCM,
		ComputeD:     true,
		TemperatureC: DefaultTemperatureC,
		Material:     DefaultMaterial,
	}
}

// WithTailStart returns a copy of r with a manual tail start.
func (r Request) WithTailStart(minutes float64) Request {
	r.TailStart = &minutes
	return r
}

// Validate checks the request fields the engine relies on.
func (r Request) Validate() error {
	if !r.Mode.Valid() {
		return core.NewUnknownModeError(string(r.Mode))
	}
	if !(r.ThicknessCM > 0) || math.IsInf(r.ThicknessCM, 0) {
		return fmt.Errorf("%w: got %g", core.ErrInvalidThickness, r.ThicknessCM)
	}
	return nil
}

// Hash fingerprints the request parameters.
func (r Request) Hash(b *core.HashBuilder) *core.HashBuilder {
	b.String(string(r.Mode))
	if r.TailStart != nil {
		b.String("manual").Float(*r.TailStart)
	} else {
		b.String("auto")
	}
	b.Float(r.ThicknessCM).Float(r.TemperatureC).String(strings.ToLower(r.Material))
	if r.ComputeD {
		b.String("d")
	}
	return b
}

// TailDetection records how the tail start was chosen.
type TailDetection struct {
	Start float64 `json:"start"`
	// Auto is false when the caller supplied the tail start.
	Auto bool `json:"auto"`
	// FellBack is true when auto-detection found no threshold crossing and
	// used the one-third-of-record heuristic. Manual override is advised.
	FellBack  bool    `json:"fell_back"`
	Threshold float64 `json:"threshold,omitempty"`
}

// ValidationReport summarises the tail region chosen for a fit.
type ValidationReport struct {
	IsValid       bool     `json:"is_valid"`
	NumPoints     int      `json:"num_points"`
	DurationHours float64  `json:"duration_hours"`
	MinTime       float64  `json:"min_time"`
	MaxTime       float64  `json:"max_time"`
	Warnings      []string `json:"warnings"`
}

// RegressionResult is the output of a filtered least-squares fit.
type RegressionResult struct {
	Slope     float64   `json:"slope"`
	Intercept float64   `json:"intercept"`
	RValue    float64   `json:"r_value"`
	RSquared  float64   `json:"r_squared"`
	PValue    float64   `json:"p_value"`
	StdError  float64   `json:"std_error"`
	NumPoints int       `json:"num_points"`
	X         []float64 `json:"x"`
	Y         []float64 `json:"y"`
	FitX      []float64 `json:"fit_x"`
	FitY      []float64 `json:"fit_y"`
}

// LiteratureReference is a tabulated diffusion coefficient corrected to a
// requested temperature.
type LiteratureReference struct {
	Material         string  `json:"material"`
	DLiterature      float64 `json:"d_literature"`
	ActivationEnergy float64 `json:"activation_energy_kj_mol"`
	BaseD25C         float64 `json:"base_d_25c"`
	TemperatureC     float64 `json:"temperature_c"`
	// FellBack is true when the requested material was unknown and steel was used.
	FellBack bool `json:"fell_back"`
}

// LiteratureComparison places a measured coefficient against a literature range.
type LiteratureComparison struct {
	Material   string  `json:"material"`
	Known      bool    `json:"known"`
	RangeMin   float64 `json:"range_min,omitempty"`
	RangeMax   float64 `json:"range_max,omitempty"`
	Typical    float64 `json:"typical,omitempty"`
	Calculated float64 `json:"calculated"`
	Ratio      float64 `json:"ratio,omitempty"`
	Agreement  string  `json:"agreement"`
	Source     string  `json:"source"`
}

func cloneFloats(in []float64) []float64 {
	if in == nil {
		return nil
	}
	out := make([]float64, len(in))
	copy(out, in)
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
