// Package calibration summarises repeated calibration runs of the TDS
// detector. A calibration is a set of integrated peak areas (µV·s) measured
// against the same reference gas; its spread decides whether the
// concentration conversion built on it can be trusted.
package calibration

import (
	"fmt"
	"math"

	"tdadiffusion/domain/core"

	"github.com/montanaflynn/stats"
)

const (
	// OutlierZScore is the |z| above which a run is reported as an outlier.
	OutlierZScore = 3.0

	cvErrorPercent   = 10.0
	cvWarnPercent    = 5.0
	cvNoticePercent  = 2.0
	minRunsError     = 3
	minRunsWarn      = 5
	minRunsFull      = 8
	outlierWarnShare = 20.0
	lowPeakArea      = 1000.0
	highPeakArea     = 100000.0
)

// Severity of a quality flag.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Flag is one quality finding.
type Flag struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
}

// Stats are the summary statistics of one calibration.
type Stats struct {
	NumRuns        int       `json:"num_runs"`
	Mean           float64   `json:"mean"`
	StdDev         float64   `json:"std_dev"`
	CVPercent      float64   `json:"cv_percent"`
	Median         float64   `json:"median"`
	Min            float64   `json:"min"`
	Max            float64   `json:"max"`
	OutlierIndices []int     `json:"outlier_indices"`
	Outliers       []float64 `json:"outliers"`
}

// Compute summarises peak areas. The standard deviation is the sample
// (n-1) estimate; outliers use the population deviation for z-scores.
func Compute(peakAreas []float64) (Stats, error) {
	if len(peakAreas) == 0 {
		return Stats{}, core.NewInsufficientDataError("calibration", 0, 1)
	}
	data := stats.Float64Data(peakAreas)

	mean, err := stats.Mean(data)
	if err != nil {
		return Stats{}, err
	}
	median, err := stats.Median(data)
	if err != nil {
		return Stats{}, err
	}
	min, err := stats.Min(data)
	if err != nil {
		return Stats{}, err
	}
	max, err := stats.Max(data)
	if err != nil {
		return Stats{}, err
	}

	// A single run has no sample deviation.
	var std float64
	if len(data) > 1 {
		if std, err = stats.StandardDeviationSample(data); err != nil {
			return Stats{}, err
		}
	}

	cv := 100.0
	if mean > 0 {
		cv = std / mean * 100
	}

	s := Stats{
		NumRuns:   len(data),
		Mean:      mean,
		StdDev:    std,
		CVPercent: cv,
		Median:    median,
		Min:       min,
		Max:       max,
	}

	popStd, err := stats.StandardDeviationPopulation(data)
	if err != nil {
		return Stats{}, err
	}
	s.OutlierIndices = []int{}
	s.Outliers = []float64{}
	if popStd > 0 {
		for i, v := range data {
			if math.Abs(v-mean)/popStd > OutlierZScore {
				s.OutlierIndices = append(s.OutlierIndices, i)
				s.Outliers = append(s.Outliers, v)
			}
		}
	}
	return s, nil
}

// QualityScore rates a calibration from 0 to 100 on its CV% and run count.
func (s Stats) QualityScore() float64 {
	score := 100.0
	switch {
	case s.CVPercent > cvErrorPercent:
		score -= 50
	case s.CVPercent > cvWarnPercent:
		score -= 20
	case s.CVPercent > cvNoticePercent:
		score -= 10
	}
	switch {
	case s.NumRuns < minRunsWarn:
		score -= 30
	case s.NumRuns < minRunsFull:
		score -= 15
	}
	return math.Max(0, score)
}

// Flags lists quality findings in a fixed order: CV, run count, outliers,
// peak-area range.
func (s Stats) Flags() []Flag {
	var flags []Flag
	add := func(sev Severity, code, format string, args ...interface{}) {
		flags = append(flags, Flag{Severity: sev, Code: code, Message: fmt.Sprintf(format, args...)})
	}

	switch {
	case s.CVPercent > cvErrorPercent:
		add(SeverityError, "high_cv", "CV %.2f%% exceeds %.0f%%, calibration too unstable", s.CVPercent, cvErrorPercent)
	case s.CVPercent > cvWarnPercent:
		add(SeverityWarning, "high_cv", "CV %.2f%% exceeds %.0f%%, check calibration stability", s.CVPercent, cvWarnPercent)
	}

	switch {
	case s.NumRuns < minRunsError:
		add(SeverityError, "low_n", "%d runs, at least %d required", s.NumRuns, minRunsError)
	case s.NumRuns < minRunsWarn:
		add(SeverityWarning, "low_n", "%d runs, %d recommended", s.NumRuns, minRunsWarn)
	}

	if s.NumRuns > 0 {
		share := float64(len(s.OutlierIndices)) / float64(s.NumRuns) * 100
		if share > outlierWarnShare {
			add(SeverityWarning, "outliers", "%.1f%% of runs are outliers", share)
		}
	}

	switch {
	case s.Mean < lowPeakArea:
		add(SeverityWarning, "low_signal", "mean peak area %.1f is very low, check instrument sensitivity", s.Mean)
	case s.Mean > highPeakArea:
		add(SeverityWarning, "high_signal", "mean peak area %.1f is very high, check for detector overload", s.Mean)
	}
	return flags
}

// Valid reports whether no error-level flag is raised.
func (s Stats) Valid() bool {
	for _, f := range s.Flags() {
		if f.Severity == SeverityError {
			return false
		}
	}
	return true
}
