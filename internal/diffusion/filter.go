package diffusion

import (
	"math"

	"tdadiffusion/domain/core"
	"tdadiffusion/domain/diffusion"

	"github.com/montanaflynn/stats"
)

const (
	rollingWindow        = 5
	repeatedMinCount     = 3
	repeatedRoundPlaces  = 8
	repeatedMatchEpsilon = 1e-8
)

// FilterOptions controls FilterNoise.
type FilterOptions struct {
	// KeepOrigin retains a (0, 0) sample.
	KeepOrigin bool
	// ThresholdPercent drops rates below this percentage of the trailing
	// 5-sample rolling mean. Zero disables the check.
	ThresholdPercent float64
	// DetectionLimit is the smallest credible rate. It is lowered to 1% of the
	// positive median when it exceeds 10% of that median.
	DetectionLimit float64
}

// DefaultFilterOptions mirrors the settings used for processed TDS exports.
func DefaultFilterOptions() FilterOptions {
	return FilterOptions{KeepOrigin: true, ThresholdPercent: 2.0, DetectionLimit: 0.1}
}

// FilterReport summarises what FilterNoise removed.
type FilterReport struct {
	Original          int     `json:"original"`
	Kept              int     `json:"kept"`
	DetectionLimit    float64 `json:"detection_limit"`
	AutoAdjusted      bool    `json:"auto_adjusted"`
	RemovedZeros      int     `json:"removed_zeros"`
	RemovedBelowLimit int     `json:"removed_below_limit"`
	RemovedRepeated   int     `json:"removed_repeated"`
	RemovedRolling    int     `json:"removed_rolling"`
}

// FilterNoise removes zero readings, sub-detection-limit values, repeated
// detector-floor artefacts and dips below the rolling mean from the rate
// column. Rows are removed from all three columns together. The input is
// not modified.
func FilterNoise(series diffusion.TimeSeries, opts FilterOptions) (diffusion.TimeSeries, FilterReport, error) {
	if err := series.Validate(); err != nil {
		return diffusion.TimeSeries{}, FilterReport{}, err
	}
	n := series.Len()
	report := FilterReport{Original: n, DetectionLimit: opts.DetectionLimit}
	if n == 0 {
		return series.Clone(), report, nil
	}

	t, v := series.TimeMinutes, series.Rate
	isOrigin := func(i int) bool { return opts.KeepOrigin && t[i] == 0 && v[i] == 0 }

	positive := make([]float64, 0, n)
	for _, r := range v {
		if r > 0 {
			positive = append(positive, r)
		}
	}
	if len(positive) == 0 {
		return diffusion.TimeSeries{}, report, core.NewInsufficientDataError("noise filter positive rates", 0, 1)
	}
	median, err := stats.Median(positive)
	if err != nil {
		return diffusion.TimeSeries{}, report, err
	}

	limit := opts.DetectionLimit
	if limit > median*0.1 {
		limit = median * 0.01
		report.AutoAdjusted = true
	}
	report.DetectionLimit = limit

	noise := repeatedNoiseLevels(v, median)
	rolling := trailingMean(v, rollingWindow)

	keep := make([]bool, n)
	for i := range v {
		switch {
		case isOrigin(i):
			// exempt from the detection limit below, which would otherwise drop it
			keep[i] = true
		case v[i] == 0:
			report.RemovedZeros++
		case !(v[i] >= limit):
			report.RemovedBelowLimit++
		case matchesAny(v[i], noise):
			report.RemovedRepeated++
		case opts.ThresholdPercent > 0 && t[i] != 0 && v[i] < rolling[i]*opts.ThresholdPercent/100:
			report.RemovedRolling++
		default:
			keep[i] = true
		}
	}

	out := diffusion.TimeSeries{
		TimeMinutes: make([]float64, 0, n),
		Rate:        make([]float64, 0, n),
		Cumulative:  make([]float64, 0, n),
	}
	for i, ok := range keep {
		if ok {
			out.TimeMinutes = append(out.TimeMinutes, t[i])
			out.Rate = append(out.Rate, v[i])
			out.Cumulative = append(out.Cumulative, series.Cumulative[i])
		}
	}
	report.Kept = out.Len()
	return out, report, nil
}

// repeatedNoiseLevels finds small values that recur at least three times,
// which on TDS exports is the signature of a detector floor rather than signal.
func repeatedNoiseLevels(values []float64, median float64) []float64 {
	if len(values) <= 10 {
		return nil
	}
	counts := make(map[float64]int)
	small := 0
	for _, v := range values {
		if v < median*0.1 {
			small++
			r, err := stats.Round(v, repeatedRoundPlaces)
			if err == nil {
				counts[r]++
			}
		}
	}
	if small <= repeatedMinCount {
		return nil
	}
	var levels []float64
	for level, c := range counts {
		if c >= repeatedMinCount && level < median*0.05 {
			levels = append(levels, level)
		}
	}
	return levels
}

func matchesAny(v float64, levels []float64) bool {
	for _, l := range levels {
		if math.Abs(v-l) < repeatedMatchEpsilon {
			return true
		}
	}
	return false
}

// trailingMean is a rolling mean over up to window preceding samples,
// including the current one. Non-finite samples are skipped; a window with
// no finite samples yields NaN.
func trailingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	var sum float64
	var count int
	for i, v := range values {
		if isFinite(v) {
			sum += v
			count++
		}
		if i >= window {
			if old := values[i-window]; isFinite(old) {
				sum -= old
				count--
			}
		}
		if count == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(count)
	}
	return out
}
