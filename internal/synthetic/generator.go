// Package synthetic generates reproducible TDS desorption records: an early
// desorption peak followed by a diffusion-controlled 1/√t tail, with
// multiplicative detector noise. The records are fixtures for tests and demos.
package synthetic

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"

	"tdadiffusion/domain/diffusion"

	"github.com/xuri/excelize/v2"
)

// Column headers written by WriteCSV and WriteXLSX.
const (
	HeaderTime       = "time_min"
	HeaderRate       = "rate"
	HeaderCumulative = "cumulative"
)

// Dataset is a generated record with its formatted rows.
type Dataset struct {
	Headers []string
	Rows    [][]string

	Series diffusion.TimeSeries
}

type Config struct {
	Points          int
	IntervalMinutes float64
	Seed            int64

	// Desorption peak (Gaussian in time).
	PeakTimeMinutes  float64
	PeakWidthMinutes float64
	PeakHeight       float64

	// DiffusionSlope is the slope of rate against 1/√(t·60).
	DiffusionSlope float64

	// NoisePercent is the standard deviation of the multiplicative noise.
	NoisePercent float64
	// DetectorFloor replaces smaller rates, mimicking a detector floor.
	// Zero disables it.
	DetectorFloor float64
}

func DefaultConfig() Config {
	return Config{
		Points:           49,
		IntervalMinutes:  15,
		Seed:             42,
		PeakTimeMinutes:  20,
		PeakWidthMinutes: 10,
		PeakHeight:       5e-3,
		DiffusionSlope:   0.05,
		NoisePercent:     2,
	}
}

// Generate builds a dataset. The same Config always yields the same data.
func Generate(cfg Config) (*Dataset, error) {
	if cfg.Points <= 0 {
		return nil, fmt.Errorf("points must be > 0")
	}
	if !(cfg.IntervalMinutes > 0) {
		return nil, fmt.Errorf("interval must be > 0")
	}
	if cfg.NoisePercent < 0 || cfg.DetectorFloor < 0 {
		return nil, fmt.Errorf("noise and detector floor must be >= 0")
	}

	rng := rand.New(rand.NewSource(cfg.Seed))

	n := cfg.Points
	timeMin := make([]float64, n)
	rate := make([]float64, n)
	cumulative := make([]float64, n)

	for i := 0; i < n; i++ {
		t := float64(i) * cfg.IntervalMinutes
		timeMin[i] = t

		r := 0.0
		if cfg.PeakWidthMinutes > 0 {
			z := (t - cfg.PeakTimeMinutes) / cfg.PeakWidthMinutes
			r += cfg.PeakHeight * math.Exp(-z*z/2)
		}
		if t > 0 {
			r += cfg.DiffusionSlope / math.Sqrt(t*60)
		}
		if cfg.NoisePercent > 0 {
			r *= 1 + rng.NormFloat64()*cfg.NoisePercent/100
		}
		if r < 0 {
			r = 0
		}
		if cfg.DetectorFloor > 0 && r < cfg.DetectorFloor {
			r = cfg.DetectorFloor
		}
		rate[i] = r

		// Trapezoidal integral of the rate.
		if i > 0 {
			cumulative[i] = cumulative[i-1] + (rate[i]+rate[i-1])/2*cfg.IntervalMinutes
		}
	}

	headers := []string{HeaderTime, HeaderRate, HeaderCumulative}
	rows := make([][]string, n)
	for i := 0; i < n; i++ {
		rows[i] = []string{fToStr(timeMin[i]), fToStr(rate[i]), fToStr(cumulative[i])}
	}

	return &Dataset{
		Headers: headers,
		Rows:    rows,
		Series: diffusion.TimeSeries{
			TimeMinutes: timeMin,
			Rate:        rate,
			Cumulative:  cumulative,
		},
	}, nil
}

func WriteCSV(path string, ds *Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(ds.Headers); err != nil {
		return err
	}
	if err := w.WriteAll(ds.Rows); err != nil {
		return err
	}
	return w.Error()
}

// WriteXLSX writes numeric cells so spreadsheet tools can plot the record.
func WriteXLSX(path string, ds *Dataset) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Sheet1"
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx == -1 {
		idx, err := f.NewSheet(sheet)
		if err != nil {
			return err
		}
		f.SetActiveSheet(idx)
	}

	for i, h := range ds.Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}

	columns := [][]float64{ds.Series.TimeMinutes, ds.Series.Rate, ds.Series.Cumulative}
	for c, col := range columns {
		for r, v := range col {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	return f.SaveAs(path)
}

func fToStr(x float64) string {
	return strconv.FormatFloat(x, 'g', 12, 64)
}
