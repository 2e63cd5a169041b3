package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"tdadiffusion/domain/diffusion"
	"tdadiffusion/internal"
	"tdadiffusion/internal/errors"
	"tdadiffusion/ports"

	"github.com/xuri/excelize/v2"
)

// DataReader reads desorption records from Excel and CSV files
type DataReader struct {
	cfg    Config
	logger *internal.Logger
}

var _ ports.SeriesReader = (*DataReader)(nil)

// NewDataReader creates a reader that handles both Excel and CSV files
func NewDataReader(cfg Config, logger *internal.Logger) *DataReader {
	return &DataReader{cfg: cfg.withDefaults(), logger: logger.With("excel")}
}

// ReadSeries reads the time, rate and cumulative columns of path. The file
// type follows the extension; anything other than .csv is read as xlsx.
func (r *DataReader) ReadSeries(ctx context.Context, path string) (diffusion.TimeSeries, error) {
	if err := ctx.Err(); err != nil {
		return diffusion.TimeSeries{}, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return diffusion.TimeSeries{}, errors.InvalidInput(fmt.Sprintf("file not found: %s", path))
	}

	start := time.Now()
	var rows [][]string
	var err error
	if strings.ToLower(filepath.Ext(path)) == ".csv" {
		rows, err = r.readCSVRows(path)
	} else {
		rows, err = r.readExcelRows(path)
	}
	if err != nil {
		return diffusion.TimeSeries{}, err
	}
	r.logger.Debug("read %d rows from %s in %.2fms", len(rows), path, float64(time.Since(start).Microseconds())/1000)

	return r.ParseRows(rows)
}

func (r *DataReader) readExcelRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open Excel file %s", path)
	}
	defer f.Close()

	sheet := r.cfg.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(f.GetActiveSheetIndex())
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read sheet %q", sheet)
	}
	return rows, nil
}

func (r *DataReader) readCSVRows(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open CSV file %s", path)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.Comment = '#'
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, fmt.Errorf("malformed CSV file %s: %w", path, err))
	}
	return rows, nil
}

// ParseRows converts a header row plus data rows into a series. Blank rows
// are skipped. When the cumulative column is absent it is integrated from
// the rate with the trapezoidal rule.
func (r *DataReader) ParseRows(rows [][]string) (diffusion.TimeSeries, error) {
	if len(rows) < 2 {
		return diffusion.TimeSeries{}, errors.InvalidInput("file must have a header row and at least one data row")
	}

	timeCol := findColumn(rows[0], r.cfg.TimeColumns)
	rateCol := findColumn(rows[0], r.cfg.RateColumns)
	cumCol := findColumn(rows[0], r.cfg.CumulativeColumns)
	if timeCol < 0 || rateCol < 0 {
		return diffusion.TimeSeries{}, errors.InvalidInput(fmt.Sprintf(
			"header must name a time column (%s) and a rate column (%s)",
			strings.Join(r.cfg.TimeColumns, ", "), strings.Join(r.cfg.RateColumns, ", ")))
	}

	var s diffusion.TimeSeries
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		line := i + 2

		t, err := parseCell(row, timeCol, line, rows[0])
		if err != nil {
			return diffusion.TimeSeries{}, err
		}
		v, err := parseCell(row, rateCol, line, rows[0])
		if err != nil {
			return diffusion.TimeSeries{}, err
		}
		s.TimeMinutes = append(s.TimeMinutes, t*r.cfg.TimeScale)
		s.Rate = append(s.Rate, v)

		if cumCol >= 0 {
			c, err := parseCell(row, cumCol, line, rows[0])
			if err != nil {
				return diffusion.TimeSeries{}, err
			}
			s.Cumulative = append(s.Cumulative, c)
		}
	}

	if len(s.TimeMinutes) == 0 {
		return diffusion.TimeSeries{}, errors.InvalidInput("file has no data rows")
	}
	if cumCol < 0 {
		s.Cumulative = integrate(s.TimeMinutes, s.Rate)
		r.logger.Debug("no cumulative column; integrated %d rate samples", len(s.Rate))
	}
	return s, nil
}

func findColumn(header []string, names []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, n := range names {
			if h == n {
				return i
			}
		}
	}
	return -1
}

func parseCell(row []string, col, line int, header []string) (float64, error) {
	if col >= len(row) || strings.TrimSpace(row[col]) == "" {
		return 0, errors.InvalidInput(fmt.Sprintf("row %d: missing value for %q", line, header[col]))
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
	if err != nil {
		return 0, errors.InvalidInput(fmt.Sprintf("row %d: %q is not a number in column %q", line, row[col], header[col]))
	}
	return v, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func integrate(t, rate []float64) []float64 {
	out := make([]float64, len(rate))
	for i := 1; i < len(rate); i++ {
		out[i] = out[i-1] + (rate[i]+rate[i-1])/2*(t[i]-t[i-1])
	}
	return out
}
