package excel

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"tdadiffusion/internal"
	"tdadiffusion/internal/errors"
	"tdadiffusion/internal/synthetic"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReader() *DataReader {
	return NewDataReader(DefaultConfig(), internal.Discard())
}

func TestReadSeries_XLSXRoundTrip(t *testing.T) {
	ds, err := synthetic.Generate(synthetic.DefaultConfig())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "run.xlsx")
	require.NoError(t, synthetic.WriteXLSX(path, ds))

	s, err := newReader().ReadSeries(context.Background(), path)
	require.NoError(t, err)

	require.Equal(t, ds.Series.Len(), s.Len())
	for i := range s.TimeMinutes {
		assert.Equal(t, ds.Series.TimeMinutes[i], s.TimeMinutes[i])
		assert.InDelta(t, ds.Series.Rate[i], s.Rate[i], 1e-12)
		assert.InDelta(t, ds.Series.Cumulative[i], s.Cumulative[i], 1e-9)
	}
}

func TestReadSeries_CSV(t *testing.T) {
	ds, err := synthetic.Generate(synthetic.DefaultConfig())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "run.csv")
	require.NoError(t, synthetic.WriteCSV(path, ds))

	s, err := newReader().ReadSeries(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, ds.Series.Len(), s.Len())
	assert.InEpsilon(t, ds.Series.Rate[20], s.Rate[20], 1e-10)
}

func TestReadSeries_MissingFile(t *testing.T) {
	_, err := newReader().ReadSeries(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestReadSeries_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newReader().ReadSeries(ctx, "whatever.csv")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadSeries_CommentsAndBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv")
	content := "# exported by the TDS station\nTime,Rate,Cumulative\n0,0,0\n\n30,2.5,37.5\n60,1.5,97.5\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := newReader().ReadSeries(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 30, 60}, s.TimeMinutes)
	assert.Equal(t, []float64{0, 2.5, 1.5}, s.Rate)
	assert.Equal(t, []float64{0, 37.5, 97.5}, s.Cumulative)
}

func TestParseRows_IntegratesMissingCumulative(t *testing.T) {
	rows := [][]string{
		{"time_min", "rate"},
		{"0", "2"},
		{"10", "4"},
		{"20", "0"},
	}

	s, err := newReader().ParseRows(rows)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 30, 50}, s.Cumulative)
}

func TestParseRows_TimeScale(t *testing.T) {
	r := NewDataReader(Config{TimeColumns: []string{"Seconds"}, TimeScale: 1.0 / 60}, internal.Discard())

	s, err := r.ParseRows([][]string{{"seconds", "rate"}, {"120", "1"}, {"3600", "2"}})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2, 60}, s.TimeMinutes, 1e-12)
}

func TestParseRows_Errors(t *testing.T) {
	tests := map[string][][]string{
		"header only":      {{"time_min", "rate"}},
		"no rate column":   {{"time_min", "signal"}, {"0", "1"}},
		"not a number":     {{"time_min", "rate"}, {"0", "abc"}},
		"missing value":    {{"time_min", "rate", "cumulative"}, {"0", "1"}},
		"only blank lines": {{"time_min", "rate"}, {"", " "}},
	}

	for name, rows := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := newReader().ParseRows(rows)
			require.Error(t, err)
			assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
		})
	}
}
