package synthetic

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"tdadiffusion/domain/diffusion"
	"tdadiffusion/internal"
	engine "tdadiffusion/internal/diffusion"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestGenerate_Deterministic(t *testing.T) {
	a, err := Generate(DefaultConfig())
	require.NoError(t, err)
	b, err := Generate(DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, a.Series, b.Series)
	assert.Equal(t, a.Rows, b.Rows)

	cfg := DefaultConfig()
	cfg.Seed = 7
	c, err := Generate(cfg)
	require.NoError(t, err)
	assert.NotEqual(t, a.Series.Rate, c.Series.Rate)
}

func TestGenerate_Shape(t *testing.T) {
	ds, err := Generate(DefaultConfig())
	require.NoError(t, err)

	s := ds.Series
	require.NoError(t, s.Validate())
	assert.Equal(t, 49, s.Len())
	assert.Equal(t, []string{HeaderTime, HeaderRate, HeaderCumulative}, ds.Headers)
	assert.Len(t, ds.Rows, 49)
	assert.Equal(t, 720.0, s.TimeMinutes[48])
	assert.Zero(t, s.Cumulative[0])

	for i := 1; i < s.Len(); i++ {
		assert.GreaterOrEqual(t, s.Rate[i], 0.0)
		assert.GreaterOrEqual(t, s.Cumulative[i], s.Cumulative[i-1])
	}
}

func TestGenerate_NoiseFreeTailIsExact(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NoisePercent = 0
	cfg.PeakHeight = 0

	ds, err := Generate(cfg)
	require.NoError(t, err)
	res, err := engine.NewEngine(engine.DefaultOptions(), internal.Discard()).
		Analyze(ds.Series, diffusion.DefaultRequest(diffusion.RateVsInverseSqrtTime).WithTailStart(60))
	require.NoError(t, err)
	assert.InEpsilon(t, cfg.DiffusionSlope, res.Slope(), 1e-9)
}

func TestGenerate_DefaultRecordIsAnalysable(t *testing.T) {
	ds, err := Generate(DefaultConfig())
	require.NoError(t, err)

	res, err := engine.NewEngine(engine.DefaultOptions(), internal.Discard()).
		Analyze(ds.Series, diffusion.DefaultRequest(diffusion.RateVsInverseSqrtTime))
	require.NoError(t, err)

	assert.InEpsilon(t, 0.05, res.Slope(), 0.1)
	assert.Greater(t, res.RSquared(), 0.9)
	assert.True(t, res.TailDetection().Auto)
}

func TestGenerate_DetectorFloor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DetectorFloor = 3e-4

	ds, err := Generate(cfg)
	require.NoError(t, err)
	for _, r := range ds.Series.Rate {
		assert.GreaterOrEqual(t, r, 3e-4)
	}
}

func TestGenerate_InvalidConfig(t *testing.T) {
	for _, mutate := range []func(*Config){
		func(c *Config) { c.Points = 0 },
		func(c *Config) { c.IntervalMinutes = 0 },
		func(c *Config) { c.NoisePercent = -1 },
	} {
		cfg := DefaultConfig()
		mutate(&cfg)
		_, err := Generate(cfg)
		assert.Error(t, err)
	}
}

func TestWriteCSV(t *testing.T) {
	ds, err := Generate(DefaultConfig())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "tds.csv")
	require.NoError(t, WriteCSV(path, ds))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 50)
	assert.Equal(t, ds.Headers, records[0])
	rate, err := strconv.ParseFloat(records[10][1], 64)
	require.NoError(t, err)
	assert.InEpsilon(t, ds.Series.Rate[9], rate, 1e-10)
}

func TestWriteXLSX(t *testing.T) {
	ds, err := Generate(DefaultConfig())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "tds.xlsx")
	require.NoError(t, WriteXLSX(path, ds))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)

	require.Len(t, rows, 50)
	assert.Equal(t, ds.Headers, rows[0])
	tm, err := strconv.ParseFloat(rows[5][0], 64)
	require.NoError(t, err)
	assert.Equal(t, 60.0, tm)
}
