package diffusion

import (
	"math"
	"testing"

	"tdadiffusion/domain/core"
	"tdadiffusion/domain/diffusion"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInverseSqrtTime(t *testing.T) {
	timeMin := []float64{0, 10, 20, 30, 40, 50}
	rate := []float64{1, 2, -1, 3, math.NaN(), 5}

	x, y, err := InverseSqrtTime(timeMin, rate, 0)
	require.NoError(t, err)

	require.Len(t, x, 3, "t=0, negative and NaN rates are dropped")
	assert.Equal(t, []float64{2, 3, 5}, y)
	assert.InDelta(t, 1/math.Sqrt(600), x[0], 1e-15)
	assert.InDelta(t, 1/math.Sqrt(1800), x[1], 1e-15)
	assert.InDelta(t, 1/math.Sqrt(3000), x[2], 1e-15)
}

func TestSqrtTime(t *testing.T) {
	timeMin := []float64{0, 15, 30, 45, 60}
	cumulative := []float64{0, 1, math.Inf(1), -2, 4}

	x, y, err := SqrtTime(timeMin, cumulative, 10)
	require.NoError(t, err)

	assert.Equal(t, []float64{1, -2, 4}, y, "only non-finite values are dropped")
	assert.InDelta(t, math.Sqrt(900), x[0], 1e-12)
	assert.InDelta(t, math.Sqrt(3600), x[2], 1e-12)
}

func TestLogLog_DropsNegativeRateSilently(t *testing.T) {
	timeMin := []float64{10, 100, 1000, 10000, 100000}
	rate := []float64{1, 0.1, -0.5, 0.001, 0.0001}

	x, y, err := LogLog(timeMin, rate, 0)
	require.NoError(t, err)

	assert.Len(t, x, 4)
	assert.InDeltaSlice(t, []float64{1, 2, 4, 5}, x, 1e-12, "time stays in minutes")
	assert.InDeltaSlice(t, []float64{0, -1, -3, -4}, y, 1e-12)
}

func TestTransform_TailCutoff(t *testing.T) {
	series := diffusion.TimeSeries{
		TimeMinutes: []float64{30, 60, 90, 120, 150},
		Rate:        []float64{5, 4, 3, 2, 1},
		Cumulative:  []float64{1, 2, 3, 4, 5},
	}

	x, y, err := Transform(diffusion.CumulativeVsSqrtTime, series, 90)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4, 5}, y)
	for _, v := range x {
		assert.GreaterOrEqual(t, v*v/secondsPerMinute, 90.0-1e-9)
	}
}

func TestTransform_InsufficientTailData(t *testing.T) {
	series := diffusion.TimeSeries{
		TimeMinutes: []float64{30, 60, 90, 120},
		Rate:        []float64{5, 4, 0, -1},
		Cumulative:  []float64{1, 2, 3, 4},
	}

	for _, mode := range []diffusion.Mode{diffusion.RateVsInverseSqrtTime, diffusion.LogRateVsLogTime} {
		_, _, err := Transform(mode, series, 60)
		assert.ErrorIs(t, err, core.ErrInsufficientTailData, mode.Name())
	}

	_, _, err := Transform(diffusion.CumulativeVsSqrtTime, series, 100)
	assert.ErrorIs(t, err, core.ErrInsufficientTailData)
}

func TestTransform_UnknownMode(t *testing.T) {
	_, _, err := Transform(diffusion.Mode("arrhenius"), diffusion.TimeSeries{}, 0)
	assert.ErrorIs(t, err, core.ErrUnknownAnalysisMode)
}

func TestTransform_DoesNotAliasInput(t *testing.T) {
	timeMin := []float64{10, 20, 30}
	rate := []float64{1, 2, 3}

	_, y, err := InverseSqrtTime(timeMin, rate, 0)
	require.NoError(t, err)
	y[0] = 99

	assert.Equal(t, 1.0, rate[0])
	assert.Equal(t, 10.0, timeMin[0])
}
