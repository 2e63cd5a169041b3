package excel

import "strings"

// Config selects the sheet and recognised column headers. Header matching
// is case-insensitive.
type Config struct {
	// Sheet to read; empty means the active sheet.
	Sheet             string   `json:"sheet"`
	TimeColumns       []string `json:"time_columns"`
	RateColumns       []string `json:"rate_columns"`
	CumulativeColumns []string `json:"cumulative_columns"`
	// TimeScale converts the time column to minutes, e.g. 1/60 for seconds.
	TimeScale float64 `json:"time_scale"`
}

// DefaultConfig returns sensible defaults for TDS exports
func DefaultConfig() Config {
	return Config{
		TimeColumns:       []string{"time_min", "time", "minutes", "t"},
		RateColumns:       []string{"rate", "desorption_rate", "flux"},
		CumulativeColumns: []string{"cumulative", "cumulative_amount", "total"},
		TimeScale:         1,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if len(c.TimeColumns) == 0 {
		c.TimeColumns = d.TimeColumns
	}
	if len(c.RateColumns) == 0 {
		c.RateColumns = d.RateColumns
	}
	if len(c.CumulativeColumns) == 0 {
		c.CumulativeColumns = d.CumulativeColumns
	}
	if c.TimeScale == 0 {
		c.TimeScale = 1
	}
	c.TimeColumns = lower(c.TimeColumns)
	c.RateColumns = lower(c.RateColumns)
	c.CumulativeColumns = lower(c.CumulativeColumns)
	return c
}

func lower(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = strings.ToLower(strings.TrimSpace(n))
	}
	return out
}
