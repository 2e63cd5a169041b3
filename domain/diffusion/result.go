package diffusion

import (
	"encoding/json"
)

// ResultFields is the plain form of a Result. It is used to construct a
// Result and as its serialized shape.
type ResultFields struct {
	TailStartTime float64       `json:"tail_start_time"`
	TailDetection TailDetection `json:"tail_detection"`
	Mode          Mode          `json:"analysis_mode"`

	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	RSquared  float64 `json:"r_squared"`
	PValue    float64 `json:"p_value"`
	StdError  float64 `json:"std_error"`
	NumPoints int     `json:"num_points"`

	XData []float64 `json:"x_data"`
	YData []float64 `json:"y_data"`
	FitX  []float64 `json:"fit_x"`
	FitY  []float64 `json:"fit_y"`

	Grade                Grade   `json:"goodness_of_fit"`
	DiffusionCoefficient float64 `json:"diffusion_coefficient"`
	// DiffusionCoefficient25C is DiffusionCoefficient normalised to 25 °C.
	DiffusionCoefficient25C float64 `json:"diffusion_coefficient_25c"`
	ThicknessCM             float64 `json:"thickness_cm"`
	TemperatureC            float64 `json:"temperature_c"`

	Warnings   []string              `json:"warnings,omitempty"`
	Literature *LiteratureComparison `json:"literature,omitempty"`
}

// Result is the immutable outcome of one analysis. All slices are private
// copies; accessors hand out fresh copies so a Result can be shared freely.
type Result struct {
	f ResultFields
}

// NewResult builds a Result from f, copying every slice.
func NewResult(f ResultFields) Result {
	return Result{f: copyFields(f)}
}

// Fields returns a deep copy of the result's contents.
func (r Result) Fields() ResultFields { return copyFields(r.f) }

func (r Result) TailStartTime() float64       { return r.f.TailStartTime }
func (r Result) TailDetection() TailDetection { return r.f.TailDetection }
func (r Result) Mode() Mode                   { return r.f.Mode }
func (r Result) Slope() float64               { return r.f.Slope }
func (r Result) Intercept() float64           { return r.f.Intercept }
func (r Result) RSquared() float64            { return r.f.RSquared }
func (r Result) PValue() float64              { return r.f.PValue }
func (r Result) StdError() float64            { return r.f.StdError }
func (r Result) NumPoints() int               { return r.f.NumPoints }
func (r Result) Grade() Grade                 { return r.f.Grade }
func (r Result) DiffusionCoefficient() float64 {
	return r.f.DiffusionCoefficient
}
func (r Result) DiffusionCoefficient25C() float64 {
	return r.f.DiffusionCoefficient25C
}
func (r Result) ThicknessCM() float64  { return r.f.ThicknessCM }
func (r Result) TemperatureC() float64 { return r.f.TemperatureC }

func (r Result) XData() []float64   { return cloneFloats(r.f.XData) }
func (r Result) YData() []float64   { return cloneFloats(r.f.YData) }
func (r Result) FitX() []float64    { return cloneFloats(r.f.FitX) }
func (r Result) FitY() []float64    { return cloneFloats(r.f.FitY) }
func (r Result) Warnings() []string { return cloneStrings(r.f.Warnings) }

// Literature returns the literature comparison, if D was computed.
func (r Result) Literature() (LiteratureComparison, bool) {
	if r.f.Literature == nil {
		return LiteratureComparison{}, false
	}
	return *r.f.Literature, true
}

// IsZero reports whether r was never populated.
func (r Result) IsZero() bool {
	return r.f.Mode == "" && r.f.NumPoints == 0
}

func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.f)
}

// UnmarshalJSON decodes a stored result. It is only meant for restoring
// results from persistence.
func (r *Result) UnmarshalJSON(data []byte) error {
	var f ResultFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	r.f = f
	return nil
}

func copyFields(f ResultFields) ResultFields {
	out := f
	out.XData = cloneFloats(f.XData)
	out.YData = cloneFloats(f.YData)
	out.FitX = cloneFloats(f.FitX)
	out.FitY = cloneFloats(f.FitY)
	out.Warnings = cloneStrings(f.Warnings)
	if f.Literature != nil {
		lit := *f.Literature
		out.Literature = &lit
	}
	return out
}
