package partogram

import "fmt"

const (
	// MinChartHours is the shortest time axis drawn.
	MinChartHours = 12.0
	// StepHours is the spacing between reference line points.
	StepHours = 0.5
)

// Point is one (hour, dilation) pair on the chart.
type Point struct {
	Hour     float64 `json:"hour"`
	Dilation float64 `json:"dilation"`
}

// ChartSeries is the full chart for one observation set. It is rebuilt from
// scratch on every call.
type ChartSeries struct {
	Observed            []Point `json:"observed"`
	AlertLine           []Point `json:"alertLine"`
	ActionLine          []Point `json:"actionLine"`
	CrossesActionLine   bool    `json:"crossesActionLine"`
	CrossesAlertLine    bool    `json:"crossesAlertLine"`
	ActionLineCrossings []Point `json:"actionLineCrossings"`
	MaxHours            float64 `json:"maxHours"`
}

// ComputeChartSeries validates obs and cfg, then derives the observed curve,
// both reference lines and the crossing flags. The input slice is not modified.
func ComputeChartSeries(obs []Observation, cfg Config) (*ChartSeries, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for i, o := range obs {
		if err := o.Validate(i); err != nil {
			return nil, fmt.Errorf("compute chart series: %w", err)
		}
	}

	sorted := make([]Observation, len(obs))
	copy(sorted, obs)
	SortObservations(sorted)

	maxHours := MinChartHours
	for _, o := range sorted {
		if o.HoursFromStart > maxHours {
			maxHours = o.HoursFromStart
		}
	}

	cs := &ChartSeries{
		Observed:            make([]Point, 0, len(sorted)),
		AlertLine:           referenceLine(0, maxHours, cfg.AlertAt),
		ActionLine:          referenceLine(cfg.ActionOffsetHours, maxHours, cfg.ActionAt),
		ActionLineCrossings: []Point{},
		MaxHours:            maxHours,
	}

	for _, o := range sorted {
		p := Point{Hour: o.HoursFromStart, Dilation: o.DilationCm}
		cs.Observed = append(cs.Observed, p)

		if o.DilationCm < cfg.AlertAt(o.HoursFromStart) {
			cs.CrossesAlertLine = true
		}
		if o.HoursFromStart >= cfg.ActionOffsetHours && o.DilationCm < cfg.ActionAt(o.HoursFromStart) {
			cs.CrossesActionLine = true
			cs.ActionLineCrossings = append(cs.ActionLineCrossings, p)
		}
	}

	return cs, nil
}

// referenceLine samples f every StepHours from `from` up to maxHours, stopping
// at the first value above full dilation. An integer counter keeps the hours exact.
func referenceLine(from, maxHours float64, f func(float64) float64) []Point {
	line := []Point{}
	for i := 0; ; i++ {
		h := from + float64(i)*StepHours
		if h > maxHours {
			break
		}
		d := f(h)
		if d > MaxDilationCm {
			break
		}
		line = append(line, Point{Hour: h, Dilation: d})
	}
	return line
}
