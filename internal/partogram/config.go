// Package partogram computes labor progress charts: the observed cervical
// dilation curve against the WHO-style alert and action reference lines.
package partogram

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig is returned for a configuration that cannot produce a chart.
var ErrInvalidConfig = errors.New("partogram: invalid configuration")

// Config holds the reference line parameters.
type Config struct {
	AlertDilationStartCm float64 `json:"alertDilationStartCm" yaml:"alert_dilation_start_cm" mapstructure:"alert_dilation_start_cm"`
	AlertRateCmPerHour   float64 `json:"alertRateCmPerHour" yaml:"alert_rate_cm_per_hour" mapstructure:"alert_rate_cm_per_hour"`
	ActionOffsetHours    float64 `json:"actionOffsetHours" yaml:"action_offset_hours" mapstructure:"action_offset_hours"`
}

// DefaultConfig returns the classic 4 cm start, 1 cm/h alert line with the
// action line 2 hours to its right.
func DefaultConfig() Config {
	return Config{
		AlertDilationStartCm: 4,
		AlertRateCmPerHour:   1,
		ActionOffsetHours:    2,
	}
}

// Validate checks that every value is finite, the alert line starts inside
// the dilation range, the action offset fits the time axis and the alert rate
// is positive.
func (c Config) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"alert_dilation_start_cm", c.AlertDilationStartCm},
		{"alert_rate_cm_per_hour", c.AlertRateCmPerHour},
		{"action_offset_hours", c.ActionOffsetHours},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s must be finite", ErrInvalidConfig, f.name)
		}
	}
	if c.AlertDilationStartCm < MinDilationCm || c.AlertDilationStartCm > MaxDilationCm {
		return fmt.Errorf("%w: alert_dilation_start_cm must be between 0 and 10, got %v", ErrInvalidConfig, c.AlertDilationStartCm)
	}
	if c.ActionOffsetHours < 0 || c.ActionOffsetHours > MaxHoursFromStart {
		return fmt.Errorf("%w: action_offset_hours must be between 0 and %v, got %v", ErrInvalidConfig, MaxHoursFromStart, c.ActionOffsetHours)
	}
	if c.AlertRateCmPerHour <= 0 {
		return fmt.Errorf("%w: alert_rate_cm_per_hour must be positive, got %v", ErrInvalidConfig, c.AlertRateCmPerHour)
	}
	return nil
}

// AlertAt returns the alert line dilation h hours after the start of active labor.
func (c Config) AlertAt(h float64) float64 {
	return c.AlertDilationStartCm + c.AlertRateCmPerHour*h
}

// ActionAt returns the action line dilation h hours after the start of active labor.
func (c Config) ActionAt(h float64) float64 {
	return c.AlertDilationStartCm + c.AlertRateCmPerHour*(h-c.ActionOffsetHours)
}
