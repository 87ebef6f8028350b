// Package thresholds implements the dual-handle range sliders used to edit
// the acceptable min/max of every sensor, and their batch submission.
package thresholds

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/good-yellow-bee/pondview/internal/models"
)

// Limits is the slider track of one sensor.
type Limits struct {
	Min  float64 `yaml:"min" json:"min"`
	Max  float64 `yaml:"max" json:"max"`
	Step float64 `yaml:"step" json:"step"`
}

// DefaultLimits returns the slider tracks used when none are configured.
func DefaultLimits() map[models.Sensor]Limits {
	return map[models.Sensor]Limits{
		models.SensorTemp: {Min: 0, Max: 40, Step: 0.1},
		models.SensorPSU:  {Min: 0, Max: 100, Step: 1},
		models.SensorPH:   {Min: 0, Max: 14, Step: 0.1},
		models.SensorDO:   {Min: 0, Max: 1000, Step: 1},
		models.SensorORP:  {Min: 0, Max: 500, Step: 1},
	}
}

// Validate checks that the track is usable.
func (l Limits) Validate() error {
	if l.Max <= l.Min {
		return fmt.Errorf("max (%v) must be greater than min (%v)", l.Max, l.Min)
	}
	if l.Step <= 0 {
		return fmt.Errorf("step must be positive")
	}
	return nil
}

// Range is the selected [Lower, Upper] of one sensor within its Limits.
type Range struct {
	Sensor models.Sensor
	Limits
	Lower float64
	Upper float64
}

// NewRange creates a range and normalizes lower and upper into the track.
func NewRange(sensor models.Sensor, limits Limits, lower, upper float64) Range {
	r := Range{Sensor: sensor, Limits: limits}
	r.set(lower, upper)
	return r
}

func parseOr(text string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

// snap moves v onto the nearest step of the track, rounded to the step's
// precision so 0.1 steps do not accumulate float error.
func (r Range) snap(v float64) float64 {
	if r.Step <= 0 {
		return v
	}
	v = r.Min + math.Round((v-r.Min)/r.Step)*r.Step
	scale := math.Pow(10, float64(stepDecimals(r.Step)))
	return math.Round(v*scale) / scale
}

func stepDecimals(step float64) int {
	s := strconv.FormatFloat(step, 'f', -1, 64)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return len(s) - i - 1
	}
	return 0
}

// set snaps both handles to the step, clamps them into the track and keeps
// Upper above Lower.
func (r *Range) set(lower, upper float64) {
	lower = math.Min(math.Max(r.snap(lower), r.Min), r.Max)
	upper = math.Min(math.Max(r.snap(upper), r.Min), r.Max)
	if upper <= lower {
		upper = math.Min(lower+r.Step, r.Max)
	}
	if upper <= lower {
		// lower sits on the top of the track
		lower = math.Max(r.Max-r.Step, r.Min)
		upper = r.Max
	}
	r.Lower, r.Upper = lower, upper
}

// SetInputs applies the text of both inputs. Unparseable text falls back to
// the track bound on that side.
func (r *Range) SetInputs(lowerText, upperText string) {
	r.set(parseOr(lowerText, r.Min), parseOr(upperText, r.Max))
}

// SetLower applies the text of the lower input.
func (r *Range) SetLower(text string) {
	r.set(parseOr(text, r.Min), r.Upper)
}

// SetUpper applies the text of the upper input.
func (r *Range) SetUpper(text string) {
	r.set(r.Lower, parseOr(text, r.Max))
}

// SetHandles applies a slider drag.
func (r *Range) SetHandles(lower, upper float64) {
	r.set(lower, upper)
}

func (r Range) fineStep() bool {
	return r.Step < 1
}

// InputText formats a value for the text inputs: two decimals for fine
// steps, none otherwise.
func (r Range) InputText(v float64) string {
	if r.fineStep() {
		return strconv.FormatFloat(v, 'f', 2, 64)
	}
	return strconv.FormatFloat(v, 'f', 0, 64)
}

// HandleText formats a value for the slider handles: one decimal for fine
// steps, none otherwise.
func (r Range) HandleText(v float64) string {
	if r.fineStep() {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', 0, 64)
}

// Label is the status line under the slider.
func (r Range) Label() string {
	return fmt.Sprintf("範圍：%s ~ %s", r.HandleText(r.Lower), r.HandleText(r.Upper))
}
