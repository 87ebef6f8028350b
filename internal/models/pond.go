package models

import (
	"encoding/json"
	"math"
)

// ActionHealth is the health of one automated action (feeding, behavior).
type ActionHealth struct {
	Abnormal    bool   `json:"abnormal"`
	Description string `json:"description,omitempty"`
}

// ActionStatus is the automated-action health of one pond.
type ActionStatus struct {
	Food     ActionHealth `json:"food"`
	Behavior ActionHealth `json:"behavior"`
}

// SettingType selects which platform setting a value applies to.
type SettingType string

const (
	SettingInterval SettingType = "interval" // platform raise/lower interval, minutes
	SettingFeed     SettingType = "feed"     // feed amount per feeding, grams
)

// ParseSettingType converts a string into a known SettingType.
func ParseSettingType(s string) (SettingType, bool) {
	switch SettingType(s) {
	case SettingInterval, SettingFeed:
		return SettingType(s), true
	}
	return "", false
}

// Setting is the current value of one setting for one pond.
type Setting struct {
	PoolID      string      `json:"pool_id"`
	SettingType SettingType `json:"setting_type"`
	Value       float64     `json:"value"`
	UpdatedAt   string      `json:"updated_at,omitempty"`
}

// HistoryPoint is one historical reading of a single metric.
type HistoryPoint struct {
	Timestamp string `json:"timestamp"`
	Value     Float  `json:"value"`
}

// UnmarshalJSON decodes a point whose missing value reads as NaN.
func (p *HistoryPoint) UnmarshalJSON(data []byte) error {
	type plain HistoryPoint
	v := plain{Value: Float(math.NaN())}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = HistoryPoint(v)
	return nil
}

// HistoryDataset groups history by metric, then by pool.
type HistoryDataset map[Sensor]map[string][]HistoryPoint

// HasData reports whether any pool has points for sensor.
func (d HistoryDataset) HasData(sensor Sensor) bool {
	for _, points := range d[sensor] {
		if len(points) > 0 {
			return true
		}
	}
	return false
}

// HistoryRow is one full sensor row, as returned by the latest-history endpoint.
type HistoryRow struct {
	Timestamp string `json:"timestamp"`
	Temp      Float  `json:"temp"`
	PSU       Float  `json:"psu"`
	PH        Float  `json:"ph"`
	DO        Float  `json:"do"`
	ORP       Float  `json:"orp"`
}

// UnmarshalJSON decodes a row whose missing readings read as NaN.
func (r *HistoryRow) UnmarshalJSON(data []byte) error {
	type plain HistoryRow
	nan := Float(math.NaN())
	v := plain{Temp: nan, PSU: nan, PH: nan, DO: nan, ORP: nan}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = HistoryRow(v)
	return nil
}

// Value returns the reading for sensor.
func (r HistoryRow) Value(sensor Sensor) Float {
	switch sensor {
	case SensorTemp:
		return r.Temp
	case SensorPSU:
		return r.PSU
	case SensorPH:
		return r.PH
	case SensorDO:
		return r.DO
	case SensorORP:
		return r.ORP
	}
	return 0
}

// Thresholds is the batch of acceptable min/max ranges for all sensors.
type Thresholds struct {
	TempMin float64 `json:"temp_min"`
	TempMax float64 `json:"temp_max"`
	PSUMin  float64 `json:"psu_min"`
	PSUMax  float64 `json:"psu_max"`
	PHMin   float64 `json:"ph_min"`
	PHMax   float64 `json:"ph_max"`
	DOMin   float64 `json:"do_min"`
	DOMax   float64 `json:"do_max"`
	ORPMin  float64 `json:"orp_min"`
	ORPMax  float64 `json:"orp_max"`
}

// DefaultThresholds returns the ranges the pond server uses before any update.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TempMin: 18, TempMax: 25,
		PSUMin: 60, PSUMax: 80,
		PHMin: 5.5, PHMax: 8.5,
		DOMin: 5, DOMax: 1000,
		ORPMin: 180, ORPMax: 300,
	}
}

// Range returns the configured min and max for sensor.
func (t Thresholds) Range(sensor Sensor) (lower, upper float64) {
	switch sensor {
	case SensorTemp:
		return t.TempMin, t.TempMax
	case SensorPSU:
		return t.PSUMin, t.PSUMax
	case SensorPH:
		return t.PHMin, t.PHMax
	case SensorDO:
		return t.DOMin, t.DOMax
	case SensorORP:
		return t.ORPMin, t.ORPMax
	}
	return 0, 0
}

// SetRange updates the min and max for sensor.
func (t *Thresholds) SetRange(sensor Sensor, lower, upper float64) {
	switch sensor {
	case SensorTemp:
		t.TempMin, t.TempMax = lower, upper
	case SensorPSU:
		t.PSUMin, t.PSUMax = lower, upper
	case SensorPH:
		t.PHMin, t.PHMax = lower, upper
	case SensorDO:
		t.DOMin, t.DOMax = lower, upper
	case SensorORP:
		t.ORPMin, t.ORPMax = lower, upper
	}
}
