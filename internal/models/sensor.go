// Package models defines the data shapes exchanged with the pond server.
package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Sensor identifies a water-quality metric reported for every pond.
type Sensor string

const (
	SensorTemp Sensor = "temp"
	SensorPSU  Sensor = "psu"
	SensorPH   Sensor = "ph"
	SensorDO   Sensor = "do"
	SensorORP  Sensor = "orp"
)

// Sensors lists all sensors in display order.
var Sensors = []Sensor{SensorTemp, SensorPSU, SensorPH, SensorDO, SensorORP}

// SensorInfo carries display metadata for a sensor.
type SensorInfo struct {
	Name       string // short label on the live dashboard
	Unit       string // unit suffix, empty when the value is unitless
	Decimals   int    // display precision
	TrendTitle string // title used by the trend chart
	ChartLabel string // label used by the fixed line charts
	ChartColor string // line color used by the fixed line charts
}

var sensorInfo = map[Sensor]SensorInfo{
	SensorTemp: {Name: "溫度", Unit: "°C", Decimals: 1, TrendTitle: "溫度 (°C)", ChartLabel: "溫度 (°C)", ChartColor: "#FF6384"},
	SensorPSU:  {Name: "鹽度", Unit: "", Decimals: 1, TrendTitle: "鹽度 (psu)", ChartLabel: "鹽度 (%)", ChartColor: "#36A2EB"},
	SensorPH:   {Name: "酸鹼值", Unit: "", Decimals: 2, TrendTitle: "酸鹼值 (pH)", ChartLabel: "酸鹼值", ChartColor: "#FFCE56"},
	SensorDO:   {Name: "溶氧", Unit: "mg/L", Decimals: 2, TrendTitle: "溶氧 (mg/L)", ChartLabel: "溶氧 (mg/L)", ChartColor: "#4BC0C0"},
	SensorORP:  {Name: "氧化還原電位", Unit: "mV", Decimals: 0, TrendTitle: "氧化還原電位 (mV)", ChartLabel: "氧化還原電位 (mV)", ChartColor: "#9966FF"},
}

// Info returns the display metadata for s. Unknown sensors get a bare entry.
func (s Sensor) Info() SensorInfo {
	if info, ok := sensorInfo[s]; ok {
		return info
	}
	return SensorInfo{Name: string(s), TrendTitle: string(s), ChartLabel: string(s)}
}

// ParseSensor converts a string into a known Sensor.
func ParseSensor(s string) (Sensor, bool) {
	sensor := Sensor(strings.ToLower(strings.TrimSpace(s)))
	_, ok := sensorInfo[sensor]
	return sensor, ok
}

// SensorSnapshot is the latest reading of one pond.
type SensorSnapshot struct {
	Timestamp string          `json:"timestamp"`
	Temp      *float64        `json:"temp"`
	PSU       *float64        `json:"psu"`
	PH        *float64        `json:"ph"`
	DO        *float64        `json:"do"`
	ORP       *float64        `json:"orp"`
	Abnormal  map[Sensor]bool `json:"abnormal"`
	Oddset    *Thresholds     `json:"oddset,omitempty"`
}

// Value returns the reading for sensor, or nil when the server sent none.
func (s *SensorSnapshot) Value(sensor Sensor) *float64 {
	switch sensor {
	case SensorTemp:
		return s.Temp
	case SensorPSU:
		return s.PSU
	case SensorPH:
		return s.PH
	case SensorDO:
		return s.DO
	case SensorORP:
		return s.ORP
	}
	return nil
}

// IsAbnormal reports whether the server flagged sensor as out of range.
func (s *SensorSnapshot) IsAbnormal(sensor Sensor) bool {
	if s.Abnormal == nil {
		return false
	}
	return s.Abnormal[sensor]
}

// Float is a lenient JSON number. It accepts numbers, numeric strings and
// null; anything else decodes to NaN so callers can drop the point.
type Float float64

// UnmarshalJSON implements json.Unmarshaler.
func (f *Float) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = Float(math.NaN())
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			*f = Float(math.NaN())
			return nil
		}
		*f = Float(v)
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		*f = Float(math.NaN())
		return nil
	}
	*f = Float(v)
	return nil
}

// MarshalJSON encodes non-finite values as null.
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(v, 'f', -1, 64)), nil
}

// Finite reports whether f holds a usable value.
func (f Float) Finite() bool {
	v := float64(f)
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
