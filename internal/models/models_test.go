package models

import (
	"encoding/json"
	"math"
	"testing"
)

func TestAlertID_UnmarshalNumberAndString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want AlertID
	}{
		{name: "number", in: `{"id": 42}`, want: "42"},
		{name: "string", in: `{"id": "a-7"}`, want: "a-7"},
		{name: "null", in: `{"id": null}`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Alert
			if err := json.Unmarshal([]byte(tt.in), &a); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if a.ID != tt.want {
				t.Errorf("ID = %q, want %q", a.ID, tt.want)
			}
		})
	}
}

func TestAlert_DisplayStatus(t *testing.T) {
	a := Alert{}
	if got := a.DisplayStatus(); got != AlertStatusPending {
		t.Errorf("DisplayStatus() = %q, want %q", got, AlertStatusPending)
	}
	a.Status = AlertStatusHandled
	if !a.Handled() {
		t.Error("expected alert to be handled")
	}
}

func TestFloat_Unmarshal(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantNaN bool
	}{
		{in: `12.5`, want: 12.5},
		{in: `"7.25"`, want: 7.25},
		{in: `null`, wantNaN: true},
		{in: `"abc"`, wantNaN: true},
		{in: `true`, wantNaN: true},
	}

	for _, tt := range tests {
		var p HistoryPoint
		if err := json.Unmarshal([]byte(`{"timestamp":"t","value":`+tt.in+`}`), &p); err != nil {
			t.Fatalf("unmarshal %s: %v", tt.in, err)
		}
		v := float64(p.Value)
		if tt.wantNaN {
			if !math.IsNaN(v) {
				t.Errorf("%s: expected NaN, got %v", tt.in, v)
			}
			if p.Value.Finite() {
				t.Errorf("%s: expected non-finite", tt.in)
			}
			continue
		}
		if v != tt.want {
			t.Errorf("%s: got %v, want %v", tt.in, v, tt.want)
		}
	}
}

func TestHistoryPoint_MissingValue(t *testing.T) {
	var p HistoryPoint
	if err := json.Unmarshal([]byte(`{"timestamp":"2024-03-01 09:00:00"}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Value.Finite() {
		t.Errorf("missing value decoded as %v, want NaN", float64(p.Value))
	}
	if p.Timestamp != "2024-03-01 09:00:00" {
		t.Errorf("timestamp = %q", p.Timestamp)
	}

	var row HistoryRow
	if err := json.Unmarshal([]byte(`{"timestamp":"t","temp":21.5}`), &row); err != nil {
		t.Fatalf("unmarshal row: %v", err)
	}
	if float64(row.Temp) != 21.5 {
		t.Errorf("temp = %v, want 21.5", float64(row.Temp))
	}
	if row.PH.Finite() {
		t.Errorf("missing ph decoded as %v, want NaN", float64(row.PH))
	}
}

func TestFloat_MarshalNaNAsNull(t *testing.T) {
	data, err := json.Marshal(Float(math.NaN()))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != "null" {
		t.Errorf("got %s, want null", data)
	}
}

func TestThresholds_RangeRoundTrip(t *testing.T) {
	th := DefaultThresholds()
	for _, s := range Sensors {
		th.SetRange(s, 1, 2)
		lo, hi := th.Range(s)
		if lo != 1 || hi != 2 {
			t.Errorf("%s: got %v~%v, want 1~2", s, lo, hi)
		}
	}
}

func TestSnapshot_IsAbnormal(t *testing.T) {
	var snap SensorSnapshot
	if err := json.Unmarshal([]byte(`{"timestamp":"2024-01-01 00:00:00","temp":26.1,"abnormal":{"temp":true,"ph":false}}`), &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !snap.IsAbnormal(SensorTemp) {
		t.Error("expected temp abnormal")
	}
	if snap.IsAbnormal(SensorPH) {
		t.Error("expected ph normal")
	}
	if snap.Value(SensorPSU) != nil {
		t.Error("expected missing psu to decode as nil")
	}
	if v := snap.Value(SensorTemp); v == nil || *v != 26.1 {
		t.Errorf("temp = %v, want 26.1", v)
	}
}

func TestParseSensor(t *testing.T) {
	if s, ok := ParseSensor(" PH "); !ok || s != SensorPH {
		t.Errorf("ParseSensor(PH) = %q, %v", s, ok)
	}
	if _, ok := ParseSensor("turbidity"); ok {
		t.Error("expected unknown sensor to be rejected")
	}
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "2024-01-01 08:00:00", want: "2024/01/01 08:00:00"},
		{in: "2024-01-01T08:00:00", want: "2024/01/01 08:00:00"},
		{in: "2024-01-01T08:00:00Z", want: "2024/01/01 08:00:00"},
		{in: "yesterday", want: "yesterday"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := FormatTimestamp(tt.in); got != tt.want {
				t.Errorf("FormatTimestamp(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
