package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/good-yellow-bee/pondview/internal/models"
)

func linear(n int) []Point {
	out := make([]Point, n)
	for i := range out {
		out[i] = Point{T: int64(i) * 1000, V: float64(i)}
	}
	return out
}

func TestDownsampleSizes(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{n: 0, want: 0},
		{n: 600, want: 600},
		{n: 601, want: 301},
		{n: 1200, want: 600},
		{n: 1201, want: 401},
		{n: 1801, want: 451},
		{n: 10000, want: 589},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.n), func(t *testing.T) {
			got := Downsample(linear(tt.n), MaxPointsPerSeries)
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
			if len(got) > MaxPointsPerSeries {
				t.Errorf("len %d exceeds cap", len(got))
			}
			bucket := int(math.Ceil(float64(tt.n) / MaxPointsPerSeries))
			if tt.n > MaxPointsPerSeries && len(got) != int(math.Ceil(float64(tt.n)/float64(bucket))) {
				t.Errorf("len = %d, want ceil(n/bucket)", len(got))
			}
		})
	}
}

func TestDownsampleAverages(t *testing.T) {
	points := []Point{
		{T: 0, V: 1}, {T: 1, V: 2}, {T: 2, V: 2},
		{T: 10, V: 0.1234}, {T: 11, V: 0.1}, {T: 12, V: 0.1},
	}
	got := Downsample(points, 2)
	want := []Point{{T: 1, V: 1.667}, {T: 11, V: 0.108}}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("point %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDownsampleRoundsTimestamp(t *testing.T) {
	got := Downsample([]Point{{T: 1, V: 0}, {T: 2, V: 0}, {T: 5, V: 0}, {T: 6, V: 0}}, 2)
	if got[0].T != 2 || got[1].T != 6 {
		t.Errorf("timestamps = %d, %d, want 2, 6", got[0].T, got[1].T)
	}
}

func TestPointMarshalJSON(t *testing.T) {
	b, err := json.Marshal([]Point{{T: 1704067200000, V: 25.125}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != "[[1704067200000,25.125]]" {
		t.Errorf("json = %s", b)
	}
}

func TestNormalizePoolKey(t *testing.T) {
	tests := []struct{ in, want string }{
		{"pool1", "pool1"},
		{"1", "pool1"},
		{"Pool_12", "pool12"},
		{"MAIN", "main"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizePoolKey(tt.in); got != tt.want {
			t.Errorf("NormalizePoolKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func hp(ts string, v float64) models.HistoryPoint {
	return models.HistoryPoint{Timestamp: ts, Value: models.Float(v)}
}

func TestBuildSeriesHighlightsPoolOne(t *testing.T) {
	data := map[string][]models.HistoryPoint{
		"pool2": {hp("2024-01-01 00:00:00", 1)},
		"pool1": {hp("2024-01-01 00:00:00", 2)},
		"pool3": {hp("2024-01-01 00:00:00", 3)},
	}
	series := BuildSeries(data)
	if len(series) != 3 {
		t.Fatalf("series = %d, want 3", len(series))
	}
	for i, s := range series {
		if s.Color != SeriesColors[i] {
			t.Errorf("%s color = %s, want %s", s.Name, s.Color, SeriesColors[i])
		}
		primary := s.Name == "pool1"
		if s.Visible != primary {
			t.Errorf("%s visible = %v", s.Name, s.Visible)
		}
		if primary && (s.LineWidth != 2.2 || s.ZIndex != 5) {
			t.Errorf("primary style = %v/%d", s.LineWidth, s.ZIndex)
		}
		if !primary && (s.LineWidth != 1.4 || s.ZIndex != 1) {
			t.Errorf("secondary style = %v/%d", s.LineWidth, s.ZIndex)
		}
	}
	if series[0].Navigator.Color != "#2563eb33" {
		t.Errorf("navigator color = %s", series[0].Navigator.Color)
	}
}

func TestBuildSeriesFallsBackToFirstNonEmpty(t *testing.T) {
	data := map[string][]models.HistoryPoint{
		"pool1": {},
		"pool2": {},
		"pool3": {hp("2024-01-01 00:00:00", 3)},
	}
	series := BuildSeries(data)
	if len(series) != 1 {
		t.Fatalf("series = %d, want empty pools omitted", len(series))
	}
	if series[0].Name != "pool3" || !series[0].Visible {
		t.Errorf("series = %+v", series[0])
	}
	if series[0].Color != SeriesColors[2] {
		t.Errorf("color = %s, want color of third pool", series[0].Color)
	}
}

func TestBuildSeriesCleansPoints(t *testing.T) {
	data := map[string][]models.HistoryPoint{
		"pool1": {
			hp("2024-01-01 00:02:00", 3),
			hp("not a time", 9),
			{Timestamp: "2024-01-01 00:03:00", Value: models.Float(math.NaN())},
			hp("2024-01-01T00:00:00", 1),
			hp("2024-01-01 00:01:00", 2),
		},
	}
	series := BuildSeries(data)
	got := series[0].Data
	if len(got) != 3 {
		t.Fatalf("points = %v, want 3", got)
	}
	for i := 1; i < len(got); i++ {
		if got[i].T <= got[i-1].T {
			t.Errorf("points not ascending: %v", got)
		}
	}
	if got[0].V != 1 || got[2].V != 3 {
		t.Errorf("points = %v", got)
	}
}

func TestTrendSelectsFirstMetricWithData(t *testing.T) {
	ds := models.HistoryDataset{
		models.SensorTemp: {},
		models.SensorPH:   {"pool1": {hp("2024-01-01 00:00:00", 7)}},
	}
	tr := NewTrend(ds)
	if tr.Selected() != models.SensorPH {
		t.Errorf("Selected() = %s, want ph", tr.Selected())
	}

	v := tr.View()
	if v.Title != "酸鹼值 (pH) 趨勢圖" {
		t.Errorf("Title = %q", v.Title)
	}
	if v.Error != "" {
		t.Errorf("Error = %q", v.Error)
	}
	if len(v.Buttons) != len(models.Sensors) {
		t.Errorf("buttons = %d", len(v.Buttons))
	}
	for _, b := range v.Buttons {
		if b.Active != (b.Metric == models.SensorPH) {
			t.Errorf("button %s active = %v", b.Metric, b.Active)
		}
	}
}

func TestTrendSelectMetricFallsBack(t *testing.T) {
	ds := models.HistoryDataset{
		models.SensorDO: {"pool2": {hp("2024-01-01 00:00:00", 6)}},
	}
	tr := NewTrend(ds)
	if err := tr.SelectMetric(models.SensorORP); err != nil {
		t.Fatalf("SelectMetric: %v", err)
	}
	if tr.Selected() != models.SensorDO {
		t.Errorf("Selected() = %s, want fallback to do", tr.Selected())
	}
	if err := tr.SelectMetric("turbidity"); err == nil {
		t.Error("expected error for unknown metric")
	}
}

func TestTrendWithoutData(t *testing.T) {
	tr := NewTrend(nil)
	tr.Open()
	v := tr.View()
	if v.Error != NoDataText {
		t.Errorf("Error = %q, want %q", v.Error, NoDataText)
	}
	if !v.Open || len(v.Series) != 0 || v.Title != "" {
		t.Errorf("view = %+v", v)
	}
}

type fakeRange struct {
	start, end string
	ds         models.HistoryDataset
	err        error
}

func (f *fakeRange) History(ctx context.Context, start, end string) (models.HistoryDataset, error) {
	f.start, f.end = start, end
	return f.ds, f.err
}

func TestTrendLoad(t *testing.T) {
	src := &fakeRange{ds: models.HistoryDataset{models.SensorTemp: {"pool1": {hp("2024-01-01 00:00:00", 20)}}}}
	tr := NewTrend(nil)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := tr.Load(context.Background(), src, from, from.Add(24*time.Hour)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if src.start != "2024-01-01 00:00:00" || src.end != "2024-01-02 00:00:00" {
		t.Errorf("range = %s..%s", src.start, src.end)
	}
	if tr.Selected() != models.SensorTemp || len(tr.View().Series) != 1 {
		t.Errorf("view = %+v", tr.View())
	}

	src.err = errors.New("down")
	if err := tr.Load(context.Background(), src, from, from); err == nil {
		t.Error("expected error")
	}
}

func TestBuildLineCharts(t *testing.T) {
	rows := []models.HistoryRow{
		{Timestamp: "2024-01-01 08:10:00", Temp: 26, ORP: models.Float(math.NaN())},
		{Timestamp: "2024-01-01 08:05:00", Temp: 25},
		{Timestamp: "garbage", Temp: 99},
	}
	charts := BuildLineCharts(rows)
	if len(charts) != len(models.Sensors) {
		t.Fatalf("charts = %d", len(charts))
	}

	temp := charts[0]
	if temp.Sensor != models.SensorTemp || temp.Label != "溫度 (°C)" || temp.Color != "#FF6384" {
		t.Errorf("temp chart = %+v", temp)
	}
	if len(temp.Labels) != 2 || temp.Labels[0] != "08:05" || temp.Labels[1] != "08:10" {
		t.Errorf("labels = %v", temp.Labels)
	}
	if temp.Values[0] != 25 || temp.Values[1] != 26 {
		t.Errorf("values = %v", temp.Values)
	}

	b, err := json.Marshal(charts[4].Values)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != "[0,null]" {
		t.Errorf("orp values = %s", b)
	}
}
