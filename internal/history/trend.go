package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/good-yellow-bee/pondview/internal/models"
)

// Trend chart messages.
const (
	NoMetricText = "⚠️ 尚未設定可顯示的項目"
	NoDataText   = "⚠️ 沒有可顯示的資料，請選擇其他項目"
)

// RangeLayout is the date format of history range queries.
const RangeLayout = "2006-01-02 15:04:05"

// RangeSource fetches history for a time range. *pondapi.Client implements it.
type RangeSource interface {
	History(ctx context.Context, start, end string) (models.HistoryDataset, error)
}

// MetricButton is one entry of the metric selector.
type MetricButton struct {
	Metric models.Sensor `json:"metric"`
	Title  string        `json:"title"`
	Active bool          `json:"active"`
}

// TrendView is the rendered trend modal.
type TrendView struct {
	Open    bool           `json:"open"`
	Metric  models.Sensor  `json:"metric"`
	Title   string         `json:"title"`
	Buttons []MetricButton `json:"buttons"`
	Series  []Series       `json:"series"`
	Error   string         `json:"error,omitempty"`
}

// Trend is the state of the trend chart modal. It is safe for concurrent use.
type Trend struct {
	metrics []models.Sensor

	mu       sync.Mutex
	dataset  models.HistoryDataset
	selected models.Sensor
	open     bool
}

// NewTrend creates a trend modal over dataset. The first metric with data is
// selected.
func NewTrend(dataset models.HistoryDataset) *Trend {
	t := &Trend{metrics: models.Sensors}
	t.setDataset(dataset)
	return t
}

// Load replaces the dataset with the history between from and to.
func (t *Trend) Load(ctx context.Context, src RangeSource, from, to time.Time) error {
	ds, err := src.History(ctx, from.Format(RangeLayout), to.Format(RangeLayout))
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setDataset(ds)
	return nil
}

func (t *Trend) setDataset(ds models.HistoryDataset) {
	if ds == nil {
		ds = models.HistoryDataset{}
	}
	t.dataset = ds
	if t.selected == "" {
		t.selected = t.firstWithData()
	}
	t.ensureData()
}

func (t *Trend) firstWithData() models.Sensor {
	for _, m := range t.metrics {
		if t.dataset.HasData(m) {
			return m
		}
	}
	if len(t.metrics) > 0 {
		return t.metrics[0]
	}
	return ""
}

// ensureData moves the selection to the first metric with data when the
// selected one has none. The selection is kept when no metric has data.
func (t *Trend) ensureData() {
	if t.selected == "" || t.dataset.HasData(t.selected) {
		return
	}
	for _, m := range t.metrics {
		if t.dataset.HasData(m) {
			t.selected = m
			return
		}
	}
}

// Open shows the modal.
func (t *Trend) Open() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.open = true
	t.ensureData()
}

// Close hides the modal.
func (t *Trend) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.open = false
}

// SelectMetric selects a metric, falling back to the first metric with data.
func (t *Trend) SelectMetric(metric models.Sensor) error {
	if _, ok := models.ParseSensor(string(metric)); !ok {
		return fmt.Errorf("unknown metric %q", metric)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.selected == metric {
		return nil
	}
	t.selected = metric
	t.ensureData()
	return nil
}

// Selected returns the selected metric.
func (t *Trend) Selected() models.Sensor {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selected
}

// View renders the modal for the selected metric.
func (t *Trend) View() TrendView {
	t.mu.Lock()
	defer t.mu.Unlock()

	v := TrendView{Open: t.open, Metric: t.selected}
	for _, m := range t.metrics {
		v.Buttons = append(v.Buttons, MetricButton{
			Metric: m,
			Title:  m.Info().TrendTitle,
			Active: m == t.selected,
		})
	}

	if t.selected == "" {
		v.Error = NoMetricText
		return v
	}
	v.Series = BuildSeries(t.dataset[t.selected])
	if len(v.Series) == 0 {
		v.Error = NoDataText
		return v
	}
	v.Title = t.selected.Info().TrendTitle + " 趨勢圖"
	return v
}
