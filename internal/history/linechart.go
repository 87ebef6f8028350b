package history

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/good-yellow-bee/pondview/internal/models"
)

// LatestSource fetches the most recent history rows of a pond.
// *pondapi.Client implements it.
type LatestSource interface {
	LatestHistory(ctx context.Context, poolID string) ([]models.HistoryRow, error)
}

// LineChart is one fixed single-sensor chart.
type LineChart struct {
	Sensor models.Sensor  `json:"sensor"`
	Label  string         `json:"label"`
	Color  string         `json:"color"`
	Times  []int64        `json:"times"`  // Unix milliseconds
	Labels []string       `json:"labels"` // HH:mm
	Values []models.Float `json:"values"` // non-finite values encode as null
}

// BuildLineCharts builds one chart per sensor from rows, oldest first. Rows
// with an unparseable timestamp are skipped; missing values become gaps.
func BuildLineCharts(rows []models.HistoryRow) []LineChart {
	type stamped struct {
		at  time.Time
		row models.HistoryRow
	}
	ordered := make([]stamped, 0, len(rows))
	for _, r := range rows {
		if at, ok := models.ParseTimestamp(r.Timestamp); ok {
			ordered = append(ordered, stamped{at: at, row: r})
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].at.Before(ordered[j].at) })

	charts := make([]LineChart, 0, len(models.Sensors))
	for _, s := range models.Sensors {
		info := s.Info()
		c := LineChart{
			Sensor: s,
			Label:  info.ChartLabel,
			Color:  info.ChartColor,
			Times:  make([]int64, 0, len(ordered)),
			Labels: make([]string, 0, len(ordered)),
			Values: make([]models.Float, 0, len(ordered)),
		}
		for _, o := range ordered {
			c.Times = append(c.Times, o.at.UnixMilli())
			c.Labels = append(c.Labels, o.at.Format("15:04"))
			c.Values = append(c.Values, o.row.Value(s))
		}
		charts = append(charts, c)
	}
	return charts
}

// LoadLineCharts fetches the latest rows of a pond and builds its charts.
func LoadLineCharts(ctx context.Context, src LatestSource, poolID string) ([]LineChart, error) {
	rows, err := src.LatestHistory(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("load latest history: %w", err)
	}
	return BuildLineCharts(rows), nil
}
