package history

import (
	"sort"
	"strings"
	"unicode"

	"github.com/good-yellow-bee/pondview/internal/models"
)

// SeriesColors is the color cycle of the trend chart series.
var SeriesColors = []string{"#2563eb", "#f9a216ff", "#10b981", "#c648ecff"}

// Series is one pond's line in the trend chart.
type Series struct {
	Type            string    `json:"type"`
	Name            string    `json:"name"`
	Color           string    `json:"color"`
	Visible         bool      `json:"visible"`
	LineWidth       float64   `json:"lineWidth"`
	ZIndex          int       `json:"zIndex"`
	Data            []Point   `json:"data"`
	ShowInNavigator bool      `json:"showInNavigator"`
	Navigator       Navigator `json:"navigatorOptions"`
}

// Navigator styles a series in the chart's range navigator.
type Navigator struct {
	Color     string  `json:"color"`
	LineColor string  `json:"lineColor"`
	LineWidth float64 `json:"lineWidth"`
}

// NormalizePoolKey maps pool keys to a canonical form: keys containing digits
// become "pool<digits>", others are lowercased.
func NormalizePoolKey(key string) string {
	if key == "" {
		return ""
	}
	var digits strings.Builder
	for _, r := range key {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	if digits.Len() > 0 {
		return "pool" + digits.String()
	}
	return strings.ToLower(key)
}

// points converts raw history to sorted chart points, dropping entries with
// an unparseable timestamp or a non-finite value.
func points(entries []models.HistoryPoint) []Point {
	out := make([]Point, 0, len(entries))
	for _, e := range entries {
		ts, ok := models.ParseTimestamp(e.Timestamp)
		if !ok || !e.Value.Finite() {
			continue
		}
		out = append(out, Point{T: ts.UnixMilli(), V: float64(e.Value)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].T < out[j].T })
	return out
}

// highlightPool picks the pool shown by default: pool 1 when it has data,
// else the first pool with data, else the first pool.
func highlightPool(pools []string, data map[string][]models.HistoryPoint) string {
	for _, p := range pools {
		if NormalizePoolKey(p) == "pool1" && len(data[p]) > 0 {
			return p
		}
	}
	for _, p := range pools {
		if len(data[p]) > 0 {
			return p
		}
	}
	return pools[0]
}

// BuildSeries builds one series per pool of a metric, in pool key order.
// Only the highlighted pool is visible; series left empty after cleaning are
// omitted.
func BuildSeries(data map[string][]models.HistoryPoint) []Series {
	if len(data) == 0 {
		return nil
	}
	pools := make([]string, 0, len(data))
	for p := range data {
		pools = append(pools, p)
	}
	sort.Strings(pools)
	primary := highlightPool(pools, data)

	var out []Series
	for i, pool := range pools {
		sampled := Downsample(points(data[pool]), MaxPointsPerSeries)
		if len(sampled) == 0 {
			continue
		}
		color := SeriesColors[i%len(SeriesColors)]
		isPrimary := pool == primary

		s := Series{
			Type:            "line",
			Name:            pool,
			Color:           color,
			Visible:         isPrimary,
			LineWidth:       1.4,
			ZIndex:          1,
			Data:            sampled,
			ShowInNavigator: true,
			Navigator: Navigator{
				Color:     color + "33",
				LineColor: color,
				LineWidth: 1,
			},
		}
		if isPrimary {
			s.LineWidth = 2.2
			s.ZIndex = 5
		}
		out = append(out, s)
	}
	return out
}
