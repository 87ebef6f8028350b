package dashboard

import (
	"fmt"
	"strconv"

	"github.com/good-yellow-bee/pondview/internal/models"
)

// UnavailableText replaces the last-update line when a refresh fails.
const UnavailableText = "無法取得資料"

// placeholder is shown for a sensor the server sent no value for.
const placeholder = "--"

// IndicatorState is the visual state of an automated-action indicator.
type IndicatorState string

const (
	IndicatorNeutral  IndicatorState = "neutral"
	IndicatorNormal   IndicatorState = "normal"
	IndicatorAbnormal IndicatorState = "abnormal"
)

// Field is one formatted sensor reading.
type Field struct {
	Sensor   models.Sensor `json:"sensor"`
	Name     string        `json:"name"`
	Text     string        `json:"text"`
	Abnormal bool          `json:"abnormal"`
}

// Indicator is the rendered state of one automated action.
type Indicator struct {
	Name        string         `json:"name"`
	State       IndicatorState `json:"state"`
	Description string         `json:"description,omitempty"`
}

// View is everything the dashboard region needs to draw one pond.
type View struct {
	PoolID     string    `json:"pool_id"`
	VideoSrc   string    `json:"video_src"`
	Available  bool      `json:"available"`
	LastUpdate string    `json:"last_update"`
	Fields     []Field   `json:"fields"`
	Food       Indicator `json:"food"`
	Behavior   Indicator `json:"behavior"`
	Generation uint64    `json:"generation"`
}

// Renderer draws dashboard views. Calls are serialized by the Poller.
type Renderer interface {
	Render(v View) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(v View) error

// Render implements Renderer.
func (f RendererFunc) Render(v View) error { return f(v) }

// FormatValue formats a reading with its sensor's precision and unit.
func FormatValue(sensor models.Sensor, v *float64) string {
	if v == nil {
		return placeholder
	}
	info := sensor.Info()
	text := strconv.FormatFloat(*v, 'f', info.Decimals, 64)
	if info.Unit != "" {
		text += " " + info.Unit
	}
	return text
}

// VideoPath returns the video asset shown for a pond.
func VideoPath(poolID string) string {
	return fmt.Sprintf("/static/videos/pool%s.mp4", poolID)
}

func neutralIndicators() (food, behavior Indicator) {
	return Indicator{Name: "餵食", State: IndicatorNeutral},
		Indicator{Name: "行為", State: IndicatorNeutral}
}

func indicator(name string, h models.ActionHealth) Indicator {
	state := IndicatorNormal
	if h.Abnormal {
		state = IndicatorAbnormal
	}
	return Indicator{Name: name, State: state, Description: h.Description}
}

// BuildView turns a refresh result into a view. A nil snapshot yields the
// unavailable view; a nil action status leaves the indicators neutral.
func BuildView(poolID string, snap *models.SensorSnapshot, status *models.ActionStatus) View {
	v := View{
		PoolID:   poolID,
		VideoSrc: VideoPath(poolID),
	}
	v.Food, v.Behavior = neutralIndicators()

	if snap == nil {
		v.LastUpdate = UnavailableText
		v.Fields = make([]Field, 0, len(models.Sensors))
		for _, s := range models.Sensors {
			v.Fields = append(v.Fields, Field{Sensor: s, Name: s.Info().Name, Text: placeholder})
		}
		return v
	}

	v.Available = true
	v.LastUpdate = models.FormatTimestamp(snap.Timestamp)
	v.Fields = make([]Field, 0, len(models.Sensors))
	for _, s := range models.Sensors {
		v.Fields = append(v.Fields, Field{
			Sensor:   s,
			Name:     s.Info().Name,
			Text:     FormatValue(s, snap.Value(s)),
			Abnormal: snap.IsAbnormal(s),
		})
	}

	if status != nil {
		v.Food = indicator("餵食", status.Food)
		v.Behavior = indicator("行為", status.Behavior)
	}
	return v
}

// Field returns the field for sensor, if present.
func (v View) Field(sensor models.Sensor) (Field, bool) {
	for _, f := range v.Fields {
		if f.Sensor == sensor {
			return f, true
		}
	}
	return Field{}, false
}
