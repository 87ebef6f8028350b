package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/good-yellow-bee/pondview/internal/history"
	"github.com/good-yellow-bee/pondview/internal/models"
	"github.com/good-yellow-bee/pondview/internal/web/templates/pages"
)

// ShowHistory renders the history page.
func (h *Handler) ShowHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	pool := h.resolvePool(r, sess)
	end := h.now()
	h.render(w, r, http.StatusOK, pages.History(h.page(r, "歷史資料", "history"), pages.HistoryData{
		Pools: h.Pools(),
		Pool:  pool,
		Start: end.Add(-h.historySpan).Format(pages.DateTimeInput),
		End:   end.Format(pages.DateTimeInput),
	}))
}

// parseRangeTime accepts the datetime-local layout and the history range
// layout.
func parseRangeTime(s string) (time.Time, bool) {
	for _, layout := range []string{pages.DateTimeInput, history.RangeLayout} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Trend returns the trend modal as JSON. When start or end is given the
// dataset is reloaded for that range; when metric is given it is selected.
func (h *Handler) Trend(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	tr := sess.Trend

	if q.Has("start") || q.Has("end") || q.Has("reload") {
		end, ok := parseRangeTime(q.Get("end"))
		if !ok {
			end = h.now()
		}
		start, ok := parseRangeTime(q.Get("start"))
		if !ok {
			start = end.Add(-h.historySpan)
		}
		if !start.Before(end) {
			writeJSONError(w, http.StatusBadRequest, "start must be before end")
			return
		}
		if err := tr.Load(r.Context(), h.api, start, end); err != nil {
			h.logger.Warn("load history failed", zap.Error(err))
			writeJSONError(w, http.StatusBadGateway, "無法取得歷史資料")
			return
		}
	}

	if metric := q.Get("metric"); metric != "" {
		if err := tr.SelectMetric(models.Sensor(metric)); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if q.Get("close") == "1" {
		tr.Close()
	} else {
		tr.Open()
	}
	writeJSON(w, http.StatusOK, tr.View())
}

// LineCharts returns the fixed per-sensor charts of one pond as JSON.
func (h *Handler) LineCharts(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	pool := h.resolvePool(r, sess)
	charts, err := history.LoadLineCharts(r.Context(), h.api, pool)
	if err != nil {
		h.logger.Warn("load line charts failed", zap.String("pool", pool), zap.Error(err))
		writeJSONError(w, http.StatusBadGateway, "無法取得歷史資料")
		return
	}
	writeJSON(w, http.StatusOK, charts)
}
