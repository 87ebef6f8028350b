package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/good-yellow-bee/pondview/internal/alerts"
	"github.com/good-yellow-bee/pondview/internal/models"
	"github.com/good-yellow-bee/pondview/internal/web/templates/pages"
)

// filterFromRequest merges the pool and event parameters into the current
// filter. It reports whether either parameter was present.
func filterFromRequest(r *http.Request, current alerts.Filter) (alerts.Filter, bool) {
	q := r.URL.Query()
	f := current
	changed := false
	if q.Has("pool") {
		f.Pool = q.Get("pool")
		changed = true
	}
	if q.Has("event") {
		f.Event = q.Get("event")
		changed = true
	}
	return f.Normalize(), changed
}

// ShowAlerts renders the alerts page, querying with the current filter.
func (h *Handler) ShowAlerts(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	f, _ := filterFromRequest(r, sess.Alerts.Filter())
	sess.Alerts.Query(r.Context(), f)

	h.render(w, r, http.StatusOK, pages.Alerts(h.page(r, "異常事件", "alerts"), pages.AlertsData{
		Pools: h.Pools(),
		Table: sess.Alerts.View(),
	}))
}

// AlertsTable re-queries when the filter changes and moves to the requested
// page, then returns the table fragment (or JSON).
func (h *Handler) AlertsTable(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if f, changed := filterFromRequest(r, sess.Alerts.Filter()); changed || r.URL.Query().Has("refresh") {
		sess.Alerts.Query(r.Context(), f)
	}
	if page := r.URL.Query().Get("page"); page != "" {
		if n, err := strconv.Atoi(page); err == nil {
			sess.Alerts.SetPage(n)
		}
	}
	h.writeTable(w, r, sess.Alerts, nil)
}

func (h *Handler) writeTable(w http.ResponseWriter, r *http.Request, t *alerts.Table, actionErr error) {
	flash := alerts.ErrorText(actionErr)
	if wantsJSON(r) {
		status := http.StatusOK
		switch {
		case errors.Is(actionErr, alerts.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(actionErr, alerts.ErrInFlight), errors.Is(actionErr, alerts.ErrAlreadyHandled):
			status = http.StatusConflict
		case actionErr != nil:
			status = http.StatusBadGateway
		}
		writeJSON(w, status, struct {
			alerts.TableView
			Error string `json:"error,omitempty"`
		}{t.View(), flash})
		return
	}
	// htmx only swaps 2xx responses; the flash carries the failure.
	h.render(w, r, http.StatusOK, pages.AlertsTable(t.View(), flash))
}

// MarkAlertHandled marks one alert handled. The browser has already asked
// the operator to confirm.
func (h *Handler) MarkAlertHandled(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	id := models.AlertID(chi.URLParam(r, "id"))
	err := sess.Alerts.MarkHandled(r.Context(), id, alerts.Confirmed)
	if err != nil {
		h.logger.Debug("mark handled rejected", zap.String("alert_id", string(id)), zap.Error(err))
	}
	h.writeTable(w, r, sess.Alerts, err)
}

// NotifyAlert sends or resends the notification of one alert.
func (h *Handler) NotifyAlert(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	id := models.AlertID(chi.URLParam(r, "id"))
	err := sess.Alerts.Notify(r.Context(), id)
	if err != nil {
		h.logger.Debug("notify rejected", zap.String("alert_id", string(id)), zap.Error(err))
	}
	h.writeTable(w, r, sess.Alerts, err)
}

// ExportAlerts downloads the cached result set as an xlsx workbook.
func (h *Handler) ExportAlerts(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	filename := "alerts_" + h.now().Format("20060102_150405") + ".xlsx"
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := sess.Alerts.Export(w); err != nil {
		h.logger.Error("export alerts failed", zap.Error(err))
	}
}

