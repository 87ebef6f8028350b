package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/good-yellow-bee/pondview/internal/models"
	"github.com/good-yellow-bee/pondview/internal/thresholds"
	"github.com/good-yellow-bee/pondview/internal/web/templates/pages"
)

// ShowThresholds renders the thresholds page, prefilled with the ranges the
// pond server currently applies.
func (h *Handler) ShowThresholds(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if pool := h.resolvePool(r, sess); pool != "" {
		if err := sess.Thresholds.Load(r.Context(), h.api, pool); err != nil {
			h.logger.Warn("prefill thresholds failed", zap.String("pool", pool), zap.Error(err))
		}
	}
	h.render(w, r, http.StatusOK, pages.Thresholds(h.page(r, "閾值設定", "thresholds"), sess.Thresholds.View()))
}

// rangeResponse is one normalized slider.
type rangeResponse struct {
	Sensor      models.Sensor `json:"sensor"`
	Lower       string        `json:"lower"`
	Upper       string        `json:"upper"`
	LowerHandle float64       `json:"lower_handle"`
	UpperHandle float64       `json:"upper_handle"`
	Label       string        `json:"label"`
}

// NormalizeRange applies an edit of one slider and returns the normalized
// range. Typed text goes in "lower"/"upper"; a handle drag sends numeric
// "lower_handle"/"upper_handle".
func (h *Handler) NormalizeRange(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sensor := models.Sensor(r.FormValue("sensor"))

	var (
		rng thresholds.Range
		err error
	)
	lowerHandle, lerr := strconv.ParseFloat(r.FormValue("lower_handle"), 64)
	upperHandle, uerr := strconv.ParseFloat(r.FormValue("upper_handle"), 64)
	if lerr == nil && uerr == nil {
		rng, err = sess.Thresholds.SetHandles(sensor, lowerHandle, upperHandle)
	} else {
		rng, err = sess.Thresholds.SetInputs(sensor, r.FormValue("lower"), r.FormValue("upper"))
	}
	if errors.Is(err, thresholds.ErrUnknownSensor) {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, rangeResponse{
		Sensor:      rng.Sensor,
		Lower:       rng.InputText(rng.Lower),
		Upper:       rng.InputText(rng.Upper),
		LowerHandle: rng.Lower,
		UpperHandle: rng.Upper,
		Label:       rng.Label(),
	})
}

// SaveThresholds applies every submitted range and saves them as one batch.
func (h *Handler) SaveThresholds(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	for _, s := range models.Sensors {
		lower, upper := string(s)+"_min", string(s)+"_max"
		if !r.PostForm.Has(lower) && !r.PostForm.Has(upper) {
			continue
		}
		cur, _ := sess.Thresholds.Range(s)
		lowerText, upperText := r.PostForm.Get(lower), r.PostForm.Get(upper)
		if !r.PostForm.Has(lower) {
			lowerText = cur.InputText(cur.Lower)
		}
		if !r.PostForm.Has(upper) {
			upperText = cur.InputText(cur.Upper)
		}
		sess.Thresholds.SetInputs(s, lowerText, upperText)
	}

	status := http.StatusOK
	if err := sess.Thresholds.Submit(r.Context()); err != nil {
		status = http.StatusBadGateway
	}
	if wantsJSON(r) {
		writeJSON(w, status, sess.Thresholds.View())
		return
	}
	h.render(w, r, http.StatusOK, pages.ThresholdsForm(sess.Thresholds.View()))
}
