package alerts

import (
	"fmt"

	"github.com/good-yellow-bee/pondview/internal/models"
)

// Button is the rendered state of a row action.
type Button struct {
	Label    string `json:"label"`
	Disabled bool   `json:"disabled"`
}

// Row is one rendered table row.
type Row struct {
	Alert   models.Alert `json:"alert"`
	Time    string       `json:"time"`
	EndTime string       `json:"end_time"`
	Status  Button       `json:"status"`
	Notify  Button       `json:"notify"`
}

// TableView is the rendered current page.
type TableView struct {
	Filter       Filter `json:"filter"`
	Rows         []Row  `json:"rows"`
	Message      string `json:"message,omitempty"` // replaces the rows when set
	Page         int    `json:"page"`
	TotalPages   int    `json:"total_pages"`
	PageLabel    string `json:"page_label"`
	PrevDisabled bool   `json:"prev_disabled"`
	NextDisabled bool   `json:"next_disabled"`
}

// PageLabel formats the pagination label.
func PageLabel(page, total int) string {
	return fmt.Sprintf("第 %d 頁（共 %d 頁）", page, total)
}

// NotifyButtonLabel returns the notify button label for a, based on its
// notify count.
func NotifyButtonLabel(a models.Alert) string {
	if a.NotifyCount > 0 {
		return RenotifyLabel
	}
	return NotifyLabel
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// View renders the current page.
func (t *Table) View() TableView {
	t.mu.Lock()
	defer t.mu.Unlock()

	v := TableView{Filter: t.filter, Rows: []Row{}}

	if t.queryErr != "" {
		v.Message = fmt.Sprintf(queryFailedText, t.queryErr)
		v.PrevDisabled, v.NextDisabled = true, true
		return v
	}

	total := t.totalPagesLocked()
	if total == 0 {
		v.Message = EmptyText
		v.PageLabel = PageLabel(0, 0)
		v.PrevDisabled, v.NextDisabled = true, true
		return v
	}

	page := t.pageLocked()
	start := (page - 1) * t.pageSize
	end := min(start+t.pageSize, len(t.alerts))
	for _, a := range t.alerts[start:end] {
		v.Rows = append(v.Rows, Row{
			Alert:   a,
			Time:    orDash(a.Time),
			EndTime: orDash(a.EndTime),
			Status:  Button{Label: a.DisplayStatus(), Disabled: a.Handled() || t.pending[pendingKey{a.ID, actionStatus}]},
			Notify:  Button{Label: NotifyButtonLabel(a), Disabled: t.pending[pendingKey{a.ID, actionNotify}]},
		})
	}

	v.Page = page
	v.TotalPages = total
	v.PageLabel = PageLabel(page, total)
	v.PrevDisabled = page == 1
	v.NextDisabled = page == total
	return v
}
