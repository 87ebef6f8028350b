package cmd

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/good-yellow-bee/pondview/internal/dashboard"
	"github.com/good-yellow-bee/pondview/internal/models"
)

func TestTerminalRenderer(t *testing.T) {
	temp := 25.34
	snap := &models.SensorSnapshot{
		Timestamp: "2024-03-01 09:00:00",
		Temp:      &temp,
		Abnormal:  map[models.Sensor]bool{models.SensorTemp: true},
	}
	status := &models.ActionStatus{Food: models.ActionHealth{Abnormal: true, Description: "飼料殘留"}}
	v := dashboard.BuildView("2", snap, status)

	var buf bytes.Buffer
	r := &terminalRenderer{w: &buf}
	if err := r.Render(v); err != nil {
		t.Fatalf("Render: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"池 2  2024/03/01 09:00:00", "25.3 °C", "!", "餵食：異常（飼料殘留）", "行為：正常"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Error("clear sequence written without a terminal")
	}
}

func TestTerminalRendererJSON(t *testing.T) {
	var buf bytes.Buffer
	r := &terminalRenderer{w: &buf, json: true}
	r.Render(dashboard.BuildView("1", nil, nil))
	if !strings.HasPrefix(buf.String(), `{"pool_id":"1"`) || !strings.HasSuffix(buf.String(), "}\n") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestIndicatorText(t *testing.T) {
	tests := []struct {
		in   dashboard.Indicator
		want string
	}{
		{dashboard.Indicator{State: dashboard.IndicatorNeutral}, "--"},
		{dashboard.Indicator{State: dashboard.IndicatorNormal}, "正常"},
		{dashboard.Indicator{State: dashboard.IndicatorAbnormal}, "異常"},
		{dashboard.Indicator{State: dashboard.IndicatorAbnormal, Description: "停滯"}, "異常（停滯）"},
	}
	for _, tt := range tests {
		if got := indicatorText(tt.in); got != tt.want {
			t.Errorf("indicatorText(%+v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		in        string
		wantLower string
		wantUpper string
		wantErr   bool
	}{
		{in: "18:25", wantLower: "18", wantUpper: "25"},
		{in: " 5.5 : 8.5 ", wantLower: "5.5", wantUpper: "8.5"},
		{in: ":300", wantLower: "", wantUpper: "300"},
		{in: "300", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			lower, upper, err := parseRange(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if lower != tt.wantLower || upper != tt.wantUpper {
				t.Errorf("parseRange(%q) = %q, %q", tt.in, lower, upper)
			}
		})
	}
}

func TestPromptConfirmer(t *testing.T) {
	tests := []struct {
		answer string
		want   bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		c := promptConfirmer{in: strings.NewReader(tt.answer), out: &out}
		if got := c.Confirm("是否確認已處理？"); got != tt.want {
			t.Errorf("Confirm(%q) = %v, want %v", tt.answer, got, tt.want)
		}
		if !strings.Contains(out.String(), "是否確認已處理？ [y/N]") {
			t.Errorf("prompt = %q", out.String())
		}
	}
}

func TestTrendRange(t *testing.T) {
	now := time.Date(2024, 3, 2, 12, 0, 0, 0, time.Local)
	defer func() { historyStart, historyEnd, historySpan = "", "", 24*time.Hour }()

	historyStart, historyEnd, historySpan = "", "", 6*time.Hour
	start, end, err := trendRange(now)
	if err != nil || !end.Equal(now) || !start.Equal(now.Add(-6*time.Hour)) {
		t.Errorf("default range = %v ~ %v, %v", start, end, err)
	}

	historyStart, historyEnd = "2024-03-01 00:00:00", "2024-03-01 12:00:00"
	start, end, err = trendRange(now)
	if err != nil || start.Hour() != 0 || end.Hour() != 12 {
		t.Errorf("explicit range = %v ~ %v, %v", start, end, err)
	}

	historyStart, historyEnd = "2024-03-02 00:00:00", "2024-03-01 00:00:00"
	if _, _, err := trendRange(now); err == nil {
		t.Error("expected error for inverted range")
	}

	historyStart = "yesterday"
	if _, _, err := trendRange(now); err == nil {
		t.Error("expected error for bad start")
	}
}

func TestPromptPasswordPiped(t *testing.T) {
	var out bytes.Buffer
	got, err := promptPassword(&out, strings.NewReader("feedtime\n"), -1, "Password: ")
	if err != nil {
		t.Fatalf("promptPassword: %v", err)
	}
	if got != "feedtime" {
		t.Errorf("password = %q", got)
	}
	if out.String() != "Password: " {
		t.Errorf("prompt = %q", out.String())
	}

	got, err = promptPassword(&out, strings.NewReader("no-newline"), -1, "")
	if err != nil || got != "no-newline" {
		t.Errorf("password without newline = %q, %v", got, err)
	}
	if _, err := promptPassword(&out, strings.NewReader(""), -1, ""); err == nil {
		t.Error("expected error on empty input")
	}
}

func TestHashPasswordCommand(t *testing.T) {
	var out bytes.Buffer
	hashPasswordCmd.SetOut(&out)
	defer hashPasswordCmd.SetOut(nil)

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	stdin := os.Stdin
	os.Stdin = r
	defer func() { os.Stdin = stdin }()
	w.WriteString("feedtime\n")
	w.Close()

	if err := hashPasswordCmd.RunE(hashPasswordCmd, nil); err != nil {
		t.Fatalf("hash-password: %v", err)
	}
	hash := strings.TrimSpace(out.String())
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("feedtime")); err != nil {
		t.Errorf("printed hash does not match: %v", err)
	}
}
