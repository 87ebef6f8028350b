package cmd

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/pondview/internal/history"
	"github.com/good-yellow-bee/pondview/internal/models"
)

var (
	historyPool   string
	historyStart  string
	historyEnd    string
	historySpan   time.Duration
	historyMetric string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect sensor history",
}

var historyTrendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Summarize the trend of one metric across ponds",
	Long: `Fetch history for a time range and summarize one metric per pond,
after the same downsampling the dashboard chart applies.

Examples:
  pondctl history trend --metric do
  pondctl history trend --start "2024-03-01 00:00:00" --end "2024-03-02 00:00:00"`,
	RunE: runHistoryTrend,
}

var historyLinesCmd = &cobra.Command{
	Use:   "lines",
	Short: "Show the latest readings of a pond",
	RunE:  runHistoryLines,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyTrendCmd, historyLinesCmd)

	historyTrendCmd.Flags().StringVar(&historyStart, "start", "", "range start, "+history.RangeLayout+" (default: end - span)")
	historyTrendCmd.Flags().StringVar(&historyEnd, "end", "", "range end, "+history.RangeLayout+" (default: now)")
	historyTrendCmd.Flags().DurationVar(&historySpan, "span", 24*time.Hour, "range length when start is not given")
	historyTrendCmd.Flags().StringVarP(&historyMetric, "metric", "m", "", "metric (temp, psu, ph, do, orp; default: first with data)")
	historyLinesCmd.Flags().StringVarP(&historyPool, "pool", "p", "1", "pond")
}

// trendRange resolves the start and end flags.
func trendRange(now time.Time) (time.Time, time.Time, error) {
	end := now
	if historyEnd != "" {
		t, err := time.ParseInLocation(history.RangeLayout, historyEnd, time.Local)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("--end: %w", err)
		}
		end = t
	}
	start := end.Add(-historySpan)
	if historyStart != "" {
		t, err := time.ParseInLocation(history.RangeLayout, historyStart, time.Local)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("--start: %w", err)
		}
		start = t
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start must be before end")
	}
	return start, end, nil
}

func runHistoryTrend(cmd *cobra.Command, args []string) error {
	start, end, err := trendRange(time.Now())
	if err != nil {
		return err
	}
	client, err := newClient(newLogger())
	if err != nil {
		return err
	}

	trend := history.NewTrend(nil)
	if err := trend.Load(cmd.Context(), client, start, end); err != nil {
		return err
	}
	if historyMetric != "" {
		if err := trend.SelectMetric(models.Sensor(historyMetric)); err != nil {
			return err
		}
	}
	trend.Open()
	v := trend.View()
	if GetOutput() == "json" {
		return printJSON(v)
	}
	if v.Error != "" {
		fmt.Println(v.Error)
		return nil
	}

	fmt.Println(v.Title)
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "池\t點數\t最後時間\t最後數值")
	for _, s := range v.Series {
		last := s.Data[len(s.Data)-1]
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", s.Name, len(s.Data),
			time.UnixMilli(last.T).Format(models.DisplayLayout), strconv.FormatFloat(last.V, 'f', -1, 64))
	}
	tw.Flush()
	return nil
}

func runHistoryLines(cmd *cobra.Command, args []string) error {
	client, err := newClient(newLogger())
	if err != nil {
		return err
	}
	charts, err := history.LoadLineCharts(cmd.Context(), client, historyPool)
	if err != nil {
		return err
	}
	if GetOutput() == "json" {
		return printJSON(charts)
	}
	if len(charts) == 0 || len(charts[0].Labels) == 0 {
		fmt.Println("沒有資料")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprint(tw, "時間")
	for _, c := range charts {
		fmt.Fprintf(tw, "\t%s", c.Label)
	}
	fmt.Fprintln(tw)
	for i, label := range charts[0].Labels {
		fmt.Fprint(tw, label)
		for _, c := range charts {
			text := "-"
			if v := c.Values[i]; v.Finite() {
				text = strconv.FormatFloat(float64(v), 'f', c.Sensor.Info().Decimals, 64)
			}
			fmt.Fprintf(tw, "\t%s", text)
		}
		fmt.Fprintln(tw)
	}
	tw.Flush()
	return nil
}
