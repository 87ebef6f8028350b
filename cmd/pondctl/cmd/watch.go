package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/good-yellow-bee/pondview/internal/dashboard"
)

var (
	watchPool     string
	watchPools    []string
	watchInterval time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the live readings of a pond",
	Long: `Poll one pond and redraw its readings on every refresh.

Type another pond number and press enter to switch ponds; q quits.

Examples:
  # Watch pond 1 every 5 seconds
  pondctl watch

  # Watch pond 3 every 2 seconds, as JSON lines
  pondctl watch --pool 3 --interval 2s -o json`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVarP(&watchPool, "pool", "p", "1", "pond to watch")
	watchCmd.Flags().StringSliceVar(&watchPools, "pools", []string{"1", "2", "3", "4"}, "ponds that can be switched to")
	watchCmd.Flags().DurationVarP(&watchInterval, "interval", "i", dashboard.DefaultInterval, "refresh period")
}

// terminalRenderer draws dashboard views as text.
type terminalRenderer struct {
	w     io.Writer
	clear bool // redraw in place on a terminal
	json  bool
}

func indicatorText(in dashboard.Indicator) string {
	switch in.State {
	case dashboard.IndicatorNormal:
		return "正常"
	case dashboard.IndicatorAbnormal:
		if in.Description != "" {
			return "異常（" + in.Description + "）"
		}
		return "異常"
	}
	return "--"
}

func (r *terminalRenderer) Render(v dashboard.View) error {
	if r.json {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(r.w, string(data))
		return err
	}

	var b strings.Builder
	if r.clear {
		b.WriteString("\033[H\033[2J")
	}
	fmt.Fprintf(&b, "池 %s  %s\n", v.PoolID, v.LastUpdate)
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	for _, f := range v.Fields {
		mark := ""
		if f.Abnormal {
			mark = "!"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", f.Name, f.Text, mark)
	}
	tw.Flush()
	fmt.Fprintf(&b, "  %s：%s  %s：%s\n", v.Food.Name, indicatorText(v.Food), v.Behavior.Name, indicatorText(v.Behavior))
	_, err := io.WriteString(r.w, b.String())
	return err
}

func runWatch(cmd *cobra.Command, args []string) error {
	if !slices.Contains(watchPools, watchPool) {
		return fmt.Errorf("unknown pool %q (known: %s)", watchPool, strings.Join(watchPools, ", "))
	}

	logger := newLogger()
	client, err := newClient(logger)
	if err != nil {
		return err
	}

	renderer := &terminalRenderer{
		w:     os.Stdout,
		clear: term.IsTerminal(int(os.Stdout.Fd())),
		json:  GetOutput() == "json",
	}
	poller := dashboard.NewPoller(client, renderer, dashboard.Options{Interval: watchInterval, Logger: logger})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	poller.SelectPool(watchPool)
	go readPoolSwitches(ctx, os.Stdin, poller, cancel)

	if err := poller.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// readPoolSwitches switches the poller to every known pond typed on in. q
// stops watching.
func readPoolSwitches(ctx context.Context, in io.Reader, poller *dashboard.Poller, stop func()) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "q" || line == "quit":
			stop()
			return
		case slices.Contains(watchPools, line):
			poller.Select(ctx, line)
		default:
			fmt.Fprintf(os.Stderr, "unknown pool %q\n", line)
		}
	}
	// Input closed (e.g. stdin redirected from /dev/null); keep watching.
}
