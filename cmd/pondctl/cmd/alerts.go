package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/good-yellow-bee/pondview/internal/alerts"
	"github.com/good-yellow-bee/pondview/internal/models"
)

var (
	alertsPool  string
	alertsEvent string
	alertsPage  int
	alertsYes   bool
	alertsFile  string
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List and act on abnormal events",
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List abnormal events, one page at a time",
	Long: `List abnormal events matching a pond and event filter.

Event filters: allodd, waterodd, actionodd, foododd.

Examples:
  pondctl alerts list
  pondctl alerts list --pool 2 --event foododd --page 3`,
	RunE: runAlertsList,
}

var alertsHandleCmd = &cobra.Command{
	Use:   "handle <id>",
	Short: "Mark an abnormal event handled",
	Args:  cobra.ExactArgs(1),
	RunE:  runAlertsHandle,
}

var alertsNotifyCmd = &cobra.Command{
	Use:   "notify <id>",
	Short: "Send or resend the notification of an abnormal event",
	Args:  cobra.ExactArgs(1),
	RunE:  runAlertsNotify,
}

var alertsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the matching abnormal events as an xlsx workbook",
	RunE:  runAlertsExport,
}

func init() {
	rootCmd.AddCommand(alertsCmd)
	alertsCmd.AddCommand(alertsListCmd, alertsHandleCmd, alertsNotifyCmd, alertsExportCmd)

	alertsCmd.PersistentFlags().StringVarP(&alertsPool, "pool", "p", alerts.PoolAll, "pond filter (all for every pond)")
	alertsCmd.PersistentFlags().StringVarP(&alertsEvent, "event", "e", alerts.EventAll, "event filter")
	alertsListCmd.Flags().IntVar(&alertsPage, "page", 1, "page to show")
	alertsHandleCmd.Flags().BoolVarP(&alertsYes, "yes", "y", false, "skip the confirmation prompt")
	alertsExportCmd.Flags().StringVarP(&alertsFile, "file", "f", "", "output file (default: alerts_<time>.xlsx)")
}

// queryTable runs the filter flags against the pond server.
func queryTable(ctx context.Context) (*alerts.Table, error) {
	if !alerts.ValidEvent(alertsEvent) {
		return nil, fmt.Errorf("unknown event filter %q", alertsEvent)
	}
	logger := newLogger()
	client, err := newClient(logger)
	if err != nil {
		return nil, err
	}
	t := alerts.NewTable(client, alerts.Options{Logger: logger})
	if err := t.Query(ctx, alerts.Filter{Pool: alertsPool, Event: alertsEvent}); err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	return t, nil
}

func printTable(w io.Writer, v alerts.TableView) {
	if v.Message != "" {
		fmt.Fprintln(w, v.Message)
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\t池號\t事件類型\t描述\t發生時間\t結束時間\t狀態\t通知")
	for _, row := range v.Rows {
		a := row.Alert
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			a.ID, a.Pool, a.Type, a.Description, row.Time, row.EndTime, row.Status.Label, row.Notify.Label)
	}
	tw.Flush()
	fmt.Fprintln(w, v.PageLabel)
}

func runAlertsList(cmd *cobra.Command, args []string) error {
	t, err := queryTable(cmd.Context())
	if err != nil {
		return err
	}
	t.SetPage(alertsPage)
	v := t.View()
	if GetOutput() == "json" {
		return printJSON(v)
	}
	printTable(os.Stdout, v)
	return nil
}

// promptConfirmer asks on a terminal and reads the answer from in.
type promptConfirmer struct {
	in  io.Reader
	out io.Writer
}

func (p promptConfirmer) Confirm(prompt string) bool {
	fmt.Fprintf(p.out, "%s [y/N] ", prompt)
	answer, _ := bufio.NewReader(p.in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

func runAlertsHandle(cmd *cobra.Command, args []string) error {
	var confirmer alerts.Confirmer = alerts.Confirmed
	if !alertsYes {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("refusing to mark handled without a terminal; pass --yes")
		}
		confirmer = promptConfirmer{in: os.Stdin, out: os.Stdout}
	}

	t, err := queryTable(cmd.Context())
	if err != nil {
		return err
	}
	id := models.AlertID(args[0])
	if err := t.MarkHandled(cmd.Context(), id, confirmer); err != nil {
		if text := alerts.ErrorText(err); text != "" {
			return fmt.Errorf("%s", text)
		}
		fmt.Println("已取消")
		return nil
	}
	a, _ := t.Alert(id)
	fmt.Printf("%s: %s\n", id, a.DisplayStatus())
	return nil
}

func runAlertsNotify(cmd *cobra.Command, args []string) error {
	t, err := queryTable(cmd.Context())
	if err != nil {
		return err
	}
	id := models.AlertID(args[0])
	if err := t.Notify(cmd.Context(), id); err != nil {
		return fmt.Errorf("%s", alerts.ErrorText(err))
	}
	a, _ := t.Alert(id)
	fmt.Printf("%s: 已通知 %d 次（%s）\n", id, a.NotifyCount, a.NotifiedAt)
	return nil
}

func runAlertsExport(cmd *cobra.Command, args []string) error {
	t, err := queryTable(cmd.Context())
	if err != nil {
		return err
	}
	path := alertsFile
	if path == "" {
		path = "alerts_" + time.Now().Format("20060102_150405") + ".xlsx"
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if err := t.Export(f); err != nil {
		f.Close()
		return fmt.Errorf("export alerts: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close export file: %w", err)
	}
	fmt.Printf("Exported %d alerts to %s\n", t.Len(), path)
	return nil
}
