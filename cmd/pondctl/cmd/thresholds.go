package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/pondview/internal/models"
	"github.com/good-yellow-bee/pondview/internal/thresholds"
)

var (
	thresholdsPool   string
	thresholdsRanges = map[models.Sensor]*string{}
)

var thresholdsCmd = &cobra.Command{
	Use:   "thresholds",
	Short: "Show and change the acceptable sensor ranges",
}

var thresholdsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the ranges the pond server applies",
	RunE:  runThresholdsShow,
}

var thresholdsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change one or more ranges",
	Long: `Change one or more ranges and save every range as one batch.
Ranges not given keep the values the pond server applies now.
An upper bound at or below the lower bound is raised by one step.

Examples:
  pondctl thresholds set --temp 20:27
  pondctl thresholds set --ph 6:8.5 --orp 200:320`,
	RunE: runThresholdsSet,
}

func init() {
	rootCmd.AddCommand(thresholdsCmd)
	thresholdsCmd.AddCommand(thresholdsShowCmd, thresholdsSetCmd)

	thresholdsCmd.PersistentFlags().StringVarP(&thresholdsPool, "pool", "p", "1", "pond whose snapshot reports the current ranges")
	for _, s := range models.Sensors {
		v := new(string)
		thresholdsRanges[s] = v
		thresholdsSetCmd.Flags().StringVar(v, string(s), "", fmt.Sprintf("%s range as min:max", s.Info().Name))
	}
}

// parseRange splits "min:max". Either side may be empty to keep it.
func parseRange(s string) (lower, upper string, err error) {
	lower, upper, ok := strings.Cut(s, ":")
	if !ok {
		return "", "", fmt.Errorf("range %q must be min:max", s)
	}
	return strings.TrimSpace(lower), strings.TrimSpace(upper), nil
}

func loadForm(cmd *cobra.Command) (*thresholds.Form, error) {
	logger := newLogger()
	client, err := newClient(logger)
	if err != nil {
		return nil, err
	}
	f := thresholds.NewForm(client, models.DefaultThresholds(), thresholds.Options{Logger: logger})
	if err := f.Load(cmd.Context(), client, thresholdsPool); err != nil {
		return nil, err
	}
	return f, nil
}

func printForm(v thresholds.FormView) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "感測器\t下限\t上限")
	for _, r := range v.Ranges {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Name, r.Lower, r.Upper)
	}
	tw.Flush()
}

func runThresholdsShow(cmd *cobra.Command, args []string) error {
	f, err := loadForm(cmd)
	if err != nil {
		return err
	}
	if GetOutput() == "json" {
		return printJSON(f.Thresholds())
	}
	printForm(f.View())
	return nil
}

func runThresholdsSet(cmd *cobra.Command, args []string) error {
	f, err := loadForm(cmd)
	if err != nil {
		return err
	}

	changed := 0
	for _, s := range models.Sensors {
		value := *thresholdsRanges[s]
		if value == "" {
			continue
		}
		lower, upper, err := parseRange(value)
		if err != nil {
			return fmt.Errorf("--%s: %w", s, err)
		}
		cur, _ := f.Range(s)
		if lower == "" {
			lower = cur.InputText(cur.Lower)
		}
		if upper == "" {
			upper = cur.InputText(cur.Upper)
		}
		r, _ := f.SetInputs(s, lower, upper)
		PrintVerbose("%s", r.Label())
		changed++
	}
	if changed == 0 {
		return fmt.Errorf("no range given")
	}

	err = f.Submit(cmd.Context())
	v := f.View()
	if err != nil {
		return fmt.Errorf("%s", v.Message)
	}
	if GetOutput() == "json" {
		return printJSON(v)
	}
	printForm(v)
	fmt.Println(v.Message)
	fmt.Println(v.LastUpdated)
	return nil
}
