package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/pondview/internal/models"
	"github.com/good-yellow-bee/pondview/internal/settings"
)

var settingsPool string

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Read and change platform settings of a pond",
	Long: `Read and change platform settings of a pond.

Setting types:
  interval  platform raise/lower interval in minutes (1-240)
  feed      feed amount per feeding in grams (1-500)

Values outside the allowed range are clamped.`,
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <type>",
	Short: "Show the stored value of a setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <type> <value>",
	Short: "Change a setting",
	Args:  cobra.ExactArgs(2),
	RunE:  runSettingsSet,
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd)

	settingsCmd.PersistentFlags().StringVarP(&settingsPool, "pool", "p", "1", "pond")
}

// openModal opens a settings modal for the type argument.
func openModal(cmd *cobra.Command, typeArg string) (*settings.Modal, error) {
	settingType, ok := models.ParseSettingType(typeArg)
	if !ok {
		return nil, fmt.Errorf("unknown setting type %q (interval, feed)", typeArg)
	}
	logger := newLogger()
	client, err := newClient(logger)
	if err != nil {
		return nil, err
	}
	m := settings.NewModal(client, settingsPool, logger)
	if err := m.Open(cmd.Context(), settingType); err != nil {
		return nil, err
	}
	return m, nil
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	m, err := openModal(cmd, args[0])
	if err != nil {
		return err
	}
	v := m.View()
	if GetOutput() == "json" {
		return printJSON(v)
	}
	fmt.Printf("池 %s %s\n%s\n", v.PoolID, v.Title, v.Status)
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	m, err := openModal(cmd, args[0])
	if err != nil {
		return err
	}
	m.SetInput(args[1])
	if _, err := m.Submit(cmd.Context()); err != nil {
		return fmt.Errorf("%s", m.View().Error)
	}
	v := m.View()
	if GetOutput() == "json" {
		return printJSON(v)
	}
	fmt.Printf("池 %s %s\n%s\n", v.PoolID, v.Title, v.Status)
	return nil
}
