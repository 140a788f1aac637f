package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/tabautoml/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set tabautoml configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		pairs := make([][2]string, 0, len(config.Keys))
		for _, k := range config.Keys {
			v, err := cfg.Get(k)
			if err != nil {
				return err
			}
			pairs = append(pairs, [2]string{k, v})
		}
		return printPairs(cmd.OutOrStdout(), pairs)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		// フラグの上書きを保存しないよう読み直す
		c, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if err := c.Set(key, val); err != nil {
			return err
		}
		if err := config.Save(c, cfgFile); err != nil {
			return err
		}
		cfg = c
		v, _ := c.Get(key)
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Set %s = %s\n", key, v)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
