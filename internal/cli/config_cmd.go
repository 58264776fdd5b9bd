package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	Long: `Display the effective configuration: the config file (or defaults) with
controller flags applied on top.`,
	RunE: runConfig,
}

var validateOnly bool

func init() {
	configCmd.Flags().BoolVar(&validateOnly, "validate", false, "only validate config, don't print")
	addControllerFlags(configCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		if jsonOut {
			fmt.Fprintf(out, `{"valid":false,"error":%q}`+"\n", err.Error())
		} else {
			fmt.Fprintf(out, "Configuration invalid: %v\n", err)
		}
		return err
	}

	if validateOnly {
		if jsonOut {
			fmt.Fprintln(out, `{"valid":true}`)
		} else {
			fmt.Fprintln(out, "Configuration is valid")
		}
		return nil
	}

	// Print config
	if jsonOut {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	} else {
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Fprint(out, string(data))
	}

	return nil
}
