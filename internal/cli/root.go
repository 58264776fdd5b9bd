package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	jsonOut bool

	// Version info (set from main)
	Version = "0.1.0"
)

// rootCmd represents the base command. Without a subcommand it runs the
// controller in the foreground, like `pstated run`.
var rootCmd = &cobra.Command{
	Use:   "pstated",
	Short: "Keep idle NVIDIA GPUs in a low performance state",
	Long: `pstated forces idle NVIDIA GPUs into a low performance state and switches
them to a high state as soon as they are busy. GPUs above the temperature
threshold are always kept low. On exit every managed GPU is handed back to
the driver.`,
	SilenceUsage: true,
	RunE:         runController,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if handled, err := runAsService(); handled {
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")

	addControllerFlags(rootCmd)
}

// SetVersion sets the version for the CLI
func SetVersion(v string) {
	Version = v
	rootCmd.Version = v
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// IsJSON returns whether JSON output is enabled
func IsJSON() bool {
	return jsonOut
}
