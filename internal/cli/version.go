package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/haskel/pstated/internal/adapters/nvml"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		if jsonOut {
			fmt.Fprintf(out, `{"version":%q,"go":%q,"platform":"%s/%s","go_nvml":%t}`+"\n",
				Version, runtime.Version(), runtime.GOOS, runtime.GOARCH, nvml.GoBackendAvailable)
			return
		}
		fmt.Fprintf(out, "pstated %s (%s, %s/%s, go-nvml backend: %s)\n",
			Version, runtime.Version(), runtime.GOOS, runtime.GOARCH, yesNo(nvml.GoBackendAvailable))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
