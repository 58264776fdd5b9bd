package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/haskel/pstated/internal/config"
	"github.com/haskel/pstated/internal/device"
	"github.com/haskel/pstated/internal/domain"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the GPUs the controller would manage",
	Long: `Load both NVIDIA libraries, correlate their device lists by PCI bus and
print one row per GPU. Performance states are not changed.`,
	RunE: runDevices,
}

func init() {
	addLibraryFlags(devicesCmd)
	rootCmd.AddCommand(devicesCmd)
}

// Colors
var (
	colorPrimary   = lipgloss.Color("86")  // Cyan
	colorSecondary = lipgloss.Color("240") // Gray
	colorSuccess   = lipgloss.Color("82")  // Green
	colorWarning   = lipgloss.Color("214") // Orange
	colorDanger    = lipgloss.Color("196") // Red
)

// Styles
var (
	tableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorPrimary).
				BorderBottom(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(colorSecondary)

	tableCellStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))
)

func runDevices(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	ctl, mon, err := openLibraries(cfg, ctlFlags.simulate)
	if err != nil {
		return err
	}

	infos, err := listDevices(ctl, mon)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		data, err := json.MarshalIndent(infos, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	renderDevices(out, infos, cfg)
	return nil
}

// listDevices binds both libraries, describes every correlated GPU and
// releases the libraries again.
func listDevices(ctl domain.ControlLibrary, mon domain.MonitoringLibrary) (infos []device.Info, err error) {
	if err := ctl.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize control library: %w", err)
	}
	defer func() {
		if uerr := ctl.Unload(); uerr != nil {
			err = errors.Join(err, fmt.Errorf("unload control library: %w", uerr))
		}
	}()

	if err := mon.Init(); err != nil {
		return nil, fmt.Errorf("initialize monitoring library: %w", err)
	}
	defer func() {
		if serr := mon.Shutdown(); serr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown monitoring library: %w", serr))
		}
	}()

	topo, err := device.Discover(ctl, mon)
	if err != nil {
		return nil, err
	}
	return device.Describe(mon, topo)
}

func renderDevices(w io.Writer, infos []device.Info, cfg *config.Config) {
	managed, _, _ := device.Select(len(infos), cfg.Controller.ManagedIDs())

	header := fmt.Sprintf("%-4s %-32s %6s %8s %6s %8s", "ID", "NAME", "BUS", "TEMP", "UTIL", "MANAGED")
	lines := []string{tableHeaderStyle.Render(header)}

	for _, info := range infos {
		name := info.Name
		if len(name) > 32 {
			name = name[:31] + "…"
		}

		isManaged := managed != nil && managed[info.Index]
		row := fmt.Sprintf("%-4d %-32s %6d %s %5d%% %8s",
			info.Index,
			name,
			info.Bus,
			temperatureStyle(info.Temperature, cfg.Controller.TemperatureThreshold).Render(fmt.Sprintf("%6dC", info.Temperature)),
			info.Utilization,
			yesNo(isManaged),
		)
		lines = append(lines, tableCellStyle.Render(row))
	}

	fmt.Fprintln(w, strings.Join(lines, "\n"))
}

// temperatureStyle colors a reading relative to the threshold.
func temperatureStyle(temp, threshold uint32) lipgloss.Style {
	style := lipgloss.NewStyle().Width(8).Align(lipgloss.Right)
	switch {
	case temp > threshold:
		return style.Foreground(colorDanger)
	case threshold > 10 && temp > threshold-10:
		return style.Foreground(colorWarning)
	default:
		return style.Foreground(colorSuccess)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
