package cmd

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/keytrainer/internal/audio"
)

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio capture and playback devices",
		Long:  `Lists devices with the index to put in device_index or pass to --device.`,
		Args:  cobra.NoArgs,
		RunE:  runDevices,
	}
}

func runDevices(cmd *cobra.Command, _ []string) error {
	if _, _, err := loadSettings(cmd); err != nil {
		return err
	}

	var all []deviceRow
	for _, dir := range []audio.Direction{audio.Input, audio.Output} {
		infos, err := audio.ListDevices(dir)
		if err != nil {
			return err
		}
		for _, info := range infos {
			all = append(all, deviceRow{dir: dir, info: info})
		}
	}
	renderDevices(cmd.OutOrStdout(), all)
	return nil
}

type deviceRow struct {
	dir  audio.Direction
	info audio.DeviceInfo
}

func renderDevices(w io.Writer, rows []deviceRow) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Direction", "Index", "Name", "Default"})
	for _, r := range rows {
		def := ""
		if r.info.Default {
			def = "*"
		}
		t.AppendRow(table.Row{r.dir, r.info.Index, r.info.Name, def})
	}
	t.Render()
}
