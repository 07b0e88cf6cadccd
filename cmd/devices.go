package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/smazurov/spearcam/internal/devices"
	"github.com/spf13/cobra"
)

type deviceListing struct {
	devices.DeviceInfo
	Formats []devices.FormatInfo `json:"formats,omitempty"`
}

// CreateDevicesCmd creates the devices command.
func CreateDevicesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List V4L2 capture devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			listing, err := listDevices(devices.NewDetector())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(listing)
			}
			writeDevices(out, listing)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func listDevices(det devices.Detector) ([]deviceListing, error) {
	found, err := det.FindDevices()
	if err != nil {
		return nil, err
	}
	out := make([]deviceListing, 0, len(found))
	for _, d := range found {
		formats, _ := devices.Describe(det, d.DevicePath)
		out = append(out, deviceListing{DeviceInfo: d, Formats: formats})
	}
	return out, nil
}

func writeDevices(out io.Writer, listing []deviceListing) {
	if len(listing) == 0 {
		fmt.Fprintln(out, "no capture devices found")
		return
	}
	for _, d := range listing {
		fmt.Fprintf(out, "%s  %s  (%s)\n", d.DevicePath, d.DeviceName, d.DeviceID)
		for _, f := range d.Formats {
			sizes := make([]string, len(f.Resolutions))
			for i, r := range f.Resolutions {
				sizes[i] = fmt.Sprintf("%dx%d", r.Width, r.Height)
			}
			emulated := ""
			if f.Emulated {
				emulated = " (emulated)"
			}
			fmt.Fprintf(out, "    %-4s %s%s: %s\n", f.FourCC, f.FormatName, emulated, strings.Join(sizes, " "))
		}
	}
}
