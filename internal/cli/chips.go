package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// chipInfo is the JSON form of one chip descriptor.
type chipInfo struct {
	Name      string   `json:"name"`
	MCUName   string   `json:"mcu_name"`
	PinMin    int      `json:"pin_min"`
	PinMax    int      `json:"pin_max"`
	Instances []string `json:"instances"`
	Source    string   `json:"source"`
}

func newChipsCmd(a *app) *cobra.Command {
	var chipFiles []string
	cmd := &cobra.Command{
		Use:   "chips",
		Short: "List the known chip descriptors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry(&targetFlags{chipFiles: chipFiles})
			if err != nil {
				return err
			}
			var infos []chipInfo
			for _, name := range reg.Names() {
				d, err := reg.Lookup(name)
				if err != nil {
					return sysError(err)
				}
				src := d.Source
				if src == "" {
					src = "builtin"
				}
				infos = append(infos, chipInfo{
					Name: d.Name, MCUName: d.MCUName, PinMin: d.PinMin, PinMax: d.PinMax,
					Instances: d.Instances, Source: src,
				})
			}

			out := cmd.OutOrStdout()
			if a.flags.jsonMode {
				return writeJSON(out, infos)
			}
			for _, c := range infos {
				fmt.Fprintf(out, "%-10s %-10s pins %d-%d  %s\n", c.Name, c.MCUName, c.PinMin, c.PinMax, strings.Join(c.Instances, " "))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&chipFiles, "chip-file", nil, "additional chip descriptor YAML (repeatable)")
	return cmd
}
