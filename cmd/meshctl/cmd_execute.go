package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/peermesh-network/peermesh/pkg/peermesh/inventory"
	"github.com/peermesh-network/peermesh/pkg/peermesh/mesh"
	"github.com/peermesh-network/peermesh/pkg/peermesh/rules"
)

// executeOutput is the YAML document printed per device: the mesh result
// plus the planned interface changes, when the backend records them.
type executeOutput struct {
	Device  string               `yaml:"device"`
	Result  *mesh.ExecutionResult `yaml:"result"`
	Changes *inventory.ChangeSet  `yaml:"planned_changes,omitempty"`
}

func newExecuteCmd() *cobra.Command {
	var deviceName string

	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Compute BGP mesh result for a device",
		Long: `Execute the builtin Clos ruleset for one device and print the resulting
global BGP options, peering sessions and planned interface changes.

  meshctl execute -t topology.yaml -d tor-1.dc1.example.net`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if deviceName == "" {
				return fmt.Errorf("device is required: use -d <fqdn>")
			}

			storage, inv, err := openStorage()
			if err != nil {
				return err
			}

			devices, err := storage.MakeDevices(deviceName)
			if err != nil {
				return err
			}
			device := devices[0]

			registry := rules.Clos(rules.ClosConfig{
				Domain:      closDomain,
				TorASBase:   closTorASBase,
				SpineAS:     closSpineAS,
				OverlayAS:   closOverlayAS,
				LAGMinLinks: closMinLinks,
			})

			executor := mesh.NewExecutor(registry, storage)
			result, err := executor.ExecuteFor(device)
			if err != nil {
				return fmt.Errorf("executing mesh for %s: %w", deviceName, err)
			}

			out := executeOutput{Device: deviceName, Result: result}
			if inv != nil {
				if d, ok := inv.Device(deviceName); ok && !d.Changes().IsEmpty() {
					out.Changes = d.Changes()
				}
			}
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVarP(&deviceName, "device", "d", "", "Device fqdn to execute for")
	return cmd
}
