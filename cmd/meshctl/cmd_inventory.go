package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInventoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Inspect the topology inventory",
	}
	cmd.AddCommand(newInventoryListCmd())
	return cmd
}

func newInventoryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all device fqdns",
		RunE: func(cmd *cobra.Command, args []string) error {
			storage, _, err := openStorage()
			if err != nil {
				return err
			}
			fqdns, err := storage.ResolveAllFQDNs()
			if err != nil {
				return err
			}
			for _, fqdn := range fqdns {
				fmt.Println(fqdn)
			}
			return nil
		},
	}
}
