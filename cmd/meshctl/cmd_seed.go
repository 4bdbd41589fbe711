package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/peermesh-network/peermesh/pkg/peermesh/inventory"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load a topology YAML file into Redis",
		Long: `Seed the Redis topology store from a YAML file, replacing existing
topology keys.

  meshctl seed -t topology.yaml --redis localhost:6379`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if topologyPath == "" {
				return fmt.Errorf("topology file is required: use -t <file>")
			}
			if redisAddr == "" {
				return fmt.Errorf("redis address is required: use --redis <addr>")
			}

			inv, err := inventory.Load(topologyPath)
			if err != nil {
				return err
			}
			store := inventory.NewRedisStore(redisAddr)
			defer store.Close()
			if err := store.Ping(); err != nil {
				return fmt.Errorf("connecting to Redis at %s: %w", redisAddr, err)
			}
			return store.Seed(inv)
		},
	}
}
