// Meshctl - BGP mesh computation tool
//
// Computes BGP peering relationships and global BGP options for a device by
// executing the builtin Clos mesh ruleset against a topology inventory.
//
//	meshctl execute -t topology.yaml -d tor-1.dc1     # compute one device
//	meshctl inventory list -t topology.yaml           # show the namespace
//	meshctl seed -t topology.yaml --redis :6379       # load topology into Redis
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/peermesh-network/peermesh/pkg/peermesh/inventory"
	"github.com/peermesh-network/peermesh/pkg/peermesh/mesh"
	"github.com/peermesh-network/peermesh/pkg/util"
)

var (
	// Global option flags
	topologyPath string // -t, --topology
	redisAddr    string // --redis
	verbose      bool   // -v

	// Clos ruleset parameters
	closDomain    string
	closTorASBase int
	closSpineAS   int
	closOverlayAS int
	closMinLinks  int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "meshctl",
	Short:         "BGP mesh computation tool",
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `Meshctl computes BGP peering relationships and global options for network
devices by matching declarative mesh rules against topology.

  meshctl execute -t topology.yaml -d tor-1.dc1.example.net`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			util.SetLogLevel("debug")
		} else {
			util.SetLogLevel("warn")
		}
		// Structured logs when stderr is piped
		if !term.IsTerminal(int(os.Stderr.Fd())) {
			util.SetJSONFormat()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&topologyPath, "topology", "t", "", "Topology YAML file")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis", "", "Redis address for topology storage (overrides -t)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.PersistentFlags().StringVar(&closDomain, "domain", "", "DNS suffix for Clos role patterns")
	rootCmd.PersistentFlags().IntVar(&closTorASBase, "tor-as-base", 65000, "Base AS number for tors")
	rootCmd.PersistentFlags().IntVar(&closSpineAS, "spine-as", 64600, "Shared spine AS number")
	rootCmd.PersistentFlags().IntVar(&closOverlayAS, "overlay-as", 64512, "iBGP overlay AS number")
	rootCmd.PersistentFlags().IntVar(&closMinLinks, "lag-min-links", 0, "min_links for auto-created LAGs")

	rootCmd.AddCommand(newExecuteCmd())
	rootCmd.AddCommand(newInventoryCmd())
	rootCmd.AddCommand(newSeedCmd())
}

// openStorage returns the configured topology storage: Redis when --redis is
// given, otherwise the YAML inventory. The second return value is the
// in-memory inventory when one was loaded (nil for Redis).
func openStorage() (mesh.Storage, *inventory.Inventory, error) {
	if redisAddr != "" {
		store := inventory.NewRedisStore(redisAddr)
		if err := store.Ping(); err != nil {
			return nil, nil, fmt.Errorf("connecting to Redis at %s: %w", redisAddr, err)
		}
		return store, nil, nil
	}
	if topologyPath == "" {
		return nil, nil, fmt.Errorf("no topology source: use -t <file> or --redis <addr>")
	}
	inv, err := inventory.Load(topologyPath)
	if err != nil {
		return nil, nil, err
	}
	return inv, inv, nil
}
