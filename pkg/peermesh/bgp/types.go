// Package bgp defines the final BGP configuration objects produced by the
// mesh engine: device-level global options and per-neighbor peering sessions.
package bgp

// GlobalOptions is the device-level BGP configuration.
type GlobalOptions struct {
	LocalAS            int         `yaml:"local_as"`
	RouterID           string      `yaml:"router_id,omitempty"`
	LogNeighborChanges bool        `yaml:"log_neighbor_changes,omitempty"`
	MultipathRelax     bool        `yaml:"multipath_relax,omitempty"`
	Groups             []PeerGroup `yaml:"groups,omitempty"`
}

// PeerGroup is a named template for a class of peering sessions.
type PeerGroup struct {
	Name        string `yaml:"name"`
	RemoteAS    int    `yaml:"remote_as,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// Peer is one resolved BGP peering session on a device.
type Peer struct {
	Hostname       string   `yaml:"hostname"`            // neighbor fqdn
	Addr           string   `yaml:"addr,omitempty"`      // neighbor session address
	LocalAddr      string   `yaml:"local_addr,omitempty"`
	RemoteAS       int      `yaml:"remote_as,omitempty"`
	LocalAS        int      `yaml:"local_as,omitempty"`
	Description    string   `yaml:"description,omitempty"`
	Group          string   `yaml:"group,omitempty"`
	VRF            string   `yaml:"vrf,omitempty"`
	Interfaces     []string `yaml:"interfaces,omitempty"` // local interfaces carrying the session
	Families       []string `yaml:"families,omitempty"`   // activated address families
	ImportPolicies []string `yaml:"import_policies,omitempty"`
	ExportPolicies []string `yaml:"export_policies,omitempty"`
}
