// Package rules ships builtin mesh rulesets. The Clos ruleset wires a
// leaf-spine fabric: eBGP underlay sessions between tors and spines over
// physical links, and an iBGP overlay from tors to route reflectors over
// loopbacks.
package rules

import (
	"fmt"

	"github.com/peermesh-network/peermesh/pkg/peermesh/bgp"
	"github.com/peermesh-network/peermesh/pkg/peermesh/mesh"
)

// closLAGBase offsets LAG ids derived from the remote device index, keeping
// them clear of hand-assigned low ids.
const closLAGBase = 100

// ClosConfig parameterizes the Clos ruleset. Device roles are recognized by
// hostname prefix: tor-N, spine-N, rr-N, optionally under Domain.
type ClosConfig struct {
	Domain      string   // dns suffix for all role patterns, e.g. "dc1.example.net"
	TorASBase   int      // tor-N gets AS TorASBase+N
	SpineAS     int      // shared spine AS
	OverlayAS   int      // iBGP overlay AS for route reflector sessions
	Families    []string // underlay address families; defaults to ipv4-unicast
	LAGMinLinks int      // min_links for auto-created LAGs; 0 leaves it unset
}

// Clos builds the ruleset registry for the given fabric parameters.
func Clos(cfg ClosConfig) *mesh.Registry {
	tor := rolePattern("tor-*", cfg.Domain)
	spine := rolePattern("spine-*", cfg.Domain)
	rr := rolePattern("rr-*", cfg.Domain)

	families := cfg.Families
	if len(families) == 0 {
		families = []string{"ipv4-unicast"}
	}

	reg := mesh.NewRegistry()

	reg.Global(tor, func(g *mesh.GlobalContext) {
		g.LocalAS = mesh.Set(cfg.TorASBase + g.Matched.Int(1, 0))
		g.LogNeighborChanges = mesh.Set(true)
		if lp := LoopbackOf(g.Device); lp != "" {
			g.RouterID = mesh.Set(lp)
		}
	})

	reg.Global(spine, func(g *mesh.GlobalContext) {
		g.LocalAS = mesh.Set(cfg.SpineAS)
		g.LogNeighborChanges = mesh.Set(true)
		g.MultipathRelax = mesh.Set(true)
		if lp := LoopbackOf(g.Device); lp != "" {
			g.RouterID = mesh.Set(lp)
		}
	})

	reg.Global(rr, func(g *mesh.GlobalContext) {
		g.LocalAS = mesh.Set(cfg.OverlayAS)
		g.LogNeighborChanges = mesh.Set(true)
		if lp := LoopbackOf(g.Device); lp != "" {
			g.RouterID = mesh.Set(lp)
		}
		g.Groups = append(g.Groups, bgp.PeerGroup{
			Name:        "RR_CLIENTS",
			RemoteAS:    cfg.OverlayAS,
			Description: "overlay route reflector clients",
		})
	})

	// Underlay: every tor-spine adjacency gets an eBGP session over the
	// connecting interfaces. Multi-link adjacencies are bundled into a LAG
	// whose id is derived from the remote device index.
	reg.Direct(tor, spine, func(torSide, spineSide *mesh.DirectPeer, session *mesh.Session) {
		torIdx := torSide.Matched.Int(1, 0)
		spineIdx := spineSide.Matched.Int(1, 0)

		torSide.ASN = mesh.Set(cfg.TorASBase + torIdx)
		spineSide.ASN = mesh.Set(cfg.SpineAS)
		torSide.Description = mesh.Set(fmt.Sprintf("underlay to %s", spineSide.Device.FQDN()))
		spineSide.Description = mesh.Set(fmt.Sprintf("underlay to %s", torSide.Device.FQDN()))
		torSide.Interfaces = torSide.Ports
		spineSide.Interfaces = spineSide.Ports

		session.Group = mesh.Set("UNDERLAY")
		session.Families = families

		if len(torSide.Ports) > 1 {
			torSide.LAG = mesh.Set(closLAGBase + spineIdx)
			spineSide.LAG = mesh.Set(closLAGBase + torIdx)
			if cfg.LAGMinLinks > 0 {
				torSide.LAGLinksMin = mesh.Set(cfg.LAGMinLinks)
				spineSide.LAGLinksMin = mesh.Set(cfg.LAGMinLinks)
			}
		}
	})

	// Overlay: every tor peers with every route reflector over loopbacks,
	// connected or not.
	reg.Indirect(tor, rr, func(torSide, rrSide *mesh.IndirectPeer, session *mesh.Session) {
		torSide.ASN = mesh.Set(cfg.OverlayAS)
		rrSide.ASN = mesh.Set(cfg.OverlayAS)
		if lp := LoopbackOf(torSide.Device); lp != "" {
			torSide.Addr = mesh.Set(lp)
		}
		if lp := LoopbackOf(rrSide.Device); lp != "" {
			rrSide.Addr = mesh.Set(lp)
		}
		torSide.Group = mesh.Set("RR")
		rrSide.Group = mesh.Set("RR_CLIENTS")
		session.Families = []string{"ipv4-unicast", "l2vpn-evpn"}
	})

	return reg
}

// rolePattern builds the fqdn pattern for a role prefix under a domain.
func rolePattern(role, domain string) string {
	if domain == "" {
		return role
	}
	return role + "." + domain
}

// LoopbackOf probes a storage device for the loopback address capability.
// Returns "" when the backing store does not expose one.
func LoopbackOf(d mesh.Device) string {
	if p, ok := d.(interface{ LoopbackIP() string }); ok {
		return p.LoopbackIP()
	}
	return ""
}
