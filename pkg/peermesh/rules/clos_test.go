package rules

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/peermesh-network/peermesh/pkg/peermesh/bgp"
	"github.com/peermesh-network/peermesh/pkg/peermesh/inventory"
	"github.com/peermesh-network/peermesh/pkg/peermesh/mesh"
)

const closTopology = `
devices:
  - fqdn: tor-1.dc1.example.net
    loopback: 10.255.0.1
  - fqdn: tor-2.dc1.example.net
    loopback: 10.255.0.2
  - fqdn: spine-1.dc1.example.net
    loopback: 10.255.1.1
  - fqdn: rr-1.dc1.example.net
    loopback: 10.255.2.1
links:
  - a: tor-1.dc1.example.net:Ethernet0
    b: spine-1.dc1.example.net:Ethernet100
  - a: tor-1.dc1.example.net:Ethernet4
    b: spine-1.dc1.example.net:Ethernet104
  - a: tor-2.dc1.example.net:Ethernet0
    b: spine-1.dc1.example.net:Ethernet108
`

func closFabric(t *testing.T) (*inventory.Inventory, *mesh.Executor) {
	t.Helper()
	inv, err := inventory.Parse([]byte(closTopology))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	reg := Clos(ClosConfig{
		Domain:      "dc1.example.net",
		TorASBase:   65000,
		SpineAS:     64600,
		OverlayAS:   64512,
		LAGMinLinks: 2,
	})
	return inv, mesh.NewExecutor(reg, inv)
}

func TestClos_Tor(t *testing.T) {
	inv, ex := closFabric(t)
	tor, _ := inv.Device("tor-1.dc1.example.net")

	result, err := ex.ExecuteFor(tor)
	if err != nil {
		t.Fatalf("ExecuteFor: %v", err)
	}

	g := result.GlobalOptions
	if g.LocalAS != 65001 {
		t.Errorf("LocalAS = %d, want 65001", g.LocalAS)
	}
	if g.RouterID != "10.255.0.1" {
		t.Errorf("RouterID = %q, want loopback", g.RouterID)
	}
	if !g.LogNeighborChanges {
		t.Error("LogNeighborChanges not set")
	}

	if len(result.Peers) != 2 {
		t.Fatalf("got %d peers, want 2", len(result.Peers))
	}

	underlay := result.Peers[0]
	if underlay.Hostname != "spine-1.dc1.example.net" {
		t.Fatalf("first peer = %q, want the spine", underlay.Hostname)
	}
	if underlay.LocalAS != 65001 || underlay.RemoteAS != 64600 {
		t.Errorf("underlay AS = (%d, %d), want (65001, 64600)", underlay.LocalAS, underlay.RemoteAS)
	}
	if underlay.Group != "UNDERLAY" {
		t.Errorf("underlay group = %q", underlay.Group)
	}
	if diff := cmp.Diff([]string{"Ethernet0", "Ethernet4"}, underlay.Interfaces); diff != "" {
		t.Errorf("underlay interfaces (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"ipv4-unicast"}, underlay.Families); diff != "" {
		t.Errorf("underlay families (-want +got):\n%s", diff)
	}

	overlay := result.Peers[1]
	if overlay.Hostname != "rr-1.dc1.example.net" {
		t.Fatalf("second peer = %q, want the route reflector", overlay.Hostname)
	}
	if overlay.LocalAS != 64512 || overlay.RemoteAS != 64512 {
		t.Errorf("overlay AS = (%d, %d), want iBGP 64512", overlay.LocalAS, overlay.RemoteAS)
	}
	if overlay.Addr != "10.255.2.1" || overlay.LocalAddr != "10.255.0.1" {
		t.Errorf("overlay addrs = (%q, %q), want loopbacks", overlay.Addr, overlay.LocalAddr)
	}
	if overlay.Group != "RR" {
		t.Errorf("overlay group = %q, want RR", overlay.Group)
	}
	if diff := cmp.Diff([]string{"ipv4-unicast", "l2vpn-evpn"}, overlay.Families); diff != "" {
		t.Errorf("overlay families (-want +got):\n%s", diff)
	}
}

func TestClos_TorAutoLAGOnDualLinks(t *testing.T) {
	inv, ex := closFabric(t)
	tor, _ := inv.Device("tor-1.dc1.example.net")

	if _, err := ex.ExecuteFor(tor); err != nil {
		t.Fatalf("ExecuteFor: %v", err)
	}

	// LAG id derives from the spine index: 100+1
	changes := tor.Changes()
	if !changes.Has("PORTCHANNEL", "PortChannel101") {
		t.Fatalf("no PortChannel101 planned, changes: %+v", changes.Changes)
	}
	if !changes.Has("PORTCHANNEL_MEMBER", "PortChannel101|Ethernet0") ||
		!changes.Has("PORTCHANNEL_MEMBER", "PortChannel101|Ethernet4") {
		t.Errorf("LAG members missing, changes: %+v", changes.Changes)
	}
	for _, c := range changes.Changes {
		if c.Table == "PORTCHANNEL" && c.Key == "PortChannel101" {
			if c.Fields["min_links"] != "2" {
				t.Errorf("min_links = %q, want 2", c.Fields["min_links"])
			}
		}
	}
}

func TestClos_Spine(t *testing.T) {
	inv, ex := closFabric(t)
	spine, _ := inv.Device("spine-1.dc1.example.net")

	result, err := ex.ExecuteFor(spine)
	if err != nil {
		t.Fatalf("ExecuteFor: %v", err)
	}

	if !result.GlobalOptions.MultipathRelax {
		t.Error("MultipathRelax not set on spine")
	}
	if result.GlobalOptions.LocalAS != 64600 {
		t.Errorf("LocalAS = %d, want 64600", result.GlobalOptions.LocalAS)
	}

	if len(result.Peers) != 2 {
		t.Fatalf("got %d peers, want 2 tors", len(result.Peers))
	}
	for i, wantHost := range []string{"tor-1.dc1.example.net", "tor-2.dc1.example.net"} {
		p := result.Peers[i]
		if p.Hostname != wantHost {
			t.Errorf("peer %d = %q, want %q", i, p.Hostname, wantHost)
		}
		if p.LocalAS != 64600 {
			t.Errorf("peer %d LocalAS = %d, want 64600", i, p.LocalAS)
		}
		if p.RemoteAS != 65000+i+1 {
			t.Errorf("peer %d RemoteAS = %d, want %d", i, p.RemoteAS, 65000+i+1)
		}
	}

	// the dual-link adjacency to tor-1 bundles on the spine too: 100+1
	changes := spine.Changes()
	if !changes.Has("PORTCHANNEL", "PortChannel101") {
		t.Errorf("no PortChannel101 planned on spine, changes: %+v", changes.Changes)
	}
	if !changes.Has("PORTCHANNEL_MEMBER", "PortChannel101|Ethernet100") ||
		!changes.Has("PORTCHANNEL_MEMBER", "PortChannel101|Ethernet104") {
		t.Errorf("spine LAG members missing, changes: %+v", changes.Changes)
	}
	// the single link to tor-2 needs no bundle
	if changes.Has("PORTCHANNEL", "PortChannel102") {
		t.Error("unexpected LAG for single-link adjacency")
	}
}

func TestClos_RouteReflector(t *testing.T) {
	inv, ex := closFabric(t)
	rr, _ := inv.Device("rr-1.dc1.example.net")

	result, err := ex.ExecuteFor(rr)
	if err != nil {
		t.Fatalf("ExecuteFor: %v", err)
	}

	wantGroups := []bgp.PeerGroup{{
		Name:        "RR_CLIENTS",
		RemoteAS:    64512,
		Description: "overlay route reflector clients",
	}}
	if diff := cmp.Diff(wantGroups, result.GlobalOptions.Groups); diff != "" {
		t.Errorf("groups (-want +got):\n%s", diff)
	}

	// the reflector has no physical links, only overlay sessions to the tors
	if len(result.Peers) != 2 {
		t.Fatalf("got %d peers, want 2", len(result.Peers))
	}
	for i, wantHost := range []string{"tor-1.dc1.example.net", "tor-2.dc1.example.net"} {
		p := result.Peers[i]
		if p.Hostname != wantHost {
			t.Errorf("peer %d = %q, want %q", i, p.Hostname, wantHost)
		}
		if p.Group != "RR_CLIENTS" {
			t.Errorf("peer %d group = %q, want RR_CLIENTS", i, p.Group)
		}
		if p.LocalAddr != "10.255.2.1" {
			t.Errorf("peer %d LocalAddr = %q, want reflector loopback", i, p.LocalAddr)
		}
	}
	if rr.Changes() != nil && !rr.Changes().IsEmpty() {
		t.Errorf("indirect-only execution planned changes: %+v", rr.Changes().Changes)
	}
}

func TestClos_DefaultFamilies(t *testing.T) {
	reg := Clos(ClosConfig{TorASBase: 65000, SpineAS: 64600, OverlayAS: 64512})
	rules := reg.LookupGlobal("tor-7")
	if len(rules) != 1 {
		t.Fatalf("got %d global rules for a bare tor name, want 1", len(rules))
	}
	ctx := &mesh.GlobalContext{Matched: rules[0].Matched, Device: nil}
	// handlers probing the device for a loopback must tolerate storage
	// backends without one
	rules[0].Handler(ctx)
	if ctx.LocalAS.Value() != 65007 {
		t.Errorf("LocalAS = %d, want base+index", ctx.LocalAS.Value())
	}
}
