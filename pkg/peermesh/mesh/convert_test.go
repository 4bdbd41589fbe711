package mesh

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/peermesh-network/peermesh/pkg/peermesh/bgp"
)

func TestToBGPPeer(t *testing.T) {
	local := PeerFragment{
		Addr:           Set("10.0.0.1"),
		ASN:            Set(65001),
		Description:    Set("underlay to spine-1"),
		Group:          Set("UNDERLAY"),
		VRF:            Set("default"),
		Interfaces:     []string{"Ethernet0"},
		Families:       []string{"ipv4-unicast"},
		ImportPolicies: []string{"IMPORT_UNDERLAY"},
		ExportPolicies: []string{"EXPORT_UNDERLAY"},
	}
	connected := PeerFragment{
		Addr: Set("10.0.0.2"),
		ASN:  Set(64600),
		// remote-side cosmetics must not leak into the local session
		Description: Set("underlay to tor-1"),
	}
	dev := &fakeDevice{fqdn: "spine-1"}

	want := bgp.Peer{
		Hostname:       "spine-1",
		Addr:           "10.0.0.2",
		LocalAddr:      "10.0.0.1",
		RemoteAS:       64600,
		LocalAS:        65001,
		Description:    "underlay to spine-1",
		Group:          "UNDERLAY",
		VRF:            "default",
		Interfaces:     []string{"Ethernet0"},
		Families:       []string{"ipv4-unicast"},
		ImportPolicies: []string{"IMPORT_UNDERLAY"},
		ExportPolicies: []string{"EXPORT_UNDERLAY"},
	}
	if diff := cmp.Diff(want, ToBGPPeer(local, connected, dev)); diff != "" {
		t.Errorf("ToBGPPeer (-want +got):\n%s", diff)
	}
}

func TestToBGPPeer_AbsentFieldsAreZero(t *testing.T) {
	got := ToBGPPeer(PeerFragment{}, PeerFragment{}, &fakeDevice{fqdn: "rr-1"})
	want := bgp.Peer{Hostname: "rr-1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ToBGPPeer of empty fragments (-want +got):\n%s", diff)
	}
}

func TestToBGPGlobalOptions(t *testing.T) {
	frag := GlobalFragment{
		LocalAS:        Set(65001),
		RouterID:       Set("10.255.0.1"),
		MultipathRelax: Set(true),
		Groups:         []bgp.PeerGroup{{Name: "RR_CLIENTS", RemoteAS: 64512}},
	}
	want := bgp.GlobalOptions{
		LocalAS:        65001,
		RouterID:       "10.255.0.1",
		MultipathRelax: true,
		Groups:         []bgp.PeerGroup{{Name: "RR_CLIENTS", RemoteAS: 64512}},
	}
	if diff := cmp.Diff(want, ToBGPGlobalOptions(frag)); diff != "" {
		t.Errorf("ToBGPGlobalOptions (-want +got):\n%s", diff)
	}
}
