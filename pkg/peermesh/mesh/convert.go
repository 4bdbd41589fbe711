package mesh

import (
	"github.com/peermesh-network/peermesh/pkg/peermesh/bgp"
)

// ToBGPPeer converts a merged Pair into a final peering session. The local
// fragment describes this device's side of the session, the connected
// fragment the remote side; the remote address and AS therefore come from
// the connected fragment.
func ToBGPPeer(local, connected PeerFragment, device Device) bgp.Peer {
	return bgp.Peer{
		Hostname:       device.FQDN(),
		Addr:           connected.Addr.Value(),
		LocalAddr:      local.Addr.Value(),
		RemoteAS:       connected.ASN.Value(),
		LocalAS:        local.ASN.Value(),
		Description:    local.Description.Value(),
		Group:          local.Group.Value(),
		VRF:            local.VRF.Value(),
		Interfaces:     local.Interfaces,
		Families:       local.Families,
		ImportPolicies: local.ImportPolicies,
		ExportPolicies: local.ExportPolicies,
	}
}

// ToBGPGlobalOptions converts a merged global fragment into final global
// options. Absent fields take their zero defaults.
func ToBGPGlobalOptions(opts GlobalFragment) bgp.GlobalOptions {
	return bgp.GlobalOptions{
		LocalAS:            opts.LocalAS.Value(),
		RouterID:           opts.RouterID.Value(),
		LogNeighborChanges: opts.LogNeighborChanges.Value(),
		MultipathRelax:     opts.MultipathRelax.Value(),
		Groups:             opts.Groups,
	}
}
