package mesh

import (
	"github.com/peermesh-network/peermesh/pkg/peermesh/bgp"
)

// PeerFragment is the handler-writable options record for one side of a
// peering relationship. A fragment accumulates values as multiple rules fire
// for the same target; Merge defines the combination strategy per field.
//
// Strategy table:
//   - Addr, LocalAddr, ASN, Description, Group, VRF — use-last: a later,
//     more specific rule overrides an earlier one.
//   - Families, Interfaces — accumulating set union, first-seen order.
//   - ImportPolicies, ExportPolicies — accumulating concatenation, in rule
//     priority order.
//   - LAG, LAGLinksMin, SVI, Subif — single-valued: two rules asserting
//     different values is a merge conflict.
type PeerFragment struct {
	Addr        Opt[string]
	LocalAddr   Opt[string]
	ASN         Opt[int]
	Description Opt[string]
	Group       Opt[string]
	VRF         Opt[string]

	Families   []string
	Interfaces []string

	ImportPolicies []string
	ExportPolicies []string

	LAG         Opt[int]
	LAGLinksMin Opt[int]
	SVI         Opt[int]
	Subif       Opt[int]
}

// Merge combines f (lower precedence) with next (higher precedence).
func (f PeerFragment) Merge(next PeerFragment) (PeerFragment, error) {
	out := PeerFragment{
		Addr:        useLast(f.Addr, next.Addr),
		LocalAddr:   useLast(f.LocalAddr, next.LocalAddr),
		ASN:         useLast(f.ASN, next.ASN),
		Description: useLast(f.Description, next.Description),
		Group:       useLast(f.Group, next.Group),
		VRF:         useLast(f.VRF, next.VRF),

		Families:   mergeSet(f.Families, next.Families),
		Interfaces: mergeSet(f.Interfaces, next.Interfaces),

		ImportPolicies: mergeList(f.ImportPolicies, next.ImportPolicies),
		ExportPolicies: mergeList(f.ExportPolicies, next.ExportPolicies),
	}

	var err error
	if out.LAG, err = mergeValue(f.LAG, next.LAG, "lag"); err != nil {
		return out, err
	}
	if out.LAGLinksMin, err = mergeValue(f.LAGLinksMin, next.LAGLinksMin, "lag_links_min"); err != nil {
		return out, err
	}
	if out.SVI, err = mergeValue(f.SVI, next.SVI, "svi"); err != nil {
		return out, err
	}
	if out.Subif, err = mergeValue(f.Subif, next.Subif, "subif"); err != nil {
		return out, err
	}
	return out, nil
}

// GlobalFragment is the handler-writable record for device-level BGP options.
//
// Strategy table: all scalar fields are use-last; Groups accumulates.
type GlobalFragment struct {
	LocalAS            Opt[int]
	RouterID           Opt[string]
	LogNeighborChanges Opt[bool]
	MultipathRelax     Opt[bool]

	Groups []bgp.PeerGroup
}

// Merge combines g (lower precedence) with next (higher precedence).
func (g GlobalFragment) Merge(next GlobalFragment) (GlobalFragment, error) {
	return GlobalFragment{
		LocalAS:            useLast(g.LocalAS, next.LocalAS),
		RouterID:           useLast(g.RouterID, next.RouterID),
		LogNeighborChanges: useLast(g.LogNeighborChanges, next.LogNeighborChanges),
		MultipathRelax:     useLast(g.MultipathRelax, next.MultipathRelax),
		Groups:             mergeList(g.Groups, next.Groups),
	}, nil
}

// Session is the per-rule-evaluation scratch record visible to both peer
// contexts during handler execution. Values set here are merged into both
// sides' fragments, after the side-specific values.
type Session struct {
	PeerFragment
}
