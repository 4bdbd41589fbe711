package mesh

import (
	"fmt"

	"github.com/peermesh-network/peermesh/pkg/peermesh/bgp"
	"github.com/peermesh-network/peermesh/pkg/util"
)

// Pair aggregates the merged local and connected fragments plus the resolved
// remote device for one neighbor or target, keyed by the remote fqdn. At most
// one Pair exists per fqdn per execution; when a second rule matches the same
// remote, its Pair is merged into the existing one.
type Pair struct {
	Local     PeerFragment
	Connected PeerFragment
	Device    Device
}

// Merge combines p (lower precedence) with next: the fragments merge
// accumulatively, the device reference is use-last.
func (p Pair) Merge(next Pair) (Pair, error) {
	local, err := p.Local.Merge(next.Local)
	if err != nil {
		return Pair{}, err
	}
	connected, err := p.Connected.Merge(next.Connected)
	if err != nil {
		return Pair{}, err
	}
	device := p.Device
	if next.Device != nil {
		device = next.Device
	}
	return Pair{Local: local, Connected: connected, Device: device}, nil
}

// pairSet accumulates Pairs keyed by remote fqdn, preserving first-insertion
// order explicitly.
type pairSet struct {
	order  []string
	byFQDN map[string]Pair
}

func newPairSet() *pairSet {
	return &pairSet{byFQDN: make(map[string]Pair)}
}

func (s *pairSet) add(fqdn string, p Pair) error {
	if existing, ok := s.byFQDN[fqdn]; ok {
		merged, err := existing.Merge(p)
		if err != nil {
			return err
		}
		s.byFQDN[fqdn] = merged
		return nil
	}
	s.order = append(s.order, fqdn)
	s.byFQDN[fqdn] = p
	return nil
}

func (s *pairSet) list() []Pair {
	out := make([]Pair, 0, len(s.order))
	for _, fqdn := range s.order {
		out = append(out, s.byFQDN[fqdn])
	}
	return out
}

// ExecutionResult is the computed BGP configuration for one device: the
// merged global options and the peering sessions, direct peers first, then
// indirect, each group in discovery order.
type ExecutionResult struct {
	GlobalOptions bgp.GlobalOptions `yaml:"global_options"`
	Peers         []bgp.Peer        `yaml:"peers"`
}

// Executor resolves, runs and merges mesh rules for one device at a time.
// The registry and storage handles are supplied at construction and treated
// as read-only for the executor's lifetime; everything else lives within a
// single ExecuteFor call. Independent devices may be processed in parallel as
// long as the registry and storage tolerate concurrent reads and two
// executions never share a mutable device instance.
type Executor struct {
	registry RuleRegistry
	storage  Storage
}

// NewExecutor creates an executor over the given rule registry and topology
// storage.
func NewExecutor(registry RuleRegistry, storage Storage) *Executor {
	return &Executor{registry: registry, storage: storage}
}

// ExecuteFor computes the full mesh result for one device: direct peers
// (with interface provisioning side effects), then indirect peers (no side
// effects), then global options. A validation or merge failure aborts with
// no partial result; side effects already applied for earlier neighbors are
// not rolled back.
func (e *Executor) ExecuteFor(device Device) (*ExecutionResult, error) {
	allFQDNs, err := e.storage.ResolveAllFQDNs()
	if err != nil {
		return nil, fmt.Errorf("resolving inventory namespace: %w", err)
	}

	var peers []bgp.Peer

	direct, err := e.executeDirect(device)
	if err != nil {
		return nil, err
	}
	for _, pair := range direct {
		peers = append(peers, ToBGPPeer(pair.Local, pair.Connected, pair.Device))
		if err := e.processNeighbor(device, pair.Device, pair.Local); err != nil {
			return nil, err
		}
	}

	indirect, err := e.executeIndirect(device, allFQDNs)
	if err != nil {
		return nil, err
	}
	for _, pair := range indirect {
		peers = append(peers, ToBGPPeer(pair.Local, pair.Connected, pair.Device))
	}

	globals, err := e.executeGlobals(device)
	if err != nil {
		return nil, err
	}

	return &ExecutionResult{
		GlobalOptions: ToBGPGlobalOptions(globals),
		Peers:         peers,
	}, nil
}

// executeGlobals folds all matching global rules into one fragment, in
// registry order. No physical side effects occur in this path.
func (e *Executor) executeGlobals(device Device) (GlobalFragment, error) {
	var opts GlobalFragment
	for _, rule := range e.registry.LookupGlobal(device.FQDN()) {
		ctx := &GlobalContext{Matched: rule.Matched, Device: device}
		rule.Handler(ctx)
		merged, err := Fold(opts, ctx.GlobalFragment)
		if err != nil {
			return opts, fmt.Errorf("merging global options for %s: %w", device.FQDN(), err)
		}
		opts = merged
	}
	return opts, nil
}

// executeDirect resolves peering with topologically adjacent devices.
// Multiple rules for the same neighbor merge into one Pair, keyed by the
// neighbor fqdn.
func (e *Executor) executeDirect(device Device) ([]Pair, error) {
	neighbors := make(map[string]Device)
	var neighborFQDNs []string
	for _, n := range device.Neighbours() {
		if _, ok := neighbors[n.FQDN()]; ok {
			continue
		}
		neighbors[n.FQDN()] = n
		neighborFQDNs = append(neighborFQDNs, n.FQDN())
	}

	pairs := newPairSet()
	for _, rule := range e.registry.LookupDirect(device.FQDN(), neighborFQDNs) {
		session := &Session{}

		neighborName := rule.NameRight
		if !rule.DirectOrder {
			neighborName = rule.NameLeft
		}
		neighbor, ok := neighbors[neighborName]
		if !ok {
			return nil, fmt.Errorf("direct rule matched %s which is not a neighbor of %s", neighborName, device.FQDN())
		}

		var peerDevice, peerNeighbor *DirectPeer
		if rule.DirectOrder {
			peerDevice = &DirectPeer{Matched: rule.MatchedLeft, Device: device}
			peerNeighbor = &DirectPeer{Matched: rule.MatchedRight, Device: neighbor}
		} else {
			peerNeighbor = &DirectPeer{Matched: rule.MatchedLeft, Device: neighbor}
			peerDevice = &DirectPeer{Matched: rule.MatchedRight, Device: device}
		}

		connections, err := e.storage.SearchConnections(device, neighbor)
		if err != nil {
			return nil, fmt.Errorf("searching connections %s <-> %s: %w", device.FQDN(), neighbor.FQDN(), err)
		}
		for _, conn := range connections {
			peerDevice.Ports = append(peerDevice.Ports, conn.LocalPort)
			peerNeighbor.Ports = append(peerNeighbor.Ports, conn.RemotePort)
		}

		if rule.DirectOrder {
			rule.Handler(peerDevice, peerNeighbor, session)
		} else {
			rule.Handler(peerNeighbor, peerDevice, session)
		}

		deviceFrag, err := Fold(PeerFragment{}, peerDevice.PeerFragment, session.PeerFragment)
		if err != nil {
			return nil, fmt.Errorf("merging direct peer %s: %w", neighbor.FQDN(), err)
		}
		neighborFrag, err := Fold(PeerFragment{}, peerNeighbor.PeerFragment, session.PeerFragment)
		if err != nil {
			return nil, fmt.Errorf("merging direct peer %s: %w", neighbor.FQDN(), err)
		}

		pair := Pair{Local: deviceFrag, Connected: neighborFrag, Device: neighbor}
		if err := pairs.add(neighbor.FQDN(), pair); err != nil {
			return nil, fmt.Errorf("merging direct peer %s: %w", neighbor.FQDN(), err)
		}
	}
	return pairs.list(), nil
}

// executeIndirect resolves peering with any inventory device. The remote is
// fetched by name through storage; no interface data is attached and no
// provisioning side effects are triggered for indirect peers.
func (e *Executor) executeIndirect(device Device, allFQDNs []string) ([]Pair, error) {
	pairs := newPairSet()
	for _, rule := range e.registry.LookupIndirect(device.FQDN(), allFQDNs) {
		session := &Session{}

		connectedName := rule.NameRight
		if !rule.DirectOrder {
			connectedName = rule.NameLeft
		}
		candidates, err := e.storage.MakeDevices(connectedName)
		if err != nil {
			return nil, fmt.Errorf("resolving indirect peer %s: %w", connectedName, err)
		}
		if len(candidates) == 0 {
			return nil, fmt.Errorf("indirect rule matched %s which resolves to no device", connectedName)
		}
		connected := candidates[0]

		var peerDevice, peerConnected *IndirectPeer
		if rule.DirectOrder {
			peerDevice = &IndirectPeer{Matched: rule.MatchedLeft, Device: device}
			peerConnected = &IndirectPeer{Matched: rule.MatchedRight, Device: connected}
			rule.Handler(peerDevice, peerConnected, session)
		} else {
			peerConnected = &IndirectPeer{Matched: rule.MatchedLeft, Device: connected}
			peerDevice = &IndirectPeer{Matched: rule.MatchedRight, Device: device}
			rule.Handler(peerConnected, peerDevice, session)
		}

		deviceFrag, err := Fold(PeerFragment{}, peerDevice.PeerFragment, session.PeerFragment)
		if err != nil {
			return nil, fmt.Errorf("merging indirect peer %s: %w", connected.FQDN(), err)
		}
		connectedFrag, err := Fold(PeerFragment{}, peerConnected.PeerFragment, session.PeerFragment)
		if err != nil {
			return nil, fmt.Errorf("merging indirect peer %s: %w", connected.FQDN(), err)
		}

		pair := Pair{Local: deviceFrag, Connected: connectedFrag, Device: connected}
		if err := pairs.add(connected.FQDN(), pair); err != nil {
			return nil, fmt.Errorf("merging indirect peer %s: %w", connected.FQDN(), err)
		}
	}
	return pairs.list(), nil
}

// processNeighbor reconciles the merged local fragment for a direct neighbor
// with physical connectivity: validates the interface mode selection, then
// provisions a LAG, sub-interface or SVI on the device. All validation runs
// before any provisioning call.
func (e *Executor) processNeighbor(device, neighbor Device, local PeerFragment) error {
	lag := local.LAG
	svi := local.SVI
	subif := local.Subif

	if lag.IsSet() && svi.IsSet() {
		return fmt.Errorf("%w: cannot use LAG and SVI together for %s <-> %s",
			ErrConflictingInterfaceMode, device.FQDN(), neighbor.FQDN())
	}
	if svi.IsSet() && subif.IsSet() {
		return fmt.Errorf("%w: cannot use subif and SVI together for %s <-> %s",
			ErrConflictingInterfaceMode, device.FQDN(), neighbor.FQDN())
	}

	connections, err := e.storage.SearchConnections(device, neighbor)
	if err != nil {
		return fmt.Errorf("searching connections %s <-> %s: %w", device.FQDN(), neighbor.FQDN(), err)
	}
	if len(connections) > 1 && !lag.IsSet() && !svi.IsSet() {
		return fmt.Errorf("%w: %d connections between %s and %s, specify LAG or SVI",
			ErrAmbiguousMultiLink, len(connections), device.FQDN(), neighbor.FQDN())
	}

	log := util.WithDevice(device.FQDN())
	switch {
	case lag.IsSet():
		members := make([]string, 0, len(connections))
		for _, conn := range connections {
			members = append(members, conn.LocalPort)
		}
		lagName, err := device.MakeLAG(lag.Value(), members, local.LAGLinksMin.Or(0))
		if err != nil {
			return fmt.Errorf("creating LAG %d on %s: %w", lag.Value(), device.FQDN(), err)
		}
		log.Debugf("Created %s over %v towards %s", lagName, members, neighbor.FQDN())
		if subif.IsSet() {
			if err := device.AddSubif(lagName, subif.Value()); err != nil {
				return fmt.Errorf("creating subif %d on %s: %w", subif.Value(), lagName, err)
			}
		}
	case subif.IsSet():
		if len(connections) == 0 {
			return fmt.Errorf("subif %d requested but no connection between %s and %s",
				subif.Value(), device.FQDN(), neighbor.FQDN())
		}
		if err := device.AddSubif(connections[0].LocalPort, subif.Value()); err != nil {
			return fmt.Errorf("creating subif %d on %s: %w", subif.Value(), connections[0].LocalPort, err)
		}
	case svi.IsSet():
		if err := device.AddSVI(svi.Value()); err != nil {
			return fmt.Errorf("creating SVI %d on %s: %w", svi.Value(), device.FQDN(), err)
		}
	}
	return nil
}
