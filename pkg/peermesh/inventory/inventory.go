// Package inventory provides topology storage backends for the mesh engine:
// an in-memory inventory loaded from a topology YAML file and a Redis-backed
// store with the same contract. Both satisfy mesh.Storage; their devices
// satisfy mesh.Device and record provisioning calls instead of touching
// hardware.
package inventory

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/peermesh-network/peermesh/pkg/peermesh/mesh"
	"github.com/peermesh-network/peermesh/pkg/util"
)

// topologyFile is the YAML topology format:
//
//	devices:
//	  - fqdn: tor-1.dc1.example.net
//	    loopback: 10.0.0.1
//	links:
//	  - a: tor-1.dc1.example.net:Ethernet0
//	    b: spine-1.dc1.example.net:Ethernet0
type topologyFile struct {
	Devices []deviceSpec `yaml:"devices"`
	Links   []linkSpec   `yaml:"links"`
}

type deviceSpec struct {
	FQDN     string `yaml:"fqdn"`
	Loopback string `yaml:"loopback,omitempty"`
}

// linkSpec names both endpoints as "fqdn:port".
type linkSpec struct {
	A string `yaml:"a"`
	B string `yaml:"b"`
}

// link is one physical adjacency seen from the owning device's side.
type link struct {
	peer       string
	localPort  string
	remotePort string
}

// Inventory is an in-memory topology store. Device iteration order is
// insertion order, which makes executions over it deterministic.
type Inventory struct {
	order   []string
	devices map[string]*Device
}

// New creates an empty inventory.
func New() *Inventory {
	return &Inventory{devices: make(map[string]*Device)}
}

// Load reads a topology YAML file into an inventory.
func Load(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading topology file: %w", err)
	}
	inv, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return inv, nil
}

// Parse builds an inventory from topology YAML.
func Parse(data []byte) (*Inventory, error) {
	var file topologyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unmarshaling topology: %w", err)
	}

	v := &util.ValidationBuilder{}
	inv := New()
	for _, d := range file.Devices {
		if d.FQDN == "" {
			v.AddErrorf("device with empty fqdn")
			continue
		}
		if _, ok := inv.devices[d.FQDN]; ok {
			v.AddErrorf("duplicate device %s", d.FQDN)
			continue
		}
		inv.AddDevice(d.FQDN, d.Loopback)
	}
	for i, l := range file.Links {
		aName, aPort, err := splitEndpoint(l.A)
		if err != nil {
			v.AddErrorf("link %d: %v", i, err)
			continue
		}
		bName, bPort, err := splitEndpoint(l.B)
		if err != nil {
			v.AddErrorf("link %d: %v", i, err)
			continue
		}
		if err := inv.AddLink(aName, aPort, bName, bPort); err != nil {
			v.AddErrorf("link %d: %v", i, err)
		}
	}
	if v.HasErrors() {
		return nil, v.Build()
	}
	return inv, nil
}

// splitEndpoint parses an "fqdn:port" endpoint reference.
func splitEndpoint(s string) (fqdn, port string, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed endpoint %q, want fqdn:port", s)
	}
	return parts[0], parts[1], nil
}

// AddDevice registers a device and returns it. Re-adding an existing fqdn
// returns the existing device.
func (inv *Inventory) AddDevice(fqdn, loopback string) *Device {
	if d, ok := inv.devices[fqdn]; ok {
		return d
	}
	d := &Device{
		inv:      inv,
		fqdn:     fqdn,
		loopback: loopback,
		changes:  NewChangeSet(fqdn),
	}
	inv.devices[fqdn] = d
	inv.order = append(inv.order, fqdn)
	return d
}

// AddLink records a physical link between two registered devices. The link is
// visible from both sides.
func (inv *Inventory) AddLink(a, aPort, b, bPort string) error {
	da, ok := inv.devices[a]
	if !ok {
		return util.NewNotFoundError("device", a)
	}
	db, ok := inv.devices[b]
	if !ok {
		return util.NewNotFoundError("device", b)
	}
	da.links = append(da.links, link{peer: b, localPort: aPort, remotePort: bPort})
	db.links = append(db.links, link{peer: a, localPort: bPort, remotePort: aPort})
	return nil
}

// Device returns a registered device by fqdn.
func (inv *Inventory) Device(fqdn string) (*Device, bool) {
	d, ok := inv.devices[fqdn]
	return d, ok
}

// ============================================================================
// mesh.Storage implementation
// ============================================================================

// ResolveAllFQDNs returns the inventory namespace in insertion order.
func (inv *Inventory) ResolveAllFQDNs() ([]string, error) {
	out := make([]string, len(inv.order))
	copy(out, inv.order)
	return out, nil
}

// MakeDevices resolves an fqdn to its device record.
func (inv *Inventory) MakeDevices(fqdn string) ([]mesh.Device, error) {
	d, ok := inv.devices[fqdn]
	if !ok {
		return nil, util.NewNotFoundError("device", fqdn)
	}
	return []mesh.Device{d}, nil
}

// SearchConnections returns the links between a and b, local side first, in
// the order the links were added.
func (inv *Inventory) SearchConnections(a, b mesh.Device) ([]mesh.Connection, error) {
	da, ok := inv.devices[a.FQDN()]
	if !ok {
		return nil, util.NewNotFoundError("device", a.FQDN())
	}
	var conns []mesh.Connection
	for _, l := range da.links {
		if l.peer == b.FQDN() {
			conns = append(conns, mesh.Connection{LocalPort: l.localPort, RemotePort: l.remotePort})
		}
	}
	return conns, nil
}

// ============================================================================
// Device
// ============================================================================

// Device is an inventory device. It satisfies mesh.Device; provisioning
// calls are recorded in an in-memory ChangeSet rather than applied to
// hardware, so callers can inspect or deliver the planned changes afterwards.
type Device struct {
	inv      *Inventory
	fqdn     string
	loopback string
	links    []link
	changes  *ChangeSet
}

// FQDN returns the device's fully-qualified name.
func (d *Device) FQDN() string { return d.fqdn }

// LoopbackIP returns the device's loopback address, if one was declared.
func (d *Device) LoopbackIP() string { return d.loopback }

// Changes returns the provisioning changes recorded on this device.
func (d *Device) Changes() *ChangeSet { return d.changes }

// ResetChanges clears recorded changes, for reuse across executions.
func (d *Device) ResetChanges() { d.changes = NewChangeSet(d.fqdn) }

// Neighbours returns physically adjacent devices, first-seen order, deduped.
func (d *Device) Neighbours() []mesh.Device {
	seen := make(map[string]bool, len(d.links))
	var out []mesh.Device
	for _, l := range d.links {
		if seen[l.peer] {
			continue
		}
		seen[l.peer] = true
		if n, ok := d.inv.devices[l.peer]; ok {
			out = append(out, n)
		}
	}
	return out
}

// MakeLAG records a PORTCHANNEL entry plus one member entry per port and
// returns the LAG interface name.
func (d *Device) MakeLAG(lag int, members []string, minLinks int) (string, error) {
	name := fmt.Sprintf("PortChannel%d", lag)
	if d.changes.Has("PORTCHANNEL", name) {
		return "", fmt.Errorf("%w: %s on %s", util.ErrAlreadyExists, name, d.fqdn)
	}
	fields := map[string]string{"admin_status": "up"}
	if minLinks > 0 {
		fields["min_links"] = fmt.Sprintf("%d", minLinks)
	}
	d.changes.Add("PORTCHANNEL", name, fields)
	for _, member := range members {
		d.changes.Add("PORTCHANNEL_MEMBER", fmt.Sprintf("%s|%s", name, member), map[string]string{})
	}
	util.WithDevice(d.fqdn).Debugf("Planned %s with members %v", name, members)
	return name, nil
}

// AddSubif records a sub-interface on the named parent interface.
func (d *Device) AddSubif(parent string, subif int) error {
	key := fmt.Sprintf("%s.%d", parent, subif)
	if d.changes.Has("VLAN_SUB_INTERFACE", key) {
		return fmt.Errorf("%w: %s on %s", util.ErrAlreadyExists, key, d.fqdn)
	}
	d.changes.Add("VLAN_SUB_INTERFACE", key, map[string]string{"admin_status": "up"})
	util.WithDevice(d.fqdn).Debugf("Planned sub-interface %s", key)
	return nil
}

// AddSVI records a switched virtual interface.
func (d *Device) AddSVI(svi int) error {
	key := fmt.Sprintf("Vlan%d", svi)
	if d.changes.Has("VLAN_INTERFACE", key) {
		return fmt.Errorf("%w: %s on %s", util.ErrAlreadyExists, key, d.fqdn)
	}
	d.changes.Add("VLAN_INTERFACE", key, map[string]string{})
	util.WithDevice(d.fqdn).Debugf("Planned SVI %s", key)
	return nil
}
