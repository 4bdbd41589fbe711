package mesh

// Device is the narrow capability set the executor needs from a topology
// store. The executor holds references only; it never constructs or destroys
// devices. The three provisioning calls are the only mutations the executor
// ever performs, and they apply to the device's own interface set.
type Device interface {
	// FQDN returns the device's fully-qualified name.
	FQDN() string

	// Neighbours returns the physically adjacent devices.
	Neighbours() []Device

	// MakeLAG creates an aggregated link with the given id over the member
	// interfaces and returns its interface name.
	MakeLAG(lag int, members []string, minLinks int) (string, error)

	// AddSubif creates a sub-interface on the named parent interface.
	AddSubif(parent string, subif int) error

	// AddSVI creates a switched virtual interface, not tied to a physical
	// interface.
	AddSVI(svi int) error
}

// Connection is one physical link between two devices, seen from the side of
// the first device passed to SearchConnections.
type Connection struct {
	LocalPort  string
	RemotePort string
}

// Storage is the read-only inventory capability the executor consumes.
type Storage interface {
	// ResolveAllFQDNs returns the full inventory namespace.
	ResolveAllFQDNs() ([]string, error)

	// MakeDevices resolves a name to device record(s). The executor uses
	// only the first.
	MakeDevices(fqdn string) ([]Device, error)

	// SearchConnections returns all physical links between two devices, in
	// stable order, local side first.
	SearchConnections(a, b Device) ([]Connection, error)
}
