package inventory

import "fmt"

// Change is a single provisioning entry recorded on a device, modeled as a
// config table entry (table, key, fields).
type Change struct {
	Table  string            `yaml:"table"`
	Key    string            `yaml:"key"`
	Fields map[string]string `yaml:"fields,omitempty"`
}

// ChangeSet collects the interface changes planned for one device during a
// mesh execution. Devices start each run with an empty set; the mesh
// executor's provisioning calls append to it.
type ChangeSet struct {
	Device  string   `yaml:"device"`
	Changes []Change `yaml:"changes"`
}

// NewChangeSet creates an empty ChangeSet for a device.
func NewChangeSet(device string) *ChangeSet {
	return &ChangeSet{Device: device}
}

// Add appends a change entry.
func (cs *ChangeSet) Add(table, key string, fields map[string]string) {
	cs.Changes = append(cs.Changes, Change{Table: table, Key: key, Fields: fields})
}

// Has reports whether an entry with the given table and key was recorded.
func (cs *ChangeSet) Has(table, key string) bool {
	for _, c := range cs.Changes {
		if c.Table == table && c.Key == key {
			return true
		}
	}
	return false
}

// IsEmpty returns true if there are no changes.
func (cs *ChangeSet) IsEmpty() bool {
	return len(cs.Changes) == 0
}

// String summarizes the set for logging.
func (cs *ChangeSet) String() string {
	return fmt.Sprintf("%s: %d changes", cs.Device, len(cs.Changes))
}
