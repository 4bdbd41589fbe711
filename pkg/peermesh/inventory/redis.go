package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/peermesh-network/peermesh/pkg/peermesh/mesh"
	"github.com/peermesh-network/peermesh/pkg/util"
)

// Redis key layout:
//
//	peermesh:devices                         list of fqdns, inventory order
//	peermesh:device:<fqdn>                   hash: loopback
//	peermesh:links:<fqdn>                    list of "localPort|peerFqdn|remotePort"
//	peermesh:config:<fqdn>:<TABLE>|<KEY>     hash written by provisioning calls
const (
	keyDevices      = "peermesh:devices"
	keyDevicePrefix = "peermesh:device:"
	keyLinksPrefix  = "peermesh:links:"
	keyConfigPrefix = "peermesh:config:"
)

// RedisStore is a Redis-backed topology store satisfying mesh.Storage.
// Provisioning calls on its devices write config entries back to Redis.
type RedisStore struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisStore creates a store for the given Redis address.
func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ctx:    context.Background(),
	}
}

// Ping verifies connectivity.
func (s *RedisStore) Ping() error {
	return s.client.Ping(s.ctx).Err()
}

// Close releases the client connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Seed loads an in-memory inventory into Redis, replacing existing topology
// keys for the devices involved.
func (s *RedisStore) Seed(inv *Inventory) error {
	fqdns, _ := inv.ResolveAllFQDNs()
	if err := s.client.Del(s.ctx, keyDevices).Err(); err != nil {
		return fmt.Errorf("clearing device namespace: %w", err)
	}
	for _, fqdn := range fqdns {
		d, _ := inv.Device(fqdn)
		if err := s.client.RPush(s.ctx, keyDevices, fqdn).Err(); err != nil {
			return fmt.Errorf("seeding device %s: %w", fqdn, err)
		}
		if d.LoopbackIP() != "" {
			if err := s.client.HSet(s.ctx, keyDevicePrefix+fqdn, "loopback", d.LoopbackIP()).Err(); err != nil {
				return fmt.Errorf("seeding device %s: %w", fqdn, err)
			}
		}
		linksKey := keyLinksPrefix + fqdn
		if err := s.client.Del(s.ctx, linksKey).Err(); err != nil {
			return fmt.Errorf("seeding links for %s: %w", fqdn, err)
		}
		for _, l := range d.links {
			encoded := fmt.Sprintf("%s|%s|%s", l.localPort, l.peer, l.remotePort)
			if err := s.client.RPush(s.ctx, linksKey, encoded).Err(); err != nil {
				return fmt.Errorf("seeding links for %s: %w", fqdn, err)
			}
		}
	}
	util.Infof("Seeded %d devices into Redis", len(fqdns))
	return nil
}

// ============================================================================
// mesh.Storage implementation
// ============================================================================

// ResolveAllFQDNs returns the stored inventory namespace.
func (s *RedisStore) ResolveAllFQDNs() ([]string, error) {
	fqdns, err := s.client.LRange(s.ctx, keyDevices, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	return fqdns, nil
}

// MakeDevices resolves an fqdn to its stored device record.
func (s *RedisStore) MakeDevices(fqdn string) ([]mesh.Device, error) {
	d, err := s.loadDevice(fqdn)
	if err != nil {
		return nil, err
	}
	return []mesh.Device{d}, nil
}

// SearchConnections returns the stored links between a and b, local side
// first.
func (s *RedisStore) SearchConnections(a, b mesh.Device) ([]mesh.Connection, error) {
	links, err := s.loadLinks(a.FQDN())
	if err != nil {
		return nil, err
	}
	var conns []mesh.Connection
	for _, l := range links {
		if l.peer == b.FQDN() {
			conns = append(conns, mesh.Connection{LocalPort: l.localPort, RemotePort: l.remotePort})
		}
	}
	return conns, nil
}

func (s *RedisStore) loadDevice(fqdn string) (*redisDevice, error) {
	fields, err := s.client.HGetAll(s.ctx, keyDevicePrefix+fqdn).Result()
	if err != nil {
		return nil, fmt.Errorf("loading device %s: %w", fqdn, err)
	}
	links, err := s.loadLinks(fqdn)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 && len(links) == 0 {
		// No hash and no links means the fqdn is not in the store.
		n, err := s.client.Exists(s.ctx, keyDevicePrefix+fqdn).Result()
		if err != nil {
			return nil, fmt.Errorf("loading device %s: %w", fqdn, err)
		}
		if n == 0 {
			return nil, util.NewNotFoundError("device", fqdn)
		}
	}
	return &redisDevice{
		store:    s,
		fqdn:     fqdn,
		loopback: fields["loopback"],
		links:    links,
	}, nil
}

func (s *RedisStore) loadLinks(fqdn string) ([]link, error) {
	encoded, err := s.client.LRange(s.ctx, keyLinksPrefix+fqdn, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("loading links for %s: %w", fqdn, err)
	}
	links := make([]link, 0, len(encoded))
	for _, e := range encoded {
		parts := strings.SplitN(e, "|", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("%w: malformed link entry %q for %s", util.ErrInvalidConfig, e, fqdn)
		}
		links = append(links, link{localPort: parts[0], peer: parts[1], remotePort: parts[2]})
	}
	return links, nil
}

// setEntry writes one config entry hash. Empty field maps get a NULL marker
// so the key exists.
func (s *RedisStore) setEntry(fqdn, table, key string, fields map[string]string) error {
	redisKey := fmt.Sprintf("%s%s:%s|%s", keyConfigPrefix, fqdn, table, key)
	if len(fields) == 0 {
		return s.client.HSet(s.ctx, redisKey, "NULL", "NULL").Err()
	}
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return s.client.HSet(s.ctx, redisKey, args...).Err()
}

// hasEntry reports whether a config entry exists.
func (s *RedisStore) hasEntry(fqdn, table, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s%s:%s|%s", keyConfigPrefix, fqdn, table, key)
	n, err := s.client.Exists(s.ctx, redisKey).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ============================================================================
// redisDevice
// ============================================================================

// redisDevice satisfies mesh.Device over the Redis store. Provisioning calls
// write config entries under the device's config prefix.
type redisDevice struct {
	store    *RedisStore
	fqdn     string
	loopback string
	links    []link
}

func (d *redisDevice) FQDN() string { return d.fqdn }

// LoopbackIP returns the stored loopback address.
func (d *redisDevice) LoopbackIP() string { return d.loopback }

// Neighbours loads the physically adjacent devices, first-seen order.
func (d *redisDevice) Neighbours() []mesh.Device {
	seen := make(map[string]bool, len(d.links))
	var out []mesh.Device
	for _, l := range d.links {
		if seen[l.peer] {
			continue
		}
		seen[l.peer] = true
		n, err := d.store.loadDevice(l.peer)
		if err != nil {
			util.WithDevice(d.fqdn).Warnf("Skipping unresolvable neighbor %s: %v", l.peer, err)
			continue
		}
		out = append(out, n)
	}
	return out
}

// MakeLAG writes a PORTCHANNEL entry plus member entries and returns the LAG
// interface name.
func (d *redisDevice) MakeLAG(lag int, members []string, minLinks int) (string, error) {
	name := fmt.Sprintf("PortChannel%d", lag)
	exists, err := d.store.hasEntry(d.fqdn, "PORTCHANNEL", name)
	if err != nil {
		return "", fmt.Errorf("checking %s on %s: %w", name, d.fqdn, err)
	}
	if exists {
		return "", fmt.Errorf("%w: %s on %s", util.ErrAlreadyExists, name, d.fqdn)
	}
	fields := map[string]string{"admin_status": "up"}
	if minLinks > 0 {
		fields["min_links"] = fmt.Sprintf("%d", minLinks)
	}
	if err := d.store.setEntry(d.fqdn, "PORTCHANNEL", name, fields); err != nil {
		return "", fmt.Errorf("writing %s on %s: %w", name, d.fqdn, err)
	}
	for _, member := range members {
		memberKey := fmt.Sprintf("%s|%s", name, member)
		if err := d.store.setEntry(d.fqdn, "PORTCHANNEL_MEMBER", memberKey, nil); err != nil {
			return "", fmt.Errorf("writing member %s on %s: %w", memberKey, d.fqdn, err)
		}
	}
	return name, nil
}

// AddSubif writes a sub-interface entry.
func (d *redisDevice) AddSubif(parent string, subif int) error {
	key := fmt.Sprintf("%s.%d", parent, subif)
	if err := d.store.setEntry(d.fqdn, "VLAN_SUB_INTERFACE", key, map[string]string{"admin_status": "up"}); err != nil {
		return fmt.Errorf("writing subif %s on %s: %w", key, d.fqdn, err)
	}
	return nil
}

// AddSVI writes a switched virtual interface entry.
func (d *redisDevice) AddSVI(svi int) error {
	key := fmt.Sprintf("Vlan%d", svi)
	if err := d.store.setEntry(d.fqdn, "VLAN_INTERFACE", key, nil); err != nil {
		return fmt.Errorf("writing SVI %s on %s: %w", key, d.fqdn, err)
	}
	return nil
}
