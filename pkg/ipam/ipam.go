// Package ipam implements the persistent, idempotent per-pod IPv4
// allocator described in spec.md §4.E: one CIDR, swept from network+2
// upward, with allocations recorded directly in the KVStore so they
// survive a restart without a separate bitmap file.
package ipam

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"strings"

	"github.com/CloudNebulaProject/reddwarf/pkg/kv"
)

const allocPrefix = "ipam/alloc/"

// Allocation is the result of a successful Allocate call.
type Allocation struct {
	IP        net.IP
	Gateway   net.IP
	PrefixLen int
}

// ExhaustionError is returned when a CIDR has no free host addresses left.
type ExhaustionError struct {
	CIDR string
}

func (e *ExhaustionError) Error() string {
	return fmt.Sprintf("ipam: address pool %s is exhausted", e.CIDR)
}

// Allocator hands out addresses from a single CIDR.
type Allocator struct {
	kv         kv.KVStore
	cidr       string
	network    uint32
	broadcast  uint32
	gateway    net.IP
	prefixLen  int
}

// New parses cidr (literal A.B.C.D/P form, 0<=P<=32) and returns an
// Allocator over it.
func New(store kv.KVStore, cidr string) (*Allocator, error) {
	ip, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, fmt.Errorf("ipam: invalid CIDR %q: %w", cidr, err)
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("ipam: only IPv4 CIDRs are supported, got %q", cidr)
	}
	ones, bits := ipnet.Mask.Size()
	if bits != 32 {
		return nil, fmt.Errorf("ipam: only IPv4 CIDRs are supported, got %q", cidr)
	}

	network := binary.BigEndian.Uint32(ipnet.IP.To4())
	hostBits := 32 - ones
	var broadcast uint32
	if hostBits == 0 {
		broadcast = network
	} else {
		broadcast = network | (1<<uint(hostBits) - 1)
	}

	gw := make(net.IP, 4)
	binary.BigEndian.PutUint32(gw, network+1)

	return &Allocator{
		kv:        store,
		cidr:      cidr,
		network:   network,
		broadcast: broadcast,
		gateway:   gw,
		prefixLen: ones,
	}, nil
}

func allocKey(ip net.IP) []byte {
	return []byte(allocPrefix + ip.String())
}

func podValue(namespace, pod string) []byte {
	return []byte(namespace + "/" + pod)
}

// Allocate returns the address bound to (namespace, pod), allocating a
// fresh one on first call and returning the same address on every
// subsequent call.
func (a *Allocator) Allocate(ctx context.Context, namespace, pod string) (*Allocation, error) {
	want := string(podValue(namespace, pod))
	var result net.IP

	err := a.kv.Update(ctx, func(tx kv.Tx) error {
		allocated := map[uint32]bool{}
		var existing net.IP

		scanErr := tx.PrefixScan([]byte(allocPrefix), func(key, value []byte) bool {
			ipStr := strings.TrimPrefix(string(key), allocPrefix)
			ip := net.ParseIP(ipStr).To4()
			if ip == nil {
				return true
			}
			allocated[binary.BigEndian.Uint32(ip)] = true
			if string(value) == want {
				existing = ip
				return false
			}
			return true
		})
		if scanErr != nil {
			return scanErr
		}
		if existing != nil {
			result = existing
			return nil
		}

		for addr := a.network + 2; addr < a.broadcast; addr++ {
			if allocated[addr] {
				continue
			}
			ip := make(net.IP, 4)
			binary.BigEndian.PutUint32(ip, addr)
			if err := tx.Put(allocKey(ip), podValue(namespace, pod)); err != nil {
				return err
			}
			result = ip
			return nil
		}
		return &ExhaustionError{CIDR: a.cidr}
	})
	if err != nil {
		return nil, err
	}
	return &Allocation{IP: result, Gateway: a.gateway, PrefixLen: a.prefixLen}, nil
}

// Release frees the address bound to (namespace, pod), if any, and
// returns it. A missing mapping is not an error; the returned IP is nil.
func (a *Allocator) Release(ctx context.Context, namespace, pod string) (net.IP, error) {
	want := string(podValue(namespace, pod))
	var freed net.IP

	err := a.kv.Update(ctx, func(tx kv.Tx) error {
		var foundKey []byte
		scanErr := tx.PrefixScan([]byte(allocPrefix), func(key, value []byte) bool {
			if string(value) == want {
				foundKey = append([]byte(nil), key...)
				return false
			}
			return true
		})
		if scanErr != nil {
			return scanErr
		}
		if foundKey == nil {
			return nil
		}
		ipStr := strings.TrimPrefix(string(foundKey), allocPrefix)
		freed = net.ParseIP(ipStr)
		return tx.Delete(foundKey)
	})
	if err != nil {
		return nil, err
	}
	return freed, nil
}

// vnicMaxLen is the illumos VNIC name length limit (spec.md §4.E).
const vnicMaxLen = 28

// VNICName derives the deterministic per-pod VNIC name: vnic_{ns}_{pod}
// with hyphens normalized to underscores, falling back to a hashed short
// form when the natural name would overflow vnicMaxLen.
func VNICName(namespace, pod string) string {
	name := "vnic_" + strings.ReplaceAll(namespace, "-", "_") + "_" + strings.ReplaceAll(pod, "-", "_")
	if len(name) <= vnicMaxLen {
		return name
	}
	return fmt.Sprintf("vnic_%08x", djb2(namespace+"/"+pod))
}

func djb2(s string) uint32 {
	hash := uint32(5381)
	for i := 0; i < len(s); i++ {
		hash = hash*31 + uint32(s[i])
	}
	return hash
}
