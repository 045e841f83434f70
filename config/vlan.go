package config

import (
	"net"
	"time"
)

// HostCacheEntry is one learned MAC's cache entry, grounded on
// valve.py's vlan.host_cache: which port a MAC was last seen on and
// when, used by host_expire to age entries out.
type HostCacheEntry struct {
	Port      uint32
	CacheTime time.Time
}

// VLAN is a broadcast domain: the member ports, learned hosts, and (for
// routed VLANs) the per-IP-version FIB state, grounded on valve.py's
// vlan.* attributes referenced throughout rcv_packet/reload_config.
type VLAN struct {
	VID  int
	Name string

	Untagged []*Port
	Tagged   []*Port

	// MirrorDestinationPorts receive a copy of every packet seen on
	// this VLAN (port-level mirroring is per-Port; VLAN-level mirroring
	// names the sink ports here).
	MirrorDestinationPorts []uint32

	FaucetMAC net.HardwareAddr
	// FaucetVIPsByIPVersion maps 4 or 6 to the virtual gateway
	// addresses this VLAN's router interface owns.
	FaucetVIPsByIPVersion map[int][]*net.IPNet

	MaxHosts      int
	LearnBanCount int

	// HostCache maps a learned MAC to where and when it was learned.
	HostCache map[string]*HostCacheEntry
	// NeighCacheByIPVersion maps 4/6 to resolved-neighbor state (ARP/ND)
	// keyed by IP string, used by the route manager's resolve_gateways.
	NeighCacheByIPVersion map[int]map[string]*HostCacheEntry

	ACLIn int
}

// IPVersions returns the IP versions (4, 6, or both) this VLAN routes,
// derived from which FaucetVIPsByIPVersion entries are non-empty,
// mirroring valve.py's vlan.ipvs().
func (v *VLAN) IPVersions() []int {
	var out []int
	for _, ipv := range []int{4, 6} {
		if len(v.FaucetVIPsByIPVersion[ipv]) > 0 {
			out = append(out, ipv)
		}
	}
	return out
}

// Ports returns every port that is a member of this VLAN, tagged or
// untagged, mirroring valve.py's vlan.get_ports().
func (v *VLAN) Ports() []*Port {
	out := make([]*Port, 0, len(v.Untagged)+len(v.Tagged))
	out = append(out, v.Untagged...)
	out = append(out, v.Tagged...)
	return out
}

// HostsLearned reports how many MACs are currently cached on this
// VLAN, mirroring valve.py's vlan.hosts_count-shaped call sites.
func (v *VLAN) HostsLearned() int {
	return len(v.HostCache)
}

// StructuralEqual reports whether v and o have the same static
// configuration (membership, VIPs, limits), ignoring dynamic learned
// state (HostCache, NeighCacheByIPVersion, LearnBanCount). Used on
// reload to decide whether flood/ACL rules need rebuilding, per
// spec.md's structural-projection guidance.
func (v *VLAN) StructuralEqual(o *VLAN) bool {
	if v.VID != o.VID || v.Name != o.Name || v.MaxHosts != o.MaxHosts || v.ACLIn != o.ACLIn {
		return false
	}
	if v.FaucetMAC.String() != o.FaucetMAC.String() {
		return false
	}
	if !vipsEqual(v.FaucetVIPsByIPVersion, o.FaucetVIPsByIPVersion) {
		return false
	}
	if !portNumsEqual(v.Untagged, o.Untagged) || !portNumsEqual(v.Tagged, o.Tagged) {
		return false
	}
	return true
}

// MergeDyn copies learned state (HostCache, NeighCacheByIPVersion) from
// prev into v, used when reload_config rebuilds the VLAN set but wants
// to keep already-learned hosts rather than forcing every MAC to
// relearn. Mirrors valve.py's approach of carrying forward dynamic
// state across a structurally-unchanged reload.
func (v *VLAN) MergeDyn(prev *VLAN) {
	if prev == nil {
		return
	}
	v.HostCache = prev.HostCache
	v.NeighCacheByIPVersion = prev.NeighCacheByIPVersion
	v.LearnBanCount = prev.LearnBanCount
}

// ToConf renders the VLAN back into a plain map, backing
// Valve.GetConfigDict and DP.ToConf (spec.md §6's REST control API
// read path, present in valve.py as vlan.to_conf).
func (v *VLAN) ToConf() map[string]interface{} {
	untagged := make([]uint32, len(v.Untagged))
	for i, p := range v.Untagged {
		untagged[i] = p.Number
	}
	tagged := make([]uint32, len(v.Tagged))
	for i, p := range v.Tagged {
		tagged[i] = p.Number
	}
	return map[string]interface{}{
		"name":     v.Name,
		"vid":      v.VID,
		"untagged": untagged,
		"tagged":   tagged,
		"max_hosts": v.MaxHosts,
		"hosts_count": v.HostsLearned(),
	}
}

func vipsEqual(a, b map[int][]*net.IPNet) bool {
	if len(a) != len(b) {
		return false
	}
	for ipv, vipsA := range a {
		vipsB, ok := b[ipv]
		if !ok || len(vipsA) != len(vipsB) {
			return false
		}
		for i := range vipsA {
			if vipsA[i].String() != vipsB[i].String() {
				return false
			}
		}
	}
	return true
}

func portNumsEqual(a, b []*Port) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Number != b[i].Number {
			return false
		}
	}
	return true
}
