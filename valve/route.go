package valve

import (
	"net"
	"time"

	"github.com/netrack/openflow/ofp13"

	"github.com/faucetgo/valve/config"
	"github.com/faucetgo/valve/ofutil"
)

// RouteManager manages one IP version's FIB/VIP/neighbor state for a
// DP, mirroring valve.py's per-ipv route_manager_by_ipv dispatch
// (spec.md §4.4). There is one instance per IP version, and NewValve
// builds both (4 and 6) for every DP; IPv4RouteManager and IPv6RouteManager supply the version-specific
// control-plane decoding (ARP vs ND/ICMPv6).
type RouteManager interface {
	IPVersion() int
	AddFaucetVIP(vlan *config.VLAN, vip *net.IPNet) []ofutil.Message
	AddRoute(vlan *config.VLAN, gw, dst net.IP, static bool) []ofutil.Message
	DelRoute(vlan *config.VLAN, dst net.IP) []ofutil.Message
	ResolveGateways(vlan *config.VLAN, now time.Time) []ofutil.Message
	Advertise(vlan *config.VLAN, now time.Time) []ofutil.Message
	ControlPlaneHandler(pktMeta *PacketMeta) ([]ofutil.Message, bool)
	// AddHostFIBRouteFromPacket installs a directly-connected FIB route
	// for a packet-in's source host when control-plane handling didn't
	// already claim the packet, mirroring valve.py's
	// add_host_fib_route_from_pkt (spec.md §4.6 "Packet-in" step 5).
	// Returns nil when the packet doesn't carry this manager's IP
	// version or the VLAN isn't routed for it.
	AddHostFIBRouteFromPacket(pktMeta *PacketMeta) []ofutil.Message
	SetDecTTL(bool)
}

// fibEntry records whether a FIB route was added as static (through
// Valve.AddRoute) or dynamically from a packet-in's source host
// (addHostFIBRoute); ResolveGateways skips static entries, so gateway
// resolution never retries or evicts a statically configured route
// (SPEC_FULL.md §3.3).
type fibEntry struct {
	gw     net.IP
	static bool
}

// resolveState tracks exponential-backoff retry bookkeeping for one
// unresolved gateway, mirroring valve.py's gateway resolution retry
// loop.
type resolveState struct {
	attempts    int
	lastTry     time.Time
	nextBackoff time.Duration
}

// baseRouteManager holds the fields and logic common to both IP
// versions: FIB/VIP tables, backoff bookkeeping, and advertise gating.
// IPv4RouteManager/IPv6RouteManager embed it and add only the
// control-plane decode step that differs by protocol.
type baseRouteManager struct {
	ipVersion int

	VIPTable    *config.Table
	FIBTable    *config.Table
	EthDstTable *config.Table

	HighPriority uint16
	LowPriority  uint16

	ARPNeighborTimeout      time.Duration
	MaxResolveBackoffTime   time.Duration
	MaxHostFIBRetryCount    int
	MaxHostsPerResolveCycle int
	AdvertiseInterval       time.Duration

	// DecTTL toggles whether routed frames get a decrement-TTL action;
	// set false by the Aruba vendor variant (spec.md §4.6).
	DecTTL bool

	// ResolveRequestBuilder builds the protocol-specific gateway
	// resolution request (ARP request for v4, neighbor solicitation
	// for v6); set by IPv4RouteManager/IPv6RouteManager at
	// construction since the wire format differs per version.
	ResolveRequestBuilder func(vlan *config.VLAN, gw net.IP) []ofutil.Message

	// VLANLookup resolves a VID to its *config.VLAN; wired by the
	// Valve core at construction since ControlPlaneHandler only
	// receives a PacketMeta (which carries a bare VID), not a VLAN
	// pointer.
	VLANLookup func(vid int) *config.VLAN

	fibByVLAN      map[int]map[string]*fibEntry // vlan vid -> dst string -> entry
	resolveByVLAN  map[int]map[string]*resolveState
	lastAdvertise  map[int]time.Time
}

func (b *baseRouteManager) IPVersion() int { return b.ipVersion }

// SetDecTTL toggles whether routed FIB entries decrement TTL, set false
// by the Aruba vendor variant (spec.md §4.6).
func (b *baseRouteManager) SetDecTTL(dt bool) { b.DecTTL = dt }

func (b *baseRouteManager) ensureMaps() {
	if b.fibByVLAN == nil {
		b.fibByVLAN = map[int]map[string]*fibEntry{}
	}
	if b.resolveByVLAN == nil {
		b.resolveByVLAN = map[int]map[string]*resolveState{}
	}
	if b.lastAdvertise == nil {
		b.lastAdvertise = map[int]time.Time{}
	}
}

// AddFaucetVIP punts traffic to the VIP to the controller and installs
// the direct-connected route for vip's subnet, mirroring valve.py's
// _add_faucet_vips. Only VLANs whose VIPs are configured get FIB
// flows (spec.md's invariant).
func (b *baseRouteManager) AddFaucetVIP(vlan *config.VLAN, vip *net.IPNet) []ofutil.Message {
	vlanMatch := &ofutil.VLANMatch{VID: uint16(vlan.VID)}
	vipHost := &net.IPNet{IP: vip.IP, Mask: fullMask(vip.IP)}
	subnet := &net.IPNet{IP: vip.IP.Mask(vip.Mask), Mask: vip.Mask}
	inst := []ofutil.Instruction{ofutil.GotoTable(b.EthDstTable.ID)}
	punt := b.VIPTable.FlowController(b.HighPriority, ofutil.Match{VLAN: vlanMatch, NWDst: vipHost}, 0)
	connected := b.FIBTable.FlowMod(b.LowPriority, ofutil.Match{VLAN: vlanMatch, NWDst: subnet}, inst, 0, 0, 0)
	return []ofutil.Message{punt, connected}
}

// AddRoute installs a FIB entry for dst via gw, mirroring valve.py's
// add_route. ResolveGateways skips static entries, so gateway
// resolution never retries or evicts a static route (SPEC_FULL.md
// §3.3); a later AddRoute for the same dst, static or not, replaces the
// entry.
func (b *baseRouteManager) AddRoute(vlan *config.VLAN, gw, dst net.IP, static bool) []ofutil.Message {
	b.ensureMaps()
	if b.fibByVLAN[vlan.VID] == nil {
		b.fibByVLAN[vlan.VID] = map[string]*fibEntry{}
	}
	b.fibByVLAN[vlan.VID][dst.String()] = &fibEntry{gw: gw, static: static}

	vlanMatch := &ofutil.VLANMatch{VID: uint16(vlan.VID)}
	match := ofutil.Match{VLAN: vlanMatch, NWDst: &net.IPNet{IP: dst, Mask: fullMask(dst)}}
	var inst []ofutil.Instruction
	if b.DecTTL {
		inst = append(inst, ofutil.ApplyActions([]ofutil.Action{ofutil.DecTTL{}}))
	}
	inst = append(inst, ofutil.GotoTable(b.EthDstTable.ID))
	return []ofutil.Message{b.FIBTable.FlowMod(b.LowPriority, match, inst, 0, 0, 0)}
}

// DelRoute removes dst's FIB entry, mirroring valve.py's del_route.
func (b *baseRouteManager) DelRoute(vlan *config.VLAN, dst net.IP) []ofutil.Message {
	b.ensureMaps()
	delete(b.fibByVLAN[vlan.VID], dst.String())
	vlanMatch := &ofutil.VLANMatch{VID: uint16(vlan.VID)}
	match := ofutil.Match{VLAN: vlanMatch, NWDst: &net.IPNet{IP: dst, Mask: fullMask(dst)}}
	return []ofutil.Message{b.FIBTable.FlowDel(match, true)}
}

func fullMask(ip net.IP) net.IPMask {
	if ip4 := ip.To4(); ip4 != nil {
		return net.CIDRMask(32, 32)
	}
	return net.CIDRMask(128, 128)
}

// ResolveGateways retries resolution for every unresolved FIB gateway
// on vlan, capped at MaxHostsPerResolveCycle per call and backing off
// exponentially up to MaxResolveBackoffTime, giving up after
// MaxHostFIBRetryCount attempts, mirroring valve.py's resolve_gateways.
func (b *baseRouteManager) ResolveGateways(vlan *config.VLAN, now time.Time) []ofutil.Message {
	b.ensureMaps()
	resolveCache := b.resolveByVLAN[vlan.VID]
	if resolveCache == nil {
		resolveCache = map[string]*resolveState{}
		b.resolveByVLAN[vlan.VID] = resolveCache
	}

	var msgs []ofutil.Message
	attempted := 0
	for dst, entry := range b.fibByVLAN[vlan.VID] {
		if attempted >= b.MaxHostsPerResolveCycle {
			break
		}
		if entry.static {
			continue
		}
		if b.resolved(vlan, entry.gw) {
			continue
		}

		state := resolveCache[dst]
		if state == nil {
			state = &resolveState{nextBackoff: time.Second}
			resolveCache[dst] = state
		}
		if state.attempts >= b.MaxHostFIBRetryCount {
			continue
		}
		if !state.lastTry.IsZero() && now.Sub(state.lastTry) < state.nextBackoff {
			continue
		}

		if b.ResolveRequestBuilder != nil {
			msgs = append(msgs, b.ResolveRequestBuilder(vlan, entry.gw)...)
		}
		state.attempts++
		state.lastTry = now
		state.nextBackoff *= 2
		if state.nextBackoff > b.MaxResolveBackoffTime {
			state.nextBackoff = b.MaxResolveBackoffTime
		}
		attempted++
	}
	return msgs
}

// installNeighborFlow installs an eth_dst flow sending frames for mac
// out port, the route-manager analogue of
// HostManager.LearnHostOnVLANPort's dst flow, mirroring valve.py's
// control_plane_handler resolving a neighbor's forwarding flow
// alongside its cache entry.
func (b *baseRouteManager) installNeighborFlow(vlan *config.VLAN, mac net.HardwareAddr, port uint32) ofutil.Message {
	match := ofutil.Match{VLAN: &ofutil.VLANMatch{VID: uint16(vlan.VID)}, EthDst: mac}
	inst := []ofutil.Instruction{ofutil.ApplyActions(ofutil.OutputPort(ofp13.PortNo(port), 0))}
	return b.EthDstTable.FlowMod(b.HighPriority, match, inst, 0, 0, 0)
}

// addHostFIBRoute records srcIP as a resolved neighbor on port and
// installs a dynamic /32 or /128 FIB entry using the host's own address
// as its gateway, mirroring valve.py's add_host_fib_route_from_pkt: a
// packet-in from the host proves it is directly reachable.
func (b *baseRouteManager) addHostFIBRoute(vlan *config.VLAN, srcIP net.IP, port uint32) []ofutil.Message {
	if srcIP == nil {
		return nil
	}
	b.ensureMaps()
	if vlan.NeighCacheByIPVersion == nil {
		vlan.NeighCacheByIPVersion = map[int]map[string]*config.HostCacheEntry{}
	}
	if vlan.NeighCacheByIPVersion[b.ipVersion] == nil {
		vlan.NeighCacheByIPVersion[b.ipVersion] = map[string]*config.HostCacheEntry{}
	}
	vlan.NeighCacheByIPVersion[b.ipVersion][srcIP.String()] = &config.HostCacheEntry{Port: port}
	return b.AddRoute(vlan, srcIP, srcIP, false)
}

func (b *baseRouteManager) resolved(vlan *config.VLAN, gw net.IP) bool {
	cache := vlan.NeighCacheByIPVersion[b.ipVersion]
	if cache == nil {
		return false
	}
	_, ok := cache[gw.String()]
	return ok
}

// Advertise emits the periodic RA/gratuitous advertisement for vlan
// when AdvertiseInterval has elapsed since the last call, mirroring
// valve.py's advertise gating on _last_advertise_sec.
func (b *baseRouteManager) Advertise(vlan *config.VLAN, now time.Time, build func() []ofutil.Message) []ofutil.Message {
	b.ensureMaps()
	last, ok := b.lastAdvertise[vlan.VID]
	if ok && now.Sub(last) < b.AdvertiseInterval {
		return nil
	}
	b.lastAdvertise[vlan.VID] = now
	return build()
}
