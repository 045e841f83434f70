package valve

import (
	"net"
	"time"

	"github.com/netrack/openflow/ofp13"

	"github.com/faucetgo/valve/config"
	"github.com/faucetgo/valve/ofutil"
)

const ethTypeARP = 0x0806

// IPv4RouteManager is the IPv4 RouteManager: FIB/VIP management plus
// ARP-based control-plane handling and gateway resolution, mirroring
// valve.py's valve_route.ValveIPv4RouteManager.
type IPv4RouteManager struct {
	baseRouteManager

	// ARPRequestBuilder builds the wire bytes of an ARP request frame
	// for targetIP, sourced from srcMAC/srcIP; wired by the Valve core
	// to the external packet builder (spec.md's packet parser is an
	// external collaborator, so ofutil/valve never assemble frame
	// bytes themselves). Left nil, ResolveGateways degrades to
	// bookkeeping only (no request is actually sent).
	ARPRequestBuilder func(srcMAC net.HardwareAddr, srcIP, targetIP net.IP) []byte

	// ARPReplyBuilder builds the wire bytes of an ARP reply sent from
	// srcMAC/srcIP back to dstMAC/dstIP, wired by the Valve core the
	// same way ARPRequestBuilder is; left nil, a VIP ARP request gets
	// its neighbor-cache/flow update but no reply.
	ARPReplyBuilder func(srcMAC net.HardwareAddr, srcIP net.IP, dstMAC net.HardwareAddr, dstIP net.IP) []byte
}

// NewIPv4RouteManager builds an IPv4 RouteManager wired to the given
// pipeline tables and timing knobs from the DP descriptor.
func NewIPv4RouteManager(vipTable, fibTable, ethDstTable *config.Table, dp *config.DP, decTTL bool) *IPv4RouteManager {
	rm := &IPv4RouteManager{baseRouteManager: baseRouteManager{
		ipVersion:               4,
		VIPTable:                vipTable,
		FIBTable:                fibTable,
		EthDstTable:             ethDstTable,
		HighPriority:            dp.HighPriority,
		LowPriority:             dp.LowPriority,
		ARPNeighborTimeout:      dp.ARPNeighborTimeout,
		MaxResolveBackoffTime:   dp.MaxResolveBackoffTime,
		MaxHostFIBRetryCount:    dp.MaxHostFIBRetryCount,
		MaxHostsPerResolveCycle: dp.MaxHostsPerResolveCycle,
		AdvertiseInterval:       dp.AdvertiseInterval,
		DecTTL:                  decTTL,
	}}
	rm.ResolveRequestBuilder = rm.buildARPRequest
	return rm
}

// vlanVIP returns the first configured VIP of the given IP version on
// vlan, used as the source address of ARP requests (and, for version
// 6, of neighbor solicitations).
func vlanVIP(vlan *config.VLAN, version int) net.IP {
	vips := vlan.FaucetVIPsByIPVersion[version]
	if len(vips) == 0 {
		return nil
	}
	return vips[0].IP
}

// buildARPRequest broadcasts an ARP request for gw out every port of
// vlan as a packet-out, mirroring valve.py's resolve_gateways ARP
// broadcast.
func (rm *IPv4RouteManager) buildARPRequest(vlan *config.VLAN, gw net.IP) []ofutil.Message {
	if rm.ARPRequestBuilder == nil {
		return nil
	}
	srcIP := vlanVIP(vlan, 4)
	data := rm.ARPRequestBuilder(vlan.FaucetMAC, srcIP, gw)
	if len(data) == 0 {
		return nil
	}

	var actions []ofutil.Action
	for _, p := range vlan.Ports() {
		actions = append(actions, ofutil.Output{Port: ofp13.PortNo(p.Number)})
	}
	return []ofutil.Message{ofutil.PacketOut{
		BufferID: ofutil.NoBuffer,
		InPort:   ofp13.P_CONTROLLER,
		Actions:  actions,
		Data:     data,
	}}
}

// Advertise is a no-op for IPv4 (no periodic broadcast analogous to
// IPv6 router advertisements), mirroring valve.py's ValveIPv4RouteManager.advertise.
func (rm *IPv4RouteManager) Advertise(vlan *config.VLAN, now time.Time) []ofutil.Message {
	return nil
}

// ControlPlaneHandler decodes an ARP request/reply already parsed into
// pktMeta.ARP, records the sender as a resolved neighbor with a live
// forwarding flow, and replies to a request targeting one of the
// VLAN's VIPs, mirroring valve.py's control_plane_handler for IPv4.
func (rm *IPv4RouteManager) ControlPlaneHandler(pktMeta *PacketMeta) ([]ofutil.Message, bool) {
	if pktMeta.EthType != ethTypeARP || pktMeta.ARP == nil {
		return nil, false
	}
	arp := pktMeta.ARP

	vlan := rm.vlanFor(pktMeta)
	if vlan == nil {
		return nil, false
	}
	if vlan.NeighCacheByIPVersion == nil {
		vlan.NeighCacheByIPVersion = map[int]map[string]*config.HostCacheEntry{}
	}
	if vlan.NeighCacheByIPVersion[4] == nil {
		vlan.NeighCacheByIPVersion[4] = map[string]*config.HostCacheEntry{}
	}
	vlan.NeighCacheByIPVersion[4][arp.SenderIP.String()] = &config.HostCacheEntry{Port: pktMeta.Port}

	var msgs []ofutil.Message
	if len(arp.SenderMAC) > 0 {
		msgs = append(msgs, rm.installNeighborFlow(vlan, arp.SenderMAC, pktMeta.Port))
	}

	if arp.Op == ARPRequest && rm.isOwnVIP(vlan, arp.TargetIP) && rm.ARPReplyBuilder != nil {
		data := rm.ARPReplyBuilder(vlan.FaucetMAC, arp.TargetIP, arp.SenderMAC, arp.SenderIP)
		if len(data) > 0 {
			msgs = append(msgs, ofutil.PacketOut{
				BufferID: ofutil.NoBuffer,
				InPort:   ofp13.P_CONTROLLER,
				Actions:  ofutil.OutputPort(ofp13.PortNo(pktMeta.Port), 0),
				Data:     data,
			})
		}
	}

	return msgs, true
}

// isOwnVIP reports whether ip is one of vlan's configured IPv4 VIPs,
// the condition gating an ARP reply rather than just a cache update.
func (rm *IPv4RouteManager) isOwnVIP(vlan *config.VLAN, ip net.IP) bool {
	for _, vip := range vlan.FaucetVIPsByIPVersion[4] {
		if vip.IP.Equal(ip) {
			return true
		}
	}
	return false
}

// AddHostFIBRouteFromPacket installs a directly-connected FIB entry for
// an IPv4 packet's source host, mirroring valve.py's
// add_host_fib_route_from_pkt.
func (rm *IPv4RouteManager) AddHostFIBRouteFromPacket(pktMeta *PacketMeta) []ofutil.Message {
	if pktMeta.SrcIP == nil || pktMeta.SrcIP.To4() == nil {
		return nil
	}
	vlan := rm.vlanFor(pktMeta)
	if vlan == nil || len(vlan.FaucetVIPsByIPVersion[4]) == 0 {
		return nil
	}
	return rm.addHostFIBRoute(vlan, pktMeta.SrcIP, pktMeta.Port)
}

// vlanFor resolves a packet's bare VID to its *config.VLAN via the hook
// the Valve core wires at construction (ControlPlaneHandler only
// receives a PacketMeta, never a VLAN pointer).
func (rm *IPv4RouteManager) vlanFor(pktMeta *PacketMeta) *config.VLAN {
	if rm.VLANLookup == nil {
		return nil
	}
	return rm.VLANLookup(pktMeta.VLAN)
}
