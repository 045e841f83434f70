package valve

import (
	"net"
	"time"

	"github.com/netrack/openflow/ofp13"

	"github.com/faucetgo/valve/config"
	"github.com/faucetgo/valve/ofutil"
)

const ethTypeIPv6 = 0x86dd

// IPv6RouteManager is the IPv6 RouteManager: FIB/VIP management plus
// ND/ICMPv6-based control-plane handling, gateway resolution, and
// periodic router advertisement, mirroring valve.py's
// valve_route.ValveIPv6RouteManager.
type IPv6RouteManager struct {
	baseRouteManager

	// NeighborSolicitBuilder builds the wire bytes of a neighbor
	// solicitation for targetIP; the v6 analogue of
	// IPv4RouteManager.ARPRequestBuilder. Wired by the Valve core.
	NeighborSolicitBuilder func(srcMAC net.HardwareAddr, srcIP, targetIP net.IP) []byte

	// RouterAdvertBuilder builds the wire bytes of a periodic router
	// advertisement for vlan; wired by the Valve core. Left nil,
	// Advertise degrades to interval bookkeeping only.
	RouterAdvertBuilder func(vlan *config.VLAN) []byte

	// NeighborAdvertBuilder builds the wire bytes of a neighbor
	// advertisement reply sent from srcMAC/srcIP back to dstMAC/dstIP,
	// the v6 analogue of IPv4RouteManager.ARPReplyBuilder. Left nil, a
	// VIP solicitation gets its neighbor-cache/flow update but no reply.
	NeighborAdvertBuilder func(srcMAC net.HardwareAddr, srcIP net.IP, dstMAC net.HardwareAddr, dstIP net.IP) []byte
}

// NewIPv6RouteManager builds an IPv6 RouteManager wired to the given
// pipeline tables and timing knobs from the DP descriptor.
func NewIPv6RouteManager(vipTable, fibTable, ethDstTable *config.Table, dp *config.DP, decTTL bool) *IPv6RouteManager {
	rm := &IPv6RouteManager{baseRouteManager: baseRouteManager{
		ipVersion:               6,
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
	rm.ResolveRequestBuilder = rm.buildNeighborSolicit
	return rm
}

func (rm *IPv6RouteManager) portOutputActions(vlan *config.VLAN) []ofutil.Action {
	var actions []ofutil.Action
	for _, p := range vlan.Ports() {
		actions = append(actions, ofutil.Output{Port: ofp13.PortNo(p.Number)})
	}
	return actions
}

// buildNeighborSolicit sends a neighbor solicitation for gw out every
// port of vlan as a packet-out, mirroring valve.py's resolve_gateways
// ND path.
func (rm *IPv6RouteManager) buildNeighborSolicit(vlan *config.VLAN, gw net.IP) []ofutil.Message {
	if rm.NeighborSolicitBuilder == nil {
		return nil
	}
	srcIP := vlanVIP(vlan, 6)
	data := rm.NeighborSolicitBuilder(vlan.FaucetMAC, srcIP, gw)
	if len(data) == 0 {
		return nil
	}
	return []ofutil.Message{ofutil.PacketOut{
		BufferID: ofutil.NoBuffer,
		InPort:   ofp13.P_CONTROLLER,
		Actions:  rm.portOutputActions(vlan),
		Data:     data,
	}}
}

// Advertise sends a periodic router advertisement for vlan, gated by
// AdvertiseInterval, mirroring valve.py's ValveIPv6RouteManager.advertise.
func (rm *IPv6RouteManager) Advertise(vlan *config.VLAN, now time.Time) []ofutil.Message {
	return rm.baseRouteManager.Advertise(vlan, now, func() []ofutil.Message {
		if rm.RouterAdvertBuilder == nil {
			return nil
		}
		data := rm.RouterAdvertBuilder(vlan)
		if len(data) == 0 {
			return nil
		}
		return []ofutil.Message{ofutil.PacketOut{
			BufferID: ofutil.NoBuffer,
			InPort:   ofp13.P_CONTROLLER,
			Actions:  rm.portOutputActions(vlan),
			Data:     data,
		}}
	})
}

// ControlPlaneHandler decodes a neighbor solicitation/advertisement
// already parsed into pktMeta.NeighborSolicit, records the neighbor
// with a live forwarding flow, and replies to a solicitation targeting
// one of the VLAN's VIPs, mirroring valve.py's control_plane_handler
// for IPv6.
func (rm *IPv6RouteManager) ControlPlaneHandler(pktMeta *PacketMeta) ([]ofutil.Message, bool) {
	if pktMeta.EthType != ethTypeIPv6 || pktMeta.NeighborSolicit == nil {
		return nil, false
	}
	ns := pktMeta.NeighborSolicit

	if rm.VLANLookup == nil {
		return nil, false
	}
	vlan := rm.VLANLookup(pktMeta.VLAN)
	if vlan == nil {
		return nil, false
	}
	if vlan.NeighCacheByIPVersion == nil {
		vlan.NeighCacheByIPVersion = map[int]map[string]*config.HostCacheEntry{}
	}
	if vlan.NeighCacheByIPVersion[6] == nil {
		vlan.NeighCacheByIPVersion[6] = map[string]*config.HostCacheEntry{}
	}

	var msgs []ofutil.Message

	if ns.IsAdvert {
		vlan.NeighCacheByIPVersion[6][ns.TargetIP.String()] = &config.HostCacheEntry{Port: pktMeta.Port}
		if len(ns.SenderMAC) > 0 {
			msgs = append(msgs, rm.installNeighborFlow(vlan, ns.SenderMAC, pktMeta.Port))
		}
		return msgs, true
	}

	if len(ns.SenderIP) > 0 {
		vlan.NeighCacheByIPVersion[6][ns.SenderIP.String()] = &config.HostCacheEntry{Port: pktMeta.Port}
	}
	if len(ns.SenderMAC) > 0 {
		msgs = append(msgs, rm.installNeighborFlow(vlan, ns.SenderMAC, pktMeta.Port))
	}

	if rm.isOwnVIP(vlan, ns.TargetIP) && rm.NeighborAdvertBuilder != nil {
		data := rm.NeighborAdvertBuilder(vlan.FaucetMAC, ns.TargetIP, ns.SenderMAC, ns.SenderIP)
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

// isOwnVIP reports whether ip is one of vlan's configured IPv6 VIPs,
// the condition gating a neighbor-advertisement reply rather than just
// a cache update.
func (rm *IPv6RouteManager) isOwnVIP(vlan *config.VLAN, ip net.IP) bool {
	for _, vip := range vlan.FaucetVIPsByIPVersion[6] {
		if vip.IP.Equal(ip) {
			return true
		}
	}
	return false
}

// AddHostFIBRouteFromPacket installs a directly-connected FIB entry for
// an IPv6 packet's source host, mirroring valve.py's
// add_host_fib_route_from_pkt.
func (rm *IPv6RouteManager) AddHostFIBRouteFromPacket(pktMeta *PacketMeta) []ofutil.Message {
	if pktMeta.SrcIP == nil || pktMeta.SrcIP.To4() != nil {
		return nil
	}
	if rm.VLANLookup == nil {
		return nil
	}
	vlan := rm.VLANLookup(pktMeta.VLAN)
	if vlan == nil || len(vlan.FaucetVIPsByIPVersion[6]) == 0 {
		return nil
	}
	return rm.addHostFIBRoute(vlan, pktMeta.SrcIP, pktMeta.Port)
}
