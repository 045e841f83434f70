package valve

import (
	"fmt"
	"net"
	"time"

	"github.com/netrack/openflow/ofp13"

	"github.com/faucetgo/valve/config"
	"github.com/faucetgo/valve/ofutil"
)

// bpduMACs are the two well-known spanning-tree BPDU destination
// addresses valve.py's _add_default_drop_flows drops when DropBPDU is
// set.
var bpduMACs = []string{"01:80:C2:00:00:00", "01:00:0C:CC:CC:CD"}

const ethTypeLLDP = 0x88cc

// MetricsSink is the Prometheus-shaped facade the Valve updates on
// request, mirroring valve.py's update_metrics/update_config_metrics
// call sites against a FaucetMetrics container (spec.md §6's metrics
// label contract). Declared here, not in the metrics package, so valve
// depends only on the shape it needs (accept interfaces, return
// structs); metrics.Faucet implements this.
type MetricsSink interface {
	SetConfigDPName(dpID uint64, name string)
	SetConfigTableName(dpID uint64, tableID ofp13.Table, name string)
	ResetLearnedMACs(dpID uint64)
	SetLearnedMAC(dpID uint64, vid int, port uint32, index int, mac net.HardwareAddr)
	SetVLANHostsLearned(dpID uint64, vid int, n int)
	SetVLANLearnBans(dpID uint64, vid int, n int)
	SetVLANNeighbors(dpID uint64, vid int, ipVersion int, n int)
	SetPortLearnBans(dpID uint64, port uint32, n int)
}

// Valve orchestrates HostManager, FloodManager, the per-IP-version
// RouteManagers and ACLBuilder against one DP, translating lifecycle
// events and packet-ins into ordered OpenFlow message lists, mirroring
// valve.py's Valve class (spec.md §4.6).
type Valve struct {
	DP     *config.DP
	Logger *ValveLogger

	HostMgr    *HostManager
	FloodMgr   *FloodManager
	ACLBuilder *ACLBuilder
	RouteMgrs  map[int]RouteManager

	// L3 flips true on the first successful faucet_vip add, mirroring
	// valve.py's self.L3; control-plane handling and host-FIB routing
	// are both gated on it.
	L3 bool

	// SwitchFeaturesHook is an optional, caller-owned source of extra
	// FEATURES_REPLY setup messages. Nothing in this package sets or
	// calls it; TfmValve/ArubaValve supply their handshake messages
	// through their own SwitchFeatures methods instead.
	SwitchFeaturesHook func() []ofutil.Message

	packetInCountSec  int
	lastPacketInSec   int64

	// ConfigErrors accumulates typed initialization errors raised while
	// applying configuration (currently just ErrConfigContradiction from
	// addFaucetVIP), mirroring spec.md §9's "lift to a typed
	// initialization error surfaced by add_faucet_vip" note. Reset at
	// the start of DatapathConnect/ReloadConfig so a caller can inspect
	// it right after either call returns.
	ConfigErrors []error
}

// NewValve builds a Valve wired to dp's tables and priorities, mirroring
// valve.py's Valve.__init__: one RouteManager per IP version, a single
// FloodManager and HostManager sharing dp's priority/timing knobs.
// decTTL seeds every RouteManager's DEC_TTL policy (the Aruba variant
// passes false).
func NewValve(dp *config.DP, logger *ValveLogger, decTTL bool) *Valve {
	v := &Valve{
		DP:     dp,
		Logger: logger,
		HostMgr: &HostManager{
			EthSrcTable:     dp.Tables["eth_src"],
			EthDstTable:     dp.Tables["eth_dst"],
			HighPriority:    dp.HighPriority,
			LowestPriority:  dp.LowestPriority,
			Timeout:         dp.Timeout,
			LearnJitter:     dp.LearnJitter,
			LearnBanTimeout: dp.LearnBanTimeout,
		},
		FloodMgr: &FloodManager{
			FloodTable:  dp.Tables["flood"],
			LowPriority: dp.LowPriority,
			GroupTable:  dp.GroupTable,
		},
		ACLBuilder: &ACLBuilder{},
		RouteMgrs:  map[int]RouteManager{},
	}
	ipv4 := NewIPv4RouteManager(dp.Tables["vip"], dp.Tables["ipv4_fib"], dp.Tables["eth_dst"], dp, decTTL)
	ipv6 := NewIPv6RouteManager(dp.Tables["vip"], dp.Tables["ipv6_fib"], dp.Tables["eth_dst"], dp, decTTL)
	ipv4.VLANLookup = v.vlanByVID
	ipv6.VLANLookup = v.vlanByVID
	v.RouteMgrs[4] = ipv4
	v.RouteMgrs[6] = ipv6
	return v
}

func (v *Valve) vlanByVID(vid int) *config.VLAN {
	return v.DP.VLANs[vid]
}

// SetDecTTL toggles the DEC_TTL policy on every route manager, mirroring
// valve.py's DEC_TTL class attribute override (ArubaValve sets it
// false).
func (v *Valve) SetDecTTL(decTTL bool) {
	for _, rm := range v.RouteMgrs {
		rm.SetDecTTL(decTTL)
	}
}

func (v *Valve) ignoreDPID(dpID uint64) bool {
	if dpID != v.DP.DPID {
		v.Logger.Error(fmt.Sprintf("unknown dp_id %x", dpID))
		return true
	}
	return false
}

// deleteAllValveFlows wipes every flow/meter/group on the datapath,
// mirroring valve.py's _delete_all_valve_flows.
func (v *Valve) deleteAllValveFlows() []ofutil.Message {
	var msgs []ofutil.Message
	for _, t := range v.DP.AllValveTables() {
		msgs = append(msgs, t.FlowDel(ofutil.Wildcard, false))
	}
	if len(v.DP.Meters) > 0 {
		msgs = append(msgs, ofutil.MeterMod{Command: ofp13.MC_DELETE, MeterID: ofp13.M_ALL})
	}
	if v.DP.GroupTable {
		msgs = append(msgs, ofutil.GroupMod{Command: ofp13.GC_DELETE, GroupID: uint32(ofp13.G_ALL)})
	}
	return msgs
}

func (v *Valve) deleteAllPortMatchFlows(port *config.Port) []ofutil.Message {
	var msgs []ofutil.Message
	for _, t := range v.DP.InPortTables() {
		msgs = append(msgs, t.FlowDel(ofutil.Match{InPort: ofutil.U32(port.Number)}, false))
	}
	return msgs
}

// addDefaultDropFlows installs the table-wide lowest-priority drop in
// every table plus the policy-gated spoof/BPDU/LLDP drops, mirroring
// valve.py's _add_default_drop_flows.
func (v *Valve) addDefaultDropFlows() []ofutil.Message {
	vlanTable := v.DP.Tables["vlan"]
	var msgs []ofutil.Message

	for _, t := range v.DP.AllValveTables() {
		msgs = append(msgs, t.FlowDrop(v.DP.LowestPriority, ofutil.Wildcard, 0))
	}

	if v.DP.DropBroadcastSourceAddress {
		broadcast, _ := net.ParseMAC("ff:ff:ff:ff:ff:ff")
		msgs = append(msgs, vlanTable.FlowDrop(v.DP.HighestPriority, ofutil.Match{EthSrc: broadcast}, 0))
	}

	if v.DP.DropSpoofedFaucetMAC {
		for _, vlan := range v.DP.VLANs {
			msgs = append(msgs, vlanTable.FlowDrop(v.DP.HighPriority, ofutil.Match{EthSrc: vlan.FaucetMAC}, 0))
		}
	}

	if v.DP.DropBPDU {
		for _, bpdu := range bpduMACs {
			mac, _ := net.ParseMAC(bpdu)
			msgs = append(msgs, vlanTable.FlowDrop(v.DP.HighestPriority, ofutil.Match{EthDst: mac}, 0))
		}
	}

	if v.DP.DropLLDP {
		ethType := uint16(ethTypeLLDP)
		msgs = append(msgs, vlanTable.FlowDrop(v.DP.HighestPriority, ofutil.Match{EthType: &ethType}, 0))
	}

	return msgs
}

// addVLANFloodFlow installs the eth_dst fallback that sends
// unknown-destination traffic to the flood table, mirroring valve.py's
// _add_vlan_flood_flow.
func (v *Valve) addVLANFloodFlow() []ofutil.Message {
	inst := []ofutil.Instruction{ofutil.GotoTable(v.DP.Tables["flood"].ID)}
	return []ofutil.Message{v.DP.Tables["eth_dst"].FlowMod(v.DP.LowPriority, ofutil.Wildcard, inst, 0, 0, 0)}
}

// addControllerLearnFlow installs the eth_src default-to-controller
// entry that drives packet-in learning, mirroring valve.py's
// _add_controller_learn_flow.
func (v *Valve) addControllerLearnFlow() []ofutil.Message {
	return []ofutil.Message{v.DP.Tables["eth_src"].FlowController(v.DP.LowPriority, ofutil.Wildcard, 0)}
}

func (v *Valve) addPacketinMeter() []ofutil.Message {
	if v.DP.PacketInPPS == 0 {
		return nil
	}
	return []ofutil.Message{
		ofutil.ControllerPPSMeterDel(0),
		ofutil.ControllerPPSMeterAdd(0, v.DP.PacketInPPS),
	}
}

func (v *Valve) addDefaultFlows() []ofutil.Message {
	var msgs []ofutil.Message
	msgs = append(msgs, v.deleteAllValveFlows()...)
	msgs = append(msgs, v.addPacketinMeter()...)
	for _, m := range v.DP.Meters {
		msgs = append(msgs, m.EntryMsg())
	}
	msgs = append(msgs, v.addDefaultDropFlows()...)
	msgs = append(msgs, v.addVLANFloodFlow()...)
	return msgs
}

func (v *Valve) vlanACLID(vlan *config.VLAN) int {
	if vlan.ACLIn != 0 {
		return vlan.ACLIn
	}
	return v.DP.VLANACLIn
}

func (v *Valve) portACLID(port *config.Port) int {
	if port.ACLIn != 0 {
		return port.ACLIn
	}
	return v.DP.PortACLIn
}

func (v *Valve) addVLANACL(vlan *config.VLAN) []ofutil.Message {
	acl, ok := v.DP.ACLs[v.vlanACLID(vlan)]
	if !ok {
		return nil
	}
	allowGoto := ofutil.GotoTable(v.DP.Tables["eth_src"].ID)
	return v.ACLBuilder.BuildACL(v.DP.Tables["vlan_acl"], acl, v.DP.HighestPriority, allowGoto, v.DP.Meters)
}

// addVLAN configures one VLAN's flood rules, ACL and FIB/VIP state,
// mirroring valve.py's _add_vlan. It may flip v.L3 when a VIP is
// installed.
func (v *Valve) addVLAN(vlan *config.VLAN) []ofutil.Message {
	v.Logger.Info(fmt.Sprintf("configuring VLAN %d", vlan.VID))
	var msgs []ofutil.Message
	msgs = append(msgs, v.FloodMgr.BuildFloodRules(v.DP, vlan, false)...)
	msgs = append(msgs, v.addVLANACL(vlan)...)
	for _, ipv := range vlan.IPVersions() {
		rm := v.RouteMgrs[ipv]
		for _, vip := range vlan.FaucetVIPsByIPVersion[ipv] {
			vipMsgs, err := v.addFaucetVIP(rm, vlan, vip)
			if err != nil {
				v.ConfigErrors = append(v.ConfigErrors, err)
				continue
			}
			msgs = append(msgs, vipMsgs...)
		}
	}
	return msgs
}

// addFaucetVIP installs one VIP, rejecting stacking+routing with
// ErrConfigContradiction per spec.md's ConfigContradiction taxonomy
// entry (§7) instead of crashing the process (spec.md §9's "lift to a
// typed initialization error surfaced by add_faucet_vip" note).
func (v *Valve) addFaucetVIP(rm RouteManager, vlan *config.VLAN, vip *net.IPNet) ([]ofutil.Message, error) {
	if v.DP.Stack != nil {
		v.Logger.Error("stacking + routing not supported, refusing to add VIP")
		return nil, ErrConfigContradiction
	}
	v.L3 = true
	return rm.AddFaucetVIP(vlan, vip), nil
}

// delVLAN removes every VLAN-matching flow from the VLAN-match tables
// other than the vlan table itself, mirroring valve.py's _del_vlan.
func (v *Valve) delVLAN(vlan *config.VLAN) []ofutil.Message {
	v.Logger.Info(fmt.Sprintf("delete VLAN %d", vlan.VID))
	vlanTable := v.DP.Tables["vlan"]
	match := ofutil.Match{VLAN: &ofutil.VLANMatch{VID: uint16(vlan.VID)}}
	var msgs []ofutil.Message
	for _, t := range v.DP.VLANMatchTables() {
		if t == vlanTable {
			continue
		}
		msgs = append(msgs, t.FlowDel(match, false))
	}
	return msgs
}

// addPortsAndVLANs wires every configured VLAN's ports plus any
// discovered-but-unconfigured ports into one cold-start port set,
// mirroring valve.py's _add_ports_and_vlans.
func (v *Valve) addPortsAndVLANs(discoveredPorts []uint32) []ofutil.Message {
	var msgs []ofutil.Message
	allPorts := map[uint32]bool{}

	for _, p := range v.DP.Ports {
		if p.Stack != nil {
			allPorts[p.Number] = true
		}
	}

	for _, vlan := range v.DP.VLANs {
		msgs = append(msgs, v.addVLAN(vlan)...)
		for _, p := range vlan.Ports() {
			allPorts[p.Number] = true
		}
		for _, num := range vlan.MirrorDestinationPorts {
			allPorts[num] = true
		}
	}

	for _, num := range discoveredPorts {
		if ofutil.IgnorePort(num) {
			continue
		}
		allPorts[num] = true
	}

	portNums := make([]uint32, 0, len(allPorts))
	for num := range allPorts {
		portNums = append(portNums, num)
	}
	msgs = append(msgs, v.PortsAdd(portNums, true)...)
	return msgs
}

// DatapathConnect cold-starts the pipeline for dpID, mirroring
// valve.py's datapath_connect (spec.md §4.6 "Cold start").
func (v *Valve) DatapathConnect(dpID uint64, upPorts []uint32) []ofutil.Message {
	if v.ignoreDPID(dpID) {
		return nil
	}
	v.Logger.Info("cold start configuring DP")
	v.ConfigErrors = nil
	var msgs []ofutil.Message
	msgs = append(msgs, v.addDefaultFlows()...)
	msgs = append(msgs, v.addPortsAndVLANs(upPorts)...)
	msgs = append(msgs, v.addControllerLearnFlow()...)
	v.DP.Running = true
	return msgs
}

// DatapathDisconnect flips Running false; no flow mods are emitted
// since the switch is already gone, mirroring valve.py's
// datapath_disconnect.
func (v *Valve) DatapathDisconnect(dpID uint64) {
	if v.ignoreDPID(dpID) {
		return
	}
	v.DP.Running = false
	v.Logger.Warning("datapath down")
}

func (v *Valve) portAddACL(portNum uint32, coldStart bool) []ofutil.Message {
	port, ok := v.DP.Ports[portNum]
	if !ok {
		return nil
	}
	portACLTable := v.DP.Tables["port_acl"]
	inPortMatch := ofutil.Match{InPort: ofutil.U32(portNum)}
	var msgs []ofutil.Message
	if coldStart {
		msgs = append(msgs, portACLTable.FlowDel(inPortMatch, false))
	}
	allowGoto := ofutil.GotoTable(v.DP.Tables["vlan"].ID)
	if acl, ok := v.DP.ACLs[v.portACLID(port)]; ok {
		msgs = append(msgs, v.ACLBuilder.BuildACL(portACLTable, acl, v.DP.HighestPriority, allowGoto, v.DP.Meters)...)
		return msgs
	}
	msgs = append(msgs, portACLTable.FlowMod(v.DP.HighestPriority, inPortMatch, []ofutil.Instruction{allowGoto}, 0, 0, 0))
	return msgs
}

func (v *Valve) findForwardingTable(vlan *config.VLAN) *config.Table {
	if _, ok := v.DP.ACLs[v.vlanACLID(vlan)]; ok {
		return v.DP.Tables["vlan_acl"]
	}
	return v.DP.Tables["eth_src"]
}

func (v *Valve) portAddVLANTagged(port *config.Port, vlan *config.VLAN, forwarding *config.Table, mirrorActs []ofutil.Action) []ofutil.Message {
	inst := []ofutil.Instruction{ofutil.GotoTable(forwarding.ID)}
	if len(mirrorActs) > 0 {
		inst = append([]ofutil.Instruction{ofutil.ApplyActions(mirrorActs)}, inst...)
	}
	vlanTable := v.DP.Tables["vlan"]
	match := ofutil.Match{InPort: ofutil.U32(port.Number), VLAN: &ofutil.VLANMatch{VID: uint16(vlan.VID)}}
	return []ofutil.Message{vlanTable.FlowMod(v.DP.LowPriority, match, inst, 0, 0, 0)}
}

func (v *Valve) portAddVLANUntagged(port *config.Port, vlan *config.VLAN, forwarding *config.Table, mirrorActs []ofutil.Action) []ofutil.Message {
	actions := append(append([]ofutil.Action{}, mirrorActs...), ofutil.PushVLANAct(uint16(vlan.VID))...)
	inst := []ofutil.Instruction{
		ofutil.ApplyActions(actions),
		ofutil.GotoTable(forwarding.ID),
	}
	vlanTable := v.DP.Tables["vlan"]
	match := ofutil.Match{InPort: ofutil.U32(port.Number), VLAN: &ofutil.VLANMatch{Untagged: true}}
	return []ofutil.Message{vlanTable.FlowMod(v.DP.LowPriority, match, inst, 0, 0, 0)}
}

func (v *Valve) portAddVLANs(port *config.Port, mirrorActs []ofutil.Action, tagged []*config.VLAN, untagged []*config.VLAN) []ofutil.Message {
	var msgs []ofutil.Message
	for _, vlan := range tagged {
		msgs = append(msgs, v.portAddVLANTagged(port, vlan, v.findForwardingTable(vlan), mirrorActs)...)
	}
	for _, vlan := range untagged {
		msgs = append(msgs, v.portAddVLANUntagged(port, vlan, v.findForwardingTable(vlan), mirrorActs)...)
	}
	return msgs
}

func (v *Valve) portDeleteFlows(port *config.Port, oldEthSrcs []net.HardwareAddr) []ofutil.Message {
	var msgs []ofutil.Message
	msgs = append(msgs, v.deleteAllPortMatchFlows(port)...)
	msgs = append(msgs, v.DP.Tables["eth_dst"].FlowDelOut(ofutil.Wildcard, ofp13.PortNo(port.Number), false))
	if port.PermanentLearn {
		ethSrcTable := v.DP.Tables["eth_src"]
		for _, mac := range oldEthSrcs {
			msgs = append(msgs, ethSrcTable.FlowDel(ofutil.Match{EthSrc: mac}, false))
		}
	}
	return msgs
}

// PortsAdd provisions the given ports, mirroring valve.py's ports_add.
func (v *Valve) PortsAdd(portNums []uint32, coldStart bool) []ofutil.Message {
	var msgs []ofutil.Message
	vlanTable := v.DP.Tables["vlan"]
	ethSrcTable := v.DP.Tables["eth_src"]
	vlansWithPortsAdded := map[int]*config.VLAN{}

	for _, num := range portNums {
		if ofutil.IgnorePort(num) {
			continue
		}
		port, ok := v.DP.Ports[num]
		if !ok {
			v.Logger.Info(fmt.Sprintf("ignoring port %d not present in configuration", num))
			continue
		}
		port.PhysUp = true
		v.Logger.Info(fmt.Sprintf("sending config for port %d", num))

		if !port.Running() {
			continue
		}

		if port.MirrorDestination {
			msgs = append(msgs, vlanTable.FlowDrop(v.DP.HighestPriority, ofutil.Match{InPort: ofutil.U32(num)}, 0))
			continue
		}

		msgs = append(msgs, v.portAddACL(num, false)...)

		tagged := append([]*config.VLAN{}, port.TaggedVLANs...)
		var untagged []*config.VLAN
		if port.NativeVLAN != nil {
			untagged = append(untagged, port.NativeVLAN)
		}
		portVLANs := append(append([]*config.VLAN{}, tagged...), untagged...)

		if port.Stack != nil {
			inst := []ofutil.Instruction{ofutil.GotoTable(ethSrcTable.ID)}
			msgs = append(msgs, vlanTable.FlowMod(v.DP.LowPriority, ofutil.Match{InPort: ofutil.U32(num)}, inst, 0, 0, 0))
			portVLANs = portVLANs[:0]
			for _, vl := range v.DP.VLANs {
				portVLANs = append(portVLANs, vl)
			}
		} else {
			var mirrorActs []ofutil.Action
			if len(port.Mirror) > 0 {
				for _, dst := range port.Mirror {
					mirrorActs = append(mirrorActs, ofutil.Output{Port: ofp13.PortNo(dst)})
				}
			}
			msgs = append(msgs, v.portAddVLANs(port, mirrorActs, tagged, untagged)...)
		}

		for _, vlan := range portVLANs {
			vlansWithPortsAdded[vlan.VID] = vlan
		}
	}

	if !coldStart {
		for _, vlan := range vlansWithPortsAdded {
			msgs = append(msgs, v.FloodMgr.BuildFloodRules(v.DP, vlan, false)...)
		}
	}

	return msgs
}

func (v *Valve) ethSrcsLearnedOnPort(portNum uint32) []net.HardwareAddr {
	port, ok := v.DP.Ports[portNum]
	if !ok {
		return nil
	}
	var vlans []*config.VLAN
	if port.NativeVLAN != nil {
		vlans = append(vlans, port.NativeVLAN)
	}
	vlans = append(vlans, port.TaggedVLANs...)

	var out []net.HardwareAddr
	for _, vlan := range vlans {
		for macStr, entry := range vlan.HostCache {
			if entry.Port == portNum {
				if mac, err := net.ParseMAC(macStr); err == nil {
					out = append(out, mac)
				}
			}
		}
	}
	return out
}

// PortsDelete tears down the given ports, mirroring valve.py's
// ports_delete.
func (v *Valve) PortsDelete(portNums []uint32) []ofutil.Message {
	var msgs []ofutil.Message
	vlansWithDeletedPorts := map[int]*config.VLAN{}

	for _, num := range portNums {
		if ofutil.IgnorePort(num) {
			continue
		}
		port, ok := v.DP.Ports[num]
		if !ok {
			continue
		}
		port.PhysUp = false
		v.Logger.Info(fmt.Sprintf("port %d down", num))

		msgs = append(msgs, v.portDeleteFlows(port, v.ethSrcsLearnedOnPort(num))...)

		var portVLANs []*config.VLAN
		if port.NativeVLAN != nil {
			portVLANs = append(portVLANs, port.NativeVLAN)
		}
		portVLANs = append(portVLANs, port.TaggedVLANs...)
		for _, vlan := range portVLANs {
			vlansWithDeletedPorts[vlan.VID] = vlan
		}
	}

	for _, vlan := range vlansWithDeletedPorts {
		msgs = append(msgs, v.FloodMgr.BuildFloodRules(v.DP, vlan, true)...)
	}

	return msgs
}

// PortStatusReason mirrors OFPPR_ADD/DELETE/MODIFY.
type PortStatusReason int

const (
	PortStatusAdd PortStatusReason = iota
	PortStatusDelete
	PortStatusModify
)

// PortStatusHandler dispatches a port-status notification, mirroring
// valve.py's port_status_handler.
func (v *Valve) PortStatusHandler(portNo uint32, reason PortStatusReason, portIsUp bool) []ofutil.Message {
	switch reason {
	case PortStatusAdd:
		return v.PortsAdd([]uint32{portNo}, false)
	case PortStatusDelete:
		return v.PortsDelete([]uint32{portNo})
	case PortStatusModify:
		var msgs []ofutil.Message
		msgs = append(msgs, v.PortsDelete([]uint32{portNo})...)
		if portIsUp {
			msgs = append(msgs, v.PortsAdd([]uint32{portNo}, false)...)
		}
		return msgs
	default:
		v.Logger.Warning(fmt.Sprintf("unhandled port status %d for port %d", reason, portNo))
		return nil
	}
}

// controlPlaneHandler offers pkt_meta to every route manager in turn,
// mirroring valve.py's control_plane_handler: packets addressed to the
// VLAN's router MAC, or any non-unicast frame, may be ARP/ND destined
// for us. The bool reports whether some route manager claimed the
// packet, distinguishing "handled, no messages" from "not for us" so
// RcvPacket knows whether host-FIB installation should still run.
func (v *Valve) controlPlaneHandler(vlan *config.VLAN, pktMeta *PacketMeta) ([]ofutil.Message, bool) {
	if pktMeta.EthDst.String() != vlan.FaucetMAC.String() && pktMeta.EthDstIsUnicast() {
		return nil, false
	}
	for _, rm := range v.RouteMgrs {
		if msgs, handled := rm.ControlPlaneHandler(pktMeta); handled {
			return msgs, true
		}
	}
	return nil, false
}

// addHostFIBRoutesFromPacket lets every route manager try to install a
// host-FIB route derived from pktMeta's source address, mirroring
// valve.py's add_host_fib_route_from_pkt call site in rcv_packet.
func (v *Valve) addHostFIBRoutesFromPacket(pktMeta *PacketMeta) []ofutil.Message {
	var msgs []ofutil.Message
	for _, rm := range v.RouteMgrs {
		msgs = append(msgs, rm.AddHostFIBRouteFromPacket(pktMeta)...)
	}
	return msgs
}

func (v *Valve) knownUpDPIDAndPort(dpID uint64, inPort uint32) bool {
	if v.ignoreDPID(dpID) || ofutil.IgnorePort(inPort) || !v.DP.Running {
		return false
	}
	_, ok := v.DP.Ports[inPort]
	return ok
}

// rateLimitPacketIns implements the per-second packet-in budget,
// mirroring valve.py's _rate_limit_packet_ins: when IgnoreLearnIns is
// N>0, every Nth packet-in within the current second is dropped (the
// 2nd, 4th, ... for N=2); 0 never rate-limits.
func (v *Valve) rateLimitPacketIns(now time.Time) bool {
	nowSec := now.Unix()
	if v.lastPacketInSec != nowSec {
		v.lastPacketInSec = nowSec
		v.packetInCountSec = 0
	}
	v.packetInCountSec++
	return v.DP.IgnoreLearnIns > 0 && v.packetInCountSec%v.DP.IgnoreLearnIns == 0
}

// edgeDPForHost finds the Valve (if any) among valves where eth_src is
// already learned on this VLAN as an edge (non-stack) attachment,
// mirroring valve.py's _edge_dp_for_host.
func (v *Valve) edgeDPForHost(valves map[uint64]*Valve, dpID uint64, vlanVID int, ethSrc net.HardwareAddr) *config.DP {
	for otherDPID, other := range valves {
		if otherDPID == dpID {
			continue
		}
		vlan, ok := other.DP.VLANs[vlanVID]
		if !ok {
			continue
		}
		entry, ok := vlan.HostCache[ethSrc.String()]
		if !ok {
			continue
		}
		if port, ok := other.DP.Ports[entry.Port]; ok && port.Stack == nil {
			return other.DP
		}
	}
	return nil
}

// learnHost admits the MAC on learnPort, rerouting learning onto the
// shortest stack path toward an edge DP when the ingress port is a
// stack link, mirroring valve.py's _learn_host.
func (v *Valve) learnHost(valves map[uint64]*Valve, dpID uint64, pktMeta *PacketMeta) []ofutil.Message {
	learnPortNum := pktMeta.Port
	learnPort := v.DP.Ports[learnPortNum]

	if learnPort.Stack != nil {
		edgeDP := v.edgeDPForHost(valves, dpID, pktMeta.VLAN, pktMeta.EthSrc)
		if edgeDP == nil {
			return nil
		}
		portNum, ok := v.DP.ShortestPathPort(edgeDP.Name)
		if !ok {
			return nil
		}
		learnPort = v.DP.Ports[portNum]
		v.Logger.Info(fmt.Sprintf("host learned via stack port to %s", edgeDP.Name))
	}

	vlan := v.DP.VLANs[pktMeta.VLAN]
	return v.HostMgr.LearnHostOnVLANPort(learnPort, vlan, pktMeta.EthSrc, time.Now())
}

func (v *Valve) portLearnBanRules(pktMeta *PacketMeta) []ofutil.Message {
	port := v.DP.Ports[pktMeta.Port]
	oldEthSrcs := v.ethSrcsLearnedOnPort(pktMeta.Port)
	if port.MaxHosts > 0 && len(oldEthSrcs) == port.MaxHosts {
		port.LearnBanCount++
		v.Logger.Info(fmt.Sprintf("max hosts %d reached on port %d, banning", port.MaxHosts, port.Number))
		return []ofutil.Message{v.HostMgr.TempBanHostLearningOnPort(port)}
	}
	return nil
}

func (v *Valve) vlanLearnBanRules(pktMeta *PacketMeta) []ofutil.Message {
	vlan := v.DP.VLANs[pktMeta.VLAN]
	hostsCount := v.HostMgr.HostsLearnedOnVLANCount(vlan)
	_, alreadyCached := vlan.HostCache[pktMeta.EthSrc.String()]
	if vlan.MaxHosts > 0 && hostsCount == vlan.MaxHosts && !alreadyCached {
		vlan.LearnBanCount++
		v.Logger.Info(fmt.Sprintf("max hosts %d reached on vlan %d, banning", vlan.MaxHosts, vlan.VID))
		return []ofutil.Message{v.HostMgr.TempBanHostLearningOnVLAN(vlan)}
	}
	return nil
}

// RcvPacket handles one packet-in, mirroring valve.py's rcv_packet
// (spec.md §4.6 "Packet-in").
func (v *Valve) RcvPacket(dpID uint64, valves map[uint64]*Valve, pktMeta *PacketMeta) []ofutil.Message {
	if !v.knownUpDPIDAndPort(dpID, pktMeta.Port) {
		return nil
	}
	vlan, ok := v.DP.VLANs[pktMeta.VLAN]
	if !ok {
		v.Logger.Warning(fmt.Sprintf("packet-in for unexpected VLAN %d", pktMeta.VLAN))
		return nil
	}

	var msgs []ofutil.Message
	var cpHandled bool

	if v.L3 {
		var cpMsgs []ofutil.Message
		cpMsgs, cpHandled = v.controlPlaneHandler(vlan, pktMeta)
		msgs = append(msgs, cpMsgs...)
	}

	if v.rateLimitPacketIns(time.Now()) {
		return msgs
	}

	if ban := v.portLearnBanRules(pktMeta); len(ban) > 0 {
		return append(msgs, ban...)
	}
	if ban := v.vlanLearnBanRules(pktMeta); len(ban) > 0 {
		return append(msgs, ban...)
	}

	msgs = append(msgs, v.learnHost(valves, dpID, pktMeta)...)

	if v.L3 && !cpHandled {
		msgs = append(msgs, v.addHostFIBRoutesFromPacket(pktMeta)...)
	}

	return msgs
}

// HostExpire ages out stale host-cache entries across every VLAN,
// mirroring valve.py's host_expire. A no-op when the DP isn't running.
func (v *Valve) HostExpire(now time.Time) {
	if !v.DP.Running {
		return
	}
	for _, vlan := range v.DP.VLANs {
		v.HostMgr.ExpireHostsFromVLAN(vlan, now)
	}
}

// ResolveGateways retries unresolved FIB gateways across every VLAN and
// IP version, mirroring valve.py's resolve_gateways.
func (v *Valve) ResolveGateways(now time.Time) []ofutil.Message {
	if !v.DP.Running {
		return nil
	}
	var msgs []ofutil.Message
	for _, vlan := range v.DP.VLANs {
		for _, rm := range v.RouteMgrs {
			msgs = append(msgs, rm.ResolveGateways(vlan, now)...)
		}
	}
	return msgs
}

// Advertise sends periodic RAs/advertisements across every VLAN and IP
// version, mirroring valve.py's advertise (each RouteManager gates on
// its own AdvertiseInterval via baseRouteManager.Advertise).
func (v *Valve) Advertise(now time.Time) []ofutil.Message {
	if !v.DP.Running {
		return nil
	}
	var msgs []ofutil.Message
	for _, vlan := range v.DP.VLANs {
		for _, rm := range v.RouteMgrs {
			msgs = append(msgs, rm.Advertise(vlan, now)...)
		}
	}
	return msgs
}

// AddRoute installs a static route for dst via gw on vlan, dispatching
// to the IP version's RouteManager, mirroring valve.py's add_route.
func (v *Valve) AddRoute(vlan *config.VLAN, gw, dst net.IP) []ofutil.Message {
	rm := v.routeManagerFor(dst)
	if rm == nil {
		return nil
	}
	return rm.AddRoute(vlan, gw, dst, true)
}

// DelRoute removes dst's route, mirroring valve.py's del_route.
func (v *Valve) DelRoute(vlan *config.VLAN, dst net.IP) []ofutil.Message {
	rm := v.routeManagerFor(dst)
	if rm == nil {
		return nil
	}
	return rm.DelRoute(vlan, dst)
}

func (v *Valve) routeManagerFor(ip net.IP) RouteManager {
	if ip.To4() != nil {
		return v.RouteMgrs[4]
	}
	return v.RouteMgrs[6]
}

// GetConfigDict renders the running configuration as a plain structure
// suitable for a REST control API, mirroring valve.py's
// get_config_dict.
func (v *Valve) GetConfigDict() map[string]interface{} {
	vlansDict := make(map[string]interface{}, len(v.DP.VLANs))
	for _, vlan := range v.DP.VLANs {
		vlansDict[vlan.Name] = vlan.ToConf()
	}
	aclsDict := make(map[string]interface{}, len(v.DP.ACLs))
	for id, acl := range v.DP.ACLs {
		aclsDict[fmt.Sprintf("%d", id)] = acl.ToConf()
	}
	return map[string]interface{}{
		"dps":   map[string]interface{}{v.DP.Name: v.DP.ToConf()},
		"vlans": vlansDict,
		"acls":  aclsDict,
	}
}

// FlowTimeout reconciles the host cache when an eth_src/eth_dst flow
// expires (OFPT_FLOW_REMOVED), mirroring valve.py's flow_timeout. The
// caller has already decoded the match's oxm fields into vid/mac/port
// since OXM decoding is the downstream encoder's job (spec.md §1).
func (v *Valve) FlowTimeout(tableID ofp13.Table, vid int, mac net.HardwareAddr, port uint32, isSrc bool) {
	vlan, ok := v.DP.VLANs[vid]
	if !ok {
		return
	}
	ethSrcTable := v.DP.Tables["eth_src"]
	ethDstTable := v.DP.Tables["eth_dst"]
	switch {
	case ethSrcTable != nil && tableID == ethSrcTable.ID && isSrc:
		v.HostMgr.SrcRuleExpire(vlan, mac, port)
	case ethDstTable != nil && tableID == ethDstTable.ID && !isSrc:
		v.HostMgr.DstRuleExpire(vlan, mac, port)
	}
}

// UpdateConfigMetrics exports the static configuration surface to m,
// mirroring valve.py's update_config_metrics.
func (v *Valve) UpdateConfigMetrics(m MetricsSink) {
	m.SetConfigDPName(v.DP.DPID, v.DP.Name)
	for id, t := range v.DP.TablesByID {
		m.SetConfigTableName(v.DP.DPID, id, t.Name)
	}
}

// UpdateMetrics exports the dynamic learning/routing state to m,
// clearing and repopulating the MAC-learning gauges each call,
// mirroring valve.py's update_metrics.
func (v *Valve) UpdateMetrics(m MetricsSink) {
	m.ResetLearnedMACs(v.DP.DPID)
	for _, vlan := range v.DP.VLANs {
		hostsCount := v.HostMgr.HostsLearnedOnVLANCount(vlan)
		m.SetVLANHostsLearned(v.DP.DPID, vlan.VID, hostsCount)
		m.SetVLANLearnBans(v.DP.DPID, vlan.VID, vlan.LearnBanCount)
		for _, ipv := range vlan.IPVersions() {
			m.SetVLANNeighbors(v.DP.DPID, vlan.VID, ipv, len(vlan.NeighCacheByIPVersion[ipv]))
		}

		hostsOnPort := map[uint32][]net.HardwareAddr{}
		for macStr, entry := range vlan.HostCache {
			mac, err := net.ParseMAC(macStr)
			if err != nil {
				continue
			}
			hostsOnPort[entry.Port] = append(hostsOnPort[entry.Port], mac)
		}
		for port, macs := range hostsOnPort {
			for i, mac := range macs {
				m.SetLearnedMAC(v.DP.DPID, vlan.VID, port, i, mac)
			}
		}
	}
	for _, port := range v.DP.Ports {
		m.SetPortLearnBans(v.DP.DPID, port.Number, port.LearnBanCount)
	}
}
