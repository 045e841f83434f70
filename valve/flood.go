package valve

import (
	"github.com/netrack/openflow/ofp13"

	"github.com/faucetgo/valve/config"
	"github.com/faucetgo/valve/ofutil"
)

// FloodManager computes and installs the flood table entries for a
// VLAN: per ingress port, output to every other member (tagged
// directly, untagged members popped first), plus mirror duplicates,
// and stack-aware loop avoidance via shortest-path-to-root, mirroring
// valve.py's valve_flood contract (spec.md §4.3).
type FloodManager struct {
	FloodTable  *config.Table
	LowPriority uint16
	GroupTable  bool

	// groupIDByVLAN holds the group identifier used per VLAN when
	// GroupTable is set;
	// a real deployment would persist/reuse these across reloads, but
	// the Valve core only needs one stable id per VLAN for this
	// manager's lifetime.
	groupIDByVLAN map[int]uint32
}

// BuildFloodRules returns the full flood-table program for vlan: one
// flow per ingress port (or, when GroupTable is set, one group plus one
// flow per ingress port), mirroring valve.py's build_flood_rules.
// modify=true (e.g. after a port went down) builds the rules over the
// VLAN's running member ports only, so a down port is neither matched
// as ingress nor flooded to; modify=false uses every member port. Both
// paths emit FlowMod with OFPFC_ADD, which overwrites any existing
// entry at the same priority/match.
func (fm *FloodManager) BuildFloodRules(dp *config.DP, vlan *config.VLAN, modify bool) []ofutil.Message {
	members := vlan.Ports()
	if modify {
		running := members[:0:0]
		for _, p := range members {
			if p.Running() {
				running = append(running, p)
			}
		}
		members = running
	}
	if len(members) == 0 {
		return nil
	}

	if fm.GroupTable {
		return fm.buildGroupFloodRules(dp, vlan, members)
	}
	return fm.buildFlatFloodRules(dp, vlan, members)
}

func (fm *FloodManager) buildFlatFloodRules(dp *config.DP, vlan *config.VLAN, members []*config.Port) []ofutil.Message {
	var msgs []ofutil.Message
	for _, ingress := range members {
		actions := fm.floodActions(dp, vlan, ingress, members)
		vlanMatch := &ofutil.VLANMatch{VID: uint16(vlan.VID)}
		match := ofutil.Match{InPort: ofutil.U32(ingress.Number), VLAN: vlanMatch}
		inst := []ofutil.Instruction{ofutil.ApplyActions(actions)}
		msgs = append(msgs, fm.FloodTable.FlowMod(fm.LowPriority, match, inst, 0, 0, 0))
	}
	return msgs
}

func (fm *FloodManager) buildGroupFloodRules(dp *config.DP, vlan *config.VLAN, members []*config.Port) []ofutil.Message {
	if fm.groupIDByVLAN == nil {
		fm.groupIDByVLAN = map[int]uint32{}
	}
	groupID, ok := fm.groupIDByVLAN[vlan.VID]
	if !ok {
		groupID = uint32(vlan.VID)
		fm.groupIDByVLAN[vlan.VID] = groupID
	}

	var buckets []ofutil.Bucket
	for _, egress := range members {
		buckets = append(buckets, ofutil.Bucket{
			WatchPort: ofp13.PortNo(egress.Number),
			Actions:   fm.outputActions(dp, vlan, egress),
		})
	}
	group := ofutil.GroupMod{Command: ofp13.GC_ADD, Type: ofp13.GT_ALL, GroupID: groupID, Buckets: buckets}

	var msgs []ofutil.Message
	for _, ingress := range members {
		vlanMatch := &ofutil.VLANMatch{VID: uint16(vlan.VID)}
		match := ofutil.Match{InPort: ofutil.U32(ingress.Number), VLAN: vlanMatch}
		inst := []ofutil.Instruction{
			ofutil.ApplyActionsInstr{Actions: []ofutil.Action{ofutil.Group{GroupID: groupID}}},
		}
		msgs = append(msgs, fm.FloodTable.FlowMod(fm.LowPriority, match, inst, 0, 0, 0))
	}
	return append([]ofutil.Message{group}, msgs...)
}

// floodActions builds the action list for flooding out of every
// member of vlan except ingress, including mirror duplicates, and
// excluding the non-shortest-path stack ports (loop avoidance).
func (fm *FloodManager) floodActions(dp *config.DP, vlan *config.VLAN, ingress *config.Port, members []*config.Port) []ofutil.Action {
	var actions []ofutil.Action
	for _, p := range members {
		if p.Number == ingress.Number {
			continue
		}
		if p.Stack != nil && !fm.shouldFloodToStackPort(dp, p) {
			continue
		}
		actions = append(actions, fm.outputActions(dp, vlan, p)...)
	}
	for _, dst := range vlan.MirrorDestinationPorts {
		actions = append(actions, ofutil.Output{Port: ofp13.PortNo(dst), MaxLen: 0})
	}
	return actions
}

// outputActions returns the action sequence to flood to a single
// member port: tagged members receive the packet as-is (the pipeline
// carries an internal VLAN tag from ingress onward); untagged/native
// members have the tag popped first.
func (fm *FloodManager) outputActions(dp *config.DP, vlan *config.VLAN, p *config.Port) []ofutil.Action {
	if p.Native(vlan.VID) {
		return []ofutil.Action{
			ofutil.PopVLAN{},
			ofutil.Output{Port: ofp13.PortNo(p.Number), MaxLen: 0},
		}
	}
	return []ofutil.Action{ofutil.Output{Port: ofp13.PortNo(p.Number), MaxLen: 0}}
}

// shouldFloodToStackPort reports whether p, a stack link, lies on the
// shortest path toward the root DP; only that port floods toward the
// root, avoiding loops across the stack topology, mirroring valve.py's
// use of shortest_path_to_root/shortest_path_port.
func (fm *FloodManager) shouldFloodToStackPort(dp *config.DP, p *config.Port) bool {
	if dp.Stack == nil || p.Stack == nil {
		return true
	}
	if dp.ShortestPathToRoot() {
		// We are the root: flood out every stack port (away from root).
		return true
	}
	rootPort, ok := dp.ShortestPathPort(dp.Stack.RootDPName)
	if !ok {
		return true
	}
	return p.Number == rootPort
}
