package config

import (
	"fmt"
	"time"

	"github.com/netrack/openflow/ofp13"
)

// DP is the static descriptor of one datapath: everything a Valve
// needs to program a switch, built by the caller (this module does not
// parse YAML; see SPEC_FULL.md's ambient-stack notes). Field set
// mirrors valve.py's self.dp.* attribute references throughout
// rcv_packet/reload_config/datapath_connect.
type DP struct {
	DPID     uint64
	Name     string
	Hardware string

	Tables     map[string]*Table
	TablesByID map[ofp13.Table]*Table

	// InPortTableNames/VLANMatchTableNames name the pipeline stages
	// that match on in_port and on vlan_vid respectively, mirroring
	// valve.py's dp.in_port_tables/dp.vlan_match_tables. Left to the
	// caller rather than inferred, since the distilled spec does not
	// define the inference rule.
	InPortTableNames   []string
	VLANMatchTableNames []string
	// WildcardTableName names the stage flows are installed into when
	// a rule matches no VLAN/port context at all (valve.py's
	// dp.wildcard_table), typically the eth_dst/flood stage.
	WildcardTableName string

	LowestPriority  uint16
	LowPriority     uint16
	HighPriority    uint16
	HighestPriority uint16

	DropBPDU                  bool
	DropLLDP                  bool
	DropSpoofedFaucetMAC      bool
	DropBroadcastSourceAddress bool
	// IgnoreLearnIns, when > 0, drops every Nth packet-in within a
	// wall-clock second before learning (the 2nd, 4th, ... for N=2),
	// mirroring valve.py's ignore_learn_ins rate limit. 0 disables the
	// limit.
	IgnoreLearnIns            int
	ProactiveLearn            bool
	UseIdleTimeout            bool
	GroupTable                bool
	GroupTableRouting         bool

	Timeout               time.Duration
	LearnBanTimeout        time.Duration
	LearnJitter            time.Duration
	ARPNeighborTimeout     time.Duration
	AdvertiseInterval      time.Duration
	MaxResolveBackoffTime  time.Duration

	MaxHostsPerResolveCycle int
	MaxHostFIBRetryCount    int
	PacketInPPS             uint32

	VLANs   map[int]*VLAN
	Ports   map[uint32]*Port
	ACLs    map[int]*ACL
	Meters  map[int]*Meter
	Routers map[string]*Router
	Groups  map[string]uint32

	Stack *StackLinks

	// PortACLIn/VLANACLIn are the default ACL indices applied to a
	// port or VLAN that doesn't name one explicitly (0 = none).
	PortACLIn int
	VLANACLIn int

	Running bool
}

// AllValveTables returns every pipeline table in ID order, mirroring
// valve.py's dp.all_valve_tables().
func (dp *DP) AllValveTables() []*Table {
	out := make([]*Table, 0, len(dp.Tables))
	for _, t := range dp.Tables {
		out = append(out, t)
	}
	sortTablesByID(out)
	return out
}

func sortTablesByID(tables []*Table) {
	for i := 1; i < len(tables); i++ {
		for j := i; j > 0 && tables[j].ID < tables[j-1].ID; j-- {
			tables[j], tables[j-1] = tables[j-1], tables[j]
		}
	}
}

// InPortTables returns the tables that match on in_port, mirroring
// valve.py's dp.in_port_tables.
func (dp *DP) InPortTables() []*Table {
	return dp.tablesByName(dp.InPortTableNames)
}

// VLANMatchTables returns the tables that match on vlan_vid, mirroring
// valve.py's dp.vlan_match_tables.
func (dp *DP) VLANMatchTables() []*Table {
	return dp.tablesByName(dp.VLANMatchTableNames)
}

// WildcardTable returns the stage flows land in when they carry no
// VLAN/port context, mirroring valve.py's dp.wildcard_table.
func (dp *DP) WildcardTable() (*Table, bool) {
	t, ok := dp.Tables[dp.WildcardTableName]
	return t, ok
}

func (dp *DP) tablesByName(names []string) []*Table {
	out := make([]*Table, 0, len(names))
	for _, n := range names {
		if t, ok := dp.Tables[n]; ok {
			out = append(out, t)
		}
	}
	return out
}

// ShortestPathPort returns the local port cabled toward peer on the
// way to the stack's root DP, mirroring valve.py's
// dp.shortest_path_port. In this single-hop model a DP only knows its
// directly cabled neighbors, so the "shortest path" is simply the
// direct link.
func (dp *DP) ShortestPathPort(peer string) (uint32, bool) {
	if dp.Stack == nil {
		return 0, false
	}
	port, ok := dp.Stack.PortsByPeer[peer]
	return port, ok
}

// ShortestPathToRoot reports whether this DP is the stack's root,
// mirroring valve.py's dp.shortest_path_to_root() used to decide
// whether this DP floods toward the root or away from it.
func (dp *DP) ShortestPathToRoot() bool {
	return dp.Stack == nil || dp.Stack.RootDPName == dp.Name
}

// ToConf renders the DP back into a plain map, backing
// Valve.GetConfigDict (spec.md §6's REST control API read path).
func (dp *DP) ToConf() map[string]interface{} {
	vlans := make(map[string]interface{}, len(dp.VLANs))
	for vid, v := range dp.VLANs {
		vlans[fmt.Sprintf("%d", vid)] = v.ToConf()
	}
	ports := make(map[string]interface{}, len(dp.Ports))
	for num, p := range dp.Ports {
		ports[fmt.Sprintf("%d", num)] = p.ToConf()
	}
	return map[string]interface{}{
		"dp_id":    dp.DPID,
		"hardware": dp.Hardware,
		"vlans":    vlans,
		"interfaces": ports,
	}
}
