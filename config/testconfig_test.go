package config

import (
	"net"

	"github.com/netrack/openflow/ofp13"
)

// testDP builds a small two-port, single-VLAN fixture DP, patterned on
// how grimm-is-flywall's internal/config package builds fixtures for
// its own tests: a plain constructor function rather than a YAML
// loader, since this module takes DP descriptors as input.
func testDP() *DP {
	vlan := &VLAN{
		VID:       100,
		Name:      "office",
		MaxHosts:  10,
		HostCache: map[string]*HostCacheEntry{},
	}
	p1 := &Port{Number: 1, Name: "p1", NativeVLAN: vlan, AdminUp: true, PhysUp: true}
	p2 := &Port{Number: 2, Name: "p2", NativeVLAN: vlan, AdminUp: true, PhysUp: true}
	vlan.Untagged = []*Port{p1, p2}

	vlanTable := &Table{Name: "vlan", ID: ofp13.Table(0)}
	ethSrcTable := &Table{Name: "eth_src", ID: ofp13.Table(1)}
	ethDstTable := &Table{Name: "eth_dst", ID: ofp13.Table(2)}
	floodTable := &Table{Name: "flood", ID: ofp13.Table(3)}

	dp := &DP{
		DPID:     1,
		Name:     "sw1",
		Hardware: "Open vSwitch",
		Tables: map[string]*Table{
			"vlan":    vlanTable,
			"eth_src": ethSrcTable,
			"eth_dst": ethDstTable,
			"flood":   floodTable,
		},
		TablesByID: map[ofp13.Table]*Table{
			0: vlanTable, 1: ethSrcTable, 2: ethDstTable, 3: floodTable,
		},
		InPortTableNames:    []string{"vlan"},
		VLANMatchTableNames: []string{"eth_src", "eth_dst", "flood"},
		WildcardTableName:   "flood",
		LowestPriority:      0,
		LowPriority:         0x1000,
		HighPriority:        0x2000,
		HighestPriority:     0x3000,
		VLANs:               map[int]*VLAN{100: vlan},
		Ports:               map[uint32]*Port{1: p1, 2: p2},
		ACLs:                map[int]*ACL{},
		Meters:              map[int]*Meter{},
		Routers:             map[string]*Router{},
	}
	return dp
}

func mac(s string) net.HardwareAddr {
	m, err := net.ParseMAC(s)
	if err != nil {
		panic(err)
	}
	return m
}
