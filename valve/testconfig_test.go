package valve

import (
	"log"
	"net"
	"os"

	"github.com/netrack/openflow/ofp13"

	"github.com/faucetgo/valve/config"
)

func mac(s string) net.HardwareAddr {
	m, err := net.ParseMAC(s)
	if err != nil {
		panic(err)
	}
	return m
}

// testDP builds a fixture DP carrying every pipeline table a Valve
// touches, patterned on config/testconfig_test.go's testDP but wider
// (adds port_acl/vlan_acl/vip/ipv4_fib/ipv6_fib) so valve-package tests
// can exercise ACL binding and route managers too.
func testDP() *config.DP {
	vlan := &config.VLAN{
		VID:       10,
		Name:      "vlan10",
		MaxHosts:  0,
		HostCache: map[string]*config.HostCacheEntry{},
		FaucetMAC: mac("0e:00:00:00:00:01"),
	}
	p1 := &config.Port{Number: 1, Name: "p1", NativeVLAN: vlan, AdminUp: true, PhysUp: true}
	p2 := &config.Port{Number: 2, Name: "p2", NativeVLAN: vlan, AdminUp: true, PhysUp: true}
	vlan.Untagged = []*config.Port{p1, p2}

	tables := map[string]*config.Table{
		"vlan":     {Name: "vlan", ID: ofp13.Table(0)},
		"port_acl": {Name: "port_acl", ID: ofp13.Table(1)},
		"vlan_acl": {Name: "vlan_acl", ID: ofp13.Table(2)},
		"eth_src":  {Name: "eth_src", ID: ofp13.Table(3)},
		"ipv4_fib": {Name: "ipv4_fib", ID: ofp13.Table(4)},
		"ipv6_fib": {Name: "ipv6_fib", ID: ofp13.Table(5)},
		"vip":      {Name: "vip", ID: ofp13.Table(6)},
		"eth_dst":  {Name: "eth_dst", ID: ofp13.Table(7)},
		"flood":    {Name: "flood", ID: ofp13.Table(8)},
	}
	tablesByID := make(map[ofp13.Table]*config.Table, len(tables))
	for _, t := range tables {
		tablesByID[t.ID] = t
	}

	return &config.DP{
		DPID:     1,
		Name:     "sw1",
		Hardware: "Open vSwitch",

		Tables:     tables,
		TablesByID: tablesByID,

		InPortTableNames:    []string{"vlan", "port_acl"},
		VLANMatchTableNames: []string{"vlan_acl", "eth_src", "eth_dst", "flood"},
		WildcardTableName:   "flood",

		LowestPriority:  0,
		LowPriority:     0x1000,
		HighPriority:    0x2000,
		HighestPriority: 0x3000,

		DropBPDU:                   true,
		DropLLDP:                   true,
		DropSpoofedFaucetMAC:       true,
		DropBroadcastSourceAddress: true,

		VLANs:   map[int]*config.VLAN{10: vlan},
		Ports:   map[uint32]*config.Port{1: p1, 2: p2},
		ACLs:    map[int]*config.ACL{},
		Meters:  map[int]*config.Meter{},
		Routers: map[string]*config.Router{},
	}
}

func testLogger() *ValveLogger {
	return NewValveLogger(log.New(os.Stderr, "", 0), 1)
}

func testValve() *Valve {
	return NewValve(testDP(), testLogger(), true)
}
