// Command faucetd is a minimal single-datapath demonstration of the
// valve package: it builds one config.DP, wires a valve.Valve to it,
// and serves the wiring over a real OpenFlow listener using the
// teacher's own transport (of.ServeMux dispatch by message type).
//
// This is deliberately not a process-level supervisor capable of
// hosting multiple datapaths; see valve.Valve's own doc comment for
// that boundary.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	of "github.com/netrack/openflow"
	"github.com/netrack/openflow/ofp13"

	"github.com/faucetgo/valve/config"
	"github.com/faucetgo/valve/ofutil"
	"github.com/faucetgo/valve/valve"
)

func demoDP() *config.DP {
	vlan := &config.VLAN{
		VID:       100,
		Name:      "office",
		HostCache: map[string]*config.HostCacheEntry{},
	}
	p1 := &config.Port{Number: 1, Name: "port1", NativeVLAN: vlan, AdminUp: true}
	p2 := &config.Port{Number: 2, Name: "port2", NativeVLAN: vlan, AdminUp: true}
	vlan.Untagged = []*config.Port{p1, p2}

	tables := map[string]*config.Table{
		"vlan":     {Name: "vlan", ID: 0},
		"eth_src":  {Name: "eth_src", ID: 1},
		"eth_dst":  {Name: "eth_dst", ID: 2},
		"flood":    {Name: "flood", ID: 3},
	}
	tablesByID := make(map[ofp13.Table]*config.Table, len(tables))
	for _, t := range tables {
		tablesByID[t.ID] = t
	}

	return &config.DP{
		DPID:     1,
		Name:     "faucetd-demo",
		Hardware: "Open vSwitch",

		Tables:     tables,
		TablesByID: tablesByID,

		InPortTableNames:    []string{"vlan"},
		VLANMatchTableNames: []string{"eth_src", "eth_dst", "flood"},
		WildcardTableName:   "flood",

		LowestPriority:  0,
		LowPriority:     0x1000,
		HighPriority:    0x2000,
		HighestPriority: 0x3000,

		DropBPDU:                   true,
		DropLLDP:                   true,
		DropSpoofedFaucetMAC:       true,
		DropBroadcastSourceAddress: true,

		VLANs:   map[int]*config.VLAN{100: vlan},
		Ports:   map[uint32]*config.Port{1: p1, 2: p2},
		ACLs:    map[int]*config.ACL{},
		Meters:  map[int]*config.Meter{},
		Routers: map[string]*config.Router{},
	}
}

// logMessages stands in for the wire encoder: translating
// ofutil.Message into OFP13 bytes is downstream-encoder work the
// valve/ofutil packages deliberately leave external (see
// ofutil.Message's doc comment), since the vendored ofp13.FlowMod
// wire struct doesn't carry an instruction list. A production
// deployment supplies that encoder; this demo only shows what would be
// sent.
func logMessages(logger *valve.ValveLogger, msgs []ofutil.Message) {
	for _, m := range msgs {
		logger.Debug(fmt.Sprintf("would send %+v", m))
	}
}

func main() {
	addr := flag.String("addr", ":6653", "OpenFlow listen address")
	flag.Parse()

	dp := demoDP()
	logger := valve.NewValveLogger(log.New(os.Stderr, "", log.LstdFlags), dp.DPID)
	v := valve.NewValve(dp, logger, true)
	valves := map[uint64]*valve.Valve{dp.DPID: v}

	mux := of.NewServeMux()

	mux.Handle(of.TypeMatcher(ofp13.T_FEATURES_REPLY), of.HandlerFunc(func(rw of.ResponseWriter, r *of.Request) {
		msgs := v.DatapathConnect(dp.DPID, []uint32{1, 2})
		logger.Info("datapath connected")
		logMessages(logger, msgs)
	}))

	mux.Handle(of.TypeMatcher(ofp13.T_PACKET_IN), of.HandlerFunc(func(rw of.ResponseWriter, r *of.Request) {
		// A real deployment decodes r.Body into an ofp13.PacketIn and
		// parses the embedded frame into a valve.PacketMeta; this demo
		// only shows the dispatch, since that decode step belongs to
		// the external packet parser valve.PacketMeta already assumes
		// (see packet.go's doc comment).
		pktMeta := &valve.PacketMeta{Port: 1, VLAN: 100}
		msgs := v.RcvPacket(dp.DPID, valves, pktMeta)
		logMessages(logger, msgs)
	}))

	mux.Handle(of.TypeMatcher(ofp13.T_PORT_STATUS), of.HandlerFunc(func(rw of.ResponseWriter, r *of.Request) {
		msgs := v.PortStatusHandler(1, valve.PortStatusModify, true)
		logMessages(logger, msgs)
	}))

	mux.Handle(of.TypeMatcher(ofp13.T_FLOW_REMOVED), of.HandlerFunc(func(rw of.ResponseWriter, r *of.Request) {
		logger.Debug("flow removed")
	}))

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for now := range ticker.C {
			v.HostExpire(now)
			logMessages(logger, v.ResolveGateways(now))
			logMessages(logger, v.Advertise(now))
		}
	}()

	srv := &of.Server{Addr: *addr, Handler: mux}
	logger.Info("listening on " + *addr)
	if err := srv.ListenAndServe(); err != nil && err != net.ErrClosed {
		log.Fatal(err)
	}
}
