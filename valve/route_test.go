package valve

import (
	"net"
	"testing"
	"time"

	"github.com/faucetgo/valve/config"
	"github.com/faucetgo/valve/ofutil"
)

func testDPForRoutes() *config.DP {
	dp := testDP()
	dp.MaxHostsPerResolveCycle = 5
	dp.MaxHostFIBRetryCount = 3
	dp.MaxResolveBackoffTime = time.Minute
	return dp
}

func TestAddRouteThenResolveGatewaysSkipsStatic(t *testing.T) {
	dp := testDPForRoutes()
	rm := NewIPv4RouteManager(dp.Tables["vip"], dp.Tables["ipv4_fib"], dp.Tables["eth_dst"], dp, true)
	vlan := dp.VLANs[10]

	_, dst, _ := net.ParseCIDR("10.0.0.0/24")
	gw := net.ParseIP("10.0.0.1")
	msgs := rm.AddRoute(vlan, gw, dst.IP, true)
	if len(msgs) != 1 {
		t.Fatalf("AddRoute returned %d messages, want 1", len(msgs))
	}

	resolveMsgs := rm.ResolveGateways(vlan, time.Now())
	if len(resolveMsgs) != 0 {
		t.Errorf("ResolveGateways attempted to resolve a static route: %v", resolveMsgs)
	}
}

func TestAddRouteDecTTLGatesInstruction(t *testing.T) {
	dp := testDPForRoutes()
	_, dst, _ := net.ParseCIDR("10.0.0.0/24")
	gw := net.ParseIP("10.0.0.1")
	vlan := dp.VLANs[10]

	withTTL := NewIPv4RouteManager(dp.Tables["vip"], dp.Tables["ipv4_fib"], dp.Tables["eth_dst"], dp, true)
	fm := withTTL.AddRoute(vlan, gw, dst.IP, true)[0].(ofutil.FlowMod)
	if len(fm.Instructions) != 2 {
		t.Fatalf("DecTTL=true route has %d instructions, want 2 (dec-ttl, goto)", len(fm.Instructions))
	}

	withoutTTL := NewIPv4RouteManager(dp.Tables["vip"], dp.Tables["ipv4_fib"], dp.Tables["eth_dst"], dp, false)
	fm2 := withoutTTL.AddRoute(vlan, gw, dst.IP, true)[0].(ofutil.FlowMod)
	if len(fm2.Instructions) != 1 {
		t.Fatalf("DecTTL=false route has %d instructions, want 1 (goto only)", len(fm2.Instructions))
	}
}

func TestResolveGatewaysBacksOffExponentially(t *testing.T) {
	dp := testDPForRoutes()
	dp.MaxHostFIBRetryCount = 10
	rm := NewIPv4RouteManager(dp.Tables["vip"], dp.Tables["ipv4_fib"], dp.Tables["eth_dst"], dp, true)
	rm.ARPRequestBuilder = func(srcMAC net.HardwareAddr, srcIP, targetIP net.IP) []byte { return []byte{1} }
	vlan := dp.VLANs[10]

	_, dst, _ := net.ParseCIDR("10.0.0.0/24")
	gw := net.ParseIP("10.0.0.1")
	rm.AddRoute(vlan, gw, dst.IP, false)

	t0 := time.Now()
	first := rm.ResolveGateways(vlan, t0)
	if len(first) != 1 {
		t.Fatalf("first resolve attempt returned %d messages, want 1", len(first))
	}
	again := rm.ResolveGateways(vlan, t0.Add(500*time.Millisecond))
	if len(again) != 0 {
		t.Error("ResolveGateways retried before the backoff window elapsed")
	}
	later := rm.ResolveGateways(vlan, t0.Add(2*time.Second))
	if len(later) != 1 {
		t.Error("ResolveGateways did not retry once the backoff window elapsed")
	}
}

func TestControlPlaneHandlerPopulatesNeighborCache(t *testing.T) {
	dp := testDPForRoutes()
	rm := NewIPv4RouteManager(dp.Tables["vip"], dp.Tables["ipv4_fib"], dp.Tables["eth_dst"], dp, true)
	rm.VLANLookup = func(vid int) *config.VLAN { return dp.VLANs[vid] }

	pkt := &PacketMeta{
		VLAN: 10, EthType: ethTypeARP,
		ARP: &ARP{SenderIP: net.ParseIP("10.0.0.5"), SenderMAC: mac("aa:bb:cc:dd:ee:ff")},
	}
	_, handled := rm.ControlPlaneHandler(pkt)
	if !handled {
		t.Fatal("ControlPlaneHandler did not claim an ARP packet")
	}
	if _, ok := dp.VLANs[10].NeighCacheByIPVersion[4]["10.0.0.5"]; !ok {
		t.Error("ControlPlaneHandler did not populate the IPv4 neighbor cache")
	}
}

func TestControlPlaneHandlerRepliesToARPRequestForVIP(t *testing.T) {
	dp := testDPForRoutes()
	vlan := dp.VLANs[10]
	vip := &net.IPNet{IP: net.ParseIP("10.0.0.254"), Mask: net.CIDRMask(24, 32)}
	vlan.FaucetVIPsByIPVersion = map[int][]*net.IPNet{4: {vip}}

	rm := NewIPv4RouteManager(dp.Tables["vip"], dp.Tables["ipv4_fib"], dp.Tables["eth_dst"], dp, true)
	rm.VLANLookup = func(vid int) *config.VLAN { return dp.VLANs[vid] }

	var built bool
	rm.ARPReplyBuilder = func(srcMAC net.HardwareAddr, srcIP net.IP, dstMAC net.HardwareAddr, dstIP net.IP) []byte {
		built = true
		if !srcIP.Equal(vip.IP) {
			t.Errorf("reply srcIP = %v, want VIP %v", srcIP, vip.IP)
		}
		return []byte{1}
	}

	pkt := &PacketMeta{
		VLAN: 10, EthType: ethTypeARP, Port: 1,
		ARP: &ARP{Op: ARPRequest, SenderIP: net.ParseIP("10.0.0.5"), TargetIP: vip.IP, SenderMAC: mac("aa:bb:cc:dd:ee:ff")},
	}
	msgs, handled := rm.ControlPlaneHandler(pkt)
	if !handled {
		t.Fatal("ControlPlaneHandler did not claim the ARP request")
	}
	if !built {
		t.Fatal("ARPReplyBuilder was never invoked for a VIP-targeted request")
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2 (neighbor flow + packet-out reply)", len(msgs))
	}
	if _, ok := msgs[0].(ofutil.FlowMod); !ok {
		t.Errorf("first message = %T, want FlowMod (neighbor flow)", msgs[0])
	}
	if _, ok := msgs[1].(ofutil.PacketOut); !ok {
		t.Errorf("second message = %T, want PacketOut (ARP reply)", msgs[1])
	}
}

func TestControlPlaneHandlerSkipsReplyWithoutVIPMatch(t *testing.T) {
	dp := testDPForRoutes()
	rm := NewIPv4RouteManager(dp.Tables["vip"], dp.Tables["ipv4_fib"], dp.Tables["eth_dst"], dp, true)
	rm.VLANLookup = func(vid int) *config.VLAN { return dp.VLANs[vid] }
	var built bool
	rm.ARPReplyBuilder = func(srcMAC net.HardwareAddr, srcIP net.IP, dstMAC net.HardwareAddr, dstIP net.IP) []byte {
		built = true
		return []byte{1}
	}

	pkt := &PacketMeta{
		VLAN: 10, EthType: ethTypeARP, Port: 1,
		ARP: &ARP{Op: ARPRequest, SenderIP: net.ParseIP("10.0.0.5"), TargetIP: net.ParseIP("10.0.0.99"), SenderMAC: mac("aa:bb:cc:dd:ee:ff")},
	}
	if _, handled := rm.ControlPlaneHandler(pkt); !handled {
		t.Fatal("ControlPlaneHandler did not claim the ARP request")
	}
	if built {
		t.Error("ARPReplyBuilder was invoked for a request not targeting a VIP")
	}
}

func TestAddHostFIBRouteFromPacketInstallsRoute(t *testing.T) {
	dp := testDPForRoutes()
	vlan := dp.VLANs[10]
	vip := &net.IPNet{IP: net.ParseIP("10.0.0.254"), Mask: net.CIDRMask(24, 32)}
	vlan.FaucetVIPsByIPVersion = map[int][]*net.IPNet{4: {vip}}

	rm := NewIPv4RouteManager(dp.Tables["vip"], dp.Tables["ipv4_fib"], dp.Tables["eth_dst"], dp, true)
	rm.VLANLookup = func(vid int) *config.VLAN { return dp.VLANs[vid] }

	pkt := &PacketMeta{VLAN: 10, Port: 1, SrcIP: net.ParseIP("10.0.0.7")}
	msgs := rm.AddHostFIBRouteFromPacket(pkt)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1 (FIB flow mod)", len(msgs))
	}
	if _, ok := vlan.NeighCacheByIPVersion[4]["10.0.0.7"]; !ok {
		t.Error("AddHostFIBRouteFromPacket did not record the host in the neighbor cache")
	}
}

func TestAddHostFIBRouteFromPacketSkipsUnroutedVLAN(t *testing.T) {
	dp := testDPForRoutes()
	rm := NewIPv4RouteManager(dp.Tables["vip"], dp.Tables["ipv4_fib"], dp.Tables["eth_dst"], dp, true)
	rm.VLANLookup = func(vid int) *config.VLAN { return dp.VLANs[vid] }

	pkt := &PacketMeta{VLAN: 10, Port: 1, SrcIP: net.ParseIP("10.0.0.7")}
	if msgs := rm.AddHostFIBRouteFromPacket(pkt); len(msgs) != 0 {
		t.Errorf("got %d messages for a VLAN with no IPv4 VIP, want 0", len(msgs))
	}
}
