package valve

import (
	"math/rand"
	"net"
	"time"

	"github.com/netrack/openflow/ofp13"

	"github.com/faucetgo/valve/config"
	"github.com/faucetgo/valve/ofutil"
)

// HostManager installs and expires the eth_src/eth_dst flow pair that
// implements MAC learning, and the learn-ban drop flows that cap
// packet-in churn per port/VLAN, mirroring valve.py's valve_host
// contract (HostManager in spec.md §4.2).
type HostManager struct {
	EthSrcTable *config.Table
	EthDstTable *config.Table

	HighPriority    uint16
	LowestPriority  uint16

	Timeout        time.Duration
	LearnJitter    time.Duration
	LearnBanTimeout time.Duration
}

// LearnHostOnVLANPort installs the src/dst flow pair for mac arriving
// on port in vlan, and records it in the VLAN host cache, mirroring
// valve.py's learn_host_on_vlan_port.
func (hm *HostManager) LearnHostOnVLANPort(port *config.Port, vlan *config.VLAN, mac net.HardwareAddr, now time.Time) []ofutil.Message {
	srcIdle := hm.jitteredIdle()
	if port.PermanentLearn {
		srcIdle = 0
	}

	vlanMatch := &ofutil.VLANMatch{VID: uint16(vlan.VID)}
	srcMatch := ofutil.Match{
		InPort: ofutil.U32(port.Number),
		VLAN:   vlanMatch,
		EthSrc: mac,
	}
	srcInst := []ofutil.Instruction{ofutil.GotoTable(hm.EthDstTable.ID)}
	srcFlow := hm.EthSrcTable.FlowMod(hm.HighPriority, srcMatch, srcInst, 0, srcIdle, 0)

	dstMatch := ofutil.Match{
		VLAN:   vlanMatch,
		EthDst: mac,
	}
	dstInst := []ofutil.Instruction{
		ofutil.ApplyActions(ofutil.OutputPort(ofp13.PortNo(port.Number), 0)),
	}
	dstFlow := hm.EthDstTable.FlowMod(hm.HighPriority, dstMatch, dstInst, 0, 0, 0)

	if vlan.HostCache == nil {
		vlan.HostCache = map[string]*config.HostCacheEntry{}
	}
	vlan.HostCache[mac.String()] = &config.HostCacheEntry{Port: port.Number, CacheTime: now}

	return []ofutil.Message{srcFlow, dstFlow}
}

// jitteredIdle returns the idle timeout for a non-permanent src flow:
// Timeout plus or minus LearnJitter, mirroring valve.py's
// timeout ± learn_jitter.
func (hm *HostManager) jitteredIdle() uint16 {
	base := int64(hm.Timeout / time.Second)
	jitter := int64(hm.LearnJitter / time.Second)
	if jitter > 0 {
		base += rand.Int63n(2*jitter+1) - jitter
	}
	if base < 0 {
		base = 0
	}
	return uint16(base)
}

// TempBanHostLearningOnPort installs a hard-timeout drop flow in
// eth_src matching in_port=port, mirroring
// valve.py's temp_ban_host_learning_on_port.
func (hm *HostManager) TempBanHostLearningOnPort(port *config.Port) ofutil.Message {
	match := ofutil.Match{InPort: ofutil.U32(port.Number)}
	hard := uint16(hm.LearnBanTimeout / time.Second)
	return hm.EthSrcTable.FlowMod(hm.HighPriority, match, nil, 0, 0, hard)
}

// TempBanHostLearningOnVLAN installs a hard-timeout drop flow in
// eth_src matching vlan=vid, mirroring
// valve.py's temp_ban_host_learning_on_vlan.
func (hm *HostManager) TempBanHostLearningOnVLAN(vlan *config.VLAN) ofutil.Message {
	match := ofutil.Match{VLAN: &ofutil.VLANMatch{VID: uint16(vlan.VID)}}
	hard := uint16(hm.LearnBanTimeout / time.Second)
	return hm.EthSrcTable.FlowMod(hm.HighPriority, match, nil, 0, 0, hard)
}

// HostsLearnedOnVLANCount returns |host_cache| for vlan, mirroring
// valve.py's hosts_learned_on_vlan_count.
func (hm *HostManager) HostsLearnedOnVLANCount(vlan *config.VLAN) int {
	return len(vlan.HostCache)
}

// ExpireHostsFromVLAN evicts host-cache entries older than Timeout,
// mirroring valve.py's expire_hosts_from_vlan. Returns the MACs
// expired so the caller can also drop their flows if desired.
func (hm *HostManager) ExpireHostsFromVLAN(vlan *config.VLAN, now time.Time) []net.HardwareAddr {
	var expired []net.HardwareAddr
	for macStr, entry := range vlan.HostCache {
		if now.Sub(entry.CacheTime) > hm.Timeout {
			mac, err := net.ParseMAC(macStr)
			if err == nil {
				expired = append(expired, mac)
			}
			delete(vlan.HostCache, macStr)
		}
	}
	return expired
}

// SrcRuleExpire reconciles the host cache when an eth_src flow expires
// (OFPT_FLOW_REMOVED), mirroring valve.py's src_rule_expire: the MAC
// is no longer authoritatively learned on that port, so it is dropped
// from the cache if it still points there.
func (hm *HostManager) SrcRuleExpire(vlan *config.VLAN, mac net.HardwareAddr, port uint32) {
	entry, ok := vlan.HostCache[mac.String()]
	if ok && entry.Port == port {
		delete(vlan.HostCache, mac.String())
	}
}

// DstRuleExpire reconciles the host cache when an eth_dst flow
// expires, mirroring valve.py's dst_rule_expire: same cleanup as
// SrcRuleExpire, since both flows age out together under normal
// operation.
func (hm *HostManager) DstRuleExpire(vlan *config.VLAN, mac net.HardwareAddr, port uint32) {
	hm.SrcRuleExpire(vlan, mac, port)
}
