// Package ofutil adapts FAUCET-style flow-table helpers onto the real
// OpenFlow 1.3 protocol types from github.com/netrack/openflow/ofp13.
// Turning a Match/Instruction/Action value into OXM TLVs on the wire is
// the job of the downstream OpenFlow encoder (out of scope here); this
// package only builds the logical messages a Valve emits.
package ofutil

import "net"

// VLANMatch pins a flow to a VLAN: vid is the 12-bit VLAN ID, or the
// zero value with Untagged set to match untagged (OFPVID_NONE) traffic.
type VLANMatch struct {
	VID      uint16
	Untagged bool
}

// Match is the semantic match specification a Table builds flows from,
// corresponding to spec.md's table.match(**fields): the set of packet
// fields a rule must match against, named the way valve.py names them.
type Match struct {
	InPort  *uint32
	VLAN    *VLANMatch
	EthSrc  net.HardwareAddr
	EthDst  net.HardwareAddr
	EthType *uint16
	IPProto *uint8
	NWSrc   *net.IPNet
	NWDst   *net.IPNet
	ICMPType *uint8
	ARPTPA  net.IP
}

// Wildcard is the empty Match: matches every packet.
var Wildcard = Match{}

// IsWildcard reports whether m constrains nothing.
func (m Match) IsWildcard() bool {
	return m.InPort == nil && m.VLAN == nil && len(m.EthSrc) == 0 &&
		len(m.EthDst) == 0 && m.EthType == nil && m.IPProto == nil &&
		m.NWSrc == nil && m.NWDst == nil && m.ICMPType == nil && len(m.ARPTPA) == 0
}

// Equal reports whether two matches constrain the same fields to the
// same values. Only tests call it; the host and flood managers do not
// dedupe the flow mods they emit.
func (m Match) Equal(o Match) bool {
	if !ptrU32Eq(m.InPort, o.InPort) {
		return false
	}
	if !vlanEq(m.VLAN, o.VLAN) {
		return false
	}
	if m.EthSrc.String() != o.EthSrc.String() || m.EthDst.String() != o.EthDst.String() {
		return false
	}
	if !ptrU16Eq(m.EthType, o.EthType) || !ptrU8Eq(m.IPProto, o.IPProto) || !ptrU8Eq(m.ICMPType, o.ICMPType) {
		return false
	}
	if ipNetStr(m.NWSrc) != ipNetStr(o.NWSrc) || ipNetStr(m.NWDst) != ipNetStr(o.NWDst) {
		return false
	}
	if m.ARPTPA.String() != o.ARPTPA.String() {
		return false
	}
	return true
}

func ipNetStr(n *net.IPNet) string {
	if n == nil {
		return ""
	}
	return n.String()
}

func ptrU32Eq(a, b *uint32) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func ptrU16Eq(a, b *uint16) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func ptrU8Eq(a, b *uint8) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func vlanEq(a, b *VLANMatch) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// U32 returns a pointer to v, for inline Match field construction.
func U32(v uint32) *uint32 { return &v }

// U16 returns a pointer to v, for inline Match field construction.
func U16(v uint16) *uint16 { return &v }

// U8 returns a pointer to v, for inline Match field construction.
func U8(v uint8) *uint8 { return &v }
